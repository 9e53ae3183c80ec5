package httpapi

import (
	"net/http"
	"time"

	"asistencia.org/internal/audit"
	"asistencia.org/internal/auth"
	"asistencia.org/internal/hr"
)

type companyRequest struct {
	Name    string `json:"nombre" validate:"required,max=200"`
	TaxID   string `json:"cif" validate:"max=32"`
	Address string `json:"direccion" validate:"max=500"`
}

func (c companyRequest) input() hr.CompanyInput {
	return hr.CompanyInput{Name: c.Name, TaxID: c.TaxID, Address: c.Address}
}

type createEmployeeRequest struct {
	CompanyID  string `json:"empresaId" validate:"required"`
	Code       string `json:"codigo" validate:"max=32"`
	NationalID string `json:"dni" validate:"max=32"`
	Name       string `json:"nombre" validate:"required,max=200"`
	Email      string `json:"email" validate:"omitempty,email"`
	Position   string `json:"puesto" validate:"max=200"`
	Password   string `json:"password"`
}

type updateEmployeeRequest struct {
	CompanyID  *string `json:"empresaId"`
	Code       *string `json:"codigo" validate:"omitempty,max=32"`
	NationalID *string `json:"dni" validate:"omitempty,max=32"`
	Name       *string `json:"nombre" validate:"omitempty,max=200"`
	Email      *string `json:"email" validate:"omitempty,email"`
	Position   *string `json:"puesto" validate:"omitempty,max=200"`
	Active     *bool   `json:"activo"`
	Password   *string `json:"password"`
}

type projectRequest struct {
	CompanyID   string `json:"empresaId"`
	Name        string `json:"nombre" validate:"required,max=200"`
	Description string `json:"descripcion" validate:"max=2000"`
}

type requestStatusRequest struct {
	Status string `json:"estado" validate:"required,oneof=pendiente aprobada rechazada"`
}

type documentRequest struct {
	EmployeeID string `json:"empleadoId" validate:"required"`
	Title      string `json:"titulo" validate:"required,max=200"`
	URL        string `json:"url" validate:"required,max=1000"`
}

type taskRequest struct {
	EmployeeID  string `json:"empleadoId" validate:"required"`
	Title       string `json:"titulo" validate:"required,max=200"`
	Description string `json:"descripcion" validate:"max=2000"`
}

// caller returns the gate's identity or answers 401.
func caller(w http.ResponseWriter, r *http.Request) (auth.Identity, bool) {
	who, ok := identity(r)
	if !ok {
		writeError(w, r, http.StatusUnauthorized, msgUnauthenticated)
	}
	return who, ok
}

func writeOK(w http.ResponseWriter) {
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

// --- companies ---

func (a *API) listCompanies(w http.ResponseWriter, r *http.Request) {
	who, valid := caller(w, r)
	if !valid {
		return
	}
	list, err := a.hr.ListCompanies(r.Context(), who)
	if err != nil {
		a.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"empresas": list})
}

func (a *API) createCompany(w http.ResponseWriter, r *http.Request) {
	who, valid := caller(w, r)
	if !valid {
		return
	}
	var req companyRequest
	if err := a.decode(r, &req); err != nil {
		a.handleError(w, r, err)
		return
	}
	c, err := a.hr.CreateCompany(r.Context(), who, req.input())
	if err != nil {
		a.handleError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "company.create", map[string]any{"company_id": c.ID})
	writeJSON(w, http.StatusCreated, map[string]any{"empresa": c})
}

func (a *API) getCompany(w http.ResponseWriter, r *http.Request) {
	who, valid := caller(w, r)
	if !valid {
		return
	}
	c, err := a.hr.GetCompany(r.Context(), who, r.PathValue("id"))
	if err != nil {
		a.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"empresa": c})
}

func (a *API) updateCompany(w http.ResponseWriter, r *http.Request) {
	who, valid := caller(w, r)
	if !valid {
		return
	}
	var req companyRequest
	if err := a.decode(r, &req); err != nil {
		a.handleError(w, r, err)
		return
	}
	c, err := a.hr.UpdateCompany(r.Context(), who, r.PathValue("id"), req.input())
	if err != nil {
		a.handleError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "company.update", map[string]any{"company_id": c.ID})
	writeJSON(w, http.StatusOK, map[string]any{"empresa": c})
}

func (a *API) deleteCompany(w http.ResponseWriter, r *http.Request) {
	who, valid := caller(w, r)
	if !valid {
		return
	}
	id := r.PathValue("id")
	if err := a.hr.DeleteCompany(r.Context(), who, id); err != nil {
		a.handleError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "company.delete", map[string]any{"company_id": id})
	writeOK(w)
}

// --- employees ---

func (a *API) listEmployees(w http.ResponseWriter, r *http.Request) {
	who, valid := caller(w, r)
	if !valid {
		return
	}
	list, err := a.hr.ListEmployees(r.Context(), who, r.URL.Query().Get("empresaId"))
	if err != nil {
		a.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"empleados": list})
}

func (a *API) createEmployee(w http.ResponseWriter, r *http.Request) {
	who, valid := caller(w, r)
	if !valid {
		return
	}
	var req createEmployeeRequest
	if err := a.decode(r, &req); err != nil {
		a.handleError(w, r, err)
		return
	}
	emp, err := a.hr.CreateEmployee(r.Context(), who, hr.NewEmployee{
		CompanyID:  req.CompanyID,
		Code:       req.Code,
		NationalID: req.NationalID,
		Name:       req.Name,
		Email:      req.Email,
		Position:   req.Position,
	}, req.Password)
	if err != nil {
		a.handleError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "employee.create", map[string]any{"target_employee_id": emp.ID, "codigo": emp.Code})
	writeJSON(w, http.StatusCreated, map[string]any{"empleado": emp})
}

func (a *API) getEmployee(w http.ResponseWriter, r *http.Request) {
	who, valid := caller(w, r)
	if !valid {
		return
	}
	emp, err := a.hr.GetEmployee(r.Context(), who, r.PathValue("id"))
	if err != nil {
		a.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"empleado": emp})
}

func (a *API) updateEmployee(w http.ResponseWriter, r *http.Request) {
	who, valid := caller(w, r)
	if !valid {
		return
	}
	var req updateEmployeeRequest
	if err := a.decode(r, &req); err != nil {
		a.handleError(w, r, err)
		return
	}
	emp, err := a.hr.UpdateEmployee(r.Context(), who, r.PathValue("id"), hr.EmployeeUpdate{
		CompanyID:  req.CompanyID,
		Code:       req.Code,
		NationalID: req.NationalID,
		Name:       req.Name,
		Email:      req.Email,
		Position:   req.Position,
		Active:     req.Active,
		Password:   req.Password,
	})
	if err != nil {
		a.handleError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "employee.update", map[string]any{"target_employee_id": emp.ID})
	writeJSON(w, http.StatusOK, map[string]any{"empleado": emp})
}

func (a *API) deleteEmployee(w http.ResponseWriter, r *http.Request) {
	who, valid := caller(w, r)
	if !valid {
		return
	}
	id := r.PathValue("id")
	if err := a.hr.DeleteEmployee(r.Context(), who, id); err != nil {
		a.handleError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "employee.delete", map[string]any{"target_employee_id": id})
	writeOK(w)
}

// --- projects ---

func (a *API) listProjects(w http.ResponseWriter, r *http.Request) {
	who, valid := caller(w, r)
	if !valid {
		return
	}
	list, err := a.hr.ListProjects(r.Context(), who, r.URL.Query().Get("empresaId"))
	if err != nil {
		a.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"proyectos": list})
}

func (a *API) createProject(w http.ResponseWriter, r *http.Request) {
	who, valid := caller(w, r)
	if !valid {
		return
	}
	var req projectRequest
	if err := a.decode(r, &req); err != nil {
		a.handleError(w, r, err)
		return
	}
	if req.CompanyID == "" {
		a.handleError(w, r, &badRequestError{msg: "empresaId es obligatorio"})
		return
	}
	p, err := a.hr.CreateProject(r.Context(), who, req.CompanyID, hr.ProjectInput{Name: req.Name, Description: req.Description})
	if err != nil {
		a.handleError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "project.create", map[string]any{"project_id": p.ID})
	writeJSON(w, http.StatusCreated, map[string]any{"proyecto": p})
}

func (a *API) getProject(w http.ResponseWriter, r *http.Request) {
	who, valid := caller(w, r)
	if !valid {
		return
	}
	p, err := a.hr.GetProject(r.Context(), who, r.PathValue("id"))
	if err != nil {
		a.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"proyecto": p})
}

func (a *API) updateProject(w http.ResponseWriter, r *http.Request) {
	who, valid := caller(w, r)
	if !valid {
		return
	}
	var req projectRequest
	if err := a.decode(r, &req); err != nil {
		a.handleError(w, r, err)
		return
	}
	p, err := a.hr.UpdateProject(r.Context(), who, r.PathValue("id"), hr.ProjectInput{Name: req.Name, Description: req.Description})
	if err != nil {
		a.handleError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "project.update", map[string]any{"project_id": p.ID})
	writeJSON(w, http.StatusOK, map[string]any{"proyecto": p})
}

func (a *API) deleteProject(w http.ResponseWriter, r *http.Request) {
	who, valid := caller(w, r)
	if !valid {
		return
	}
	id := r.PathValue("id")
	if err := a.hr.DeleteProject(r.Context(), who, id); err != nil {
		a.handleError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "project.delete", map[string]any{"project_id": id})
	writeOK(w)
}

// --- attendance ---

func (a *API) listAttendance(w http.ResponseWriter, r *http.Request) {
	who, valid := caller(w, r)
	if !valid {
		return
	}
	list, err := a.hr.ListAttendance(r.Context(), who, r.URL.Query().Get("empleadoId"))
	if err != nil {
		a.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"asistencias": list})
}

func (a *API) recordAttendance(w http.ResponseWriter, r *http.Request) {
	who, valid := caller(w, r)
	if !valid {
		return
	}
	var req attendanceRequest
	if err := a.decode(r, &req); err != nil {
		a.handleError(w, r, err)
		return
	}
	var at time.Time
	if req.At != nil {
		at = *req.At
	}
	rec, err := a.hr.RecordAttendance(r.Context(), who, req.EmployeeID, req.Type, req.Note, at)
	if err != nil {
		a.handleError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "attendance.record", map[string]any{"attendance_id": rec.ID, "tipo": rec.Type})
	writeJSON(w, http.StatusCreated, map[string]any{"asistencia": rec})
}

func (a *API) getAttendance(w http.ResponseWriter, r *http.Request) {
	who, valid := caller(w, r)
	if !valid {
		return
	}
	rec, err := a.hr.GetAttendance(r.Context(), who, r.PathValue("id"))
	if err != nil {
		a.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"asistencia": rec})
}

func (a *API) deleteAttendance(w http.ResponseWriter, r *http.Request) {
	who, valid := caller(w, r)
	if !valid {
		return
	}
	id := r.PathValue("id")
	if err := a.hr.DeleteAttendance(r.Context(), who, id); err != nil {
		a.handleError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "attendance.delete", map[string]any{"attendance_id": id})
	writeOK(w)
}

// --- requests ---

func (a *API) listRequests(w http.ResponseWriter, r *http.Request) {
	who, valid := caller(w, r)
	if !valid {
		return
	}
	list, err := a.hr.ListRequests(r.Context(), who, r.URL.Query().Get("empleadoId"))
	if err != nil {
		a.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"solicitudes": list})
}

func (a *API) createRequest(w http.ResponseWriter, r *http.Request) {
	who, valid := caller(w, r)
	if !valid {
		return
	}
	var req requestRequest
	if err := a.decode(r, &req); err != nil {
		a.handleError(w, r, err)
		return
	}
	rec, err := a.hr.CreateRequest(r.Context(), who, req.EmployeeID, req.Type, req.Description)
	if err != nil {
		a.handleError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "request.create", map[string]any{"solicitud_id": rec.ID})
	writeJSON(w, http.StatusCreated, map[string]any{"solicitud": rec})
}

// getRequest serves both the owner and the portal route.
func (a *API) getRequest(w http.ResponseWriter, r *http.Request) {
	who, valid := caller(w, r)
	if !valid {
		return
	}
	rec, err := a.hr.GetRequest(r.Context(), who, r.PathValue("id"))
	if err != nil {
		a.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"solicitud": rec})
}

func (a *API) setRequestStatus(w http.ResponseWriter, r *http.Request) {
	who, valid := caller(w, r)
	if !valid {
		return
	}
	var req requestStatusRequest
	if err := a.decode(r, &req); err != nil {
		a.handleError(w, r, err)
		return
	}
	rec, err := a.hr.SetRequestStatus(r.Context(), who, r.PathValue("id"), req.Status)
	if err != nil {
		a.handleError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "request.status", map[string]any{"solicitud_id": rec.ID, "estado": rec.Status})
	writeJSON(w, http.StatusOK, map[string]any{"solicitud": rec})
}

func (a *API) deleteRequest(w http.ResponseWriter, r *http.Request) {
	who, valid := caller(w, r)
	if !valid {
		return
	}
	id := r.PathValue("id")
	if err := a.hr.DeleteRequest(r.Context(), who, id); err != nil {
		a.handleError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "request.delete", map[string]any{"solicitud_id": id})
	writeOK(w)
}

// --- documentation ---

func (a *API) listDocuments(w http.ResponseWriter, r *http.Request) {
	who, valid := caller(w, r)
	if !valid {
		return
	}
	list, err := a.hr.ListDocuments(r.Context(), who, r.URL.Query().Get("empleadoId"))
	if err != nil {
		a.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"documentacion": list})
}

func (a *API) createDocument(w http.ResponseWriter, r *http.Request) {
	who, valid := caller(w, r)
	if !valid {
		return
	}
	var req documentRequest
	if err := a.decode(r, &req); err != nil {
		a.handleError(w, r, err)
		return
	}
	doc, err := a.hr.CreateDocument(r.Context(), who, req.EmployeeID, req.Title, req.URL)
	if err != nil {
		a.handleError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "document.create", map[string]any{"document_id": doc.ID})
	writeJSON(w, http.StatusCreated, map[string]any{"documento": doc})
}

// getDocument serves both the owner and the portal route.
func (a *API) getDocument(w http.ResponseWriter, r *http.Request) {
	who, valid := caller(w, r)
	if !valid {
		return
	}
	doc, err := a.hr.GetDocument(r.Context(), who, r.PathValue("id"))
	if err != nil {
		a.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"documento": doc})
}

func (a *API) deleteDocument(w http.ResponseWriter, r *http.Request) {
	who, valid := caller(w, r)
	if !valid {
		return
	}
	id := r.PathValue("id")
	if err := a.hr.DeleteDocument(r.Context(), who, id); err != nil {
		a.handleError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "document.delete", map[string]any{"document_id": id})
	writeOK(w)
}

// --- tasks ---

func (a *API) listTasks(w http.ResponseWriter, r *http.Request) {
	who, valid := caller(w, r)
	if !valid {
		return
	}
	list, err := a.hr.ListTasks(r.Context(), who, r.URL.Query().Get("empleadoId"))
	if err != nil {
		a.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tareas": list})
}

func (a *API) createTask(w http.ResponseWriter, r *http.Request) {
	who, valid := caller(w, r)
	if !valid {
		return
	}
	var req taskRequest
	if err := a.decode(r, &req); err != nil {
		a.handleError(w, r, err)
		return
	}
	task, err := a.hr.CreateTask(r.Context(), who, req.EmployeeID, req.Title, req.Description)
	if err != nil {
		a.handleError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "task.create", map[string]any{"task_id": task.ID})
	writeJSON(w, http.StatusCreated, map[string]any{"tarea": task})
}

func (a *API) getTask(w http.ResponseWriter, r *http.Request) {
	who, valid := caller(w, r)
	if !valid {
		return
	}
	task, err := a.hr.GetTask(r.Context(), who, r.PathValue("id"))
	if err != nil {
		a.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tarea": task})
}

func (a *API) updateTask(w http.ResponseWriter, r *http.Request) {
	who, valid := caller(w, r)
	if !valid {
		return
	}
	var req taskUpdateRequest
	if err := a.decode(r, &req); err != nil {
		a.handleError(w, r, err)
		return
	}
	task, err := a.hr.UpdateTask(r.Context(), who, r.PathValue("id"), req.update())
	if err != nil {
		a.handleError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "task.update", map[string]any{"task_id": task.ID})
	writeJSON(w, http.StatusOK, map[string]any{"tarea": task})
}

func (a *API) deleteTask(w http.ResponseWriter, r *http.Request) {
	who, valid := caller(w, r)
	if !valid {
		return
	}
	id := r.PathValue("id")
	if err := a.hr.DeleteTask(r.Context(), who, id); err != nil {
		a.handleError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "task.delete", map[string]any{"task_id": id})
	writeOK(w)
}
