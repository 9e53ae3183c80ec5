package httpapi

import (
	"errors"
	"net/http"
	"time"

	"asistencia.org/internal/audit"
	"asistencia.org/internal/auth"
	"asistencia.org/internal/hr"
	"asistencia.org/internal/obs"
)

type attendanceRequest struct {
	EmployeeID string     `json:"empleadoId"`
	Type       string     `json:"tipo" validate:"required,oneof=entrada salida"`
	Note       string     `json:"nota" validate:"max=500"`
	At         *time.Time `json:"fecha"`
}

type requestRequest struct {
	EmployeeID  string `json:"empleadoId"`
	Type        string `json:"tipo" validate:"required,max=100"`
	Description string `json:"descripcion" validate:"max=2000"`
}

type taskUpdateRequest struct {
	Title       *string `json:"titulo" validate:"omitempty,max=200"`
	Description *string `json:"descripcion" validate:"omitempty,max=2000"`
	Done        *bool   `json:"completada"`
}

func (t taskUpdateRequest) update() hr.TaskUpdate {
	return hr.TaskUpdate{Title: t.Title, Description: t.Description, Done: t.Done}
}

// identity returns whichever identity the gate attached.
func identity(r *http.Request) (auth.Identity, bool) {
	return auth.IdentityFromContext(r.Context())
}

func employeeIdentity(r *http.Request) (auth.Identity, bool) {
	c, ok := auth.EmployeeFromContext(r.Context())
	if !ok {
		return auth.Identity{}, false
	}
	return c.Identity(), true
}

func (a *API) portalLogin(w http.ResponseWriter, r *http.Request) {
	var req employeeLoginRequest
	if err := a.decode(r, &req); err != nil {
		a.handleError(w, r, err)
		return
	}
	emp, sess, err := a.auth.LoginEmployee(r.Context(), req.Login, req.Password)
	if err != nil {
		obs.RecordLogin("employee", loginOutcome(err))
		if errors.Is(err, auth.ErrInvalidCredentials) {
			_ = audit.LogEvent(r.Context(), "portal.login_failed", map[string]any{"ip": clientIP(r)})
		}
		a.handleError(w, r, err)
		return
	}
	obs.RecordLogin("employee", "success")
	a.setSessionCookie(w, EmployeeCookie, sess)
	ctx := auth.ContextWithClaims(r.Context(), sess.Claims)
	_ = audit.LogEvent(ctx, "portal.login", map[string]any{"employee_code": emp.Code})
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "empleado": emp})
}

func (a *API) portalLogout(w http.ResponseWriter, r *http.Request) {
	a.clearCookie(w, EmployeeCookie)
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (a *API) portalMe(w http.ResponseWriter, r *http.Request) {
	who, ok := employeeIdentity(r)
	if !ok {
		writeError(w, r, http.StatusUnauthorized, msgUnauthenticated)
		return
	}
	emp, err := a.auth.Employee(r.Context(), who.ID)
	if err != nil {
		if errors.Is(err, auth.ErrNotFound) {
			writeError(w, r, http.StatusUnauthorized, msgInvalidSession)
			return
		}
		a.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"empleado": emp})
}

func (a *API) portalListAttendance(w http.ResponseWriter, r *http.Request) {
	who, ok := employeeIdentity(r)
	if !ok {
		writeError(w, r, http.StatusUnauthorized, msgUnauthenticated)
		return
	}
	list, err := a.hr.ListAttendance(r.Context(), who, "")
	if err != nil {
		a.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"asistencias": list})
}

// portalRecordAttendance always records the current time for the caller.
func (a *API) portalRecordAttendance(w http.ResponseWriter, r *http.Request) {
	who, ok := employeeIdentity(r)
	if !ok {
		writeError(w, r, http.StatusUnauthorized, msgUnauthenticated)
		return
	}
	var req attendanceRequest
	if err := a.decode(r, &req); err != nil {
		a.handleError(w, r, err)
		return
	}
	rec, err := a.hr.RecordAttendance(r.Context(), who, "", req.Type, req.Note, time.Time{})
	if err != nil {
		a.handleError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "attendance.record", map[string]any{"attendance_id": rec.ID, "tipo": rec.Type})
	writeJSON(w, http.StatusCreated, map[string]any{"asistencia": rec})
}

func (a *API) portalListDocuments(w http.ResponseWriter, r *http.Request) {
	who, ok := employeeIdentity(r)
	if !ok {
		writeError(w, r, http.StatusUnauthorized, msgUnauthenticated)
		return
	}
	list, err := a.hr.ListDocuments(r.Context(), who, "")
	if err != nil {
		a.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"documentacion": list})
}

func (a *API) portalListRequests(w http.ResponseWriter, r *http.Request) {
	who, ok := employeeIdentity(r)
	if !ok {
		writeError(w, r, http.StatusUnauthorized, msgUnauthenticated)
		return
	}
	list, err := a.hr.ListRequests(r.Context(), who, "")
	if err != nil {
		a.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"solicitudes": list})
}

func (a *API) portalCreateRequest(w http.ResponseWriter, r *http.Request) {
	who, ok := employeeIdentity(r)
	if !ok {
		writeError(w, r, http.StatusUnauthorized, msgUnauthenticated)
		return
	}
	var req requestRequest
	if err := a.decode(r, &req); err != nil {
		a.handleError(w, r, err)
		return
	}
	rec, err := a.hr.CreateRequest(r.Context(), who, "", req.Type, req.Description)
	if err != nil {
		a.handleError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "request.create", map[string]any{"solicitud_id": rec.ID})
	writeJSON(w, http.StatusCreated, map[string]any{"solicitud": rec})
}

func (a *API) portalListTasks(w http.ResponseWriter, r *http.Request) {
	who, ok := employeeIdentity(r)
	if !ok {
		writeError(w, r, http.StatusUnauthorized, msgUnauthenticated)
		return
	}
	list, err := a.hr.ListTasks(r.Context(), who, "")
	if err != nil {
		a.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tareas": list})
}

func (a *API) portalUpdateTask(w http.ResponseWriter, r *http.Request) {
	who, ok := employeeIdentity(r)
	if !ok {
		writeError(w, r, http.StatusUnauthorized, msgUnauthenticated)
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
	writeJSON(w, http.StatusOK, map[string]any{"tarea": task})
}
