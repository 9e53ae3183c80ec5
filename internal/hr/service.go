package hr

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"asistencia.org/internal/auth"
	"asistencia.org/internal/ownership"
)

// Option tunes Service construction.
type Option func(*Service)

// WithClock overrides time.Now for attendance timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithBcryptCost sets the cost used for employee passwords.
func WithBcryptCost(cost int) Option {
	return func(s *Service) {
		if cost > 0 {
			s.cost = cost
		}
	}
}

// Service runs every read and write behind the ownership resolver. Resources
// the identity cannot reach are reported as auth.ErrNotFound.
type Service struct {
	store    Store
	resolver ownership.Resolver
	now      func() time.Time
	cost     int
}

func NewService(store Store, resolver ownership.Resolver, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("hr store is required")
	}
	if resolver == nil {
		return nil, errors.New("ownership resolver is required")
	}
	s := &Service{store: store, resolver: resolver, now: time.Now, cost: auth.DefaultBcryptCost}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *Service) resolve(ctx context.Context, who auth.Identity, kind ownership.Kind, id string) error {
	return s.resolver.Resolve(ctx, who, kind, id)
}

func requireOwner(who auth.Identity) error {
	if !who.IsOwner() {
		return auth.ErrUnauthorized
	}
	return nil
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{auth.ErrInvalidInput}, args...)...)
}

// --- companies ---

func (s *Service) ListCompanies(ctx context.Context, who auth.Identity) ([]Company, error) {
	if err := requireOwner(who); err != nil {
		return nil, err
	}
	return s.store.ListCompanies(ctx, who.ID)
}

func (s *Service) CreateCompany(ctx context.Context, who auth.Identity, in CompanyInput) (Company, error) {
	if err := requireOwner(who); err != nil {
		return Company{}, err
	}
	in, err := normalizeCompany(in)
	if err != nil {
		return Company{}, err
	}
	return s.store.CreateCompany(ctx, who.ID, in)
}

func (s *Service) GetCompany(ctx context.Context, who auth.Identity, id string) (Company, error) {
	if err := s.resolve(ctx, who, ownership.KindCompany, id); err != nil {
		return Company{}, err
	}
	return s.store.GetCompany(ctx, id)
}

func (s *Service) UpdateCompany(ctx context.Context, who auth.Identity, id string, in CompanyInput) (Company, error) {
	if err := requireOwner(who); err != nil {
		return Company{}, err
	}
	in, err := normalizeCompany(in)
	if err != nil {
		return Company{}, err
	}
	if err := s.resolve(ctx, who, ownership.KindCompany, id); err != nil {
		return Company{}, err
	}
	return s.store.UpdateCompany(ctx, id, in)
}

func (s *Service) DeleteCompany(ctx context.Context, who auth.Identity, id string) error {
	if err := requireOwner(who); err != nil {
		return err
	}
	if err := s.resolve(ctx, who, ownership.KindCompany, id); err != nil {
		return err
	}
	return s.store.DeleteCompany(ctx, id)
}

func normalizeCompany(in CompanyInput) (CompanyInput, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.TaxID = strings.TrimSpace(in.TaxID)
	in.Address = strings.TrimSpace(in.Address)
	if in.Name == "" {
		return in, invalid("el nombre de la empresa es obligatorio")
	}
	return in, nil
}

// --- employees ---

// ListEmployees lists one company's employees, or every employee of the owner
// when companyID is empty.
func (s *Service) ListEmployees(ctx context.Context, who auth.Identity, companyID string) ([]Employee, error) {
	if err := requireOwner(who); err != nil {
		return nil, err
	}
	companyID = strings.TrimSpace(companyID)
	if companyID == "" {
		return s.store.ListEmployeesByOwner(ctx, who.ID)
	}
	if err := s.resolve(ctx, who, ownership.KindCompany, companyID); err != nil {
		return nil, err
	}
	return s.store.ListEmployeesByCompany(ctx, companyID)
}

// CreateEmployee hires into an owned company. A non-empty password enables portal login.
func (s *Service) CreateEmployee(ctx context.Context, who auth.Identity, in NewEmployee, password string) (Employee, error) {
	if err := requireOwner(who); err != nil {
		return Employee{}, err
	}
	in.CompanyID = strings.TrimSpace(in.CompanyID)
	in.Code = strings.TrimSpace(in.Code)
	in.NationalID = strings.ToUpper(strings.TrimSpace(in.NationalID))
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Position = strings.TrimSpace(in.Position)
	if in.Name == "" {
		return Employee{}, invalid("el nombre del empleado es obligatorio")
	}
	if in.CompanyID == "" {
		return Employee{}, invalid("empresaId es obligatorio")
	}
	if err := checkNationalID(in.NationalID); err != nil {
		return Employee{}, err
	}
	if in.Code != "" {
		if err := checkCode(in.Code); err != nil {
			return Employee{}, err
		}
	}
	if err := s.resolve(ctx, who, ownership.KindCompany, in.CompanyID); err != nil {
		return Employee{}, err
	}
	if password != "" {
		hash, err := s.hashEmployeePassword(password)
		if err != nil {
			return Employee{}, err
		}
		in.PasswordHash = hash
	}
	return s.store.CreateEmployee(ctx, in)
}

// GetEmployee is open to the owner chain and to the employee itself.
func (s *Service) GetEmployee(ctx context.Context, who auth.Identity, id string) (Employee, error) {
	if err := s.resolve(ctx, who, ownership.KindEmployee, id); err != nil {
		return Employee{}, err
	}
	return s.store.GetEmployee(ctx, id)
}

// UpdateEmployee applies upd. Moving to another company requires owning it too.
func (s *Service) UpdateEmployee(ctx context.Context, who auth.Identity, id string, upd EmployeeUpdate) (Employee, error) {
	if err := requireOwner(who); err != nil {
		return Employee{}, err
	}
	if err := s.resolve(ctx, who, ownership.KindEmployee, id); err != nil {
		return Employee{}, err
	}
	if upd.CompanyID != nil {
		target := strings.TrimSpace(*upd.CompanyID)
		if err := s.resolve(ctx, who, ownership.KindCompany, target); err != nil {
			return Employee{}, err
		}
		upd.CompanyID = &target
	}
	if upd.Name != nil {
		name := strings.TrimSpace(*upd.Name)
		if name == "" {
			return Employee{}, invalid("el nombre del empleado es obligatorio")
		}
		upd.Name = &name
	}
	if upd.Code != nil {
		code := strings.TrimSpace(*upd.Code)
		if err := checkCode(code); err != nil {
			return Employee{}, err
		}
		upd.Code = &code
	}
	if upd.NationalID != nil {
		nid := strings.ToUpper(strings.TrimSpace(*upd.NationalID))
		if err := checkNationalID(nid); err != nil {
			return Employee{}, err
		}
		upd.NationalID = &nid
	}
	if upd.Password != nil {
		hash, err := s.hashEmployeePassword(*upd.Password)
		if err != nil {
			return Employee{}, err
		}
		upd.PasswordHash = &hash
		upd.Password = nil
	}
	return s.store.UpdateEmployee(ctx, id, upd)
}

func (s *Service) DeleteEmployee(ctx context.Context, who auth.Identity, id string) error {
	if err := requireOwner(who); err != nil {
		return err
	}
	if err := s.resolve(ctx, who, ownership.KindEmployee, id); err != nil {
		return err
	}
	return s.store.DeleteEmployee(ctx, id)
}

const maxCodeLen = 32

// checkCode accepts letters, digits and dashes. All-digit codes are limited to
// MaxNumericCodeDigits.
func checkCode(code string) error {
	if code == "" {
		return invalid("el código no puede estar vacío")
	}
	if len(code) > maxCodeLen {
		return invalid("el código es demasiado largo")
	}
	numeric := true
	for _, r := range code {
		switch {
		case r >= '0' && r <= '9':
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r == '-':
			numeric = false
		default:
			return invalid("el código solo admite letras, dígitos y guiones")
		}
	}
	if numeric && len(code) > MaxNumericCodeDigits {
		return invalid("un código numérico admite como máximo %d dígitos", MaxNumericCodeDigits)
	}
	return nil
}

// checkNationalID applies the numeric bound of checkCode since national ids
// and codes share the login namespace.
func checkNationalID(nid string) error {
	if nid == "" {
		return nil
	}
	for _, r := range nid {
		if r < '0' || r > '9' {
			return nil
		}
	}
	if len(nid) > MaxNumericCodeDigits {
		return invalid("un DNI numérico admite como máximo %d dígitos", MaxNumericCodeDigits)
	}
	return nil
}

func (s *Service) hashEmployeePassword(password string) (string, error) {
	if len(password) < 4 {
		return "", invalid("la contraseña del empleado debe tener al menos 4 caracteres")
	}
	return auth.HashPasswordCost(password, s.cost)
}

// scopeEmployee resolves which employee a listing or creation applies to. An
// employee identity may only name itself; an owner must name an owned employee.
func (s *Service) scopeEmployee(ctx context.Context, who auth.Identity, employeeID string) (string, error) {
	employeeID = strings.TrimSpace(employeeID)
	if who.IsEmployee() {
		if employeeID == "" || employeeID == who.ID {
			return who.ID, nil
		}
		return "", auth.ErrNotFound
	}
	if employeeID == "" {
		return "", invalid("empleadoId es obligatorio")
	}
	if err := s.resolve(ctx, who, ownership.KindEmployee, employeeID); err != nil {
		return "", err
	}
	return employeeID, nil
}

// --- projects ---

func (s *Service) ListProjects(ctx context.Context, who auth.Identity, companyID string) ([]Project, error) {
	if err := requireOwner(who); err != nil {
		return nil, err
	}
	if strings.TrimSpace(companyID) == "" {
		return nil, invalid("empresaId es obligatorio")
	}
	if err := s.resolve(ctx, who, ownership.KindCompany, companyID); err != nil {
		return nil, err
	}
	return s.store.ListProjects(ctx, companyID)
}

func (s *Service) CreateProject(ctx context.Context, who auth.Identity, companyID string, in ProjectInput) (Project, error) {
	if err := requireOwner(who); err != nil {
		return Project{}, err
	}
	in.Name = strings.TrimSpace(in.Name)
	in.Description = strings.TrimSpace(in.Description)
	if in.Name == "" {
		return Project{}, invalid("el nombre del proyecto es obligatorio")
	}
	if err := s.resolve(ctx, who, ownership.KindCompany, companyID); err != nil {
		return Project{}, err
	}
	return s.store.CreateProject(ctx, companyID, in)
}

func (s *Service) GetProject(ctx context.Context, who auth.Identity, id string) (Project, error) {
	if err := s.resolve(ctx, who, ownership.KindProject, id); err != nil {
		return Project{}, err
	}
	return s.store.GetProject(ctx, id)
}

func (s *Service) UpdateProject(ctx context.Context, who auth.Identity, id string, in ProjectInput) (Project, error) {
	if err := requireOwner(who); err != nil {
		return Project{}, err
	}
	in.Name = strings.TrimSpace(in.Name)
	in.Description = strings.TrimSpace(in.Description)
	if in.Name == "" {
		return Project{}, invalid("el nombre del proyecto es obligatorio")
	}
	if err := s.resolve(ctx, who, ownership.KindProject, id); err != nil {
		return Project{}, err
	}
	return s.store.UpdateProject(ctx, id, in)
}

func (s *Service) DeleteProject(ctx context.Context, who auth.Identity, id string) error {
	if err := requireOwner(who); err != nil {
		return err
	}
	if err := s.resolve(ctx, who, ownership.KindProject, id); err != nil {
		return err
	}
	return s.store.DeleteProject(ctx, id)
}

// --- attendance ---

func (s *Service) ListAttendance(ctx context.Context, who auth.Identity, employeeID string) ([]Attendance, error) {
	employeeID, err := s.scopeEmployee(ctx, who, employeeID)
	if err != nil {
		return nil, err
	}
	return s.store.ListAttendance(ctx, employeeID)
}

// RecordAttendance stores a check-in or check-out. Owners may backdate with at;
// employees always record the current time.
func (s *Service) RecordAttendance(ctx context.Context, who auth.Identity, employeeID, kind, note string, at time.Time) (Attendance, error) {
	kind = strings.ToLower(strings.TrimSpace(kind))
	if kind != AttendanceIn && kind != AttendanceOut {
		return Attendance{}, invalid("tipo debe ser %q o %q", AttendanceIn, AttendanceOut)
	}
	employeeID, err := s.scopeEmployee(ctx, who, employeeID)
	if err != nil {
		return Attendance{}, err
	}
	if who.IsEmployee() || at.IsZero() {
		at = s.now()
	}
	return s.store.CreateAttendance(ctx, Attendance{
		EmployeeID: employeeID,
		Type:       kind,
		RecordedAt: at.UTC(),
		Note:       strings.TrimSpace(note),
	})
}

func (s *Service) GetAttendance(ctx context.Context, who auth.Identity, id string) (Attendance, error) {
	if err := s.resolve(ctx, who, ownership.KindAttendance, id); err != nil {
		return Attendance{}, err
	}
	return s.store.GetAttendance(ctx, id)
}

func (s *Service) DeleteAttendance(ctx context.Context, who auth.Identity, id string) error {
	if err := requireOwner(who); err != nil {
		return err
	}
	if err := s.resolve(ctx, who, ownership.KindAttendance, id); err != nil {
		return err
	}
	return s.store.DeleteAttendance(ctx, id)
}

// --- requests ---

func (s *Service) ListRequests(ctx context.Context, who auth.Identity, employeeID string) ([]Request, error) {
	employeeID, err := s.scopeEmployee(ctx, who, employeeID)
	if err != nil {
		return nil, err
	}
	return s.store.ListRequests(ctx, employeeID)
}

func (s *Service) CreateRequest(ctx context.Context, who auth.Identity, employeeID, kind, description string) (Request, error) {
	kind = strings.TrimSpace(kind)
	if kind == "" {
		return Request{}, invalid("tipo es obligatorio")
	}
	employeeID, err := s.scopeEmployee(ctx, who, employeeID)
	if err != nil {
		return Request{}, err
	}
	return s.store.CreateRequest(ctx, Request{
		EmployeeID:  employeeID,
		Type:        kind,
		Description: strings.TrimSpace(description),
		Status:      RequestPending,
	})
}

func (s *Service) GetRequest(ctx context.Context, who auth.Identity, id string) (Request, error) {
	if err := s.resolve(ctx, who, ownership.KindRequest, id); err != nil {
		return Request{}, err
	}
	return s.store.GetRequest(ctx, id)
}

func (s *Service) SetRequestStatus(ctx context.Context, who auth.Identity, id, status string) (Request, error) {
	if err := requireOwner(who); err != nil {
		return Request{}, err
	}
	status = strings.ToLower(strings.TrimSpace(status))
	switch status {
	case RequestPending, RequestApproved, RequestRejected:
	default:
		return Request{}, invalid("estado no válido: %q", status)
	}
	if err := s.resolve(ctx, who, ownership.KindRequest, id); err != nil {
		return Request{}, err
	}
	return s.store.SetRequestStatus(ctx, id, status)
}

func (s *Service) DeleteRequest(ctx context.Context, who auth.Identity, id string) error {
	if err := requireOwner(who); err != nil {
		return err
	}
	if err := s.resolve(ctx, who, ownership.KindRequest, id); err != nil {
		return err
	}
	return s.store.DeleteRequest(ctx, id)
}

// --- documentation ---

func (s *Service) ListDocuments(ctx context.Context, who auth.Identity, employeeID string) ([]Document, error) {
	employeeID, err := s.scopeEmployee(ctx, who, employeeID)
	if err != nil {
		return nil, err
	}
	return s.store.ListDocuments(ctx, employeeID)
}

func (s *Service) CreateDocument(ctx context.Context, who auth.Identity, employeeID, title, url string) (Document, error) {
	if err := requireOwner(who); err != nil {
		return Document{}, err
	}
	title = strings.TrimSpace(title)
	url = strings.TrimSpace(url)
	if title == "" || url == "" {
		return Document{}, invalid("titulo y url son obligatorios")
	}
	employeeID, err := s.scopeEmployee(ctx, who, employeeID)
	if err != nil {
		return Document{}, err
	}
	return s.store.CreateDocument(ctx, Document{EmployeeID: employeeID, Title: title, URL: url})
}

func (s *Service) GetDocument(ctx context.Context, who auth.Identity, id string) (Document, error) {
	if err := s.resolve(ctx, who, ownership.KindDocumentation, id); err != nil {
		return Document{}, err
	}
	return s.store.GetDocument(ctx, id)
}

func (s *Service) DeleteDocument(ctx context.Context, who auth.Identity, id string) error {
	if err := requireOwner(who); err != nil {
		return err
	}
	if err := s.resolve(ctx, who, ownership.KindDocumentation, id); err != nil {
		return err
	}
	return s.store.DeleteDocument(ctx, id)
}

// --- tasks ---

func (s *Service) ListTasks(ctx context.Context, who auth.Identity, employeeID string) ([]Task, error) {
	employeeID, err := s.scopeEmployee(ctx, who, employeeID)
	if err != nil {
		return nil, err
	}
	return s.store.ListTasks(ctx, employeeID)
}

func (s *Service) CreateTask(ctx context.Context, who auth.Identity, employeeID, title, description string) (Task, error) {
	if err := requireOwner(who); err != nil {
		return Task{}, err
	}
	title = strings.TrimSpace(title)
	if title == "" {
		return Task{}, invalid("titulo es obligatorio")
	}
	employeeID, err := s.scopeEmployee(ctx, who, employeeID)
	if err != nil {
		return Task{}, err
	}
	return s.store.CreateTask(ctx, Task{EmployeeID: employeeID, Title: title, Description: strings.TrimSpace(description)})
}

func (s *Service) GetTask(ctx context.Context, who auth.Identity, id string) (Task, error) {
	if err := s.resolve(ctx, who, ownership.KindTask, id); err != nil {
		return Task{}, err
	}
	return s.store.GetTask(ctx, id)
}

// UpdateTask lets owners edit everything; employees may only toggle completion.
func (s *Service) UpdateTask(ctx context.Context, who auth.Identity, id string, upd TaskUpdate) (Task, error) {
	if who.IsEmployee() && (upd.Title != nil || upd.Description != nil) {
		return Task{}, invalid("solo se puede marcar la tarea como completada")
	}
	if upd.Title != nil {
		title := strings.TrimSpace(*upd.Title)
		if title == "" {
			return Task{}, invalid("titulo es obligatorio")
		}
		upd.Title = &title
	}
	if err := s.resolve(ctx, who, ownership.KindTask, id); err != nil {
		return Task{}, err
	}
	return s.store.UpdateTask(ctx, id, upd)
}

func (s *Service) DeleteTask(ctx context.Context, who auth.Identity, id string) error {
	if err := requireOwner(who); err != nil {
		return err
	}
	if err := s.resolve(ctx, who, ownership.KindTask, id); err != nil {
		return err
	}
	return s.store.DeleteTask(ctx, id)
}
