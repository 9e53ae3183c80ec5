package hr

import "context"

// Store persists HR resources. Methods are not ownership-aware: Service resolves
// ownership before calling them. Missing rows are auth.ErrNotFound and unique
// violations *auth.ConflictError.
type Store interface {
	CreateCompany(ctx context.Context, ownerID string, in CompanyInput) (Company, error)
	GetCompany(ctx context.Context, id string) (Company, error)
	ListCompanies(ctx context.Context, ownerID string) ([]Company, error)
	UpdateCompany(ctx context.Context, id string, in CompanyInput) (Company, error)
	DeleteCompany(ctx context.Context, id string) error

	CreateEmployee(ctx context.Context, in NewEmployee) (Employee, error)
	GetEmployee(ctx context.Context, id string) (Employee, error)
	ListEmployeesByCompany(ctx context.Context, companyID string) ([]Employee, error)
	ListEmployeesByOwner(ctx context.Context, ownerID string) ([]Employee, error)
	UpdateEmployee(ctx context.Context, id string, upd EmployeeUpdate) (Employee, error)
	DeleteEmployee(ctx context.Context, id string) error

	CreateProject(ctx context.Context, companyID string, in ProjectInput) (Project, error)
	GetProject(ctx context.Context, id string) (Project, error)
	ListProjects(ctx context.Context, companyID string) ([]Project, error)
	UpdateProject(ctx context.Context, id string, in ProjectInput) (Project, error)
	DeleteProject(ctx context.Context, id string) error

	CreateAttendance(ctx context.Context, a Attendance) (Attendance, error)
	GetAttendance(ctx context.Context, id string) (Attendance, error)
	ListAttendance(ctx context.Context, employeeID string) ([]Attendance, error)
	DeleteAttendance(ctx context.Context, id string) error

	CreateRequest(ctx context.Context, r Request) (Request, error)
	GetRequest(ctx context.Context, id string) (Request, error)
	ListRequests(ctx context.Context, employeeID string) ([]Request, error)
	SetRequestStatus(ctx context.Context, id, status string) (Request, error)
	DeleteRequest(ctx context.Context, id string) error

	CreateDocument(ctx context.Context, d Document) (Document, error)
	GetDocument(ctx context.Context, id string) (Document, error)
	ListDocuments(ctx context.Context, employeeID string) ([]Document, error)
	DeleteDocument(ctx context.Context, id string) error

	CreateTask(ctx context.Context, t Task) (Task, error)
	GetTask(ctx context.Context, id string) (Task, error)
	ListTasks(ctx context.Context, employeeID string) ([]Task, error)
	UpdateTask(ctx context.Context, id string, upd TaskUpdate) (Task, error)
	DeleteTask(ctx context.Context, id string) error
}
