package pg

import (
	"context"
	"database/sql"

	"asistencia.org/internal/hr"
)

// --- companies ---

const companyColumns = `id, usuario_id, nombre, cif, direccion, created_at, updated_at`

func scanCompany(row scanner) (hr.Company, error) {
	var c hr.Company
	if err := row.Scan(&c.ID, &c.OwnerID, &c.Name, &c.TaxID, &c.Address, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return hr.Company{}, translate(err)
	}
	return c, nil
}

func (s *Store) CreateCompany(ctx context.Context, ownerID string, in hr.CompanyInput) (hr.Company, error) {
	return scanCompany(s.db.QueryRowContext(ctx, `
		insert into empresas(id, usuario_id, nombre, cif, direccion, created_at, updated_at)
		values ($1, $2, $3, $4, $5, $6, $6)
		returning `+companyColumns,
		newID(), ownerID, in.Name, in.TaxID, in.Address, s.stamp()))
}

func (s *Store) GetCompany(ctx context.Context, id string) (hr.Company, error) {
	return scanCompany(s.db.QueryRowContext(ctx, `select `+companyColumns+` from empresas where id = $1`, id))
}

func (s *Store) ListCompanies(ctx context.Context, ownerID string) ([]hr.Company, error) {
	rows, err := s.db.QueryContext(ctx, `
		select `+companyColumns+` from empresas
		where usuario_id = $1
		order by created_at asc, id asc
	`, ownerID)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanCompany)
}

func (s *Store) UpdateCompany(ctx context.Context, id string, in hr.CompanyInput) (hr.Company, error) {
	return scanCompany(s.db.QueryRowContext(ctx, `
		update empresas set nombre = $2, cif = $3, direccion = $4, updated_at = $5
		where id = $1
		returning `+companyColumns,
		id, in.Name, in.TaxID, in.Address, s.stamp()))
}

func (s *Store) DeleteCompany(ctx context.Context, id string) error {
	return affected(s.db.ExecContext(ctx, `delete from empresas where id = $1`, id))
}

// --- employees ---

const employeeColumns = `id, empresa_id, codigo, coalesce(dni, ''), nombre, email, puesto, activo, password_hash <> '', created_at, updated_at`

func scanEmployee(row scanner) (hr.Employee, error) {
	var e hr.Employee
	if err := row.Scan(&e.ID, &e.CompanyID, &e.Code, &e.NationalID, &e.Name, &e.Email, &e.Position, &e.Active, &e.HasPassword, &e.CreatedAt, &e.UpdatedAt); err != nil {
		return hr.Employee{}, translate(err)
	}
	return e, nil
}

// CreateEmployee takes the next sequential code when in.Code is empty.
func (s *Store) CreateEmployee(ctx context.Context, in hr.NewEmployee) (hr.Employee, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return hr.Employee{}, err
	}
	defer func() { _ = tx.Rollback() }()

	if err := lockEmployeeCodes(ctx, tx); err != nil {
		return hr.Employee{}, err
	}
	if err := checkLoginClash(ctx, tx, "", in.Code, in.NationalID); err != nil {
		return hr.Employee{}, err
	}
	emp, err := scanEmployee(tx.QueryRowContext(ctx, `
		insert into empleados(id, empresa_id, codigo, dni, nombre, email, puesto, password_hash, created_at, updated_at)
		values ($1, $2, coalesce(nullif($3, ''), `+nextCodeExpr+`), nullif($4, ''), $5, $6, $7, $8, $9, $9)
		returning `+employeeColumns,
		newID(), in.CompanyID, in.Code, in.NationalID, in.Name, in.Email, in.Position, in.PasswordHash, s.stamp()))
	if err != nil {
		return hr.Employee{}, err
	}
	if err := tx.Commit(); err != nil {
		return hr.Employee{}, err
	}
	return emp, nil
}

func (s *Store) GetEmployee(ctx context.Context, id string) (hr.Employee, error) {
	return scanEmployee(s.db.QueryRowContext(ctx, `select `+employeeColumns+` from empleados where id = $1`, id))
}

func (s *Store) ListEmployeesByCompany(ctx context.Context, companyID string) ([]hr.Employee, error) {
	rows, err := s.db.QueryContext(ctx, `
		select `+employeeColumns+` from empleados
		where empresa_id = $1
		order by created_at asc, id asc
	`, companyID)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanEmployee)
}

func (s *Store) ListEmployeesByOwner(ctx context.Context, ownerID string) ([]hr.Employee, error) {
	rows, err := s.db.QueryContext(ctx, `
		select `+employeeColumns+` from empleados
		where empresa_id in (select id from empresas where usuario_id = $1)
		order by created_at asc, id asc
	`, ownerID)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanEmployee)
}

// UpdateEmployee serializes with hires when the code or national id changes.
func (s *Store) UpdateEmployee(ctx context.Context, id string, upd hr.EmployeeUpdate) (hr.Employee, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return hr.Employee{}, err
	}
	defer func() { _ = tx.Rollback() }()

	if upd.Code != nil || upd.NationalID != nil {
		if err := lockEmployeeCodes(ctx, tx); err != nil {
			return hr.Employee{}, err
		}
		var code, nid string
		if upd.Code != nil {
			code = *upd.Code
		}
		if upd.NationalID != nil {
			nid = *upd.NationalID
		}
		if err := checkLoginClash(ctx, tx, id, code, nid); err != nil {
			return hr.Employee{}, err
		}
	}
	emp, err := scanEmployee(tx.QueryRowContext(ctx, `
		update empleados set
			empresa_id = coalesce($2, empresa_id),
			codigo = coalesce($3, codigo),
			dni = case when $4::text is null then dni else nullif($4::text, '') end,
			nombre = coalesce($5, nombre),
			email = coalesce($6, email),
			puesto = coalesce($7, puesto),
			activo = coalesce($8::boolean, activo),
			password_hash = coalesce($9, password_hash),
			updated_at = $10
		where id = $1
		returning `+employeeColumns,
		id, upd.CompanyID, upd.Code, upd.NationalID, upd.Name, upd.Email, upd.Position, upd.Active, upd.PasswordHash, s.stamp()))
	if err != nil {
		return hr.Employee{}, err
	}
	if err := tx.Commit(); err != nil {
		return hr.Employee{}, err
	}
	return emp, nil
}

func (s *Store) DeleteEmployee(ctx context.Context, id string) error {
	return affected(s.db.ExecContext(ctx, `delete from empleados where id = $1`, id))
}

// --- projects ---

const projectColumns = `id, empresa_id, nombre, descripcion, created_at, updated_at`

func scanProject(row scanner) (hr.Project, error) {
	var p hr.Project
	if err := row.Scan(&p.ID, &p.CompanyID, &p.Name, &p.Description, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return hr.Project{}, translate(err)
	}
	return p, nil
}

func (s *Store) CreateProject(ctx context.Context, companyID string, in hr.ProjectInput) (hr.Project, error) {
	return scanProject(s.db.QueryRowContext(ctx, `
		insert into proyectos(id, empresa_id, nombre, descripcion, created_at, updated_at)
		values ($1, $2, $3, $4, $5, $5)
		returning `+projectColumns,
		newID(), companyID, in.Name, in.Description, s.stamp()))
}

func (s *Store) GetProject(ctx context.Context, id string) (hr.Project, error) {
	return scanProject(s.db.QueryRowContext(ctx, `select `+projectColumns+` from proyectos where id = $1`, id))
}

func (s *Store) ListProjects(ctx context.Context, companyID string) ([]hr.Project, error) {
	rows, err := s.db.QueryContext(ctx, `
		select `+projectColumns+` from proyectos
		where empresa_id = $1
		order by created_at asc, id asc
	`, companyID)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanProject)
}

func (s *Store) UpdateProject(ctx context.Context, id string, in hr.ProjectInput) (hr.Project, error) {
	return scanProject(s.db.QueryRowContext(ctx, `
		update proyectos set nombre = $2, descripcion = $3, updated_at = $4
		where id = $1
		returning `+projectColumns,
		id, in.Name, in.Description, s.stamp()))
}

func (s *Store) DeleteProject(ctx context.Context, id string) error {
	return affected(s.db.ExecContext(ctx, `delete from proyectos where id = $1`, id))
}

// --- attendance ---

const attendanceColumns = `id, empleado_id, tipo, fecha, nota`

func scanAttendance(row scanner) (hr.Attendance, error) {
	var a hr.Attendance
	if err := row.Scan(&a.ID, &a.EmployeeID, &a.Type, &a.RecordedAt, &a.Note); err != nil {
		return hr.Attendance{}, translate(err)
	}
	return a, nil
}

func (s *Store) CreateAttendance(ctx context.Context, a hr.Attendance) (hr.Attendance, error) {
	return scanAttendance(s.db.QueryRowContext(ctx, `
		insert into asistencias(id, empleado_id, tipo, fecha, nota)
		values ($1, $2, $3, $4, $5)
		returning `+attendanceColumns,
		newID(), a.EmployeeID, a.Type, a.RecordedAt, a.Note))
}

func (s *Store) GetAttendance(ctx context.Context, id string) (hr.Attendance, error) {
	return scanAttendance(s.db.QueryRowContext(ctx, `select `+attendanceColumns+` from asistencias where id = $1`, id))
}

func (s *Store) ListAttendance(ctx context.Context, employeeID string) ([]hr.Attendance, error) {
	rows, err := s.db.QueryContext(ctx, `
		select `+attendanceColumns+` from asistencias
		where empleado_id = $1
		order by fecha asc, id asc
	`, employeeID)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanAttendance)
}

func (s *Store) DeleteAttendance(ctx context.Context, id string) error {
	return affected(s.db.ExecContext(ctx, `delete from asistencias where id = $1`, id))
}

// --- requests ---

const requestColumns = `id, empleado_id, tipo, descripcion, estado, created_at, updated_at`

func scanRequest(row scanner) (hr.Request, error) {
	var r hr.Request
	if err := row.Scan(&r.ID, &r.EmployeeID, &r.Type, &r.Description, &r.Status, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return hr.Request{}, translate(err)
	}
	return r, nil
}

func (s *Store) CreateRequest(ctx context.Context, r hr.Request) (hr.Request, error) {
	return scanRequest(s.db.QueryRowContext(ctx, `
		insert into solicitudes(id, empleado_id, tipo, descripcion, estado, created_at, updated_at)
		values ($1, $2, $3, $4, $5, $6, $6)
		returning `+requestColumns,
		newID(), r.EmployeeID, r.Type, r.Description, r.Status, s.stamp()))
}

func (s *Store) GetRequest(ctx context.Context, id string) (hr.Request, error) {
	return scanRequest(s.db.QueryRowContext(ctx, `select `+requestColumns+` from solicitudes where id = $1`, id))
}

func (s *Store) ListRequests(ctx context.Context, employeeID string) ([]hr.Request, error) {
	rows, err := s.db.QueryContext(ctx, `
		select `+requestColumns+` from solicitudes
		where empleado_id = $1
		order by created_at asc, id asc
	`, employeeID)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanRequest)
}

func (s *Store) SetRequestStatus(ctx context.Context, id, status string) (hr.Request, error) {
	return scanRequest(s.db.QueryRowContext(ctx, `
		update solicitudes set estado = $2, updated_at = $3
		where id = $1
		returning `+requestColumns, id, status, s.stamp()))
}

func (s *Store) DeleteRequest(ctx context.Context, id string) error {
	return affected(s.db.ExecContext(ctx, `delete from solicitudes where id = $1`, id))
}

// --- documentation ---

const documentColumns = `id, empleado_id, titulo, url, created_at`

func scanDocument(row scanner) (hr.Document, error) {
	var d hr.Document
	if err := row.Scan(&d.ID, &d.EmployeeID, &d.Title, &d.URL, &d.CreatedAt); err != nil {
		return hr.Document{}, translate(err)
	}
	return d, nil
}

func (s *Store) CreateDocument(ctx context.Context, d hr.Document) (hr.Document, error) {
	return scanDocument(s.db.QueryRowContext(ctx, `
		insert into documentacion(id, empleado_id, titulo, url, created_at)
		values ($1, $2, $3, $4, $5)
		returning `+documentColumns,
		newID(), d.EmployeeID, d.Title, d.URL, s.stamp()))
}

func (s *Store) GetDocument(ctx context.Context, id string) (hr.Document, error) {
	return scanDocument(s.db.QueryRowContext(ctx, `select `+documentColumns+` from documentacion where id = $1`, id))
}

func (s *Store) ListDocuments(ctx context.Context, employeeID string) ([]hr.Document, error) {
	rows, err := s.db.QueryContext(ctx, `
		select `+documentColumns+` from documentacion
		where empleado_id = $1
		order by created_at asc, id asc
	`, employeeID)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanDocument)
}

func (s *Store) DeleteDocument(ctx context.Context, id string) error {
	return affected(s.db.ExecContext(ctx, `delete from documentacion where id = $1`, id))
}

// --- tasks ---

const taskColumns = `id, empleado_id, titulo, descripcion, completada, created_at, updated_at`

func scanTask(row scanner) (hr.Task, error) {
	var t hr.Task
	if err := row.Scan(&t.ID, &t.EmployeeID, &t.Title, &t.Description, &t.Done, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return hr.Task{}, translate(err)
	}
	return t, nil
}

func (s *Store) CreateTask(ctx context.Context, t hr.Task) (hr.Task, error) {
	return scanTask(s.db.QueryRowContext(ctx, `
		insert into tareas(id, empleado_id, titulo, descripcion, completada, created_at, updated_at)
		values ($1, $2, $3, $4, $5, $6, $6)
		returning `+taskColumns,
		newID(), t.EmployeeID, t.Title, t.Description, t.Done, s.stamp()))
}

func (s *Store) GetTask(ctx context.Context, id string) (hr.Task, error) {
	return scanTask(s.db.QueryRowContext(ctx, `select `+taskColumns+` from tareas where id = $1`, id))
}

func (s *Store) ListTasks(ctx context.Context, employeeID string) ([]hr.Task, error) {
	rows, err := s.db.QueryContext(ctx, `
		select `+taskColumns+` from tareas
		where empleado_id = $1
		order by created_at asc, id asc
	`, employeeID)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanTask)
}

func (s *Store) UpdateTask(ctx context.Context, id string, upd hr.TaskUpdate) (hr.Task, error) {
	return scanTask(s.db.QueryRowContext(ctx, `
		update tareas set
			titulo = coalesce($2, titulo),
			descripcion = coalesce($3, descripcion),
			completada = coalesce($4::boolean, completada),
			updated_at = $5
		where id = $1
		returning `+taskColumns,
		id, upd.Title, upd.Description, upd.Done, s.stamp()))
}

func (s *Store) DeleteTask(ctx context.Context, id string) error {
	return affected(s.db.ExecContext(ctx, `delete from tareas where id = $1`, id))
}

// collect drains rows through scan. An empty result is an empty slice.
func collect[T any](rows *sql.Rows, scan func(scanner) (T, error)) ([]T, error) {
	defer rows.Close()
	out := []T{}
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}
