package memory

import (
	"context"
	"time"

	"asistencia.org/internal/auth"
	"asistencia.org/internal/hr"
)

// --- companies ---

func (s *Store) CreateCompany(_ context.Context, ownerID string, in hr.CompanyInput) (hr.Company, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.owners[ownerID]; !ok {
		return hr.Company{}, auth.ErrNotFound
	}
	now := s.stamp()
	c := &hr.Company{ID: newID(), OwnerID: ownerID, Name: in.Name, TaxID: in.TaxID, Address: in.Address, CreatedAt: now, UpdatedAt: now}
	s.companies[c.ID] = c
	return *c, nil
}

func (s *Store) GetCompany(_ context.Context, id string) (hr.Company, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.companies[id]
	if !ok {
		return hr.Company{}, auth.ErrNotFound
	}
	return *c, nil
}

func (s *Store) ListCompanies(_ context.Context, ownerID string) ([]hr.Company, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []hr.Company{}
	for _, c := range s.companies {
		if c.OwnerID == ownerID {
			out = append(out, *c)
		}
	}
	sortByCreated(out, func(c hr.Company) time.Time { return c.CreatedAt }, func(c hr.Company) string { return c.ID })
	return out, nil
}

func (s *Store) UpdateCompany(_ context.Context, id string, in hr.CompanyInput) (hr.Company, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.companies[id]
	if !ok {
		return hr.Company{}, auth.ErrNotFound
	}
	c.Name, c.TaxID, c.Address = in.Name, in.TaxID, in.Address
	c.UpdatedAt = s.stamp()
	return *c, nil
}

func (s *Store) DeleteCompany(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.companies[id]; !ok {
		return auth.ErrNotFound
	}
	s.deleteCompanyLocked(id)
	return nil
}

func (s *Store) deleteCompanyLocked(id string) {
	for eid, e := range s.employees {
		if e.CompanyID == id {
			s.deleteEmployeeLocked(eid)
		}
	}
	for pid, p := range s.projects {
		if p.CompanyID == id {
			delete(s.projects, pid)
		}
	}
	delete(s.companies, id)
}

// --- employees ---

func (s *Store) employeeView(e *employeeRow) hr.Employee {
	out := e.Employee
	out.HasPassword = e.PasswordHash != ""
	return out
}

func (s *Store) CreateEmployee(_ context.Context, in hr.NewEmployee) (hr.Employee, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.companies[in.CompanyID]; !ok {
		return hr.Employee{}, auth.ErrNotFound
	}
	code := in.Code
	if code == "" {
		code = s.nextCodeLocked()
	}
	if err := s.uniqueEmployeeLocked("", code, in.NationalID); err != nil {
		return hr.Employee{}, err
	}
	now := s.stamp()
	e := &employeeRow{
		Employee: hr.Employee{
			ID:         newID(),
			CompanyID:  in.CompanyID,
			Code:       code,
			NationalID: in.NationalID,
			Name:       in.Name,
			Email:      in.Email,
			Position:   in.Position,
			Active:     true,
			CreatedAt:  now,
			UpdatedAt:  now,
		},
		PasswordHash: in.PasswordHash,
	}
	s.employees[e.ID] = e
	return s.employeeView(e), nil
}

func (s *Store) GetEmployee(_ context.Context, id string) (hr.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.employees[id]
	if !ok {
		return hr.Employee{}, auth.ErrNotFound
	}
	return s.employeeView(e), nil
}

func (s *Store) ListEmployeesByCompany(_ context.Context, companyID string) ([]hr.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []hr.Employee{}
	for _, e := range s.employees {
		if e.CompanyID == companyID {
			out = append(out, s.employeeView(e))
		}
	}
	sortEmployees(out)
	return out, nil
}

func (s *Store) ListEmployeesByOwner(_ context.Context, ownerID string) ([]hr.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []hr.Employee{}
	for _, e := range s.employees {
		if s.ownerOfEmployeeLocked(e) == ownerID {
			out = append(out, s.employeeView(e))
		}
	}
	sortEmployees(out)
	return out, nil
}

func sortEmployees(out []hr.Employee) {
	sortByCreated(out, func(e hr.Employee) time.Time { return e.CreatedAt }, func(e hr.Employee) string { return e.ID })
}

func (s *Store) UpdateEmployee(_ context.Context, id string, upd hr.EmployeeUpdate) (hr.Employee, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.employees[id]
	if !ok {
		return hr.Employee{}, auth.ErrNotFound
	}
	code, nid := "", ""
	if upd.Code != nil {
		code = *upd.Code
	}
	if upd.NationalID != nil {
		nid = *upd.NationalID
	}
	if err := s.uniqueEmployeeLocked(id, code, nid); err != nil {
		return hr.Employee{}, err
	}
	if upd.CompanyID != nil {
		if _, ok := s.companies[*upd.CompanyID]; !ok {
			return hr.Employee{}, auth.ErrNotFound
		}
		e.CompanyID = *upd.CompanyID
	}
	if upd.Code != nil {
		e.Code = *upd.Code
	}
	if upd.NationalID != nil {
		e.NationalID = *upd.NationalID
	}
	if upd.Name != nil {
		e.Name = *upd.Name
	}
	if upd.Email != nil {
		e.Email = *upd.Email
	}
	if upd.Position != nil {
		e.Position = *upd.Position
	}
	if upd.Active != nil {
		e.Active = *upd.Active
	}
	if upd.PasswordHash != nil {
		e.PasswordHash = *upd.PasswordHash
	}
	e.UpdatedAt = s.stamp()
	return s.employeeView(e), nil
}

func (s *Store) DeleteEmployee(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.employees[id]; !ok {
		return auth.ErrNotFound
	}
	s.deleteEmployeeLocked(id)
	return nil
}

func (s *Store) deleteEmployeeLocked(id string) {
	for k, a := range s.attendance {
		if a.EmployeeID == id {
			delete(s.attendance, k)
		}
	}
	for k, r := range s.requests {
		if r.EmployeeID == id {
			delete(s.requests, k)
		}
	}
	for k, d := range s.documents {
		if d.EmployeeID == id {
			delete(s.documents, k)
		}
	}
	for k, t := range s.tasks {
		if t.EmployeeID == id {
			delete(s.tasks, k)
		}
	}
	delete(s.employees, id)
}

// --- projects ---

func (s *Store) CreateProject(_ context.Context, companyID string, in hr.ProjectInput) (hr.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.companies[companyID]; !ok {
		return hr.Project{}, auth.ErrNotFound
	}
	now := s.stamp()
	p := &hr.Project{ID: newID(), CompanyID: companyID, Name: in.Name, Description: in.Description, CreatedAt: now, UpdatedAt: now}
	s.projects[p.ID] = p
	return *p, nil
}

func (s *Store) GetProject(_ context.Context, id string) (hr.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.projects[id]
	if !ok {
		return hr.Project{}, auth.ErrNotFound
	}
	return *p, nil
}

func (s *Store) ListProjects(_ context.Context, companyID string) ([]hr.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []hr.Project{}
	for _, p := range s.projects {
		if p.CompanyID == companyID {
			out = append(out, *p)
		}
	}
	sortByCreated(out, func(p hr.Project) time.Time { return p.CreatedAt }, func(p hr.Project) string { return p.ID })
	return out, nil
}

func (s *Store) UpdateProject(_ context.Context, id string, in hr.ProjectInput) (hr.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.projects[id]
	if !ok {
		return hr.Project{}, auth.ErrNotFound
	}
	p.Name, p.Description = in.Name, in.Description
	p.UpdatedAt = s.stamp()
	return *p, nil
}

func (s *Store) DeleteProject(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.projects[id]; !ok {
		return auth.ErrNotFound
	}
	delete(s.projects, id)
	return nil
}

// --- attendance ---

func (s *Store) CreateAttendance(_ context.Context, a hr.Attendance) (hr.Attendance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.employees[a.EmployeeID]; !ok {
		return hr.Attendance{}, auth.ErrNotFound
	}
	a.ID = newID()
	stored := a
	s.attendance[a.ID] = &stored
	return a, nil
}

func (s *Store) GetAttendance(_ context.Context, id string) (hr.Attendance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.attendance[id]
	if !ok {
		return hr.Attendance{}, auth.ErrNotFound
	}
	return *a, nil
}

func (s *Store) ListAttendance(_ context.Context, employeeID string) ([]hr.Attendance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []hr.Attendance{}
	for _, a := range s.attendance {
		if a.EmployeeID == employeeID {
			out = append(out, *a)
		}
	}
	sortByCreated(out, func(a hr.Attendance) time.Time { return a.RecordedAt }, func(a hr.Attendance) string { return a.ID })
	return out, nil
}

func (s *Store) DeleteAttendance(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.attendance[id]; !ok {
		return auth.ErrNotFound
	}
	delete(s.attendance, id)
	return nil
}

// --- requests ---

func (s *Store) CreateRequest(_ context.Context, r hr.Request) (hr.Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.employees[r.EmployeeID]; !ok {
		return hr.Request{}, auth.ErrNotFound
	}
	now := s.stamp()
	r.ID, r.CreatedAt, r.UpdatedAt = newID(), now, now
	stored := r
	s.requests[r.ID] = &stored
	return r, nil
}

func (s *Store) GetRequest(_ context.Context, id string) (hr.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.requests[id]
	if !ok {
		return hr.Request{}, auth.ErrNotFound
	}
	return *r, nil
}

func (s *Store) ListRequests(_ context.Context, employeeID string) ([]hr.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []hr.Request{}
	for _, r := range s.requests {
		if r.EmployeeID == employeeID {
			out = append(out, *r)
		}
	}
	sortByCreated(out, func(r hr.Request) time.Time { return r.CreatedAt }, func(r hr.Request) string { return r.ID })
	return out, nil
}

func (s *Store) SetRequestStatus(_ context.Context, id, status string) (hr.Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.requests[id]
	if !ok {
		return hr.Request{}, auth.ErrNotFound
	}
	r.Status = status
	r.UpdatedAt = s.stamp()
	return *r, nil
}

func (s *Store) DeleteRequest(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.requests[id]; !ok {
		return auth.ErrNotFound
	}
	delete(s.requests, id)
	return nil
}

// --- documentation ---

func (s *Store) CreateDocument(_ context.Context, d hr.Document) (hr.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.employees[d.EmployeeID]; !ok {
		return hr.Document{}, auth.ErrNotFound
	}
	d.ID, d.CreatedAt = newID(), s.stamp()
	stored := d
	s.documents[d.ID] = &stored
	return d, nil
}

func (s *Store) GetDocument(_ context.Context, id string) (hr.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.documents[id]
	if !ok {
		return hr.Document{}, auth.ErrNotFound
	}
	return *d, nil
}

func (s *Store) ListDocuments(_ context.Context, employeeID string) ([]hr.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []hr.Document{}
	for _, d := range s.documents {
		if d.EmployeeID == employeeID {
			out = append(out, *d)
		}
	}
	sortByCreated(out, func(d hr.Document) time.Time { return d.CreatedAt }, func(d hr.Document) string { return d.ID })
	return out, nil
}

func (s *Store) DeleteDocument(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.documents[id]; !ok {
		return auth.ErrNotFound
	}
	delete(s.documents, id)
	return nil
}

// --- tasks ---

func (s *Store) CreateTask(_ context.Context, t hr.Task) (hr.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.employees[t.EmployeeID]; !ok {
		return hr.Task{}, auth.ErrNotFound
	}
	now := s.stamp()
	t.ID, t.CreatedAt, t.UpdatedAt = newID(), now, now
	stored := t
	s.tasks[t.ID] = &stored
	return t, nil
}

func (s *Store) GetTask(_ context.Context, id string) (hr.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tasks[id]
	if !ok {
		return hr.Task{}, auth.ErrNotFound
	}
	return *t, nil
}

func (s *Store) ListTasks(_ context.Context, employeeID string) ([]hr.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []hr.Task{}
	for _, t := range s.tasks {
		if t.EmployeeID == employeeID {
			out = append(out, *t)
		}
	}
	sortByCreated(out, func(t hr.Task) time.Time { return t.CreatedAt }, func(t hr.Task) string { return t.ID })
	return out, nil
}

func (s *Store) UpdateTask(_ context.Context, id string, upd hr.TaskUpdate) (hr.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		return hr.Task{}, auth.ErrNotFound
	}
	if upd.Title != nil {
		t.Title = *upd.Title
	}
	if upd.Description != nil {
		t.Description = *upd.Description
	}
	if upd.Done != nil {
		t.Done = *upd.Done
	}
	t.UpdatedAt = s.stamp()
	return *t, nil
}

func (s *Store) DeleteTask(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tasks[id]; !ok {
		return auth.ErrNotFound
	}
	delete(s.tasks, id)
	return nil
}
