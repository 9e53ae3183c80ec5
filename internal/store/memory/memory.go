// Package memory keeps every table in maps. It backs the API when no DSN is
// configured and the handler tests.
package memory

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"asistencia.org/internal/auth"
	"asistencia.org/internal/hr"
	"asistencia.org/internal/ids"
	"asistencia.org/internal/ownership"
)

const firstEmployeeCode = 10001

type ownerRow struct {
	auth.Owner
}

type employeeRow struct {
	hr.Employee
	PasswordHash string
}

// Store is safe for concurrent use.
type Store struct {
	mu sync.RWMutex

	owners     map[string]*ownerRow
	companies  map[string]*hr.Company
	employees  map[string]*employeeRow
	projects   map[string]*hr.Project
	attendance map[string]*hr.Attendance
	requests   map[string]*hr.Request
	documents  map[string]*hr.Document
	tasks      map[string]*hr.Task
	apiKeys    map[string]*auth.APIKey
	sessions   []auth.SessionRecord
	now        func() time.Time
}

var (
	_ auth.Store      = (*Store)(nil)
	_ hr.Store        = (*Store)(nil)
	_ ownership.Graph = (*Store)(nil)
)

func New() *Store {
	return &Store{
		owners:     map[string]*ownerRow{},
		companies:  map[string]*hr.Company{},
		employees:  map[string]*employeeRow{},
		projects:   map[string]*hr.Project{},
		attendance: map[string]*hr.Attendance{},
		requests:   map[string]*hr.Request{},
		documents:  map[string]*hr.Document{},
		tasks:      map[string]*hr.Task{},
		apiKeys:    map[string]*auth.APIKey{},
		now:        time.Now,
	}
}

// Resolver returns an ownership resolver walking this store.
func (s *Store) Resolver() *ownership.Walker {
	return ownership.NewWalker(s)
}

// Sessions returns a copy of the recorded session audit trail.
func (s *Store) Sessions() []auth.SessionRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]auth.SessionRecord, len(s.sessions))
	copy(out, s.sessions)
	return out
}

func (s *Store) stamp() time.Time { return s.now().UTC() }

// Column implements ownership.Graph.
func (s *Store) Column(_ context.Context, kind ownership.Kind, id, column string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	switch kind {
	case ownership.KindCompany:
		c, ok := s.companies[id]
		if !ok {
			return "", false, nil
		}
		return pick(column, c.ID, map[string]string{"usuario_id": c.OwnerID})
	case ownership.KindEmployee:
		e, ok := s.employees[id]
		if !ok {
			return "", false, nil
		}
		return pick(column, e.ID, map[string]string{"empresa_id": e.CompanyID})
	case ownership.KindProject:
		p, ok := s.projects[id]
		if !ok {
			return "", false, nil
		}
		return pick(column, p.ID, map[string]string{"empresa_id": p.CompanyID})
	case ownership.KindAttendance:
		a, ok := s.attendance[id]
		if !ok {
			return "", false, nil
		}
		return pick(column, a.ID, map[string]string{"empleado_id": a.EmployeeID})
	case ownership.KindRequest:
		r, ok := s.requests[id]
		if !ok {
			return "", false, nil
		}
		return pick(column, r.ID, map[string]string{"empleado_id": r.EmployeeID})
	case ownership.KindDocumentation:
		d, ok := s.documents[id]
		if !ok {
			return "", false, nil
		}
		return pick(column, d.ID, map[string]string{"empleado_id": d.EmployeeID})
	case ownership.KindTask:
		t, ok := s.tasks[id]
		if !ok {
			return "", false, nil
		}
		return pick(column, t.ID, map[string]string{"empleado_id": t.EmployeeID})
	}
	return "", false, nil
}

func pick(column, id string, cols map[string]string) (string, bool, error) {
	if column == "id" {
		return id, true, nil
	}
	v, ok := cols[column]
	return v, ok, nil
}

// nextCodeLocked mirrors the SQL default: the highest short numeric code or
// national id + 1, starting at 10001.
func (s *Store) nextCodeLocked() string {
	next := int64(firstEmployeeCode)
	for _, e := range s.employees {
		for _, v := range []string{e.Code, e.NationalID} {
			if n, ok := hr.SequentialValue(v); ok && n >= next {
				next = n + 1
			}
		}
	}
	return strconv.FormatInt(next, 10)
}

// uniqueEmployeeLocked keeps codes and national ids unique, and keeps a code
// from matching another employee's national id since login accepts either.
func (s *Store) uniqueEmployeeLocked(selfID, code, nationalID string) error {
	for id, e := range s.employees {
		if id == selfID {
			continue
		}
		if code != "" && (e.Code == code || strings.EqualFold(e.NationalID, code)) {
			return &auth.ConflictError{Field: auth.FieldCode}
		}
		if nationalID != "" && (e.NationalID == nationalID || strings.EqualFold(e.Code, nationalID)) {
			return &auth.ConflictError{Field: auth.FieldNationalID}
		}
	}
	return nil
}

func (s *Store) ownerOfEmployeeLocked(e *employeeRow) string {
	if c, ok := s.companies[e.CompanyID]; ok {
		return c.OwnerID
	}
	return ""
}

func sortByCreated[T any](items []T, created func(T) time.Time, id func(T) string) {
	sort.Slice(items, func(i, j int) bool {
		ci, cj := created(items[i]), created(items[j])
		if ci.Equal(cj) {
			return id(items[i]) < id(items[j])
		}
		return ci.Before(cj)
	})
}

func newID() string { return ids.New() }
