package memory

import (
	"context"
	"strings"
	"time"

	"asistencia.org/internal/auth"
	"asistencia.org/internal/hr"
)

func (s *Store) CreateOwner(_ context.Context, in auth.NewOwner) (auth.Registration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, o := range s.owners {
		if o.Email == in.Email {
			return auth.Registration{}, &auth.ConflictError{Field: auth.FieldEmail}
		}
	}
	code := s.nextCodeLocked()
	if err := s.uniqueEmployeeLocked("", code, ""); err != nil {
		return auth.Registration{}, err
	}
	now := s.stamp()
	owner := &ownerRow{Owner: auth.Owner{
		ID:           newID(),
		Name:         in.Name,
		Email:        in.Email,
		PasswordHash: in.PasswordHash,
		Role:         in.Role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}}
	company := &hr.Company{ID: newID(), OwnerID: owner.ID, Name: in.CompanyName, CreatedAt: now, UpdatedAt: now}
	emp := &employeeRow{Employee: hr.Employee{
		ID:        newID(),
		CompanyID: company.ID,
		Code:      code,
		Name:      in.Name,
		Email:     in.Email,
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}}
	s.owners[owner.ID] = owner
	s.companies[company.ID] = company
	s.employees[emp.ID] = emp

	return auth.Registration{
		Owner:    owner.Owner,
		Company:  auth.RegisteredCompany{ID: company.ID, Name: company.Name},
		Employee: s.accountLocked(emp),
	}, nil
}

func (s *Store) OwnerByEmail(_ context.Context, email string) (auth.Owner, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, o := range s.owners {
		if o.Email == email {
			return o.Owner, nil
		}
	}
	return auth.Owner{}, auth.ErrNotFound
}

func (s *Store) OwnerByID(_ context.Context, id string) (auth.Owner, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.owners[id]
	if !ok {
		return auth.Owner{}, auth.ErrNotFound
	}
	return o.Owner, nil
}

func (s *Store) UpdateOwner(_ context.Context, id string, upd auth.OwnerUpdate) (auth.Owner, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.owners[id]
	if !ok {
		return auth.Owner{}, auth.ErrNotFound
	}
	if upd.Email != nil && *upd.Email != o.Email {
		for oid, other := range s.owners {
			if oid != id && other.Email == *upd.Email {
				return auth.Owner{}, &auth.ConflictError{Field: auth.FieldEmail}
			}
		}
		o.Email = *upd.Email
	}
	if upd.Name != nil {
		o.Name = *upd.Name
	}
	if upd.AvatarURL != nil {
		o.AvatarURL = *upd.AvatarURL
	}
	o.UpdatedAt = s.stamp()
	return o.Owner, nil
}

func (s *Store) SetOwnerPassword(_ context.Context, id, passwordHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.owners[id]
	if !ok {
		return auth.ErrNotFound
	}
	o.PasswordHash = passwordHash
	o.UpdatedAt = s.stamp()
	return nil
}

func (s *Store) SetExternalLogin(_ context.Context, id string, enabled bool) (auth.Owner, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.owners[id]
	if !ok {
		return auth.Owner{}, auth.ErrNotFound
	}
	o.ExternalLogin = enabled
	o.UpdatedAt = s.stamp()
	return o.Owner, nil
}

// DeleteOwner cascades like the SQL foreign keys do.
func (s *Store) DeleteOwner(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.owners[id]; !ok {
		return auth.ErrNotFound
	}
	for cid, c := range s.companies {
		if c.OwnerID == id {
			s.deleteCompanyLocked(cid)
		}
	}
	for kid, k := range s.apiKeys {
		if k.OwnerID == id {
			delete(s.apiKeys, kid)
		}
	}
	kept := s.sessions[:0]
	for _, rec := range s.sessions {
		if rec.OwnerID != id {
			kept = append(kept, rec)
		}
	}
	s.sessions = kept
	delete(s.owners, id)
	return nil
}

func (s *Store) EmployeeAccountByLogin(_ context.Context, login string) (auth.EmployeeAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, e := range s.employees {
		if e.Code == login {
			return s.accountLocked(e), nil
		}
	}
	upper := strings.ToUpper(login)
	for _, e := range s.employees {
		if e.NationalID != "" && e.NationalID == upper {
			return s.accountLocked(e), nil
		}
	}
	return auth.EmployeeAccount{}, auth.ErrNotFound
}

func (s *Store) EmployeeAccountByID(_ context.Context, id string) (auth.EmployeeAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.employees[id]
	if !ok {
		return auth.EmployeeAccount{}, auth.ErrNotFound
	}
	return s.accountLocked(e), nil
}

func (s *Store) accountLocked(e *employeeRow) auth.EmployeeAccount {
	return auth.EmployeeAccount{
		ID:           e.ID,
		CompanyID:    e.CompanyID,
		OwnerID:      s.ownerOfEmployeeLocked(e),
		Code:         e.Code,
		NationalID:   e.NationalID,
		Name:         e.Name,
		Email:        e.Email,
		PasswordHash: e.PasswordHash,
		Active:       e.Active,
	}
}

func (s *Store) CreateAPIKey(_ context.Context, key auth.APIKey) (auth.APIKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range s.apiKeys {
		if k.Hash == key.Hash {
			return auth.APIKey{}, &auth.ConflictError{Field: "key_hash"}
		}
	}
	key.ID = newID()
	if key.CreatedAt.IsZero() {
		key.CreatedAt = s.stamp()
	}
	stored := key
	s.apiKeys[key.ID] = &stored
	return key, nil
}

func (s *Store) APIKeyByHash(_ context.Context, hash string) (auth.APIKeyRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, k := range s.apiKeys {
		if k.Hash == hash {
			rec := auth.APIKeyRecord{APIKey: *k}
			if o, ok := s.owners[k.OwnerID]; ok {
				rec.OwnerExternalLogin = o.ExternalLogin
			}
			return rec, nil
		}
	}
	return auth.APIKeyRecord{}, auth.ErrNotFound
}

func (s *Store) ListAPIKeys(_ context.Context, ownerID string) ([]auth.APIKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []auth.APIKey{}
	for _, k := range s.apiKeys {
		if k.OwnerID == ownerID {
			out = append(out, *k)
		}
	}
	sortByCreated(out, func(k auth.APIKey) time.Time { return k.CreatedAt }, func(k auth.APIKey) string { return k.ID })
	return out, nil
}

func (s *Store) TouchAPIKey(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k, ok := s.apiKeys[id]
	if !ok {
		return auth.ErrNotFound
	}
	t := at
	k.LastUsedAt = &t
	return nil
}

func (s *Store) SetAPIKeyActive(_ context.Context, id, ownerID string, active bool) (auth.APIKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k, ok := s.apiKeys[id]
	if !ok || k.OwnerID != ownerID || k.Active == active {
		return auth.APIKey{}, auth.ErrNotFound
	}
	k.Active = active
	return *k, nil
}

func (s *Store) DeleteAPIKey(_ context.Context, id, ownerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k, ok := s.apiKeys[id]
	if !ok || k.OwnerID != ownerID {
		return auth.ErrNotFound
	}
	delete(s.apiKeys, id)
	return nil
}

func (s *Store) RecordSession(_ context.Context, rec auth.SessionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.owners[rec.OwnerID]; !ok {
		return auth.ErrNotFound
	}
	s.sessions = append(s.sessions, rec)
	return nil
}
