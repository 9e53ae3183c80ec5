package auth

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"
)

type fakeStore struct {
	mu        sync.Mutex
	owners    map[string]Owner
	employees map[string]EmployeeAccount
	keys      map[string]APIKey
	sessions  []SessionRecord
	seq       int
	failSess  error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		owners:    map[string]Owner{},
		employees: map[string]EmployeeAccount{},
		keys:      map[string]APIKey{},
	}
}

func (f *fakeStore) nextID(prefix string) string {
	f.seq++
	return prefix + strings.Repeat("0", 3) + string(rune('a'+f.seq))
}

func (f *fakeStore) CreateOwner(_ context.Context, in NewOwner) (Registration, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, o := range f.owners {
		if o.Email == in.Email {
			return Registration{}, &ConflictError{Field: FieldEmail}
		}
	}
	owner := Owner{ID: f.nextID("o"), Name: in.Name, Email: in.Email, PasswordHash: in.PasswordHash, Role: in.Role}
	f.owners[owner.ID] = owner
	emp := EmployeeAccount{ID: f.nextID("e"), CompanyID: "c-" + owner.ID, OwnerID: owner.ID, Code: "10001", Name: in.Name, Active: true}
	f.employees[emp.ID] = emp
	return Registration{Owner: owner, Company: RegisteredCompany{ID: emp.CompanyID, Name: in.CompanyName}, Employee: emp}, nil
}

func (f *fakeStore) OwnerByEmail(_ context.Context, email string) (Owner, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, o := range f.owners {
		if o.Email == email {
			return o, nil
		}
	}
	return Owner{}, ErrNotFound
}

func (f *fakeStore) OwnerByID(_ context.Context, id string) (Owner, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.owners[id]
	if !ok {
		return Owner{}, ErrNotFound
	}
	return o, nil
}

func (f *fakeStore) UpdateOwner(_ context.Context, id string, upd OwnerUpdate) (Owner, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.owners[id]
	if !ok {
		return Owner{}, ErrNotFound
	}
	if upd.Name != nil {
		o.Name = *upd.Name
	}
	if upd.Email != nil {
		o.Email = *upd.Email
	}
	f.owners[id] = o
	return o, nil
}

func (f *fakeStore) SetOwnerPassword(_ context.Context, id, hash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.owners[id]
	if !ok {
		return ErrNotFound
	}
	o.PasswordHash = hash
	f.owners[id] = o
	return nil
}

func (f *fakeStore) SetExternalLogin(_ context.Context, id string, enabled bool) (Owner, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.owners[id]
	if !ok {
		return Owner{}, ErrNotFound
	}
	o.ExternalLogin = enabled
	f.owners[id] = o
	return o, nil
}

func (f *fakeStore) DeleteOwner(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.owners[id]; !ok {
		return ErrNotFound
	}
	delete(f.owners, id)
	return nil
}

func (f *fakeStore) EmployeeAccountByLogin(_ context.Context, login string) (EmployeeAccount, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.employees {
		if e.Code == login {
			return e, nil
		}
	}
	for _, e := range f.employees {
		if e.NationalID != "" && e.NationalID == login {
			return e, nil
		}
	}
	return EmployeeAccount{}, ErrNotFound
}

func (f *fakeStore) EmployeeAccountByID(_ context.Context, id string) (EmployeeAccount, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.employees[id]
	if !ok {
		return EmployeeAccount{}, ErrNotFound
	}
	return e, nil
}

func (f *fakeStore) CreateAPIKey(_ context.Context, key APIKey) (APIKey, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key.ID = f.nextID("k")
	f.keys[key.ID] = key
	return key, nil
}

func (f *fakeStore) APIKeyByHash(_ context.Context, hash string) (APIKeyRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, k := range f.keys {
		if k.Hash == hash {
			return APIKeyRecord{APIKey: k, OwnerExternalLogin: f.owners[k.OwnerID].ExternalLogin}, nil
		}
	}
	return APIKeyRecord{}, ErrNotFound
}

func (f *fakeStore) ListAPIKeys(_ context.Context, ownerID string) ([]APIKey, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []APIKey
	for _, k := range f.keys {
		if k.OwnerID == ownerID {
			out = append(out, k)
		}
	}
	return out, nil
}

func (f *fakeStore) TouchAPIKey(_ context.Context, id string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	k, ok := f.keys[id]
	if !ok {
		return ErrNotFound
	}
	k.LastUsedAt = &at
	f.keys[id] = k
	return nil
}

func (f *fakeStore) SetAPIKeyActive(_ context.Context, id, ownerID string, active bool) (APIKey, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	k, ok := f.keys[id]
	if !ok || k.OwnerID != ownerID || k.Active == active {
		return APIKey{}, ErrNotFound
	}
	k.Active = active
	f.keys[id] = k
	return k, nil
}

func (f *fakeStore) DeleteAPIKey(_ context.Context, id, ownerID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	k, ok := f.keys[id]
	if !ok || k.OwnerID != ownerID {
		return ErrNotFound
	}
	delete(f.keys, id)
	return nil
}

func (f *fakeStore) RecordSession(_ context.Context, rec SessionRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failSess != nil {
		return f.failSess
	}
	f.sessions = append(f.sessions, rec)
	return nil
}

func (f *fakeStore) addEmployee(t *testing.T, e EmployeeAccount, password string) EmployeeAccount {
	t.Helper()
	if password != "" {
		hash, err := HashPasswordCost(password, bcrypt.MinCost)
		if err != nil {
			t.Fatalf("hash: %v", err)
		}
		e.PasswordHash = hash
	}
	f.mu.Lock()
	f.employees[e.ID] = e
	f.mu.Unlock()
	return e
}

func newTestService(t *testing.T) (*Service, *fakeStore, *fakeClock) {
	t.Helper()
	clock := &fakeClock{t: time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)}
	store := newFakeStore()
	codec := newTestCodec(t, clock)
	svc, err := NewService(store, codec, TTLConfig{
		Owner:         7 * 24 * time.Hour,
		OwnerRemember: 30 * 24 * time.Hour,
		Employee:      7 * 24 * time.Hour,
	}, WithClock(clock.Now), WithBcryptCost(bcrypt.MinCost))
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc, store, clock
}

func TestRegisterAndLoginOwner(t *testing.T) {
	svc, store, clock := newTestService(t)
	ctx := context.Background()

	reg, sess, err := svc.Register(ctx, RegisterInput{Name: "Ana", Email: " A@X.com ", Password: "secret1"}, ClientMeta{IP: "10.0.0.1"})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if reg.Owner.Email != "a@x.com" || reg.Owner.Role != RoleAdmin {
		t.Fatalf("unexpected owner: %+v", reg.Owner)
	}
	if reg.Company.Name != DefaultCompanyName || reg.Employee.Code != "10001" {
		t.Fatalf("unexpected defaults: %+v", reg)
	}
	if sess.TTL != 7*24*time.Hour || !sess.ExpiresAt.Equal(clock.t.Add(7*24*time.Hour)) {
		t.Fatalf("unexpected session lifetime: %+v", sess)
	}

	if _, _, err := svc.Register(ctx, RegisterInput{Name: "Ana", Email: "a@x.com", Password: "secret1"}, ClientMeta{}); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected conflict on duplicate email, got %v", err)
	}

	owner, sess, err := svc.LoginOwner(ctx, "a@x.com", "secret1", true, ClientMeta{UserAgent: "test"})
	if err != nil {
		t.Fatalf("LoginOwner: %v", err)
	}
	if owner.ID != reg.Owner.ID || sess.TTL != 30*24*time.Hour {
		t.Fatalf("unexpected login result: %+v %+v", owner, sess)
	}
	claims, err := svc.Authenticate(sess.Token)
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if oc, ok := claims.(OwnerClaims); !ok || oc.UserID != reg.Owner.ID {
		t.Fatalf("unexpected claims: %#v", claims)
	}

	svc.Sessions().Wait()
	store.mu.Lock()
	defer store.mu.Unlock()
	if len(store.sessions) != 2 {
		t.Fatalf("expected 2 session records, got %d", len(store.sessions))
	}
	var login *SessionRecord
	for i := range store.sessions {
		if store.sessions[i].UserAgent == "test" {
			login = &store.sessions[i]
		}
	}
	if login == nil || login.TokenID == "" || login.IP != "" {
		t.Fatalf("unexpected session records: %+v", store.sessions)
	}
}

func TestLoginOwnerInvalidCredentials(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	if _, _, err := svc.Register(ctx, RegisterInput{Email: "a@x.com", Password: "secret1"}, ClientMeta{}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if _, _, err := svc.LoginOwner(ctx, "a@x.com", "wrong-pass", false, ClientMeta{}); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if _, _, err := svc.LoginOwner(ctx, "nobody@x.com", "secret1", false, ClientMeta{}); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for unknown email, got %v", err)
	}
}

func TestRegisterValidation(t *testing.T) {
	svc, _, _ := newTestService(t)
	cases := []RegisterInput{
		{Email: "", Password: "secret1"},
		{Email: "not-an-email", Password: "secret1"},
		{Email: "Ana <a@x.com>", Password: "secret1"},
		{Email: "a b@x.com", Password: "secret1"},
		{Email: "@x.com", Password: "secret1"},
		{Email: "a@x.com", Password: "123"},
	}
	for _, in := range cases {
		if _, _, err := svc.Register(context.Background(), in, ClientMeta{}); !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("%+v: expected ErrInvalidInput, got %v", in, err)
		}
	}
}

func TestLoginEmployee(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()
	store.addEmployee(t, EmployeeAccount{ID: "e1", OwnerID: "o1", Code: "20001", NationalID: "X123", Active: true}, "pw-emp")
	store.addEmployee(t, EmployeeAccount{ID: "e2", OwnerID: "o1", Code: "20002", Active: false}, "pw-emp")
	store.addEmployee(t, EmployeeAccount{ID: "e3", OwnerID: "o1", Code: "20003", Active: true}, "")

	emp, sess, err := svc.LoginEmployee(ctx, "X123", "pw-emp")
	if err != nil {
		t.Fatalf("LoginEmployee by national id: %v", err)
	}
	if emp.ID != "e1" || sess.TTL != 7*24*time.Hour {
		t.Fatalf("unexpected result: %+v %+v", emp, sess)
	}
	if ec, ok := sess.Claims.(EmployeeClaims); !ok || ec.Code != "20001" {
		t.Fatalf("unexpected claims: %#v", sess.Claims)
	}

	cases := []struct {
		login, password string
		want            error
	}{
		{"20001", "bad", ErrInvalidCredentials},
		{"20002", "pw-emp", ErrInvalidCredentials},
		{"20003", "pw-emp", ErrNoPassword},
		{"99999", "pw-emp", ErrInvalidCredentials},
		{"", "pw-emp", ErrInvalidCredentials},
	}
	for _, tc := range cases {
		if _, _, err := svc.LoginEmployee(ctx, tc.login, tc.password); !errors.Is(err, tc.want) {
			t.Fatalf("login %q: expected %v, got %v", tc.login, tc.want, err)
		}
	}
}

func TestLoginExternalGates(t *testing.T) {
	svc, store, clock := newTestService(t)
	ctx := context.Background()

	reg, _, err := svc.Register(ctx, RegisterInput{Email: "a@x.com", Password: "secret1"}, ClientMeta{})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	other, _, err := svc.Register(ctx, RegisterInput{Email: "b@x.com", Password: "secret1"}, ClientMeta{})
	if err != nil {
		t.Fatalf("Register other: %v", err)
	}
	ownerID := reg.Owner.ID
	store.addEmployee(t, EmployeeAccount{ID: "mine", OwnerID: ownerID, Code: "30001", Active: true}, "pw")
	store.addEmployee(t, EmployeeAccount{ID: "nopw", OwnerID: ownerID, Code: "30002", Active: true}, "")
	store.addEmployee(t, EmployeeAccount{ID: "theirs", OwnerID: other.Owner.ID, Code: "30003", Active: true}, "pw")

	key, raw, err := svc.APIKeys().Issue(ctx, ownerID, "erp")
	if err != nil {
		t.Fatalf("Issue key: %v", err)
	}

	// gate 2: flag disabled
	if _, _, err := svc.LoginExternal(ctx, raw, "30001", "pw"); !errors.Is(err, ErrExternalLoginDisabled) {
		t.Fatalf("expected ErrExternalLoginDisabled, got %v", err)
	}
	if _, err := svc.SetExternalLogin(ctx, ownerID, true); err != nil {
		t.Fatalf("SetExternalLogin: %v", err)
	}

	cases := []struct {
		name, key, login, password string
		want                       error
	}{
		{"unknown key", APIKeyPrefix + strings.Repeat("0", 64), "30001", "pw", ErrInvalidAPIKey},
		{"malformed key", "nope", "30001", "pw", ErrInvalidAPIKey},
		{"unknown employee", raw, "99999", "pw", ErrInvalidCredentials},
		{"cross tenant employee", raw, "30003", "pw", ErrInvalidCredentials},
		{"no password", raw, "30002", "pw", ErrNoPassword},
		{"wrong password", raw, "30001", "bad", ErrInvalidCredentials},
	}
	for _, tc := range cases {
		if _, _, err := svc.LoginExternal(ctx, tc.key, tc.login, tc.password); !errors.Is(err, tc.want) {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, err)
		}
	}
	if k := store.keys[key.ID]; k.LastUsedAt != nil {
		t.Fatalf("failed logins must not touch the key")
	}

	emp, sess, err := svc.LoginExternal(ctx, raw, "30001", "pw")
	if err != nil {
		t.Fatalf("LoginExternal: %v", err)
	}
	if emp.ID != "mine" || sess.Token == "" {
		t.Fatalf("unexpected result: %+v", emp)
	}
	if k := store.keys[key.ID]; k.LastUsedAt == nil || !k.LastUsedAt.Equal(clock.t) {
		t.Fatalf("expected key to be touched at %v, got %v", clock.t, k.LastUsedAt)
	}

	// gate 1: inactive key
	if _, err := svc.APIKeys().SetActive(ctx, key.ID, ownerID, false); err != nil {
		t.Fatalf("SetActive: %v", err)
	}
	if _, _, err := svc.LoginExternal(ctx, raw, "30001", "pw"); !errors.Is(err, ErrInvalidAPIKey) {
		t.Fatalf("expected ErrInvalidAPIKey for inactive key, got %v", err)
	}
}

func TestAPIKeyRegistryOwnershipAndIdempotence(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	keys := svc.APIKeys()

	key, raw, err := keys.Issue(ctx, "o1", "  integration  ")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if !strings.HasPrefix(raw, APIKeyPrefix) || len(raw) != len(APIKeyPrefix)+64 {
		t.Fatalf("unexpected raw key format: %s", raw)
	}
	if key.Label != "integration" || !key.Active || key.Prefix != raw[:len(key.Prefix)] || key.Hash != HashAPIKey(raw) {
		t.Fatalf("unexpected key: %+v", key)
	}

	if _, err := keys.SetActive(ctx, key.ID, "o2", false); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for foreign owner, got %v", err)
	}
	if _, err := keys.SetActive(ctx, key.ID, "o1", false); err != nil {
		t.Fatalf("SetActive: %v", err)
	}
	if _, err := keys.SetActive(ctx, key.ID, "o1", false); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound when already inactive, got %v", err)
	}
	if err := keys.Delete(ctx, key.ID, "o2"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound deleting foreign key, got %v", err)
	}
	if err := keys.Delete(ctx, key.ID, "o1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := keys.Delete(ctx, key.ID, "o1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}
	if _, _, err := keys.Issue(ctx, "o1", ""); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for empty label, got %v", err)
	}
}

func TestSessionRecorderFailureDoesNotBlockLogin(t *testing.T) {
	svc, store, _ := newTestService(t)
	store.failSess = errors.New("db down")
	ctx := context.Background()

	if _, _, err := svc.Register(ctx, RegisterInput{Email: "a@x.com", Password: "secret1"}, ClientMeta{}); err != nil {
		t.Fatalf("Register should succeed despite session sink failure: %v", err)
	}
	svc.Sessions().Wait()
	if len(store.sessions) != 0 {
		t.Fatalf("no sessions expected")
	}
}

func TestChangePasswordAndProfile(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	reg, _, err := svc.Register(ctx, RegisterInput{Name: "Ana", Email: "a@x.com", Password: "secret1"}, ClientMeta{})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	id := reg.Owner.ID

	if err := svc.ChangePassword(ctx, id, "wrong", "newsecret"); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for wrong current password, got %v", err)
	}
	if err := svc.ChangePassword(ctx, id, "secret1", "newsecret"); err != nil {
		t.Fatalf("ChangePassword: %v", err)
	}
	if _, _, err := svc.LoginOwner(ctx, "a@x.com", "newsecret", false, ClientMeta{}); err != nil {
		t.Fatalf("login with new password: %v", err)
	}

	name := "  Ana María "
	badEmail := "bad"
	if _, err := svc.UpdateProfile(ctx, id, OwnerUpdate{Email: &badEmail}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for bad email, got %v", err)
	}
	owner, err := svc.UpdateProfile(ctx, id, OwnerUpdate{Name: &name})
	if err != nil {
		t.Fatalf("UpdateProfile: %v", err)
	}
	if owner.Name != "Ana María" {
		t.Fatalf("unexpected name: %q", owner.Name)
	}

	if err := svc.DeleteAccount(ctx, id); err != nil {
		t.Fatalf("DeleteAccount: %v", err)
	}
	if _, err := svc.Owner(ctx, id); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}
