package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
)

const minPasswordLen = 6

// TTLConfig sets token lifetimes per flow.
type TTLConfig struct {
	Owner         time.Duration
	OwnerRemember time.Duration
	Employee      time.Duration
}

// Service implements registration, the three login flows and account maintenance.
type Service struct {
	store    Store
	codec    *Codec
	keys     *APIKeyRegistry
	sessions *SessionRecorder
	ttl      TTLConfig
	cost     int
	now      func() time.Time

	dummyOnce sync.Once
	dummyHash string
}

// NewService wires the auth Service.
func NewService(store Store, codec *Codec, ttl TTLConfig, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("auth store is required")
	}
	if codec == nil {
		return nil, errors.New("token codec is required")
	}
	if ttl.Owner <= 0 || ttl.OwnerRemember <= 0 || ttl.Employee <= 0 {
		return nil, errors.New("token ttls must be positive")
	}
	st := applyOptions(opts)
	keys, err := NewAPIKeyRegistry(store, opts...)
	if err != nil {
		return nil, err
	}
	return &Service{
		store:    store,
		codec:    codec,
		keys:     keys,
		sessions: NewSessionRecorder(store),
		ttl:      ttl,
		cost:     st.bcryptCost,
		now:      st.now,
	}, nil
}

// APIKeys exposes the key registry.
func (s *Service) APIKeys() *APIKeyRegistry { return s.keys }

// Sessions exposes the session recorder so callers can drain it on shutdown.
func (s *Service) Sessions() *SessionRecorder { return s.sessions }

// Authenticate verifies a token of either kind.
func (s *Service) Authenticate(token string) (Claims, error) {
	return s.codec.Verify(token)
}

// RegisterInput is a new owner account.
type RegisterInput struct {
	Name     string
	Email    string
	Password string
}

// Register creates the owner with its default company and employee and signs it in.
func (s *Service) Register(ctx context.Context, in RegisterInput, meta ClientMeta) (Registration, Session, error) {
	name := strings.TrimSpace(in.Name)
	email, err := normalizeEmail(in.Email)
	if err != nil {
		return Registration{}, Session{}, err
	}
	if name == "" {
		name = strings.SplitN(email, "@", 2)[0]
	}
	if len(in.Password) < minPasswordLen {
		return Registration{}, Session{}, fmt.Errorf("%w: la contraseña debe tener al menos %d caracteres", ErrInvalidInput, minPasswordLen)
	}
	hash, err := HashPasswordCost(in.Password, s.cost)
	if err != nil {
		return Registration{}, Session{}, err
	}

	reg, err := s.store.CreateOwner(ctx, NewOwner{
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Role:         RoleAdmin,
		CompanyName:  DefaultCompanyName,
	})
	if err != nil {
		return Registration{}, Session{}, err
	}

	sess, err := s.ownerSession(ctx, reg.Owner, false, meta)
	if err != nil {
		return Registration{}, Session{}, err
	}
	return reg, sess, nil
}

// LoginOwner checks email and password. Unknown email and wrong password are
// both ErrInvalidCredentials.
func (s *Service) LoginOwner(ctx context.Context, email, password string, remember bool, meta ClientMeta) (Owner, Session, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	owner, err := s.store.OwnerByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			PasswordMatches(s.timingHash(), password)
			return Owner{}, Session{}, ErrInvalidCredentials
		}
		return Owner{}, Session{}, err
	}
	if !PasswordMatches(owner.PasswordHash, password) {
		return Owner{}, Session{}, ErrInvalidCredentials
	}
	sess, err := s.ownerSession(ctx, owner, remember, meta)
	if err != nil {
		return Owner{}, Session{}, err
	}
	return owner, sess, nil
}

// LoginEmployee authenticates an employee by code (or national id) and password.
func (s *Service) LoginEmployee(ctx context.Context, login, password string) (EmployeeAccount, Session, error) {
	emp, err := s.findActiveEmployee(ctx, login)
	if err != nil {
		return EmployeeAccount{}, Session{}, err
	}
	if err := checkEmployeePassword(emp, password); err != nil {
		return EmployeeAccount{}, Session{}, err
	}
	sess, err := s.employeeSession(emp)
	if err != nil {
		return EmployeeAccount{}, Session{}, err
	}
	return emp, sess, nil
}

// LoginExternal lets a caller application holding an API key sign an employee in.
// The gates run in order and the first failure is returned:
//  1. key resolves and is active (ErrInvalidAPIKey)
//  2. the key owner allows external login (ErrExternalLoginDisabled)
//  3. the employee exists and is active (ErrInvalidCredentials)
//  4. the employee belongs to the key owner (ErrInvalidCredentials)
//  5. the employee has a password (ErrNoPassword)
//  6. the password verifies (ErrInvalidCredentials)
func (s *Service) LoginExternal(ctx context.Context, rawKey, login, password string) (EmployeeAccount, Session, error) {
	key, err := s.keys.Lookup(ctx, rawKey)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return EmployeeAccount{}, Session{}, ErrInvalidAPIKey
		}
		return EmployeeAccount{}, Session{}, err
	}
	if !key.Active {
		return EmployeeAccount{}, Session{}, ErrInvalidAPIKey
	}
	if !key.OwnerExternalLogin {
		return EmployeeAccount{}, Session{}, ErrExternalLoginDisabled
	}

	emp, err := s.findActiveEmployee(ctx, login)
	if err != nil {
		return EmployeeAccount{}, Session{}, err
	}
	if emp.OwnerID != key.OwnerID {
		return EmployeeAccount{}, Session{}, ErrInvalidCredentials
	}
	if err := checkEmployeePassword(emp, password); err != nil {
		return EmployeeAccount{}, Session{}, err
	}

	if err := s.keys.Touch(ctx, key.ID); err != nil {
		return EmployeeAccount{}, Session{}, fmt.Errorf("touch api key: %w", err)
	}
	sess, err := s.employeeSession(emp)
	if err != nil {
		return EmployeeAccount{}, Session{}, err
	}
	return emp, sess, nil
}

// Owner loads the owner account behind an identity.
func (s *Service) Owner(ctx context.Context, id string) (Owner, error) {
	return s.store.OwnerByID(ctx, id)
}

// Employee loads the employee account behind an identity. Inactive employees
// are reported as not found.
func (s *Service) Employee(ctx context.Context, id string) (EmployeeAccount, error) {
	emp, err := s.store.EmployeeAccountByID(ctx, id)
	if err != nil {
		return EmployeeAccount{}, err
	}
	if !emp.Active {
		return EmployeeAccount{}, ErrNotFound
	}
	return emp, nil
}

// UpdateProfile changes name, email or avatar.
func (s *Service) UpdateProfile(ctx context.Context, id string, upd OwnerUpdate) (Owner, error) {
	if upd.Name != nil {
		name := strings.TrimSpace(*upd.Name)
		if name == "" {
			return Owner{}, fmt.Errorf("%w: el nombre es obligatorio", ErrInvalidInput)
		}
		upd.Name = &name
	}
	if upd.Email != nil {
		email, err := normalizeEmail(*upd.Email)
		if err != nil {
			return Owner{}, err
		}
		upd.Email = &email
	}
	if upd.AvatarURL != nil {
		avatar := strings.TrimSpace(*upd.AvatarURL)
		upd.AvatarURL = &avatar
	}
	return s.store.UpdateOwner(ctx, id, upd)
}

// ChangePassword replaces the owner password after checking the current one.
func (s *Service) ChangePassword(ctx context.Context, id, current, next string) error {
	owner, err := s.store.OwnerByID(ctx, id)
	if err != nil {
		return err
	}
	if !PasswordMatches(owner.PasswordHash, current) {
		return fmt.Errorf("%w: la contraseña actual es incorrecta", ErrInvalidInput)
	}
	if len(next) < minPasswordLen {
		return fmt.Errorf("%w: la contraseña debe tener al menos %d caracteres", ErrInvalidInput, minPasswordLen)
	}
	hash, err := HashPasswordCost(next, s.cost)
	if err != nil {
		return err
	}
	return s.store.SetOwnerPassword(ctx, id, hash)
}

// SetExternalLogin toggles whether API keys of this owner may sign employees in.
func (s *Service) SetExternalLogin(ctx context.Context, id string, enabled bool) (Owner, error) {
	return s.store.SetExternalLogin(ctx, id, enabled)
}

// DeleteAccount removes the owner and every record reachable from it.
func (s *Service) DeleteAccount(ctx context.Context, id string) error {
	return s.store.DeleteOwner(ctx, id)
}

func (s *Service) ownerSession(ctx context.Context, owner Owner, remember bool, meta ClientMeta) (Session, error) {
	ttl := s.ttl.Owner
	if remember {
		ttl = s.ttl.OwnerRemember
	}
	token, claims, err := s.codec.Issue(OwnerClaims{
		UserID: owner.ID,
		Email:  owner.Email,
		Role:   owner.Role,
	}, ttl)
	if err != nil {
		return Session{}, err
	}
	oc := claims.(OwnerClaims)
	s.sessions.Record(ctx, SessionRecord{
		OwnerID:   owner.ID,
		TokenID:   oc.TokenID,
		IP:        meta.IP,
		UserAgent: meta.UserAgent,
		CreatedAt: s.now().UTC(),
		ExpiresAt: oc.ExpiresAt,
	})
	return Session{Token: token, Claims: oc, ExpiresAt: oc.ExpiresAt, TTL: ttl}, nil
}

func (s *Service) employeeSession(emp EmployeeAccount) (Session, error) {
	token, claims, err := s.codec.Issue(EmployeeClaims{
		EmployeeID: emp.ID,
		Code:       emp.Code,
	}, s.ttl.Employee)
	if err != nil {
		return Session{}, err
	}
	return Session{Token: token, Claims: claims, ExpiresAt: claims.Expiry(), TTL: s.ttl.Employee}, nil
}

func (s *Service) findActiveEmployee(ctx context.Context, login string) (EmployeeAccount, error) {
	login = strings.TrimSpace(login)
	if login == "" {
		return EmployeeAccount{}, ErrInvalidCredentials
	}
	emp, err := s.store.EmployeeAccountByLogin(ctx, login)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return EmployeeAccount{}, ErrInvalidCredentials
		}
		return EmployeeAccount{}, err
	}
	if !emp.Active {
		return EmployeeAccount{}, ErrInvalidCredentials
	}
	return emp, nil
}

func checkEmployeePassword(emp EmployeeAccount, password string) error {
	if emp.PasswordHash == "" {
		return ErrNoPassword
	}
	if !PasswordMatches(emp.PasswordHash, password) {
		return ErrInvalidCredentials
	}
	return nil
}

// timingHash is compared against when the email is unknown so both paths cost one bcrypt check.
func (s *Service) timingHash() string {
	s.dummyOnce.Do(func() {
		s.dummyHash, _ = HashPasswordCost("asistencia-timing", s.cost)
	})
	return s.dummyHash
}

var emailValidator = validator.New()

func normalizeEmail(raw string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(raw))
	if email == "" {
		return "", fmt.Errorf("%w: el email es obligatorio", ErrInvalidInput)
	}
	if err := emailValidator.Var(email, "email"); err != nil {
		return "", fmt.Errorf("%w: el email no es válido", ErrInvalidInput)
	}
	return email, nil
}
