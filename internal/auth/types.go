package auth

import "time"

// DefaultCompanyName names the company provisioned at registration.
const DefaultCompanyName = "Mi Empresa"

// Owner is an administrator account.
type Owner struct {
	ID            string    `json:"id"`
	Name          string    `json:"nombre"`
	Email         string    `json:"email"`
	PasswordHash  string    `json:"-"`
	Role          Role      `json:"rol"`
	AvatarURL     string    `json:"avatarUrl,omitempty"`
	ExternalLogin bool      `json:"loginEmpleadosExterno"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// EmployeeAccount is the authentication view of an employee, with its resolved owner.
type EmployeeAccount struct {
	ID           string `json:"id"`
	CompanyID    string `json:"empresaId"`
	OwnerID      string `json:"-"`
	Code         string `json:"codigo"`
	NationalID   string `json:"dni,omitempty"`
	Name         string `json:"nombre"`
	Email        string `json:"email,omitempty"`
	PasswordHash string `json:"-"`
	Active       bool   `json:"activo"`
}

// NewOwner is what registration persists in one transaction.
type NewOwner struct {
	Name         string
	Email        string
	PasswordHash string
	Role         Role
	CompanyName  string
}

// RegisteredCompany is the default company created with an owner.
type RegisteredCompany struct {
	ID   string `json:"id"`
	Name string `json:"nombre"`
}

// Registration is the result of creating an owner with its defaults.
type Registration struct {
	Owner    Owner             `json:"usuario"`
	Company  RegisteredCompany `json:"empresa"`
	Employee EmployeeAccount   `json:"empleado"`
}

// OwnerUpdate carries optional profile changes.
type OwnerUpdate struct {
	Name      *string
	Email     *string
	AvatarURL *string
}

// APIKey is a stored key. The raw value is never persisted.
type APIKey struct {
	ID         string     `json:"id"`
	OwnerID    string     `json:"-"`
	Label      string     `json:"nombre"`
	Prefix     string     `json:"prefijo"`
	Hash       string     `json:"-"`
	Active     bool       `json:"activa"`
	LastUsedAt *time.Time `json:"ultimoUso,omitempty"`
	CreatedAt  time.Time  `json:"createdAt"`
}

// APIKeyRecord is a key resolved together with its owner's external-login flag.
type APIKeyRecord struct {
	APIKey
	OwnerExternalLogin bool
}

// SessionRecord is the audit trail of an issued owner token.
type SessionRecord struct {
	ID        string
	OwnerID   string
	TokenID   string
	IP        string
	UserAgent string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// ClientMeta describes the caller for session bookkeeping.
type ClientMeta struct {
	IP        string
	UserAgent string
}

// Session is an issued token with its lifetime, ready to become a cookie.
type Session struct {
	Token     string
	Claims    Claims
	ExpiresAt time.Time
	TTL       time.Duration
}
