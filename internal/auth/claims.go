package auth

import "time"

// Claims is either OwnerClaims or EmployeeClaims. Callers switch on the concrete type.
type Claims interface {
	Kind() TokenKind
	Identity() Identity
	Expiry() time.Time
	isClaims()
}

// OwnerClaims is carried by the admin session token.
type OwnerClaims struct {
	UserID    string
	Email     string
	Role      Role
	TokenID   string
	ExpiresAt time.Time
}

func (OwnerClaims) Kind() TokenKind { return KindOwner }
func (c OwnerClaims) Identity() Identity { return OwnerIdentity(c.UserID) }
func (c OwnerClaims) Expiry() time.Time { return c.ExpiresAt }
func (OwnerClaims) isClaims() {}

// EmployeeClaims is carried by the employee session token.
type EmployeeClaims struct {
	EmployeeID string
	Code       string
	TokenID    string
	ExpiresAt  time.Time
}

func (EmployeeClaims) Kind() TokenKind { return KindEmployee }
func (c EmployeeClaims) Identity() Identity { return EmployeeIdentity(c.EmployeeID) }
func (c EmployeeClaims) Expiry() time.Time { return c.ExpiresAt }
func (EmployeeClaims) isClaims() {}
