package auth

import "strings"

// TokenKind discriminates the two token families.
type TokenKind string

const (
	KindOwner    TokenKind = "owner"
	KindEmployee TokenKind = "employee"
)

// Identity is the authenticated party a request acts as.
type Identity struct {
	Kind TokenKind
	ID   string
}

func OwnerIdentity(id string) Identity {
	return Identity{Kind: KindOwner, ID: strings.TrimSpace(id)}
}

func EmployeeIdentity(id string) Identity {
	return Identity{Kind: KindEmployee, ID: strings.TrimSpace(id)}
}

func (i Identity) IsOwner() bool { return i.Kind == KindOwner && i.ID != "" }
func (i Identity) IsEmployee() bool { return i.Kind == KindEmployee && i.ID != "" }

// Role is the closed set of owner account roles.
type Role string

const (
	RoleAdmin Role = "ADMIN"
	RoleUser  Role = "USUARIO"
)

func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleUser
}
