package auth

import "context"

type claimsContextKey struct{}

// ContextWithClaims attaches verified token claims to the context.
func ContextWithClaims(ctx context.Context, c Claims) context.Context {
	if c == nil {
		return ctx
	}
	return context.WithValue(ctx, claimsContextKey{}, c)
}

// ClaimsFromContext returns the verified claims, if any.
func ClaimsFromContext(ctx context.Context) (Claims, bool) {
	if ctx == nil {
		return nil, false
	}
	c, ok := ctx.Value(claimsContextKey{}).(Claims)
	return c, ok && c != nil
}

// OwnerFromContext returns owner claims; false for employee or missing claims.
func OwnerFromContext(ctx context.Context) (OwnerClaims, bool) {
	c, ok := ClaimsFromContext(ctx)
	if !ok {
		return OwnerClaims{}, false
	}
	oc, ok := c.(OwnerClaims)
	return oc, ok
}

// EmployeeFromContext returns employee claims; false for owner or missing claims.
func EmployeeFromContext(ctx context.Context) (EmployeeClaims, bool) {
	c, ok := ClaimsFromContext(ctx)
	if !ok {
		return EmployeeClaims{}, false
	}
	ec, ok := c.(EmployeeClaims)
	return ec, ok
}

// IdentityFromContext returns the identity of whichever claims are attached.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	c, ok := ClaimsFromContext(ctx)
	if !ok {
		return Identity{}, false
	}
	return c.Identity(), true
}
