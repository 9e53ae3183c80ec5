package httpapi

import (
	"net/http"
	"strings"

	"asistencia.org/internal/audit"
	"asistencia.org/internal/auth"
	"asistencia.org/internal/obs"
)

// routeClass is the authorization requirement of a path.
type routeClass int

const (
	classPublic routeClass = iota
	classEmployee
	classOwner
)

func (c routeClass) String() string {
	switch c {
	case classPublic:
		return "public"
	case classEmployee:
		return "employee"
	default:
		return "owner"
	}
}

const (
	authHeader = "Authorization"
	bearer     = "Bearer "

	ownerLoginPage    = "/login"
	employeeLoginPage = "/portal/login"
)

var publicPaths = map[string]bool{
	"/":                  true,
	"/login":             true,
	"/register":          true,
	"/logout":            true,
	"/portal/login":      true,
	"/healthz":           true,
	"/readyz":            true,
	"/metrics":           true,
	"/openapi.yaml":      true,
	"/api/auth/login":    true,
	"/api/auth/register": true,
	"/api/auth/logout":   true,
	"/api/portal/login":  true,
	"/api/portal/logout": true,
	"/api/externo/login": true,
}

var publicPrefixes = []string{
	"/assets/",
}

var employeePrefixes = []string{
	"/portal/",
	"/api/portal/",
}

// classify checks Public first, then Employee-scoped; everything else is Owner-scoped.
func classify(path string) routeClass {
	if publicPaths[path] {
		return classPublic
	}
	for _, p := range publicPrefixes {
		if strings.HasPrefix(path, p) {
			return classPublic
		}
	}
	if path == "/portal" {
		return classEmployee
	}
	for _, p := range employeePrefixes {
		if strings.HasPrefix(path, p) {
			return classEmployee
		}
	}
	return classOwner
}

func isAPIPath(path string) bool {
	return strings.HasPrefix(path, "/api/")
}

// withGate authenticates every non-public request with the token kind its route
// class requires and attaches the verified claims to the context.
func (a *API) withGate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}
		class := classify(r.URL.Path)
		if class == classPublic {
			next.ServeHTTP(w, r)
			return
		}

		want := auth.KindOwner
		if class == classEmployee {
			want = auth.KindEmployee
		}
		token, fromCookie := credential(r, class)
		if token == "" {
			a.reject(w, r, class, "missing", false)
			return
		}
		claims, err := a.auth.Authenticate(token)
		if err != nil {
			a.reject(w, r, class, "invalid", fromCookie)
			return
		}
		if claims.Kind() != want {
			a.reject(w, r, class, "wrong_kind", fromCookie)
			return
		}
		ctx := auth.ContextWithClaims(r.Context(), claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// credential returns the token for class and whether it came from a cookie.
// Employee API routes also accept a bearer token from external login.
func credential(r *http.Request, class routeClass) (string, bool) {
	name := OwnerCookie
	if class == classEmployee {
		name = EmployeeCookie
	}
	if c, err := r.Cookie(name); err == nil && strings.TrimSpace(c.Value) != "" {
		return strings.TrimSpace(c.Value), true
	}
	if class == classEmployee && isAPIPath(r.URL.Path) {
		return bearerToken(r.Header.Get(authHeader)), false
	}
	return "", false
}

func bearerToken(header string) string {
	header = strings.TrimSpace(header)
	if len(header) < len(bearer) || !strings.EqualFold(header[:len(bearer)], bearer) {
		return ""
	}
	return strings.TrimSpace(header[len(bearer):])
}

// reject answers 401 JSON on API paths and redirects page paths to the matching
// login page. A presented but unusable cookie is cleared on page paths only.
func (a *API) reject(w http.ResponseWriter, r *http.Request, class routeClass, reason string, clearCookie bool) {
	obs.RecordGateRejection(class.String(), reason)
	obs.Logger().Debug().
		Str("request_id", audit.RequestIDFromContext(r.Context())).
		Str("path", r.URL.Path).
		Str("class", class.String()).
		Str("reason", reason).
		Msg("gate rejected request")

	if isAPIPath(r.URL.Path) {
		msg := msgUnauthenticated
		if reason != "missing" {
			msg = msgInvalidSession
		}
		writeError(w, r, http.StatusUnauthorized, msg)
		return
	}

	target := ownerLoginPage
	cookie := OwnerCookie
	if class == classEmployee {
		target = employeeLoginPage
		cookie = EmployeeCookie
	}
	if clearCookie {
		a.clearCookie(w, cookie)
	}
	http.Redirect(w, r, target, http.StatusFound)
}
