package httpapi

import (
	"net/http"
	"time"

	"asistencia.org/internal/auth"
)

const (
	// OwnerCookie carries the owner session token.
	OwnerCookie = "token"
	// EmployeeCookie carries the employee session token.
	EmployeeCookie = "empleado_token"
)

func (a *API) setSessionCookie(w http.ResponseWriter, name string, sess auth.Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    sess.Token,
		Path:     "/",
		MaxAge:   int(sess.TTL / time.Second),
		Expires:  sess.ExpiresAt,
		HttpOnly: true,
		Secure:   a.cfg.SecureCookies(),
		SameSite: http.SameSiteLaxMode,
	})
}

func (a *API) clearCookie(w http.ResponseWriter, name string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		Secure:   a.cfg.SecureCookies(),
		SameSite: http.SameSiteLaxMode,
	})
}
