package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"asistencia.org/internal/audit"
	"asistencia.org/internal/auth"
	"asistencia.org/internal/obs"
)

type createAPIKeyRequest struct {
	Label string `json:"nombre" validate:"required,max=100"`
}

type updateAPIKeyRequest struct {
	Active *bool `json:"activa" validate:"required"`
}

type employeeLoginRequest struct {
	Login    string `json:"codigo" validate:"required"`
	Password string `json:"password" validate:"required"`
}

func (a *API) listAPIKeys(w http.ResponseWriter, r *http.Request) {
	who, ok := ownerIdentity(r)
	if !ok {
		writeError(w, r, http.StatusUnauthorized, msgUnauthenticated)
		return
	}
	keys, err := a.auth.APIKeys().List(r.Context(), who.ID)
	if err != nil {
		a.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"apiKeys": keys})
}

// createAPIKey returns the raw key exactly once.
func (a *API) createAPIKey(w http.ResponseWriter, r *http.Request) {
	who, ok := ownerIdentity(r)
	if !ok {
		writeError(w, r, http.StatusUnauthorized, msgUnauthenticated)
		return
	}
	var req createAPIKeyRequest
	if err := a.decode(r, &req); err != nil {
		a.handleError(w, r, err)
		return
	}
	key, raw, err := a.auth.APIKeys().Issue(r.Context(), who.ID, req.Label)
	if err != nil {
		a.handleError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "apikey.create", map[string]any{"api_key_id": key.ID, "prefix": key.Prefix})
	writeJSON(w, http.StatusCreated, map[string]any{"apiKey": key, "key": raw})
}

func (a *API) updateAPIKey(w http.ResponseWriter, r *http.Request) {
	who, ok := ownerIdentity(r)
	if !ok {
		writeError(w, r, http.StatusUnauthorized, msgUnauthenticated)
		return
	}
	var req updateAPIKeyRequest
	if err := a.decode(r, &req); err != nil {
		a.handleError(w, r, err)
		return
	}
	id := r.PathValue("id")
	key, err := a.auth.APIKeys().SetActive(r.Context(), id, who.ID, *req.Active)
	if err != nil {
		a.handleError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "apikey.update", map[string]any{"api_key_id": id, "active": key.Active})
	writeJSON(w, http.StatusOK, map[string]any{"apiKey": key})
}

func (a *API) deleteAPIKey(w http.ResponseWriter, r *http.Request) {
	who, ok := ownerIdentity(r)
	if !ok {
		writeError(w, r, http.StatusUnauthorized, msgUnauthenticated)
		return
	}
	id := r.PathValue("id")
	if err := a.auth.APIKeys().Delete(r.Context(), id, who.ID); err != nil {
		a.handleError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "apikey.delete", map[string]any{"api_key_id": id})
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

// externalLogin signs an employee in on behalf of a caller application holding
// an API key. The token is returned in the body; no cookie is set.
func (a *API) externalLogin(w http.ResponseWriter, r *http.Request) {
	var req employeeLoginRequest
	if err := a.decode(r, &req); err != nil {
		a.handleError(w, r, err)
		return
	}
	raw := strings.TrimSpace(r.Header.Get(auth.APIKeyHeader))
	emp, sess, err := a.auth.LoginExternal(r.Context(), raw, req.Login, req.Password)
	if err != nil {
		obs.RecordLogin("external", loginOutcome(err))
		_ = audit.LogEvent(r.Context(), "external.login_failed", map[string]any{
			"reason": loginOutcome(err),
			"ip":     clientIP(r),
		})
		a.handleError(w, r, err)
		return
	}
	obs.RecordLogin("external", "success")
	ctx := auth.ContextWithClaims(r.Context(), sess.Claims)
	_ = audit.LogEvent(ctx, "external.login", map[string]any{"employee_code": emp.Code})
	writeJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"token":    sess.Token,
		"empleado": emp,
	})
}

// loginOutcome is the bounded metric label for a failed login.
func loginOutcome(err error) string {
	switch {
	case errors.Is(err, auth.ErrInvalidAPIKey):
		return "invalid_api_key"
	case errors.Is(err, auth.ErrExternalLoginDisabled):
		return "external_disabled"
	case errors.Is(err, auth.ErrNoPassword):
		return "no_password"
	case errors.Is(err, auth.ErrInvalidCredentials):
		return "invalid_credentials"
	default:
		return "error"
	}
}
