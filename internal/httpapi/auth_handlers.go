package httpapi

import (
	"errors"
	"net/http"

	"asistencia.org/internal/audit"
	"asistencia.org/internal/auth"
	"asistencia.org/internal/obs"
)

type registerRequest struct {
	Name     string `json:"nombre" validate:"max=120"`
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
	Remember bool   `json:"remember"`
}

type profileRequest struct {
	Name      *string `json:"nombre" validate:"omitempty,max=120"`
	Email     *string `json:"email"`
	AvatarURL *string `json:"avatarUrl" validate:"omitempty,max=500"`
}

type passwordRequest struct {
	Current string `json:"actual" validate:"required"`
	Next    string `json:"nueva" validate:"required"`
}

type externalLoginFlagRequest struct {
	Enabled *bool `json:"habilitado" validate:"required"`
}

func clientMeta(r *http.Request) auth.ClientMeta {
	return auth.ClientMeta{IP: clientIP(r), UserAgent: r.UserAgent()}
}

// ownerIdentity returns the owner identity attached by the gate. Handlers behind the
// gate always have one; the check keeps a misrouted request from panicking.
func ownerIdentity(r *http.Request) (auth.Identity, bool) {
	c, ok := auth.OwnerFromContext(r.Context())
	if !ok {
		return auth.Identity{}, false
	}
	return c.Identity(), true
}

func (a *API) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := a.decode(r, &req); err != nil {
		a.handleError(w, r, err)
		return
	}
	reg, sess, err := a.auth.Register(r.Context(), auth.RegisterInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
	}, clientMeta(r))
	if err != nil {
		obs.RecordLogin("register", "error")
		a.handleError(w, r, err)
		return
	}
	obs.RecordLogin("register", "success")
	a.setSessionCookie(w, OwnerCookie, sess)
	ctx := auth.ContextWithClaims(r.Context(), sess.Claims)
	_ = audit.LogEvent(ctx, "auth.register", map[string]any{
		"company_id":    reg.Company.ID,
		"employee_code": reg.Employee.Code,
	})
	writeJSON(w, http.StatusCreated, map[string]any{
		"success":  true,
		"usuario":  reg.Owner,
		"empresa":  reg.Company,
		"empleado": reg.Employee,
	})
}

func (a *API) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := a.decode(r, &req); err != nil {
		a.handleError(w, r, err)
		return
	}
	owner, sess, err := a.auth.LoginOwner(r.Context(), req.Email, req.Password, req.Remember, clientMeta(r))
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			obs.RecordLogin("owner", "invalid_credentials")
			_ = audit.LogEvent(r.Context(), "auth.login_failed", map[string]any{"ip": clientIP(r)})
		} else {
			obs.RecordLogin("owner", "error")
		}
		a.handleError(w, r, err)
		return
	}
	obs.RecordLogin("owner", "success")
	a.setSessionCookie(w, OwnerCookie, sess)
	ctx := auth.ContextWithClaims(r.Context(), sess.Claims)
	_ = audit.LogEvent(ctx, "auth.login", map[string]any{"remember": req.Remember})
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "usuario": owner})
}

func (a *API) logout(w http.ResponseWriter, r *http.Request) {
	a.clearCookie(w, OwnerCookie)
	_ = audit.LogEvent(r.Context(), "auth.logout", nil)
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (a *API) me(w http.ResponseWriter, r *http.Request) {
	who, ok := ownerIdentity(r)
	if !ok {
		writeError(w, r, http.StatusUnauthorized, msgUnauthenticated)
		return
	}
	owner, err := a.auth.Owner(r.Context(), who.ID)
	if err != nil {
		if errors.Is(err, auth.ErrNotFound) {
			writeError(w, r, http.StatusUnauthorized, msgInvalidSession)
			return
		}
		a.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"usuario": owner})
}

func (a *API) updateProfile(w http.ResponseWriter, r *http.Request) {
	who, ok := ownerIdentity(r)
	if !ok {
		writeError(w, r, http.StatusUnauthorized, msgUnauthenticated)
		return
	}
	var req profileRequest
	if err := a.decode(r, &req); err != nil {
		a.handleError(w, r, err)
		return
	}
	owner, err := a.auth.UpdateProfile(r.Context(), who.ID, auth.OwnerUpdate{
		Name:      req.Name,
		Email:     req.Email,
		AvatarURL: req.AvatarURL,
	})
	if err != nil {
		a.handleError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "account.update", nil)
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "usuario": owner})
}

func (a *API) changePassword(w http.ResponseWriter, r *http.Request) {
	who, ok := ownerIdentity(r)
	if !ok {
		writeError(w, r, http.StatusUnauthorized, msgUnauthenticated)
		return
	}
	var req passwordRequest
	if err := a.decode(r, &req); err != nil {
		a.handleError(w, r, err)
		return
	}
	if err := a.auth.ChangePassword(r.Context(), who.ID, req.Current, req.Next); err != nil {
		a.handleError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "account.password", nil)
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (a *API) setExternalLogin(w http.ResponseWriter, r *http.Request) {
	who, ok := ownerIdentity(r)
	if !ok {
		writeError(w, r, http.StatusUnauthorized, msgUnauthenticated)
		return
	}
	var req externalLoginFlagRequest
	if err := a.decode(r, &req); err != nil {
		a.handleError(w, r, err)
		return
	}
	owner, err := a.auth.SetExternalLogin(r.Context(), who.ID, *req.Enabled)
	if err != nil {
		a.handleError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "account.external_login", map[string]any{"enabled": owner.ExternalLogin})
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "usuario": owner})
}

func (a *API) deleteAccount(w http.ResponseWriter, r *http.Request) {
	who, ok := ownerIdentity(r)
	if !ok {
		writeError(w, r, http.StatusUnauthorized, msgUnauthenticated)
		return
	}
	if err := a.auth.DeleteAccount(r.Context(), who.ID); err != nil {
		a.handleError(w, r, err)
		return
	}
	a.clearCookie(w, OwnerCookie)
	_ = audit.LogEvent(r.Context(), "account.delete", nil)
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}
