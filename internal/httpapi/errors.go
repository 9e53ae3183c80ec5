package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"asistencia.org/internal/audit"
	"asistencia.org/internal/auth"
	"asistencia.org/internal/obs"
)

const (
	msgInvalidCredentials = "Credenciales inválidas"
	msgInvalidAPIKey      = "API Key inválida o inactiva"
	msgExternalDisabled   = "El login externo de empleados no está habilitado. Actívalo desde tu perfil para usar API Keys."
	msgNoPassword         = "El empleado no tiene contraseña configurada"
	msgUnauthenticated    = "No autenticado"
	msgInvalidSession     = "Sesión inválida o expirada"
	msgNotFound           = "Recurso no encontrado"
	msgInvalidData        = "Datos inválidos"
	msgInvalidJSON        = "JSON inválido"
	msgBodyTooLarge       = "El cuerpo de la petición es demasiado grande"
	msgConflict           = "El recurso ya existe"
	msgInternal           = "Error interno del servidor"
)

var conflictMessages = map[string]string{
	auth.FieldEmail:      "El email ya está registrado",
	auth.FieldCode:       "El código de empleado ya existe",
	auth.FieldNationalID: "El DNI ya está registrado",
}

type fieldIssue struct {
	Field string `json:"campo"`
	Rule  string `json:"regla"`
}

type errorBody struct {
	Error     string       `json:"error"`
	Details   []fieldIssue `json:"details,omitempty"`
	RequestID string       `json:"request_id,omitempty"`
}

// validationError is a request body that failed its struct tags.
type validationError struct {
	issues []fieldIssue
}

func (e *validationError) Error() string { return "validation failed" }

// badRequestError carries a caller-facing 400 message.
type badRequestError struct {
	msg string
}

func (e *badRequestError) Error() string { return e.msg }

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, code int, msg string) {
	writeJSON(w, code, errorBody{Error: msg, RequestID: audit.RequestIDFromContext(r.Context())})
}

// handleError maps service errors onto status codes. Unexpected errors are
// logged and answered with a generic 500.
func (a *API) handleError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		verr     *validationError
		breq     *badRequestError
		conflict *auth.ConflictError
	)
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, errorBody{
			Error:     msgInvalidData,
			Details:   verr.issues,
			RequestID: audit.RequestIDFromContext(r.Context()),
		})
	case errors.As(err, &breq):
		writeError(w, r, http.StatusBadRequest, breq.msg)
	case errors.As(err, &conflict):
		msg, ok := conflictMessages[conflict.Field]
		if !ok {
			msg = msgConflict
		}
		writeError(w, r, http.StatusBadRequest, msg)
	case errors.Is(err, auth.ErrInvalidInput):
		writeError(w, r, http.StatusBadRequest, inputMessage(err))
	case errors.Is(err, auth.ErrInvalidCredentials):
		writeError(w, r, http.StatusUnauthorized, msgInvalidCredentials)
	case errors.Is(err, auth.ErrInvalidAPIKey):
		writeError(w, r, http.StatusUnauthorized, msgInvalidAPIKey)
	case errors.Is(err, auth.ErrNoPassword):
		writeError(w, r, http.StatusUnauthorized, msgNoPassword)
	case errors.Is(err, auth.ErrInvalidToken), errors.Is(err, auth.ErrUnauthorized):
		writeError(w, r, http.StatusUnauthorized, msgUnauthenticated)
	case errors.Is(err, auth.ErrExternalLoginDisabled):
		writeError(w, r, http.StatusForbidden, msgExternalDisabled)
	case errors.Is(err, auth.ErrNotFound):
		writeError(w, r, http.StatusNotFound, msgNotFound)
	default:
		obs.Logger().Error().Err(err).
			Str("request_id", audit.RequestIDFromContext(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Msg("request failed")
		writeError(w, r, http.StatusInternalServerError, msgInternal)
	}
}

// inputMessage strips the sentinel prefix from a wrapped ErrInvalidInput.
func inputMessage(err error) string {
	msg := err.Error()
	prefix := auth.ErrInvalidInput.Error() + ": "
	if i := strings.Index(msg, prefix); i >= 0 {
		return msg[i+len(prefix):]
	}
	return msgInvalidData
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// decode reads a JSON body into dst and validates it. An empty body decodes as {}.
func (a *API) decode(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return &badRequestError{msg: msgBodyTooLarge}
		}
		return &badRequestError{msg: msgInvalidJSON}
	}
	if err := a.validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			issues := make([]fieldIssue, 0, len(verrs))
			for _, fe := range verrs {
				issues = append(issues, fieldIssue{Field: fe.Field(), Rule: fe.Tag()})
			}
			return &validationError{issues: issues}
		}
		return err
	}
	return nil
}
