package httpapi

import (
	"context"
	"database/sql"
	"errors"
	"html/template"
	"net/http"

	"github.com/go-playground/validator/v10"

	"asistencia.org/api/spec"
	"asistencia.org/internal/auth"
	"asistencia.org/internal/config"
	"asistencia.org/internal/hr"
	"asistencia.org/internal/obs"
)

// Readiness reports whether the service can take traffic.
type Readiness interface {
	Check(ctx context.Context) error
}

// ReadyProbe pings the database. A nil DB (in-memory mode) is always ready.
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

// Deps are the collaborators of the HTTP layer.
type Deps struct {
	Config  config.Config
	Auth    *auth.Service
	HR      *hr.Service
	Ready   Readiness
	Version string
}

// API is the HTTP surface: gate, handlers and middleware chain.
type API struct {
	mux      *http.ServeMux
	cfg      config.Config
	auth     *auth.Service
	hr       *hr.Service
	ready    Readiness
	version  string
	validate *validator.Validate
	limiter  *rateLimiter
	pages    map[string]*template.Template
}

func New(d Deps) (*API, error) {
	if d.Auth == nil {
		return nil, errors.New("httpapi: auth service is required")
	}
	if d.HR == nil {
		return nil, errors.New("httpapi: hr service is required")
	}
	if d.Ready == nil {
		d.Ready = ReadyProbe{}
	}
	pages, err := parsePages()
	if err != nil {
		return nil, err
	}
	a := &API{
		mux:      http.NewServeMux(),
		cfg:      d.Config,
		auth:     d.Auth,
		hr:       d.HR,
		ready:    d.Ready,
		version:  d.Version,
		validate: newValidator(),
		pages:    pages,
	}
	if rl := d.Config.HTTP.RateLimit; rl.PerSecond > 0 {
		a.limiter = newRateLimiter(rl.Burst, rl.PerSecond)
	}
	a.routes()
	return a, nil
}

func (a *API) routes() {
	m := a.mux

	// operations
	m.HandleFunc("GET /healthz", a.Healthz)
	m.HandleFunc("GET /readyz", a.Ready)
	m.Handle("GET /metrics", obs.Handler())
	m.HandleFunc("GET /openapi.yaml", a.OpenAPISpec)

	// pages
	m.HandleFunc("GET /{$}", a.page("home"))
	m.HandleFunc("GET /login", a.page("login"))
	m.HandleFunc("GET /register", a.page("register"))
	m.HandleFunc("GET /logout", a.logoutPage)
	m.HandleFunc("GET /portal/login", a.page("portal_login"))
	m.HandleFunc("GET /dashboard", a.page("dashboard"))
	m.HandleFunc("GET /portal", a.page("portal"))
	m.Handle("GET /assets/", http.StripPrefix("/assets/", http.FileServerFS(assetsFS())))

	// owner auth and profile
	m.HandleFunc("POST /api/auth/register", a.register)
	m.HandleFunc("POST /api/auth/login", a.login)
	m.HandleFunc("POST /api/auth/logout", a.logout)
	m.HandleFunc("GET /api/auth/me", a.me)
	m.HandleFunc("PUT /api/perfil", a.updateProfile)
	m.HandleFunc("PUT /api/perfil/password", a.changePassword)
	m.HandleFunc("PUT /api/perfil/login-externo", a.setExternalLogin)
	m.HandleFunc("DELETE /api/perfil", a.deleteAccount)

	// api keys
	m.HandleFunc("GET /api/api-keys", a.listAPIKeys)
	m.HandleFunc("POST /api/api-keys", a.createAPIKey)
	m.HandleFunc("PATCH /api/api-keys/{id}", a.updateAPIKey)
	m.HandleFunc("DELETE /api/api-keys/{id}", a.deleteAPIKey)

	// external login
	m.HandleFunc("POST /api/externo/login", a.externalLogin)

	// employee portal
	m.HandleFunc("POST /api/portal/login", a.portalLogin)
	m.HandleFunc("POST /api/portal/logout", a.portalLogout)
	m.HandleFunc("GET /api/portal/me", a.portalMe)
	m.HandleFunc("GET /api/portal/asistencias", a.portalListAttendance)
	m.HandleFunc("POST /api/portal/asistencias", a.portalRecordAttendance)
	m.HandleFunc("GET /api/portal/documentacion", a.portalListDocuments)
	m.HandleFunc("GET /api/portal/documentacion/{id}", a.getDocument)
	m.HandleFunc("GET /api/portal/solicitudes", a.portalListRequests)
	m.HandleFunc("POST /api/portal/solicitudes", a.portalCreateRequest)
	m.HandleFunc("GET /api/portal/solicitudes/{id}", a.getRequest)
	m.HandleFunc("GET /api/portal/tareas", a.portalListTasks)
	m.HandleFunc("PATCH /api/portal/tareas/{id}", a.portalUpdateTask)

	// owner resources
	m.HandleFunc("GET /api/empresas", a.listCompanies)
	m.HandleFunc("POST /api/empresas", a.createCompany)
	m.HandleFunc("GET /api/empresas/{id}", a.getCompany)
	m.HandleFunc("PUT /api/empresas/{id}", a.updateCompany)
	m.HandleFunc("DELETE /api/empresas/{id}", a.deleteCompany)

	m.HandleFunc("GET /api/empleados", a.listEmployees)
	m.HandleFunc("POST /api/empleados", a.createEmployee)
	m.HandleFunc("GET /api/empleados/{id}", a.getEmployee)
	m.HandleFunc("PUT /api/empleados/{id}", a.updateEmployee)
	m.HandleFunc("DELETE /api/empleados/{id}", a.deleteEmployee)

	m.HandleFunc("GET /api/proyectos", a.listProjects)
	m.HandleFunc("POST /api/proyectos", a.createProject)
	m.HandleFunc("GET /api/proyectos/{id}", a.getProject)
	m.HandleFunc("PUT /api/proyectos/{id}", a.updateProject)
	m.HandleFunc("DELETE /api/proyectos/{id}", a.deleteProject)

	m.HandleFunc("GET /api/asistencias", a.listAttendance)
	m.HandleFunc("POST /api/asistencias", a.recordAttendance)
	m.HandleFunc("GET /api/asistencias/{id}", a.getAttendance)
	m.HandleFunc("DELETE /api/asistencias/{id}", a.deleteAttendance)

	m.HandleFunc("GET /api/solicitudes", a.listRequests)
	m.HandleFunc("POST /api/solicitudes", a.createRequest)
	m.HandleFunc("GET /api/solicitudes/{id}", a.getRequest)
	m.HandleFunc("PATCH /api/solicitudes/{id}", a.setRequestStatus)
	m.HandleFunc("DELETE /api/solicitudes/{id}", a.deleteRequest)

	m.HandleFunc("GET /api/documentacion", a.listDocuments)
	m.HandleFunc("POST /api/documentacion", a.createDocument)
	m.HandleFunc("GET /api/documentacion/{id}", a.getDocument)
	m.HandleFunc("DELETE /api/documentacion/{id}", a.deleteDocument)

	m.HandleFunc("GET /api/tareas", a.listTasks)
	m.HandleFunc("POST /api/tareas", a.createTask)
	m.HandleFunc("GET /api/tareas/{id}", a.getTask)
	m.HandleFunc("PUT /api/tareas/{id}", a.updateTask)
	m.HandleFunc("DELETE /api/tareas/{id}", a.deleteTask)

	m.HandleFunc("/api/", func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusNotFound, msgNotFound)
	})
}

// Handler returns the mux wrapped in the full middleware chain.
func (a *API) Handler() http.Handler {
	var h http.Handler = a.mux
	h = a.withGate(h)
	if a.cfg.HTTP.MaxBodyBytes > 0 {
		h = MaxBodyBytes(h, a.cfg.HTTP.MaxBodyBytes)
	}
	if a.limiter != nil {
		h = a.limiter.middleware(h)
	}
	h = CORS(h, a.cfg.HTTP.CORSOrigins)
	h = SecurityHeaders(h, a.cfg.Env != config.EnvProduction)
	h = Logging(h)
	h = ClientIP(h, a.cfg.HTTP.TrustedNets)
	h = RequestID(h)
	return obs.Instrument(h)
}

// --- operations ---

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": obs.ServiceName,
		"version": a.version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	if err := a.ready.Check(r.Context()); err != nil {
		obs.SetReady(false)
		obs.Logger().Warn().Err(err).Msg("readiness check failed")
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "not_ready"})
		return
	}
	obs.SetReady(true)
	writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
}

func (a *API) OpenAPISpec(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/yaml; charset=utf-8")
	_, _ = w.Write(spec.OpenAPI)
}
