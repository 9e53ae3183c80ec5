package httpapi

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
)

//go:embed web
var webFS embed.FS

var pageTitles = map[string]string{
	"home":         "Inicio",
	"login":        "Iniciar sesión",
	"register":     "Crear cuenta",
	"portal_login": "Portal del empleado",
	"dashboard":    "Panel",
	"portal":       "Mi portal",
}

type pageData struct {
	Title   string
	Version string
}

func parsePages() (map[string]*template.Template, error) {
	pages := make(map[string]*template.Template, len(pageTitles))
	for name := range pageTitles {
		t, err := template.ParseFS(webFS, "web/templates/layout.html", "web/templates/"+name+".html")
		if err != nil {
			return nil, fmt.Errorf("parse page %s: %w", name, err)
		}
		pages[name] = t
	}
	return pages, nil
}

func assetsFS() fs.FS {
	sub, err := fs.Sub(webFS, "web/assets")
	if err != nil {
		panic(err)
	}
	return sub
}

// page renders into a buffer first so a template error still yields a clean 500.
func (a *API) page(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		t, ok := a.pages[name]
		if !ok {
			http.NotFound(w, r)
			return
		}
		var buf bytes.Buffer
		if err := t.ExecuteTemplate(&buf, "layout", pageData{Title: pageTitles[name], Version: a.version}); err != nil {
			a.handleError(w, r, fmt.Errorf("render page %s: %w", name, err))
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Cache-Control", "no-store")
		_, _ = buf.WriteTo(w)
	}
}

// logoutPage clears the owner cookie and sends the browser to the login page.
func (a *API) logoutPage(w http.ResponseWriter, r *http.Request) {
	a.clearCookie(w, OwnerCookie)
	http.Redirect(w, r, ownerLoginPage, http.StatusFound)
}
