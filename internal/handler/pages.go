// Package handler contains HTTP request handlers for the plant care tracker.
//
// WHAT IS A HANDLER?
// In Go, an HTTP handler is anything that implements the http.Handler interface:
//
//	type Handler interface {
//	    ServeHTTP(ResponseWriter, *Request)
//	}
//
// Or more commonly, we use http.HandlerFunc, a function with the right
// signature. Chi's router accepts these directly.
//
// HANDLER RESPONSIBILITIES:
// 1. Parse the incoming HTTP request (path params, query, form or JSON body)
// 2. Call the service layer
// 3. Write the HTTP response: JSON for API clients, or a 303 redirect with a
//    flash message for browsers (Accept: text/html)
//
// Handlers should NOT contain business logic. Ownership, validation of
// domain rules and persistence all live in internal/service.
package handler

import (
	"embed"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"

	"github.com/sakif/houseplant-tracker/internal/auth"
)

//go:embed templates/*.html
var templateFS embed.FS

// pageNames are the templates that each pair with base.html.
var pageNames = []string{"landing", "login", "register"}

// Pages renders the few server-side HTML pages: the landing page and the
// login and registration forms. Everything else is JSON.
//
// Templates are parsed once at startup. Each page is parsed together with
// base.html so that base's {{template "content" .}} resolves to that page's
// {{define "content"}} block.
type Pages struct {
	templates map[string]*template.Template
	flashes   *FlashStore
	logger    *slog.Logger
}

// pageData is what every page template receives.
type pageData struct {
	Title    string
	SignedIn bool
	Flashes  []Flash
	Next     string
	Values   map[string]string
	Errors   map[string]string
}

// NewPages parses the embedded templates.
func NewPages(flashes *FlashStore, logger *slog.Logger) (*Pages, error) {
	p := &Pages{
		templates: make(map[string]*template.Template, len(pageNames)),
		flashes:   flashes,
		logger:    logger,
	}
	for _, name := range pageNames {
		tmpl, err := template.ParseFS(templateFS, "templates/base.html", "templates/"+name+".html")
		if err != nil {
			return nil, fmt.Errorf("handler: parsing %s template: %w", name, err)
		}
		p.templates[name] = tmpl
	}
	return p, nil
}

// render writes page name with status. Flashes queued by earlier requests
// are consumed here.
func (p *Pages) render(w http.ResponseWriter, r *http.Request, status int, name string, data pageData) {
	tmpl, ok := p.templates[name]
	if !ok {
		p.logger.Error("unknown page", slog.String("page", name))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	_, data.SignedIn = auth.PrincipalFromContext(r.Context())
	data.Flashes = append(p.flashes.Pop(w, r), data.Flashes...)
	if data.Values == nil {
		data.Values = map[string]string{}
	}
	if data.Errors == nil {
		data.Errors = map[string]string{}
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := tmpl.ExecuteTemplate(w, "base", data); err != nil {
		p.logger.Error("failed to render template",
			slog.String("page", name),
			slog.String("error", err.Error()),
		)
	}
}

// HandleLanding serves the landing page, or sends signed-in users straight
// to their plants.
//
// HTTP: GET /
func (p *Pages) HandleLanding(w http.ResponseWriter, r *http.Request) {
	if _, ok := auth.PrincipalFromContext(r.Context()); ok {
		http.Redirect(w, r, ListingPath, http.StatusSeeOther)
		return
	}
	p.render(w, r, http.StatusOK, "landing", pageData{Title: "Welcome"})
}
