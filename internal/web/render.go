// Package web renders the server-side HTML pages.
package web

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"log"
	"net/http"
	"strconv"
	"time"

	"rainlog/internal/auth"
	"rainlog/internal/calendar"
	rainfall "rainlog/internal/rainfall/domain"
)

//go:embed templates/*.html
var templateFS embed.FS

// Page names.
const (
	PageIndex         = "index"
	PageLogin         = "login"
	PageRegister      = "register"
	PageEnter         = "enter"
	PageDashboard     = "dashboard"
	PageEdit          = "edit"
	PageDeleteConfirm = "delete_confirm"
	PageError         = "error"
)

var pageNames = []string{
	PageIndex, PageLogin, PageRegister, PageEnter, PageDashboard, PageEdit, PageDeleteConfirm, PageError,
}

// Page is the data passed to every template.
type Page struct {
	Title     string
	Identity  auth.Identity
	SignedIn  bool
	CSRFToken string
	Flash     string
	Data      any
}

// Renderer executes the embedded page templates.
type Renderer struct {
	pages  map[string]*template.Template
	loc    *time.Location
	logger *log.Logger
}

// NewRenderer parses every page against the shared layout. Jalali values are
// displayed as wall clock in loc.
func NewRenderer(loc *time.Location, logger *log.Logger) (*Renderer, error) {
	if loc == nil {
		return nil, errors.New("web renderer: nil location")
	}
	if logger == nil {
		logger = log.Default()
	}
	r := &Renderer{pages: make(map[string]*template.Template), loc: loc, logger: logger}
	funcs := r.funcs()
	for _, name := range pageNames {
		tmpl, err := template.New(name).Funcs(funcs).ParseFS(templateFS, "templates/layout.html", "templates/partials.html", "templates/"+name+".html")
		if err != nil {
			return nil, fmt.Errorf("parse template %s: %w", name, err)
		}
		r.pages[name] = tmpl
	}
	return r, nil
}

// NewPage fills the identity and CSRF token from the request context.
func NewPage(r *http.Request, title string, data any) Page {
	identity, ok := auth.IdentityFromContext(r.Context())
	return Page{
		Title:     title,
		Identity:  identity,
		SignedIn:  ok,
		CSRFToken: auth.CSRFTokenFromContext(r.Context()),
		Data:      data,
	}
}

// Render writes page with status. The template is executed into a buffer
// first so a failure still produces a clean 500.
func (r *Renderer) Render(w http.ResponseWriter, status int, name string, page Page) {
	tmpl, ok := r.pages[name]
	if !ok {
		r.logger.Printf("web render: page=%s err=unknown page", name)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "layout", page); err != nil {
		r.logger.Printf("web render: page=%s err=%v", name, err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

// Error renders the generic error page.
func (r *Renderer) Error(w http.ResponseWriter, req *http.Request, status int, message string) {
	r.Render(w, status, PageError, NewPage(req, http.StatusText(status), message))
}

func (r *Renderer) funcs() template.FuncMap {
	return template.FuncMap{
		"jalaliDate": func(t time.Time) string {
			return calendar.FromGregorian(t, r.loc).Date.String()
		},
		"clock": func(t time.Time) string {
			return calendar.FromGregorian(t, r.loc).Clock()
		},
		"timeBuckets": rainfall.TimeBuckets,
		"mm": func(v float64) string {
			return strconv.FormatFloat(v, 'f', -1, 64)
		},
		"idString": func(id int64) string {
			return strconv.FormatInt(id, 10)
		},
		"fieldError": func(errs map[string]string, field string) string {
			return errs[field]
		},
	}
}
