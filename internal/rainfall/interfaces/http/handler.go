package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"rainlog/internal/audit"
	"rainlog/internal/auth"
	"rainlog/internal/calendar"
	rainapp "rainlog/internal/rainfall/application"
	rainfall "rainlog/internal/rainfall/domain"
	"rainlog/internal/rainfall/interfaces/export"
	"rainlog/internal/web"
)

// InlineUpdatePath receives single-field edits from the dashboard.
const InlineUpdatePath = "/records/inline-update"

const msgInternal = "خطای داخلی سرور"

// Handler serves the observation pages, the inline-update endpoint and exports.
type Handler struct {
	service       *rainapp.Service
	renderer      *web.Renderer
	auditLogger   audit.Logger
	logger        *log.Logger
	defaultLayout export.Layout
	defaultAll    bool
}

// Option configures the handler.
type Option func(*Handler)

// WithExportDefaults sets the layout used when ?layout= is absent and whether
// admins export every user's observations when ?scope= is absent.
func WithExportDefaults(layout export.Layout, adminAll bool) Option {
	return func(h *Handler) {
		if layout != "" {
			h.defaultLayout = layout
		}
		h.defaultAll = adminAll
	}
}

// NewHandler constructs a handler.
func NewHandler(service *rainapp.Service, renderer *web.Renderer, auditLogger audit.Logger, logger *log.Logger, opts ...Option) (*Handler, error) {
	if service == nil {
		return nil, errors.New("rainfall handler: nil service")
	}
	if renderer == nil {
		return nil, errors.New("rainfall handler: nil renderer")
	}
	if logger == nil {
		logger = log.Default()
	}
	h := &Handler{
		service:       service,
		renderer:      renderer,
		auditLogger:   auditLogger,
		logger:        logger,
		defaultLayout: export.LayoutColumns,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

// Routes registers the observation endpoints on r.
func (h *Handler) Routes(r *mux.Router) {
	r.HandleFunc("/enter", h.handleEnterPage).Methods(http.MethodGet, http.MethodHead)
	r.HandleFunc("/enter", h.handleEnter).Methods(http.MethodPost)
	r.HandleFunc("/dashboard", h.handleDashboard).Methods(http.MethodGet, http.MethodHead)
	r.HandleFunc("/records/{id:[0-9]+}/edit", h.handleEditPage).Methods(http.MethodGet, http.MethodHead)
	r.HandleFunc("/records/{id:[0-9]+}/edit", h.handleEdit).Methods(http.MethodPost)
	r.HandleFunc("/records/{id:[0-9]+}/delete", h.handleDeletePage).Methods(http.MethodGet, http.MethodHead)
	r.HandleFunc("/records/{id:[0-9]+}/delete", h.handleDelete).Methods(http.MethodPost)
	r.HandleFunc(InlineUpdatePath, h.handleInlineUpdate)
	r.HandleFunc("/export", h.handleExport).Methods(http.MethodGet)
	r.HandleFunc("/export_excel", h.handleExport).Methods(http.MethodGet)
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, status int, page, title string, data any) {
	p := web.NewPage(r, title, data)
	p.Flash = web.PopFlash(w, r)
	h.renderer.Render(w, status, page, p)
}

func (h *Handler) handleDashboard(w http.ResponseWriter, r *http.Request) {
	identity := mustIdentity(r)
	q := r.URL.Query()
	dashboard, err := h.service.Dashboard(r.Context(), identity.UserID, rainapp.FilterInput{
		Station:   q.Get("station"),
		Date:      q.Get("date"),
		StartDate: q.Get("start_date"),
		EndDate:   q.Get("end_date"),
	})
	if err != nil {
		h.logger.Printf("rainfall dashboard: user=%d err=%v", identity.UserID, err)
		h.renderer.Error(w, r, http.StatusInternalServerError, msgInternal)
		return
	}
	h.render(w, r, http.StatusOK, web.PageDashboard, "داشبورد", dashboard)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, body map[string]string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func (h *Handler) logAudit(r *http.Request, action string, obs *rainfall.Observation, meta any) {
	if h.auditLogger == nil {
		return
	}
	identity, _ := auth.IdentityFromContext(r.Context())
	entry := audit.FromRequest(r, identity.Username, string(identity.Role), action)
	entry.ResourceType = audit.ResourceObservation
	if obs != nil {
		entry.ResourceID = strconv.FormatInt(obs.ID, 10)
		entry.StationID = strconv.FormatInt(obs.StationID, 10)
	}
	entry.Metadata = audit.Metadata(meta)
	if err := h.auditLogger.Log(r.Context(), entry); err != nil {
		h.logger.Printf("rainfall audit: action=%s user=%q err=%v", action, identity.Username, err)
	}
}

// mustIdentity returns the identity set by the auth middleware. The zero
// identity owns no observations.
func mustIdentity(r *http.Request) auth.Identity {
	identity, _ := auth.IdentityFromContext(r.Context())
	return identity
}

func pathID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	return id, err == nil && id > 0
}

func parseID(raw string) (int64, bool) {
	id, err := strconv.ParseInt(calendar.NormalizeDigits(raw), 10, 64)
	return id, err == nil && id > 0
}
