package http

import (
	"bytes"
	"net/http"
	"strings"
	"time"

	"rainlog/internal/audit"
	"rainlog/internal/observability/metrics"
	rainapp "rainlog/internal/rainfall/application"
	"rainlog/internal/rainfall/interfaces/export"
)

// handleExport streams an XLSX workbook. ?layout= selects the column set and
// ?scope=all, admins only, includes every user's observations.
func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	identity := mustIdentity(r)

	layout := h.defaultLayout
	if raw := r.URL.Query().Get("layout"); raw != "" {
		parsed, err := export.ParseLayout(raw)
		if err != nil {
			metrics.ObserveExport("unknown", metrics.ResultInvalid, time.Since(start))
			h.renderer.Error(w, r, http.StatusBadRequest, "قالب خروجی \""+raw+"\" پشتیبانی نمی‌شود")
			return
		}
		layout = parsed
	}

	scope := rainapp.ExportScope{UserID: identity.UserID, All: identity.IsAdmin() && h.defaultAll}
	switch strings.ToLower(strings.TrimSpace(r.URL.Query().Get("scope"))) {
	case "":
	case "own":
		scope.All = false
	case "all":
		if !identity.IsAdmin() {
			metrics.ObserveExport(string(layout), metrics.ResultInvalid, time.Since(start))
			h.renderer.Error(w, r, http.StatusForbidden, "خروجی همه کاربران فقط برای مدیر مجاز است")
			return
		}
		scope.All = true
	default:
		metrics.ObserveExport(string(layout), metrics.ResultInvalid, time.Since(start))
		h.renderer.Error(w, r, http.StatusBadRequest, "محدوده خروجی معتبر نیست")
		return
	}

	rows, err := h.service.ExportRows(r.Context(), scope)
	if err != nil {
		metrics.ObserveExport(string(layout), metrics.ResultError, time.Since(start))
		h.logger.Printf("rainfall export: user=%d err=%v", identity.UserID, err)
		h.renderer.Error(w, r, http.StatusInternalServerError, msgInternal)
		return
	}
	var buf bytes.Buffer
	if err := export.NewEncoder(layout, h.service.Location()).Encode(&buf, rows); err != nil {
		metrics.ObserveExport(string(layout), metrics.ResultError, time.Since(start))
		h.logger.Printf("rainfall export: encode user=%d err=%v", identity.UserID, err)
		h.renderer.Error(w, r, http.StatusInternalServerError, msgInternal)
		return
	}

	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", "attachment; filename="+export.FileName)
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)

	metrics.ObserveExport(string(layout), metrics.ResultSuccess, time.Since(start))
	h.logAudit(r, audit.ActionExport, nil, map[string]any{
		"layout": layout,
		"all":    scope.All,
		"rows":   len(rows),
	})
}
