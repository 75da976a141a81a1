package http

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"rainlog/internal/audit"
	"rainlog/internal/calendar"
	rainfall "rainlog/internal/rainfall/domain"
)

// handleInlineUpdate patches one field and always answers with JSON.
func (h *Handler) handleInlineUpdate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		h.writeJSON(w, http.StatusMethodNotAllowed, errorBody("فقط درخواست POST پذیرفته می‌شود"))
		return
	}
	identity := mustIdentity(r)
	rawID := r.PostFormValue("id")
	field := strings.TrimSpace(r.PostFormValue("field"))
	value := r.PostFormValue("value")

	id, ok := parseID(rawID)
	if !ok {
		h.writeJSON(w, http.StatusBadRequest, errorBody(fmt.Sprintf("شناسه %q معتبر نیست", rawID)))
		return
	}

	obs, err := h.service.InlineUpdate(r.Context(), identity.UserID, id, field, value)
	if err != nil {
		switch {
		case errors.Is(err, rainfall.ErrNotFound):
			h.writeJSON(w, http.StatusNotFound, errorBody(msgNotFound))
		case errors.Is(err, rainfall.ErrUnsupportedField):
			h.writeJSON(w, http.StatusBadRequest, errorBody(fmt.Sprintf("فیلد %q قابل ویرایش نیست", field)))
		case errors.Is(err, rainfall.ErrInvalidValue):
			h.writeJSON(w, http.StatusBadRequest, errorBody(fmt.Sprintf("مقدار %q برای %s معتبر نیست: %s", value, field, errorDetail(err))))
		default:
			h.logger.Printf("rainfall inline-update: id=%d field=%s err=%v", id, field, err)
			h.writeJSON(w, http.StatusInternalServerError, errorBody(msgInternal))
		}
		return
	}
	h.logAudit(r, audit.ActionRecordInline, obs, map[string]string{"field": field, "value": value})
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
}

func errorBody(msg string) map[string]string {
	return map[string]string{"status": "error", "message": msg}
}

var detailPrefixes = []string{
	rainfall.ErrInvalidValue.Error() + ": ",
	calendar.ErrInvalidCalendarDate.Error() + ": ",
	calendar.ErrInvalidValue.Error() + ": ",
}

// errorDetail returns the innermost reason of a wrapped validation error.
func errorDetail(err error) string {
	msg := err.Error()
	cut := 0
	for _, prefix := range detailPrefixes {
		if i := strings.LastIndex(msg, prefix); i >= 0 && i+len(prefix) > cut {
			cut = i + len(prefix)
		}
	}
	return msg[cut:]
}
