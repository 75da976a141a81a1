package http

import (
	"errors"
	"net/http"
	"strconv"

	"rainlog/internal/audit"
	rainfall "rainlog/internal/rainfall/domain"
	"rainlog/internal/web"
)

const msgNotFound = "رکورد پیدا نشد"

func entryForm(r *http.Request) rainfall.EntryForm {
	return rainfall.EntryForm{
		Station:   r.PostFormValue("station"),
		Date:      r.PostFormValue("date"),
		Year:      r.PostFormValue("year"),
		Month:     r.PostFormValue("month"),
		Day:       r.PostFormValue("day"),
		Hour:      r.PostFormValue("hour"),
		Minute:    r.PostFormValue("minute"),
		TimeRange: r.PostFormValue("time_range"),
		Rainfall:  r.PostFormValue("rainfall_mm"),
	}
}

// formFromObservation prefills the edit form with the stored values.
func (h *Handler) formFromObservation(o rainfall.Observation) rainfall.EntryForm {
	local := o.Local(h.service.Location())
	return rainfall.EntryForm{
		Station:   strconv.FormatInt(o.StationID, 10),
		Date:      local.Date.String(),
		Hour:      strconv.Itoa(local.Hour),
		Minute:    strconv.Itoa(local.Minute),
		TimeRange: string(o.TimeBucket),
		Rainfall:  strconv.FormatFloat(o.RainfallMM, 'f', -1, 64),
	}
}

func (h *Handler) entryView(r *http.Request, id int64, form rainfall.EntryForm, errs map[string]string) (web.EntryView, error) {
	stations, err := h.service.Stations(r.Context())
	if err != nil {
		return web.EntryView{}, err
	}
	return web.EntryView{ID: id, Form: form, Errors: errs, Stations: stations}, nil
}

func (h *Handler) renderEntry(w http.ResponseWriter, r *http.Request, status int, page string, id int64, form rainfall.EntryForm, errs map[string]string) {
	view, err := h.entryView(r, id, form, errs)
	if err != nil {
		h.logger.Printf("rainfall stations: err=%v", err)
		h.renderer.Error(w, r, http.StatusInternalServerError, msgInternal)
		return
	}
	title := "ثبت رکورد بارش"
	if page == web.PageEdit {
		title = "ویرایش رکورد"
	}
	h.render(w, r, status, page, title, view)
}

func (h *Handler) handleEnterPage(w http.ResponseWriter, r *http.Request) {
	h.renderEntry(w, r, http.StatusOK, web.PageEnter, 0, rainfall.EntryForm{}, nil)
}

func (h *Handler) handleEnter(w http.ResponseWriter, r *http.Request) {
	identity := mustIdentity(r)
	form := entryForm(r)
	obs, err := h.service.Create(r.Context(), identity.UserID, form)
	if err != nil {
		var verr *rainfall.ValidationError
		if errors.As(err, &verr) {
			h.renderEntry(w, r, http.StatusBadRequest, web.PageEnter, 0, form, verr.Fields)
			return
		}
		h.logger.Printf("rainfall create: user=%d err=%v", identity.UserID, err)
		h.renderer.Error(w, r, http.StatusInternalServerError, msgInternal)
		return
	}
	h.logAudit(r, audit.ActionRecordCreate, obs, map[string]any{
		"rainfall_mm": obs.RainfallMM,
		"timestamp":   obs.Timestamp,
		"time_range":  obs.TimeBucket,
	})
	web.SetFlash(w, "✅ داده با موفقیت ثبت شد.")
	http.Redirect(w, r, "/enter", http.StatusSeeOther)
}

func (h *Handler) handleEditPage(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		h.renderer.Error(w, r, http.StatusNotFound, msgNotFound)
		return
	}
	view, err := h.service.Get(r.Context(), mustIdentity(r).UserID, id)
	if err != nil {
		h.pageError(w, r, "edit", id, err)
		return
	}
	h.renderEntry(w, r, http.StatusOK, web.PageEdit, id, h.formFromObservation(view.Observation), nil)
}

func (h *Handler) handleEdit(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		h.renderer.Error(w, r, http.StatusNotFound, msgNotFound)
		return
	}
	form := entryForm(r)
	obs, err := h.service.Update(r.Context(), mustIdentity(r).UserID, id, form)
	if err != nil {
		var verr *rainfall.ValidationError
		if errors.As(err, &verr) {
			h.renderEntry(w, r, http.StatusBadRequest, web.PageEdit, id, form, verr.Fields)
			return
		}
		h.pageError(w, r, "update", id, err)
		return
	}
	h.logAudit(r, audit.ActionRecordUpdate, obs, map[string]any{
		"rainfall_mm": obs.RainfallMM,
		"timestamp":   obs.Timestamp,
		"time_range":  obs.TimeBucket,
	})
	web.SetFlash(w, "رکورد ویرایش شد.")
	http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
}

func (h *Handler) handleDeletePage(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		h.renderer.Error(w, r, http.StatusNotFound, msgNotFound)
		return
	}
	view, err := h.service.Get(r.Context(), mustIdentity(r).UserID, id)
	if err != nil {
		h.pageError(w, r, "delete", id, err)
		return
	}
	h.render(w, r, http.StatusOK, web.PageDeleteConfirm, "حذف رکورد", view)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		h.renderer.Error(w, r, http.StatusNotFound, msgNotFound)
		return
	}
	view, err := h.service.Get(r.Context(), mustIdentity(r).UserID, id)
	if err == nil {
		err = h.service.Delete(r.Context(), mustIdentity(r).UserID, id)
	}
	if err != nil {
		h.pageError(w, r, "delete", id, err)
		return
	}
	h.logAudit(r, audit.ActionRecordDelete, &view.Observation, nil)
	web.SetFlash(w, "رکورد حذف شد.")
	http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
}

func (h *Handler) pageError(w http.ResponseWriter, r *http.Request, op string, id int64, err error) {
	if errors.Is(err, rainfall.ErrNotFound) {
		h.renderer.Error(w, r, http.StatusNotFound, msgNotFound)
		return
	}
	h.logger.Printf("rainfall %s: id=%d err=%v", op, id, err)
	h.renderer.Error(w, r, http.StatusInternalServerError, msgInternal)
}
