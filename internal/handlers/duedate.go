package handlers

import (
	"net/http"

	"github.com/diewo77/go-duedates/httpx"
	"github.com/diewo77/go-duedates/internal/models"
	"github.com/diewo77/go-duedates/internal/services"
	"github.com/diewo77/go-duedates/validation"
)

type DueDateHandler struct {
	DueDates    *services.DueDateService
	Attachments *services.AttachmentService
	Completion  *services.CompletionService
}

func NewDueDateHandler(dueDates *services.DueDateService, attachments *services.AttachmentService, completion *services.CompletionService) *DueDateHandler {
	return &DueDateHandler{DueDates: dueDates, Attachments: attachments, Completion: completion}
}

// List handles GET /api/due-dates?client_id=&status=&from=&to=
func (h *DueDateHandler) List(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	f := services.DueDateFilter{ClientID: q.Get("client_id"), Status: q.Get("status")}
	v := validation.Violations{}
	if f.Status != "" {
		validation.OneOf("status", f.Status, models.Statuses, v)
	}
	if raw := q.Get("from"); raw != "" {
		if t, ok := validation.Date("from", raw, v); ok {
			f.From = &t
		}
	}
	if raw := q.Get("to"); raw != "" {
		if t, ok := validation.Date("to", raw, v); ok {
			f.To = &t
		}
	}
	if !v.Empty() {
		httpx.JSONError(w, http.StatusBadRequest, "validation_failed", v)
		return
	}
	items, err := h.DueDates.List(r.Context(), a.FirmID, f)
	if err != nil {
		writeError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": items, "total": len(items)})
}

func (h *DueDateHandler) Create(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	var in services.DueDateInput
	if !decode(w, r, &in) {
		return
	}
	dd, err := h.DueDates.Create(r.Context(), a, in)
	if err != nil {
		writeError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, dd)
}

// Get returns the due date with its attached clients.
func (h *DueDateHandler) Get(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	dd, err := h.DueDates.Get(r.Context(), a.FirmID, r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	clients, err := h.Attachments.ListForDueDate(r.Context(), a.FirmID, dd.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"due_date": dd, "clients": clients})
}

// Update accepts title and date only.
func (h *DueDateHandler) Update(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	body, err := httpx.ReadBody(r)
	if err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_body", nil)
		return
	}
	patch, err := services.DecodeDueDatePatch(body)
	if err != nil {
		writeError(w, err)
		return
	}
	dd, err := h.DueDates.Update(r.Context(), a, r.PathValue("id"), patch)
	if err != nil {
		writeError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, dd)
}

func (h *DueDateHandler) Delete(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	if err := h.DueDates.Delete(r.Context(), a, r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Complete handles POST /api/due-dates/{id}/complete.
func (h *DueDateHandler) Complete(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	res, err := h.Completion.Complete(r.Context(), a, r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, res)
}

// Attach handles POST /api/due-dates/{id}/clients with {"client_ids": [...]}.
func (h *DueDateHandler) Attach(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	var in struct {
		ClientIDs []string `json:"client_ids"`
	}
	if !decode(w, r, &in) {
		return
	}
	res, err := h.Attachments.Attach(r.Context(), a, r.PathValue("id"), in.ClientIDs)
	if err != nil {
		writeError(w, err)
		return
	}
	status := http.StatusOK
	if res.Inserted > 0 {
		status = http.StatusCreated
	}
	httpx.JSON(w, status, res)
}
