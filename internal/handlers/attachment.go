package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"

	"github.com/diewo77/go-duedates/httpx"
	"github.com/diewo77/go-duedates/internal/services"
)

type AttachmentHandler struct {
	Attachments *services.AttachmentService
}

func NewAttachmentHandler(attachments *services.AttachmentService) *AttachmentHandler {
	return &AttachmentHandler{Attachments: attachments}
}

// Update handles PATCH /api/due-date-clients/{id}. A request without a body
// toggles the document status.
func (h *AttachmentHandler) Update(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	body, err := httpx.ReadBody(r)
	if err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_body", nil)
		return
	}
	var patch services.AttachmentPatch
	if len(bytes.TrimSpace(body)) > 0 {
		if err := json.Unmarshal(body, &patch); err != nil {
			httpx.JSONError(w, http.StatusBadRequest, "invalid_json", nil)
			return
		}
	}
	row, err := h.Attachments.UpdateStatus(r.Context(), a, r.PathValue("id"), patch)
	if err != nil {
		writeError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, row)
}

func (h *AttachmentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	if err := h.Attachments.Detach(r.Context(), a, r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
