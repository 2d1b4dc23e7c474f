package handlers

import (
	"net/http"

	"github.com/diewo77/go-duedates/httpx"
	"github.com/diewo77/go-duedates/internal/services"
)

type ClientHandler struct {
	Clients        *services.ClientService
	DueDateService *services.DueDateService
	Attachments    *services.AttachmentService
}

func NewClientHandler(clients *services.ClientService, dueDates *services.DueDateService, attachments *services.AttachmentService) *ClientHandler {
	return &ClientHandler{Clients: clients, DueDateService: dueDates, Attachments: attachments}
}

func (h *ClientHandler) List(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	items, err := h.Clients.List(r.Context(), a.FirmID)
	if err != nil {
		writeError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": items, "total": len(items)})
}

func (h *ClientHandler) Create(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	var in services.ClientInput
	if !decode(w, r, &in) {
		return
	}
	c, err := h.Clients.Create(r.Context(), a, in)
	if err != nil {
		writeError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, c)
}

func (h *ClientHandler) Get(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	c, err := h.Clients.Get(r.Context(), a.FirmID, r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, c)
}

func (h *ClientHandler) Update(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	var p services.ClientPatch
	if !decode(w, r, &p) {
		return
	}
	c, err := h.Clients.Update(r.Context(), a, r.PathValue("id"), p)
	if err != nil {
		writeError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, c)
}

func (h *ClientHandler) Delete(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	if err := h.Clients.Delete(r.Context(), a, r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DueDates lists the client's due dates, legacy and attached, together with
// the client's per-due-date attachment statuses.
func (h *ClientHandler) DueDates(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	c, err := h.Clients.Get(r.Context(), a.FirmID, r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	dueDates, err := h.DueDateService.List(r.Context(), a.FirmID, services.DueDateFilter{ClientID: c.ID})
	if err != nil {
		writeError(w, err)
		return
	}
	attachments, err := h.Attachments.ListForClient(r.Context(), a.FirmID, c.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"due_dates": dueDates, "attachments": attachments})
}
