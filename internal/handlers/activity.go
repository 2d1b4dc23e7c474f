package handlers

import (
	"net/http"

	"github.com/diewo77/go-duedates/httpx"
	"github.com/diewo77/go-duedates/internal/services"
)

type ActivityHandler struct {
	Activity *services.ActivityService
}

func NewActivityHandler(activity *services.ActivityService) *ActivityHandler {
	return &ActivityHandler{Activity: activity}
}

// List handles GET /api/activity. Filters: category, dueDateId, clientId,
// userId, actionTypes, period or from/to, limit.
func (h *ActivityHandler) List(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	f, err := services.ParseActivityFilter(r.URL.Query())
	if err != nil {
		writeError(w, err)
		return
	}
	items, err := h.Activity.Query(r.Context(), a.FirmID, f)
	if err != nil {
		writeError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": items})
}
