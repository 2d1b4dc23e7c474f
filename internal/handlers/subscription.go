package handlers

import (
	"net/http"

	"github.com/diewo77/go-duedates/httpx"
	"github.com/diewo77/go-duedates/internal/services"
)

type SubscriptionHandler struct {
	Quota *services.QuotaService
}

func NewSubscriptionHandler(quota *services.QuotaService) *SubscriptionHandler {
	return &SubscriptionHandler{Quota: quota}
}

// Get returns the subscription with current usage of both quotas.
func (h *SubscriptionHandler) Get(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	usage, err := h.Quota.Usage(r.Context(), a.FirmID)
	if err != nil {
		writeError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, usage)
}

// Update changes the plan once payment has been confirmed upstream.
func (h *SubscriptionHandler) Update(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	var in services.PlanChange
	if !decode(w, r, &in) {
		return
	}
	if _, err := h.Quota.SetPlan(r.Context(), a, in); err != nil {
		writeError(w, err)
		return
	}
	usage, err := h.Quota.Usage(r.Context(), a.FirmID)
	if err != nil {
		writeError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, usage)
}
