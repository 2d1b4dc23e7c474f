package handlers

import (
	"net/http"

	"github.com/diewo77/go-duedates/httpx"
	"github.com/diewo77/go-duedates/internal/services"
)

// ProfileInvalidator drops a user's cached profile.
type ProfileInvalidator interface {
	Invalidate(userID uint)
}

// MemberHandler lists firm members and assigns their roles.
type MemberHandler struct {
	Members       *services.MemberService
	CacheResolver ProfileInvalidator // To invalidate cache on changes
}

func NewMemberHandler(members *services.MemberService, cache ProfileInvalidator) *MemberHandler {
	return &MemberHandler{Members: members, CacheResolver: cache}
}

// List handles GET /api/members.
func (h *MemberHandler) List(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	members, err := h.Members.List(r.Context(), a.FirmID)
	if err != nil {
		writeError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": members})
}

// AssignRole handles PUT /api/members/{id}/role with {"role": "staff"}.
func (h *MemberHandler) AssignRole(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	userID, ok := pathUint(r, "id")
	if !ok {
		httpx.JSONError(w, http.StatusBadRequest, "validation_failed", map[string]string{"id": "invalid_value"})
		return
	}
	var in struct {
		Role string `json:"role"`
	}
	if !decode(w, r, &in) {
		return
	}
	m, err := h.Members.AssignRole(r.Context(), a, userID, in.Role)
	if err != nil {
		writeError(w, err)
		return
	}

	// Invalidate cache for this specific user
	if h.CacheResolver != nil {
		h.CacheResolver.Invalidate(userID)
	}
	httpx.JSON(w, http.StatusOK, m)
}
