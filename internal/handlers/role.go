package handlers

import (
	"log"
	"net/http"

	"github.com/diewo77/go-duedates/httpx"
	"github.com/diewo77/go-duedates/internal/models"
	"gorm.io/gorm"
)

// RoleView is a profile with its permission codes.
type RoleView struct {
	ID          uint     `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Permissions []string `json:"permissions"`
}

// RoleHandler exposes the seeded profiles so clients can offer role choices.
// Profiles are shared by every firm and are changed through seeding only.
type RoleHandler struct {
	DB *gorm.DB
}

func NewRoleHandler(db *gorm.DB) *RoleHandler {
	return &RoleHandler{DB: db}
}

// List handles GET /api/roles.
func (h *RoleHandler) List(w http.ResponseWriter, r *http.Request) {
	var profiles []models.Profile
	if err := h.DB.WithContext(r.Context()).Preload("Permissions").Order("name").Find(&profiles).Error; err != nil {
		log.Printf("list roles: %v", err)
		httpx.JSONError(w, http.StatusInternalServerError, "db_error", nil)
		return
	}
	out := make([]RoleView, len(profiles))
	for i, p := range profiles {
		codes := make([]string, len(p.Permissions))
		for j, perm := range p.Permissions {
			codes[j] = perm.Code()
		}
		out[i] = RoleView{ID: p.ID, Name: p.Name, Description: p.Description, Permissions: codes}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": out})
}

// ListPermissions returns all available permissions (for API use).
func (h *RoleHandler) ListPermissions(w http.ResponseWriter, r *http.Request) {
	var permissions []models.Permission
	if err := h.DB.WithContext(r.Context()).Order("resource_type, action").Find(&permissions).Error; err != nil {
		log.Printf("list permissions: %v", err)
		httpx.JSONError(w, http.StatusInternalServerError, "db_error", nil)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": permissions})
}
