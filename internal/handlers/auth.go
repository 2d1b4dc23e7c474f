package handlers

import (
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/diewo77/go-duedates/auth"
	"github.com/diewo77/go-duedates/httpx"
	"github.com/diewo77/go-duedates/internal/models"
	"gorm.io/gorm"
)

// AuthHandler signs members in for local development. In production the
// identity provider issues credentials and these routes are not mounted.
type AuthHandler struct {
	db       *gorm.DB
	tokenTTL time.Duration
}

func NewAuthHandler(db *gorm.DB, tokenTTL time.Duration) *AuthHandler {
	return &AuthHandler{db: db, tokenTTL: tokenTTL}
}

// Login handles POST /api/session with {"email": "..."}. It sets the session
// cookie and returns a bearer token for API clients.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Email string `json:"email"`
	}
	if !decode(w, r, &in) {
		return
	}
	email := strings.TrimSpace(in.Email)
	if email == "" {
		httpx.JSONError(w, http.StatusBadRequest, "validation_failed", map[string]string{"email": "required"})
		return
	}

	var user models.User
	err := h.db.WithContext(r.Context()).Where("email = ?", email).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		httpx.JSONError(w, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	if err != nil {
		log.Printf("login lookup: %v", err)
		httpx.JSONError(w, http.StatusInternalServerError, "internal_error", nil)
		return
	}

	token, err := auth.IssueToken(user.ID, h.tokenTTL)
	if err != nil {
		log.Printf("issue token: %v", err)
		httpx.JSONError(w, http.StatusInternalServerError, "internal_error", nil)
		return
	}
	auth.CreateSession(w, user.ID)
	httpx.JSON(w, http.StatusOK, map[string]any{
		"user_id":    user.ID,
		"firm_id":    user.FirmID,
		"token":      token,
		"expires_in": int(h.tokenTTL.Seconds()),
	})
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	auth.ClearSession(w)
	w.WriteHeader(http.StatusNoContent)
}
