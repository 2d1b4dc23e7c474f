package policy

import (
	"github.com/diewo77/go-duedates/internal/config"
	"github.com/diewo77/go-duedates/internal/handlers"
	"github.com/diewo77/go-duedates/internal/services"
	"gorm.io/gorm"
)

// RouterConfig holds configured handlers and middleware for the application.
type RouterConfig struct {
	// AuthGate provides member resolution and permission middleware
	AuthGate *AuthGate

	// Member and role handlers
	MemberHandler *handlers.MemberHandler
	RoleHandler   *handlers.RoleHandler

	// Auth handler (development sign-in)
	AuthHandler *handlers.AuthHandler

	// Business handlers
	DueDateHandler      *handlers.DueDateHandler
	ClientHandler       *handlers.ClientHandler
	AttachmentHandler   *handlers.AttachmentHandler
	ActivityHandler     *handlers.ActivityHandler
	SubscriptionHandler *handlers.SubscriptionHandler
}

// NewRouterConfig wires the authorization gate, services and handlers.
func NewRouterConfig(db *gorm.DB, cfg *config.Config) *RouterConfig {
	authGate := NewAuthGate(db, cfg.Auth.ProfileTTL)

	audit := services.NewAuditRecorder(db)
	quota := services.NewQuotaService(db, audit)
	dueDates := services.NewDueDateService(db, quota, audit)
	clients := services.NewClientService(db, quota, audit)
	attachments := services.NewAttachmentService(db, audit, cfg.Engine.AttachConcurrency)
	completion := services.NewCompletionService(db, audit)
	activity := services.NewActivityService(db, cfg.Engine.ActivityDefaultLimit, cfg.Engine.ActivityMaxLimit)
	members := services.NewMemberService(db, audit)

	return &RouterConfig{
		AuthGate:            authGate,
		MemberHandler:       handlers.NewMemberHandler(members, authGate.CacheResolver),
		RoleHandler:         handlers.NewRoleHandler(db),
		AuthHandler:         handlers.NewAuthHandler(db, cfg.Auth.TokenTTL),
		DueDateHandler:      handlers.NewDueDateHandler(dueDates, attachments, completion),
		ClientHandler:       handlers.NewClientHandler(clients, dueDates, attachments),
		AttachmentHandler:   handlers.NewAttachmentHandler(attachments),
		ActivityHandler:     handlers.NewActivityHandler(activity),
		SubscriptionHandler: handlers.NewSubscriptionHandler(quota),
	}
}
