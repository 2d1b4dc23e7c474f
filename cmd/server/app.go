package main

import (
	"net/http"

	"github.com/diewo77/go-duedates/auth"
	"github.com/diewo77/go-duedates/gate"
	"github.com/diewo77/go-duedates/httpx"
	"github.com/diewo77/go-duedates/internal/db"
	"github.com/diewo77/go-duedates/internal/policy"
)

// App is the main application handler that sets up all routes.
type App struct {
	mux       *http.ServeMux
	routerCfg *policy.RouterConfig
	dev       bool
}

// NewApp creates a new application with all routes configured. The session
// routes are only mounted in dev mode.
func NewApp(routerCfg *policy.RouterConfig, dev bool) *App {
	app := &App{
		mux:       http.NewServeMux(),
		routerCfg: routerCfg,
		dev:       dev,
	}
	app.setupRoutes()
	return app
}

// ServeHTTP implements http.Handler.
func (a *App) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	auth.Middleware(a.mux).ServeHTTP(w, r)
}

// setupRoutes configures all application routes.
func (a *App) setupRoutes() {
	// ─────────────────────────────────────────────────────────────────────────
	// Public routes (no auth required)
	// ─────────────────────────────────────────────────────────────────────────
	a.mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if a.dev {
		ah := a.routerCfg.AuthHandler
		a.mux.HandleFunc("POST /api/session", ah.Login)
		a.mux.HandleFunc("DELETE /api/session", ah.Logout)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// Firm routes (require a member, most require a permission)
	// ─────────────────────────────────────────────────────────────────────────
	sh := a.routerCfg.SubscriptionHandler
	a.handle("GET /api/subscription", a.permission(db.ResourceSubscription, gate.ActionView), sh.Get)
	a.handle("PUT /api/subscription", a.permission(db.ResourceSubscription, gate.ActionUpdate), sh.Update)

	ch := a.routerCfg.ClientHandler
	a.handle("GET /api/clients", a.permission(db.ResourceClient, gate.ActionList), ch.List)
	a.handle("POST /api/clients", a.permission(db.ResourceClient, gate.ActionCreate), ch.Create)
	a.handle("GET /api/clients/{id}", a.permission(db.ResourceClient, gate.ActionView), ch.Get)
	a.handle("PATCH /api/clients/{id}", a.permission(db.ResourceClient, gate.ActionUpdate), ch.Update)
	a.handle("DELETE /api/clients/{id}", a.permission(db.ResourceClient, gate.ActionDelete), ch.Delete)
	a.handle("GET /api/clients/{id}/due-dates", a.permission(db.ResourceClient, gate.ActionView), ch.DueDates)

	dh := a.routerCfg.DueDateHandler
	a.handle("GET /api/due-dates", a.permission(db.ResourceDueDate, gate.ActionList), dh.List)
	a.handle("POST /api/due-dates", a.permission(db.ResourceDueDate, gate.ActionCreate), dh.Create)
	a.handle("GET /api/due-dates/{id}", a.permission(db.ResourceDueDate, gate.ActionView), dh.Get)
	a.handle("PATCH /api/due-dates/{id}", a.permission(db.ResourceDueDate, gate.ActionUpdate), dh.Update)
	a.handle("DELETE /api/due-dates/{id}", a.permission(db.ResourceDueDate, gate.ActionDelete), dh.Delete)
	a.handle("POST /api/due-dates/{id}/complete", a.member(), dh.Complete)
	a.handle("POST /api/due-dates/{id}/clients", a.permission(db.ResourceAttachment, gate.ActionCreate), dh.Attach)

	th := a.routerCfg.AttachmentHandler
	a.handle("PATCH /api/due-date-clients/{id}", a.member(), th.Update)
	a.handle("DELETE /api/due-date-clients/{id}", a.permission(db.ResourceAttachment, gate.ActionDelete), th.Delete)

	a.handle("GET /api/activity", a.member(), a.routerCfg.ActivityHandler.List)

	// ─────────────────────────────────────────────────────────────────────────
	// Member administration
	// ─────────────────────────────────────────────────────────────────────────
	mh := a.routerCfg.MemberHandler
	rh := a.routerCfg.RoleHandler
	a.handle("GET /api/members", a.permission(db.ResourceMember, gate.ActionList), mh.List)
	a.handle("PUT /api/members/{id}/role", a.permission(db.ResourceMember, gate.ActionUpdate), mh.AssignRole)
	a.handle("GET /api/roles", a.permission(db.ResourceMember, gate.ActionList), rh.List)
	a.handle("GET /api/permissions", a.permission(db.ResourceMember, gate.ActionList), rh.ListPermissions)
}

// handle mounts fn behind authentication and the given gate middleware.
func (a *App) handle(pattern string, mw func(http.Handler) http.Handler, fn http.HandlerFunc) {
	a.mux.Handle(pattern, auth.RequireAuth(mw(fn)))
}

func (a *App) member() func(http.Handler) http.Handler {
	return a.routerCfg.AuthGate.RequireMember()
}

// permission wraps a handler to require a specific resource permission.
func (a *App) permission(resourceType string, action gate.Action) func(http.Handler) http.Handler {
	return a.routerCfg.AuthGate.RequirePermission(resourceType, action)
}
