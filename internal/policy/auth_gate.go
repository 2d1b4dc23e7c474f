package policy

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/diewo77/go-duedates/auth"
	"github.com/diewo77/go-duedates/gate"
	"github.com/diewo77/go-duedates/httpx"
	"gorm.io/gorm"
)

// AuthGate resolves the signed-in user to a firm member and checks the
// permissions of their profile. Profiles are cached for the configured TTL.
type AuthGate struct {
	Gate          *gate.Gate[uint]
	CacheResolver *gate.CachedResolver[uint]
}

// NewAuthGate builds a gate backed by the users and profiles tables.
func NewAuthGate(db *gorm.DB, cacheTTL time.Duration) *AuthGate {
	return NewAuthGateWithResolver(NewDBProfileResolver(db), cacheTTL)
}

// NewAuthGateWithResolver wraps any resolver with caching, e.g. a
// gate.StaticResolver in tests.
func NewAuthGateWithResolver(resolver gate.ProfileResolver[uint], cacheTTL time.Duration) *AuthGate {
	cached := gate.NewCachedResolver[uint](resolver, cacheTTL)
	return &AuthGate{Gate: gate.New[uint](cached), CacheResolver: cached}
}

// Member resolves the request's user to a firm member.
func (ag *AuthGate) Member(ctx context.Context) (auth.Member, gate.Profile, error) {
	userID, _ := auth.UserIDFromContext(ctx)
	profile, err := ag.Gate.Profile(ctx, userID)
	if err != nil {
		return auth.Member{}, nil, err
	}
	mp, ok := profile.(MemberProfile)
	if !ok || mp.FirmID() == "" {
		return auth.Member{}, nil, gate.ErrForbidden
	}
	return auth.Member{UserID: userID, FirmID: mp.FirmID(), Role: profile.Name()}, profile, nil
}

// Authorize checks resourceType:action for the request's user.
func (ag *AuthGate) Authorize(ctx context.Context, action gate.Action, resourceType string) error {
	userID, _ := auth.UserIDFromContext(ctx)
	return ag.Gate.Authorize(ctx, userID, action, resourceType)
}

// InvalidateUser drops the cached profile of one user after a role change.
func (ag *AuthGate) InvalidateUser(userID uint) {
	ag.CacheResolver.Invalidate(userID)
}

// RequireMember admits any user belonging to a firm and puts the member in
// the request context.
func (ag *AuthGate) RequireMember() func(http.Handler) http.Handler {
	return ag.require(func(gate.Profile) bool { return true })
}

// RequirePermission admits members whose profile grants resourceType:action.
func (ag *AuthGate) RequirePermission(resourceType string, action gate.Action) func(http.Handler) http.Handler {
	perm := gate.NewPermission(resourceType, action)
	return ag.require(func(p gate.Profile) bool { return p.HasPermission(perm) })
}

// RequireAdmin admits members holding the "*:*" permission.
func (ag *AuthGate) RequireAdmin() func(http.Handler) http.Handler {
	return ag.require(func(p gate.Profile) bool { return p.HasPermission(gate.PermissionSuperAdmin) })
}

func (ag *AuthGate) require(allowed func(gate.Profile) bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			member, profile, err := ag.Member(r.Context())
			switch {
			case errors.Is(err, gate.ErrUnauthenticated):
				httpx.JSONError(w, http.StatusUnauthorized, "unauthorized", nil)
				return
			case errors.Is(err, gate.ErrForbidden):
				httpx.JSONError(w, http.StatusForbidden, "forbidden", nil)
				return
			case err != nil:
				log.Printf("resolve member: %v", err)
				httpx.JSONError(w, http.StatusInternalServerError, "internal_error", nil)
				return
			}
			if !allowed(profile) {
				httpx.JSONError(w, http.StatusForbidden, "forbidden", nil)
				return
			}
			next.ServeHTTP(w, r.WithContext(auth.WithMember(r.Context(), member)))
		})
	}
}
