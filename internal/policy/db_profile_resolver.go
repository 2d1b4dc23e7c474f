package policy

import (
	"context"
	"errors"

	"github.com/diewo77/go-duedates/gate"
	"github.com/diewo77/go-duedates/internal/models"
	"gorm.io/gorm"
)

// MemberProfile is a profile that also knows which firm its user belongs to.
type MemberProfile interface {
	gate.Profile
	FirmID() string
}

// DBProfileResolver fetches a user's firm and profile from the database.
type DBProfileResolver struct {
	DB *gorm.DB
}

func NewDBProfileResolver(db *gorm.DB) *DBProfileResolver {
	return &DBProfileResolver{DB: db}
}

// Resolve loads the user with its profile permissions. Unknown or deleted
// users and users without a profile resolve to nil, which the gate treats
// as forbidden.
func (r *DBProfileResolver) Resolve(ctx context.Context, userID uint) (gate.Profile, error) {
	var user models.User
	err := r.DB.WithContext(ctx).Preload("Profile.Permissions").First(&user, userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if user.Profile == nil || user.FirmID == "" {
		return nil, nil
	}
	perms := make([]gate.Permission, len(user.Profile.Permissions))
	for i, p := range user.Profile.Permissions {
		perms[i] = gate.NewPermission(p.ResourceType, gate.Action(p.Action))
	}
	return &dbProfileAdapter{
		id:          user.Profile.ID,
		name:        user.Profile.Name,
		firmID:      user.FirmID,
		permissions: perms,
	}, nil
}

// dbProfileAdapter is a snapshot of a models.Profile, safe to cache.
type dbProfileAdapter struct {
	id          uint
	name        string
	firmID      string
	permissions []gate.Permission
}

func (a *dbProfileAdapter) ID() uint       { return a.id }
func (a *dbProfileAdapter) Name() string   { return a.name }
func (a *dbProfileAdapter) FirmID() string { return a.firmID }

func (a *dbProfileAdapter) HasPermission(perm gate.Permission) bool {
	return gate.AnyMatches(a.permissions, perm)
}

func (a *dbProfileAdapter) Permissions() []gate.Permission {
	return append([]gate.Permission(nil), a.permissions...)
}
