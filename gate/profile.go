package gate

import "context"

// Profile is a role holding a set of permissions.
type Profile interface {
	ID() uint
	Name() string
	HasPermission(permission Permission) bool
	Permissions() []Permission
}

// ProfileResolver resolves a user to their profile. A nil profile with a nil
// error means the user has no role assigned.
type ProfileResolver[U any] interface {
	Resolve(ctx context.Context, user U) (Profile, error)
}

// StaticProfile is an in-memory profile, used for tests and fixed roles.
type StaticProfile struct {
	id          uint
	name        string
	permissions []Permission
}

func NewStaticProfile(id uint, name string, permissions ...Permission) *StaticProfile {
	return &StaticProfile{id: id, name: name, permissions: permissions}
}

func (p *StaticProfile) ID() uint                  { return p.id }
func (p *StaticProfile) Name() string              { return p.name }
func (p *StaticProfile) Permissions() []Permission { return append([]Permission(nil), p.permissions...) }

func (p *StaticProfile) HasPermission(requested Permission) bool {
	return AnyMatches(p.permissions, requested)
}

// AnyMatches reports whether one of granted covers requested.
func AnyMatches(granted []Permission, requested Permission) bool {
	for _, g := range granted {
		if g.Matches(requested) {
			return true
		}
	}
	return false
}

// StaticResolver maps users to fixed profiles.
type StaticResolver[U comparable] struct {
	profiles map[U]Profile
}

func NewStaticResolver[U comparable]() *StaticResolver[U] {
	return &StaticResolver[U]{profiles: make(map[U]Profile)}
}

func (r *StaticResolver[U]) Set(user U, profile Profile) { r.profiles[user] = profile }

func (r *StaticResolver[U]) Resolve(_ context.Context, user U) (Profile, error) {
	return r.profiles[user], nil
}
