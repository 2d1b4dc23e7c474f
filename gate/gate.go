package gate

import "context"

// Gate checks profile permissions for a user.
type Gate[U comparable] struct {
	resolver ProfileResolver[U]
}

func New[U comparable](resolver ProfileResolver[U]) *Gate[U] {
	return &Gate[U]{resolver: resolver}
}

// Profile resolves the user's profile; the zero user is unauthenticated.
func (g *Gate[U]) Profile(ctx context.Context, user U) (Profile, error) {
	var zero U
	if user == zero {
		return nil, ErrUnauthenticated
	}
	profile, err := g.resolver.Resolve(ctx, user)
	if err != nil {
		return nil, err
	}
	if profile == nil {
		return nil, ErrForbidden
	}
	return profile, nil
}

// Authorize returns nil when the user's profile grants resourceType:action.
func (g *Gate[U]) Authorize(ctx context.Context, user U, action Action, resourceType string) error {
	profile, err := g.Profile(ctx, user)
	if err != nil {
		return err
	}
	if !profile.HasPermission(NewPermission(resourceType, action)) {
		return ErrForbidden
	}
	return nil
}

func (g *Gate[U]) Can(ctx context.Context, user U, action Action, resourceType string) bool {
	return g.Authorize(ctx, user, action, resourceType) == nil
}

// IsAdmin reports whether the user holds the superadmin permission.
func (g *Gate[U]) IsAdmin(ctx context.Context, user U) bool {
	profile, err := g.Profile(ctx, user)
	return err == nil && profile.HasPermission(PermissionSuperAdmin)
}
