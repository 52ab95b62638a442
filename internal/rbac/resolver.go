package rbac

import (
	"context"
	"errors"
	"sort"

	"github.com/librarium/librarium/internal/shared"
)

// Resolver maps a principal id to its category and effective permissions.
type Resolver struct {
	principals  PrincipalStore
	permissions PermissionStore
}

// NewResolver constructs a Resolver.
func NewResolver(principals PrincipalStore, permissions PermissionStore) *Resolver {
	return &Resolver{principals: principals, permissions: permissions}
}

// Principal loads an active principal. Missing or inactive principals yield nil without error.
func (r *Resolver) Principal(ctx context.Context, id int64) (*Principal, error) {
	p, err := r.principals.FindPrincipal(ctx, id)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	if p == nil || !p.IsActive || !p.Category.Valid() {
		return nil, nil
	}
	return p, nil
}

// Category returns the category of id, or false when id is neither admin nor user.
func (r *Resolver) Category(ctx context.Context, id int64) (Category, bool, error) {
	p, err := r.Principal(ctx, id)
	if err != nil || p == nil {
		return "", false, err
	}
	return p.Category, true, nil
}

// IsAdmin reports whether id is an active admin principal.
func (r *Resolver) IsAdmin(ctx context.Context, id int64) (bool, error) {
	c, ok, err := r.Category(ctx, id)
	return ok && c == CategoryAdmin, err
}

// IsUser reports whether id is an active user principal.
func (r *Resolver) IsUser(ctx context.Context, id int64) (bool, error) {
	c, ok, err := r.Category(ctx, id)
	return ok && c == CategoryUser, err
}

// EffectivePermissions returns the permission names granted to id through its role.
// A principal without a role has none.
func (r *Resolver) EffectivePermissions(ctx context.Context, id int64) (map[string]struct{}, error) {
	p, err := r.Principal(ctx, id)
	if err != nil {
		return nil, err
	}
	return r.permissionsFor(ctx, p)
}

// EffectivePermissionNames is EffectivePermissions as a sorted slice.
func (r *Resolver) EffectivePermissionNames(ctx context.Context, id int64) ([]string, error) {
	set, err := r.EffectivePermissions(ctx, id)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(set))
	for name := range set {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (r *Resolver) permissionsFor(ctx context.Context, p *Principal) (map[string]struct{}, error) {
	set := map[string]struct{}{}
	if p == nil || p.RoleID == nil {
		return set, nil
	}
	names, err := r.permissions.PermissionsOf(ctx, *p.RoleID)
	if err != nil {
		return nil, err
	}
	for _, name := range names {
		set[normalizePermission(name)] = struct{}{}
	}
	return set, nil
}
