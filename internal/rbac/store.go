package rbac

import "context"

// PermissionStore answers permission existence and role grants. Reads are
// never cached so that grants and revocations apply to the next request.
type PermissionStore interface {
	PermissionExists(ctx context.Context, name string) (bool, error)
	// PermissionsOf returns the names granted to roleID. Unknown roles and
	// references to deleted permissions yield nothing.
	PermissionsOf(ctx context.Context, roleID int64) ([]string, error)
}

// PrincipalStore loads principals. FindPrincipal returns shared.ErrNotFound
// when id does not exist.
type PrincipalStore interface {
	FindPrincipal(ctx context.Context, id int64) (*Principal, error)
}

// Store is the full persistence port used by the administration service.
type Store interface {
	PermissionStore
	PrincipalStore

	ListPermissions(ctx context.Context) ([]Permission, error)
	CreatePermission(ctx context.Context, name, description string) (Permission, error)
	DeletePermission(ctx context.Context, id int64) error
	// PermissionIDs maps each known name to its id. Unknown names are absent.
	PermissionIDs(ctx context.Context, names []string) (map[string]int64, error)

	ListRoles(ctx context.Context) ([]Role, error)
	GetRole(ctx context.Context, id int64) (Role, error)
	CreateRole(ctx context.Context, in RoleInput) (Role, error)
	UpdateRole(ctx context.Context, id int64, in RoleInput) (Role, error)
	DeleteRole(ctx context.Context, id int64) error
	// GrantAllToRole upserts the role named name holding every current permission.
	GrantAllToRole(ctx context.Context, name, description string) (Role, error)

	AssignRole(ctx context.Context, principalID int64, roleID *int64) error
}
