package rbac

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/librarium/librarium/internal/platform/db"
	"github.com/librarium/librarium/internal/platform/httpx"
	"github.com/librarium/librarium/internal/shared"
)

// PGStore implements Store using PostgreSQL.
type PGStore struct {
	pool *pgxpool.Pool
}

// NewPGStore constructs a PostgreSQL backed store.
func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

const findPrincipalSQL = `SELECT id, email, category, role_id, is_active FROM principals WHERE id = $1`

// FindPrincipal loads a principal by id.
func (s *PGStore) FindPrincipal(ctx context.Context, id int64) (*Principal, error) {
	var (
		p        Principal
		category string
	)
	err := s.pool.QueryRow(ctx, findPrincipalSQL, id).Scan(&p.ID, &p.Email, &category, &p.RoleID, &p.IsActive)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, fmt.Errorf("rbac: find principal: %w", err)
	}
	p.Category = Category(category)
	return &p, nil
}

// PermissionExists reports whether a permission named name exists.
func (s *PGStore) PermissionExists(ctx context.Context, name string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM permissions WHERE name = $1)`, name).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("rbac: permission exists: %w", err)
	}
	return exists, nil
}

// grantedNamesSQL expands a role's id array in order; the join drops dangling ids.
const grantedNamesSQL = `ARRAY(
	SELECT p.name FROM unnest(r.permission_ids) WITH ORDINALITY AS ref(id, ord)
	JOIN permissions p ON p.id = ref.id
	ORDER BY ref.ord)`

// PermissionsOf returns the granted permission names of a role.
func (s *PGStore) PermissionsOf(ctx context.Context, roleID int64) ([]string, error) {
	var names []string
	err := s.pool.QueryRow(ctx, `SELECT `+grantedNamesSQL+` FROM roles r WHERE r.id = $1`, roleID).Scan(&names)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("rbac: permissions of role: %w", err)
	}
	return names, nil
}

// ListPermissions returns all permissions ordered by name.
func (s *PGStore) ListPermissions(ctx context.Context) ([]Permission, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, name, description, created_at FROM permissions ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("rbac: list permissions: %w", err)
	}
	defer rows.Close()
	var perms []Permission
	for rows.Next() {
		var p Permission
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.CreatedAt); err != nil {
			return nil, err
		}
		perms = append(perms, p)
	}
	return perms, rows.Err()
}

// CreatePermission inserts a permission. Duplicate names yield httpx.ErrDuplicate.
func (s *PGStore) CreatePermission(ctx context.Context, name, description string) (Permission, error) {
	p := Permission{Name: name, Description: description}
	err := s.pool.QueryRow(ctx, `INSERT INTO permissions (name, description) VALUES ($1, $2) RETURNING id, created_at`,
		name, description).Scan(&p.ID, &p.CreatedAt)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return Permission{}, fmt.Errorf("permission %q: %w", name, httpx.ErrDuplicate)
		}
		return Permission{}, fmt.Errorf("rbac: create permission: %w", err)
	}
	return p, nil
}

// DeletePermission removes a permission. Roles keep their now dangling references.
func (s *PGStore) DeletePermission(ctx context.Context, id int64) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM permissions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("rbac: delete permission: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// PermissionIDs resolves names to ids.
func (s *PGStore) PermissionIDs(ctx context.Context, names []string) (map[string]int64, error) {
	ids := make(map[string]int64, len(names))
	if len(names) == 0 {
		return ids, nil
	}
	rows, err := s.pool.Query(ctx, `SELECT id, name FROM permissions WHERE name = ANY($1)`, names)
	if err != nil {
		return nil, fmt.Errorf("rbac: permission ids: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			id   int64
			name string
		)
		if err := rows.Scan(&id, &name); err != nil {
			return nil, err
		}
		ids[name] = id
	}
	return ids, rows.Err()
}

const selectRoleSQL = `SELECT r.id, r.name, r.description, r.permission_ids, ` + grantedNamesSQL + `, r.created_at, r.updated_at
FROM roles r`

func scanRole(row pgx.Row) (Role, error) {
	var role Role
	err := row.Scan(&role.ID, &role.Name, &role.Description, &role.PermissionIDs, &role.Permissions, &role.CreatedAt, &role.UpdatedAt)
	if role.PermissionIDs == nil {
		role.PermissionIDs = []int64{}
	}
	if role.Permissions == nil {
		role.Permissions = []string{}
	}
	return role, err
}

// ListRoles returns all roles ordered by name.
func (s *PGStore) ListRoles(ctx context.Context) ([]Role, error) {
	rows, err := s.pool.Query(ctx, selectRoleSQL+` ORDER BY r.name`)
	if err != nil {
		return nil, fmt.Errorf("rbac: list roles: %w", err)
	}
	defer rows.Close()
	var roles []Role
	for rows.Next() {
		role, err := scanRole(rows)
		if err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	return roles, rows.Err()
}

// GetRole fetches a role by id.
func (s *PGStore) GetRole(ctx context.Context, id int64) (Role, error) {
	return getRole(ctx, s.pool, id)
}

type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func getRole(ctx context.Context, q querier, id int64) (Role, error) {
	role, err := scanRole(q.QueryRow(ctx, selectRoleSQL+` WHERE r.id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Role{}, shared.ErrNotFound
		}
		return Role{}, fmt.Errorf("rbac: get role: %w", err)
	}
	return role, nil
}

// CreateRole inserts a role.
func (s *PGStore) CreateRole(ctx context.Context, in RoleInput) (Role, error) {
	var id int64
	err := s.pool.QueryRow(ctx, `INSERT INTO roles (name, description, permission_ids) VALUES ($1, $2, $3) RETURNING id`,
		in.Name, in.Description, nonNilIDs(in.PermissionIDs)).Scan(&id)
	if err != nil {
		return Role{}, roleWriteError("create role", in.Name, err)
	}
	return s.GetRole(ctx, id)
}

// UpdateRole replaces name, description and permission references of a role.
func (s *PGStore) UpdateRole(ctx context.Context, id int64, in RoleInput) (Role, error) {
	tag, err := s.pool.Exec(ctx, `UPDATE roles SET name = $2, description = $3, permission_ids = $4, updated_at = NOW() WHERE id = $1`,
		id, in.Name, in.Description, nonNilIDs(in.PermissionIDs))
	if err != nil {
		return Role{}, roleWriteError("update role", in.Name, err)
	}
	if tag.RowsAffected() == 0 {
		return Role{}, shared.ErrNotFound
	}
	return s.GetRole(ctx, id)
}

// DeleteRole removes a role. Principals holding it lose their role.
func (s *PGStore) DeleteRole(ctx context.Context, id int64) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM roles WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("rbac: delete role: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// GrantAllToRole upserts role name with the full permission set in one transaction.
func (s *PGStore) GrantAllToRole(ctx context.Context, name, description string) (Role, error) {
	var role Role
	err := db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		var id int64
		err := tx.QueryRow(ctx, `INSERT INTO roles (name, description, permission_ids)
VALUES ($1, $2, ARRAY(SELECT id FROM permissions ORDER BY id))
ON CONFLICT (name) DO UPDATE
SET permission_ids = EXCLUDED.permission_ids, description = EXCLUDED.description, updated_at = NOW()
RETURNING id`, name, description).Scan(&id)
		if err != nil {
			return fmt.Errorf("rbac: upsert role: %w", err)
		}
		role, err = getRole(ctx, tx, id)
		return err
	})
	return role, err
}

// AssignRole sets or clears the role of a principal.
func (s *PGStore) AssignRole(ctx context.Context, principalID int64, roleID *int64) error {
	tag, err := s.pool.Exec(ctx, `UPDATE principals SET role_id = $2, updated_at = NOW() WHERE id = $1`, principalID, roleID)
	if err != nil {
		if db.IsForeignKeyViolation(err) {
			return fmt.Errorf("role %d: %w", *roleID, shared.ErrNotFound)
		}
		return fmt.Errorf("rbac: assign role: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("principal %d: %w", principalID, shared.ErrNotFound)
	}
	return nil
}

func roleWriteError(op, name string, err error) error {
	if db.IsUniqueViolation(err) {
		return fmt.Errorf("role %q: %w", strings.TrimSpace(name), httpx.ErrDuplicate)
	}
	return fmt.Errorf("rbac: %s: %w", op, err)
}

func nonNilIDs(ids []int64) []int64 {
	if ids == nil {
		return []int64{}
	}
	return ids
}

var _ Store = (*PGStore)(nil)
