package rbac

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/librarium/librarium/internal/platform/httpx"
	"github.com/librarium/librarium/internal/shared"
)

// DefaultRoleName is the role bootstrapped with every permission.
const DefaultRoleName = "admin"

// Service orchestrates permission and role administration.
type Service struct {
	store  Store
	audit  shared.AuditRecorder
	logger *slog.Logger
}

// NewService constructs a Service. audit and logger may be nil.
func NewService(store Store, audit shared.AuditRecorder, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, audit: audit, logger: logger}
}

// ListPermissions returns all permissions.
func (s *Service) ListPermissions(ctx context.Context) ([]Permission, error) {
	perms, err := s.store.ListPermissions(ctx)
	if perms == nil && err == nil {
		perms = []Permission{}
	}
	return perms, err
}

// CreatePermission registers a new permission name.
func (s *Service) CreatePermission(ctx context.Context, actorID int64, name, description string) (Permission, error) {
	name = normalizePermission(name)
	if name == "" {
		return Permission{}, fmt.Errorf("permission name required: %w", httpx.ErrValidation)
	}
	perm, err := s.store.CreatePermission(ctx, name, strings.TrimSpace(description))
	if err != nil {
		return Permission{}, err
	}
	s.record(ctx, actorID, "permission.create", "permission", perm.ID, map[string]any{"name": perm.Name})
	return perm, nil
}

// DeletePermission removes a permission. Role references to it are left in place and ignored.
func (s *Service) DeletePermission(ctx context.Context, actorID, id int64) error {
	if err := s.store.DeletePermission(ctx, id); err != nil {
		return err
	}
	s.record(ctx, actorID, "permission.delete", "permission", id, nil)
	return nil
}

// ListRoles returns all roles.
func (s *Service) ListRoles(ctx context.Context) ([]Role, error) {
	roles, err := s.store.ListRoles(ctx)
	if roles == nil && err == nil {
		roles = []Role{}
	}
	return roles, err
}

// GetRole fetches a role by id.
func (s *Service) GetRole(ctx context.Context, id int64) (Role, error) {
	return s.store.GetRole(ctx, id)
}

// CreateRole creates a role granting the named permissions, which must all exist.
func (s *Service) CreateRole(ctx context.Context, actorID int64, name, description string, permissions []string) (Role, error) {
	in, err := s.roleInput(ctx, name, description, permissions)
	if err != nil {
		return Role{}, err
	}
	role, err := s.store.CreateRole(ctx, in)
	if err != nil {
		return Role{}, err
	}
	s.record(ctx, actorID, "role.create", "role", role.ID, map[string]any{"name": role.Name, "permissions": role.Permissions})
	return role, nil
}

// UpdateRole replaces a role's name, description and grants.
func (s *Service) UpdateRole(ctx context.Context, actorID, id int64, name, description string, permissions []string) (Role, error) {
	in, err := s.roleInput(ctx, name, description, permissions)
	if err != nil {
		return Role{}, err
	}
	role, err := s.store.UpdateRole(ctx, id, in)
	if err != nil {
		return Role{}, err
	}
	s.record(ctx, actorID, "role.update", "role", role.ID, map[string]any{"name": role.Name, "permissions": role.Permissions})
	return role, nil
}

// DeleteRole removes a role.
func (s *Service) DeleteRole(ctx context.Context, actorID, id int64) error {
	if err := s.store.DeleteRole(ctx, id); err != nil {
		return err
	}
	s.record(ctx, actorID, "role.delete", "role", id, nil)
	return nil
}

// BootstrapDefaultRoles upserts the admin role with the full current permission set.
func (s *Service) BootstrapDefaultRoles(ctx context.Context, actorID int64) (Role, error) {
	role, err := s.store.GrantAllToRole(ctx, DefaultRoleName, "Full access")
	if err != nil {
		return Role{}, err
	}
	s.record(ctx, actorID, "role.bootstrap", "role", role.ID, map[string]any{"permissions": role.Permissions})
	return role, nil
}

// AssignRole sets the role of a principal. A nil roleID clears it.
func (s *Service) AssignRole(ctx context.Context, actorID, principalID int64, roleID *int64) error {
	if err := s.store.AssignRole(ctx, principalID, roleID); err != nil {
		return err
	}
	meta := map[string]any{"role_id": nil}
	if roleID != nil {
		meta["role_id"] = *roleID
	}
	s.record(ctx, actorID, "principal.assign_role", "principal", principalID, meta)
	return nil
}

func (s *Service) roleInput(ctx context.Context, name, description string, permissions []string) (RoleInput, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return RoleInput{}, fmt.Errorf("role name required: %w", httpx.ErrValidation)
	}
	names := normalizePermissions(permissions)
	ids, err := s.store.PermissionIDs(ctx, names)
	if err != nil {
		return RoleInput{}, err
	}
	in := RoleInput{Name: name, Description: strings.TrimSpace(description), PermissionIDs: make([]int64, 0, len(names))}
	for _, perm := range names {
		id, ok := ids[perm]
		if !ok {
			return RoleInput{}, fmt.Errorf("unknown permission %q: %w", perm, httpx.ErrValidation)
		}
		in.PermissionIDs = append(in.PermissionIDs, id)
	}
	return in, nil
}

func (s *Service) record(ctx context.Context, actorID int64, action, entity string, entityID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   entity,
		EntityID: strconv.FormatInt(entityID, 10),
		Meta:     meta,
	})
	if err != nil {
		s.logger.Warn("audit record", slog.String("action", action), slog.Any("error", err))
	}
}
