package rbac

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/librarium/librarium/internal/platform/httpx"
	"github.com/librarium/librarium/internal/shared"
)

// fakeStore is an in-memory Store. Roles keep permission ids without
// referential integrity, like the roles.permission_ids column.
type fakeStore struct {
	mu          sync.Mutex
	nextID      int64
	principals  map[int64]*Principal
	permissions map[int64]Permission
	roles       map[int64]Role
	err         error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		principals:  map[int64]*Principal{},
		permissions: map[int64]Permission{},
		roles:       map[int64]Role{},
	}
}

func (s *fakeStore) id() int64 {
	s.nextID++
	return s.nextID
}

func (s *fakeStore) addPrincipal(category Category, roleID *int64) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.id()
	s.principals[id] = &Principal{ID: id, Email: "p@example.com", Category: category, RoleID: roleID, IsActive: true}
	return id
}

func (s *fakeStore) addPermission(name string) int64 {
	perm, err := s.CreatePermission(context.Background(), name, "")
	if err != nil {
		panic(err)
	}
	return perm.ID
}

func (s *fakeStore) addRole(name string, permissionIDs ...int64) *int64 {
	role, err := s.CreateRole(context.Background(), RoleInput{Name: name, PermissionIDs: permissionIDs})
	if err != nil {
		panic(err)
	}
	return &role.ID
}

func (s *fakeStore) FindPrincipal(_ context.Context, id int64) (*Principal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	p, ok := s.principals[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	clone := *p
	return &clone, nil
}

func (s *fakeStore) PermissionExists(_ context.Context, name string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return false, s.err
	}
	for _, p := range s.permissions {
		if p.Name == name {
			return true, nil
		}
	}
	return false, nil
}

func (s *fakeStore) PermissionsOf(_ context.Context, roleID int64) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	role, ok := s.roles[roleID]
	if !ok {
		return nil, nil
	}
	return s.resolveLocked(role.PermissionIDs), nil
}

func (s *fakeStore) resolveLocked(ids []int64) []string {
	names := []string{}
	for _, id := range ids {
		if p, ok := s.permissions[id]; ok {
			names = append(names, p.Name)
		}
	}
	return names
}

func (s *fakeStore) ListPermissions(context.Context) ([]Permission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	perms := make([]Permission, 0, len(s.permissions))
	for _, p := range s.permissions {
		perms = append(perms, p)
	}
	sort.Slice(perms, func(i, j int) bool { return perms[i].Name < perms[j].Name })
	return perms, nil
}

func (s *fakeStore) CreatePermission(_ context.Context, name, description string) (Permission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.permissions {
		if p.Name == name {
			return Permission{}, httpx.ErrDuplicate
		}
	}
	p := Permission{ID: s.id(), Name: name, Description: description, CreatedAt: time.Now()}
	s.permissions[p.ID] = p
	return p, nil
}

func (s *fakeStore) DeletePermission(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.permissions[id]; !ok {
		return shared.ErrNotFound
	}
	delete(s.permissions, id)
	return nil
}

func (s *fakeStore) PermissionIDs(_ context.Context, names []string) (map[string]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	ids := map[string]int64{}
	for _, name := range names {
		for _, p := range s.permissions {
			if p.Name == name {
				ids[name] = p.ID
			}
		}
	}
	return ids, nil
}

func (s *fakeStore) ListRoles(context.Context) ([]Role, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	roles := make([]Role, 0, len(s.roles))
	for _, role := range s.roles {
		role.Permissions = s.resolveLocked(role.PermissionIDs)
		roles = append(roles, role)
	}
	sort.Slice(roles, func(i, j int) bool { return roles[i].Name < roles[j].Name })
	return roles, nil
}

func (s *fakeStore) GetRole(_ context.Context, id int64) (Role, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	role, ok := s.roles[id]
	if !ok {
		return Role{}, shared.ErrNotFound
	}
	role.Permissions = s.resolveLocked(role.PermissionIDs)
	return role, nil
}

func (s *fakeStore) CreateRole(_ context.Context, in RoleInput) (Role, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.roleNameTakenLocked(in.Name, 0) {
		return Role{}, httpx.ErrDuplicate
	}
	role := Role{ID: s.id(), Name: in.Name, Description: in.Description, PermissionIDs: append([]int64{}, in.PermissionIDs...)}
	s.roles[role.ID] = role
	role.Permissions = s.resolveLocked(role.PermissionIDs)
	return role, nil
}

func (s *fakeStore) UpdateRole(_ context.Context, id int64, in RoleInput) (Role, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	role, ok := s.roles[id]
	if !ok {
		return Role{}, shared.ErrNotFound
	}
	if s.roleNameTakenLocked(in.Name, id) {
		return Role{}, httpx.ErrDuplicate
	}
	role.Name, role.Description, role.PermissionIDs = in.Name, in.Description, append([]int64{}, in.PermissionIDs...)
	s.roles[id] = role
	role.Permissions = s.resolveLocked(role.PermissionIDs)
	return role, nil
}

func (s *fakeStore) roleNameTakenLocked(name string, except int64) bool {
	for id, role := range s.roles {
		if role.Name == name && id != except {
			return true
		}
	}
	return false
}

func (s *fakeStore) DeleteRole(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.roles[id]; !ok {
		return shared.ErrNotFound
	}
	delete(s.roles, id)
	for _, p := range s.principals {
		if p.RoleID != nil && *p.RoleID == id {
			p.RoleID = nil
		}
	}
	return nil
}

func (s *fakeStore) GrantAllToRole(_ context.Context, name, description string) (Role, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]int64, 0, len(s.permissions))
	for id := range s.permissions {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for id, role := range s.roles {
		if role.Name == name {
			role.Description, role.PermissionIDs = description, ids
			s.roles[id] = role
			role.Permissions = s.resolveLocked(ids)
			return role, nil
		}
	}
	role := Role{ID: s.id(), Name: name, Description: description, PermissionIDs: ids}
	s.roles[role.ID] = role
	role.Permissions = s.resolveLocked(ids)
	return role, nil
}

func (s *fakeStore) AssignRole(_ context.Context, principalID int64, roleID *int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.principals[principalID]
	if !ok {
		return shared.ErrNotFound
	}
	if roleID != nil {
		if _, ok := s.roles[*roleID]; !ok {
			return shared.ErrNotFound
		}
	}
	p.RoleID = roleID
	return nil
}

var _ Store = (*fakeStore)(nil)

type recordingAudit struct {
	mu   sync.Mutex
	logs []shared.AuditLog
}

func (a *recordingAudit) Record(_ context.Context, log shared.AuditLog) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.logs = append(a.logs, log)
	return nil
}

func (a *recordingAudit) actions() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]string, 0, len(a.logs))
	for _, log := range a.logs {
		out = append(out, log.Action)
	}
	return out
}

type decisionCounter struct {
	mu      sync.Mutex
	reasons map[string]int
}

func (c *decisionCounter) AuthzDecision(allowed bool, reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.reasons == nil {
		c.reasons = map[string]int{}
	}
	if allowed {
		reason = "allow"
	}
	c.reasons[reason]++
}
