package rbac

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"

	"github.com/librarium/librarium/internal/auth"
	"github.com/librarium/librarium/internal/platform/httpx"
	"github.com/librarium/librarium/internal/respcache"
	"github.com/librarium/librarium/internal/shared"
)

type AdminAPISuite struct {
	suite.Suite

	store  *fakeStore
	audit  *recordingAudit
	codec  *auth.TokenCodec
	router http.Handler
	admin  string
	reads  int
}

func TestAdminAPISuite(t *testing.T) {
	suite.Run(t, new(AdminAPISuite))
}

func (s *AdminAPISuite) SetupTest() {
	s.store = newFakeStore()
	s.audit = &recordingAudit{}
	s.codec = newTestCodec(s.T())
	s.reads = 0

	authz := NewAuthorizer(NewResolver(s.store, s.store), s.store, nil, nil)
	mw := Middleware{Tokens: s.codec, Authorizer: authz}
	memory, err := respcache.NewMemoryStore(64)
	s.Require().NoError(err)
	cache := respcache.New(memory, nil, nil)
	h := NewHandler(nil, NewService(s.store, s.audit, nil), mw, cache, time.Minute)

	r := chi.NewRouter()
	r.Route("/permissions", h.MountPermissionRoutes)
	r.Route("/roles", h.MountRoleRoutes)
	r.Route("/principals", h.MountPrincipalRoutes)
	r.With(mw.Require(RequireAdmin().WithPermission(shared.PermUpdateBooks)), cache.Create(time.Minute)).
		Get("/catalog/{id}", func(w http.ResponseWriter, r *http.Request) {
			s.reads++
			httpx.Respond(w, r, http.StatusOK, "catalog", map[string]int{"reads": s.reads})
		})
	s.router = r

	s.admin = bearerFor(s.T(), s.codec, s.store.addPrincipal(CategoryAdmin, nil))
}

func (s *AdminAPISuite) call(method, target, token, body string) (*httptest.ResponseRecorder, httpx.Envelope) {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", token)
	}
	rr := httptest.NewRecorder()
	s.router.ServeHTTP(rr, req)
	var env httpx.Envelope
	s.Require().NoError(json.Unmarshal(rr.Body.Bytes(), &env), rr.Body.String())
	return rr, env
}

func (s *AdminAPISuite) dataOf(env httpx.Envelope, target any) {
	raw, err := json.Marshal(env.Data)
	s.Require().NoError(err)
	s.Require().NoError(json.Unmarshal(raw, target))
}

func (s *AdminAPISuite) TestRoutesRequireAdmin() {
	user := bearerFor(s.T(), s.codec, s.store.addPrincipal(CategoryUser, nil))

	rr, _ := s.call(http.MethodGet, "/permissions", "", "")
	s.Equal(http.StatusForbidden, rr.Code)
	rr, _ = s.call(http.MethodGet, "/roles", user, "")
	s.Equal(http.StatusUnauthorized, rr.Code)
	rr, _ = s.call(http.MethodPut, "/principals/1/role", user, `{"roleId":1}`)
	s.Equal(http.StatusUnauthorized, rr.Code)
}

func (s *AdminAPISuite) TestPermissionListingIsCachedAndInvalidated() {
	rr, env := s.call(http.MethodPost, "/permissions", s.admin, `{"name":"Create-Books","description":"add titles"}`)
	s.Require().Equal(http.StatusCreated, rr.Code)
	var created Permission
	s.dataOf(env, &created)
	s.Equal("create-books", created.Name)

	first, _ := s.call(http.MethodGet, "/permissions", s.admin, "")
	second, env := s.call(http.MethodGet, "/permissions", s.admin, "")
	s.Empty(first.Header().Get("X-Cache"))
	s.Equal("HIT", second.Header().Get("X-Cache"))
	var perms []Permission
	s.dataOf(env, &perms)
	s.Len(perms, 1)

	rr, _ = s.call(http.MethodPost, "/permissions", s.admin, `{"name":"delete-books"}`)
	s.Require().Equal(http.StatusCreated, rr.Code)

	fresh, env := s.call(http.MethodGet, "/permissions", s.admin, "")
	s.Empty(fresh.Header().Get("X-Cache"))
	s.dataOf(env, &perms)
	s.Len(perms, 2)
}

func (s *AdminAPISuite) TestCreatePermissionDuplicate() {
	s.store.addPermission("create-books")
	rr, env := s.call(http.MethodPost, "/permissions", s.admin, `{"name":"create-books"}`)
	s.Equal(http.StatusConflict, rr.Code)
	s.False(env.Success)
}

func (s *AdminAPISuite) TestCreateRoleValidatesGrants() {
	s.store.addPermission("update-books")

	rr, env := s.call(http.MethodPost, "/roles", s.admin, `{"name":"Editor","permissions":["update-books","burn-books"]}`)
	s.Equal(http.StatusBadRequest, rr.Code)
	s.Contains(env.Message, "burn-books")

	rr, _ = s.call(http.MethodPost, "/roles", s.admin, `{"name":"","permissions":[]}`)
	s.Equal(http.StatusBadRequest, rr.Code)

	rr, _ = s.call(http.MethodPost, "/roles", s.admin, `{"name":"Editor","unknown":true}`)
	s.Equal(http.StatusBadRequest, rr.Code)

	rr, env = s.call(http.MethodPost, "/roles", s.admin, `{"name":"Editor","permissions":["Update-Books","update-books"]}`)
	s.Require().Equal(http.StatusCreated, rr.Code)
	var role Role
	s.dataOf(env, &role)
	s.Equal([]string{"update-books"}, role.Permissions)
	s.Len(role.PermissionIDs, 1)

	rr, _ = s.call(http.MethodPost, "/roles", s.admin, `{"name":"Editor"}`)
	s.Equal(http.StatusConflict, rr.Code)
	s.Equal([]string{"role.create"}, s.audit.actions())
}

func (s *AdminAPISuite) TestRoleLifecycle() {
	s.store.addPermission("create-books")
	_, env := s.call(http.MethodPost, "/roles", s.admin, `{"name":"Writer","permissions":["create-books"]}`)
	var role Role
	s.dataOf(env, &role)
	path := "/roles/" + strconv.FormatInt(role.ID, 10)

	s.call(http.MethodGet, path, s.admin, "")
	hit, _ := s.call(http.MethodGet, path, s.admin, "")
	s.Equal("HIT", hit.Header().Get("X-Cache"))

	rr, _ := s.call(http.MethodPut, path, s.admin, `{"name":"Author","permissions":[]}`)
	s.Require().Equal(http.StatusOK, rr.Code)
	rr, env = s.call(http.MethodGet, path, s.admin, "")
	s.Empty(rr.Header().Get("X-Cache"))
	s.dataOf(env, &role)
	s.Equal("Author", role.Name)
	s.Empty(role.Permissions)

	rr, _ = s.call(http.MethodDelete, path, s.admin, "")
	s.Equal(http.StatusOK, rr.Code)
	rr, _ = s.call(http.MethodGet, path, s.admin, "")
	s.Equal(http.StatusNotFound, rr.Code)
	rr, _ = s.call(http.MethodGet, "/roles/abc", s.admin, "")
	s.Equal(http.StatusBadRequest, rr.Code)
}

func (s *AdminAPISuite) TestBootstrapDefaultRoles() {
	s.store.addPermission("create-books")
	s.store.addPermission("delete-books")

	rr, env := s.call(http.MethodPost, "/roles/default", s.admin, "")
	s.Require().Equal(http.StatusOK, rr.Code)
	var role Role
	s.dataOf(env, &role)
	s.Equal(DefaultRoleName, role.Name)
	s.ElementsMatch([]string{"create-books", "delete-books"}, role.Permissions)

	s.store.addPermission("update-books")
	_, env = s.call(http.MethodPost, "/roles/default", s.admin, "")
	var again Role
	s.dataOf(env, &again)
	s.Equal(role.ID, again.ID)
	s.Len(again.Permissions, 3)
}

func (s *AdminAPISuite) TestAssignRole() {
	role := s.store.addRole("staff")
	user := s.store.addPrincipal(CategoryUser, nil)
	path := "/principals/" + strconv.FormatInt(user, 10) + "/role"

	rr, _ := s.call(http.MethodPut, path, s.admin, `{"roleId":`+strconv.FormatInt(*role, 10)+`}`)
	s.Require().Equal(http.StatusOK, rr.Code)
	s.Equal(role, s.store.principals[user].RoleID)

	rr, _ = s.call(http.MethodPut, path, s.admin, `{"roleId":9999}`)
	s.Equal(http.StatusNotFound, rr.Code)

	rr, _ = s.call(http.MethodPut, path, s.admin, `{"roleId":null}`)
	s.Equal(http.StatusOK, rr.Code)
	s.Nil(s.store.principals[user].RoleID)
}

func (s *AdminAPISuite) TestPermissionRevocationTakesEffectImmediately() {
	update := s.store.addPermission(shared.PermUpdateBooks)
	role := s.store.addRole("ops", update)
	admin := bearerFor(s.T(), s.codec, s.store.addPrincipal(CategoryAdmin, role))

	rr, _ := s.call(http.MethodGet, "/catalog/42", admin, "")
	s.Require().Equal(http.StatusOK, rr.Code)

	rr, _ = s.call(http.MethodDelete, "/permissions/"+strconv.FormatInt(update, 10), s.admin, "")
	s.Require().Equal(http.StatusOK, rr.Code)

	rr, env := s.call(http.MethodGet, "/catalog/42", admin, "")
	s.Equal(http.StatusUnauthorized, rr.Code)
	s.Equal("insufficient permissions", env.Message)
}

func (s *AdminAPISuite) TestCategoryAndPermissionAreBothEnforced() {
	update := s.store.addPermission(shared.PermUpdateBooks)
	editor := s.store.addRole("Editor", update)
	user := bearerFor(s.T(), s.codec, s.store.addPrincipal(CategoryUser, editor))

	rr, env := s.call(http.MethodGet, "/catalog/42", user, "")
	s.Equal(http.StatusUnauthorized, rr.Code)
	s.Equal("unauthorized access", env.Message)
	s.Equal("/catalog/42", env.Route)
	s.Equal(0, s.reads)
}
