package rbac

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/librarium/librarium/internal/auth"
	"github.com/librarium/librarium/internal/platform/httpx"
	"github.com/librarium/librarium/internal/shared"
	_ "github.com/librarium/librarium/testing"
)

const (
	testSecret = "0123456789abcdef0123456789abcdef"
	testIssuer = "librarium"
)

func newTestCodec(t *testing.T) *auth.TokenCodec {
	t.Helper()
	codec, err := auth.NewTokenCodec(testSecret, time.Hour, testIssuer)
	require.NoError(t, err)
	return codec
}

func bearer(t *testing.T, codec *auth.TokenCodec, subject string) string {
	t.Helper()
	raw, _, err := codec.Issue(subject)
	require.NoError(t, err)
	return "Bearer " + raw
}

func bearerFor(t *testing.T, codec *auth.TokenCodec, id int64) string {
	return bearer(t, codec, strconv.FormatInt(id, 10))
}

func expiredBearer(t *testing.T, id int64) string {
	t.Helper()
	now := time.Now()
	claims := auth.Claims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:   strconv.FormatInt(id, 10),
		Issuer:    testIssuer,
		IssuedAt:  jwt.NewNumericDate(now.Add(-time.Hour)),
		ExpiresAt: jwt.NewNumericDate(now.Add(-time.Second)),
	}}
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return "Bearer " + raw
}

type probe struct {
	calls int
	user  *shared.SessionUser
}

func (p *probe) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	p.calls++
	p.user = shared.SessionUserFromContext(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

type middlewareFixture struct {
	store *fakeStore
	codec *auth.TokenCodec
	mw    Middleware
}

func newMiddlewareFixture(t *testing.T) *middlewareFixture {
	store := newFakeStore()
	authz, _ := newTestAuthorizer(store)
	codec := newTestCodec(t)
	return &middlewareFixture{
		store: store,
		codec: codec,
		mw:    Middleware{Tokens: codec, Authorizer: authz},
	}
}

func (f *middlewareFixture) do(req Requirement, authorization string) (*httptest.ResponseRecorder, *probe) {
	p := &probe{}
	r := httptest.NewRequest(http.MethodGet, "/books/42", nil)
	if authorization != "" {
		r.Header.Set("Authorization", authorization)
	}
	rr := httptest.NewRecorder()
	f.mw.Require(req)(p).ServeHTTP(rr, r)
	return rr, p
}

func requireDenied(t *testing.T, rr *httptest.ResponseRecorder, p *probe, status int, message string) {
	t.Helper()
	assert.Equal(t, 0, p.calls, "handler must not run")
	require.Equal(t, status, rr.Code)
	var env httpx.Envelope
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &env))
	assert.False(t, env.Success)
	assert.Equal(t, status, env.Status)
	assert.Equal(t, message, env.Message)
	assert.Equal(t, "/books/42", env.Route)
	assert.Equal(t, map[string]any{}, env.Data)
	assert.False(t, env.TimeStamp.IsZero())
}

func TestRequireWithoutToken(t *testing.T) {
	f := newMiddlewareFixture(t)

	for _, header := range []string{"", "Token abc", "Bearer", "Bearer   ", "Basic dXNlcjpwYXNz"} {
		rr, p := f.do(RequireAdmin(), header)
		requireDenied(t, rr, p, http.StatusForbidden, "no token provided")
	}

	rr, p := f.do(RequireOptional(), "")
	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Equal(t, 1, p.calls)
	assert.Nil(t, p.user)
}

func TestRequireInvalidTokens(t *testing.T) {
	f := newMiddlewareFixture(t)
	id := f.store.addPrincipal(CategoryAdmin, nil)
	other, err := auth.NewTokenCodec("another-secret-another-secret-another", time.Hour, testIssuer)
	require.NoError(t, err)

	headers := map[string]string{
		"garbage":      "Bearer not-a-token",
		"expired":      expiredBearer(t, id),
		"foreign key":  bearerFor(t, other, id),
		"non numeric":  bearer(t, f.codec, "alice"),
		"zero subject": bearer(t, f.codec, "0"),
	}
	for name, header := range headers {
		t.Run(name, func(t *testing.T) {
			for _, req := range []Requirement{RequireAdmin(), RequireUser(), RequireBoth(), RequirePermission("x")} {
				rr, p := f.do(req, header)
				requireDenied(t, rr, p, http.StatusForbidden, "invalid or expired token")
			}
			rr, p := f.do(RequireOptional(), header)
			assert.Equal(t, http.StatusNoContent, rr.Code)
			assert.Nil(t, p.user, "failed token degrades to anonymous")
		})
	}
}

func TestRequireBindsSessionUser(t *testing.T) {
	f := newMiddlewareFixture(t)
	role := f.store.addRole("staff")
	id := f.store.addPrincipal(CategoryUser, role)

	rr, p := f.do(RequireUser(), bearerFor(t, f.codec, id))
	require.Equal(t, http.StatusNoContent, rr.Code)
	require.NotNil(t, p.user)
	assert.Equal(t, id, p.user.PrincipalID)
	assert.Equal(t, strconv.FormatInt(id, 10), p.user.Subject)
	assert.Equal(t, "user", p.user.Category)
	assert.Equal(t, role, p.user.RoleID)
	assert.NotEmpty(t, p.user.TokenID)
	assert.True(t, p.user.ExpiresAt.After(p.user.IssuedAt))

	rr, p = f.do(RequireOptional(), bearerFor(t, f.codec, id))
	require.Equal(t, http.StatusNoContent, rr.Code)
	require.NotNil(t, p.user)
	assert.Equal(t, id, p.user.PrincipalID)
}

func TestRequireDeniesInsufficientRights(t *testing.T) {
	f := newMiddlewareFixture(t)
	user := f.store.addPrincipal(CategoryUser, nil)

	rr, p := f.do(RequireAdmin(), bearerFor(t, f.codec, user))
	requireDenied(t, rr, p, http.StatusUnauthorized, "unauthorized access")

	rr, p = f.do(RequirePermission(shared.PermCreateBooks), bearerFor(t, f.codec, user))
	requireDenied(t, rr, p, http.StatusUnauthorized, "insufficient permissions")
}

func TestRequireStoreFailure(t *testing.T) {
	f := newMiddlewareFixture(t)
	id := f.store.addPrincipal(CategoryAdmin, nil)
	f.store.err = errors.New("pool closed")

	rr, p := f.do(RequireAdmin(), bearerFor(t, f.codec, id))
	requireDenied(t, rr, p, http.StatusForbidden, "session expired, please login again")
	assert.NotContains(t, rr.Body.String(), "pool closed")
}

func TestBearerToken(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "bearer abc.def")
	token, ok := bearerToken(r)
	assert.True(t, ok)
	assert.Equal(t, "abc.def", token)
}
