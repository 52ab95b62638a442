package rbac

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/librarium/librarium/internal/auth"
	"github.com/librarium/librarium/internal/platform/httpx"
	"github.com/librarium/librarium/internal/shared"
)

// TokenDecoder verifies bearer tokens.
type TokenDecoder interface {
	Decode(raw string) (*auth.Claims, error)
}

// Middleware wires authorization checks into HTTP handlers.
type Middleware struct {
	Tokens     TokenDecoder
	Authorizer *Authorizer
	Logger     *slog.Logger
}

// Require returns a pipeline stage enforcing req. Denied requests are answered
// with the error envelope and never reach next.
func (m Middleware) Require(req Requirement) func(http.Handler) http.Handler {
	req = req.normalized()
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var (
				principalID *int64
				claims      *auth.Claims
			)
			if raw, ok := bearerToken(r); ok {
				decoded, id, err := m.verify(raw)
				switch {
				case err == nil:
					claims, principalID = decoded, &id
				case req.Level != LevelOptional:
					m.reject(w, r, req, m.Authorizer.rejectToken())
					return
				}
			}

			decision := m.Authorizer.Decide(r.Context(), principalID, req)
			if !decision.Allowed {
				m.reject(w, r, req, decision)
				return
			}
			if decision.Principal != nil {
				r = r.WithContext(shared.ContextWithSessionUser(r.Context(), sessionUser(decision.Principal, claims)))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireSession admits any authenticated principal.
func (m Middleware) RequireSession() func(http.Handler) http.Handler {
	return m.Require(RequireBoth())
}

func (m Middleware) verify(raw string) (*auth.Claims, int64, error) {
	claims, err := m.Tokens.Decode(raw)
	if err != nil {
		return nil, 0, err
	}
	id, err := claims.PrincipalID()
	if err != nil {
		return nil, 0, err
	}
	return claims, id, nil
}

func (m Middleware) reject(w http.ResponseWriter, r *http.Request, req Requirement, d Decision) {
	if m.Logger != nil {
		m.Logger.Warn("access denied",
			slog.String("route", r.URL.Path),
			slog.String("requirement", req.String()),
			slog.String("reason", d.Reason),
		)
	}
	httpx.RespondError(w, r, d.Err)
}

// bearerToken extracts the credential of an "Authorization: Bearer <token>" header.
func bearerToken(r *http.Request) (string, bool) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func sessionUser(p *Principal, claims *auth.Claims) *shared.SessionUser {
	user := &shared.SessionUser{
		PrincipalID: p.ID,
		Category:    string(p.Category),
		RoleID:      p.RoleID,
	}
	if claims != nil {
		user.Subject = claims.Subject
		user.TokenID = claims.ID
		if claims.IssuedAt != nil {
			user.IssuedAt = claims.IssuedAt.Time
		}
		if claims.ExpiresAt != nil {
			user.ExpiresAt = claims.ExpiresAt.Time
		}
	}
	return user
}
