package rbac

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/librarium/librarium/internal/platform/httpx"
	"github.com/librarium/librarium/internal/shared"
)

// Reasons reported with authorization decisions.
const (
	ReasonNoCredential           = "no_credential"
	ReasonInvalidToken           = "invalid_token"
	ReasonUnknownPrincipal       = "unknown_principal"
	ReasonInsufficientRole       = "insufficient_role"
	ReasonInsufficientPermission = "insufficient_permission"
	ReasonStoreUnavailable       = "store_unavailable"
)

// DecisionRecorder counts authorization outcomes.
type DecisionRecorder interface {
	AuthzDecision(allowed bool, reason string)
}

// Decision is the outcome of one authorization check.
type Decision struct {
	Allowed bool
	// Err is one of the shared authorization sentinels when denied.
	Err    error
	Reason string
	// Principal is nil for anonymous requests.
	Principal *Principal
}

// Status returns the HTTP status the decision maps to.
func (d Decision) Status() int {
	if d.Allowed {
		return http.StatusOK
	}
	return httpx.StatusFor(d.Err)
}

// Authorizer decides whether a requester satisfies a Requirement. It holds no
// state between calls.
type Authorizer struct {
	resolver    *Resolver
	permissions PermissionStore
	logger      *slog.Logger
	metrics     DecisionRecorder
}

// NewAuthorizer constructs an Authorizer. logger and metrics may be nil.
func NewAuthorizer(resolver *Resolver, permissions PermissionStore, logger *slog.Logger, metrics DecisionRecorder) *Authorizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Authorizer{resolver: resolver, permissions: permissions, logger: logger, metrics: metrics}
}

// Decide evaluates req for principalID. A nil principalID means no credential was presented.
func (a *Authorizer) Decide(ctx context.Context, principalID *int64, req Requirement) Decision {
	return a.record(a.decide(ctx, principalID, req.normalized()))
}

// rejectToken denies a request whose bearer token failed verification.
func (a *Authorizer) rejectToken() Decision {
	return a.record(deny(shared.ErrInvalidToken, ReasonInvalidToken))
}

func (a *Authorizer) record(d Decision) Decision {
	if a.metrics != nil {
		a.metrics.AuthzDecision(d.Allowed, d.Reason)
	}
	return d
}

func (a *Authorizer) decide(ctx context.Context, principalID *int64, req Requirement) Decision {
	if principalID == nil {
		if req.Level == LevelOptional {
			return allow(nil)
		}
		return deny(shared.ErrNoCredential, ReasonNoCredential)
	}

	principal, err := a.resolver.Principal(ctx, *principalID)
	if err != nil {
		if req.Level == LevelOptional {
			a.logger.Warn("optional principal lookup failed", slog.Int64("principal", *principalID), slog.Any("error", err))
			return allow(nil)
		}
		a.logger.Error("resolve principal", slog.Int64("principal", *principalID), slog.Any("error", err))
		return deny(shared.ErrStoreUnavailable, ReasonStoreUnavailable)
	}
	if principal == nil {
		if req.Level == LevelOptional {
			return allow(nil)
		}
		return deny(shared.ErrInsufficientRole, ReasonUnknownPrincipal)
	}

	if !req.Level.admits(principal.Category) {
		return deny(shared.ErrInsufficientRole, ReasonInsufficientRole)
	}

	if req.Permission != "" {
		granted, err := a.resolver.permissionsFor(ctx, principal)
		if err != nil {
			a.logger.Error("resolve permissions", slog.Int64("principal", principal.ID), slog.Any("error", err))
			return deny(shared.ErrStoreUnavailable, ReasonStoreUnavailable)
		}
		if _, ok := granted[req.Permission]; !ok {
			return deny(shared.ErrInsufficientPermission, ReasonInsufficientPermission)
		}
		exists, err := a.permissions.PermissionExists(ctx, req.Permission)
		if err != nil {
			a.logger.Error("check permission", slog.String("permission", req.Permission), slog.Any("error", err))
			return deny(shared.ErrStoreUnavailable, ReasonStoreUnavailable)
		}
		if !exists {
			return deny(shared.ErrInsufficientPermission, ReasonInsufficientPermission)
		}
	}

	return allow(principal)
}

func allow(p *Principal) Decision {
	return Decision{Allowed: true, Principal: p}
}

func deny(err error, reason string) Decision {
	return Decision{Err: err, Reason: reason}
}
