package httpx

import (
	"errors"
	"net/http"

	"github.com/librarium/librarium/internal/shared"
)

// Sentinel errors for domain layer.
var (
	ErrNotFound   = errors.New("resource not found")
	ErrDuplicate  = errors.New("duplicate entry")
	ErrValidation = errors.New("validation failed")
)

// StatusFor maps an error to the HTTP status used in the response envelope.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, shared.ErrNoCredential),
		errors.Is(err, shared.ErrInvalidToken),
		errors.Is(err, shared.ErrStoreUnavailable):
		return http.StatusForbidden
	case errors.Is(err, shared.ErrInsufficientRole),
		errors.Is(err, shared.ErrInsufficientPermission),
		errors.Is(err, shared.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, ErrNotFound), errors.Is(err, shared.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrDuplicate):
		return http.StatusConflict
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// RespondError maps domain errors to enveloped HTTP responses.
// Internal errors never leak their message.
func RespondError(w http.ResponseWriter, r *http.Request, err error) {
	status := StatusFor(err)
	Fail(w, r, status, publicMessage(err, status))
}

var authSentinels = []error{
	shared.ErrNoCredential,
	shared.ErrInvalidToken,
	shared.ErrStoreUnavailable,
	shared.ErrInsufficientRole,
	shared.ErrInsufficientPermission,
	shared.ErrInvalidCredentials,
}

func publicMessage(err error, status int) string {
	if status == http.StatusInternalServerError {
		return http.StatusText(http.StatusInternalServerError)
	}
	for _, sentinel := range authSentinels {
		if errors.Is(err, sentinel) {
			return sentinel.Error()
		}
	}
	return err.Error()
}
