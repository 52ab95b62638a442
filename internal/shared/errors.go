package shared

import "errors"

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrInvalidCredentials indicates login failure.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrNoCredential occurs when the request carries no bearer token.
	ErrNoCredential = errors.New("no token provided")
	// ErrInvalidToken covers malformed, tampered and expired tokens alike.
	ErrInvalidToken = errors.New("invalid or expired token")
	// ErrInsufficientRole occurs when the principal category does not match the route.
	ErrInsufficientRole = errors.New("unauthorized access")
	// ErrInsufficientPermission occurs when the required permission is not granted.
	ErrInsufficientPermission = errors.New("insufficient permissions")
	// ErrStoreUnavailable wraps unexpected failures while resolving roles or permissions.
	ErrStoreUnavailable = errors.New("session expired, please login again")
)
