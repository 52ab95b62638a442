// Package testing prepares the process environment for tests that import it.
package testing

import "os"

// JWTSecret is exported as JWT_SECRET when the variable is unset.
const JWTSecret = "test-secret-test-secret-test-secret!"

func init() {
	_ = os.Setenv("LIBRARIUM_TEST_MODE", "1")
	if os.Getenv("JWT_SECRET") == "" {
		_ = os.Setenv("JWT_SECRET", JWTSecret)
	}
}
