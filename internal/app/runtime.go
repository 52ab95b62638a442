package app

import (
	"os"
	"strconv"
)

// TestModeEnv stops cmd/librarium before it dials Postgres or Redis.
const TestModeEnv = "LIBRARIUM_TEST_MODE"

// InTestMode reports whether TestModeEnv holds a true boolean.
func InTestMode() bool {
	on, err := strconv.ParseBool(os.Getenv(TestModeEnv))
	return err == nil && on
}
