package app

import (
	"os"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
)

// TestModeEnv switches commands into test mode: the worker exits before
// dialing Postgres or Redis and the ops router drops its rate limiter.
const TestModeEnv = "APOTEK_TEST_MODE"

var (
	testMode     atomic.Bool
	testModeOnce sync.Once
)

// parseTestMode accepts the strconv.ParseBool spellings. Anything else,
// including an unset variable, leaves test mode off.
func parseTestMode(raw string) bool {
	on, err := strconv.ParseBool(strings.TrimSpace(raw))
	return err == nil && on
}

// InTestMode reports whether TestModeEnv was set when first checked.
func InTestMode() bool {
	testModeOnce.Do(RefreshTestMode)
	return testMode.Load()
}

// RefreshTestMode re-reads TestModeEnv.
func RefreshTestMode() {
	testMode.Store(parseTestMode(os.Getenv(TestModeEnv)))
}
