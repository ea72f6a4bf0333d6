package testing

import (
	"testing"

	"github.com/arloliu/edgeshard/internal/logger"
	"github.com/arloliu/edgeshard/types"
)

// NewTestLogger creates a logger that writes to the test log.
// Fatal fails the test.
func NewTestLogger(tb testing.TB) types.Logger {
	return logger.NewTest(tb)
}
