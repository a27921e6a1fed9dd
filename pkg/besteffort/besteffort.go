// Package besteffort runs side-channel work that must never fail its caller.
package besteffort

import (
	"context"
	"fmt"
	"runtime/debug"

	"github.com/teamdesk/teamdesk/pkg/observability"
)

// Go runs fn in a new goroutine. Errors and panics are logged under the given
// operation name and never reach the caller.
func Go(ctx context.Context, logger *observability.Logger, op string, fn func(context.Context) error) {
	go func() {
		Run(ctx, logger, op, fn)
	}()
}

// Run is the synchronous form of Go: it executes fn, swallows any error or
// panic, and reports whether fn completed without error.
func Run(ctx context.Context, logger *observability.Logger, op string, fn func(context.Context) error) bool {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("panic in best-effort operation",
				"op", op,
				"panic", fmt.Sprint(r),
				"stack", string(debug.Stack()),
			)
		}
	}()

	if err := fn(ctx); err != nil {
		logger.Error("best-effort operation failed", "op", op, "error", err)
		return false
	}
	return true
}
