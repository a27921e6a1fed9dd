package besteffort

import (
	"context"
	"errors"
	"testing"

	"github.com/teamdesk/teamdesk/pkg/observability"
)

func TestRun(t *testing.T) {
	logger := observability.NewLogger("test")

	if !Run(context.Background(), logger, "ok", func(ctx context.Context) error { return nil }) {
		t.Error("successful op must report true")
	}
	if Run(context.Background(), logger, "fails", func(ctx context.Context) error { return errors.New("boom") }) {
		t.Error("failed op must report false, not propagate")
	}
}

func TestRunRecoversPanic(t *testing.T) {
	logger := observability.NewLogger("test")
	ok := Run(context.Background(), logger, "panics", func(ctx context.Context) error {
		panic("unexpected state")
	})
	if ok {
		t.Error("panicking op must report false")
	}
}
