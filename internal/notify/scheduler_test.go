package notify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/teamdesk/teamdesk/internal/workdata"
	"github.com/teamdesk/teamdesk/pkg/observability"
)

func TestDeadlineChecker_ScanNotifiesEveryAssignee(t *testing.T) {
	due := time.Now().Add(10 * time.Hour)
	tasks := &MockTaskSource{
		TasksDueSoonFunc: func(ctx context.Context, before time.Time) ([]workdata.Task, error) {
			return []workdata.Task{{ID: "task-1", TenantID: "tenant-a", Title: "Ship it", DueAt: due}}, nil
		},
		TaskAssigneesFunc: func(ctx context.Context, taskID string) ([]string, error) {
			if taskID != "task-1" {
				t.Errorf("unexpected task id %q", taskID)
			}
			return []string{"user-1", "user-2"}, nil
		},
	}

	var mu sync.Mutex
	var calls []string
	notifier := &MockDeadlineNotifier{
		TaskDeadlineFunc: func(ctx context.Context, nctx Context, userID, taskID, taskTitle string, gotDue time.Time) error {
			mu.Lock()
			defer mu.Unlock()
			calls = append(calls, userID)
			if nctx.TenantID == nil || *nctx.TenantID != "tenant-a" {
				t.Errorf("scan must carry the task tenant, got %v", nctx.TenantID)
			}
			if !gotDue.Equal(due) {
				t.Errorf("due = %v, want %v", gotDue, due)
			}
			return nil
		},
	}

	c := NewDeadlineChecker(tasks, notifier, nil, 0, time.Hour, observability.NewLogger("test"))
	if err := c.scanOnce(context.Background()); err != nil {
		t.Fatalf("unexpected scan error: %v", err)
	}
	if len(calls) != 2 {
		t.Fatalf("notified %d assignees, want 2", len(calls))
	}
}

func TestDeadlineChecker_ScanThroughDispatcher(t *testing.T) {
	due := time.Now().Add(10 * time.Hour)
	tasks := &MockTaskSource{
		TasksDueSoonFunc: func(ctx context.Context, before time.Time) ([]workdata.Task, error) {
			return []workdata.Task{{ID: "task-1", TenantID: "tenant-a", Title: "Ship it", DueAt: due}}, nil
		},
		TaskAssigneesFunc: func(ctx context.Context, taskID string) ([]string, error) {
			return []string{"user-1", "user-2"}, nil
		},
	}

	var persisted []*Notification
	store := &MockWriter{CreateOrRefreshFunc: func(ctx context.Context, n *Notification) error {
		persisted = append(persisted, n)
		return nil
	}}
	d := testDispatcher(store, nil, nil, nil)

	c := NewDeadlineChecker(tasks, d, nil, 0, time.Hour, observability.NewLogger("test"))
	if err := c.scanOnce(context.Background()); err != nil {
		t.Fatalf("unexpected scan error: %v", err)
	}

	if len(persisted) != 2 {
		t.Fatalf("persisted %d notifications, want 2", len(persisted))
	}
	for _, n := range persisted {
		if n.Type != TypeTaskDeadline {
			t.Errorf("type = %q, want task_deadline", n.Type)
		}
		if n.Severity != SeverityWarning {
			t.Errorf("severity = %q, want warning", n.Severity)
		}
		if n.DedupeKey != "deadline:task-1" {
			t.Errorf("dedupe key = %q, want deadline:task-1", n.DedupeKey)
		}
		if n.TenantID == nil || *n.TenantID != "tenant-a" {
			t.Errorf("tenant = %v, want tenant-a", n.TenantID)
		}
	}
}

func TestDeadlineChecker_OneFailureDoesNotStopScan(t *testing.T) {
	tasks := &MockTaskSource{
		TasksDueSoonFunc: func(ctx context.Context, before time.Time) ([]workdata.Task, error) {
			return []workdata.Task{
				{ID: "task-1", TenantID: "tenant-a", Title: "A", DueAt: time.Now()},
				{ID: "task-2", TenantID: "tenant-a", Title: "B", DueAt: time.Now()},
			}, nil
		},
		TaskAssigneesFunc: func(ctx context.Context, taskID string) ([]string, error) {
			return []string{"user-1"}, nil
		},
	}
	notified := 0
	notifier := &MockDeadlineNotifier{
		TaskDeadlineFunc: func(ctx context.Context, nctx Context, userID, taskID, taskTitle string, due time.Time) error {
			if taskID == "task-1" {
				return errors.New("db down")
			}
			notified++
			return nil
		},
	}

	c := NewDeadlineChecker(tasks, notifier, nil, 0, time.Hour, observability.NewLogger("test"))
	if err := c.scanOnce(context.Background()); err != nil {
		t.Fatalf("per-item failures must not fail the scan, got %v", err)
	}
	if notified != 1 {
		t.Errorf("notified = %d, want 1", notified)
	}
}

func TestFollowUpChecker_ScanNotifiesOwners(t *testing.T) {
	due := time.Now()
	clients := &MockClientSource{
		ClientsDueForFollowUpFunc: func(ctx context.Context, before time.Time) ([]workdata.Client, error) {
			if before.Before(due) {
				t.Error("cutoff must be at or after now")
			}
			return []workdata.Client{
				{ID: "client-7", TenantID: "tenant-b", Name: "Acme", OwnerID: "user-3", NextFollowUpAt: due},
			}, nil
		},
	}

	var gotUser, gotClient, gotName string
	notifier := &MockFollowUpNotifier{
		FollowUpDueFunc: func(ctx context.Context, nctx Context, userID, clientID, clientName string, d time.Time) error {
			gotUser, gotClient, gotName = userID, clientID, clientName
			if nctx.TenantID == nil || *nctx.TenantID != "tenant-b" {
				t.Errorf("scan must carry the client tenant, got %v", nctx.TenantID)
			}
			return nil
		},
	}

	c := NewFollowUpChecker(clients, notifier, nil, 0, time.Hour, observability.NewLogger("test"))
	if err := c.scanOnce(context.Background()); err != nil {
		t.Fatalf("unexpected scan error: %v", err)
	}
	if gotUser != "user-3" || gotClient != "client-7" || gotName != "Acme" {
		t.Errorf("notified (%q, %q, %q), want (user-3, client-7, Acme)", gotUser, gotClient, gotName)
	}
}

func TestFollowUpChecker_QueryErrorFailsScan(t *testing.T) {
	clients := &MockClientSource{
		ClientsDueForFollowUpFunc: func(ctx context.Context, before time.Time) ([]workdata.Client, error) {
			return nil, errors.New("connection refused")
		},
	}
	c := NewFollowUpChecker(clients, &MockFollowUpNotifier{}, nil, 0, time.Hour, observability.NewLogger("test"))
	if err := c.scanOnce(context.Background()); err == nil {
		t.Fatal("expected query error to fail the scan")
	}
}

func TestScheduler_StartStopRestart(t *testing.T) {
	scans := make(chan struct{}, 16)
	tasks := &MockTaskSource{
		TasksDueSoonFunc: func(ctx context.Context, before time.Time) ([]workdata.Task, error) {
			scans <- struct{}{}
			return nil, nil
		},
	}
	c := NewDeadlineChecker(tasks, &MockDeadlineNotifier{}, nil, time.Millisecond, time.Hour, observability.NewLogger("test"))

	if c.Running() {
		t.Fatal("checker must start stopped")
	}
	c.Start()
	if !c.Running() {
		t.Fatal("checker must report running after Start")
	}

	select {
	case <-scans:
	case <-time.After(2 * time.Second):
		t.Fatal("initial scan did not run")
	}

	// Start on a running checker replaces the interval and scans again.
	c.Start()
	select {
	case <-scans:
	case <-time.After(2 * time.Second):
		t.Fatal("restart did not trigger a fresh initial scan")
	}

	c.Stop()
	if c.Running() {
		t.Fatal("checker must report stopped after Stop")
	}
	c.Stop() // idempotent
}

func TestScheduler_StopBeforeInitialDelaySkipsScan(t *testing.T) {
	scanned := false
	tasks := &MockTaskSource{
		TasksDueSoonFunc: func(ctx context.Context, before time.Time) ([]workdata.Task, error) {
			scanned = true
			return nil, nil
		},
	}
	c := NewDeadlineChecker(tasks, &MockDeadlineNotifier{}, nil, time.Hour, time.Hour, observability.NewLogger("test"))
	c.Start()
	c.Stop()
	if scanned {
		t.Error("stopping inside the initial delay must not run a scan")
	}
}
