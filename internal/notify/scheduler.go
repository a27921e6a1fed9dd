package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/teamdesk/teamdesk/internal/workdata"
	"github.com/teamdesk/teamdesk/pkg/observability"
)

// TaskSource is the task query surface of the deadline checker.
type TaskSource interface {
	TasksDueSoon(ctx context.Context, before time.Time) ([]workdata.Task, error)
	TaskAssignees(ctx context.Context, taskID string) ([]string, error)
}

// ClientSource is the CRM query surface of the follow-up checker.
type ClientSource interface {
	ClientsDueForFollowUp(ctx context.Context, before time.Time) ([]workdata.Client, error)
}

// DeadlineNotifier is the slice of the dispatcher the deadline checker uses.
type DeadlineNotifier interface {
	TaskDeadline(ctx context.Context, nctx Context, userID, taskID, taskTitle string, due time.Time) error
}

// FollowUpNotifier is the slice of the dispatcher the follow-up checker uses.
type FollowUpNotifier interface {
	FollowUpDue(ctx context.Context, nctx Context, userID, clientID, clientName string, due time.Time) error
}

// ScanLock is a best-effort redis lease that keeps replicas from running the
// same scan concurrently. Losing redis does not stop scans: the dedupe upsert
// in the repository is the correctness backstop, the lease only saves work.
type ScanLock struct {
	rdb    *redis.Client
	ttl    time.Duration
	holder string
	logger *observability.Logger
}

func NewScanLock(rdb *redis.Client, ttl time.Duration, logger *observability.Logger) *ScanLock {
	return &ScanLock{
		rdb:    rdb,
		ttl:    ttl,
		holder: uuid.New().String(),
		logger: logger.Named("scan-lock"),
	}
}

// TryAcquire attempts to take the named lease. Redis errors grant the lease.
func (l *ScanLock) TryAcquire(ctx context.Context, name string) bool {
	if l == nil || l.rdb == nil {
		return true
	}
	ok, err := l.rdb.SetNX(ctx, "notify:scan:"+name, l.holder, l.ttl).Result()
	if err != nil {
		l.logger.Warn("redis error acquiring scan lease, proceeding", "scan", name, "error", err)
		return true
	}
	return ok
}

// Release drops the named lease if this process still holds it.
func (l *ScanLock) Release(ctx context.Context, name string) {
	if l == nil || l.rdb == nil {
		return
	}
	key := "notify:scan:" + name
	holder, err := l.rdb.Get(ctx, key).Result()
	if err != nil || holder != l.holder {
		return
	}
	l.rdb.Del(ctx, key)
}

// scheduler is the shared interval loop behind both checkers. It has two
// states, stopped and running; Start on a running scheduler replaces the
// existing interval (a restart), Stop prevents future ticks and waits for an
// in-flight scan to finish. Scans run on a background context so stopping
// never cancels one midway.
type scheduler struct {
	name         string
	initialDelay time.Duration
	interval     time.Duration
	scan         func(ctx context.Context) error
	lock         *ScanLock
	logger       *observability.Logger

	mu     sync.Mutex
	stopCh chan struct{}
	done   chan struct{}
}

// Start transitions the scheduler to running. If it is already running the
// existing interval is cleared and replaced.
func (s *scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopCh != nil {
		close(s.stopCh)
		<-s.done
	}
	s.stopCh = make(chan struct{})
	s.done = make(chan struct{})
	s.logger.Info("scheduler started", "scheduler", s.name, "interval", s.interval.String())
	go s.loop(s.stopCh, s.done)
}

// Stop transitions the scheduler to stopped and waits for any in-flight scan
// to complete. Stopping a stopped scheduler is a no-op.
func (s *scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopCh == nil {
		return
	}
	close(s.stopCh)
	<-s.done
	s.stopCh = nil
	s.done = nil
	s.logger.Info("scheduler stopped", "scheduler", s.name)
}

// Running reports whether the scheduler is in the running state.
func (s *scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopCh != nil
}

func (s *scheduler) loop(stopCh, done chan struct{}) {
	defer close(done)

	delay := time.NewTimer(s.initialDelay)
	defer delay.Stop()
	select {
	case <-stopCh:
		return
	case <-delay.C:
	}
	s.runScan()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			s.runScan()
		}
	}
}

func (s *scheduler) runScan() {
	ctx := context.Background()
	if !s.lock.TryAcquire(ctx, s.name) {
		s.logger.Debug("scan lease held by another replica, skipping", "scheduler", s.name)
		return
	}
	defer s.lock.Release(ctx, s.name)

	timer := prometheus.NewTimer(ScanDuration.WithLabelValues(s.name))
	defer timer.ObserveDuration()

	// One failed scan never stops the next tick.
	if err := s.scan(ctx); err != nil {
		ScanFailures.WithLabelValues(s.name).Inc()
		s.logger.Error("scan failed", "scheduler", s.name, "error", err)
	}
}

// DeadlineChecker periodically notifies assignees of tasks due within the
// next 24 hours. Dedupe keys keep rescans from duplicating notifications.
type DeadlineChecker struct {
	scheduler
	tasks    TaskSource
	notifier DeadlineNotifier
}

func NewDeadlineChecker(tasks TaskSource, notifier DeadlineNotifier, lock *ScanLock, initialDelay, interval time.Duration, logger *observability.Logger) *DeadlineChecker {
	c := &DeadlineChecker{tasks: tasks, notifier: notifier}
	c.scheduler = scheduler{
		name:         "deadline",
		initialDelay: initialDelay,
		interval:     interval,
		scan:         c.scanOnce,
		lock:         lock,
		logger:       logger.Named("deadline-checker"),
	}
	return c
}

func (c *DeadlineChecker) scanOnce(ctx context.Context) error {
	horizon := time.Now().Add(24 * time.Hour)
	tasks, err := c.tasks.TasksDueSoon(ctx, horizon)
	if err != nil {
		return fmt.Errorf("failed to query tasks due soon: %w", err)
	}

	notified := 0
	for _, t := range tasks {
		assignees, err := c.tasks.TaskAssignees(ctx, t.ID)
		if err != nil {
			c.logger.Warn("failed to load assignees", "task_id", t.ID, "error", err)
			continue
		}
		// Sequential on purpose: one due item at a time bounds storage load.
		for _, userID := range assignees {
			tenant := t.TenantID
			nctx := Context{TenantID: &tenant}
			if err := c.notifier.TaskDeadline(ctx, nctx, userID, t.ID, t.Title, t.DueAt); err != nil {
				c.logger.Warn("failed to notify assignee", "task_id", t.ID, "user_id", userID, "error", err)
				continue
			}
			notified++
		}
	}
	c.logger.Info("deadline scan complete", "tasks_due", len(tasks), "notified", notified)
	return nil
}

// FollowUpChecker periodically reminds CRM client owners about follow-ups due
// by end of the current day.
type FollowUpChecker struct {
	scheduler
	clients  ClientSource
	notifier FollowUpNotifier
}

func NewFollowUpChecker(clients ClientSource, notifier FollowUpNotifier, lock *ScanLock, initialDelay, interval time.Duration, logger *observability.Logger) *FollowUpChecker {
	c := &FollowUpChecker{clients: clients, notifier: notifier}
	c.scheduler = scheduler{
		name:         "followup",
		initialDelay: initialDelay,
		interval:     interval,
		scan:         c.scanOnce,
		lock:         lock,
		logger:       logger.Named("followup-checker"),
	}
	return c
}

func (c *FollowUpChecker) scanOnce(ctx context.Context) error {
	now := time.Now()
	endOfDay := time.Date(now.Year(), now.Month(), now.Day(), 23, 59, 59, 0, now.Location())
	clients, err := c.clients.ClientsDueForFollowUp(ctx, endOfDay)
	if err != nil {
		return fmt.Errorf("failed to query due follow-ups: %w", err)
	}

	notified := 0
	for _, cl := range clients {
		tenant := cl.TenantID
		nctx := Context{TenantID: &tenant}
		if err := c.notifier.FollowUpDue(ctx, nctx, cl.OwnerID, cl.ID, cl.Name, cl.NextFollowUpAt); err != nil {
			c.logger.Warn("failed to notify owner", "client_id", cl.ID, "user_id", cl.OwnerID, "error", err)
			continue
		}
		notified++
	}
	c.logger.Info("follow-up scan complete", "due", len(clients), "notified", notified)
	return nil
}
