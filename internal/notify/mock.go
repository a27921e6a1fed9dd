package notify

import (
	"context"
	"database/sql"
	"time"

	"github.com/teamdesk/teamdesk/internal/workdata"
)

// Function-field mocks for the dispatcher and repository seams. Kept outside
// _test.go so tests in other packages can reuse them.

type MockWriter struct {
	CreateOrRefreshFunc func(ctx context.Context, n *Notification) error
}

func (m *MockWriter) CreateOrRefresh(ctx context.Context, n *Notification) error {
	return m.CreateOrRefreshFunc(ctx, n)
}

type MockPreferenceSource struct {
	PreferencesFunc func(ctx context.Context, userID string) (*Preferences, error)
}

func (m *MockPreferenceSource) Preferences(ctx context.Context, userID string) (*Preferences, error) {
	return m.PreferencesFunc(ctx, userID)
}

type MockValidator struct {
	CanDeliverFunc func(ctx context.Context, userID string, tenantID *string) bool
}

func (m *MockValidator) CanDeliver(ctx context.Context, userID string, tenantID *string) bool {
	return m.CanDeliverFunc(ctx, userID, tenantID)
}

type MockEmitter struct {
	EmitFunc func(userID string, n *Notification)
}

func (m *MockEmitter) Emit(userID string, n *Notification) {
	if m.EmitFunc != nil {
		m.EmitFunc(userID, n)
	}
}

type MockMailer struct {
	SendFunc func(ctx context.Context, to, subject, html string) error
}

func (m *MockMailer) Send(ctx context.Context, to, subject, html string) error {
	return m.SendFunc(ctx, to, subject, html)
}

type MockDB struct {
	ExecContextFunc     func(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContextFunc    func(ctx context.Context, query string, args ...any) (Rows, error)
	QueryRowContextFunc func(ctx context.Context, query string, args ...any) Row
}

func (m *MockDB) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return m.ExecContextFunc(ctx, query, args...)
}

func (m *MockDB) QueryContext(ctx context.Context, query string, args ...any) (Rows, error) {
	return m.QueryContextFunc(ctx, query, args...)
}

func (m *MockDB) QueryRowContext(ctx context.Context, query string, args ...any) Row {
	return m.QueryRowContextFunc(ctx, query, args...)
}

type MockRow struct {
	ScanFunc func(dest ...any) error
}

func (m *MockRow) Scan(dest ...any) error {
	return m.ScanFunc(dest...)
}

type MockRows struct {
	NextFunc  func() bool
	ScanFunc  func(dest ...any) error
	CloseFunc func() error
	ErrFunc   func() error
}

func (m *MockRows) Next() bool {
	return m.NextFunc()
}

func (m *MockRows) Scan(dest ...any) error {
	return m.ScanFunc(dest...)
}

func (m *MockRows) Close() error {
	if m.CloseFunc != nil {
		return m.CloseFunc()
	}
	return nil
}

func (m *MockRows) Err() error {
	if m.ErrFunc != nil {
		return m.ErrFunc()
	}
	return nil
}

type MockResult struct {
	LastInsertIDFunc func() (int64, error)
	RowsAffectedFunc func() (int64, error)
}

func (m *MockResult) LastInsertId() (int64, error) {
	if m.LastInsertIDFunc != nil {
		return m.LastInsertIDFunc()
	}
	return 0, nil
}

func (m *MockResult) RowsAffected() (int64, error) {
	if m.RowsAffectedFunc != nil {
		return m.RowsAffectedFunc()
	}
	return 1, nil
}

type MockTaskSource struct {
	TasksDueSoonFunc  func(ctx context.Context, before time.Time) ([]workdata.Task, error)
	TaskAssigneesFunc func(ctx context.Context, taskID string) ([]string, error)
}

func (m *MockTaskSource) TasksDueSoon(ctx context.Context, before time.Time) ([]workdata.Task, error) {
	return m.TasksDueSoonFunc(ctx, before)
}

func (m *MockTaskSource) TaskAssignees(ctx context.Context, taskID string) ([]string, error) {
	return m.TaskAssigneesFunc(ctx, taskID)
}

type MockClientSource struct {
	ClientsDueForFollowUpFunc func(ctx context.Context, before time.Time) ([]workdata.Client, error)
}

func (m *MockClientSource) ClientsDueForFollowUp(ctx context.Context, before time.Time) ([]workdata.Client, error) {
	return m.ClientsDueForFollowUpFunc(ctx, before)
}

type MockDeadlineNotifier struct {
	TaskDeadlineFunc func(ctx context.Context, nctx Context, userID, taskID, taskTitle string, due time.Time) error
}

func (m *MockDeadlineNotifier) TaskDeadline(ctx context.Context, nctx Context, userID, taskID, taskTitle string, due time.Time) error {
	return m.TaskDeadlineFunc(ctx, nctx, userID, taskID, taskTitle, due)
}

type MockFollowUpNotifier struct {
	FollowUpDueFunc func(ctx context.Context, nctx Context, userID, clientID, clientName string, due time.Time) error
}

func (m *MockFollowUpNotifier) FollowUpDue(ctx context.Context, nctx Context, userID, clientID, clientName string, due time.Time) error {
	return m.FollowUpDueFunc(ctx, nctx, userID, clientID, clientName, due)
}
