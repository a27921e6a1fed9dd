package notify

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a lifecycle mutation addresses a notification
// that does not exist or belongs to another user.
var ErrNotFound = errors.New("notification not found")

// DB is the database surface the repository uses. *sql.DB satisfies it via
// the sqlDB adapter; tests substitute MockDB.
type DB interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) Row
}

type Row interface {
	Scan(dest ...any) error
}

type Rows interface {
	Next() bool
	Scan(dest ...any) error
	Close() error
	Err() error
}

type sqlDB struct {
	db *sql.DB
}

func (s sqlDB) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return s.db.ExecContext(ctx, query, args...)
}

func (s sqlDB) QueryContext(ctx context.Context, query string, args ...any) (Rows, error) {
	return s.db.QueryContext(ctx, query, args...)
}

func (s sqlDB) QueryRowContext(ctx context.Context, query string, args ...any) Row {
	return s.db.QueryRowContext(ctx, query, args...)
}

// Repository handles database operations for notifications and preferences.
type Repository struct {
	db DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: sqlDB{db: db}}
}

// NewRepositoryWithDB builds a repository over an arbitrary DB, for tests.
func NewRepositoryWithDB(db DB) *Repository {
	return &Repository{db: db}
}

const notificationColumns = `id, tenant_id, user_id, type, title, message, payload, severity,
	entity_type, entity_id, href, dedupe_key, dismissed, read_at, created_at`

// Create inserts a new notification unconditionally.
func (r *Repository) Create(ctx context.Context, n *Notification) error {
	n.ID = uuid.New().String()
	n.CreatedAt = time.Now().UTC()

	payload, err := marshalPayload(n.Payload)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO notifications (` + notificationColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, false, NULL, $13)
	`
	_, err = r.db.ExecContext(ctx, query,
		n.ID, n.TenantID, n.UserID, n.Type, n.Title, n.Message, payload, n.Severity,
		n.EntityType, n.EntityID, n.Href, nullIfEmpty(n.DedupeKey), n.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert notification: %w", err)
	}
	return nil
}

// CreateOrRefresh persists a notification, deduplicating on the dedupe key.
// Without a key it behaves like Create. With a key, an undismissed row for
// the same user and key is refreshed in place instead of duplicated; the
// conflict is resolved atomically by the database so concurrent scheduler
// ticks and request-triggered events cannot race into two live rows. The
// surviving row keeps its id and read timestamp.
func (r *Repository) CreateOrRefresh(ctx context.Context, n *Notification) error {
	if n.DedupeKey == "" {
		return r.Create(ctx, n)
	}

	n.ID = uuid.New().String()
	n.CreatedAt = time.Now().UTC()

	payload, err := marshalPayload(n.Payload)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO notifications (` + notificationColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, false, NULL, $13)
		ON CONFLICT (user_id, dedupe_key) WHERE NOT dismissed
		DO UPDATE SET
			title = EXCLUDED.title,
			message = EXCLUDED.message,
			payload = EXCLUDED.payload,
			severity = EXCLUDED.severity,
			entity_type = EXCLUDED.entity_type,
			entity_id = EXCLUDED.entity_id,
			href = EXCLUDED.href,
			created_at = EXCLUDED.created_at
		RETURNING id, read_at, (xmax = 0) AS inserted
	`
	row := r.db.QueryRowContext(ctx, query,
		n.ID, n.TenantID, n.UserID, n.Type, n.Title, n.Message, payload, n.Severity,
		n.EntityType, n.EntityID, n.Href, n.DedupeKey, n.CreatedAt,
	)
	var inserted bool
	if err := row.Scan(&n.ID, &n.ReadAt, &inserted); err != nil {
		return fmt.Errorf("failed to upsert notification: %w", err)
	}
	if !inserted {
		DedupeRefreshes.Inc()
	}
	return nil
}

// ListForUser retrieves a page of the user's notifications, newest first.
func (r *Repository) ListForUser(ctx context.Context, userID string, limit, offset int) ([]*Notification, error) {
	query := `
		SELECT ` + notificationColumns + `
		FROM notifications
		WHERE user_id = $1 AND NOT dismissed
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`
	rows, err := r.db.QueryContext(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var notifications []*Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		notifications = append(notifications, n)
	}
	return notifications, rows.Err()
}

// UnreadCount returns the number of live, unread notifications for a user.
func (r *Repository) UnreadCount(ctx context.Context, userID string) (int, error) {
	query := `SELECT COUNT(*) FROM notifications WHERE user_id = $1 AND NOT dismissed AND read_at IS NULL`
	var count int
	if err := r.db.QueryRowContext(ctx, query, userID).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// MarkRead stamps a single notification as read.
func (r *Repository) MarkRead(ctx context.Context, userID, id string) error {
	query := `UPDATE notifications SET read_at = COALESCE(read_at, now()) WHERE id = $1 AND user_id = $2`
	return r.execExpectingRow(ctx, query, id, userID)
}

// MarkAllRead stamps every unread notification of the user as read.
func (r *Repository) MarkAllRead(ctx context.Context, userID string) error {
	query := `UPDATE notifications SET read_at = now() WHERE user_id = $1 AND read_at IS NULL`
	_, err := r.db.ExecContext(ctx, query, userID)
	return err
}

// Dismiss removes a notification from the user's live set. Dismissed rows no
// longer participate in dedupe.
func (r *Repository) Dismiss(ctx context.Context, userID, id string) error {
	query := `UPDATE notifications SET dismissed = true WHERE id = $1 AND user_id = $2`
	return r.execExpectingRow(ctx, query, id, userID)
}

// Preferences retrieves a user's notification preferences. A user without a
// stored row returns (nil, nil): the caller treats that as deliver-everything.
func (r *Repository) Preferences(ctx context.Context, userID string) (*Preferences, error) {
	query := `
		SELECT user_id, task_deadline, task_assigned, task_completed, comments,
			project_updates, task_status_changed, chat_messages, client_messages,
			support_tickets, work_orders
		FROM notification_preferences WHERE user_id = $1
	`
	row := r.db.QueryRowContext(ctx, query, userID)

	var p Preferences
	err := row.Scan(&p.UserID, &p.TaskDeadline, &p.TaskAssigned, &p.TaskCompleted, &p.Comments,
		&p.ProjectUpdates, &p.TaskStatusChanged, &p.ChatMessages, &p.ClientMessages,
		&p.SupportTickets, &p.WorkOrders)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// SavePreferences stores the full preference set for a user.
func (r *Repository) SavePreferences(ctx context.Context, p *Preferences) error {
	query := `
		INSERT INTO notification_preferences (user_id, task_deadline, task_assigned, task_completed,
			comments, project_updates, task_status_changed, chat_messages, client_messages,
			support_tickets, work_orders)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (user_id) DO UPDATE SET
			task_deadline = EXCLUDED.task_deadline,
			task_assigned = EXCLUDED.task_assigned,
			task_completed = EXCLUDED.task_completed,
			comments = EXCLUDED.comments,
			project_updates = EXCLUDED.project_updates,
			task_status_changed = EXCLUDED.task_status_changed,
			chat_messages = EXCLUDED.chat_messages,
			client_messages = EXCLUDED.client_messages,
			support_tickets = EXCLUDED.support_tickets,
			work_orders = EXCLUDED.work_orders
	`
	_, err := r.db.ExecContext(ctx, query,
		p.UserID, p.TaskDeadline, p.TaskAssigned, p.TaskCompleted, p.Comments,
		p.ProjectUpdates, p.TaskStatusChanged, p.ChatMessages, p.ClientMessages,
		p.SupportTickets, p.WorkOrders,
	)
	return err
}

func (r *Repository) execExpectingRow(ctx context.Context, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func scanNotification(rows Rows) (*Notification, error) {
	var (
		n         Notification
		message   sql.NullString
		payload   []byte
		entType   sql.NullString
		entID     sql.NullString
		href      sql.NullString
		dedupeKey sql.NullString
	)
	err := rows.Scan(&n.ID, &n.TenantID, &n.UserID, &n.Type, &n.Title, &message, &payload,
		&n.Severity, &entType, &entID, &href, &dedupeKey, &n.Dismissed, &n.ReadAt, &n.CreatedAt)
	if err != nil {
		return nil, err
	}
	n.Message = message.String
	n.EntityType = entType.String
	n.EntityID = entID.String
	n.Href = href.String
	n.DedupeKey = dedupeKey.String
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &n.Payload); err != nil {
			return nil, fmt.Errorf("failed to decode notification payload: %w", err)
		}
	}
	return &n, nil
}

func marshalPayload(payload map[string]any) ([]byte, error) {
	if payload == nil {
		return nil, nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode notification payload: %w", err)
	}
	return data, nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
