// Package workdata provides the read-only task and CRM queries the periodic
// scan schedulers run against the shared platform database.
package workdata

import (
	"context"
	"database/sql"
	"time"
)

// Task is a task row as seen by the deadline scanner.
type Task struct {
	ID       string
	TenantID string
	Title    string
	DueAt    time.Time
}

// Client is a CRM client row as seen by the follow-up scanner.
type Client struct {
	ID             string
	TenantID       string
	Name           string
	OwnerID        string
	NextFollowUpAt time.Time
}

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// TasksDueSoon returns incomplete tasks whose due date falls between now and
// the given horizon.
func (r *Repository) TasksDueSoon(ctx context.Context, before time.Time) ([]Task, error) {
	query := `
		SELECT id, tenant_id, title, due_at
		FROM tasks
		WHERE status <> 'completed' AND due_at IS NOT NULL
		  AND due_at > now() AND due_at <= $1
		ORDER BY due_at
	`
	rows, err := r.db.QueryContext(ctx, query, before)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tasks []Task
	for rows.Next() {
		var t Task
		if err := rows.Scan(&t.ID, &t.TenantID, &t.Title, &t.DueAt); err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// TaskAssignees returns the user ids assigned to a task.
func (r *Repository) TaskAssignees(ctx context.Context, taskID string) ([]string, error) {
	query := `SELECT user_id FROM task_assignees WHERE task_id = $1`
	rows, err := r.db.QueryContext(ctx, query, taskID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var userIDs []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		userIDs = append(userIDs, id)
	}
	return userIDs, rows.Err()
}

// ClientsDueForFollowUp returns clients whose next follow-up is at or before
// the given cutoff and that have an assigned owner.
func (r *Repository) ClientsDueForFollowUp(ctx context.Context, before time.Time) ([]Client, error) {
	query := `
		SELECT id, tenant_id, name, owner_id, next_follow_up_at
		FROM clients
		WHERE next_follow_up_at IS NOT NULL AND next_follow_up_at <= $1
		  AND owner_id IS NOT NULL
		ORDER BY next_follow_up_at
	`
	rows, err := r.db.QueryContext(ctx, query, before)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var clients []Client
	for rows.Next() {
		var c Client
		if err := rows.Scan(&c.ID, &c.TenantID, &c.Name, &c.OwnerID, &c.NextFollowUpAt); err != nil {
			return nil, err
		}
		clients = append(clients, c)
	}
	return clients, rows.Err()
}
