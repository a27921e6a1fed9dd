// Package directory provides read access to the users table shared with the
// rest of the platform.
package directory

import (
	"context"
	"database/sql"
)

// User is the subset of the platform user record this service needs.
type User struct {
	ID       string `json:"id"`
	TenantID string `json:"tenant_id"`
	Name     string `json:"name"`
	Email    string `json:"email"`
}

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// User retrieves a user by ID. A missing user returns (nil, nil).
func (r *Repository) User(ctx context.Context, id string) (*User, error) {
	query := `SELECT id, COALESCE(tenant_id::text, ''), name, email FROM users WHERE id = $1`
	row := r.db.QueryRowContext(ctx, query, id)

	var u User
	err := row.Scan(&u.ID, &u.TenantID, &u.Name, &u.Email)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}
