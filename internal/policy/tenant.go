// Package policy decides whether a notification may be delivered across the
// tenant boundary. This is a security boundary: every failure denies.
package policy

import (
	"context"

	"github.com/teamdesk/teamdesk/internal/directory"
	"github.com/teamdesk/teamdesk/pkg/observability"
)

// Directory is the user lookup the validator needs.
type Directory interface {
	User(ctx context.Context, id string) (*directory.User, error)
}

// TenantValidator checks that a target user belongs to the tenant a
// notification is scoped to.
type TenantValidator struct {
	users  Directory
	logger *observability.Logger
}

func NewTenantValidator(users Directory, logger *observability.Logger) *TenantValidator {
	return &TenantValidator{users: users, logger: logger.Named("tenant-validator")}
}

// CanDeliver reports whether delivery to userID is permitted under the given
// tenant scope. A nil scope is system scope and always permits. Otherwise the
// user must exist and belong to exactly that tenant; lookup failures deny.
func (v *TenantValidator) CanDeliver(ctx context.Context, userID string, tenantID *string) bool {
	if tenantID == nil {
		return true
	}

	user, err := v.users.User(ctx, userID)
	if err != nil {
		// Fail closed: an unverifiable recipient is an unauthorized one.
		v.logger.Warn("user lookup failed, denying delivery", "user_id", userID, "error", err)
		return false
	}
	if user == nil {
		v.logger.Warn("unknown user, denying delivery", "user_id", userID)
		return false
	}
	if user.TenantID != *tenantID {
		v.logger.Warn("tenant mismatch, denying delivery",
			"user_id", userID,
			"user_tenant", user.TenantID,
			"scope_tenant", *tenantID,
		)
		return false
	}
	return true
}
