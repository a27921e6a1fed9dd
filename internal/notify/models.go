package notify

import (
	"time"
)

// Type identifies the business event a notification was raised for.
// The set is closed: adding a variant requires updating Preferences.Allows.
type Type string

const (
	TypeTaskDeadline       Type = "task_deadline"
	TypeTaskAssigned       Type = "task_assigned"
	TypeTaskCompleted      Type = "task_completed"
	TypeCommentAdded       Type = "comment_added"
	TypeCommentMention     Type = "comment_mention"
	TypeProjectUpdate      Type = "project_update"
	TypeProjectMemberAdded Type = "project_member_added"
	TypeTaskStatusChanged  Type = "task_status_changed"
	TypeFollowUpDue        Type = "crm_followup_due"
	TypeApprovalResponse   Type = "approval_response"
	TypeChatMessage        Type = "chat_message"
	TypeClientMessage      Type = "client_message"
	TypeSupportTicket      Type = "support_ticket"
	TypeWorkOrder          Type = "work_order"
)

type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityUrgent  Severity = "urgent"
)

// Notification is one addressed, persisted alert.
// A nil TenantID denotes system scope: delivery is not tenant-restricted.
type Notification struct {
	ID         string         `json:"id"`
	TenantID   *string        `json:"tenant_id,omitempty"`
	UserID     string         `json:"user_id"`
	Type       Type           `json:"type"`
	Title      string         `json:"title"`
	Message    string         `json:"message,omitempty"`
	Payload    map[string]any `json:"payload,omitempty"`
	Severity   Severity       `json:"severity"`
	EntityType string         `json:"entity_type,omitempty"`
	EntityID   string         `json:"entity_id,omitempty"`
	Href       string         `json:"href,omitempty"`
	DedupeKey  string         `json:"dedupe_key,omitempty"`
	Dismissed  bool           `json:"dismissed"`
	ReadAt     *time.Time     `json:"read_at,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}

// Context carries the tenant scope of a dispatch call plus an optional user
// to exclude from delivery (the actor who caused the event).
type Context struct {
	TenantID      *string
	ExcludeUserID string
}

// SystemScope is a Context with no tenant restriction, for platform-level
// notifications raised outside any tenant.
func SystemScope() Context {
	return Context{}
}

// TenantScope builds a Context restricted to one tenant.
func TenantScope(tenantID string) Context {
	return Context{TenantID: &tenantID}
}

// Excluding returns a copy of c that skips delivery to the given user.
func (c Context) Excluding(userID string) Context {
	c.ExcludeUserID = userID
	return c
}
