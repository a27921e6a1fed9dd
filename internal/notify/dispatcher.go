package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/teamdesk/teamdesk/internal/directory"
	"github.com/teamdesk/teamdesk/pkg/observability"
)

// Preview truncation limits, in characters.
const (
	commentPreviewLimit = 100
	chatPreviewLimit    = 80
)

// Writer persists notifications.
type Writer interface {
	CreateOrRefresh(ctx context.Context, n *Notification) error
}

// PreferenceSource reads a user's notification preferences.
type PreferenceSource interface {
	Preferences(ctx context.Context, userID string) (*Preferences, error)
}

// Validator decides whether delivery is permitted under a tenant scope.
type Validator interface {
	CanDeliver(ctx context.Context, userID string, tenantID *string) bool
}

// Emitter pushes a persisted notification to the user's live connections.
type Emitter interface {
	Emit(userID string, n *Notification)
}

// Mailer sends transactional email; used to escalate urgent notifications.
type Mailer interface {
	Send(ctx context.Context, to, subject, html string) error
}

// StreamPublisher publishes persisted notifications to the analytics stream.
type StreamPublisher interface {
	PublishJSON(ctx context.Context, key string, v any) error
}

// Directory resolves users, for email escalation.
type Directory interface {
	User(ctx context.Context, id string) (*directory.User, error)
}

// DispatcherConfig wires a Dispatcher. Mailer, Stream and Users are optional.
type DispatcherConfig struct {
	Store     Writer
	Prefs     PreferenceSource
	Validator Validator
	Emitter   Emitter
	Mailer    Mailer
	Stream    StreamPublisher
	Users     Directory
	Logger    *observability.Logger
}

// Dispatcher is the façade every business event goes through. Each event
// method checks self-exclusion, tenant scope and user preferences, persists
// the notification (deduplicating where the event carries a dedupe key) and
// emits it to the realtime hub. Denials are not errors; only infrastructure
// failures return one, and callers are expected to invoke the façade through
// the besteffort wrapper so nothing here can fail a business transaction.
type Dispatcher struct {
	store     Writer
	prefs     PreferenceSource
	validator Validator
	emitter   Emitter
	mailer    Mailer
	stream    StreamPublisher
	users     Directory
	logger    *observability.Logger
}

func NewDispatcher(cfg DispatcherConfig) *Dispatcher {
	return &Dispatcher{
		store:     cfg.Store,
		prefs:     cfg.Prefs,
		validator: cfg.Validator,
		emitter:   cfg.Emitter,
		mailer:    cfg.Mailer,
		stream:    cfg.Stream,
		users:     cfg.Users,
		logger:    cfg.Logger.Named("dispatcher"),
	}
}

// TaskAssigned notifies a user they were assigned a task.
func (d *Dispatcher) TaskAssigned(ctx context.Context, nctx Context, userID, taskID, taskTitle, actorName string) error {
	return d.deliver(ctx, nctx, &Notification{
		UserID:     userID,
		Type:       TypeTaskAssigned,
		Title:      "New task assigned",
		Message:    fmt.Sprintf("%s assigned you %q", actorName, taskTitle),
		Severity:   SeverityInfo,
		EntityType: "task",
		EntityID:   taskID,
		Href:       "/tasks/" + taskID,
		Payload:    map[string]any{"task_id": taskID, "task_title": taskTitle, "assigned_by": actorName},
	})
}

// TaskCompleted notifies a watcher that a task was completed.
func (d *Dispatcher) TaskCompleted(ctx context.Context, nctx Context, userID, taskID, taskTitle, actorName string) error {
	return d.deliver(ctx, nctx, &Notification{
		UserID:     userID,
		Type:       TypeTaskCompleted,
		Title:      "Task completed",
		Message:    fmt.Sprintf("%s completed %q", actorName, taskTitle),
		Severity:   SeverityInfo,
		EntityType: "task",
		EntityID:   taskID,
		Href:       "/tasks/" + taskID,
		Payload:    map[string]any{"task_id": taskID, "task_title": taskTitle},
	})
}

// TaskStatusChanged notifies a watcher that a task moved to a new status.
func (d *Dispatcher) TaskStatusChanged(ctx context.Context, nctx Context, userID, taskID, taskTitle, status, actorName string) error {
	return d.deliver(ctx, nctx, &Notification{
		UserID:     userID,
		Type:       TypeTaskStatusChanged,
		Title:      "Task status updated",
		Message:    fmt.Sprintf("%s moved %q to %s", actorName, taskTitle, status),
		Severity:   SeverityInfo,
		EntityType: "task",
		EntityID:   taskID,
		Href:       "/tasks/" + taskID,
		Payload:    map[string]any{"task_id": taskID, "task_title": taskTitle, "status": status},
	})
}

// TaskDeadline warns an assignee about a task due within the next day. The
// dedupe key keeps repeated scheduler scans refreshing one live notification
// per task and assignee instead of piling up duplicates.
func (d *Dispatcher) TaskDeadline(ctx context.Context, nctx Context, userID, taskID, taskTitle string, due time.Time) error {
	return d.deliver(ctx, nctx, &Notification{
		UserID:     userID,
		Type:       TypeTaskDeadline,
		Title:      "Task due soon",
		Message:    fmt.Sprintf("%q is due %s", taskTitle, due.Format("Mon, Jan 2 15:04")),
		Severity:   SeverityWarning,
		EntityType: "task",
		EntityID:   taskID,
		Href:       "/tasks/" + taskID,
		DedupeKey:  "deadline:" + taskID,
		Payload:    map[string]any{"task_id": taskID, "task_title": taskTitle, "due_at": due.UTC()},
	})
}

// CommentAdded notifies a task watcher about a new comment.
func (d *Dispatcher) CommentAdded(ctx context.Context, nctx Context, userID, taskID, taskTitle, comment, actorName string) error {
	return d.deliver(ctx, nctx, &Notification{
		UserID:     userID,
		Type:       TypeCommentAdded,
		Title:      "New comment",
		Message:    fmt.Sprintf("%s commented on %q: %s", actorName, taskTitle, truncate(comment, commentPreviewLimit)),
		Severity:   SeverityInfo,
		EntityType: "task",
		EntityID:   taskID,
		Href:       "/tasks/" + taskID,
		Payload:    map[string]any{"task_id": taskID, "task_title": taskTitle, "author": actorName},
	})
}

// CommentMention notifies a user they were @-mentioned in a comment.
func (d *Dispatcher) CommentMention(ctx context.Context, nctx Context, userID, taskID, taskTitle, comment, actorName string) error {
	return d.deliver(ctx, nctx, &Notification{
		UserID:     userID,
		Type:       TypeCommentMention,
		Title:      "You were mentioned",
		Message:    fmt.Sprintf("%s mentioned you on %q: %s", actorName, taskTitle, truncate(comment, commentPreviewLimit)),
		Severity:   SeverityInfo,
		EntityType: "task",
		EntityID:   taskID,
		Href:       "/tasks/" + taskID,
		Payload:    map[string]any{"task_id": taskID, "task_title": taskTitle, "author": actorName},
	})
}

// ProjectUpdate notifies a project member about a project-level change.
func (d *Dispatcher) ProjectUpdate(ctx context.Context, nctx Context, userID, projectID, projectName, summary, actorName string) error {
	return d.deliver(ctx, nctx, &Notification{
		UserID:     userID,
		Type:       TypeProjectUpdate,
		Title:      "Project update",
		Message:    fmt.Sprintf("%s updated %s: %s", actorName, projectName, truncate(summary, commentPreviewLimit)),
		Severity:   SeverityInfo,
		EntityType: "project",
		EntityID:   projectID,
		Href:       "/projects/" + projectID,
		Payload:    map[string]any{"project_id": projectID, "project_name": projectName},
	})
}

// ProjectMemberAdded notifies a user they were added to a project.
func (d *Dispatcher) ProjectMemberAdded(ctx context.Context, nctx Context, userID, projectID, projectName, actorName string) error {
	return d.deliver(ctx, nctx, &Notification{
		UserID:     userID,
		Type:       TypeProjectMemberAdded,
		Title:      "Added to project",
		Message:    fmt.Sprintf("%s added you to %s", actorName, projectName),
		Severity:   SeverityInfo,
		EntityType: "project",
		EntityID:   projectID,
		Href:       "/projects/" + projectID,
		Payload:    map[string]any{"project_id": projectID, "project_name": projectName, "added_by": actorName},
	})
}

// FollowUpDue reminds a client owner about a follow-up due today. Deduped per
// client so repeated scans refresh the same reminder.
func (d *Dispatcher) FollowUpDue(ctx context.Context, nctx Context, userID, clientID, clientName string, due time.Time) error {
	return d.deliver(ctx, nctx, &Notification{
		UserID:     userID,
		Type:       TypeFollowUpDue,
		Title:      "Follow-up due",
		Message:    fmt.Sprintf("Follow-up with %s is due %s", clientName, due.Format("Mon, Jan 2")),
		Severity:   SeverityWarning,
		EntityType: "client",
		EntityID:   clientID,
		Href:       "/clients/" + clientID,
		DedupeKey:  "followup:" + clientID,
		Payload:    map[string]any{"client_id": clientID, "client_name": clientName, "due_at": due.UTC()},
	})
}

// ApprovalResponse notifies a requester that their request was decided.
func (d *Dispatcher) ApprovalResponse(ctx context.Context, nctx Context, userID, requestID, requestTitle string, approved bool, actorName string) error {
	title := "Request approved"
	verb := "approved"
	if !approved {
		title = "Request declined"
		verb = "declined"
	}
	return d.deliver(ctx, nctx, &Notification{
		UserID:     userID,
		Type:       TypeApprovalResponse,
		Title:      title,
		Message:    fmt.Sprintf("%s %s %q", actorName, verb, requestTitle),
		Severity:   SeverityInfo,
		EntityType: "approval",
		EntityID:   requestID,
		Href:       "/approvals/" + requestID,
		Payload:    map[string]any{"request_id": requestID, "approved": approved, "decided_by": actorName},
	})
}

// ChatMessage notifies a channel member about a new chat message.
func (d *Dispatcher) ChatMessage(ctx context.Context, nctx Context, userID, channelID, channelName, preview, actorName string) error {
	return d.deliver(ctx, nctx, &Notification{
		UserID:     userID,
		Type:       TypeChatMessage,
		Title:      "New message in #" + channelName,
		Message:    fmt.Sprintf("%s: %s", actorName, truncate(preview, chatPreviewLimit)),
		Severity:   SeverityInfo,
		EntityType: "channel",
		EntityID:   channelID,
		Href:       "/chat/" + channelID,
		Payload:    map[string]any{"channel_id": channelID, "channel_name": channelName, "author": actorName},
	})
}

// ClientMessage notifies the client owner about an inbound client message.
func (d *Dispatcher) ClientMessage(ctx context.Context, nctx Context, userID, clientID, clientName, preview string) error {
	return d.deliver(ctx, nctx, &Notification{
		UserID:     userID,
		Type:       TypeClientMessage,
		Title:      "New client message",
		Message:    fmt.Sprintf("%s: %s", clientName, truncate(preview, chatPreviewLimit)),
		Severity:   SeverityInfo,
		EntityType: "client",
		EntityID:   clientID,
		Href:       "/clients/" + clientID,
		Payload:    map[string]any{"client_id": clientID, "client_name": clientName},
	})
}

// SupportTicket notifies an agent about a new support ticket. Urgent-priority
// tickets are raised at urgent severity, which also triggers email escalation
// when a mailer is configured.
func (d *Dispatcher) SupportTicket(ctx context.Context, nctx Context, userID, ticketID, subject, priority, actorName string) error {
	severity := SeverityInfo
	if priority == "urgent" {
		severity = SeverityUrgent
	}
	return d.deliver(ctx, nctx, &Notification{
		UserID:     userID,
		Type:       TypeSupportTicket,
		Title:      "New support ticket",
		Message:    fmt.Sprintf("%s opened %q", actorName, subject),
		Severity:   severity,
		EntityType: "ticket",
		EntityID:   ticketID,
		Href:       "/support/" + ticketID,
		Payload:    map[string]any{"ticket_id": ticketID, "subject": subject, "priority": priority},
	})
}

// WorkOrder notifies a user about a new work order assigned to them.
func (d *Dispatcher) WorkOrder(ctx context.Context, nctx Context, userID, orderID, orderTitle, actorName string) error {
	return d.deliver(ctx, nctx, &Notification{
		UserID:     userID,
		Type:       TypeWorkOrder,
		Title:      "New work order",
		Message:    fmt.Sprintf("%s created work order %q", actorName, orderTitle),
		Severity:   SeverityInfo,
		EntityType: "work_order",
		EntityID:   orderID,
		Href:       "/work-orders/" + orderID,
		Payload:    map[string]any{"order_id": orderID, "order_title": orderTitle, "created_by": actorName},
	})
}

func (d *Dispatcher) deliver(ctx context.Context, nctx Context, n *Notification) error {
	if nctx.ExcludeUserID != "" && nctx.ExcludeUserID == n.UserID {
		Dispatched.WithLabelValues(string(n.Type), OutcomeSelfExcluded).Inc()
		return nil
	}
	n.TenantID = nctx.TenantID

	if !d.validator.CanDeliver(ctx, n.UserID, nctx.TenantID) {
		d.logger.Warn("delivery denied by tenant scope", "type", n.Type, "user_id", n.UserID)
		Dispatched.WithLabelValues(string(n.Type), OutcomeDeniedTenant).Inc()
		return nil
	}

	if !d.allowedByPreferences(ctx, n.UserID, n.Type) {
		Dispatched.WithLabelValues(string(n.Type), OutcomeSuppressed).Inc()
		return nil
	}

	if err := d.store.CreateOrRefresh(ctx, n); err != nil {
		Dispatched.WithLabelValues(string(n.Type), OutcomeError).Inc()
		return fmt.Errorf("failed to persist %s notification: %w", n.Type, err)
	}

	d.emitter.Emit(n.UserID, n)

	if d.stream != nil {
		if err := d.stream.PublishJSON(ctx, n.UserID, n); err != nil {
			d.logger.Warn("failed to publish notification to stream", "id", n.ID, "error", err)
		}
	}

	if n.Severity == SeverityUrgent && d.mailer != nil {
		d.escalateByEmail(ctx, n)
	}

	Dispatched.WithLabelValues(string(n.Type), OutcomeDelivered).Inc()
	return nil
}

// allowedByPreferences fails open: a broken preference store must not silently
// drop legitimate notifications. Tenant validation is the opposite; see
// policy.TenantValidator.
func (d *Dispatcher) allowedByPreferences(ctx context.Context, userID string, t Type) bool {
	prefs, err := d.prefs.Preferences(ctx, userID)
	if err != nil {
		d.logger.Warn("preference lookup failed, delivering anyway", "user_id", userID, "error", err)
		return true
	}
	return prefs.Allows(t)
}

func (d *Dispatcher) escalateByEmail(ctx context.Context, n *Notification) {
	if d.users == nil {
		return
	}
	user, err := d.users.User(ctx, n.UserID)
	if err != nil || user == nil || user.Email == "" {
		d.logger.Debug("skipping email escalation", "user_id", n.UserID, "error", err)
		return
	}
	subject := "[Teamdesk] " + n.Title
	html := fmt.Sprintf("<p><strong>%s</strong></p><p>%s</p>", n.Title, n.Message)
	if err := d.mailer.Send(ctx, user.Email, subject, html); err != nil {
		d.logger.Warn("failed to send escalation email", "user_id", n.UserID, "error", err)
	}
}

// truncate limits a preview to n characters, appending an ellipsis marker
// when the input was longer.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
