package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/teamdesk/teamdesk/pkg/besteffort"
	"github.com/teamdesk/teamdesk/pkg/observability"
)

// Consumer routes business-event envelopes to the dispatch façade. The same
// routing serves queue deliveries and the internal dispatch endpoint.
//
// Per-recipient dispatch runs through the best-effort wrapper: a failure for
// one recipient is logged and never fails the envelope, so upstream services
// never see notification errors.
type Consumer struct {
	dispatcher *Dispatcher
	logger     *observability.Logger
}

func NewConsumer(dispatcher *Dispatcher, logger *observability.Logger) *Consumer {
	return &Consumer{
		dispatcher: dispatcher,
		logger:     logger.Named("event-consumer"),
	}
}

// HandleMessage decodes a raw envelope and routes it. Only a malformed
// envelope is an error (so the queue can dead-letter it).
func (c *Consumer) HandleMessage(ctx context.Context, body []byte) error {
	var ev Event
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("failed to decode event envelope: %w", err)
	}
	return c.Route(ctx, &ev)
}

// ValidateData checks that the event payload decodes for its type, so callers
// can reject a bad envelope before handing it off for routing. Unknown types
// pass; Route logs and skips them.
func (c *Consumer) ValidateData(ev *Event) error {
	var err error
	switch ev.Type {
	case EventTaskAssigned, EventTaskCompleted, EventTaskStatusChanged, EventCommentAdded, EventCommentMention:
		_, err = ev.ParseTaskEventData()
	case EventProjectUpdated, EventProjectMemberAdded:
		_, err = ev.ParseProjectEventData()
	case EventChatMessage:
		_, err = ev.ParseChatEventData()
	case EventClientMessage:
		_, err = ev.ParseClientMessageData()
	case EventTicketOpened:
		_, err = ev.ParseTicketEventData()
	case EventWorkOrderCreated:
		_, err = ev.ParseWorkOrderEventData()
	case EventApprovalDecided:
		_, err = ev.ParseApprovalEventData()
	}
	if err != nil {
		return fmt.Errorf("bad %s data: %w", ev.Type, err)
	}
	return nil
}

// Route fans an event out to its recipients via the dispatch façade.
// Unknown event types are logged and skipped.
func (c *Consumer) Route(ctx context.Context, ev *Event) error {
	nctx := Context{TenantID: ev.TenantID, ExcludeUserID: ev.Actor.ID}

	switch ev.Type {
	case EventTaskAssigned:
		data, err := ev.ParseTaskEventData()
		if err != nil {
			return fmt.Errorf("bad %s data: %w", ev.Type, err)
		}
		for _, userID := range data.Recipients {
			uid := userID
			besteffort.Run(ctx, c.logger, "notify.task_assigned", func(ctx context.Context) error {
				return c.dispatcher.TaskAssigned(ctx, nctx, uid, data.TaskID, data.Title, ev.Actor.Name)
			})
		}

	case EventTaskCompleted:
		data, err := ev.ParseTaskEventData()
		if err != nil {
			return fmt.Errorf("bad %s data: %w", ev.Type, err)
		}
		for _, userID := range data.Recipients {
			uid := userID
			besteffort.Run(ctx, c.logger, "notify.task_completed", func(ctx context.Context) error {
				return c.dispatcher.TaskCompleted(ctx, nctx, uid, data.TaskID, data.Title, ev.Actor.Name)
			})
		}

	case EventTaskStatusChanged:
		data, err := ev.ParseTaskEventData()
		if err != nil {
			return fmt.Errorf("bad %s data: %w", ev.Type, err)
		}
		for _, userID := range data.Recipients {
			uid := userID
			besteffort.Run(ctx, c.logger, "notify.task_status_changed", func(ctx context.Context) error {
				return c.dispatcher.TaskStatusChanged(ctx, nctx, uid, data.TaskID, data.Title, data.Status, ev.Actor.Name)
			})
		}

	case EventCommentAdded:
		data, err := ev.ParseTaskEventData()
		if err != nil {
			return fmt.Errorf("bad %s data: %w", ev.Type, err)
		}
		for _, userID := range data.Recipients {
			uid := userID
			besteffort.Run(ctx, c.logger, "notify.comment_added", func(ctx context.Context) error {
				return c.dispatcher.CommentAdded(ctx, nctx, uid, data.TaskID, data.Title, data.Comment, ev.Actor.Name)
			})
		}

	case EventCommentMention:
		data, err := ev.ParseTaskEventData()
		if err != nil {
			return fmt.Errorf("bad %s data: %w", ev.Type, err)
		}
		for _, userID := range data.Recipients {
			uid := userID
			besteffort.Run(ctx, c.logger, "notify.comment_mention", func(ctx context.Context) error {
				return c.dispatcher.CommentMention(ctx, nctx, uid, data.TaskID, data.Title, data.Comment, ev.Actor.Name)
			})
		}

	case EventProjectUpdated:
		data, err := ev.ParseProjectEventData()
		if err != nil {
			return fmt.Errorf("bad %s data: %w", ev.Type, err)
		}
		for _, userID := range data.Recipients {
			uid := userID
			besteffort.Run(ctx, c.logger, "notify.project_update", func(ctx context.Context) error {
				return c.dispatcher.ProjectUpdate(ctx, nctx, uid, data.ProjectID, data.Name, data.Summary, ev.Actor.Name)
			})
		}

	case EventProjectMemberAdded:
		data, err := ev.ParseProjectEventData()
		if err != nil {
			return fmt.Errorf("bad %s data: %w", ev.Type, err)
		}
		for _, userID := range data.Recipients {
			uid := userID
			besteffort.Run(ctx, c.logger, "notify.project_member_added", func(ctx context.Context) error {
				return c.dispatcher.ProjectMemberAdded(ctx, nctx, uid, data.ProjectID, data.Name, ev.Actor.Name)
			})
		}

	case EventChatMessage:
		data, err := ev.ParseChatEventData()
		if err != nil {
			return fmt.Errorf("bad %s data: %w", ev.Type, err)
		}
		for _, userID := range data.Recipients {
			uid := userID
			besteffort.Run(ctx, c.logger, "notify.chat_message", func(ctx context.Context) error {
				return c.dispatcher.ChatMessage(ctx, nctx, uid, data.ChannelID, data.ChannelName, data.Preview, ev.Actor.Name)
			})
		}

	case EventClientMessage:
		data, err := ev.ParseClientMessageData()
		if err != nil {
			return fmt.Errorf("bad %s data: %w", ev.Type, err)
		}
		for _, userID := range data.Recipients {
			uid := userID
			besteffort.Run(ctx, c.logger, "notify.client_message", func(ctx context.Context) error {
				return c.dispatcher.ClientMessage(ctx, nctx, uid, data.ClientID, data.ClientName, data.Preview)
			})
		}

	case EventTicketOpened:
		data, err := ev.ParseTicketEventData()
		if err != nil {
			return fmt.Errorf("bad %s data: %w", ev.Type, err)
		}
		for _, userID := range data.Recipients {
			uid := userID
			besteffort.Run(ctx, c.logger, "notify.support_ticket", func(ctx context.Context) error {
				return c.dispatcher.SupportTicket(ctx, nctx, uid, data.TicketID, data.Subject, data.Priority, ev.Actor.Name)
			})
		}

	case EventWorkOrderCreated:
		data, err := ev.ParseWorkOrderEventData()
		if err != nil {
			return fmt.Errorf("bad %s data: %w", ev.Type, err)
		}
		for _, userID := range data.Recipients {
			uid := userID
			besteffort.Run(ctx, c.logger, "notify.work_order", func(ctx context.Context) error {
				return c.dispatcher.WorkOrder(ctx, nctx, uid, data.OrderID, data.Title, ev.Actor.Name)
			})
		}

	case EventApprovalDecided:
		data, err := ev.ParseApprovalEventData()
		if err != nil {
			return fmt.Errorf("bad %s data: %w", ev.Type, err)
		}
		for _, userID := range data.Recipients {
			uid := userID
			besteffort.Run(ctx, c.logger, "notify.approval_response", func(ctx context.Context) error {
				return c.dispatcher.ApprovalResponse(ctx, nctx, uid, data.RequestID, data.Title, data.Approved, ev.Actor.Name)
			})
		}

	default:
		c.logger.Warn("no routing for event type", "type", ev.Type, "event_id", ev.ID)
	}
	return nil
}
