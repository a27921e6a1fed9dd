package notify

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// EventType names a business event published by an upstream service.
type EventType string

const (
	EventTaskAssigned       EventType = "task.assigned"
	EventTaskCompleted      EventType = "task.completed"
	EventTaskStatusChanged  EventType = "task.status_changed"
	EventCommentAdded       EventType = "task.comment_added"
	EventCommentMention     EventType = "task.comment_mention"
	EventProjectUpdated     EventType = "project.updated"
	EventProjectMemberAdded EventType = "project.member_added"
	EventChatMessage        EventType = "chat.message"
	EventClientMessage      EventType = "client.message"
	EventTicketOpened       EventType = "support.ticket_opened"
	EventWorkOrderCreated   EventType = "work_order.created"
	EventApprovalDecided    EventType = "approval.decided"
)

// Actor is the user whose action produced an event. The actor is excluded
// from delivery so nobody is notified about their own actions.
type Actor struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Event is the envelope upstream services publish, over the queue or the
// internal dispatch endpoint. A nil TenantID marks a system-scope event.
type Event struct {
	ID         string          `json:"id"`
	Type       EventType       `json:"type"`
	TenantID   *string         `json:"tenant_id,omitempty"`
	Actor      Actor           `json:"actor"`
	OccurredAt time.Time       `json:"occurred_at"`
	Data       json.RawMessage `json:"data"`
}

// NewEvent creates an event envelope with the given type and data.
func NewEvent(eventType EventType, tenantID *string, actor Actor, data any) (*Event, error) {
	dataBytes, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return &Event{
		ID:         uuid.New().String(),
		Type:       eventType,
		TenantID:   tenantID,
		Actor:      actor,
		OccurredAt: time.Now().UTC(),
		Data:       dataBytes,
	}, nil
}

// TaskEventData carries task lifecycle events, including comments.
type TaskEventData struct {
	TaskID     string   `json:"task_id"`
	Title      string   `json:"title"`
	Status     string   `json:"status,omitempty"`
	Comment    string   `json:"comment,omitempty"`
	Recipients []string `json:"recipients"`
}

// ProjectEventData carries project update and membership events.
type ProjectEventData struct {
	ProjectID  string   `json:"project_id"`
	Name       string   `json:"name"`
	Summary    string   `json:"summary,omitempty"`
	Recipients []string `json:"recipients"`
}

// ChatEventData carries chat messages addressed to channel members.
type ChatEventData struct {
	ChannelID   string   `json:"channel_id"`
	ChannelName string   `json:"channel_name"`
	Preview     string   `json:"preview"`
	Recipients  []string `json:"recipients"`
}

// ClientMessageData carries inbound client messages for the client owner.
type ClientMessageData struct {
	ClientID   string   `json:"client_id"`
	ClientName string   `json:"client_name"`
	Preview    string   `json:"preview"`
	Recipients []string `json:"recipients"`
}

// TicketEventData carries new support tickets.
type TicketEventData struct {
	TicketID   string   `json:"ticket_id"`
	Subject    string   `json:"subject"`
	Priority   string   `json:"priority,omitempty"`
	Recipients []string `json:"recipients"`
}

// WorkOrderEventData carries new work orders.
type WorkOrderEventData struct {
	OrderID    string   `json:"order_id"`
	Title      string   `json:"title"`
	Recipients []string `json:"recipients"`
}

// ApprovalEventData carries approval decisions for the requester.
type ApprovalEventData struct {
	RequestID  string   `json:"request_id"`
	Title      string   `json:"title"`
	Approved   bool     `json:"approved"`
	Recipients []string `json:"recipients"`
}

// ParseTaskEventData parses the event data as TaskEventData.
func (e *Event) ParseTaskEventData() (*TaskEventData, error) {
	var data TaskEventData
	if err := json.Unmarshal(e.Data, &data); err != nil {
		return nil, err
	}
	return &data, nil
}

// ParseProjectEventData parses the event data as ProjectEventData.
func (e *Event) ParseProjectEventData() (*ProjectEventData, error) {
	var data ProjectEventData
	if err := json.Unmarshal(e.Data, &data); err != nil {
		return nil, err
	}
	return &data, nil
}

// ParseChatEventData parses the event data as ChatEventData.
func (e *Event) ParseChatEventData() (*ChatEventData, error) {
	var data ChatEventData
	if err := json.Unmarshal(e.Data, &data); err != nil {
		return nil, err
	}
	return &data, nil
}

// ParseClientMessageData parses the event data as ClientMessageData.
func (e *Event) ParseClientMessageData() (*ClientMessageData, error) {
	var data ClientMessageData
	if err := json.Unmarshal(e.Data, &data); err != nil {
		return nil, err
	}
	return &data, nil
}

// ParseTicketEventData parses the event data as TicketEventData.
func (e *Event) ParseTicketEventData() (*TicketEventData, error) {
	var data TicketEventData
	if err := json.Unmarshal(e.Data, &data); err != nil {
		return nil, err
	}
	return &data, nil
}

// ParseWorkOrderEventData parses the event data as WorkOrderEventData.
func (e *Event) ParseWorkOrderEventData() (*WorkOrderEventData, error) {
	var data WorkOrderEventData
	if err := json.Unmarshal(e.Data, &data); err != nil {
		return nil, err
	}
	return &data, nil
}

// ParseApprovalEventData parses the event data as ApprovalEventData.
func (e *Event) ParseApprovalEventData() (*ApprovalEventData, error) {
	var data ApprovalEventData
	if err := json.Unmarshal(e.Data, &data); err != nil {
		return nil, err
	}
	return &data, nil
}
