package notify

// Preferences holds a user's per-type opt-out toggles. Every field defaults
// to true; a missing row means deliver everything.
type Preferences struct {
	UserID            string `json:"user_id"`
	TaskDeadline      bool   `json:"task_deadline"`
	TaskAssigned      bool   `json:"task_assigned"`
	TaskCompleted     bool   `json:"task_completed"`
	Comments          bool   `json:"comments"`
	ProjectUpdates    bool   `json:"project_updates"`
	TaskStatusChanged bool   `json:"task_status_changed"`
	ChatMessages      bool   `json:"chat_messages"`
	ClientMessages    bool   `json:"client_messages"`
	SupportTickets    bool   `json:"support_tickets"`
	WorkOrders        bool   `json:"work_orders"`
}

// DefaultPreferences returns the deliver-everything preference set.
func DefaultPreferences(userID string) *Preferences {
	return &Preferences{
		UserID:            userID,
		TaskDeadline:      true,
		TaskAssigned:      true,
		TaskCompleted:     true,
		Comments:          true,
		ProjectUpdates:    true,
		TaskStatusChanged: true,
		ChatMessages:      true,
		ClientMessages:    true,
		SupportTickets:    true,
		WorkOrders:        true,
	}
}

// Allows reports whether notifications of type t are enabled. Comment and
// mention share one toggle, as do project updates and member additions.
// CRM follow-ups and approval responses have no toggle and are always
// delivered. A nil receiver allows everything.
func (p *Preferences) Allows(t Type) bool {
	if p == nil {
		return true
	}
	switch t {
	case TypeTaskDeadline:
		return p.TaskDeadline
	case TypeTaskAssigned:
		return p.TaskAssigned
	case TypeTaskCompleted:
		return p.TaskCompleted
	case TypeCommentAdded, TypeCommentMention:
		return p.Comments
	case TypeProjectUpdate, TypeProjectMemberAdded:
		return p.ProjectUpdates
	case TypeTaskStatusChanged:
		return p.TaskStatusChanged
	case TypeChatMessage:
		return p.ChatMessages
	case TypeClientMessage:
		return p.ClientMessages
	case TypeSupportTicket:
		return p.SupportTickets
	case TypeWorkOrder:
		return p.WorkOrders
	case TypeFollowUpDue, TypeApprovalResponse:
		return true
	}
	return true
}
