package domain

import "time"

// HistoryAction names what a history entry records.
type HistoryAction string

const (
	ActionTicketCreated HistoryAction = "Ticket Created"
	ActionStatusChanged HistoryAction = "Status Changed"
	ActionEscalated     HistoryAction = "Escalated"
)

// TicketHistory is an immutable audit trail entry.
type TicketHistory struct {
	Action     HistoryAction
	ChangedBy  string
	ActorRole  Role
	FromStatus TicketStatus
	ToStatus   TicketStatus
	Note       string
	CreatedAt  time.Time
}
