package domain

import "time"

// CommentType classifies internal comments.
type CommentType string

const (
	CommentTypeNote            CommentType = "Note"
	CommentTypeWaitingForParts CommentType = "Waiting for Parts"
	CommentTypeEscalation      CommentType = "Escalation"
	CommentTypeSLARisk         CommentType = "SLA Risk"
)

// CommentTypes lists the accepted comment kinds.
var CommentTypes = []CommentType{
	CommentTypeNote,
	CommentTypeWaitingForParts,
	CommentTypeEscalation,
	CommentTypeSLARisk,
}

// InternalComment is a staff-only note on a ticket. Never edited once created.
type InternalComment struct {
	AuthorID   string
	AuthorRole Role
	Text       string
	Type       CommentType
	CreatedAt  time.Time
}
