// Package audit maintains the append-only internal comment trail of a ticket.
package audit

import (
	"strings"
	"time"

	"github.com/spec-kit/repair-service/internal/domain"
	"github.com/spec-kit/repair-service/internal/lifecycle"
	apperrors "github.com/spec-kit/repair-service/pkg/util/errorutil"
)

// MaxCommentLength bounds a single internal comment.
const MaxCommentLength = 4000

// ParseCommentType accepts only the enumerated comment kinds.
func ParseCommentType(raw string) (domain.CommentType, error) {
	candidate := domain.CommentType(strings.TrimSpace(raw))
	for _, known := range domain.CommentTypes {
		if candidate == known {
			return known, nil
		}
	}
	return "", apperrors.NewValidationError("unknown comment type",
		map[string]any{"type": raw, "allowed": domain.CommentTypes})
}

// CommentTypeOrDefault coerces unknown input to Note. Use at the presentation
// boundary only; AddComment rejects unknown kinds.
func CommentTypeOrDefault(raw string) domain.CommentType {
	if parsed, err := ParseCommentType(raw); err == nil {
		return parsed
	}
	return domain.CommentTypeNote
}

// AddComment appends an internal comment and returns the new snapshot.
func AddComment(ticket *domain.Ticket, text string, commentType domain.CommentType, actor domain.Actor, now time.Time) (*domain.Ticket, error) {
	if ticket == nil {
		return nil, apperrors.NewValidationError("ticket required", nil)
	}
	if !lifecycle.CanComment(actor.Role) {
		return nil, apperrors.NewForbidden("internal comments are restricted to staff")
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, apperrors.NewValidationError("comment text required", nil)
	}
	if len(text) > MaxCommentLength {
		return nil, apperrors.NewValidationError("comment text too long",
			map[string]any{"max_length": MaxCommentLength})
	}
	kind, err := ParseCommentType(string(commentType))
	if err != nil {
		return nil, err
	}

	next := ticket.Clone()
	next.UpdatedAt = now
	next.InternalComments = append(next.InternalComments, domain.InternalComment{
		AuthorID:   actor.UserID,
		AuthorRole: actor.Role,
		Text:       text,
		Type:       kind,
		CreatedAt:  now,
	})
	return next, nil
}

// VisibleComments filters the trail for a viewer. Customers never see it.
func VisibleComments(role domain.Role, comments []domain.InternalComment) []domain.InternalComment {
	if !role.Staff() {
		return []domain.InternalComment{}
	}
	return append([]domain.InternalComment{}, comments...)
}
