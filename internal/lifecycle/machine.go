package lifecycle

import (
	"time"

	"github.com/spec-kit/repair-service/internal/domain"
	apperrors "github.com/spec-kit/repair-service/pkg/util/errorutil"
)

// Transition validates a status change and returns the resulting snapshot.
// The input ticket is left untouched.
func Transition(ticket *domain.Ticket, target domain.TicketStatus, actor domain.Actor, now time.Time) (*domain.Ticket, error) {
	if ticket == nil {
		return nil, apperrors.NewValidationError("ticket required", nil)
	}
	if CapabilitiesFor(actor.Role).Transition == PolicyNone {
		return nil, apperrors.NewForbidden("role may not change ticket status")
	}
	if !target.Valid() {
		return nil, apperrors.NewInvalidTransition(string(ticket.Status), string(target),
			map[string]any{"reason": "unknown status"})
	}
	if !CanTransition(actor.Role, ticket.Status, target) {
		return nil, apperrors.NewInvalidTransition(string(ticket.Status), string(target),
			map[string]any{"allowed": AllowedTargets(actor.Role, ticket.Status)})
	}

	next := ticket.Clone()
	next.Status = target
	next.UpdatedAt = now
	next.History = append(next.History, domain.TicketHistory{
		Action:     domain.ActionStatusChanged,
		ChangedBy:  actor.UserID,
		ActorRole:  actor.Role,
		FromStatus: ticket.Status,
		ToStatus:   target,
		CreatedAt:  now,
	})
	return next, nil
}

// Escalate raises the escalation flag. A second escalation is reported as
// AlreadyEscalated instead of succeeding silently.
func Escalate(ticket *domain.Ticket, actor domain.Actor, now time.Time) (*domain.Ticket, error) {
	if ticket == nil {
		return nil, apperrors.NewValidationError("ticket required", nil)
	}
	if !CanEscalate(actor.Role) {
		return nil, apperrors.NewForbidden("only technicians may escalate tickets")
	}
	if ticket.Escalated {
		return nil, apperrors.NewAlreadyEscalated(ticket.TicketNumber)
	}

	next := ticket.Clone()
	next.Escalated = true
	next.UpdatedAt = now
	next.History = append(next.History, domain.TicketHistory{
		Action:     domain.ActionEscalated,
		ChangedBy:  actor.UserID,
		ActorRole:  actor.Role,
		FromStatus: ticket.Status,
		ToStatus:   ticket.Status,
		CreatedAt:  now,
	})
	return next, nil
}
