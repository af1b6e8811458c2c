package lifecycle

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/repair-service/internal/domain"
	apperrors "github.com/spec-kit/repair-service/pkg/util/errorutil"
)

var now = time.Date(2026, time.October, 15, 9, 0, 0, 0, time.UTC)

func newTicket(status domain.TicketStatus) *domain.Ticket {
	return &domain.Ticket{
		ID:           "7f1d",
		TicketNumber: "TKT-0001",
		OwnerID:      "customer-1",
		Status:       status,
		Version:      1,
		History: []domain.TicketHistory{{
			Action:    domain.ActionTicketCreated,
			ChangedBy: "customer-1",
			ToStatus:  domain.TicketStatusSubmitted,
		}},
	}
}

func TestTransitionAppendsHistory(t *testing.T) {
	ticket := newTicket(domain.TicketStatusSubmitted)
	actor := domain.Actor{UserID: "tech-1", Role: domain.RoleTechnician}

	next, err := Transition(ticket, domain.TicketStatusInProgress, actor, now)
	require.NoError(t, err)

	assert.Equal(t, domain.TicketStatusInProgress, next.Status)
	require.Len(t, next.History, 2)
	entry := next.History[1]
	assert.Equal(t, domain.ActionStatusChanged, entry.Action)
	assert.Equal(t, "tech-1", entry.ChangedBy)
	assert.Equal(t, domain.RoleTechnician, entry.ActorRole)
	assert.Equal(t, domain.TicketStatusSubmitted, entry.FromStatus)
	assert.Equal(t, domain.TicketStatusInProgress, entry.ToStatus)
	assert.Equal(t, now, entry.CreatedAt)

	assert.Equal(t, domain.TicketStatusSubmitted, ticket.Status, "input snapshot must not change")
	assert.Len(t, ticket.History, 1)
}

func TestTransitionTechnicianVersusAdmin(t *testing.T) {
	ticket := newTicket(domain.TicketStatusSubmitted)

	_, err := Transition(ticket, domain.TicketStatusCompleted, domain.Actor{UserID: "tech-1", Role: domain.RoleTechnician}, now)
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidTransition))

	next, err := Transition(ticket, domain.TicketStatusCompleted, domain.Actor{UserID: "admin-1", Role: domain.RoleAdmin}, now)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusCompleted, next.Status)
}

func TestTransitionRejections(t *testing.T) {
	technician := domain.Actor{UserID: "tech-1", Role: domain.RoleTechnician}
	admin := domain.Actor{UserID: "admin-1", Role: domain.RoleAdmin}

	testCases := []struct {
		name   string
		status domain.TicketStatus
		target domain.TicketStatus
		actor  domain.Actor
		code   string
	}{
		{"customer", domain.TicketStatusSubmitted, domain.TicketStatusCancelled, domain.Actor{UserID: "customer-1", Role: domain.RoleCustomer}, apperrors.CodeForbidden},
		{"unknown role", domain.TicketStatusSubmitted, domain.TicketStatusCancelled, domain.Actor{UserID: "x", Role: "Guest"}, apperrors.CodeForbidden},
		{"same status admin", domain.TicketStatusInProgress, domain.TicketStatusInProgress, admin, apperrors.CodeInvalidTransition},
		{"same status technician", domain.TicketStatusInProgress, domain.TicketStatusInProgress, technician, apperrors.CodeInvalidTransition},
		{"unknown target", domain.TicketStatusInProgress, domain.TicketStatus("Lost"), admin, apperrors.CodeInvalidTransition},
		{"backwards technician", domain.TicketStatusCompleted, domain.TicketStatusInProgress, technician, apperrors.CodeInvalidTransition},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Transition(newTicket(tc.status), tc.target, tc.actor, now)
			require.Error(t, err)
			assert.True(t, apperrors.HasCode(err, tc.code), "got %v", err)
		})
	}
}

func TestTerminalStatesRejectEveryRole(t *testing.T) {
	admin := domain.Actor{UserID: "admin-1", Role: domain.RoleAdmin}
	for _, terminal := range []domain.TicketStatus{domain.TicketStatusClosed, domain.TicketStatusCancelled} {
		ticket := newTicket(domain.TicketStatusSubmitted)
		var err error
		if terminal == domain.TicketStatusClosed {
			ticket, err = Transition(ticket, domain.TicketStatusCompleted, admin, now)
			require.NoError(t, err)
		}
		ticket, err = Transition(ticket, terminal, admin, now)
		require.NoError(t, err)

		for _, role := range []domain.Role{domain.RoleTechnician, domain.RoleAdmin, domain.RoleManager, domain.RoleEmployee} {
			for _, target := range domain.TicketStatuses {
				_, err := Transition(ticket, target, domain.Actor{UserID: "u", Role: role}, now)
				require.Error(t, err)
				assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidTransition), "%s %s -> %s", role, terminal, target)
			}
		}
	}
}

func TestEscalate(t *testing.T) {
	technician := domain.Actor{UserID: "tech-1", Role: domain.RoleTechnician}
	ticket := newTicket(domain.TicketStatusInProgress)

	escalated, err := Escalate(ticket, technician, now)
	require.NoError(t, err)
	assert.True(t, escalated.Escalated)
	assert.False(t, ticket.Escalated)
	assert.Equal(t, domain.TicketStatusInProgress, escalated.Status)
	require.Len(t, escalated.History, 2)
	assert.Equal(t, domain.ActionEscalated, escalated.History[1].Action)

	again, err := Escalate(escalated, technician, now)
	require.Error(t, err)
	assert.Nil(t, again)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeAlreadyEscalated))
	assert.True(t, escalated.Escalated)
}

func TestEscalateRequiresTechnician(t *testing.T) {
	for _, role := range []domain.Role{domain.RoleCustomer, domain.RoleAdmin, domain.RoleManager, domain.RoleEmployee} {
		_, err := Escalate(newTicket(domain.TicketStatusSubmitted), domain.Actor{UserID: "u", Role: role}, now)
		require.Error(t, err)
		assert.True(t, apperrors.HasCode(err, apperrors.CodeForbidden), string(role))
	}
}

func TestEscalationSurvivesTransitions(t *testing.T) {
	ticket, err := Escalate(newTicket(domain.TicketStatusSubmitted), domain.Actor{UserID: "tech-1", Role: domain.RoleTechnician}, now)
	require.NoError(t, err)

	ticket, err = Transition(ticket, domain.TicketStatusInProgress, domain.Actor{UserID: "tech-1", Role: domain.RoleTechnician}, now)
	require.NoError(t, err)
	assert.True(t, ticket.Escalated)
}
