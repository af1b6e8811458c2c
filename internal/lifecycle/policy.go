// Package lifecycle governs how a repair ticket's status and escalation flag
// may change, and who may change them.
package lifecycle

import "github.com/spec-kit/repair-service/internal/domain"

// TransitionPolicy selects which transition graph applies to a role.
type TransitionPolicy int

const (
	// PolicyNone forbids status changes entirely.
	PolicyNone TransitionPolicy = iota
	// PolicyGraph restricts changes to the technician adjacency table.
	PolicyGraph
	// PolicyOverride allows any non-terminal status to move to any other status.
	PolicyOverride
)

// Capabilities describes what a role may do to a ticket.
type Capabilities struct {
	Transition TransitionPolicy
	Comment    bool
	Escalate   bool
}

var roleCapabilities = map[domain.Role]Capabilities{
	domain.RoleCustomer:   {Transition: PolicyNone},
	domain.RoleTechnician: {Transition: PolicyGraph, Comment: true, Escalate: true},
	domain.RoleAdmin:      {Transition: PolicyOverride, Comment: true},
	domain.RoleManager:    {Transition: PolicyOverride, Comment: true},
	domain.RoleEmployee:   {Transition: PolicyOverride, Comment: true},
}

var technicianGraph = buildGraph(map[domain.TicketStatus][]domain.TicketStatus{
	domain.TicketStatusSubmitted: {
		domain.TicketStatusPendingValidation, domain.TicketStatusShipping,
		domain.TicketStatusInProgress, domain.TicketStatusCancelled,
	},
	domain.TicketStatusPendingValidation: {
		domain.TicketStatusInProgress, domain.TicketStatusCancelled, domain.TicketStatusCompleted,
	},
	domain.TicketStatusShipping: {
		domain.TicketStatusInProgress, domain.TicketStatusCancelled,
	},
	domain.TicketStatusInProgress: {
		domain.TicketStatusWaitingForParts, domain.TicketStatusShippedBack,
		domain.TicketStatusReadyForPickup, domain.TicketStatusCompleted, domain.TicketStatusCancelled,
	},
	domain.TicketStatusWaitingForParts: {
		domain.TicketStatusInProgress, domain.TicketStatusCompleted,
		domain.TicketStatusReadyForPickup, domain.TicketStatusCancelled,
	},
	domain.TicketStatusShippedBack:    {domain.TicketStatusCompleted, domain.TicketStatusCancelled},
	domain.TicketStatusReadyForPickup: {domain.TicketStatusCompleted, domain.TicketStatusCancelled},
	domain.TicketStatusCompleted:      {domain.TicketStatusClosed},
	domain.TicketStatusClosed:         {},
	domain.TicketStatusCancelled:      {},
})

type graph struct {
	ordered map[domain.TicketStatus][]domain.TicketStatus
	lookup  map[domain.TicketStatus]map[domain.TicketStatus]struct{}
}

func buildGraph(edges map[domain.TicketStatus][]domain.TicketStatus) graph {
	g := graph{
		ordered: make(map[domain.TicketStatus][]domain.TicketStatus, len(edges)),
		lookup:  make(map[domain.TicketStatus]map[domain.TicketStatus]struct{}, len(edges)),
	}
	for from, targets := range edges {
		set := make(map[domain.TicketStatus]struct{}, len(targets))
		for _, to := range targets {
			set[to] = struct{}{}
		}
		g.ordered[from] = append([]domain.TicketStatus(nil), targets...)
		g.lookup[from] = set
	}
	return g
}

func (g graph) has(from, to domain.TicketStatus) bool {
	_, ok := g.lookup[from][to]
	return ok
}

// CapabilitiesFor returns the capability row for role; unknown roles get none.
func CapabilitiesFor(role domain.Role) Capabilities {
	return roleCapabilities[role]
}

// CanTransition reports whether role may move a ticket from one status to another.
func CanTransition(role domain.Role, from, to domain.TicketStatus) bool {
	if from == to || !to.Valid() || from.Terminal() {
		return false
	}
	switch CapabilitiesFor(role).Transition {
	case PolicyGraph:
		return technicianGraph.has(from, to)
	case PolicyOverride:
		return from.Valid()
	default:
		return false
	}
}

// AllowedTargets lists the statuses role may move a ticket to from its current status.
func AllowedTargets(role domain.Role, from domain.TicketStatus) []domain.TicketStatus {
	if from.Terminal() {
		return []domain.TicketStatus{}
	}
	switch CapabilitiesFor(role).Transition {
	case PolicyGraph:
		return append([]domain.TicketStatus{}, technicianGraph.ordered[from]...)
	case PolicyOverride:
		if !from.Valid() {
			return []domain.TicketStatus{}
		}
		targets := make([]domain.TicketStatus, 0, len(domain.TicketStatuses)-1)
		for _, status := range domain.TicketStatuses {
			if status != from {
				targets = append(targets, status)
			}
		}
		return targets
	default:
		return []domain.TicketStatus{}
	}
}

// CanComment reports whether role may append internal comments.
func CanComment(role domain.Role) bool {
	return CapabilitiesFor(role).Comment
}

// CanEscalate reports whether role may raise the escalation flag.
func CanEscalate(role domain.Role) bool {
	return CapabilitiesFor(role).Escalate
}
