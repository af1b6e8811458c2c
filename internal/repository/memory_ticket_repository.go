package repository

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/repair-service/internal/domain"
)

// memoryTicketRepository keeps tickets in process. It honours the same
// version contract as the Postgres repository and is used when no DSN is set.
type memoryTicketRepository struct {
	mu      sync.RWMutex
	tickets map[string]*domain.Ticket
}

// NewMemoryTicketRepository returns an empty in-memory repository.
func NewMemoryTicketRepository() TicketRepository {
	return &memoryTicketRepository{tickets: make(map[string]*domain.Ticket)}
}

func (r *memoryTicketRepository) Get(ctx context.Context, ticketNumber string) (*domain.Ticket, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ticket, ok := r.tickets[ticketNumber]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return ticket.Clone(), nil
}

func (r *memoryTicketRepository) Save(ctx context.Context, ticket *domain.Ticket, expectedVersion int64) (*domain.Ticket, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	current, exists := r.tickets[ticket.TicketNumber]
	saved := ticket.Clone()
	if expectedVersion == 0 {
		if exists {
			return nil, ErrDuplicateTicketNumber
		}
		saved.ID = uuid.NewString()
		saved.Version = 1
		r.tickets[saved.TicketNumber] = saved
		return saved.Clone(), nil
	}

	if !exists {
		return nil, pgx.ErrNoRows
	}
	if current.Version != expectedVersion {
		return nil, ErrVersionConflict
	}
	next := current.Clone()
	next.Status = saved.Status
	next.Escalated = saved.Escalated
	next.InternalComments = saved.InternalComments
	next.History = saved.History
	next.UpdatedAt = saved.UpdatedAt
	next.Version = current.Version + 1
	r.tickets[next.TicketNumber] = next
	return next.Clone(), nil
}

func (r *memoryTicketRepository) ListByOwner(ctx context.Context, ownerID string) ([]domain.Ticket, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := []domain.Ticket{}
	for _, ticket := range r.tickets {
		if ticket.OwnerID == ownerID {
			result = append(result, *ticket.Clone())
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}

func (r *memoryTicketRepository) ListWithFilter(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	r.mu.RLock()
	matched := []domain.Ticket{}
	for _, ticket := range r.tickets {
		if matchesFilter(ticket, filter) {
			matched = append(matched, *ticket.Clone())
		}
	}
	r.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].UpdatedAt.After(matched[j].UpdatedAt)
	})
	limit, offset := normalizePage(filter.Limit, filter.Offset)
	if offset >= len(matched) {
		return []domain.Ticket{}, nil
	}
	end := offset + limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[offset:end], nil
}

func (r *memoryTicketRepository) CountByStatus(ctx context.Context) (map[domain.TicketStatus]int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	counts := make(map[domain.TicketStatus]int)
	for _, ticket := range r.tickets {
		counts[ticket.Status]++
	}
	return counts, nil
}

func matchesFilter(ticket *domain.Ticket, filter TicketFilter) bool {
	if filter.OwnerID != nil && ticket.OwnerID != *filter.OwnerID {
		return false
	}
	if len(filter.Statuses) > 0 {
		found := false
		for _, status := range filter.Statuses {
			if ticket.Status == status {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if filter.Escalated != nil && ticket.Escalated != *filter.Escalated {
		return false
	}
	if filter.RepairCenter != nil && ticket.AssignedRepairCenter != *filter.RepairCenter {
		return false
	}
	if filter.Warranty != nil && ticket.WarrantyStatus != *filter.Warranty {
		return false
	}
	return true
}
