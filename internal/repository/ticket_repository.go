package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/repair-service/internal/domain"
)

var (
	// ErrVersionConflict is returned by Save when the stored version moved on.
	ErrVersionConflict = errors.New("ticket version conflict")
	// ErrDuplicateTicketNumber is returned by Save when a new ticket reuses a number.
	ErrDuplicateTicketNumber = errors.New("duplicate ticket number")
)

// TicketFilter captures staff listing parameters.
type TicketFilter struct {
	OwnerID      *string
	Statuses     []domain.TicketStatus
	Escalated    *bool
	RepairCenter *string
	Warranty     *domain.WarrantyStatus
	Limit        int
	Offset       int
}

// TicketRepository encapsulates ticket persistence.
// Get returns pgx.ErrNoRows for unknown numbers. Save inserts when
// expectedVersion is 0 and otherwise only writes if the stored version equals
// expectedVersion; the returned ticket carries the new version.
type TicketRepository interface {
	Get(ctx context.Context, ticketNumber string) (*domain.Ticket, error)
	Save(ctx context.Context, ticket *domain.Ticket, expectedVersion int64) (*domain.Ticket, error)
	ListByOwner(ctx context.Context, ownerID string) ([]domain.Ticket, error)
	ListWithFilter(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error)
	CountByStatus(ctx context.Context) (map[domain.TicketStatus]int, error)
}

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository instantiates a Postgres-backed repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

const ticketColumns = `id, ticket_number, owner_id, serial_number, model, purchase_date, device_type,
               issue_category, issue_description, attachments, warranty_status, assigned_repair_center,
               status, escalated, internal_comments, history, version, created_at, updated_at`

func (r *ticketRepository) Get(ctx context.Context, ticketNumber string) (*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE ticket_number=$1`
	rows, err := r.pool.Query(ctx, query, ticketNumber)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	tickets, err := scanTickets(rows)
	if err != nil {
		return nil, err
	}
	if len(tickets) == 0 {
		return nil, pgx.ErrNoRows
	}
	return &tickets[0], nil
}

func (r *ticketRepository) Save(ctx context.Context, ticket *domain.Ticket, expectedVersion int64) (*domain.Ticket, error) {
	if expectedVersion == 0 {
		return r.insert(ctx, ticket)
	}
	return r.update(ctx, ticket, expectedVersion)
}

func (r *ticketRepository) insert(ctx context.Context, ticket *domain.Ticket) (*domain.Ticket, error) {
	const query = `
        INSERT INTO tickets (ticket_number, owner_id, serial_number, model, purchase_date, device_type,
            issue_category, issue_description, attachments, warranty_status, assigned_repair_center,
            status, escalated, internal_comments, history, version, created_at, updated_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,1,$16,$17)
        RETURNING id, version`
	saved := ticket.Clone()
	err := r.pool.QueryRow(ctx, query,
		saved.TicketNumber,
		saved.OwnerID,
		saved.Product.SerialNumber,
		saved.Product.Model,
		saved.Product.PurchaseDate,
		saved.Product.DeviceType,
		saved.Issue.Category,
		saved.Issue.Description,
		toAttachmentRecords(saved.Issue.Attachments),
		saved.WarrantyStatus,
		saved.AssignedRepairCenter,
		saved.Status,
		saved.Escalated,
		toCommentRecords(saved.InternalComments),
		toHistoryRecords(saved.History),
		saved.CreatedAt,
		saved.UpdatedAt,
	).Scan(&saved.ID, &saved.Version)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, ErrDuplicateTicketNumber
		}
		return nil, err
	}
	return saved, nil
}

// update never writes the creation-time fields; they have no edit path.
func (r *ticketRepository) update(ctx context.Context, ticket *domain.Ticket, expectedVersion int64) (*domain.Ticket, error) {
	const query = `
        UPDATE tickets SET status=$1, escalated=$2, internal_comments=$3, history=$4,
            version=version+1, updated_at=$5
        WHERE ticket_number=$6 AND version=$7
        RETURNING version`
	saved := ticket.Clone()
	err := r.pool.QueryRow(ctx, query,
		saved.Status,
		saved.Escalated,
		toCommentRecords(saved.InternalComments),
		toHistoryRecords(saved.History),
		saved.UpdatedAt,
		saved.TicketNumber,
		expectedVersion,
	).Scan(&saved.Version)
	if err == nil {
		return saved, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}

	var exists bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM tickets WHERE ticket_number=$1)`, saved.TicketNumber).Scan(&exists); err != nil {
		return nil, err
	}
	if !exists {
		return nil, pgx.ErrNoRows
	}
	return nil, ErrVersionConflict
}

func (r *ticketRepository) ListByOwner(ctx context.Context, ownerID string) ([]domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE owner_id=$1 ORDER BY created_at DESC`
	rows, err := r.pool.Query(ctx, query, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTickets(rows)
}

func (r *ticketRepository) ListWithFilter(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	clauses := []string{"1=1"}
	args := []any{}

	if filter.OwnerID != nil {
		args = append(args, *filter.OwnerID)
		clauses = append(clauses, fmt.Sprintf("owner_id=$%d", len(args)))
	}
	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.Escalated != nil {
		args = append(args, *filter.Escalated)
		clauses = append(clauses, fmt.Sprintf("escalated=$%d", len(args)))
	}
	if filter.RepairCenter != nil {
		args = append(args, *filter.RepairCenter)
		clauses = append(clauses, fmt.Sprintf("assigned_repair_center=$%d", len(args)))
	}
	if filter.Warranty != nil {
		args = append(args, *filter.Warranty)
		clauses = append(clauses, fmt.Sprintf("warranty_status=$%d", len(args)))
	}

	limit, offset := normalizePage(filter.Limit, filter.Offset)
	query := fmt.Sprintf(`SELECT %s FROM tickets WHERE %s ORDER BY updated_at DESC LIMIT %d OFFSET %d`,
		ticketColumns, strings.Join(clauses, " AND "), limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTickets(rows)
}

func (r *ticketRepository) CountByStatus(ctx context.Context) (map[domain.TicketStatus]int, error) {
	rows, err := r.pool.Query(ctx, `SELECT status, COUNT(*) FROM tickets GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[domain.TicketStatus]int)
	for rows.Next() {
		var (
			status domain.TicketStatus
			count  int
		)
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		counts[status] = count
	}
	return counts, rows.Err()
}

// Page sizes applied to ListWithFilter.
const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

func normalizePage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

func scanTickets(rows pgx.Rows) ([]domain.Ticket, error) {
	var result []domain.Ticket
	for rows.Next() {
		var (
			ticket      domain.Ticket
			attachments []attachmentRecord
			comments    []commentRecord
			history     []historyRecord
		)
		if err := rows.Scan(
			&ticket.ID,
			&ticket.TicketNumber,
			&ticket.OwnerID,
			&ticket.Product.SerialNumber,
			&ticket.Product.Model,
			&ticket.Product.PurchaseDate,
			&ticket.Product.DeviceType,
			&ticket.Issue.Category,
			&ticket.Issue.Description,
			&attachments,
			&ticket.WarrantyStatus,
			&ticket.AssignedRepairCenter,
			&ticket.Status,
			&ticket.Escalated,
			&comments,
			&history,
			&ticket.Version,
			&ticket.CreatedAt,
			&ticket.UpdatedAt,
		); err != nil {
			return nil, err
		}
		ticket.Issue.Attachments = fromAttachmentRecords(attachments)
		ticket.InternalComments = fromCommentRecords(comments)
		ticket.History = fromHistoryRecords(history)
		result = append(result, ticket)
	}
	return result, rows.Err()
}
