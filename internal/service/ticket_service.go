package service

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/repair-service/internal/attachments"
	"github.com/spec-kit/repair-service/internal/audit"
	"github.com/spec-kit/repair-service/internal/decision"
	"github.com/spec-kit/repair-service/internal/domain"
	"github.com/spec-kit/repair-service/internal/events"
	"github.com/spec-kit/repair-service/internal/lifecycle"
	"github.com/spec-kit/repair-service/internal/observability"
	"github.com/spec-kit/repair-service/internal/persistence"
	"github.com/spec-kit/repair-service/internal/repository"
	apperrors "github.com/spec-kit/repair-service/pkg/util/errorutil"
)

const (
	createAttempts       = 3
	commentSaveAttempts  = 3
	defaultMaxAttachment = 5
	initialSubmission    = "Initial submission by customer"
)

// TicketLocker scopes a mutation of one ticket.
type TicketLocker interface {
	Acquire(ctx context.Context, key string) (persistence.ReleaseFunc, error)
}

// TicketService coordinates ticket workflows.
type TicketService struct {
	tickets        repository.TicketRepository
	attachments    attachments.Store
	locker         TicketLocker
	dispatcher     events.Dispatcher
	metrics        *observability.Metrics
	logger         *zap.Logger
	now            func() time.Time
	maxAttachments int
}

// TicketDependencies bundles collaborators for the ticket service.
type TicketDependencies struct {
	TicketRepo     repository.TicketRepository
	Attachments    attachments.Store
	Locker         TicketLocker
	Dispatcher     events.Dispatcher
	Metrics        *observability.Metrics
	Logger         *zap.Logger
	Clock          func() time.Time
	MaxAttachments int
}

// TicketCreateInput describes the customer's submission.
type TicketCreateInput struct {
	SerialNumber     string
	Model            string
	PurchaseDate     string
	DeviceType       string
	IssueCategory    string
	IssueDescription string
	Attachments      []attachments.Upload
}

// TicketCreateResult carries the derived fields returned to the customer.
type TicketCreateResult struct {
	Ticket               *domain.Ticket
	TicketNumber         string
	WarrantyStatus       domain.WarrantyStatus
	AssignedRepairCenter string
	Deferred             bool
}

// TicketSummary is the list view of a ticket.
type TicketSummary struct {
	TicketNumber         string
	DeviceType           string
	Model                string
	IssueCategory        string
	Status               domain.TicketStatus
	WarrantyStatus       domain.WarrantyStatus
	AssignedRepairCenter string
	Escalated            bool
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// TicketListFilter describes staff dashboard filters.
type TicketListFilter struct {
	Statuses     []domain.TicketStatus
	Escalated    *bool
	RepairCenter *string
	Warranty     *domain.WarrantyStatus
	Limit        int
	Offset       int
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	locker := deps.Locker
	if locker == nil {
		locker = persistence.NewLocalTicketLocker(0)
	}
	maxAttachments := deps.MaxAttachments
	if maxAttachments <= 0 {
		maxAttachments = defaultMaxAttachment
	}
	return &TicketService{
		tickets:        deps.TicketRepo,
		attachments:    deps.Attachments,
		locker:         locker,
		dispatcher:     deps.Dispatcher,
		metrics:        deps.Metrics,
		logger:         logger,
		now:            clock,
		maxAttachments: maxAttachments,
	}
}

// CreateTicket validates a submission, derives warranty and routing, and stores the ticket.
func (s *TicketService) CreateTicket(ctx context.Context, ownerID string, input TicketCreateInput) (*TicketCreateResult, error) {
	if strings.TrimSpace(ownerID) == "" {
		return nil, apperrors.NewUnauthenticated("owner required")
	}
	input = normalizeCreateInput(input)
	if err := s.validateCreateInput(input); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	purchased, err := decision.ParsePurchaseDate(input.PurchaseDate)
	if err != nil {
		return nil, err
	}
	warranty, err := decision.WarrantyStatusFor(purchased, now)
	if err != nil {
		return nil, err
	}
	routing := decision.AssignRepairCenter(input.DeviceType)

	refs, err := s.storeAttachments(ctx, input.Attachments)
	if err != nil {
		return nil, err
	}

	ticket := &domain.Ticket{
		OwnerID: ownerID,
		Product: domain.ProductInfo{
			SerialNumber: input.SerialNumber,
			Model:        input.Model,
			PurchaseDate: purchased,
			DeviceType:   input.DeviceType,
		},
		Issue: domain.IssueInfo{
			Category:    input.IssueCategory,
			Description: input.IssueDescription,
			Attachments: refs,
		},
		WarrantyStatus:       warranty,
		AssignedRepairCenter: routing.Center,
		Status:               domain.TicketStatusSubmitted,
		History: []domain.TicketHistory{{
			Action:    domain.ActionTicketCreated,
			ChangedBy: ownerID,
			ActorRole: domain.RoleCustomer,
			ToStatus:  domain.TicketStatusSubmitted,
			Note:      initialSubmission,
			CreatedAt: now,
		}},
		CreatedAt: now,
		UpdatedAt: now,
	}

	var saved *domain.Ticket
	for attempt := 0; attempt < createAttempts; attempt++ {
		ticket.TicketNumber = generateTicketNumber()
		saved, err = s.tickets.Save(ctx, ticket, 0)
		if !errors.Is(err, repository.ErrDuplicateTicketNumber) {
			break
		}
	}
	if err != nil {
		s.discardAttachments(ctx, refs)
		return nil, s.mapStoreError(err, ticket.TicketNumber)
	}

	s.logger.Info("ticket created",
		zap.String("ticket_id", saved.TicketNumber),
		zap.String("owner_id", ownerID),
		zap.String("warranty_status", string(saved.WarrantyStatus)),
		zap.String("repair_center", saved.AssignedRepairCenter))
	s.publishEvent(ctx, events.Event{
		Type:         events.EventTicketCreated,
		TicketNumber: saved.TicketNumber,
		Actor:        events.Actor{UserID: ownerID, Role: domain.RoleCustomer},
		Payload: events.TicketCreatedPayload{
			DeviceType:           saved.Product.DeviceType,
			WarrantyStatus:       saved.WarrantyStatus,
			AssignedRepairCenter: saved.AssignedRepairCenter,
			Deferred:             routing.Deferred,
		},
	})

	return &TicketCreateResult{
		Ticket:               saved,
		TicketNumber:         saved.TicketNumber,
		WarrantyStatus:       saved.WarrantyStatus,
		AssignedRepairCenter: saved.AssignedRepairCenter,
		Deferred:             routing.Deferred,
	}, nil
}

// ListTicketsForOwner returns the owner's tickets, newest first.
func (s *TicketService) ListTicketsForOwner(ctx context.Context, ownerID string) ([]TicketSummary, error) {
	tickets, err := s.tickets.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, apperrors.NewServiceError(err)
	}
	return summarize(tickets), nil
}

// GetTicket returns a ticket to its owner or to staff. Customers never see internal comments.
func (s *TicketService) GetTicket(ctx context.Context, ticketNumber string, actor domain.Actor) (*domain.Ticket, error) {
	if !actor.Role.Valid() {
		return nil, apperrors.NewForbidden("unknown role")
	}
	ticket, err := s.load(ctx, ticketNumber)
	if err != nil {
		return nil, err
	}
	if actor.Role == domain.RoleCustomer && ticket.OwnerID != actor.UserID {
		return nil, apperrors.NewForbidden("ticket belongs to another customer")
	}
	ticket.InternalComments = audit.VisibleComments(actor.Role, ticket.InternalComments)
	return ticket, nil
}

// ListTickets powers the staff dashboard.
func (s *TicketService) ListTickets(ctx context.Context, actor domain.Actor, filter TicketListFilter) ([]TicketSummary, error) {
	if !actor.Role.Staff() {
		return nil, apperrors.NewForbidden("staff role required")
	}
	for _, status := range filter.Statuses {
		if !status.Valid() {
			return nil, apperrors.NewValidationError("unknown status filter", map[string]any{"status": status})
		}
	}
	tickets, err := s.tickets.ListWithFilter(ctx, repository.TicketFilter{
		Statuses:     filter.Statuses,
		Escalated:    filter.Escalated,
		RepairCenter: filter.RepairCenter,
		Warranty:     filter.Warranty,
		Limit:        filter.Limit,
		Offset:       filter.Offset,
	})
	if err != nil {
		return nil, apperrors.NewServiceError(err)
	}
	return summarize(tickets), nil
}

// AllowedTransitions lists the statuses the actor may move the ticket to.
func (s *TicketService) AllowedTransitions(ctx context.Context, ticketNumber string, actor domain.Actor) ([]domain.TicketStatus, error) {
	if lifecycle.CapabilitiesFor(actor.Role).Transition == lifecycle.PolicyNone {
		return nil, apperrors.NewForbidden("role may not change ticket status")
	}
	ticket, err := s.load(ctx, ticketNumber)
	if err != nil {
		return nil, err
	}
	return lifecycle.AllowedTargets(actor.Role, ticket.Status), nil
}

// TransitionStatus moves a ticket to target under the per-ticket lock.
func (s *TicketService) TransitionStatus(ctx context.Context, ticketNumber string, target domain.TicketStatus, actor domain.Actor) (*domain.Ticket, error) {
	if lifecycle.CapabilitiesFor(actor.Role).Transition == lifecycle.PolicyNone {
		return nil, apperrors.NewForbidden("role may not change ticket status")
	}

	var (
		saved    *domain.Ticket
		previous domain.TicketStatus
	)
	err := s.withTicketLock(ctx, ticketNumber, func() error {
		current, err := s.load(ctx, ticketNumber)
		if err != nil {
			return err
		}
		next, err := lifecycle.Transition(current, target, actor, s.now().UTC())
		if err != nil {
			return err
		}
		saved, err = s.tickets.Save(ctx, next, current.Version)
		if err != nil {
			return s.mapStoreError(err, ticketNumber)
		}
		previous = current.Status
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("ticket status changed",
		zap.String("ticket_id", ticketNumber),
		zap.String("actor_id", actor.UserID),
		zap.String("role", string(actor.Role)),
		zap.String("from", string(previous)),
		zap.String("to", string(saved.Status)))
	s.publishEvent(ctx, events.Event{
		Type:         events.EventTicketStatusChanged,
		TicketNumber: ticketNumber,
		Actor:        eventActor(actor),
		Payload: events.TicketStatusChangedPayload{
			OldStatus: previous,
			NewStatus: saved.Status,
		},
	})
	return saved, nil
}

// AddComment appends an internal comment. Comments commute, so a version
// conflict is retried against a fresh read.
func (s *TicketService) AddComment(ctx context.Context, ticketNumber, text string, commentType domain.CommentType, actor domain.Actor) (*domain.Ticket, error) {
	if !lifecycle.CanComment(actor.Role) {
		return nil, apperrors.NewForbidden("role may not add internal comments")
	}

	var saved *domain.Ticket
	for attempt := 0; attempt < commentSaveAttempts; attempt++ {
		current, err := s.load(ctx, ticketNumber)
		if err != nil {
			return nil, err
		}
		next, err := audit.AddComment(current, text, commentType, actor, s.now().UTC())
		if err != nil {
			return nil, err
		}
		saved, err = s.tickets.Save(ctx, next, current.Version)
		if err == nil {
			break
		}
		if !errors.Is(err, repository.ErrVersionConflict) {
			return nil, s.mapStoreError(err, ticketNumber)
		}
		s.logger.Debug("comment save conflicted, retrying",
			zap.String("ticket_id", ticketNumber), zap.Int("attempt", attempt+1))
		saved = nil
	}
	if saved == nil {
		return nil, apperrors.NewConcurrencyConflict("ticket", map[string]any{"ticket_id": ticketNumber})
	}

	comment := saved.InternalComments[len(saved.InternalComments)-1]
	s.logger.Info("ticket comment added",
		zap.String("ticket_id", ticketNumber),
		zap.String("actor_id", actor.UserID),
		zap.String("comment_type", string(comment.Type)))
	s.publishEvent(ctx, events.Event{
		Type:         events.EventTicketCommentAdded,
		TicketNumber: ticketNumber,
		Actor:        eventActor(actor),
		Payload: events.TicketCommentAddedPayload{
			CommentType: comment.Type,
			TextPreview: stringPreview(comment.Text, 120),
		},
	})
	return saved, nil
}

// Escalate raises the escalation flag under the per-ticket lock.
func (s *TicketService) Escalate(ctx context.Context, ticketNumber string, actor domain.Actor) (*domain.Ticket, error) {
	if !lifecycle.CanEscalate(actor.Role) {
		return nil, apperrors.NewForbidden("only technicians may escalate")
	}

	var saved *domain.Ticket
	err := s.withTicketLock(ctx, ticketNumber, func() error {
		current, err := s.load(ctx, ticketNumber)
		if err != nil {
			return err
		}
		next, err := lifecycle.Escalate(current, actor, s.now().UTC())
		if err != nil {
			return err
		}
		saved, err = s.tickets.Save(ctx, next, current.Version)
		if err != nil {
			return s.mapStoreError(err, ticketNumber)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("ticket escalated",
		zap.String("ticket_id", ticketNumber),
		zap.String("actor_id", actor.UserID))
	s.publishEvent(ctx, events.Event{
		Type:         events.EventTicketEscalated,
		TicketNumber: ticketNumber,
		Actor:        eventActor(actor),
		Payload:      events.TicketEscalatedPayload{Status: saved.Status},
	})
	return saved, nil
}

// OpenAttachment streams an attachment of a ticket the actor may view.
func (s *TicketService) OpenAttachment(ctx context.Context, ticketNumber, storageKey string, actor domain.Actor) (*domain.AttachmentReference, []byte, error) {
	ticket, err := s.GetTicket(ctx, ticketNumber, actor)
	if err != nil {
		return nil, nil, err
	}
	var ref *domain.AttachmentReference
	for i := range ticket.Issue.Attachments {
		if ticket.Issue.Attachments[i].StorageKey == storageKey {
			ref = &ticket.Issue.Attachments[i]
			break
		}
	}
	if ref == nil || s.attachments == nil {
		return nil, nil, apperrors.NewNotFound("attachment", map[string]any{"ticket_id": ticketNumber})
	}
	rc, err := s.attachments.Open(ctx, storageKey)
	if err != nil {
		if errors.Is(err, attachments.ErrNotFound) {
			return nil, nil, apperrors.NewNotFound("attachment", map[string]any{"ticket_id": ticketNumber})
		}
		return nil, nil, apperrors.NewServiceError(err)
	}
	content, err := attachments.ReadAllAndClose(rc)
	if err != nil {
		return nil, nil, apperrors.NewServiceError(err)
	}
	return ref, content, nil
}

func (s *TicketService) validateCreateInput(input TicketCreateInput) error {
	missing := make([]string, 0)
	if input.SerialNumber == "" {
		missing = append(missing, "serial_number")
	}
	if input.Model == "" {
		missing = append(missing, "model")
	}
	if input.PurchaseDate == "" {
		missing = append(missing, "purchase_date")
	}
	if input.IssueCategory == "" {
		missing = append(missing, "issue_category")
	}
	if input.IssueDescription == "" {
		missing = append(missing, "issue_description")
	}
	if len(missing) > 0 {
		return apperrors.NewValidationError("missing required fields", map[string]any{"fields": missing})
	}
	if len(input.Attachments) > s.maxAttachments {
		return apperrors.NewValidationError("too many attachments", map[string]any{"max_files": s.maxAttachments})
	}
	return nil
}

func (s *TicketService) storeAttachments(ctx context.Context, uploads []attachments.Upload) ([]domain.AttachmentReference, error) {
	if len(uploads) == 0 {
		return nil, nil
	}
	if s.attachments == nil {
		return nil, apperrors.NewValidationError("attachments are not accepted", nil)
	}
	refs := make([]domain.AttachmentReference, 0, len(uploads))
	for _, upload := range uploads {
		ref, err := s.attachments.Put(ctx, upload)
		if err != nil {
			s.discardAttachments(ctx, refs)
			var domainErr *apperrors.DomainError
			if errors.As(err, &domainErr) {
				return nil, err
			}
			return nil, apperrors.NewServiceError(err)
		}
		refs = append(refs, ref)
	}
	return refs, nil
}

// discardAttachments removes payloads that no saved ticket references.
func (s *TicketService) discardAttachments(ctx context.Context, refs []domain.AttachmentReference) {
	if len(refs) == 0 {
		return
	}
	ctx = context.WithoutCancel(ctx)
	for _, ref := range refs {
		if err := s.attachments.Delete(ctx, ref.StorageKey); err != nil {
			s.logger.Warn("failed to discard orphaned attachment",
				zap.String("storage_key", ref.StorageKey), zap.Error(err))
			continue
		}
		s.logger.Warn("discarded attachment of unsaved ticket", zap.String("storage_key", ref.StorageKey))
	}
}

func (s *TicketService) load(ctx context.Context, ticketNumber string) (*domain.Ticket, error) {
	ticket, err := s.tickets.Get(ctx, strings.TrimSpace(ticketNumber))
	if err != nil {
		return nil, s.mapStoreError(err, ticketNumber)
	}
	return ticket, nil
}

func (s *TicketService) withTicketLock(ctx context.Context, ticketNumber string, fn func() error) error {
	release, err := s.locker.Acquire(ctx, ticketNumber)
	if err != nil {
		if errors.Is(err, persistence.ErrLockBusy) {
			s.metrics.RecordLock("busy")
			return apperrors.NewConcurrencyConflict("ticket", map[string]any{"ticket_id": ticketNumber})
		}
		s.metrics.RecordLock("error")
		return apperrors.NewServiceError(err)
	}
	s.metrics.RecordLock("acquired")
	defer func() {
		if err := release(context.WithoutCancel(ctx)); err != nil {
			s.logger.Warn("ticket lock release failed", zap.String("ticket_id", ticketNumber), zap.Error(err))
		}
	}()
	return fn()
}

func (s *TicketService) mapStoreError(err error, ticketNumber string) error {
	var domainErr *apperrors.DomainError
	switch {
	case errors.As(err, &domainErr):
		return err
	case errors.Is(err, pgx.ErrNoRows):
		return apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketNumber})
	case errors.Is(err, repository.ErrVersionConflict):
		return apperrors.NewConcurrencyConflict("ticket", map[string]any{"ticket_id": ticketNumber})
	default:
		s.logger.Error("ticket store failure", zap.String("ticket_id", ticketNumber), zap.Error(err))
		return apperrors.NewServiceError(err)
	}
}

func (s *TicketService) publishEvent(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = s.now().UTC()
	}
	if err := s.dispatcher.Publish(ctx, event); err != nil {
		s.logger.Warn("event handler failed", zap.String("event_type", string(event.Type)), zap.Error(err))
	}
}

func normalizeCreateInput(input TicketCreateInput) TicketCreateInput {
	input.SerialNumber = strings.TrimSpace(input.SerialNumber)
	input.Model = strings.TrimSpace(input.Model)
	input.PurchaseDate = strings.TrimSpace(input.PurchaseDate)
	input.DeviceType = strings.TrimSpace(input.DeviceType)
	input.IssueCategory = strings.TrimSpace(input.IssueCategory)
	input.IssueDescription = strings.TrimSpace(input.IssueDescription)
	return input
}

func summarize(tickets []domain.Ticket) []TicketSummary {
	out := make([]TicketSummary, 0, len(tickets))
	for _, t := range tickets {
		out = append(out, TicketSummary{
			TicketNumber:         t.TicketNumber,
			DeviceType:           t.Product.DeviceType,
			Model:                t.Product.Model,
			IssueCategory:        t.Issue.Category,
			Status:               t.Status,
			WarrantyStatus:       t.WarrantyStatus,
			AssignedRepairCenter: t.AssignedRepairCenter,
			Escalated:            t.Escalated,
			CreatedAt:            t.CreatedAt,
			UpdatedAt:            t.UpdatedAt,
		})
	}
	return out
}

func generateTicketNumber() string {
	return "TKT-" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}

func eventActor(actor domain.Actor) events.Actor {
	return events.Actor{UserID: actor.UserID, Role: actor.Role}
}

// stringPreview shortens body to at most max runes, cutting on rune boundaries.
func stringPreview(body string, max int) string {
	body = strings.TrimSpace(body)
	if utf8.RuneCountInString(body) <= max {
		return body
	}
	runes := []rune(body)
	if max <= 3 {
		return string(runes[:max])
	}
	return string(runes[:max-3]) + "..."
}
