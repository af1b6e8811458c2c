package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/repair-service/internal/events"
	"github.com/spec-kit/repair-service/internal/observability"
)

// ActivityService records ticket activity for operators. It never contacts customers.
type ActivityService struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
	metrics    *observability.Metrics
}

// NewActivityService creates the service.
func NewActivityService(dispatcher events.Dispatcher, logger *zap.Logger, metrics *observability.Metrics) *ActivityService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ActivityService{
		dispatcher: dispatcher,
		logger:     logger,
		metrics:    metrics,
	}
}

// RegisterHandlers subscribes to events.
func (a *ActivityService) RegisterHandlers() {
	if a.dispatcher == nil {
		return
	}
	a.dispatcher.Subscribe(events.EventTicketCreated, a.handleTicketCreated)
	a.dispatcher.Subscribe(events.EventTicketStatusChanged, a.handleTicketStatusChanged)
	a.dispatcher.Subscribe(events.EventTicketCommentAdded, a.handleTicketCommentAdded)
	a.dispatcher.Subscribe(events.EventTicketEscalated, a.handleTicketEscalated)
}

func (a *ActivityService) handleTicketCreated(_ context.Context, event events.Event) error {
	payload, _ := event.Payload.(events.TicketCreatedPayload)
	if payload.Deferred {
		a.logger.Warn("TicketAwaitingManualRouting",
			zap.String("ticket_id", event.TicketNumber),
			zap.String("device_type", payload.DeviceType))
	}
	a.record(event, payload.AssignedRepairCenter)
	return nil
}

func (a *ActivityService) handleTicketStatusChanged(_ context.Context, event events.Event) error {
	payload, _ := event.Payload.(events.TicketStatusChangedPayload)
	a.record(event, string(payload.NewStatus))
	return nil
}

func (a *ActivityService) handleTicketCommentAdded(_ context.Context, event events.Event) error {
	payload, _ := event.Payload.(events.TicketCommentAddedPayload)
	a.record(event, string(payload.CommentType))
	return nil
}

func (a *ActivityService) handleTicketEscalated(_ context.Context, event events.Event) error {
	payload, _ := event.Payload.(events.TicketEscalatedPayload)
	a.record(event, string(payload.Status))
	return nil
}

func (a *ActivityService) record(event events.Event, detail string) {
	a.metrics.RecordTicketEvent(string(event.Type), detail)
	a.logger.Info("ticket activity",
		zap.String("event_id", event.ID),
		zap.String("event_type", string(event.Type)),
		zap.String("ticket_id", event.TicketNumber),
		zap.String("actor_id", event.Actor.UserID),
		zap.String("actor_role", string(event.Actor.Role)),
		zap.String("detail", detail),
		zap.Time("at", event.Timestamp))
}
