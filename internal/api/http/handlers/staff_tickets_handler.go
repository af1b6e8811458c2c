package handlers

import (
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/repair-service/internal/auth"
	"github.com/spec-kit/repair-service/internal/domain"
	"github.com/spec-kit/repair-service/internal/repository"
	"github.com/spec-kit/repair-service/internal/service"
	apperrors "github.com/spec-kit/repair-service/pkg/util/errorutil"
)

// StaffTicketsHandler serves the staff dashboard listing.
type StaffTicketsHandler struct {
	tickets *service.TicketService
}

// NewStaffTicketsHandler constructs handler.
func NewStaffTicketsHandler(ticketService *service.TicketService) *StaffTicketsHandler {
	return &StaffTicketsHandler{tickets: ticketService}
}

// ListStaffTickets GET /api/staff/tickets.
func (h *StaffTicketsHandler) ListStaffTickets(c *fiber.Ctx) error {
	actor, err := auth.ActorFromContext(c)
	if err != nil {
		return err
	}
	filter, err := parseStaffTicketFilter(c)
	if err != nil {
		return err
	}
	tickets, err := h.tickets.ListTickets(c.UserContext(), actor, filter)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketSummaries(tickets)})
}

func parseStaffTicketFilter(c *fiber.Ctx) (service.TicketListFilter, error) {
	filter := service.TicketListFilter{}
	if statuses := c.Query("status"); statuses != "" {
		for _, part := range strings.Split(statuses, ",") {
			filter.Statuses = append(filter.Statuses, domain.TicketStatus(strings.TrimSpace(part)))
		}
	}
	if escalated := c.Query("escalated"); escalated != "" {
		val, err := strconv.ParseBool(escalated)
		if err != nil {
			return filter, apperrors.NewValidationError("escalated must be a boolean", nil)
		}
		filter.Escalated = &val
	}
	if center := strings.TrimSpace(c.Query("repair_center")); center != "" {
		filter.RepairCenter = &center
	}
	if warranty := c.Query("warranty"); warranty != "" {
		ws := domain.WarrantyStatus(warranty)
		if ws != domain.WarrantyUnder && ws != domain.WarrantyOut {
			return filter, apperrors.NewValidationError("unknown warranty filter", map[string]any{"warranty": warranty})
		}
		filter.Warranty = &ws
	}
	page := parseIntQuery(c, "page", 1)
	pageSize := min(parseIntQuery(c, "page_size", repository.DefaultPageSize), repository.MaxPageSize)
	filter.Offset = (page - 1) * pageSize
	filter.Limit = pageSize
	return filter, nil
}

func parseIntQuery(c *fiber.Ctx, key string, defaultVal int) int {
	if val := c.Query(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil && parsed > 0 {
			return parsed
		}
	}
	return defaultVal
}
