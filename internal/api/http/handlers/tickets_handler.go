package handlers

import (
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/repair-service/internal/api/dto"
	"github.com/spec-kit/repair-service/internal/attachments"
	"github.com/spec-kit/repair-service/internal/audit"
	"github.com/spec-kit/repair-service/internal/auth"
	"github.com/spec-kit/repair-service/internal/domain"
	"github.com/spec-kit/repair-service/internal/service"
	apperrors "github.com/spec-kit/repair-service/pkg/util/errorutil"
)

const attachmentsField = "attachments"

// TicketsHandler manages ticket endpoints shared by customers and staff.
type TicketsHandler struct {
	service *service.TicketService
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(ticketService *service.TicketService) *TicketsHandler {
	return &TicketsHandler{service: ticketService}
}

// CreateTicket POST /api/tickets.
func (h *TicketsHandler) CreateTicket(c *fiber.Ctx) error {
	actor, err := auth.ActorFromContext(c)
	if err != nil {
		return err
	}
	var req dto.CreateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	uploads, closeAll, err := multipartUploads(c)
	if err != nil {
		return err
	}
	defer closeAll()

	result, err := h.service.CreateTicket(c.UserContext(), actor.UserID, service.TicketCreateInput{
		SerialNumber:     req.SerialNumber,
		Model:            req.Model,
		PurchaseDate:     req.PurchaseDate,
		DeviceType:       req.DeviceType,
		IssueCategory:    req.IssueCategory,
		IssueDescription: req.IssueDescription,
		Attachments:      uploads,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.TicketCreatedResponse{
		TicketID:             result.TicketNumber,
		Status:               result.Ticket.Status,
		WarrantyStatus:       result.WarrantyStatus,
		AssignedRepairCenter: result.AssignedRepairCenter,
		Deferred:             result.Deferred,
	}})
}

// ListMyTickets GET /api/tickets.
func (h *TicketsHandler) ListMyTickets(c *fiber.Ctx) error {
	actor, err := auth.ActorFromContext(c)
	if err != nil {
		return err
	}
	tickets, err := h.service.ListTicketsForOwner(c.UserContext(), actor.UserID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketSummaries(tickets)})
}

// GetTicket GET /api/tickets/:ticketId.
func (h *TicketsHandler) GetTicket(c *fiber.Ctx) error {
	actor, err := auth.ActorFromContext(c)
	if err != nil {
		return err
	}
	ticket, err := h.service.GetTicket(c.UserContext(), c.Params("ticketId"), actor)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketDetail(ticket)})
}

// DownloadAttachment GET /api/tickets/:ticketId/attachments/*.
func (h *TicketsHandler) DownloadAttachment(c *fiber.Ctx) error {
	actor, err := auth.ActorFromContext(c)
	if err != nil {
		return err
	}
	ref, content, err := h.service.OpenAttachment(c.UserContext(), c.Params("ticketId"), c.Params("*"), actor)
	if err != nil {
		return err
	}
	c.Set(fiber.HeaderContentType, ref.MimeType)
	c.Set(fiber.HeaderXContentTypeOptions, "nosniff")
	c.Set(fiber.HeaderContentDisposition, "inline; filename="+strconv.Quote(ref.FileName))
	return c.Send(content)
}

// AllowedTransitions GET /api/tickets/:ticketId/transitions.
func (h *TicketsHandler) AllowedTransitions(c *fiber.Ctx) error {
	actor, err := auth.ActorFromContext(c)
	if err != nil {
		return err
	}
	ticketID := c.Params("ticketId")
	ticket, err := h.service.GetTicket(c.UserContext(), ticketID, actor)
	if err != nil {
		return err
	}
	targets, err := h.service.AllowedTransitions(c.UserContext(), ticketID, actor)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.AllowedTransitionsResponse{
		TicketID: ticket.TicketNumber,
		Current:  ticket.Status,
		Targets:  targets,
	}})
}

// ChangeStatus PATCH /api/tickets/:ticketId/status.
func (h *TicketsHandler) ChangeStatus(c *fiber.Ctx) error {
	actor, err := auth.ActorFromContext(c)
	if err != nil {
		return err
	}
	var req dto.StatusChangeRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if strings.TrimSpace(string(req.Status)) == "" {
		return apperrors.NewValidationError("status required", nil)
	}
	ticket, err := h.service.TransitionStatus(c.UserContext(), c.Params("ticketId"), req.Status, actor)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketDetail(ticket)})
}

// AddComment POST /api/tickets/:ticketId/comments.
func (h *TicketsHandler) AddComment(c *fiber.Ctx) error {
	actor, err := auth.ActorFromContext(c)
	if err != nil {
		return err
	}
	var req dto.CommentRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	// unknown types fall back to Note at this boundary only
	ticket, err := h.service.AddComment(c.UserContext(), c.Params("ticketId"), req.Text, audit.CommentTypeOrDefault(req.Type), actor)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": ticketDetail(ticket)})
}

// Escalate POST /api/tickets/:ticketId/escalate.
func (h *TicketsHandler) Escalate(c *fiber.Ctx) error {
	actor, err := auth.ActorFromContext(c)
	if err != nil {
		return err
	}
	ticket, err := h.service.Escalate(c.UserContext(), c.Params("ticketId"), actor)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketDetail(ticket)})
}

func multipartUploads(c *fiber.Ctx) ([]attachments.Upload, func(), error) {
	noop := func() {}
	if !strings.HasPrefix(c.Get(fiber.HeaderContentType), fiber.MIMEMultipartForm) {
		return nil, noop, nil
	}
	form, err := c.MultipartForm()
	if err != nil {
		return nil, noop, apperrors.NewValidationError("invalid multipart payload", nil)
	}

	headers := form.File[attachmentsField]
	opened := make([]multipart.File, 0, len(headers))
	closeAll := func() {
		for _, f := range opened {
			_ = f.Close()
		}
	}
	uploads := make([]attachments.Upload, 0, len(headers))
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			closeAll()
			return nil, noop, apperrors.NewValidationError("unreadable attachment", map[string]any{"file_name": fh.Filename})
		}
		opened = append(opened, f)
		uploads = append(uploads, attachments.Upload{
			FileName:    fh.Filename,
			ContentType: fh.Header.Get(fiber.HeaderContentType),
			Content:     f,
		})
	}
	return uploads, closeAll, nil
}

func ticketSummaries(tickets []service.TicketSummary) []dto.TicketSummary {
	items := make([]dto.TicketSummary, 0, len(tickets))
	for _, t := range tickets {
		items = append(items, dto.TicketSummary{
			TicketID:             t.TicketNumber,
			DeviceType:           t.DeviceType,
			Model:                t.Model,
			IssueCategory:        t.IssueCategory,
			Status:               t.Status,
			WarrantyStatus:       t.WarrantyStatus,
			AssignedRepairCenter: t.AssignedRepairCenter,
			Escalated:            t.Escalated,
			CreatedAt:            t.CreatedAt,
			UpdatedAt:            t.UpdatedAt,
		})
	}
	return items
}

func ticketDetail(ticket *domain.Ticket) dto.TicketDetailResponse {
	attachmentsResp := make([]dto.AttachmentResponse, 0, len(ticket.Issue.Attachments))
	for _, a := range ticket.Issue.Attachments {
		attachmentsResp = append(attachmentsResp, dto.AttachmentResponse{
			StorageKey: a.StorageKey,
			FileName:   a.FileName,
			MimeType:   a.MimeType,
			SizeBytes:  a.SizeBytes,
			Checksum:   a.Checksum,
		})
	}
	comments := make([]dto.CommentResponse, 0, len(ticket.InternalComments))
	for _, cm := range ticket.InternalComments {
		comments = append(comments, dto.CommentResponse{
			AuthorID:   cm.AuthorID,
			AuthorRole: cm.AuthorRole,
			Text:       cm.Text,
			Type:       cm.Type,
			CreatedAt:  cm.CreatedAt,
		})
	}
	return dto.TicketDetailResponse{
		TicketID: ticket.TicketNumber,
		OwnerID:  ticket.OwnerID,
		Product: dto.ProductResponse{
			SerialNumber: ticket.Product.SerialNumber,
			Model:        ticket.Product.Model,
			PurchaseDate: ticket.Product.PurchaseDate.Format("2006-01-02"),
			DeviceType:   ticket.Product.DeviceType,
		},
		Issue: dto.IssueResponse{
			Category:    ticket.Issue.Category,
			Description: ticket.Issue.Description,
			Attachments: attachmentsResp,
		},
		WarrantyStatus:       ticket.WarrantyStatus,
		AssignedRepairCenter: ticket.AssignedRepairCenter,
		Status:               ticket.Status,
		Escalated:            ticket.Escalated,
		InternalComments:     comments,
		History:              historyResponses(ticket.History),
		Version:              ticket.Version,
		CreatedAt:            ticket.CreatedAt,
		UpdatedAt:            ticket.UpdatedAt,
	}
}

func historyResponses(entries []domain.TicketHistory) []dto.TicketHistoryResponse {
	resp := make([]dto.TicketHistoryResponse, 0, len(entries))
	for _, entry := range entries {
		resp = append(resp, dto.TicketHistoryResponse{
			Action:     entry.Action,
			ChangedBy:  entry.ChangedBy,
			ActorRole:  entry.ActorRole,
			FromStatus: entry.FromStatus,
			ToStatus:   entry.ToStatus,
			Note:       entry.Note,
			CreatedAt:  entry.CreatedAt,
		})
	}
	return resp
}
