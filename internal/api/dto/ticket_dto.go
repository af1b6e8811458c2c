package dto

import (
	"time"

	"github.com/spec-kit/repair-service/internal/domain"
)

// CreateTicketRequest payload; accepted as JSON or multipart form fields.
type CreateTicketRequest struct {
	SerialNumber     string `json:"serial_number" form:"serial_number"`
	Model            string `json:"model" form:"model"`
	PurchaseDate     string `json:"purchase_date" form:"purchase_date"`
	DeviceType       string `json:"device_type" form:"device_type"`
	IssueCategory    string `json:"issue_category" form:"issue_category"`
	IssueDescription string `json:"issue_description" form:"issue_description"`
}

// TicketCreatedResponse returns the derived fields to the customer.
type TicketCreatedResponse struct {
	TicketID             string                `json:"ticket_id"`
	Status               domain.TicketStatus   `json:"status"`
	WarrantyStatus       domain.WarrantyStatus `json:"warranty_status"`
	AssignedRepairCenter string                `json:"assigned_repair_center"`
	Deferred             bool                  `json:"deferred"`
}

// StatusChangeRequest payload.
type StatusChangeRequest struct {
	Status domain.TicketStatus `json:"status"`
}

// CommentRequest payload.
type CommentRequest struct {
	Text string `json:"text"`
	Type string `json:"type"`
}

// TicketSummary response.
type TicketSummary struct {
	TicketID             string                `json:"ticket_id"`
	DeviceType           string                `json:"device_type"`
	Model                string                `json:"model"`
	IssueCategory        string                `json:"issue_category"`
	Status               domain.TicketStatus   `json:"status"`
	WarrantyStatus       domain.WarrantyStatus `json:"warranty_status"`
	AssignedRepairCenter string                `json:"assigned_repair_center"`
	Escalated            bool                  `json:"escalated"`
	CreatedAt            time.Time             `json:"created_at"`
	UpdatedAt            time.Time             `json:"updated_at"`
}

// ProductResponse describes the device.
type ProductResponse struct {
	SerialNumber string `json:"serial_number"`
	Model        string `json:"model"`
	PurchaseDate string `json:"purchase_date"`
	DeviceType   string `json:"device_type"`
}

// AttachmentResponse describes an uploaded file.
type AttachmentResponse struct {
	StorageKey string `json:"storage_key"`
	FileName   string `json:"file_name"`
	MimeType   string `json:"mime_type"`
	SizeBytes  int64  `json:"size_bytes"`
	Checksum   string `json:"checksum"`
}

// IssueResponse describes the reported fault.
type IssueResponse struct {
	Category    string               `json:"category"`
	Description string               `json:"description"`
	Attachments []AttachmentResponse `json:"attachments"`
}

// CommentResponse is an internal comment.
type CommentResponse struct {
	AuthorID   string             `json:"author_id"`
	AuthorRole domain.Role        `json:"author_role"`
	Text       string             `json:"text"`
	Type       domain.CommentType `json:"type"`
	CreatedAt  time.Time          `json:"created_at"`
}

// TicketHistoryResponse is one history entry.
type TicketHistoryResponse struct {
	Action     domain.HistoryAction `json:"action"`
	ChangedBy  string               `json:"changed_by"`
	ActorRole  domain.Role          `json:"actor_role"`
	FromStatus domain.TicketStatus  `json:"from_status,omitempty"`
	ToStatus   domain.TicketStatus  `json:"to_status,omitempty"`
	Note       string               `json:"note,omitempty"`
	CreatedAt  time.Time            `json:"created_at"`
}

// TicketDetailResponse provides full ticket info.
type TicketDetailResponse struct {
	TicketID             string                  `json:"ticket_id"`
	OwnerID              string                  `json:"owner_id"`
	Product              ProductResponse         `json:"product"`
	Issue                IssueResponse           `json:"issue"`
	WarrantyStatus       domain.WarrantyStatus   `json:"warranty_status"`
	AssignedRepairCenter string                  `json:"assigned_repair_center"`
	Status               domain.TicketStatus     `json:"status"`
	Escalated            bool                    `json:"escalated"`
	InternalComments     []CommentResponse       `json:"internal_comments"`
	History              []TicketHistoryResponse `json:"history"`
	Version              int64                   `json:"version"`
	CreatedAt            time.Time               `json:"created_at"`
	UpdatedAt            time.Time               `json:"updated_at"`
}

// AllowedTransitionsResponse lists reachable statuses.
type AllowedTransitionsResponse struct {
	TicketID string                `json:"ticket_id"`
	Current  domain.TicketStatus   `json:"current"`
	Targets  []domain.TicketStatus `json:"targets"`
}
