package domain

import "time"

// TicketStatus enumerates lifecycle states for repair tickets.
type TicketStatus string

const (
	TicketStatusSubmitted         TicketStatus = "Submitted"
	TicketStatusPendingValidation TicketStatus = "Pending Validation"
	TicketStatusShipping          TicketStatus = "Shipping"
	TicketStatusInProgress        TicketStatus = "In Progress"
	TicketStatusWaitingForParts   TicketStatus = "Waiting for Parts"
	TicketStatusShippedBack       TicketStatus = "Shipped Back"
	TicketStatusReadyForPickup    TicketStatus = "Ready for Pickup"
	TicketStatusCompleted         TicketStatus = "Completed"
	TicketStatusClosed            TicketStatus = "Closed"
	TicketStatusCancelled         TicketStatus = "Cancelled"
)

// TicketStatuses lists every status in workflow order.
var TicketStatuses = []TicketStatus{
	TicketStatusSubmitted,
	TicketStatusPendingValidation,
	TicketStatusShipping,
	TicketStatusInProgress,
	TicketStatusWaitingForParts,
	TicketStatusShippedBack,
	TicketStatusReadyForPickup,
	TicketStatusCompleted,
	TicketStatusClosed,
	TicketStatusCancelled,
}

// Valid reports whether s is one of the enumerated statuses.
func (s TicketStatus) Valid() bool {
	for _, known := range TicketStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transitions leave s.
func (s TicketStatus) Terminal() bool {
	return s == TicketStatusClosed || s == TicketStatusCancelled
}

// WarrantyStatus is the warranty classification derived at creation.
type WarrantyStatus string

const (
	WarrantyUnder WarrantyStatus = "Under Warranty"
	WarrantyOut   WarrantyStatus = "Out of Warranty"
)

// ProductInfo describes the returned device.
type ProductInfo struct {
	SerialNumber string
	Model        string
	PurchaseDate time.Time
	DeviceType   string
}

// IssueInfo describes the reported fault.
type IssueInfo struct {
	Category    string
	Description string
	Attachments []AttachmentReference
}

// Ticket is the aggregate for repair requests.
type Ticket struct {
	ID                   string
	TicketNumber         string
	OwnerID              string
	Product              ProductInfo
	Issue                IssueInfo
	WarrantyStatus       WarrantyStatus
	AssignedRepairCenter string
	Status               TicketStatus
	Escalated            bool
	InternalComments     []InternalComment
	History              []TicketHistory
	Version              int64
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// Clone returns a snapshot that shares no slices with t.
func (t *Ticket) Clone() *Ticket {
	if t == nil {
		return nil
	}
	cp := *t
	cp.Issue.Attachments = append([]AttachmentReference(nil), t.Issue.Attachments...)
	cp.InternalComments = append([]InternalComment(nil), t.InternalComments...)
	cp.History = append([]TicketHistory(nil), t.History...)
	return &cp
}

// AttachmentReference points at a stored attachment payload.
type AttachmentReference struct {
	StorageKey string
	FileName   string
	MimeType   string
	SizeBytes  int64
	Checksum   string
}
