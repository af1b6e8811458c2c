package repository

import (
	"time"

	"github.com/spec-kit/repair-service/internal/domain"
)

// JSONB shapes for the append-only columns.

type attachmentRecord struct {
	StorageKey string `json:"storage_key"`
	FileName   string `json:"file_name"`
	MimeType   string `json:"mime_type"`
	SizeBytes  int64  `json:"size_bytes"`
	Checksum   string `json:"checksum,omitempty"`
}

type commentRecord struct {
	AuthorID   string    `json:"author_id"`
	AuthorRole string    `json:"author_role"`
	Text       string    `json:"text"`
	Type       string    `json:"type"`
	CreatedAt  time.Time `json:"created_at"`
}

type historyRecord struct {
	Action    string    `json:"action"`
	By        string    `json:"by"`
	Role      string    `json:"role,omitempty"`
	From      string    `json:"from,omitempty"`
	To        string    `json:"to,omitempty"`
	Note      string    `json:"note,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func toAttachmentRecords(in []domain.AttachmentReference) []attachmentRecord {
	out := make([]attachmentRecord, 0, len(in))
	for _, a := range in {
		out = append(out, attachmentRecord{
			StorageKey: a.StorageKey,
			FileName:   a.FileName,
			MimeType:   a.MimeType,
			SizeBytes:  a.SizeBytes,
			Checksum:   a.Checksum,
		})
	}
	return out
}

func fromAttachmentRecords(in []attachmentRecord) []domain.AttachmentReference {
	out := make([]domain.AttachmentReference, 0, len(in))
	for _, a := range in {
		out = append(out, domain.AttachmentReference{
			StorageKey: a.StorageKey,
			FileName:   a.FileName,
			MimeType:   a.MimeType,
			SizeBytes:  a.SizeBytes,
			Checksum:   a.Checksum,
		})
	}
	return out
}

func toCommentRecords(in []domain.InternalComment) []commentRecord {
	out := make([]commentRecord, 0, len(in))
	for _, c := range in {
		out = append(out, commentRecord{
			AuthorID:   c.AuthorID,
			AuthorRole: string(c.AuthorRole),
			Text:       c.Text,
			Type:       string(c.Type),
			CreatedAt:  c.CreatedAt,
		})
	}
	return out
}

func fromCommentRecords(in []commentRecord) []domain.InternalComment {
	out := make([]domain.InternalComment, 0, len(in))
	for _, c := range in {
		out = append(out, domain.InternalComment{
			AuthorID:   c.AuthorID,
			AuthorRole: domain.Role(c.AuthorRole),
			Text:       c.Text,
			Type:       domain.CommentType(c.Type),
			CreatedAt:  c.CreatedAt,
		})
	}
	return out
}

func toHistoryRecords(in []domain.TicketHistory) []historyRecord {
	out := make([]historyRecord, 0, len(in))
	for _, h := range in {
		out = append(out, historyRecord{
			Action:    string(h.Action),
			By:        h.ChangedBy,
			Role:      string(h.ActorRole),
			From:      string(h.FromStatus),
			To:        string(h.ToStatus),
			Note:      h.Note,
			CreatedAt: h.CreatedAt,
		})
	}
	return out
}

func fromHistoryRecords(in []historyRecord) []domain.TicketHistory {
	out := make([]domain.TicketHistory, 0, len(in))
	for _, h := range in {
		out = append(out, domain.TicketHistory{
			Action:     domain.HistoryAction(h.Action),
			ChangedBy:  h.By,
			ActorRole:  domain.Role(h.Role),
			FromStatus: domain.TicketStatus(h.From),
			ToStatus:   domain.TicketStatus(h.To),
			Note:       h.Note,
			CreatedAt:  h.CreatedAt,
		})
	}
	return out
}
