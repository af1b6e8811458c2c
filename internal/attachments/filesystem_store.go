// Package attachments stores customer-supplied photos and hands back stable
// references. Content is never interpreted beyond size and type sniffing;
// only photo formats are accepted.
package attachments

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/repair-service/internal/domain"
	apperrors "github.com/spec-kit/repair-service/pkg/util/errorutil"
)

// ErrNotFound is returned by Open for unknown keys.
var ErrNotFound = errors.New("attachment not found")

// imageExtensions maps accepted sniffed types to the extension used in storage keys.
var imageExtensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
	"image/bmp":  ".bmp",
}

// Upload is a raw payload received at ticket creation.
type Upload struct {
	FileName    string
	ContentType string
	Content     io.Reader
}

// Store persists attachment payloads.
type Store interface {
	Put(ctx context.Context, upload Upload) (domain.AttachmentReference, error)
	Open(ctx context.Context, storageKey string) (io.ReadCloser, error)
	Delete(ctx context.Context, storageKey string) error
}

// FilesystemStore keeps payloads under basePath/YYYY/MM/<uuid><ext>.
type FilesystemStore struct {
	basePath string
	maxBytes int64
	now      func() time.Time
}

// NewFilesystemStore creates basePath if needed.
func NewFilesystemStore(basePath string, maxBytes int64) (*FilesystemStore, error) {
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create attachment dir: %w", err)
	}
	return &FilesystemStore{basePath: basePath, maxBytes: maxBytes, now: time.Now}, nil
}

// Put writes the payload and returns its reference.
func (s *FilesystemStore) Put(ctx context.Context, upload Upload) (domain.AttachmentReference, error) {
	if err := ctx.Err(); err != nil {
		return domain.AttachmentReference{}, err
	}
	if upload.Content == nil {
		return domain.AttachmentReference{}, apperrors.NewValidationError("attachment content required", nil)
	}

	reader := upload.Content
	if s.maxBytes > 0 {
		reader = io.LimitReader(upload.Content, s.maxBytes+1)
	}
	content, err := io.ReadAll(reader)
	if err != nil {
		return domain.AttachmentReference{}, fmt.Errorf("read attachment: %w", err)
	}
	if len(content) == 0 {
		return domain.AttachmentReference{}, apperrors.NewValidationError("attachment is empty",
			map[string]any{"file_name": upload.FileName})
	}
	if s.maxBytes > 0 && int64(len(content)) > s.maxBytes {
		return domain.AttachmentReference{}, apperrors.NewValidationError("attachment too large",
			map[string]any{"file_name": upload.FileName, "max_bytes": s.maxBytes})
	}

	hash := sha256.Sum256(content)
	fileName := sanitizeFileName(upload.FileName)
	// the declared Content-Type is ignored; only the bytes decide
	mimeType := http.DetectContentType(content)
	ext, ok := imageExtensions[mimeType]
	if !ok {
		return domain.AttachmentReference{}, apperrors.NewValidationError("attachment must be an image",
			map[string]any{"file_name": upload.FileName, "detected_type": mimeType})
	}

	now := s.now().UTC()
	key := path.Join(now.Format("2006"), now.Format("01"), uuid.NewString()+ext)
	fullPath := filepath.Join(s.basePath, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		return domain.AttachmentReference{}, fmt.Errorf("failed to create directory: %w", err)
	}
	if err := os.WriteFile(fullPath, content, 0o644); err != nil {
		return domain.AttachmentReference{}, fmt.Errorf("failed to write attachment: %w", err)
	}

	return domain.AttachmentReference{
		StorageKey: key,
		FileName:   fileName,
		MimeType:   mimeType,
		SizeBytes:  int64(len(content)),
		Checksum:   hex.EncodeToString(hash[:]),
	}, nil
}

// Open returns the payload for a key produced by Put.
func (s *FilesystemStore) Open(ctx context.Context, storageKey string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	fullPath, ok := s.resolve(storageKey)
	if !ok {
		return nil, ErrNotFound
	}
	f, err := os.Open(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return f, nil
}

// Delete removes a stored payload. Unknown keys report ErrNotFound.
func (s *FilesystemStore) Delete(ctx context.Context, storageKey string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	fullPath, ok := s.resolve(storageKey)
	if !ok {
		return ErrNotFound
	}
	if err := os.Remove(fullPath); err != nil {
		if os.IsNotExist(err) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to delete attachment: %w", err)
	}
	return nil
}

// resolve maps a key to a path under basePath, refusing anything that is not
// already in canonical form.
func (s *FilesystemStore) resolve(storageKey string) (string, bool) {
	clean := path.Clean("/" + storageKey)
	if clean == "/" || clean != "/"+storageKey {
		return "", false
	}
	return filepath.Join(s.basePath, filepath.FromSlash(strings.TrimPrefix(clean, "/"))), true
}

func sanitizeFileName(name string) string {
	name = filepath.Base(strings.ReplaceAll(strings.TrimSpace(name), "\\", "/"))
	if name == "." || name == "/" || name == "" {
		return "attachment"
	}
	return name
}

// ReadAllAndClose is a helper for callers that need the whole payload.
func ReadAllAndClose(rc io.ReadCloser) ([]byte, error) {
	defer rc.Close()
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, rc); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
