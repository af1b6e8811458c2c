package attachments

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/spec-kit/repair-service/pkg/util/errorutil"
)

const (
	jpegMagic = "\xff\xd8\xff\xe0"
	pngMagic  = "\x89PNG\r\n\x1a\n"
)

func newStore(t *testing.T, maxBytes int64) *FilesystemStore {
	t.Helper()
	store, err := NewFilesystemStore(t.TempDir(), maxBytes)
	require.NoError(t, err)
	store.now = func() time.Time { return time.Date(2026, time.October, 15, 0, 0, 0, 0, time.UTC) }
	return store
}

func TestPutAndOpen(t *testing.T) {
	ctx := context.Background()
	store := newStore(t, 1024)

	payload := jpegMagic + "photo"
	ref, err := store.Put(ctx, Upload{FileName: "../../cracked screen.JPG", Content: strings.NewReader(payload)})
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(ref.StorageKey, "2026/10/"))
	assert.True(t, strings.HasSuffix(ref.StorageKey, ".jpg"))
	assert.Equal(t, "cracked screen.JPG", ref.FileName)
	assert.Equal(t, int64(len(payload)), ref.SizeBytes)
	assert.Len(t, ref.Checksum, 64)
	assert.Equal(t, "image/jpeg", ref.MimeType)

	rc, err := store.Open(ctx, ref.StorageKey)
	require.NoError(t, err)
	body, err := ReadAllAndClose(rc)
	require.NoError(t, err)
	assert.Equal(t, payload, string(body))
}

func TestPutRejectsBadPayloads(t *testing.T) {
	ctx := context.Background()
	store := newStore(t, 4)

	_, err := store.Put(ctx, Upload{FileName: "big.png", Content: strings.NewReader(pngMagic)})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))

	_, err = store.Put(ctx, Upload{FileName: "empty.png", Content: strings.NewReader("")})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))

	_, err = store.Put(ctx, Upload{FileName: "nil.png"})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))
}

func TestPutRejectsNonImageContent(t *testing.T) {
	store := newStore(t, 0)
	testCases := []struct {
		name   string
		upload Upload
	}{
		{"declared html", Upload{FileName: "x.html", ContentType: "text/html", Content: strings.NewReader("<script>alert(1)</script>")}},
		{"html declared as png", Upload{FileName: "x.png", ContentType: "image/png", Content: strings.NewReader("<html><script>alert(1)</script>")}},
		{"plain text", Upload{FileName: "notes.jpg", Content: strings.NewReader("hello photo")}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := store.Put(context.Background(), tc.upload)
			assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))
		})
	}
}

func TestPutUsesSniffedTypeForKey(t *testing.T) {
	store := newStore(t, 0)
	ref, err := store.Put(context.Background(), Upload{FileName: "photo.html", ContentType: "text/html", Content: strings.NewReader(pngMagic + "pixels")})
	require.NoError(t, err)
	assert.Equal(t, "image/png", ref.MimeType)
	assert.True(t, strings.HasSuffix(ref.StorageKey, ".png"))
}

func TestOpenRejectsTraversal(t *testing.T) {
	store := newStore(t, 0)
	for _, key := range []string{"", "../secret", "2026/../../etc/passwd", "2026/10/missing.jpg"} {
		_, err := store.Open(context.Background(), key)
		assert.ErrorIs(t, err, ErrNotFound, key)
	}
}

func TestDeleteRemovesPayload(t *testing.T) {
	ctx := context.Background()
	store := newStore(t, 0)
	ref, err := store.Put(ctx, Upload{FileName: "a.png", Content: strings.NewReader(pngMagic)})
	require.NoError(t, err)

	require.NoError(t, store.Delete(ctx, ref.StorageKey))
	_, err = store.Open(ctx, ref.StorageKey)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, store.Delete(ctx, ref.StorageKey), ErrNotFound)
	assert.ErrorIs(t, store.Delete(ctx, "../outside.png"), ErrNotFound)
}
