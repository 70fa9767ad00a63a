package app_test

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"showdown-grid/internal/app"
	"showdown-grid/internal/domain"
)

// pngHeader is enough for content sniffing.
var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

type blobRecorder struct {
	mu      sync.Mutex
	files   map[string][]byte
	deleted []string
}

func (b *blobRecorder) Put(_ context.Context, name string, data []byte, _ string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.files == nil {
		b.files = make(map[string][]byte)
	}
	b.files[name] = data
	return "/uploads/" + name, nil
}

func (b *blobRecorder) Delete(_ context.Context, name string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.deleted = append(b.deleted, name)
	return nil
}

func TestUploadStoresUnderUserPrefix(t *testing.T) {
	blobs := &blobRecorder{}
	now := time.UnixMilli(1732302000123)
	svc := app.NewUploadServiceWithClock(blobs, 1024, func() time.Time { return now })
	user := domain.Principal{UserID: "u1"}

	up, err := svc.Upload(context.Background(), user, "image/png", bytes.NewReader(pngHeader))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(up.FileName, "u1/1732302000123-"), up.FileName)
	assert.True(t, strings.HasSuffix(up.FileName, ".png"), up.FileName)
	assert.Equal(t, "/uploads/"+up.FileName, up.URL)
	assert.Contains(t, blobs.files, up.FileName)
}

func TestUploadRejectsBadInput(t *testing.T) {
	blobs := &blobRecorder{}
	svc := app.NewUploadService(blobs, 32)
	user := domain.Principal{UserID: "u1"}
	ctx := context.Background()

	_, err := svc.Upload(ctx, user, "application/pdf", bytes.NewReader(pngHeader))
	assert.ErrorIs(t, err, domain.ErrUnsupportedMedia)

	_, err = svc.Upload(ctx, user, "image/png", strings.NewReader("plain text pretending to be png"))
	assert.ErrorIs(t, err, domain.ErrUnsupportedMedia)

	big := append(append([]byte{}, pngHeader...), bytes.Repeat([]byte{0}, 64)...)
	_, err = svc.Upload(ctx, user, "image/png", bytes.NewReader(big))
	assert.ErrorIs(t, err, domain.ErrFileTooLarge)

	assert.Empty(t, blobs.files)
}

func TestDeleteOnlyOwnFiles(t *testing.T) {
	blobs := &blobRecorder{}
	svc := app.NewUploadService(blobs, 0)
	user := domain.Principal{UserID: "u1"}
	ctx := context.Background()

	assert.Equal(t, int64(app.DefaultMaxUploadBytes), svc.MaxBytes())
	require.NoError(t, svc.Delete(ctx, user, "u1/1-abc.png"))
	assert.ErrorIs(t, svc.Delete(ctx, user, "u2/1-abc.png"), domain.ErrForbidden)
	assert.ErrorIs(t, svc.Delete(ctx, user, "u1/../u2/1-abc.png"), domain.ErrForbidden)
	assert.ErrorIs(t, svc.Delete(ctx, user, ""), domain.ErrForbidden)
	assert.Equal(t, []string{"u1/1-abc.png"}, blobs.deleted)
}
