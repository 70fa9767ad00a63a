package app

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"path"
	"strconv"
	"strings"
	"sync"
	"time"

	"showdown-grid/internal/domain"
)

// DefaultMaxUploadBytes caps question images.
const DefaultMaxUploadBytes = 20 << 20

var allowedImageTypes = map[string]string{
	"image/jpeg": "jpg",
	"image/png":  "png",
	"image/gif":  "gif",
	"image/webp": "webp",
}

// UploadService stores question images under the uploader's namespace.
type UploadService struct {
	blobs    BlobStore
	maxBytes int64
	now      func() time.Time

	mu  sync.Mutex
	rnd *rand.Rand
}

func NewUploadService(blobs BlobStore, maxBytes int64) *UploadService {
	return NewUploadServiceWithClock(blobs, maxBytes, time.Now)
}

// NewUploadServiceWithClock is used by tests for deterministic file names.
func NewUploadServiceWithClock(blobs BlobStore, maxBytes int64, now func() time.Time) *UploadService {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxUploadBytes
	}
	return &UploadService{
		blobs:    blobs,
		maxBytes: maxBytes,
		now:      now,
		rnd:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// MaxBytes is the size cap applied to uploads.
func (s *UploadService) MaxBytes() int64 {
	return s.maxBytes
}

// Upload checks the declared and sniffed type against the image allow-list and stores r.
func (s *UploadService) Upload(ctx context.Context, p domain.Principal, declaredType string, r io.Reader) (domain.Upload, error) {
	declared := strings.ToLower(strings.TrimSpace(strings.Split(declaredType, ";")[0]))
	if _, ok := allowedImageTypes[declared]; !ok {
		return domain.Upload{}, fmt.Errorf("%q: %w", declared, domain.ErrUnsupportedMedia)
	}

	data, err := io.ReadAll(io.LimitReader(r, s.maxBytes+1))
	if err != nil {
		return domain.Upload{}, fmt.Errorf("read upload: %w", err)
	}
	if int64(len(data)) > s.maxBytes {
		return domain.Upload{}, domain.ErrFileTooLarge
	}
	if len(data) == 0 {
		return domain.Upload{}, fmt.Errorf("empty file: %w", domain.ErrValidation)
	}

	sniffed := http.DetectContentType(data)
	ext, ok := allowedImageTypes[sniffed]
	if !ok {
		return domain.Upload{}, fmt.Errorf("content is %q: %w", sniffed, domain.ErrUnsupportedMedia)
	}

	name := fmt.Sprintf("%s/%d-%s.%s", p.UserID, s.now().UnixMilli(), s.suffix(), ext)
	url, err := s.blobs.Put(ctx, name, data, sniffed)
	if err != nil {
		return domain.Upload{}, fmt.Errorf("store upload: %w", err)
	}
	return domain.Upload{URL: url, FileName: name}, nil
}

// Delete removes a file the caller uploaded.
func (s *UploadService) Delete(ctx context.Context, p domain.Principal, fileName string) error {
	clean := path.Clean(fileName)
	if fileName == "" || clean != fileName || !strings.HasPrefix(clean, p.UserID+"/") {
		return fmt.Errorf("delete %q: %w", fileName, domain.ErrForbidden)
	}
	return s.blobs.Delete(ctx, clean)
}

func (s *UploadService) suffix() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return strconv.FormatInt(s.rnd.Int63n(36*36*36*36*36*36), 36)
}
