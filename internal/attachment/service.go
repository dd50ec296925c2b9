package attachment

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/mailgrove/mailgrove/internal/models"
)

var ErrEmptyAttachment = errors.New("attachment content must not be empty")

// Upload is one raw file submitted with a send or forward request.
type Upload struct {
	FileName string
	Content  []byte
}

// Service turns raw uploads into opaque {reference, size} records backed by a
// blob store.
type Service struct {
	blobs BlobStore
}

func NewService(blobs BlobStore) *Service {
	return &Service{blobs: blobs}
}

// Store writes the upload and returns its attachment record. The reference is
// random, so identical files never collide.
func (s *Service) Store(ctx context.Context, up Upload) (models.Attachment, error) {
	if len(up.Content) == 0 {
		return models.Attachment{}, ErrEmptyAttachment
	}

	name := filepath.Base(strings.TrimSpace(up.FileName))
	if name == "" || name == "." {
		name = "attachment"
	}

	key := fmt.Sprintf("attachments/%s/%s", uuid.New(), name)
	contentType := mime.TypeByExtension(filepath.Ext(name))
	if err := s.blobs.Put(ctx, key, contentType, up.Content); err != nil {
		return models.Attachment{}, fmt.Errorf("storing attachment: %w", err)
	}

	return models.Attachment{
		Reference: key,
		FileName:  name,
		SizeBytes: int64(len(up.Content)),
	}, nil
}

// StoreAll uploads every file, aborting on the first fault so a send never
// proceeds with a partially stored attachment set.
func (s *Service) StoreAll(ctx context.Context, ups []Upload) ([]models.Attachment, error) {
	attachments := make([]models.Attachment, 0, len(ups))
	for _, up := range ups {
		a, err := s.Store(ctx, up)
		if err != nil {
			return nil, err
		}
		attachments = append(attachments, a)
	}
	return attachments, nil
}

// Fetch returns the raw bytes for a stored reference.
func (s *Service) Fetch(ctx context.Context, reference string) ([]byte, error) {
	return s.blobs.Get(ctx, reference)
}
