package autoreply

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/mailgrove/mailgrove/internal/models"
	"github.com/mailgrove/mailgrove/internal/store"
)

var ErrNotConfigured = errors.New("auto-reply not configured")

// Service stores per-user auto-reply configuration. It never sends anything
// itself; the delivery orchestrator reads it and decides.
type Service struct {
	replies store.AutoReplyStore
}

func NewService(replies store.AutoReplyStore) *Service {
	return &Service{replies: replies}
}

// Get returns the owner's configuration, or ErrNotConfigured when the owner
// has never written one.
func (s *Service) Get(ctx context.Context, ownerID int64) (*models.AutoReply, error) {
	ar, err := s.replies.GetAutoReplyByOwner(ctx, ownerID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotConfigured
		}
		return nil, fmt.Errorf("getting auto-reply: %w", err)
	}
	return ar, nil
}

// Upsert writes the owner's configuration in place, defaulting an empty
// message. Idempotent keyed by owner.
func (s *Service) Upsert(ctx context.Context, ownerID int64, enabled bool, message string) (*models.AutoReply, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		message = models.DefaultAutoReplyMessage
	}

	ar, err := s.replies.UpsertAutoReply(ctx, ownerID, enabled, message)
	if err != nil {
		return nil, fmt.Errorf("upserting auto-reply: %w", err)
	}
	return ar, nil
}
