package mailbox

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mailgrove/mailgrove/internal/models"
	"github.com/mailgrove/mailgrove/internal/store"
)

var (
	ErrMessageNotFound = errors.New("message not found")
	ErrUnknownFolder   = errors.New("unknown folder")
)

// StarredFolder is the pseudo-folder name accepted by List alongside the real
// storage folders.
const StarredFolder = "starred"

// Service provides the simple per-mailbox record operations: folder listing,
// status flags, trash and drafts. Message content is immutable here; only
// flags and folder placement change.
type Service struct {
	messages store.MessageStore
}

func NewService(messages store.MessageStore) *Service {
	return &Service{messages: messages}
}

// List returns the owner's messages in a folder, newest first. "starred" is
// accepted as a pseudo-folder backed by the starred flag.
func (s *Service) List(ctx context.Context, ownerID int64, folder string, limit, offset int) ([]models.Message, error) {
	folder = strings.ToLower(strings.TrimSpace(folder))
	if folder == StarredFolder {
		msgs, err := s.messages.GetStarredMessagesByOwner(ctx, ownerID, limit, offset)
		if err != nil {
			return nil, fmt.Errorf("listing starred messages: %w", err)
		}
		return msgs, nil
	}

	if !models.ValidFolder(folder) {
		return nil, ErrUnknownFolder
	}
	msgs, err := s.messages.GetMessagesByOwnerFolder(ctx, ownerID, models.Folder(folder), limit, offset)
	if err != nil {
		return nil, fmt.Errorf("listing messages: %w", err)
	}
	return msgs, nil
}

// Get returns one of the owner's message copies by public ID.
func (s *Service) Get(ctx context.Context, ownerID int64, publicID uuid.UUID) (*models.Message, error) {
	return s.getOwned(ctx, ownerID, publicID)
}

// MarkRead flags a message copy as read.
func (s *Service) MarkRead(ctx context.Context, ownerID int64, publicID uuid.UUID) error {
	msg, err := s.getOwned(ctx, ownerID, publicID)
	if err != nil {
		return err
	}
	if err := s.messages.MarkMessageRead(ctx, msg.ID); err != nil {
		return fmt.Errorf("marking message read: %w", err)
	}
	return nil
}

// ToggleStar flips the starred flag and returns the new value.
func (s *Service) ToggleStar(ctx context.Context, ownerID int64, publicID uuid.UUID) (bool, error) {
	msg, err := s.getOwned(ctx, ownerID, publicID)
	if err != nil {
		return false, err
	}
	starred := !msg.IsStarred
	if err := s.messages.SetMessageStarred(ctx, msg.ID, starred); err != nil {
		return false, fmt.Errorf("setting starred flag: %w", err)
	}
	return starred, nil
}

// Trash moves a message copy to the trash folder.
func (s *Service) Trash(ctx context.Context, ownerID int64, publicID uuid.UUID) error {
	msg, err := s.getOwned(ctx, ownerID, publicID)
	if err != nil {
		return err
	}
	if err := s.messages.MoveMessageToFolder(ctx, msg.ID, models.FolderTrash); err != nil {
		return fmt.Errorf("moving message to trash: %w", err)
	}
	return nil
}

// Delete permanently removes a message copy.
func (s *Service) Delete(ctx context.Context, ownerID int64, publicID uuid.UUID) error {
	msg, err := s.getOwned(ctx, ownerID, publicID)
	if err != nil {
		return err
	}
	if err := s.messages.DeleteMessage(ctx, msg.ID); err != nil {
		return fmt.Errorf("deleting message: %w", err)
	}
	return nil
}

// SaveDraft stores an unsent message in the owner's draft folder. Drafts do
// not fan out and are never classified.
func (s *Service) SaveDraft(ctx context.Context, owner *models.User, recipients, cc, bcc []string, subject, body string) (*models.Message, error) {
	now := time.Now()
	draft, err := s.messages.CreateMessage(ctx, models.MessageCreateParams{
		OwnerID:      owner.ID,
		Owner:        owner.Email,
		Sender:       owner.Email,
		Recipients:   recipients,
		CC:           cc,
		BCC:          bcc,
		Subject:      subject,
		Body:         body,
		Folder:       models.FolderDraft,
		DraftSavedAt: &now,
	})
	if err != nil {
		return nil, fmt.Errorf("saving draft: %w", err)
	}
	return draft, nil
}

// CountUnread returns the number of unread inbox messages for an owner.
func (s *Service) CountUnread(ctx context.Context, ownerID int64) (int, error) {
	count, err := s.messages.CountUnreadByOwnerFolder(ctx, ownerID, models.FolderInbox)
	if err != nil {
		return 0, fmt.Errorf("counting unread messages: %w", err)
	}
	return count, nil
}

func (s *Service) getOwned(ctx context.Context, ownerID int64, publicID uuid.UUID) (*models.Message, error) {
	msg, err := s.messages.GetMessageByPublicID(ctx, publicID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMessageNotFound
		}
		return nil, fmt.Errorf("looking up message: %w", err)
	}
	if msg.OwnerID != ownerID {
		// Hide other users' copies.
		return nil, ErrMessageNotFound
	}
	return msg, nil
}
