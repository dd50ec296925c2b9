package label

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/mailgrove/mailgrove/internal/models"
	"github.com/mailgrove/mailgrove/internal/store"
)

var (
	ErrLabelNotFound  = errors.New("label not found")
	ErrSystemLabel    = errors.New("system labels cannot be modified")
	ErrDuplicateLabel = errors.New("label name already in use")
	ErrEmptyLabelName = errors.New("label name must not be empty")
	ErrReservedName   = errors.New("label name is reserved")
)

// Service manages per-user named tags, including the lazily created
// system-managed Spam label.
type Service struct {
	labels store.LabelStore
}

func NewService(labels store.LabelStore) *Service {
	return &Service{labels: labels}
}

// EnsureSystemSpamLabel returns the owner's Spam system label, creating it if
// absent. The (owner, name) uniqueness constraint makes the creation race
// first-writer-wins: a concurrent loser re-reads the stored label.
func (s *Service) EnsureSystemSpamLabel(ctx context.Context, ownerID int64) (*models.Label, error) {
	existing, err := s.labels.GetLabelByOwnerAndName(ctx, ownerID, models.SpamLabelName)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("looking up spam label: %w", err)
	}

	created, err := s.labels.CreateLabel(ctx, ownerID, models.SpamLabelName, true)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			// Lost the race; another writer created it first.
			winner, readErr := s.labels.GetLabelByOwnerAndName(ctx, ownerID, models.SpamLabelName)
			if readErr != nil {
				return nil, fmt.Errorf("reading spam label after race: %w", readErr)
			}
			return winner, nil
		}
		return nil, fmt.Errorf("creating spam label: %w", err)
	}
	return created, nil
}

// AttachSpamLabel tags a message copy with the owner's system Spam label,
// creating the label first if this is the owner's first spam delivery.
func (s *Service) AttachSpamLabel(ctx context.Context, ownerID, messageID int64) error {
	lbl, err := s.EnsureSystemSpamLabel(ctx, ownerID)
	if err != nil {
		return err
	}
	if err := s.labels.AttachLabelToMessage(ctx, messageID, lbl.ID); err != nil {
		return fmt.Errorf("attaching spam label: %w", err)
	}
	return nil
}

// Create adds a user label. The Spam name is reserved for the system label.
func (s *Service) Create(ctx context.Context, ownerID int64, name string) (*models.Label, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrEmptyLabelName
	}
	if strings.EqualFold(name, models.SpamLabelName) {
		return nil, ErrReservedName
	}

	created, err := s.labels.CreateLabel(ctx, ownerID, name, false)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return nil, ErrDuplicateLabel
		}
		return nil, fmt.Errorf("creating label: %w", err)
	}
	return created, nil
}

// Rename changes a user label's name. System labels are immutable.
func (s *Service) Rename(ctx context.Context, ownerID int64, publicID uuid.UUID, name string) (*models.Label, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrEmptyLabelName
	}
	if strings.EqualFold(name, models.SpamLabelName) {
		return nil, ErrReservedName
	}

	lbl, err := s.getOwned(ctx, ownerID, publicID)
	if err != nil {
		return nil, err
	}
	if lbl.IsSystem {
		return nil, ErrSystemLabel
	}

	if err := s.labels.RenameLabel(ctx, lbl.ID, name); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return nil, ErrDuplicateLabel
		}
		return nil, fmt.Errorf("renaming label: %w", err)
	}
	lbl.Name = name
	return lbl, nil
}

// Delete removes a user label, detaching it from every message that
// references it first. Deleting a system label is a policy violation.
func (s *Service) Delete(ctx context.Context, ownerID int64, publicID uuid.UUID) error {
	lbl, err := s.getOwned(ctx, ownerID, publicID)
	if err != nil {
		return err
	}
	if lbl.IsSystem {
		return ErrSystemLabel
	}

	if err := s.labels.DetachLabelFromAllMessages(ctx, lbl.ID); err != nil {
		return fmt.Errorf("detaching label: %w", err)
	}
	if err := s.labels.DeleteLabel(ctx, lbl.ID); err != nil {
		return fmt.Errorf("deleting label: %w", err)
	}
	return nil
}

// List returns all labels belonging to the owner, system labels included.
func (s *Service) List(ctx context.Context, ownerID int64) ([]models.Label, error) {
	labels, err := s.labels.GetLabelsByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("listing labels: %w", err)
	}
	return labels, nil
}

// Attach tags a message with one of the owner's labels.
func (s *Service) Attach(ctx context.Context, ownerID int64, publicID uuid.UUID, messageID int64) error {
	lbl, err := s.getOwned(ctx, ownerID, publicID)
	if err != nil {
		return err
	}
	if err := s.labels.AttachLabelToMessage(ctx, messageID, lbl.ID); err != nil {
		return fmt.Errorf("attaching label: %w", err)
	}
	return nil
}

// Detach removes one of the owner's labels from a message.
func (s *Service) Detach(ctx context.Context, ownerID int64, publicID uuid.UUID, messageID int64) error {
	lbl, err := s.getOwned(ctx, ownerID, publicID)
	if err != nil {
		return err
	}
	if err := s.labels.DetachLabelFromMessage(ctx, messageID, lbl.ID); err != nil {
		return fmt.Errorf("detaching label: %w", err)
	}
	return nil
}

func (s *Service) getOwned(ctx context.Context, ownerID int64, publicID uuid.UUID) (*models.Label, error) {
	lbl, err := s.labels.GetLabelByPublicID(ctx, publicID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrLabelNotFound
		}
		return nil, fmt.Errorf("looking up label: %w", err)
	}
	if lbl.OwnerID != ownerID {
		// Hide other users' labels.
		return nil, ErrLabelNotFound
	}
	return lbl, nil
}
