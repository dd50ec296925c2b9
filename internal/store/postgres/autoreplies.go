package postgres

import (
	"context"
	"database/sql"

	"github.com/mailgrove/mailgrove/internal/models"
)

type AutoReplyStore struct {
	db *sql.DB
}

func NewAutoReplyStore(db *sql.DB) *AutoReplyStore {
	return &AutoReplyStore{db: db}
}

func (s *AutoReplyStore) GetAutoReplyByOwner(ctx context.Context, ownerID int64) (*models.AutoReply, error) {
	ar := &models.AutoReply{}
	err := s.db.QueryRowContext(ctx,
		`SELECT owner_id, enabled, message, updated_at
		 FROM auto_replies WHERE owner_id = $1`,
		ownerID,
	).Scan(&ar.OwnerID, &ar.Enabled, &ar.Message, &ar.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return ar, nil
}

func (s *AutoReplyStore) UpsertAutoReply(ctx context.Context, ownerID int64, enabled bool, message string) (*models.AutoReply, error) {
	ar := &models.AutoReply{OwnerID: ownerID, Enabled: enabled, Message: message}
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO auto_replies (owner_id, enabled, message)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (owner_id) DO UPDATE
		 SET enabled = EXCLUDED.enabled, message = EXCLUDED.message, updated_at = NOW()
		 RETURNING updated_at`,
		ownerID, enabled, message,
	).Scan(&ar.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return ar, nil
}
