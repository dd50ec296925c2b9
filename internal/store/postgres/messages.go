package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/mailgrove/mailgrove/internal/models"
)

type MessageStore struct {
	db *sql.DB
}

func NewMessageStore(db *sql.DB) *MessageStore {
	return &MessageStore{db: db}
}

// CreateMessage inserts one mailbox copy and its attachment references in a
// single transaction.
func (s *MessageStore) CreateMessage(ctx context.Context, params models.MessageCreateParams) (*models.Message, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	msg := &models.Message{
		PublicID:     uuid.New(),
		OwnerID:      params.OwnerID,
		Owner:        params.Owner,
		Sender:       params.Sender,
		Recipients:   params.Recipients,
		CC:           params.CC,
		BCC:          params.BCC,
		Subject:      params.Subject,
		Body:         params.Body,
		Attachments:  params.Attachments,
		Folder:       params.Folder,
		IsSpam:       params.IsSpam,
		DraftSavedAt: params.DraftSavedAt,
	}

	err = tx.QueryRowContext(ctx,
		`INSERT INTO messages (public_id, owner_id, owner_email, sender, recipients, cc, bcc,
		                       subject, body, folder, is_spam, draft_saved_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		 RETURNING id, is_read, is_starred, sent_at`,
		msg.PublicID, msg.OwnerID, msg.Owner, msg.Sender,
		pq.Array(msg.Recipients), pq.Array(msg.CC), pq.Array(msg.BCC),
		msg.Subject, msg.Body, string(msg.Folder), msg.IsSpam, msg.DraftSavedAt,
	).Scan(&msg.ID, &msg.IsRead, &msg.IsStarred, &msg.SentAt)
	if err != nil {
		return nil, err
	}

	for i, a := range msg.Attachments {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO message_attachments (message_id, reference, file_name, size_bytes, position)
			 VALUES ($1, $2, $3, $4, $5)`,
			msg.ID, a.Reference, a.FileName, a.SizeBytes, i,
		); err != nil {
			return nil, fmt.Errorf("insert attachment: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return msg, nil
}

func (s *MessageStore) GetMessageByPublicID(ctx context.Context, publicID uuid.UUID) (*models.Message, error) {
	msg := &models.Message{}
	err := s.db.QueryRowContext(ctx,
		`SELECT id, public_id, owner_id, owner_email, sender, recipients, cc, bcc,
		        subject, body, folder, is_read, is_starred, is_spam, sent_at, draft_saved_at
		 FROM messages WHERE public_id = $1`,
		publicID,
	).Scan(&msg.ID, &msg.PublicID, &msg.OwnerID, &msg.Owner, &msg.Sender,
		pq.Array(&msg.Recipients), pq.Array(&msg.CC), pq.Array(&msg.BCC),
		&msg.Subject, &msg.Body, &msg.Folder, &msg.IsRead, &msg.IsStarred,
		&msg.IsSpam, &msg.SentAt, &msg.DraftSavedAt)
	if err != nil {
		return nil, err
	}
	if err := s.loadAttachments(ctx, msg); err != nil {
		return nil, err
	}
	return msg, nil
}

func (s *MessageStore) GetMessagesByOwnerFolder(ctx context.Context, ownerID int64, folder models.Folder, limit, offset int) ([]models.Message, error) {
	return s.queryMessages(ctx,
		`SELECT id, public_id, owner_id, owner_email, sender, recipients, cc, bcc,
		        subject, body, folder, is_read, is_starred, is_spam, sent_at, draft_saved_at
		 FROM messages WHERE owner_id = $1 AND folder = $2
		 ORDER BY sent_at DESC LIMIT $3 OFFSET $4`,
		ownerID, string(folder), limit, offset)
}

func (s *MessageStore) GetStarredMessagesByOwner(ctx context.Context, ownerID int64, limit, offset int) ([]models.Message, error) {
	return s.queryMessages(ctx,
		`SELECT id, public_id, owner_id, owner_email, sender, recipients, cc, bcc,
		        subject, body, folder, is_read, is_starred, is_spam, sent_at, draft_saved_at
		 FROM messages WHERE owner_id = $1 AND is_starred = TRUE
		 ORDER BY sent_at DESC LIMIT $2 OFFSET $3`,
		ownerID, limit, offset)
}

func (s *MessageStore) queryMessages(ctx context.Context, query string, args ...any) ([]models.Message, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []models.Message
	for rows.Next() {
		var m models.Message
		if err := rows.Scan(&m.ID, &m.PublicID, &m.OwnerID, &m.Owner, &m.Sender,
			pq.Array(&m.Recipients), pq.Array(&m.CC), pq.Array(&m.BCC),
			&m.Subject, &m.Body, &m.Folder, &m.IsRead, &m.IsStarred,
			&m.IsSpam, &m.SentAt, &m.DraftSavedAt); err != nil {
			return nil, err
		}
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range messages {
		if err := s.loadAttachments(ctx, &messages[i]); err != nil {
			return nil, err
		}
	}
	return messages, nil
}

func (s *MessageStore) loadAttachments(ctx context.Context, msg *models.Message) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT reference, file_name, size_bytes
		 FROM message_attachments WHERE message_id = $1
		 ORDER BY position`,
		msg.ID,
	)
	if err != nil {
		return err
	}
	defer rows.Close()

	msg.Attachments = nil
	for rows.Next() {
		var a models.Attachment
		if err := rows.Scan(&a.Reference, &a.FileName, &a.SizeBytes); err != nil {
			return err
		}
		msg.Attachments = append(msg.Attachments, a)
	}
	return rows.Err()
}

func (s *MessageStore) MarkMessageRead(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `UPDATE messages SET is_read = TRUE WHERE id = $1`, id)
	return err
}

func (s *MessageStore) SetMessageStarred(ctx context.Context, id int64, starred bool) error {
	_, err := s.db.ExecContext(ctx, `UPDATE messages SET is_starred = $2 WHERE id = $1`, id, starred)
	return err
}

func (s *MessageStore) MoveMessageToFolder(ctx context.Context, id int64, folder models.Folder) error {
	_, err := s.db.ExecContext(ctx, `UPDATE messages SET folder = $2 WHERE id = $1`, id, string(folder))
	return err
}

func (s *MessageStore) DeleteMessage(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM messages WHERE id = $1`, id)
	return err
}

func (s *MessageStore) CountUnreadByOwnerFolder(ctx context.Context, ownerID int64, folder models.Folder) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM messages WHERE owner_id = $1 AND folder = $2 AND is_read = FALSE`,
		ownerID, string(folder),
	).Scan(&count)
	return count, err
}
