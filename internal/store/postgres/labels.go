package postgres

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/mailgrove/mailgrove/internal/models"
)

type LabelStore struct {
	db *sql.DB
}

func NewLabelStore(db *sql.DB) *LabelStore {
	return &LabelStore{db: db}
}

func (s *LabelStore) CreateLabel(ctx context.Context, ownerID int64, name string, isSystem bool) (*models.Label, error) {
	label := &models.Label{
		PublicID: uuid.New(),
		OwnerID:  ownerID,
		Name:     name,
		IsSystem: isSystem,
	}

	err := s.db.QueryRowContext(ctx,
		`INSERT INTO labels (public_id, owner_id, name, is_system)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, created_at`,
		label.PublicID, label.OwnerID, label.Name, label.IsSystem,
	).Scan(&label.ID, &label.CreatedAt)
	if err != nil {
		return nil, err
	}

	return label, nil
}

func (s *LabelStore) GetLabelByID(ctx context.Context, id int64) (*models.Label, error) {
	return s.scanLabel(s.db.QueryRowContext(ctx,
		`SELECT id, public_id, owner_id, name, is_system, created_at
		 FROM labels WHERE id = $1`, id))
}

func (s *LabelStore) GetLabelByPublicID(ctx context.Context, publicID uuid.UUID) (*models.Label, error) {
	return s.scanLabel(s.db.QueryRowContext(ctx,
		`SELECT id, public_id, owner_id, name, is_system, created_at
		 FROM labels WHERE public_id = $1`, publicID))
}

func (s *LabelStore) GetLabelByOwnerAndName(ctx context.Context, ownerID int64, name string) (*models.Label, error) {
	return s.scanLabel(s.db.QueryRowContext(ctx,
		`SELECT id, public_id, owner_id, name, is_system, created_at
		 FROM labels WHERE owner_id = $1 AND name = $2`, ownerID, name))
}

func (s *LabelStore) scanLabel(row *sql.Row) (*models.Label, error) {
	label := &models.Label{}
	err := row.Scan(&label.ID, &label.PublicID, &label.OwnerID, &label.Name, &label.IsSystem, &label.CreatedAt)
	if err != nil {
		return nil, err
	}
	return label, nil
}

func (s *LabelStore) GetLabelsByOwner(ctx context.Context, ownerID int64) ([]models.Label, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, public_id, owner_id, name, is_system, created_at
		 FROM labels WHERE owner_id = $1 ORDER BY name`,
		ownerID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanLabels(rows)
}

func (s *LabelStore) GetLabelsForMessage(ctx context.Context, messageID int64) ([]models.Label, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT l.id, l.public_id, l.owner_id, l.name, l.is_system, l.created_at
		 FROM labels l
		 JOIN message_labels ml ON ml.label_id = l.id
		 WHERE ml.message_id = $1
		 ORDER BY l.name`,
		messageID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanLabels(rows)
}

func scanLabels(rows *sql.Rows) ([]models.Label, error) {
	var labels []models.Label
	for rows.Next() {
		var l models.Label
		if err := rows.Scan(&l.ID, &l.PublicID, &l.OwnerID, &l.Name, &l.IsSystem, &l.CreatedAt); err != nil {
			return nil, err
		}
		labels = append(labels, l)
	}
	return labels, rows.Err()
}

func (s *LabelStore) RenameLabel(ctx context.Context, id int64, name string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE labels SET name = $2 WHERE id = $1`, id, name)
	return err
}

func (s *LabelStore) DeleteLabel(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM labels WHERE id = $1`, id)
	return err
}

func (s *LabelStore) AttachLabelToMessage(ctx context.Context, messageID, labelID int64) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO message_labels (message_id, label_id)
		 VALUES ($1, $2)
		 ON CONFLICT (message_id, label_id) DO NOTHING`,
		messageID, labelID,
	)
	return err
}

func (s *LabelStore) DetachLabelFromMessage(ctx context.Context, messageID, labelID int64) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM message_labels WHERE message_id = $1 AND label_id = $2`,
		messageID, labelID,
	)
	return err
}

func (s *LabelStore) DetachLabelFromAllMessages(ctx context.Context, labelID int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM message_labels WHERE label_id = $1`, labelID)
	return err
}
