package store

import (
	"context"

	"github.com/google/uuid"
	"github.com/mailgrove/mailgrove/internal/models"
)

type UserStore interface {
	CreateUser(ctx context.Context, email string, verified bool) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUsersByEmails(ctx context.Context, emails []string) ([]models.User, error)
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
}

type MessageStore interface {
	CreateMessage(ctx context.Context, params models.MessageCreateParams) (*models.Message, error)
	GetMessageByPublicID(ctx context.Context, publicID uuid.UUID) (*models.Message, error)
	GetMessagesByOwnerFolder(ctx context.Context, ownerID int64, folder models.Folder, limit, offset int) ([]models.Message, error)
	GetStarredMessagesByOwner(ctx context.Context, ownerID int64, limit, offset int) ([]models.Message, error)
	MarkMessageRead(ctx context.Context, id int64) error
	SetMessageStarred(ctx context.Context, id int64, starred bool) error
	MoveMessageToFolder(ctx context.Context, id int64, folder models.Folder) error
	DeleteMessage(ctx context.Context, id int64) error
	CountUnreadByOwnerFolder(ctx context.Context, ownerID int64, folder models.Folder) (int, error)
}

type LabelStore interface {
	CreateLabel(ctx context.Context, ownerID int64, name string, isSystem bool) (*models.Label, error)
	GetLabelByID(ctx context.Context, id int64) (*models.Label, error)
	GetLabelByPublicID(ctx context.Context, publicID uuid.UUID) (*models.Label, error)
	GetLabelByOwnerAndName(ctx context.Context, ownerID int64, name string) (*models.Label, error)
	GetLabelsByOwner(ctx context.Context, ownerID int64) ([]models.Label, error)
	GetLabelsForMessage(ctx context.Context, messageID int64) ([]models.Label, error)
	RenameLabel(ctx context.Context, id int64, name string) error
	DeleteLabel(ctx context.Context, id int64) error
	AttachLabelToMessage(ctx context.Context, messageID, labelID int64) error
	DetachLabelFromMessage(ctx context.Context, messageID, labelID int64) error
	DetachLabelFromAllMessages(ctx context.Context, labelID int64) error
}

type AutoReplyStore interface {
	GetAutoReplyByOwner(ctx context.Context, ownerID int64) (*models.AutoReply, error)
	UpsertAutoReply(ctx context.Context, ownerID int64, enabled bool, message string) (*models.AutoReply, error)
}
