package models

import (
	"time"

	"github.com/google/uuid"
)

// Folder is the single mailbox folder a message copy lives in. Starred is a
// flag on the message, not a folder, but is filterable as a pseudo-folder.
type Folder string

const (
	FolderInbox Folder = "inbox"
	FolderSent  Folder = "sent"
	FolderDraft Folder = "draft"
	FolderTrash Folder = "trash"
	FolderSpam  Folder = "spam"
)

// ValidFolder reports whether s names a real storage folder.
func ValidFolder(s string) bool {
	switch Folder(s) {
	case FolderInbox, FolderSent, FolderDraft, FolderTrash, FolderSpam:
		return true
	}
	return false
}

type User struct {
	ID        int64
	PublicID  uuid.UUID
	Email     string
	Verified  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Attachment is an opaque uploaded file referenced by a message copy.
type Attachment struct {
	Reference string `json:"reference"`
	FileName  string `json:"fileName"`
	SizeBytes int64  `json:"sizeBytes"`
}

// Message is one delivered-or-stored copy of a communication. Owner is the
// address whose mailbox holds this copy; Recipients/CC/BCC carry the full
// addressing metadata for display on every copy. Content is immutable after
// creation; only status flags and labels change.
type Message struct {
	ID           int64
	PublicID     uuid.UUID
	OwnerID      int64
	Owner        string
	Sender       string
	Recipients   []string
	CC           []string
	BCC          []string
	Subject      string
	Body         string
	Attachments  []Attachment
	Folder       Folder
	IsRead       bool
	IsStarred    bool
	IsSpam       bool
	SentAt       time.Time
	DraftSavedAt *time.Time
}

type MessageCreateParams struct {
	OwnerID      int64
	Owner        string
	Sender       string
	Recipients   []string
	CC           []string
	BCC          []string
	Subject      string
	Body         string
	Attachments  []Attachment
	Folder       Folder
	IsSpam       bool
	DraftSavedAt *time.Time
}

// Label is a user-scoped named tag. System labels (currently only "Spam")
// cannot be renamed or deleted and are created lazily, one per owner.
type Label struct {
	ID        int64
	PublicID  uuid.UUID
	OwnerID   int64
	Name      string
	IsSystem  bool
	CreatedAt time.Time
}

// SpamLabelName is the reserved name of the per-owner system label.
const SpamLabelName = "Spam"

// AutoReply is a per-user opt-in configuration, at most one per owner.
type AutoReply struct {
	OwnerID   int64
	Enabled   bool
	Message   string
	UpdatedAt time.Time
}

// DefaultAutoReplyMessage is used when a user enables auto-reply without
// providing their own text.
const DefaultAutoReplyMessage = "I am currently unavailable and will get back to you soon."

// NewEmailEvent is the payload published to a recipient's channel when a new
// message copy lands in their mailbox.
type NewEmailEvent struct {
	Sender  string    `json:"sender"`
	Subject string    `json:"subject"`
	SentAt  time.Time `json:"sentAt"`
	IsSpam  bool      `json:"isSpam"`
}
