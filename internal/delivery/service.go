package delivery

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"slices"
	"strings"

	"github.com/google/uuid"
	"github.com/mailgrove/mailgrove/internal/attachment"
	"github.com/mailgrove/mailgrove/internal/autoreply"
	"github.com/mailgrove/mailgrove/internal/directory"
	"github.com/mailgrove/mailgrove/internal/models"
	"github.com/mailgrove/mailgrove/internal/spam"
	"github.com/mailgrove/mailgrove/internal/store"
)

// Sentinel errors returned by Service methods.
var (
	ErrMessageNotFound  = errors.New("message not found")
	ErrSenderUnverified = errors.New("sender is not a verified user")
)

// Subject prefixes and the quoting separator for reply and forward bodies.
const (
	replyPrefix     = "Re: "
	forwardPrefix   = "Fwd: "
	autoReplyPrefix = "Auto Reply: "

	quotedSeparator = "\n\n---------- Original message ----------\n"
)

// ValidationError reports which address list failed validation. Nothing is
// persisted when one is returned.
type ValidationError struct {
	List   string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.List, e.Reason)
}

// Notifier publishes a "new message" event to a recipient's channel.
// Best-effort: delivery logs failures and moves on.
type Notifier interface {
	PublishNewEmail(ctx context.Context, channel string, event models.NewEmailEvent) error
}

// NoopNotifier is a Notifier that does nothing.
type NoopNotifier struct{}

func (n *NoopNotifier) PublishNewEmail(_ context.Context, _ string, _ models.NewEmailEvent) error {
	return nil
}

// Directory resolves verified identities. See the directory package.
type Directory interface {
	FindVerifiedByEmail(ctx context.Context, email string) (*models.User, error)
	FindVerifiedByEmails(ctx context.Context, emails []string) (map[string]*models.User, error)
}

// Classifier produces the shared spam verdict for one logical message.
type Classifier interface {
	Classify(ctx context.Context, in spam.Input) bool
}

// SpamLabeler tags a spam copy with its owner's system Spam label.
type SpamLabeler interface {
	AttachSpamLabel(ctx context.Context, ownerID, messageID int64) error
}

// AutoReplyLookup reads per-user auto-reply configuration.
type AutoReplyLookup interface {
	Get(ctx context.Context, ownerID int64) (*models.AutoReply, error)
}

// Uploader stores raw attachment uploads, returning opaque references.
type Uploader interface {
	StoreAll(ctx context.Context, ups []attachment.Upload) ([]models.Attachment, error)
}

// Service is the fan-out orchestrator. One logical send produces one
// sent-folder copy for the sender plus one inbox-or-spam copy per
// recipient/cc/bcc address, each notified independently, with a single-depth
// auto-reply pass for non-spam original sends.
type Service struct {
	messages   store.MessageStore
	dir        Directory
	classifier Classifier
	labels     SpamLabeler
	replies    AutoReplyLookup
	uploads    Uploader
	notifier   Notifier
}

func NewService(
	messages store.MessageStore,
	dir Directory,
	classifier Classifier,
	labels SpamLabeler,
	replies AutoReplyLookup,
	uploads Uploader,
	notifier Notifier,
) *Service {
	return &Service{
		messages:   messages,
		dir:        dir,
		classifier: classifier,
		labels:     labels,
		replies:    replies,
		uploads:    uploads,
		notifier:   notifier,
	}
}

type SendParams struct {
	Sender      string
	Recipients  []string
	CC          []string
	BCC         []string
	Subject     string
	Body        string
	Attachments []attachment.Upload
}

// Send validates every address, classifies the logical message once, persists
// the sender's sent-copy and one copy per recipient/cc/bcc address, notifies
// each, and runs the auto-reply pass for To-recipients of a clean send.
// Returns the sent-copy.
func (s *Service) Send(ctx context.Context, params SendParams) (*models.Message, error) {
	sender, err := s.dir.FindVerifiedByEmail(ctx, params.Sender)
	if err != nil {
		if errors.Is(err, directory.ErrUserNotFound) {
			return nil, ErrSenderUnverified
		}
		return nil, fmt.Errorf("resolving sender: %w", err)
	}

	recipients := cleanAddresses(params.Recipients)
	cc := cleanAddresses(params.CC)
	bcc := cleanAddresses(params.BCC)
	if len(recipients) == 0 {
		return nil, &ValidationError{List: "recipients", Reason: "at least one valid recipient is required"}
	}

	resolved, err := s.resolveAll(ctx, recipients, cc, bcc)
	if err != nil {
		return nil, err
	}

	attachments, err := s.uploads.StoreAll(ctx, params.Attachments)
	if err != nil {
		return nil, fmt.Errorf("storing attachments: %w", err)
	}

	verdict := s.classifier.Classify(ctx, spam.Input{
		Sender:      sender.Email,
		Recipients:  recipients,
		Subject:     params.Subject,
		Body:        params.Body,
		Attachments: attachments,
	})

	return s.fanOut(ctx, fanOutSpec{
		sender:      sender,
		recipients:  recipients,
		cc:          cc,
		bcc:         bcc,
		subject:     params.Subject,
		body:        params.Body,
		attachments: attachments,
		verdict:     verdict,
		resolved:    resolved,
		autoReply:   true,
	})
}

// Reply sends the caller's text back to the original message's sender,
// quoting the original body. The recipient list is forced to exactly that one
// address; no auto-reply is triggered.
func (s *Service) Reply(ctx context.Context, originalID uuid.UUID, senderEmail, body string, uploads []attachment.Upload) (*models.Message, error) {
	sender, original, err := s.loadOriginal(ctx, originalID, senderEmail)
	if err != nil {
		return nil, err
	}

	originalSender, err := s.dir.FindVerifiedByEmail(ctx, original.Sender)
	if err != nil {
		if errors.Is(err, directory.ErrUserNotFound) {
			return nil, &ValidationError{List: "recipients", Reason: "original sender is no longer a verified user"}
		}
		return nil, fmt.Errorf("resolving original sender: %w", err)
	}

	attachments, err := s.uploads.StoreAll(ctx, uploads)
	if err != nil {
		return nil, fmt.Errorf("storing attachments: %w", err)
	}

	recipients := []string{originalSender.Email}
	subject := replyPrefix + original.Subject
	quoted := body + quotedSeparator + original.Body

	verdict := s.classifier.Classify(ctx, spam.Input{
		Sender:      sender.Email,
		Recipients:  recipients,
		Subject:     subject,
		Body:        quoted,
		Attachments: attachments,
	})

	return s.fanOut(ctx, fanOutSpec{
		sender:      sender,
		recipients:  recipients,
		subject:     subject,
		body:        quoted,
		attachments: attachments,
		verdict:     verdict,
		resolved:    map[string]*models.User{originalSender.Email: originalSender},
	})
}

// Forward re-sends an existing message to new recipients, carrying the
// original attachments first followed by any newly supplied ones. The shared
// verdict covers every forward recipient; no auto-reply is triggered.
func (s *Service) Forward(ctx context.Context, originalID uuid.UUID, senderEmail string, recipients []string, body string, uploads []attachment.Upload) (*models.Message, error) {
	sender, original, err := s.loadOriginal(ctx, originalID, senderEmail)
	if err != nil {
		return nil, err
	}

	recipients = cleanAddresses(recipients)
	if len(recipients) == 0 {
		return nil, &ValidationError{List: "recipients", Reason: "at least one valid recipient is required"}
	}

	resolved, err := s.resolveAll(ctx, recipients, nil, nil)
	if err != nil {
		return nil, err
	}

	added, err := s.uploads.StoreAll(ctx, uploads)
	if err != nil {
		return nil, fmt.Errorf("storing attachments: %w", err)
	}
	attachments := append(slices.Clone(original.Attachments), added...)

	subject := forwardPrefix + original.Subject
	quoted := body + quotedSeparator + original.Body

	verdict := s.classifier.Classify(ctx, spam.Input{
		Sender:      sender.Email,
		Recipients:  recipients,
		Subject:     subject,
		Body:        quoted,
		Attachments: attachments,
	})

	return s.fanOut(ctx, fanOutSpec{
		sender:      sender,
		recipients:  recipients,
		subject:     subject,
		body:        quoted,
		attachments: attachments,
		verdict:     verdict,
		resolved:    resolved,
	})
}

// fanOutSpec describes one logical message after validation: the shared
// verdict is already computed and every target address already resolved.
type fanOutSpec struct {
	sender      *models.User
	recipients  []string
	cc          []string
	bcc         []string
	subject     string
	body        string
	attachments []models.Attachment
	verdict     bool
	resolved    map[string]*models.User
	autoReply   bool
}

// fanOut persists the sender's sent-copy, then one inbox-or-spam copy per
// address across recipients, cc and bcc. The sent-copy is fatal on failure;
// an individual copy or notification failure is logged and skipped so the
// remaining addresses still get theirs. An address present in two lists gets
// two copies: observed behavior of the system, kept deliberately.
func (s *Service) fanOut(ctx context.Context, spec fanOutSpec) (*models.Message, error) {
	folder := models.FolderInbox
	if spec.verdict {
		folder = models.FolderSpam
	}

	sentCopy, err := s.messages.CreateMessage(ctx, s.copyParams(spec, spec.sender, models.FolderSent, false))
	if err != nil {
		return nil, fmt.Errorf("persisting sent copy: %w", err)
	}

	for _, list := range [][]string{spec.recipients, spec.cc, spec.bcc} {
		for _, addr := range list {
			target, ok := spec.resolved[strings.ToLower(addr)]
			if !ok {
				// Validation already covered every address; a miss here is a bug.
				slog.Error("fan-out target missing from resolved set", "address", addr)
				continue
			}

			copyMsg, err := s.messages.CreateMessage(ctx, s.copyParams(spec, target, folder, spec.verdict))
			if err != nil {
				slog.Error("failed to persist recipient copy", "recipient", target.Email, "error", err)
				continue
			}

			if spec.verdict {
				if err := s.labels.AttachSpamLabel(ctx, target.ID, copyMsg.ID); err != nil {
					slog.Error("failed to attach spam label", "recipient", target.Email, "message_id", copyMsg.ID, "error", err)
				}
			}

			if err := s.notifier.PublishNewEmail(ctx, target.Email, models.NewEmailEvent{
				Sender:  spec.sender.Email,
				Subject: spec.subject,
				SentAt:  copyMsg.SentAt,
				IsSpam:  spec.verdict,
			}); err != nil {
				slog.Warn("failed to publish notification", "recipient", target.Email, "error", err)
			}
		}
	}

	if spec.autoReply && !spec.verdict {
		s.autoReplyPass(ctx, spec)
	}

	return sentCopy, nil
}

// autoReplyPass runs after a clean original send: each To-recipient with
// auto-reply enabled generates one secondary single-recipient send back to the
// original sender. The secondary send is never classified and never triggers
// another auto-reply, fixing the recursion depth at one.
func (s *Service) autoReplyPass(ctx context.Context, spec fanOutSpec) {
	for _, addr := range spec.recipients {
		target, ok := spec.resolved[strings.ToLower(addr)]
		if !ok {
			continue
		}

		cfg, err := s.replies.Get(ctx, target.ID)
		if err != nil {
			if !errors.Is(err, autoreply.ErrNotConfigured) {
				slog.Warn("failed to read auto-reply config", "owner", target.Email, "error", err)
			}
			continue
		}
		if !cfg.Enabled {
			continue
		}

		if _, err := s.fanOut(ctx, fanOutSpec{
			sender:     target,
			recipients: []string{spec.sender.Email},
			subject:    autoReplyPrefix + spec.subject,
			body:       cfg.Message,
			resolved:   map[string]*models.User{spec.sender.Email: spec.sender},
		}); err != nil {
			slog.Error("failed to send auto-reply", "from", target.Email, "to", spec.sender.Email, "error", err)
		}
	}
}

// copyParams builds the create parameters for one copy. Address slices are
// cloned so no two persisted copies alias the same backing array.
func (s *Service) copyParams(spec fanOutSpec, owner *models.User, folder models.Folder, isSpam bool) models.MessageCreateParams {
	return models.MessageCreateParams{
		OwnerID:     owner.ID,
		Owner:       owner.Email,
		Sender:      spec.sender.Email,
		Recipients:  slices.Clone(spec.recipients),
		CC:          slices.Clone(spec.cc),
		BCC:         slices.Clone(spec.bcc),
		Subject:     spec.subject,
		Body:        spec.body,
		Attachments: slices.Clone(spec.attachments),
		Folder:      folder,
		IsSpam:      isSpam,
	}
}

// loadOriginal fetches the caller's copy of an existing message, hiding
// copies the caller does not own.
func (s *Service) loadOriginal(ctx context.Context, originalID uuid.UUID, senderEmail string) (*models.User, *models.Message, error) {
	sender, err := s.dir.FindVerifiedByEmail(ctx, senderEmail)
	if err != nil {
		if errors.Is(err, directory.ErrUserNotFound) {
			return nil, nil, ErrSenderUnverified
		}
		return nil, nil, fmt.Errorf("resolving sender: %w", err)
	}

	original, err := s.messages.GetMessageByPublicID(ctx, originalID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, ErrMessageNotFound
		}
		return nil, nil, fmt.Errorf("loading original message: %w", err)
	}
	if original.OwnerID != sender.ID {
		return nil, nil, ErrMessageNotFound
	}

	return sender, original, nil
}

// resolveAll checks every address across the three lists against the
// directory in one lookup. All-or-nothing: the first list containing an
// unresolvable address fails the whole request before anything is written.
func (s *Service) resolveAll(ctx context.Context, recipients, cc, bcc []string) (map[string]*models.User, error) {
	union := make([]string, 0, len(recipients)+len(cc)+len(bcc))
	union = append(union, recipients...)
	union = append(union, cc...)
	union = append(union, bcc...)

	resolved, err := s.dir.FindVerifiedByEmails(ctx, union)
	if err != nil {
		return nil, fmt.Errorf("resolving addresses: %w", err)
	}

	for _, check := range []struct {
		list  string
		addrs []string
	}{
		{"recipients", recipients},
		{"cc", cc},
		{"bcc", bcc},
	} {
		for _, addr := range check.addrs {
			if _, ok := resolved[strings.ToLower(addr)]; !ok {
				return nil, &ValidationError{
					List:   check.list,
					Reason: fmt.Sprintf("%s is not a verified user", addr),
				}
			}
		}
	}

	return resolved, nil
}

// cleanAddresses drops blank and malformed entries, preserving order and
// duplicates of the survivors.
func cleanAddresses(addrs []string) []string {
	cleaned := make([]string, 0, len(addrs))
	for _, a := range addrs {
		a = strings.TrimSpace(a)
		if a == "" {
			continue
		}
		parsed, err := mail.ParseAddress(a)
		if err != nil {
			continue
		}
		cleaned = append(cleaned, parsed.Address)
	}
	return cleaned
}
