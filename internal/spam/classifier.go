package spam

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/mailgrove/mailgrove/internal/directory"
	"github.com/mailgrove/mailgrove/internal/models"
)

// Classification thresholds. Fixed so that verdicts stay deterministic.
const (
	maxDistinctURLs    = 5
	maxToRecipients    = 10
	maxAttachmentBytes = 5 << 20 // 5 MiB
)

// spamKeywords are matched case-insensitively against subject and body.
var spamKeywords = []string{
	"win a prize",
	"free offer",
	"click here",
	"urgent",
	"limited time offer",
	"make money fast",
	"lottery",
	"guaranteed",
	"viagra",
	"cheap pills",
}

// allowedAttachmentExts are the only attachment extensions a clean message may
// carry, compared case-insensitively.
var allowedAttachmentExts = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".pdf":  true,
}

var urlPattern = regexp.MustCompile(`https?://[^\s<>"']+`)

// DirectoryLookup is the subset of the directory service the classifier needs
// for sender verification.
type DirectoryLookup interface {
	FindVerifiedByEmail(ctx context.Context, email string) (*models.User, error)
}

// Input is one logical message presented for classification. The verdict for
// a fan-out is computed once from this and shared across every copy.
type Input struct {
	Sender      string
	Recipients  []string
	Subject     string
	Body        string
	Attachments []models.Attachment
}

// Classifier applies a fixed rule list to decide whether a logical message is
// spam. Identical inputs always produce identical verdicts.
type Classifier struct {
	directory DirectoryLookup
}

func NewClassifier(dir DirectoryLookup) *Classifier {
	return &Classifier{directory: dir}
}

// Classify evaluates the rules in order, short-circuiting on the first match.
// It fails open: a directory fault skips sender verification rather than
// condemning the message.
func (c *Classifier) Classify(ctx context.Context, in Input) bool {
	if containsSpamKeyword(in.Subject) || containsSpamKeyword(in.Body) {
		return true
	}

	if countDistinctURLs(in.Body) > maxDistinctURLs {
		return true
	}

	if _, err := c.directory.FindVerifiedByEmail(ctx, in.Sender); err != nil {
		if errors.Is(err, directory.ErrUserNotFound) {
			return true
		}
		// Collaborator fault: swallow and keep evaluating.
		slog.Warn("classifier sender lookup failed", "sender", in.Sender, "error", err)
	}

	if len(in.Recipients) > maxToRecipients {
		return true
	}

	for _, a := range in.Attachments {
		if a.SizeBytes > maxAttachmentBytes {
			return true
		}
		ext := strings.ToLower(filepath.Ext(a.FileName))
		if !allowedAttachmentExts[ext] {
			return true
		}
	}

	return false
}

func containsSpamKeyword(text string) bool {
	lowered := strings.ToLower(text)
	for _, kw := range spamKeywords {
		if strings.Contains(lowered, kw) {
			return true
		}
	}
	return false
}

func countDistinctURLs(body string) int {
	seen := map[string]bool{}
	for _, u := range urlPattern.FindAllString(body, -1) {
		seen[u] = true
	}
	return len(seen)
}
