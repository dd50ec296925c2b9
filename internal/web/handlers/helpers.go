package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/mailgrove/mailgrove/internal/models"
)

// jsonError is the envelope for API error responses.
type jsonError struct {
	Error string `json:"error"`
}

// writeJSON serialises v as JSON and writes it to w with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to write JSON response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, jsonError{Error: msg})
}

// messageView is the JSON shape of one mailbox message copy.
type messageView struct {
	ID           string              `json:"id"`
	Sender       string              `json:"sender"`
	Recipients   []string            `json:"recipients"`
	CC           []string            `json:"cc,omitempty"`
	BCC          []string            `json:"bcc,omitempty"`
	Subject      string              `json:"subject"`
	Body         string              `json:"body"`
	Attachments  []models.Attachment `json:"attachments,omitempty"`
	Folder       string              `json:"folder"`
	IsRead       bool                `json:"isRead"`
	IsStarred    bool                `json:"isStarred"`
	IsSpam       bool                `json:"isSpam"`
	SentAt       time.Time           `json:"sentAt"`
	DraftSavedAt *time.Time          `json:"draftSavedAt,omitempty"`
}

func toMessageView(m *models.Message) messageView {
	return messageView{
		ID:           m.PublicID.String(),
		Sender:       m.Sender,
		Recipients:   m.Recipients,
		CC:           m.CC,
		BCC:          m.BCC,
		Subject:      m.Subject,
		Body:         m.Body,
		Attachments:  m.Attachments,
		Folder:       string(m.Folder),
		IsRead:       m.IsRead,
		IsStarred:    m.IsStarred,
		IsSpam:       m.IsSpam,
		SentAt:       m.SentAt,
		DraftSavedAt: m.DraftSavedAt,
	}
}

func toMessageViews(msgs []models.Message) []messageView {
	views := make([]messageView, 0, len(msgs))
	for i := range msgs {
		views = append(views, toMessageView(&msgs[i]))
	}
	return views
}

// labelView is the JSON shape of a label.
type labelView struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	IsSystem bool   `json:"isSystem"`
}

func toLabelView(l *models.Label) labelView {
	return labelView{ID: l.PublicID.String(), Name: l.Name, IsSystem: l.IsSystem}
}
