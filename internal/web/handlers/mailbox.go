package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/mailgrove/mailgrove/internal/mailbox"
	"github.com/mailgrove/mailgrove/internal/web/middleware"
)

const defaultPageSize = 50

// MailboxHandler serves folder listings, status flags and drafts.
type MailboxHandler struct {
	mailbox *mailbox.Service
}

func NewMailboxHandler(mailboxSvc *mailbox.Service) *MailboxHandler {
	return &MailboxHandler{mailbox: mailboxSvc}
}

// HandleListFolder returns the caller's messages in a folder, starred
// pseudo-folder included.
func (h *MailboxHandler) HandleListFolder(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r.Context())
	folder := chi.URLParam(r, "folder")

	limit := queryInt(r, "limit", defaultPageSize)
	offset := queryInt(r, "offset", 0)

	msgs, err := h.mailbox.List(r.Context(), user.ID, folder, limit, offset)
	if err != nil {
		if errors.Is(err, mailbox.ErrUnknownFolder) {
			writeError(w, http.StatusBadRequest, "unknown folder")
			return
		}
		slog.Error("failed to list folder", "folder", folder, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"messages": toMessageViews(msgs)})
}

// HandleGetMessage returns a single message copy.
func (h *MailboxHandler) HandleGetMessage(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r.Context())
	id, ok := parseMessageID(w, r)
	if !ok {
		return
	}

	msg, err := h.mailbox.Get(r.Context(), user.ID, id)
	if err != nil {
		h.writeMailboxError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toMessageView(msg))
}

// HandleMarkRead flags a message copy as read.
func (h *MailboxHandler) HandleMarkRead(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r.Context())
	id, ok := parseMessageID(w, r)
	if !ok {
		return
	}

	if err := h.mailbox.MarkRead(r.Context(), user.ID, id); err != nil {
		h.writeMailboxError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// HandleToggleStar flips the starred flag.
func (h *MailboxHandler) HandleToggleStar(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r.Context())
	id, ok := parseMessageID(w, r)
	if !ok {
		return
	}

	starred, err := h.mailbox.ToggleStar(r.Context(), user.ID, id)
	if err != nil {
		h.writeMailboxError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"isStarred": starred})
}

// HandleTrash moves a message copy to trash.
func (h *MailboxHandler) HandleTrash(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r.Context())
	id, ok := parseMessageID(w, r)
	if !ok {
		return
	}

	if err := h.mailbox.Trash(r.Context(), user.ID, id); err != nil {
		h.writeMailboxError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// HandleDelete permanently removes a message copy.
func (h *MailboxHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r.Context())
	id, ok := parseMessageID(w, r)
	if !ok {
		return
	}

	if err := h.mailbox.Delete(r.Context(), user.ID, id); err != nil {
		h.writeMailboxError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

type draftRequest struct {
	Recipients []string `json:"recipients"`
	CC         []string `json:"cc"`
	BCC        []string `json:"bcc"`
	Subject    string   `json:"subject"`
	Body       string   `json:"body"`
}

// HandleSaveDraft stores an unsent message in the draft folder.
func (h *MailboxHandler) HandleSaveDraft(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r.Context())

	var req draftRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	draft, err := h.mailbox.SaveDraft(r.Context(), user, req.Recipients, req.CC, req.BCC, req.Subject, req.Body)
	if err != nil {
		slog.Error("failed to save draft", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusCreated, toMessageView(draft))
}

func (h *MailboxHandler) writeMailboxError(w http.ResponseWriter, err error) {
	if errors.Is(err, mailbox.ErrMessageNotFound) {
		writeError(w, http.StatusNotFound, "message not found")
		return
	}
	slog.Error("mailbox request failed", "error", err)
	writeError(w, http.StatusInternalServerError, "internal server error")
}

func parseMessageID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "messageID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "message id must be a valid UUID")
		return uuid.Nil, false
	}
	return id, true
}

func queryInt(r *http.Request, key string, fallback int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}
