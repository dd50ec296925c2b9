package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/mailgrove/mailgrove/internal/autoreply"
	"github.com/mailgrove/mailgrove/internal/web/middleware"
)

// AutoReplyHandler serves per-user auto-reply configuration.
type AutoReplyHandler struct {
	replies *autoreply.Service
}

func NewAutoReplyHandler(replySvc *autoreply.Service) *AutoReplyHandler {
	return &AutoReplyHandler{replies: replySvc}
}

type autoReplyView struct {
	Enabled bool   `json:"enabled"`
	Message string `json:"message"`
}

func (h *AutoReplyHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r.Context())

	cfg, err := h.replies.Get(r.Context(), user.ID)
	if err != nil {
		if errors.Is(err, autoreply.ErrNotConfigured) {
			writeJSON(w, http.StatusOK, autoReplyView{Enabled: false})
			return
		}
		slog.Error("failed to read auto-reply config", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, autoReplyView{Enabled: cfg.Enabled, Message: cfg.Message})
}

func (h *AutoReplyHandler) HandleUpsert(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r.Context())

	var req autoReplyView
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	cfg, err := h.replies.Upsert(r.Context(), user.ID, req.Enabled, req.Message)
	if err != nil {
		slog.Error("failed to write auto-reply config", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, autoReplyView{Enabled: cfg.Enabled, Message: cfg.Message})
}
