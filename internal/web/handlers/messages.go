package handlers

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/mailgrove/mailgrove/internal/attachment"
	"github.com/mailgrove/mailgrove/internal/delivery"
	"github.com/mailgrove/mailgrove/internal/web/middleware"
)

// MessageHandler serves the send/reply/forward operations.
type MessageHandler struct {
	delivery *delivery.Service
}

func NewMessageHandler(deliverySvc *delivery.Service) *MessageHandler {
	return &MessageHandler{delivery: deliverySvc}
}

// attachmentUpload is an inline base64 attachment in a send request.
type attachmentUpload struct {
	FileName string `json:"fileName"`
	Content  string `json:"content"`
}

func decodeUploads(raw []attachmentUpload) ([]attachment.Upload, error) {
	uploads := make([]attachment.Upload, 0, len(raw))
	for _, a := range raw {
		content, err := base64.StdEncoding.DecodeString(a.Content)
		if err != nil {
			return nil, err
		}
		uploads = append(uploads, attachment.Upload{FileName: a.FileName, Content: content})
	}
	return uploads, nil
}

type sendRequest struct {
	Recipients  []string           `json:"recipients"`
	CC          []string           `json:"cc"`
	BCC         []string           `json:"bcc"`
	Subject     string             `json:"subject"`
	Body        string             `json:"body"`
	Attachments []attachmentUpload `json:"attachments"`
}

// HandleSend accepts a compose request and runs the full fan-out.
func (h *MessageHandler) HandleSend(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r.Context())

	var req sendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	uploads, err := decodeUploads(req.Attachments)
	if err != nil {
		writeError(w, http.StatusBadRequest, "attachment content must be base64")
		return
	}

	sent, err := h.delivery.Send(r.Context(), delivery.SendParams{
		Sender:      user.Email,
		Recipients:  req.Recipients,
		CC:          req.CC,
		BCC:         req.BCC,
		Subject:     req.Subject,
		Body:        req.Body,
		Attachments: uploads,
	})
	if err != nil {
		h.writeDeliveryError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toMessageView(sent))
}

type replyRequest struct {
	MessageID   string             `json:"messageId"`
	Body        string             `json:"body"`
	Attachments []attachmentUpload `json:"attachments"`
}

// HandleReply sends the caller's text back to the original sender with the
// original body quoted below it.
func (h *MessageHandler) HandleReply(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r.Context())

	var req replyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	originalID, err := uuid.Parse(req.MessageID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "messageId must be a valid UUID")
		return
	}

	uploads, err := decodeUploads(req.Attachments)
	if err != nil {
		writeError(w, http.StatusBadRequest, "attachment content must be base64")
		return
	}

	sent, err := h.delivery.Reply(r.Context(), originalID, user.Email, req.Body, uploads)
	if err != nil {
		h.writeDeliveryError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toMessageView(sent))
}

type forwardRequest struct {
	MessageID   string             `json:"messageId"`
	Recipients  []string           `json:"recipients"`
	Body        string             `json:"body"`
	Attachments []attachmentUpload `json:"attachments"`
}

// HandleForward re-sends an existing message, original attachments included.
func (h *MessageHandler) HandleForward(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r.Context())

	var req forwardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	originalID, err := uuid.Parse(req.MessageID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "messageId must be a valid UUID")
		return
	}

	uploads, err := decodeUploads(req.Attachments)
	if err != nil {
		writeError(w, http.StatusBadRequest, "attachment content must be base64")
		return
	}

	sent, err := h.delivery.Forward(r.Context(), originalID, user.Email, req.Recipients, req.Body, uploads)
	if err != nil {
		h.writeDeliveryError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toMessageView(sent))
}

func (h *MessageHandler) writeDeliveryError(w http.ResponseWriter, err error) {
	var vErr *delivery.ValidationError
	switch {
	case errors.As(err, &vErr):
		writeError(w, http.StatusBadRequest, vErr.Error())
	case errors.Is(err, delivery.ErrMessageNotFound):
		writeError(w, http.StatusNotFound, "message not found")
	case errors.Is(err, delivery.ErrSenderUnverified):
		writeError(w, http.StatusForbidden, "sender is not a verified user")
	default:
		slog.Error("delivery request failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}
