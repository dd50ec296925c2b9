package handlers

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/mailgrove/mailgrove/internal/attachment"
)

// maxUploadBytes caps a single multipart upload. Larger files are rejected
// before reaching the blob store.
const maxUploadBytes = 25 << 20

// AttachmentHandler serves standalone upload-then-reference requests.
type AttachmentHandler struct {
	attachments *attachment.Service
}

func NewAttachmentHandler(attachmentSvc *attachment.Service) *AttachmentHandler {
	return &AttachmentHandler{attachments: attachmentSvc}
}

// HandleUpload accepts a multipart "file" field and returns its stored
// reference.
func (h *AttachmentHandler) HandleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file field is required")
		return
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read file")
		return
	}

	stored, err := h.attachments.Store(r.Context(), attachment.Upload{
		FileName: header.Filename,
		Content:  content,
	})
	if err != nil {
		if errors.Is(err, attachment.ErrEmptyAttachment) {
			writeError(w, http.StatusBadRequest, "attachment content must not be empty")
			return
		}
		slog.Error("failed to store attachment", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusCreated, stored)
}

// HandleDownload streams a stored attachment back to its owner.
func (h *AttachmentHandler) HandleDownload(w http.ResponseWriter, r *http.Request) {
	reference := r.URL.Query().Get("ref")
	if reference == "" {
		writeError(w, http.StatusBadRequest, "ref is required")
		return
	}

	content, err := h.attachments.Fetch(r.Context(), reference)
	if err != nil {
		if errors.Is(err, attachment.ErrAttachmentNotFound) {
			writeError(w, http.StatusNotFound, "attachment not found")
			return
		}
		slog.Error("failed to fetch attachment", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Write(content)
}
