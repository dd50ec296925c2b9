package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/mailgrove/mailgrove/internal/label"
	"github.com/mailgrove/mailgrove/internal/web/middleware"
)

// LabelHandler serves user label CRUD. System labels are read-only.
type LabelHandler struct {
	labels *label.Service
}

func NewLabelHandler(labelSvc *label.Service) *LabelHandler {
	return &LabelHandler{labels: labelSvc}
}

func (h *LabelHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r.Context())

	labels, err := h.labels.List(r.Context(), user.ID)
	if err != nil {
		slog.Error("failed to list labels", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	views := make([]labelView, 0, len(labels))
	for i := range labels {
		views = append(views, toLabelView(&labels[i]))
	}
	writeJSON(w, http.StatusOK, map[string]any{"labels": views})
}

type labelRequest struct {
	Name string `json:"name"`
}

func (h *LabelHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r.Context())

	var req labelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	created, err := h.labels.Create(r.Context(), user.ID, req.Name)
	if err != nil {
		h.writeLabelError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toLabelView(created))
}

func (h *LabelHandler) HandleRename(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r.Context())
	id, ok := parseLabelID(w, r)
	if !ok {
		return
	}

	var req labelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	renamed, err := h.labels.Rename(r.Context(), user.ID, id, req.Name)
	if err != nil {
		h.writeLabelError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toLabelView(renamed))
}

func (h *LabelHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r.Context())
	id, ok := parseLabelID(w, r)
	if !ok {
		return
	}

	if err := h.labels.Delete(r.Context(), user.ID, id); err != nil {
		h.writeLabelError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (h *LabelHandler) writeLabelError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, label.ErrLabelNotFound):
		writeError(w, http.StatusNotFound, "label not found")
	case errors.Is(err, label.ErrSystemLabel):
		writeError(w, http.StatusForbidden, "system labels cannot be modified")
	case errors.Is(err, label.ErrDuplicateLabel):
		writeError(w, http.StatusConflict, "label name already in use")
	case errors.Is(err, label.ErrEmptyLabelName), errors.Is(err, label.ErrReservedName):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		slog.Error("label request failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func parseLabelID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "labelID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "label id must be a valid UUID")
		return uuid.Nil, false
	}
	return id, true
}
