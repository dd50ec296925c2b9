package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/mailgrove/mailgrove/internal/directory"
	"github.com/mailgrove/mailgrove/internal/web/middleware"
)

// UserHandler seeds and inspects directory identities.
type UserHandler struct {
	directory *directory.Service
}

func NewUserHandler(dir *directory.Service) *UserHandler {
	return &UserHandler{directory: dir}
}

type registerRequest struct {
	Email string `json:"email"`
}

// HandleRegister creates a verified identity for the simulation.
func (h *UserHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	user, err := h.directory.Register(r.Context(), req.Email)
	if err != nil {
		switch {
		case errors.Is(err, directory.ErrInvalidAddress):
			writeError(w, http.StatusBadRequest, "invalid email address")
		case errors.Is(err, directory.ErrAlreadyRegistered):
			writeError(w, http.StatusConflict, "address already registered")
		default:
			slog.Error("failed to register user", "error", err)
			writeError(w, http.StatusInternalServerError, "internal server error")
		}
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{
		"id":    user.PublicID.String(),
		"email": user.Email,
	})
}

// HandleMe echoes the resolved identity for the current request.
func (h *UserHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r.Context())
	writeJSON(w, http.StatusOK, map[string]string{
		"id":    user.PublicID.String(),
		"email": user.Email,
	})
}
