package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"creditstore/internal/core"
	"creditstore/internal/types"
)

// UserReader is the user surface consumed by the handler.
type UserReader interface {
	GetByID(ctx context.Context, id string) (*types.User, error)
}

// UserHandler serves the current-user endpoint: identity plus the live
// credit balance.
type UserHandler struct {
	users  UserReader
	logger *slog.Logger
}

// NewUserHandler creates a UserHandler.
func NewUserHandler(users UserReader, logger *slog.Logger) *UserHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &UserHandler{users: users, logger: logger}
}

// RegisterRoutes mounts the user endpoints under /v1.
func (h *UserHandler) RegisterRoutes(r chi.Router) {
	r.Get("/users/me", h.HandleMe)
}

// HandleMe returns the current user record.
func (h *UserHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	actor, ok := types.GetActor(r.Context())
	if !ok {
		core.Error(w, r, types.NewAppError(types.ErrCodeNotFoundUser, "no user in request context", nil))
		return
	}

	user, err := h.users.GetByID(r.Context(), actor.UserID)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.OK(w, r, user)
}
