package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"authgate/internal/model"
)

// DirectoryClient reads the user directory from the authentication service.
type DirectoryClient interface {
	FindAll(ctx context.Context) (model.UserList, error)
	FindByID(ctx context.Context, req model.FindByIDRequest) (model.PublicUser, error)
}

type UserHandler struct {
	client DirectoryClient
}

func NewUserHandler(client DirectoryClient) *UserHandler {
	return &UserHandler{client: client}
}

func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	users, err := h.client.FindAll(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeSuccess(w, http.StatusOK, users)
}

func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	req := model.FindByIDRequest{ID: chi.URLParam(r, "id")}
	req.Normalize()
	if err := req.Validate(); err != nil {
		writeError(w, r, err)
		return
	}

	user, err := h.client.FindByID(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeSuccess(w, http.StatusOK, user)
}
