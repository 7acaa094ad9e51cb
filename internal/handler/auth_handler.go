package handler

import (
	"context"
	"net/http"

	"authgate/internal/model"
)

// AuthClient forwards authentication calls to the authentication service.
type AuthClient interface {
	Register(ctx context.Context, req model.RegisterRequest) (model.AuthResult, error)
	Login(ctx context.Context, req model.LoginRequest) (model.AuthResult, error)
	Refresh(ctx context.Context, req model.RefreshRequest) (model.TokenPair, error)
}

type AuthHandler struct {
	client       AuthClient
	maxBodyBytes int64
}

func NewAuthHandler(client AuthClient, maxBodyBytes int64) *AuthHandler {
	return &AuthHandler{client: client, maxBodyBytes: maxBodyBytes}
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var payload model.RegisterRequest
	if err := decodeBody(w, r, h.maxBodyBytes, &payload); err != nil {
		writeError(w, r, err)
		return
	}

	payload.Normalize()
	if err := payload.Validate(); err != nil {
		writeError(w, r, err)
		return
	}

	result, err := h.client.Register(r.Context(), payload)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeSuccess(w, http.StatusCreated, result)
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var payload model.LoginRequest
	if err := decodeBody(w, r, h.maxBodyBytes, &payload); err != nil {
		writeError(w, r, err)
		return
	}

	payload.Normalize()
	if err := payload.Validate(); err != nil {
		writeError(w, r, err)
		return
	}

	result, err := h.client.Login(r.Context(), payload)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeSuccess(w, http.StatusOK, result)
}

func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var payload model.RefreshRequest
	if err := decodeBody(w, r, h.maxBodyBytes, &payload); err != nil {
		writeError(w, r, err)
		return
	}

	payload.Normalize()
	if err := payload.Validate(); err != nil {
		writeError(w, r, err)
		return
	}

	tokens, err := h.client.Refresh(r.Context(), payload)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeSuccess(w, http.StatusOK, tokens)
}
