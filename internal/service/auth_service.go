package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"authgate/internal/model"
	"authgate/internal/repository"
	"authgate/internal/token"
	"authgate/pkg/apierror"
)

type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password, hash string) bool
}

type TokenIssuer interface {
	IssuePair(ctx context.Context, subject, email string) (model.TokenPair, error)
	VerifyKind(tokenString string, kind token.Kind) (token.Payload, error)
}

// AuthService runs Register, Login and Refresh. It keeps no per-request
// state; every exit path returns either a result or an *apierror.APIError.
type AuthService struct {
	users  repository.UserStore
	hasher PasswordHasher
	tokens TokenIssuer
	now    func() time.Time

	// dummyHash keeps Login's cost the same for unknown emails.
	dummyHash string
}

func NewAuthService(users repository.UserStore, hasher PasswordHasher, tokens TokenIssuer) (*AuthService, error) {
	dummy, err := hasher.Hash(uuid.NewString())
	if err != nil {
		return nil, fmt.Errorf("prepare dummy hash: %w", err)
	}

	return &AuthService{
		users:     users,
		hasher:    hasher,
		tokens:    tokens,
		now:       time.Now,
		dummyHash: dummy,
	}, nil
}

func (s *AuthService) Register(ctx context.Context, req model.RegisterRequest) (model.AuthResult, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return model.AuthResult{}, err
	}

	exists, err := s.users.ExistsByEmail(ctx, req.Email)
	if err != nil {
		return model.AuthResult{}, internalError(ctx, "check email exists", err)
	}
	if exists {
		slog.InfoContext(ctx, "registration rejected", "email", req.Email, "reason", apierror.KindUserExists)
		return model.AuthResult{}, apierror.New(apierror.KindUserExists)
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return model.AuthResult{}, internalError(ctx, "hash password", err)
	}

	user := model.User{
		ID:           uuid.NewString(),
		Name:         req.Name,
		Email:        req.Email,
		PasswordHash: hash,
		CreatedAt:    s.now().UTC(),
	}

	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, model.ErrUserAlreadyExists) {
			slog.InfoContext(ctx, "registration lost uniqueness race", "email", req.Email)
			return model.AuthResult{}, apierror.New(apierror.KindUserExists)
		}
		return model.AuthResult{}, internalError(ctx, "create user", err)
	}

	tokens, err := s.tokens.IssuePair(ctx, user.ID, user.Email)
	if err != nil {
		return model.AuthResult{}, internalError(ctx, "issue token pair", err)
	}

	slog.InfoContext(ctx, "user registered", "user_id", user.ID, "email", user.Email)
	return model.AuthResult{User: user.ToPublic(), Tokens: tokens}, nil
}

// Login fails with the same InvalidCredentials error whether the email is
// unknown or the password is wrong.
func (s *AuthService) Login(ctx context.Context, req model.LoginRequest) (model.AuthResult, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return model.AuthResult{}, err
	}

	user, err := s.users.FindByEmail(ctx, req.Email)
	if errors.Is(err, model.ErrUserNotFound) {
		s.hasher.Verify(req.Password, s.dummyHash)
		slog.InfoContext(ctx, "login rejected", "email", req.Email, "reason", "unknown email")
		return model.AuthResult{}, apierror.New(apierror.KindInvalidCredentials)
	}
	if err != nil {
		return model.AuthResult{}, internalError(ctx, "find user by email", err)
	}

	if !s.hasher.Verify(req.Password, user.PasswordHash) {
		slog.InfoContext(ctx, "login rejected", "email", req.Email, "reason", "password mismatch")
		return model.AuthResult{}, apierror.New(apierror.KindInvalidCredentials)
	}

	tokens, err := s.tokens.IssuePair(ctx, user.ID, user.Email)
	if err != nil {
		return model.AuthResult{}, internalError(ctx, "issue token pair", err)
	}

	slog.InfoContext(ctx, "user logged in", "user_id", user.ID)
	return model.AuthResult{User: user.ToPublic(), Tokens: tokens}, nil
}

// Refresh trades a valid refresh token for a new pair. The presented token
// stays valid until its own expiry.
func (s *AuthService) Refresh(ctx context.Context, req model.RefreshRequest) (model.TokenPair, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return model.TokenPair{}, err
	}

	payload, err := s.tokens.VerifyKind(req.RefreshToken, token.KindRefresh)
	if err != nil {
		slog.InfoContext(ctx, "refresh rejected", "reason", err)
		return model.TokenPair{}, apierror.New(apierror.KindInvalidOrExpiredRefreshToken)
	}

	user, err := s.users.FindByID(ctx, payload.Subject)
	if errors.Is(err, model.ErrUserNotFound) {
		slog.InfoContext(ctx, "refresh rejected", "user_id", payload.Subject, "reason", "subject not found")
		return model.TokenPair{}, apierror.New(apierror.KindInvalidOrExpiredRefreshToken)
	}
	if err != nil {
		return model.TokenPair{}, internalError(ctx, "find user by id", err)
	}

	tokens, err := s.tokens.IssuePair(ctx, user.ID, user.Email)
	if err != nil {
		return model.TokenPair{}, internalError(ctx, "issue token pair", err)
	}

	slog.InfoContext(ctx, "tokens refreshed", "user_id", user.ID)
	return tokens, nil
}

func internalError(ctx context.Context, op string, err error) error {
	slog.ErrorContext(ctx, "auth operation failed", "op", op, "error", err)
	return apierror.Internal(fmt.Errorf("%s: %w", op, err))
}
