// Package token signs and verifies the access/refresh bearer tokens.
//
// Both kinds are HS256 JWTs signed with the same secret. The typ claim
// discriminates them, so a token minted as one kind is never accepted where
// the other is expected.
package token

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"authgate/internal/model"
)

type Kind string

const (
	KindAccess  Kind = "access"
	KindRefresh Kind = "refresh"
)

func (k Kind) Valid() bool {
	return k == KindAccess || k == KindRefresh
}

const (
	DefaultAccessTTL  = 15 * time.Minute
	DefaultRefreshTTL = 7 * 24 * time.Hour
	DefaultIssuer     = "authgate"
	minSecretLength   = 16
)

// Claims is the JWT body.
type Claims struct {
	Email string `json:"email"`
	Type  Kind   `json:"typ"`
	jwt.RegisteredClaims
}

// Payload is what a verified token tells the caller.
type Payload struct {
	Subject   string
	Email     string
	Kind      Kind
	TokenID   string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

type Config struct {
	Secret     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	Issuer     string
}

type Option func(*Engine)

// WithClock overrides the time source used for issuing and verifying.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

type Engine struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	issuer     string
	now        func() time.Time
}

func NewEngine(cfg Config, opts ...Option) (*Engine, error) {
	if len(cfg.Secret) < minSecretLength {
		return nil, fmt.Errorf("token secret must be at least %d bytes", minSecretLength)
	}
	if cfg.AccessTTL == 0 {
		cfg.AccessTTL = DefaultAccessTTL
	}
	if cfg.RefreshTTL == 0 {
		cfg.RefreshTTL = DefaultRefreshTTL
	}
	if cfg.AccessTTL < 0 || cfg.RefreshTTL < 0 {
		return nil, errors.New("token lifetimes must be positive")
	}
	if strings.TrimSpace(cfg.Issuer) == "" {
		cfg.Issuer = DefaultIssuer
	}

	e := &Engine{
		secret:     []byte(cfg.Secret),
		accessTTL:  cfg.AccessTTL,
		refreshTTL: cfg.RefreshTTL,
		issuer:     cfg.Issuer,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

func (e *Engine) AccessTTL() time.Duration  { return e.accessTTL }
func (e *Engine) RefreshTTL() time.Duration { return e.refreshTTL }

// IssuePair signs a fresh access and refresh token for subject concurrently.
func (e *Engine) IssuePair(ctx context.Context, subject, email string) (model.TokenPair, error) {
	var pair model.TokenPair

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		signed, err := e.issue(ctx, KindAccess, subject, email)
		if err != nil {
			return err
		}
		pair.AccessToken = signed
		return nil
	})
	g.Go(func() error {
		signed, err := e.issue(ctx, KindRefresh, subject, email)
		if err != nil {
			return err
		}
		pair.RefreshToken = signed
		return nil
	})

	if err := g.Wait(); err != nil {
		return model.TokenPair{}, err
	}
	return pair, nil
}

// Issue signs a single token of the given kind.
func (e *Engine) Issue(ctx context.Context, kind Kind, subject, email string) (string, error) {
	return e.issue(ctx, kind, subject, email)
}

func (e *Engine) issue(ctx context.Context, kind Kind, subject, email string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if !kind.Valid() {
		return "", fmt.Errorf("issue token: unknown kind %q", kind)
	}
	if subject == "" {
		return "", errors.New("issue token: subject is required")
	}

	ttl := e.accessTTL
	if kind == KindRefresh {
		ttl = e.refreshTTL
	}

	now := e.now().UTC()
	claims := Claims{
		Email: email,
		Type:  kind,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    e.issuer,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(e.secret)
	if err != nil {
		return "", fmt.Errorf("sign %s token: %w", kind, err)
	}
	return signed, nil
}

// Verify checks signature, expiry, issuer and kind. It fails with
// model.ErrTokenExpired or model.ErrTokenInvalid.
func (e *Engine) Verify(tokenString string) (Payload, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuer(e.issuer),
		jwt.WithTimeFunc(e.now),
	)

	var claims Claims
	_, err := parser.ParseWithClaims(tokenString, &claims, func(*jwt.Token) (any, error) {
		return e.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Payload{}, model.ErrTokenExpired
		}
		return Payload{}, fmt.Errorf("%w: %v", model.ErrTokenInvalid, err)
	}

	if !claims.Type.Valid() {
		return Payload{}, fmt.Errorf("%w: unknown kind %q", model.ErrTokenInvalid, claims.Type)
	}
	if claims.Subject == "" {
		return Payload{}, fmt.Errorf("%w: missing subject", model.ErrTokenInvalid)
	}

	payload := Payload{
		Subject: claims.Subject,
		Email:   claims.Email,
		Kind:    claims.Type,
		TokenID: claims.ID,
	}
	if claims.IssuedAt != nil {
		payload.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		payload.ExpiresAt = claims.ExpiresAt.Time
	}
	return payload, nil
}

// VerifyKind is Verify plus a kind check.
func (e *Engine) VerifyKind(tokenString string, kind Kind) (Payload, error) {
	payload, err := e.Verify(tokenString)
	if err != nil {
		return Payload{}, err
	}
	if payload.Kind != kind {
		return Payload{}, fmt.Errorf("%w: want %s, got %s", model.ErrTokenKindMismatch, kind, payload.Kind)
	}
	return payload, nil
}
