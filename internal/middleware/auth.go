package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"authgate/internal/model"
	"authgate/internal/token"
	"authgate/pkg/apierror"
)

type contextKey string

const payloadContextKey contextKey = "token_payload"

// AccessVerifier checks a bearer token against the expected kind.
type AccessVerifier interface {
	VerifyKind(tokenString string, kind token.Kind) (token.Payload, error)
}

type AuthMiddleware struct {
	verifier AccessVerifier
}

func NewAuthMiddleware(verifier AccessVerifier) *AuthMiddleware {
	return &AuthMiddleware{verifier: verifier}
}

// RequireAuth admits only requests carrying a valid access token.
func (m *AuthMiddleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rawToken, ok := bearerToken(r.Header.Get("Authorization"))
		if !ok {
			WriteError(w, r, apierror.New(apierror.KindAuthenticationRequired))
			return
		}

		payload, err := m.verifier.VerifyKind(rawToken, token.KindAccess)
		if err != nil {
			if errors.Is(err, model.ErrTokenKindMismatch) {
				WriteError(w, r, apierror.Wrap(apierror.KindInvalidTokenType, err))
				return
			}
			WriteError(w, r, apierror.Wrap(apierror.KindAuthenticationRequired, err))
			return
		}

		ctx := context.WithValue(r.Context(), payloadContextKey, payload)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func bearerToken(header string) (string, bool) {
	scheme, value, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	value = strings.TrimSpace(value)
	return value, value != ""
}

func PayloadFromContext(ctx context.Context) (token.Payload, bool) {
	payload, ok := ctx.Value(payloadContextKey).(token.Payload)
	return payload, ok
}
