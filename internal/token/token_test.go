package token

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"authgate/internal/model"
)

const testSecret = "test-secret-0123456789abcdef"

func newTestEngine(t *testing.T, opts ...Option) *Engine {
	t.Helper()
	e, err := NewEngine(Config{Secret: testSecret}, opts...)
	require.NoError(t, err)
	return e
}

func TestNewEngine_Defaults(t *testing.T) {
	e := newTestEngine(t)
	assert.Equal(t, DefaultAccessTTL, e.AccessTTL())
	assert.Equal(t, DefaultRefreshTTL, e.RefreshTTL())

	_, err := NewEngine(Config{Secret: "short"})
	assert.Error(t, err)
}

func TestIssuePair_RoundTrip(t *testing.T) {
	e := newTestEngine(t)

	pair, err := e.IssuePair(context.Background(), "user-1", "ann@x.com")
	require.NoError(t, err)
	require.NotEmpty(t, pair.AccessToken)
	require.NotEmpty(t, pair.RefreshToken)
	assert.NotEqual(t, pair.AccessToken, pair.RefreshToken)

	access, err := e.VerifyKind(pair.AccessToken, KindAccess)
	require.NoError(t, err)
	assert.Equal(t, "user-1", access.Subject)
	assert.Equal(t, "ann@x.com", access.Email)
	assert.Equal(t, KindAccess, access.Kind)
	assert.NotEmpty(t, access.TokenID)

	refresh, err := e.VerifyKind(pair.RefreshToken, KindRefresh)
	require.NoError(t, err)
	assert.Equal(t, "user-1", refresh.Subject)
	assert.Equal(t, KindRefresh, refresh.Kind)
	assert.True(t, refresh.ExpiresAt.After(access.ExpiresAt))
}

func TestIssuePair_DistinctWithinSameSecond(t *testing.T) {
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	e := newTestEngine(t, WithClock(func() time.Time { return fixed }))

	first, err := e.IssuePair(context.Background(), "user-1", "ann@x.com")
	require.NoError(t, err)
	second, err := e.IssuePair(context.Background(), "user-1", "ann@x.com")
	require.NoError(t, err)

	assert.NotEqual(t, first.AccessToken, second.AccessToken)
	assert.NotEqual(t, first.RefreshToken, second.RefreshToken)
}

func TestIssuePair_CancelledContext(t *testing.T) {
	e := newTestEngine(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.IssuePair(ctx, "user-1", "ann@x.com")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestVerifyKind_Mismatch(t *testing.T) {
	e := newTestEngine(t)
	pair, err := e.IssuePair(context.Background(), "user-1", "ann@x.com")
	require.NoError(t, err)

	_, err = e.VerifyKind(pair.AccessToken, KindRefresh)
	assert.ErrorIs(t, err, model.ErrTokenKindMismatch)

	_, err = e.VerifyKind(pair.RefreshToken, KindAccess)
	assert.ErrorIs(t, err, model.ErrTokenKindMismatch)
}

func TestVerify_Expired(t *testing.T) {
	now := time.Now()
	clock := func() time.Time { return now }
	e := newTestEngine(t, WithClock(func() time.Time { return clock() }))

	signed, err := e.Issue(context.Background(), KindAccess, "user-1", "ann@x.com")
	require.NoError(t, err)

	clock = func() time.Time { return now.Add(DefaultAccessTTL + time.Minute) }
	_, err = e.Verify(signed)
	assert.ErrorIs(t, err, model.ErrTokenExpired)
}

func TestVerify_RejectsForeignSignature(t *testing.T) {
	e := newTestEngine(t)
	other, err := NewEngine(Config{Secret: "another-secret-0123456789"})
	require.NoError(t, err)

	signed, err := other.Issue(context.Background(), KindAccess, "user-1", "ann@x.com")
	require.NoError(t, err)

	_, err = e.Verify(signed)
	assert.ErrorIs(t, err, model.ErrTokenInvalid)
}

func TestVerify_RejectsUnknownKindAndGarbage(t *testing.T) {
	e := newTestEngine(t)

	now := time.Now()
	claims := Claims{
		Email: "ann@x.com",
		Type:  Kind("admin"),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			Issuer:    DefaultIssuer,
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)

	_, err = e.Verify(signed)
	assert.ErrorIs(t, err, model.ErrTokenInvalid)

	_, err = e.Verify("not.a.token")
	assert.ErrorIs(t, err, model.ErrTokenInvalid)
}

func TestVerify_RequiresExpiry(t *testing.T) {
	e := newTestEngine(t)

	claims := Claims{
		Type:             KindAccess,
		RegisteredClaims: jwt.RegisteredClaims{Subject: "user-1", Issuer: DefaultIssuer},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)

	_, err = e.Verify(signed)
	assert.ErrorIs(t, err, model.ErrTokenInvalid)
}
