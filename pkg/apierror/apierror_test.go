package apierror

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestKind_HTTPStatus(t *testing.T) {
	tests := map[Kind]int{
		KindUserExists:                   http.StatusConflict,
		KindInvalidCredentials:           http.StatusUnauthorized,
		KindInvalidOrExpiredRefreshToken: http.StatusUnauthorized,
		KindInvalidTokenType:             http.StatusUnauthorized,
		KindAuthenticationRequired:       http.StatusUnauthorized,
		KindUserNotFound:                 http.StatusNotFound,
		KindValidationFailed:             http.StatusBadRequest,
		KindRateLimited:                  http.StatusTooManyRequests,
		KindUpstreamTimeout:              http.StatusGatewayTimeout,
		KindUpstreamUnavailable:          http.StatusServiceUnavailable,
		KindInternalError:                http.StatusInternalServerError,
		Kind("SomethingElse"):            http.StatusInternalServerError,
	}

	for kind, want := range tests {
		assert.Equal(t, want, kind.HTTPStatus(), kind)
	}
}

func TestParseKind_OnlyBoundaryKinds(t *testing.T) {
	kind, ok := ParseKind("UserExists")
	assert.True(t, ok)
	assert.Equal(t, KindUserExists, kind)

	_, ok = ParseKind("RateLimited")
	assert.False(t, ok)

	_, ok = ParseKind("ConnectionRefused")
	assert.False(t, ok)
}

func TestAPIError_IsMatchesByKind(t *testing.T) {
	err := fmt.Errorf("login: %w", New(KindInvalidCredentials))
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	assert.NotErrorIs(t, err, ErrUserNotFound)
}

func TestFrom(t *testing.T) {
	assert.Nil(t, From(nil))

	typed := New(KindUserNotFound)
	assert.Same(t, typed, From(fmt.Errorf("wrapped: %w", typed)))

	cause := errors.New("disk full")
	internal := From(cause)
	assert.Equal(t, KindInternalError, internal.Kind)
	assert.Equal(t, "Internal server error", internal.Message)
	assert.ErrorIs(t, internal, cause)
}

func TestGRPCStatus_RoundTrip(t *testing.T) {
	original := Validation(map[string]string{"email": "must be a valid email address"})

	st := status.Convert(original)
	assert.Equal(t, codes.InvalidArgument, st.Code())
	assert.Equal(t, "Validation failed", st.Message())

	rebuilt, ok := FromStatus(st.Err())
	require.True(t, ok)
	assert.Equal(t, KindValidationFailed, rebuilt.Kind)
	assert.Equal(t, http.StatusBadRequest, rebuilt.HTTPStatus)
	assert.Equal(t, original.Details, rebuilt.Details)
}

func TestGRPCStatus_Codes(t *testing.T) {
	assert.Equal(t, codes.AlreadyExists, status.Convert(New(KindUserExists)).Code())
	assert.Equal(t, codes.Unauthenticated, status.Convert(New(KindInvalidCredentials)).Code())
	assert.Equal(t, codes.NotFound, status.Convert(New(KindUserNotFound)).Code())
	assert.Equal(t, codes.Internal, status.Convert(Internal(errors.New("boom"))).Code())
}

func TestFromStatus_InternalHidesMessage(t *testing.T) {
	st := status.Convert(WithMessage(KindInternalError, "pq: relation users does not exist"))

	rebuilt, ok := FromStatus(st.Err())
	require.True(t, ok)
	assert.Equal(t, "Internal server error", rebuilt.Message)
}

func TestFromStatus_Unrecognized(t *testing.T) {
	_, ok := FromStatus(nil)
	assert.False(t, ok)

	_, ok = FromStatus(status.Error(codes.Unavailable, "connection refused"))
	assert.False(t, ok)

	_, ok = FromStatus(context.DeadlineExceeded)
	assert.False(t, ok)

	gatewayOnly := New(KindRateLimited)
	_, ok = FromStatus(status.Convert(gatewayOnly).Err())
	assert.False(t, ok)
}
