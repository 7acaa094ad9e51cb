package model

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"authgate/pkg/apierror"
)

func TestRegisterRequest_NormalizeAndValidate(t *testing.T) {
	req := RegisterRequest{Name: "  Ann ", Email: "  ANN@X.com ", Password: "Secret123!"}
	req.Normalize()

	assert.Equal(t, "Ann", req.Name)
	assert.Equal(t, "ann@x.com", req.Email)
	assert.NoError(t, req.Validate())
}

func TestRegisterRequest_ValidateReportsFields(t *testing.T) {
	tests := []struct {
		name   string
		req    RegisterRequest
		fields []string
	}{
		{"missing everything", RegisterRequest{}, []string{"name", "email", "password"}},
		{"bad email", RegisterRequest{Name: "Ann", Email: "not-an-email", Password: "Secret123!"}, []string{"email"}},
		{"short password", RegisterRequest{Name: "Ann", Email: "ann@x.com", Password: "Se1!"}, []string{"password"}},
		{"no special char", RegisterRequest{Name: "Ann", Email: "ann@x.com", Password: "Secret1234"}, []string{"password"}},
		{"no uppercase", RegisterRequest{Name: "Ann", Email: "ann@x.com", Password: "secret123!"}, []string{"password"}},
		{"password over 72 bytes", RegisterRequest{Name: "Ann", Email: "ann@x.com", Password: "Aa1!" + strings.Repeat("x", 80)}, []string{"password"}},
		{"multibyte password over 72 bytes", RegisterRequest{Name: "Ann", Email: "ann@x.com", Password: "Aa1!" + strings.Repeat("é", 40)}, []string{"password"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			require.Error(t, err)

			var apiErr *apierror.APIError
			require.True(t, errors.As(err, &apiErr))
			assert.Equal(t, apierror.KindValidationFailed, apiErr.Kind)
			assert.Len(t, apiErr.Details, len(tt.fields))
			for _, field := range tt.fields {
				assert.Contains(t, apiErr.Details, field)
			}
		})
	}
}

func TestRegisterRequest_AcceptsPasswordAtByteLimit(t *testing.T) {
	req := RegisterRequest{Name: "Ann", Email: "ann@x.com", Password: "Aa1!" + strings.Repeat("x", PasswordMaxBytes-4)}
	assert.NoError(t, req.Validate())
}

func TestLoginRequest_AcceptsWeakPassword(t *testing.T) {
	req := LoginRequest{Email: "ann@x.com", Password: "wrong"}
	assert.NoError(t, req.Validate())

	req.Password = ""
	assert.Error(t, req.Validate())
}

func TestRefreshRequest_Validate(t *testing.T) {
	req := RefreshRequest{RefreshToken: "   "}
	req.Normalize()
	assert.Error(t, req.Validate())

	req.RefreshToken = "abc.def.ghi"
	assert.NoError(t, req.Validate())
}

func TestPublicUsers_NeverNil(t *testing.T) {
	out := PublicUsers(nil)
	require.NotNil(t, out)
	assert.Empty(t, out)
}
