package model

import (
	"errors"
	"strings"
	"unicode"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"

	"authgate/pkg/apierror"
)

const (
	PasswordMinLength   = 8
	PasswordMaxBytes    = 72 // bcrypt input limit
	passwordSpecialChar = "@$!%*?&#^()_+-=[]{};':\"\\|,.<>/~`"
)

// NormalizeEmail is the canonical form used for storage and lookup.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (r *RegisterRequest) Normalize() {
	r.Name = strings.TrimSpace(r.Name)
	r.Email = NormalizeEmail(r.Email)
}

func (r RegisterRequest) Validate() error {
	return validationError(validation.ValidateStruct(&r,
		validation.Field(&r.Name, validation.Required, validation.Length(1, 200)),
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(
			&r.Password,
			validation.Required,
			validation.Length(PasswordMinLength, 0),
			validation.By(passwordMaxBytes),
			validation.By(passwordStrength),
		),
	))
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (r *LoginRequest) Normalize() {
	r.Email = NormalizeEmail(r.Email)
}

func (r LoginRequest) Validate() error {
	return validationError(validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.Password, validation.Required),
	))
}

type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

func (r *RefreshRequest) Normalize() {
	r.RefreshToken = strings.TrimSpace(r.RefreshToken)
}

func (r RefreshRequest) Validate() error {
	return validationError(validation.ValidateStruct(&r,
		validation.Field(&r.RefreshToken, validation.Required),
	))
}

type FindAllRequest struct{}

type FindByIDRequest struct {
	ID string `json:"id"`
}

func (r *FindByIDRequest) Normalize() {
	r.ID = strings.TrimSpace(r.ID)
}

func (r FindByIDRequest) Validate() error {
	return validationError(validation.ValidateStruct(&r,
		validation.Field(&r.ID, validation.Required, validation.Length(1, 64)),
	))
}

func passwordMaxBytes(value interface{}) error {
	password, _ := value.(string)
	if len(password) > PasswordMaxBytes {
		return errors.New("must be at most 72 bytes")
	}
	return nil
}

// passwordStrength requires one lowercase letter, one uppercase letter, one
// digit and one special character.
func passwordStrength(value interface{}) error {
	password, _ := value.(string)
	if password == "" {
		return nil
	}

	var lower, upper, digit, special bool
	for _, r := range password {
		switch {
		case unicode.IsLower(r):
			lower = true
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsDigit(r):
			digit = true
		case strings.ContainsRune(passwordSpecialChar, r):
			special = true
		}
	}

	if !lower || !upper || !digit || !special {
		return errors.New("must contain at least one uppercase letter, one lowercase letter, one number, and one special character")
	}
	return nil
}

func validationError(err error) error {
	if err == nil {
		return nil
	}

	var fieldErrs validation.Errors
	if errors.As(err, &fieldErrs) {
		fields := make(map[string]string, len(fieldErrs))
		for name, fieldErr := range fieldErrs {
			fields[name] = fieldErr.Error()
		}
		return apierror.Validation(fields)
	}

	return apierror.Internal(err)
}
