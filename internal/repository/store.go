// Package repository persists user records.
//
// Every implementation enforces email uniqueness itself and reports a
// violation as model.ErrUserAlreadyExists, so callers can treat the
// ExistsByEmail pre-check as an optimization only.
package repository

import (
	"context"

	"authgate/internal/model"
)

type UserStore interface {
	Create(ctx context.Context, u model.User) error
	FindByEmail(ctx context.Context, email string) (model.User, error)
	FindByID(ctx context.Context, id string) (model.User, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	// List returns users ordered by creation time.
	List(ctx context.Context) ([]model.User, error)
}
