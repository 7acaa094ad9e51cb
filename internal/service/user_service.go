package service

import (
	"context"
	"errors"

	"authgate/internal/model"
	"authgate/internal/repository"
	"authgate/pkg/apierror"
)

// UserService serves the read-only user directory.
type UserService struct {
	users repository.UserStore
}

func NewUserService(users repository.UserStore) *UserService {
	return &UserService{users: users}
}

func (s *UserService) FindAll(ctx context.Context) (model.UserList, error) {
	users, err := s.users.List(ctx)
	if err != nil {
		return model.UserList{}, internalError(ctx, "list users", err)
	}
	return model.UserList{Users: model.PublicUsers(users)}, nil
}

func (s *UserService) FindByID(ctx context.Context, req model.FindByIDRequest) (model.PublicUser, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return model.PublicUser{}, err
	}

	user, err := s.users.FindByID(ctx, req.ID)
	if errors.Is(err, model.ErrUserNotFound) {
		return model.PublicUser{}, apierror.New(apierror.KindUserNotFound)
	}
	if err != nil {
		return model.PublicUser{}, internalError(ctx, "find user by id", err)
	}
	return user.ToPublic(), nil
}
