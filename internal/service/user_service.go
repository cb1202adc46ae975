package service

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"usergate/api/internal/models"
	"usergate/api/internal/repository"
)

var ErrSelfDelete = errors.New("cannot delete own account")

const (
	defaultPage  = 1
	defaultLimit = 10
	maxLimit     = 100
)

type UserService struct {
	store repository.Store
	log   zerolog.Logger
}

func NewUserService(store repository.Store, log zerolog.Logger) *UserService {
	return &UserService{store: store, log: log}
}

type Pagination struct {
	Total      int
	Page       int
	Limit      int
	TotalPages int
}

type UserPage struct {
	Users      []models.UserWithRoles
	Pagination Pagination
}

// List returns one page of the registry with role names attached. A page
// beyond the available rows yields an empty list; TotalPages never drops
// below one.
func (s *UserService) List(ctx context.Context, page, limit int) (UserPage, error) {
	if page < 1 {
		page = defaultPage
	}
	if limit < 1 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	offset := (page - 1) * limit

	total, err := s.store.CountUsers(ctx)
	if err != nil {
		return UserPage{}, err
	}

	users, err := s.store.ListUsers(ctx, limit, offset)
	if err != nil {
		return UserPage{}, err
	}

	totalPages := (total + limit - 1) / limit
	if totalPages < 1 {
		totalPages = 1
	}

	return UserPage{
		Users: users,
		Pagination: Pagination{
			Total:      total,
			Page:       page,
			Limit:      limit,
			TotalPages: totalPages,
		},
	}, nil
}

// Update applies a partial profile change; nil fields keep stored values.
func (s *UserService) Update(ctx context.Context, id string, upd models.UserUpdate) (models.User, error) {
	return s.store.UpdateUser(ctx, id, upd)
}

// Delete removes a user. Self-deletion is refused before storage is touched,
// whatever permissions the actor holds.
func (s *UserService) Delete(ctx context.Context, actor models.Identity, id string) (models.User, error) {
	if id == actor.ID {
		return models.User{}, ErrSelfDelete
	}
	return s.store.DeleteUser(ctx, id)
}

// Permissions resolves the union of permissions reachable through every role
// assigned to the user.
func (s *UserService) Permissions(ctx context.Context, userID string) ([]models.Permission, error) {
	return s.store.PermissionsForUser(ctx, userID)
}
