package storage

import (
	"context"
	"errors"

	"account_service/internal/models"
)

const (
	usersTable = "users"
)

var (
	ErrUserNotFound = errors.New("user not found")
	// ErrEmailExists is returned when the store's unique email constraint
	// rejects an insert.
	ErrEmailExists = errors.New("email already exists")
)

type Storage interface {
	CreateUser(ctx context.Context, user models.User) (models.User, error)
	GetUserByID(ctx context.Context, id string) (models.User, error)
	GetUserByEmail(ctx context.Context, email string) (models.User, error)
	ListUsers(ctx context.Context) ([]models.User, error)

	UpdatePassword(ctx context.Context, id, passwordHash string) error
	UpdateProfile(ctx context.Context, id string, upd models.ProfileUpdate) error
	UpdateRole(ctx context.Context, id string, role models.Role) error
	SoftDelete(ctx context.Context, id string) error

	Close()
}
