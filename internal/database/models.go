package database

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned when a lookup matches no row.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicateEmail is returned when a user with the same email already exists.
	ErrDuplicateEmail = errors.New("email already registered")
)

type User struct {
	ID    uuid.UUID
	Name  string
	Email string
	// PasswordHash is empty for accounts created through an OAuth provider.
	PasswordHash string
	AvatarPath   string
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type CreateUserParams struct {
	Name         string
	Email        string
	PasswordHash string
}

type OAuthState struct {
	State     string
	Provider  string
	ExpiresAt time.Time
}

// Repository is the persistence surface used by the auth layer and the workers.
type Repository interface {
	CreateUser(ctx context.Context, arg CreateUserParams) (User, error)
	GetUserByID(ctx context.Context, id uuid.UUID) (User, error)
	GetUserByEmail(ctx context.Context, email string) (User, error)
	SetUserAvatar(ctx context.Context, id uuid.UUID, avatarPath string) error

	CreateOAuthState(ctx context.Context, arg OAuthState) error
	// ConsumeOAuthState deletes and returns the state row. Expiry is checked by the caller.
	ConsumeOAuthState(ctx context.Context, state string) (OAuthState, error)
	PurgeOAuthStates(ctx context.Context, before time.Time) (int64, error)

	Ping(ctx context.Context) error
	Close()
}
