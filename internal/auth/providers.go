package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/gaev-art/gain-grid/internal/database"
	"github.com/gaev-art/gain-grid/internal/models"
	"github.com/gaev-art/gain-grid/internal/validation"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/oauth2"
)

// UserStore is the user and OAuth state persistence the auth layer needs.
// services.CachedRepository implements it.
type UserStore interface {
	GetUserByID(ctx context.Context, id uuid.UUID) (*models.UserCache, error)
	GetUserByEmail(ctx context.Context, email string) (*models.UserCache, error)
	CreateUser(ctx context.Context, arg database.CreateUserParams) (*models.UserCache, error)
	CreateOAuthState(ctx context.Context, arg database.OAuthState) error
	ConsumeOAuthState(ctx context.Context, state string) (database.OAuthState, error)
}

// CredentialsProvider signs users in with email and password.
type CredentialsProvider struct {
	users UserStore
}

func NewCredentialsProvider(users UserStore) *CredentialsProvider {
	return &CredentialsProvider{users: users}
}

// Authorize returns the user for creds. Every rejection is a
// CredentialsSignin ProviderError so callers cannot tell which check failed.
func (p *CredentialsProvider) Authorize(ctx context.Context, creds Credentials) (*models.UserCache, error) {
	if creds.Email == "" || creds.Password == "" {
		return nil, providerError(CodeCredentialsSignin, errors.New("missing credentials"))
	}

	user, err := p.users.GetUserByEmail(ctx, validation.NormalizeEmail(creds.Email))
	if errors.Is(err, database.ErrNotFound) {
		return nil, providerError(CodeCredentialsSignin, errors.New("unknown email"))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	switch {
	case !user.IsActive:
		return nil, providerError(CodeCredentialsSignin, errors.New("user is inactive"))
	case !user.HasPassword():
		return nil, providerError(CodeCredentialsSignin, errors.New("account has no password"))
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(creds.Password)); err != nil {
		return nil, providerError(CodeCredentialsSignin, err)
	}
	return user, nil
}

// OAuthUserInfo is the profile returned by an OAuth provider.
type OAuthUserInfo struct {
	ID      string
	Email   string
	Name    string
	Picture string
}

// OAuthProvider is an authorization-code sign-in provider.
type OAuthProvider interface {
	Name() string
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (*oauth2.Token, error)
	UserInfo(ctx context.Context, token *oauth2.Token) (OAuthUserInfo, error)
}
