package models

import (
	"time"

	"github.com/gaev-art/gain-grid/internal/database"
)

// Cache-friendly DTOs

// UserCache represents a cached user object
type UserCache struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"password_hash"`
	Name         string    `json:"name"`
	AvatarPath   string    `json:"avatar_path,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	IsActive     bool      `json:"is_active"`
}

// HasPassword is false for accounts that only sign in through OAuth.
func (u *UserCache) HasPassword() bool {
	return u.PasswordHash != ""
}

// FromDatabaseUser converts database.User to UserCache
func FromDatabaseUser(user *database.User) *UserCache {
	if user == nil {
		return nil
	}
	return &UserCache{
		ID:           user.ID.String(),
		Email:        user.Email,
		PasswordHash: user.PasswordHash,
		Name:         user.Name,
		AvatarPath:   user.AvatarPath,
		CreatedAt:    user.CreatedAt,
		UpdatedAt:    user.UpdatedAt,
		IsActive:     user.IsActive,
	}
}

// ToResponse drops the password hash for API output.
func (u *UserCache) ToResponse() UserResponse {
	resp := UserResponse{
		ID:    u.ID,
		Email: u.Email,
		Name:  u.Name,
	}
	if u.AvatarPath != "" {
		resp.Image = "/api/users/me/avatar"
	}
	if !u.CreatedAt.IsZero() {
		resp.CreatedAt = u.CreatedAt.Format(time.RFC3339)
	}
	return resp
}
