package auth

import (
	"time"

	"github.com/gaev-art/gain-grid/internal/models"
)

// Credentials is the email/password pair handed to the credentials provider.
type Credentials = models.LoginRequest

// RegistrationData is validated before it is sent to the registration endpoint.
type RegistrationData = models.RegisterRequest

type User = models.UserResponse

type Session struct {
	Token     string
	ExpiresAt time.Time
}

// Result is the outcome of every Service operation. A failed Result always
// carries an Error; a successful one never does.
type Result struct {
	Success bool
	Error   string
	// Code is the provider error code behind Error, when there is one.
	Code    string
	User    *User
	Session *Session
}

func Succeeded(user *User) Result {
	return Result{Success: true, User: user}
}

// Failed builds a failure. An empty message becomes DefaultErrorMessage.
func Failed(message string) Result {
	if message == "" {
		message = DefaultErrorMessage
	}
	return Result{Error: message}
}

func (r Result) withSession(s *Session) Result {
	r.Session = s
	return r
}
