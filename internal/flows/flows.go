// Package flows binds the auth service to a single view: it keeps the last
// error and a loading flag, and navigates once an operation succeeds.
package flows

import (
	"context"
	"net/url"
	"sync"

	"github.com/gaev-art/gain-grid/internal/auth"
)

// Error codes reported through AuthError.
const (
	CodeAuth         = "AUTH_ERROR"
	CodeGoogleAuth   = "GOOGLE_AUTH_ERROR"
	CodeLogout       = "LOGOUT_ERROR"
	CodeRegistration = "REGISTRATION_ERROR"
)

const (
	DashboardPath = "/dashboard"
	LoginPath     = "/auth/login"

	RegistrationSuccessMessage = "Registration successful! Please sign in."
)

// RegistrationSuccessPath is the login page with the confirmation message.
var RegistrationSuccessPath = LoginPath + "?" + url.Values{"message": {RegistrationSuccessMessage}}.Encode()

type AuthError struct {
	Message string
	Code    string
}

// Navigator moves the client to another page once an operation succeeds.
type Navigator interface {
	Push(path string)
	Refresh()
}

type Authenticator interface {
	Login(ctx context.Context, creds auth.Credentials) auth.Result
	LoginWithProvider(ctx context.Context, provider string, params auth.CallbackParams) auth.Result
	Logout(ctx context.Context, token string) auth.Result
}

type Registrar interface {
	Register(ctx context.Context, data auth.RegistrationData) auth.Result
}

// state is the error and loading flag shared by the flows.
type state struct {
	mu      sync.Mutex
	err     *AuthError
	loading bool
}

func (s *state) Error() *AuthError {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err == nil {
		return nil
	}
	e := *s.err
	return &e
}

func (s *state) IsLoading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

func (s *state) ClearError() {
	s.mu.Lock()
	s.err = nil
	s.mu.Unlock()
}

func (s *state) begin() {
	s.mu.Lock()
	s.err = nil
	s.loading = true
	s.mu.Unlock()
}

func (s *state) end(res auth.Result, fallback, code string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading = false
	if res.Success {
		return
	}
	msg := res.Error
	if msg == "" {
		msg = fallback
	}
	s.err = &AuthError{Message: msg, Code: code}
}

// SignIn drives the login page: credentials, provider callback and sign-out.
type SignIn struct {
	state
	auth Authenticator
	nav  Navigator
}

func NewSignIn(a Authenticator, nav Navigator) *SignIn {
	return &SignIn{auth: a, nav: nav}
}

func (f *SignIn) SignIn(ctx context.Context, creds auth.Credentials) auth.Result {
	f.begin()
	res := f.auth.Login(ctx, creds)
	f.end(res, auth.DefaultErrorMessage, CodeAuth)
	if res.Success {
		f.nav.Push(DashboardPath)
		f.nav.Refresh()
	}
	return res
}

// SignInWithGoogle completes the provider callback.
func (f *SignIn) SignInWithGoogle(ctx context.Context, provider string, params auth.CallbackParams) auth.Result {
	f.begin()
	res := f.auth.LoginWithProvider(ctx, provider, params)
	f.end(res, "Google authentication failed", CodeGoogleAuth)
	if res.Success {
		f.nav.Push(DashboardPath)
		f.nav.Refresh()
	}
	return res
}

func (f *SignIn) SignOut(ctx context.Context, token string) auth.Result {
	f.begin()
	res := f.auth.Logout(ctx, token)
	f.end(res, auth.LogoutFailed, CodeLogout)
	if res.Success {
		f.nav.Push(LoginPath)
		f.nav.Refresh()
	}
	return res
}

// Register drives the registration page.
type Register struct {
	state
	registrar Registrar
	nav       Navigator
}

func NewRegister(r Registrar, nav Navigator) *Register {
	return &Register{registrar: r, nav: nav}
}

func (f *Register) Register(ctx context.Context, data auth.RegistrationData) auth.Result {
	f.begin()
	res := f.registrar.Register(ctx, data)
	f.end(res, auth.RegistrationFailed, CodeRegistration)
	if res.Success {
		f.nav.Push(RegistrationSuccessPath)
	}
	return res
}
