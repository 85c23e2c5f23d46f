package auth

import (
	"errors"
	"fmt"
)

// Provider error codes. They travel in redirects (/auth/error?error=<code>)
// and are turned into user-facing text by MessageFor.
const (
	CodeCredentialsSignin  = "CredentialsSignin"
	CodeAccessDenied       = "AccessDenied"
	CodeVerification       = "Verification"
	CodeConfiguration      = "Configuration"
	CodeOAuthSignin        = "OAuthSignin"
	CodeOAuthCallback      = "OAuthCallback"
	CodeOAuthCreateAccount = "OAuthCreateAccount"
	CodeEmailCreateAccount = "EmailCreateAccount"
	CodeCallback           = "Callback"
)

const (
	DefaultErrorMessage      = "Authentication failed"
	RegistrationFailed       = "Registration failed"
	LogoutFailed             = "Logout failed"
	GoogleSignInFailed       = "Google sign in failed"
	SessionLookupFailed      = "Failed to load session"
	defaultProviderErrorCode = "Default"
)

var messages = map[string]string{
	CodeCredentialsSignin:  "Invalid email or password",
	CodeAccessDenied:       "Access denied",
	CodeVerification:       "Verification failed",
	CodeConfiguration:      "Server configuration error",
	CodeOAuthSignin:        "OAuth sign in failed",
	CodeOAuthCallback:      "OAuth callback failed",
	CodeOAuthCreateAccount: "OAuth account creation failed",
	CodeEmailCreateAccount: "Email account creation failed",
	CodeCallback:           "Authentication callback failed",
}

// MessageFor maps a provider error code to a user-facing message.
// Unknown codes get DefaultErrorMessage.
func MessageFor(code string) string {
	if msg, ok := messages[code]; ok {
		return msg
	}
	return DefaultErrorMessage
}

// ProviderError is a rejection reported by a sign-in provider.
type ProviderError struct {
	Code string
	Err  error
}

func (e *ProviderError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Code, e.Err)
	}
	return e.Code
}

func (e *ProviderError) Unwrap() error { return e.Err }

func providerError(code string, err error) *ProviderError {
	return &ProviderError{Code: code, Err: err}
}

// CodeOf returns the provider code carried by err, or "Default".
func CodeOf(err error) string {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Code
	}
	return defaultProviderErrorCode
}
