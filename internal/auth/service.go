package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gaev-art/gain-grid/internal/apiclient"
	"github.com/gaev-art/gain-grid/internal/database"
	"github.com/gaev-art/gain-grid/internal/forms"
	"github.com/gaev-art/gain-grid/internal/models"
	"github.com/gaev-art/gain-grid/internal/validation"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	DefaultSessionTTL       = 30 * 24 * time.Hour
	DefaultStateTTL         = 10 * time.Minute
	DefaultRegisterEndpoint = "/api/auth/register"

	notAuthenticated = "Not authenticated"
)

// TokenStore remembers revoked session tokens. services.TokenDenylist implements it.
type TokenStore interface {
	Revoke(ctx context.Context, tokenID string, ttl time.Duration) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

// AvatarImporter schedules copying a provider profile picture into storage.
type AvatarImporter interface {
	EnqueueAvatarImport(ctx context.Context, userID, pictureURL string) error
}

type Config struct {
	Users       UserStore
	Tokens      *JWTService
	Revocations TokenStore
	// Avatars is optional; without it provider pictures are not imported.
	Avatars   AvatarImporter
	API       *apiclient.Client
	Providers []OAuthProvider
	Logger    logrus.FieldLogger

	RegisterEndpoint string
	SessionTTL       time.Duration
	StateTTL         time.Duration
}

// CallbackParams are the query parameters of an OAuth callback.
type CallbackParams struct {
	State string
	Code  string
	Error string
}

// Service is the single entry point for sign-in, registration and sign-out.
// Its operations never return errors or panic: every outcome is a Result.
type Service struct {
	users       UserStore
	credentials *CredentialsProvider
	tokens      *JWTService
	revocations TokenStore
	avatars     AvatarImporter
	api         *apiclient.Client
	providers   map[string]OAuthProvider
	register    forms.Schema[RegistrationData]
	log         logrus.FieldLogger

	registerEndpoint string
	sessionTTL       time.Duration
	stateTTL         time.Duration
}

func NewService(cfg Config) *Service {
	log := cfg.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}
	s := &Service{
		users:            cfg.Users,
		credentials:      NewCredentialsProvider(cfg.Users),
		tokens:           cfg.Tokens,
		revocations:      cfg.Revocations,
		avatars:          cfg.Avatars,
		api:              cfg.API,
		providers:        make(map[string]OAuthProvider, len(cfg.Providers)),
		register:         forms.NewStructSchema[RegistrationData](),
		log:              log.WithField("component", "auth"),
		registerEndpoint: cfg.RegisterEndpoint,
		sessionTTL:       cfg.SessionTTL,
		stateTTL:         cfg.StateTTL,
	}
	for _, p := range cfg.Providers {
		s.providers[p.Name()] = p
	}
	if s.registerEndpoint == "" {
		s.registerEndpoint = DefaultRegisterEndpoint
	}
	if s.sessionTTL <= 0 {
		s.sessionTTL = DefaultSessionTTL
	}
	if s.stateTTL <= 0 {
		s.stateTTL = DefaultStateTTL
	}
	return s
}

// HasProvider reports whether an OAuth provider is configured under name.
func (s *Service) HasProvider(name string) bool {
	_, ok := s.providers[name]
	return ok
}

// Login signs in with email and password.
func (s *Service) Login(ctx context.Context, creds Credentials) (res Result) {
	defer s.guard("login", DefaultErrorMessage, &res)

	user, err := s.credentials.Authorize(ctx, creds)
	if err != nil {
		code := CodeOf(err)
		s.log.WithError(err).WithField("code", code).Warn("Credentials sign in rejected")
		return failedWith(code)
	}
	return s.startSession(user)
}

// BeginProviderLogin stores a fresh state value and returns the provider's
// authorization URL.
func (s *Service) BeginProviderLogin(ctx context.Context, providerName string) (authURL string, res Result) {
	defer s.guard("begin_provider_login", DefaultErrorMessage, &res)

	provider, ok := s.providers[providerName]
	if !ok {
		s.log.WithField("provider", providerName).Warn("Sign in requested for unconfigured provider")
		return "", failedWith(CodeConfiguration)
	}

	state := uuid.NewString()
	err := s.users.CreateOAuthState(ctx, database.OAuthState{
		State:     state,
		Provider:  provider.Name(),
		ExpiresAt: time.Now().Add(s.stateTTL),
	})
	if err != nil {
		s.log.WithError(err).Error("Failed to store OAuth state")
		return "", failedWith(CodeOAuthSignin)
	}
	return provider.AuthCodeURL(state), Succeeded(nil)
}

// LoginWithProvider completes an OAuth sign-in, creating the local user on
// first sign-in.
func (s *Service) LoginWithProvider(ctx context.Context, providerName string, params CallbackParams) (res Result) {
	defer s.guard("login_with_provider", DefaultErrorMessage, &res)
	log := s.log.WithField("provider", providerName)

	provider, ok := s.providers[providerName]
	if !ok {
		log.Warn("Callback for unconfigured provider")
		return failedWith(CodeConfiguration)
	}
	if params.Error != "" {
		log.WithField("error", params.Error).Warn("Provider reported an error")
		if params.Error == "access_denied" {
			return failedWith(CodeAccessDenied)
		}
		return failedWith(CodeOAuthCallback)
	}

	if err := s.consumeState(ctx, provider.Name(), params.State); err != nil {
		log.WithError(err).Warn("OAuth state rejected")
		return failedWith(CodeOAuthCallback)
	}

	token, err := provider.Exchange(ctx, params.Code)
	if err != nil {
		log.WithError(err).Warn("OAuth code exchange failed")
		return failedWith(CodeOAuthCallback)
	}
	info, err := provider.UserInfo(ctx, token)
	if err != nil {
		log.WithError(err).Warn("Failed to fetch OAuth profile")
		return failedWith(CodeOAuthSignin)
	}
	if info.Email == "" {
		log.Warn("OAuth profile has no verified email")
		return failedWith(CodeOAuthSignin)
	}

	user, created, err := s.findOrCreate(ctx, info)
	if err != nil {
		log.WithError(err).Error("Failed to create user for OAuth sign in")
		return failedWith(CodeOf(err))
	}
	if !user.IsActive {
		log.WithField("user_id", user.ID).Warn("Inactive user attempted OAuth sign in")
		return failedWith(CodeAccessDenied)
	}

	if info.Picture != "" && user.AvatarPath == "" && s.avatars != nil {
		if err := s.avatars.EnqueueAvatarImport(ctx, user.ID, info.Picture); err != nil {
			log.WithError(err).Warn("Failed to schedule avatar import")
		}
	}
	if created {
		log.WithField("user_id", user.ID).Info("Created user from OAuth profile")
	}
	return s.startSession(user)
}

func (s *Service) consumeState(ctx context.Context, provider, state string) error {
	if state == "" {
		return errors.New("missing state")
	}
	stored, err := s.users.ConsumeOAuthState(ctx, state)
	if err != nil {
		return err
	}
	if stored.Provider != provider {
		return fmt.Errorf("state issued for %s", stored.Provider)
	}
	if time.Now().After(stored.ExpiresAt) {
		return errors.New("state expired")
	}
	return nil
}

func (s *Service) findOrCreate(ctx context.Context, info OAuthUserInfo) (*models.UserCache, bool, error) {
	email := validation.NormalizeEmail(info.Email)

	user, err := s.users.GetUserByEmail(ctx, email)
	if err == nil {
		return user, false, nil
	}
	if !errors.Is(err, database.ErrNotFound) {
		return nil, false, providerError(CodeCallback, err)
	}

	name := strings.TrimSpace(info.Name)
	if name == "" {
		name = strings.SplitN(email, "@", 2)[0]
	}
	user, err = s.users.CreateUser(ctx, database.CreateUserParams{Name: name, Email: email})
	if errors.Is(err, database.ErrDuplicateEmail) {
		// Lost a race with a concurrent first sign-in.
		user, err = s.users.GetUserByEmail(ctx, email)
		if err != nil {
			return nil, false, providerError(CodeCallback, err)
		}
		return user, false, nil
	}
	if err != nil {
		return nil, false, providerError(CodeOAuthCreateAccount, err)
	}
	return user, true, nil
}

// Register validates data and posts it to the registration endpoint.
func (s *Service) Register(ctx context.Context, data RegistrationData) (res Result) {
	defer s.guard("register", RegistrationFailed, &res)

	if errs := s.register.Validate(data); len(errs) > 0 {
		return Failed(firstError(errs))
	}

	resp := apiclient.Post[models.Envelope](ctx, s.api, s.registerEndpoint, data, nil)
	if resp.Success && resp.Data.Success {
		return Succeeded(nil)
	}
	s.log.WithFields(logrus.Fields{"status": resp.StatusCode, "error": resp.Error}).Warn("Registration rejected")

	if resp.StatusCode == 0 && resp.Error != "" {
		return Failed(resp.Error)
	}
	if resp.Message != "" {
		return Failed(resp.Message)
	}
	return Failed(RegistrationFailed)
}

// Logout revokes the session token until it would have expired. An invalid
// or expired token is already signed out.
func (s *Service) Logout(ctx context.Context, token string) (res Result) {
	defer s.guard("logout", LogoutFailed, &res)

	claims, err := s.tokens.ValidateToken(token)
	if err != nil {
		return Succeeded(nil)
	}
	if err := s.revocations.Revoke(ctx, claims.ID, claims.TTL()); err != nil {
		s.log.WithError(err).WithField("user_id", claims.UserID).Error("Failed to revoke session")
		return Failed(LogoutFailed)
	}
	return Succeeded(nil)
}

// CurrentUser returns the user behind a session token.
func (s *Service) CurrentUser(ctx context.Context, token string) (res Result) {
	defer s.guard("current_user", SessionLookupFailed, &res)

	claims, err := s.Verify(ctx, token)
	if err != nil {
		return Failed(notAuthenticated)
	}
	user, err := s.users.GetUserByID(ctx, claims.UserID)
	if err != nil {
		if !errors.Is(err, database.ErrNotFound) {
			s.log.WithError(err).Error("Failed to load session user")
			return Failed(SessionLookupFailed)
		}
		return Failed(notAuthenticated)
	}
	if !user.IsActive {
		return Failed(notAuthenticated)
	}
	resp := user.ToResponse()
	return Succeeded(&resp)
}

func (s *Service) IsAuthenticated(ctx context.Context, token string) bool {
	return s.CurrentUser(ctx, token).Success
}

// Verify checks the token signature, expiry and revocation.
func (s *Service) Verify(ctx context.Context, token string) (*Claims, error) {
	claims, err := s.tokens.ValidateToken(token)
	if err != nil {
		return nil, err
	}
	revoked, err := s.revocations.IsRevoked(ctx, claims.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to check revocation: %w", err)
	}
	if revoked {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func (s *Service) startSession(user *models.UserCache) Result {
	id, err := uuid.Parse(user.ID)
	if err != nil {
		s.log.WithError(err).Error("Stored user has an invalid id")
		return Failed(DefaultErrorMessage)
	}
	token, expiresAt, err := s.tokens.GenerateToken(id, s.sessionTTL)
	if err != nil {
		s.log.WithError(err).Error("Failed to issue session token")
		return Failed(DefaultErrorMessage)
	}
	resp := user.ToResponse()
	return Succeeded(&resp).withSession(&Session{Token: token, ExpiresAt: expiresAt})
}

// guard turns a panic in an operation into the operation's default failure.
func (s *Service) guard(op, fallback string, res *Result) {
	if r := recover(); r != nil {
		s.log.WithFields(logrus.Fields{"operation": op, "panic": r}).Error("Recovered panic in auth operation")
		*res = Failed(fallback)
	}
}

func failedWith(code string) Result {
	res := Failed(MessageFor(code))
	res.Code = code
	return res
}

var registrationFieldOrder = []string{"name", "email", "password", "confirmPassword"}

func firstError(errs map[string]string) string {
	for _, field := range registrationFieldOrder {
		if msg, ok := errs[field]; ok {
			return msg
		}
	}
	for _, msg := range errs {
		return msg
	}
	return RegistrationFailed
}
