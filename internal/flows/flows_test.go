package flows

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gaev-art/gain-grid/internal/auth"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingNavigator struct {
	pushed    []string
	refreshes int
}

func (n *recordingNavigator) Push(path string) { n.pushed = append(n.pushed, path) }
func (n *recordingNavigator) Refresh()         { n.refreshes++ }

type stubAuth struct {
	login    auth.Result
	provider auth.Result
	logout   auth.Result
	register auth.Result

	sawLoading bool
	flow       interface{ IsLoading() bool }
}

func (s *stubAuth) observe() {
	if s.flow != nil {
		s.sawLoading = s.flow.IsLoading()
	}
}

func (s *stubAuth) Login(context.Context, auth.Credentials) auth.Result {
	s.observe()
	return s.login
}

func (s *stubAuth) LoginWithProvider(context.Context, string, auth.CallbackParams) auth.Result {
	s.observe()
	return s.provider
}

func (s *stubAuth) Logout(context.Context, string) auth.Result {
	s.observe()
	return s.logout
}

func (s *stubAuth) Register(context.Context, auth.RegistrationData) auth.Result {
	s.observe()
	return s.register
}

func TestSignInSuccessNavigatesToDashboard(t *testing.T) {
	stub := &stubAuth{login: auth.Succeeded(&auth.User{ID: "1"})}
	nav := &recordingNavigator{}
	flow := NewSignIn(stub, nav)
	stub.flow = flow

	res := flow.SignIn(context.Background(), auth.Credentials{Email: "a@b.co", Password: "x"})
	assert.True(t, res.Success)
	assert.Nil(t, flow.Error())
	assert.Equal(t, []string{DashboardPath}, nav.pushed)
	assert.Equal(t, 1, nav.refreshes)
	assert.True(t, stub.sawLoading)
	assert.False(t, flow.IsLoading())
}

func TestSignInFailureSetsErrorWithoutNavigation(t *testing.T) {
	stub := &stubAuth{login: auth.Failed("Invalid email or password")}
	nav := &recordingNavigator{}
	flow := NewSignIn(stub, nav)

	flow.SignIn(context.Background(), auth.Credentials{})
	require.NotNil(t, flow.Error())
	assert.Equal(t, AuthError{Message: "Invalid email or password", Code: CodeAuth}, *flow.Error())
	assert.Empty(t, nav.pushed)
	assert.Zero(t, nav.refreshes)

	flow.ClearError()
	assert.Nil(t, flow.Error())
}

func TestNewAttemptClearsPreviousError(t *testing.T) {
	stub := &stubAuth{login: auth.Failed("nope")}
	flow := NewSignIn(stub, &recordingNavigator{})

	flow.SignIn(context.Background(), auth.Credentials{})
	require.NotNil(t, flow.Error())

	stub.login = auth.Succeeded(nil)
	flow.SignIn(context.Background(), auth.Credentials{})
	assert.Nil(t, flow.Error())
}

func TestSignInWithGoogleFailure(t *testing.T) {
	stub := &stubAuth{provider: auth.Failed("OAuth callback failed")}
	nav := &recordingNavigator{}
	flow := NewSignIn(stub, nav)

	flow.SignInWithGoogle(context.Background(), auth.ProviderGoogle, auth.CallbackParams{})
	require.NotNil(t, flow.Error())
	assert.Equal(t, CodeGoogleAuth, flow.Error().Code)
	assert.Equal(t, "OAuth callback failed", flow.Error().Message)
	assert.Empty(t, nav.pushed)
}

func TestSignOut(t *testing.T) {
	stub := &stubAuth{logout: auth.Succeeded(nil)}
	nav := &recordingNavigator{}
	flow := NewSignIn(stub, nav)

	flow.SignOut(context.Background(), "token")
	assert.Equal(t, []string{LoginPath}, nav.pushed)
	assert.Equal(t, 1, nav.refreshes)

	stub.logout = auth.Failed("Logout failed")
	nav = &recordingNavigator{}
	flow = NewSignIn(stub, nav)
	flow.SignOut(context.Background(), "token")
	assert.Equal(t, &AuthError{Message: "Logout failed", Code: CodeLogout}, flow.Error())
	assert.Empty(t, nav.pushed)
}

func TestRegisterFlow(t *testing.T) {
	stub := &stubAuth{register: auth.Succeeded(nil)}
	nav := &recordingNavigator{}
	flow := NewRegister(stub, nav)
	stub.flow = flow

	flow.Register(context.Background(), auth.RegistrationData{})
	assert.Equal(t, []string{RegistrationSuccessPath}, nav.pushed)
	assert.Zero(t, nav.refreshes)
	assert.True(t, stub.sawLoading)
	assert.False(t, flow.IsLoading())
	assert.Contains(t, RegistrationSuccessPath, "/auth/login?message=Registration+successful")

	stub.register = auth.Failed("Email already taken")
	nav = &recordingNavigator{}
	flow = NewRegister(stub, nav)
	flow.Register(context.Background(), auth.RegistrationData{})
	assert.Equal(t, &AuthError{Message: "Email already taken", Code: CodeRegistration}, flow.Error())
	assert.Empty(t, nav.pushed)
}

func TestHTMXNavigator(t *testing.T) {
	app := fiber.New()
	app.Post("/go", func(c *fiber.Ctx) error {
		nav := NewHTMXNavigator(c)
		assert.False(t, nav.Redirected())
		nav.Push(DashboardPath)
		nav.Refresh()
		assert.True(t, nav.Redirected())
		return nav.Finish()
	})
	app.Post("/refresh", func(c *fiber.Ctx) error {
		nav := NewHTMXNavigator(c)
		nav.Refresh()
		return nav.Finish()
	})

	req := httptest.NewRequest(http.MethodPost, "/go", nil)
	req.Header.Set("HX-Request", "true")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, DashboardPath, resp.Header.Get("HX-Redirect"))

	resp, err = app.Test(httptest.NewRequest(http.MethodPost, "/go", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, DashboardPath, resp.Header.Get("Location"))

	req = httptest.NewRequest(http.MethodPost, "/refresh", nil)
	req.Header.Set("HX-Request", "true")
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, "true", resp.Header.Get("HX-Refresh"))
}
