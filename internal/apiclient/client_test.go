package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type profile struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func newTestClient(t *testing.T, handler http.HandlerFunc, cfg Config) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	cfg.BaseURL = srv.URL
	return New(cfg, WithLogger(quietLogger()))
}

// failingTransport fails the first n round trips, then delegates.
type failingTransport struct {
	failures int32
	calls    atomic.Int32
	next     http.RoundTripper
}

func (f *failingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	n := f.calls.Add(1)
	if n <= f.failures {
		return nil, errors.New("connection refused")
	}
	return f.next.RoundTrip(req)
}

func TestGetDecodesJSON(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/users/1", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(profile{ID: "1", Name: "Sam"})
	}, Config{})

	resp := Get[profile](context.Background(), c, "/api/users/1", nil)
	require.True(t, resp.Success, resp.Error)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Sam", resp.Data.Name)
	assert.Empty(t, resp.Error)
}

func TestPostSendsBodyAndHeaders(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		assert.Equal(t, "yes", r.Header.Get("X-Extra"))

		var body profile
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "Alex", body.Name)
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":"2","name":"Alex"}`))
	}, Config{})
	c.SetAuthToken("tok")

	resp := Post[profile](context.Background(), c, "/api/users", profile{Name: "Alex"}, &RequestConfig{
		Headers: map[string]string{"X-Extra": "yes"},
	})
	require.True(t, resp.Success, resp.Error)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "2", resp.Data.ID)
}

func TestRemoveAuthToken(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusNoContent)
	}, Config{})
	c.SetAuthToken("tok")
	c.RemoveAuthToken()

	resp := Delete[struct{}](context.Background(), c, "/x", nil)
	assert.True(t, resp.Success)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestHTTPErrorUsesServerMessage(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"message":"Email already taken"}`))
	}, Config{RetryDelay: time.Millisecond})

	resp := Post[profile](context.Background(), c, "/register", map[string]string{"a": "b"}, nil)
	assert.False(t, resp.Success)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Email already taken", resp.Error)
	assert.Equal(t, "Email already taken", resp.Message)
	assert.Equal(t, int32(1), calls.Load(), "HTTP errors are not retried")
}

func TestHTTPErrorWithoutMessage(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}, Config{})

	resp := Get[profile](context.Background(), c, "/x", nil)
	assert.False(t, resp.Success)
	assert.Equal(t, "HTTP 500: Internal Server Error", resp.Error)
	assert.Empty(t, resp.Message)
}

func TestTimeoutIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	release := make(chan struct{})
	var once sync.Once
	t.Cleanup(func() { once.Do(func() { close(release) }) })

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}, Config{Timeout: 20 * time.Millisecond, RetryDelay: time.Millisecond})

	resp := Get[profile](context.Background(), c, "/slow", nil)
	once.Do(func() { close(release) })

	assert.False(t, resp.Success)
	assert.Equal(t, ErrRequestTimeout, resp.Error)
	assert.Equal(t, 0, resp.StatusCode)
	assert.Equal(t, int32(1), calls.Load())
}

func TestTransportErrorsAreRetried(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id":"1","name":"Sam"}`))
	}))
	defer srv.Close()

	transport := &failingTransport{failures: 2, next: http.DefaultTransport}
	c := New(Config{BaseURL: srv.URL, Retries: 3, RetryDelay: time.Millisecond},
		WithHTTPClient(&http.Client{Transport: transport}), WithLogger(quietLogger()))

	resp := Get[profile](context.Background(), c, "/", nil)
	require.True(t, resp.Success, resp.Error)
	assert.Equal(t, "Sam", resp.Data.Name)
	assert.Equal(t, int32(3), transport.calls.Load())
}

func TestRetriesExhausted(t *testing.T) {
	transport := &failingTransport{failures: 100}
	c := New(Config{BaseURL: "http://fitness.invalid", Retries: 2, RetryDelay: time.Millisecond},
		WithHTTPClient(&http.Client{Transport: transport}), WithLogger(quietLogger()))

	resp := Get[profile](context.Background(), c, "/", nil)
	assert.False(t, resp.Success)
	assert.Equal(t, ErrMaxRetriesExceeded, resp.Error)
	assert.Equal(t, int32(3), transport.calls.Load())
}

func TestPerRequestRetriesOverride(t *testing.T) {
	transport := &failingTransport{failures: 100}
	c := New(Config{BaseURL: "http://fitness.invalid", RetryDelay: time.Millisecond},
		WithHTTPClient(&http.Client{Transport: transport}), WithLogger(quietLogger()))

	resp := Get[profile](context.Background(), c, "/", &RequestConfig{Retries: -1})
	assert.Equal(t, ErrMaxRetriesExceeded, resp.Error)
	assert.Equal(t, int32(1), transport.calls.Load())
}

func TestBlobResponse(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write([]byte{0x89, 'P', 'N', 'G'})
	}, Config{})

	resp := Get[Blob](context.Background(), c, "/avatar.png", nil)
	require.True(t, resp.Success, resp.Error)
	assert.Equal(t, "image/png", resp.Data.ContentType)
	assert.Equal(t, []byte{0x89, 'P', 'N', 'G'}, resp.Data.Data)
}

func TestSetBaseURL(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}, Config{})
	original := c.BaseURL()

	c.SetBaseURL("http://other.invalid")
	assert.Equal(t, "http://other.invalid", c.BaseURL())

	c.SetBaseURL(original)
	assert.True(t, Get[struct{}](context.Background(), c, "/", nil).Success)
}

func TestInvalidJSONBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("not json"))
	}, Config{})

	resp := Get[profile](context.Background(), c, "/", nil)
	assert.False(t, resp.Success)
	assert.Contains(t, resp.Error, "invalid response body")
}

func TestDefaults(t *testing.T) {
	c := New(Config{})
	assert.Equal(t, DefaultTimeout, c.timeout)
	assert.Equal(t, DefaultRetries, c.retries)
	assert.Equal(t, DefaultRetryDelay, c.retryDelay)

	c = New(Config{Retries: -1})
	assert.Equal(t, 0, c.retries)
}
