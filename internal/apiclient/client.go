// Package apiclient is a JSON HTTP client that reports every outcome as a
// Response envelope instead of an error.
//
// Requests run under a per-call timeout. Transport failures (no HTTP response
// at all) are retried a bounded number of times with a fixed delay; HTTP
// error statuses and timeouts are returned to the caller immediately.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Error messages surfaced in Response.Error.
const (
	ErrRequestTimeout     = "Request timeout"
	ErrMaxRetriesExceeded = "Max retries exceeded"
)

const (
	DefaultTimeout    = 10 * time.Second
	DefaultRetries    = 3
	DefaultRetryDelay = time.Second
)

// Response is the envelope returned for every call. Success=false always
// carries a non-empty Error; Message holds the server supplied message, if any.
type Response[T any] struct {
	Success    bool   `json:"success"`
	Data       T      `json:"data,omitempty"`
	Error      string `json:"error,omitempty"`
	Message    string `json:"message,omitempty"`
	StatusCode int    `json:"-"`
}

// Blob receives the raw body when used as the Response type parameter.
type Blob struct {
	ContentType string
	Data        []byte
}

// Config is owned by the caller. Zero values fall back to the package
// defaults; a negative Retries disables retrying.
type Config struct {
	BaseURL        string
	DefaultHeaders map[string]string
	Timeout        time.Duration
	Retries        int
	RetryDelay     time.Duration
}

// RequestConfig overrides the client configuration for a single call.
type RequestConfig struct {
	Headers    map[string]string
	Timeout    time.Duration
	Retries    int
	RetryDelay time.Duration
}

type Client struct {
	mu         sync.RWMutex
	baseURL    string
	headers    map[string]string
	timeout    time.Duration
	retries    int
	retryDelay time.Duration

	http *http.Client
	log  logrus.FieldLogger
}

type Option func(*Client)

// WithHTTPClient replaces the underlying *http.Client. Its Timeout should be
// zero; timeouts are applied per request.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

func WithLogger(log logrus.FieldLogger) Option {
	return func(c *Client) { c.log = log }
}

func New(cfg Config, opts ...Option) *Client {
	c := &Client{
		baseURL:    cfg.BaseURL,
		headers:    map[string]string{"Content-Type": "application/json"},
		timeout:    cfg.Timeout,
		retries:    cfg.Retries,
		retryDelay: cfg.RetryDelay,
		http:       &http.Client{},
		log:        logrus.StandardLogger(),
	}
	for k, v := range cfg.DefaultHeaders {
		c.headers[k] = v
	}
	if c.timeout <= 0 {
		c.timeout = DefaultTimeout
	}
	if c.retries == 0 {
		c.retries = DefaultRetries
	} else if c.retries < 0 {
		c.retries = 0
	}
	if c.retryDelay <= 0 {
		c.retryDelay = DefaultRetryDelay
	}
	for _, opt := range opts {
		opt(c)
	}
	c.log = c.log.WithField("component", "apiclient")
	return c
}

// SetAuthToken attaches a bearer token to every subsequent request.
func (c *Client) SetAuthToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.headers["Authorization"] = "Bearer " + token
}

func (c *Client) RemoveAuthToken() {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.headers, "Authorization")
}

func (c *Client) SetBaseURL(url string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.baseURL = url
}

func (c *Client) BaseURL() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.baseURL
}

// plan is the configuration of one call, captured when the call starts.
type plan struct {
	url        string
	method     string
	headers    map[string]string
	body       []byte
	timeout    time.Duration
	retries    int
	retryDelay time.Duration
}

func (c *Client) plan(method, endpoint string, body []byte, rc *RequestConfig) plan {
	c.mu.RLock()
	p := plan{
		url:        c.baseURL + endpoint,
		method:     method,
		headers:    make(map[string]string, len(c.headers)),
		body:       body,
		timeout:    c.timeout,
		retries:    c.retries,
		retryDelay: c.retryDelay,
	}
	for k, v := range c.headers {
		p.headers[k] = v
	}
	c.mu.RUnlock()

	if rc == nil {
		return p
	}
	for k, v := range rc.Headers {
		p.headers[k] = v
	}
	if rc.Timeout > 0 {
		p.timeout = rc.Timeout
	}
	if rc.Retries > 0 {
		p.retries = rc.Retries
	} else if rc.Retries < 0 {
		p.retries = 0
	}
	if rc.RetryDelay > 0 {
		p.retryDelay = rc.RetryDelay
	}
	return p
}

// rawResponse is a fully read HTTP response.
type rawResponse struct {
	status      int
	statusText  string
	contentType string
	body        []byte
}

var errTimeout = errors.New("request timeout")

func (c *Client) attempt(ctx context.Context, p plan) (*rawResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	var body io.Reader
	if p.body != nil {
		body = bytes.NewReader(p.body)
	}
	req, err := http.NewRequestWithContext(ctx, p.method, p.url, body)
	if err != nil {
		return nil, &permanentError{err: err}
	}
	for k, v := range p.headers {
		req.Header.Set(k, v)
	}
	if p.body == nil {
		req.Header.Del("Content-Type")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, errTimeout
		}
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, errTimeout
		}
		return nil, err
	}

	return &rawResponse{
		status:      resp.StatusCode,
		statusText:  statusText(resp),
		contentType: resp.Header.Get("Content-Type"),
		body:        data,
	}, nil
}

// permanentError marks failures that a retry cannot fix, such as a malformed URL.
type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Do performs one logical request, retrying transport failures.
func Do[T any](ctx context.Context, c *Client, method, endpoint string, payload any, rc *RequestConfig) Response[T] {
	var body []byte
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return failure[T](0, fmt.Sprintf("failed to encode request body: %v", err), "")
		}
		body = encoded
	}

	p := c.plan(method, endpoint, body, rc)
	log := c.log.WithFields(logrus.Fields{"method": method, "url": p.url})

	for attempt := 0; ; attempt++ {
		raw, err := c.attempt(ctx, p)
		if err == nil {
			return decode[T](raw)
		}

		if errors.Is(err, errTimeout) {
			log.Warn("Request timed out")
			return failure[T](0, ErrRequestTimeout, "")
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			if errors.Is(ctxErr, context.DeadlineExceeded) {
				return failure[T](0, ErrRequestTimeout, "")
			}
			return failure[T](0, ctxErr.Error(), "")
		}
		var perm *permanentError
		if errors.As(err, &perm) {
			log.WithError(err).Error("Request could not be built")
			return failure[T](0, err.Error(), "")
		}

		if attempt >= p.retries {
			log.WithError(err).Errorf("Giving up after %d attempts", attempt+1)
			return failure[T](0, ErrMaxRetriesExceeded, "")
		}
		log.WithError(err).Warnf("Transport error, retrying in %s (attempt %d of %d)", p.retryDelay, attempt+1, p.retries)

		timer := time.NewTimer(p.retryDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return failure[T](0, ErrRequestTimeout, "")
			}
			return failure[T](0, ctx.Err().Error(), "")
		case <-timer.C:
		}
	}
}

func Get[T any](ctx context.Context, c *Client, endpoint string, rc *RequestConfig) Response[T] {
	return Do[T](ctx, c, http.MethodGet, endpoint, nil, rc)
}

func Post[T any](ctx context.Context, c *Client, endpoint string, payload any, rc *RequestConfig) Response[T] {
	return Do[T](ctx, c, http.MethodPost, endpoint, payload, rc)
}

func Put[T any](ctx context.Context, c *Client, endpoint string, payload any, rc *RequestConfig) Response[T] {
	return Do[T](ctx, c, http.MethodPut, endpoint, payload, rc)
}

func Patch[T any](ctx context.Context, c *Client, endpoint string, payload any, rc *RequestConfig) Response[T] {
	return Do[T](ctx, c, http.MethodPatch, endpoint, payload, rc)
}

func Delete[T any](ctx context.Context, c *Client, endpoint string, rc *RequestConfig) Response[T] {
	return Do[T](ctx, c, http.MethodDelete, endpoint, nil, rc)
}

func decode[T any](raw *rawResponse) Response[T] {
	if raw.status < 200 || raw.status > 299 {
		message := errorMessage(raw.body)
		errText := message
		if errText == "" {
			errText = fmt.Sprintf("HTTP %d: %s", raw.status, raw.statusText)
		}
		return failure[T](raw.status, errText, message)
	}

	resp := Response[T]{Success: true, StatusCode: raw.status}
	if blob, ok := any(&resp.Data).(*Blob); ok {
		blob.ContentType = raw.contentType
		blob.Data = raw.body
		return resp
	}
	if len(bytes.TrimSpace(raw.body)) == 0 {
		return resp
	}
	if err := json.Unmarshal(raw.body, &resp.Data); err != nil {
		return failure[T](raw.status, fmt.Sprintf("invalid response body: %v", err), "")
	}
	return resp
}

// errorMessage extracts "message" (or "error") from a JSON error body.
func errorMessage(body []byte) string {
	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}
	if payload.Message != "" {
		return payload.Message
	}
	return payload.Error
}

func failure[T any](status int, errText, message string) Response[T] {
	if errText == "" {
		errText = "Unknown error occurred"
	}
	return Response[T]{StatusCode: status, Error: errText, Message: message}
}

func statusText(resp *http.Response) string {
	text := strings.TrimSpace(strings.TrimPrefix(resp.Status, strconv.Itoa(resp.StatusCode)))
	if text == "" {
		text = http.StatusText(resp.StatusCode)
	}
	return text
}
