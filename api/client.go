package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/tmorand/threddit/models"
)

const (
	defaultBaseURL = "http://localhost:7777/api/v1"
	defaultTimeout = 10 * time.Second
	defaultLimit   = 20 // default page size for list requests
)

// Error is the single error shape all transport and HTTP failures are
// normalized into. Status 0 means the request never reached the server.
type Error struct {
	Status  int
	Message string
	Err     error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsUnauthorized reports whether the server rejected the request with a 401
func (e *Error) IsUnauthorized() bool {
	return e.Status == http.StatusUnauthorized
}

// TokenProvider supplies the bearer token for outbound requests.
// An empty string means the request goes out unauthenticated.
type TokenProvider func() string

// Client is a typed client for the backend REST API. All business logic
// (scoring, persistence, membership) lives on the server; this client only
// issues calls and normalizes responses.
type Client struct {
	baseURL        string
	httpClient     *http.Client
	tokenProvider  TokenProvider
	onUnauthorized func()
	rateLimiter    *rate.Limiter
	log            *logrus.Logger
}

// NewClient creates a new API client. maxRequestsPerMinute bounds outbound
// traffic; tokenProvider may be nil for an always-anonymous client.
func NewClient(baseURL string, timeout time.Duration, maxRequestsPerMinute int, tokenProvider TokenProvider, log *logrus.Logger) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if maxRequestsPerMinute <= 0 {
		maxRequestsPerMinute = 600
	}

	requestsPerSecond := float64(maxRequestsPerMinute) / 60.0

	return &Client{
		baseURL:       baseURL,
		httpClient:    &http.Client{Timeout: timeout},
		tokenProvider: tokenProvider,
		rateLimiter:   rate.NewLimiter(rate.Limit(requestsPerSecond), maxRequestsPerMinute/10+1),
		log:           log,
	}
}

// SetUnauthorizedHandler registers a callback invoked whenever the server
// answers 401. The session layer uses this for global teardown.
func (c *Client) SetUnauthorizedHandler(fn func()) {
	c.onUnauthorized = fn
}

// do issues a single request and decodes the JSON response into out (when
// out is non-nil). Every failure comes back as an *Error.
func (c *Client) do(ctx context.Context, method, path string, body interface{}, out interface{}) error {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return &Error{Message: "request canceled while waiting for rate limiter", Err: err}
	}

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return &Error{Message: "failed to encode request body", Err: err}
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return &Error{Message: "failed to create request", Err: err}
	}

	req.Header.Set("Content-Type", "application/json")
	if c.tokenProvider != nil {
		if token := c.tokenProvider(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.WithFields(logrus.Fields{
			"method": method,
			"path":   path,
		}).WithError(err).Warn("Request failed before reaching the server")
		return &Error{Message: "network error - please check your connection", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		c.log.WithField("path", path).Warn("Server rejected credentials, tearing down session")
		if c.onUnauthorized != nil {
			c.onUnauthorized()
		}
		return &Error{Status: resp.StatusCode, Message: extractMessage(resp)}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		message := extractMessage(resp)
		c.log.WithFields(logrus.Fields{
			"method":      method,
			"path":        path,
			"status_code": resp.StatusCode,
			"message":     message,
		}).Error("Backend returned an error response")
		return &Error{Status: resp.StatusCode, Message: message}
	}

	if out == nil {
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if err == io.EOF {
			// empty 2xx body; leave out zeroed
			return nil
		}
		return &Error{Message: "failed to decode response", Err: err}
	}

	return nil
}

// extractMessage pulls the message field out of an error body, falling back
// to a generic "HTTP <status>" when the body has no usable message.
func extractMessage(resp *http.Response) string {
	raw, err := io.ReadAll(resp.Body)
	if err == nil && len(raw) > 0 {
		var body struct {
			Message string `json:"message"`
		}
		if err := json.Unmarshal(raw, &body); err == nil && body.Message != "" {
			return body.Message
		}
	}
	return fmt.Sprintf("HTTP %d", resp.StatusCode)
}

// pageEnvelope is the backend's paginated list shape
type pageEnvelope struct {
	Content json.RawMessage `json:"content"`
	Last    bool            `json:"last"`
}

// getPage fetches a paginated endpoint and normalizes the {content,last}
// envelope into a Page so callers never branch on response shape.
func getPage[T any](ctx context.Context, c *Client, path string) (models.Page[T], error) {
	var envelope pageEnvelope
	if err := c.do(ctx, http.MethodGet, path, nil, &envelope); err != nil {
		return models.Page[T]{}, err
	}

	page := models.Page[T]{HasMore: !envelope.Last}
	if len(envelope.Content) == 0 {
		return page, nil
	}
	if err := json.Unmarshal(envelope.Content, &page.Items); err != nil {
		return models.Page[T]{}, &Error{Message: "failed to decode page content", Err: err}
	}
	return page, nil
}

func pageQuery(page, size int) string {
	if size <= 0 {
		size = defaultLimit
	}
	return fmt.Sprintf("page=%d&size=%d", page, size)
}
