// AngelaMos | 2026
// client.go

package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/carterperez-dev/harvest-table/internal/core"
)

var (
	ErrNoSession          = errors.New("no active session")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailNotVerified   = errors.New("email address has not been verified")
)

// APIError is a non-2xx response decoded from the API error envelope.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d %s: %s", e.Status, e.Code, e.Message)
}

func (e *APIError) Unwrap() error {
	switch {
	case e.Code == "EMAIL_NOT_VERIFIED":
		return ErrEmailNotVerified
	case e.Status == http.StatusUnauthorized:
		return core.ErrUnauthorized
	case e.Status == http.StatusForbidden:
		return core.ErrForbidden
	case e.Status == http.StatusNotFound:
		return core.ErrNotFound
	case e.Status == http.StatusConflict:
		return core.ErrConflict
	case e.Status == http.StatusBadRequest, e.Status == http.StatusUnprocessableEntity:
		return core.ErrInvalidInput
	default:
		return nil
	}
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *core.ErrorBody `json:"error"`
}

// Client talks to the storefront API and owns the current session. Auth
// operations and auth-change callbacks run under a single auth lock, so a
// callback must never call back into an authenticated Client method.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
	storage    SessionStorage

	refreshMargin   time.Duration
	refreshInterval time.Duration

	authMu  sync.Mutex
	session *Session
	loaded  bool

	subMu   sync.Mutex
	subs    map[int]AuthChangeFunc
	nextSub int

	stopOnce    sync.Once
	stopRefresh chan struct{}
	refreshDone chan struct{}
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// WithSessionStorage persists the session between processes.
func WithSessionStorage(s SessionStorage) Option {
	return func(c *Client) { c.storage = s }
}

// WithRefreshMargin sets how long before expiry the access token is
// rotated.
func WithRefreshMargin(d time.Duration) Option {
	return func(c *Client) { c.refreshMargin = d }
}

func WithRefreshInterval(d time.Duration) Option {
	return func(c *Client) { c.refreshInterval = d }
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:         strings.TrimRight(baseURL, "/"),
		httpClient:      &http.Client{Timeout: 15 * time.Second},
		logger:          slog.Default(),
		refreshMargin:   time.Minute,
		refreshInterval: 15 * time.Second,
		subs:            make(map[int]AuthChangeFunc),
		stopRefresh:     make(chan struct{}),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

func (c *Client) do(
	ctx context.Context,
	method, path, token string,
	body, out any,
) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s %s: %w", method, path, err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build %s %s: %w", method, path, err)
	}

	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent {
		return nil
	}

	var env envelope
	if err := json.NewDecoder(io.LimitReader(resp.Body, 4<<20)).Decode(&env); err != nil {
		if resp.StatusCode >= 300 {
			return &APIError{Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
		}
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}

	if resp.StatusCode >= 300 || !env.Success {
		apiErr := &APIError{Status: resp.StatusCode}
		if env.Error != nil {
			apiErr.Code = env.Error.Code
			apiErr.Message = env.Error.Message
		}
		return apiErr
	}

	if out == nil || len(env.Data) == 0 {
		return nil
	}

	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("decode %s %s data: %w", method, path, err)
	}

	return nil
}

// authed runs an API call with the current access token.
func (c *Client) authed(
	ctx context.Context,
	method, path string,
	body, out any,
) error {
	session, err := c.GetSession(ctx)
	if err != nil {
		return err
	}
	if session == nil {
		return ErrNoSession
	}

	return c.do(ctx, method, path, session.AccessToken, body, out)
}
