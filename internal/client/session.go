// AngelaMos | 2026
// session.go

package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/carterperez-dev/harvest-table/internal/auth"
	"github.com/carterperez-dev/harvest-table/internal/core"
)

type Event string

const (
	EventInitialSession Event = "INITIAL_SESSION"
	EventSignedIn       Event = "SIGNED_IN"
	EventSignedOut      Event = "SIGNED_OUT"
	EventTokenRefreshed Event = "TOKEN_REFRESHED"
)

type User struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	FullName      string `json:"full_name"`
	EmailVerified bool   `json:"email_verified"`
}

type Session struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
	User         User      `json:"user"`
}

func (s *Session) clone() *Session {
	if s == nil {
		return nil
	}
	cp := *s
	return &cp
}

func (s *Session) expiresWithin(d time.Duration) bool {
	return time.Until(s.ExpiresAt) <= d
}

// AuthChangeFunc receives every auth event in emission order. session is
// nil for EventSignedOut and for EventInitialSession without a session.
// It runs under the client's auth lock.
type AuthChangeFunc func(event Event, session *Session)

type SignUpResult struct {
	User                 User
	VerificationRequired bool
	Session              *Session
}

func newSession(user auth.UserResponse, tokens auth.TokenResponse) *Session {
	return &Session{
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
		ExpiresAt:    tokens.ExpiresAt,
		User: User{
			ID:            user.ID,
			Email:         user.Email,
			FullName:      user.FullName,
			EmailVerified: user.EmailVerified,
		},
	}
}

// OnAuthStateChange registers fn and delivers EventInitialSession to it
// asynchronously. The returned func unsubscribes.
func (c *Client) OnAuthStateChange(fn AuthChangeFunc) func() {
	c.subMu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = fn
	c.subMu.Unlock()

	go func() {
		c.authMu.Lock()
		defer c.authMu.Unlock()

		c.subMu.Lock()
		_, still := c.subs[id]
		c.subMu.Unlock()
		if !still {
			return
		}

		c.loadLocked()
		fn(EventInitialSession, c.session.clone())
	}()

	return func() {
		c.subMu.Lock()
		delete(c.subs, id)
		c.subMu.Unlock()
	}
}

// emitLocked must be called with authMu held.
func (c *Client) emitLocked(event Event) {
	c.subMu.Lock()
	fns := make([]AuthChangeFunc, 0, len(c.subs))
	for _, fn := range c.subs {
		fns = append(fns, fn)
	}
	c.subMu.Unlock()

	for _, fn := range fns {
		fn(event, c.session.clone())
	}
}

// GetSession returns the current session, rotating the access token first
// when it is about to expire. It returns nil without error when signed out.
func (c *Client) GetSession(ctx context.Context) (*Session, error) {
	c.authMu.Lock()
	defer c.authMu.Unlock()

	c.loadLocked()

	if c.session == nil {
		return nil, nil
	}

	if c.session.expiresWithin(c.refreshMargin) {
		if err := c.refreshLocked(ctx); err != nil {
			return nil, err
		}
	}

	return c.session.clone(), nil
}

func (c *Client) SignIn(ctx context.Context, email, password string) (*Session, error) {
	c.authMu.Lock()
	defer c.authMu.Unlock()

	var resp auth.AuthResponse
	err := c.do(ctx, http.MethodPost, "/auth/login", "", auth.LoginRequest{
		Email:    email,
		Password: password,
	}, &resp)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.Status == http.StatusUnauthorized {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	c.setLocked(newSession(resp.User, resp.Tokens))
	c.emitLocked(EventSignedIn)

	return c.session.clone(), nil
}

// SignUp registers an account. When the API requires email verification
// no session is started.
func (c *Client) SignUp(
	ctx context.Context,
	email, password, fullName string,
) (*SignUpResult, error) {
	c.authMu.Lock()
	defer c.authMu.Unlock()

	var resp auth.RegisterResponse
	err := c.do(ctx, http.MethodPost, "/auth/register", "", auth.RegisterRequest{
		Email:    email,
		Password: password,
		FullName: fullName,
	}, &resp)
	if err != nil {
		return nil, err
	}

	result := &SignUpResult{
		User: User{
			ID:            resp.User.ID,
			Email:         resp.User.Email,
			FullName:      resp.User.FullName,
			EmailVerified: resp.User.EmailVerified,
		},
		VerificationRequired: resp.VerificationRequired,
	}

	if resp.Tokens != nil {
		c.setLocked(newSession(resp.User, *resp.Tokens))
		c.emitLocked(EventSignedIn)
		result.Session = c.session.clone()
	}

	return result, nil
}

// SignOut revokes the session server side and always clears it locally.
// The returned error reports only the server call.
func (c *Client) SignOut(ctx context.Context) error {
	c.authMu.Lock()
	defer c.authMu.Unlock()

	c.loadLocked()

	var err error
	if c.session != nil {
		err = c.do(ctx, http.MethodPost, "/auth/logout", c.session.AccessToken,
			map[string]string{"refresh_token": c.session.RefreshToken}, nil)
	}

	c.setLocked(nil)
	c.emitLocked(EventSignedOut)

	if err != nil {
		return fmt.Errorf("sign out: %w", err)
	}
	return nil
}

func (c *Client) refreshLocked(ctx context.Context) error {
	var resp auth.AuthResponse
	err := c.do(ctx, http.MethodPost, "/auth/refresh", "", auth.RefreshRequest{
		RefreshToken: c.session.RefreshToken,
	}, &resp)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.Status == http.StatusUnauthorized {
			c.logger.Info("session refresh rejected, signing out", "code", apiErr.Code)
			c.setLocked(nil)
			c.emitLocked(EventSignedOut)
			return fmt.Errorf("refresh session: %w", core.ErrTokenRevoked)
		}
		return fmt.Errorf("refresh session: %w", err)
	}

	c.setLocked(newSession(resp.User, resp.Tokens))
	c.emitLocked(EventTokenRefreshed)
	return nil
}

func (c *Client) setLocked(s *Session) {
	c.session = s
	c.loaded = true

	if c.storage == nil {
		return
	}

	var err error
	if s == nil {
		err = c.storage.Clear()
	} else {
		err = c.storage.Save(s)
	}
	if err != nil {
		c.logger.Warn("session storage write failed", "error", err)
	}
}

func (c *Client) loadLocked() {
	if c.loaded {
		return
	}
	c.loaded = true

	if c.storage == nil {
		return
	}

	s, err := c.storage.Load()
	if err != nil {
		c.logger.Warn("session storage read failed", "error", err)
		return
	}
	c.session = s
}

// StartAutoRefresh rotates tokens in the background before they expire.
func (c *Client) StartAutoRefresh() {
	c.refreshDone = make(chan struct{})

	go func() {
		defer close(c.refreshDone)

		ticker := time.NewTicker(c.refreshInterval)
		defer ticker.Stop()

		for {
			select {
			case <-c.stopRefresh:
				return
			case <-ticker.C:
				c.tick()
			}
		}
	}()
}

func (c *Client) tick() {
	c.authMu.Lock()
	defer c.authMu.Unlock()

	c.loadLocked()
	if c.session == nil || !c.session.expiresWithin(c.refreshMargin) {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := c.refreshLocked(ctx); err != nil {
		c.logger.Warn("background session refresh failed", "error", err)
	}
}

// Close stops the background refresher.
func (c *Client) Close() {
	c.stopOnce.Do(func() {
		close(c.stopRefresh)
		if c.refreshDone != nil {
			<-c.refreshDone
		}
	})
}

type SessionStorage interface {
	Load() (*Session, error)
	Save(s *Session) error
	Clear() error
}

// FileStorage keeps the session as JSON in a single file readable only by
// the owner.
type FileStorage struct {
	Path string
}

func (f FileStorage) Load() (*Session, error) {
	data, err := os.ReadFile(f.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read session file: %w", err)
	}

	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decode session file: %w", err)
	}

	return &s, nil
}

func (f FileStorage) Save(s *Session) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(f.Path), 0o700); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}

	if err := os.WriteFile(f.Path, data, 0o600); err != nil {
		return fmt.Errorf("write session file: %w", err)
	}

	return nil
}

func (f FileStorage) Clear() error {
	if err := os.Remove(f.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove session file: %w", err)
	}
	return nil
}
