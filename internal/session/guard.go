// AngelaMos | 2026
// guard.go

package session

import (
	"context"
	"net/http"
	"net/url"
)

type Requirement int

const (
	RequireAuth Requirement = iota
	RequireAdmin
)

type Decision int

const (
	Pending Decision = iota
	Allow
	Redirect
)

func (d Decision) String() string {
	switch d {
	case Pending:
		return "pending"
	case Allow:
		return "allow"
	case Redirect:
		return "redirect"
	default:
		return "unknown"
	}
}

// Decide waits out both the session and the profile load, since the role
// is only known once the profile is in.
func Decide(req Requirement, snap Snapshot) Decision {
	switch snap.State {
	case StateUninitialized, StateLoadingSession, StateProfileLoading:
		return Pending
	case StateUnauthenticated:
		return Redirect
	case StateReady:
	}

	if !snap.IsAuthenticated {
		return Redirect
	}

	switch req {
	case RequireAuth:
		return Allow
	case RequireAdmin:
		if snap.IsAdmin {
			return Allow
		}
		return Redirect
	default:
		return Redirect
	}
}

type Guard struct {
	store       *Store
	req         Requirement
	loginPath   string
	placeholder http.Handler
}

type GuardOption func(*Guard)

func WithLoginPath(path string) GuardOption {
	return func(g *Guard) { g.loginPath = path }
}

// WithPlaceholder replaces the default loading response.
func WithPlaceholder(h http.Handler) GuardOption {
	return func(g *Guard) { g.placeholder = h }
}

func NewGuard(store *Store, req Requirement, opts ...GuardOption) *Guard {
	g := &Guard{
		store:       store,
		req:         req,
		loginPath:   "/login",
		placeholder: http.HandlerFunc(loadingPlaceholder),
	}

	for _, opt := range opts {
		opt(g)
	}

	return g
}

func (g *Guard) Decide() Decision {
	return Decide(g.req, g.store.Snapshot())
}

// Wait blocks until the store settles and returns the final decision.
func (g *Guard) Wait(ctx context.Context) (Decision, error) {
	snap, err := g.store.Settled(ctx)
	if err != nil {
		return Pending, err
	}
	return Decide(g.req, snap), nil
}

func (g *Guard) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch g.Decide() {
		case Allow:
			next.ServeHTTP(w, r)
		case Redirect:
			target := g.loginPath + "?next=" + url.QueryEscape(r.URL.RequestURI())
			http.Redirect(w, r, target, http.StatusSeeOther)
		default:
			g.placeholder.ServeHTTP(w, r)
		}
	})
}

func loadingPlaceholder(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Refresh", "1")
	w.WriteHeader(http.StatusOK)
	//nolint:errcheck // best-effort response
	_, _ = w.Write([]byte(`<!doctype html><title>Loading</title><p>Loading...</p>`))
}
