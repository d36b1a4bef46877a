// AngelaMos | 2026
// guard_test.go

package session

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carterperez-dev/harvest-table/internal/client"
	"github.com/carterperez-dev/harvest-table/internal/profile"
)

func TestDecide(t *testing.T) {
	user := &client.User{ID: "u1"}
	sess := &client.Session{User: *user}
	adminProfile := &client.Profile{ID: "u1", Role: profile.RoleAdmin}
	userProfile := &client.Profile{ID: "u1", Role: profile.RoleUser}

	tests := []struct {
		name string
		req  Requirement
		snap Snapshot
		want Decision
	}{
		{
			name: "uninitialized waits",
			req:  RequireAuth,
			snap: Snapshot{State: StateUninitialized},
			want: Pending,
		},
		{
			name: "loading session waits",
			req:  RequireAuth,
			snap: Snapshot{State: StateLoadingSession},
			want: Pending,
		},
		{
			name: "profile loading waits even for plain auth",
			req:  RequireAuth,
			snap: Snapshot{State: StateProfileLoading, User: user, Session: sess, IsAuthenticated: true},
			want: Pending,
		},
		{
			name: "signed out redirects",
			req:  RequireAuth,
			snap: Snapshot{State: StateUnauthenticated},
			want: Redirect,
		},
		{
			name: "signed in passes auth",
			req:  RequireAuth,
			snap: Snapshot{State: StateReady, User: user, Session: sess, Profile: userProfile, IsAuthenticated: true},
			want: Allow,
		},
		{
			name: "signed in without profile passes auth",
			req:  RequireAuth,
			snap: Snapshot{State: StateReady, User: user, Session: sess, IsAuthenticated: true},
			want: Allow,
		},
		{
			name: "non admin redirected from admin",
			req:  RequireAdmin,
			snap: Snapshot{State: StateReady, User: user, Session: sess, Profile: userProfile, IsAuthenticated: true},
			want: Redirect,
		},
		{
			name: "missing profile redirected from admin",
			req:  RequireAdmin,
			snap: Snapshot{State: StateReady, User: user, Session: sess, IsAuthenticated: true},
			want: Redirect,
		},
		{
			name: "admin allowed",
			req:  RequireAdmin,
			snap: Snapshot{
				State:           StateReady,
				User:            user,
				Session:         sess,
				Profile:         adminProfile,
				IsAuthenticated: true,
				IsAdmin:         true,
			},
			want: Allow,
		},
		{
			name: "admin page while signed out",
			req:  RequireAdmin,
			snap: Snapshot{State: StateUnauthenticated},
			want: Redirect,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Decide(tt.req, tt.snap))
		})
	}
}

func TestGuardMiddleware(t *testing.T) {
	backend := newFakeBackend()
	admin := backend.addAccount("admin@harvest.test", "pw", "admin")
	backend.signedInAs(admin)
	backend.blockProfiles()

	store := newTestStore(t, backend)
	guard := NewGuard(store, RequireAdmin, WithLoginPath("/signin"))

	protected := guard.Middleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	serve := func() *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		protected.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/orders?page=2", nil))
		return rec
	}

	rec := serve()
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
	assert.Contains(t, rec.Body.String(), "Loading")

	require.NoError(t, store.Init(context.Background()))
	require.Eventually(t, func() bool {
		return backend.fetchStarted.Load() > 0
	}, waitFor, 5*time.Millisecond)

	assert.Equal(t, http.StatusOK, serve().Code, "still loading the profile")

	backend.releaseProfiles()
	settle(t, store)
	assert.Equal(t, http.StatusTeapot, serve().Code)

	require.NoError(t, store.SignOut(context.Background()))
	rec = serve()
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/signin?next=%2Fadmin%2Forders%3Fpage%3D2", rec.Header().Get("Location"))
}

func TestGuardWait(t *testing.T) {
	backend := newFakeBackend()
	acct := backend.addAccount("user@harvest.test", "pw", "user")
	backend.signedInAs(acct)

	store := newTestStore(t, backend)
	require.NoError(t, store.Init(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), waitFor)
	defer cancel()

	decision, err := NewGuard(store, RequireAuth).Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, Allow, decision)

	decision, err = NewGuard(store, RequireAdmin).Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, Redirect, decision)
}

func TestGuardCustomPlaceholder(t *testing.T) {
	store := newTestStore(t, newFakeBackend())
	guard := NewGuard(store, RequireAuth, WithPlaceholder(http.HandlerFunc(
		func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusAccepted)
		},
	)))

	rec := httptest.NewRecorder()
	guard.Middleware(http.NotFoundHandler()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/account", nil))
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, "pending", guard.Decide().String())
}
