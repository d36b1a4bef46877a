// AngelaMos | 2026
// fake_test.go

package session

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/carterperez-dev/harvest-table/internal/cart"
	"github.com/carterperez-dev/harvest-table/internal/client"
	"github.com/carterperez-dev/harvest-table/internal/core"
	"github.com/carterperez-dev/harvest-table/internal/profile"
)

var errBadCredentials = errors.New("bad credentials")

type fakeAccount struct {
	user     client.User
	password string
	profile  *client.Profile
}

type fakeLine struct {
	id        string
	productID string
	quantity  int
}

// fakeBackend behaves like the API client: auth callbacks run while
// authMu is held and every authenticated call takes authMu first.
type fakeBackend struct {
	authMu  sync.Mutex
	session *client.Session

	subMu sync.Mutex
	subs  map[int]client.AuthChangeFunc
	next  int

	mu         sync.Mutex
	accounts   map[string]*fakeAccount
	profileErr error
	signOutErr error
	gate       chan struct{}
	carts      map[string][]fakeLine
	prices     map[string]decimal.Decimal

	fetchStarted atomic.Int32
	fetchDone    atomic.Int32
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		subs:     make(map[int]client.AuthChangeFunc),
		accounts: make(map[string]*fakeAccount),
		carts:    make(map[string][]fakeLine),
		prices:   make(map[string]decimal.Decimal),
	}
}

func (f *fakeBackend) addAccount(email, password string, role string) *fakeAccount {
	id := uuid.NewString()
	acct := &fakeAccount{
		user:     client.User{ID: id, Email: email, FullName: "Test " + role},
		password: password,
	}
	if role != "" {
		acct.profile = &client.Profile{ID: id, FullName: "Profile " + role, Role: roleOf(role)}
	}

	f.mu.Lock()
	f.accounts[email] = acct
	f.mu.Unlock()
	return acct
}

// signedInAs starts the fake with a stored session, as after a restart.
func (f *fakeBackend) signedInAs(acct *fakeAccount) {
	f.authMu.Lock()
	f.session = sessionFor(acct)
	f.authMu.Unlock()
}

func (f *fakeBackend) blockProfiles() {
	f.mu.Lock()
	f.gate = make(chan struct{})
	f.mu.Unlock()
}

func (f *fakeBackend) releaseProfiles() {
	f.mu.Lock()
	if f.gate != nil {
		close(f.gate)
		f.gate = nil
	}
	f.mu.Unlock()
}

func (f *fakeBackend) emitLocked(event client.Event) {
	f.subMu.Lock()
	fns := make([]client.AuthChangeFunc, 0, len(f.subs))
	for _, fn := range f.subs {
		fns = append(fns, fn)
	}
	f.subMu.Unlock()

	for _, fn := range fns {
		fn(event, cloneSession(f.session))
	}
}

// refresh re-emits the current session the way a token rotation does.
func (f *fakeBackend) refresh() {
	f.authMu.Lock()
	defer f.authMu.Unlock()

	if f.session == nil {
		return
	}
	f.session.AccessToken = uuid.NewString()
	f.emitLocked(client.EventTokenRefreshed)
}

func (f *fakeBackend) GetSession(_ context.Context) (*client.Session, error) {
	f.authMu.Lock()
	defer f.authMu.Unlock()
	return cloneSession(f.session), nil
}

func (f *fakeBackend) OnAuthStateChange(fn client.AuthChangeFunc) func() {
	f.subMu.Lock()
	id := f.next
	f.next++
	f.subs[id] = fn
	f.subMu.Unlock()

	go func() {
		f.authMu.Lock()
		defer f.authMu.Unlock()

		f.subMu.Lock()
		_, ok := f.subs[id]
		f.subMu.Unlock()
		if ok {
			fn(client.EventInitialSession, cloneSession(f.session))
		}
	}()

	return func() {
		f.subMu.Lock()
		delete(f.subs, id)
		f.subMu.Unlock()
	}
}

func (f *fakeBackend) SignIn(_ context.Context, email, password string) (*client.Session, error) {
	f.mu.Lock()
	acct, ok := f.accounts[email]
	f.mu.Unlock()
	if !ok || acct.password != password {
		return nil, errBadCredentials
	}

	f.authMu.Lock()
	defer f.authMu.Unlock()

	f.session = sessionFor(acct)
	f.emitLocked(client.EventSignedIn)
	return cloneSession(f.session), nil
}

func (f *fakeBackend) SignUp(
	_ context.Context,
	email, password, fullName string,
) (*client.SignUpResult, error) {
	acct := f.addAccount(email, password, "")
	f.mu.Lock()
	acct.user.FullName = fullName
	f.mu.Unlock()

	f.authMu.Lock()
	defer f.authMu.Unlock()

	f.session = sessionFor(acct)
	f.emitLocked(client.EventSignedIn)
	return &client.SignUpResult{User: acct.user, Session: cloneSession(f.session)}, nil
}

func (f *fakeBackend) SignOut(_ context.Context) error {
	f.authMu.Lock()
	defer f.authMu.Unlock()

	f.session = nil
	f.emitLocked(client.EventSignedOut)

	f.mu.Lock()
	defer f.mu.Unlock()
	return f.signOutErr
}

func (f *fakeBackend) FetchProfile(ctx context.Context, userID string) (*client.Profile, error) {
	if _, err := f.GetSession(ctx); err != nil {
		return nil, err
	}

	f.fetchStarted.Add(1)
	defer f.fetchDone.Add(1)

	f.mu.Lock()
	gate := f.gate
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.profileErr != nil {
		return nil, f.profileErr
	}
	for _, acct := range f.accounts {
		if acct.user.ID == userID {
			if acct.profile == nil {
				return nil, nil
			}
			p := *acct.profile
			return &p, nil
		}
	}
	return nil, nil
}

func (f *fakeBackend) currentUser() (string, error) {
	f.authMu.Lock()
	defer f.authMu.Unlock()

	if f.session == nil {
		return "", core.ErrUnauthorized
	}
	return f.session.User.ID, nil
}

func (f *fakeBackend) GetCart(_ context.Context) (*cart.CartResponse, error) {
	userID, err := f.currentUser()
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	resp := &cart.CartResponse{Items: []cart.LineResponse{}, TotalAmount: decimal.Zero}
	for _, l := range f.carts[userID] {
		price := f.prices[l.productID]
		subtotal := price.Mul(decimal.NewFromInt(int64(l.quantity)))
		resp.Items = append(resp.Items, cart.LineResponse{
			ID:        l.id,
			ProductID: l.productID,
			Price:     price,
			Quantity:  l.quantity,
			Subtotal:  subtotal,
			Available: true,
		})
		resp.TotalAmount = resp.TotalAmount.Add(subtotal)
		resp.ItemCount += l.quantity
	}
	return resp, nil
}

func (f *fakeBackend) AddCartItem(_ context.Context, productID string, quantity int) error {
	userID, err := f.currentUser()
	if err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	lines := f.carts[userID]
	for i := range lines {
		if lines[i].productID == productID {
			lines[i].quantity += quantity
			return nil
		}
	}
	f.carts[userID] = append(lines, fakeLine{id: uuid.NewString(), productID: productID, quantity: quantity})
	return nil
}

func (f *fakeBackend) UpdateCartItem(_ context.Context, itemID string, quantity int) error {
	userID, err := f.currentUser()
	if err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	for i := range f.carts[userID] {
		if f.carts[userID][i].id == itemID {
			f.carts[userID][i].quantity = quantity
			return nil
		}
	}
	return core.ErrNotFound
}

func (f *fakeBackend) RemoveCartItem(_ context.Context, itemID string) error {
	userID, err := f.currentUser()
	if err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	lines := f.carts[userID]
	for i := range lines {
		if lines[i].id == itemID {
			f.carts[userID] = append(lines[:i], lines[i+1:]...)
			return nil
		}
	}
	return core.ErrNotFound
}

func (f *fakeBackend) ClearCart(_ context.Context) error {
	userID, err := f.currentUser()
	if err != nil {
		return err
	}

	f.mu.Lock()
	delete(f.carts, userID)
	f.mu.Unlock()
	return nil
}

func sessionFor(acct *fakeAccount) *client.Session {
	return &client.Session{
		AccessToken:  uuid.NewString(),
		RefreshToken: uuid.NewString(),
		ExpiresAt:    time.Now().Add(15 * time.Minute),
		User:         acct.user,
	}
}

func cloneSession(s *client.Session) *client.Session {
	if s == nil {
		return nil
	}
	cp := *s
	return &cp
}

func roleOf(role string) profile.Role {
	if role == "admin" {
		return profile.RoleAdmin
	}
	return profile.RoleUser
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
