// AngelaMos | 2026
// store.go

package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/carterperez-dev/harvest-table/internal/client"
)

var (
	ErrNotInitialized = errors.New("session store not initialized")
	ErrDisposed       = errors.New("session store disposed")
	ErrNotSignedIn    = errors.New("not signed in")
)

type State string

const (
	StateUninitialized   State = "uninitialized"
	StateLoadingSession  State = "loading-session"
	StateProfileLoading  State = "authenticated-profile-loading"
	StateReady           State = "authenticated-ready"
	StateUnauthenticated State = "unauthenticated"
)

// Settled reports whether the state no longer waits on the backend.
func (s State) Settled() bool {
	return s == StateReady || s == StateUnauthenticated
}

// Backend is the slice of the API client the store depends on.
type Backend interface {
	GetSession(ctx context.Context) (*client.Session, error)
	OnAuthStateChange(fn client.AuthChangeFunc) func()
	SignIn(ctx context.Context, email, password string) (*client.Session, error)
	SignUp(ctx context.Context, email, password, fullName string) (*client.SignUpResult, error)
	SignOut(ctx context.Context) error
	FetchProfile(ctx context.Context, userID string) (*client.Profile, error)
}

type Snapshot struct {
	State           State
	User            *client.User
	Session         *client.Session
	Profile         *client.Profile
	ProfileLoading  bool
	IsAuthenticated bool
	IsAdmin         bool
}

// UserID is empty when signed out.
func (s Snapshot) UserID() string {
	if s.User == nil {
		return ""
	}
	return s.User.ID
}

// Store composes the backend session with a profile fetched off the
// auth-change callback. Profile fetches and watcher notifications run on
// one task goroutine in the order they were scheduled.
type Store struct {
	backend Backend
	logger  *slog.Logger

	mu             sync.Mutex
	state          State
	session        *client.Session
	profile        *client.Profile
	profileLoading bool
	seq            uint64
	disposed       bool
	changed        chan struct{}
	watchers       map[int]func(Snapshot)
	nextWatcher    int
	unsubscribe    func()

	tasks *taskQueue
	ctx   context.Context
	stop  context.CancelFunc
	done  chan struct{}
}

func NewStore(backend Backend, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}

	return &Store{
		backend:  backend,
		logger:   logger,
		state:    StateUninitialized,
		changed:  make(chan struct{}),
		watchers: make(map[int]func(Snapshot)),
		tasks:    newTaskQueue(),
	}
}

// Init subscribes to auth changes and schedules the initial session load.
// It does not wait for either.
func (s *Store) Init(ctx context.Context) error {
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return ErrDisposed
	}
	if s.state != StateUninitialized {
		s.mu.Unlock()
		return nil
	}

	s.ctx, s.stop = context.WithCancel(context.WithoutCancel(ctx))
	s.done = make(chan struct{})
	s.state = StateLoadingSession
	s.signalLocked()
	seq := s.seq
	s.mu.Unlock()

	go s.run()

	s.schedule(func(ctx context.Context) {
		sess, err := s.backend.GetSession(ctx)
		if err != nil {
			s.logger.Warn("initial session load failed", "error", err)
			sess = nil
		}
		s.applyInitial(seq, sess)
	})

	unsubscribe := s.backend.OnAuthStateChange(s.onAuthChange)

	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		unsubscribe()
		return ErrDisposed
	}
	s.unsubscribe = unsubscribe
	s.mu.Unlock()

	s.notify()
	return nil
}

// Dispose releases the backend subscription and stops the task goroutine.
// Results that arrive later are dropped. It must not be called from a
// watcher.
func (s *Store) Dispose() {
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return
	}
	s.disposed = true
	unsubscribe := s.unsubscribe
	stop := s.stop
	done := s.done
	s.signalLocked()
	s.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
	if stop != nil {
		stop()
		<-done
	}
}

// onAuthChange runs under the client's auth lock. It only records the
// session and schedules work; calling the backend here would deadlock.
func (s *Store) onAuthChange(event client.Event, sess *client.Session) {
	s.logger.Debug("auth state changed", "event", event, "signed_in", sess != nil)

	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return
	}
	if event == client.EventInitialSession &&
		s.state != StateLoadingSession &&
		sameSession(s.session, sess) {
		s.mu.Unlock()
		return
	}
	seq, userID := s.applySessionLocked(sess)
	s.mu.Unlock()

	s.notify()
	if userID != "" {
		s.scheduleFetch(seq, userID, nil)
	}
}

// sameSession reports whether the initial event repeats what the initial
// load already applied.
func sameSession(a, b *client.Session) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.AccessToken == b.AccessToken && a.User.ID == b.User.ID
}

func (s *Store) applyInitial(seq uint64, sess *client.Session) {
	s.mu.Lock()
	if s.disposed || s.seq != seq {
		s.mu.Unlock()
		return
	}
	next, userID := s.applySessionLocked(sess)
	s.mu.Unlock()

	s.notify()
	if userID != "" {
		s.scheduleFetch(next, userID, nil)
	}
}

// applySessionLocked records sess and returns the new sequence number and
// the user whose profile must be fetched, if any.
func (s *Store) applySessionLocked(sess *client.Session) (uint64, string) {
	s.seq++
	previous := s.session
	s.session = sess

	if sess == nil {
		s.profile = nil
		s.profileLoading = false
		s.state = StateUnauthenticated
		s.signalLocked()
		return s.seq, ""
	}

	s.profileLoading = true
	sameUser := previous != nil && previous.User.ID == sess.User.ID
	if !sameUser || s.state != StateReady {
		s.profile = nil
		s.state = StateProfileLoading
	}
	s.signalLocked()

	return s.seq, sess.User.ID
}

func (s *Store) scheduleFetch(seq uint64, userID string, result chan<- error) {
	s.schedule(func(ctx context.Context) {
		p, err := s.backend.FetchProfile(ctx, userID)
		applied := s.applyProfile(seq, userID, p, err)
		if result != nil {
			if err == nil && !applied {
				err = ErrNotSignedIn
			}
			result <- err
		}
	})
}

// applyProfile stores a fetch result only while it is still the latest
// one for the same signed-in user.
func (s *Store) applyProfile(seq uint64, userID string, p *client.Profile, err error) bool {
	s.mu.Lock()
	if s.disposed || s.seq != seq || s.session == nil || s.session.User.ID != userID {
		s.mu.Unlock()
		s.logger.Debug("discarding stale profile result", "user_id", userID)
		return false
	}

	if err != nil {
		s.logger.Warn("profile fetch failed, continuing without profile",
			"user_id", userID,
			"error", err,
		)
		p = nil
	}

	s.profile = p
	s.profileLoading = false
	s.state = StateReady
	s.signalLocked()
	s.mu.Unlock()

	s.notify()
	return true
}

// SignIn forwards credentials. State changes arrive through the auth
// event, so callers wait on Settled to observe the result.
func (s *Store) SignIn(ctx context.Context, email, password string) error {
	if err := s.ready(); err != nil {
		return err
	}
	_, err := s.backend.SignIn(ctx, email, password)
	return err
}

func (s *Store) SignUp(
	ctx context.Context,
	email, password, fullName string,
) (*client.SignUpResult, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	return s.backend.SignUp(ctx, email, password, fullName)
}

// SignOut clears local state even when the backend call fails and
// returns that failure.
func (s *Store) SignOut(ctx context.Context) error {
	if err := s.ready(); err != nil {
		return err
	}

	err := s.backend.SignOut(ctx)

	s.mu.Lock()
	if !s.disposed {
		s.applySessionLocked(nil)
	}
	s.mu.Unlock()

	s.notify()
	return err
}

// RefreshProfile refetches the current user's profile and waits for the
// result to be applied.
func (s *Store) RefreshProfile(ctx context.Context) error {
	if err := s.ready(); err != nil {
		return err
	}

	s.mu.Lock()
	if s.session == nil {
		s.mu.Unlock()
		return ErrNotSignedIn
	}
	s.seq++
	seq := s.seq
	userID := s.session.User.ID
	s.profileLoading = true
	s.signalLocked()
	done := s.done
	s.mu.Unlock()

	s.notify()

	result := make(chan error, 1)
	s.scheduleFetch(seq, userID, result)

	select {
	case err := <-result:
		return err
	case <-done:
		return ErrDisposed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Store) snapshotLocked() Snapshot {
	snap := Snapshot{
		State:           s.state,
		Session:         s.session,
		Profile:         s.profile,
		ProfileLoading:  s.profileLoading,
		IsAuthenticated: s.session != nil,
	}

	if s.session != nil {
		user := s.session.User
		snap.User = &user
	}

	if s.profile != nil {
		snap.IsAdmin = s.profile.Role.IsAdmin()
	}

	return snap
}

// Settled blocks until the state is authenticated-ready or
// unauthenticated.
func (s *Store) Settled(ctx context.Context) (Snapshot, error) {
	for {
		s.mu.Lock()
		if s.disposed {
			s.mu.Unlock()
			return Snapshot{}, ErrDisposed
		}
		if s.state == StateUninitialized {
			s.mu.Unlock()
			return Snapshot{}, ErrNotInitialized
		}
		if s.state.Settled() {
			snap := s.snapshotLocked()
			s.mu.Unlock()
			return snap, nil
		}
		changed := s.changed
		s.mu.Unlock()

		select {
		case <-changed:
		case <-ctx.Done():
			return Snapshot{}, ctx.Err()
		}
	}
}

// Watch calls fn with a snapshot after every change, on the store's task
// goroutine. The returned func stops delivery.
func (s *Store) Watch(fn func(Snapshot)) func() {
	s.mu.Lock()
	id := s.nextWatcher
	s.nextWatcher++
	s.watchers[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.watchers, id)
		s.mu.Unlock()
	}
}

func (s *Store) notify() {
	s.schedule(func(context.Context) {
		s.mu.Lock()
		if s.disposed {
			s.mu.Unlock()
			return
		}
		snap := s.snapshotLocked()
		fns := make([]func(Snapshot), 0, len(s.watchers))
		for _, fn := range s.watchers {
			fns = append(fns, fn)
		}
		s.mu.Unlock()

		for _, fn := range fns {
			fn(snap)
		}
	})
}

func (s *Store) ready() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case s.disposed:
		return ErrDisposed
	case s.state == StateUninitialized:
		return ErrNotInitialized
	default:
		return nil
	}
}

// signalLocked wakes Settled waiters.
func (s *Store) signalLocked() {
	close(s.changed)
	s.changed = make(chan struct{})
}

func (s *Store) schedule(task func(ctx context.Context)) {
	s.tasks.push(task)
}

func (s *Store) run() {
	defer close(s.done)

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-s.tasks.wake:
		}

		for _, task := range s.tasks.drain() {
			if s.ctx.Err() != nil {
				return
			}
			task(s.ctx)
		}
	}
}

// taskQueue is an unbounded FIFO so scheduling never blocks the caller.
type taskQueue struct {
	mu    sync.Mutex
	items []func(ctx context.Context)
	wake  chan struct{}
}

func newTaskQueue() *taskQueue {
	return &taskQueue{wake: make(chan struct{}, 1)}
}

func (q *taskQueue) push(task func(ctx context.Context)) {
	q.mu.Lock()
	q.items = append(q.items, task)
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
}

func (q *taskQueue) drain() []func(ctx context.Context) {
	q.mu.Lock()
	defer q.mu.Unlock()

	items := q.items
	q.items = nil
	return items
}
