// Package session holds the process-wide record of who the current user is.
//
// A Store starts in PhaseUnknown, resolves exactly once from the profile
// endpoint and afterwards changes only through SetUser, Login, Logout and
// Revalidate. Readers get snapshots; nothing outside the Store writes state.
package session

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/colyze-dev/colyze/internal/auth"
	"github.com/colyze-dev/colyze/internal/cli/client"
	"github.com/colyze-dev/colyze/internal/models"
)

// ErrUnauthenticated is returned when an operation needs a signed-in user
var ErrUnauthenticated = errors.New("session is not authenticated")

// API is the slice of the platform API the store depends on
type API interface {
	Profile(ctx context.Context) (*models.User, error)
	Login(ctx context.Context, username, password string) (*client.LoginResponse, error)
	Logout(ctx context.Context) error
}

// TokenSource exposes the client-readable token mirror
type TokenSource interface {
	Token() string
	SetToken(token string)
}

// Navigator performs full navigations that discard view state
type Navigator interface {
	Reload(path string)
}

// Store is the single owner of session state
type Store struct {
	api    API
	tokens TokenSource
	logger zerolog.Logger
	now    func() time.Time

	initOnce sync.Once
	resolved chan struct{}

	mu       sync.RWMutex
	state    State
	isClosed bool
	subs     map[uint64]func(State)
	nextSub  uint64
	nav      Navigator
}

// Option configures a Store
type Option func(*Store)

// WithLogger sets the store logger
func WithLogger(l zerolog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// WithTokenSource enables the expired-token fast path
func WithTokenSource(ts TokenSource) Option {
	return func(s *Store) { s.tokens = ts }
}

// WithClock overrides the time source used by the fast path
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// NewStore creates a store in PhaseUnknown
func NewStore(api API, opts ...Option) *Store {
	s := &Store{
		api:      api,
		logger:   zerolog.Nop(),
		now:      time.Now,
		resolved: make(chan struct{}),
		subs:     make(map[uint64]func(State)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// BindNavigator sets the navigator used by Logout
func (s *Store) BindNavigator(nav Navigator) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nav = nav
}

// State returns the current snapshot
func (s *Store) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Resolved is closed once the phase leaves PhaseUnknown
func (s *Store) Resolved() <-chan struct{} {
	return s.resolved
}

// Wait blocks until the phase resolves or ctx is done
func (s *Store) Wait(ctx context.Context) (State, error) {
	select {
	case <-s.resolved:
		return s.State(), nil
	case <-ctx.Done():
		return s.State(), ctx.Err()
	}
}

// Subscribe registers fn for every state change and returns a function that
// removes it. fn runs on the goroutine that caused the change and must not
// block.
func (s *Store) Subscribe(fn func(State)) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, id)
			s.mu.Unlock()
		})
	}
}

// Initialize fetches the profile once per Store. Concurrent and repeated
// calls share the first call; every caller returns after the phase resolves
// (or immediately if it already has).
func (s *Store) Initialize(ctx context.Context) State {
	s.initOnce.Do(func() {
		s.initialize(ctx)
	})
	return s.State()
}

func (s *Store) initialize(ctx context.Context) {
	if s.State().Resolved() {
		s.logger.Debug().Msg("Session already resolved, skipping profile fetch")
		return
	}

	if s.tokens != nil {
		if token := s.tokens.Token(); token != "" && auth.Expired(token, s.now()) {
			s.logger.Debug().Msg("Stored session token has expired")
			s.tokens.SetToken("")
			s.resolveFromFetch(nil)
			return
		}
	}

	user, err := s.api.Profile(ctx)
	if err != nil {
		if errors.Is(err, client.ErrUnauthenticated) || errors.Is(err, client.ErrForbidden) {
			s.logger.Debug().Err(err).Msg("No valid session")
		} else {
			s.logger.Warn().Err(err).Msg("Profile fetch failed, treating visitor as anonymous")
		}
		s.resolveFromFetch(nil)
		return
	}
	if user == nil || user.ID == "" {
		s.logger.Warn().Msg("Profile response has no user id, treating visitor as anonymous")
		s.resolveFromFetch(nil)
		return
	}

	s.resolveFromFetch(user)
}

// resolveFromFetch applies the initial profile result unless an explicit
// SetUser got there first
func (s *Store) resolveFromFetch(user *models.User) {
	s.mu.Lock()
	if s.state.Resolved() {
		s.mu.Unlock()
		s.logger.Debug().Msg("Ignoring late profile response")
		return
	}
	next, subs := s.transitionLocked(user)
	s.mu.Unlock()

	s.notify(next, subs)
}

// SetUser is the explicit mutation entry point: a user signs in, nil signs out
func (s *Store) SetUser(user *models.User) {
	s.mu.Lock()
	next, subs := s.transitionLocked(user)
	s.mu.Unlock()

	s.notify(next, subs)
}

// transitionLocked must be called with s.mu held
func (s *Store) transitionLocked(user *models.User) (State, []func(State)) {
	next := State{Phase: PhaseAnonymous, Version: s.state.Version + 1}
	if user != nil {
		next.Phase = PhaseAuthenticated
		next.User = user.Clone()
	}
	s.state = next

	if !s.isClosed {
		s.isClosed = true
		close(s.resolved)
	}

	subs := make([]func(State), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}

	s.logger.Debug().
		Str("phase", next.Phase.String()).
		Uint64("version", next.Version).
		Str("user_id", next.UserID()).
		Msg("Session transition")

	return next, subs
}

func (s *Store) notify(state State, subs []func(State)) {
	for _, fn := range subs {
		fn(state)
	}
}

// Login signs in with credentials, then re-reads the profile because the
// login response is not trusted as the complete user record
func (s *Store) Login(ctx context.Context, username, password string) (*models.User, error) {
	if _, err := s.api.Login(ctx, username, password); err != nil {
		return nil, err
	}

	user, err := s.api.Profile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load user profile: %w", err)
	}
	if user == nil || user.ID == "" {
		return nil, fmt.Errorf("failed to load user profile: response has no user id")
	}

	s.SetUser(user)
	s.logger.Info().Str("user_id", user.ID).Bool("is_admin", user.IsAdmin).Msg("User logged in")
	return user.Clone(), nil
}

// Logout ends the session. The server call is best-effort; the local session
// is cleared and a full navigation home is performed regardless.
func (s *Store) Logout(ctx context.Context) {
	if err := s.api.Logout(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("Logout request failed, clearing local session anyway")
	}

	s.SetUser(nil)

	s.mu.RLock()
	nav := s.nav
	s.mu.RUnlock()
	if nav != nil {
		nav.Reload("/")
	}
}

// Revalidate re-reads the profile of an authenticated session. A 401/403
// signs the user out; transport errors leave the state untouched.
func (s *Store) Revalidate(ctx context.Context) (*models.User, error) {
	start := s.State()
	if !start.Authenticated() {
		return nil, ErrUnauthenticated
	}

	user, err := s.api.Profile(ctx)
	if err != nil {
		if IsUnauthenticated(err) || errors.Is(err, client.ErrForbidden) {
			s.logger.Info().Err(err).Msg("Session rejected by server")
			s.clearIfCurrent(start.Version)
			return nil, fmt.Errorf("%w: %v", ErrUnauthenticated, err)
		}
		return nil, fmt.Errorf("failed to revalidate session: %w", err)
	}
	if user == nil || user.ID == "" {
		return nil, fmt.Errorf("failed to revalidate session: response has no user id")
	}

	s.mu.Lock()
	if s.state.Version != start.Version {
		current := s.state
		s.mu.Unlock()
		if current.Authenticated() && current.User.ID == user.ID {
			return current.User.Clone(), nil
		}
		return nil, ErrUnauthenticated
	}
	if reflect.DeepEqual(s.state.User, user) {
		s.mu.Unlock()
		return user, nil
	}
	next, subs := s.transitionLocked(user)
	s.mu.Unlock()

	s.notify(next, subs)
	return user.Clone(), nil
}

// Expire signs the user out after the server rejected the session of the
// snapshot with the given version, and forgets the rejected token. A newer
// session is left alone.
func (s *Store) Expire(version uint64) {
	if !s.clearIfCurrent(version) {
		return
	}
	s.logger.Info().Uint64("version", version).Msg("Session expired on the server")
	if s.tokens != nil {
		s.tokens.SetToken("")
	}
}

// IsUnauthenticated reports whether err means the server no longer accepts
// the session
func IsUnauthenticated(err error) bool {
	return errors.Is(err, ErrUnauthenticated) || errors.Is(err, client.ErrUnauthenticated)
}

func (s *Store) clearIfCurrent(version uint64) bool {
	s.mu.Lock()
	if s.state.Version != version {
		s.mu.Unlock()
		return false
	}
	next, subs := s.transitionLocked(nil)
	s.mu.Unlock()

	s.notify(next, subs)
	return true
}
