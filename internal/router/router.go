// Package router maps paths to views and runs every navigation through the
// route's guard.
package router

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/colyze-dev/colyze/internal/guard"
	"github.com/colyze-dev/colyze/internal/session"
)

// LoadingMessage is shown while the session is still unresolved
const LoadingMessage = "Checking authentication..."

// Store is what the router needs from the session store
type Store interface {
	guard.Source
	guard.Verifier
	Expire(version uint64)
}

// Renderer draws the view for an allowed navigation. ctx is cancelled when
// the visitor navigates away.
type Renderer interface {
	Render(ctx context.Context, m Match, state session.State) error
}

// Resetter is implemented by renderers holding view caches; Reload clears them
type Resetter interface {
	Reset()
}

// Options configures a Router
type Options struct {
	Table     *Table
	Notifier  guard.Notifier
	Scheduler guard.Scheduler
	Delay     time.Duration
	Logger    zerolog.Logger
	// Out receives the loading message; nil discards it
	Out io.Writer
}

type visit struct {
	gen    uint64
	match  Match
	mount  *guard.Mount
	ctx    context.Context
	cancel context.CancelFunc

	done     chan struct{}
	doneOnce sync.Once
	err      error
}

func (v *visit) finish(err error) {
	v.doneOnce.Do(func() {
		v.err = err
		close(v.done)
	})
}

// Router owns the current view. Only one view is mounted at a time.
type Router struct {
	store    Store
	renderer Renderer
	table    *Table
	opts     Options
	logger   zerolog.Logger

	navMu    sync.Mutex
	renderMu sync.Mutex

	mu      sync.Mutex
	gen     uint64
	current *visit
	history []string
	closed  bool
}

// New creates a router. Nothing is mounted until the first Navigate.
func New(store Store, renderer Renderer, opts Options) *Router {
	if opts.Table == nil {
		opts.Table = NewTable(DefaultRoutes)
	}
	if opts.Out == nil {
		opts.Out = io.Discard
	}
	return &Router{
		store:    store,
		renderer: renderer,
		table:    opts.Table,
		opts:     opts,
		logger:   opts.Logger,
	}
}

// Match resolves a path against the router's table
func (r *Router) Match(path string) Match {
	return r.table.Match(path)
}

// Navigate unmounts the current view, cancelling its pending checks and
// redirects, and mounts the view for path behind its guard
func (r *Router) Navigate(path string) {
	r.navigate(0, path)
}

// Reload is a full navigation: view caches are dropped as well
func (r *Router) Reload(path string) {
	if rs, ok := r.renderer.(Resetter); ok {
		rs.Reset()
	}
	r.Navigate(path)
}

// navigate performs a navigation requested by the visit with generation
// from; 0 means the visitor asked for it. Requests from stale visits are
// dropped.
func (r *Router) navigate(from uint64, path string) {
	r.navMu.Lock()
	defer r.navMu.Unlock()

	r.mu.Lock()
	if r.closed || (from != 0 && (r.current == nil || r.current.gen != from)) {
		r.mu.Unlock()
		return
	}
	prev := r.current
	r.gen++
	match := r.table.Match(path)
	v := &visit{gen: r.gen, match: match, done: make(chan struct{})}
	v.ctx, v.cancel = context.WithCancel(context.Background())
	r.current = v
	r.history = append(r.history, match.URL())
	r.mu.Unlock()

	if prev != nil {
		prev.mount.Unmount()
		prev.cancel()
		prev.finish(context.Canceled)
	}

	r.logger.Debug().
		Str("path", match.URL()).
		Str("route", match.Route.Name).
		Str("access", match.Route.Access.String()).
		Msg("Navigating")

	state := r.store.State()
	if !state.Resolved() {
		fmt.Fprintln(r.opts.Out, LoadingMessage)
	}

	v.mount = guard.NewMount(r.store, r.guardFor(match.Route), guard.Options{
		Navigator: &redirector{router: r, gen: v.gen, from: match},
		Notifier:  r.opts.Notifier,
		Scheduler: r.opts.Scheduler,
		Delay:     r.opts.Delay,
		Logger:    r.logger,
		OnVerdict: func(verdict guard.Verdict) { r.onVerdict(v, verdict) },
	})
}

func (r *Router) guardFor(route Route) guard.Guard {
	switch route.Access {
	case AccessMember:
		return guard.Authenticated{}
	case AccessAdmin:
		return guard.Admin{Verifier: r.store}
	default:
		return guard.Public{}
	}
}

func (r *Router) onVerdict(v *visit, verdict guard.Verdict) {
	if verdict.Decision != guard.Allow {
		return
	}

	r.renderMu.Lock()
	defer r.renderMu.Unlock()

	if !r.isCurrent(v.gen) {
		return
	}
	state := r.store.State()
	err := r.renderer.Render(v.ctx, v.match, state)
	if state.Authenticated() && session.IsUnauthenticated(err) {
		// The guard re-evaluates on the sign-out and takes over the visit
		r.logger.Info().Str("path", v.match.URL()).Msg("Session rejected while loading view")
		r.store.Expire(state.Version)
		return
	}
	if err != nil {
		r.logger.Warn().Err(err).Str("path", v.match.URL()).Msg("Failed to render view")
	}
	v.finish(err)
}

func (r *Router) isCurrent(gen uint64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current != nil && r.current.gen == gen
}

// Current returns the match of the mounted view
func (r *Router) Current() (Match, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.current == nil {
		return Match{}, false
	}
	return r.current.match, true
}

// History returns every path navigated to, in order
func (r *Router) History() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.history...)
}

// Wait blocks until a view has rendered and is still the mounted one. It
// follows redirects and delayed denials.
func (r *Router) Wait(ctx context.Context) (Match, error) {
	for {
		r.mu.Lock()
		v := r.current
		r.mu.Unlock()
		if v == nil {
			return Match{}, fmt.Errorf("nothing mounted")
		}

		select {
		case <-ctx.Done():
			return Match{}, ctx.Err()
		case <-v.done:
		}

		if r.isCurrent(v.gen) {
			return v.match, v.err
		}
	}
}

// Close unmounts the current view
func (r *Router) Close() {
	r.navMu.Lock()
	defer r.navMu.Unlock()

	r.mu.Lock()
	r.closed = true
	v := r.current
	r.mu.Unlock()

	if v != nil {
		v.mount.Unmount()
		v.cancel()
	}
}

// redirector is the navigator handed to a mounted guard. It ties redirects
// to the visit that issued them and annotates login redirects with the
// origin.
type redirector struct {
	router *Router
	gen    uint64
	from   Match
}

func (n *redirector) Navigate(path string) {
	if path == guard.LoginPath {
		path = LoginURL(n.from)
	}
	n.router.navigate(n.gen, path)
}
