package guard

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/colyze-dev/colyze/internal/session"
)

// DefaultDenialDelay is how long a denial notice stays up before the redirect
const DefaultDenialDelay = 3 * time.Second

// Source is the read side of the session store
type Source interface {
	State() session.State
	Subscribe(fn func(session.State)) (unsubscribe func())
}

// Navigator moves to another route
type Navigator interface {
	Navigate(path string)
}

// Notifier surfaces denial notices to the user
type Notifier interface {
	ShowNotice(msg string)
	ClearNotice()
}

// Timer is a cancellable scheduled call
type Timer interface {
	Stop() bool
}

// Scheduler runs f once after d
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) Timer
}

type realScheduler struct{}

func (realScheduler) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

type nopNotifier struct{}

func (nopNotifier) ShowNotice(string) {}
func (nopNotifier) ClearNotice()      {}

// Options wires a mounted guard to its surroundings
type Options struct {
	Navigator Navigator
	Notifier  Notifier
	Scheduler Scheduler
	Delay     time.Duration
	Logger    zerolog.Logger

	// OnVerdict is called after every verdict change
	OnVerdict func(Verdict)
}

// Mount is a guard attached to a live view. It re-evaluates on every session
// change until Unmount.
type Mount struct {
	guard Guard
	opts  Options

	mu          sync.Mutex
	unmounted   bool
	seen        bool
	lastVersion uint64
	lastPhase   session.Phase
	verdict     Verdict
	cancelCheck context.CancelFunc
	timer       Timer
	timerGen    uint64
	unsubscribe func()
}

// NewMount attaches g to src and evaluates the current state immediately
func NewMount(src Source, g Guard, opts Options) *Mount {
	if opts.Notifier == nil {
		opts.Notifier = nopNotifier{}
	}
	if opts.Scheduler == nil {
		opts.Scheduler = realScheduler{}
	}
	if opts.Delay <= 0 {
		opts.Delay = DefaultDenialDelay
	}

	m := &Mount{guard: g, opts: opts, verdict: Verdict{Decision: Pending}}

	m.mu.Lock()
	m.unsubscribe = src.Subscribe(m.evaluate)
	m.mu.Unlock()

	m.evaluate(src.State())
	return m
}

// Verdict returns the verdict currently in force
func (m *Mount) Verdict() Verdict {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.verdict
}

// Unmount detaches the guard, cancelling any in-flight check and pending
// redirect
func (m *Mount) Unmount() {
	m.mu.Lock()
	if m.unmounted {
		m.mu.Unlock()
		return
	}
	m.unmounted = true
	m.stopTimerLocked()
	if m.cancelCheck != nil {
		m.cancelCheck()
		m.cancelCheck = nil
	}
	unsubscribe := m.unsubscribe
	m.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
}

func (m *Mount) evaluate(state session.State) {
	m.mu.Lock()
	if m.unmounted || (m.seen && state.Version <= m.lastVersion) {
		m.mu.Unlock()
		return
	}
	phaseChanged := !m.seen || state.Phase != m.lastPhase
	m.seen = true
	m.lastVersion = state.Version
	m.lastPhase = state.Phase

	if m.cancelCheck != nil {
		m.cancelCheck()
		m.cancelCheck = nil
	}

	var cleared bool
	if phaseChanged && m.verdict.Decision != Pending {
		// A pending redirect belongs to the old phase
		m.stopTimerLocked()
		cleared = m.verdict.Decision == Deny
		m.verdict = Verdict{Decision: Pending}
	}

	if !state.Resolved() {
		m.mu.Unlock()
		if cleared {
			m.opts.Notifier.ClearNotice()
		}
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	m.cancelCheck = cancel
	m.mu.Unlock()

	if cleared {
		m.opts.Notifier.ClearNotice()
	}

	go func() {
		defer cancel()
		v := m.guard.Check(ctx, state)
		if ctx.Err() != nil {
			return
		}
		m.apply(state.Version, v)
	}()
}

func (m *Mount) apply(version uint64, v Verdict) {
	m.mu.Lock()
	if m.unmounted || version != m.lastVersion || v == m.verdict {
		m.mu.Unlock()
		return
	}
	prev := m.verdict
	m.verdict = v
	m.stopTimerLocked()

	if v.Decision == Deny {
		gen := m.timerGen
		m.timer = m.opts.Scheduler.AfterFunc(m.opts.Delay, func() { m.fire(gen, v.Target) })
	}
	m.mu.Unlock()

	m.opts.Logger.Debug().
		Str("decision", v.Decision.String()).
		Str("target", v.Target).
		Uint64("version", version).
		Msg("Guard verdict")

	if prev.Decision == Deny && v.Decision != Deny {
		m.opts.Notifier.ClearNotice()
	}

	switch v.Decision {
	case Redirect:
		if m.opts.Navigator != nil {
			m.opts.Navigator.Navigate(v.Target)
		}
	case Deny:
		m.opts.Notifier.ShowNotice(v.Notice)
	}

	if m.opts.OnVerdict != nil {
		m.opts.OnVerdict(v)
	}
}

func (m *Mount) fire(gen uint64, target string) {
	m.mu.Lock()
	if m.unmounted || gen != m.timerGen {
		m.mu.Unlock()
		return
	}
	m.timer = nil
	m.timerGen++
	m.mu.Unlock()

	if m.opts.Navigator != nil {
		m.opts.Navigator.Navigate(target)
	}
}

// stopTimerLocked must be called with m.mu held
func (m *Mount) stopTimerLocked() {
	m.timerGen++
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
}
