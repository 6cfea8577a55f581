// Package guard decides whether navigation to a view may proceed, based on
// the session phase.
package guard

import (
	"context"
	"fmt"

	"github.com/colyze-dev/colyze/internal/models"
	"github.com/colyze-dev/colyze/internal/session"
)

const (
	LoginPath    = "/login"
	FallbackPath = "/"

	DefaultDenialNotice = "Access denied: administrator privileges are required."
)

// Decision is the outcome of a guard check
type Decision int

const (
	// Pending means the session is not resolved yet; nothing may happen
	Pending Decision = iota
	// Allow lets the view render
	Allow
	// Redirect silently moves to another route
	Redirect
	// Deny shows a notice, then moves to another route after a delay
	Deny
)

func (d Decision) String() string {
	switch d {
	case Pending:
		return "pending"
	case Allow:
		return "allow"
	case Redirect:
		return "redirect"
	case Deny:
		return "deny"
	default:
		return fmt.Sprintf("decision(%d)", int(d))
	}
}

// Verdict is what a guard decided for one session snapshot
type Verdict struct {
	Decision Decision
	Target   string // destination for Redirect and Deny
	Notice   string // message shown for Deny
}

// Guard decides whether the current navigation may proceed. Check never
// fails: every error becomes a Redirect or a Deny.
type Guard interface {
	Check(ctx context.Context, state session.State) Verdict
}

// Public lets everyone through
type Public struct{}

func (Public) Check(context.Context, session.State) Verdict {
	return Verdict{Decision: Allow}
}

// Authenticated requires a signed-in user and redirects anonymous visitors
// to the login view
type Authenticated struct {
	LoginPath string
}

func (g Authenticated) Check(_ context.Context, state session.State) Verdict {
	switch {
	case !state.Resolved():
		return Verdict{Decision: Pending}
	case state.Authenticated():
		return Verdict{Decision: Allow}
	default:
		return Verdict{Decision: Redirect, Target: orDefault(g.LoginPath, LoginPath)}
	}
}

// Verifier re-checks the session against the server
type Verifier interface {
	Revalidate(ctx context.Context) (*models.User, error)
}

// Admin requires a signed-in administrator. The admin flag of the snapshot is
// only a precondition: the server must confirm it through Verifier.
type Admin struct {
	Verifier     Verifier
	FallbackPath string
	Notice       string
}

func (g Admin) Check(ctx context.Context, state session.State) Verdict {
	if !state.Resolved() {
		return Verdict{Decision: Pending}
	}
	if !state.IsAdmin() {
		return g.deny()
	}
	if g.Verifier == nil {
		return g.deny()
	}

	user, err := g.Verifier.Revalidate(ctx)
	if err != nil || user == nil || !user.IsAdmin {
		return g.deny()
	}
	return Verdict{Decision: Allow}
}

func (g Admin) deny() Verdict {
	return Verdict{
		Decision: Deny,
		Target:   orDefault(g.FallbackPath, FallbackPath),
		Notice:   orDefault(g.Notice, DefaultDenialNotice),
	}
}

func orDefault(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
