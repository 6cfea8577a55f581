package session

import "github.com/colyze-dev/colyze/internal/models"

// Phase is the three-valued login status of the current visitor
type Phase int

const (
	// PhaseUnknown is the initial phase while the profile fetch is in flight
	PhaseUnknown Phase = iota
	// PhaseAnonymous means the fetch completed without a valid session
	PhaseAnonymous
	// PhaseAuthenticated means the server confirmed who the user is
	PhaseAuthenticated
)

func (p Phase) String() string {
	switch p {
	case PhaseUnknown:
		return "unknown"
	case PhaseAnonymous:
		return "anonymous"
	case PhaseAuthenticated:
		return "authenticated"
	default:
		return "invalid"
	}
}

// State is an immutable snapshot of the session. Version increases with every
// transition so consumers can drop stale snapshots.
type State struct {
	Phase   Phase
	User    *models.User
	Version uint64
}

// Resolved reports whether the phase is decision-ready
func (s State) Resolved() bool {
	return s.Phase != PhaseUnknown
}

// Authenticated reports whether a user is signed in
func (s State) Authenticated() bool {
	return s.Phase == PhaseAuthenticated && s.User != nil
}

// IsAdmin reports whether the signed-in user carries the admin flag
func (s State) IsAdmin() bool {
	return s.Authenticated() && s.User.IsAdmin
}

// UserID returns the signed-in user's id, or ""
func (s State) UserID() string {
	if !s.Authenticated() {
		return ""
	}
	return s.User.ID
}
