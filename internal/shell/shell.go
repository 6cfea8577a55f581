// Package shell is the navigation bar shown above every view
package shell

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"

	"github.com/colyze-dev/colyze/internal/session"
)

// LogoutPath marks the logout action in a link set
const LogoutPath = "logout"

// Link is one navigation entry
type Link struct {
	Label string
	Path  string
}

// Action reports whether the link triggers an action instead of navigating
func (l Link) Action() bool {
	return l.Path == LogoutPath
}

var (
	aboutUs  = Link{"About Us", "/about-us"}
	contact  = Link{"Contact", "/contact"}
	login    = Link{"Login", "/login"}
	register = Link{"Register", "/register"}

	ideas         = Link{"Ideas", "/ideas"}
	create        = Link{"Create Project", "/create"}
	collaboration = Link{"Collaborations", "/collaboration"}
	admin         = Link{"Admin", "/admin"}
	profile       = Link{"Profile", "/profile"}
	updates       = Link{"My Updates", "/updates"}
	adminUpdates  = Link{"Admin Updates", "/admin/updates"}
	logout        = Link{"Logout", LogoutPath}
)

// Links returns the link set for a session snapshot. Until the session
// resolves only the public links are offered, so nothing flashes in and out.
func Links(state session.State) []Link {
	links := []Link{aboutUs, contact}

	switch {
	case !state.Resolved():
		return links
	case !state.Authenticated():
		return append(links, login, register)
	}

	links = append(links, ideas, create, collaboration)
	if state.IsAdmin() {
		links = append(links, admin)
	}
	links = append(links, profile, updates)
	if state.IsAdmin() {
		links = append(links, adminUpdates)
	}
	return append(links, logout)
}

var (
	brandStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("0")).
			Background(lipgloss.Color("51")).
			Padding(0, 1)

	linkStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("45"))

	actionStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("203"))

	userStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245"))

	noticeStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("231")).
			Background(lipgloss.Color("160")).
			Padding(0, 1)
)

// Render draws the navigation bar for state
func Render(w io.Writer, state session.State) error {
	parts := []string{brandStyle.Render("Colyze")}
	for _, l := range Links(state) {
		style := linkStyle
		if l.Action() {
			style = actionStyle
		}
		parts = append(parts, style.Render(l.Label))
	}
	if state.Authenticated() {
		parts = append(parts, userStyle.Render("@"+state.User.Username))
	}

	_, err := fmt.Fprintln(w, strings.Join(parts, "  "))
	return err
}

// SessionEnder is the part of the session store behind the logout link
type SessionEnder interface {
	Logout(ctx context.Context)
}

// Logout ends the session. The store clears the user and reloads the home
// view.
func Logout(ctx context.Context, s SessionEnder) {
	s.Logout(ctx)
}

// Notices prints denial notices. It satisfies guard.Notifier.
type Notices struct {
	mu      sync.Mutex
	w       io.Writer
	current string
}

// NewNotices writes notices to w
func NewNotices(w io.Writer) *Notices {
	return &Notices{w: w}
}

func (n *Notices) ShowNotice(msg string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.current = msg
	fmt.Fprintln(n.w, noticeStyle.Render(msg))
}

func (n *Notices) ClearNotice() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.current = ""
}

// Current returns the notice on screen, or ""
func (n *Notices) Current() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.current
}
