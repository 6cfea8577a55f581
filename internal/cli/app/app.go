// Package app wires the API client, session store, router and views into
// one running client. An App corresponds to one page load of the web client.
package app

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"time"

	"github.com/rs/zerolog"

	"github.com/colyze-dev/colyze/internal/cli/auth"
	"github.com/colyze-dev/colyze/internal/cli/client"
	"github.com/colyze-dev/colyze/internal/guard"
	"github.com/colyze-dev/colyze/internal/models"
	"github.com/colyze-dev/colyze/internal/pages"
	"github.com/colyze-dev/colyze/internal/router"
	"github.com/colyze-dev/colyze/internal/session"
	"github.com/colyze-dev/colyze/internal/shell"
)

// Options configures an App
type Options struct {
	ServerURL   string
	Tokens      auth.TokenStore
	Out         io.Writer
	Timeout     time.Duration
	DenialDelay time.Duration
	Logger      zerolog.Logger

	// Scheduler overrides the denial timer; tests use a manual one
	Scheduler guard.Scheduler
	// Client replaces the API client built from ServerURL
	Client *client.Client
}

// App is a running client
type App struct {
	Client  *client.Client
	Store   *session.Store
	Router  *router.Router
	Pages   *pages.Pages
	Notices *shell.Notices

	serverURL string
	tokens    auth.TokenStore
	logger    zerolog.Logger
}

// New builds an App. The stored token for the server, if any, seeds the
// client; the session stays Unknown until Start.
func New(opts Options) (*App, error) {
	if opts.Tokens == nil {
		opts.Tokens = auth.NewMemoryStore()
	}
	if opts.Out == nil {
		opts.Out = io.Discard
	}

	c := opts.Client
	if c == nil {
		clientOpts := []client.Option{client.WithLogger(opts.Logger)}
		if opts.Timeout > 0 {
			clientOpts = append(clientOpts, client.WithTimeout(opts.Timeout))
		}
		var err error
		c, err = client.New(opts.ServerURL, clientOpts...)
		if err != nil {
			return nil, err
		}
	}

	if token, err := opts.Tokens.LoadToken(c.BaseURL()); err == nil && token != "" {
		c.SetToken(token)
	}

	a := &App{
		Client:    c,
		serverURL: c.BaseURL(),
		tokens:    opts.Tokens,
		logger:    opts.Logger,
	}

	api := &sessionAPI{client: c, tokens: opts.Tokens, serverURL: a.serverURL, logger: opts.Logger}
	a.Store = session.NewStore(api,
		session.WithLogger(opts.Logger),
		session.WithTokenSource(&tokenMirror{client: c, tokens: opts.Tokens, serverURL: a.serverURL}),
	)
	a.Pages = pages.New(c, opts.Out)
	a.Notices = shell.NewNotices(opts.Out)
	a.Router = router.New(a.Store, a.Pages, router.Options{
		Notifier:  a.Notices,
		Scheduler: opts.Scheduler,
		Delay:     opts.DenialDelay,
		Logger:    opts.Logger,
		Out:       opts.Out,
	})
	a.Store.BindNavigator(a.Router)
	return a, nil
}

// ServerURL returns the API root in use
func (a *App) ServerURL() string {
	return a.serverURL
}

// Start resolves the session. Views may be opened before it returns; they
// wait in the pending state.
func (a *App) Start(ctx context.Context) session.State {
	return a.Store.Initialize(ctx)
}

// Open navigates to path and waits until a view has rendered, following any
// redirects on the way
func (a *App) Open(ctx context.Context, path string) (router.Match, error) {
	a.Router.Navigate(path)
	return a.Router.Wait(ctx)
}

// Login signs in and opens the view the user should land on
func (a *App) Login(ctx context.Context, username, password string) (*models.User, router.Match, error) {
	var origin url.Values
	if m, ok := a.Router.Current(); ok && m.Route.Name == router.Login {
		origin = m.Query
	}

	user, err := a.Store.Login(ctx, username, password)
	if err != nil {
		return nil, router.Match{}, err
	}

	m, err := a.Open(ctx, router.AfterLogin(user, origin))
	return user, m, err
}

// Logout ends the session and reloads the home view
func (a *App) Logout(ctx context.Context) (router.Match, error) {
	a.Store.Logout(ctx)
	return a.Router.Wait(ctx)
}

// Close unmounts the current view
func (a *App) Close() {
	a.Router.Close()
}

// sessionAPI keeps the keyring in step with the session cookie
type sessionAPI struct {
	client    *client.Client
	tokens    auth.TokenStore
	serverURL string
	logger    zerolog.Logger
}

func (s *sessionAPI) Profile(ctx context.Context) (*models.User, error) {
	return s.client.Profile(ctx)
}

func (s *sessionAPI) Login(ctx context.Context, username, password string) (*client.LoginResponse, error) {
	resp, err := s.client.Login(ctx, username, password)
	if err != nil {
		return nil, err
	}
	if token := s.client.Token(); token != "" {
		if err := s.tokens.SaveToken(s.serverURL, token); err != nil {
			return nil, fmt.Errorf("failed to save session token: %w", err)
		}
	}
	return resp, nil
}

func (s *sessionAPI) Logout(ctx context.Context) error {
	if err := s.tokens.DeleteToken(s.serverURL); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to delete stored session token")
	}
	return s.client.Logout(ctx)
}

// tokenMirror exposes the client's token to the session store; clearing it
// also forgets the stored copy
type tokenMirror struct {
	client    *client.Client
	tokens    auth.TokenStore
	serverURL string
}

func (t *tokenMirror) Token() string {
	return t.client.Token()
}

func (t *tokenMirror) SetToken(token string) {
	t.client.SetToken(token)
	if token == "" {
		_ = t.tokens.DeleteToken(t.serverURL)
		return
	}
	_ = t.tokens.SaveToken(t.serverURL, token)
}
