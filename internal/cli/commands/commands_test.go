package commands

import (
	"bytes"
	"io"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/manifoldco/promptui"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/colyze-dev/colyze/internal/cli/app"
	"github.com/colyze-dev/colyze/internal/cli/auth"
	"github.com/colyze-dev/colyze/internal/cli/config"
	"github.com/colyze-dev/colyze/internal/cli/userconfig"
	envconfig "github.com/colyze-dev/colyze/internal/config"
	"github.com/colyze-dev/colyze/internal/devserver"
	"github.com/colyze-dev/colyze/internal/shell"
)

// execute runs sub under a minimal root and returns what it printed
func execute(t *testing.T, sub *cobra.Command, args ...string) (string, error) {
	t.Helper()
	root := &cobra.Command{Use: "colyze", SilenceUsage: true, SilenceErrors: true}
	root.PersistentFlags().String(ServerFlag, "", "")
	root.AddCommand(sub)

	var buf bytes.Buffer
	root.SetOut(&buf)
	root.SetErr(&buf)
	root.SetArgs(append([]string{sub.Name()}, args...))
	err := root.Execute()
	return buf.String(), err
}

// isolate gives the test its own working directory and home
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	chdir(t, dir)
	t.Setenv("HOME", t.TempDir())
	t.Setenv("XDG_CONFIG_HOME", "")
	t.Setenv("COLYZE_API_URL", "")

	prev := isTerminal
	isTerminal = func() bool { return false }
	t.Cleanup(func() { isTerminal = prev })
	return dir
}

// withDevServer points every command at an in-process API server
func withDevServer(t *testing.T) *devserver.Server {
	t.Helper()
	isolate(t)

	srv, err := devserver.New(envconfig.DevConfig{Secret: "commands-test"}, zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, srv.SeedDemo())
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	tokens := auth.NewMemoryStore()
	prev := newApp
	newApp = func(cmd *cobra.Command) (*app.App, error) {
		return app.New(app.Options{
			ServerURL:   ts.URL,
			Tokens:      tokens,
			Out:         cmd.OutOrStdout(),
			DenialDelay: 10 * time.Millisecond,
		})
	}
	t.Cleanup(func() { newApp = prev })
	return srv
}

func TestInit_CreatesAndExtendsConfig(t *testing.T) {
	dir := isolate(t)

	out, err := execute(t, NewInitCmd(), "https://api.colyze.dev")
	require.NoError(t, err)
	assert.Contains(t, out, "Created ./colyze.json")

	out, err = execute(t, NewInitCmd(), "http://localhost:4000")
	require.NoError(t, err)
	assert.Contains(t, out, "Added server http://localhost:4000 (server-2)")

	out, err = execute(t, NewInitCmd(), "https://api.colyze.dev")
	require.NoError(t, err)
	assert.Contains(t, out, "already exists")

	cfg, err := config.Load(filepath.Join(dir, config.ConfigFileName))
	require.NoError(t, err)
	require.Len(t, cfg.Servers, 2)
	assert.Equal(t, "production", cfg.Servers[0].Alias)
	assert.Equal(t, "server-2", cfg.Servers[1].Alias)
}

func TestInit_RejectsInvalidURL(t *testing.T) {
	isolate(t)
	_, err := execute(t, NewInitCmd(), "not a url")
	assert.Error(t, err)

	_, err = execute(t, NewInitCmd(), "https://example.com", "--alias", "prod")
	require.NoError(t, err)
	_, err = execute(t, NewInitCmd(), "https://other.example.com", "--alias", "prod")
	assert.ErrorContains(t, err, "already in use")
}

func TestSelectServer(t *testing.T) {
	dir := isolate(t)
	cfg := &config.Config{Servers: []config.Server{
		{URL: "https://api.colyze.dev", Alias: "production"},
		{URL: "http://localhost:4000", Alias: "local"},
	}}
	require.NoError(t, config.Save(filepath.Join(dir, config.ConfigFileName), cfg))

	out, err := execute(t, NewSelectServerCmd(), "local")
	require.NoError(t, err)
	assert.Contains(t, out, "Selected server: local (http://localhost:4000)")

	selected, err := userconfig.Selected()
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:4000", selected)

	_, err = execute(t, NewSelectServerCmd(), "staging")
	assert.Error(t, err)
}

func TestResolveServerURL(t *testing.T) {
	dir := isolate(t)
	cfg := &config.Config{Servers: []config.Server{
		{URL: "https://api.colyze.dev", Alias: "production"},
		{URL: "http://localhost:4000", Alias: "local"},
	}}
	require.NoError(t, config.Save(filepath.Join(dir, config.ConfigFileName), cfg))

	cmd := &cobra.Command{}
	cmd.Flags().String(ServerFlag, "local", "")

	got, err := resolveServerURL(cmd, &envconfig.Config{})
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:4000", got)

	got, err = resolveServerURL(cmd, &envconfig.Config{API: envconfig.APIConfig{URL: "http://override:1"}})
	require.NoError(t, err)
	assert.Equal(t, "http://override:1", got)
}

func TestResolveServerURL_NoConfig(t *testing.T) {
	isolate(t)
	cmd := &cobra.Command{}
	cmd.Flags().String(ServerFlag, "", "")

	_, err := resolveServerURL(cmd, &envconfig.Config{})
	assert.ErrorContains(t, err, "colyze init")
}

func TestLogin_NonInteractiveNeedsPassword(t *testing.T) {
	withDevServer(t)
	t.Setenv("COLYZE_PASSWORD", "")

	_, err := execute(t, NewLoginCmd(), "--username", "ada")
	assert.ErrorContains(t, err, "non-interactive")
}

func TestLoginWhoamiLogout(t *testing.T) {
	srv := withDevServer(t)

	out, err := execute(t, NewWhoamiCmd())
	require.NoError(t, err)
	assert.Contains(t, out, "Not logged in")

	t.Setenv("COLYZE_USERNAME", "ada")
	t.Setenv("COLYZE_PASSWORD", "password123")
	out, err = execute(t, NewLoginCmd())
	require.NoError(t, err)
	assert.Contains(t, out, "Login successful")
	assert.Contains(t, out, "Ada Lovelace (@ada)")

	hits := srv.ProfileHits()
	out, err = execute(t, NewWhoamiCmd())
	require.NoError(t, err)
	assert.Contains(t, out, "Ada Lovelace (@ada)")
	assert.Equal(t, hits+1, srv.ProfileHits(), "one profile fetch per run")

	out, err = execute(t, NewLogoutCmd())
	require.NoError(t, err)
	assert.Contains(t, out, "Logged out")

	out, err = execute(t, NewWhoamiCmd())
	require.NoError(t, err)
	assert.Contains(t, out, "Not logged in")
}

func TestLogin_WrongPassword(t *testing.T) {
	withDevServer(t)
	_, err := execute(t, NewLoginCmd(), "--username", "ada", "--password", "nope")
	assert.ErrorContains(t, err, "login failed")
}

func TestIdeas(t *testing.T) {
	withDevServer(t)

	out, err := execute(t, NewIdeasCmd(), "--tag", "AI")
	require.NoError(t, err)
	assert.Contains(t, out, "1 projects found")
	assert.Contains(t, out, "Chess engine")

	_, err = execute(t, NewIdeasCmd(), "--sort", "random")
	assert.Error(t, err)

	_, err = execute(t, NewIdeasCmd(), "--page", "0")
	assert.Error(t, err)
}

func TestOpen_MemberRouteRedirectsAnonymous(t *testing.T) {
	withDevServer(t)

	out, err := execute(t, NewOpenCmd(), "/collaboration")
	require.NoError(t, err)
	assert.Contains(t, out, "Please log in to manage your collaborations.")
}

func TestAdmin_DeniedForMembers(t *testing.T) {
	withDevServer(t)
	_, err := execute(t, NewLoginCmd(), "--username", "grace", "--password", "password123")
	require.NoError(t, err)

	out, err := execute(t, NewAdminCmd())
	require.NoError(t, err)
	assert.Contains(t, out, "administrator privileges are required")
	assert.Contains(t, out, "Browse ideas with: colyze ideas", "lands on home after the notice")
}

func TestAdmin_AllowedForAdmins(t *testing.T) {
	withDevServer(t)
	_, err := execute(t, NewLoginCmd(), "--username", "admin", "--password", "password123")
	require.NoError(t, err)

	out, err := execute(t, NewAdminCmd(), "--search", "chess")
	require.NoError(t, err)
	assert.Contains(t, out, "Pending approvals: 1")
	assert.Contains(t, out, "Chess engine")
	assert.NotContains(t, out, "Honeypot fleet")

	out, err = execute(t, NewAdminCmd(), "--updates")
	require.NoError(t, err)
	assert.Contains(t, out, "perft")
}

func TestNav(t *testing.T) {
	withDevServer(t)

	out, err := execute(t, NewNavCmd())
	require.NoError(t, err)
	assert.Contains(t, out, "colyze open /register")
	assert.NotContains(t, out, "colyze logout")
}

func TestRegister(t *testing.T) {
	withDevServer(t)

	out, err := execute(t, NewRegisterCmd(),
		"--name", "Linus", "--email", "linus@example.com", "--username", "linus", "--password", "kernel-hacker")
	require.NoError(t, err)
	assert.Contains(t, out, "Registered @linus")

	_, err = execute(t, NewRegisterCmd(),
		"--name", "X", "--email", "bad", "--username", "xx", "--password", "short")
	assert.ErrorContains(t, err, "invalid registration")

	_, err = execute(t, NewRegisterCmd(), "--name", "Only Name")
	assert.ErrorContains(t, err, "non-interactive")
}

// scriptLinks makes browse follow the given link labels in order
func scriptLinks(t *testing.T, labels ...string) *[]string {
	t.Helper()
	script := append([]string(nil), labels...)
	prev := chooseLink
	chooseLink = func(links []shell.Link) (shell.Link, error) {
		require.NotEmpty(t, script, "browse asked for more links than scripted")
		next := script[0]
		script = script[1:]
		for _, l := range links {
			if l.Label == next {
				return l, nil
			}
		}
		return shell.Link{Label: next}, nil
	}
	t.Cleanup(func() { chooseLink = prev })
	return &script
}

// typeCredentials answers the username and password prompts
func typeCredentials(t *testing.T, username, password string) {
	t.Helper()
	prevText, prevPassword := promptText, readPassword
	promptText = func(string, promptui.ValidateFunc) (string, error) { return username, nil }
	readPassword = func(io.Writer, string) (string, error) { return password, nil }
	t.Cleanup(func() {
		promptText = prevText
		readPassword = prevPassword
	})
}

func TestBrowse(t *testing.T) {
	withDevServer(t)
	script := scriptLinks(t, "About Us", "Register", quitLabel)

	out, err := execute(t, NewBrowseCmd())
	require.NoError(t, err)
	assert.Contains(t, out, "Colyze connects people")
	assert.Contains(t, out, "Create an account with: colyze register")
	assert.Empty(t, *script)
}

func TestBrowse_LoginReturnsToOrigin(t *testing.T) {
	withDevServer(t)
	script := scriptLinks(t, "Login", quitLabel)
	typeCredentials(t, "ada", "password123")

	out, err := execute(t, NewBrowseCmd(), "/collaboration")
	require.NoError(t, err)
	assert.Empty(t, *script)

	loginAt := strings.Index(out, "Please log in to manage your collaborations.")
	landedAt := strings.Index(out, "Collaboration requests on your projects")
	require.NotEqual(t, -1, loginAt)
	require.NotEqual(t, -1, landedAt)
	assert.Less(t, loginAt, landedAt)
	assert.Contains(t, out, "Now at: /collaboration")
}

func TestBrowse_LoginFailureStaysOnLogin(t *testing.T) {
	withDevServer(t)
	scriptLinks(t, "Login", quitLabel)
	typeCredentials(t, "ada", "wrong-password")

	out, err := execute(t, NewBrowseCmd())
	require.NoError(t, err)
	assert.Contains(t, out, "Error: login failed")
}

func TestLogin_FromOrigin(t *testing.T) {
	withDevServer(t)

	out, err := execute(t, NewLoginCmd(), "--username", "ada", "--password", "password123", "--from", "collaboration")
	require.NoError(t, err)
	assert.Contains(t, out, "Please log in to manage your collaborations.")
	assert.Contains(t, out, "Now at: /collaboration")
	assert.Contains(t, out, "Collaboration requests on your projects")

	_, err = execute(t, NewLoginCmd(), "--username", "ada", "--password", "password123", "--from", "project")
	assert.ErrorContains(t, err, "--id is required")

	_, err = execute(t, NewLoginCmd(), "--username", "ada", "--password", "password123", "--from", "elsewhere")
	assert.ErrorContains(t, err, "unknown --from")
}

func TestLogin_AdminIgnoresOrigin(t *testing.T) {
	withDevServer(t)

	out, err := execute(t, NewLoginCmd(), "--username", "admin", "--password", "password123", "--from", "collaboration")
	require.NoError(t, err)
	assert.Contains(t, out, "Now at: /admin")
}

func projectID(t *testing.T, srv *devserver.Server, title string) string {
	t.Helper()
	posts, err := srv.Posts()
	require.NoError(t, err)
	for _, p := range posts {
		if p.Title == title {
			return p.ID
		}
	}
	t.Fatalf("no project %q", title)
	return ""
}

var createArgs = []string{
	"--title", "Compiler course", "--summary", "Write a toy compiler together",
	"--content", "Lexer, parser and a tiny VM", "--tag", "AI",
	"--position", "Backend", "--team-size", "2", "--stage", "Planning",
}

func TestCreate(t *testing.T) {
	srv := withDevServer(t)

	_, err := execute(t, NewCreateCmd(), createArgs...)
	assert.ErrorContains(t, err, "logged in to create a project")

	_, err = execute(t, NewLoginCmd(), "--username", "ada", "--password", "password123")
	require.NoError(t, err)

	out, err := execute(t, NewCreateCmd(), createArgs...)
	require.NoError(t, err)
	assert.Contains(t, out, `Created "Compiler course"`)
	assert.Contains(t, out, "4 projects found", "ideas list is reloaded")
	assert.NotEmpty(t, projectID(t, srv, "Compiler course"))

	_, err = execute(t, NewCreateCmd(), "--title", "Only a title")
	assert.ErrorContains(t, err, "non-interactive")

	tooMany := append(append([]string(nil), createArgs...), "--position", "UI", "--position", "ML")
	_, err = execute(t, NewCreateCmd(), tooMany...)
	assert.ErrorContains(t, err, "up to 2 roles")
}

func TestEdit(t *testing.T) {
	srv := withDevServer(t)
	chess := projectID(t, srv, "Chess engine")
	honeypot := projectID(t, srv, "Honeypot fleet")

	_, err := execute(t, NewLoginCmd(), "--username", "ada", "--password", "password123")
	require.NoError(t, err)

	out, err := execute(t, NewEditCmd(), chess, "--stage", "Testing")
	require.NoError(t, err)
	assert.Contains(t, out, `Updated "Chess engine"`)
	assert.Regexp(t, `Stage:\s+Testing`, out)

	_, err = execute(t, NewEditCmd(), chess)
	assert.ErrorContains(t, err, "nothing to change")

	_, err = execute(t, NewEditCmd(), honeypot, "--title", "Mine now")
	assert.ErrorContains(t, err, "your own projects")
}

func TestCollaborate(t *testing.T) {
	srv := withDevServer(t)
	honeypot := projectID(t, srv, "Honeypot fleet")
	chess := projectID(t, srv, "Chess engine")

	_, err := execute(t, NewCollaborateCmd(), honeypot, "--message", "hi")
	assert.ErrorContains(t, err, "logged in to join a project")

	_, err = execute(t, NewLoginCmd(), "--username", "ada", "--password", "password123")
	require.NoError(t, err)

	_, err = execute(t, NewCollaborateCmd(), chess, "--message", "hi")
	assert.ErrorContains(t, err, "your own project")

	_, err = execute(t, NewCollaborateCmd(), honeypot, "--role", "Chef", "--message", "hi")
	assert.ErrorContains(t, err, "not an open position")

	out, err := execute(t, NewCollaborateCmd(), honeypot, "--role", "Networking", "--message", "I run a honeynet at home")
	require.NoError(t, err)
	assert.Contains(t, out, `Asked @grace to join "Honeypot fleet"`)

	_, err = execute(t, NewCollaborateCmd(), honeypot, "--message", "again")
	assert.ErrorContains(t, err, "already asked")
}

func TestMain(m *testing.M) {
	tokenStore = func() auth.TokenStore { return auth.NewMemoryStore() }
	os.Exit(m.Run())
}
