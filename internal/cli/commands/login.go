package commands

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/colyze-dev/colyze/internal/cli/app"
	"github.com/colyze-dev/colyze/internal/cli/client"
	"github.com/colyze-dev/colyze/internal/router"
)

var validate = validator.New()

// isTerminal reports whether stdin is interactive. Tests force it off.
var isTerminal = func() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// readPassword reads a secret from the terminal without echo
var readPassword = func(w io.Writer, label string) (string, error) {
	fmt.Fprintf(w, "%s: ", label)
	b, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(w)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return string(b), nil
}

// promptText asks for a line of input
var promptText = func(label string, validateFn promptui.ValidateFunc) (string, error) {
	prompt := promptui.Prompt{Label: label, Validate: validateFn}
	v, err := prompt.Run()
	if err != nil {
		return "", fmt.Errorf("%s prompt cancelled: %w", strings.ToLower(label), err)
	}
	return strings.TrimSpace(v), nil
}

// loginOrigin is where a login was asked for. It decides the landing view.
type loginOrigin struct {
	from string
	id   string
}

// path returns the login view annotated with the origin
func (o loginOrigin) path(a *app.App) (string, error) {
	switch o.from {
	case "":
		return "/login", nil
	case "collaboration":
		return router.LoginURL(a.Router.Match("/collaboration")), nil
	case "project":
		if o.id == "" {
			return "", fmt.Errorf("--id is required with --from project")
		}
		return router.LoginURL(a.Router.Match("/post/" + url.PathEscape(o.id))), nil
	default:
		return "", fmt.Errorf("unknown --from %q (want project or collaboration)", o.from)
	}
}

// NewLoginCmd creates the login command
func NewLoginCmd() *cobra.Command {
	var username, password string
	var origin loginOrigin

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in to a Colyze server",
		Long: `Sign in to a Colyze server.

Administrators land on the dashboard. Everyone else lands where the login
was asked for (--from) or on the ideas list.

Examples:
  $ colyze login --username ada
  $ colyze login --from collaboration
  $ colyze login --from project --id 01J9Z8Y7X6W5V4T3S2R1Q0P9N8`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLogin(cmd, username, password, origin)
		},
	}

	cmd.Flags().StringVar(&username, "username", "", "Username (or set COLYZE_USERNAME)")
	cmd.Flags().StringVar(&password, "password", "", "Password (or set COLYZE_PASSWORD, will prompt if not provided)")
	cmd.Flags().StringVar(&origin.from, "from", "", "Return to this view after login: project or collaboration")
	cmd.Flags().StringVar(&origin.id, "id", "", "Project to return to with --from project")

	return cmd
}

func runLogin(cmd *cobra.Command, username, password string, origin loginOrigin) error {
	// Environment variables make scripted use possible
	if username == "" {
		username = os.Getenv("COLYZE_USERNAME")
	}
	if password == "" {
		password = os.Getenv("COLYZE_PASSWORD")
	}

	out := cmd.OutOrStdout()
	if username == "" || password == "" {
		if !isTerminal() {
			return fmt.Errorf("username and password are required in non-interactive mode (use --username/--password or COLYZE_USERNAME/COLYZE_PASSWORD)")
		}
	}
	if username == "" {
		var err error
		username, err = promptText("Username", nil)
		if err != nil {
			return err
		}
	}
	if password == "" {
		var err error
		password, err = readPassword(out, "Password")
		if err != nil {
			return err
		}
	}

	if err := validate.Struct(client.LoginRequest{Username: username, Password: password}); err != nil {
		return fmt.Errorf("invalid credentials: %w", err)
	}

	a, ctx, cleanup, err := startApp(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	path, err := origin.path(a)
	if err != nil {
		return err
	}
	if _, err := a.Open(ctx, path); err != nil {
		return err
	}
	return signIn(ctx, a, out, username, password)
}

// signIn logs in from the mounted login view and reports where the user
// landed
func signIn(ctx context.Context, a *app.App, out io.Writer, username, password string) error {
	fmt.Fprintf(out, "Logging in to %s...\n", a.ServerURL())
	user, m, err := a.Login(ctx, username, password)
	if err != nil {
		return fmt.Errorf("login failed: %w", err)
	}

	fmt.Fprintln(out, "✓ Login successful!")
	fmt.Fprintf(out, "  User: %s (@%s)\n", user.Name, user.Username)
	if user.IsAdmin {
		fmt.Fprintln(out, "  Role: Admin")
	}
	fmt.Fprintf(out, "  Now at: %s\n", m.URL())
	return nil
}

// NewLogoutCmd creates the logout command
func NewLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and forget the stored session",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, ctx, cleanup, err := startApp(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			if !a.Store.State().Authenticated() {
				fmt.Fprintln(cmd.OutOrStdout(), "Not logged in.")
				return nil
			}
			if _, err := a.Logout(ctx); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "✓ Logged out")
			return nil
		},
	}
}

// NewWhoamiCmd creates the whoami command
func NewWhoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, _, cleanup, err := startApp(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			state := a.Store.State()
			out := cmd.OutOrStdout()
			if !state.Authenticated() {
				fmt.Fprintln(out, "Not logged in. Run 'colyze login' to sign in.")
				return nil
			}
			fmt.Fprintf(out, "%s (@%s) on %s\n", state.User.Name, state.User.Username, a.ServerURL())
			if state.IsAdmin() {
				fmt.Fprintln(out, "Role: Admin")
			}
			return nil
		},
	}
}
