package commands

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"

	"github.com/colyze-dev/colyze/internal/cli/app"
	"github.com/colyze-dev/colyze/internal/router"
	"github.com/colyze-dev/colyze/internal/shell"
)

const quitLabel = "Quit"

// chooseLink asks which link to follow next. Tests replace it.
var chooseLink = func(links []shell.Link) (shell.Link, error) {
	items := append(append([]shell.Link{}, links...), shell.Link{Label: quitLabel})

	prompt := promptui.Select{
		Label: "Go to",
		Items: items,
		Templates: &promptui.SelectTemplates{
			Label:    "{{ . }}",
			Active:   "> {{ .Label | cyan }}",
			Inactive: "  {{ .Label }}",
			Selected: "{{ .Label | green }}",
		},
		Size: len(items),
	}

	index, _, err := prompt.Run()
	if err != nil {
		return shell.Link{}, err
	}
	return items[index], nil
}

// NewBrowseCmd creates the browse command
func NewBrowseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "browse [path]",
		Short: "Navigate interactively, starting at path (default /)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			start := "/"
			if len(args) > 0 {
				start = args[0]
			}

			a, ctx, cleanup, err := startApp(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			return browse(ctx, a, cmd.OutOrStdout(), start)
		},
	}
}

func browse(ctx context.Context, a *app.App, out io.Writer, start string) error {
	if _, err := a.Open(ctx, start); err != nil {
		return err
	}

	for {
		link, err := chooseLink(shell.Links(a.Store.State()))
		if errors.Is(err, promptui.ErrInterrupt) || errors.Is(err, promptui.ErrEOF) {
			return nil
		}
		if err != nil {
			return err
		}

		fmt.Fprintln(out)
		switch {
		case link.Label == quitLabel:
			return nil
		case link.Action():
			shell.Logout(ctx, a.Store)
			_, err = a.Router.Wait(ctx)
		case link.Path == "/login":
			err = browseLogin(ctx, a, out)
		default:
			_, err = a.Open(ctx, link.Path)
		}
		if err != nil && ctx.Err() != nil {
			return err
		}
		if err != nil {
			fmt.Fprintf(out, "Error: %v\n", err)
		}
	}
}

// browseLogin signs in from the login view. A login view that is already
// mounted keeps its origin, so the user returns to where they were sent from.
func browseLogin(ctx context.Context, a *app.App, out io.Writer) error {
	if m, ok := a.Router.Current(); !ok || m.Route.Name != router.Login {
		if _, err := a.Open(ctx, "/login"); err != nil {
			return err
		}
	}

	username, err := promptText("Username", fieldValidator("required"))
	if err != nil {
		return err
	}
	password, err := readPassword(out, "Password")
	if err != nil {
		return err
	}
	return signIn(ctx, a, out, username, password)
}
