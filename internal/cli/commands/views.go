package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/colyze-dev/colyze/internal/pages"
	"github.com/colyze-dev/colyze/internal/shell"
	"github.com/colyze-dev/colyze/internal/views"
)

// NewOpenCmd creates the open command
func NewOpenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "open <path>",
		Short: "Open a view by path, e.g. /ideas or /post/<id>",
		Long: `Open a view by path.

Views that need a signed-in user redirect to /login. Administrator views
show a notice to other users and return to / after a short delay.

Examples:
  $ colyze open /ideas
  $ colyze open /post/01J9Z8Y7X6W5V4T3S2R1Q0P9N8
  $ colyze open /admin`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, ctx, cleanup, err := startApp(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			_, err = a.Open(ctx, args[0])
			return err
		},
	}
}

// NewIdeasCmd creates the ideas command
func NewIdeasCmd() *cobra.Command {
	var q views.IdeasQuery
	var page int

	cmd := &cobra.Command{
		Use:   "ideas",
		Short: "Browse project ideas",
		RunE: func(cmd *cobra.Command, args []string) error {
			if page < 1 {
				return fmt.Errorf("--page must be 1 or greater")
			}
			q.Page = page - 1
			if err := q.Validate(); err != nil {
				return err
			}

			a, ctx, cleanup, err := startApp(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			a.Pages.SetIdeasQuery(q)
			_, err = a.Open(ctx, "/ideas")
			return err
		},
	}

	cmd.Flags().StringVar(&q.Tag, "tag", views.All, "Filter by tag")
	cmd.Flags().StringVar(&q.Stage, "stage", views.All, "Filter by stage")
	cmd.Flags().StringVar(&q.Search, "search", "", "Search titles and summaries")
	cmd.Flags().StringVar(&q.Sort, "sort", views.SortNewest, "Sort order: newest, oldest or popular")
	cmd.Flags().IntVar(&page, "page", 1, "Page number")
	cmd.Flags().IntVar(&q.PageSize, "page-size", views.DefaultPageSize, "Projects per page")

	return cmd
}

// NewAdminCmd creates the admin command
func NewAdminCmd() *cobra.Command {
	var q pages.AdminQuery
	var showUpdates bool

	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Open the administrator dashboard",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, ctx, cleanup, err := startApp(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			a.Pages.SetAdminQuery(q)
			path := "/admin"
			if showUpdates {
				path = "/admin/updates"
			}
			_, err = a.Open(ctx, path)
			return err
		},
	}

	cmd.Flags().StringVar(&q.Search, "search", "", "Search users by username or email, projects by title or author")
	cmd.Flags().StringVar(&q.Status, "status", views.StatusAll, "Filter projects by status")
	cmd.Flags().BoolVar(&showUpdates, "updates", false, "Show project updates instead")

	return cmd
}

// NewNavCmd creates the nav command
func NewNavCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "nav",
		Short: "Show the navigation links available to you",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, _, cleanup, err := startApp(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			out := cmd.OutOrStdout()
			state := a.Store.State()
			if err := shell.Render(out, state); err != nil {
				return err
			}
			for _, l := range shell.Links(state) {
				if l.Action() {
					fmt.Fprintf(out, "  %-16s colyze logout\n", l.Label)
					continue
				}
				fmt.Fprintf(out, "  %-16s colyze open %s\n", l.Label, l.Path)
			}
			return nil
		},
	}
}
