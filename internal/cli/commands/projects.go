package commands

import (
	"fmt"
	"net/url"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/colyze-dev/colyze/internal/cli/app"
	"github.com/colyze-dev/colyze/internal/cli/client"
	"github.com/colyze-dev/colyze/internal/models"
	"github.com/colyze-dev/colyze/internal/router"
	"github.com/colyze-dev/colyze/internal/session"
	"github.com/colyze-dev/colyze/internal/views"
)

func addPostFlags(cmd *cobra.Command, in *client.PostInput) {
	cmd.Flags().StringVar(&in.Title, "title", "", "Project title")
	cmd.Flags().StringVar(&in.Summary, "summary", "", "One-line summary")
	cmd.Flags().StringVar(&in.Content, "content", "", "Full description")
	cmd.Flags().StringSliceVar(&in.Tags, "tag", nil, "Tag, repeatable: "+strings.Join(views.Tags[1:], ", "))
	cmd.Flags().StringSliceVar(&in.Positions, "position", nil, "Open role, repeatable")
	cmd.Flags().IntVar(&in.TeamSize, "team-size", 0, "Seats on the team, at least the number of open roles")
	cmd.Flags().StringVar(&in.Stage, "stage", "", "Stage: "+strings.Join(views.Stages[1:], ", "))
	cmd.Flags().StringVar(&in.Cover, "cover", "", "Cover image")
}

// promptPost asks for the text fields the flags left empty
func promptPost(in *client.PostInput) error {
	missing := in.Title == "" || in.Summary == "" || in.Content == "" || in.Stage == ""
	if !missing {
		return nil
	}
	if !isTerminal() {
		return fmt.Errorf("--title, --summary, --content and --stage are required in non-interactive mode")
	}

	prompts := []struct {
		label string
		tag   string
		dst   *string
	}{
		{"Title", "required,max=120", &in.Title},
		{"Summary", "required,max=300", &in.Summary},
		{"Description", "required", &in.Content},
		{"Stage", "required", &in.Stage},
	}
	for _, p := range prompts {
		if *p.dst != "" {
			continue
		}
		v, err := promptText(p.label, fieldValidator(p.tag))
		if err != nil {
			return err
		}
		*p.dst = v
	}
	return nil
}

func checkPost(in client.PostInput) error {
	if err := validate.Struct(in); err != nil {
		return fmt.Errorf("invalid project: %w", err)
	}
	return in.CheckRoles()
}

// writeFailed reports a rejected write. A 401 means the server dropped the
// session, so the local one goes too.
func writeFailed(a *app.App, state session.State, what string, err error) error {
	if session.IsUnauthenticated(err) {
		a.Store.Expire(state.Version)
		return fmt.Errorf("failed to %s: session expired, run 'colyze login'", what)
	}
	return fmt.Errorf("failed to %s: %w", what, err)
}

func notSignedIn(what string) error {
	return fmt.Errorf("you need to be logged in to %s. Run 'colyze login'", what)
}

// NewCreateCmd creates the create command
func NewCreateCmd() *cobra.Command {
	var in client.PostInput

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Share a new project idea",
		Example: `  $ colyze create --title "Chess engine" --summary "Minimax in Go" \
      --content "Search, evaluation and a terminal board" \
      --tag AI --tag GameDev --position Backend --team-size 3 --stage Planning`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCreate(cmd, in)
		},
	}
	addPostFlags(cmd, &in)
	return cmd
}

func runCreate(cmd *cobra.Command, in client.PostInput) error {
	if err := promptPost(&in); err != nil {
		return err
	}
	if err := checkPost(in); err != nil {
		return err
	}

	a, ctx, cleanup, err := startApp(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	m, err := a.Open(ctx, "/create")
	if err != nil {
		return err
	}
	state := a.Store.State()
	if m.Route.Name != router.Create || !views.CanCreate(state) {
		return notSignedIn("create a project")
	}

	post, err := a.Client.CreatePost(ctx, in)
	if err != nil {
		return writeFailed(a, state, "create project", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✓ Created %q (%s)\n\n", post.Title, post.ID)

	// The cached list predates the new project
	a.Router.Reload("/ideas")
	_, err = a.Router.Wait(ctx)
	return err
}

// NewEditCmd creates the edit command
func NewEditCmd() *cobra.Command {
	var in client.PostInput

	cmd := &cobra.Command{
		Use:   "edit <project-id>",
		Short: "Change one of your projects",
		Long: `Change one of your projects. Only the flags you pass are changed.

Examples:
  $ colyze edit 01J9Z8Y7X6W5V4T3S2R1Q0P9N8 --stage Development
  $ colyze edit 01J9Z8Y7X6W5V4T3S2R1Q0P9N8 --position Backend --position UI --team-size 4`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEdit(cmd, args[0], in)
		},
	}
	addPostFlags(cmd, &in)
	return cmd
}

// mergePost starts from the stored project and applies the flags that were set
func mergePost(cmd *cobra.Command, post models.Post, in client.PostInput) (client.PostInput, bool) {
	merged := client.PostInput{
		Title:     post.Title,
		Summary:   post.Summary,
		Content:   post.Content,
		Tags:      post.Tags,
		Positions: post.Positions,
		TeamSize:  post.TeamSize,
		Stage:     post.EffectiveStage(),
	}

	flags := cmd.Flags()
	changed := false
	set := func(name string, apply func()) {
		if flags.Changed(name) {
			apply()
			changed = true
		}
	}
	set("title", func() { merged.Title = in.Title })
	set("summary", func() { merged.Summary = in.Summary })
	set("content", func() { merged.Content = in.Content })
	set("tag", func() { merged.Tags = in.Tags })
	set("position", func() { merged.Positions = in.Positions })
	set("team-size", func() { merged.TeamSize = in.TeamSize })
	set("stage", func() { merged.Stage = in.Stage })
	set("cover", func() { merged.Cover = in.Cover })
	return merged, changed
}

func runEdit(cmd *cobra.Command, id string, in client.PostInput) error {
	a, ctx, cleanup, err := startApp(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	m, err := a.Open(ctx, "/edit/"+url.PathEscape(id))
	if err != nil {
		return err
	}
	state := a.Store.State()
	if m.Route.Name != router.Edit {
		return notSignedIn("edit a project")
	}

	post, err := a.Client.GetPost(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to load project: %w", err)
	}
	if !views.CanEdit(state, *post) {
		return fmt.Errorf("you can only edit your own projects")
	}

	merged, changed := mergePost(cmd, *post, in)
	if !changed {
		return fmt.Errorf("nothing to change: pass --title, --summary, --content, --tag, --position, --team-size or --stage")
	}
	if err := checkPost(merged); err != nil {
		return err
	}

	updated, err := a.Client.UpdatePost(ctx, id, merged)
	if err != nil {
		return writeFailed(a, state, "update project", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "\n✓ Updated %q\n\n", updated.Title)

	_, err = a.Open(ctx, "/post/"+url.PathEscape(id))
	return err
}

// NewCollaborateCmd creates the collaborate command
func NewCollaborateCmd() *cobra.Command {
	var message string
	var roles []string

	cmd := &cobra.Command{
		Use:   "collaborate <project-id>",
		Short: "Ask to join someone else's project",
		Example: `  $ colyze collaborate 01J9Z8Y7X6W5V4T3S2R1Q0P9N8 --role Backend \
      --message "I have shipped two chess engines"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCollaborate(cmd, args[0], message, roles)
		},
	}

	cmd.Flags().StringVarP(&message, "message", "m", "", "Why you would be a good fit")
	cmd.Flags().StringSliceVar(&roles, "role", nil, "Open position you want, repeatable")
	return cmd
}

func runCollaborate(cmd *cobra.Command, id, message string, roles []string) error {
	if message == "" && !isTerminal() {
		return fmt.Errorf("--message is required in non-interactive mode")
	}

	a, ctx, cleanup, err := startApp(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	m, err := a.Open(ctx, "/post/"+url.PathEscape(id))
	if err != nil {
		return err
	}
	state := a.Store.State()
	if m.Route.Name != router.Post {
		return notSignedIn("join a project")
	}

	post, err := a.Client.GetPost(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to load project: %w", err)
	}
	if !views.CanCollaborate(state, *post) {
		if views.CanEdit(state, *post) {
			return fmt.Errorf("this is your own project")
		}
		return fmt.Errorf("you are already on this team")
	}
	for _, r := range roles {
		if !slices.Contains(post.Positions, r) {
			return fmt.Errorf("%q is not an open position (open: %s)", r, strings.Join(post.Positions, ", "))
		}
	}

	if message == "" {
		message, err = promptText("Why you would be a good fit", fieldValidator("required,max=1000"))
		if err != nil {
			return err
		}
	}
	req := client.CollaborationRequest{ProjectID: post.ID, Summary: message, Roles: roles}
	if err := validate.Struct(req); err != nil {
		return fmt.Errorf("invalid request: %w", err)
	}

	if err := a.Client.RequestCollaboration(ctx, req); err != nil {
		return writeFailed(a, state, "send collaboration request", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "\n✓ Asked @%s to join %q\n", post.Author.Username, post.Title)
	return nil
}
