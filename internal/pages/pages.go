// Package pages renders each route as terminal output
package pages

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"text/tabwriter"
	"time"

	"github.com/colyze-dev/colyze/internal/models"
	"github.com/colyze-dev/colyze/internal/router"
	"github.com/colyze-dev/colyze/internal/session"
	"github.com/colyze-dev/colyze/internal/shell"
	"github.com/colyze-dev/colyze/internal/views"
)

// API is the read side of the platform API used by the views
type API interface {
	ListPosts(ctx context.Context) ([]models.Post, error)
	GetPost(ctx context.Context, id string) (*models.Post, error)
	UserProfile(ctx context.Context, username string) (*models.User, error)
	AuthoredRequests(ctx context.Context) ([]models.CollabRequest, error)
	AdminData(ctx context.Context) (*models.AdminData, error)
	AdminUpdates(ctx context.Context) ([]models.ProjectUpdate, error)
}

// AdminQuery filters the admin tables
type AdminQuery struct {
	Search string
	Status string
}

// Pages renders views. It caches the post list until Reset.
type Pages struct {
	api API
	out io.Writer

	mu         sync.Mutex
	ideasQuery views.IdeasQuery
	adminQuery AdminQuery
	posts      []models.Post
}

// New creates a renderer writing to out
func New(api API, out io.Writer) *Pages {
	return &Pages{api: api, out: out}
}

// SetIdeasQuery sets the filters used by the ideas view
func (p *Pages) SetIdeasQuery(q views.IdeasQuery) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ideasQuery = q
}

// SetAdminQuery sets the filters used by the admin view
func (p *Pages) SetAdminQuery(q AdminQuery) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.adminQuery = q
}

// Reset drops cached data
func (p *Pages) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.posts = nil
}

func (p *Pages) listPosts(ctx context.Context) ([]models.Post, error) {
	p.mu.Lock()
	cached := p.posts
	p.mu.Unlock()
	if cached != nil {
		return cached, nil
	}

	posts, err := p.api.ListPosts(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load projects: %w", err)
	}
	if posts == nil {
		posts = []models.Post{}
	}

	p.mu.Lock()
	p.posts = posts
	p.mu.Unlock()
	return posts, nil
}

// Render implements router.Renderer
func (p *Pages) Render(ctx context.Context, m router.Match, state session.State) error {
	if err := shell.Render(p.out, state); err != nil {
		return err
	}
	fmt.Fprintln(p.out)

	switch m.Route.Name {
	case router.Home:
		return p.home(state)
	case router.Login:
		return p.login(m)
	case router.Register:
		fmt.Fprintln(p.out, "Create an account with: colyze register")
		fmt.Fprintln(p.out, "New accounts are reviewed by an administrator before they can sign in.")
	case router.AboutUs:
		fmt.Fprintln(p.out, "Colyze connects people with project ideas to the collaborators who can build them.")
	case router.Contact:
		fmt.Fprintln(p.out, "Questions or feedback: support@colyze.dev")
	case router.Profile:
		p.profile(state.User)
	case router.UserProfile:
		user, err := p.api.UserProfile(ctx, m.Param("username"))
		if err != nil {
			return fmt.Errorf("failed to load profile: %w", err)
		}
		p.profile(user)
	case router.Create:
		return p.create(state)
	case router.Post:
		return p.post(ctx, m.Param("id"), state)
	case router.Edit:
		return p.edit(ctx, m.Param("id"), state)
	case router.Admin:
		return p.admin(ctx)
	case router.Collaboration:
		return p.collaboration(ctx)
	case router.Ideas:
		return p.ideas(ctx, state)
	case router.Updates:
		return p.updates(ctx, state)
	case router.AdminUpdates:
		return p.adminUpdates(ctx)
	default:
		fmt.Fprintf(p.out, "Page not found: %s\n", m.Path)
	}
	return nil
}

func (p *Pages) home(state session.State) error {
	if state.Authenticated() {
		fmt.Fprintf(p.out, "Welcome back, %s.\n", displayName(state.User))
		fmt.Fprintln(p.out, "Browse ideas with: colyze ideas")
		return nil
	}
	fmt.Fprintln(p.out, "Build together. Find a project or share your own idea.")
	fmt.Fprintln(p.out, "Sign in with: colyze login")
	return nil
}

func (p *Pages) login(m router.Match) error {
	switch m.Query.Get("from") {
	case "project":
		fmt.Fprintln(p.out, "Please log in to view this project.")
	case "collaboration":
		fmt.Fprintln(p.out, "Please log in to manage your collaborations.")
	}
	fmt.Fprintln(p.out, "Sign in with: colyze login")
	return nil
}

func (p *Pages) profile(u *models.User) {
	if u == nil {
		fmt.Fprintln(p.out, "No profile available.")
		return
	}

	w := tabwriter.NewWriter(p.out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Name:\t%s\n", u.Name)
	fmt.Fprintf(w, "Username:\t%s\n", u.Username)
	if u.Email != "" {
		fmt.Fprintf(w, "Email:\t%s\n", u.Email)
	}
	optional := []struct {
		label string
		value *string
	}{
		{"Bio", u.Bio},
		{"LinkedIn", u.LinkedIn},
		{"GitHub", u.GitHub},
		{"Website", u.Website},
		{"Phone", u.PhoneNumber},
	}
	for _, f := range optional {
		if f.value != nil && *f.value != "" {
			fmt.Fprintf(w, "%s:\t%s\n", f.label, *f.value)
		}
	}
	if u.JoinedDate != nil {
		fmt.Fprintf(w, "Joined:\t%s\n", u.JoinedDate.Format("January 2006"))
	}
	if u.Verified != nil && *u.Verified {
		fmt.Fprintf(w, "Verified:\tyes\n")
	}
	if u.IsAdmin {
		fmt.Fprintf(w, "Role:\tadministrator\n")
	}
	w.Flush()
}

func (p *Pages) create(state session.State) error {
	if !views.CanCreate(state) {
		fmt.Fprintln(p.out, "You need to be logged in to create a project.")
		return nil
	}
	fmt.Fprintln(p.out, "Share a new project with:")
	fmt.Fprintln(p.out, `  colyze create --title <title> --summary <summary> --content <description> \`)
	fmt.Fprintln(p.out, "    --tag <tag> --position <role> --team-size <n> --stage <stage>")
	fmt.Fprintf(p.out, "Tags: %s\n", strings.Join(views.Tags[1:], ", "))
	fmt.Fprintf(p.out, "Stages: %s\n", strings.Join(views.Stages[1:], ", "))
	return nil
}

func (p *Pages) post(ctx context.Context, id string, state session.State) error {
	post, err := p.api.GetPost(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to load project: %w", err)
	}

	fmt.Fprintln(p.out, post.Title)
	fmt.Fprintln(p.out, strings.Repeat("=", len(post.Title)))
	w := tabwriter.NewWriter(p.out, 0, 0, 2, ' ', 0)
	if post.Author != nil {
		fmt.Fprintf(w, "Author:\t@%s\n", post.Author.Username)
	}
	if stage := post.EffectiveStage(); stage != "" {
		fmt.Fprintf(w, "Stage:\t%s\n", stage)
	}
	if len(post.Tags) > 0 {
		fmt.Fprintf(w, "Tags:\t%s\n", strings.Join(post.Tags, ", "))
	}
	if len(post.Positions) > 0 {
		fmt.Fprintf(w, "Open positions:\t%s\n", strings.Join(post.Positions, ", "))
	}
	if post.TeamSize > 0 {
		fmt.Fprintf(w, "Team size:\t%d\n", post.TeamSize)
	}
	fmt.Fprintf(w, "Likes:\t%d\n", post.Likes)
	fmt.Fprintf(w, "Created:\t%s\n", formatDate(post.CreatedAt))
	w.Flush()

	fmt.Fprintln(p.out)
	fmt.Fprintln(p.out, post.Summary)
	if post.Content != "" {
		fmt.Fprintln(p.out)
		fmt.Fprintln(p.out, post.Content)
	}
	switch {
	case views.CanEdit(state, *post):
		fmt.Fprintf(p.out, "\nEdit this project: colyze edit %s\n", post.ID)
	case views.CanCollaborate(state, *post):
		fmt.Fprintf(p.out, "\nAsk to join: colyze collaborate %s --message <why you fit>\n", post.ID)
	}
	return nil
}

func (p *Pages) edit(ctx context.Context, id string, state session.State) error {
	post, err := p.api.GetPost(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to load project: %w", err)
	}
	if !views.CanEdit(state, *post) {
		fmt.Fprintln(p.out, "You can only edit your own projects.")
		return nil
	}
	fmt.Fprintf(p.out, "Editing %q\n", post.Title)
	w := tabwriter.NewWriter(p.out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Stage:\t%s\n", orDash(post.Stage))
	fmt.Fprintf(w, "Tags:\t%s\n", strings.Join(post.Tags, ", "))
	fmt.Fprintf(w, "Open positions:\t%s\n", strings.Join(post.Positions, ", "))
	fmt.Fprintf(w, "Team size:\t%d\n", post.TeamSize)
	w.Flush()
	fmt.Fprintf(p.out, "Change any of them with: colyze edit %s --title ... --stage ...\n", post.ID)
	return nil
}

func (p *Pages) ideas(ctx context.Context, state session.State) error {
	posts, err := p.listPosts(ctx)
	if err != nil {
		return err
	}

	p.mu.Lock()
	q := p.ideasQuery
	p.mu.Unlock()

	page, err := views.Ideas(posts, q)
	if err != nil {
		return err
	}

	fmt.Fprintf(p.out, "%d projects found\n\n", page.TotalItems)
	if page.TotalItems == 0 {
		fmt.Fprintln(p.out, "No projects match your filters.")
		return nil
	}

	personalized := views.FetchTarget(state) == views.TargetPersonalized
	w := tabwriter.NewWriter(p.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTITLE\tSTAGE\tTAGS\tLIKES\tCREATED")
	for _, post := range page.Items {
		title := post.Title
		if personalized && post.AuthorID() == state.UserID() {
			title += " (yours)"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\n",
			post.ID, title, post.EffectiveStage(), strings.Join(post.Tags, ", "), post.Likes, formatDate(post.CreatedAt))
	}
	w.Flush()

	if page.TotalPages > 1 {
		fmt.Fprintf(p.out, "\nPage %d of %d\n", page.Number+1, page.TotalPages)
	}
	return nil
}

func (p *Pages) updates(ctx context.Context, state session.State) error {
	posts, err := p.listPosts(ctx)
	if err != nil {
		return err
	}
	part := views.PartitionPosts(posts, state.UserID())

	fmt.Fprintln(p.out, "Your projects")
	p.postList(part.Authored, "You have not created any projects yet.")
	fmt.Fprintln(p.out)
	fmt.Fprintln(p.out, "Projects you are involved in")
	p.postList(part.Involved, "You are not part of any project yet.")
	return nil
}

func (p *Pages) postList(posts []models.Post, empty string) {
	if len(posts) == 0 {
		fmt.Fprintf(p.out, "  %s\n", empty)
		return
	}
	for _, post := range posts {
		fmt.Fprintf(p.out, "  %s  %s\n", post.ID, post.Title)
	}
}

func (p *Pages) collaboration(ctx context.Context) error {
	reqs, err := p.api.AuthoredRequests(ctx)
	if err != nil {
		return fmt.Errorf("failed to load collaboration requests: %w", err)
	}
	fmt.Fprintln(p.out, "Collaboration requests on your projects")
	if len(reqs) == 0 {
		fmt.Fprintln(p.out, "No requests yet.")
		return nil
	}

	w := tabwriter.NewWriter(p.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PROJECT\tFROM\tROLES\tSTATUS\tMESSAGE")
	for _, r := range reqs {
		fmt.Fprintf(w, "%s\t@%s\t%s\t%s\t%s\n", r.ProjectID, r.Username, strings.Join(r.Roles, ", "), orDash(r.Status), r.Summary)
	}
	return w.Flush()
}

func (p *Pages) admin(ctx context.Context) error {
	data, err := p.api.AdminData(ctx)
	if err != nil {
		return fmt.Errorf("failed to load admin data: %w", err)
	}

	p.mu.Lock()
	q := p.adminQuery
	p.mu.Unlock()

	stats := views.Summarize(*data)
	fmt.Fprintf(p.out, "Users: %d  Projects: %d  Active: %d  Pending approvals: %d\n\n",
		stats.TotalUsers, stats.TotalProjects, stats.ActiveProjects, stats.PendingApprovals)

	w := tabwriter.NewWriter(p.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "USERNAME\tEMAIL\tSTATUS\tADMIN")
	for _, u := range views.FilterUsers(data.Users, q.Search) {
		fmt.Fprintf(w, "%s\t%s\t%s\t%t\n", u.Username, u.Email, orDash(u.Status), u.IsAdmin)
	}
	w.Flush()
	fmt.Fprintln(p.out)

	w = tabwriter.NewWriter(p.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTITLE\tAUTHOR\tSTATUS")
	for _, post := range views.FilterAdminPosts(data.Posts, q.Status, q.Search) {
		author := "-"
		if post.Author != nil {
			author = "@" + post.Author.Username
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", post.ID, post.Title, author, orDash(post.Status))
	}
	return w.Flush()
}

func (p *Pages) adminUpdates(ctx context.Context) error {
	updates, err := p.api.AdminUpdates(ctx)
	if err != nil {
		return fmt.Errorf("failed to load updates: %w", err)
	}
	if len(updates) == 0 {
		fmt.Fprintln(p.out, "No progress updates yet.")
		return nil
	}

	w := tabwriter.NewWriter(p.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PROJECT\tAUTHOR\tPOSTED\tSUMMARY")
	for _, u := range updates {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", u.ProjectID, orDash(u.Author), formatDate(u.CreatedAt), u.Summary)
	}
	return w.Flush()
}

func displayName(u *models.User) string {
	if u.Name != "" {
		return u.Name
	}
	return u.Username
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format("2006-01-02")
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
