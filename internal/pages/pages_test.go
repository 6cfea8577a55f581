package pages

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/colyze-dev/colyze/internal/models"
	"github.com/colyze-dev/colyze/internal/router"
	"github.com/colyze-dev/colyze/internal/session"
	"github.com/colyze-dev/colyze/internal/views"
)

type fakeAPI struct {
	posts     []models.Post
	listCalls int
	err       error
}

func (f *fakeAPI) ListPosts(context.Context) ([]models.Post, error) {
	f.listCalls++
	return f.posts, f.err
}

func (f *fakeAPI) GetPost(_ context.Context, id string) (*models.Post, error) {
	for _, p := range f.posts {
		if p.ID == id {
			return &p, nil
		}
	}
	return nil, errors.New("not found")
}

func (f *fakeAPI) UserProfile(_ context.Context, username string) (*models.User, error) {
	return &models.User{ID: "x", Username: username, Name: "Grace Hopper"}, nil
}

func (f *fakeAPI) AuthoredRequests(context.Context) ([]models.CollabRequest, error) {
	return []models.CollabRequest{{ProjectID: "p1", Username: "grace", Summary: "I can help", Roles: []string{"Backend"}}}, nil
}

func (f *fakeAPI) AdminData(context.Context) (*models.AdminData, error) {
	return &models.AdminData{
		Users: []models.User{{ID: "u1", Username: "ada", Email: "ada@example.com", Status: "approved"}, {ID: "u2", Username: "grace", Status: "pending"}},
		Posts: f.posts,
	}, nil
}

func (f *fakeAPI) AdminUpdates(context.Context) ([]models.ProjectUpdate, error) {
	return []models.ProjectUpdate{{ProjectID: "p1", Author: "ada", Summary: "Shipped the parser"}}, nil
}

var (
	table  = router.NewTable(router.DefaultRoutes)
	ada    = &models.User{ID: "u1", Username: "ada", Name: "Ada Lovelace"}
	member = session.State{Phase: session.PhaseAuthenticated, User: ada, Version: 1}
	admin  = session.State{Phase: session.PhaseAuthenticated, User: &models.User{ID: "a1", Username: "root", IsAdmin: true}, Version: 1}
	anon   = session.State{Phase: session.PhaseAnonymous, Version: 1}
)

func newAPI() *fakeAPI {
	created := time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC)
	return &fakeAPI{posts: []models.Post{
		{ID: "p1", Title: "Chess engine", Summary: "Minimax", Tags: []string{"AI"}, Stage: "Planning", Status: "In Progress", CreatedAt: created,
			Author: &models.Author{ID: "u1", Username: "ada"}},
		{ID: "p2", Title: "Honeypot", Summary: "Catch scanners", Tags: []string{"Cybersecurity"}, Stage: "Testing", CreatedAt: created.Add(time.Hour),
			Author: &models.Author{ID: "u2", Username: "grace"}, Collaborators: []models.Collaborator{{User: "u1"}}},
	}}
}

func render(t *testing.T, p *Pages, buf *bytes.Buffer, path string, state session.State) string {
	t.Helper()
	buf.Reset()
	require.NoError(t, p.Render(context.Background(), table.Match(path), state))
	return buf.String()
}

func TestRender_Ideas(t *testing.T) {
	var buf bytes.Buffer
	api := newAPI()
	p := New(api, &buf)

	out := render(t, p, &buf, "/ideas", member)
	assert.Contains(t, out, "2 projects found")
	assert.Contains(t, out, "Chess engine (yours)")
	assert.NotContains(t, out, "Honeypot (yours)")

	p.SetIdeasQuery(views.IdeasQuery{Tag: "Cybersecurity"})
	out = render(t, p, &buf, "/ideas", anon)
	assert.Contains(t, out, "1 projects found")
	assert.NotContains(t, out, "(yours)")

	assert.Equal(t, 1, api.listCalls, "post list is cached")
	p.Reset()
	render(t, p, &buf, "/ideas", anon)
	assert.Equal(t, 2, api.listCalls)
}

func TestRender_IdeasInvalidQuery(t *testing.T) {
	var buf bytes.Buffer
	p := New(newAPI(), &buf)
	p.SetIdeasQuery(views.IdeasQuery{Sort: "random"})

	err := p.Render(context.Background(), table.Match("/ideas"), anon)
	assert.Error(t, err)
}

func TestRender_ListFailure(t *testing.T) {
	var buf bytes.Buffer
	api := newAPI()
	api.err = errors.New("boom")
	p := New(api, &buf)

	err := p.Render(context.Background(), table.Match("/ideas"), anon)
	assert.ErrorContains(t, err, "failed to load projects")
}

func TestRender_Post(t *testing.T) {
	var buf bytes.Buffer
	p := New(newAPI(), &buf)

	out := render(t, p, &buf, "/post/p1", member)
	assert.Contains(t, out, "Chess engine")
	assert.Contains(t, out, "@ada")
	assert.Contains(t, out, "colyze edit p1")
	assert.NotContains(t, out, "colyze collaborate")

	out = render(t, p, &buf, "/post/p2", member)
	assert.NotContains(t, out, "colyze edit")
	assert.NotContains(t, out, "colyze collaborate", "already on the team")

	out = render(t, p, &buf, "/post/p1", admin)
	assert.Contains(t, out, "colyze collaborate p1")

	out = render(t, p, &buf, "/edit/p2", member)
	assert.Contains(t, out, "You can only edit your own projects.")

	out = render(t, p, &buf, "/edit/p1", member)
	assert.Contains(t, out, `Editing "Chess engine"`)
	assert.Contains(t, out, "colyze edit p1")
}

func TestRender_Updates(t *testing.T) {
	var buf bytes.Buffer
	p := New(newAPI(), &buf)

	out := render(t, p, &buf, "/updates", member)
	assert.Contains(t, out, "Your projects\n  p1  Chess engine")
	assert.Contains(t, out, "p2  Honeypot")
}

func TestRender_Admin(t *testing.T) {
	var buf bytes.Buffer
	p := New(newAPI(), &buf)

	out := render(t, p, &buf, "/admin", admin)
	assert.Contains(t, out, "Users: 2  Projects: 2  Active: 1  Pending approvals: 1")
	assert.Contains(t, out, "Admin Updates")

	p.SetAdminQuery(AdminQuery{Search: "honey"})
	out = render(t, p, &buf, "/admin", admin)
	assert.Contains(t, out, "Honeypot")
	assert.NotContains(t, out, "Chess engine")

	out = render(t, p, &buf, "/admin/updates", admin)
	assert.Contains(t, out, "Shipped the parser")
}

func TestRender_StaticPages(t *testing.T) {
	var buf bytes.Buffer
	p := New(newAPI(), &buf)

	assert.Contains(t, render(t, p, &buf, "/", anon), "colyze login")
	assert.Contains(t, render(t, p, &buf, "/", member), "Welcome back, Ada Lovelace.")
	assert.Contains(t, render(t, p, &buf, "/login?from=project&id=p1", anon), "log in to view this project")
	assert.Contains(t, render(t, p, &buf, "/profile", member), "Ada Lovelace")
	assert.Contains(t, render(t, p, &buf, "/profile/grace", member), "Grace Hopper")
	assert.Contains(t, render(t, p, &buf, "/collaboration", member), "I can help")
	assert.Contains(t, render(t, p, &buf, "/create", member), "Stages: Ideation")
	assert.Contains(t, render(t, p, &buf, "/create", member), "colyze create --title")
	assert.Contains(t, render(t, p, &buf, "/nope", anon), "Page not found: /nope")
}
