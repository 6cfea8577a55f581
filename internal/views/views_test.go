package views

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/colyze-dev/colyze/internal/models"
	"github.com/colyze-dev/colyze/internal/session"
)

var base = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func samplePosts() []models.Post {
	return []models.Post{
		{ID: "p1", Title: "Chess engine", Summary: "Minimax in Go", Tags: []string{"AI"}, Stage: "Planning", Likes: 4, CreatedAt: base,
			Author: &models.Author{ID: "u1", Username: "ada"}},
		{ID: "p2", Title: "Honeypot", Summary: "Catch scanners", Tags: []string{"Cybersecurity"}, Stage: "Development", Likes: 9, CreatedAt: base.Add(time.Hour),
			Author: &models.Author{ID: "u2", Username: "grace"}, Collaborators: []models.Collaborator{{User: "u1"}}},
		{ID: "p3", Title: "Portfolio site", Summary: "Static pages with an AI chat", Tags: []string{"Web Development", "AI"}, Stage: "Planning", Likes: 1, CreatedAt: base.Add(-time.Hour),
			Author: &models.Author{ID: "u3", Username: "linus"}},
	}
}

func ids(posts []models.Post) []string {
	out := make([]string, 0, len(posts))
	for _, p := range posts {
		out = append(out, p.ID)
	}
	return out
}

func TestFilterIdeas(t *testing.T) {
	tests := []struct {
		name  string
		query IdeasQuery
		want  []string
	}{
		{"no filter sorts newest first", IdeasQuery{}, []string{"p2", "p1", "p3"}},
		{"All is no filter", IdeasQuery{Tag: All, Stage: All}, []string{"p2", "p1", "p3"}},
		{"tag", IdeasQuery{Tag: "AI"}, []string{"p1", "p3"}},
		{"stage", IdeasQuery{Stage: "Development"}, []string{"p2"}},
		{"tag and stage", IdeasQuery{Tag: "AI", Stage: "Planning", Sort: SortOldest}, []string{"p3", "p1"}},
		{"search title case-insensitive", IdeasQuery{Search: "CHESS"}, []string{"p1"}},
		{"search summary", IdeasQuery{Search: "ai chat"}, []string{"p3"}},
		{"popular", IdeasQuery{Sort: SortPopular}, []string{"p2", "p1", "p3"}},
		{"nothing matches", IdeasQuery{Tag: "Blockchain"}, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			posts := samplePosts()
			got := FilterIdeas(posts, tt.query)
			assert.Equal(t, tt.want, ids(got))
			assert.Equal(t, []string{"p1", "p2", "p3"}, ids(posts), "input must not be reordered")
		})
	}
}

func TestIdeasQuery_Validate(t *testing.T) {
	require.NoError(t, IdeasQuery{Sort: SortPopular, PageSize: 20}.Validate())
	assert.Error(t, IdeasQuery{Sort: "random"}.Validate())
	assert.Error(t, IdeasQuery{PageSize: 500}.Validate())
	assert.Error(t, IdeasQuery{Page: -1}.Validate())
}

func TestPaginate(t *testing.T) {
	items := []int{1, 2, 3, 4, 5}

	p := Paginate(items, 0, 2)
	assert.Equal(t, []int{1, 2}, p.Items)
	assert.Equal(t, 3, p.TotalPages)
	assert.True(t, p.HasNext())
	assert.False(t, p.HasPrev())

	p = Paginate(items, 2, 2)
	assert.Equal(t, []int{5}, p.Items)
	assert.False(t, p.HasNext())
	assert.True(t, p.HasPrev())

	p = Paginate(items, 10, 2)
	assert.Equal(t, 2, p.Number, "out of range clamps to last page")

	p = Paginate([]int{}, 0, 2)
	assert.Empty(t, p.Items)
	assert.Zero(t, p.TotalPages)

	p = Paginate(items, 0, 0)
	assert.Len(t, p.Items, 5)
}

func TestIdeas(t *testing.T) {
	page, err := Ideas(samplePosts(), IdeasQuery{Tag: "AI", PageSize: 1, Page: 1})
	require.NoError(t, err)
	assert.Equal(t, []string{"p3"}, ids(page.Items))
	assert.Equal(t, 2, page.TotalItems)

	_, err = Ideas(samplePosts(), IdeasQuery{Sort: "sideways"})
	assert.Error(t, err)
}

func TestFetchTarget(t *testing.T) {
	anon := session.State{Phase: session.PhaseAnonymous}
	unknown := session.State{}
	member := session.State{Phase: session.PhaseAuthenticated, User: &models.User{ID: "u1"}}

	assert.Equal(t, TargetPublic, FetchTarget(anon))
	assert.Equal(t, TargetPublic, FetchTarget(unknown))
	assert.Equal(t, TargetPublic, FetchTarget(nil))
	assert.Equal(t, TargetPersonalized, FetchTarget(member))
}

func TestWriteGates(t *testing.T) {
	posts := samplePosts()
	anon := session.State{Phase: session.PhaseAnonymous}
	ada := session.State{Phase: session.PhaseAuthenticated, User: &models.User{ID: "u1"}}

	assert.False(t, CanCreate(anon))
	assert.True(t, CanCreate(ada))

	assert.True(t, CanEdit(ada, posts[0]))
	assert.False(t, CanEdit(ada, posts[1]))
	assert.False(t, CanEdit(anon, posts[0]))
	assert.False(t, CanEdit(ada, models.Post{ID: "orphan"}))

	assert.False(t, CanCollaborate(ada, posts[0]), "own project")
	assert.False(t, CanCollaborate(ada, posts[1]), "already on the team")
	assert.True(t, CanCollaborate(ada, posts[2]))
	assert.False(t, CanCollaborate(anon, posts[2]))
}

func TestPartitionPosts(t *testing.T) {
	part := PartitionPosts(samplePosts(), "u1")
	assert.Equal(t, []string{"p1"}, ids(part.Authored))
	assert.Equal(t, []string{"p1", "p2"}, ids(part.Involved))

	assert.Empty(t, PartitionPosts(samplePosts(), "").Involved)
	assert.Empty(t, PartitionPosts(samplePosts(), "nobody").Authored)
}

func TestAdminFilters(t *testing.T) {
	users := []models.User{
		{ID: "u1", Username: "ada", Email: "ada@example.com", Status: "approved"},
		{ID: "u2", Username: "grace", Email: "hopper@navy.mil", Status: "pending"},
	}
	assert.Len(t, FilterUsers(users, ""), 2)
	assert.Equal(t, "u2", FilterUsers(users, "HOPPER")[0].ID)
	assert.Empty(t, FilterUsers(users, "zzz"))

	posts := samplePosts()
	posts[0].Status = "In Progress"
	posts[1].Status = "Completed"

	assert.Len(t, FilterAdminPosts(posts, StatusAll, ""), 3)
	assert.Equal(t, []string{"p1"}, ids(FilterAdminPosts(posts, "In Progress", "")))
	assert.Equal(t, []string{"p2"}, ids(FilterAdminPosts(posts, "", "grace")))
	assert.Equal(t, []string{"p3"}, ids(FilterAdminPosts(posts, "all", "portfolio")))

	stats := Summarize(models.AdminData{Users: users, Posts: posts})
	assert.Equal(t, Stats{TotalUsers: 2, TotalProjects: 3, ActiveProjects: 1, PendingApprovals: 1}, stats)
}
