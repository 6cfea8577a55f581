package router

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/colyze-dev/colyze/internal/cli/client"
	"github.com/colyze-dev/colyze/internal/guard"
	"github.com/colyze-dev/colyze/internal/models"
	"github.com/colyze-dev/colyze/internal/session"
)

type profileAPI struct {
	mu   sync.Mutex
	user *models.User
	gate chan struct{}
}

func (a *profileAPI) Profile(ctx context.Context) (*models.User, error) {
	if a.gate != nil {
		select {
		case <-a.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.user == nil {
		return nil, client.ErrUnauthenticated
	}
	u := *a.user
	return &u, nil
}

func (a *profileAPI) Login(context.Context, string, string) (*client.LoginResponse, error) {
	return &client.LoginResponse{}, nil
}

func (a *profileAPI) Logout(context.Context) error { return nil }

type recordingRenderer struct {
	mu       sync.Mutex
	rendered []string
	resets   int
	// rejected paths fail with a 401 for signed-in visitors
	rejected map[string]bool
}

func (r *recordingRenderer) Render(_ context.Context, m Match, state session.State) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.rejected[m.Path] && state.Authenticated() {
		return fmt.Errorf("failed to load view: %w", client.ErrUnauthenticated)
	}
	r.rendered = append(r.rendered, m.URL())
	return nil
}

func (r *recordingRenderer) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.resets++
}

func (r *recordingRenderer) views() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.rendered...)
}

type manualScheduler struct {
	mu     sync.Mutex
	timers []*manualTimer
}

type manualTimer struct {
	mu      sync.Mutex
	f       func()
	stopped bool
}

func (t *manualTimer) Stop() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	was := !t.stopped
	t.stopped = true
	return was
}

func (t *manualTimer) isStopped() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stopped
}

func (s *manualScheduler) AfterFunc(_ time.Duration, f func()) guard.Timer {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := &manualTimer{f: f}
	s.timers = append(s.timers, t)
	return t
}

func (s *manualScheduler) last(t *testing.T) *manualTimer {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	require.NotEmpty(t, s.timers)
	return s.timers[len(s.timers)-1]
}

type noticeBoard struct {
	mu      sync.Mutex
	notices []string
}

func (n *noticeBoard) ShowNotice(msg string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notices = append(n.notices, msg)
}

func (n *noticeBoard) ClearNotice() {}

func (n *noticeBoard) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.notices)
}

type fixture struct {
	api      *profileAPI
	store    *session.Store
	renderer *recordingRenderer
	sched    *manualScheduler
	notices  *noticeBoard
	out      *bytes.Buffer
	router   *Router
}

func newFixture(t *testing.T, user *models.User) *fixture {
	f := &fixture{
		api:      &profileAPI{user: user},
		renderer: &recordingRenderer{},
		sched:    &manualScheduler{},
		notices:  &noticeBoard{},
		out:      &bytes.Buffer{},
	}
	f.store = session.NewStore(f.api)
	f.router = New(f.store, f.renderer, Options{
		Notifier:  f.notices,
		Scheduler: f.sched,
		Out:       f.out,
	})
	f.store.BindNavigator(f.router)
	t.Cleanup(f.router.Close)
	return f
}

func (f *fixture) wait(t *testing.T) Match {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	m, err := f.router.Wait(ctx)
	require.NoError(t, err)
	return m
}

func TestTable_Match(t *testing.T) {
	table := NewTable(DefaultRoutes)

	tests := []struct {
		target string
		name   string
		params map[string]string
	}{
		{"/", Home, map[string]string{}},
		{"", Home, map[string]string{}},
		{"/ideas/", Ideas, map[string]string{}},
		{"/profile", Profile, map[string]string{}},
		{"/profile/ada", UserProfile, map[string]string{"username": "ada"}},
		{"/post/abc%20123", Post, map[string]string{"id": "abc 123"}},
		{"/admin/updates", AdminUpdates, map[string]string{}},
		{"/edit/42", Edit, map[string]string{"id": "42"}},
		{"/post", NotFound, nil},
		{"/nowhere/at/all", NotFound, nil},
	}
	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			m := table.Match(tt.target)
			assert.Equal(t, tt.name, m.Route.Name)
			if tt.params != nil {
				assert.Equal(t, tt.params, m.Params)
			}
		})
	}

	m := table.Match("/login?from=project&id=p1")
	assert.Equal(t, Login, m.Route.Name)
	assert.Equal(t, "project", m.Query.Get("from"))
	assert.Equal(t, "/login?from=project&id=p1", m.URL())
}

func TestLoginURL(t *testing.T) {
	table := NewTable(DefaultRoutes)
	assert.Equal(t, "/login?from=project&id=p1", LoginURL(table.Match("/post/p1")))
	assert.Equal(t, "/login?from=collaboration", LoginURL(table.Match("/collaboration")))
	assert.Equal(t, "/login", LoginURL(table.Match("/profile")))
}

func TestAfterLogin(t *testing.T) {
	admin := &models.User{ID: "a", IsAdmin: true}
	member := &models.User{ID: "m"}

	assert.Equal(t, "/admin", AfterLogin(admin, url.Values{"from": {"collaboration"}}))
	assert.Equal(t, "/collaboration", AfterLogin(member, url.Values{"from": {"collaboration"}}))
	assert.Equal(t, "/post/p1", AfterLogin(member, url.Values{"from": {"project"}, "id": {"p1"}}))
	assert.Equal(t, "/ideas", AfterLogin(member, url.Values{"from": {"project"}}))
	assert.Equal(t, "/ideas", AfterLogin(member, nil))
}

func TestRouter_PublicRouteRenders(t *testing.T) {
	f := newFixture(t, nil)
	f.store.Initialize(context.Background())

	f.router.Navigate("/ideas")
	m := f.wait(t)
	assert.Equal(t, Ideas, m.Route.Name)
	assert.Equal(t, []string{"/ideas"}, f.renderer.views())
}

func TestRouter_ColdLoadRedirectsAnonymousToLogin(t *testing.T) {
	f := newFixture(t, nil)
	f.api.gate = make(chan struct{})

	f.router.Navigate("/collaboration")
	assert.Contains(t, f.out.String(), LoadingMessage)
	assert.Empty(t, f.renderer.views(), "nothing renders while unresolved")

	go f.store.Initialize(context.Background())
	close(f.api.gate)

	m := f.wait(t)
	assert.Equal(t, Login, m.Route.Name)
	assert.Equal(t, []string{"/collaboration", "/login?from=collaboration"}, f.router.History())
	assert.Equal(t, []string{"/login?from=collaboration"}, f.renderer.views())
}

func TestRouter_MemberRouteAllowsSignedInUser(t *testing.T) {
	f := newFixture(t, &models.User{ID: "u1", Username: "ada"})
	f.store.Initialize(context.Background())

	f.router.Navigate("/profile")
	assert.Equal(t, Profile, f.wait(t).Route.Name)
	assert.Equal(t, []string{"/profile"}, f.router.History())
}

func TestRouter_RejectedSessionSignsOutAndRedirects(t *testing.T) {
	f := newFixture(t, &models.User{ID: "u1", Username: "ada"})
	f.renderer.rejected = map[string]bool{"/collaboration": true}
	f.store.Initialize(context.Background())

	f.router.Navigate("/collaboration")
	m := f.wait(t)
	assert.Equal(t, Login, m.Route.Name)
	assert.Equal(t, "/login?from=collaboration", m.URL())
	assert.Equal(t, session.PhaseAnonymous, f.store.State().Phase)
	assert.Equal(t, []string{"/login?from=collaboration"}, f.renderer.views())
}

func TestRouter_AnonymousProjectVisitRemembersProject(t *testing.T) {
	f := newFixture(t, nil)
	f.store.Initialize(context.Background())

	f.router.Navigate("/post/p1")
	assert.Equal(t, "/login?from=project&id=p1", f.wait(t).URL())
}

func TestRouter_AdminDenialFallsBackAfterDelay(t *testing.T) {
	f := newFixture(t, &models.User{ID: "u1", Username: "ada"})
	f.store.Initialize(context.Background())

	f.router.Navigate("/admin")
	require.Eventually(t, func() bool { return f.notices.count() == 1 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"/admin"}, f.router.History())
	assert.Empty(t, f.renderer.views())

	f.sched.last(t).f()

	assert.Equal(t, Home, f.wait(t).Route.Name)
	assert.Equal(t, []string{"/admin", "/"}, f.router.History())
}

func TestRouter_ManualNavigationCancelsDenial(t *testing.T) {
	f := newFixture(t, &models.User{ID: "u1", Username: "ada"})
	f.store.Initialize(context.Background())

	f.router.Navigate("/admin")
	require.Eventually(t, func() bool { return f.notices.count() == 1 }, 2*time.Second, 5*time.Millisecond)
	timer := f.sched.last(t)

	f.router.Navigate("/ideas")
	assert.Equal(t, Ideas, f.wait(t).Route.Name)
	assert.True(t, timer.isStopped())

	timer.f()
	assert.Equal(t, []string{"/admin", "/ideas"}, f.router.History())
}

func TestRouter_AdminAllowed(t *testing.T) {
	f := newFixture(t, &models.User{ID: "a1", Username: "root", IsAdmin: true})
	f.store.Initialize(context.Background())

	f.router.Navigate("/admin/updates")
	assert.Equal(t, AdminUpdates, f.wait(t).Route.Name)
	assert.Zero(t, f.notices.count())
}

func TestRouter_LogoutReloadsHome(t *testing.T) {
	f := newFixture(t, &models.User{ID: "u1", Username: "ada"})
	f.store.Initialize(context.Background())

	f.router.Navigate("/updates")
	f.wait(t)

	f.store.Logout(context.Background())
	m := f.wait(t)
	assert.Equal(t, Home, m.Route.Name)
	assert.Equal(t, session.PhaseAnonymous, f.store.State().Phase)

	f.renderer.mu.Lock()
	assert.Equal(t, 1, f.renderer.resets)
	f.renderer.mu.Unlock()
}
