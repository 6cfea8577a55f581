package router

import (
	"net/url"
	"strings"

	"github.com/colyze-dev/colyze/internal/guard"
	"github.com/colyze-dev/colyze/internal/models"
)

// Access is the session requirement of a route
type Access int

const (
	AccessPublic Access = iota
	AccessMember
	AccessAdmin
)

func (a Access) String() string {
	switch a {
	case AccessMember:
		return "member"
	case AccessAdmin:
		return "admin"
	default:
		return "public"
	}
}

// Route names
const (
	Home          = "home"
	Login         = "login"
	Register      = "register"
	AboutUs       = "about-us"
	Contact       = "contact"
	Profile       = "profile"
	UserProfile   = "user-profile"
	Create        = "create"
	Post          = "post"
	Edit          = "edit"
	Admin         = "admin"
	Collaboration = "collaboration"
	Ideas         = "ideas"
	Updates       = "updates"
	AdminUpdates  = "admin-updates"
	NotFound      = "not-found"
)

// Route is one entry of the route table
type Route struct {
	Name    string
	Pattern string
	Access  Access
}

// DefaultRoutes mirrors the platform's screens
var DefaultRoutes = []Route{
	{Home, "/", AccessPublic},
	{Login, "/login", AccessPublic},
	{Register, "/register", AccessPublic},
	{AboutUs, "/about-us", AccessPublic},
	{Contact, "/contact", AccessPublic},
	{Profile, "/profile", AccessMember},
	{UserProfile, "/profile/:username", AccessMember},
	{Create, "/create", AccessMember},
	{Post, "/post/:id", AccessMember},
	{Edit, "/edit/:id", AccessMember},
	{Admin, "/admin", AccessAdmin},
	{Collaboration, "/collaboration", AccessMember},
	{Ideas, "/ideas", AccessPublic},
	{Updates, "/updates", AccessMember},
	{AdminUpdates, "/admin/updates", AccessAdmin},
}

var notFoundRoute = Route{Name: NotFound, Access: AccessPublic}

// Match is a resolved navigation target
type Match struct {
	Route  Route
	Path   string
	Params map[string]string
	Query  url.Values
}

// Param returns a path parameter or ""
func (m Match) Param(name string) string {
	return m.Params[name]
}

// URL renders the match back into a navigable path
func (m Match) URL() string {
	if len(m.Query) == 0 {
		return m.Path
	}
	return m.Path + "?" + m.Query.Encode()
}

// Table resolves paths to routes
type Table struct {
	routes []Route
}

// NewTable builds a table; earlier routes win on ties
func NewTable(routes []Route) *Table {
	return &Table{routes: routes}
}

// Match resolves target, which may carry a query string. Unknown paths
// resolve to the not-found route.
func (t *Table) Match(target string) Match {
	path, rawQuery, _ := strings.Cut(target, "?")
	query, err := url.ParseQuery(rawQuery)
	if err != nil {
		query = url.Values{}
	}
	path = cleanPath(path)

	for _, r := range t.routes {
		if params, ok := matchPattern(r.Pattern, path); ok {
			return Match{Route: r, Path: path, Params: params, Query: query}
		}
	}
	return Match{Route: notFoundRoute, Path: path, Query: query}
}

func cleanPath(p string) string {
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if len(p) > 1 {
		p = strings.TrimRight(p, "/")
	}
	return p
}

func matchPattern(pattern, path string) (map[string]string, bool) {
	ps := strings.Split(strings.Trim(pattern, "/"), "/")
	xs := strings.Split(strings.Trim(path, "/"), "/")
	if len(ps) != len(xs) {
		return nil, false
	}

	params := map[string]string{}
	for i, seg := range ps {
		if name, ok := strings.CutPrefix(seg, ":"); ok {
			if xs[i] == "" {
				return nil, false
			}
			v, err := url.PathUnescape(xs[i])
			if err != nil {
				return nil, false
			}
			params[name] = v
			continue
		}
		if seg != xs[i] {
			return nil, false
		}
	}
	return params, true
}

// LoginURL is the login route annotated with where the visitor came from,
// so the login flow can send them back
func LoginURL(from Match) string {
	q := url.Values{}
	switch from.Route.Name {
	case Post:
		q.Set("from", "project")
		q.Set("id", from.Param("id"))
	case Collaboration:
		q.Set("from", "collaboration")
	default:
		return guard.LoginPath
	}
	return guard.LoginPath + "?" + q.Encode()
}

// AfterLogin picks the destination once user has signed in. Administrators
// always land on the dashboard; everyone else returns to where they came
// from, or to the ideas list.
func AfterLogin(user *models.User, origin url.Values) string {
	if user != nil && user.IsAdmin {
		return "/admin"
	}
	switch origin.Get("from") {
	case "collaboration":
		return "/collaboration"
	case "project":
		if id := origin.Get("id"); id != "" {
			return "/post/" + url.PathEscape(id)
		}
	}
	return "/ideas"
}
