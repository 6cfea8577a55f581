// Package views holds the list logic behind the browse screens: filtering,
// sorting and paging of projects, and the rules deciding what a viewer is
// shown.
package views

import (
	"fmt"
	"slices"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/colyze-dev/colyze/internal/models"
)

// All disables a tag or stage filter
const All = "All"

// Tags offered by the ideas filter bar
var Tags = []string{All, "AI", "Cybersecurity", "Web Development", "ML", "Blockchain", "GameDev"}

// Stages offered by the ideas filter bar
var Stages = []string{All, "Ideation", "Planning", "Development", "Testing", "Deployment"}

// Sort orders
const (
	SortNewest  = "newest"
	SortOldest  = "oldest"
	SortPopular = "popular"
)

// DefaultPageSize is used when a query does not set one
const DefaultPageSize = 12

var validate = validator.New()

// IdeasQuery selects and orders posts on the ideas screen
type IdeasQuery struct {
	Tag      string `validate:"omitempty"`
	Stage    string `validate:"omitempty"`
	Search   string `validate:"max=200"`
	Sort     string `validate:"omitempty,oneof=newest oldest popular"`
	Page     int    `validate:"gte=0"`
	PageSize int    `validate:"gte=0,lte=100"`
}

// Validate reports malformed queries, e.g. an unknown sort order
func (q IdeasQuery) Validate() error {
	if err := validate.Struct(q); err != nil {
		return fmt.Errorf("invalid ideas query: %w", err)
	}
	return nil
}

// Matches reports whether post passes the tag, stage and search filters
func (q IdeasQuery) Matches(post models.Post) bool {
	if q.Tag != "" && q.Tag != All && !slices.Contains(post.Tags, q.Tag) {
		return false
	}
	if q.Stage != "" && q.Stage != All && post.Stage != q.Stage {
		return false
	}
	if q.Search == "" {
		return true
	}
	needle := strings.ToLower(q.Search)
	return strings.Contains(strings.ToLower(post.Title), needle) ||
		strings.Contains(strings.ToLower(post.Summary), needle)
}

// FilterIdeas returns the matching posts in the requested order. The input
// slice is left untouched.
func FilterIdeas(posts []models.Post, q IdeasQuery) []models.Post {
	out := make([]models.Post, 0, len(posts))
	for _, p := range posts {
		if q.Matches(p) {
			out = append(out, p)
		}
	}
	SortPosts(out, q.Sort)
	return out
}

// SortPosts orders posts in place. An empty order means newest first; an
// unknown one keeps the server order.
func SortPosts(posts []models.Post, order string) {
	switch order {
	case SortNewest, "":
		slices.SortStableFunc(posts, func(a, b models.Post) int {
			return b.CreatedAt.Compare(a.CreatedAt)
		})
	case SortOldest:
		slices.SortStableFunc(posts, func(a, b models.Post) int {
			return a.CreatedAt.Compare(b.CreatedAt)
		})
	case SortPopular:
		slices.SortStableFunc(posts, func(a, b models.Post) int {
			return b.Likes - a.Likes
		})
	}
}

// Page is one page of a list
type Page[T any] struct {
	Items      []T
	Number     int // zero-based
	TotalPages int
	TotalItems int
}

// HasNext reports whether a later page exists
func (p Page[T]) HasNext() bool {
	return p.Number+1 < p.TotalPages
}

// HasPrev reports whether an earlier page exists
func (p Page[T]) HasPrev() bool {
	return p.Number > 0
}

// Paginate slices items into pages of size. Out-of-range page numbers are
// clamped to the last page.
func Paginate[T any](items []T, page, size int) Page[T] {
	if size <= 0 {
		size = DefaultPageSize
	}
	total := len(items)
	pages := (total + size - 1) / size
	if pages == 0 {
		return Page[T]{Items: []T{}, TotalPages: 0}
	}
	if page < 0 {
		page = 0
	}
	if page >= pages {
		page = pages - 1
	}

	start := page * size
	end := min(start+size, total)
	return Page[T]{
		Items:      items[start:end],
		Number:     page,
		TotalPages: pages,
		TotalItems: total,
	}
}

// Ideas runs the whole ideas pipeline
func Ideas(posts []models.Post, q IdeasQuery) (Page[models.Post], error) {
	if err := q.Validate(); err != nil {
		return Page[models.Post]{}, err
	}
	return Paginate(FilterIdeas(posts, q), q.Page, q.PageSize), nil
}
