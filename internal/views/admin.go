package views

import (
	"strings"

	"github.com/colyze-dev/colyze/internal/models"
)

// StatusAll disables the admin status filter
const StatusAll = "all"

// FilterUsers matches username or email against search, case-insensitively
func FilterUsers(users []models.User, search string) []models.User {
	needle := strings.ToLower(strings.TrimSpace(search))
	out := make([]models.User, 0, len(users))
	for _, u := range users {
		if needle == "" ||
			strings.Contains(strings.ToLower(u.Username), needle) ||
			strings.Contains(strings.ToLower(u.Email), needle) {
			out = append(out, u)
		}
	}
	return out
}

// FilterAdminPosts matches status exactly and title or author username
// against search
func FilterAdminPosts(posts []models.Post, status, search string) []models.Post {
	needle := strings.ToLower(strings.TrimSpace(search))
	out := make([]models.Post, 0, len(posts))
	for _, p := range posts {
		if status != "" && status != StatusAll && p.Status != status {
			continue
		}
		if needle != "" && !strings.Contains(strings.ToLower(p.Title), needle) &&
			(p.Author == nil || !strings.Contains(strings.ToLower(p.Author.Username), needle)) {
			continue
		}
		out = append(out, p)
	}
	return out
}

// Stats are the headline numbers of the admin dashboard
type Stats struct {
	TotalUsers       int
	TotalProjects    int
	ActiveProjects   int
	PendingApprovals int
}

// Summarize computes dashboard stats
func Summarize(data models.AdminData) Stats {
	s := Stats{TotalUsers: len(data.Users), TotalProjects: len(data.Posts)}
	for _, p := range data.Posts {
		if p.Status == "In Progress" {
			s.ActiveProjects++
		}
	}
	for _, u := range data.Users {
		if u.Status == "pending" {
			s.PendingApprovals++
		}
	}
	return s
}
