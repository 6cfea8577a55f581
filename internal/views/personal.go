package views

import "github.com/colyze-dev/colyze/internal/models"

// Viewer is what list screens need to know about the current visitor.
// session.State satisfies it.
type Viewer interface {
	Authenticated() bool
	UserID() string
}

// Fetch targets
const (
	TargetPublic       = "public"
	TargetPersonalized = "personalized"
)

// FetchTarget decides which list variant to request for the viewer
func FetchTarget(v Viewer) string {
	if v != nil && v.Authenticated() && v.UserID() != "" {
		return TargetPersonalized
	}
	return TargetPublic
}

// CanCreate gates the create-project action. The server enforces the real
// rule.
func CanCreate(v Viewer) bool {
	return v != nil && v.Authenticated()
}

// CanEdit gates the edit action on a post
func CanEdit(v Viewer, post models.Post) bool {
	return CanCreate(v) && post.AuthorID() != "" && post.AuthorID() == v.UserID()
}

// CanCollaborate gates the join request on someone else's project
func CanCollaborate(v Viewer, post models.Post) bool {
	if !CanCreate(v) || post.AuthorID() == "" || post.AuthorID() == v.UserID() {
		return false
	}
	return !collaborates(post, v.UserID())
}

// Partition is the split shown on the updates screen
type Partition struct {
	// Authored are projects the user created
	Authored []models.Post
	// Involved are authored projects plus projects the user collaborates on,
	// each once
	Involved []models.Post
}

// PartitionPosts splits posts by the user's relationship to them
func PartitionPosts(posts []models.Post, userID string) Partition {
	var part Partition
	if userID == "" {
		return part
	}

	seen := make(map[string]bool)
	var collab []models.Post
	for _, p := range posts {
		switch {
		case p.AuthorID() == userID:
			part.Authored = append(part.Authored, p)
		case collaborates(p, userID):
			collab = append(collab, p)
		}
	}
	for _, p := range append(append([]models.Post(nil), part.Authored...), collab...) {
		if seen[p.ID] {
			continue
		}
		seen[p.ID] = true
		part.Involved = append(part.Involved, p)
	}
	return part
}

func collaborates(p models.Post, userID string) bool {
	for _, c := range p.Collaborators {
		if c.User == userID {
			return true
		}
	}
	return false
}
