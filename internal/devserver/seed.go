package devserver

import (
	"fmt"
	"time"

	"github.com/colyze-dev/colyze/internal/models"
)

// AddUser creates an account after validating it like a registration.
// Seeded accounts are approved unless Status says otherwise.
func (s *Server) AddUser(nu NewUser) (models.User, error) {
	if err := s.validator.Struct(nu); err != nil {
		return models.User{}, fmt.Errorf("invalid user %q: %w", nu.Username, err)
	}
	if nu.Status == "" {
		nu.Status = StatusApproved
	}
	return s.store.createUser(nu, s.now())
}

// SetAdmin grants or revokes administrator rights
func (s *Server) SetAdmin(userID string, isAdmin bool) error {
	return s.store.setAdmin(userID, isAdmin)
}

// DeleteUser removes an account; its tokens stop working
func (s *Server) DeleteUser(userID string) error {
	return s.store.deleteUser(userID)
}

// AddPost stores a project idea
func (s *Server) AddPost(p models.Post) (models.Post, error) {
	if p.CreatedAt.IsZero() {
		p.CreatedAt = s.now().UTC()
	}
	return s.store.addPost(p)
}

// Posts lists every project
func (s *Server) Posts() ([]models.Post, error) {
	return s.store.listPosts()
}

// AddRequest stores a collaboration request
func (s *Server) AddRequest(r models.CollabRequest) error {
	if r.CreatedAt.IsZero() {
		r.CreatedAt = s.now().UTC()
	}
	return s.store.addRequest(r)
}

// AddUpdate stores a progress update
func (s *Server) AddUpdate(u models.ProjectUpdate) error {
	if u.CreatedAt.IsZero() {
		u.CreatedAt = s.now().UTC()
	}
	return s.store.addUpdate(u)
}

// Empty reports whether the database holds no accounts yet
func (s *Server) Empty() (bool, error) {
	n, err := s.store.countUsers()
	return n == 0, err
}

// ResetDemo wipes the database and loads the demo data again
func (s *Server) ResetDemo() error {
	if err := s.store.truncate(); err != nil {
		return fmt.Errorf("failed to clear database: %w", err)
	}
	return s.SeedDemo()
}

// SeedDemo loads a small data set: an administrator "admin", two members
// "ada" and "grace" (password "password123" for all) and a few projects
func (s *Server) SeedDemo() error {
	const password = "password123"

	admin, err := s.AddUser(NewUser{Username: "admin", Name: "Site Admin", Email: "admin@colyze.dev", Password: password, IsAdmin: true})
	if err != nil {
		return err
	}
	ada, err := s.AddUser(NewUser{Username: "ada", Name: "Ada Lovelace", Email: "ada@colyze.dev", Password: password,
		GitHub: "https://github.com/ada"})
	if err != nil {
		return err
	}
	grace, err := s.AddUser(NewUser{Username: "grace", Name: "Grace Hopper", Email: "grace@colyze.dev", Password: password})
	if err != nil {
		return err
	}
	if _, err := s.AddUser(NewUser{Username: "newbie", Name: "New User", Email: "newbie@colyze.dev", Password: password, Status: StatusPending}); err != nil {
		return err
	}

	now := s.now().UTC()
	chess, err := s.AddPost(models.Post{
		Title: "Chess engine", Summary: "A minimax chess engine with a terminal UI",
		Content: "Bitboard move generation, alpha-beta search and a UCI front end.",
		Tags:    []string{"AI", "GameDev"}, Positions: []string{"Backend", "UI"}, TeamSize: 3,
		Stage: "Development", Status: "In Progress", Likes: 12, CreatedAt: now.Add(-72 * time.Hour),
		Author:        &models.Author{ID: ada.ID, Username: ada.Username, Name: ada.Name},
		Collaborators: []models.Collaborator{{User: grace.ID, Role: "UI"}},
	})
	if err != nil {
		return err
	}
	if _, err := s.AddPost(models.Post{
		Title: "Honeypot fleet", Summary: "Low-interaction honeypots that report scanner fingerprints",
		Content: "Small SSH and HTTP listeners on cheap VPSes, shipping events to one collector.",
		Tags:    []string{"Cybersecurity"}, Positions: []string{"Networking"}, TeamSize: 2,
		Stage: "Planning", Status: "Open", Likes: 5, CreatedAt: now.Add(-24 * time.Hour),
		Author: &models.Author{ID: grace.ID, Username: grace.Username, Name: grace.Name},
	}); err != nil {
		return err
	}
	if _, err := s.AddPost(models.Post{
		Title: "Study group planner", Summary: "Match students into study groups by course and schedule",
		Content: "Students list courses and free slots, the planner proposes groups of four.",
		Tags:    []string{"Web Development"}, Positions: []string{"Frontend"}, TeamSize: 2, Stage: "Ideation", Status: "Open", Likes: 2, CreatedAt: now.Add(-2 * time.Hour),
		Author: &models.Author{ID: admin.ID, Username: admin.Username, Name: admin.Name},
	}); err != nil {
		return err
	}

	if err := s.AddRequest(models.CollabRequest{ProjectID: chess.ID, Username: grace.Username, Summary: "I'd love to build the board renderer", Roles: []string{"UI"}, Status: "accepted"}); err != nil {
		return err
	}
	return s.AddUpdate(models.ProjectUpdate{ProjectID: chess.ID, Author: ada.Username, Summary: "Move generator passes perft to depth 5", GitHubLink: "https://github.com/ada/chess"})
}
