package models

import (
	"encoding/json"
	"time"

	"github.com/oklog/ulid/v2"
)

// NewID returns a fresh sortable identifier
func NewID() string {
	return ulid.Make().String()
}

// User is the profile record returned by the platform API.
// Optional profile fields are pointers: nil means the server did not send them.
type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	IsAdmin  bool   `json:"isAdmin"`

	Bio         *string    `json:"bio,omitempty"`
	Avatar      *string    `json:"avatar,omitempty"`
	LinkedIn    *string    `json:"linkedin,omitempty"`
	GitHub      *string    `json:"github,omitempty"`
	Website     *string    `json:"website,omitempty"`
	PhoneNumber *string    `json:"phoneNumber,omitempty"`
	JoinedDate  *time.Time `json:"joinedDate,omitempty"`
	Verified    *bool      `json:"verified,omitempty"`
	Status      string     `json:"status,omitempty"` // "pending", "approved"; only present in admin listings
}

// UnmarshalJSON accepts both "id" and the legacy "_id" key for the identifier
func (u *User) UnmarshalJSON(data []byte) error {
	type plain User
	aux := struct {
		*plain
		LegacyID string `json:"_id"`
	}{plain: (*plain)(u)}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if u.ID == "" {
		u.ID = aux.LegacyID
	}
	return nil
}

// Clone returns a deep copy so callers can't mutate shared session state
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	c := *u
	c.Bio = cloneString(u.Bio)
	c.Avatar = cloneString(u.Avatar)
	c.LinkedIn = cloneString(u.LinkedIn)
	c.GitHub = cloneString(u.GitHub)
	c.Website = cloneString(u.Website)
	c.PhoneNumber = cloneString(u.PhoneNumber)
	if u.JoinedDate != nil {
		d := *u.JoinedDate
		c.JoinedDate = &d
	}
	if u.Verified != nil {
		v := *u.Verified
		c.Verified = &v
	}
	return &c
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

// Author is the embedded author summary on a post
type Author struct {
	ID       string `json:"_id"`
	Username string `json:"username"`
	Name     string `json:"name,omitempty"`
}

// Collaborator links a user to a project they joined
type Collaborator struct {
	User string `json:"user"`
	Role string `json:"role,omitempty"`
}

// Post is a project idea
type Post struct {
	ID            string         `json:"_id"`
	Title         string         `json:"title"`
	Summary       string         `json:"summary"`
	Content       string         `json:"content,omitempty"`
	Cover         string         `json:"cover,omitempty"`
	Tags          []string       `json:"tags,omitempty"`
	Positions     []string       `json:"positions,omitempty"`
	TeamSize      int            `json:"teamSize,omitempty"`
	Stage         string         `json:"stage,omitempty"`
	Status        string         `json:"status,omitempty"`
	Likes         int            `json:"likes,omitempty"`
	CreatedAt     time.Time      `json:"createdAt"`
	Author        *Author        `json:"author,omitempty"`
	Collaborators []Collaborator `json:"collaborators,omitempty"`
}

// EffectiveStage returns the stage, falling back to status for posts that
// only carry the latter
func (p *Post) EffectiveStage() string {
	if p.Stage != "" {
		return p.Stage
	}
	return p.Status
}

// AuthorID returns the author identifier or "" when the post has none
func (p *Post) AuthorID() string {
	if p.Author == nil {
		return ""
	}
	return p.Author.ID
}

// CollabRequest is a request to join a project
type CollabRequest struct {
	ID        string    `json:"_id"`
	ProjectID string    `json:"projectId"`
	Username  string    `json:"username"`
	Summary   string    `json:"summary"`
	Roles     []string  `json:"checkboxes,omitempty"`
	Status    string    `json:"status,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// ProjectUpdate is a progress update posted on a project
type ProjectUpdate struct {
	ID         string    `json:"_id"`
	ProjectID  string    `json:"projectId"`
	Summary    string    `json:"summary"`
	GitHubLink string    `json:"githubLink,omitempty"`
	Author     string    `json:"author,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

// AdminData is the moderation overview
type AdminData struct {
	Users []User `json:"users"`
	Posts []Post `json:"posts"`
}
