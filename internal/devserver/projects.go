package devserver

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/colyze-dev/colyze/internal/models"
)

// PostInput is the body of POST /post and PUT /post. The stage travels as
// "status".
type PostInput struct {
	ID        string   `json:"id"`
	Title     string   `json:"title" binding:"required,max=120"`
	Summary   string   `json:"summary" binding:"required,max=300"`
	Content   string   `json:"content" binding:"required"`
	Tags      []string `json:"tags" binding:"min=1,dive,required"`
	Positions []string `json:"positions" binding:"min=1,dive,required"`
	TeamSize  int      `json:"teamSize" binding:"min=1,max=50"`
	Stage     string   `json:"status" binding:"required"`
	Cover     string   `json:"cover"`
}

func (in PostInput) checkRoles() error {
	if len(in.Positions) > in.TeamSize {
		return fmt.Errorf("you can only list up to %d roles for a team of %d", in.TeamSize, in.TeamSize)
	}
	return nil
}

func (in PostInput) toModel() models.Post {
	return models.Post{
		ID:        in.ID,
		Title:     in.Title,
		Summary:   in.Summary,
		Content:   in.Content,
		Tags:      in.Tags,
		Positions: in.Positions,
		TeamSize:  in.TeamSize,
		Stage:     in.Stage,
		Cover:     in.Cover,
	}
}

// CollaborateInput is the body of POST /collaborate. The requester is the
// signed-in user.
type CollaborateInput struct {
	ProjectID  string   `json:"projectId" binding:"required"`
	Summary    string   `json:"summary" binding:"required,max=1000"`
	Checkboxes []string `json:"checkboxes" binding:"dive,required"`
}

func bindPost(c *gin.Context) (PostInput, bool) {
	var in PostInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return in, false
	}
	if err := in.checkRoles(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return in, false
	}
	return in, true
}

func (s *Server) createPost(c *gin.Context) {
	in, ok := bindPost(c)
	if !ok {
		return
	}
	sess, _ := GetSessionData(c)
	author, err := s.store.userByID(sess.UserID)
	if err != nil {
		s.internalError(c, err, "Failed to load author")
		return
	}

	p := in.toModel()
	p.ID = ""
	p.Status = "Open"
	p.Author = &models.Author{ID: author.ID, Username: author.Username, Name: author.Name}
	post, err := s.AddPost(p)
	if err != nil {
		s.internalError(c, err, "Failed to create post")
		return
	}

	s.logger.Info().Str("post_id", post.ID).Str("username", author.Username).Msg("Post created")
	c.JSON(http.StatusCreated, post)
}

func (s *Server) updatePost(c *gin.Context) {
	in, ok := bindPost(c)
	if !ok {
		return
	}
	if in.ID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id is required"})
		return
	}

	existing, err := s.store.post(in.ID)
	if errors.Is(err, ErrPostNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Post not found"})
		return
	}
	if err != nil {
		s.internalError(c, err, "Failed to load post")
		return
	}
	sess, _ := GetSessionData(c)
	if existing.AuthorID() != sess.UserID {
		c.JSON(http.StatusForbidden, gin.H{"error": "Only the author can edit this project"})
		return
	}

	post, err := s.store.updatePost(in.toModel())
	if err != nil {
		s.internalError(c, err, "Failed to update post")
		return
	}
	s.logger.Info().Str("post_id", post.ID).Str("username", sess.Username).Msg("Post updated")
	c.JSON(http.StatusOK, post)
}

func (s *Server) collaborate(c *gin.Context) {
	var in CollaborateInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	post, err := s.store.post(in.ProjectID)
	if errors.Is(err, ErrPostNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Post not found"})
		return
	}
	if err != nil {
		s.internalError(c, err, "Failed to load post")
		return
	}

	sess, _ := GetSessionData(c)
	if post.AuthorID() == sess.UserID {
		c.JSON(http.StatusBadRequest, gin.H{"error": "You cannot request to join your own project"})
		return
	}
	dup, err := s.store.hasRequest(post.ID, sess.Username)
	if err != nil {
		s.internalError(c, err, "Failed to check requests")
		return
	}
	if dup {
		c.JSON(http.StatusConflict, gin.H{"error": "You already asked to join this project"})
		return
	}

	req := models.CollabRequest{
		ProjectID: post.ID,
		Username:  sess.Username,
		Summary:   in.Summary,
		Roles:     in.Checkboxes,
		Status:    "pending",
	}
	if err := s.AddRequest(req); err != nil {
		s.internalError(c, err, "Failed to save request")
		return
	}

	s.logger.Info().Str("post_id", post.ID).Str("username", sess.Username).Msg("Collaboration requested")
	c.JSON(http.StatusCreated, gin.H{"message": "Collaboration request submitted"})
}
