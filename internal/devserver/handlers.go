package devserver

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/colyze-dev/colyze/internal/auth"
)

// LoginRequest represents a login request
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// LoginResponse echoes who signed in. Clients must still read /profile.
type LoginResponse struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Token    string `json:"token"`
}

func (s *Server) setTokenCookie(c *gin.Context, token string, maxAge int) {
	c.SetSameSite(http.SameSiteLaxMode)
	// Readable by the client so it can mirror the session locally
	c.SetCookie(auth.TokenCookie, token, maxAge, "/", "", false, false)
}

func (s *Server) login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	acct, err := s.store.accountByUsername(req.Username)
	if err != nil && !errors.Is(err, ErrUserNotFound) {
		s.internalError(c, err, "Failed to load user")
		return
	}
	if acct == nil || auth.VerifyPassword(req.Password, acct.passwordHash) != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid username or password"})
		return
	}
	if acct.user.Status == StatusPending {
		c.JSON(http.StatusForbidden, gin.H{"error": "Account pending approval"})
		return
	}

	token, err := s.issuer.GenerateToken(acct.user.ID, acct.user.Username, acct.user.IsAdmin)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to generate token")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate token"})
		return
	}

	s.setTokenCookie(c, token, int(DefaultTokenTTL.Seconds()))
	s.logger.Info().Str("username", acct.user.Username).Msg("User logged in")
	c.JSON(http.StatusOK, LoginResponse{ID: acct.user.ID, Username: acct.user.Username, Token: token})
}

func (s *Server) logout(c *gin.Context) {
	s.setTokenCookie(c, "", -1)
	c.JSON(http.StatusOK, gin.H{"message": "Logged out"})
}

func (s *Server) register(c *gin.Context) {
	var req NewUser
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := s.store.createUser(req, s.now())
	if errors.Is(err, ErrUserExists) {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		s.internalError(c, err, "Failed to create user")
		return
	}

	s.logger.Info().Str("username", user.Username).Msg("User registered, pending approval")
	c.JSON(http.StatusOK, gin.H{"message": "Registration submitted for review", "id": user.ID})
}

func (s *Server) getProfile(c *gin.Context) {
	sess, _ := GetSessionData(c)
	user, err := s.store.userByID(sess.UserID)
	if errors.Is(err, ErrUserNotFound) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not found"})
		return
	}
	if err != nil {
		s.internalError(c, err, "Failed to load user")
		return
	}
	c.JSON(http.StatusOK, user)
}

func (s *Server) getUserProfile(c *gin.Context) {
	acct, err := s.store.accountByUsername(c.Param("username"))
	if errors.Is(err, ErrUserNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}
	if err != nil {
		s.internalError(c, err, "Failed to load user")
		return
	}
	// Contact details stay private
	user := acct.user
	user.Email = ""
	user.PhoneNumber = nil
	c.JSON(http.StatusOK, user)
}

func (s *Server) listPosts(c *gin.Context) {
	posts, err := s.store.listPosts()
	if err != nil {
		s.internalError(c, err, "Failed to list posts")
		return
	}
	c.JSON(http.StatusOK, posts)
}

func (s *Server) getPost(c *gin.Context) {
	post, err := s.store.post(c.Param("id"))
	if errors.Is(err, ErrPostNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Post not found"})
		return
	}
	if err != nil {
		s.internalError(c, err, "Failed to load post")
		return
	}
	c.JSON(http.StatusOK, post)
}

func (s *Server) authoredRequests(c *gin.Context) {
	sess, _ := GetSessionData(c)
	reqs, err := s.store.requestsFor(sess.UserID)
	if err != nil {
		s.internalError(c, err, "Failed to list requests")
		return
	}
	c.JSON(http.StatusOK, reqs)
}

func (s *Server) adminData(c *gin.Context) {
	users, err := s.store.users()
	if err != nil {
		s.internalError(c, err, "Failed to list users")
		return
	}
	posts, err := s.store.listPosts()
	if err != nil {
		s.internalError(c, err, "Failed to list posts")
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": users, "posts": posts})
}

func (s *Server) adminUpdates(c *gin.Context) {
	updates, err := s.store.listUpdates()
	if err != nil {
		s.internalError(c, err, "Failed to list updates")
		return
	}
	c.JSON(http.StatusOK, updates)
}

func (s *Server) internalError(c *gin.Context, err error, msg string) {
	s.logger.Error().Err(err).Str("path", c.Request.URL.Path).Msg(msg)
	c.JSON(http.StatusInternalServerError, gin.H{"error": msg})
}
