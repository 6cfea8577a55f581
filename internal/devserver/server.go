// Package devserver is a SQLite-backed stand-in for the Colyze REST API. It
// serves the endpoints the terminal client uses, with cookie and bearer
// authentication, so the client can be exercised locally and in tests.
package devserver

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/colyze-dev/colyze/internal/auth"
	"github.com/colyze-dev/colyze/internal/config"
)

// DefaultTokenTTL is the lifetime of issued session tokens
const DefaultTokenTTL = 24 * time.Hour

// Server represents the HTTP server
type Server struct {
	router    *gin.Engine
	store     *store
	issuer    *auth.TokenIssuer
	config    config.DevConfig
	logger    zerolog.Logger
	validator *validator.Validate
	now       func() time.Time

	profileHits atomic.Int64
}

// New creates a new server instance. cfg.Database selects a SQLite file;
// when empty the data set lives in memory.
func New(cfg config.DevConfig, zlog zerolog.Logger) (*Server, error) {
	if cfg.Secret == "" {
		return nil, errors.New("dev server secret is required")
	}
	issuer, err := auth.NewTokenIssuer(cfg.Secret, DefaultTokenTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to create token issuer: %w", err)
	}

	db, err := openStore(cfg.Database, zlog)
	if err != nil {
		return nil, err
	}

	// Seed data uses the same rules as request binding
	validate := validator.New()
	validate.SetTagName("binding")

	server := &Server{
		store:     db,
		issuer:    issuer,
		config:    cfg,
		logger:    zlog,
		validator: validate,
		now:       time.Now,
	}
	server.setupRouter()
	return server, nil
}

// setupRouter configures the Gin router with routes and middleware
func (s *Server) setupRouter() {
	gin.SetMode(gin.ReleaseMode)

	s.router = gin.New()
	s.router.Use(gin.Recovery())
	s.router.Use(s.loggingMiddleware())

	origins := []string{"http://localhost:3000"}
	if s.config.Origin != "" {
		origins = []string{s.config.Origin}
	}
	// Credentialed CORS so browser front-ends can share the session cookie
	s.router.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Length", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	s.router.GET("/health", s.healthCheck)

	// Public endpoints
	s.router.POST("/login", s.login)
	s.router.POST("/logout", s.logout)
	s.router.POST("/register", s.register)
	s.router.GET("/post", s.listPosts)
	s.router.GET("/post/:id", s.getPost)

	requireAuth := JWTAuthMiddleware(s.issuer, s.store, s.logger)
	s.router.GET("/profile", s.countProfileHit, requireAuth, s.getProfile)
	s.router.GET("/profile/:username", requireAuth, s.getUserProfile)
	s.router.GET("/authored-requests", requireAuth, s.authoredRequests)
	s.router.POST("/post", requireAuth, s.createPost)
	s.router.PUT("/post", requireAuth, s.updatePost)
	s.router.POST("/collaborate", requireAuth, s.collaborate)

	admin := s.router.Group("/admin", requireAuth, AdminOnlyMiddleware(s.logger))
	{
		admin.GET("/data", s.adminData)
		admin.GET("/updates", s.adminUpdates)
	}
}

func (s *Server) countProfileHit(c *gin.Context) {
	s.profileHits.Add(1)
	c.Next()
}

// loggingMiddleware creates a custom logging middleware using zerolog
func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		s.logger.Info().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("duration", time.Since(start)).
			Str("client_ip", c.ClientIP()).
			Msg("HTTP request")
	}
}

func (s *Server) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "online",
		"timestamp": s.now().UTC(),
		"service":   "colyze-devserver",
	})
}

// Handler exposes the router, e.g. for httptest
func (s *Server) Handler() http.Handler {
	return s.router
}

// Close releases the database
func (s *Server) Close() error {
	return s.store.close()
}

// ProfileHits counts GET /profile requests served
func (s *Server) ProfileHits() int64 {
	return s.profileHits.Load()
}

// Start serves on the configured address until ctx is cancelled
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.config.Addr,
		Handler:           s.router,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", s.config.Addr).Msg("Starting dev API server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("dev server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info().Msg("Shutting down dev API server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down: %w", err)
	}
	s.logger.Info().Msg("Server shutdown complete")
	return nil
}
