package devserver

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/colyze-dev/colyze/internal/auth"
)

const (
	bearerPrefix = "Bearer "
	sessionKey   = "session"
)

var (
	ErrMissingToken = errors.New("missing session token")
	ErrInvalidToken = errors.New("invalid token")
)

// SessionData is what the auth middleware attaches to a request
type SessionData struct {
	UserID   string
	Username string
	IsAdmin  bool
}

func setSession(c *gin.Context, sessionData *SessionData) {
	c.Set(sessionKey, sessionData)
}

// GetSessionData returns the session attached by JWTAuthMiddleware
func GetSessionData(c *gin.Context) (*SessionData, bool) {
	session, exists := c.Get(sessionKey)
	if !exists {
		return nil, false
	}

	sessionData, ok := session.(*SessionData)
	return sessionData, ok
}

// extractToken prefers the session cookie and falls back to the
// Authorization header
func extractToken(c *gin.Context) (string, error) {
	if cookie, err := c.Cookie(auth.TokenCookie); err == nil && cookie != "" {
		return cookie, nil
	}

	authHeader := c.GetHeader("Authorization")
	if !strings.HasPrefix(authHeader, bearerPrefix) {
		return "", ErrMissingToken
	}
	token := strings.TrimPrefix(authHeader, bearerPrefix)
	if token == "" {
		return "", ErrMissingToken
	}
	return token, nil
}

func respondWithError(c *gin.Context, log zerolog.Logger, statusCode int, err error, message string) {
	log.Debug().Err(err).Int("status", statusCode).Msg(message)
	c.JSON(statusCode, gin.H{"error": message})
	c.Abort()
}

// JWTAuthMiddleware validates the session token and loads the current user.
// The admin flag comes from the user record, not from the token, so revoked
// privileges take effect immediately.
func JWTAuthMiddleware(issuer *auth.TokenIssuer, users *store, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := extractToken(c)
		if err != nil {
			respondWithError(c, log, http.StatusUnauthorized, err, "Not authenticated")
			return
		}

		claims, err := issuer.ValidateToken(token)
		if err != nil {
			respondWithError(c, log, http.StatusUnauthorized, ErrInvalidToken, "Invalid or expired token")
			return
		}

		user, err := users.userByID(claims.UserID)
		if errors.Is(err, ErrUserNotFound) {
			respondWithError(c, log, http.StatusUnauthorized, err, "User not found")
			return
		}
		if err != nil {
			respondWithError(c, log, http.StatusInternalServerError, err, "Failed to load user")
			return
		}

		setSession(c, &SessionData{
			UserID:   user.ID,
			Username: user.Username,
			IsAdmin:  user.IsAdmin,
		})
		c.Next()
	}
}

// AdminOnlyMiddleware ensures the authenticated user is an admin
func AdminOnlyMiddleware(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		sessionData, exists := GetSessionData(c)
		if !exists {
			respondWithError(c, log, http.StatusUnauthorized, errors.New("no session"), "Unauthorized")
			return
		}

		if !sessionData.IsAdmin {
			respondWithError(c, log, http.StatusForbidden, errors.New("not admin"), "Admin access required")
			return
		}

		c.Next()
	}
}
