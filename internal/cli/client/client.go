package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/colyze-dev/colyze/internal/auth"
	"github.com/colyze-dev/colyze/internal/models"
)

// TokenCookie is the client-readable cookie that mirrors the session
const TokenCookie = auth.TokenCookie

// Client represents an HTTP client for the Colyze API.
// Every request is credentialed: it carries the cookie jar and, when a token
// is known, an Authorization header.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	logger     zerolog.Logger

	mu    sync.RWMutex
	token string
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client. Its jar is replaced by
// ours when nil.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc.Jar == nil {
			hc.Jar = c.httpClient.Jar
		}
		c.httpClient = hc
	}
}

// WithTimeout sets the per-request timeout
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// WithToken seeds the client with a previously stored session token
func WithToken(token string) Option {
	return func(c *Client) {
		c.SetToken(token)
	}
}

// WithLogger attaches a logger for request diagnostics
func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) {
		c.logger = l
	}
}

// New creates a new API client for the given base URL
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid API URL %q: %w", baseURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid API URL %q: scheme must be http or https", baseURL)
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}

	c := &Client{
		baseURL: u,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
			Jar:     jar,
		},
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// BaseURL returns the API root this client talks to
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// SetHTTPClient sets a custom HTTP client
func (c *Client) SetHTTPClient(httpClient *http.Client) {
	WithHTTPClient(httpClient)(c)
}

// SetToken installs the session token both as cookie and bearer credential.
// An empty token clears it.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()

	if c.httpClient.Jar == nil {
		return
	}
	cookie := &http.Cookie{Name: TokenCookie, Value: token, Path: "/"}
	if token == "" {
		cookie.MaxAge = -1
	}
	c.httpClient.Jar.SetCookies(c.baseURL, []*http.Cookie{cookie})
}

// Token returns the current session token, preferring whatever the server
// last set in the cookie jar
func (c *Client) Token() string {
	if c.httpClient.Jar != nil {
		for _, ck := range c.httpClient.Jar.Cookies(c.baseURL) {
			if ck.Name == TokenCookie && ck.Value != "" {
				return ck.Value
			}
		}
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

func (c *Client) endpoint(path string) string {
	u := *c.baseURL
	u.Path = strings.TrimRight(u.Path, "/") + path
	return u.String()
}

// do performs a JSON request. want is the expected status code; out may be nil.
func (c *Client) do(ctx context.Context, op, method, path string, body any, want int, out any) error {
	var reader io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path), reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if token := c.Token(); token != "" {
		req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", token))
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Debug().Err(err).Str("method", method).Str("path", path).Msg("API request failed")
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	c.logger.Debug().
		Str("method", method).
		Str("path", path).
		Int("status", resp.StatusCode).
		Dur("duration", time.Since(start)).
		Msg("API request")

	if resp.StatusCode != want {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		return &APIError{Op: op, StatusCode: resp.StatusCode, Message: errorMessage(raw)}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// errorMessage extracts {"error": ...} or {"message": ...} from a body,
// falling back to the raw text
func errorMessage(raw []byte) string {
	var body struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &body); err == nil {
		if body.Error != "" {
			return body.Error
		}
		if body.Message != "" {
			return body.Message
		}
	}
	return strings.TrimSpace(string(raw))
}

// Profile returns the user behind the current session
func (c *Client) Profile(ctx context.Context) (*models.User, error) {
	var user models.User
	if err := c.do(ctx, "profile", http.MethodGet, "/profile", nil, http.StatusOK, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// UserProfile returns the public profile of another user
func (c *Client) UserProfile(ctx context.Context, username string) (*models.User, error) {
	var user models.User
	path := "/profile/" + url.PathEscape(username)
	if err := c.do(ctx, "profile", http.MethodGet, path, nil, http.StatusOK, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// LoginRequest represents the login request body
type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// LoginResponse is whatever the server echoes on login. It is informational
// only: the session user must be re-read from /profile.
type LoginResponse struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Token    string `json:"token"`
}

// Login authenticates the user. On success the server sets the session
// cookies; the token is mirrored into the client.
func (c *Client) Login(ctx context.Context, username, password string) (*LoginResponse, error) {
	var loginResp LoginResponse
	req := LoginRequest{Username: username, Password: password}
	if err := c.do(ctx, "login", http.MethodPost, "/login", req, http.StatusOK, &loginResp); err != nil {
		return nil, err
	}

	if token := c.Token(); token != "" {
		c.SetToken(token)
	} else if loginResp.Token != "" {
		c.SetToken(loginResp.Token)
	}
	return &loginResp, nil
}

// Logout ends the server-side session and forgets the local token even when
// the request fails
func (c *Client) Logout(ctx context.Context) error {
	defer c.SetToken("")
	return c.do(ctx, "logout", http.MethodPost, "/logout", nil, http.StatusOK, nil)
}

// RegisterRequest represents the registration form
type RegisterRequest struct {
	Name        string `json:"name" validate:"required"`
	Email       string `json:"email" validate:"required,email"`
	Username    string `json:"username" validate:"required,alphanumunicode,min=3,max=32"`
	Password    string `json:"password" validate:"required,min=8"`
	PhoneNumber string `json:"phoneNumber,omitempty" validate:"omitempty,e164"`
	LinkedIn    string `json:"linkedin,omitempty" validate:"omitempty,url"`
	GitHub      string `json:"github,omitempty" validate:"omitempty,url"`
}

// Register creates an account pending admin review
func (c *Client) Register(ctx context.Context, req RegisterRequest) error {
	return c.do(ctx, "registration", http.MethodPost, "/register", req, http.StatusOK, nil)
}

// ListPosts returns every project idea
func (c *Client) ListPosts(ctx context.Context) ([]models.Post, error) {
	var posts []models.Post
	if err := c.do(ctx, "list posts", http.MethodGet, "/post", nil, http.StatusOK, &posts); err != nil {
		return nil, err
	}
	return posts, nil
}

// GetPost returns a single project idea
func (c *Client) GetPost(ctx context.Context, id string) (*models.Post, error) {
	var post models.Post
	path := "/post/" + url.PathEscape(id)
	if err := c.do(ctx, "get post", http.MethodGet, path, nil, http.StatusOK, &post); err != nil {
		return nil, err
	}
	return &post, nil
}

// AuthoredRequests returns collaboration requests made on the caller's projects
func (c *Client) AuthoredRequests(ctx context.Context) ([]models.CollabRequest, error) {
	var reqs []models.CollabRequest
	if err := c.do(ctx, "list collaboration requests", http.MethodGet, "/authored-requests", nil, http.StatusOK, &reqs); err != nil {
		return nil, err
	}
	return reqs, nil
}

// AdminData returns the moderation overview
func (c *Client) AdminData(ctx context.Context) (*models.AdminData, error) {
	var data models.AdminData
	if err := c.do(ctx, "admin data", http.MethodGet, "/admin/data", nil, http.StatusOK, &data); err != nil {
		return nil, err
	}
	return &data, nil
}

// AdminUpdates returns every progress update across projects
func (c *Client) AdminUpdates(ctx context.Context) ([]models.ProjectUpdate, error) {
	var updates []models.ProjectUpdate
	if err := c.do(ctx, "admin updates", http.MethodGet, "/admin/updates", nil, http.StatusOK, &updates); err != nil {
		return nil, err
	}
	return updates, nil
}

// PostInput is a project as entered in the create and edit forms. The stage
// is sent as "status".
type PostInput struct {
	Title     string   `json:"title" validate:"required,max=120"`
	Summary   string   `json:"summary" validate:"required,max=300"`
	Content   string   `json:"content" validate:"required"`
	Tags      []string `json:"tags" validate:"min=1,dive,required"`
	Positions []string `json:"positions" validate:"min=1,dive,required"`
	TeamSize  int      `json:"teamSize" validate:"min=1,max=50"`
	Stage     string   `json:"status" validate:"required"`
	Cover     string   `json:"cover,omitempty"`
}

// CheckRoles rejects more open roles than the team has seats
func (in PostInput) CheckRoles() error {
	if len(in.Positions) > in.TeamSize {
		return fmt.Errorf("you can only list up to %d roles for a team of %d", in.TeamSize, in.TeamSize)
	}
	return nil
}

type updatePostRequest struct {
	ID string `json:"id"`
	PostInput
}

// CreatePost publishes a new project authored by the signed-in user
func (c *Client) CreatePost(ctx context.Context, in PostInput) (*models.Post, error) {
	var post models.Post
	if err := c.do(ctx, "create post", http.MethodPost, "/post", in, http.StatusCreated, &post); err != nil {
		return nil, err
	}
	return &post, nil
}

// UpdatePost replaces the editable fields of a project. Only its author may.
func (c *Client) UpdatePost(ctx context.Context, id string, in PostInput) (*models.Post, error) {
	var post models.Post
	body := updatePostRequest{ID: id, PostInput: in}
	if err := c.do(ctx, "update post", http.MethodPut, "/post", body, http.StatusOK, &post); err != nil {
		return nil, err
	}
	return &post, nil
}

// CollaborationRequest asks a project's author to join the team
type CollaborationRequest struct {
	ProjectID string   `json:"projectId" validate:"required"`
	Summary   string   `json:"summary" validate:"required,max=1000"`
	Roles     []string `json:"checkboxes"`
}

// RequestCollaboration sends a collaboration request as the signed-in user
func (c *Client) RequestCollaboration(ctx context.Context, req CollaborationRequest) error {
	return c.do(ctx, "collaboration request", http.MethodPost, "/collaborate", req, http.StatusCreated, nil)
}
