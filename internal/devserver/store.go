package devserver

import (
	"errors"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/colyze-dev/colyze/internal/auth"
	"github.com/colyze-dev/colyze/internal/models"
)

// User statuses
const (
	StatusPending  = "pending"
	StatusApproved = "approved"
)

var (
	ErrUserExists   = errors.New("username or email already taken")
	ErrUserNotFound = errors.New("user not found")
	ErrPostNotFound = errors.New("post not found")
)

// BaseRow provides the ULID primary key shared by every table
type BaseRow struct {
	ID        string    `gorm:"primaryKey;type:varchar(26)"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

// BeforeCreate generates a ULID for the ID field if it's empty
func (b *BaseRow) BeforeCreate(tx *gorm.DB) error {
	if b.ID == "" {
		b.ID = ulid.Make().String()
	}
	return nil
}

type userRow struct {
	BaseRow
	Username     string `gorm:"uniqueIndex;not null"`
	Name         string
	Email        string `gorm:"uniqueIndex;not null"`
	PasswordHash string `gorm:"not null"`
	IsAdmin      bool   `gorm:"not null;default:false"`
	Status       string `gorm:"not null;default:pending"`
	Bio          *string
	LinkedIn     *string
	GitHub       *string
	Website      *string
	PhoneNumber  *string
}

func (userRow) TableName() string { return "users" }

func (r userRow) toModel() models.User {
	joined := r.CreatedAt.UTC()
	return models.User{
		ID:          r.ID,
		Username:    r.Username,
		Name:        r.Name,
		Email:       r.Email,
		IsAdmin:     r.IsAdmin,
		Bio:         r.Bio,
		LinkedIn:    r.LinkedIn,
		GitHub:      r.GitHub,
		Website:     r.Website,
		PhoneNumber: r.PhoneNumber,
		JoinedDate:  &joined,
		Status:      r.Status,
	}
}

type postRow struct {
	BaseRow
	Title          string `gorm:"not null"`
	Summary        string
	Content        string
	Cover          string
	Tags           []string `gorm:"serializer:json"`
	Positions      []string `gorm:"serializer:json"`
	TeamSize       int
	Stage          string
	Status         string
	Likes          int
	AuthorID       string `gorm:"index"`
	AuthorUsername string
	AuthorName     string
	Collaborators  []models.Collaborator `gorm:"serializer:json"`
}

func (postRow) TableName() string { return "posts" }

func newPostRow(p models.Post) postRow {
	row := postRow{
		BaseRow:       BaseRow{ID: p.ID, CreatedAt: p.CreatedAt},
		Title:         p.Title,
		Summary:       p.Summary,
		Content:       p.Content,
		Cover:         p.Cover,
		Tags:          p.Tags,
		Positions:     p.Positions,
		TeamSize:      p.TeamSize,
		Stage:         p.Stage,
		Status:        p.Status,
		Likes:         p.Likes,
		Collaborators: p.Collaborators,
	}
	if p.Author != nil {
		row.AuthorID = p.Author.ID
		row.AuthorUsername = p.Author.Username
		row.AuthorName = p.Author.Name
	}
	return row
}

func (r postRow) toModel() models.Post {
	p := models.Post{
		ID:            r.ID,
		Title:         r.Title,
		Summary:       r.Summary,
		Content:       r.Content,
		Cover:         r.Cover,
		Tags:          r.Tags,
		Positions:     r.Positions,
		TeamSize:      r.TeamSize,
		Stage:         r.Stage,
		Status:        r.Status,
		Likes:         r.Likes,
		CreatedAt:     r.CreatedAt.UTC(),
		Collaborators: r.Collaborators,
	}
	if r.AuthorID != "" {
		p.Author = &models.Author{ID: r.AuthorID, Username: r.AuthorUsername, Name: r.AuthorName}
	}
	return p
}

type requestRow struct {
	BaseRow
	ProjectID string `gorm:"index;not null"`
	Username  string `gorm:"not null"`
	Summary   string
	Roles     []string `gorm:"serializer:json"`
	Status    string
}

func (requestRow) TableName() string { return "collab_requests" }

func (r requestRow) toModel() models.CollabRequest {
	return models.CollabRequest{
		ID:        r.ID,
		ProjectID: r.ProjectID,
		Username:  r.Username,
		Summary:   r.Summary,
		Roles:     r.Roles,
		Status:    r.Status,
		CreatedAt: r.CreatedAt.UTC(),
	}
}

type updateRow struct {
	BaseRow
	ProjectID  string `gorm:"index;not null"`
	Summary    string
	GitHubLink string
	Author     string
}

func (updateRow) TableName() string { return "project_updates" }

func (r updateRow) toModel() models.ProjectUpdate {
	return models.ProjectUpdate{
		ID:         r.ID,
		ProjectID:  r.ProjectID,
		Summary:    r.Summary,
		GitHubLink: r.GitHubLink,
		Author:     r.Author,
		CreatedAt:  r.CreatedAt.UTC(),
	}
}

var allTables = []any{&userRow{}, &postRow{}, &requestRow{}, &updateRow{}}

// store is the SQLite data set behind the dev server
type store struct {
	db *gorm.DB
}

// gormWriter routes gorm's warnings through zerolog
type gormWriter struct {
	log zerolog.Logger
}

func (w gormWriter) Printf(format string, args ...any) {
	w.log.Warn().Msgf(format, args...)
}

// openStore opens the database at dsn. An empty dsn or ":memory:" gives a
// private in-memory database.
func openStore(dsn string, zlog zerolog.Logger) (*store, error) {
	inMemory := dsn == "" || dsn == ":memory:"
	if inMemory {
		dsn = ":memory:"
	}

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.New(gormWriter{log: zlog}, logger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
		}),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database handle: %w", err)
	}

	if inMemory {
		// Every connection to :memory: is a separate database
		sqlDB.SetMaxOpenConns(1)
		sqlDB.SetMaxIdleConns(1)
		sqlDB.SetConnMaxLifetime(0)
	} else {
		sqlDB.SetMaxOpenConns(4)
		sqlDB.SetMaxIdleConns(2)
		pragmas := []string{
			"PRAGMA journal_mode=WAL",
			"PRAGMA synchronous=NORMAL",
			"PRAGMA busy_timeout=5000",
		}
		for _, pragma := range pragmas {
			if err := db.Exec(pragma).Error; err != nil {
				return nil, fmt.Errorf("failed to execute %q: %w", pragma, err)
			}
		}
	}

	if err := db.AutoMigrate(allTables...); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return &store{db: db}, nil
}

func (s *store) close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// NewUser describes an account to create
type NewUser struct {
	Username    string `json:"username" binding:"required,alphanumunicode,min=3,max=32"`
	Name        string `json:"name" binding:"required"`
	Email       string `json:"email" binding:"required,email"`
	Password    string `json:"password" binding:"required,min=8"`
	PhoneNumber string `json:"phoneNumber" binding:"omitempty,e164"`
	LinkedIn    string `json:"linkedin" binding:"omitempty,url"`
	GitHub      string `json:"github" binding:"omitempty,url"`
	IsAdmin     bool   `json:"-"`
	Status      string `json:"-"`
}

func (s *store) createUser(nu NewUser, now time.Time) (models.User, error) {
	hash, err := auth.HashPassword(nu.Password)
	if err != nil {
		return models.User{}, err
	}

	status := nu.Status
	if status == "" {
		status = StatusPending
	}
	row := userRow{
		BaseRow:      BaseRow{CreatedAt: now.UTC()},
		Username:     nu.Username,
		Name:         nu.Name,
		Email:        nu.Email,
		PasswordHash: hash,
		IsAdmin:      nu.IsAdmin,
		Status:       status,
		PhoneNumber:  optional(nu.PhoneNumber),
		LinkedIn:     optional(nu.LinkedIn),
		GitHub:       optional(nu.GitHub),
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		var taken int64
		if err := tx.Model(&userRow{}).
			Where("LOWER(username) = LOWER(?) OR LOWER(email) = LOWER(?)", nu.Username, nu.Email).
			Count(&taken).Error; err != nil {
			return err
		}
		if taken > 0 {
			return ErrUserExists
		}
		return tx.Create(&row).Error
	})
	if err != nil {
		return models.User{}, err
	}
	return row.toModel(), nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func (s *store) userByID(id string) (models.User, error) {
	var row userRow
	if err := s.db.Where("id = ?", id).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.User{}, ErrUserNotFound
		}
		return models.User{}, err
	}
	return row.toModel(), nil
}

// account is a user together with the password hash, for login only
type account struct {
	user         models.User
	passwordHash string
}

func (s *store) accountByUsername(username string) (*account, error) {
	var row userRow
	if err := s.db.Where("username = ?", username).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &account{user: row.toModel(), passwordHash: row.PasswordHash}, nil
}

// setAdmin flips the admin flag; tests use it to revoke privileges mid-session
func (s *store) setAdmin(id string, isAdmin bool) error {
	res := s.db.Model(&userRow{}).Where("id = ?", id).Update("is_admin", isAdmin)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (s *store) deleteUser(id string) error {
	return s.db.Where("id = ?", id).Delete(&userRow{}).Error
}

func (s *store) users() ([]models.User, error) {
	var rows []userRow
	if err := s.db.Order("username").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]models.User, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toModel())
	}
	return out, nil
}

func (s *store) countUsers() (int64, error) {
	var n int64
	err := s.db.Model(&userRow{}).Count(&n).Error
	return n, err
}

func (s *store) addPost(p models.Post) (models.Post, error) {
	row := newPostRow(p)
	if err := s.db.Create(&row).Error; err != nil {
		return models.Post{}, err
	}
	return row.toModel(), nil
}

func (s *store) listPosts() ([]models.Post, error) {
	var rows []postRow
	if err := s.db.Order("id").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]models.Post, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toModel())
	}
	return out, nil
}

func (s *store) post(id string) (models.Post, error) {
	var row postRow
	if err := s.db.Where("id = ?", id).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Post{}, ErrPostNotFound
		}
		return models.Post{}, err
	}
	return row.toModel(), nil
}

// updatePost rewrites the editable fields of a post. The cover is kept when
// the update carries none.
func (s *store) updatePost(p models.Post) (models.Post, error) {
	fields := []string{"Title", "Summary", "Content", "Tags", "Positions", "TeamSize", "Stage"}
	if p.Cover != "" {
		fields = append(fields, "Cover")
	}

	row := newPostRow(p)
	res := s.db.Model(&row).Select(fields).Updates(row)
	if res.Error != nil {
		return models.Post{}, res.Error
	}
	if res.RowsAffected == 0 {
		return models.Post{}, ErrPostNotFound
	}
	return s.post(p.ID)
}

func (s *store) hasRequest(projectID, username string) (bool, error) {
	var n int64
	err := s.db.Model(&requestRow{}).
		Where("project_id = ? AND LOWER(username) = LOWER(?)", projectID, username).
		Count(&n).Error
	return n > 0, err
}

func (s *store) addRequest(r models.CollabRequest) error {
	row := requestRow{
		BaseRow:   BaseRow{ID: r.ID, CreatedAt: r.CreatedAt},
		ProjectID: r.ProjectID,
		Username:  r.Username,
		Summary:   r.Summary,
		Roles:     r.Roles,
		Status:    r.Status,
	}
	return s.db.Create(&row).Error
}

// requestsFor returns collaboration requests on posts authored by userID
func (s *store) requestsFor(userID string) ([]models.CollabRequest, error) {
	var rows []requestRow
	err := s.db.
		Where("project_id IN (?)", s.db.Model(&postRow{}).Select("id").Where("author_id = ?", userID)).
		Order("id").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]models.CollabRequest, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toModel())
	}
	return out, nil
}

func (s *store) addUpdate(u models.ProjectUpdate) error {
	row := updateRow{
		BaseRow:    BaseRow{ID: u.ID, CreatedAt: u.CreatedAt},
		ProjectID:  u.ProjectID,
		Summary:    u.Summary,
		GitHubLink: u.GitHubLink,
		Author:     u.Author,
	}
	return s.db.Create(&row).Error
}

func (s *store) listUpdates() ([]models.ProjectUpdate, error) {
	var rows []updateRow
	if err := s.db.Order("id").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]models.ProjectUpdate, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toModel())
	}
	return out, nil
}

// truncate removes every row from every table
func (s *store) truncate() error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		for _, table := range allTables {
			if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(table).Error; err != nil {
				return err
			}
		}
		return nil
	})
}
