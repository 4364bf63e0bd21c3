package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/mx-pai/rss-recommendation-platform/pkg/models"
)

const sourceColumns = `id, name, url, type, rss_url, description, category, is_active,
	fetch_frequency, fetch_config, last_fetch, created_at, updated_at`

const articleColumns = `id, title, content, url, author, published_at, source_id, source_type,
	is_read, images, summary, keywords, category, word_count, created_at, updated_at`

type sourceRow struct {
	ID             int64          `db:"id"`
	Name           string         `db:"name"`
	URL            string         `db:"url"`
	Type           string         `db:"type"`
	FeedURL        sql.NullString `db:"rss_url"`
	Description    sql.NullString `db:"description"`
	Category       sql.NullString `db:"category"`
	IsActive       bool           `db:"is_active"`
	FetchFrequency int            `db:"fetch_frequency"`
	FetchConfig    sql.NullString `db:"fetch_config"`
	LastFetch      sql.NullTime   `db:"last_fetch"`
	CreatedAt      time.Time      `db:"created_at"`
	UpdatedAt      time.Time      `db:"updated_at"`
}

func (r sourceRow) model() *models.Source {
	s := &models.Source{
		ID:             r.ID,
		Name:           r.Name,
		URL:            r.URL,
		Type:           models.SourceType(r.Type),
		FeedURL:        r.FeedURL.String,
		Description:    r.Description.String,
		Category:       r.Category.String,
		IsActive:       r.IsActive,
		FetchFrequency: r.FetchFrequency,
		FetchConfig:    r.FetchConfig.String,
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}
	if r.LastFetch.Valid {
		t := r.LastFetch.Time
		s.LastFetch = &t
	}
	return s
}

type articleRow struct {
	ID          int64          `db:"id"`
	Title       string         `db:"title"`
	Content     string         `db:"content"`
	URL         string         `db:"url"`
	Author      sql.NullString `db:"author"`
	PublishedAt sql.NullTime   `db:"published_at"`
	SourceID    int64          `db:"source_id"`
	SourceType  string         `db:"source_type"`
	IsRead      bool           `db:"is_read"`
	Images      sql.NullString `db:"images"`
	Summary     sql.NullString `db:"summary"`
	Keywords    sql.NullString `db:"keywords"`
	Category    sql.NullString `db:"category"`
	WordCount   int            `db:"word_count"`
	CreatedAt   time.Time      `db:"created_at"`
	UpdatedAt   time.Time      `db:"updated_at"`
}

func (r articleRow) model() (*models.Article, error) {
	a := &models.Article{
		ID:         r.ID,
		Title:      r.Title,
		Content:    r.Content,
		URL:        r.URL,
		Author:     r.Author.String,
		SourceID:   r.SourceID,
		SourceType: models.SourceType(r.SourceType),
		IsRead:     r.IsRead,
		Summary:    r.Summary.String,
		Category:   r.Category.String,
		WordCount:  r.WordCount,
		CreatedAt:  r.CreatedAt,
		UpdatedAt:  r.UpdatedAt,
	}
	if r.PublishedAt.Valid {
		t := r.PublishedAt.Time
		a.PublishedAt = &t
	}
	var err error
	if a.Images, err = decodeList(r.Images); err != nil {
		return nil, fmt.Errorf("failed to unmarshal images: %w", err)
	}
	if a.Keywords, err = decodeList(r.Keywords); err != nil {
		return nil, fmt.Errorf("failed to unmarshal keywords: %w", err)
	}
	return a, nil
}

// encodeList serializes a list, mapping an empty list to NULL.
func encodeList(values []string) (sql.NullString, error) {
	if len(values) == 0 {
		return sql.NullString{}, nil
	}
	b, err := json.Marshal(values)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}

func decodeList(v sql.NullString) ([]string, error) {
	if !v.Valid || v.String == "" {
		return nil, nil
	}
	var values []string
	if err := json.Unmarshal([]byte(v.String), &values); err != nil {
		return nil, err
	}
	if len(values) == 0 {
		return nil, nil
	}
	return values, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

// PGStore implements Store backed by PostgreSQL
type PGStore struct {
	db *sqlx.DB
}

// NewPGStore creates a new PGStore instance
func NewPGStore(db *sqlx.DB) *PGStore {
	return &PGStore{db: db}
}

// GetSource retrieves a source by ID
func (s *PGStore) GetSource(ctx context.Context, id int64) (*models.Source, error) {
	var row sourceRow
	err := s.db.GetContext(ctx, &row, `SELECT `+sourceColumns+` FROM content_sources WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSourceNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get source %d: %w", id, err)
	}
	return row.model(), nil
}

// ListActiveSources retrieves every active source ordered by ID
func (s *PGStore) ListActiveSources(ctx context.Context) ([]*models.Source, error) {
	var rows []sourceRow
	err := s.db.SelectContext(ctx, &rows, `SELECT `+sourceColumns+` FROM content_sources WHERE is_active = TRUE ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list active sources: %w", err)
	}
	sources := make([]*models.Source, 0, len(rows))
	for _, r := range rows {
		sources = append(sources, r.model())
	}
	return sources, nil
}

// CreateSource inserts a source and fills in its ID and timestamps
func (s *PGStore) CreateSource(ctx context.Context, source *models.Source) error {
	query := `INSERT INTO content_sources (name, url, type, rss_url, description, category, is_active, fetch_frequency, fetch_config, created_at, updated_at)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW(), NOW())
			  RETURNING id, created_at, updated_at`
	err := s.db.QueryRowxContext(ctx, query,
		source.Name, source.URL, string(source.Type), nullString(source.FeedURL), nullString(source.Description),
		nullString(source.Category), source.IsActive, source.FetchFrequency, nullString(source.FetchConfig),
	).Scan(&source.ID, &source.CreatedAt, &source.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create source: %w", err)
	}
	return nil
}

// ListRecentArticles retrieves the newest articles by publication date, falling back to creation date
func (s *PGStore) ListRecentArticles(ctx context.Context, limit int) ([]*models.Article, error) {
	var rows []articleRow
	query := `SELECT ` + articleColumns + ` FROM articles
			  ORDER BY COALESCE(published_at, created_at) DESC, id DESC
			  LIMIT $1`
	if err := s.db.SelectContext(ctx, &rows, query, limit); err != nil {
		return nil, fmt.Errorf("failed to list recent articles: %w", err)
	}
	articles := make([]*models.Article, 0, len(rows))
	for _, r := range rows {
		a, err := r.model()
		if err != nil {
			return nil, err
		}
		articles = append(articles, a)
	}
	return articles, nil
}

// WithTx runs fn inside a database transaction
func (s *PGStore) WithTx(ctx context.Context, fn func(tx Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(&pgTx{tx: tx}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("%w (rollback failed: %v)", err, rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

type pgTx struct {
	tx *sqlx.Tx
}

func (t *pgTx) FindArticleByURL(ctx context.Context, url string) (*models.Article, error) {
	var row articleRow
	err := t.tx.GetContext(ctx, &row, `SELECT `+articleColumns+` FROM articles WHERE url = $1 FOR UPDATE`, url)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrArticleNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find article: %w", err)
	}
	return row.model()
}

func (t *pgTx) InsertArticle(ctx context.Context, a *models.Article) (bool, error) {
	images, err := encodeList(a.Images)
	if err != nil {
		return false, fmt.Errorf("failed to marshal images: %w", err)
	}
	keywords, err := encodeList(a.Keywords)
	if err != nil {
		return false, fmt.Errorf("failed to marshal keywords: %w", err)
	}

	query := `INSERT INTO articles (title, content, url, author, published_at, source_id, source_type, is_read,
				images, summary, keywords, category, word_count, created_at, updated_at)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, NOW(), NOW())
			  ON CONFLICT (url) DO NOTHING
			  RETURNING id`
	err = t.tx.QueryRowxContext(ctx, query,
		a.Title, a.Content, a.URL, nullString(a.Author), nullTime(a.PublishedAt), a.SourceID, string(a.SourceType),
		a.IsRead, images, nullString(a.Summary), keywords, nullString(a.Category), a.WordCount,
	).Scan(&a.ID)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to insert article: %w", err)
	}
	return true, nil
}

func (t *pgTx) UpdateArticle(ctx context.Context, a *models.Article) error {
	images, err := encodeList(a.Images)
	if err != nil {
		return fmt.Errorf("failed to marshal images: %w", err)
	}
	keywords, err := encodeList(a.Keywords)
	if err != nil {
		return fmt.Errorf("failed to marshal keywords: %w", err)
	}

	query := `UPDATE articles
			  SET content = $1, word_count = $2, images = $3, summary = $4, keywords = $5, category = $6, updated_at = NOW()
			  WHERE id = $7`
	res, err := t.tx.ExecContext(ctx, query,
		a.Content, a.WordCount, images, nullString(a.Summary), keywords, nullString(a.Category), a.ID)
	if err != nil {
		return fmt.Errorf("failed to update article: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrArticleNotFound
	}
	return nil
}

func (t *pgTx) TouchSource(ctx context.Context, sourceID int64, at time.Time) error {
	_, err := t.tx.ExecContext(ctx, `UPDATE content_sources SET last_fetch = $1, updated_at = NOW() WHERE id = $2`, at, sourceID)
	if err != nil {
		return fmt.Errorf("failed to update source last fetch: %w", err)
	}
	return nil
}
