// Package store persists sources and articles. Articles are unique by URL.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/mx-pai/rss-recommendation-platform/pkg/models"
)

// Errors
var (
	ErrSourceNotFound  = errors.New("source not found")
	ErrArticleNotFound = errors.New("article not found")
)

// Store defines the persistence used by the fetch pipeline
type Store interface {
	GetSource(ctx context.Context, id int64) (*models.Source, error)
	ListActiveSources(ctx context.Context) ([]*models.Source, error)
	CreateSource(ctx context.Context, source *models.Source) error
	// ListRecentArticles returns up to limit articles, newest first.
	ListRecentArticles(ctx context.Context, limit int) ([]*models.Article, error)

	// WithTx runs fn in a transaction, committing when fn returns nil and
	// rolling back otherwise.
	WithTx(ctx context.Context, fn func(tx Tx) error) error
}

// Tx is the set of article operations available inside a transaction
type Tx interface {
	FindArticleByURL(ctx context.Context, url string) (*models.Article, error)
	// InsertArticle reports false when an article with the same URL already exists.
	InsertArticle(ctx context.Context, article *models.Article) (bool, error)
	UpdateArticle(ctx context.Context, article *models.Article) error
	TouchSource(ctx context.Context, sourceID int64, at time.Time) error
}
