package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-logr/logr"
	"github.com/gorilla/feeds"

	"github.com/mx-pai/rss-recommendation-platform/pkg/models"
)

// ArticleLister returns the newest stored articles
type ArticleLister interface {
	ListRecentArticles(ctx context.Context, limit int) ([]*models.Article, error)
}

// FeedConfig holds the configuration of the republished article feed.
type FeedConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	Title       string `mapstructure:"title"`
	Description string `mapstructure:"description"`
	Link        string `mapstructure:"link"`
	Author      string `mapstructure:"author"`
	MaxItems    int    `mapstructure:"max_items"`
	Path        string `mapstructure:"path"`
}

// DefaultFeedConfig returns default feed configuration.
func DefaultFeedConfig() *FeedConfig {
	return &FeedConfig{
		Enabled:     true,
		Title:       "Ingested articles",
		Description: "Most recent articles collected from content sources",
		Link:        "http://localhost:9090/feed",
		MaxItems:    50,
		Path:        "/feed",
	}
}

// FeedHost republishes stored articles as RSS and Atom
type FeedHost struct {
	config   *FeedConfig
	articles ArticleLister
	logger   logr.Logger
}

// NewFeedHost creates a FeedHost
func NewFeedHost(config *FeedConfig, articles ArticleLister, logger logr.Logger) *FeedHost {
	if config == nil {
		config = DefaultFeedConfig()
	}
	return &FeedHost{config: config, articles: articles, logger: logger}
}

// Handlers returns the RSS handler at Path and the Atom handler at Path+"-atom".
func (f *FeedHost) Handlers() map[string]http.Handler {
	if !f.config.Enabled {
		return nil
	}
	path := f.config.Path
	if path == "" {
		path = "/feed"
	}
	return map[string]http.Handler{
		path:           http.HandlerFunc(f.HandleRSS),
		path + "-atom": http.HandlerFunc(f.HandleAtom),
	}
}

// HandleRSS serves the RSS feed
func (f *FeedHost) HandleRSS(w http.ResponseWriter, r *http.Request) {
	f.serve(w, r, "application/rss+xml", (*feeds.Feed).ToRss)
}

// HandleAtom serves the Atom feed
func (f *FeedHost) HandleAtom(w http.ResponseWriter, r *http.Request) {
	f.serve(w, r, "application/atom+xml", (*feeds.Feed).ToAtom)
}

func (f *FeedHost) serve(w http.ResponseWriter, r *http.Request, contentType string, render func(*feeds.Feed) (string, error)) {
	feed, err := f.Feed(r.Context())
	if err != nil {
		HandleError(w, f.logger, err, http.StatusInternalServerError)
		return
	}
	body, err := render(feed)
	if err != nil {
		f.logger.Error(err, "Failed to render feed", "contentType", contentType)
		http.Error(w, "Failed to render feed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", contentType)
	if _, err := w.Write([]byte(body)); err != nil {
		f.logger.Error(err, "Failed to write feed response")
	}
}

// Feed builds the feed from the newest stored articles.
func (f *FeedHost) Feed(ctx context.Context) (*feeds.Feed, error) {
	articles, err := f.articles.ListRecentArticles(ctx, f.config.MaxItems)
	if err != nil {
		return nil, err
	}

	feed := &feeds.Feed{
		Title:       f.config.Title,
		Link:        &feeds.Link{Href: f.config.Link},
		Description: f.config.Description,
		Created:     time.Now().UTC(),
	}
	if f.config.Author != "" {
		feed.Author = &feeds.Author{Name: f.config.Author}
	}
	for _, a := range articles {
		feed.Items = append(feed.Items, feedItem(a))
	}
	if len(feed.Items) > 0 {
		feed.Updated = feed.Items[0].Created
	}
	return feed, nil
}

func feedItem(a *models.Article) *feeds.Item {
	item := &feeds.Item{
		Id:          a.URL,
		Title:       a.Title,
		Link:        &feeds.Link{Href: a.URL},
		Description: a.Summary,
		Content:     a.Content,
		Created:     a.CreatedAt,
		Updated:     a.UpdatedAt,
	}
	if a.PublishedAt != nil {
		item.Created = *a.PublishedAt
	}
	if a.Author != "" {
		item.Author = &feeds.Author{Name: a.Author}
	}
	return item
}
