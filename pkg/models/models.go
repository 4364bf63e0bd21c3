package models

import (
	"strings"
	"time"
)

// SourceType identifies how a source is fetched
type SourceType string

const (
	SourceTypeFeed SourceType = "feed"
	SourceTypePage SourceType = "page"
	SourceTypeAPI  SourceType = "api"
)

// Normalize maps legacy stored values onto the canonical source types.
// "rss" is stored by older rows for feeds and "manual" for single pages.
func (t SourceType) Normalize() SourceType {
	switch strings.ToLower(strings.TrimSpace(string(t))) {
	case "feed", "rss":
		return SourceTypeFeed
	case "page", "manual", "webpage":
		return SourceTypePage
	case "api":
		return SourceTypeAPI
	default:
		return SourceType(strings.TrimSpace(string(t)))
	}
}

// String returns string representation of the source type
func (t SourceType) String() string {
	return string(t)
}

// Source is a configured content origin
type Source struct {
	ID             int64      `json:"id" db:"id"`
	Name           string     `json:"name" db:"name"`
	URL            string     `json:"url" db:"url"`
	Type           SourceType `json:"type" db:"type"`
	FeedURL        string     `json:"rss_url,omitempty" db:"rss_url"`
	Description    string     `json:"description,omitempty" db:"description"`
	Category       string     `json:"category,omitempty" db:"category"`
	IsActive       bool       `json:"is_active" db:"is_active"`
	FetchFrequency int        `json:"fetch_frequency" db:"fetch_frequency"` // minutes
	FetchConfig    string     `json:"fetch_config,omitempty" db:"fetch_config"`
	LastFetch      *time.Time `json:"last_fetch,omitempty" db:"last_fetch"`
	CreatedAt      time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at" db:"updated_at"`
}

// CandidateArticle is an extraction result that has not been reconciled with storage yet
type CandidateArticle struct {
	Title       string             `json:"title"`
	Body        string             `json:"body"` // sanitized HTML
	URL         string             `json:"url"`
	Author      string             `json:"author,omitempty"`
	PublishedAt *time.Time         `json:"published_at,omitempty"`
	Images      []string           `json:"images,omitempty"`
	Summary     string             `json:"summary,omitempty"`
	Categories  map[string]float64 `json:"categories,omitempty"`
	Keywords    []string           `json:"keywords,omitempty"`
	Domain      string             `json:"domain,omitempty"`
}

// TopCategory returns the label with the highest confidence, or "" when there are none.
// Ties resolve to the lexically smallest label so the result is stable.
func (c *CandidateArticle) TopCategory() string {
	best := ""
	bestScore := -1.0
	for label, score := range c.Categories {
		if score > bestScore || (score == bestScore && label < best) {
			best = label
			bestScore = score
		}
	}
	return best
}

// Article is the persisted record, unique by URL
type Article struct {
	ID          int64      `json:"id" db:"id"`
	Title       string     `json:"title" db:"title"`
	Content     string     `json:"content" db:"content"`
	URL         string     `json:"url" db:"url"`
	Author      string     `json:"author,omitempty" db:"author"`
	PublishedAt *time.Time `json:"published_at,omitempty" db:"published_at"`
	SourceID    int64      `json:"source_id" db:"source_id"`
	SourceType  SourceType `json:"source_type" db:"source_type"`
	IsRead      bool       `json:"is_read" db:"is_read"`
	Images      []string   `json:"images,omitempty" db:"-"`
	Summary     string     `json:"summary,omitempty" db:"summary"`
	Keywords    []string   `json:"keywords,omitempty" db:"-"`
	Category    string     `json:"category,omitempty" db:"category"`
	WordCount   int        `json:"word_count" db:"word_count"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at" db:"updated_at"`
}

// FetchConfig holds per-source overrides decoded from Source.FetchConfig
type FetchConfig struct {
	TitleSelectors     []string `json:"title_selectors,omitempty" mapstructure:"title_selectors"`
	ContentSelectors   []string `json:"content_selectors,omitempty" mapstructure:"content_selectors"`
	WaitTimeoutSeconds int      `json:"wait_timeout_seconds,omitempty" mapstructure:"wait_timeout_seconds"`
	SkipFullText       bool     `json:"skip_full_text,omitempty" mapstructure:"skip_full_text"`
}
