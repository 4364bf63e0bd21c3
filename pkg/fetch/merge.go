package fetch

import (
	"unicode/utf8"

	"github.com/mx-pai/rss-recommendation-platform/pkg/models"
	"github.com/mx-pai/rss-recommendation-platform/pkg/page"
	"github.com/mx-pai/rss-recommendation-platform/pkg/sanitize"
)

// NewArticle builds the row inserted for a URL seen for the first time.
func NewArticle(src *models.Source, c *models.CandidateArticle) *models.Article {
	title := c.Title
	if title == "" {
		title = page.DefaultTitle
	}
	return &models.Article{
		Title:       title,
		Content:     c.Body,
		URL:         c.URL,
		Author:      c.Author,
		PublishedAt: c.PublishedAt,
		SourceID:    src.ID,
		SourceType:  src.Type.Normalize(),
		Images:      sanitize.Dedupe(c.Images),
		Summary:     c.Summary,
		Keywords:    sanitize.Dedupe(c.Keywords),
		Category:    c.TopCategory(),
		WordCount:   sanitize.WordCount(c.Body),
	}
}

// Merge backfills a stored article from a fresh candidate and reports
// whether anything changed. Every field has its own gate:
//   - body is replaced by any non-empty fresh body
//   - word count follows the resulting body
//   - images, keywords and category are only filled when unset
//   - summary is replaced only by a different one of plausible length
func Merge(existing *models.Article, c *models.CandidateArticle, config *Config) bool {
	changed := false

	if c.Body != "" && c.Body != existing.Content {
		existing.Content = c.Body
		changed = true
	}

	if wc := sanitize.WordCount(existing.Content); wc != existing.WordCount {
		existing.WordCount = wc
		changed = true
	}

	if len(existing.Images) == 0 {
		if images := sanitize.Dedupe(c.Images); len(images) > 0 {
			existing.Images = images
			changed = true
		}
	}

	if plausibleSummary(c.Summary, config) && c.Summary != existing.Summary {
		existing.Summary = c.Summary
		changed = true
	}

	if len(existing.Keywords) == 0 {
		if keywords := sanitize.Dedupe(c.Keywords); len(keywords) > 0 {
			existing.Keywords = keywords
			changed = true
		}
	}

	if existing.Category == "" {
		if category := c.TopCategory(); category != "" {
			existing.Category = category
			changed = true
		}
	}

	return changed
}

func plausibleSummary(summary string, config *Config) bool {
	if summary == "" {
		return false
	}
	n := utf8.RuneCountInString(summary)
	return n >= config.SummaryMinLength && n <= config.SummaryMaxLength
}

// MergeFeedAndPage combines a feed entry with the full-text crawl of its
// permalink. The page body always wins; author, date and images come from the
// page when it has them; the feed title is kept when present.
func MergeFeedAndPage(entry, full *models.CandidateArticle) *models.CandidateArticle {
	merged := &models.CandidateArticle{
		Title:       entry.Title,
		Body:        full.Body,
		URL:         entry.URL,
		Author:      entry.Author,
		PublishedAt: entry.PublishedAt,
		Images:      entry.Images,
		Summary:     full.Summary,
		Categories:  full.Categories,
		Keywords:    full.Keywords,
		Domain:      entry.Domain,
	}
	if merged.Title == "" {
		merged.Title = full.Title
	}
	if full.Author != "" {
		merged.Author = full.Author
	}
	if full.PublishedAt != nil {
		merged.PublishedAt = full.PublishedAt
	}
	if len(full.Images) > 0 {
		merged.Images = full.Images
	}
	if merged.Domain == "" {
		merged.Domain = full.Domain
	}
	return merged
}
