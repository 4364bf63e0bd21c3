// Package feed turns RSS, Atom and JSON feeds into candidate articles.
package feed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-logr/logr"
	"github.com/mmcdole/gofeed"

	"github.com/mx-pai/rss-recommendation-platform/pkg/models"
	"github.com/mx-pai/rss-recommendation-platform/pkg/sanitize"
)

var ErrFeedURLMissing = errors.New("feed url missing")

// Ingester parses feeds into candidate articles
type Ingester struct {
	config *Config
	parser *gofeed.Parser
	logger logr.Logger
}

// New creates a new feed ingester
func New(config *Config, logger logr.Logger) *Ingester {
	if config == nil {
		config = DefaultConfig()
	}
	parser := gofeed.NewParser()
	parser.UserAgent = config.UserAgent
	parser.Client = &http.Client{Timeout: time.Duration(config.Timeout) * time.Second}
	return &Ingester{
		config: config,
		parser: parser,
		logger: logger,
	}
}

// Crawl downloads and parses the feed at feedURL.
func (i *Ingester) Crawl(ctx context.Context, feedURL string) ([]*models.CandidateArticle, error) {
	feedURL = strings.TrimSpace(feedURL)
	if feedURL == "" {
		return nil, ErrFeedURLMissing
	}
	i.logger.Info("Parsing feed", "url", feedURL)

	parsed, err := i.parser.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to parse feed %s: %w", feedURL, err)
	}
	return i.Candidates(parsed, feedURL), nil
}

// Parse reads a feed document from r. base resolves relative entry links.
func (i *Ingester) Parse(r io.Reader, base string) ([]*models.CandidateArticle, error) {
	parsed, err := i.parser.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse feed: %w", err)
	}
	return i.Candidates(parsed, base), nil
}

// Candidates converts every entry of a parsed feed that has a usable permalink.
func (i *Ingester) Candidates(parsed *gofeed.Feed, base string) []*models.CandidateArticle {
	baseURL := resolveBase(parsed, base)

	var candidates []*models.CandidateArticle
	for _, item := range parsed.Items {
		if i.config.MaxItems > 0 && len(candidates) >= i.config.MaxItems {
			break
		}
		candidate := i.candidate(item, baseURL)
		if candidate == nil {
			i.logger.Info("Skipping feed entry without link", "title", item.Title)
			continue
		}
		candidates = append(candidates, candidate)
	}
	i.logger.Info("Feed parsed", "url", base, "entries", len(parsed.Items), "candidates", len(candidates))
	return candidates
}

func (i *Ingester) candidate(item *gofeed.Item, base *url.URL) *models.CandidateArticle {
	link := Permalink(item, base)
	if link == "" {
		return nil
	}

	raw := rawContent(item)
	images := append(MediaImages(item), sanitize.ImageURLs(raw)...)
	images = sanitize.Dedupe(images)
	if max := i.config.MaxImages; max > 0 && len(images) > max {
		images = images[:max]
	}

	return &models.CandidateArticle{
		Title:       sanitize.Text(item.Title),
		Body:        sanitize.HTML(raw),
		URL:         link,
		Author:      author(item),
		PublishedAt: published(item),
		Images:      images,
		Domain:      domain(link),
	}
}

// Permalink returns the first usable entry link: the primary link, then the
// alternate links, then a GUID that looks like a URL.
func Permalink(item *gofeed.Item, base *url.URL) string {
	candidates := make([]string, 0, len(item.Links)+2)
	candidates = append(candidates, item.Link)
	candidates = append(candidates, item.Links...)
	if strings.HasPrefix(item.GUID, "http://") || strings.HasPrefix(item.GUID, "https://") {
		candidates = append(candidates, item.GUID)
	}
	for _, c := range candidates {
		if u := absolute(c, base); u != "" {
			return u
		}
	}
	return ""
}

// rawContent picks the richest body: full content, then description, then the
// iTunes summary.
func rawContent(item *gofeed.Item) string {
	if strings.TrimSpace(item.Content) != "" {
		return item.Content
	}
	if strings.TrimSpace(item.Description) != "" {
		return item.Description
	}
	if item.ITunesExt != nil && strings.TrimSpace(item.ITunesExt.Summary) != "" {
		return item.ITunesExt.Summary
	}
	return ""
}

// MediaImages collects images declared in structured entry fields, in the
// order item image, media:content, media:thumbnail, enclosures.
func MediaImages(item *gofeed.Item) []string {
	var images []string
	if item.Image != nil && item.Image.URL != "" {
		images = append(images, item.Image.URL)
	}
	if media, ok := item.Extensions["media"]; ok {
		for _, content := range media["content"] {
			medium := content.Attrs["medium"]
			typ := content.Attrs["type"]
			if medium == "image" || strings.HasPrefix(typ, "image/") || (medium == "" && typ == "") {
				images = append(images, content.Attrs["url"])
			}
		}
		for _, thumb := range media["thumbnail"] {
			images = append(images, thumb.Attrs["url"])
		}
	}
	for _, enc := range item.Enclosures {
		if strings.HasPrefix(enc.Type, "image/") {
			images = append(images, enc.URL)
		}
	}

	valid := images[:0]
	for _, u := range images {
		if isHTTP(u) {
			valid = append(valid, u)
		}
	}
	return valid
}

func author(item *gofeed.Item) string {
	if item.Author != nil && item.Author.Name != "" {
		return sanitize.Text(item.Author.Name)
	}
	for _, a := range item.Authors {
		if a != nil && a.Name != "" {
			return sanitize.Text(a.Name)
		}
	}
	if item.ITunesExt != nil && item.ITunesExt.Author != "" {
		return sanitize.Text(item.ITunesExt.Author)
	}
	return ""
}

func published(item *gofeed.Item) *time.Time {
	if item.PublishedParsed != nil {
		t := item.PublishedParsed.UTC()
		return &t
	}
	if t := sanitize.ParseDate(item.Published); t != nil {
		return t
	}
	if item.UpdatedParsed != nil {
		t := item.UpdatedParsed.UTC()
		return &t
	}
	return sanitize.ParseDate(item.Updated)
}

func resolveBase(parsed *gofeed.Feed, base string) *url.URL {
	for _, candidate := range []string{parsed.Link, parsed.FeedLink, base} {
		if u, err := url.Parse(candidate); err == nil && u.IsAbs() {
			return u
		}
	}
	return nil
}

func absolute(link string, base *url.URL) string {
	link = strings.TrimSpace(link)
	if link == "" {
		return ""
	}
	u, err := url.Parse(link)
	if err != nil {
		return ""
	}
	if !u.IsAbs() {
		if base == nil {
			return ""
		}
		u = base.ResolveReference(u)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return ""
	}
	return u.String()
}

func isHTTP(raw string) bool {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return false
	}
	return u.Scheme == "http" || u.Scheme == "https"
}

func domain(link string) string {
	u, err := url.Parse(link)
	if err != nil {
		return ""
	}
	return u.Hostname()
}
