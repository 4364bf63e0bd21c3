// Package page renders web pages in a headless browser and extracts an
// article from them with ordered fallback heuristics.
package page

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-logr/logr"

	"github.com/mx-pai/rss-recommendation-platform/pkg/enrichment"
	"github.com/mx-pai/rss-recommendation-platform/pkg/models"
)

var (
	ErrInvalidURL = errors.New("invalid page url")
	ErrRender     = errors.New("page render failed")
)

// Enricher attaches summary, categories and keywords to an extracted body
type Enricher interface {
	Enrich(ctx context.Context, title, body string) enrichment.Result
}

// Extractor turns a URL into a candidate article
type Extractor struct {
	config   *Config
	renderer Renderer
	enricher Enricher
	logger   logr.Logger
}

// New creates a page extractor. enricher may be nil to skip enrichment.
func New(config *Config, renderer Renderer, enricher Enricher, logger logr.Logger) *Extractor {
	if config == nil {
		config = DefaultConfig()
	}
	return &Extractor{
		config:   config,
		renderer: renderer,
		enricher: enricher,
		logger:   logger,
	}
}

// Crawl renders pageURL and extracts an article from it. Any failure of the
// browser session yields an error and no partial result.
func (e *Extractor) Crawl(ctx context.Context, pageURL string, fc models.FetchConfig) (*models.CandidateArticle, error) {
	u, err := url.Parse(strings.TrimSpace(pageURL))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, fmt.Errorf("%w: %q", ErrInvalidURL, pageURL)
	}

	opts := RenderOptions{
		WaitSelectors: []string{
			strings.Join(selectors(fc.TitleSelectors, []string{TitleWaitSelector}), ", "),
			strings.Join(selectors(fc.ContentSelectors, []string{ContentWaitSelector}), ", "),
		},
	}
	if fc.WaitTimeoutSeconds > 0 {
		opts.WaitTimeout = time.Duration(fc.WaitTimeoutSeconds) * time.Second
	}

	e.logger.Info("Rendering page", "url", u.String())
	html, err := e.renderer.Render(ctx, u.String(), opts)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRender, err)
	}

	candidate, err := e.Extract(u.String(), html, fc)
	if err != nil {
		return nil, err
	}

	if candidate.Body != "" && e.enricher != nil {
		res := e.enricher.Enrich(ctx, candidate.Title, candidate.Body)
		candidate.Summary = res.Summary
		candidate.Categories = res.Categories
		candidate.Keywords = res.Keywords
	}
	return candidate, nil
}

// Extract runs every heuristic chain over already rendered HTML.
func (e *Extractor) Extract(pageURL, html string, fc models.FetchConfig) (*models.CandidateArticle, error) {
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidURL, pageURL)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse rendered html: %w", err)
	}

	candidate := &models.CandidateArticle{
		URL:         pageURL,
		Title:       Title(doc, fc.TitleSelectors),
		Author:      Author(doc),
		PublishedAt: PublishedAt(doc),
		Images:      Images(doc, base, e.config.MinImageSize, e.config.MaxImages),
		Domain:      base.Hostname(),
	}
	candidate.Body = Body(doc, fc.ContentSelectors, e.config.MinBodyLength, func(sel string, length int) {
		e.logger.V(1).Info("Content container below minimum length", "url", pageURL, "selector", sel, "length", length)
	})
	if candidate.Body == "" {
		e.logger.Info("No content container found", "url", pageURL)
	}
	return candidate, nil
}
