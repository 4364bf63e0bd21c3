// Package fetch orchestrates fetching a source, extracting its articles and
// persisting them with URL-keyed upserts.
package fetch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-logr/logr"
	"github.com/google/uuid"
	"github.com/mitchellh/mapstructure"

	"github.com/mx-pai/rss-recommendation-platform/internal/metrics"
	"github.com/mx-pai/rss-recommendation-platform/pkg/models"
	"github.com/mx-pai/rss-recommendation-platform/pkg/store"
)

// FeedCrawler lists the entries of a syndication feed
type FeedCrawler interface {
	Crawl(ctx context.Context, feedURL string) ([]*models.CandidateArticle, error)
}

// PageCrawler renders and extracts a single article page
type PageCrawler interface {
	Crawl(ctx context.Context, pageURL string, fc models.FetchConfig) (*models.CandidateArticle, error)
}

// Service fetches sources and saves what they yield
type Service struct {
	config  *Config
	store   store.Store
	feeds   FeedCrawler
	pages   PageCrawler
	metrics *metrics.Metrics
	logger  logr.Logger
	now     func() time.Time
}

// New creates a fetch service
func New(config *Config, st store.Store, feeds FeedCrawler, pages PageCrawler, m *metrics.Metrics, logger logr.Logger) *Service {
	if config == nil {
		config = DefaultConfig()
	}
	return &Service{
		config:  config,
		store:   st,
		feeds:   feeds,
		pages:   pages,
		metrics: m,
		logger:  logger,
		now:     time.Now,
	}
}

// FetchSource fetches one source by id. It never panics and never returns an
// error: every failure is reported in the result.
func (s *Service) FetchSource(ctx context.Context, sourceID int64) (result models.FetchResult) {
	start := time.Now()
	sourceType := "unknown"
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error(fmt.Errorf("panic: %v", r), "Source fetch panicked", "sourceID", sourceID)
			result = models.Failure(models.ErrorKindExtractionFailure, fmt.Sprintf("unexpected failure: %v", r))
		}
		s.metrics.ObserveSourceFetch(sourceType, result.Success, time.Since(start))
	}()

	src, err := s.store.GetSource(ctx, sourceID)
	if errors.Is(err, store.ErrSourceNotFound) {
		return models.Failure(models.ErrorKindNotFound, "source not found")
	}
	if err != nil {
		s.logger.Error(err, "Failed to load source", "sourceID", sourceID)
		return models.Failure(models.ErrorKindPersistenceFailure, fmt.Sprintf("failed to load source: %v", err))
	}
	if !src.IsActive {
		return models.Failure(models.ErrorKindDisabled, "source is disabled")
	}

	fc := s.fetchConfig(src)
	log := s.logger.WithValues("sourceID", src.ID, "source", src.Name)

	switch src.Type.Normalize() {
	case models.SourceTypeFeed:
		sourceType = string(models.SourceTypeFeed)
		return s.fetchFeed(ctx, log, src, fc)
	case models.SourceTypePage:
		sourceType = string(models.SourceTypePage)
		return s.fetchPage(ctx, log, src, fc)
	default:
		sourceType = string(src.Type)
		return models.Failure(models.ErrorKindUnsupportedType, fmt.Sprintf("unsupported source type: %s", src.Type))
	}
}

func (s *Service) fetchFeed(ctx context.Context, log logr.Logger, src *models.Source, fc models.FetchConfig) models.FetchResult {
	feedURL := src.FeedURL
	if feedURL == "" {
		feedURL = src.URL
	}
	if feedURL == "" {
		return models.Failure(models.ErrorKindExtractionFailure, "feed url missing")
	}

	entries, err := s.feeds.Crawl(ctx, feedURL)
	if err != nil {
		log.Error(err, "Feed fetch failed", "url", feedURL)
		return models.Failure(models.ErrorKindExtractionFailure, fmt.Sprintf("feed fetch failed: %v", err))
	}
	if len(entries) == 0 {
		return models.Failure(models.ErrorKindExtractionFailure, "feed fetch failed or empty")
	}

	saved, failed := 0, 0
	for _, entry := range entries {
		if ctx.Err() != nil {
			log.Info("Feed fetch interrupted", "processed", saved+failed, "total", len(entries))
			break
		}
		candidate := s.fullText(ctx, log, entry, fc)
		outcome, err := s.upsert(ctx, src, candidate)
		if err != nil {
			failed++
			log.Error(err, "Failed to save article", "url", candidate.URL)
			continue
		}
		if outcome != metrics.OutcomeUnchanged {
			saved++
		}
	}

	log.Info("Feed fetched", "found", len(entries), "saved", saved, "failed", failed)
	msg := fmt.Sprintf("Fetched %d entries, saved %d", len(entries), saved)
	if failed > 0 {
		msg += fmt.Sprintf(", %d failed to save", failed)
	}
	return models.FetchResult{
		Success:    true,
		Message:    msg,
		SavedCount: saved,
		TotalFound: len(entries),
	}
}

// fullText re-crawls the entry's permalink and merges the page into it. The
// feed entry is returned unchanged when the crawl fails or yields no body.
func (s *Service) fullText(ctx context.Context, log logr.Logger, entry *models.CandidateArticle, fc models.FetchConfig) *models.CandidateArticle {
	if !s.config.FullText || fc.SkipFullText || s.pages == nil {
		return entry
	}
	full, err := s.pages.Crawl(ctx, entry.URL, fc)
	if err != nil {
		log.Info("Full text unavailable, keeping feed entry", "url", entry.URL, "error", err.Error())
		return entry
	}
	if full == nil || strings.TrimSpace(full.Body) == "" {
		log.Info("Full text empty, keeping feed entry", "url", entry.URL)
		return entry
	}
	return MergeFeedAndPage(entry, full)
}

func (s *Service) fetchPage(ctx context.Context, log logr.Logger, src *models.Source, fc models.FetchConfig) models.FetchResult {
	if s.pages == nil {
		return models.Failure(models.ErrorKindExtractionFailure, "page crawler not configured")
	}
	candidate, err := s.pages.Crawl(ctx, src.URL, fc)
	if err != nil {
		log.Error(err, "Page crawl failed", "url", src.URL)
		return models.Failure(models.ErrorKindExtractionFailure, fmt.Sprintf("webpage crawl failed: %v", err))
	}
	if candidate == nil {
		return models.Failure(models.ErrorKindExtractionFailure, "webpage crawl returned nothing")
	}
	if candidate.URL == "" {
		candidate.URL = src.URL
	}

	outcome, err := s.upsert(ctx, src, candidate)
	if err != nil {
		log.Error(err, "Failed to save article", "url", candidate.URL)
		result := models.Failure(models.ErrorKindPersistenceFailure, fmt.Sprintf("failed to save article: %v", err))
		result.TotalFound = 1
		return result
	}

	result := models.FetchResult{
		Success:    true,
		Message:    "Article saved",
		SavedCount: 1,
		TotalFound: 1,
		Title:      candidate.Title,
		URL:        candidate.URL,
	}
	if outcome == metrics.OutcomeUnchanged {
		result.Message = "Article already up to date"
		result.SavedCount = 0
	}
	log.Info("Page fetched", "url", candidate.URL, "outcome", outcome)
	return result
}

// upsert inserts the candidate or merges it into the stored article with the
// same URL, all inside one transaction.
func (s *Service) upsert(ctx context.Context, src *models.Source, c *models.CandidateArticle) (string, error) {
	if c.URL == "" {
		s.metrics.ObserveUpsert(metrics.OutcomeFailed)
		return metrics.OutcomeFailed, errors.New("article url missing")
	}

	outcome := metrics.OutcomeUnchanged
	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		existing, err := tx.FindArticleByURL(ctx, c.URL)
		switch {
		case errors.Is(err, store.ErrArticleNotFound):
			inserted, err := tx.InsertArticle(ctx, NewArticle(src, c))
			if err != nil {
				return err
			}
			if inserted {
				outcome = metrics.OutcomeInserted
				return tx.TouchSource(ctx, src.ID, s.now())
			}
			// Inserted concurrently by someone else; merge into theirs.
			existing, err = tx.FindArticleByURL(ctx, c.URL)
			if err != nil {
				return err
			}
		case err != nil:
			return err
		}

		if !Merge(existing, c, s.config) {
			return nil
		}
		if err := tx.UpdateArticle(ctx, existing); err != nil {
			return err
		}
		outcome = metrics.OutcomeUpdated
		return tx.TouchSource(ctx, src.ID, s.now())
	})
	if err != nil {
		s.metrics.ObserveUpsert(metrics.OutcomeFailed)
		return metrics.OutcomeFailed, err
	}
	if outcome == metrics.OutcomeUnchanged {
		s.logger.V(1).Info("No update needed", "url", c.URL)
	}
	s.metrics.ObserveUpsert(outcome)
	return outcome, nil
}

// FetchAllActiveSources fetches every active source in turn. A failing source
// is recorded and the batch moves on.
func (s *Service) FetchAllActiveSources(ctx context.Context) models.BatchResult {
	runID := uuid.NewString()
	log := s.logger.WithValues("runID", runID)

	sources, err := s.store.ListActiveSources(ctx)
	if err != nil {
		log.Error(err, "Failed to list active sources")
		return models.BatchResult{
			Success: false,
			Message: "failed to load active sources",
			Error:   err.Error(),
			RunID:   runID,
		}
	}

	batch := models.BatchResult{Success: true, RunID: runID, Results: make([]models.SourceResult, 0, len(sources))}
	log.Info("Fetching active sources", "count", len(sources))

	interrupted := false
	for i, src := range sources {
		if i > 0 && !s.pause(ctx) {
			interrupted = true
			break
		}
		res := s.FetchSource(ctx, src.ID)
		batch.Results = append(batch.Results, models.SourceResult{
			SourceID:   src.ID,
			SourceName: src.Name,
			Result:     res,
		})
		if res.Success {
			batch.Succeeded++
		} else {
			batch.Failed++
			log.Info("Source fetch failed", "sourceID", src.ID, "kind", res.Kind, "error", res.Error)
		}
	}

	batch.Message = fmt.Sprintf("Fetched %d sources: %d succeeded, %d failed", len(batch.Results), batch.Succeeded, batch.Failed)
	if interrupted {
		batch.Message += fmt.Sprintf(" (interrupted, %d skipped)", len(sources)-len(batch.Results))
	}
	log.Info("Batch finished", "succeeded", batch.Succeeded, "failed", batch.Failed, "interrupted", interrupted)
	return batch
}

// pause waits out the inter-source delay and reports false if ctx ended first.
func (s *Service) pause(ctx context.Context) bool {
	if s.config.SourceDelay <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(s.config.SourceDelay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}

// fetchConfig decodes the source's per-source extraction settings. An
// unreadable config is logged and ignored.
func (s *Service) fetchConfig(src *models.Source) models.FetchConfig {
	var fc models.FetchConfig
	if strings.TrimSpace(src.FetchConfig) == "" {
		return fc
	}
	var raw map[string]interface{}
	if err := json.Unmarshal([]byte(src.FetchConfig), &raw); err != nil {
		s.logger.Error(err, "Ignoring invalid fetch config", "sourceID", src.ID)
		return fc
	}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &fc,
		WeaklyTypedInput: true,
	})
	if err != nil {
		s.logger.Error(err, "Failed to build fetch config decoder")
		return fc
	}
	if err := decoder.Decode(raw); err != nil {
		s.logger.Error(err, "Ignoring invalid fetch config", "sourceID", src.ID)
		return models.FetchConfig{}
	}
	return fc
}
