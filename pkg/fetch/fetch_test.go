package fetch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-logr/logr"
	"github.com/gorilla/feeds"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mx-pai/rss-recommendation-platform/pkg/feed"
	"github.com/mx-pai/rss-recommendation-platform/pkg/models"
	"github.com/mx-pai/rss-recommendation-platform/pkg/store"
)

type fakeFeeds struct {
	entries map[string][]*models.CandidateArticle
	err     error
	panic   bool
}

func (f *fakeFeeds) Crawl(_ context.Context, feedURL string) ([]*models.CandidateArticle, error) {
	if f.panic {
		panic("parser exploded")
	}
	if f.err != nil {
		return nil, f.err
	}
	var out []*models.CandidateArticle
	for _, e := range f.entries[feedURL] {
		c := *e
		out = append(out, &c)
	}
	return out, nil
}

type fakePages struct {
	mu      sync.Mutex
	pages   map[string]*models.CandidateArticle
	err     error
	calls   []string
	configs []models.FetchConfig
}

func (f *fakePages) Crawl(_ context.Context, pageURL string, fc models.FetchConfig) (*models.CandidateArticle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, pageURL)
	f.configs = append(f.configs, fc)
	if f.err != nil {
		return nil, f.err
	}
	p, ok := f.pages[pageURL]
	if !ok {
		return nil, errors.New("page not found")
	}
	c := *p
	return &c, nil
}

// failingStore fails every transaction at TouchSource, after the article write.
type failingStore struct {
	*store.MemoryStore
	err error
}

func (f *failingStore) WithTx(ctx context.Context, fn func(tx store.Tx) error) error {
	return f.MemoryStore.WithTx(ctx, func(tx store.Tx) error {
		return fn(&failingTx{Tx: tx, err: f.err})
	})
}

type failingTx struct {
	store.Tx
	err error
}

func (f *failingTx) TouchSource(context.Context, int64, time.Time) error {
	return f.err
}

func newTestService(st store.Store, feeds FeedCrawler, pages PageCrawler) *Service {
	config := DefaultConfig()
	config.SourceDelay = 0
	return New(config, st, feeds, pages, nil, logr.Discard())
}

func addSource(t *testing.T, st *store.MemoryStore, src *models.Source) *models.Source {
	t.Helper()
	require.NoError(t, st.CreateSource(context.Background(), src))
	return src
}

func TestFetchSourceFailures(t *testing.T) {
	st := store.NewMemoryStore()
	disabled := addSource(t, st, &models.Source{Name: "off", Type: models.SourceTypeFeed, URL: "https://example.test/feed", IsActive: false})
	api := addSource(t, st, &models.Source{Name: "api", Type: models.SourceTypeAPI, URL: "https://example.test/api", IsActive: true})
	svc := newTestService(st, &fakeFeeds{}, &fakePages{})
	ctx := context.Background()

	res := svc.FetchSource(ctx, 99)
	assert.False(t, res.Success)
	assert.Equal(t, models.ErrorKindNotFound, res.Kind)
	assert.Equal(t, "source not found", res.Error)

	res = svc.FetchSource(ctx, disabled.ID)
	assert.False(t, res.Success)
	assert.Equal(t, models.ErrorKindDisabled, res.Kind)

	res = svc.FetchSource(ctx, api.ID)
	assert.False(t, res.Success)
	assert.Equal(t, models.ErrorKindUnsupportedType, res.Kind)
	assert.Contains(t, res.Error, "api")

	assert.Empty(t, st.Articles())
}

func TestFetchFeedEmpty(t *testing.T) {
	st := store.NewMemoryStore()
	src := addSource(t, st, &models.Source{Name: "empty", Type: models.SourceTypeFeed, URL: "https://example.test/feed", IsActive: true})
	svc := newTestService(st, &fakeFeeds{}, nil)

	res := svc.FetchSource(context.Background(), src.ID)
	assert.False(t, res.Success)
	assert.Equal(t, "feed fetch failed or empty", res.Error)
	assert.Equal(t, models.ErrorKindExtractionFailure, res.Kind)
}

func TestFetchFeedMissingURL(t *testing.T) {
	st := store.NewMemoryStore()
	src := addSource(t, st, &models.Source{Name: "nowhere", Type: "rss", IsActive: true})
	svc := newTestService(st, &fakeFeeds{}, nil)

	res := svc.FetchSource(context.Background(), src.ID)
	assert.False(t, res.Success)
	assert.Equal(t, "feed url missing", res.Error)
}

func TestFetchSourceRecoversPanics(t *testing.T) {
	st := store.NewMemoryStore()
	src := addSource(t, st, &models.Source{Name: "boom", Type: models.SourceTypeFeed, URL: "https://example.test/feed", IsActive: true})
	svc := newTestService(st, &fakeFeeds{panic: true}, nil)

	res := svc.FetchSource(context.Background(), src.ID)
	assert.False(t, res.Success)
	assert.Equal(t, models.ErrorKindExtractionFailure, res.Kind)
	assert.Contains(t, res.Error, "parser exploded")
}

func TestFetchFeedFallsBackToFeedEntry(t *testing.T) {
	rss, err := (&feeds.Feed{
		Title:   "Example",
		Link:    &feeds.Link{Href: "https://example.test/"},
		Created: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
		Items: []*feeds.Item{{
			Title:       "T",
			Link:        &feeds.Link{Href: "https://example.test/a"},
			Description: "<p>Hi</p>",
			Created:     time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
		}},
	}).ToRss()
	require.NoError(t, err)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		_, _ = w.Write([]byte(rss))
	}))
	defer srv.Close()

	st := store.NewMemoryStore()
	src := addSource(t, st, &models.Source{Name: "feed", Type: "rss", URL: "https://example.test/", FeedURL: srv.URL, IsActive: true})
	pages := &fakePages{err: errors.New("navigation timeout")}
	svc := newTestService(st, feed.New(nil, logr.Discard()), pages)

	res := svc.FetchSource(context.Background(), src.ID)
	require.True(t, res.Success, res.Error)
	assert.Equal(t, 1, res.TotalFound)
	assert.Equal(t, 1, res.SavedCount)
	assert.Equal(t, []string{"https://example.test/a"}, pages.calls)

	articles := st.Articles()
	require.Len(t, articles, 1)
	a := articles[0]
	assert.Equal(t, "T", a.Title)
	assert.Equal(t, "<p>Hi</p>", a.Content)
	assert.Equal(t, 2, a.WordCount)
	assert.Empty(t, a.Summary)
	assert.Empty(t, a.Category)
	assert.Equal(t, models.SourceTypeFeed, a.SourceType)

	stored, err := st.GetSource(context.Background(), src.ID)
	require.NoError(t, err)
	assert.NotNil(t, stored.LastFetch)
}

func TestFetchFeedMergesFullText(t *testing.T) {
	st := store.NewMemoryStore()
	src := addSource(t, st, &models.Source{Name: "feed", Type: models.SourceTypeFeed, URL: "https://example.test/feed", IsActive: true})
	feedsFake := &fakeFeeds{entries: map[string][]*models.CandidateArticle{
		"https://example.test/feed": {{Title: "Feed title", Body: "<p>teaser</p>", URL: "https://example.test/a"}},
	}}
	pages := &fakePages{pages: map[string]*models.CandidateArticle{
		"https://example.test/a": {
			Title:      "Page title",
			Body:       "The whole article text",
			URL:        "https://example.test/a",
			Author:     "Jane Doe",
			Categories: map[string]float64{"technology": 0.8, "other": 0.2},
			Keywords:   []string{"article", "text"},
		},
	}}
	svc := newTestService(st, feedsFake, pages)

	res := svc.FetchSource(context.Background(), src.ID)
	require.True(t, res.Success)
	assert.Equal(t, 1, res.SavedCount)

	articles := st.Articles()
	require.Len(t, articles, 1)
	a := articles[0]
	assert.Equal(t, "Feed title", a.Title)
	assert.Equal(t, "The whole article text", a.Content)
	assert.Equal(t, "Jane Doe", a.Author)
	assert.Equal(t, "technology", a.Category)
	assert.Equal(t, []string{"article", "text"}, a.Keywords)
}

func TestFetchFeedIsIdempotent(t *testing.T) {
	st := store.NewMemoryStore()
	src := addSource(t, st, &models.Source{Name: "feed", Type: models.SourceTypeFeed, URL: "https://example.test/feed", IsActive: true})
	feedsFake := &fakeFeeds{entries: map[string][]*models.CandidateArticle{
		"https://example.test/feed": {
			{Title: "One", Body: "<p>first</p>", URL: "https://example.test/1"},
			{Title: "Two", Body: "<p>second</p>", URL: "https://example.test/2"},
		},
	}}
	svc := newTestService(st, feedsFake, &fakePages{err: errors.New("offline")})
	ctx := context.Background()

	first := svc.FetchSource(ctx, src.ID)
	require.True(t, first.Success)
	assert.Equal(t, 2, first.SavedCount)
	before := st.Articles()

	second := svc.FetchSource(ctx, src.ID)
	require.True(t, second.Success)
	assert.Equal(t, 0, second.SavedCount)
	assert.Equal(t, 2, second.TotalFound)
	assert.Equal(t, before, st.Articles())
}

func TestFetchFeedBackfillsImages(t *testing.T) {
	st := store.NewMemoryStore()
	src := addSource(t, st, &models.Source{Name: "feed", Type: models.SourceTypeFeed, URL: "https://example.test/feed", IsActive: true})
	entry := &models.CandidateArticle{Title: "One", Body: "<p>first</p>", URL: "https://example.test/1"}
	feedsFake := &fakeFeeds{entries: map[string][]*models.CandidateArticle{"https://example.test/feed": {entry}}}
	svc := newTestService(st, feedsFake, &fakePages{err: errors.New("offline")})
	ctx := context.Background()

	require.True(t, svc.FetchSource(ctx, src.ID).Success)
	assert.Empty(t, st.Articles()[0].Images)

	entry.Images = []string{"https://example.test/1.png"}
	res := svc.FetchSource(ctx, src.ID)
	assert.Equal(t, 1, res.SavedCount)
	assert.Equal(t, []string{"https://example.test/1.png"}, st.Articles()[0].Images)

	entry.Images = []string{"https://example.test/2.png"}
	res = svc.FetchSource(ctx, src.ID)
	assert.Equal(t, 0, res.SavedCount)
	assert.Equal(t, []string{"https://example.test/1.png"}, st.Articles()[0].Images)
}

func TestFetchDeduplicatesAcrossSources(t *testing.T) {
	st := store.NewMemoryStore()
	a := addSource(t, st, &models.Source{Name: "a", Type: models.SourceTypeFeed, URL: "https://a.test/feed", IsActive: true})
	b := addSource(t, st, &models.Source{Name: "b", Type: models.SourceTypeFeed, URL: "https://b.test/feed", IsActive: true})
	shared := &models.CandidateArticle{Title: "Shared", Body: "<p>same story</p>", URL: "https://news.test/story"}
	feedsFake := &fakeFeeds{entries: map[string][]*models.CandidateArticle{
		"https://a.test/feed": {shared},
		"https://b.test/feed": {shared},
	}}
	svc := newTestService(st, feedsFake, &fakePages{err: errors.New("offline")})
	ctx := context.Background()

	assert.Equal(t, 1, svc.FetchSource(ctx, a.ID).SavedCount)
	assert.Equal(t, 0, svc.FetchSource(ctx, b.ID).SavedCount)

	articles := st.Articles()
	require.Len(t, articles, 1)
	assert.Equal(t, a.ID, articles[0].SourceID)
}

func TestFetchFeedRespectsSkipFullText(t *testing.T) {
	st := store.NewMemoryStore()
	src := addSource(t, st, &models.Source{
		Name:        "feed",
		Type:        models.SourceTypeFeed,
		URL:         "https://example.test/feed",
		IsActive:    true,
		FetchConfig: `{"skip_full_text": true}`,
	})
	feedsFake := &fakeFeeds{entries: map[string][]*models.CandidateArticle{
		"https://example.test/feed": {{Title: "One", Body: "<p>first</p>", URL: "https://example.test/1"}},
	}}
	pages := &fakePages{}
	svc := newTestService(st, feedsFake, pages)

	require.True(t, svc.FetchSource(context.Background(), src.ID).Success)
	assert.Empty(t, pages.calls)
	assert.Len(t, st.Articles(), 1)
}

func TestFetchPage(t *testing.T) {
	st := store.NewMemoryStore()
	src := addSource(t, st, &models.Source{
		Name:        "page",
		Type:        "manual",
		URL:         "https://example.test/post",
		IsActive:    true,
		FetchConfig: `{"title_selectors": ["h1.headline"], "wait_timeout_seconds": "5"}`,
	})
	pages := &fakePages{pages: map[string]*models.CandidateArticle{
		"https://example.test/post": {
			Title:      "A post",
			Body:       "Body text of the post",
			URL:        "https://example.test/post",
			Summary:    "Body text",
			Categories: map[string]float64{"education": 1},
		},
	}}
	svc := newTestService(st, &fakeFeeds{}, pages)
	ctx := context.Background()

	res := svc.FetchSource(ctx, src.ID)
	require.True(t, res.Success, res.Error)
	assert.Equal(t, "A post", res.Title)
	assert.Equal(t, "https://example.test/post", res.URL)
	assert.Equal(t, 1, res.SavedCount)
	assert.Equal(t, 1, res.TotalFound)

	require.Len(t, pages.configs, 1)
	assert.Equal(t, []string{"h1.headline"}, pages.configs[0].TitleSelectors)
	assert.Equal(t, 5, pages.configs[0].WaitTimeoutSeconds)

	articles := st.Articles()
	require.Len(t, articles, 1)
	assert.Equal(t, models.SourceTypePage, articles[0].SourceType)
	assert.Equal(t, "education", articles[0].Category)

	res = svc.FetchSource(ctx, src.ID)
	require.True(t, res.Success)
	assert.Equal(t, 0, res.SavedCount)
}

func TestFetchPageCrawlFailure(t *testing.T) {
	st := store.NewMemoryStore()
	src := addSource(t, st, &models.Source{Name: "page", Type: models.SourceTypePage, URL: "https://example.test/post", IsActive: true})
	svc := newTestService(st, &fakeFeeds{}, &fakePages{err: errors.New("chrome not found")})

	res := svc.FetchSource(context.Background(), src.ID)
	assert.False(t, res.Success)
	assert.Equal(t, models.ErrorKindExtractionFailure, res.Kind)
	assert.Contains(t, res.Error, "chrome not found")
}

func TestPersistenceFailureRollsBack(t *testing.T) {
	mem := store.NewMemoryStore()
	feedSrc := addSource(t, mem, &models.Source{Name: "feed", Type: models.SourceTypeFeed, URL: "https://example.test/feed", IsActive: true})
	pageSrc := addSource(t, mem, &models.Source{Name: "page", Type: models.SourceTypePage, URL: "https://example.test/post", IsActive: true})
	st := &failingStore{MemoryStore: mem, err: errors.New("disk full")}
	feedsFake := &fakeFeeds{entries: map[string][]*models.CandidateArticle{
		"https://example.test/feed": {{Title: "One", Body: "<p>first</p>", URL: "https://example.test/1"}},
	}}
	pages := &fakePages{pages: map[string]*models.CandidateArticle{
		"https://example.test/post": {Title: "Post", Body: "text", URL: "https://example.test/post"},
	}}
	svc := newTestService(st, feedsFake, pages)
	ctx := context.Background()

	res := svc.FetchSource(ctx, feedSrc.ID)
	assert.True(t, res.Success)
	assert.Equal(t, 0, res.SavedCount)
	assert.Contains(t, res.Message, "1 failed to save")

	res = svc.FetchSource(ctx, pageSrc.ID)
	assert.False(t, res.Success)
	assert.Equal(t, models.ErrorKindPersistenceFailure, res.Kind)
	assert.Contains(t, res.Error, "disk full")

	assert.Empty(t, mem.Articles())
}

func TestFetchAllActiveSources(t *testing.T) {
	st := store.NewMemoryStore()
	addSource(t, st, &models.Source{Name: "feed", Type: models.SourceTypeFeed, URL: "https://example.test/feed", IsActive: true})
	addSource(t, st, &models.Source{Name: "off", Type: models.SourceTypeFeed, URL: "https://example.test/off", IsActive: false})
	addSource(t, st, &models.Source{Name: "api", Type: models.SourceTypeAPI, URL: "https://example.test/api", IsActive: true})
	addSource(t, st, &models.Source{Name: "page", Type: models.SourceTypePage, URL: "https://example.test/post", IsActive: true})
	feedsFake := &fakeFeeds{entries: map[string][]*models.CandidateArticle{
		"https://example.test/feed": {{Title: "One", Body: "<p>first</p>", URL: "https://example.test/1"}},
	}}
	pages := &fakePages{pages: map[string]*models.CandidateArticle{
		"https://example.test/post": {Title: "Post", Body: "text", URL: "https://example.test/post"},
	}}
	svc := newTestService(st, feedsFake, pages)

	batch := svc.FetchAllActiveSources(context.Background())
	assert.True(t, batch.Success)
	assert.NotEmpty(t, batch.RunID)
	assert.Equal(t, 2, batch.Succeeded)
	assert.Equal(t, 1, batch.Failed)
	assert.Equal(t, "Fetched 3 sources: 2 succeeded, 1 failed", batch.Message)

	require.Len(t, batch.Results, 3)
	assert.Equal(t, "feed", batch.Results[0].SourceName)
	assert.Equal(t, "api", batch.Results[1].SourceName)
	assert.Equal(t, models.ErrorKindUnsupportedType, batch.Results[1].Result.Kind)
	assert.Equal(t, "page", batch.Results[2].SourceName)
	assert.Len(t, st.Articles(), 2)
}

func TestFetchAllActiveSourcesStopsOnCancel(t *testing.T) {
	st := store.NewMemoryStore()
	addSource(t, st, &models.Source{Name: "a", Type: models.SourceTypeAPI, IsActive: true})
	addSource(t, st, &models.Source{Name: "b", Type: models.SourceTypeAPI, IsActive: true})
	config := DefaultConfig()
	config.SourceDelay = time.Hour
	svc := New(config, st, &fakeFeeds{}, nil, nil, logr.Discard())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	batch := svc.FetchAllActiveSources(ctx)
	assert.Len(t, batch.Results, 1)
	assert.True(t, strings.Contains(batch.Message, "interrupted"))
}
