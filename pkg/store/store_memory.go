package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/mx-pai/rss-recommendation-platform/pkg/models"
)

// MemoryStore implements Store in process memory. Transactions are
// serialized and staged, so a failed transaction leaves no trace.
type MemoryStore struct {
	mu            sync.Mutex
	sources       map[int64]*models.Source
	articles      map[string]*models.Article
	nextSourceID  int64
	nextArticleID int64
	now           func() time.Time
}

// NewMemoryStore creates an empty MemoryStore
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sources:  make(map[int64]*models.Source),
		articles: make(map[string]*models.Article),
		now:      time.Now,
	}
}

// GetSource retrieves a source by ID
func (s *MemoryStore) GetSource(_ context.Context, id int64) (*models.Source, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	src, ok := s.sources[id]
	if !ok {
		return nil, ErrSourceNotFound
	}
	c := *src
	return &c, nil
}

// ListActiveSources retrieves every active source ordered by ID
func (s *MemoryStore) ListActiveSources(_ context.Context) ([]*models.Source, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Source
	for _, src := range s.sources {
		if src.IsActive {
			c := *src
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// CreateSource stores a source, assigning an ID when none is set
func (s *MemoryStore) CreateSource(_ context.Context, source *models.Source) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if source.ID == 0 {
		s.nextSourceID++
		source.ID = s.nextSourceID
	} else if source.ID > s.nextSourceID {
		s.nextSourceID = source.ID
	}
	now := s.now()
	source.CreatedAt, source.UpdatedAt = now, now
	c := *source
	s.sources[source.ID] = &c
	return nil
}

// Articles returns a copy of every stored article ordered by ID
func (s *MemoryStore) Articles() []*models.Article {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*models.Article, 0, len(s.articles))
	for _, a := range s.articles {
		out = append(out, copyArticle(a))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ListRecentArticles returns up to limit articles, newest first
func (s *MemoryStore) ListRecentArticles(_ context.Context, limit int) ([]*models.Article, error) {
	articles := s.Articles()
	sort.SliceStable(articles, func(i, j int) bool {
		ti, tj := recency(articles[i]), recency(articles[j])
		if !ti.Equal(tj) {
			return ti.After(tj)
		}
		return articles[i].ID > articles[j].ID
	})
	if limit > 0 && len(articles) > limit {
		articles = articles[:limit]
	}
	return articles, nil
}

func recency(a *models.Article) time.Time {
	if a.PublishedAt != nil {
		return *a.PublishedAt
	}
	return a.CreatedAt
}

// WithTx runs fn against staged state and applies it only when fn succeeds
func (s *MemoryStore) WithTx(_ context.Context, fn func(tx Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &memTx{
		store:    s,
		articles: make(map[string]*models.Article),
		touched:  make(map[int64]time.Time),
		nextID:   s.nextArticleID,
	}
	if err := fn(tx); err != nil {
		return err
	}

	for url, a := range tx.articles {
		s.articles[url] = a
	}
	s.nextArticleID = tx.nextID
	for id, at := range tx.touched {
		if src, ok := s.sources[id]; ok {
			t := at
			src.LastFetch = &t
			src.UpdatedAt = s.now()
		}
	}
	return nil
}

type memTx struct {
	store    *MemoryStore
	articles map[string]*models.Article
	touched  map[int64]time.Time
	nextID   int64
}

func (t *memTx) lookup(url string) (*models.Article, bool) {
	if a, ok := t.articles[url]; ok {
		return a, true
	}
	a, ok := t.store.articles[url]
	return a, ok
}

func (t *memTx) FindArticleByURL(_ context.Context, url string) (*models.Article, error) {
	a, ok := t.lookup(url)
	if !ok {
		return nil, ErrArticleNotFound
	}
	return copyArticle(a), nil
}

func (t *memTx) InsertArticle(_ context.Context, a *models.Article) (bool, error) {
	if _, ok := t.lookup(a.URL); ok {
		return false, nil
	}
	t.nextID++
	a.ID = t.nextID
	now := t.store.now()
	a.CreatedAt, a.UpdatedAt = now, now
	t.articles[a.URL] = copyArticle(a)
	return true, nil
}

func (t *memTx) UpdateArticle(_ context.Context, a *models.Article) error {
	existing, ok := t.lookup(a.URL)
	if !ok || existing.ID != a.ID {
		return ErrArticleNotFound
	}
	updated := copyArticle(existing)
	updated.Content = a.Content
	updated.WordCount = a.WordCount
	updated.Images = append([]string(nil), a.Images...)
	updated.Summary = a.Summary
	updated.Keywords = append([]string(nil), a.Keywords...)
	updated.Category = a.Category
	updated.UpdatedAt = t.store.now()
	t.articles[a.URL] = updated
	return nil
}

func (t *memTx) TouchSource(_ context.Context, sourceID int64, at time.Time) error {
	if _, ok := t.store.sources[sourceID]; !ok {
		return ErrSourceNotFound
	}
	t.touched[sourceID] = at
	return nil
}

func copyArticle(a *models.Article) *models.Article {
	c := *a
	if a.Images != nil {
		c.Images = append([]string(nil), a.Images...)
	}
	if a.Keywords != nil {
		c.Keywords = append([]string(nil), a.Keywords...)
	}
	if a.PublishedAt != nil {
		t := *a.PublishedAt
		c.PublishedAt = &t
	}
	return &c
}
