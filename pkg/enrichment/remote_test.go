package enrichment

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/go-logr/logr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeGenerator answers by prompt kind
type fakeGenerator struct {
	summary  string
	classify string
	keywords string
	err      error

	mu    sync.Mutex
	calls int
}

func (g *fakeGenerator) Generate(_ context.Context, prompt string) (string, error) {
	g.mu.Lock()
	g.calls++
	g.mu.Unlock()
	if g.err != nil {
		return "", g.err
	}
	switch {
	case strings.HasPrefix(prompt, "Write a concise summary"):
		return g.summary, nil
	case strings.HasPrefix(prompt, "Classify"):
		return g.classify, nil
	case strings.HasPrefix(prompt, "Extract"):
		return g.keywords, nil
	}
	return "", nil
}

type countingObserver struct {
	counts map[string]int
}

func (o *countingObserver) ObserveFallback(capability string) {
	if o.counts == nil {
		o.counts = make(map[string]int)
	}
	o.counts[capability]++
}

func TestParseClassification(t *testing.T) {
	got, err := ParseClassification("```json\n{\"科技\": 0.9, \"体育\": 0.1}\n```")
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{LabelTechnology: 0.9, LabelSports: 0.1}, got)

	got, err = ParseClassification(`Sure: {"finance": 1.4, "unknown": 0.3}`)
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{LabelFinance: 1.0}, got)

	got, err = ParseClassification("This looks like technology and finance news")
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{LabelTechnology: 0.8, LabelFinance: 0.7}, got)

	got, err = ParseClassification("这是一篇娱乐新闻")
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{LabelEntertainment: 0.5}, got)

	got, err = ParseClassification("I cannot tell")
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{LabelOther: 1.0}, got)

	_, err = ParseClassification(`{"foo": 1}`)
	assert.ErrorIs(t, err, ErrUnparseable)

	_, err = ParseClassification("  ")
	assert.ErrorIs(t, err, ErrEmptyResponse)
}

func TestParseKeywords(t *testing.T) {
	got := ParseKeywords("Go, 并发，请注意, Here are keywords, averyveryverylongkeyword, Go、channels", 10)
	assert.Equal(t, []string{"Go", "并发", "channels"}, got)

	assert.Equal(t, []string{"a1", "b2"}, ParseKeywords("a1, b2, c3", 2))
}

func TestRemoteWithoutGenerator(t *testing.T) {
	ctx := context.Background()
	_, err := RemoteSummarizer{}.Summarize(ctx, "text", 10)
	assert.ErrorIs(t, err, ErrNoGenerator)
	_, err = RemoteClassifier{}.Classify(ctx, "t", "text")
	assert.ErrorIs(t, err, ErrNoGenerator)
	_, err = RemoteKeywordExtractor{}.Keywords(ctx, "text", 10)
	assert.ErrorIs(t, err, ErrNoGenerator)
}

func TestServiceUsesRemote(t *testing.T) {
	gen := &fakeGenerator{
		summary:  "A remote summary.",
		classify: `{"finance": 0.9}`,
		keywords: "market, rates",
	}
	obs := &countingObserver{}
	svc := New(DefaultConfig(), gen, obs, logr.Discard())

	res := svc.Enrich(context.Background(), "Rates", "<p>The market moved on rates.</p>")
	assert.Equal(t, "A remote summary.", res.Summary)
	assert.Equal(t, map[string]float64{LabelFinance: 0.9}, res.Categories)
	assert.Equal(t, []string{"market", "rates"}, res.Keywords)
	assert.Equal(t, 3, gen.calls)
	assert.Empty(t, obs.counts)
}

func TestServiceFallsBackOnRemoteFailure(t *testing.T) {
	gen := &fakeGenerator{err: errors.New("provider down")}
	obs := &countingObserver{}
	svc := New(DefaultConfig(), gen, obs, logr.Discard())

	res := svc.Enrich(context.Background(), "人工智能", "<p>软件 软件 编程</p>")
	assert.Equal(t, "软件 软件 编程", res.Summary)
	assert.Equal(t, map[string]float64{LabelTechnology: 1.0}, res.Categories)
	assert.Equal(t, []string{"软件", "编程"}, res.Keywords)
	assert.Equal(t, map[string]int{
		CapabilitySummary:        1,
		CapabilityClassification: 1,
		CapabilityKeywords:       1,
	}, obs.counts)
}

func TestServiceFallsBackOnEmptyAnswers(t *testing.T) {
	gen := &fakeGenerator{summary: "", classify: `{"foo": 1}`, keywords: "请提供文章"}
	svc := New(DefaultConfig(), gen, nil, logr.Discard())

	res := svc.Enrich(context.Background(), "", "<p>plain words here</p>")
	assert.Equal(t, "plain words here", res.Summary)
	assert.Equal(t, map[string]float64{LabelOther: 1.0}, res.Categories)
	assert.Equal(t, []string{"plain", "words", "here"}, res.Keywords)
}

func TestServiceLocalOnly(t *testing.T) {
	gen := &fakeGenerator{summary: "remote"}
	cfg := DefaultConfig()
	cfg.UseRemote = false
	svc := New(cfg, gen, nil, logr.Discard())

	assert.Equal(t, "local text", svc.Summarize(context.Background(), "local text"))
	assert.Zero(t, gen.calls)

	svc = New(DefaultConfig(), nil, nil, logr.Discard())
	assert.Equal(t, "local text", svc.Summarize(context.Background(), "local text"))
}
