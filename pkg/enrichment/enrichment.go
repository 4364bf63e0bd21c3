// Package enrichment derives a summary, topic classification and keywords
// from article text. Each capability has a remote implementation backed by a
// text-generation provider and a deterministic local implementation; the
// Service composes them so callers always receive a value.
package enrichment

import (
	"context"
	"errors"
)

var (
	ErrNoGenerator     = errors.New("no text generator configured")
	ErrEmptyResponse   = errors.New("empty response")
	ErrUnparseable     = errors.New("unparseable response")
	ErrNothingToEnrich = errors.New("no content to enrich")
)

// Capability names, used for logging and metrics
const (
	CapabilitySummary        = "summary"
	CapabilityClassification = "classification"
	CapabilityKeywords       = "keywords"
)

// Generator produces text for a prompt
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Summarizer condenses content to at most maxLen characters
type Summarizer interface {
	Summarize(ctx context.Context, content string, maxLen int) (string, error)
}

// Classifier scores content against the fixed label set
type Classifier interface {
	Classify(ctx context.Context, title, content string) (map[string]float64, error)
}

// KeywordExtractor returns up to max keywords, most relevant first
type KeywordExtractor interface {
	Keywords(ctx context.Context, content string, max int) ([]string, error)
}

// Result carries the enrichment of one article
type Result struct {
	Summary    string             `json:"summary"`
	Categories map[string]float64 `json:"categories"`
	Keywords   []string           `json:"keywords"`
}
