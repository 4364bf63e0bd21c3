package enrichment

import (
	"context"

	"github.com/go-logr/logr"
)

// FallbackObserver is notified whenever a capability is answered by its fallback
type FallbackObserver interface {
	ObserveFallback(capability string)
}

type fallbackBase struct {
	logger   logr.Logger
	observer FallbackObserver
}

func (b fallbackBase) fellBack(capability string, err error) {
	b.logger.Info("Remote enrichment unavailable, using fallback", "capability", capability, "reason", err.Error())
	if b.observer != nil {
		b.observer.ObserveFallback(capability)
	}
}

// FallbackSummarizer tries Primary and delegates to Secondary on any failure
type FallbackSummarizer struct {
	fallbackBase
	Primary   Summarizer
	Secondary Summarizer
}

// NewFallbackSummarizer composes primary with secondary.
func NewFallbackSummarizer(primary, secondary Summarizer, logger logr.Logger, observer FallbackObserver) *FallbackSummarizer {
	return &FallbackSummarizer{
		fallbackBase: fallbackBase{logger: logger, observer: observer},
		Primary:      primary,
		Secondary:    secondary,
	}
}

// Summarize implements Summarizer.
func (f *FallbackSummarizer) Summarize(ctx context.Context, content string, maxLen int) (string, error) {
	summary, err := f.Primary.Summarize(ctx, content, maxLen)
	if err == nil && summary != "" {
		return summary, nil
	}
	if err == nil {
		err = ErrEmptyResponse
	}
	f.fellBack(CapabilitySummary, err)
	return f.Secondary.Summarize(ctx, content, maxLen)
}

// FallbackClassifier tries Primary and delegates to Secondary on any failure
type FallbackClassifier struct {
	fallbackBase
	Primary   Classifier
	Secondary Classifier
}

// NewFallbackClassifier composes primary with secondary.
func NewFallbackClassifier(primary, secondary Classifier, logger logr.Logger, observer FallbackObserver) *FallbackClassifier {
	return &FallbackClassifier{
		fallbackBase: fallbackBase{logger: logger, observer: observer},
		Primary:      primary,
		Secondary:    secondary,
	}
}

// Classify implements Classifier.
func (f *FallbackClassifier) Classify(ctx context.Context, title, content string) (map[string]float64, error) {
	categories, err := f.Primary.Classify(ctx, title, content)
	if err == nil && len(categories) > 0 {
		return categories, nil
	}
	if err == nil {
		err = ErrEmptyResponse
	}
	f.fellBack(CapabilityClassification, err)
	return f.Secondary.Classify(ctx, title, content)
}

// FallbackKeywordExtractor tries Primary and delegates to Secondary on any failure
type FallbackKeywordExtractor struct {
	fallbackBase
	Primary   KeywordExtractor
	Secondary KeywordExtractor
}

// NewFallbackKeywordExtractor composes primary with secondary.
func NewFallbackKeywordExtractor(primary, secondary KeywordExtractor, logger logr.Logger, observer FallbackObserver) *FallbackKeywordExtractor {
	return &FallbackKeywordExtractor{
		fallbackBase: fallbackBase{logger: logger, observer: observer},
		Primary:      primary,
		Secondary:    secondary,
	}
}

// Keywords implements KeywordExtractor.
func (f *FallbackKeywordExtractor) Keywords(ctx context.Context, content string, max int) ([]string, error) {
	keywords, err := f.Primary.Keywords(ctx, content, max)
	if err == nil && len(keywords) > 0 {
		return keywords, nil
	}
	if err == nil {
		err = ErrEmptyResponse
	}
	f.fellBack(CapabilityKeywords, err)
	return f.Secondary.Keywords(ctx, content, max)
}
