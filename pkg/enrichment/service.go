package enrichment

import (
	"context"

	"github.com/go-logr/logr"
)

// Config holds enrichment settings
type Config struct {
	UseRemote        bool `json:"useRemote" mapstructure:"use_remote"`               // call the generator at all
	SummaryMaxLength int  `json:"summaryMaxLength" mapstructure:"summary_max_length"` // characters
	MaxKeywords      int  `json:"maxKeywords" mapstructure:"max_keywords"`
}

// DefaultConfig returns the default enrichment settings
func DefaultConfig() *Config {
	return &Config{
		UseRemote:        true,
		SummaryMaxLength: 500,
		MaxKeywords:      10,
	}
}

// Service runs the three capabilities and never fails
type Service struct {
	config     *Config
	summarizer Summarizer
	classifier Classifier
	keywords   KeywordExtractor
	logger     logr.Logger
}

// New creates a Service. With a nil generator, or UseRemote off, only the
// local implementations are used. observer may be nil.
func New(config *Config, generator Generator, observer FallbackObserver, logger logr.Logger) *Service {
	if config == nil {
		config = DefaultConfig()
	}
	s := &Service{
		config:     config,
		summarizer: LocalSummarizer{},
		classifier: LocalClassifier{},
		keywords:   LocalKeywordExtractor{},
		logger:     logger,
	}
	if generator != nil && config.UseRemote {
		s.summarizer = NewFallbackSummarizer(RemoteSummarizer{Generator: generator}, LocalSummarizer{}, logger, observer)
		s.classifier = NewFallbackClassifier(RemoteClassifier{Generator: generator}, LocalClassifier{}, logger, observer)
		s.keywords = NewFallbackKeywordExtractor(RemoteKeywordExtractor{Generator: generator}, LocalKeywordExtractor{}, logger, observer)
	}
	return s
}

// NewWith builds a Service from explicit capability implementations.
func NewWith(config *Config, summarizer Summarizer, classifier Classifier, keywords KeywordExtractor, logger logr.Logger) *Service {
	if config == nil {
		config = DefaultConfig()
	}
	return &Service{
		config:     config,
		summarizer: summarizer,
		classifier: classifier,
		keywords:   keywords,
		logger:     logger,
	}
}

// Summarize returns a summary of at most the configured length, or "" when
// nothing could be produced.
func (s *Service) Summarize(ctx context.Context, content string) string {
	summary, err := s.summarizer.Summarize(ctx, content, s.config.SummaryMaxLength)
	if err != nil {
		s.logger.Error(err, "Summary failed")
		return ""
	}
	return summary
}

// Classify returns label confidences, {"other": 1} at worst.
func (s *Service) Classify(ctx context.Context, title, content string) map[string]float64 {
	categories, err := s.classifier.Classify(ctx, title, content)
	if err != nil || len(categories) == 0 {
		if err != nil {
			s.logger.Error(err, "Classification failed")
		}
		return otherOnly()
	}
	return categories
}

// Keywords returns up to the configured number of keywords.
func (s *Service) Keywords(ctx context.Context, content string) []string {
	keywords, err := s.keywords.Keywords(ctx, content, s.config.MaxKeywords)
	if err != nil {
		s.logger.Error(err, "Keyword extraction failed")
		return nil
	}
	return keywords
}

// Enrich runs all three capabilities on one article.
func (s *Service) Enrich(ctx context.Context, title, body string) Result {
	return Result{
		Summary:    s.Summarize(ctx, body),
		Categories: s.Classify(ctx, title, body),
		Keywords:   s.Keywords(ctx, body),
	}
}
