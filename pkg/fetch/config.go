package fetch

import "time"

// Config holds orchestrator settings
type Config struct {
	SourceDelay      time.Duration `json:"sourceDelay" mapstructure:"source_delay"`            // pause between sources in a batch
	SummaryMinLength int           `json:"summaryMinLength" mapstructure:"summary_min_length"` // characters
	SummaryMaxLength int           `json:"summaryMaxLength" mapstructure:"summary_max_length"` // characters
	FullText         bool          `json:"fullText" mapstructure:"full_text"`                  // re-crawl feed entries for full text
}

// DefaultConfig returns the default orchestrator settings
func DefaultConfig() *Config {
	return &Config{
		SourceDelay:      2 * time.Second,
		SummaryMinLength: 50,
		SummaryMaxLength: 500,
		FullText:         true,
	}
}
