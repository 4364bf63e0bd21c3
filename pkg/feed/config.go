package feed

// Config holds the configuration for the feed ingester.
type Config struct {
	UserAgent string `json:"userAgent,omitempty" mapstructure:"user_agent"` // User agent string for feed requests
	Timeout   int    `json:"timeout,omitempty" mapstructure:"timeout"`      // Feed request timeout (in seconds)
	MaxItems  int    `json:"maxItems,omitempty" mapstructure:"max_items"`   // Maximum number of entries per feed, 0 for all
	MaxImages int    `json:"maxImages,omitempty" mapstructure:"max_images"` // Maximum number of images per entry
}

// DefaultConfig returns default feed ingester configuration.
func DefaultConfig() *Config {
	return &Config{
		UserAgent: "Mozilla/5.0 (compatible; RSSRecommendation/1.0)",
		Timeout:   30, // 30 second timeout
		MaxItems:  0,
		MaxImages: 10,
	}
}
