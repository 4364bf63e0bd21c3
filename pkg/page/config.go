package page

// Config holds the configuration for the page extractor.
type Config struct {
	Headless          bool   `json:"headless" mapstructure:"headless"`                    // Run the browser without a window
	ExecPath          string `json:"execPath,omitempty" mapstructure:"exec_path"`         // Browser binary, empty to auto-detect
	UserAgent         string `json:"userAgent,omitempty" mapstructure:"user_agent"`       // User agent presented to sites
	ViewportWidth     int    `json:"viewportWidth" mapstructure:"viewport_width"`         // Viewport width in pixels
	ViewportHeight    int    `json:"viewportHeight" mapstructure:"viewport_height"`       // Viewport height in pixels
	NavigationTimeout int    `json:"navigationTimeout" mapstructure:"navigation_timeout"` // Navigation timeout (in seconds)
	IdleTimeout       int    `json:"idleTimeout" mapstructure:"idle_timeout"`             // Network idle wait (in seconds)
	WaitTimeout       int    `json:"waitTimeout" mapstructure:"wait_timeout"`             // Per-selector wait (in seconds)
	MinBodyLength     int    `json:"minBodyLength" mapstructure:"min_body_length"`        // Minimum characters for a body container
	MaxImages         int    `json:"maxImages" mapstructure:"max_images"`                 // Maximum number of images kept
	MinImageSize      int    `json:"minImageSize" mapstructure:"min_image_size"`          // Minimum declared width/height for body images
}

// DefaultConfig returns default page extractor configuration.
func DefaultConfig() *Config {
	return &Config{
		Headless:          true,
		UserAgent:         "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
		ViewportWidth:     1920,
		ViewportHeight:    1080,
		NavigationTimeout: 30,
		IdleTimeout:       10,
		WaitTimeout:       10,
		MinBodyLength:     100,
		MaxImages:         10,
		MinImageSize:      200,
	}
}
