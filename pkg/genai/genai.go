// Package genai adapts a github.com/jbutlerdev/genai provider into a
// context-aware text generator used by the enrichment stage.
package genai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-logr/logr"
	"github.com/jbutlerdev/genai"
)

var (
	ErrNotConfigured = errors.New("genai provider not configured")
	ErrEmptyResponse = errors.New("genai provider returned an empty response")
)

// Config selects the remote provider and model
type Config struct {
	Provider string        `json:"provider" mapstructure:"provider"` // e.g. "ollama", "gemini", "openai"
	Model    string        `json:"model" mapstructure:"model"`
	APIKey   string        `json:"apiKey" mapstructure:"api_key"`
	BaseURL  string        `json:"baseUrl" mapstructure:"base_url"`
	Timeout  time.Duration `json:"timeout" mapstructure:"timeout"` // per request
}

// Configured reports whether enough settings are present to reach a provider.
func (c Config) Configured() bool {
	return c.Provider != "" && c.Model != ""
}

// generateFunc matches (*genai.Provider).Generate
type generateFunc func(model, prompt string) (string, error)

// Client performs single-prompt generations with a bounded wait
type Client struct {
	generate generateFunc
	model    string
	timeout  time.Duration
	logger   logr.Logger
}

// NewClient creates a client for the configured provider.
func NewClient(config Config, logger logr.Logger) (*Client, error) {
	if !config.Configured() {
		return nil, ErrNotConfigured
	}
	provider, err := genai.NewProviderWithLog(config.Provider, genai.ProviderOptions{
		APIKey:  config.APIKey,
		BaseURL: config.BaseURL,
		Log:     logger.WithName(config.Provider),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create %s provider: %w", config.Provider, err)
	}
	return newClient(provider.Generate, config, logger), nil
}

func newClient(fn generateFunc, config Config, logger logr.Logger) *Client {
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		generate: fn,
		model:    config.Model,
		timeout:  timeout,
		logger:   logger,
	}
}

type generation struct {
	text string
	err  error
}

// Generate sends prompt to the provider and waits at most the configured
// timeout or until ctx is done. The provider call itself cannot be
// interrupted, so a timed-out call finishes in the background and its
// result is discarded.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	done := make(chan generation, 1)
	go func() {
		text, err := c.generate(c.model, prompt)
		done <- generation{text: text, err: err}
	}()

	select {
	case <-ctx.Done():
		return "", fmt.Errorf("generation aborted: %w", ctx.Err())
	case res := <-done:
		if res.err != nil {
			return "", res.err
		}
		text := strings.TrimSpace(res.text)
		if text == "" {
			return "", ErrEmptyResponse
		}
		c.logger.V(1).Info("Generation completed", "model", c.model, "chars", len(text))
		return text, nil
	}
}
