package page

import (
	"context"
	"fmt"
	"strings"
	"time"

	cdppage "github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/go-logr/logr"
)

// RenderOptions tunes a single render
type RenderOptions struct {
	// WaitSelectors are CSS selector groups waited for after the page is
	// ready. A group that does not appear in time is skipped.
	WaitSelectors []string
	WaitTimeout   time.Duration
}

// Renderer produces the fully rendered HTML of a URL
type Renderer interface {
	Render(ctx context.Context, pageURL string, opts RenderOptions) (string, error)
}

// ChromeRenderer renders pages in a headless Chrome. Every call starts and
// tears down its own browser, so no state leaks between sources.
type ChromeRenderer struct {
	config *Config
	logger logr.Logger
}

// NewChromeRenderer creates a renderer backed by a local Chrome installation.
func NewChromeRenderer(config *Config, logger logr.Logger) *ChromeRenderer {
	if config == nil {
		config = DefaultConfig()
	}
	return &ChromeRenderer{config: config, logger: logger}
}

func (r *ChromeRenderer) allocatorOptions() []chromedp.ExecAllocatorOption {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", r.config.Headless),
		chromedp.NoSandbox,
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.UserAgent(r.config.UserAgent),
		chromedp.WindowSize(r.config.ViewportWidth, r.config.ViewportHeight),
	)
	if r.config.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(r.config.ExecPath))
	}
	return opts
}

// Render implements Renderer.
func (r *ChromeRenderer) Render(ctx context.Context, pageURL string, opts RenderOptions) (string, error) {
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, r.allocatorOptions()...)
	defer cancelAlloc()
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	defer cancelBrowser()

	// The first Run allocates the browser and must not carry a deadline.
	if err := chromedp.Run(browserCtx); err != nil {
		return "", fmt.Errorf("failed to start browser: %w", err)
	}

	idle := make(chan struct{}, 1)
	chromedp.ListenTarget(browserCtx, func(ev interface{}) {
		if e, ok := ev.(*cdppage.EventLifecycleEvent); ok && e.Name == "networkIdle" {
			select {
			case idle <- struct{}{}:
			default:
			}
		}
	})

	navCtx, cancelNav := context.WithTimeout(browserCtx, seconds(r.config.NavigationTimeout))
	defer cancelNav()
	err := chromedp.Run(navCtx,
		chromedp.EmulateViewport(int64(r.config.ViewportWidth), int64(r.config.ViewportHeight)),
		cdppage.SetLifecycleEventsEnabled(true),
		chromedp.Navigate(pageURL),
	)
	if err != nil {
		return "", fmt.Errorf("failed to navigate to %s: %w", pageURL, err)
	}

	select {
	case <-idle:
	case <-time.After(seconds(r.config.IdleTimeout)):
		r.logger.V(1).Info("Network did not become idle, continuing", "url", pageURL)
	case <-ctx.Done():
		return "", ctx.Err()
	}

	if err := chromedp.Run(navCtx, chromedp.WaitReady("body", chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("page body never became ready: %w", err)
	}

	waitTimeout := opts.WaitTimeout
	if waitTimeout <= 0 {
		waitTimeout = seconds(r.config.WaitTimeout)
	}
	for _, sel := range opts.WaitSelectors {
		if strings.TrimSpace(sel) == "" {
			continue
		}
		waitCtx, cancelWait := context.WithTimeout(browserCtx, waitTimeout)
		if err := chromedp.Run(waitCtx, chromedp.WaitReady(sel, chromedp.ByQuery)); err != nil {
			r.logger.V(1).Info("Selector not found, continuing", "url", pageURL, "selector", sel)
		}
		cancelWait()
	}

	var html string
	htmlCtx, cancelHTML := context.WithTimeout(browserCtx, waitTimeout)
	defer cancelHTML()
	if err := chromedp.Run(htmlCtx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("failed to read rendered html: %w", err)
	}
	return html, nil
}

func seconds(n int) time.Duration {
	if n <= 0 {
		n = 10
	}
	return time.Duration(n) * time.Second
}
