// Package browser fetches script-rendered pages through headless Chromium.
package browser

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"grantwatch/internal/models"
	"grantwatch/internal/parser"
	"grantwatch/pkg/logger"
)

// ErrClosed is returned for fetches after Close.
var ErrClosed = errors.New("browser is closed")

type Options struct {
	ChromePath string
	Timeout    time.Duration
	UserAgent  func() string
}

// Browser launches Chromium on first use and shares it across fetches.
type Browser struct {
	opts   Options
	log    logger.Logger
	parser *parser.Parser

	mu       sync.Mutex
	launcher *launcher.Launcher
	browser  *rod.Browser
	closed   bool
}

func New(opts Options, log logger.Logger) *Browser {
	if opts.Timeout <= 0 {
		opts.Timeout = 45 * time.Second
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &Browser{opts: opts, log: log, parser: parser.New()}
}

// Fetch loads rawURL, waits for the load event and returns the rendered text.
func (b *Browser) Fetch(ctx context.Context, rawURL string) models.FetchResult {
	start := time.Now()
	text, err := b.render(ctx, rawURL)
	if err != nil {
		return models.Failure(rawURL, err, time.Since(start))
	}
	return models.Success(rawURL, text, time.Since(start))
}

func (b *Browser) render(ctx context.Context, rawURL string) (string, error) {
	br, err := b.connect()
	if err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(ctx, b.opts.Timeout)
	defer cancel()

	page, err := br.Context(ctx).Page(proto.TargetCreateTarget{})
	if err != nil {
		return "", fmt.Errorf("opening page: %w", err)
	}
	defer page.Close()

	if b.opts.UserAgent != nil {
		if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: b.opts.UserAgent()}); err != nil {
			b.log.Warn("failed to set user agent", logger.Error(err))
		}
	}
	if err := page.Navigate(rawURL); err != nil {
		return "", fmt.Errorf("failed to navigate: %w", err)
	}
	if err := page.WaitLoad(); err != nil {
		return "", fmt.Errorf("failed to wait for load: %w", err)
	}
	html, err := page.HTML()
	if err != nil {
		return "", fmt.Errorf("failed to get HTML: %w", err)
	}

	p, err := b.parser.ExtractHTML(html)
	if err != nil {
		return "", fmt.Errorf("parsing %s: %w", rawURL, err)
	}
	return p.Text, nil
}

func (b *Browser) connect() (*rod.Browser, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, ErrClosed
	}
	if b.browser != nil {
		return b.browser, nil
	}

	l := launcher.New()
	if b.opts.ChromePath != "" {
		l = l.Bin(b.opts.ChromePath)
	}
	l = l.
		Headless(true).
		Set("disable-blink-features", "AutomationControlled").
		Set("disable-dev-shm-usage").
		Set("disable-gpu").
		Set("no-sandbox").
		Set("disable-extensions").
		Set("window-size", "1920,1080").
		Set("lang", "en-US,en")

	u, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("launching chromium: %w", err)
	}
	br := rod.New().ControlURL(u)
	if err := br.Connect(); err != nil {
		l.Kill()
		return nil, fmt.Errorf("connecting to chromium: %w", err)
	}

	b.launcher = l
	b.browser = br
	b.log.Info("headless browser started")
	return br, nil
}

// Close shuts Chromium down. Later fetches fail with ErrClosed.
func (b *Browser) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.closed = true
	if b.browser == nil {
		return nil
	}
	err := b.browser.Close()
	b.launcher.Kill()
	b.browser, b.launcher = nil, nil
	return err
}
