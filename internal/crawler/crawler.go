package crawler

import (
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"grantwatch/internal/models"
	"grantwatch/internal/parser"
)

var errNonHTML = errors.New("non-html content")

type HTTPClient struct {
	client  *http.Client
	sizeCap int64
	agents  *UserAgents
	parser  *parser.Parser
}

func NewHTTPClient(timeout, dialTimeout time.Duration, sizeCap int64, agents *UserAgents) *HTTPClient {
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   dialTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        100,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	}
	if agents == nil {
		agents = NewUserAgents(nil)
	}
	return &HTTPClient{
		client: &http.Client{
			Transport: transport,
			Timeout:   timeout,
		},
		sizeCap: sizeCap,
		agents:  agents,
		parser:  parser.New(),
	}
}

// Fetch downloads rawURL and returns its page text. Every failure, including
// a bad URL or status, comes back as a Failure result.
func (h *HTTPClient) Fetch(ctx context.Context, rawURL string) models.FetchResult {
	start := time.Now()
	text, err := h.fetchText(ctx, rawURL)
	if err != nil {
		return models.Failure(rawURL, err, time.Since(start))
	}
	return models.Success(rawURL, text, time.Since(start))
}

func (h *HTTPClient) fetchText(ctx context.Context, rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("invalid url %q", rawURL)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Encoding", "gzip")
	req.Header.Set("User-Agent", h.agents.Next())

	resp, err := h.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("http status %d", resp.StatusCode)
	}

	contentType := resp.Header.Get("Content-Type")
	if mt, _, _ := mime.ParseMediaType(contentType); !htmlMediaType(mt) {
		return "", fmt.Errorf("%w: %s", errNonHTML, mt)
	}

	var body io.Reader = resp.Body
	if strings.EqualFold(resp.Header.Get("Content-Encoding"), "gzip") {
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return "", err
		}
		defer gz.Close()
		body = gz
	}

	page, err := h.parser.Extract(io.LimitReader(body, h.sizeCap), contentType)
	if err != nil {
		return "", fmt.Errorf("parsing %s: %w", rawURL, err)
	}
	return page.Text, nil
}

// htmlMediaType accepts HTML, XHTML and a missing Content-Type.
func htmlMediaType(mt string) bool {
	switch mt {
	case "", "text/html", "application/xhtml+xml":
		return true
	}
	return false
}
