// Package fetch retrieves web pages and reduces them to readable text
// for the fetch_literature tool. Only http and https schemes are
// allowed, bodies are size-bounded, and non-HTML content is returned
// verbatim (truncated).
package fetch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Dizzy12138/bio-agent/internal/httpkit"
)

// Limits for fetched documents.
const (
	maxBodyBytes   = 2 << 20 // 2 MiB read cap
	requestTimeout = 20 * time.Second
)

// Page is a fetched document reduced to its readable parts.
type Page struct {
	URL   string `json:"url"`
	Title string `json:"title,omitempty"`
	Text  string `json:"text"`
}

// Client fetches pages with bounded requests.
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a fetch client.
func NewClient(logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		httpClient: httpkit.NewClient(requestTimeout),
		logger:     logger,
	}
}

// Fetch retrieves rawURL and extracts its readable text. HTML is parsed
// and stripped to content; other text types pass through.
func (c *Client) Fetch(ctx context.Context, rawURL string) (*Page, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported URL scheme %q", u.Scheme)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "text/html, text/plain;q=0.9, */*;q=0.1")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", u.Host, err)
	}
	defer httpkit.DrainAndClose(resp.Body, 4096)

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: HTTP %d", u.Host, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	page := &Page{URL: u.String()}
	contentType := resp.Header.Get("Content-Type")
	if strings.Contains(contentType, "html") || looksLikeHTML(body) {
		page.Title, page.Text = extractHTML(string(body))
	} else {
		page.Text = strings.TrimSpace(string(body))
	}

	c.logger.Debug("fetched page", "url", u.String(), "bytes", len(body), "text_len", len(page.Text))
	return page, nil
}

func looksLikeHTML(body []byte) bool {
	head := strings.ToLower(string(body[:min(len(body), 512)]))
	return strings.Contains(head, "<html") || strings.Contains(head, "<!doctype html")
}
