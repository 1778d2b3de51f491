package scraper

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"auction_monitor/config"
	"auction_monitor/httputil"
)

const userAgent = "Mozilla/5.0"

// Fetcher returns the rendered HTML of a page.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
	Close() error
}

// NewFetcher picks the fetcher named in the site config.
func NewFetcher(site *config.SiteConfig, clients *httputil.Clients, proxy *config.ProxyConfig) Fetcher {
	switch site.Fetcher {
	case config.FetcherHTTP:
		return NewHTTPFetcher(clients.Scraping)
	default:
		return NewBrowserFetcher(BrowserOptions{ProxyURL: proxy.URL})
	}
}

// HTTPFetcher fetches server-rendered pages without a browser.
type HTTPFetcher struct {
	client *http.Client
}

func NewHTTPFetcher(client *http.Client) *HTTPFetcher {
	return &HTTPFetcher{client: client}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "pt-BR,pt;q=0.9")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("get %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("get %s: status %d", url, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}
	return string(body), nil
}

func (f *HTTPFetcher) Close() error { return nil }
