package scraper

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"
)

type BrowserOptions struct {
	ProxyURL string
	// Settle is how long to wait after DOMContentLoaded before reading the page.
	Settle time.Duration
}

// BrowserFetcher renders pages in headless Chromium. The browser starts on
// first use and is reused until Close.
type BrowserFetcher struct {
	opts BrowserOptions

	mu      sync.Mutex
	pw      *playwright.Playwright
	browser playwright.Browser
	page    playwright.Page
}

func NewBrowserFetcher(opts BrowserOptions) *BrowserFetcher {
	if opts.Settle == 0 {
		opts.Settle = 2 * time.Second
	}
	return &BrowserFetcher{opts: opts}
}

func (f *BrowserFetcher) ensureBrowser() error {
	if f.page != nil {
		return nil
	}

	pw, err := playwright.Run()
	if err != nil {
		return fmt.Errorf("failed to start playwright: %w", err)
	}

	launch := playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(true),
		Args: []string{
			"--disable-dev-shm-usage",
			"--no-sandbox",
		},
	}
	if f.opts.ProxyURL != "" {
		launch.Proxy = &playwright.Proxy{Server: f.opts.ProxyURL}
	}

	browser, err := pw.Chromium.Launch(launch)
	if err != nil {
		pw.Stop()
		return fmt.Errorf("failed to launch browser: %w", err)
	}

	bctx, err := browser.NewContext(playwright.BrowserNewContextOptions{
		UserAgent: playwright.String(userAgent),
		Viewport:  &playwright.Size{Width: 1920, Height: 1080},
	})
	if err != nil {
		browser.Close()
		pw.Stop()
		return fmt.Errorf("failed to create context: %w", err)
	}

	page, err := bctx.NewPage()
	if err != nil {
		browser.Close()
		pw.Stop()
		return fmt.Errorf("failed to create page: %w", err)
	}

	f.pw = pw
	f.browser = browser
	f.page = page
	return nil
}

func (f *BrowserFetcher) Fetch(ctx context.Context, url string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.ensureBrowser(); err != nil {
		return "", err
	}

	resp, err := f.page.Goto(url, playwright.PageGotoOptions{
		Timeout:   playwright.Float(60000),
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
	})
	if err != nil {
		return "", fmt.Errorf("goto %s: %w", url, err)
	}
	if resp != nil && resp.Status() >= 400 {
		return "", fmt.Errorf("goto %s: status %d", url, resp.Status())
	}

	select {
	case <-time.After(f.opts.Settle):
	case <-ctx.Done():
		return "", ctx.Err()
	}

	html, err := f.page.Content()
	if err != nil {
		return "", fmt.Errorf("read content: %w", err)
	}
	return html, nil
}

func (f *BrowserFetcher) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.browser != nil {
		if err := f.browser.Close(); err != nil {
			log.Printf("Warning: closing browser: %v", err)
		}
		f.browser = nil
	}
	if f.pw != nil {
		if err := f.pw.Stop(); err != nil {
			log.Printf("Warning: stopping playwright: %v", err)
		}
		f.pw = nil
	}
	f.page = nil
	return nil
}
