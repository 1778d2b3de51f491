package scraper

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"auction_monitor/config"
	"auction_monitor/models"
)

// Handler walks every section of one auction site.
type Handler struct {
	cfg     *config.SiteConfig
	fetcher Fetcher
	limiter *rate.Limiter
}

func NewHandler(cfg *config.SiteConfig, fetcher Fetcher) *Handler {
	h := &Handler{cfg: cfg, fetcher: fetcher}
	h.SetRateLimit(cfg.RateLimit())
	return h
}

// SetRateLimit sets the minimum gap between page fetches. Zero disables pacing.
func (h *Handler) SetRateLimit(gap time.Duration) {
	if gap <= 0 {
		h.limiter = rate.NewLimiter(rate.Inf, 1)
		return
	}
	h.limiter = rate.NewLimiter(rate.Every(gap), 1)
}

func (h *Handler) ID() string {
	return h.cfg.ID
}

func (h *Handler) Close() error {
	return h.fetcher.Close()
}

// ScrapeAll walks the configured sections in order. A failing section is
// recorded and skipped; listings it produced before failing are kept.
// Listings are deduplicated by identity key, first seen wins.
func (h *Handler) ScrapeAll(ctx context.Context) (*models.ScrapeResult, error) {
	result := &models.ScrapeResult{}
	seen := make(map[string]struct{})

	for _, section := range h.cfg.Sections {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		listings, pages, err := h.ScrapeSection(ctx, section)
		result.PagesScraped += pages
		if err != nil {
			log.Printf("Error in section %s: %v", section.Path, err)
			result.FailedSections = append(result.FailedSections, section.Path)
		}

		added := 0
		for _, l := range listings {
			if _, dup := seen[l.IdentityKey]; dup {
				continue
			}
			seen[l.IdentityKey] = struct{}{}
			result.Listings = append(result.Listings, l)
			added++
		}
		log.Printf("Section %s: %d listings over %d pages (%d new this run)", section.Path, len(listings), pages, added)
	}

	return result, nil
}

// ScrapeSection reads page 1 to find the last page, then every page after it.
// It returns what it collected so far together with any error.
func (h *Handler) ScrapeSection(ctx context.Context, section config.Section) ([]models.ScrapedListing, int, error) {
	sectionURL := h.cfg.BaseURL + "/" + strings.Trim(section.Path, "/")

	first, err := h.fetchPage(ctx, sectionURL, section.Path)
	if err != nil {
		return nil, 0, err
	}

	listings := first.Listings
	pages := 1

	for n := 2; n <= first.LastPage; n++ {
		pageURL := fmt.Sprintf("%s?%s=%d", sectionURL, h.cfg.PageParam, n)
		page, err := h.fetchPage(ctx, pageURL, section.Path)
		if err != nil {
			return listings, pages, fmt.Errorf("page %d: %w", n, err)
		}
		listings = append(listings, page.Listings...)
		pages++
	}

	return listings, pages, nil
}

func (h *Handler) fetchPage(ctx context.Context, url, section string) (*Page, error) {
	if err := h.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	html, err := h.fetcher.Fetch(ctx, url)
	if err != nil {
		return nil, err
	}
	return ParsePage(strings.NewReader(html), h.cfg.BaseURL, section)
}
