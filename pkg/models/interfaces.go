package models

import (
	"context"
)

// MediaResolver is the fast path: an external resolver binary asked for
// a title or direct media URLs. Failures are soft; the boolean reports
// whether a usable answer came back.
type MediaResolver interface {
	ResolveTitle(ctx context.Context, url string, useAuth bool) (string, bool)
	ResolveMedia(ctx context.Context, url string, useAuth bool) ([]string, bool)
}

// PageScraper is the fallback path: render the page in a real browser
// and mine it for title and media candidates.
type PageScraper interface {
	Scrape(ctx context.Context, url string, useAuth bool) (*ScrapeResult, error)
}

// History persists extraction outcomes.
type History interface {
	SaveExtraction(rec *ExtractionRecord) error
	RecentExtractions(limit int) ([]ExtractionRecord, error)
	Close() error
}
