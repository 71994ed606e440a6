package extractor

import (
	"context"
	"errors"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"facebook-video-server/internal/cache"
	"facebook-video-server/pkg/models"
)

// Strategy names recorded in metrics and history.
const (
	StrategyResolver = "resolver"
	StrategyScraper  = "scraper"
)

// metricsRecorder is the slice of the monitor the orchestrator needs.
type metricsRecorder interface {
	RecordExtractionStart()
	RecordExtraction(strategy, outcome string, duration time.Duration)
	RecordCacheHit()
	RecordCacheMiss()
}

// Orchestrator runs the extraction pipeline: cache lookup, the fast
// external-resolver path, then the browser scraper fallback.
type Orchestrator struct {
	resolver models.MediaResolver
	scraper  models.PageScraper
	cache    *cache.Cache
	history  models.History
	metrics  metricsRecorder
	logger   zerolog.Logger
	now      func() time.Time
}

// NewOrchestrator wires the pipeline together. history and metrics may
// be nil.
func NewOrchestrator(resolver models.MediaResolver, scraper models.PageScraper, c *cache.Cache, history models.History, metrics metricsRecorder) *Orchestrator {
	return &Orchestrator{
		resolver: resolver,
		scraper:  scraper,
		cache:    c,
		history:  history,
		metrics:  metrics,
		logger:   zerolog.New(os.Stdout).With().Timestamp().Str("component", "extractor").Logger(),
		now:      time.Now,
	}
}

// Extract resolves url to playable media. useAuth must already reflect
// whether an authenticated session is actually in effect, not merely
// requested.
func (o *Orchestrator) Extract(ctx context.Context, url string, useAuth bool) (*models.ExtractionResult, error) {
	key := cache.Key(url, useAuth)
	if cached := o.cache.Get(key); cached != nil {
		if o.metrics != nil {
			o.metrics.RecordCacheHit()
		}
		o.logger.Info().Str("url", url).Msg("Serving cached extraction")
		return cached, nil
	}
	if o.metrics != nil {
		o.metrics.RecordCacheMiss()
		o.metrics.RecordExtractionStart()
	}

	start := o.now()

	// Fast path: ask the external resolver before spinning up a
	// browser. Its title is kept even when the media lookup fails, so
	// the scraper path can reuse it.
	title, haveTitle := o.resolver.ResolveTitle(ctx, url, useAuth)

	if urls, ok := o.resolver.ResolveMedia(ctx, url, useAuth); ok {
		if !haveTitle {
			title = DefaultTitle
		}
		result := &models.ExtractionResult{
			Success: true,
			Title:   CleanTitle(title),
			Formats: rankResolverURLs(urls),
		}
		o.finish(key, url, StrategyResolver, useAuth, start, result)
		return result, nil
	}

	o.logger.Info().Str("url", url).Msg("Resolver found nothing, falling back to browser")

	scraped, err := o.scraper.Scrape(ctx, url, useAuth)
	if err != nil {
		o.record(StrategyScraper, "error", start)
		return nil, err
	}

	formats := RankCandidates(scraped.Candidates)
	if len(formats) == 0 {
		o.record(StrategyScraper, "not_found", start)
		return nil, errors.New(noVideoMessage(url, useAuth))
	}

	if !haveTitle {
		title = BestTitle(scraped.Titles)
	} else {
		title = CleanTitle(title)
	}

	result := &models.ExtractionResult{
		Success:    true,
		Title:      title,
		Thumbnails: scraped.Thumbnails,
		Formats:    formats,
	}
	o.finish(key, url, StrategyScraper, useAuth, start, result)
	return result, nil
}

// finish caches a successful result and records history and metrics.
func (o *Orchestrator) finish(key, url, strategy string, useAuth bool, start time.Time, result *models.ExtractionResult) {
	o.cache.Put(key, result)
	o.record(strategy, "success", start)

	if o.history != nil {
		best := models.QualityUnknown
		if len(result.Formats) > 0 {
			best = result.Formats[0].Quality
		}
		rec := &models.ExtractionRecord{
			URL:         url,
			Title:       result.Title,
			Strategy:    strategy,
			BestQuality: string(best),
			FormatCount: len(result.Formats),
			AuthMode:    useAuth,
			DurationMS:  o.now().Sub(start).Milliseconds(),
		}
		if err := o.history.SaveExtraction(rec); err != nil {
			o.logger.Warn().Err(err).Msg("Failed to record extraction history")
		}
	}

	o.logger.Info().
		Str("url", url).
		Str("strategy", strategy).
		Int("formats", len(result.Formats)).
		Msg("Extraction complete")
}

func (o *Orchestrator) record(strategy, outcome string, start time.Time) {
	if o.metrics != nil {
		o.metrics.RecordExtraction(strategy, outcome, o.now().Sub(start))
	}
}

// noVideoMessage explains an empty extraction in terms the caller can
// act on, keyed by page kind and auth mode.
func noVideoMessage(url string, useAuth bool) string {
	private := IsPrivateGroupURL(url)
	switch {
	case private && !useAuth:
		return "Private group videos require authentication. Please log in with a Facebook account that has access to this group."
	case private && useAuth:
		return "No video found in private group even with authentication. The session may have expired. Try re-authenticating."
	case !private && useAuth:
		return "No video found even with authentication. The video may be deleted, restricted, or use a new format."
	default:
		return "No video found. Try enabling authentication mode."
	}
}

// rankResolverURLs converts the resolver's ordered URL list into
// formats. The resolver asks for the best format first, so the leading
// URL is treated as HD and the rest as SD.
func rankResolverURLs(urls []string) []models.MediaFormat {
	formats := make([]models.MediaFormat, 0, len(urls))
	for i, u := range urls {
		f := models.MediaFormat{
			FormatID: i + 1,
			Quality:  models.QualitySD,
			Label:    "SD Quality",
			URL:      u,
			Type:     "video/mp4",
		}
		if i == 0 {
			f.Quality = models.QualityHD
			f.Label = "HD Quality"
		}
		formats = append(formats, f)
	}
	return formats
}

// minCandidateURLLength rejects mined URLs too short to be real CDN
// media; Facebook stream URLs always carry long signed query strings.
const minCandidateURLLength = 50

// RankCandidates drops junk candidates, deduplicates the rest, and
// orders them HD first, then SD, then unknown, preserving discovery
// order within each tier.
func RankCandidates(candidates []models.Candidate) []models.MediaFormat {
	seen := make(map[string]bool)
	var hd, sd, other []models.Candidate
	for _, c := range candidates {
		if len(c.URL) <= minCandidateURLLength || !strings.Contains(c.URL, "http") {
			continue
		}
		if seen[c.URL] {
			continue
		}
		seen[c.URL] = true
		switch c.Quality {
		case models.QualityHD:
			hd = append(hd, c)
		case models.QualitySD:
			sd = append(sd, c)
		default:
			other = append(other, c)
		}
	}

	ordered := append(append(hd, sd...), other...)
	formats := make([]models.MediaFormat, 0, len(ordered))
	for i, c := range ordered {
		formats = append(formats, models.MediaFormat{
			FormatID: i + 1,
			Quality:  c.Quality,
			Label:    labelFor(c),
			URL:      c.URL,
			Type:     "video/mp4",
		})
	}
	return formats
}

// labelFor derives the display label. Unknown-tier candidates fall
// back to whatever their discovery source hints at.
func labelFor(c models.Candidate) string {
	switch c.Quality {
	case models.QualityHD:
		return "HD Quality"
	case models.QualitySD:
		return "SD Quality"
	}
	switch {
	case strings.Contains(c.Source, "hd"):
		return "HD"
	case strings.Contains(c.Source, "sd"):
		return "SD"
	default:
		return "Unknown"
	}
}
