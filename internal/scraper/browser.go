package scraper

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/rs/zerolog"

	"facebook-video-server/internal/extractor"
	"facebook-video-server/internal/session"
	"facebook-video-server/pkg/models"
)

// maxMinedBodyBytes caps the size of intercepted JSON responses we are
// willing to scan for media URLs.
const maxMinedBodyBytes = 500 * 1024

// browserMetrics is the slice of the monitor the scraper reports to.
type browserMetrics interface {
	RecordBrowserLaunch()
	RecordBrowserFailure()
}

// Waits groups the settle timings for the different page kinds. Group
// and reel pages render their players later than ordinary videos.
type Waits struct {
	Navigation       time.Duration
	Settle           time.Duration
	GroupSettle      time.Duration
	ReelSettle       time.Duration
	Interaction      time.Duration
	GroupInteraction time.Duration
}

// Scraper drives a headless browser over a Facebook page and mines it
// for media. Every scrape gets a fresh browser; pages with detached
// frames poison a shared instance, so nothing is pooled.
type Scraper struct {
	browserPath string
	headless    bool
	userAgent   string
	waits       Waits
	session     *session.Manager
	metrics     browserMetrics
	logger      zerolog.Logger
}

// New creates a scraper. metrics may be nil.
func New(cfg *models.Config, sess *session.Manager, metrics browserMetrics) *Scraper {
	return &Scraper{
		browserPath: cfg.Scraper.BrowserPath,
		headless:    cfg.Scraper.Headless,
		userAgent:   cfg.Scraper.UserAgent,
		waits: Waits{
			Navigation:       time.Duration(cfg.Scraper.NavTimeout) * time.Second,
			Settle:           time.Duration(cfg.Scraper.SettleWait) * time.Second,
			GroupSettle:      time.Duration(cfg.Scraper.GroupSettleWait) * time.Second,
			ReelSettle:       time.Duration(cfg.Scraper.ReelSettleWait) * time.Second,
			Interaction:      time.Duration(cfg.Scraper.InteractionWait) * time.Second,
			GroupInteraction: time.Duration(cfg.Scraper.GroupInteractionWait) * time.Second,
		},
		session: sess,
		metrics: metrics,
		logger:  zerolog.New(os.Stdout).With().Timestamp().Str("component", "scraper").Logger(),
	}
}

// launch starts a fresh browser and returns it with its cleanup.
func (s *Scraper) launch(headless bool) (*rod.Browser, func(), error) {
	l := launcher.New().
		Headless(headless).
		NoSandbox(true).
		Set("disable-gpu").
		Set("disable-dev-shm-usage").
		Set("disable-blink-features", "AutomationControlled").
		Set("disable-notifications").
		Set("mute-audio")

	if s.browserPath != "" {
		l = l.Bin(s.browserPath)
	}

	controlURL, err := l.Launch()
	if err != nil {
		if s.metrics != nil {
			s.metrics.RecordBrowserFailure()
		}
		return nil, nil, err
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		l.Cleanup()
		if s.metrics != nil {
			s.metrics.RecordBrowserFailure()
		}
		return nil, nil, err
	}

	if s.metrics != nil {
		s.metrics.RecordBrowserLaunch()
	}

	cleanup := func() {
		_ = browser.Close()
		l.Cleanup()
	}
	return browser, cleanup, nil
}

// preparePage applies the anti-detection setup and, when authenticated,
// the saved session cookies.
func (s *Scraper) preparePage(page *rod.Page, useAuth bool) error {
	if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: s.userAgent}); err != nil {
		return err
	}

	// Headless Chrome advertises itself through navigator.webdriver;
	// Facebook serves a login wall when it sees it.
	_, err := page.EvalOnNewDocument(`Object.defineProperty(navigator, 'webdriver', {get: () => undefined})`)
	if err != nil {
		return err
	}

	if useAuth {
		cookies := s.session.Cookies()
		params := make([]*proto.NetworkCookieParam, 0, len(cookies))
		for _, c := range cookies {
			params = append(params, &proto.NetworkCookieParam{
				Name:     c.Name,
				Value:    c.Value,
				Domain:   c.Domain,
				Path:     c.Path,
				Secure:   c.Secure,
				HTTPOnly: c.HTTPOnly,
				Expires:  proto.TimeSinceEpoch(c.Expires),
			})
		}
		if err := page.SetCookies(params); err != nil {
			return err
		}
	}
	return nil
}

// networkCollector accumulates media candidates seen on the wire.
type networkCollector struct {
	mu         sync.Mutex
	candidates []models.Candidate
}

func (nc *networkCollector) add(c models.Candidate) {
	nc.mu.Lock()
	defer nc.mu.Unlock()
	nc.candidates = append(nc.candidates, c)
}

func (nc *networkCollector) all() []models.Candidate {
	nc.mu.Lock()
	defer nc.mu.Unlock()
	out := make([]models.Candidate, len(nc.candidates))
	copy(out, nc.candidates)
	return out
}

// intercept wires request hijacking: block heavy static assets, record
// media URLs, and mine JSON API responses for embedded media fields.
func (s *Scraper) intercept(page *rod.Page, collector *networkCollector) (*rod.HijackRouter, error) {
	router := page.HijackRequests()

	err := router.Add("*", "", func(ctx *rod.Hijack) {
		reqURL := ctx.Request.URL().String()

		switch ctx.Request.Type() {
		case proto.NetworkResourceTypeImage,
			proto.NetworkResourceTypeFont,
			proto.NetworkResourceTypeStylesheet:
			ctx.Response.Fail(proto.NetworkErrorReasonBlockedByClient)
			return

		case proto.NetworkResourceTypeXHR, proto.NetworkResourceTypeFetch:
			if looksLikeMedia(reqURL) {
				collector.add(models.Candidate{
					Source:  models.SourceNetwork,
					URL:     reqURL,
					Quality: GuessQuality(reqURL),
				})
			}
			if err := ctx.LoadResponse(http.DefaultClient, true); err != nil {
				return
			}
			body := ctx.Response.Body()
			if len(body) > 0 && len(body) < maxMinedBodyBytes && strings.Contains(body, "fbcdn") {
				for _, c := range MineHTML(body) {
					c.Source = models.SourceNetwork
					collector.add(c)
				}
			}
			return

		case proto.NetworkResourceTypeMedia:
			if looksLikeMedia(reqURL) {
				collector.add(models.Candidate{
					Source:  models.SourceNetwork,
					URL:     reqURL,
					Quality: GuessQuality(reqURL),
				})
			}
		}

		ctx.ContinueRequest(&proto.FetchContinueRequest{})
	})
	if err != nil {
		return nil, err
	}

	go router.Run()
	return router, nil
}

// Scrape renders the page and mines it for title and media candidates.
func (s *Scraper) Scrape(ctx context.Context, url string, useAuth bool) (*models.ScrapeResult, error) {
	isGroup := extractor.IsPrivateGroupURL(url)
	isReel := extractor.IsReelURL(url)

	browser, cleanup, err := s.launch(s.headless)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	page, err := browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		return nil, err
	}
	defer page.Close()

	if err := s.preparePage(page, useAuth); err != nil {
		return nil, err
	}

	collector := &networkCollector{}
	router, err := s.intercept(page, collector)
	if err != nil {
		return nil, err
	}
	defer router.Stop()

	navCtx, cancel := context.WithTimeout(ctx, s.waits.Navigation)
	defer cancel()

	s.logger.Info().Str("url", url).Bool("auth", useAuth).Msg("Navigating")
	navPage := page.Context(navCtx)
	// DOMContentLoaded is enough; Facebook keeps streaming subresources
	// long after, so waiting for the full load event would burn the
	// timeout on every page.
	waitDOM := navPage.WaitEvent(&proto.PageDomContentEventFired{})
	if err := navPage.Navigate(url); err != nil {
		if s.metrics != nil {
			s.metrics.RecordBrowserFailure()
		}
		return nil, navigationError(err)
	}
	waitDOM()
	if navCtx.Err() != nil {
		if s.metrics != nil {
			s.metrics.RecordBrowserFailure()
		}
		return nil, navigationError(navCtx.Err())
	}

	// Let the player surface render before probing.
	settle := s.waits.Settle
	if isGroup {
		settle = s.waits.GroupSettle
	} else if isReel {
		settle = s.waits.ReelSettle
	}
	s.sleep(ctx, settle)

	// Poke the player so lazy-loaded streams start fetching.
	s.triggerPlayback(page)
	interact := s.waits.Interaction
	if isGroup {
		interact = s.waits.GroupInteraction
	}
	s.sleep(ctx, interact)

	// Group and reel players keep loading after interaction.
	switch {
	case isGroup:
		s.sleep(ctx, 6*time.Second)
	case isReel:
		s.sleep(ctx, 5*time.Second)
	}

	result := &models.ScrapeResult{}

	result.Titles, result.Thumbnails = s.probeTitles(page)

	result.Candidates = append(result.Candidates, s.probeVideoElements(page)...)

	if html, err := page.HTML(); err == nil {
		result.Candidates = append(result.Candidates, MineHTML(html)...)
	} else {
		s.logger.Warn().Err(err).Msg("Failed to read page HTML")
	}

	result.Candidates = append(result.Candidates, collector.all()...)

	s.logger.Info().
		Str("url", url).
		Int("candidates", len(result.Candidates)).
		Msg("Scrape finished")
	return result, nil
}

// triggerPlayback clicks the most likely play control. Failure is fine;
// many pages autoplay.
func (s *Scraper) triggerPlayback(page *rod.Page) {
	_, _ = page.Eval(`() => {
		const selectors = [
			'div[aria-label="Play"]',
			'div[aria-label="Play video"]',
			'[aria-label*="Play"]',
			'video',
		];
		for (const sel of selectors) {
			const el = document.querySelector(sel);
			if (el) { el.click(); return sel; }
		}
		return null;
	}`)
}

// probeVideoElements reads src attributes off rendered <video> and
// <source> elements.
func (s *Scraper) probeVideoElements(page *rod.Page) []models.Candidate {
	obj, err := page.Eval(`() => {
		const out = [];
		for (const v of document.querySelectorAll('video')) {
			if (v.src && v.src.startsWith('http')) out.push({src: v.src, nested: false});
			for (const src of v.querySelectorAll('source')) {
				if (src.src && src.src.startsWith('http')) out.push({src: src.src, nested: true});
			}
		}
		return out;
	}`)
	if err != nil {
		s.logger.Debug().Err(err).Msg("Video element probe failed")
		return nil
	}

	var found []struct {
		Src    string `json:"src"`
		Nested bool   `json:"nested"`
	}
	if err := json.Unmarshal([]byte(obj.Value.JSON("", "")), &found); err != nil {
		return nil
	}

	var out []models.Candidate
	for _, f := range found {
		// blob: URLs are MediaSource handles, useless outside the page.
		if strings.HasPrefix(f.Src, "blob:") {
			continue
		}
		source := models.SourceVideoElement
		if f.Nested {
			source = models.SourceVideoSource
		}
		out = append(out, models.Candidate{
			Source:  source,
			URL:     f.Src,
			Quality: GuessQuality(f.Src),
		})
	}
	return out
}

// probeTitles gathers every title candidate plus the og:image
// thumbnail in one pass over the DOM.
func (s *Scraper) probeTitles(page *rod.Page) (models.PageTitles, []string) {
	obj, err := page.Eval(`() => {
		const meta = (sel) => {
			const el = document.querySelector(sel);
			return el ? (el.content || '') : '';
		};
		const text = (sel) => {
			const el = document.querySelector(sel);
			return el ? (el.textContent || '').trim() : '';
		};
		const aria = document.querySelector('div[aria-label][role="article"]');
		return {
			ogTitle: meta('meta[property="og:title"]'),
			twitterTitle: meta('meta[name="twitter:title"]'),
			heading: text('h1') || text('h2'),
			caption: text('div[data-ad-preview="message"]') || text('div[data-ad-comet-preview="message"]'),
			description: meta('meta[property="og:description"]') || meta('meta[name="description"]'),
			ariaLabel: aria ? aria.getAttribute('aria-label') : '',
			titleTag: document.title || '',
			thumbnail: meta('meta[property="og:image"]'),
		};
	}`)
	if err != nil {
		s.logger.Debug().Err(err).Msg("Title probe failed")
		return models.PageTitles{}, nil
	}

	var probe struct {
		models.PageTitles
		Thumbnail string `json:"thumbnail"`
	}
	if err := json.Unmarshal([]byte(obj.Value.JSON("", "")), &probe); err != nil {
		return models.PageTitles{}, nil
	}

	var thumbs []string
	if strings.HasPrefix(probe.Thumbnail, "http") {
		thumbs = append(thumbs, probe.Thumbnail)
	}
	return probe.PageTitles, thumbs
}

// sleep waits for d unless the context ends first.
func (s *Scraper) sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	select {
	case <-time.After(d):
	case <-ctx.Done():
	}
}

// navigationError translates browser failures into messages the API
// caller can act on.
func navigationError(err error) error {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "detached") || strings.Contains(msg, "closed"):
		return errors.New("Browser window was closed before the page loaded. Please try again.")
	case errors.Is(err, context.DeadlineExceeded) || strings.Contains(msg, "deadline"):
		return errors.New("Page loading timed out. Facebook might be slow or the video might be unavailable.")
	default:
		return err
	}
}
