package models

import (
	"time"
)

// QualityTier is the coarse quality classification of a media candidate.
type QualityTier string

const (
	QualityHD      QualityTier = "HD"
	QualitySD      QualityTier = "SD"
	QualityUnknown QualityTier = "unknown"
)

// Candidate discovery sources, recorded so labels and diagnostics can
// tell where a URL came from.
const (
	SourceVideoElement = "video_element"
	SourceVideoSource  = "video_source"
	SourceHTMLMP4      = "html_mp4"
	SourcePattern      = "pattern"
	SourceScript       = "script"
	SourceNetwork      = "network"
)

// MediaFormat is one playable stream candidate in an extraction result.
type MediaFormat struct {
	FormatID int         `json:"formatId"`
	Quality  QualityTier `json:"quality"`
	Label    string      `json:"label"`
	URL      string      `json:"url"`
	Type     string      `json:"type"`
}

// ExtractionResult is the output of the extraction pipeline.
type ExtractionResult struct {
	Success    bool          `json:"success"`
	Title      string        `json:"title"`
	Thumbnails []string      `json:"thumbnails"`
	Formats    []MediaFormat `json:"formats"`
}

// Candidate is a raw media URL discovered by the browser scraper before
// ranking and deduplication.
type Candidate struct {
	Source  string
	URL     string
	Quality QualityTier
}

// PageTitles holds the title candidates mined from a rendered page, in
// the order the selection heuristic consults them.
type PageTitles struct {
	OGTitle      string `json:"ogTitle"`
	TwitterTitle string `json:"twitterTitle"`
	Heading      string `json:"heading"`
	Caption      string `json:"caption"`
	Description  string `json:"description"`
	AriaLabel    string `json:"ariaLabel"`
	TitleTag     string `json:"titleTag"`
}

// ScrapeResult is what the browser scraper hands back to the
// orchestrator: title candidates plus merged, quality-tagged media
// candidates from the DOM, inline HTML and network interception.
type ScrapeResult struct {
	Titles     PageTitles
	Candidates []Candidate
	Thumbnails []string
}

// CookieRecord is one persisted browser cookie. Expires is epoch
// seconds; zero means a session cookie with no explicit expiry.
type CookieRecord struct {
	Name     string  `json:"name"`
	Value    string  `json:"value"`
	Domain   string  `json:"domain"`
	Path     string  `json:"path"`
	Secure   bool    `json:"secure"`
	HTTPOnly bool    `json:"httpOnly"`
	Expires  float64 `json:"expires"`
}

// ExtractionRecord is one persisted row of extraction history.
type ExtractionRecord struct {
	ID          uint      `json:"id" gorm:"primaryKey;autoIncrement"`
	URL         string    `json:"url" gorm:"index"`
	Title       string    `json:"title"`
	Strategy    string    `json:"strategy"`
	BestQuality string    `json:"best_quality"`
	FormatCount int       `json:"format_count"`
	AuthMode    bool      `json:"auth_mode"`
	DurationMS  int64     `json:"duration_ms"`
	CreatedAt   time.Time `json:"created_at" gorm:"autoCreateTime"`
}

// Config represents the application configuration
type Config struct {
	Server struct {
		Host         string `mapstructure:"host" yaml:"host"`
		Port         int    `mapstructure:"port" yaml:"port"`
		ReadTimeout  int    `mapstructure:"read_timeout" yaml:"read_timeout"`
		WriteTimeout int    `mapstructure:"write_timeout" yaml:"write_timeout"`
	} `mapstructure:"server" yaml:"server"`

	Resolver struct {
		Path         string `mapstructure:"path" yaml:"path"`
		TitleTimeout int    `mapstructure:"title_timeout" yaml:"title_timeout"`
		MediaTimeout int    `mapstructure:"media_timeout" yaml:"media_timeout"`
		UserAgent    string `mapstructure:"user_agent" yaml:"user_agent"`
	} `mapstructure:"resolver" yaml:"resolver"`

	Scraper struct {
		BrowserPath          string `mapstructure:"browser_path" yaml:"browser_path"`
		Headless             bool   `mapstructure:"headless" yaml:"headless"`
		NavTimeout           int    `mapstructure:"nav_timeout" yaml:"nav_timeout"`
		SettleWait           int    `mapstructure:"settle_wait" yaml:"settle_wait"`
		GroupSettleWait      int    `mapstructure:"group_settle_wait" yaml:"group_settle_wait"`
		ReelSettleWait       int    `mapstructure:"reel_settle_wait" yaml:"reel_settle_wait"`
		InteractionWait      int    `mapstructure:"interaction_wait" yaml:"interaction_wait"`
		GroupInteractionWait int    `mapstructure:"group_interaction_wait" yaml:"group_interaction_wait"`
		UserAgent            string `mapstructure:"user_agent" yaml:"user_agent"`
	} `mapstructure:"scraper" yaml:"scraper"`

	Session struct {
		CookieFile      string `mapstructure:"cookie_file" yaml:"cookie_file"`
		NetscapeFile    string `mapstructure:"netscape_file" yaml:"netscape_file"`
		CredentialsFile string `mapstructure:"credentials_file" yaml:"credentials_file"`
	} `mapstructure:"session" yaml:"session"`

	Cache struct {
		TTLMinutes int `mapstructure:"ttl_minutes" yaml:"ttl_minutes"`
	} `mapstructure:"cache" yaml:"cache"`

	Database struct {
		Path string `mapstructure:"path" yaml:"path"`
	} `mapstructure:"database" yaml:"database"`

	Download struct {
		Timeout int `mapstructure:"timeout" yaml:"timeout"`
	} `mapstructure:"download" yaml:"download"`

	Proxy struct {
		Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
		URL     string `mapstructure:"url" yaml:"url"`
	} `mapstructure:"proxy" yaml:"proxy"`

	Log struct {
		Level  string `mapstructure:"level" yaml:"level"`
		Format string `mapstructure:"format" yaml:"format"`
		Output string `mapstructure:"output" yaml:"output"`
	} `mapstructure:"log" yaml:"log"`

	RateLimit struct {
		Enabled           bool     `mapstructure:"enabled" yaml:"enabled"`
		RequestsPerSecond int      `mapstructure:"requests_per_second" yaml:"requests_per_second"`
		Burst             int      `mapstructure:"burst" yaml:"burst"`
		MaxConcurrent     int      `mapstructure:"max_concurrent" yaml:"max_concurrent"`
		WhitelistedIPs    []string `mapstructure:"whitelisted_ips" yaml:"whitelisted_ips"`
	} `mapstructure:"rate_limit" yaml:"rate_limit"`
}
