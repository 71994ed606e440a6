package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"facebook-video-server/pkg/models"
)

const desktopUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// Manager manages application configuration
type Manager struct {
	config *models.Config
	viper  *viper.Viper
	logger zerolog.Logger
}

// NewManager creates a new configuration manager
func NewManager() *Manager {
	return &Manager{
		config: &models.Config{},
		viper:  viper.New(),
		logger: zerolog.New(os.Stdout).With().Timestamp().Logger(),
	}
}

// Load loads configuration from file and environment
func (m *Manager) Load(configPath string) (*models.Config, error) {
	m.setDefaults()

	m.viper.SetConfigName("config")
	m.viper.SetConfigType("yaml")

	if configPath != "" {
		m.viper.AddConfigPath(configPath)
	} else {
		m.viper.AddConfigPath(".")
		m.viper.AddConfigPath("./config")
		m.viper.AddConfigPath("$HOME/.fb-video-server")
		m.viper.AddConfigPath("/etc/fb-video-server")
	}

	m.viper.AutomaticEnv()
	m.viper.SetEnvPrefix("FBV")

	if err := m.viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found, create default
		if err := m.createDefaultConfig(); err != nil {
			m.logger.Warn().Msgf("Failed to create default config: %v", err)
		}
	}

	if err := m.viper.Unmarshal(m.config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := m.ensureDirectories(); err != nil {
		return nil, fmt.Errorf("error ensuring directories: %w", err)
	}

	m.configureLogger()

	return m.config, nil
}

// GetConfig returns the current configuration
func (m *Manager) GetConfig() *models.Config {
	return m.config
}

// setDefaults sets default configuration values
func (m *Manager) setDefaults() {
	// Server defaults
	m.viper.SetDefault("server.host", "0.0.0.0")
	m.viper.SetDefault("server.port", 3001)
	m.viper.SetDefault("server.read_timeout", 30)
	m.viper.SetDefault("server.write_timeout", 120)

	// Resolver defaults
	m.viper.SetDefault("resolver.path", "yt-dlp")
	m.viper.SetDefault("resolver.title_timeout", 30)
	m.viper.SetDefault("resolver.media_timeout", 60)
	m.viper.SetDefault("resolver.user_agent", desktopUserAgent)

	// Scraper defaults
	m.viper.SetDefault("scraper.browser_path", "")
	m.viper.SetDefault("scraper.headless", true)
	m.viper.SetDefault("scraper.nav_timeout", 30)
	m.viper.SetDefault("scraper.settle_wait", 3)
	m.viper.SetDefault("scraper.group_settle_wait", 10)
	m.viper.SetDefault("scraper.reel_settle_wait", 12)
	m.viper.SetDefault("scraper.interaction_wait", 8)
	m.viper.SetDefault("scraper.group_interaction_wait", 12)
	m.viper.SetDefault("scraper.user_agent", desktopUserAgent)

	// Session defaults
	m.viper.SetDefault("session.cookie_file", "./data/fb_cookies.json")
	m.viper.SetDefault("session.netscape_file", "./data/fb_cookies.txt")
	m.viper.SetDefault("session.credentials_file", "./data/fb_credentials.json")

	// Cache defaults
	m.viper.SetDefault("cache.ttl_minutes", 5)

	// Database defaults
	m.viper.SetDefault("database.path", "./data/fb-video-server.db")

	// Download defaults
	m.viper.SetDefault("download.timeout", 300)

	// Log defaults
	m.viper.SetDefault("log.level", "info")
	m.viper.SetDefault("log.format", "text")
	m.viper.SetDefault("log.output", "stdout")

	// Rate limit defaults
	m.viper.SetDefault("rate_limit.enabled", true)
	m.viper.SetDefault("rate_limit.requests_per_second", 5)
	m.viper.SetDefault("rate_limit.burst", 10)
	m.viper.SetDefault("rate_limit.max_concurrent", 20)
	m.viper.SetDefault("rate_limit.whitelisted_ips", []string{"127.0.0.1", "::1"})
}

// createDefaultConfig creates a default configuration file
func (m *Manager) createDefaultConfig() error {
	configDir := "./config"
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	configFile := filepath.Join(configDir, "config.yaml")

	defaultConfig := `# Facebook Video Server Configuration

server:
  host: 0.0.0.0
  port: 3001
  read_timeout: 30
  write_timeout: 120

resolver:
  path: yt-dlp
  title_timeout: 30
  media_timeout: 60

scraper:
  browser_path: ""
  headless: true
  nav_timeout: 30
  settle_wait: 3
  group_settle_wait: 10
  reel_settle_wait: 12
  interaction_wait: 8
  group_interaction_wait: 12

session:
  cookie_file: ./data/fb_cookies.json
  netscape_file: ./data/fb_cookies.txt
  credentials_file: ./data/fb_credentials.json

cache:
  ttl_minutes: 5

database:
  path: ./data/fb-video-server.db

download:
  timeout: 300

log:
  level: info
  format: text
  output: stdout

proxy:
  enabled: false
  url: ""

rate_limit:
  enabled: true
  requests_per_second: 5
  burst: 10
  max_concurrent: 20
  whitelisted_ips:
    - "127.0.0.1"
    - "::1"
`

	if err := os.WriteFile(configFile, []byte(defaultConfig), 0644); err != nil {
		return fmt.Errorf("error writing default config: %w", err)
	}

	m.logger.Info().Msgf("Created default config file at: %s", configFile)
	return nil
}

// ensureDirectories ensures all required directories exist
func (m *Manager) ensureDirectories() error {
	dirs := []string{
		filepath.Dir(m.config.Database.Path),
		filepath.Dir(m.config.Session.CookieFile),
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("error creating directory %s: %w", dir, err)
		}
	}

	return nil
}

// configureLogger configures the logger based on settings
func (m *Manager) configureLogger() {
	level, err := zerolog.ParseLevel(m.config.Log.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if m.config.Log.Format != "json" {
		m.logger = m.logger.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	if m.config.Log.Output != "stdout" {
		file, err := os.OpenFile(m.config.Log.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
		if err == nil {
			m.logger = m.logger.Output(file)
		}
	}
}

// GetLogger returns the logger instance
func (m *Manager) GetLogger() zerolog.Logger {
	return m.logger
}
