package session

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"facebook-video-server/pkg/models"
)

// authCookieName marks a logged-in Facebook session. A cookie jar
// without it is treated as anonymous no matter what else it holds.
const authCookieName = "c_user"

// Credentials are the saved login credentials for automatic re-login.
// They are stored in plaintext on the operator's own machine; the file
// permissions are the only guard.
type Credentials struct {
	Email    string    `json:"email"`
	Password string    `json:"password"`
	SavedAt  time.Time `json:"savedAt"`
}

// Manager owns the persisted Facebook session: the JSON cookie jar, its
// Netscape-format export for the resolver, and optional saved
// credentials.
type Manager struct {
	mu              sync.Mutex
	cookieFile      string
	netscapeFile    string
	credentialsFile string
	cookies         []models.CookieRecord
	logger          zerolog.Logger
	now             func() time.Time
}

// NewManager creates a session manager over the given file paths and
// loads any previously saved cookies.
func NewManager(cookieFile, netscapeFile, credentialsFile string) *Manager {
	m := &Manager{
		cookieFile:      cookieFile,
		netscapeFile:    netscapeFile,
		credentialsFile: credentialsFile,
		logger:          zerolog.New(os.Stdout).With().Timestamp().Str("component", "session").Logger(),
		now:             time.Now,
	}
	if err := m.Reload(); err != nil {
		m.logger.Warn().Err(err).Msg("No saved session loaded")
	}
	return m
}

// Reload re-reads the cookie jar from disk, replacing the in-memory
// set. A missing file is not an error; it just means no session.
func (m *Manager) Reload() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	data, err := os.ReadFile(m.cookieFile)
	if err != nil {
		if os.IsNotExist(err) {
			m.cookies = nil
			return nil
		}
		return fmt.Errorf("error reading cookie file: %w", err)
	}

	var cookies []models.CookieRecord
	if err := json.Unmarshal(data, &cookies); err != nil {
		return fmt.Errorf("error parsing cookie file: %w", err)
	}

	m.cookies = cookies
	m.logger.Info().Int("cookies", len(cookies)).Msg("Session cookies loaded")
	return nil
}

// Save persists a fresh cookie set: JSON jar plus the Netscape export
// used by the external resolver.
func (m *Manager) Save(cookies []models.CookieRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(m.cookieFile), 0755); err != nil {
		return fmt.Errorf("error creating session directory: %w", err)
	}

	data, err := json.MarshalIndent(cookies, "", "  ")
	if err != nil {
		return fmt.Errorf("error encoding cookies: %w", err)
	}
	if err := os.WriteFile(m.cookieFile, data, 0600); err != nil {
		return fmt.Errorf("error writing cookie file: %w", err)
	}

	netscape := FormatNetscape(cookies, m.now())
	if err := os.WriteFile(m.netscapeFile, []byte(netscape), 0600); err != nil {
		return fmt.Errorf("error writing netscape cookie file: %w", err)
	}

	m.cookies = cookies
	m.logger.Info().Int("cookies", len(cookies)).Msg("Session cookies saved")
	return nil
}

// SaveCredentials stores login credentials for automatic re-login.
func (m *Manager) SaveCredentials(email, password string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	creds := Credentials{Email: email, Password: password, SavedAt: m.now()}
	data, err := json.MarshalIndent(creds, "", "  ")
	if err != nil {
		return fmt.Errorf("error encoding credentials: %w", err)
	}
	if err := os.WriteFile(m.credentialsFile, data, 0600); err != nil {
		return fmt.Errorf("error writing credentials file: %w", err)
	}
	return nil
}

// LoadCredentials returns saved credentials, or nil when none exist.
func (m *Manager) LoadCredentials() (*Credentials, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	data, err := os.ReadFile(m.credentialsFile)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("error reading credentials file: %w", err)
	}

	var creds Credentials
	if err := json.Unmarshal(data, &creds); err != nil {
		return nil, fmt.Errorf("error parsing credentials file: %w", err)
	}
	return &creds, nil
}

// Clear removes the session from memory and disk. Clearing an already
// empty session is not an error.
func (m *Manager) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.cookies = nil
	for _, f := range []string{m.cookieFile, m.netscapeFile, m.credentialsFile} {
		if err := os.Remove(f); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("error removing %s: %w", f, err)
		}
	}
	m.logger.Info().Msg("Session cleared")
	return nil
}

// Invalidate drops the in-memory cookies without touching disk, used
// when a scrape proves the saved session is stale.
func (m *Manager) Invalidate() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cookies = nil
}

// Authenticated reports whether the loaded cookie set represents a
// logged-in session.
func (m *Manager) Authenticated() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, c := range m.cookies {
		if c.Name == authCookieName {
			return true
		}
	}
	return false
}

// HasSavedCookies reports whether a cookie jar exists on disk,
// regardless of whether it represents a valid login.
func (m *Manager) HasSavedCookies() bool {
	_, err := os.Stat(m.cookieFile)
	return err == nil
}

// Cookies returns a copy of the current cookie set.
func (m *Manager) Cookies() []models.CookieRecord {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]models.CookieRecord, len(m.cookies))
	copy(out, m.cookies)
	return out
}

// NetscapeFile returns the path of the Netscape-format cookie export.
func (m *Manager) NetscapeFile() string {
	return m.netscapeFile
}

// FormatNetscape renders cookies in the Netscape cookies.txt format
// consumed by yt-dlp. Only Facebook-related cookies are exported, and
// domains are normalized to their leading-dot form. Cookies without an
// expiry get one hour from now so strict parsers accept the line.
func FormatNetscape(cookies []models.CookieRecord, now time.Time) string {
	var b strings.Builder
	b.WriteString("# Netscape HTTP Cookie File\n")
	b.WriteString("# https://curl.haxx.se/docs/http-cookies.html\n")
	b.WriteString("# This file was generated by fb-video-server\n\n")

	for _, c := range cookies {
		domain := c.Domain
		if domain == "" || !(strings.Contains(domain, "facebook") || strings.Contains(domain, "fb")) {
			continue
		}
		if !strings.HasPrefix(domain, ".") && strings.Contains(domain, "facebook.com") {
			domain = "." + domain
		}

		includeSubdomains := "FALSE"
		if strings.HasPrefix(domain, ".") {
			includeSubdomains = "TRUE"
		}

		secure := "FALSE"
		if c.Secure {
			secure = "TRUE"
		}

		path := c.Path
		if path == "" {
			path = "/"
		}

		expiry := int64(c.Expires)
		if expiry <= 0 {
			expiry = now.Add(time.Hour).Unix()
		}

		fmt.Fprintf(&b, "%s\t%s\t%s\t%s\t%d\t%s\t%s\n",
			domain, includeSubdomains, path, secure, expiry, c.Name, c.Value)
	}

	return b.String()
}
