package session

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"facebook-video-server/pkg/models"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	dir := t.TempDir()
	return NewManager(
		filepath.Join(dir, "cookies.json"),
		filepath.Join(dir, "cookies.txt"),
		filepath.Join(dir, "credentials.json"),
	)
}

func TestAuthenticatedRequiresUserCookie(t *testing.T) {
	m := newTestManager(t)

	if m.Authenticated() {
		t.Error("empty session reported authenticated")
	}

	err := m.Save([]models.CookieRecord{
		{Name: "datr", Value: "x", Domain: ".facebook.com"},
		{Name: "xs", Value: "y", Domain: ".facebook.com"},
	})
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if m.Authenticated() {
		t.Error("session without c_user reported authenticated")
	}

	err = m.Save([]models.CookieRecord{
		{Name: "c_user", Value: "100001", Domain: ".facebook.com"},
	})
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if !m.Authenticated() {
		t.Error("session with c_user not reported authenticated")
	}
}

func TestSaveAndReload(t *testing.T) {
	m := newTestManager(t)

	cookies := []models.CookieRecord{
		{Name: "c_user", Value: "100001", Domain: ".facebook.com", Path: "/", Secure: true, Expires: 1900000000},
	}
	if err := m.Save(cookies); err != nil {
		t.Fatalf("Save: %v", err)
	}

	if !m.HasSavedCookies() {
		t.Error("HasSavedCookies = false after Save")
	}

	// A fresh manager over the same files picks the session back up.
	m2 := NewManager(m.cookieFile, m.netscapeFile, m.credentialsFile)
	if !m2.Authenticated() {
		t.Error("reloaded session not authenticated")
	}
	got := m2.Cookies()
	if len(got) != 1 || got[0].Value != "100001" {
		t.Errorf("reloaded cookies = %+v", got)
	}
}

func TestClearIsIdempotent(t *testing.T) {
	m := newTestManager(t)

	if err := m.Save([]models.CookieRecord{{Name: "c_user", Value: "1", Domain: ".facebook.com"}}); err != nil {
		t.Fatalf("Save: %v", err)
	}

	if err := m.Clear(); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if m.Authenticated() || m.HasSavedCookies() {
		t.Error("session survived Clear")
	}
	if err := m.Clear(); err != nil {
		t.Errorf("second Clear: %v", err)
	}
}

func TestInvalidateLeavesDiskIntact(t *testing.T) {
	m := newTestManager(t)

	if err := m.Save([]models.CookieRecord{{Name: "c_user", Value: "1", Domain: ".facebook.com"}}); err != nil {
		t.Fatalf("Save: %v", err)
	}

	m.Invalidate()
	if m.Authenticated() {
		t.Error("Invalidate did not drop in-memory cookies")
	}
	if !m.HasSavedCookies() {
		t.Error("Invalidate removed the cookie file")
	}
}

func TestCredentialsRoundTrip(t *testing.T) {
	m := newTestManager(t)

	if creds, err := m.LoadCredentials(); err != nil || creds != nil {
		t.Fatalf("LoadCredentials on empty store = %+v, %v", creds, err)
	}

	if err := m.SaveCredentials("user@example.com", "hunter2"); err != nil {
		t.Fatalf("SaveCredentials: %v", err)
	}

	creds, err := m.LoadCredentials()
	if err != nil {
		t.Fatalf("LoadCredentials: %v", err)
	}
	if creds.Email != "user@example.com" || creds.Password != "hunter2" {
		t.Errorf("credentials = %+v", creds)
	}

	info, err := os.Stat(m.credentialsFile)
	if err != nil {
		t.Fatalf("stat credentials file: %v", err)
	}
	if mode := info.Mode().Perm(); mode != 0600 {
		t.Errorf("credentials file mode = %o, want 0600", mode)
	}
}

func TestFormatNetscape(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	cookies := []models.CookieRecord{
		{Name: "c_user", Value: "100001", Domain: ".facebook.com", Path: "/", Secure: true, Expires: 1900000000},
		{Name: "session", Value: "nope", Domain: "example.com", Path: "/"},
		{Name: "datr", Value: "abc", Domain: "facebook.com"},
		{Name: "fbw", Value: "v", Domain: "fb.watch", Path: "/w"},
	}

	out := FormatNetscape(cookies, now)
	lines := strings.Split(strings.TrimSpace(out), "\n")

	if !strings.HasPrefix(lines[0], "# Netscape HTTP Cookie File") {
		t.Errorf("missing header, got %q", lines[0])
	}

	var records []string
	for _, l := range lines {
		if l != "" && !strings.HasPrefix(l, "#") {
			records = append(records, l)
		}
	}
	if len(records) != 3 {
		t.Fatalf("got %d records, want 3 (non-facebook domain dropped):\n%s", len(records), out)
	}

	first := strings.Split(records[0], "\t")
	want := []string{".facebook.com", "TRUE", "/", "TRUE", "1900000000", "c_user", "100001"}
	if len(first) != 7 {
		t.Fatalf("record has %d fields, want 7: %q", len(first), records[0])
	}
	for i := range want {
		if first[i] != want[i] {
			t.Errorf("field %d = %q, want %q", i, first[i], want[i])
		}
	}

	// Bare facebook.com gets the leading dot and subdomain flag.
	second := strings.Split(records[1], "\t")
	if second[0] != ".facebook.com" || second[1] != "TRUE" {
		t.Errorf("bare domain not normalized: %q", records[1])
	}
	// Missing expiry defaults to one hour out.
	if second[4] != "1717246800" {
		t.Errorf("default expiry = %q, want %q", second[4], "1717246800")
	}

	// fb.watch is kept but not dot-prefixed.
	third := strings.Split(records[2], "\t")
	if third[0] != "fb.watch" || third[1] != "FALSE" || third[2] != "/w" {
		t.Errorf("fb.watch record = %q", records[2])
	}
}
