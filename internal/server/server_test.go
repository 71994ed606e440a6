package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"facebook-video-server/internal/cache"
	"facebook-video-server/internal/extractor"
	"facebook-video-server/internal/session"
	"facebook-video-server/pkg/models"
)

type stubResolver struct {
	urls []string
}

func (s *stubResolver) ResolveTitle(ctx context.Context, url string, useAuth bool) (string, bool) {
	return "Stubbed Video Title", true
}

func (s *stubResolver) ResolveMedia(ctx context.Context, url string, useAuth bool) ([]string, bool) {
	return s.urls, len(s.urls) > 0
}

type stubScraper struct{}

func (s *stubScraper) Scrape(ctx context.Context, url string, useAuth bool) (*models.ScrapeResult, error) {
	return &models.ScrapeResult{}, nil
}

type stubLogin struct {
	loggedIn bool
}

func (s *stubLogin) Login(ctx context.Context, email, password string) error {
	s.loggedIn = true
	return nil
}

func (s *stubLogin) ManualLogin(ctx context.Context) error {
	s.loggedIn = true
	return nil
}

func newTestServer(t *testing.T, urls []string) (*Server, *session.Manager) {
	t.Helper()

	dir := t.TempDir()
	cfg := &models.Config{}
	cfg.Server.Host = "127.0.0.1"
	cfg.Server.Port = 0
	cfg.Download.Timeout = 10
	cfg.Resolver.UserAgent = "TestUA/1.0"

	sess := session.NewManager(
		filepath.Join(dir, "cookies.json"),
		filepath.Join(dir, "cookies.txt"),
		filepath.Join(dir, "credentials.json"),
	)

	resultCache := cache.New(5 * time.Minute)
	orch := extractor.NewOrchestrator(&stubResolver{urls: urls}, &stubScraper{}, resultCache, nil, nil)

	srv, err := NewServer(cfg, orch, &stubLogin{}, sess, resultCache, nil, nil)
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	return srv, sess
}

func doRequest(srv *Server, method, target string, body io.Reader) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, body)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	srv.Engine().ServeHTTP(w, req)
	return w
}

func TestExtractEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, []string{"https://video.xx.fbcdn.net/v/long-enough-path/clip_hd_720.mp4?oh=abc"})

	w := doRequest(srv, http.MethodGet, "/api/extract?url="+url.QueryEscape("https://www.facebook.com/watch?v=123"), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	var result models.ExtractionResult
	if err := json.Unmarshal(w.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !result.Success || result.Title != "Stubbed Video Title" {
		t.Errorf("result = %+v", result)
	}
	if len(result.Formats) != 1 || result.Formats[0].Label != "HD Quality" {
		t.Errorf("formats = %+v", result.Formats)
	}
}

func TestExtractRejectsNonFacebookURL(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	w := doRequest(srv, http.MethodGet, "/api/extract?url="+url.QueryEscape("https://www.youtube.com/watch?v=1"), nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}

	w = doRequest(srv, http.MethodGet, "/api/extract", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("missing url status = %d, want 400", w.Code)
	}
}

func TestExtractFailureResponse(t *testing.T) {
	srv, sess := newTestServer(t, nil)

	w := doRequest(srv, http.MethodGet, "/api/extract?url="+url.QueryEscape("https://www.facebook.com/watch?v=9"), nil)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", w.Code)
	}

	var resp struct {
		Error      string `json:"error"`
		Message    string `json:"message"`
		Suggestion string `json:"suggestion"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Error != "Failed to extract video" {
		t.Errorf("error = %q", resp.Error)
	}
	if !strings.Contains(resp.Message, "No video found") {
		t.Errorf("message = %q", resp.Message)
	}
	if !strings.Contains(resp.Suggestion, "Try adding ?auth=true") {
		t.Errorf("suggestion = %q", resp.Suggestion)
	}

	// With an authenticated session the suggestion flips.
	if err := sess.Save([]models.CookieRecord{{Name: "c_user", Value: "1", Domain: ".facebook.com"}}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	w = doRequest(srv, http.MethodGet, "/api/extract?auth=true&url="+url.QueryEscape("https://www.facebook.com/watch?v=9"), nil)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("auth status = %d, want 500", w.Code)
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !strings.Contains(resp.Suggestion, "may be deleted") {
		t.Errorf("auth suggestion = %q", resp.Suggestion)
	}
}

func TestAuthStatus(t *testing.T) {
	srv, sess := newTestServer(t, nil)

	w := doRequest(srv, http.MethodGet, "/api/auth/status", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	var status struct {
		Authenticated   bool `json:"authenticated"`
		HasSavedCookies bool `json:"hasSavedCookies"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &status); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if status.Authenticated || status.HasSavedCookies {
		t.Errorf("fresh session status = %+v", status)
	}

	if err := sess.Save([]models.CookieRecord{{Name: "c_user", Value: "1", Domain: ".facebook.com"}}); err != nil {
		t.Fatalf("Save: %v", err)
	}

	w = doRequest(srv, http.MethodGet, "/api/auth/status", nil)
	if err := json.Unmarshal(w.Body.Bytes(), &status); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !status.Authenticated || !status.HasSavedCookies {
		t.Errorf("logged-in status = %+v", status)
	}
}

func TestLogout(t *testing.T) {
	srv, sess := newTestServer(t, nil)
	if err := sess.Save([]models.CookieRecord{{Name: "c_user", Value: "1", Domain: ".facebook.com"}}); err != nil {
		t.Fatalf("Save: %v", err)
	}

	w := doRequest(srv, http.MethodPost, "/api/auth/logout", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if sess.Authenticated() {
		t.Error("session survived logout")
	}
}

func TestLoginValidation(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	w := doRequest(srv, http.MethodPost, "/api/auth/login", strings.NewReader(`{"email":"x@example.com"}`))
	if w.Code != http.StatusBadRequest {
		t.Errorf("missing password status = %d, want 400", w.Code)
	}

	w = doRequest(srv, http.MethodPost, "/api/auth/login", strings.NewReader(`{"email":"x@example.com","password":"pw"}`))
	if w.Code != http.StatusOK {
		t.Errorf("login status = %d, body = %s", w.Code, w.Body.String())
	}
}

func TestCacheClear(t *testing.T) {
	srv, _ := newTestServer(t, []string{"https://video.xx.fbcdn.net/v/long-enough-path/clip.mp4?oh=abc"})

	target := "/api/extract?url=" + url.QueryEscape("https://www.facebook.com/watch?v=55")
	if w := doRequest(srv, http.MethodGet, target, nil); w.Code != http.StatusOK {
		t.Fatalf("extract status = %d", w.Code)
	}

	w := doRequest(srv, http.MethodPost, "/api/cache/clear", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp struct {
		Cleared int `json:"cleared"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Cleared != 1 {
		t.Errorf("cleared = %d, want 1", resp.Cleared)
	}
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	w := doRequest(srv, http.MethodGet, "/api/health", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp struct {
		Status        string `json:"status"`
		Timestamp     string `json:"timestamp"`
		Authenticated bool   `json:"authenticated"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Status != "ok" || resp.Timestamp == "" {
		t.Errorf("health = %+v", resp)
	}
}

func TestDownloadProxy(t *testing.T) {
	payload := []byte("fake video bytes")
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "video/mp4")
		w.Write(payload)
	}))
	defer backend.Close()

	srv, _ := newTestServer(t, nil)

	target := "/api/download?filename=My%20Video.mp4&url=" + url.QueryEscape(backend.URL+"/clip.mp4")
	w := doRequest(srv, http.MethodGet, target, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if got := w.Body.Bytes(); string(got) != string(payload) {
		t.Errorf("body = %q", got)
	}
	if ct := w.Header().Get("Content-Type"); ct != "video/mp4" {
		t.Errorf("content type = %q", ct)
	}
	if cd := w.Header().Get("Content-Disposition"); !strings.Contains(cd, `filename="My Video.mp4"`) {
		t.Errorf("content disposition = %q", cd)
	}

	// Omitted filename falls back to the generic name.
	w = doRequest(srv, http.MethodGet, "/api/download?url="+url.QueryEscape(backend.URL+"/clip.mp4"), nil)
	if cd := w.Header().Get("Content-Disposition"); !strings.Contains(cd, `filename="video.mp4"`) {
		t.Errorf("default content disposition = %q", cd)
	}
}

func TestDownloadRequiresURL(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	w := doRequest(srv, http.MethodGet, "/api/download", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}
