package scraper

import (
	"encoding/base64"
	"testing"

	"facebook-video-server/pkg/models"
)

func findCandidate(cands []models.Candidate, url string) *models.Candidate {
	for i := range cands {
		if cands[i].URL == url {
			return &cands[i]
		}
	}
	return nil
}

func TestMineHTMLInlinePatterns(t *testing.T) {
	html := `{"hd_src":"https:\/\/video.xx.fbcdn.net\/hd_clip.mp4","sd_src":"https:\/\/video.xx.fbcdn.net\/sd_clip.mp4"}` +
		`{"browser_native_hd_url":"https:\/\/video.xx.fbcdn.net\/native_hd.mp4"}` +
		`{"browser_native_sd_url":"https:\/\/video.xx.fbcdn.net\/native_sd.mp4"}` +
		`{"SEC_VIDEO_URL":"https:\/\/video.xx.fbcdn.net\/sec.mp4"}` +
		`{"preferred_hd_quality": { "url": "https:\/\/video.xx.fbcdn.net\/pref.mp4"}}` +
		`{"video": {"url": "https:\/\/video.xx.fbcdn.net\/plainobj.mp4"}}`

	cands := MineHTML(html)

	tests := []struct {
		url     string
		quality models.QualityTier
	}{
		{"https://video.xx.fbcdn.net/hd_clip.mp4", models.QualityHD},
		{"https://video.xx.fbcdn.net/sd_clip.mp4", models.QualitySD},
		{"https://video.xx.fbcdn.net/native_hd.mp4", models.QualityHD},
		{"https://video.xx.fbcdn.net/native_sd.mp4", models.QualitySD},
		{"https://video.xx.fbcdn.net/sec.mp4", models.QualityUnknown},
		{"https://video.xx.fbcdn.net/pref.mp4", models.QualityHD},
		{"https://video.xx.fbcdn.net/plainobj.mp4", models.QualityUnknown},
	}

	for _, tt := range tests {
		c := findCandidate(cands, tt.url)
		if c == nil {
			t.Errorf("candidate %q not mined", tt.url)
			continue
		}
		if c.Source == models.SourcePattern && c.Quality != tt.quality {
			t.Errorf("%q quality = %s, want %s", tt.url, c.Quality, tt.quality)
		}
	}
}

func TestMineHTMLUnescapesURLs(t *testing.T) {
	html := `{"hd_src":"https:\/\/video.xx.fbcdn.net\/clip.mp4?a=1&2"}`
	cands := MineHTML(html)

	c := findCandidate(cands, "https://video.xx.fbcdn.net/clip.mp4?a=1&2")
	if c == nil {
		t.Fatalf("unescaped candidate missing, got %+v", cands)
	}
}

func TestMineHTMLScriptTags(t *testing.T) {
	html := `<html><script>var x = {"u":"https://video-lax3-1.xx.fbcdn.net/v/t42.1790-2/clip123.mp4?efg=x"};</script>` +
		`<script>var y = "https://other.example/elsewhere.mp4";</script></html>`

	cands := MineHTML(html)

	if c := findCandidate(cands, "https://video-lax3-1.xx.fbcdn.net/v/t42.1790-2/clip123.mp4?efg=x"); c == nil {
		t.Error("fbcdn script URL not mined")
	}
	for _, c := range cands {
		if c.Source == models.SourceScript && c.URL == "https://other.example/elsewhere.mp4" {
			t.Error("non-fbcdn URL mined from script tag")
		}
	}
}

func TestMineHTMLBroadSweep(t *testing.T) {
	html := `<div data-url="https://cdn.example/somewhere/video_720.mp4?oh=1"></div>`
	cands := MineHTML(html)

	c := findCandidate(cands, "https://cdn.example/somewhere/video_720.mp4?oh=1")
	if c == nil {
		t.Fatal("broad sweep missed mp4 URL")
	}
	if c.Source != models.SourceHTMLMP4 {
		t.Errorf("source = %s", c.Source)
	}
	if c.Quality != models.QualityHD {
		t.Errorf("quality = %s, want HD from 720 hint", c.Quality)
	}
}

func TestGuessQuality(t *testing.T) {
	tests := []struct {
		url  string
		want models.QualityTier
	}{
		{"https://cdn.example/clip_hd.mp4", models.QualityHD},
		{"https://cdn.example/clip_720p.mp4", models.QualityHD},
		{"https://cdn.example/clip_1080.mp4", models.QualityHD},
		{"https://cdn.example/clip_sd.mp4", models.QualitySD},
		{"https://cdn.example/clip_480p.mp4", models.QualitySD},
		{"https://cdn.example/dash/clip.mp4", models.QualityHD},
		{"https://cdn.example/clip.mp4", models.QualityUnknown},
	}

	for _, tt := range tests {
		if got := GuessQuality(tt.url); got != tt.want {
			t.Errorf("GuessQuality(%q) = %s, want %s", tt.url, got, tt.want)
		}
	}
}

func TestGuessQualityFromEfgParam(t *testing.T) {
	hdTag := base64.RawURLEncoding.EncodeToString([]byte(`{"vencode_tag":"dash_hd"}`))
	sdTag := base64.RawURLEncoding.EncodeToString([]byte(`{"vencode_tag":"legacy_sd"}`))

	if got := GuessQuality("https://cdn.example/clip.mp4?efg=" + hdTag); got != models.QualityHD {
		t.Errorf("hd efg tag = %s", got)
	}
	if got := GuessQuality("https://cdn.example/clip.mp4?oh=1&efg=" + sdTag); got != models.QualitySD {
		t.Errorf("sd efg tag = %s", got)
	}
}

func TestLooksLikeMedia(t *testing.T) {
	tests := []struct {
		url  string
		want bool
	}{
		{"https://video-lax3-1.xx.fbcdn.net/v/t42.1790-2/clip.mp4", true},
		{"https://video.xx.fbcdn.net/v/t42.1790-2/chunk?bytestart=0", true},
		{"https://scontent.xx.fbcdn.net/v/t39/photo.jpg", false},
		{"https://www.facebook.com/api/graphql/", false},
		{"https://cdn.example/video/stream.mp4", true},
	}

	for _, tt := range tests {
		if got := looksLikeMedia(tt.url); got != tt.want {
			t.Errorf("looksLikeMedia(%q) = %v, want %v", tt.url, got, tt.want)
		}
	}
}
