package extractor

import (
	"testing"
)

func TestValidateFacebookURL(t *testing.T) {
	valid := []string{
		"https://www.facebook.com/watch?v=123456",
		"https://facebook.com/someuser/videos/123",
		"https://m.facebook.com/story.php?story_fbid=1",
		"https://fb.com/video/123",
		"https://fb.watch/abc123/",
		"https://web.facebook.com/watch?v=9",
		"http://www.facebook.com/reel/555",
	}
	for _, u := range valid {
		if err := ValidateFacebookURL(u); err != nil {
			t.Errorf("ValidateFacebookURL(%q) = %v, want nil", u, err)
		}
	}

	invalid := []string{
		"https://www.youtube.com/watch?v=abc",
		"https://notfacebook.com/watch",
		"https://facebook.com.evil.example/watch",
		"https://myfb.watch.example/",
		"://missing-scheme",
		"",
	}
	for _, u := range invalid {
		if err := ValidateFacebookURL(u); err == nil {
			t.Errorf("ValidateFacebookURL(%q) = nil, want error", u)
		}
	}
}

func TestIsPrivateGroupURL(t *testing.T) {
	tests := []struct {
		url  string
		want bool
	}{
		{"https://www.facebook.com/groups/12345/posts/67890/", true},
		{"https://www.facebook.com/watch/?v=123456", true},
		{"https://www.facebook.com/watch?v=123456", false},
		{"https://www.facebook.com/someuser/videos/123", false},
		{"https://fb.watch/abc/", false},
	}

	for _, tt := range tests {
		if got := IsPrivateGroupURL(tt.url); got != tt.want {
			t.Errorf("IsPrivateGroupURL(%q) = %v, want %v", tt.url, got, tt.want)
		}
	}
}

func TestIsReelURL(t *testing.T) {
	tests := []struct {
		url  string
		want bool
	}{
		{"https://www.facebook.com/reel/987654", true},
		{"https://www.facebook.com/reels/987654", true},
		{"https://www.facebook.com/watch?v=123", false},
		{"https://www.facebook.com/realestate/videos/1", false},
	}

	for _, tt := range tests {
		if got := IsReelURL(tt.url); got != tt.want {
			t.Errorf("IsReelURL(%q) = %v, want %v", tt.url, got, tt.want)
		}
	}
}
