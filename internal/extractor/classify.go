package extractor

import (
	"fmt"
	"net/url"
	"strings"
)

// ValidateFacebookURL checks that raw is a well-formed URL pointing at
// a Facebook property. The scheme is not restricted; hostname alone
// decides.
func ValidateFacebookURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}

	host := strings.ToLower(u.Hostname())
	host = strings.TrimPrefix(host, "www.")
	host = strings.TrimPrefix(host, "m.")

	switch host {
	case "facebook.com", "fb.com", "fb.watch":
		return nil
	}
	if strings.HasSuffix(host, ".facebook.com") {
		return nil
	}
	return fmt.Errorf("not a Facebook URL: %s", raw)
}

// IsPrivateGroupURL reports whether the URL is the kind of page that
// normally needs a logged-in session: group posts and the watch
// permalink form.
func IsPrivateGroupURL(raw string) bool {
	return strings.Contains(raw, "/groups/") || strings.Contains(raw, "facebook.com/watch/?v=")
}

// IsReelURL reports whether the URL points at a reel, which renders
// through a different, slower player surface.
func IsReelURL(raw string) bool {
	return strings.Contains(raw, "/reel/") || strings.Contains(raw, "/reels/")
}
