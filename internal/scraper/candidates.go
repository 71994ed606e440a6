package scraper

import (
	"encoding/base64"
	"regexp"
	"strings"

	"facebook-video-server/internal/utils"
	"facebook-video-server/pkg/models"
)

// inlinePattern matches one of the JSON fields Facebook embeds media
// URLs in. The first capture group is the URL.
type inlinePattern struct {
	re      *regexp.Regexp
	quality models.QualityTier
}

var inlinePatterns = []inlinePattern{
	{regexp.MustCompile(`"hd_src":"([^"]+)"`), models.QualityHD},
	{regexp.MustCompile(`"sd_src":"([^"]+)"`), models.QualitySD},
	{regexp.MustCompile(`"video_src":"([^"]+)"`), models.QualityUnknown},
	{regexp.MustCompile(`"browser_native_hd_url":"([^"]+)"`), models.QualityHD},
	{regexp.MustCompile(`"browser_native_sd_url":"([^"]+)"`), models.QualitySD},
	{regexp.MustCompile(`(?i)"sec_video_url":"([^"]+)"`), models.QualityUnknown},
	{regexp.MustCompile(`"preferred_hd_quality"\s*:\s*\{\s*"url":\s*"([^"]+)"`), models.QualityHD},
	{regexp.MustCompile(`"video":\s*\{\s*"url":\s*"([^"]+)"`), models.QualityUnknown},
}

var (
	broadMP4Re  = regexp.MustCompile(`https?://[^"'\\\s<>]+\.mp4(?:[^"'\\\s<>]*)?`)
	scriptTagRe = regexp.MustCompile(`(?s)<script[^>]*>(.*?)</script>`)
	efgParamRe  = regexp.MustCompile(`[?&]efg=([A-Za-z0-9_=-]+)`)
)

// MineHTML extracts media URL candidates from raw page source: the
// known JSON fields first, then any mp4 URL inside script tags that
// points at a Facebook CDN host, then a broad sweep of the whole
// document.
func MineHTML(html string) []models.Candidate {
	var out []models.Candidate

	for _, p := range inlinePatterns {
		for _, m := range p.re.FindAllStringSubmatch(html, -1) {
			url := utils.DecodeEscapedURL(m[1])
			if !strings.HasPrefix(url, "http") {
				continue
			}
			out = append(out, models.Candidate{
				Source:  models.SourcePattern,
				URL:     url,
				Quality: p.quality,
			})
		}
	}

	for _, m := range scriptTagRe.FindAllStringSubmatch(html, -1) {
		script := m[1]
		if !strings.Contains(script, "fbcdn") {
			continue
		}
		for _, raw := range broadMP4Re.FindAllString(script, -1) {
			url := utils.DecodeEscapedURL(raw)
			if !strings.Contains(url, "fbcdn") {
				continue
			}
			out = append(out, models.Candidate{
				Source:  models.SourceScript,
				URL:     url,
				Quality: GuessQuality(url),
			})
		}
	}

	for _, raw := range broadMP4Re.FindAllString(html, -1) {
		url := utils.DecodeEscapedURL(raw)
		out = append(out, models.Candidate{
			Source:  models.SourceHTMLMP4,
			URL:     url,
			Quality: GuessQuality(url),
		})
	}

	return out
}

// GuessQuality infers a quality tier from hints in the URL itself.
// Facebook encodes the stream variant in an efg query parameter, a
// base64 JSON blob; when present it is the most reliable signal.
func GuessQuality(url string) models.QualityTier {
	lower := strings.ToLower(url)

	if m := efgParamRe.FindStringSubmatch(url); m != nil {
		if decoded, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(m[1], "=")); err == nil {
			tag := strings.ToLower(string(decoded))
			switch {
			case strings.Contains(tag, "hd"):
				return models.QualityHD
			case strings.Contains(tag, "sd"):
				return models.QualitySD
			}
		}
	}

	switch {
	case strings.Contains(lower, "hd") || strings.Contains(lower, "720") || strings.Contains(lower, "1080"):
		return models.QualityHD
	case strings.Contains(lower, "sd") || strings.Contains(lower, "480"):
		return models.QualitySD
	case strings.Contains(lower, "dash"):
		return models.QualityHD
	}
	return models.QualityUnknown
}

// looksLikeMedia reports whether an intercepted network URL is worth
// keeping as a media candidate.
func looksLikeMedia(url string) bool {
	if !strings.Contains(url, "fbcdn") && !strings.Contains(url, "video") {
		return false
	}
	return strings.Contains(url, ".mp4") || strings.Contains(url, "/v/t42") || strings.Contains(url, "bytestart")
}
