package extractor

import (
	"regexp"
	"strings"

	"facebook-video-server/pkg/models"
)

// DefaultTitle is used when nothing better survives cleaning.
const DefaultTitle = "Facebook Video"

var (
	countPhraseRe = regexp.MustCompile(`(?i)\d+(?:\.\d+)?[KMB]?\s+(?:views?|reactions?)`)
	separatorRe   = regexp.MustCompile(`\s*[·|]\s*`)
	whitespaceRe  = regexp.MustCompile(`\s+`)

	badPrefixRe   = regexp.MustCompile(`(?i)^(watch|facebook|log in|sign up)`)
	numericOnlyRe = regexp.MustCompile(`^[\d\s\p{P}]+$`)
)

// CleanTitle strips engagement-count noise ("1.2K views · 34 reactions")
// and separator clutter from a scraped title. Cleaning is idempotent.
// Anything that cleans down to fewer than three characters becomes the
// default title.
func CleanTitle(raw string) string {
	title := raw

	// Drop middot-separated segments that are pure engagement counts.
	parts := separatorRe.Split(title, -1)
	var kept []string
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if countPhraseRe.MatchString(p) && len(countPhraseRe.ReplaceAllString(p, "")) < 3 {
			continue
		}
		kept = append(kept, p)
	}
	title = strings.Join(kept, " ")

	// Then strip any count phrases embedded in what remains.
	title = countPhraseRe.ReplaceAllString(title, "")
	title = whitespaceRe.ReplaceAllString(title, " ")
	title = strings.TrimSpace(title)

	if len(title) < 3 {
		return DefaultTitle
	}
	return title
}

// usableTitle rejects candidates that are navigation chrome or
// engagement noise rather than a real video title.
func usableTitle(s string) bool {
	s = strings.TrimSpace(s)
	if len(s) < 10 {
		return false
	}
	if countPhraseRe.MatchString(s) {
		return false
	}
	if badPrefixRe.MatchString(s) {
		return false
	}
	if numericOnlyRe.MatchString(s) {
		return false
	}
	return true
}

// BestTitle picks the best title from the scraped candidates, in
// fixed priority order, and cleans it. Captions are only trusted in a
// middling length band; very short ones are fragments and very long
// ones are whole post bodies.
func BestTitle(t models.PageTitles) string {
	candidates := []string{t.OGTitle, t.TwitterTitle, t.Heading}
	if n := len(strings.TrimSpace(t.Caption)); n >= 15 && n <= 300 {
		candidates = append(candidates, t.Caption)
	}
	candidates = append(candidates, t.Description, t.AriaLabel)

	// The <title> tag carries " - Facebook" style suffixes; take the
	// part before the dash.
	if tag := strings.TrimSpace(t.TitleTag); tag != "" {
		if idx := strings.Index(tag, " - "); idx > 0 {
			tag = tag[:idx]
		}
		candidates = append(candidates, tag)
	}

	for _, c := range candidates {
		if usableTitle(c) {
			return CleanTitle(c)
		}
	}
	return DefaultTitle
}
