package utils

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	unicodeEscapeRe  = regexp.MustCompile(`\\u([0-9a-fA-F]{4})`)
	unsafeFilenameRe = regexp.MustCompile(`[^\w\s.-]`)
)

// DecodeEscapedURL undoes the JSON-style escaping Facebook applies to
// URLs embedded in page source: backslash-escaped slashes and \uXXXX
// unicode escapes.
func DecodeEscapedURL(s string) string {
	s = strings.ReplaceAll(s, `\/`, "/")
	return unicodeEscapeRe.ReplaceAllStringFunc(s, func(m string) string {
		code, err := strconv.ParseUint(m[2:], 16, 32)
		if err != nil {
			return m
		}
		return string(rune(code))
	})
}

// SanitizeFilename strips characters that are unsafe in a
// Content-Disposition filename.
func SanitizeFilename(name string) string {
	name = unsafeFilenameRe.ReplaceAllString(name, "")
	name = strings.TrimSpace(name)
	if name == "" {
		name = "video"
	}
	return name
}
