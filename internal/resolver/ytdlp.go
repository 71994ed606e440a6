package resolver

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// minTitleLength rejects resolver title output that is too short to be
// a real title (empty lines, "NA", stray punctuation).
const minTitleLength = 5

// minMediaURLLength filters resolver output lines down to plausible CDN
// URLs; real Facebook media URLs are always long.
const minMediaURLLength = 50

// SessionFiles exposes the session state the resolver needs: whether a
// login exists and where its Netscape cookie export lives.
type SessionFiles interface {
	Authenticated() bool
	NetscapeFile() string
}

// Resolver shells out to an external yt-dlp-compatible binary. All
// failures are soft: the caller falls through to the browser scraper.
type Resolver struct {
	binary       string
	titleTimeout time.Duration
	mediaTimeout time.Duration
	userAgent    string
	session      SessionFiles
	logger       zerolog.Logger

	// run is swapped in tests to avoid spawning processes.
	run func(ctx context.Context, name string, args []string) (string, error)
}

// New creates a resolver around the given binary path.
func New(binary, userAgent string, titleTimeout, mediaTimeout time.Duration, session SessionFiles) *Resolver {
	return &Resolver{
		binary:       binary,
		titleTimeout: titleTimeout,
		mediaTimeout: mediaTimeout,
		userAgent:    userAgent,
		session:      session,
		logger:       zerolog.New(os.Stdout).With().Timestamp().Str("component", "resolver").Logger(),
		run:          runCommand,
	}
}

// Available reports whether the resolver binary can be found. Called
// once at startup so the operator learns about a missing binary before
// the first slow extraction.
func (r *Resolver) Available() bool {
	_, err := exec.LookPath(r.binary)
	return err == nil
}

// ResolveTitle asks the binary for the video title.
func (r *Resolver) ResolveTitle(ctx context.Context, url string, useAuth bool) (string, bool) {
	ctx, cancel := context.WithTimeout(ctx, r.titleTimeout)
	defer cancel()

	args := r.buildTitleArgs(url, r.useCookies(useAuth))
	out, err := r.run(ctx, r.binary, args)
	if err != nil {
		r.logger.Debug().Err(err).Str("url", url).Msg("Title resolution failed")
		return "", false
	}

	title := strings.TrimSpace(out)
	if len(title) <= minTitleLength {
		return "", false
	}
	return title, true
}

// ResolveMedia asks the binary for direct media URLs. The returned
// slice preserves the binary's output order, best format first.
func (r *Resolver) ResolveMedia(ctx context.Context, url string, useAuth bool) ([]string, bool) {
	ctx, cancel := context.WithTimeout(ctx, r.mediaTimeout)
	defer cancel()

	args := r.buildMediaArgs(url, r.useCookies(useAuth))
	out, err := r.run(ctx, r.binary, args)
	if err != nil {
		r.logger.Debug().Err(err).Str("url", url).Msg("Media resolution failed")
		return nil, false
	}

	urls := filterURLLines(out)
	if len(urls) == 0 {
		return nil, false
	}
	r.logger.Info().Int("urls", len(urls)).Str("url", url).Msg("Resolver produced media URLs")
	return urls, true
}

// useCookies decides whether to hand the binary the cookie export.
func (r *Resolver) useCookies(useAuth bool) bool {
	return useAuth && r.session != nil && r.session.Authenticated()
}

func (r *Resolver) buildTitleArgs(url string, withCookies bool) []string {
	args := []string{"--print", "title", "--no-warnings", "--quiet"}
	if withCookies {
		args = append(args, "--cookies", r.session.NetscapeFile())
	}
	return append(args, url)
}

func (r *Resolver) buildMediaArgs(url string, withCookies bool) []string {
	args := []string{
		"--print", "url",
		"--no-warnings", "--quiet",
		"--format", "best",
		"--no-check-certificates",
		"--user-agent", r.userAgent,
		"--extractor-args", "facebook:player_location=feed",
	}
	if withCookies {
		args = append(args,
			"--cookies", r.session.NetscapeFile(),
			"--ignore-errors",
			"--no-abort-on-error",
		)
	}
	return append(args, url)
}

// filterURLLines keeps output lines that look like media URLs.
func filterURLLines(out string) []string {
	var urls []string
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "http") && len(line) > minMediaURLLength {
			urls = append(urls, line)
		}
	}
	return urls
}

func runCommand(ctx context.Context, name string, args []string) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", err
	}
	return stdout.String(), nil
}
