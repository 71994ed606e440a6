package scraper

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"

	"facebook-video-server/pkg/models"
)

const (
	loginPollInterval = 5 * time.Second
	loginPollAttempts = 24 // two minutes
)

// Login performs a credentialed Facebook login in a visible browser
// window and saves the resulting session. Two-factor prompts and
// checkpoint pages are left for the operator to complete; the login is
// considered done once the session cookie appears.
func (s *Scraper) Login(ctx context.Context, email, password string) error {
	browser, cleanup, err := s.launch(false)
	if err != nil {
		return err
	}
	defer cleanup()

	page, err := browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		return err
	}
	defer page.Close()

	if err := s.preparePage(page, false); err != nil {
		return err
	}

	if err := page.Context(ctx).Navigate("https://www.facebook.com/"); err != nil {
		return navigationError(err)
	}
	if err := page.Context(ctx).WaitLoad(); err != nil {
		s.logger.Warn().Err(err).Msg("Login page load incomplete, continuing")
	}
	s.sleep(ctx, 2*time.Second)

	if err := s.fillLoginForm(page, email, password); err != nil {
		return err
	}

	if err := s.waitForSession(ctx, page); err != nil {
		return err
	}

	if err := s.saveSession(page); err != nil {
		return err
	}
	if err := s.session.SaveCredentials(email, password); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to save credentials")
	}
	return nil
}

// ManualLogin opens a visible browser on the Facebook login page and
// waits for the operator to log in by hand, then saves the session.
func (s *Scraper) ManualLogin(ctx context.Context) error {
	browser, cleanup, err := s.launch(false)
	if err != nil {
		return err
	}
	defer cleanup()

	page, err := browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		return err
	}
	defer page.Close()

	if err := s.preparePage(page, false); err != nil {
		return err
	}

	if err := page.Context(ctx).Navigate("https://www.facebook.com/"); err != nil {
		return navigationError(err)
	}

	s.logger.Info().Msg("Waiting for manual login in the browser window")
	if err := s.waitForSession(ctx, page); err != nil {
		return err
	}
	return s.saveSession(page)
}

func (s *Scraper) fillLoginForm(page *rod.Page, email, password string) error {
	emailField, err := page.Element("#email")
	if err != nil {
		return errors.New("login form not found; Facebook may have changed its layout")
	}
	if err := emailField.Input(email); err != nil {
		return err
	}
	s.sleep(context.Background(), 500*time.Millisecond)

	passField, err := page.Element("#pass")
	if err != nil {
		return errors.New("password field not found; Facebook may have changed its layout")
	}
	if err := passField.Input(password); err != nil {
		return err
	}
	s.sleep(context.Background(), 500*time.Millisecond)

	btn, err := page.Element("#loginbutton")
	if err != nil {
		return errors.New("login button not found; Facebook may have changed its layout")
	}
	return btn.Click(proto.InputMouseButtonLeft, 1)
}

// waitForSession polls for the logged-in cookie, tolerating the
// two-factor and checkpoint interstitials Facebook may route through.
func (s *Scraper) waitForSession(ctx context.Context, page *rod.Page) error {
	for attempt := 0; attempt < loginPollAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(loginPollInterval):
		}

		if info, err := page.Info(); err == nil {
			if strings.Contains(info.URL, "two_step_verification") {
				s.logger.Info().Msg("Two-factor prompt detected, waiting for completion")
				continue
			}
			if strings.Contains(info.URL, "checkpoint") {
				s.logger.Info().Msg("Security checkpoint detected, waiting for completion")
				continue
			}
		}

		cookies, err := page.Cookies(nil)
		if err != nil {
			continue
		}
		for _, c := range cookies {
			if c.Name == "c_user" {
				s.logger.Info().Msg("Login detected")
				return nil
			}
		}
	}
	return errors.New("login timed out; the session cookie never appeared")
}

// saveSession persists the page's cookies as the active session.
func (s *Scraper) saveSession(page *rod.Page) error {
	cookies, err := page.Cookies(nil)
	if err != nil {
		return err
	}

	records := make([]models.CookieRecord, 0, len(cookies))
	for _, c := range cookies {
		records = append(records, models.CookieRecord{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Secure:   c.Secure,
			HTTPOnly: c.HTTPOnly,
			Expires:  float64(c.Expires),
		})
	}
	return s.session.Save(records)
}
