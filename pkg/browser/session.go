// Package browser manages the single Chrome session shared by all UI
// assertions in a run.
package browser

import (
	"context"
	"regexp"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Config holds browser configuration.
type Config struct {
	Headless   bool
	NavTimeout time.Duration
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Headless:   true,
		NavTimeout: 30 * time.Second,
	}
}

// Session owns a launched Chrome and one page reused for every navigation.
// The session persists across UI assertions; each assertion gets a fresh
// navigation.
type Session struct {
	cfg      Config
	launcher *launcher.Launcher
	browser  *rod.Browser
	page     *rod.Page
}

// NewSession launches Chrome and opens a blank page. The caller owns the
// session and must Close it.
func NewSession(cfg Config) (*Session, error) {
	if cfg.NavTimeout <= 0 {
		cfg.NavTimeout = 30 * time.Second
	}

	l := launcher.New().Headless(cfg.Headless)
	controlURL, err := l.Launch()
	if err != nil {
		return nil, eris.Wrap(err, "browser: launch chrome")
	}

	b := rod.New().ControlURL(controlURL)
	if err := b.Connect(); err != nil {
		l.Cleanup()
		return nil, eris.Wrap(err, "browser: connect")
	}

	page, err := b.Page(proto.TargetCreateTarget{})
	if err != nil {
		_ = b.Close()
		l.Cleanup()
		return nil, eris.Wrap(err, "browser: open page")
	}

	zap.L().Info("browser session started", zap.Bool("headless", cfg.Headless))
	return &Session{cfg: cfg, launcher: l, browser: b, page: page}, nil
}

// Visit navigates the shared page to url and waits for the load event.
func (s *Session) Visit(ctx context.Context, url string) error {
	page := s.page.Context(ctx).Timeout(s.cfg.NavTimeout)
	if err := page.Navigate(url); err != nil {
		return eris.Wrap(err, "browser: navigate")
	}
	if err := page.WaitLoad(); err != nil {
		return eris.Wrap(err, "browser: wait load")
	}
	return nil
}

// Text returns the rendered text content of the current page body.
func (s *Session) Text(ctx context.Context) (string, error) {
	page := s.page.Context(ctx).Timeout(s.cfg.NavTimeout)
	el, err := page.Element("body")
	if err != nil {
		return "", eris.Wrap(err, "browser: find body")
	}
	text, err := el.Text()
	if err != nil {
		return "", eris.Wrap(err, "browser: read body text")
	}
	return text, nil
}

// ClickText clicks the first clickable element whose text matches the given
// label.
func (s *Session) ClickText(ctx context.Context, label string) error {
	page := s.page.Context(ctx).Timeout(s.cfg.NavTimeout)
	el, err := page.ElementR(`button, a, [role="button"], input[type="submit"]`, "/"+regexp.QuoteMeta(label)+"/i")
	if err != nil {
		return eris.Wrapf(err, "browser: element %q not found", label)
	}
	if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return eris.Wrapf(err, "browser: click %q", label)
	}
	return nil
}

// Close tears down the page, the browser, and the launched Chrome process.
// Always safe to call once, on every exit path.
func (s *Session) Close() error {
	var firstErr error
	if s.page != nil {
		if err := s.page.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if s.browser != nil {
		if err := s.browser.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if s.launcher != nil {
		s.launcher.Cleanup()
	}
	zap.L().Info("browser session closed")
	if firstErr != nil {
		return eris.Wrap(firstErr, "browser: close")
	}
	return nil
}
