// Package pwdriver implements browser.Page on playwright-go.
package pwdriver

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	pw "github.com/playwright-community/playwright-go"

	"tbreport/browser"
	"tbreport/config"
	"tbreport/logger"
)

var installOnce sync.Once

// Session is a launched Chromium with one page.
type Session struct {
	pw      *pw.Playwright
	browser pw.Browser
	page    *Page
}

// Launch starts Playwright and Chromium and opens a page sized per cfg. The
// driver is installed on first use.
func Launch(ctx context.Context, cfg config.BrowserConfig, log logger.Logger) (*Session, error) {
	if log == nil {
		log = logger.NewNop()
	}
	installOnce.Do(func() {
		if err := pw.Install(&pw.RunOptions{Browsers: []string{"chromium"}}); err != nil {
			log.Warn("playwright install", logger.Error(err))
		}
	})
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	inst, err := pw.Run()
	if err != nil {
		return nil, fmt.Errorf("failed to start playwright: %w", err)
	}

	opts := pw.BrowserTypeLaunchOptions{Headless: pw.Bool(cfg.Headless)}
	if cfg.SlowMo > 0 {
		opts.SlowMo = pw.Float(float64(cfg.SlowMo.Milliseconds()))
	}
	if path := executablePath(); path != "" {
		opts.ExecutablePath = &path
		log.Info("using browser executable", logger.String("path", path))
	}
	b, err := inst.Chromium.Launch(opts)
	if err != nil {
		_ = inst.Stop()
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	pageOpts := pw.BrowserNewPageOptions{}
	if cfg.Width > 0 && cfg.Height > 0 {
		pageOpts.Viewport = &pw.Size{Width: cfg.Width, Height: cfg.Height}
	}
	p, err := b.NewPage(pageOpts)
	if err != nil {
		_ = b.Close()
		_ = inst.Stop()
		return nil, fmt.Errorf("failed to create page: %w", err)
	}
	if cfg.ActionTimeout > 0 {
		p.SetDefaultTimeout(float64(cfg.ActionTimeout.Milliseconds()))
	}
	if cfg.NavigationTimeout > 0 {
		p.SetDefaultNavigationTimeout(float64(cfg.NavigationTimeout.Milliseconds()))
	}
	return &Session{pw: inst, browser: b, page: &Page{p: p}}, nil
}

// executablePath honours PLAYWRIGHT_EXECUTABLE_PATH and otherwise looks for a
// system Chromium.
func executablePath() string {
	if p := os.Getenv("PLAYWRIGHT_EXECUTABLE_PATH"); p != "" {
		return p
	}
	for _, p := range []string{
		"/usr/bin/chromium",
		"/usr/bin/google-chrome",
		"/usr/bin/chromium-browser",
	} {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

func (s *Session) Page() browser.Page { return s.page }

func (s *Session) Close() error {
	return errors.Join(s.browser.Close(), s.pw.Stop())
}

// Page wraps a playwright page.
type Page struct {
	p pw.Page
}

// timeout turns the context deadline into a playwright timeout in milliseconds.
// Without a deadline the page default applies.
func timeout(ctx context.Context) *float64 {
	dl, ok := ctx.Deadline()
	if !ok {
		return nil
	}
	ms := float64(time.Until(dl).Milliseconds())
	if ms < 1 {
		ms = 1
	}
	return &ms
}

func (p *Page) Goto(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := p.p.Goto(url, pw.PageGotoOptions{
		WaitUntil: pw.WaitUntilStateLoad,
		Timeout:   timeout(ctx),
	})
	if err != nil {
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	return nil
}

func (p *Page) URL() string { return p.p.URL() }

func (p *Page) Title(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return p.p.Title()
}

func (p *Page) locator(q browser.Query) pw.Locator {
	switch q.Kind {
	case browser.QueryXPath:
		return p.p.Locator("xpath=" + q.Expr)
	case browser.QueryRole:
		opts := pw.PageGetByRoleOptions{}
		if q.Name != "" {
			opts.Name = q.Name
			opts.Exact = pw.Bool(q.Exact)
		}
		return p.p.GetByRole(pw.AriaRole(q.Role), opts)
	default:
		if q.HasText != "" {
			return p.p.Locator(q.Expr, pw.PageLocatorOptions{HasText: q.HasText})
		}
		return p.p.Locator(q.Expr)
	}
}

func (p *Page) Locate(ctx context.Context, loc browser.Locator) ([]browser.Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	q, err := loc.Compile()
	if err != nil {
		return nil, err
	}
	all, err := p.locator(q).All()
	if err != nil {
		return nil, fmt.Errorf("locate %s: %w", q, err)
	}
	out := make([]browser.Element, len(all))
	for i, l := range all {
		out[i] = &Element{l: l}
	}
	return out, nil
}

func (p *Page) Press(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return p.p.Keyboard().Press(key)
}

func (p *Page) MouseClick(ctx context.Context, x, y float64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return p.p.Mouse().Click(x, y)
}

func (p *Page) Screenshot(ctx context.Context, path string) error {
	_, err := p.p.Screenshot(pw.PageScreenshotOptions{
		Path:     &path,
		FullPage: pw.Bool(true),
		Timeout:  timeout(ctx),
	})
	return err
}

// Element wraps a locator pinned to one match.
type Element struct {
	l pw.Locator
}

func (e *Element) Text(ctx context.Context) (string, error) {
	return e.l.InnerText(pw.LocatorInnerTextOptions{Timeout: timeout(ctx)})
}

func (e *Element) Value(ctx context.Context) (string, error) {
	return e.l.InputValue(pw.LocatorInputValueOptions{Timeout: timeout(ctx)})
}

func (e *Element) HTML(ctx context.Context) (string, error) {
	v, err := e.l.Evaluate("el => el.outerHTML", nil, pw.LocatorEvaluateOptions{Timeout: timeout(ctx)})
	if err != nil {
		return "", err
	}
	s, _ := v.(string)
	return s, nil
}

func (e *Element) Visible(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	return e.l.IsVisible()
}

func (e *Element) Enabled(ctx context.Context) (bool, error) {
	return e.l.IsEnabled(pw.LocatorIsEnabledOptions{Timeout: timeout(ctx)})
}

func (e *Element) Click(ctx context.Context) error {
	return e.l.Click(pw.LocatorClickOptions{Timeout: timeout(ctx)})
}

func (e *Element) DispatchClick(ctx context.Context) error {
	return e.l.DispatchEvent("click", nil, pw.LocatorDispatchEventOptions{Timeout: timeout(ctx)})
}

func (e *Element) BoundingBox(ctx context.Context) (browser.Box, error) {
	r, err := e.l.BoundingBox(pw.LocatorBoundingBoxOptions{Timeout: timeout(ctx)})
	if err != nil {
		return browser.Box{}, err
	}
	if r == nil {
		return browser.Box{}, browser.ErrNotFound
	}
	return browser.Box{X: r.X, Y: r.Y, Width: r.Width, Height: r.Height}, nil
}

func (e *Element) ScrollIntoView(ctx context.Context) error {
	return e.l.ScrollIntoViewIfNeeded(pw.LocatorScrollIntoViewIfNeededOptions{Timeout: timeout(ctx)})
}

func (e *Element) Fill(ctx context.Context, value string) error {
	return e.l.Fill(value, pw.LocatorFillOptions{Timeout: timeout(ctx)})
}

func (e *Element) Type(ctx context.Context, text string, delay time.Duration) error {
	return e.l.PressSequentially(text, pw.LocatorPressSequentiallyOptions{
		Delay:   pw.Float(float64(delay.Milliseconds())),
		Timeout: timeout(ctx),
	})
}

func (e *Element) Press(ctx context.Context, key string) error {
	return e.l.Press(key, pw.LocatorPressOptions{Timeout: timeout(ctx)})
}

var (
	_ browser.Session = (*Session)(nil)
	_ browser.Page    = (*Page)(nil)
	_ browser.Element = (*Element)(nil)
)
