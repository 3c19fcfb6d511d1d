// Package roddriver implements browser.Page on go-rod.
//
// Rod has no role or has-text engine, so role queries are expanded to CSS for the
// explicit and common implicit roles and filtered by an approximate accessible
// name, and has-text queries are filtered on the element's rendered text.
package roddriver

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/input"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"tbreport/browser"
	"tbreport/config"
	"tbreport/logger"
)

// Session is a rod browser with one page. An attached session does not own
// the browser and only closes its page.
type Session struct {
	launcher *launcher.Launcher
	browser  *rod.Browser
	page     *Page
	attached bool
}

// Launch starts a local Chromium, or attaches to cfg.ControlURL when set.
func Launch(ctx context.Context, cfg config.BrowserConfig, log logger.Logger) (*Session, error) {
	if log == nil {
		log = logger.NewNop()
	}
	s := &Session{attached: cfg.ControlURL != ""}
	controlURL := cfg.ControlURL
	if controlURL == "" {
		s.launcher = launcher.New().
			Headless(cfg.Headless).
			NoSandbox(true).
			Set("disable-blink-features", "AutomationControlled").
			Set("disable-dev-shm-usage")
		u, err := s.launcher.Context(ctx).Launch()
		if err != nil {
			return nil, fmt.Errorf("failed to launch browser: %w", err)
		}
		controlURL = u
	}
	log.Debug("connecting to browser", logger.String("control_url", controlURL))

	b := rod.New().ControlURL(controlURL)
	if cfg.SlowMo > 0 {
		b = b.SlowMotion(cfg.SlowMo)
	}
	if err := b.Connect(); err != nil {
		s.cleanup()
		return nil, fmt.Errorf("failed to connect to browser: %w", err)
	}
	s.browser = b

	p, err := b.Context(ctx).Page(proto.TargetCreateTarget{})
	if err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("failed to create page: %w", err)
	}
	p = p.Context(context.Background())
	if cfg.Width > 0 && cfg.Height > 0 {
		if err := p.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
			Width:             cfg.Width,
			Height:            cfg.Height,
			DeviceScaleFactor: 1,
		}); err != nil {
			log.Warn("set viewport", logger.Error(err))
		}
	}
	s.page = &Page{p: p, actionTimeout: cfg.ActionTimeout}
	return s, nil
}

func (s *Session) Page() browser.Page { return s.page }

func (s *Session) Close() error {
	if s.attached {
		if s.page == nil {
			return nil
		}
		return s.page.p.Close()
	}
	var err error
	if s.browser != nil {
		err = s.browser.Close()
	}
	s.cleanup()
	return err
}

func (s *Session) cleanup() {
	if s.launcher != nil {
		s.launcher.Kill()
		s.launcher.Cleanup()
	}
}

// Page wraps a rod page.
type Page struct {
	p             *rod.Page
	actionTimeout time.Duration
}

// with binds ctx to the page, adding the action timeout when ctx has no deadline.
func (p *Page) with(ctx context.Context) (*rod.Page, context.CancelFunc) {
	if _, ok := ctx.Deadline(); !ok && p.actionTimeout > 0 {
		ctx, cancel := context.WithTimeout(ctx, p.actionTimeout)
		return p.p.Context(ctx), cancel
	}
	return p.p.Context(ctx), func() {}
}

func (p *Page) Goto(ctx context.Context, url string) error {
	page := p.p.Context(ctx)
	if err := page.Navigate(url); err != nil {
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	return page.WaitLoad()
}

func (p *Page) URL() string {
	info, err := p.p.Info()
	if err != nil {
		return ""
	}
	return info.URL
}

func (p *Page) Title(ctx context.Context) (string, error) {
	info, err := p.p.Context(ctx).Info()
	if err != nil {
		return "", err
	}
	return info.Title, nil
}

func (p *Page) Locate(ctx context.Context, loc browser.Locator) ([]browser.Element, error) {
	q, err := loc.Compile()
	if err != nil {
		return nil, err
	}
	page, cancel := p.with(ctx)
	defer cancel()

	var found rod.Elements
	switch q.Kind {
	case browser.QueryXPath:
		found, err = page.ElementsX(q.Expr)
	case browser.QueryRole:
		found, err = page.Elements(roleSelector(q.Role))
	default:
		found, err = page.Elements(q.Expr)
	}
	if err != nil {
		return nil, fmt.Errorf("locate %s: %w", q, err)
	}

	out := make([]browser.Element, 0, len(found))
	for _, el := range found {
		keep, err := filter(el, q)
		if err != nil {
			return nil, fmt.Errorf("locate %s: %w", q, err)
		}
		if keep {
			out = append(out, &Element{el: el, page: p})
		}
	}
	return out, nil
}

var implicitRoles = map[string]string{
	"button":   `button, input[type="button"], input[type="submit"]`,
	"link":     `a[href]`,
	"combobox": `select`,
	"textbox":  `input:not([type]), input[type="text"], input[type="email"], input[type="password"], textarea`,
	"checkbox": `input[type="checkbox"]`,
}

func roleSelector(role string) string {
	sel := fmt.Sprintf(`[role=%q]`, role)
	if implicit, ok := implicitRoles[role]; ok {
		sel += ", " + implicit
	}
	return sel
}

const accessibleNameJS = `() => {
	const by = this.getAttribute('aria-labelledby');
	if (by) {
		return by.split(/\s+/).map(id => (document.getElementById(id) || {}).textContent || '').join(' ');
	}
	return this.getAttribute('aria-label')
		|| (this.labels && this.labels.length ? this.labels[0].textContent : '')
		|| this.innerText
		|| this.getAttribute('title')
		|| '';
}`

func filter(el *rod.Element, q browser.Query) (bool, error) {
	switch {
	case q.Kind == browser.QueryRole && q.Name != "":
		res, err := el.Eval(accessibleNameJS)
		if err != nil {
			return false, err
		}
		name := collapse(res.Value.Str())
		if q.Exact {
			return name == collapse(q.Name), nil
		}
		return strings.Contains(strings.ToLower(name), strings.ToLower(collapse(q.Name))), nil
	case q.HasText != "":
		text, err := el.Text()
		if err != nil {
			return false, err
		}
		return strings.Contains(strings.ToLower(collapse(text)), strings.ToLower(collapse(q.HasText))), nil
	}
	return true, nil
}

func collapse(s string) string { return strings.Join(strings.Fields(s), " ") }

func (p *Page) Press(ctx context.Context, key string) error {
	page, cancel := p.with(ctx)
	defer cancel()
	return pressKey(page, key)
}

func (p *Page) MouseClick(ctx context.Context, x, y float64) error {
	page, cancel := p.with(ctx)
	defer cancel()
	if err := page.Mouse.MoveTo(proto.Point{X: x, Y: y}); err != nil {
		return err
	}
	return page.Mouse.Click(proto.InputMouseButtonLeft, 1)
}

func (p *Page) Screenshot(ctx context.Context, path string) error {
	page, cancel := p.with(ctx)
	defer cancel()
	data, err := page.Screenshot(true, &proto.PageCaptureScreenshot{
		Format: proto.PageCaptureScreenshotFormatPng,
	})
	if err != nil {
		return fmt.Errorf("screenshot failed: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

var namedKeys = map[string]input.Key{
	"Tab":        input.Tab,
	"Enter":      input.Enter,
	"Escape":     input.Escape,
	"Backspace":  input.Backspace,
	"Delete":     input.Delete,
	"ArrowUp":    input.ArrowUp,
	"ArrowDown":  input.ArrowDown,
	"ArrowLeft":  input.ArrowLeft,
	"ArrowRight": input.ArrowRight,
	"Home":       input.Home,
	"End":        input.End,
	"Control":    input.ControlLeft,
	"Shift":      input.ShiftLeft,
	"Alt":        input.AltLeft,
	"Meta":       input.MetaLeft,
}

var errUnknownKey = errors.New("unknown key")

func parseKey(name string) (input.Key, error) {
	if k, ok := namedKeys[name]; ok {
		return k, nil
	}
	if r := []rune(name); len(r) == 1 && r[0] < 128 {
		return input.Key(r[0]), nil
	}
	return 0, fmt.Errorf("%w: %q", errUnknownKey, name)
}

// pressKey presses a playwright-style chord such as "Control+a".
func pressKey(page *rod.Page, chord string) error {
	parts := strings.Split(chord, "+")
	keys := make([]input.Key, len(parts))
	for i, part := range parts {
		k, err := parseKey(part)
		if err != nil {
			return err
		}
		keys[i] = k
	}
	mods, last := keys[:len(keys)-1], keys[len(keys)-1]
	return page.KeyActions().Press(mods...).Type(last).Release(mods...).Do()
}

// Element wraps a rod element.
type Element struct {
	el   *rod.Element
	page *Page
}

func (e *Element) with(ctx context.Context) (*rod.Element, context.CancelFunc) {
	if _, ok := ctx.Deadline(); !ok && e.page.actionTimeout > 0 {
		ctx, cancel := context.WithTimeout(ctx, e.page.actionTimeout)
		return e.el.Context(ctx), cancel
	}
	return e.el.Context(ctx), func() {}
}

func (e *Element) Text(ctx context.Context) (string, error) {
	el, cancel := e.with(ctx)
	defer cancel()
	return el.Text()
}

func (e *Element) Value(ctx context.Context) (string, error) {
	el, cancel := e.with(ctx)
	defer cancel()
	res, err := el.Eval(`() => this.value ?? ''`)
	if err != nil {
		return "", err
	}
	return res.Value.Str(), nil
}

func (e *Element) HTML(ctx context.Context) (string, error) {
	el, cancel := e.with(ctx)
	defer cancel()
	return el.HTML()
}

func (e *Element) Visible(ctx context.Context) (bool, error) {
	el, cancel := e.with(ctx)
	defer cancel()
	return el.Visible()
}

func (e *Element) Enabled(ctx context.Context) (bool, error) {
	el, cancel := e.with(ctx)
	defer cancel()
	res, err := el.Eval(`() => !this.disabled && this.getAttribute('aria-disabled') !== 'true'`)
	if err != nil {
		return false, err
	}
	return res.Value.Bool(), nil
}

func (e *Element) Click(ctx context.Context) error {
	el, cancel := e.with(ctx)
	defer cancel()
	return el.Click(proto.InputMouseButtonLeft, 1)
}

func (e *Element) DispatchClick(ctx context.Context) error {
	el, cancel := e.with(ctx)
	defer cancel()
	_, err := el.Eval(`() => this.dispatchEvent(new MouseEvent('click', {bubbles: true, cancelable: true, view: window}))`)
	return err
}

func (e *Element) BoundingBox(ctx context.Context) (browser.Box, error) {
	el, cancel := e.with(ctx)
	defer cancel()
	shape, err := el.Shape()
	if err != nil {
		return browser.Box{}, err
	}
	r := shape.Box()
	if r == nil {
		return browser.Box{}, browser.ErrNotFound
	}
	return browser.Box{X: r.X, Y: r.Y, Width: r.Width, Height: r.Height}, nil
}

func (e *Element) ScrollIntoView(ctx context.Context) error {
	el, cancel := e.with(ctx)
	defer cancel()
	return el.ScrollIntoView()
}

func (e *Element) Fill(ctx context.Context, value string) error {
	el, cancel := e.with(ctx)
	defer cancel()
	_, err := el.Eval(`(v) => {
		this.focus();
		this.value = v;
		this.dispatchEvent(new Event('input', { bubbles: true }));
		this.dispatchEvent(new Event('change', { bubbles: true }));
	}`, value)
	return err
}

func (e *Element) Type(ctx context.Context, text string, delay time.Duration) error {
	el, cancel := e.with(ctx)
	defer cancel()
	if err := el.Focus(); err != nil {
		return err
	}
	for _, r := range text {
		if err := el.Input(string(r)); err != nil {
			return err
		}
		if delay <= 0 {
			continue
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	return nil
}

func (e *Element) Press(ctx context.Context, key string) error {
	el, cancel := e.with(ctx)
	defer cancel()
	if err := el.Focus(); err != nil {
		return err
	}
	page, pcancel := e.page.with(ctx)
	defer pcancel()
	return pressKey(page, key)
}

var (
	_ browser.Session = (*Session)(nil)
	_ browser.Page    = (*Page)(nil)
	_ browser.Element = (*Element)(nil)
)
