// Package browsertest provides an in-memory browser.Page for tests.
//
// Locators are registered against the page by their compiled query; unregistered
// locators match nothing. Elements record the interactions made on them and can
// run hooks that mutate page state, which is how tests model an overlay opening
// or closing.
package browsertest

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"tbreport/browser"
)

// Page is a scripted browser.Page.
type Page struct {
	mu       sync.Mutex
	url      string
	title    string
	matches  map[string]func() []*Element
	keys     []string
	clicks   []browser.Box
	shots    []string
	visits   []string
	GotoErr  error
	MouseErr error
	// OnMouse runs after every successful MouseClick.
	OnMouse func(x, y float64)
}

// NewPage returns an empty page.
func NewPage() *Page {
	return &Page{matches: map[string]func() []*Element{}}
}

func key(loc browser.Locator) string {
	q, err := loc.Compile()
	if err != nil {
		return "invalid:" + string(loc.Strategy)
	}
	return q.String()
}

// Set registers a static result for loc. With no elements, loc matches nothing.
func (p *Page) Set(loc browser.Locator, els ...*Element) {
	p.SetFunc(loc, func() []*Element { return els })
}

// SetFunc registers a result computed on every lookup.
func (p *Page) SetFunc(loc browser.Locator, fn func() []*Element) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.matches[key(loc)] = fn
}

// SetTitle sets the document title.
func (p *Page) SetTitle(title string) {
	p.mu.Lock()
	p.title = title
	p.mu.Unlock()
}

func (p *Page) Goto(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.visits = append(p.visits, url)
	if p.GotoErr != nil {
		return p.GotoErr
	}
	p.url = url
	return nil
}

func (p *Page) URL() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.url
}

func (p *Page) Title(context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.title, nil
}

func (p *Page) Locate(ctx context.Context, loc browser.Locator) ([]browser.Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := loc.Validate(); err != nil {
		return nil, err
	}
	p.mu.Lock()
	fn, ok := p.matches[key(loc)]
	p.mu.Unlock()
	if !ok {
		return nil, nil
	}
	found := fn()
	out := make([]browser.Element, 0, len(found))
	for _, el := range found {
		out = append(out, el)
	}
	return out, nil
}

func (p *Page) Press(_ context.Context, k string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.keys = append(p.keys, k)
	return nil
}

func (p *Page) MouseClick(_ context.Context, x, y float64) error {
	p.mu.Lock()
	if p.MouseErr != nil {
		p.mu.Unlock()
		return p.MouseErr
	}
	p.clicks = append(p.clicks, browser.Box{X: x, Y: y})
	hook := p.OnMouse
	p.mu.Unlock()
	if hook != nil {
		hook(x, y)
	}
	return nil
}

func (p *Page) Screenshot(_ context.Context, path string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.shots = append(p.shots, path)
	return nil
}

// Keys returns the keys pressed on the page.
func (p *Page) Keys() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.keys...)
}

// MouseClicks returns the coordinates clicked with the mouse.
func (p *Page) MouseClicks() []browser.Box {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]browser.Box(nil), p.clicks...)
}

// Screenshots returns the paths passed to Screenshot.
func (p *Page) Screenshots() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.shots...)
}

// Visits returns every URL passed to Goto.
func (p *Page) Visits() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.visits...)
}

// Element is a scripted browser.Element.
type Element struct {
	mu sync.Mutex

	Label    string
	Input    string
	Markup   string
	Hidden   bool
	Disabled bool
	Box      browser.Box

	ClickErr    error
	DispatchErr error
	FillErr     error

	// OnClick runs after a successful direct or programmatic click.
	OnClick func()

	clicks, dispatches int
	pressed            []string
	selected           bool
}

// ErrNotInteractable mimics a driver refusing to click a covered element.
var ErrNotInteractable = errors.New("element is not interactable")

// NewElement returns a visible element with text label and a 100x20 box.
func NewElement(label string) *Element {
	return &Element{Label: label, Box: browser.Box{X: 10, Y: 10, Width: 100, Height: 20}}
}

// Hide marks the element hidden.
func (e *Element) Hide() *Element {
	e.mu.Lock()
	e.Hidden = true
	e.mu.Unlock()
	return e
}

// SetHidden toggles visibility.
func (e *Element) SetHidden(hidden bool) {
	e.mu.Lock()
	e.Hidden = hidden
	e.mu.Unlock()
}

func (e *Element) Text(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.Label, nil
}

func (e *Element) Value(context.Context) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.Input, nil
}

func (e *Element) HTML(context.Context) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.Markup, nil
}

func (e *Element) Visible(context.Context) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return !e.Hidden, nil
}

func (e *Element) Enabled(context.Context) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return !e.Disabled, nil
}

func (e *Element) Click(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	e.mu.Lock()
	if e.ClickErr != nil {
		err := e.ClickErr
		e.mu.Unlock()
		return err
	}
	if e.Hidden {
		e.mu.Unlock()
		return ErrNotInteractable
	}
	e.clicks++
	hook := e.OnClick
	e.mu.Unlock()
	if hook != nil {
		hook()
	}
	return nil
}

func (e *Element) DispatchClick(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	e.mu.Lock()
	if e.DispatchErr != nil {
		err := e.DispatchErr
		e.mu.Unlock()
		return err
	}
	e.dispatches++
	hook := e.OnClick
	e.mu.Unlock()
	if hook != nil {
		hook()
	}
	return nil
}

func (e *Element) BoundingBox(context.Context) (browser.Box, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.Hidden {
		return browser.Box{}, nil
	}
	return e.Box, nil
}

func (e *Element) ScrollIntoView(context.Context) error { return nil }

func (e *Element) Fill(_ context.Context, value string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.FillErr != nil {
		return e.FillErr
	}
	e.Input = value
	return nil
}

func (e *Element) Type(ctx context.Context, text string, _ time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.Input += text
	return nil
}

func (e *Element) Press(_ context.Context, k string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.pressed = append(e.pressed, k)
	switch {
	case strings.EqualFold(k, "Control+a"), strings.EqualFold(k, "Meta+a"):
		e.selected = true
	case k == "Backspace" || k == "Delete":
		if e.selected {
			e.Input = ""
			e.selected = false
		} else if e.Input != "" {
			r := []rune(e.Input)
			e.Input = string(r[:len(r)-1])
		}
	}
	return nil
}

// Clicks counts successful direct clicks.
func (e *Element) Clicks() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.clicks
}

// Dispatches counts successful programmatic clicks.
func (e *Element) Dispatches() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.dispatches
}

// Pressed returns the keys pressed on the element.
func (e *Element) Pressed() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.pressed...)
}

// Elements builds visible elements from labels.
func Elements(labels ...string) []*Element {
	out := make([]*Element, len(labels))
	for i, l := range labels {
		out[i] = NewElement(l)
	}
	return out
}
