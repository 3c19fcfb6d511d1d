// Package browser describes the driver capability the suite consumes.
//
// Drivers (playwright-go in pwdriver, go-rod in roddriver) implement Page and
// Element; everything above them speaks only these interfaces and typed Locators.
package browser

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by drivers when a single-element operation has no target.
var ErrNotFound = errors.New("element not found")

// Box is an element's layout rectangle in CSS pixels.
type Box struct {
	X, Y, Width, Height float64
}

// Center returns the point a coordinate click aims at.
func (b Box) Center() (float64, float64) {
	return b.X + b.Width/2, b.Y + b.Height/2
}

// Empty reports a zero-area box, which cannot be clicked.
func (b Box) Empty() bool {
	return b.Width <= 0 || b.Height <= 0
}

// Element is one rendered node.
type Element interface {
	Text(ctx context.Context) (string, error)
	Value(ctx context.Context) (string, error)
	HTML(ctx context.Context) (string, error)
	Visible(ctx context.Context) (bool, error)
	Enabled(ctx context.Context) (bool, error)
	Click(ctx context.Context) error
	// DispatchClick fires a synthetic click without pointer actionability checks.
	DispatchClick(ctx context.Context) error
	BoundingBox(ctx context.Context) (Box, error)
	ScrollIntoView(ctx context.Context) error
	Fill(ctx context.Context, value string) error
	Type(ctx context.Context, text string, delay time.Duration) error
	Press(ctx context.Context, key string) error
}

// Page is one browser tab.
type Page interface {
	Goto(ctx context.Context, url string) error
	URL() string
	Title(ctx context.Context) (string, error)
	// Locate returns every element the locator currently matches, in document order.
	Locate(ctx context.Context, loc Locator) ([]Element, error)
	Press(ctx context.Context, key string) error
	MouseClick(ctx context.Context, x, y float64) error
	Screenshot(ctx context.Context, path string) error
}

// Session owns a page and the browser behind it.
type Session interface {
	Page() Page
	Close() error
}

// First returns the first match of loc or ErrNotFound.
func First(ctx context.Context, p Page, loc Locator) (Element, error) {
	els, err := p.Locate(ctx, loc)
	if err != nil {
		return nil, err
	}
	if len(els) == 0 {
		return nil, ErrNotFound
	}
	return els[0], nil
}

// FirstVisible returns the first visible match of loc, or nil when none is visible.
func FirstVisible(ctx context.Context, p Page, loc Locator) (Element, error) {
	els, err := p.Locate(ctx, loc)
	if err != nil {
		return nil, err
	}
	for _, el := range els {
		ok, err := el.Visible(ctx)
		if err != nil {
			continue
		}
		if ok {
			return el, nil
		}
	}
	return nil, nil
}

// AnyVisible reports whether at least one match of loc is visible.
func AnyVisible(ctx context.Context, p Page, loc Locator) (bool, error) {
	el, err := FirstVisible(ctx, p, loc)
	return el != nil, err
}
