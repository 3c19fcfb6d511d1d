package selector

import (
	"context"
	"errors"
	"fmt"

	"tbreport/browser"
)

// Interaction is one way of activating an element.
type Interaction struct {
	Name string
	Do   func(ctx context.Context, page browser.Page, el browser.Element) error
}

// DirectClick is a normal driver click with actionability checks.
var DirectClick = Interaction{
	Name: "direct",
	Do: func(ctx context.Context, _ browser.Page, el browser.Element) error {
		return el.Click(ctx)
	},
}

// ProgrammaticClick fires the element's click handler from script.
var ProgrammaticClick = Interaction{
	Name: "programmatic",
	Do: func(ctx context.Context, _ browser.Page, el browser.Element) error {
		return el.DispatchClick(ctx)
	},
}

// CoordinateClick moves the mouse to the centre of the element's box.
var CoordinateClick = Interaction{
	Name: "coordinates",
	Do: func(ctx context.Context, page browser.Page, el browser.Element) error {
		_ = el.ScrollIntoView(ctx)
		box, err := el.BoundingBox(ctx)
		if err != nil {
			return err
		}
		if box.Empty() {
			return errors.New("element has no layout box")
		}
		x, y := box.Center()
		return page.MouseClick(ctx, x, y)
	},
}

// DefaultInteractions is the fallback order used unless configured otherwise.
func DefaultInteractions() []Interaction {
	return []Interaction{DirectClick, ProgrammaticClick, CoordinateClick}
}

// InteractionsByName builds a fallback list from configured names.
func InteractionsByName(names []string) ([]Interaction, error) {
	if len(names) == 0 {
		return DefaultInteractions(), nil
	}
	known := map[string]Interaction{}
	for _, in := range DefaultInteractions() {
		known[in.Name] = in
	}
	out := make([]Interaction, 0, len(names))
	for _, n := range names {
		in, ok := known[n]
		if !ok {
			return nil, fmt.Errorf("unknown interaction %q", n)
		}
		out = append(out, in)
	}
	return out, nil
}

// activate tries each interaction in order and returns the name of the first one
// that did not fail.
func activate(ctx context.Context, page browser.Page, el browser.Element, list []Interaction) (string, []Attempt, error) {
	var attempts []Attempt
	for _, in := range list {
		if err := ctx.Err(); err != nil {
			return "", attempts, err
		}
		err := in.Do(ctx, page, el)
		if err == nil {
			return in.Name, attempts, nil
		}
		attempts = append(attempts, Attempt{Mechanism: in.Name, Err: err})
	}
	return "", attempts, ErrInteractionFailed
}
