// Package selector resolves logical fields to elements and commits dropdown
// selections through an ordered list of locator strategies and interaction
// fallbacks.
package selector

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"tbreport/browser"
	"tbreport/logger"
	"tbreport/match"
	"tbreport/poll"
)

// Default DevExtreme selectors for an open dropdown list.
const (
	OpenOptionsSelector = ".dx-overlay-content.dx-popup-normal:not(.dx-state-invisible) .dx-scrollview-content .dx-item.dx-list-item .dx-item-content.dx-list-item-content"
	AnyOptionsSelector  = ".dx-overlay-wrapper .dx-list-item-content"
	OpenOverlaySelector = ".dx-overlay-content.dx-popup-normal:not(.dx-state-invisible)"
)

// Options configures a Selector.
type Options struct {
	// OptionLocators find the rendered options of an open dropdown. The first
	// locator that matches anything is used for a poll round.
	OptionLocators []browser.Locator
	// OverlayLocator matches the dropdown popup while it is open.
	OverlayLocator browser.Locator
	Resolve        poll.Options
	Stability      poll.Options
	Close          poll.Options
	Interactions   []Interaction
}

// DefaultOptions targets DevExtreme select boxes.
func DefaultOptions() Options {
	return Options{
		OptionLocators: []browser.Locator{browser.ByCSS(OpenOptionsSelector), browser.ByCSS(AnyOptionsSelector)},
		OverlayLocator: browser.ByCSS(OpenOverlaySelector),
		Resolve:        poll.Options{Interval: 250 * time.Millisecond, Timeout: 10 * time.Second},
		Stability:      poll.Options{Interval: 250 * time.Millisecond, Timeout: 5 * time.Second, MinStableRounds: 2},
		Close:          poll.Options{Interval: 250 * time.Millisecond, Timeout: 5 * time.Second},
		Interactions:   DefaultInteractions(),
	}
}

// SelectionOutcome describes a committed selection.
type SelectionOutcome struct {
	Field       string        `json:"field"`
	Requested   string        `json:"requested"`
	Selected    string        `json:"selected"`
	Kind        match.Kind    `json:"kind"`
	Index       int           `json:"index"`
	Interaction string        `json:"interaction"`
	Candidates  int           `json:"candidates"`
	Duration    time.Duration `json:"duration"`
}

// Selector operates fields on one page. It holds no UI state between calls.
type Selector struct {
	page browser.Page
	log  logger.Logger
	opts Options
}

// New returns a Selector. Zero-valued option fields fall back to DefaultOptions.
func New(page browser.Page, log logger.Logger, opts Options) *Selector {
	def := DefaultOptions()
	if len(opts.OptionLocators) == 0 {
		opts.OptionLocators = def.OptionLocators
	}
	if opts.OverlayLocator.Strategy == "" {
		opts.OverlayLocator = def.OverlayLocator
	}
	if len(opts.Interactions) == 0 {
		opts.Interactions = def.Interactions
	}
	opts.Resolve = withDefaults(opts.Resolve, def.Resolve)
	opts.Stability = withDefaults(opts.Stability, def.Stability)
	opts.Close = withDefaults(opts.Close, def.Close)
	if log == nil {
		log = logger.NewNop()
	}
	return &Selector{page: page, log: log, opts: opts}
}

func withDefaults(o, def poll.Options) poll.Options {
	if o.Interval <= 0 {
		o.Interval = def.Interval
	}
	if o.Timeout <= 0 {
		o.Timeout = def.Timeout
	}
	if o.MinStableRounds <= 0 {
		o.MinStableRounds = def.MinStableRounds
	}
	return o
}

// Page returns the page the selector drives.
func (s *Selector) Page() browser.Page { return s.page }

// ResolveField returns the element of the first strategy, in declared order, that
// matches exactly one visible and enabled element. The strategy list is retried
// until the resolve budget runs out.
func (s *Selector) ResolveField(ctx context.Context, d FieldDescriptor) (browser.Element, error) {
	if err := d.Validate(); err != nil {
		return nil, &Error{Kind: ErrFieldNotFound, Op: "resolve", Field: d.Name, Err: err}
	}

	locs := d.locators()
	var (
		found    browser.Element
		attempts []Attempt
	)
	err := poll.Until(ctx, "field "+d.Name, s.opts.Resolve, func(ctx context.Context) (bool, error) {
		var round []Attempt
		defer func() {
			// a round cut short by the deadline says nothing about the strategies
			if ctx.Err() == nil {
				attempts = round
			}
		}()
		for i, loc := range locs {
			el, err := s.resolveOne(ctx, loc)
			if err != nil {
				round = append(round, Attempt{Mechanism: loc.String(), Err: err})
				continue
			}
			s.log.Debug("field resolved",
				logger.String("field", d.Name),
				logger.Int("strategy", i),
				logger.String("locator", loc.String()))
			found = el
			return true, nil
		}
		return false, nil
	})
	if err != nil {
		return nil, &Error{Kind: ErrFieldNotFound, Op: "resolve", Field: d.Name, Attempts: attempts, Err: err}
	}
	return found, nil
}

var (
	errNoMatch   = errors.New("no element")
	errAmbiguous = errors.New("ambiguous")
)

func (s *Selector) resolveOne(ctx context.Context, loc browser.Locator) (browser.Element, error) {
	els, err := s.page.Locate(ctx, loc)
	if err != nil {
		return nil, err
	}
	if len(els) == 0 {
		return nil, errNoMatch
	}
	var usable []browser.Element
	for _, el := range els {
		if ok, err := el.Visible(ctx); err != nil || !ok {
			continue
		}
		if ok, err := el.Enabled(ctx); err != nil || !ok {
			continue
		}
		usable = append(usable, el)
	}
	switch len(usable) {
	case 1:
		return usable[0], nil
	case 0:
		return nil, fmt.Errorf("%w: %d matched, none visible and enabled", errNoMatch, len(els))
	default:
		return nil, fmt.Errorf("%w: %d visible matches", errAmbiguous, len(usable))
	}
}

// Activate resolves d and clicks it through the interaction fallbacks.
func (s *Selector) Activate(ctx context.Context, d FieldDescriptor) (string, error) {
	el, err := s.ResolveField(ctx, d)
	if err != nil {
		return "", err
	}
	if d.Special == SpecialScroll {
		_ = el.ScrollIntoView(ctx)
	}
	used, attempts, err := activate(ctx, s.page, el, s.opts.Interactions)
	s.logAttempts(d.Name, attempts)
	if err != nil {
		return "", &Error{Kind: ErrInteractionFailed, Op: "activate", Field: d.Name, Attempts: attempts, Err: err}
	}
	return used, nil
}

type optionHandle struct {
	match.OptionCandidate
	el browser.Element
}

// SelectOption opens d, waits for its option list to settle, picks the best match
// for value and commits it, then waits for the popup to close.
func (s *Selector) SelectOption(ctx context.Context, d FieldDescriptor, value string) (SelectionOutcome, error) {
	start := time.Now()
	fail := func(kind error, op string, err error) (SelectionOutcome, error) {
		return SelectionOutcome{}, &Error{Kind: kind, Op: op, Field: d.Name, Value: value, Err: err}
	}

	el, err := s.ResolveField(ctx, d)
	if err != nil {
		var se *Error
		if errors.As(err, &se) {
			se.Op, se.Value = "select", value
		}
		return SelectionOutcome{}, err
	}
	if d.Special == SpecialScroll {
		_ = el.ScrollIntoView(ctx)
	}
	_, attempts, err := activate(ctx, s.page, el, s.opts.Interactions)
	s.logAttempts(d.Name, attempts)
	if err != nil {
		return SelectionOutcome{}, &Error{Kind: ErrInteractionFailed, Op: "open", Field: d.Name, Value: value, Attempts: attempts, Err: err}
	}

	handles, err := poll.WaitForStable(ctx, s.fetchOptions, s.opts.Stability)
	if err != nil {
		return fail(poll.ErrStabilityTimeout, "select", err)
	}

	candidates := make([]match.OptionCandidate, len(handles))
	for i, h := range handles {
		candidates[i] = h.OptionCandidate
	}
	res := match.Match(candidates, value)
	if !res.Found() {
		s.log.Warn("option not found",
			logger.String("field", d.Name),
			logger.String("value", value),
			logger.Strings("candidates", match.Texts(candidates)))
		return SelectionOutcome{}, &Error{Kind: ErrOptionNotFound, Op: "select", Field: d.Name, Value: value, Candidates: match.Texts(candidates)}
	}

	target := handles[res.Candidate.Index].el
	used, attempts, err := activate(ctx, s.page, target, s.opts.Interactions)
	s.logAttempts(d.Name, attempts)
	if err != nil {
		return SelectionOutcome{}, &Error{
			Kind: ErrInteractionFailed, Op: "select", Field: d.Name, Value: value,
			Candidates: match.Texts(candidates), Attempts: attempts, Err: err,
		}
	}

	err = poll.Until(ctx, "overlay closed", s.opts.Close, func(ctx context.Context) (bool, error) {
		open, err := browser.AnyVisible(ctx, s.page, s.opts.OverlayLocator)
		return !open, err
	})
	if err != nil {
		return fail(poll.ErrStabilityTimeout, "commit", err)
	}

	out := SelectionOutcome{
		Field:       d.Name,
		Requested:   value,
		Selected:    res.Candidate.Text,
		Kind:        res.Kind,
		Index:       res.Candidate.Index,
		Interaction: used,
		Candidates:  len(candidates),
		Duration:    time.Since(start),
	}
	s.log.Info("option selected",
		logger.String("field", out.Field),
		logger.String("value", out.Requested),
		logger.String("selected", out.Selected),
		logger.String("kind", out.Kind.String()),
		logger.String("interaction", out.Interaction))
	return out, nil
}

// fetchOptions reads the options of the open dropdown using the first option
// locator that matches anything.
func (s *Selector) fetchOptions(ctx context.Context) ([]optionHandle, error) {
	for _, loc := range s.opts.OptionLocators {
		els, err := s.page.Locate(ctx, loc)
		if err != nil {
			return nil, err
		}
		if len(els) == 0 {
			continue
		}
		out := make([]optionHandle, 0, len(els))
		for i, el := range els {
			text, err := el.Text(ctx)
			if err != nil {
				return nil, err
			}
			visible, err := el.Visible(ctx)
			if err != nil {
				return nil, err
			}
			out = append(out, optionHandle{
				OptionCandidate: match.OptionCandidate{Text: strings.TrimSpace(text), Index: i, Visible: visible},
				el:              el,
			})
		}
		return out, nil
	}
	return nil, nil
}

func (s *Selector) logAttempts(field string, attempts []Attempt) {
	for _, a := range attempts {
		s.log.Warn("interaction failed",
			logger.String("field", field),
			logger.String("mechanism", a.Mechanism),
			logger.Error(a.Err))
	}
}
