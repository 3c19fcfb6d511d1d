// Package pages drives the application's screens: login, language, the anonymous
// barrier form and the demographic report panel.
//
// Every element is reached through a named selector.FieldDescriptor and every wait
// goes through package poll. Flows return what they selected; they keep no state
// between calls.
package pages

import (
	"context"
	"errors"
	"fmt"
	"time"

	"tbreport/browser"
	"tbreport/config"
	"tbreport/logger"
	"tbreport/poll"
	"tbreport/randdata"
	"tbreport/selector"
)

// ErrUnknownField is returned when a flow asks for a descriptor that is not registered.
var ErrUnknownField = errors.New("unknown field")

// Env is what every page needs.
type Env struct {
	Page     browser.Page
	Selector *selector.Selector
	Fields   *selector.Registry
	Config   *config.Config
	Rand     *randdata.Generator
	Log      logger.Logger
}

// NewEnv wires a selector and the field registry for page.
func NewEnv(page browser.Page, cfg *config.Config, rnd *randdata.Generator, log logger.Logger) (Env, error) {
	if log == nil {
		log = logger.NewNop()
	}
	opts, err := cfg.SelectorOptions()
	if err != nil {
		return Env{}, err
	}
	fields, err := Fields(cfg)
	if err != nil {
		return Env{}, err
	}
	return Env{
		Page:     page,
		Selector: selector.New(page, log, opts),
		Fields:   fields,
		Config:   cfg,
		Rand:     rnd,
		Log:      log,
	}, nil
}

func (e Env) field(name string) (selector.FieldDescriptor, error) {
	d, ok := e.Fields.Get(name)
	if !ok {
		return selector.FieldDescriptor{}, fmt.Errorf("%w: %q", ErrUnknownField, name)
	}
	return d, nil
}

func (e Env) resolve(ctx context.Context, name string) (browser.Element, error) {
	d, err := e.field(name)
	if err != nil {
		return nil, err
	}
	return e.Selector.ResolveField(ctx, d)
}

func (e Env) click(ctx context.Context, name string) error {
	d, err := e.field(name)
	if err != nil {
		return err
	}
	used, err := e.Selector.Activate(ctx, d)
	if err != nil {
		return err
	}
	e.Log.Debug("clicked", logger.String("field", name), logger.String("interaction", used))
	return nil
}

func (e Env) pollOptions(timeout time.Duration) poll.Options {
	return poll.Options{Interval: e.Config.Poll.Resolve.Interval, Timeout: timeout}
}

func (e Env) waitVisible(ctx context.Context, loc browser.Locator, timeout time.Duration) error {
	return poll.Until(ctx, loc.String()+" visible", e.pollOptions(timeout), func(ctx context.Context) (bool, error) {
		return browser.AnyVisible(ctx, e.Page, loc)
	})
}

func (e Env) waitHidden(ctx context.Context, loc browser.Locator, timeout time.Duration) error {
	return poll.Until(ctx, loc.String()+" hidden", e.pollOptions(timeout), func(ctx context.Context) (bool, error) {
		visible, err := browser.AnyVisible(ctx, e.Page, loc)
		return !visible, err
	})
}

func (e Env) choose(ctx context.Context, name string, options []string) (selector.SelectionOutcome, error) {
	value, err := randdata.Item(e.Rand, options)
	if err != nil {
		return selector.SelectionOutcome{}, fmt.Errorf("choose %s: %w", name, err)
	}
	d, err := e.field(name)
	if err != nil {
		return selector.SelectionOutcome{}, err
	}
	return e.Selector.SelectOption(ctx, d, value)
}

// SetLanguage switches the interface language through the header menu.
func (e Env) SetLanguage(ctx context.Context, code string) error {
	if err := config.CheckLanguage(code); err != nil {
		return err
	}
	if err := e.click(ctx, LanguageMenu); err != nil {
		return fmt.Errorf("open language menu: %w", err)
	}
	if err := e.click(ctx, "language "+code); err != nil {
		return fmt.Errorf("pick language %s: %w", code, err)
	}
	e.Log.Info("language set", logger.String("language", code))
	return nil
}

// Title returns the document title.
func (e Env) Title(ctx context.Context) (string, error) {
	return e.Page.Title(ctx)
}
