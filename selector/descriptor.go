package selector

import (
	"errors"
	"fmt"
	"strings"

	"tbreport/browser"
)

// ErrInvalidDescriptor is returned for descriptors that cannot be resolved at all.
var ErrInvalidDescriptor = errors.New("invalid field descriptor")

// Special marks a field that needs handling beyond its locators.
type Special string

const (
	SpecialNone Special = ""
	// SpecialPartialLabel matches label strategies by containment, for labels the
	// application renders with extra text around the field name.
	SpecialPartialLabel Special = "partial-label"
	// SpecialScroll scrolls the resolved element into view before opening it.
	SpecialScroll Special = "scroll"
)

// FieldDescriptor names a logical field and the ordered ways of finding it.
type FieldDescriptor struct {
	Name       string            `yaml:"name" json:"name"`
	Strategies []browser.Locator `yaml:"strategies" json:"strategies"`
	Special    Special           `yaml:"special,omitempty" json:"special,omitempty"`
}

// Field is a convenience constructor.
func Field(name string, strategies ...browser.Locator) FieldDescriptor {
	return FieldDescriptor{Name: name, Strategies: strategies}
}

// WithSpecial returns a copy of d flagged with s.
func (d FieldDescriptor) WithSpecial(s Special) FieldDescriptor {
	d.Strategies = append([]browser.Locator(nil), d.Strategies...)
	d.Special = s
	return d
}

// Validate checks the name, the strategy list and every locator.
func (d FieldDescriptor) Validate() error {
	if strings.TrimSpace(d.Name) == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidDescriptor)
	}
	if len(d.Strategies) == 0 {
		return fmt.Errorf("%w: %s: no locator strategies", ErrInvalidDescriptor, d.Name)
	}
	switch d.Special {
	case SpecialNone, SpecialPartialLabel, SpecialScroll:
	default:
		return fmt.Errorf("%w: %s: unknown special %q", ErrInvalidDescriptor, d.Name, d.Special)
	}
	for i, loc := range d.Strategies {
		if err := loc.Validate(); err != nil {
			return fmt.Errorf("%w: %s: strategy %d: %v", ErrInvalidDescriptor, d.Name, i, err)
		}
	}
	return nil
}

// locators returns the strategies in declared order with Special applied.
func (d FieldDescriptor) locators() []browser.Locator {
	out := make([]browser.Locator, len(d.Strategies))
	copy(out, d.Strategies)
	if d.Special == SpecialPartialLabel {
		for i := range out {
			if out[i].Strategy == browser.Label {
				out[i].Partial = true
			}
		}
	}
	return out
}

// Registry holds descriptors by name.
type Registry struct {
	order  []string
	fields map[string]FieldDescriptor
}

// NewRegistry validates and indexes descriptors. Later entries replace earlier
// ones with the same name but keep the original position.
func NewRegistry(ds ...FieldDescriptor) (*Registry, error) {
	r := &Registry{fields: make(map[string]FieldDescriptor, len(ds))}
	for _, d := range ds {
		if err := r.Put(d); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Put adds or replaces a descriptor.
func (r *Registry) Put(d FieldDescriptor) error {
	if err := d.Validate(); err != nil {
		return err
	}
	if _, ok := r.fields[d.Name]; !ok {
		r.order = append(r.order, d.Name)
	}
	r.fields[d.Name] = d
	return nil
}

// Get returns the descriptor named name.
func (r *Registry) Get(name string) (FieldDescriptor, bool) {
	d, ok := r.fields[name]
	return d, ok
}

// All returns the descriptors in insertion order.
func (r *Registry) All() []FieldDescriptor {
	out := make([]FieldDescriptor, 0, len(r.order))
	for _, n := range r.order {
		out = append(out, r.fields[n])
	}
	return out
}
