// Package randdata produces the throwaway values the barrier form is filled with.
package randdata

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
)

// ErrEmpty is returned when picking from an empty list.
var ErrEmpty = errors.New("cannot pick from an empty list")

var words = []string{
	"test", "auto", "random", "text", "word", "data", "input", "field", "form", "value",
	"content", "sample", "example", "entry", "info", "note", "detail", "item", "record", "case",
}

// Generator draws values from its own source so runs can be replayed from a seed.
// A Generator is not safe for concurrent use.
type Generator struct {
	r *rand.Rand
}

// New returns a Generator seeded with seed.
func New(seed uint64) *Generator {
	return &Generator{r: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// Item returns a random element of items.
func Item[T any](g *Generator, items []T) (T, error) {
	var zero T
	if len(items) == 0 {
		return zero, ErrEmpty
	}
	return items[g.r.IntN(len(items))], nil
}

// Int returns a number in [lo, hi].
func (g *Generator) Int(lo, hi int) (int, error) {
	if lo > hi {
		return 0, fmt.Errorf("min %d is greater than max %d", lo, hi)
	}
	return lo + g.r.IntN(hi-lo+1), nil
}

// Text returns n space-separated filler words.
func (g *Generator) Text(n int) string {
	if n <= 0 {
		return ""
	}
	out := make([]string, n)
	for i := range out {
		out[i] = words[g.r.IntN(len(words))]
	}
	return strings.Join(out, " ")
}

// Phone returns a digit string of the given length starting with prefix.
func (g *Generator) Phone(length int, prefix string) (string, error) {
	if strings.Trim(prefix, "0123456789") != "" {
		return "", fmt.Errorf("phone prefix %q is not numeric", prefix)
	}
	if length < len(prefix) {
		return "", fmt.Errorf("phone length %d is shorter than prefix %q", length, prefix)
	}
	var b strings.Builder
	b.WriteString(prefix)
	for b.Len() < length {
		b.WriteByte(byte('0' + g.r.IntN(10)))
	}
	return b.String(), nil
}
