package selector

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrFieldNotFound means no strategy resolved to exactly one visible element.
	ErrFieldNotFound = errors.New("field not found")
	// ErrOptionNotFound means the stable candidate list had no acceptable match.
	ErrOptionNotFound = errors.New("option not found")
	// ErrInteractionFailed means every interaction mechanism failed.
	ErrInteractionFailed = errors.New("interaction failed")
)

// Attempt records one strategy or mechanism that did not work.
type Attempt struct {
	Mechanism string `json:"mechanism"`
	Err       error  `json:"-"`
}

func (a Attempt) String() string {
	if a.Err == nil {
		return a.Mechanism
	}
	return a.Mechanism + ": " + a.Err.Error()
}

// Error is returned by every Selector operation. It matches its Kind with
// errors.Is, and unwraps to the underlying cause.
type Error struct {
	Kind       error
	Op         string
	Field      string
	Value      string
	Candidates []string
	Attempts   []Attempt
	Err        error
}

func (e *Error) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %q", e.Op, e.Field)
	if e.Value != "" {
		fmt.Fprintf(&b, " value %q", e.Value)
	}
	fmt.Fprintf(&b, ": %v", e.Kind)
	if e.Candidates != nil {
		fmt.Fprintf(&b, "; candidates %q", e.Candidates)
	}
	if len(e.Attempts) > 0 {
		parts := make([]string, len(e.Attempts))
		for i, a := range e.Attempts {
			parts[i] = a.String()
		}
		fmt.Fprintf(&b, "; tried [%s]", strings.Join(parts, "; "))
	}
	if e.Err != nil && e.Err != e.Kind {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *Error) Is(target error) bool { return target == e.Kind }

func (e *Error) Unwrap() error { return e.Err }
