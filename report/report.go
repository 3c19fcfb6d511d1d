// Package report checks that a scraped report grid contains a row matching the
// filters applied to it.
package report

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"tbreport/logger"
	"tbreport/textnorm"
)

var (
	// ErrMalformedRow marks a row whose cell count differs from the header count.
	// Such rows are logged and skipped, never returned to callers of Verify.
	ErrMalformedRow = errors.New("malformed row")
	// ErrInvalidCriteria is returned by CheckCriteria for values outside the vocabulary.
	ErrInvalidCriteria = errors.New("invalid criteria")
)

// DateLayout is the MM/DD/YYYY form the report panel renders dates in.
const DateLayout = "01/02/2006"

// GridRow holds one row's cells in header order.
type GridRow []string

// FilterCriteria maps a logical column key to the substring expected in it.
type FilterCriteria map[string]string

// FormatDate renders t the way date criteria are compared.
func FormatDate(t time.Time) string { return t.Format(DateLayout) }

// Verification explains a Verify result.
type Verification struct {
	Matched      bool           `json:"matched"`
	Columns      map[string]int `json:"columns"`
	Ignored      []string       `json:"ignored,omitempty"`
	Malformed    int            `json:"malformed"`
	MatchingRows []int          `json:"matching_rows,omitempty"`
}

// Verifier resolves criteria keys to columns and scans rows.
type Verifier struct {
	log     logger.Logger
	aliases map[string]string
}

// NewVerifier returns a Verifier. aliases maps a criteria key to the header
// substring used for it. Keys are compared with case and spacing folded, so
// "typeOfUser" finds a "Type of User" column without an alias.
func NewVerifier(log logger.Logger, aliases map[string]string) *Verifier {
	if log == nil {
		log = logger.NewNop()
	}
	return &Verifier{log: log, aliases: aliases}
}

// Verify reports whether at least one well-formed row satisfies every criterion
// that resolves to a column.
func Verify(rows []GridRow, headers []string, criteria FilterCriteria) bool {
	return NewVerifier(nil, nil).Verify(rows, headers, criteria)
}

// Verify reports whether at least one well-formed row satisfies every criterion
// that resolves to a column.
func (v *Verifier) Verify(rows []GridRow, headers []string, criteria FilterCriteria) bool {
	return v.Explain(rows, headers, criteria).Matched
}

// Explain runs the verification and returns how each criterion was resolved.
func (v *Verifier) Explain(rows []GridRow, headers []string, criteria FilterCriteria) Verification {
	res := Verification{Columns: map[string]int{}}

	type check struct {
		col  int
		want string
	}
	var checks []check
	for _, key := range sortedKeys(criteria) {
		want := textnorm.Normalize(criteria[key])
		if want == "" {
			continue
		}
		col := v.Column(headers, key)
		if col < 0 {
			res.Ignored = append(res.Ignored, key)
			continue
		}
		res.Columns[key] = col
		checks = append(checks, check{col: col, want: want})
	}

	for i, row := range rows {
		if err := checkRow(row, headers); err != nil {
			res.Malformed++
			v.log.Warn("skipping grid row", logger.Int("row", i), logger.Error(err))
			continue
		}
		ok := true
		for _, c := range checks {
			if !strings.Contains(textnorm.Normalize(row[c.col]), c.want) {
				ok = false
				break
			}
		}
		if ok {
			res.MatchingRows = append(res.MatchingRows, i)
		}
	}
	res.Matched = len(res.MatchingRows) > 0

	if len(res.Ignored) > 0 {
		v.log.Debug("criteria without a column", logger.Strings("keys", res.Ignored))
	}
	return res
}

// Column returns the index of the first header containing the text of key, or -1.
func (v *Verifier) Column(headers []string, key string) int {
	term := key
	if alias, ok := v.aliases[key]; ok && alias != "" {
		term = alias
	}
	want := textnorm.Fold(term)
	if want == "" {
		return -1
	}
	for i, h := range headers {
		if strings.Contains(textnorm.Fold(h), want) {
			return i
		}
	}
	return -1
}

// CheckCriteria rejects values that no entry of the key's vocabulary contains.
// Keys without a vocabulary and empty values are not checked.
func CheckCriteria(criteria FilterCriteria, vocab map[string][]string) error {
	for _, key := range sortedKeys(criteria) {
		want := textnorm.Normalize(criteria[key])
		allowed := vocab[key]
		if want == "" || len(allowed) == 0 {
			continue
		}
		found := false
		for _, a := range allowed {
			if strings.Contains(textnorm.Normalize(a), want) {
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("%w: %s=%q is not one of %q", ErrInvalidCriteria, key, criteria[key], allowed)
		}
	}
	return nil
}

func checkRow(row GridRow, headers []string) error {
	if len(row) != len(headers) {
		return fmt.Errorf("%w: %d cells for %d headers", ErrMalformedRow, len(row), len(headers))
	}
	return nil
}

func sortedKeys(m FilterCriteria) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
