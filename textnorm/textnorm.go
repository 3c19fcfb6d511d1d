// Package textnorm folds option and cell text into a comparable form.
package textnorm

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Normalize trims, collapses whitespace, case-folds and strips diacritics.
// It never fails; Normalize(Normalize(s)) == Normalize(s).
func Normalize(s string) string {
	if s == "" {
		return ""
	}
	// Fold maps some scripts (Cherokee) to upper case; lowering after it keeps
	// the result a fixed point.
	s = strings.ToLower(cases.Fold().String(norm.NFC.String(s)))
	return strings.Join(strings.Fields(stripMarks(s)), " ")
}

// Fold is Normalize with all whitespace removed, used to compare header labels
// against keys such as "typeOfUser".
func Fold(s string) string {
	return strings.Join(strings.Fields(Normalize(s)), "")
}

// Prefix returns the first n runes of s.
func Prefix(s string, n int) string {
	if n <= 0 {
		return ""
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func stripMarks(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}
