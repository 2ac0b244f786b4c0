// Package stringutil provides text normalization and budget helpers shared
// by retrieval, intent detection and answer composition.
package stringutil

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Ellipsis marks a hard-cut string.
const Ellipsis = "…"

var (
	nonWordRe    = regexp.MustCompile(`[^\w\s]`)
	nonLetterRe  = regexp.MustCompile(`[^a-z\s]`)
	whitespaceRe = regexp.MustCompile(`\s+`)
)

// StripAccents removes combining marks after NFD decomposition, so
// "Cálculo" becomes "Calculo" and "ñ" becomes "n".
func StripAccents(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// Normalize lowercases, strips accents, replaces every character that is not
// a word character or whitespace with a space, collapses whitespace and trims.
// It is total and idempotent.
//
//	Normalize("¿Cuántos créditos tiene Cálculo?") == "cuantos creditos tiene calculo"
func Normalize(text string) string {
	if text == "" {
		return ""
	}
	s := StripAccents(strings.ToLower(text))
	s = nonWordRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(s, " "))
}

// NormalizeName is Normalize restricted to letters and single spaces, used to
// compare personal names.
func NormalizeName(name string) string {
	s := nonLetterRe.ReplaceAllString(Normalize(name), " ")
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(s, " "))
}

// Truncate cuts s to at most max runes and appends Ellipsis when it cuts.
// The result is never longer than max+1 runes.
func Truncate(s string, max int) string {
	if max < 0 {
		max = 0
	}
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	r := []rune(s)
	return string(r[:max]) + Ellipsis
}

// RuneLen returns the number of characters in s.
func RuneLen(s string) int {
	return utf8.RuneCountInString(s)
}

// IsAlphabetic reports whether s is non-empty and made only of letters.
// Accented Spanish letters count as letters.
func IsAlphabetic(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsLetter(r) {
			return false
		}
	}
	return true
}

// SplitKeywords splits a comma-separated keyword list, trimming blanks.
func SplitKeywords(list string) []string {
	var out []string
	for item := range strings.SplitSeq(list, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
