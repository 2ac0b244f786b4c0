package rag

import (
	"math"
	"strings"
)

const (
	// maxPatternRunes is the chunk size for long query patterns.
	maxPatternRunes = 32
	// minMatchRunes is the shortest query and shared window that can match.
	minMatchRunes = 2
	// perfectScore stands in for a zero-error match so products stay positive.
	perfectScore = 0.001
)

// field is one indexed text of a document.
type field struct {
	text    []rune
	weight  float64
	norm    float64
	bigrams map[[2]rune]struct{}
}

func newField(text string, weight float64) field {
	tokens := len(strings.Fields(text))
	f := field{text: []rune(text), weight: weight}
	if tokens == 0 {
		return f
	}
	f.norm = math.Round(1000/math.Sqrt(float64(tokens))) / 1000
	f.bigrams = bigramSet(f.text)
	return f
}

func bigramSet(r []rune) map[[2]rune]struct{} {
	set := make(map[[2]rune]struct{}, len(r))
	for i := 0; i+1 < len(r); i++ {
		set[[2]rune{r[i], r[i+1]}] = struct{}{}
	}
	return set
}

// pattern is a normalized query split into chunks of at most
// maxPatternRunes. The last chunk of a long pattern is anchored at the end,
// so it may overlap the previous one.
type pattern struct {
	chunks [][]rune
}

func newPattern(query string) pattern {
	r := []rune(query)
	if len(r) < minMatchRunes {
		return pattern{}
	}
	if len(r) <= maxPatternRunes {
		return pattern{chunks: [][]rune{r}}
	}
	var p pattern
	for start := 0; start < len(r); start += maxPatternRunes {
		end := start + maxPatternRunes
		if end > len(r) {
			p.chunks = append(p.chunks, r[len(r)-maxPatternRunes:])
			break
		}
		p.chunks = append(p.chunks, r[start:end])
	}
	return p
}

func (p pattern) empty() bool { return len(p.chunks) == 0 }

// score returns the mean chunk score of p against f and whether any chunk
// matched. A chunk matches when its normalized error rate is within
// threshold; non-matching chunks score 1.
func (p pattern) score(f field, threshold float64) (float64, bool) {
	if f.norm == 0 || p.empty() {
		return 1, false
	}
	total := 0.0
	matched := false
	for _, chunk := range p.chunks {
		s := 1.0
		if sharesWindow(chunk, f.bigrams) {
			d := float64(substringDistance(chunk, f.text)) / float64(len(chunk))
			if d == 0 {
				d = perfectScore
			}
			if d <= threshold {
				s = d
				matched = true
			}
		}
		total += s
	}
	return total / float64(len(p.chunks)), matched
}

func sharesWindow(chunk []rune, bigrams map[[2]rune]struct{}) bool {
	for i := 0; i+1 < len(chunk); i++ {
		if _, ok := bigrams[[2]rune{chunk[i], chunk[i+1]}]; ok {
			return true
		}
	}
	return false
}

// substringDistance is the minimum edit distance between pattern and any
// substring of text (Sellers). Leading and trailing text is free.
func substringDistance(pattern, text []rune) int {
	m := len(pattern)
	if m == 0 {
		return 0
	}
	// col[i] is the distance of pattern[:i] ending at the current text rune.
	col := make([]int, m+1)
	for i := range col {
		col[i] = i
	}
	best := m
	for _, tc := range text {
		diag := col[0] // col[0] stays 0: a match may start anywhere
		for i := 1; i <= m; i++ {
			up := col[i]
			cost := 1
			if pattern[i-1] == tc {
				cost = 0
			}
			col[i] = min(up+1, col[i-1]+1, diag+cost)
			diag = up
		}
		best = min(best, col[m])
	}
	return best
}
