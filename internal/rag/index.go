package rag

import (
	"math"
	"slices"

	"github.com/utsbot/uts-chatbot-go/internal/knowledge"
	"github.com/utsbot/uts-chatbot-go/internal/stringutil"
)

// Field weights of the fuzzy index.
const (
	weightPregunta  = 0.45
	weightKeywords  = 0.45
	weightComposite = 0.10
)

// DefaultThreshold is the highest per-field error rate that still counts as
// a match.
const DefaultThreshold = 0.55

// Index is an immutable fuzzy index over one knowledge snapshot.
type Index struct {
	docs      []document
	threshold float64
}

type document struct {
	entry  knowledge.Entry
	fields [3]field
}

// Hit is one ranked entry. Distance is in (0, 1]; lower is better.
type Hit struct {
	Entry    knowledge.Entry
	Distance float64
}

// NewIndex builds an index over entries. Entry order is the tie-break for
// equal distances. A threshold outside (0, 1] falls back to DefaultThreshold.
func NewIndex(entries []knowledge.Entry, threshold float64) *Index {
	if threshold <= 0 || threshold > 1 {
		threshold = DefaultThreshold
	}
	docs := make([]document, len(entries))
	for i, e := range entries {
		docs[i] = document{
			entry: e,
			fields: [3]field{
				newField(stringutil.Normalize(e.Pregunta), weightPregunta),
				newField(stringutil.Normalize(e.PalabrasClave), weightKeywords),
				newField(e.SearchText, weightComposite),
			},
		}
	}
	return &Index{docs: docs, threshold: threshold}
}

// Len returns the number of indexed entries.
func (ix *Index) Len() int {
	if ix == nil {
		return 0
	}
	return len(ix.docs)
}

// Entries returns the indexed entries in load order.
func (ix *Index) Entries() []knowledge.Entry {
	if ix == nil {
		return nil
	}
	out := make([]knowledge.Entry, len(ix.docs))
	for i, d := range ix.docs {
		out[i] = d.entry
	}
	return out
}

// Search ranks every entry against an already normalized query. Entries
// without a matching field are left out.
func (ix *Index) Search(normalized string) []Hit {
	if ix == nil {
		return nil
	}
	p := newPattern(normalized)
	if p.empty() {
		return nil
	}

	var hits []Hit
	for _, d := range ix.docs {
		if dist, ok := ix.distance(p, d); ok {
			hits = append(hits, Hit{Entry: d.entry, Distance: dist})
		}
	}
	slices.SortStableFunc(hits, func(a, b Hit) int {
		switch {
		case a.Distance < b.Distance:
			return -1
		case a.Distance > b.Distance:
			return 1
		}
		return 0
	})
	return hits
}

// distance combines matched field scores as the product of
// score^(weight*norm).
func (ix *Index) distance(p pattern, d document) (float64, bool) {
	total := 1.0
	matched := false
	for _, f := range d.fields {
		s, ok := p.score(f, ix.threshold)
		if !ok {
			continue
		}
		matched = true
		total *= math.Pow(s, f.weight*f.norm)
	}
	return total, matched
}

// similarity converts a distance into a score in [0, 1] rounded to two
// decimals.
func similarity(distance float64) float64 {
	s := math.Round((1-distance)*100) / 100
	return max(0, min(1, s))
}
