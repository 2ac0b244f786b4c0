// Package intent holds the keyword classifiers that run before retrieval:
// curriculum ("malla") questions, their specific sub-intent, and teacher
// directory lookups.
package intent

import (
	"regexp"
	"slices"
	"strings"

	"github.com/utsbot/uts-chatbot-go/internal/stringutil"
)

// Intent is the combined result of all classifiers for one question.
type Intent struct {
	Malla         bool // curriculum-related question
	SpecificMalla bool // asks for one curriculum data point (credits, prerequisites, ...)
	TeacherSearch bool // looks like a teacher directory lookup
}

// WantsWidget reports whether the question is a general curriculum question,
// the kind answered with the interactive curriculum widget.
func (i Intent) WantsWidget() bool {
	return i.Malla && !i.SpecificMalla
}

// Label names the intent for logs and metrics.
func (i Intent) Label() string {
	switch {
	case i.WantsWidget():
		return "malla_general"
	case i.SpecificMalla:
		return "malla_specific"
	case i.Malla:
		return "malla"
	case i.TeacherSearch:
		return "teacher_search"
	default:
		return "general"
	}
}

// Classify runs every classifier on question.
func Classify(question string) Intent {
	normalized := stringutil.Normalize(question)
	specific := matchesAny(specificMallaPatterns, normalized)
	return Intent{
		Malla:         specific || isMalla(normalized),
		SpecificMalla: specific,
		TeacherSearch: isTeacherSearch(question, normalized),
	}
}

// buildWordRegex matches any keyword as whole words anywhere in normalized
// text. Keywords are sorted longest first so multi-word keywords win.
func buildWordRegex(keywords []string) *regexp.Regexp {
	if len(keywords) == 0 {
		panic("buildWordRegex: keywords cannot be empty")
	}
	sorted := slices.Clone(keywords)
	slices.SortFunc(sorted, func(a, b string) int {
		return len(b) - len(a)
	})
	return regexp.MustCompile(`\b(?:` + strings.Join(sorted, "|") + `)\b`)
}

func matchesAny(patterns []*regexp.Regexp, text string) bool {
	for _, re := range patterns {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}
