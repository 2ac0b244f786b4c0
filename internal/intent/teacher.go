package intent

import (
	"strings"

	"github.com/utsbot/uts-chatbot-go/internal/stringutil"
)

var roleRegex = buildWordRegex([]string{
	"profesor", "profesora", "profesores", "profesoras", "profe", "profes",
	"docente", "docentes", "doctor", "doctora", "dr", "dra",
	"ingeniero", "ingeniera", "ing", "magister", "msc",
	"licenciado", "licenciada", "teacher", "catedratico", "catedratica",
})

// IsTeacherSearchQuery reports whether query looks like a teacher lookup: it
// names a teaching role, or it is 2 to 4 purely alphabetic words (a bare
// personal name such as "Juan Pérez"). The second rule also fires on short
// general phrases; callers route curriculum questions first.
func IsTeacherSearchQuery(query string) bool {
	return isTeacherSearch(query, stringutil.Normalize(query))
}

func isTeacherSearch(raw, normalized string) bool {
	if roleRegex.MatchString(normalized) {
		return true
	}
	words := strings.Fields(raw)
	if len(words) < 2 || len(words) > 4 {
		return false
	}
	for _, w := range words {
		if !stringutil.IsAlphabetic(w) {
			return false
		}
	}
	return true
}
