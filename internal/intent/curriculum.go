package intent

import (
	"regexp"
	"strings"
)

// WidgetSentinel is embedded in the curriculum widget answer. The chat
// frontend replaces it with the interactive curriculum; it must be emitted
// verbatim.
const WidgetSentinel = "[[MALLA_CURRICULAR_WIDGET]]"

// WidgetState tracks whether a session has already been shown the widget.
type WidgetState int

const (
	WidgetNotShown WidgetState = iota
	WidgetShown
)

func (s WidgetState) String() string {
	if s == WidgetShown {
		return "shown"
	}
	return "not_shown"
}

// Keywords are written in normalized form (lowercase, no accents).
var mallaKeywords = []string{
	"malla curricular", "malla", "mallas", "pensum", "pensul",
	"plan de estudios", "plan de estudio", "planes de estudio",
	"prerrequisito", "prerrequisitos", "prerequisito", "prerequisitos",
	"correquisito", "correquisitos", "intensidad horaria", "contenido programatico",
}

// mallaTerms only name the curriculum next to a program or semester word:
// "creditos" alone is as likely a student loan, "materias" a homologation.
var mallaTerms = []string{"materias", "asignaturas", "creditos"}

var mallaContext = []string{
	"carrera", "carreras", "programa", "programas", "semestre", "semestres",
	"nivel", "niveles", "pregrado", "tecnologia", "tecnologo", "tecnico", "tecnica",
	"ingenieria", "licenciatura", "profesional", "especializacion",
}

var (
	mallaRegex        = buildWordRegex(mallaKeywords)
	mallaTermRegex    = buildWordRegex(mallaTerms)
	mallaContextRegex = buildWordRegex(mallaContext)
)

// isMalla reports whether normalized text is about the curriculum: it names
// it outright, or pairs a subject/credit term with a program or semester.
func isMalla(normalized string) bool {
	if mallaRegex.MatchString(normalized) {
		return true
	}
	return mallaTermRegex.MatchString(normalized) && mallaContextRegex.MatchString(normalized)
}

const ordinals = `primer|primero|segundo|tercer|tercero|cuarto|quinto|sexto|septimo|octavo|noveno|decimo`

var specificMallaPatterns = []*regexp.Regexp{
	// credit counts
	regexp.MustCompile(`\bcuant[oa]s?\s+creditos\b`),
	regexp.MustCompile(`\bcreditos\s+(?:de|del|tiene|vale|para)\b`),
	regexp.MustCompile(`\b(?:tiene|vale|da)\s+(?:\w+\s+){0,4}creditos\b`),
	// prerequisites
	regexp.MustCompile(`\b(?:pre|co)rr?equisitos?\s+(?:de|del|para)\b`),
	regexp.MustCompile(`\brequisitos?\s+(?:previos?\s+)?(?:para\s+(?:ver|cursar|inscribir))\b`),
	regexp.MustCompile(`\bque\s+(?:necesito|debo)\s+(?:ver|aprobar|haber\s+visto)\s+(?:antes\s+)?(?:de|para)\b`),
	// hour loads
	regexp.MustCompile(`\b(?:cuant[ao]s|numero\s+de)\s+horas\b`),
	regexp.MustCompile(`\bintensidad\s+horaria\s+(?:de|del)\b`),
	regexp.MustCompile(`\bhoras\s+(?:semanales|presenciales|de\s+trabajo|por\s+semana)\b`),
	// subjects of a given semester
	regexp.MustCompile(`\b(?:semestre|nivel)\s+(?:\d{1,2}|` + ordinals + `)\b`),
	regexp.MustCompile(`\b(?:` + ordinals + `|\d{1,2}(?:o|er|ro|do|to|vo|no)?)\s+(?:semestre|nivel)\b`),
	regexp.MustCompile(`\ben\s+(?:que|cual)\s+semestre\s+(?:se\s+ve|se\s+dicta|se\s+cursa|va|esta|queda|veo)\b`),
}

// IsMallaQuery reports whether question is about the curriculum. Specific
// curriculum questions always are.
func IsMallaQuery(question string) bool {
	return Classify(question).Malla
}

// IsSpecificMallaQuery reports whether question asks for one curriculum data
// point (credit count, prerequisites, hour load, subjects of semester N).
// Specific questions are always answered inline from evidence.
func IsSpecificMallaQuery(question string) bool {
	return Classify(question).SpecificMalla
}

// HasSeenMallaInSession reports whether any previous answer carries the
// widget sentinel.
func HasSeenMallaInSession(answers []string) bool {
	for _, a := range answers {
		if strings.Contains(a, WidgetSentinel) {
			return true
		}
	}
	return false
}

// WidgetStateFromHistory derives the widget state from the stored answers of
// a session. It is meant to run once, when history is loaded from storage.
func WidgetStateFromHistory(answers []string) WidgetState {
	if HasSeenMallaInSession(answers) {
		return WidgetShown
	}
	return WidgetNotShown
}
