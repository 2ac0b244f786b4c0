package chat

import (
	"regexp"

	"github.com/utsbot/uts-chatbot-go/internal/rag"
	"github.com/utsbot/uts-chatbot-go/internal/stringutil"
)

// limitationPatterns match answers that admit the knowledge base fell short.
// They run on normalized text (lowercase, no accents or punctuation).
var limitationPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\bno tengo (?:informacion|datos)(?: especific[oa]s?| suficientes?| disponibles?| sobre| acerca)?\b`),
	regexp.MustCompile(`\bno (?:cuento con|dispongo de|encontre|tengo acceso a) (?:informacion|datos)\b`),
	regexp.MustCompile(`\bmi (?:base de conocimientos?|informacion) (?:es|esta) limitada\b`),
	regexp.MustCompile(`\b(?:consulta|consultar|visita|visitar|revisa|revisar) (?:el|la) (?:sitio|pagina|portal) (?:web )?oficial\b`),
	regexp.MustCompile(`\bno (?:puedo|logro|pude) (?:encontrar|responder|ayudarte con)\b`),
	regexp.MustCompile(`\bte recomiendo (?:consultar|comunicarte|contactar|visitar)\b`),
	regexp.MustCompile(`\bi (?:don t|do not) have (?:specific|enough|any|that) information\b`),
	regexp.MustCompile(`\bmy knowledge(?: base)? is limited\b`),
	regexp.MustCompile(`\b(?:check|consult|visit) the official (?:site|website|page|portal)\b`),
	regexp.MustCompile(`\bi (?:could not|couldn t|cannot|can t) find\b`),
}

// AnalyzeResponseQuality reports whether the user should be offered a web
// search: the answer admits a limitation, or there was no evidence at all.
func AnalyzeResponseQuality(text, query string, evidence []rag.Chunk) bool {
	normalized := stringutil.Normalize(text)
	for _, re := range limitationPatterns {
		if re.MatchString(normalized) {
			return true
		}
	}
	return len(evidence) == 0
}
