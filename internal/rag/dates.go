package rag

import (
	"regexp"
	"strings"
)

const monthNames = `enero|febrero|marzo|abril|mayo|junio|julio|agosto|septiembre|setiembre|octubre|noviembre|diciembre`

// dateRe finds date expressions in a raw query. Alternatives are ordered
// from most to least specific because the leftmost alternative wins.
var dateRe = regexp.MustCompile(`(?i)` + strings.Join([]string{
	`\b\d{4}-\d{1,2}-\d{1,2}\b`,
	`\b\d{1,2}[/-]\d{1,2}(?:[/-]\d{2,4})?\b`,
	`\b\d{1,2}\s+de\s+(?:` + monthNames + `)(?:\s+(?:de|del)\s+\d{4})?\b`,
	`\b(?:` + monthNames + `)(?:\s+(?:de|del)\s+\d{4})?\b`,
	`\b(?:lunes|martes|mi[eé]rcoles|jueves|viernes|s[aá]bado|domingo)\b`,
	`\bpasado\s+ma[nñ]ana\b`,
	`\b(?:hoy|ma[nñ]ana|ayer)\b`,
	`\b(?:esta|pr[oó]xima|siguiente)\s+semana\b`,
	`\b(?:este|pr[oó]ximo|siguiente)\s+(?:mes|semestre|a[nñ]o)\b`,
	`\bfin\s+de\s+semana\b`,
}, "|"))

// DetectDates returns the date expressions of query as written, in order of
// appearance.
func DetectDates(query string) []string {
	matches := dateRe.FindAllString(query, -1)
	if len(matches) == 0 {
		return []string{}
	}
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		out = append(out, strings.TrimSpace(m))
	}
	return out
}
