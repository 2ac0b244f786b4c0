// Package directory extracts teacher records from semi-structured directory
// text and resolves free-text name queries against them.
package directory

import (
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/utsbot/uts-chatbot-go/internal/stringutil"
)

// Record is one teacher parsed from a directory blob. Records are derived per
// query and never persisted.
type Record struct {
	Nombre           string `json:"nombre"`
	Correo           string `json:"correo"`
	Estudios         string `json:"estudios,omitempty"`
	Cursos           string `json:"cursos,omitempty"`
	ExperienciaTotal string `json:"experienciaTotal,omitempty"`
	ExperienciaUTS   string `json:"experienciaUTS,omitempty"`
	CvLAC            string `json:"cvlac,omitempty"`
}

const (
	// minTabularColumns is the minimum column count of a directory row.
	minTabularColumns = 6
	// lookBehindRunes bounds the name search before an e-mail.
	lookBehindRunes = 150
	// lookAheadRunes bounds the CvLAC search after an e-mail.
	lookAheadRunes = 500
)

// Strategy is one parsing tier. Parse returns nil when the blob does not have
// the shape the strategy expects.
type Strategy struct {
	Name  string
	Parse func(blob string) []Record
}

// Parser holds the compiled patterns for one institutional e-mail domain.
type Parser struct {
	domain     string
	emailRe    *regexp.Regexp
	strategies []Strategy
}

var (
	columnSplitRe = regexp.MustCompile(`\t+| {2,}|\s*\|\s*`)
	separatorRe   = regexp.MustCompile(`^[\s\-=|+:_]+$`)
	urlRe         = regexp.MustCompile(`https?://[^\s<>"'|]+`)
	cvlacURLRe    = regexp.MustCompile(`(?i)https?://[^\s<>"'|]*(?:cvlac|scienti|minciencias)[^\s<>"'|]*`)
	trailingURLRe = regexp.MustCompile(`(https?://[^\s<>"'|]+)[\s.,;]*$`)
)

// NewParser returns a parser for e-mails ending in domain (e.g. "uts.edu.co").
// Subdomains such as correo.uts.edu.co are accepted.
func NewParser(domain string) *Parser {
	domain = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(domain), "@"))
	email := `[A-Za-z0-9._%+-]+@(?:[A-Za-z0-9-]+\.)*` + regexp.QuoteMeta(domain) + `\b`

	p := &Parser{
		domain:  domain,
		emailRe: regexp.MustCompile(`(?i)` + email),
	}
	p.strategies = []Strategy{
		{Name: "tabular", Parse: p.ParseTabular},
		{Name: "single_line", Parse: p.ParseSingleLine},
		{Name: "email_anchored", Parse: p.ParseEmailAnchored},
	}
	return p
}

// Domain returns the institutional e-mail domain.
func (p *Parser) Domain() string {
	return p.domain
}

// Strategies returns the parsing tiers in the order Parse tries them.
func (p *Parser) Strategies() []Strategy {
	return p.strategies
}

// Parse runs the strategies in order and returns the records of the first
// one that yields any, with that strategy's name.
func (p *Parser) Parse(blob string) ([]Record, string) {
	if strings.TrimSpace(blob) == "" {
		return nil, ""
	}
	for _, s := range p.strategies {
		if records := dedupe(s.Parse(blob)); len(records) > 0 {
			return records, s.Name
		}
	}
	return nil, ""
}

// CountEmails returns how many institutional e-mail addresses text contains.
func (p *Parser) CountEmails(text string) int {
	return len(p.emailRe.FindAllStringIndex(text, -1))
}

// Valid reports whether a record has a name and an institutional e-mail.
func (p *Parser) Valid(r Record) bool {
	if strings.TrimSpace(r.Nombre) == "" {
		return false
	}
	correo := strings.ToLower(strings.TrimSpace(r.Correo))
	at := strings.LastIndex(correo, "@")
	if at <= 0 {
		return false
	}
	host := correo[at+1:]
	return host == p.domain || strings.HasSuffix(host, "."+p.domain)
}

// ParseTabular reads rows whose columns are separated by tabs, pipes or runs
// of 2+ spaces. Columns map positionally to nombre, correo, estudios, cursos,
// experiencia total, experiencia UTS and an optional CvLAC link.
func (p *Parser) ParseTabular(blob string) []Record {
	var records []Record
	for line := range strings.SplitSeq(blob, "\n") {
		line = strings.Trim(strings.TrimSpace(line), "|")
		if line == "" || separatorRe.MatchString(line) || isHeaderRow(line) {
			continue
		}

		var cols []string
		for _, c := range columnSplitRe.Split(strings.TrimSpace(line), -1) {
			if c = strings.TrimSpace(c); c != "" {
				cols = append(cols, c)
			}
		}
		if len(cols) < minTabularColumns {
			continue
		}

		r := Record{
			Nombre:           cols[0],
			Correo:           strings.TrimPrefix(cols[1], "mailto:"),
			Estudios:         cols[2],
			Cursos:           cols[3],
			ExperienciaTotal: cols[4],
			ExperienciaUTS:   cols[5],
		}
		if len(cols) > minTabularColumns {
			r.CvLAC = urlRe.FindString(strings.Join(cols[minTabularColumns:], " "))
		}
		if p.Valid(r) {
			records = append(records, r)
		}
	}
	return records
}

func isHeaderRow(line string) bool {
	lower := strings.ToLower(line)
	return strings.Contains(lower, "nombre") &&
		(strings.Contains(lower, "correo") || strings.Contains(lower, "email") || strings.Contains(lower, "e-mail"))
}

// ParseSingleLine handles a directory flattened into one line:
// "Name email info Name email info ...". The info of each record runs up to
// the name of the next record. An e-mail with no name right before it stays
// part of the preceding info.
func (p *Parser) ParseSingleLine(blob string) []Record {
	blob = strings.TrimSpace(blob)
	if strings.Contains(blob, "\n") {
		return nil
	}

	type anchor struct {
		nameStart, emailEnd int
		nombre, correo      string
	}
	var anchors []anchor
	prevEnd := 0
	for _, loc := range p.emailRe.FindAllStringIndex(blob, -1) {
		if nombre, offset, ok := nameBefore(blob[prevEnd:loc[0]]); ok {
			anchors = append(anchors, anchor{
				nameStart: prevEnd + offset,
				emailEnd:  loc[1],
				nombre:    nombre,
				correo:    blob[loc[0]:loc[1]],
			})
		}
		prevEnd = loc[1]
	}

	records := make([]Record, 0, len(anchors))
	for i, a := range anchors {
		infoEnd := len(blob)
		if i+1 < len(anchors) {
			infoEnd = anchors[i+1].nameStart
		}
		r := Record{Nombre: a.nombre, Correo: a.correo}
		fillFromInfo(&r, blob[a.emailEnd:infoEnd])
		if p.Valid(r) {
			records = append(records, r)
		}
	}
	return records
}

// ParseEmailAnchored finds every institutional e-mail, takes the name-shaped
// text right before it and the first link shortly after it.
func (p *Parser) ParseEmailAnchored(blob string) []Record {
	emails := p.emailRe.FindAllStringIndex(blob, -1)
	records := make([]Record, 0, len(emails))
	prevEnd := 0
	for i, loc := range emails {
		start, end := loc[0], loc[1]

		behindStart := max(runeOffsetBack(blob, start, lookBehindRunes), prevEnd)
		r := Record{Correo: blob[start:end]}
		if nombre, _, ok := nameBefore(blob[behindStart:start]); ok {
			r.Nombre = nombre
		}

		aheadEnd := runeOffsetForward(blob, end, lookAheadRunes)
		if i+1 < len(emails) {
			aheadEnd = min(aheadEnd, emails[i+1][0])
		}
		ahead := blob[end:aheadEnd]
		if u := cvlacURLRe.FindString(ahead); u != "" {
			r.CvLAC = u
		} else {
			r.CvLAC = urlRe.FindString(ahead)
		}

		if p.Valid(r) {
			records = append(records, r)
		}
		prevEnd = end
	}
	return records
}

const (
	minNameWords = 2
	maxNameWords = 4
)

var (
	wordRe            = regexp.MustCompile(`\S+`)
	capitalizedWordRe = regexp.MustCompile(`^\p{Lu}[\p{L}'’-]+$`)
	nameConnectors    = map[string]bool{"de": true, "del": true, "la": true, "las": true, "los": true, "y": true}
)

// nonNameWords are capitalized words of degrees, courses and roles that end
// a name run. They commonly close the info of the previous record.
var nonNameWords = map[string]bool{
	"ingenieria": true, "ingeniero": true, "ingeniera": true, "sistemas": true,
	"magister": true, "maestria": true, "master": true, "msc": true,
	"licenciado": true, "licenciada": true, "licenciatura": true,
	"doctor": true, "doctora": true, "doctorado": true, "phd": true,
	"especialista": true, "especializacion": true, "tecnologo": true, "tecnologia": true,
	"matematicas": true, "fisica": true, "quimica": true, "estadistica": true,
	"administracion": true, "contaduria": true, "economia": true, "finanzas": true,
	"electronica": true, "electrica": true, "industrial": true, "civil": true,
	"ambiental": true, "software": true, "telecomunicaciones": true, "redes": true,
	"educacion": true, "ciencias": true, "ciencia": true, "computacion": true,
	"programacion": true, "calculo": true, "algebra": true, "mecanica": true,
	"gestion": true, "proyectos": true, "datos": true, "bases": true, "tic": true,
	"universidad": true, "facultad": true, "programa": true, "docente": true,
	"profesor": true, "profesora": true, "coordinador": true, "coordinadora": true,
	"cursos": true, "experiencia": true, "estudios": true, "semestre": true,
}

// nameBefore returns the name-shaped run that ends text, the text right
// before an e-mail. Walking back from the end it takes up to maxNameWords
// capitalized words, joined by lowercase connectors, and stops at any other
// word. offset is the byte offset of the name in text.
func nameBefore(text string) (nombre string, offset int, ok bool) {
	end := len(strings.TrimRight(text, " \t\r\n:,-–|(<"))
	words := wordRe.FindAllStringIndex(text[:end], -1)

	start, count := end, 0
	for i := len(words) - 1; i >= 0 && count < maxNameWords; i-- {
		w := text[words[i][0]:words[i][1]]
		if capitalizedWordRe.MatchString(w) && !nonNameWords[stringutil.NormalizeName(w)] {
			start = words[i][0]
			count++
			continue
		}
		if count > 0 && nameConnectors[w] {
			continue
		}
		break
	}
	if count < minNameWords {
		return "", 0, false
	}
	return strings.Join(strings.Fields(text[start:end]), " "), start, true
}

type infoLabel struct {
	re    *regexp.Regexp
	field func(*Record) *string
}

var infoLabels = []infoLabel{
	{regexp.MustCompile(`(?i)\b(?:estudios|formaci[oó]n(?:\s+acad[eé]mica)?|t[ií]tulos?)\s*:`), func(r *Record) *string { return &r.Estudios }},
	{regexp.MustCompile(`(?i)\bcursos?(?:\s+(?:que\s+dicta|a\s+cargo|asignados))?\s*:`), func(r *Record) *string { return &r.Cursos }},
	{regexp.MustCompile(`(?i)\bexperiencia\s+(?:en\s+(?:la\s+)?)?uts\s*:`), func(r *Record) *string { return &r.ExperienciaUTS }},
	{regexp.MustCompile(`(?i)\bexperiencia(?:\s+total)?\s*:`), func(r *Record) *string { return &r.ExperienciaTotal }},
}

type labelHit struct {
	start, end int
	field      func(*Record) *string
}

// fillFromInfo extracts the CvLAC link and the labelled fields of a free-text
// info segment. Unlabelled leading text is taken as estudios.
func fillFromInfo(r *Record, info string) {
	if u := cvlacURLRe.FindString(info); u != "" {
		r.CvLAC = u
	} else if m := trailingURLRe.FindStringSubmatch(info); m != nil {
		r.CvLAC = m[1]
	}
	if r.CvLAC != "" {
		info = strings.Replace(info, r.CvLAC, " ", 1)
	}

	var hits []labelHit
	for _, l := range infoLabels {
		for _, loc := range l.re.FindAllStringIndex(info, -1) {
			if overlaps(hits, loc[0], loc[1]) {
				continue
			}
			hits = append(hits, labelHit{start: loc[0], end: loc[1], field: l.field})
		}
	}
	sort.Slice(hits, func(i, j int) bool { return hits[i].start < hits[j].start })

	lead := info
	if len(hits) > 0 {
		lead = info[:hits[0].start]
	}
	for i, h := range hits {
		valueEnd := len(info)
		if i+1 < len(hits) {
			valueEnd = hits[i+1].start
		}
		if dst := h.field(r); *dst == "" {
			*dst = cleanValue(info[h.end:valueEnd])
		}
	}
	if r.Estudios == "" {
		r.Estudios = cleanValue(lead)
	}
}

func overlaps(hits []labelHit, start, end int) bool {
	for _, h := range hits {
		if start < h.end && h.start < end {
			return true
		}
	}
	return false
}

func cleanValue(s string) string {
	return strings.Trim(strings.Join(strings.Fields(s), " "), " ,;|-–.")
}

func dedupe(records []Record) []Record {
	if len(records) < 2 {
		return records
	}
	seen := make(map[string]struct{}, len(records))
	out := records[:0:0]
	for _, r := range records {
		key := strings.ToLower(r.Correo)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, r)
	}
	return out
}

// runeOffsetBack returns the byte offset n runes before pos.
func runeOffsetBack(s string, pos, n int) int {
	for ; n > 0 && pos > 0; n-- {
		_, size := utf8.DecodeLastRuneInString(s[:pos])
		pos -= size
	}
	return pos
}

// runeOffsetForward returns the byte offset n runes after pos.
func runeOffsetForward(s string, pos, n int) int {
	for ; n > 0 && pos < len(s); n-- {
		_, size := utf8.DecodeRuneInString(s[pos:])
		pos += size
	}
	return pos
}
