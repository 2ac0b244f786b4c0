package directory

import (
	"slices"
	"sort"
	"strings"

	"github.com/utsbot/uts-chatbot-go/internal/stringutil"
)

// Tier is the name-matching level that produced a result.
type Tier int

const (
	TierNone Tier = iota
	TierExact
	TierPartial
	TierLoose
)

func (t Tier) String() string {
	switch t {
	case TierExact:
		return "exact"
	case TierPartial:
		return "partial"
	case TierLoose:
		return "loose"
	default:
		return "none"
	}
}

// leadingPhrases are removed from the start of a name query, longest first.
var leadingPhrases = sortedByLength([]string{
	"informacion sobre", "informacion de", "informacion del", "info sobre", "info de", "info del",
	"quien es", "quienes son", "quien", "busco", "buscar", "buscame", "necesito", "necesito el",
	"datos de", "datos del", "correo de", "correo del", "correo electronico de", "email de",
	"contacto de", "contacto del", "hoja de vida de", "cvlac de", "perfil de", "perfil del",
	"dame", "dime", "me puedes dar", "puedes darme", "conoces a", "conoces al",
	"hablame de", "hablame sobre", "cuentame de", "cuentame sobre", "acerca de", "sobre",
	"el correo", "la informacion", "los datos", "el contacto", "el perfil",
	"tienes", "hola", "buenas", "por favor",
})

// roleTitles are dropped wherever they appear.
var roleTitles = map[string]struct{}{
	"profesor": {}, "profesora": {}, "profesores": {}, "profe": {}, "profes": {},
	"docente": {}, "docentes": {}, "doctor": {}, "doctora": {}, "dr": {}, "dra": {},
	"ingeniero": {}, "ingeniera": {}, "ing": {}, "magister": {}, "msc": {}, "mg": {},
	"licenciado": {}, "licenciada": {}, "lic": {}, "teacher": {}, "phd": {},
	"catedratico": {}, "catedratica": {}, "tutor": {}, "tutora": {},
}

// leadingArticles are dropped only before the first name token.
var leadingArticles = map[string]struct{}{
	"el": {}, "la": {}, "los": {}, "las": {}, "al": {}, "a": {},
	"de": {}, "del": {}, "un": {}, "una": {}, "mi": {},
}

// CleanNameQuery isolates the bare name tokens of a teacher query:
// "¿Quién es la profesora María Núñez?" becomes "maria nunez".
// The result is normalized with stringutil.NormalizeName.
func CleanNameQuery(query string) string {
	s := stringutil.NormalizeName(query)
	s = strings.TrimSuffix(s, " por favor")

	for changed := true; changed && s != ""; {
		changed = false
		for _, phrase := range leadingPhrases {
			if s == phrase {
				s, changed = "", true
				break
			}
			if strings.HasPrefix(s, phrase+" ") {
				s, changed = strings.TrimSpace(s[len(phrase):]), true
				break
			}
		}
		if changed {
			continue
		}
		first, rest, _ := strings.Cut(s, " ")
		if _, ok := leadingArticles[first]; ok {
			s, changed = rest, true
		} else if _, ok := roleTitles[first]; ok {
			s, changed = rest, true
		}
	}

	tokens := strings.Fields(s)
	kept := tokens[:0]
	for _, tok := range tokens {
		if _, ok := roleTitles[tok]; !ok {
			kept = append(kept, tok)
		}
	}
	return strings.Join(kept, " ")
}

// MatchAll returns every record matching term at the strictest tier that has
// any match, in record order.
func MatchAll(records []Record, term string) ([]Record, Tier) {
	term = stringutil.NormalizeName(term)
	if term == "" || len(records) == 0 {
		return nil, TierNone
	}
	termTokens := strings.Fields(term)

	names := make([]string, len(records))
	for i, r := range records {
		names[i] = stringutil.NormalizeName(r.Nombre)
	}

	tiers := []struct {
		tier  Tier
		match func(name string) bool
	}{
		{TierExact, func(name string) bool { return name == term }},
		{TierPartial, func(name string) bool { return partialMatch(termTokens, strings.Fields(name)) }},
		{TierLoose, func(name string) bool { return looseMatch(term, name) }},
	}

	for _, t := range tiers {
		var out []Record
		for i, name := range names {
			if name != "" && t.match(name) {
				out = append(out, records[i])
			}
		}
		if len(out) > 0 {
			return out, t.tier
		}
	}
	return nil, TierNone
}

// FindTeacherByName returns the first record of the strictest matching tier.
func FindTeacherByName(records []Record, term string) (Record, bool) {
	matches, _ := MatchAll(records, term)
	if len(matches) == 0 {
		return Record{}, false
	}
	return matches[0], true
}

// partialMatch needs a multi-word term whose every token is contained in, or
// contains, some token of the candidate name.
func partialMatch(termTokens, nameTokens []string) bool {
	if len(termTokens) < 2 {
		return false
	}
	for _, t := range termTokens {
		if !slices.ContainsFunc(nameTokens, func(n string) bool {
			return strings.Contains(n, t) || strings.Contains(t, n)
		}) {
			return false
		}
	}
	return true
}

func looseMatch(term, name string) bool {
	if strings.Contains(name, term) {
		return true
	}
	first, _, _ := strings.Cut(name, " ")
	return first != "" && strings.Contains(term, first)
}

func sortedByLength(items []string) []string {
	sort.SliceStable(items, func(i, j int) bool { return len(items[i]) > len(items[j]) })
	return items
}

// Resolver parses a directory blob and resolves a name query against it.
type Resolver struct {
	parser *Parser
}

// NewResolver creates a resolver over parser.
func NewResolver(parser *Parser) *Resolver {
	return &Resolver{parser: parser}
}

// Parser returns the underlying parser.
func (r *Resolver) Parser() *Parser {
	return r.parser
}

// Match is the outcome of resolving a name query.
type Match struct {
	CleanedName string
	Parsed      int    // records parsed from the blob
	Strategy    string // parsing strategy that produced them
	Tier        Tier
	Records     []Record
}

// Resolve cleans query and matches it against the records parsed from blobs.
// Records of several blobs are merged, first occurrence of an e-mail wins.
func (r *Resolver) Resolve(query string, blobs ...string) Match {
	m := Match{CleanedName: CleanNameQuery(query)}

	var all []Record
	var strategies []string
	for _, blob := range blobs {
		records, strategy := r.parser.Parse(blob)
		if len(records) == 0 {
			continue
		}
		all = append(all, records...)
		if !slices.Contains(strategies, strategy) {
			strategies = append(strategies, strategy)
		}
	}
	all = dedupe(all)
	m.Parsed = len(all)
	m.Strategy = strings.Join(strategies, ",")

	if m.CleanedName == "" {
		return m
	}
	m.Records, m.Tier = MatchAll(all, m.CleanedName)
	return m
}

// FindTeachersByName returns all records matching the cleaned query at the
// strictest tier with any match. Callers disambiguate when more than one
// record comes back.
func (r *Resolver) FindTeachersByName(query, blob string) []Record {
	return r.Resolve(query, blob).Records
}
