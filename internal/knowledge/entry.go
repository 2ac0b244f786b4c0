package knowledge

import (
	"regexp"
	"strings"

	"github.com/utsbot/uts-chatbot-go/internal/directory"
	"github.com/utsbot/uts-chatbot-go/internal/stringutil"
)

// Kind tags what an entry contains.
type Kind string

const (
	KindGeneral   Kind = "general"
	KindDirectory Kind = "directory"
)

// minDirectoryEmails is the e-mail count that marks an untitled entry as a
// directory.
const minDirectoryEmails = 2

var directoryWordRe = regexp.MustCompile(`\bdirectorios?\b`)

// Entry is one knowledge item as seen by retrieval. Entries are built once
// per load and never mutated afterwards.
type Entry struct {
	ID             string
	Pregunta       string
	RespuestaTexto string
	PalabrasClave  string
	TipoUsuario    UserType

	// Text is the plain-text answer. HTML answers are flattened.
	Text string
	// SearchText is the normalized pregunta + answer + keywords.
	SearchText string
	Kind       Kind
}

// Keywords returns the keyword list.
func (e Entry) Keywords() []string {
	return stringutil.SplitKeywords(e.PalabrasClave)
}

// Builder derives the computed fields of an entry.
type Builder struct {
	parser *directory.Parser
}

// NewBuilder returns a builder that counts institutional e-mails with parser.
func NewBuilder(parser *directory.Parser) *Builder {
	return &Builder{parser: parser}
}

// Build fills Text, SearchText and Kind.
func (b *Builder) Build(e Entry) Entry {
	e.Text = PlainText(e.RespuestaTexto)
	e.SearchText = stringutil.Normalize(e.Pregunta + " " + e.Text + " " + e.PalabrasClave)
	e.Kind = b.kindOf(e)
	return e
}

func (b *Builder) kindOf(e Entry) Kind {
	title := stringutil.Normalize(e.Pregunta + " " + e.PalabrasClave)
	if directoryWordRe.MatchString(title) {
		return KindDirectory
	}
	if b.parser != nil && b.parser.CountEmails(e.Text) >= minDirectoryEmails {
		return KindDirectory
	}
	return KindGeneral
}

// Titulo returns the display title used in evidence and citations.
func (e Entry) Titulo() string {
	return strings.TrimSpace(e.Pregunta)
}
