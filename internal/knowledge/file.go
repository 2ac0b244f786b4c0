package knowledge

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	domerrors "github.com/utsbot/uts-chatbot-go/internal/errors"
	"github.com/utsbot/uts-chatbot-go/internal/stringutil"
)

// File is the YAML document used by the admin CLI to import and export the
// knowledge base.
//
//	entries:
//	  - id: horario-biblioteca
//	    pregunta: ¿Cuál es el horario de la biblioteca?
//	    respuesta: La biblioteca abre de 7:00 a 21:00.
//	    palabras_clave: [biblioteca, horario]
//	    tipo_usuario: todos
type File struct {
	Entries []FileEntry `yaml:"entries"`
}

// FileEntry is one entry of a knowledge file.
type FileEntry struct {
	ID            string   `yaml:"id,omitempty"`
	Pregunta      string   `yaml:"pregunta"`
	Respuesta     string   `yaml:"respuesta"`
	PalabrasClave Keywords `yaml:"palabras_clave,omitempty"`
	TipoUsuario   string   `yaml:"tipo_usuario"`
}

// Keywords accepts either a YAML list or a comma-separated scalar.
type Keywords []string

// UnmarshalYAML implements yaml.Unmarshaler.
func (k *Keywords) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		*k = Keywords(stringutil.SplitKeywords(node.Value))
		return nil
	case yaml.SequenceNode:
		var items []string
		if err := node.Decode(&items); err != nil {
			return err
		}
		*k = Keywords(stringutil.SplitKeywords(strings.Join(items, ",")))
		return nil
	default:
		return fmt.Errorf("line %d: palabras_clave must be a string or a list", node.Line)
	}
}

// DecodeFile reads a knowledge file and returns its entries in file order.
// Entries without an id get a random UUID. Every entry is validated; the
// first invalid one aborts the import.
func DecodeFile(r io.Reader) ([]Entry, error) {
	var f File
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("decode knowledge file: %w", err)
	}

	entries := make([]Entry, 0, len(f.Entries))
	seen := make(map[string]int, len(f.Entries))
	for i, fe := range f.Entries {
		e, err := fe.toEntry()
		if err != nil {
			return nil, fmt.Errorf("entry %d: %w", i+1, err)
		}
		if prev, dup := seen[e.ID]; dup {
			return nil, fmt.Errorf("entry %d: %w", i+1,
				domerrors.NewValueError("id", e.ID, fmt.Sprintf("duplicates entry %d", prev)))
		}
		seen[e.ID] = i + 1
		entries = append(entries, e)
	}
	return entries, nil
}

func (fe FileEntry) toEntry() (Entry, error) {
	if strings.TrimSpace(fe.Pregunta) == "" {
		return Entry{}, domerrors.NewValidationError("pregunta", "must not be empty")
	}
	if strings.TrimSpace(fe.Respuesta) == "" {
		return Entry{}, domerrors.NewValidationError("respuesta", "must not be empty")
	}
	ut, err := ParseUserType(fe.TipoUsuario)
	if err != nil {
		return Entry{}, err
	}
	id := strings.TrimSpace(fe.ID)
	if id == "" {
		id = uuid.NewString()
	}
	return Entry{
		ID:             id,
		Pregunta:       strings.TrimSpace(fe.Pregunta),
		RespuestaTexto: strings.TrimSpace(fe.Respuesta),
		PalabrasClave:  strings.Join(fe.PalabrasClave, ", "),
		TipoUsuario:    ut,
	}, nil
}

// EncodeFile writes entries as a knowledge file.
func EncodeFile(w io.Writer, entries []Entry) error {
	f := File{Entries: make([]FileEntry, 0, len(entries))}
	for _, e := range entries {
		f.Entries = append(f.Entries, FileEntry{
			ID:            e.ID,
			Pregunta:      e.Pregunta,
			Respuesta:     e.RespuestaTexto,
			PalabrasClave: Keywords(stringutil.SplitKeywords(e.PalabrasClave)),
			TipoUsuario:   string(e.TipoUsuario),
		})
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(f); err != nil {
		return fmt.Errorf("encode knowledge file: %w", err)
	}
	return enc.Close()
}
