package knowledge

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/utsbot/uts-chatbot-go/internal/directory"
	domerrors "github.com/utsbot/uts-chatbot-go/internal/errors"
	"github.com/utsbot/uts-chatbot-go/internal/logger"
	"github.com/utsbot/uts-chatbot-go/internal/storage"
)

func TestParseUserType(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in      string
		want    UserType
		wantErr error
	}{
		{"estudiante", Estudiante, nil},
		{" Student ", Estudiante, nil},
		{"TEACHER", Docente, nil},
		{"applicant", Aspirante, nil},
		{"visitor", Visitante, nil},
		{"all", Todos, nil},
		{"todos", Todos, nil},
		{"", "", domerrors.ErrMissingParameter},
		{"admin", "", domerrors.ErrInvalidInput},
	}
	for _, tt := range tests {
		got, err := ParseUserType(tt.in)
		if tt.wantErr != nil {
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ParseUserType(%q) error = %v, want %v", tt.in, err, tt.wantErr)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("ParseUserType(%q) = %q, %v; want %q", tt.in, got, err, tt.want)
		}
	}
}

func TestUserTypeSees(t *testing.T) {
	t.Parallel()
	if !Estudiante.Sees(Estudiante) || !Estudiante.Sees(Todos) {
		t.Error("estudiante should see its own and todos entries")
	}
	if Estudiante.Sees(Docente) {
		t.Error("estudiante must not see docente entries")
	}
	if Todos.Sees(Docente) || !Todos.Sees(Todos) {
		t.Error("todos requester should only see todos entries")
	}
	if UserType("admin").Valid() {
		t.Error("admin must not be a valid user type")
	}
}

func TestPlainText(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "  Abrimos a las 7.  ", "Abrimos a las 7."},
		{"inline", "<p>Hola <b>mundo</b></p><p>Adiós</p>", "Hola mundo\nAdiós"},
		{"br", "Línea 1<br>Línea 2", "Línea 1\nLínea 2"},
		{
			"table",
			"<table><tr><th>Nombre</th><th>Correo</th></tr><tr><td> Juan  Pérez </td><td>jperez@uts.edu.co</td></tr></table>",
			"Nombre\tCorreo\nJuan Pérez\tjperez@uts.edu.co",
		},
		{"list", "<ul><li>Uno</li><li>Dos</li></ul>", "Uno\nDos"},
		{"script dropped", "<p>Texto</p><script>alert(1)</script>", "Texto"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := PlainText(tt.in); got != tt.want {
				t.Errorf("PlainText() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestBuilderKind(t *testing.T) {
	t.Parallel()
	b := NewBuilder(directory.NewParser("uts.edu.co"))

	tests := []struct {
		name  string
		entry Entry
		want  Kind
	}{
		{
			name:  "titled directory",
			entry: Entry{Pregunta: "Directorio de docentes", RespuestaTexto: "Ver anexo"},
			want:  KindDirectory,
		},
		{
			name:  "keyword directory",
			entry: Entry{Pregunta: "Profesores", PalabrasClave: "directorio, docentes", RespuestaTexto: "Ver anexo"},
			want:  KindDirectory,
		},
		{
			name: "emails",
			entry: Entry{
				Pregunta:       "Contactos de ingeniería",
				RespuestaTexto: "Ana Ruiz aruiz@correo.uts.edu.co y Luis Gil lgil@uts.edu.co",
			},
			want: KindDirectory,
		},
		{
			name:  "single email",
			entry: Entry{Pregunta: "Admisiones", RespuestaTexto: "Escribe a admisiones@uts.edu.co"},
			want:  KindGeneral,
		},
		{
			name:  "foreign emails",
			entry: Entry{Pregunta: "Soporte", RespuestaTexto: "a@gmail.com b@gmail.com"},
			want:  KindGeneral,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := b.Build(tt.entry).Kind; got != tt.want {
				t.Errorf("Kind = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestBuilderSearchText(t *testing.T) {
	t.Parallel()
	b := NewBuilder(nil)
	e := b.Build(Entry{
		Pregunta:       "¿Horario de la Biblioteca?",
		RespuestaTexto: "<p>Abre a las <b>7:00</b></p>",
		PalabrasClave:  "biblioteca, horario",
	})
	if e.Text != "Abre a las 7:00" {
		t.Errorf("Text = %q", e.Text)
	}
	if want := "horario de la biblioteca abre a las 7 00 biblioteca horario"; e.SearchText != want {
		t.Errorf("SearchText = %q, want %q", e.SearchText, want)
	}
	if got := e.Keywords(); len(got) != 2 || got[1] != "horario" {
		t.Errorf("Keywords() = %v", got)
	}
}

func TestRepositoryLoader(t *testing.T) {
	t.Parallel()
	db, err := storage.NewTestDB()
	if err != nil {
		t.Fatalf("NewTestDB: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	ctx := context.Background()

	rows := []storage.KnowledgeEntry{
		{ID: "a", Pregunta: "Primera", RespuestaTexto: "Uno", TipoUsuario: "estudiante"},
		{ID: "b", Pregunta: "Segunda", RespuestaTexto: "<b>Dos</b>", TipoUsuario: "todos"},
	}
	if err := db.SaveKnowledgeBatch(ctx, rows); err != nil {
		t.Fatalf("SaveKnowledgeBatch: %v", err)
	}

	loader := NewRepositoryLoader(db, NewBuilder(nil), logger.NewWithWriter("error", io.Discard))
	entries, err := loader.LoadAll(ctx)
	if err != nil {
		t.Fatalf("LoadAll: %v", err)
	}
	if len(entries) != 2 || entries[0].ID != "a" || entries[1].ID != "b" {
		t.Fatalf("unexpected entries: %+v", entries)
	}
	if entries[1].Text != "Dos" || entries[1].TipoUsuario != Todos {
		t.Errorf("derived fields not filled: %+v", entries[1])
	}
}

const sampleFile = `entries:
  - id: horario-biblioteca
    pregunta: ¿Cuál es el horario de la biblioteca?
    respuesta: La biblioteca abre de 7:00 a 21:00.
    palabras_clave: [biblioteca, horario]
    tipo_usuario: todos
  - pregunta: Fechas de matrícula
    respuesta: Del 15 de enero al 2 de febrero.
    palabras_clave: matricula, fechas
    tipo_usuario: student
`

func TestDecodeFile(t *testing.T) {
	t.Parallel()
	entries, err := DecodeFile(strings.NewReader(sampleFile))
	if err != nil {
		t.Fatalf("DecodeFile: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].ID != "horario-biblioteca" || entries[0].PalabrasClave != "biblioteca, horario" {
		t.Errorf("unexpected first entry: %+v", entries[0])
	}
	if entries[1].ID == "" {
		t.Error("missing id should be generated")
	}
	if entries[1].TipoUsuario != Estudiante || entries[1].PalabrasClave != "matricula, fechas" {
		t.Errorf("unexpected second entry: %+v", entries[1])
	}
}

func TestDecodeFile_Invalid(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		doc  string
	}{
		{"bad user type", "entries:\n  - pregunta: a\n    respuesta: b\n    tipo_usuario: admin\n"},
		{"empty pregunta", "entries:\n  - pregunta: ''\n    respuesta: b\n    tipo_usuario: todos\n"},
		{"duplicate id", "entries:\n  - {id: x, pregunta: a, respuesta: b, tipo_usuario: todos}\n  - {id: x, pregunta: c, respuesta: d, tipo_usuario: todos}\n"},
		{"unknown field", "entries:\n  - pregunta: a\n    respuesta: b\n    tipo_usuario: todos\n    extra: 1\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if _, err := DecodeFile(strings.NewReader(tt.doc)); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestEncodeFile_RoundTrip(t *testing.T) {
	t.Parallel()
	in := []Entry{{ID: "x", Pregunta: "P", RespuestaTexto: "R", PalabrasClave: "a, b", TipoUsuario: Docente}}

	var buf bytes.Buffer
	if err := EncodeFile(&buf, in); err != nil {
		t.Fatalf("EncodeFile: %v", err)
	}
	out, err := DecodeFile(&buf)
	if err != nil {
		t.Fatalf("DecodeFile: %v", err)
	}
	if len(out) != 1 || out[0] != in[0] {
		t.Errorf("round trip mismatch: %+v", out)
	}
}
