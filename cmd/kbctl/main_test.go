package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domerrors "github.com/utsbot/uts-chatbot-go/internal/errors"
)

const sampleFile = `entries:
  - id: biblioteca
    pregunta: Horario de la biblioteca
    respuesta: La biblioteca abre de 7:00 a 21:00 de lunes a sábado.
    palabras_clave: [biblioteca, horario]
    tipo_usuario: estudiante
  - id: inscripciones
    pregunta: ¿Cuándo son las inscripciones?
    respuesta: Las inscripciones abren el 15/01/2026.
    palabras_clave: inscripciones, matricula
    tipo_usuario: todos
`

// setupEnv points kbctl at a fresh data directory with backups off.
func setupEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("UTS_DATA_DIR", dir)
	t.Setenv("UTS_R2_ENABLED", "false")
	t.Setenv("UTS_BACKUP_SCHEDULE", "")
	return dir
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	err := cmd.Execute()
	return out.String(), err
}

func writeSample(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "kb.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestImportExportSearch(t *testing.T) {
	setupEnv(t)
	path := writeSample(t, sampleFile)

	out, err := run(t, "import", path)
	require.NoError(t, err)
	assert.Contains(t, out, "imported 2 entries (2 total)")

	out, err = run(t, "export")
	require.NoError(t, err)
	assert.Contains(t, out, "id: biblioteca")
	assert.Contains(t, out, "tipo_usuario: estudiante")
	assert.Contains(t, out, "Las inscripciones abren el 15/01/2026.")

	out, err = run(t, "search", "-u", "estudiante", "horario de la biblioteca")
	require.NoError(t, err)
	assert.Contains(t, out, "SCORE")
	assert.Contains(t, out, "biblioteca")

	out, err = run(t, "search", "-u", "docente", "horario de la biblioteca")
	require.NoError(t, err)
	assert.NotContains(t, out, "estudiante")
}

func TestShowFindDelete(t *testing.T) {
	setupEnv(t)
	_, err := run(t, "import", writeSample(t, sampleFile))
	require.NoError(t, err)

	out, err := run(t, "show", "inscripciones")
	require.NoError(t, err)
	assert.Contains(t, out, "id: inscripciones")
	assert.Contains(t, out, "- matricula")

	out, err = run(t, "find", "horario")
	require.NoError(t, err)
	assert.Contains(t, out, "biblioteca")
	assert.NotContains(t, out, "inscripciones")

	out, err = run(t, "delete", "biblioteca")
	require.NoError(t, err)
	assert.Contains(t, out, "deleted biblioteca")

	_, err = run(t, "show", "biblioteca")
	assert.ErrorIs(t, err, domerrors.ErrNotFound)
	_, err = run(t, "delete", "biblioteca")
	assert.ErrorIs(t, err, domerrors.ErrNotFound)

	out, err = run(t, "find", "horario")
	require.NoError(t, err)
	assert.Contains(t, out, "no entries")
}

func TestImportDryRun(t *testing.T) {
	setupEnv(t)
	path := writeSample(t, sampleFile)

	out, err := run(t, "import", "--dry-run", path)
	require.NoError(t, err)
	assert.Contains(t, out, "2 entries are valid")

	out, err = run(t, "export")
	require.NoError(t, err)
	assert.NotContains(t, out, "biblioteca")
}

func TestImportRejectsInvalidFile(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"missing pregunta", "entries:\n  - respuesta: hola\n    tipo_usuario: todos\n"},
		{"unknown field", "entries:\n  - pregunta: a\n    respuesta: b\n    tipo_usuario: todos\n    extra: 1\n"},
		{"bad user type", "entries:\n  - pregunta: a\n    respuesta: b\n    tipo_usuario: rector\n"},
		{"duplicate id", "entries:\n  - {id: x, pregunta: a, respuesta: b, tipo_usuario: todos}\n  - {id: x, pregunta: c, respuesta: d, tipo_usuario: todos}\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setupEnv(t)
			_, err := run(t, "import", writeSample(t, tt.content))
			require.Error(t, err)

			out, err := run(t, "export")
			require.NoError(t, err)
			assert.NotContains(t, out, "pregunta:", "nothing is written when validation fails")
		})
	}
}

func TestExportRefusesToOverwrite(t *testing.T) {
	setupEnv(t)
	existing := writeSample(t, "keep me")

	_, err := run(t, "export", existing)
	require.Error(t, err)

	data, err := os.ReadFile(existing)
	require.NoError(t, err)
	assert.Equal(t, "keep me", string(data))
}

func TestSearchRejectsUnknownUserType(t *testing.T) {
	setupEnv(t)
	_, err := run(t, "search", "-u", "rector", "biblioteca")
	require.Error(t, err)
}

func TestBackupCommandsRequireR2(t *testing.T) {
	for _, args := range [][]string{
		{"backup"},
		{"backups"},
		{"restore", "latest", "out.db"},
	} {
		t.Run(args[0], func(t *testing.T) {
			setupEnv(t)
			_, err := run(t, args...)
			require.Error(t, err)
			assert.ErrorIs(t, err, domerrors.ErrBackupDisabled)
		})
	}
}

func TestVersion(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "uts-chatbot")
}
