package intent

import (
	"strings"
	"testing"
)

func TestIsMallaQuery(t *testing.T) {
	t.Parallel()
	tests := []struct {
		query string
		want  bool
	}{
		{"malla curricular", true},
		{"¿Dónde veo el PENSUM de sistemas?", true},
		{"plan de estudios de enfermería", true},
		{"¿Cuántos créditos tiene Cálculo Diferencial?", true},
		{"prerrequisitos de Física II", true},
		{"¿Cuándo son las inscripciones?", false},
		{"horario de la biblioteca", false},
		{"mallas", true},
		{"mallamos", false},
		{"¿Qué materias tiene Ingeniería de Sistemas?", true},
		{"asignaturas de la carrera de enfermería", true},
		{"¿Cómo solicito créditos con el ICETEX?", false},
		{"¿Qué materias puedo homologar?", false},
		{"¿Dónde reclamo mis asignaturas perdidas?", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := IsMallaQuery(tt.query); got != tt.want {
			t.Errorf("IsMallaQuery(%q) = %v, want %v", tt.query, got, tt.want)
		}
	}
}

func TestIsSpecificMallaQuery(t *testing.T) {
	t.Parallel()
	tests := []struct {
		query string
		want  bool
	}{
		{"¿Cuántos créditos tiene Cálculo Diferencial?", true},
		{"how many: creditos de Programación I", true},
		{"¿Cálculo Integral tiene 4 créditos?", true},
		{"¿Cuáles son los prerrequisitos de Física II?", true},
		{"¿Qué necesito aprobar antes de Cálculo Integral?", true},
		{"¿Cuántas horas semanales tiene Química?", true},
		{"materias del semestre 3", true},
		{"¿Qué asignaturas se ven en quinto semestre?", true},
		{"materias de 2do semestre", true},
		{"¿En qué semestre se ve Estadística?", true},
		{"malla curricular", false},
		{"quiero ver el plan de estudios", false},
		{"materias de la carrera", false},
	}
	for _, tt := range tests {
		if got := IsSpecificMallaQuery(tt.query); got != tt.want {
			t.Errorf("IsSpecificMallaQuery(%q) = %v, want %v", tt.query, got, tt.want)
		}
	}
}

func TestIsTeacherSearchQuery(t *testing.T) {
	t.Parallel()
	tests := []struct {
		query string
		want  bool
	}{
		{"Juan Pérez", true},
		{"María del Pilar Núñez", true},
		{"profesor Rojas", true},
		{"¿Quién es la docente de cálculo?", true},
		{"correo del Ing. Salas", true},
		{"Juan", false},
		{"uno dos tres cuatro cinco", false},
		{"¿Horario biblioteca?", false},
		{"Sala 302 bloque B", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := IsTeacherSearchQuery(tt.query); got != tt.want {
			t.Errorf("IsTeacherSearchQuery(%q) = %v, want %v", tt.query, got, tt.want)
		}
	}
}

func TestClassify(t *testing.T) {
	t.Parallel()
	tests := []struct {
		query      string
		wantWidget bool
		wantLabel  string
	}{
		{"malla curricular", true, "malla_general"},
		{"¿Cuántos créditos tiene Cálculo Diferencial?", false, "malla_specific"},
		{"Juan Pérez", false, "teacher_search"},
		{"¿Cómo pago la matrícula?", false, "general"},
		{"materias de la carrera", true, "malla_general"},
		{"¿Cómo solicito créditos con el ICETEX?", false, "general"},
		{"¿Qué materias puedo homologar?", false, "general"},
		{"¿Dónde reclamo mis asignaturas perdidas?", false, "general"},
	}
	for _, tt := range tests {
		got := Classify(tt.query)
		if got.WantsWidget() != tt.wantWidget {
			t.Errorf("Classify(%q).WantsWidget() = %v, want %v", tt.query, got.WantsWidget(), tt.wantWidget)
		}
		if got.Label() != tt.wantLabel {
			t.Errorf("Classify(%q).Label() = %q, want %q", tt.query, got.Label(), tt.wantLabel)
		}
	}
}

func TestWidgetState(t *testing.T) {
	t.Parallel()

	if HasSeenMallaInSession(nil) {
		t.Error("empty history must not count as seen")
	}
	answers := []string{"Hola", "Aquí está tu malla\n" + WidgetSentinel + "\n"}
	if !HasSeenMallaInSession(answers) {
		t.Error("sentinel in history should count as seen")
	}
	if WidgetStateFromHistory(answers) != WidgetShown {
		t.Error("expected WidgetShown")
	}
	if WidgetStateFromHistory([]string{"MALLA_CURRICULAR_WIDGET sin corchetes"}) != WidgetNotShown {
		t.Error("partial marker must not count")
	}
	if WidgetShown.String() != "shown" || WidgetNotShown.String() != "not_shown" {
		t.Error("unexpected WidgetState strings")
	}
	if strings.Count(WidgetSentinel, "[[") != 1 {
		t.Error("sentinel should be a single bracketed token")
	}
}
