package chat

import (
	"fmt"
	"strings"

	"github.com/utsbot/uts-chatbot-go/internal/directory"
	"github.com/utsbot/uts-chatbot-go/internal/intent"
	"github.com/utsbot/uts-chatbot-go/internal/rag"
)

// WidgetAnswer is the fixed answer that triggers the curriculum widget. It
// contains intent.WidgetSentinel exactly once.
const WidgetAnswer = "¡Claro! 📘 Aquí tienes la malla curricular de tu programa. " +
	"Puedes recorrer cada semestre y ver sus asignaturas, créditos y prerrequisitos.\n\n" +
	intent.WidgetSentinel + "\n\n" +
	"Si tienes una pregunta puntual sobre una asignatura (créditos, prerrequisitos u horas), escríbela y te respondo."

// NoInformationAnswer is returned when there is nothing to answer from.
const NoInformationAnswer = "No tengo información específica sobre eso en mi base de conocimientos. " +
	"Te recomiendo consultar el sitio web oficial de las UTS (www.uts.edu.co) o comunicarte con la dependencia correspondiente."

// NoDirectoryAnswer is returned for teacher lookups without directory data.
const NoDirectoryAnswer = "En este momento no tengo disponible el directorio de docentes. " +
	"Puedes consultarlo en el sitio web oficial de las UTS (www.uts.edu.co) " +
	"o comunicarte con la oficina de Atención al Ciudadano."

const (
	evidenceIntro    = "Esto es lo que encontré en la información institucional:"
	continuationNote = "Si quieres, puedo ampliar algo de lo que hablamos antes. 😊"
	bullet           = "• "
)

// teacherAnswer renders every available field of one teacher.
func teacherAnswer(r directory.Record) string {
	var b strings.Builder
	fmt.Fprintf(&b, "👩‍🏫 **%s**\n", r.Nombre)
	fmt.Fprintf(&b, "📧 Correo: %s", r.Correo)
	writeField(&b, "🎓 Estudios", r.Estudios)
	writeField(&b, "📚 Cursos", r.Cursos)
	writeField(&b, "⏳ Experiencia total", r.ExperienciaTotal)
	writeField(&b, "🏫 Experiencia en UTS", r.ExperienciaUTS)
	writeField(&b, "🔗 CvLAC", r.CvLAC)
	return b.String()
}

func writeField(b *strings.Builder, label, value string) {
	if value = strings.TrimSpace(value); value != "" {
		fmt.Fprintf(b, "\n%s: %s", label, value)
	}
}

// teacherChoicesAnswer lists every candidate so the user can pick one.
func teacherChoicesAnswer(name string, records []directory.Record) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Encontré %d docentes que coinciden con \"%s\". ¿A cuál te refieres?\n", len(records), name)
	for i, r := range records {
		fmt.Fprintf(&b, "\n%d. %s (%s)", i+1, r.Nombre, r.Correo)
	}
	b.WriteString("\n\nEscribe el nombre completo del docente para ver su información.")
	return b.String()
}

// teacherNotFoundAnswer is returned when a cleaned name matched nobody.
func teacherNotFoundAnswer(name string) string {
	return fmt.Sprintf("No encontré un docente llamado \"%s\" en el directorio. "+
		"Verifica la ortografía o intenta con nombre y apellido.\n\n"+
		"También puedo ayudarte con horarios, trámites, la malla curricular y los servicios de las UTS.", name)
}

// evidenceAnswer lists evidence texts as bullets. Callers apply the response
// budget.
func evidenceAnswer(evidence []rag.Chunk, withContinuation bool) string {
	var b strings.Builder
	b.WriteString(evidenceIntro)
	for _, c := range evidence {
		text := strings.TrimSpace(c.Text)
		if text == "" {
			continue
		}
		b.WriteString("\n\n")
		b.WriteString(bullet)
		b.WriteString(text)
	}
	if withContinuation {
		b.WriteString("\n\n")
		b.WriteString(continuationNote)
	}
	return b.String()
}
