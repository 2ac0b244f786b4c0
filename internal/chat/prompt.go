package chat

import (
	"fmt"
	"strings"

	"github.com/utsbot/uts-chatbot-go/internal/intent"
	"github.com/utsbot/uts-chatbot-go/internal/knowledge"
	"github.com/utsbot/uts-chatbot-go/internal/rag"
	"github.com/utsbot/uts-chatbot-go/internal/stringutil"
)

// systemInstructions sets persona, tone and scope of generated answers.
const systemInstructions = `Eres el asistente virtual de las Unidades Tecnológicas de Santander (UTS).
Respondes en español, con un tono cercano, claro y respetuoso.
Solo respondes sobre la vida universitaria de las UTS: trámites, programas, horarios, servicios y docentes.
Usa únicamente la información disponible; si no alcanza, dilo con honestidad y sugiere consultar el sitio web oficial.
Puedes usar algunos emojis para hacer la respuesta amigable, sin exagerar.
No incluyas citas de fuentes, referencias ni enlaces entre corchetes en el cuerpo de la respuesta.`

const (
	noHistory  = "(sin conversación previa)"
	noEvidence = "(no se encontró información relevante)"
	// widgetShownNote replaces the sentinel in prompt history so the model
	// never echoes it back.
	widgetShownNote = "(se mostró la malla curricular interactiva)"
)

// Budgets bounds the sections of a prompt and the final answer, in runes.
type Budgets struct {
	History  int
	Evidence int
	Response int
}

// Prompt is a fully assembled LLM prompt. History and Evidence hold the
// already truncated sections.
type Prompt struct {
	System   string
	History  string
	Question string
	UserType knowledge.UserType
	Evidence string
	Budget   int
}

// BuildPrompt flattens the session history and evidence, truncating each to
// its budget. History keeps the newest turns that fit and starts with
// stringutil.Ellipsis when older turns were dropped. Evidence is cut at the
// end and then ends with stringutil.Ellipsis.
func BuildPrompt(in AnswerInput, budgets Budgets) Prompt {
	return Prompt{
		System:   systemInstructions,
		History:  truncateHistory(formatHistory(in.Session), budgets.History),
		Question: strings.TrimSpace(in.Question),
		UserType: in.UserType,
		Evidence: stringutil.Truncate(formatEvidence(in.Evidence), budgets.Evidence),
		Budget:   budgets.Response,
	}
}

// String renders the prompt sent to the model.
func (p Prompt) String() string {
	history := p.History
	if history == "" {
		history = noHistory
	}
	evidence := p.Evidence
	if evidence == "" {
		evidence = noEvidence
	}

	var b strings.Builder
	b.WriteString(p.System)
	b.WriteString("\n\n## Conversación previa\n")
	b.WriteString(history)
	fmt.Fprintf(&b, "\n\n## Pregunta del usuario (%s)\n", p.UserType)
	b.WriteString(p.Question)
	b.WriteString("\n\n## Información disponible\n")
	b.WriteString(evidence)
	fmt.Fprintf(&b, "\n\n## Formato\nResponde en un máximo de %d caracteres.", p.Budget)
	return b.String()
}

// formatHistory renders one entry per turn, oldest first.
func formatHistory(s *Session) []string {
	if !s.HasHistory() {
		return nil
	}
	turns := make([]string, 0, len(s.History))
	for _, t := range s.History {
		answer := strings.ReplaceAll(t.Respuesta, intent.WidgetSentinel, widgetShownNote)
		turns = append(turns, "Usuario: "+strings.TrimSpace(t.Pregunta)+"\nAsistente: "+strings.TrimSpace(answer))
	}
	return turns
}

// truncateHistory joins the newest turns that fit in budget runes. When
// older turns are dropped the result starts with Ellipsis on its own line.
// A newest turn longer than the whole budget is cut at the end instead.
func truncateHistory(turns []string, budget int) string {
	if len(turns) == 0 {
		return ""
	}
	const marker = stringutil.Ellipsis + "\n"
	markerLen := stringutil.RuneLen(marker)

	kept, used := 0, 0
	for i := len(turns) - 1; i >= 0; i-- {
		n := stringutil.RuneLen(turns[i])
		if kept > 0 {
			n++ // newline separator
		}
		if used+n > budget {
			break
		}
		used += n
		kept++
	}
	if kept == len(turns) {
		return strings.Join(turns, "\n")
	}
	for kept > 1 && used+markerLen > budget {
		used -= stringutil.RuneLen(turns[len(turns)-kept]) + 1
		kept--
	}
	if kept == 0 || used+markerLen > budget {
		return stringutil.Truncate(turns[len(turns)-1], budget)
	}
	return marker + strings.Join(turns[len(turns)-kept:], "\n")
}

func formatEvidence(chunks []rag.Chunk) string {
	parts := make([]string, 0, len(chunks))
	for _, c := range chunks {
		text := strings.TrimSpace(c.Text)
		if text == "" {
			continue
		}
		if c.Titulo != "" {
			text = "[" + c.Titulo + "]\n" + text
		}
		parts = append(parts, text)
	}
	return strings.Join(parts, "\n\n")
}
