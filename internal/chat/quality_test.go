package chat

import (
	"testing"

	"github.com/utsbot/uts-chatbot-go/internal/rag"
)

func TestAnalyzeResponseQuality(t *testing.T) {
	t.Parallel()
	one := []rag.Chunk{generalChunk("a", "texto")}

	tests := []struct {
		name     string
		text     string
		evidence []rag.Chunk
		want     bool
	}{
		{"empty evidence, confident text", "La biblioteca abre a las 7:00.", nil, true},
		{"empty evidence, empty text", "", []rag.Chunk{}, true},
		{"english limitation", "I don't have specific information on that.", one, true},
		{"spanish limitation", "No tengo información específica sobre ese trámite.", one, true},
		{"official site referral", "Te recomiendo consultar el sitio web oficial de las UTS.", one, true},
		{"no encontré", "Lo siento, no pude encontrar ese dato.", one, true},
		{"knowledge limited", "Mi base de conocimientos es limitada en ese tema.", one, true},
		{"confident answer", "La biblioteca abre de 7:00 a 21:00 de lunes a viernes.", one, false},
		{"mentions informacion positively", "Tengo información sobre becas: hay tres convocatorias.", one, false},
		{"fixed no information template", NoInformationAnswer, one, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := AnalyzeResponseQuality(tt.text, "pregunta", tt.evidence); got != tt.want {
				t.Errorf("AnalyzeResponseQuality(%q) = %v, want %v", tt.text, got, tt.want)
			}
		})
	}
}
