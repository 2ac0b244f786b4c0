package knowledge

import (
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
)

var blockElements = map[string]bool{
	"p": true, "div": true, "li": true, "tr": true, "table": true,
	"ul": true, "ol": true, "section": true, "article": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
}

// PlainText flattens an HTML answer to text: table cells are separated by
// tabs, rows and block elements end with a newline, and blank lines are
// dropped. Input without markup is returned trimmed.
func PlainText(answer string) string {
	answer = strings.TrimSpace(answer)
	if !strings.Contains(answer, "<") {
		return answer
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(answer))
	if err != nil {
		return answer
	}

	var b strings.Builder
	writeText(&b, doc.Find("body"))
	return cleanLines(b.String())
}

func writeText(b *strings.Builder, sel *goquery.Selection) {
	sel.Contents().Each(func(_ int, s *goquery.Selection) {
		switch name := goquery.NodeName(s); {
		case name == "#text":
			writeInline(b, s.Text())
		case name == "br":
			b.WriteByte('\n')
		case name == "script" || name == "style" || name == "#comment":
		case name == "td" || name == "th":
			writeText(b, s)
			b.WriteByte('\t')
		case blockElements[name]:
			writeText(b, s)
			b.WriteByte('\n')
		default:
			writeText(b, s)
		}
	})
}

// writeInline collapses whitespace inside a text node but keeps one space at
// either edge so adjacent inline elements do not run together.
func writeInline(b *strings.Builder, t string) {
	words := strings.Fields(t)
	if len(words) == 0 {
		if t != "" {
			b.WriteByte(' ')
		}
		return
	}
	if strings.TrimLeftFunc(t, unicode.IsSpace) != t {
		b.WriteByte(' ')
	}
	b.WriteString(strings.Join(words, " "))
	if strings.TrimRightFunc(t, unicode.IsSpace) != t {
		b.WriteByte(' ')
	}
}

func cleanLines(text string) string {
	var lines []string
	for line := range strings.SplitSeq(text, "\n") {
		cells := strings.Split(strings.TrimRight(line, "\t "), "\t")
		for i, c := range cells {
			cells[i] = strings.Join(strings.Fields(c), " ")
		}
		if line = strings.Join(cells, "\t"); strings.TrimSpace(line) != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}
