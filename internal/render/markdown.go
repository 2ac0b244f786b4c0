// Package render converts composed answers to HTML for web clients.
package render

import (
	"bytes"
	"strings"
	"sync"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

var (
	mdOnce sync.Once
	md     goldmark.Markdown
)

func converter() goldmark.Markdown {
	mdOnce.Do(func() {
		// Raw HTML is omitted because html.WithUnsafe is not set.
		md = goldmark.New(
			goldmark.WithExtensions(extension.Linkify, extension.Strikethrough),
			goldmark.WithRendererOptions(html.WithHardWraps()),
		)
	})
	return md
}

// Markdown renders an answer as HTML. Raw HTML in the input is dropped and
// the widget sentinel is kept as plain text. On a conversion error the
// escaped text is returned inside a paragraph.
func Markdown(text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return ""
	}
	var buf bytes.Buffer
	if err := converter().Convert([]byte(text), &buf); err != nil {
		return "<p>" + escape(text) + "</p>"
	}
	return strings.TrimSpace(buf.String())
}

var escaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", `"`, "&#34;", "'", "&#39;")

func escape(s string) string {
	return escaper.Replace(s)
}
