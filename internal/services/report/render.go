package report

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ternarybob/finbot/internal/models"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

// markdown is safe for concurrent Convert calls
var markdown = goldmark.New(
	goldmark.WithExtensions(extension.GFM),
	goldmark.WithRendererOptions(
		html.WithHardWraps(),
		html.WithXHTML(),
	),
)

// Markdown renders the payload's non-omitted sections as one markdown document
func Markdown(payload *models.ReportPayload) string {
	var b strings.Builder
	for i, section := range payload.Sections() {
		if i > 0 {
			b.WriteString("\n---\n\n")
		}
		writeSectionMarkdown(&b, section)
	}
	return b.String()
}

// SectionMarkdown renders one section
func SectionMarkdown(section *models.Section) string {
	var b strings.Builder
	writeSectionMarkdown(&b, section)
	return b.String()
}

func writeSectionMarkdown(b *strings.Builder, s *models.Section) {
	fmt.Fprintf(b, "## %s\n\n", s.Title)

	if s.Notice != "" {
		fmt.Fprintf(b, "> %s\n\n", s.Notice)
	}
	if s.Body != "" {
		b.WriteString(s.Body)
		b.WriteString("\n\n")
	}

	if len(s.Fields) > 0 {
		b.WriteString("| Group | Field | Value |\n|---|---|---|\n")
		for _, f := range s.Fields {
			fmt.Fprintf(b, "| %s | %s | %s |\n", escapeCell(f.Group), escapeCell(f.Name), escapeCell(f.Value))
		}
		b.WriteString("\n")
	}

	for _, l := range s.Links {
		fmt.Fprintf(b, "- [%s](%s)\n", l.Title, l.URL)
	}
	if len(s.Links) > 0 {
		b.WriteString("\n")
	}

	if s.Footer != "" {
		fmt.Fprintf(b, "*%s*\n", s.Footer)
	}
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", "\\|")
}

// HTML converts markdown to an HTML fragment
func HTML(md string) (string, error) {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(md), &buf); err != nil {
		return "", fmt.Errorf("failed to render markdown: %w", err)
	}
	return buf.String(), nil
}
