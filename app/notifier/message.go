package notifier

import (
	"fmt"
	"strings"

	"github.com/lysyi3m/docs-notifier/app/docs"
)

const (
	embedColor  = 0x3498DB
	embedFooter = "Document update"

	// Discord rejects message content above this length.
	maxContentLength = 2000
)

type payload struct {
	Content string  `json:"content,omitempty"`
	Embeds  []embed `json:"embeds,omitempty"`
}

type embed struct {
	Title       string            `json:"title"`
	URL         string            `json:"url,omitempty"`
	Description string            `json:"description,omitempty"`
	Color       int               `json:"color"`
	Footer      *embedFooterField `json:"footer,omitempty"`
}

type embedFooterField struct {
	Text string `json:"text"`
}

// FormatDocument renders the text header of a document notification:
// a bold line, an optional event line and an optional italic reason line.
func FormatDocument(metadata docs.Metadata) string {
	var b strings.Builder

	b.WriteString("**Doc ")
	b.WriteString(metadata.DocNumber)
	b.WriteString(" — ")
	b.WriteString(metadata.Title)
	if metadata.DriverInfo != "" {
		b.WriteString(" — ")
		b.WriteString(metadata.DriverInfo)
	}
	b.WriteString("**")

	if metadata.Event != "" {
		parts := []string{metadata.Event}
		for _, part := range []string{metadata.Date, metadata.Time} {
			if part != "" {
				parts = append(parts, part)
			}
		}
		b.WriteString("\n")
		b.WriteString(strings.Join(parts, " — "))
	}

	if metadata.Reason != "" {
		b.WriteString("\n_")
		b.WriteString(metadata.Reason)
		b.WriteString("_")
	}

	return truncate(b.String(), maxContentLength)
}

func recordPayload(record docs.Record) payload {
	description := ""
	if record.Published != "" {
		description = fmt.Sprintf("📄 Published: %s", record.Published)
	}

	return payload{
		Embeds: []embed{{
			Title:       truncate(record.Title, 256),
			URL:         record.Link,
			Description: description,
			Color:       embedColor,
			Footer:      &embedFooterField{Text: embedFooter},
		}},
	}
}

func errorContent(message string) string {
	return fmt.Sprintf("❌ Docs notifier error:\n```\n%s\n```", truncate(message, maxContentLength-40))
}

func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit-1]) + "…"
}
