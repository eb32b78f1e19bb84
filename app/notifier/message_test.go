package notifier

import (
	"strings"
	"testing"

	"github.com/lysyi3m/docs-notifier/app/docs"
)

func TestFormatDocument(t *testing.T) {
	tests := []struct {
		name     string
		metadata docs.Metadata
		expected string
	}{
		{
			name: "all fields",
			metadata: docs.Metadata{
				DocNumber:  "42",
				Title:      "Decision",
				DriverInfo: "16 – Charles Leclerc",
				Event:      "2025 Monaco Grand Prix",
				Date:       "25 May 2025",
				Time:       "15:31",
				Reason:     "Impeding",
			},
			expected: "**Doc 42 — Decision — 16 – Charles Leclerc**\n2025 Monaco Grand Prix — 25 May 2025 — 15:31\n_Impeding_",
		},
		{
			name:     "header only",
			metadata: docs.Metadata{DocNumber: "Unknown", Title: "Entry List"},
			expected: "**Doc Unknown — Entry List**",
		},
		{
			name:     "event without time",
			metadata: docs.Metadata{DocNumber: "3", Title: "Grid", Event: "2025 Monaco Grand Prix", Date: "24 May 2025"},
			expected: "**Doc 3 — Grid**\n2025 Monaco Grand Prix — 24 May 2025",
		},
		{
			name:     "date without event is dropped",
			metadata: docs.Metadata{DocNumber: "3", Title: "Grid", Date: "24 May 2025", Reason: "Late"},
			expected: "**Doc 3 — Grid**\n_Late_",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatDocument(tt.metadata); got != tt.expected {
				t.Errorf("Expected %q, got %q", tt.expected, got)
			}
		})
	}
}

func TestFormatDocument_Truncates(t *testing.T) {
	metadata := docs.Metadata{DocNumber: "1", Title: "Notes", Reason: strings.Repeat("x", 3000)}

	got := FormatDocument(metadata)
	if n := len([]rune(got)); n != maxContentLength {
		t.Errorf("Expected %d runes, got %d", maxContentLength, n)
	}
}

func TestRecordPayload_NoPublished(t *testing.T) {
	p := recordPayload(docs.Record{Title: "v1.2.0", Link: "https://github.com/x/y/releases/tag/v1.2.0"})

	if len(p.Embeds) != 1 {
		t.Fatalf("Expected 1 embed, got %d", len(p.Embeds))
	}
	if p.Embeds[0].Description != "" {
		t.Errorf("Expected empty description, got %q", p.Embeds[0].Description)
	}
	if p.Embeds[0].Footer == nil || p.Embeds[0].Footer.Text != embedFooter {
		t.Error("Expected footer to be set")
	}
}
