package docs

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const UnknownDocNumber = "Unknown"

type MetadataField string

const (
	FieldDocNumber  MetadataField = "doc_number"
	FieldTitle      MetadataField = "title"
	FieldDriverInfo MetadataField = "driver_info"
	FieldEvent      MetadataField = "event"
	FieldDate       MetadataField = "date"
	FieldTime       MetadataField = "time"
	FieldReason     MetadataField = "reason"
)

// MetadataRule fills one field from the first match of Pattern.
// Format receives the submatches and returns the field value.
type MetadataRule struct {
	Field   MetadataField
	Pattern *regexp.Regexp
	Format  func(match []string) string
}

// titleCase builds a Caser per call since Casers are not safe for concurrent use.
func titleCase(s string) string {
	return cases.Title(language.English).String(s)
}

var DefaultMetadataRules = []MetadataRule{
	{
		Field:   FieldDocNumber,
		Pattern: regexp.MustCompile(`Document\s+(\d+)`),
		Format:  group(1),
	},
	{
		Field:   FieldEvent,
		Pattern: regexp.MustCompile(`(?i)(\d{4}\s+.*?Grand Prix)`),
		Format: func(match []string) string {
			return normalizeText(titleCase(match[1]))
		},
	},
	{
		Field:   FieldDate,
		Pattern: regexp.MustCompile(`Date\s+([0-9]{1,2}\s+[A-Za-z]+\s+\d{4})`),
		Format:  group(1),
	},
	{
		Field:   FieldTime,
		Pattern: regexp.MustCompile(`Time\s+([0-9]{2}:[0-9]{2})`),
		Format:  group(1),
	},
	{
		Field:   FieldDriverInfo,
		Pattern: regexp.MustCompile(`No\s*/\s*Driver\s+(\d+)\s*[-–]\s*(.+)`),
		Format: func(match []string) string {
			return fmt.Sprintf("%s – %s", match[1], strings.TrimSpace(match[2]))
		},
	},
	{
		Field:   FieldReason,
		Pattern: regexp.MustCompile(`Reason\s+([^\n]+)`),
		Format:  group(1),
	},
	{
		Field:   FieldTitle,
		Pattern: regexp.MustCompile(`(?i)(Summons|Decision|Infringement|Classification|Points|Notes|Report|Scrutineering|Grid|Procedure|Entry List|Car Presentation)`),
		Format: func(match []string) string {
			return titleCase(match[1])
		},
	},
}

// ParseMetadata applies DefaultMetadataRules to a document's text.
func ParseMetadata(text, fileName string) Metadata {
	return ParseMetadataWith(DefaultMetadataRules, text, fileName)
}

// ParseMetadataWith never fails: fields whose rule does not match keep their default.
func ParseMetadataWith(rules []MetadataRule, text, fileName string) Metadata {
	metadata := Metadata{
		DocNumber: UnknownDocNumber,
		Title:     titleFromFileName(fileName),
	}

	for _, rule := range rules {
		match := rule.Pattern.FindStringSubmatch(text)
		if match == nil {
			continue
		}

		value := strings.TrimSpace(rule.Format(match))
		if value == "" {
			continue
		}
		metadata.set(rule.Field, value)
	}

	return metadata
}

func (m *Metadata) set(field MetadataField, value string) {
	switch field {
	case FieldDocNumber:
		m.DocNumber = value
	case FieldTitle:
		m.Title = value
	case FieldDriverInfo:
		m.DriverInfo = value
	case FieldEvent:
		m.Event = value
	case FieldDate:
		m.Date = value
	case FieldTime:
		m.Time = value
	case FieldReason:
		m.Reason = value
	}
}

// BaseName is a filesystem-safe name for files derived from this document.
func (m Metadata) BaseName() string {
	name := fmt.Sprintf("Doc_%s_%s", m.DocNumber, strings.ReplaceAll(m.Title, " ", "_"))
	return unsafeNameChars.ReplaceAllString(name, "")
}

var unsafeNameChars = regexp.MustCompile(`[^\w\-.]`)

func group(n int) func(match []string) string {
	return func(match []string) string {
		return match[n]
	}
}

func titleFromFileName(fileName string) string {
	base := filepath.Base(fileName)
	if base == "." || base == string(filepath.Separator) {
		return ""
	}
	if i := strings.Index(base, "."); i > 0 {
		base = base[:i]
	}
	return titleCase(strings.ReplaceAll(base, "_", " "))
}
