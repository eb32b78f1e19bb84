package docs

import (
	"bytes"
	"fmt"
	"log/slog"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const (
	DefaultContainerSelector = "table.views-table"
	DefaultRowSelector       = "tbody tr"
	DefaultTitlePattern      = `(?i)^doc\b`
)

// Extractor turns a rendered listing into candidate records, newest first.
type Extractor interface {
	Extract(data []byte) Outcome
}

type ListingRules struct {
	Container    string
	Row          string
	TitlePattern *regexp.Regexp // nil accepts every title
}

type HTMLExtractor struct {
	origin *url.URL
	rules  ListingRules
}

func NewHTMLExtractor(origin string, rules ListingRules) (*HTMLExtractor, error) {
	base, err := url.Parse(origin)
	if err != nil {
		return nil, fmt.Errorf("invalid origin %q: %w", origin, err)
	}
	if !base.IsAbs() {
		return nil, fmt.Errorf("origin %q must be an absolute URL", origin)
	}

	if rules.Container == "" {
		rules.Container = DefaultContainerSelector
	}
	if rules.Row == "" {
		rules.Row = DefaultRowSelector
	}

	return &HTMLExtractor{origin: base, rules: rules}, nil
}

func (e *HTMLExtractor) Extract(data []byte) Outcome {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return layoutChanged(fmt.Sprintf("failed to parse markup: %v", err))
	}

	container := doc.Find(e.rules.Container).First()
	if container.Length() == 0 {
		return layoutChanged(fmt.Sprintf("listing container %q not found", e.rules.Container))
	}

	var records []Record
	skipped := 0

	container.Find(e.rules.Row).Each(func(_ int, row *goquery.Selection) {
		record, ok := e.recordFromRow(row)
		if !ok {
			skipped++
			return
		}
		records = append(records, record)
	})

	slog.Debug("Listing extracted", "origin", e.origin.Host, "records", len(records), "skipped", skipped)

	return found(records)
}

func (e *HTMLExtractor) recordFromRow(row *goquery.Selection) (Record, bool) {
	anchor := row.Find("a[href]").First()
	if anchor.Length() == 0 {
		return Record{}, false
	}

	href := strings.TrimSpace(anchor.AttrOr("href", ""))
	if href == "" || strings.HasPrefix(href, "#") {
		return Record{}, false
	}

	link, err := e.resolve(href)
	if err != nil {
		return Record{}, false
	}

	cells := row.ChildrenFiltered("td")

	title := normalizeText(anchor.Text())
	if title == "" && cells.Length() > 0 {
		title = normalizeText(cells.First().Text())
	}
	if title == "" || !e.acceptsTitle(title) {
		return Record{}, false
	}

	var published string
	if cells.Length() >= 2 {
		published = normalizeText(cells.Last().Text())
	}

	return Record{Title: title, Link: link, Published: published}, true
}

func (e *HTMLExtractor) acceptsTitle(title string) bool {
	return e.rules.TitlePattern == nil || e.rules.TitlePattern.MatchString(title)
}

func (e *HTMLExtractor) resolve(href string) (string, error) {
	ref, err := url.Parse(href)
	if err != nil {
		return "", err
	}

	resolved := e.origin.ResolveReference(ref)
	if resolved.Scheme != "http" && resolved.Scheme != "https" {
		return "", fmt.Errorf("unsupported scheme %q", resolved.Scheme)
	}
	return resolved.String(), nil
}
