package docs

import (
	"bytes"
	"cmp"
	"fmt"
	"net/url"
	"regexp"
	"time"

	"github.com/mmcdole/gofeed"
)

// FeedExtractor reads records from an RSS or Atom listing, such as a release feed.
type FeedExtractor struct {
	gofeedParser *gofeed.Parser
	origin       *url.URL
	titlePattern *regexp.Regexp
}

func NewFeedExtractor(origin string, titlePattern *regexp.Regexp) (*FeedExtractor, error) {
	base, err := url.Parse(origin)
	if err != nil {
		return nil, fmt.Errorf("invalid origin %q: %w", origin, err)
	}

	return &FeedExtractor{
		gofeedParser: gofeed.NewParser(),
		origin:       base,
		titlePattern: titlePattern,
	}, nil
}

func (e *FeedExtractor) Extract(data []byte) Outcome {
	feed, err := e.gofeedParser.Parse(bytes.NewReader(data))
	if err != nil {
		return layoutChanged(fmt.Sprintf("failed to parse feed: %v", err))
	}

	records := make([]Record, 0, len(feed.Items))
	for _, item := range feed.Items {
		record, ok := e.normalizeItem(item)
		if !ok {
			continue
		}
		records = append(records, record)
	}

	return found(records)
}

func (e *FeedExtractor) normalizeItem(item *gofeed.Item) (Record, bool) {
	if item == nil {
		return Record{}, false
	}

	title := normalizeText(item.Title)
	link := cmp.Or(item.Link, item.GUID)
	if title == "" || link == "" {
		return Record{}, false
	}
	if e.titlePattern != nil && !e.titlePattern.MatchString(title) {
		return Record{}, false
	}

	ref, err := url.Parse(link)
	if err != nil {
		return Record{}, false
	}
	resolved := e.origin.ResolveReference(ref)
	if resolved.Scheme != "http" && resolved.Scheme != "https" {
		return Record{}, false
	}

	record := Record{Title: title, Link: resolved.String()}

	if item.PublishedParsed != nil {
		record.Published = item.PublishedParsed.UTC().Format(time.DateOnly)
	} else if item.UpdatedParsed != nil {
		record.Published = item.UpdatedParsed.UTC().Format(time.DateOnly)
	}

	return record, true
}
