package source

import (
	"github.com/lysyi3m/docs-notifier/app/docs"
)

func (c *Config) NewExtractor() (docs.Extractor, error) {
	if c.Format == FormatFeed {
		return docs.NewFeedExtractor(c.Origin, c.titlePattern)
	}

	return docs.NewHTMLExtractor(c.Origin, docs.ListingRules{
		Container:    c.Listing.Container,
		Row:          c.Listing.Row,
		TitlePattern: c.titlePattern,
	})
}
