package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/lysyi3m/docs-notifier/app/docs"
)

// DocumentProcessor reads PDFs through their first page text and renders every page.
// HTML documents are reduced to readable text and carry no pages.
type DocumentProcessor struct {
	RenderDPI float64
}

func (p DocumentProcessor) Process(ctx context.Context, download *docs.Download) (docs.Metadata, []docs.Page, error) {
	switch {
	case download.IsPDF():
		return p.processPDF(ctx, download)

	case download.IsHTML():
		text, err := docs.ReadableText(download.Data, download.URL)
		if err != nil {
			return docs.Metadata{}, nil, fmt.Errorf("failed to extract text: %w", err)
		}
		return docs.ParseMetadata(text, download.FileName), nil, nil

	default:
		slog.Debug("Unsupported document type, using defaults", "url", download.URL, "content_type", download.ContentType)
		return docs.ParseMetadata("", download.FileName), nil, nil
	}
}

func (p DocumentProcessor) processPDF(ctx context.Context, download *docs.Download) (docs.Metadata, []docs.Page, error) {
	pdf, err := docs.OpenPDF(download.Data)
	if err != nil {
		return docs.Metadata{}, nil, err
	}
	defer pdf.Close()

	text, err := pdf.FirstPageText()
	if err != nil {
		slog.Warn("No text layer, using metadata defaults", "url", download.URL, "error", err)
	}
	metadata := docs.ParseMetadata(text, download.FileName)

	dpi := p.RenderDPI
	if dpi <= 0 {
		dpi = docs.DefaultRenderDPI
	}

	pages := make([]docs.Page, 0, pdf.NumPages())
	for page, err := range pdf.Pages(metadata.BaseName(), dpi) {
		if err != nil {
			return metadata, nil, err
		}
		if err := ctx.Err(); err != nil {
			return metadata, nil, err
		}
		pages = append(pages, page)
	}

	return metadata, pages, nil
}
