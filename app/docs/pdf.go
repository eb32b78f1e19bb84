package docs

import (
	"bytes"
	"errors"
	"fmt"
	"image/jpeg"
	"iter"

	"github.com/gen2brain/go-fitz"
)

const DefaultRenderDPI = 150

var ErrPagesConsumed = errors.New("document pages already rendered")

// PDF wraps a parsed PDF document. Close must be called when done.
type PDF struct {
	doc      *fitz.Document
	consumed bool
}

func OpenPDF(data []byte) (*PDF, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("PDF data is empty")
	}

	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF: %w", err)
	}

	return &PDF{doc: doc}, nil
}

func (p *PDF) NumPages() int {
	return p.doc.NumPage()
}

// FirstPageText returns the text layer of the first page, where the header fields live.
func (p *PDF) FirstPageText() (string, error) {
	if p.doc.NumPage() == 0 {
		return "", fmt.Errorf("PDF has no pages")
	}

	text, err := p.doc.Text(0)
	if err != nil {
		return "", fmt.Errorf("failed to extract text: %w", err)
	}
	return text, nil
}

// Pages renders each page to JPEG on demand. The sequence can be ranged over once;
// a second pass yields ErrPagesConsumed.
func (p *PDF) Pages(baseName string, dpi float64) iter.Seq2[Page, error] {
	return func(yield func(Page, error) bool) {
		if p.consumed {
			yield(Page{}, ErrPagesConsumed)
			return
		}
		p.consumed = true

		for i := 0; i < p.doc.NumPage(); i++ {
			page, err := p.renderPage(i, baseName, dpi)
			if !yield(page, err) || err != nil {
				return
			}
		}
	}
}

func (p *PDF) renderPage(index int, baseName string, dpi float64) (Page, error) {
	img, err := p.doc.ImageDPI(index, dpi)
	if err != nil {
		return Page{}, fmt.Errorf("failed to render page %d: %w", index+1, err)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 85}); err != nil {
		return Page{}, fmt.Errorf("failed to encode page %d: %w", index+1, err)
	}

	return Page{
		Number: index + 1,
		Name:   fmt.Sprintf("%s_page_%d.jpg", baseName, index+1),
		Data:   buf.Bytes(),
	}, nil
}

func (p *PDF) Close() error {
	return p.doc.Close()
}
