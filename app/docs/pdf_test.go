package docs

import (
	"bytes"
	"errors"
	"fmt"
	"image/jpeg"
	"strings"
	"testing"
)

// buildPDF returns a PDF with one page per entry, each showing its lines in Helvetica.
func buildPDF(pages ...[]string) []byte {
	kids := make([]string, len(pages))
	for i := range pages {
		kids[i] = fmt.Sprintf("%d 0 R", 4+2*i)
	}

	objects := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), len(pages)),
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica >>",
	}
	for i, lines := range pages {
		var content strings.Builder
		content.WriteString("BT /F1 12 Tf 14 TL 20 170 Td")
		for _, line := range lines {
			fmt.Fprintf(&content, " (%s) Tj T*", line)
		}
		content.WriteString(" ET")

		objects = append(objects,
			fmt.Sprintf("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 300 200] /Resources << /Font << /F1 3 0 R >> >> /Contents %d 0 R >>", 5+2*i),
			fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", content.Len(), content.String()))
	}

	var b bytes.Buffer
	b.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = b.Len()
		fmt.Fprintf(&b, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}

	xref := b.Len()
	fmt.Fprintf(&b, "xref\n0 %d\n0000000000 65535 f \n", len(objects)+1)
	for _, offset := range offsets {
		fmt.Fprintf(&b, "%010d 00000 n \n", offset)
	}
	fmt.Fprintf(&b, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)

	return b.Bytes()
}

var summonsPages = [][]string{
	{"Document 12", "Summons", "Time 14:30"},
	{"Appendix"},
}

func TestOpenPDF_FirstPageText(t *testing.T) {
	pdf, err := OpenPDF(buildPDF(summonsPages...))
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	defer pdf.Close()

	if pdf.NumPages() != 2 {
		t.Errorf("Expected 2 pages, got %d", pdf.NumPages())
	}

	text, err := pdf.FirstPageText()
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if strings.Contains(text, "Appendix") {
		t.Error("Expected only the first page text")
	}

	metadata := ParseMetadata(text, "summons.pdf")
	if metadata.DocNumber != "12" || metadata.Title != "Summons" || metadata.Time != "14:30" {
		t.Errorf("Unexpected metadata from first page: %+v", metadata)
	}
}

func TestPDFPages(t *testing.T) {
	pdf, err := OpenPDF(buildPDF(summonsPages...))
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	defer pdf.Close()

	var pages []Page
	for page, err := range pdf.Pages("Doc_12_Summons", 72) {
		if err != nil {
			t.Fatalf("Expected no error, got: %v", err)
		}
		pages = append(pages, page)
	}

	if len(pages) != 2 {
		t.Fatalf("Expected 2 pages, got %d", len(pages))
	}
	for i, page := range pages {
		if page.Number != i+1 {
			t.Errorf("Expected page number %d, got %d", i+1, page.Number)
		}
		if expected := fmt.Sprintf("Doc_12_Summons_page_%d.jpg", i+1); page.Name != expected {
			t.Errorf("Expected name %s, got %s", expected, page.Name)
		}
		img, err := jpeg.Decode(bytes.NewReader(page.Data))
		if err != nil {
			t.Fatalf("Expected valid JPEG for page %d, got: %v", i+1, err)
		}
		if bounds := img.Bounds(); bounds.Dx() <= bounds.Dy() {
			t.Errorf("Expected landscape page image, got %dx%d", bounds.Dx(), bounds.Dy())
		}
	}
}

func TestPDFPages_SinglePass(t *testing.T) {
	pdf, err := OpenPDF(buildPDF(summonsPages...))
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	defer pdf.Close()

	for range pdf.Pages("Doc_12_Summons", 72) {
		break
	}

	var errs []error
	for _, err := range pdf.Pages("Doc_12_Summons", 72) {
		errs = append(errs, err)
	}
	if len(errs) != 1 || !errors.Is(errs[0], ErrPagesConsumed) {
		t.Errorf("Expected a single ErrPagesConsumed on the second pass, got: %v", errs)
	}
}
