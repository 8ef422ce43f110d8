package extractors

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/custodia-labs/docdesk/internal/core/domain"
)

// buildPDF writes a single page PDF showing lines in Helvetica
func buildPDF(lines ...string) []byte {
	var content strings.Builder
	content.WriteString("BT\n/F1 12 Tf\n72 720 Td\n")
	for i, line := range lines {
		if i > 0 {
			content.WriteString("0 -16 Td\n")
		}
		fmt.Fprintf(&content, "(%s) Tj\n", line)
	}
	content.WriteString("ET\n")

	objects := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << /Font << /F1 4 0 R >> >> /Contents 5 0 R >>",
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>",
		fmt.Sprintf("<< /Length %d >>\nstream\n%sendstream", content.Len(), content.String()),
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(objects)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)
	return buf.Bytes()
}

func TestPDFExtractor_Extract(t *testing.T) {
	e := &PDFExtractor{}

	out, err := e.Extract(context.Background(), buildPDF("Certificate of Insurance", "Expiry: 2024-01-01"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "Certificate") || !strings.Contains(out, "Expiry") || !strings.Contains(out, "2024-01-01") {
		t.Errorf("extracted text %q is missing content", out)
	}
}

func TestPDFExtractor_Errors(t *testing.T) {
	e := &PDFExtractor{}

	if _, err := e.Extract(context.Background(), nil); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("empty input: expected ErrInvalidInput, got %v", err)
	}
	if _, err := e.Extract(context.Background(), []byte("this is not a pdf at all")); err == nil {
		t.Error("expected error for garbage input")
	}
	if _, err := e.Extract(context.Background(), []byte("%PDF-1.4\n1 0 obj\n<<")); err == nil {
		t.Error("expected error for truncated pdf")
	}
}
