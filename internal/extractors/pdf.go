package extractors

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/ledongthuc/pdf"

	"github.com/custodia-labs/docdesk/internal/core/domain"
)

// PDFExtractor pulls the text layer out of PDF files. Scanned PDFs without a
// text layer produce empty output; there is no OCR.
type PDFExtractor struct{}

func (e *PDFExtractor) Extract(ctx context.Context, data []byte) (text string, err error) {
	if len(data) == 0 {
		return "", fmt.Errorf("%w: empty pdf", domain.ErrInvalidInput)
	}

	// The parser panics on some malformed inputs
	defer func() {
		if r := recover(); r != nil {
			text = ""
			err = fmt.Errorf("failed to parse pdf: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("failed to open pdf: %w", err)
	}

	plain, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("failed to extract pdf text: %w", err)
	}

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, plain); err != nil {
		return "", fmt.Errorf("failed to read pdf text: %w", err)
	}
	return cleanText(buf.String()), nil
}

func (e *PDFExtractor) SupportedTypes() []string {
	return []string{"application/pdf", "application/x-pdf"}
}

func (e *PDFExtractor) Priority() int {
	return 80
}
