package pdftext

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// Extractor pulls plain text out of PDF uploads without calling the model
// gateway. Image uploads have no local path; they need the gateway's OCR.
type Extractor struct{}

func New() *Extractor {
	return &Extractor{}
}

func (e *Extractor) Extract(_ context.Context, _ string, mimeType string, content []byte) (string, error) {
	if mimeType != "application/pdf" {
		return "", fmt.Errorf("no local extractor for %s", mimeType)
	}

	reader, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}

	var builder strings.Builder
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			// Skip unreadable pages; partial text still beats none.
			continue
		}
		builder.WriteString(text)
		builder.WriteString("\n")
	}

	extracted := strings.TrimSpace(builder.String())
	if extracted == "" {
		return "", fmt.Errorf("no text in pdf")
	}
	return extracted, nil
}
