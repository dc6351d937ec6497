package pdftext

import (
	"context"
	"testing"
)

func TestExtractRejectsNonPDF(t *testing.T) {
	ex := New()
	if _, err := ex.Extract(context.Background(), "scan.png", "image/png", []byte{0x89, 0x50}); err == nil {
		t.Fatalf("expected error for image mime type")
	}
}

func TestExtractRejectsMalformedPDF(t *testing.T) {
	ex := New()
	if _, err := ex.Extract(context.Background(), "broken.pdf", "application/pdf", []byte("not a pdf")); err == nil {
		t.Fatalf("expected error for malformed pdf")
	}
}
