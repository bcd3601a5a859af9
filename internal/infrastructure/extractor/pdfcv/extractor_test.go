package pdfcv

import (
	"context"
	"testing"
)

func TestExtractMissingFileErrors(t *testing.T) {
	extractor := NewExtractor()
	if _, err := extractor.Extract(context.Background(), "/nonexistent/cv.pdf"); err == nil {
		t.Fatalf("expected error for missing file")
	}
}
