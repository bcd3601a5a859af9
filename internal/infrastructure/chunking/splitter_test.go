package chunking

import (
	"strings"
	"testing"
)

func TestSplitFileKeepsLineSpans(t *testing.T) {
	s := NewSplitter(10, 2)
	text := strings.Repeat("line\n", 24)
	chunks := s.SplitFile("acme/app", "main.go", strings.TrimRight(text, "\n"))

	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(chunks))
	}
	if chunks[0].StartLine != 1 || chunks[0].EndLine != 10 {
		t.Fatalf("unexpected first span: %d-%d", chunks[0].StartLine, chunks[0].EndLine)
	}
	// second chunk starts inside the previous one by the overlap
	if chunks[1].StartLine != 9 {
		t.Fatalf("expected overlap start at line 9, got %d", chunks[1].StartLine)
	}
	if chunks[0].LineRange() != "L1-L10" {
		t.Fatalf("unexpected line range format: %s", chunks[0].LineRange())
	}
}

func TestSplitFileSkipsBlankChunks(t *testing.T) {
	s := NewSplitter(5, 0)
	chunks := s.SplitFile("acme/app", "empty.go", "\n\n\n\n\n\n\n")
	if len(chunks) != 0 {
		t.Fatalf("expected no chunks for blank file, got %d", len(chunks))
	}
}
