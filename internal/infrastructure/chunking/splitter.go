package chunking

import (
	"fmt"
	"strings"

	"github.com/kirillkom/cv-sentinel/internal/core/domain"
)

// Splitter cuts source files into line-bounded, overlapping chunks.
// Chunks keep their line spans so oracle citations can be verified
// against the exact snippet they came from.
type Splitter struct {
	MaxLines int
	Overlap  int
}

func NewSplitter(maxLines, overlap int) *Splitter {
	if maxLines <= 0 {
		maxLines = 120
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= maxLines {
		overlap = maxLines / 4
	}
	return &Splitter{
		MaxLines: maxLines,
		Overlap:  overlap,
	}
}

// SplitFile chunks one file's text, skipping all-whitespace chunks.
func (s *Splitter) SplitFile(repo, file, text string) []domain.CodeChunk {
	lines := strings.Split(text, "\n")
	n := len(lines)
	if n == 0 {
		return nil
	}

	out := make([]domain.CodeChunk, 0, n/s.MaxLines+1)
	seq := 0
	for i := 0; i < n; {
		j := i + s.MaxLines
		if j > n {
			j = n
		}
		chunk := strings.Join(lines[i:j], "\n")
		if strings.TrimSpace(chunk) != "" {
			out = append(out, domain.CodeChunk{
				ID:        fmt.Sprintf("%s:%s:%d-%d:%d", repo, file, i+1, j, seq),
				Repo:      repo,
				File:      file,
				StartLine: i + 1,
				EndLine:   j,
				Text:      chunk,
			})
			seq++
		}
		if j == n {
			break
		}
		i = j - s.Overlap
		if i < 0 {
			i = 0
		}
	}
	return out
}
