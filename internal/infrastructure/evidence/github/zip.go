package github

import (
	"archive/zip"
	"bytes"
	"path"
	"strings"

	"github.com/kirillkom/cv-sentinel/internal/core/domain"
	"github.com/kirillkom/cv-sentinel/internal/infrastructure/chunking"
)

var allowedExts = map[string]bool{
	".py": true, ".js": true, ".ts": true, ".tsx": true, ".jsx": true,
	".java": true, ".cpp": true, ".c": true, ".h": true, ".hpp": true,
	".go": true, ".rs": true, ".cs": true, ".rb": true, ".kt": true,
	".sql": true, ".md": true, ".toml": true, ".yml": true, ".yaml": true, ".json": true,
}

var skipDirs = []string{"/.git/", "/node_modules/", "/.venv/", "/venv/", "/dist/", "/build/", "/vendor/", "/__pycache__/"}

const maxFileBytes = 900_000

func keepPath(p string) bool {
	p = strings.ReplaceAll(p, "\\", "/")
	for _, dir := range skipDirs {
		if strings.Contains("/"+p, dir) {
			return false
		}
	}
	return allowedExts[strings.ToLower(path.Ext(p))]
}

type zipLimits struct {
	maxFiles    int
	maxBytes    int64
	maxChunks   int
	chunkBudget int // remaining across repos
}

// chunksFromZip walks a repo source archive and splits kept files into
// line chunks. GitHub archives prefix every path with a top-level
// "<owner>-<repo>-<sha>/" directory which is stripped first.
func chunksFromZip(zipData []byte, repoFull string, splitter *chunking.Splitter, limits zipLimits) ([]domain.CodeChunk, error) {
	reader, err := zip.NewReader(bytes.NewReader(zipData), int64(len(zipData)))
	if err != nil {
		return nil, err
	}

	var (
		chunks     []domain.CodeChunk
		filesSeen  int
		totalBytes int64
	)
	budget := limits.maxChunks
	if limits.chunkBudget > 0 && limits.chunkBudget < budget {
		budget = limits.chunkBudget
	}

	for _, file := range reader.File {
		if file.FileInfo().IsDir() {
			continue
		}
		if filesSeen >= limits.maxFiles || len(chunks) >= budget {
			break
		}
		if file.UncompressedSize64 > maxFileBytes {
			continue
		}

		parts := strings.SplitN(file.Name, "/", 2)
		if len(parts) != 2 || parts[1] == "" || !keepPath(parts[1]) {
			continue
		}
		relPath := parts[1]

		rc, err := file.Open()
		if err != nil {
			continue
		}
		var buf bytes.Buffer
		_, readErr := buf.ReadFrom(rc)
		_ = rc.Close()
		if readErr != nil {
			continue
		}
		totalBytes += int64(buf.Len())
		if totalBytes > limits.maxBytes {
			break
		}

		for _, chunk := range splitter.SplitFile(repoFull, relPath, buf.String()) {
			chunks = append(chunks, chunk)
			if len(chunks) >= budget {
				break
			}
		}
		filesSeen++
	}
	return chunks, nil
}

// boilerplateScore estimates how much of a chunk is generated config
// rather than hand-written logic.
func boilerplateScore(text string) float64 {
	low := strings.ToLower(text)
	score := 0.0
	if strings.Contains(low, "eslint") || strings.Contains(low, "prettier") || strings.Contains(low, "tsconfig") {
		score += 0.25
	}
	if strings.Contains(low, "docker") || strings.Contains(low, "compose") {
		score += 0.15
	}
	punct := 0
	for _, r := range text {
		switch r {
		case '{', '}', '[', ']', ':', ',', '"':
			punct++
		}
	}
	if len(text) > 0 {
		ratio := float64(punct) / float64(len(text)) * 20
		if ratio > 0.25 {
			ratio = 0.25
		}
		score += ratio
	}
	if len(text) < 350 {
		score += 0.1
	}
	if score > 1 {
		score = 1
	}
	return score
}
