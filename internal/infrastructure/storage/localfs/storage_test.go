package localfs

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestSaveWritesUnderBasePath(t *testing.T) {
	dir := t.TempDir()
	storage, err := New(dir)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	path, err := storage.Save(context.Background(), "cv-1.pdf", []byte("%PDF-1.7"))
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if filepath.Dir(path) != dir {
		t.Fatalf("saved outside base path: %s", path)
	}
	raw, err := os.ReadFile(path)
	if err != nil || string(raw) != "%PDF-1.7" {
		t.Fatalf("read back = %q, %v", raw, err)
	}
}

func TestNewCreatesMissingDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "storage")
	if _, err := New(dir); err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if _, err := os.Stat(dir); err != nil {
		t.Fatalf("base dir not created: %v", err)
	}
}
