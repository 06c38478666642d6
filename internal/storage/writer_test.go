package storage

import (
	"os"
	"path/filepath"
	"testing"
)

func TestWriterWritesOneFilePerFeedback(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "reports")
	w := NewWriter(dir)

	path, err := w.Write("fb-1", "# Report\n")
	if err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if path != filepath.Join(dir, "fb-1.md") {
		t.Fatalf("unexpected path %q", path)
	}

	if _, err := w.Write("fb-1", "# Report v2\n"); err != nil {
		t.Fatalf("second Write failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	if string(data) != "# Report v2\n" {
		t.Fatalf("expected overwritten report, got %q", string(data))
	}
}

func TestWriterRejectsTraversal(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir)

	if got := w.Path("../../etc/passwd"); got != filepath.Join(dir, "passwd.md") {
		t.Fatalf("expected path confined to dir, got %q", got)
	}
}
