package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Writer keeps a local markdown copy of every feedback report, one file
// per feedback id.
type Writer struct {
	dir string
	mu  sync.Mutex
}

func NewWriter(dir string) *Writer {
	if strings.TrimSpace(dir) == "" {
		dir = filepath.Join("data", "reports")
	}
	return &Writer{dir: dir}
}

func (w *Writer) Write(feedbackID, markdown string) (string, error) {
	if err := requireID("feedback", feedbackID); err != nil {
		return "", err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return "", fmt.Errorf("mkdir %s: %w", w.dir, err)
	}

	path := w.Path(feedbackID)
	if err := os.WriteFile(path, []byte(markdown), 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	return path, nil
}

func (w *Writer) Path(feedbackID string) string {
	return filepath.Join(w.dir, filepath.Base(feedbackID)+".md")
}
