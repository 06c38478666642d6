package main

import (
	"path/filepath"
	"testing"

	"github.com/sjawhar/interview-coach/internal/storage"
)

func TestBackupDirFollowsOpenedDatabase(t *testing.T) {
	t.Chdir(t.TempDir())

	tests := []struct {
		name string
		dsn  string
		want string
	}{
		{name: "default path", dsn: "", want: filepath.Join("data", "backups")},
		{name: "configured path", dsn: filepath.Join("state", "coach.db"), want: filepath.Join("state", "backups")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, err := storage.NewSQLiteStore(tt.dsn)
			if err != nil {
				t.Fatalf("NewSQLiteStore failed: %v", err)
			}
			defer func() { _ = store.Close() }()

			if got := backupDir(store); got != tt.want {
				t.Fatalf("expected backup dir %q, got %q", tt.want, got)
			}
		})
	}
}
