package gdrive

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/robfig/cron/v3"
)

// Snapshotter writes a consistent copy of the database to a path.
type Snapshotter interface {
	Backup(ctx context.Context, dst string) error
}

type binaryUploader interface {
	UploadBinary(ctx context.Context, localPath, name string) error
}

// Backup periodically snapshots the database and uploads the copy, one
// Drive file per day.
type Backup struct {
	source   Snapshotter
	uploader binaryUploader
	dir      string
	now      func() time.Time
	cron     *cron.Cron
}

func NewBackup(source Snapshotter, uploader binaryUploader, dir string) *Backup {
	if dir == "" {
		dir = filepath.Join(os.TempDir(), "interview-coach-backups")
	}
	return &Backup{
		source:   source,
		uploader: uploader,
		dir:      dir,
		now:      time.Now,
	}
}

// Start runs the backup on schedule until Stop is called.
func (b *Backup) Start(schedule string) error {
	c := cron.New()
	if _, err := c.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		if err := b.Run(ctx); err != nil {
			slog.Warn("gdrive: backup failed", "error", err)
		}
	}); err != nil {
		return fmt.Errorf("schedule backup %q: %w", schedule, err)
	}
	b.cron = c
	c.Start()
	return nil
}

// Stop waits for a running backup to finish.
func (b *Backup) Stop() {
	if b.cron == nil {
		return
	}
	<-b.cron.Stop().Done()
}

func (b *Backup) Run(ctx context.Context) error {
	date := b.now().UTC().Format("2006-01-02")
	local := filepath.Join(b.dir, "interview-coach-"+date+".db")

	if err := b.source.Backup(ctx, local); err != nil {
		return fmt.Errorf("snapshot database: %w", err)
	}
	defer func() { _ = os.Remove(local) }()

	if err := b.uploader.UploadBinary(ctx, local, filepath.Base(local)); err != nil {
		return err
	}
	slog.Info("gdrive: backup uploaded", "date", date)
	return nil
}
