package gdrive

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
)

const (
	mimeGoogleDoc = "application/vnd.google-apps.document"
	mimeBinary    = "application/octet-stream"
)

// files is the slice of the Drive API the syncer needs.
type files interface {
	create(ctx context.Context, file *drive.File, media io.Reader) (string, error)
	update(ctx context.Context, fileID string, media io.Reader) error
}

type driveFiles struct {
	service *drive.Service
}

func (d driveFiles) create(ctx context.Context, file *drive.File, media io.Reader) (string, error) {
	created, err := d.service.Files.Create(file).Media(media).Context(ctx).Do()
	if err != nil {
		return "", err
	}
	return created.Id, nil
}

func (d driveFiles) update(ctx context.Context, fileID string, media io.Reader) error {
	_, err := d.service.Files.Update(fileID, &drive.File{}).Media(media).Context(ctx).Do()
	return err
}

// Syncer mirrors local files into a Drive folder. A file uploaded under a
// name is updated in place on later syncs of the same name.
type Syncer struct {
	files    files
	folderID string
	fileIDs  map[string]string
	mu       sync.Mutex
}

func NewSyncer(ctx context.Context, credPath, folderID string) (*Syncer, error) {
	creds, err := os.ReadFile(credPath)
	if err != nil {
		return nil, fmt.Errorf("read credentials: %w", err)
	}

	config, err := google.CredentialsFromJSONWithTypeAndParams(ctx, creds, google.ServiceAccount, google.CredentialsParams{Scopes: []string{drive.DriveFileScope}})
	if err != nil {
		return nil, fmt.Errorf("parse credentials: %w", err)
	}

	svc, err := drive.NewService(ctx, option.WithCredentials(config))
	if err != nil {
		return nil, fmt.Errorf("create drive service: %w", err)
	}

	return newSyncer(driveFiles{service: svc}, folderID), nil
}

func newSyncer(f files, folderID string) *Syncer {
	return &Syncer{
		files:    f,
		folderID: folderID,
		fileIDs:  make(map[string]string),
	}
}

// Upload stores a markdown report as a Google Doc.
func (s *Syncer) Upload(ctx context.Context, localPath, name string) error {
	return s.sync(ctx, localPath, name, mimeGoogleDoc)
}

// UploadBinary stores a file as-is, used for database backups.
func (s *Syncer) UploadBinary(ctx context.Context, localPath, name string) error {
	return s.sync(ctx, localPath, name, mimeBinary)
}

func (s *Syncer) sync(ctx context.Context, localPath, name, mimeType string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("open %s: %w", localPath, err)
	}
	defer func() { _ = f.Close() }()

	if fileID, ok := s.fileIDs[name]; ok {
		if err := s.files.update(ctx, fileID, f); err != nil {
			return fmt.Errorf("drive update: %w", err)
		}
		return nil
	}

	id, err := s.files.create(ctx, &drive.File{
		Name:     name,
		MimeType: mimeType,
		Parents:  []string{s.folderID},
	}, f)
	if err != nil {
		return fmt.Errorf("drive create: %w", err)
	}

	s.fileIDs[name] = id
	return nil
}
