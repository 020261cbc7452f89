package knowledgebase

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"cloud.google.com/go/storage"
	"github.com/pkg/errors"
)

const backupTimeFormat = "20060102_150405"

// FileStore keeps the knowledge document on local disk. Backups are
// timestamped siblings of the document.
type FileStore struct {
	path string
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (s *FileStore) Read(_ context.Context) ([]byte, error) {
	content, err := os.ReadFile(s.path)
	if err != nil {
		return nil, errors.WithMessagef(err, "reading %s", s.path)
	}
	return content, nil
}

func (s *FileStore) Write(_ context.Context, content []byte) error {
	return os.WriteFile(s.path, content, 0o644)
}

func (s *FileStore) Backup(_ context.Context) (string, error) {
	content, err := os.ReadFile(s.path)
	if err != nil {
		return "", errors.WithMessagef(err, "reading %s for backup", s.path)
	}

	backupPath := fmt.Sprintf("%s.backup.%s", s.path, time.Now().Format(backupTimeFormat))
	if err := os.WriteFile(backupPath, content, 0o644); err != nil {
		return "", errors.WithMessagef(err, "writing backup %s", backupPath)
	}
	return backupPath, nil
}

// GCSStore keeps the knowledge document as a single object in a Google Cloud
// Storage bucket. Backups are timestamped copies under the same prefix.
type GCSStore struct {
	bucket *storage.BucketHandle
	object string
}

func NewGCSStore(client *storage.Client, bucket, object string) *GCSStore {
	return &GCSStore{bucket: client.Bucket(bucket), object: object}
}

func (s *GCSStore) Read(ctx context.Context) ([]byte, error) {
	r, err := s.bucket.Object(s.object).NewReader(ctx)
	if err != nil {
		return nil, errors.WithMessagef(err, "opening gs object %s", s.object)
	}
	defer r.Close()

	content, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.WithMessagef(err, "reading gs object %s", s.object)
	}
	return content, nil
}

func (s *GCSStore) Write(ctx context.Context, content []byte) error {
	w := s.bucket.Object(s.object).NewWriter(ctx)
	if _, err := w.Write(content); err != nil {
		_ = w.Close()
		return errors.WithMessagef(err, "writing gs object %s", s.object)
	}
	return w.Close()
}

func (s *GCSStore) Backup(ctx context.Context) (string, error) {
	backupName := fmt.Sprintf("%s.backup.%s", s.object, time.Now().Format(backupTimeFormat))

	src := s.bucket.Object(s.object)
	if _, err := s.bucket.Object(backupName).CopierFrom(src).Run(ctx); err != nil {
		return "", errors.WithMessagef(err, "copying gs object %s to %s", s.object, backupName)
	}
	return backupName, nil
}
