package storage

import (
	"context"
	"fmt"
	"io"
	"time"

	"cutx/catalog/internal/config"

	log "github.com/sirupsen/logrus"
)

// BackupStore keeps catalogue backup archives.
type BackupStore interface {
	Upload(ctx context.Context, key string, r io.Reader) error
	Download(ctx context.Context, key string) (io.ReadCloser, error)
}

// BackupKey names the archive of a backup taken at t.
func BackupKey(t time.Time) string {
	return fmt.Sprintf("backups/cutx-%s.json.gz", t.UTC().Format("20060102T150405Z"))
}

// New returns the S3 store when a bucket is configured and the local one otherwise.
func New(ctx context.Context, cfg config.StorageConfig) (BackupStore, error) {
	if cfg.Bucket == "" {
		log.Infof("📁 Backups stored locally in %s", cfg.LocalDir)
		return NewLocalStore(cfg.LocalDir), nil
	}
	store, err := NewS3Store(ctx, cfg)
	if err != nil {
		return nil, err
	}
	log.Infof("🪣 Backups stored in bucket %s", cfg.Bucket)
	return store, nil
}
