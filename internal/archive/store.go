// Package archive persists raw call report payloads to object storage
// so disputed outcomes can be audited after the fact. Unrecognized
// webhook payloads land in a quarantine prefix of the same bucket.
package archive

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"leadcall_backend/platform/config"
)

// Store writes call report payloads to a MinIO bucket.
type Store struct {
	client *minio.Client
	bucket string
}

// NewStore creates the archive store. Returns nil when no MinIO
// endpoint is configured; the reconciler treats a nil archiver as
// archiving disabled.
func NewStore(cfg config.ArchiveConfig) (*Store, error) {
	if !cfg.IsArchiveEnabled() {
		return nil, nil
	}

	client, err := minio.New(cfg.GetMinIOEndpoint(), &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.GetMinIOAccessKey(), cfg.GetMinIOSecretKey(), ""),
		Secure: cfg.GetMinIOUseSSL(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}

	return &Store{client: client, bucket: cfg.GetMinioBucketCallReports()}, nil
}

// EnsureBucket creates the archive bucket if it does not exist yet.
func (s *Store) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket existence: %w", err)
	}
	if !exists {
		if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("failed to create bucket %s: %w", s.bucket, err)
		}
	}
	return nil
}

// ArchiveReport stores the raw end-of-call report under a key derived
// from the provider call id and receipt time.
func (s *Store) ArchiveReport(ctx context.Context, callID string, payload []byte) error {
	key := fmt.Sprintf("reports/%s/%s.json", time.Now().UTC().Format("2006/01/02"), callID)
	return s.put(ctx, key, payload)
}

// Quarantine stores a payload that could not be parsed as a known
// provider event.
func (s *Store) Quarantine(ctx context.Context, payload []byte) error {
	key := fmt.Sprintf("quarantine/%s/%s.json", time.Now().UTC().Format("2006/01/02"), uuid.New().String())
	return s.put(ctx, key, payload)
}

func (s *Store) put(ctx context.Context, key string, payload []byte) error {
	_, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(payload), int64(len(payload)), minio.PutObjectOptions{
		ContentType: "application/json",
	})
	if err != nil {
		return fmt.Errorf("failed to upload object %s: %w", key, err)
	}
	return nil
}
