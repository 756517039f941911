// Package snapshot ships crash snapshots the isolate runtime writes to
// local disk (internal/isolate's persistSnapshot) off to durable object
// storage, so a worker's ephemeral filesystem isn't the only copy of the
// source that crashed an isolate (spec.md §4.6). Grounded on the teacher's
// internal/provider/rekognition.Client construction (aws-sdk-go-v2 default
// credential chain, region from config), redirected at S3 instead of
// Rekognition — the AWS SDK family the teacher depends on, applied to this
// system's own object-storage need.
package snapshot

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// putObjectAPI is the one S3 operation Uploader needs, narrowed from
// *s3.Client so tests can substitute a fake instead of hitting AWS.
type putObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Uploader drains a local snapshot directory into an S3 bucket, deleting
// each file locally once it's durably stored.
type Uploader struct {
	client putObjectAPI
	bucket string
	dir    string
	logger *slog.Logger
}

// NewUploader loads AWS config from the default credential chain, matching
// the teacher's rekognition.Client construction. bucket may be empty, in
// which case Sync is a no-op — local-disk snapshots are still written and
// bounded by snapshotMax regardless of whether object storage is configured.
func NewUploader(ctx context.Context, region, bucket, dir string, logger *slog.Logger) (*Uploader, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	return NewUploaderWithClient(s3.NewFromConfig(awsCfg), bucket, dir, logger), nil
}

// NewUploaderWithClient builds an Uploader against an already-constructed
// S3 API (or a test fake implementing putObjectAPI).
func NewUploaderWithClient(client putObjectAPI, bucket, dir string, logger *slog.Logger) *Uploader {
	return &Uploader{
		client: client,
		bucket: bucket,
		dir:    dir,
		logger: logger.With("component", "snapshot_uploader"),
	}
}

// Sync uploads every file currently in the snapshot directory and removes
// it locally on success. Failures are logged per-file so one bad upload
// doesn't block the rest of the batch.
func (u *Uploader) Sync(ctx context.Context) error {
	if u.bucket == "" {
		return nil
	}

	entries, err := os.ReadDir(u.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read snapshot dir: %w", err)
	}

	uploaded := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		path := filepath.Join(u.dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			u.logger.WarnContext(ctx, "read snapshot file failed", "file", entry.Name(), "error", err)
			continue
		}

		_, err = u.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket: aws.String(u.bucket),
			Key:    aws.String(entry.Name()),
			Body:   bytes.NewReader(data),
		})
		if err != nil {
			u.logger.WarnContext(ctx, "upload snapshot failed", "file", entry.Name(), "error", err)
			continue
		}

		if err := os.Remove(path); err != nil {
			u.logger.WarnContext(ctx, "remove uploaded snapshot failed", "file", entry.Name(), "error", err)
		}
		uploaded++
	}

	if uploaded > 0 {
		u.logger.InfoContext(ctx, "synced crash snapshots to object storage", "count", uploaded)
	}
	return nil
}
