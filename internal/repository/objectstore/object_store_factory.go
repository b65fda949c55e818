// Package objectstore uploads ledger exports to S3 or Google Cloud Storage.
package objectstore

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/schollz/progressbar/v3"
)

// ObjectRepository defines the interface for object storage operations
type ObjectRepository interface {
	Upload(ctx context.Context, key string, r io.Reader, quiet bool) (string, error)
	GetBucketName() string
	GetStorageType() string
}

// RepositoryType represents the type of object storage
type RepositoryType string

const (
	S3Type  RepositoryType = "s3"
	GCSType RepositoryType = "gcs"
)

// BucketConfig holds a parsed destination: bucket plus object key.
type BucketConfig struct {
	Name string
	Type RepositoryType
	Key  string
}

// ObjectRepositoryFactory creates object repository instances
type ObjectRepositoryFactory struct {
	awsConfig aws.Config
	gcsClient *storage.Client
}

// NewObjectRepositoryFactory creates a new factory
func NewObjectRepositoryFactory(awsConfig aws.Config, gcsClient *storage.Client) *ObjectRepositoryFactory {
	return &ObjectRepositoryFactory{
		awsConfig: awsConfig,
		gcsClient: gcsClient,
	}
}

// CreateRepository creates a repository based on bucket configuration
func (f *ObjectRepositoryFactory) CreateRepository(config BucketConfig) (ObjectRepository, error) {
	switch config.Type {
	case S3Type:
		store := NewS3ObjectStore(f.awsConfig)
		repo := NewS3ObjectRepository(store.Uploader, config.Name)
		return &repo, nil
	case GCSType:
		if f.gcsClient == nil {
			return nil, fmt.Errorf("GCS client not configured")
		}
		repo := NewGCSObjectRepository(f.gcsClient, config.Name)
		return &repo, nil
	default:
		return nil, fmt.Errorf("unsupported repository type: %s", config.Type)
	}
}

// ParseBucketConfig parses a destination URI.
// Formats: "s3://bucket/key", "gs://bucket/key", "s3:bucket/key", or "bucket/key" (defaults to S3)
func ParseBucketConfig(dest string) (BucketConfig, error) {
	dest = strings.TrimSpace(dest)

	repoType := S3Type
	rest := dest
	switch {
	case strings.Contains(dest, "://"):
		parts := strings.SplitN(dest, "://", 2)
		scheme := strings.ToLower(strings.TrimSpace(parts[0]))
		switch scheme {
		case "s3":
			repoType = S3Type
		case "gs":
			repoType = GCSType
		default:
			return BucketConfig{}, fmt.Errorf("unsupported scheme: %s", scheme)
		}
		rest = parts[1]
	case strings.Contains(dest, ":"):
		parts := strings.SplitN(dest, ":", 2)
		repoType = RepositoryType(strings.ToLower(strings.TrimSpace(parts[0])))
		if repoType != S3Type && repoType != GCSType {
			return BucketConfig{}, fmt.Errorf("unsupported repository type: %s", repoType)
		}
		rest = parts[1]
	}

	rest = strings.Trim(strings.TrimSpace(rest), "/")
	bucket, key, _ := strings.Cut(rest, "/")
	if bucket == "" {
		return BucketConfig{}, fmt.Errorf("bucket name cannot be empty")
	}
	if key == "" {
		return BucketConfig{}, fmt.Errorf("object key cannot be empty: %s", dest)
	}

	return BucketConfig{Name: bucket, Type: repoType, Key: key}, nil
}

// remaining returns the bytes left in a seekable reader, or -1.
func remaining(reader io.Reader) int64 {
	seeker, ok := reader.(io.Seeker)
	if !ok {
		return -1
	}
	current, err := seeker.Seek(0, io.SeekCurrent)
	if err != nil {
		return -1
	}
	end, err := seeker.Seek(0, io.SeekEnd)
	if err != nil {
		return -1
	}
	if _, err := seeker.Seek(current, io.SeekStart); err != nil {
		return -1
	}
	return end - current
}

func withProgress(reader io.Reader, size int64, quiet bool) io.Reader {
	if quiet {
		return reader
	}
	bar := progressbar.DefaultBytes(size, "uploading")
	pbReader := progressbar.NewReader(reader, bar)
	return &pbReader
}

func contentType(key string) string {
	switch path.Ext(key) {
	case ".json":
		return "application/json"
	case ".jsonl", ".ndjson":
		return "application/x-ndjson"
	case ".csv":
		return "text/csv"
	default:
		return "application/octet-stream"
	}
}
