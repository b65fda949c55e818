package objectstore

import (
	"context"
	"fmt"
	"io"

	"cloud.google.com/go/storage"
	log "github.com/sirupsen/logrus"
)

// GCSObjectRepository implements ObjectRepository for Google Cloud Storage
type GCSObjectRepository struct {
	client     *storage.Client
	bucketName string
}

// Upload uploads an object to GCS
func (r *GCSObjectRepository) Upload(ctx context.Context, key string, reader io.Reader, quiet bool) (string, error) {
	obj := r.client.Bucket(r.bucketName).Object(key)

	writer := obj.NewWriter(ctx)
	writer.ContentType = contentType(key)

	log.Debugf("Uploading to GCS: gs://%s/%s", r.bucketName, key)
	if _, err := io.Copy(writer, withProgress(reader, remaining(reader), quiet)); err != nil {
		_ = writer.Close()
		return "", fmt.Errorf("failed to upload to GCS: %w", err)
	}
	// the object is only committed on Close
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("failed to finalize GCS upload: %w", err)
	}

	return fmt.Sprintf("gs://%s/%s", r.bucketName, key), nil
}

// GetBucketName returns the bucket name
func (r *GCSObjectRepository) GetBucketName() string {
	return r.bucketName
}

// GetStorageType returns the storage type
func (r *GCSObjectRepository) GetStorageType() string {
	return string(GCSType)
}
