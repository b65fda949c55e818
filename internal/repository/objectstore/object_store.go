package objectstore

import (
	"cloud.google.com/go/storage"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

type S3Store struct {
	Client   *s3.Client
	Uploader *manager.Uploader
}

func NewS3ObjectStore(awsConfig aws.Config) *S3Store {
	client := s3.NewFromConfig(awsConfig)
	return &S3Store{
		Client:   client,
		Uploader: manager.NewUploader(client),
	}
}

// NewS3ObjectRepository creates a new S3 object repository
func NewS3ObjectRepository(uploader *manager.Uploader, bucketName string) S3ObjectRepository {
	return S3ObjectRepository{
		uploader:   uploader,
		bucketName: bucketName,
	}
}

// NewGCSObjectRepository creates a new GCS object repository
func NewGCSObjectRepository(client *storage.Client, bucketName string) GCSObjectRepository {
	return GCSObjectRepository{
		client:     client,
		bucketName: bucketName,
	}
}
