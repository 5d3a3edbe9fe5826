package storage

import (
	"bytes"
	"context"
	"fmt"
	"path"

	"github.com/MeridianTrust/MeridianTrust-Backend/services/monitoring/logging"
	"github.com/MeridianTrust/MeridianTrust-Backend/utils"
	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/google/uuid"
)

const (
	DocumentKind = "document"
	SelfieKind   = "selfie"
)

// ObjectStore persists applicant uploads and returns the stored reference
// recorded on the session.
type ObjectStore interface {
	Store(ctx context.Context, sessionID, kind, filename, contentType string, data []byte) (string, error)
}

// S3Storage keeps document and selfie uploads in the configured bucket,
// keyed per session so a re-submitted step lands next to the original.
type S3Storage struct {
	uploader *s3manager.Uploader
	bucket   string
	logger   *logging.Logger
}

func NewS3Storage(config *utils.Config, logger *logging.Logger) *S3Storage {
	sess := session.Must(session.NewSession(
		&aws.Config{
			Region:      aws.String(config.AWSRegion),
			Credentials: credentials.NewStaticCredentials(config.AWSAccessKeyID, config.AWSSecretAccessKey, ""),
		},
	))

	return &S3Storage{
		uploader: s3manager.NewUploader(sess),
		bucket:   config.AWSDocumentBucket,
		logger:   logger,
	}
}

func (s *S3Storage) Store(ctx context.Context, sessionID, kind, filename, contentType string, data []byte) (string, error) {
	key := fmt.Sprintf("%s/%s/%s%s", sessionID, kind, uuid.NewString(), path.Ext(filename))

	_, err := s.uploader.UploadWithContext(ctx, &s3manager.UploadInput{
		Bucket:               aws.String(s.bucket),
		Key:                  aws.String(key),
		Body:                 bytes.NewReader(data),
		ContentType:          aws.String(contentType),
		ServerSideEncryption: aws.String("AES256"),
	})
	if err != nil {
		return "", fmt.Errorf("failed to store %s upload: %w", kind, err)
	}

	reference := fmt.Sprintf("s3://%s/%s", s.bucket, key)
	s.logger.Info(fmt.Sprintf("stored %s upload for %s at %s", kind, sessionID, reference))
	return reference, nil
}
