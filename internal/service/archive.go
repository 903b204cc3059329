package service

import (
	"bytes"
	"context"
	"encoding/hex"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"golang.org/x/crypto/blake2b"

	"github.com/pageza/nutrisnap/backend/config"
	"github.com/pageza/nutrisnap/backend/internal/logger"
)

type objectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

var imageExtensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
	"image/gif":  ".gif",
}

// S3ImageStore archives meal photos under content-addressed keys, so the same
// upload always maps to the same object.
type S3ImageStore struct {
	client objectPutter
	bucket string
	log    *logger.Logger
}

var _ ImageArchive = (*S3ImageStore)(nil)

func NewS3ImageStore(s3Config *config.S3Config, log *logger.Logger) *S3ImageStore {
	return &S3ImageStore{
		client: s3Config.Client,
		bucket: s3Config.BucketName,
		log:    log.With("service", "S3ImageStore"),
	}
}

// ImageKey derives the object key from the image content.
func ImageKey(image []byte, contentType string) string {
	sum := blake2b.Sum256(image)
	return fmt.Sprintf("meal-images/%s%s", hex.EncodeToString(sum[:]), imageExtensions[contentType])
}

// Store uploads image data to S3 and returns the public URL
func (s *S3ImageStore) Store(ctx context.Context, image []byte, contentType string) (string, error) {
	key := ImageKey(image, contentType)
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(image),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload to S3: %w", err)
	}

	publicURL := fmt.Sprintf("https://%s.s3.amazonaws.com/%s", s.bucket, key)
	s.log.Info("archived meal image", "url", publicURL, "bytes", len(image))
	return publicURL, nil
}
