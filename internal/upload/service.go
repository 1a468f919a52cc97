// Package upload stores user-provided card imagery (logos, photos,
// backgrounds, pre-made QR images) in S3-compatible object storage and
// hands back the public URL the document embeds.
package upload

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"cardsmith/api/internal/util"
)

// imageExtensions is the closed set of accepted upload content types.
var imageExtensions = map[string]string{
	"image/png":     ".png",
	"image/jpeg":    ".jpg",
	"image/webp":    ".webp",
	"image/svg+xml": ".svg",
}

// ErrUnsupportedContentType is returned for non-image uploads.
var ErrUnsupportedContentType = fmt.Errorf("unsupported upload content type")

type Service struct {
	client        *minio.Client
	bucket        string
	publicBaseURL string
}

// New connects to the object store. publicBaseURL is the origin uploads
// are served from, typically the store endpoint or a CDN in front of it.
func New(endpoint, accessKey, secretKey, bucket, publicBaseURL string, useSSL bool) (*Service, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("connect object store: %w", err)
	}
	return &Service{
		client:        client,
		bucket:        bucket,
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
	}, nil
}

// EnsureBucket creates the upload bucket when it does not exist yet.
func (s *Service) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("check bucket: %w", err)
	}
	if exists {
		return nil
	}
	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("create bucket: %w", err)
	}
	return nil
}

// Store writes one uploaded image and returns its public URL. kind names
// the image's role (logo, photo, background, qr) and becomes the object
// key prefix.
func (s *Service) Store(ctx context.Context, kind string, data []byte, contentType string) (string, error) {
	ext, ok := imageExtensions[strings.ToLower(strings.TrimSpace(contentType))]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedContentType, contentType)
	}
	if kind == "" {
		kind = "image"
	}

	objectName := kind + "/" + util.NewID("img") + ext
	_, err := s.client.PutObject(ctx, s.bucket, objectName, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("store upload: %w", err)
	}
	return s.publicBaseURL + "/" + s.bucket + "/" + objectName, nil
}
