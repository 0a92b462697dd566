// Package storage uploads thumbnail images to an S3-compatible bucket.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/google/uuid"

	"github.com/cinevault/backend/internal/config"
)

// ErrUnsupportedImage indicates the upload is not an accepted image type.
var ErrUnsupportedImage = errors.New("thumbnail must be a jpeg, png, webp or gif image")

var imageTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
	"image/gif":  true,
}

type uploader interface {
	Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

// ThumbnailStore writes thumbnails to the configured bucket.
type ThumbnailStore struct {
	uploader uploader
	bucket   string
	baseURL  string
	newID    func() string
}

// NewThumbnailStore configures an uploader targeting the provided object store.
func NewThumbnailStore(ctx context.Context, cfg config.ObjectStoreConfig) (*ThumbnailStore, error) {
	if !cfg.Enabled() {
		return nil, fmt.Errorf("s3 storage: bucket is required")
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if endpoint := strings.TrimSpace(cfg.Endpoint); endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
		o.UsePathStyle = true
	})

	up := manager.NewUploader(client, func(u *manager.Uploader) {
		u.PartSize = 5 * 1024 * 1024
		u.LeavePartsOnError = false
	})

	return newThumbnailStore(up, cfg.Bucket, cfg.PublicBaseURL), nil
}

func newThumbnailStore(up uploader, bucket, baseURL string) *ThumbnailStore {
	return &ThumbnailStore{
		uploader: up,
		bucket:   bucket,
		baseURL:  strings.TrimSuffix(baseURL, "/"),
		newID:    func() string { return uuid.NewString() },
	}
}

// Save uploads an image under a generated key and returns its public location.
// The content type is derived from the file name extension.
func (s *ThumbnailStore) Save(ctx context.Context, filename string, r io.Reader) (string, error) {
	ext := strings.ToLower(path.Ext(filename))
	contentType := mime.TypeByExtension(ext)
	if i := strings.Index(contentType, ";"); i >= 0 {
		contentType = contentType[:i]
	}
	if !imageTypes[contentType] {
		return "", ErrUnsupportedImage
	}

	key := ThumbnailKey(s.newID(), ext)
	_, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        r,
		ContentType: aws.String(contentType),
		ACL:         s3types.ObjectCannedACLPublicRead,
	})
	if err != nil {
		return "", fmt.Errorf("s3 storage upload %s: %w", key, err)
	}

	if s.baseURL == "" {
		return key, nil
	}
	return s.baseURL + "/" + key, nil
}

// ThumbnailKey returns the object key used for a thumbnail.
func ThumbnailKey(id, ext string) string {
	return "thumbnails/" + id + ext
}
