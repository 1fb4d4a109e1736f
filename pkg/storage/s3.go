package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	// MaxImageSize is the maximum allowed event image size (5MB).
	MaxImageSize = 5 * 1024 * 1024
	// FolderEvents is the S3 prefix for event images.
	FolderEvents = "events"
)

// Allowed image MIME types and extensions.
var (
	AllowedImageTypes = map[string]string{
		"image/jpeg": ".jpg",
		"image/jpg":  ".jpg",
		"image/png":  ".png",
		"image/webp": ".webp",
		"image/gif":  ".gif",
	}
	AllowedImageExtensions = map[string]string{
		".jpg":  "image/jpeg",
		".jpeg": "image/jpeg",
		".png":  "image/png",
		".webp": "image/webp",
		".gif":  "image/gif",
	}
)

// S3Config holds S3 client configuration.
type S3Config struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	ImagesBucket    string
	// PublicBaseURL overrides the bucket URL, e.g. a CDN in front of the bucket.
	PublicBaseURL string
}

// S3 stores event images in a public-read bucket.
type S3 struct {
	client   *s3.Client
	uploader *manager.Uploader
	cfg      S3Config
	logger   *zap.Logger
}

// NewS3 creates an S3 client using credentials from config or .env (AWS_ACCESS_KEY_ID, AWS_SECRET_ACCESS_KEY).
func NewS3(ctx context.Context, cfg S3Config, logger *zap.Logger) (*S3, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	accessKey := cfg.AccessKeyID
	secretKey := cfg.SecretAccessKey
	if accessKey == "" || secretKey == "" {
		accessKey = os.Getenv("AWS_ACCESS_KEY_ID")
		secretKey = os.Getenv("AWS_SECRET_ACCESS_KEY")
	}
	opts := []func(*config.LoadOptions) error{
		config.WithRegion(cfg.Region),
	}
	if accessKey != "" && secretKey != "" {
		opts = append(opts, config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			accessKey, secretKey, "",
		)))
		logger.Info("S3 client using static credentials", zap.String("region", cfg.Region), zap.String("bucket", cfg.ImagesBucket))
	} else {
		logger.Warn("S3 client using default credential chain (AWS_ACCESS_KEY_ID/AWS_SECRET_ACCESS_KEY not set)")
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg)
	uploader := manager.NewUploader(client, func(u *manager.Uploader) {
		u.PartSize = 5 * 1024 * 1024
	})
	return &S3{
		client:   client,
		uploader: uploader,
		cfg:      cfg,
		logger:   logger,
	}, nil
}

// ValidateImageType returns true if the content type or extension is an allowed image.
func ValidateImageType(contentType, filename string) bool {
	if contentType != "" {
		if _, ok := AllowedImageTypes[strings.ToLower(contentType)]; ok {
			return true
		}
	}
	if ext := strings.ToLower(path.Ext(filename)); ext != "" {
		if _, ok := AllowedImageExtensions[ext]; ok {
			return true
		}
	}
	return false
}

// ContentTypeForFilename returns the MIME type for an image filename extension.
func ContentTypeForFilename(filename string) string {
	if ct, ok := AllowedImageExtensions[strings.ToLower(path.Ext(filename))]; ok {
		return ct
	}
	return "application/octet-stream"
}

// ImageKey returns a fresh object key: events/{event_id}/{random}{ext}.
// eventID may be empty for images uploaded before the event exists.
func ImageKey(eventID, filename string) string {
	ext := strings.ToLower(path.Ext(filename))
	if _, ok := AllowedImageExtensions[ext]; !ok {
		ext = ".jpg"
	}
	if eventID == "" {
		eventID = "unassigned"
	}
	return path.Join(FolderEvents, eventID, uuid.NewString()+ext)
}

func (s *S3) baseURL() string {
	if s.cfg.PublicBaseURL != "" {
		return strings.TrimRight(s.cfg.PublicBaseURL, "/")
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com", s.cfg.ImagesBucket, s.cfg.Region)
}

// PublicObjectURL returns the public URL for key.
func (s *S3) PublicObjectURL(key string) string {
	return s.baseURL() + "/" + key
}

// KeyFromURL reverses PublicObjectURL. It returns false for URLs outside the bucket.
func (s *S3) KeyFromURL(u string) (string, bool) {
	prefix := s.baseURL() + "/"
	if !strings.HasPrefix(u, prefix) {
		return "", false
	}
	key := strings.TrimPrefix(u, prefix)
	return key, key != ""
}

// UploadImage streams an image to the bucket with public-read ACL and returns its URL.
func (s *S3) UploadImage(ctx context.Context, key, contentType string, body io.Reader, contentLength int64) (string, error) {
	var contentLengthPtr *int64
	if contentLength > 0 {
		contentLengthPtr = &contentLength
	}
	_, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.cfg.ImagesBucket),
		Key:           aws.String(key),
		Body:          body,
		ContentType:   aws.String(contentType),
		ContentLength: contentLengthPtr,
		ACL:           types.ObjectCannedACLPublicRead,
	})
	if err != nil {
		return "", fmt.Errorf("upload: %w", err)
	}
	return s.PublicObjectURL(key), nil
}

// DeleteImageByURL removes the object behind a URL from PublicObjectURL.
// URLs that do not point into the bucket are ignored.
func (s *S3) DeleteImageByURL(ctx context.Context, u string) error {
	key, ok := s.KeyFromURL(u)
	if !ok {
		return nil
	}
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.cfg.ImagesBucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("delete object: %w", err)
	}
	return nil
}
