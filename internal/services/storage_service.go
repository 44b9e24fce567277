package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"net/http"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"github.com/example/stockroute/internal/config"
)

// UploadResult describes a stored image.
type UploadResult struct {
	PublicID  string `json:"public_id"`
	SecureURL string `json:"secure_url"`
	ByteSize  int    `json:"bytes"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
	Format    string `json:"format"`
}

// ImageStore persists images and returns their public location.
type ImageStore interface {
	Upload(ctx context.Context, data []byte, folder string, tags []string) (*UploadResult, error)
}

var (
	ErrStorageNotConfigured = errors.New("object storage is not configured")
	ErrUnsupportedImage     = errors.New("unsupported image format")
)

type objectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Storage uploads images to an S3 compatible bucket.
type S3Storage struct {
	cfg    config.StorageConfig
	client objectPutter
}

// NewS3Storage builds the client lazily on first upload so that missing
// credentials only fail the upload request.
func NewS3Storage(cfg config.StorageConfig) *S3Storage {
	return &S3Storage{cfg: cfg}
}

func (s *S3Storage) ensureClient(ctx context.Context) error {
	if s.client != nil {
		return nil
	}
	if s.cfg.Bucket == "" || s.cfg.AccessKey == "" || s.cfg.SecretKey == "" {
		return ErrStorageNotConfigured
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(s.cfg.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(s.cfg.AccessKey, s.cfg.SecretKey, "")),
	)
	if err != nil {
		return fmt.Errorf("load aws config: %w", err)
	}

	s.client = s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if s.cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(s.cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return nil
}

// Upload stores data under folder and reports its dimensions and format.
func (s *S3Storage) Upload(ctx context.Context, data []byte, folder string, tags []string) (*UploadResult, error) {
	imgCfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, ErrUnsupportedImage
	}
	if err := s.ensureClient(ctx); err != nil {
		return nil, err
	}

	key := s.objectKey(folder, format)
	input := &s3.PutObjectInput{
		Bucket:      aws.String(s.cfg.Bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(http.DetectContentType(data)),
	}
	if len(tags) > 0 {
		input.Tagging = aws.String(tagging(tags))
	}

	if _, err := s.client.PutObject(ctx, input); err != nil {
		return nil, fmt.Errorf("upload to s3: %w", err)
	}

	return &UploadResult{
		PublicID:  strings.TrimSuffix(key, path.Ext(key)),
		SecureURL: s.publicURL(key),
		ByteSize:  len(data),
		Width:     imgCfg.Width,
		Height:    imgCfg.Height,
		Format:    format,
	}, nil
}

func (s *S3Storage) objectKey(folder, format string) string {
	parts := []string{}
	if s.cfg.BasePath != "" {
		parts = append(parts, strings.Trim(s.cfg.BasePath, "/"))
	}
	if folder = strings.Trim(folder, "/"); folder != "" {
		parts = append(parts, folder)
	}
	parts = append(parts, uuid.NewString()+"."+format)
	return strings.Join(parts, "/")
}

func (s *S3Storage) publicURL(key string) string {
	if s.cfg.CDNDomain != "" {
		return fmt.Sprintf("https://%s/%s", s.cfg.CDNDomain, key)
	}
	if s.cfg.Endpoint != "" {
		return fmt.Sprintf("%s/%s/%s", strings.TrimRight(s.cfg.Endpoint, "/"), s.cfg.Bucket, key)
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.cfg.Bucket, s.cfg.Region, key)
}

func tagging(tags []string) string {
	pairs := make([]string, 0, len(tags))
	for i, tag := range tags {
		pairs = append(pairs, fmt.Sprintf("tag%d=%s", i, strings.ReplaceAll(tag, "&", "")))
	}
	return strings.Join(pairs, "&")
}
