package services

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"io"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/stockroute/internal/config"
)

type recordingPutter struct {
	input *s3.PutObjectInput
	body  []byte
	err   error
}

func (r *recordingPutter) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if r.err != nil {
		return nil, r.err
	}
	r.input = in
	r.body, _ = io.ReadAll(in.Body)
	return &s3.PutObjectOutput{}, nil
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, w, h))))
	return buf.Bytes()
}

func TestS3StorageUpload(t *testing.T) {
	putter := &recordingPutter{}
	store := &S3Storage{
		cfg:    config.StorageConfig{Bucket: "media", Region: "ap-south-1", BasePath: "/uploads/", CDNDomain: "cdn.example.com"},
		client: putter,
	}
	data := pngBytes(t, 4, 3)

	res, err := store.Upload(context.Background(), data, "shop-1", []string{"product", "a&b"})
	require.NoError(t, err)

	assert.Equal(t, 4, res.Width)
	assert.Equal(t, 3, res.Height)
	assert.Equal(t, "png", res.Format)
	assert.Equal(t, len(data), res.ByteSize)
	assert.True(t, strings.HasPrefix(res.PublicID, "uploads/shop-1/"))
	assert.Equal(t, "https://cdn.example.com/"+res.PublicID+".png", res.SecureURL)

	require.NotNil(t, putter.input)
	assert.Equal(t, "media", aws.ToString(putter.input.Bucket))
	assert.Equal(t, "image/png", aws.ToString(putter.input.ContentType))
	assert.Equal(t, "tag0=product&tag1=ab", aws.ToString(putter.input.Tagging))
	assert.Equal(t, data, putter.body)
}

func TestS3StoragePublicURLFallbacks(t *testing.T) {
	s := &S3Storage{cfg: config.StorageConfig{Bucket: "media", Endpoint: "http://minio:9000/"}}
	assert.Equal(t, "http://minio:9000/media/k.png", s.publicURL("k.png"))

	s = &S3Storage{cfg: config.StorageConfig{Bucket: "media", Region: "eu-west-1"}}
	assert.Equal(t, "https://media.s3.eu-west-1.amazonaws.com/k.png", s.publicURL("k.png"))
}

func TestS3StorageRejects(t *testing.T) {
	store := NewS3Storage(config.StorageConfig{})

	_, err := store.Upload(context.Background(), []byte("plain text"), "", nil)
	assert.ErrorIs(t, err, ErrUnsupportedImage)

	_, err = store.Upload(context.Background(), pngBytes(t, 1, 1), "", nil)
	assert.ErrorIs(t, err, ErrStorageNotConfigured)

	failing := &S3Storage{cfg: config.StorageConfig{Bucket: "media"}, client: &recordingPutter{err: errors.New("denied")}}
	_, err = failing.Upload(context.Background(), pngBytes(t, 1, 1), "", nil)
	assert.ErrorContains(t, err, "denied")
}
