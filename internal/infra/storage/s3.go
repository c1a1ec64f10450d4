package storage

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/rs/zerolog/log"
)

// S3Config holds the bucket settings for an S3 compatible store.
type S3Config struct {
	Endpoint string
	Region   string
	Bucket   string
	KeyID    string
	AppKey   string
	URLTTL   time.Duration
}

// S3 stores blobs in a bucket and hands out presigned GET URLs.
type S3 struct {
	api    s3iface.S3API
	bucket string
	ttl    time.Duration
}

// NewS3 creates a store from static credentials. An empty endpoint uses
// AWS; anything else is addressed path style.
func NewS3(cfg S3Config) (*S3, error) {
	awsCfg := &aws.Config{
		Credentials: credentials.NewStaticCredentials(cfg.KeyID, cfg.AppKey, ""),
		Region:      aws.String(cfg.Region),
	}
	if cfg.Endpoint != "" {
		awsCfg.Endpoint = aws.String(cfg.Endpoint)
		awsCfg.S3ForcePathStyle = aws.Bool(true)
	}
	sess, err := session.NewSession(awsCfg)
	if err != nil {
		return nil, fmt.Errorf("create s3 session: %w", err)
	}
	return NewS3WithAPI(s3.New(sess), cfg.Bucket, cfg.URLTTL), nil
}

// NewS3WithAPI wraps an existing client.
func NewS3WithAPI(api s3iface.S3API, bucket string, ttl time.Duration) *S3 {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &S3{api: api, bucket: bucket, ttl: ttl}
}

// URL presigns a GET request for path.
func (s *S3) URL(_ context.Context, path string) (string, error) {
	key, err := cleanKey(path)
	if err != nil {
		return "", err
	}
	req, _ := s.api.GetObjectRequest(&s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	u, err := req.Presign(s.ttl)
	if err != nil {
		return "", fmt.Errorf("presign %s: %w", key, err)
	}
	return u, nil
}

// Put uploads body to path.
func (s *S3) Put(ctx context.Context, path string, body io.ReadSeeker, contentType string) error {
	key, err := cleanKey(path)
	if err != nil {
		return err
	}
	input := &s3.PutObjectInput{
		Bucket:       aws.String(s.bucket),
		Key:          aws.String(key),
		Body:         body,
		CacheControl: aws.String("public, max-age=31536000"),
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}
	if _, err := s.api.PutObjectWithContext(ctx, input); err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}

	log.Debug().Str("bucket", s.bucket).Str("key", key).Msg("Blob uploaded")
	return nil
}
