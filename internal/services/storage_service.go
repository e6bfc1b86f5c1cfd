// internal/services/storage_service.go
package services

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"

	"github.com/javajoker/offer-enricher/internal/config"
)

// FeedSource opens a fresh stream over the same feed on every call; a run
// reads the feed twice (categories, then offers).
type FeedSource interface {
	Open(ctx context.Context) (io.ReadCloser, error)
	String() string
}

type FileSource struct {
	Path string
}

func (f *FileSource) Open(ctx context.Context) (io.ReadCloser, error) {
	file, err := os.Open(f.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open feed file: %w", err)
	}
	return file, nil
}

func (f *FileSource) String() string { return f.Path }

type S3Source struct {
	client s3iface.S3API
	Bucket string
	Key    string
}

func NewS3Source(client s3iface.S3API, bucket, key string) *S3Source {
	return &S3Source{client: client, Bucket: bucket, Key: key}
}

// Open streams the object body; nothing is buffered beyond the SDK's reader.
func (s *S3Source) Open(ctx context.Context) (io.ReadCloser, error) {
	out, err := s.client.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.Bucket),
		Key:    aws.String(s.Key),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get s3://%s/%s: %w", s.Bucket, s.Key, err)
	}
	return out.Body, nil
}

func (s *S3Source) String() string { return "s3://" + s.Bucket + "/" + s.Key }

// NewFeedSource picks the source from the location scheme: s3://bucket/key
// or a local path.
func NewFeedSource(location string, cfg config.AWSConfig) (FeedSource, error) {
	if location == "" {
		return nil, fmt.Errorf("feed location is empty")
	}
	if !strings.HasPrefix(location, "s3://") {
		return &FileSource{Path: location}, nil
	}

	bucket, key, err := ParseS3Location(location)
	if err != nil {
		return nil, err
	}

	awsConfig := &aws.Config{Region: aws.String(cfg.Region)}
	if cfg.AccessKeyID != "" {
		awsConfig.Credentials = credentials.NewStaticCredentials(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"",
		)
	}

	sess, err := session.NewSession(awsConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %w", err)
	}

	return NewS3Source(s3.New(sess), bucket, key), nil
}

func ParseS3Location(location string) (bucket, key string, err error) {
	u, err := url.Parse(location)
	if err != nil {
		return "", "", fmt.Errorf("invalid feed location %q: %w", location, err)
	}
	bucket = u.Host
	key = strings.TrimPrefix(u.Path, "/")
	if u.Scheme != "s3" || bucket == "" || key == "" {
		return "", "", fmt.Errorf("invalid feed location %q: want s3://bucket/key", location)
	}
	return bucket, key, nil
}
