package filestore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"mitre-shield/internal/config"
)

// S3Store stores uploads in an S3 bucket. Credentials come from the
// default AWS chain (environment, shared config, IAM role).
type S3Store struct {
	client *s3.Client
	bucket string
	prefix string
	logger *slog.Logger
}

var _ Store = (*S3Store)(nil)

// NewS3 builds an S3-backed store from configuration. A custom endpoint
// switches on path-style addressing for S3-compatible stores like MinIO.
func NewS3(ctx context.Context, cfg config.S3Config, logger *slog.Logger) (*S3Store, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("s3 bucket is required")
	}

	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	var s3Opts []func(*s3.Options)
	if cfg.Endpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		})
	}

	store := &S3Store{
		client: s3.NewFromConfig(awsCfg, s3Opts...),
		bucket: cfg.Bucket,
		prefix: cfg.KeyPrefix,
		logger: logger,
	}

	logger.Info("s3 filestore initialized", "bucket", cfg.Bucket, "prefix", cfg.KeyPrefix)
	return store, nil
}

func (s *S3Store) key(id string) string {
	return s.prefix + id
}

// Save uploads the file under a fresh ID.
func (s *S3Store) Save(ctx context.Context, filename string, r io.Reader) (FileInfo, error) {
	id := newFileID(filename)

	body, err := io.ReadAll(r)
	if err != nil {
		return FileInfo{}, fmt.Errorf("failed to read upload: %w", err)
	}

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(id)),
		Body:   bytes.NewReader(body),
		Metadata: map[string]string{
			"original-name": filename,
		},
	})
	if err != nil {
		return FileInfo{}, fmt.Errorf("failed to upload to s3: %w", err)
	}

	return FileInfo{
		ID:         id,
		Name:       filename,
		Size:       int64(len(body)),
		UploadedAt: time.Now().UTC(),
	}, nil
}

// Open fetches the stored object's contents.
func (s *S3Store) Open(ctx context.Context, id string) (io.ReadCloser, error) {
	if !validFileID(id) {
		return nil, ErrBadFileID
	}

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(id)),
	})
	if err != nil {
		var noKey *types.NoSuchKey
		if errors.As(err, &noKey) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to fetch upload %s: %w", id, err)
	}
	return out.Body, nil
}

// Delete removes the stored object. S3 deletes are idempotent, so an
// absent key is not an error.
func (s *S3Store) Delete(ctx context.Context, id string) error {
	if !validFileID(id) {
		return ErrBadFileID
	}

	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(id)),
	})
	if err != nil {
		return fmt.Errorf("failed to delete upload %s: %w", id, err)
	}
	return nil
}
