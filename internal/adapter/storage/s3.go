// Package storage implements domain.FileStorage on an S3-compatible bucket.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/neomorfeo/dmgateway/internal/domain"
)

// Compile-time check: Bucket implements domain.FileStorage.
var _ domain.FileStorage = (*Bucket)(nil)

// Config configures the staging bucket.
type Config struct {
	Bucket    string
	Prefix    string
	Region    string
	Endpoint  string // set for MinIO and other S3-compatible services
	AccessKey string
	SecretKey string
	Timeout   time.Duration
}

// Bucket reads staged files from S3.
type Bucket struct {
	client *s3.Client
	bucket string
	prefix string
}

// New creates a Bucket. Static credentials are used when both keys are
// set; otherwise the default AWS credential chain applies.
func New(ctx context.Context, cfg Config) (*Bucket, error) {
	opts := []func(*config.LoadOptions) error{
		config.WithRegion(cfg.Region),
		// A buildable client lets AWS_CA_BUNDLE add its roots to the transport.
		config.WithHTTPClient(awshttp.NewBuildableClient().WithTimeout(cfg.Timeout)),
	}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return NewWithClient(client, cfg.Bucket, cfg.Prefix), nil
}

// NewWithClient creates a Bucket around an existing S3 client.
func NewWithClient(client *s3.Client, bucket, prefix string) *Bucket {
	return &Bucket{client: client, bucket: bucket, prefix: strings.Trim(prefix, "/")}
}

// FileProperties returns the size and content type of the object at path.
func (b *Bucket) FileProperties(ctx context.Context, path string) (domain.FileProperties, error) {
	out, err := b.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(b.key(path)),
	})
	if err != nil {
		return domain.FileProperties{}, b.storageError(path, err)
	}
	return domain.FileProperties{
		ContentLength: aws.ToInt64(out.ContentLength),
		ContentType:   aws.ToString(out.ContentType),
	}, nil
}

// Download opens the object at path. The caller closes the reader.
func (b *Bucket) Download(ctx context.Context, path string) (io.ReadCloser, error) {
	out, err := b.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(b.key(path)),
	})
	if err != nil {
		return nil, b.storageError(path, err)
	}
	return out.Body, nil
}

func (b *Bucket) key(path string) string {
	path = strings.TrimPrefix(path, "/")
	if b.prefix == "" {
		return path
	}
	return b.prefix + "/" + path
}

func (b *Bucket) storageError(path string, err error) error {
	up := &domain.UpstreamError{Service: domain.ServiceStorage, Message: path, Cause: err}

	var notFound *types.NotFound
	var noSuchKey *types.NoSuchKey
	var respErr *awshttp.ResponseError
	switch {
	case errors.As(err, &notFound), errors.As(err, &noSuchKey):
		up.StatusCode = http.StatusNotFound
	case errors.As(err, &respErr):
		up.StatusCode = respErr.HTTPStatusCode()
	}
	up.Timeout = domain.IsTimeout(err)
	return up
}
