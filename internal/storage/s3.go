package storage

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Config holds the configuration for S3 publishing.
type S3Config struct {
	Bucket          string
	Region          string
	Endpoint        string // Optional: for custom S3-compatible endpoints
	KeyPrefix       string // Optional: prepended to every object key, e.g. "videos/"
	PublicBaseURL   string // Optional: base of returned URLs instead of the bucket's virtual-host URL
	AccessKeyID     string // Optional: AWS access key ID
	SecretAccessKey string // Optional: AWS secret access key
}

// S3Publisher implements Publisher by uploading videos to an S3 bucket.
type S3Publisher struct {
	client        *s3.Client
	bucket        string
	region        string
	endpoint      string
	keyPrefix     string
	publicBaseURL string
}

// NewS3Publisher creates a new S3Publisher from cfg.
// Credentials come from cfg when both keys are set, otherwise from the
// default AWS credential chain.
func NewS3Publisher(ctx context.Context, cfg S3Config) (*S3Publisher, error) {
	var configOpts []func(*config.LoadOptions) error
	configOpts = append(configOpts, config.WithRegion(cfg.Region))

	// Use static credentials if provided
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		configOpts = append(configOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, configOpts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	var clientOpts []func(*s3.Options)
	if cfg.Endpoint != "" {
		clientOpts = append(clientOpts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		})
	}

	return &S3Publisher{
		client:        s3.NewFromConfig(awsCfg, clientOpts...),
		bucket:        cfg.Bucket,
		region:        cfg.Region,
		endpoint:      strings.TrimRight(cfg.Endpoint, "/"),
		keyPrefix:     cfg.KeyPrefix,
		publicBaseURL: strings.TrimRight(cfg.PublicBaseURL, "/"),
	}, nil
}

// Publish implements Publisher.Publish.
func (p *S3Publisher) Publish(ctx context.Context, localPath, publicID string) (string, error) {
	if err := validatePublicID(publicID); err != nil {
		return "", err
	}

	f, err := os.Open(localPath) // #nosec G304 - localPath is a scratch path owned by the caller
	if err != nil {
		return "", fmt.Errorf("%w: open %s: %w", ErrPublishFailed, localPath, err)
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil {
		return "", fmt.Errorf("%w: stat %s: %w", ErrPublishFailed, localPath, err)
	}

	key := ObjectKey(p.keyPrefix, publicID)

	_, err = p.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(p.bucket),
		Key:           aws.String(key),
		Body:          f,
		ContentLength: aws.Int64(info.Size()),
		ContentType:   aws.String(VideoContentType),
	})
	if err != nil {
		return "", fmt.Errorf("%w: upload to S3: %w", ErrPublishFailed, err)
	}

	return p.URL(key), nil
}

// URL returns the public URL of the object stored under key: the public
// base URL when set, else the path-style URL on a custom endpoint, else the
// bucket's AWS virtual-host URL.
func (p *S3Publisher) URL(key string) string {
	if p.publicBaseURL != "" {
		return p.publicBaseURL + "/" + key
	}
	if p.endpoint != "" {
		return p.endpoint + "/" + p.bucket + "/" + key
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", p.bucket, p.region, key)
}

// Compile-time check that S3Publisher implements Publisher.
var _ Publisher = (*S3Publisher)(nil)
