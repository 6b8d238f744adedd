package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"

	"profile-api/internal/domain"
)

type Opts struct {
	Bucket     string
	Region     string
	Endpoint   string // empty → AWS
	AccessKey  string // empty → default credential chain
	SecretKey  string
	PathStyle  bool
	PresignTTL time.Duration
}

// S3 is the photo bucket. It implements domain.ObjectStore.
type S3 struct {
	client  *s3.Client
	presign *s3.PresignClient
	creds   aws.CredentialsProvider
	bucket  string
	ttl     time.Duration
}

func New(ctx context.Context, o Opts) (*S3, error) {
	loadOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(o.Region),
		awsconfig.WithRetryMaxAttempts(1),
		// S3-compatible stores (MinIO, R2) reject the newer default checksums
		awsconfig.WithRequestChecksumCalculation(aws.RequestChecksumCalculationWhenRequired),
	}
	if o.AccessKey != "" || o.SecretKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(o.AccessKey, o.SecretKey, ""),
		))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(cfg, func(so *s3.Options) {
		if o.Endpoint != "" {
			so.BaseEndpoint = aws.String(o.Endpoint)
		}
		so.UsePathStyle = o.PathStyle
	})
	ttl := o.PresignTTL
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &S3{
		client:  client,
		presign: s3.NewPresignClient(client),
		creds:   cfg.Credentials,
		bucket:  o.Bucket,
		ttl:     ttl,
	}, nil
}

func (s *S3) Bucket() string { return s.bucket }

// checkCredentials fails fast when no usable credentials are configured,
// before any bytes go on the wire.
func (s *S3) checkCredentials(ctx context.Context) error {
	if s.creds == nil {
		return fmt.Errorf("%w: no credentials configured", domain.ErrStorageCredentials)
	}
	c, err := s.creds.Retrieve(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrStorageCredentials, err)
	}
	if c.AccessKeyID == "" || c.SecretAccessKey == "" {
		return fmt.Errorf("%w: empty credentials", domain.ErrStorageCredentials)
	}
	return nil
}

// Put uploads body under key, replacing any existing object.
func (s *S3) Put(ctx context.Context, key string, body io.ReadSeeker, size int64, contentType string) error {
	if err := s.checkCredentials(ctx); err != nil {
		return err
	}
	in := &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          body,
		ContentLength: aws.Int64(size),
	}
	if contentType != "" {
		in.ContentType = aws.String(contentType)
	}
	if _, err := s.client.PutObject(ctx, in); err != nil {
		return classify("put "+key, err)
	}
	return nil
}

func (s *S3) PresignGet(ctx context.Context, key string) (string, error) {
	if err := s.checkCredentials(ctx); err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrStorageClient, err)
	}
	req, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(s.ttl))
	if err != nil {
		return "", fmt.Errorf("%w: presign %s: %v", domain.ErrStorageClient, key, err)
	}
	return req.URL, nil
}

func (s *S3) List(ctx context.Context, prefix string) ([]domain.Object, error) {
	in := &s3.ListObjectsV2Input{Bucket: aws.String(s.bucket)}
	if prefix != "" {
		in.Prefix = aws.String(prefix)
	}
	var out []domain.Object
	p := s3.NewListObjectsV2Paginator(s.client, in)
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, classify("list", err)
		}
		for _, o := range page.Contents {
			obj := domain.Object{Key: aws.ToString(o.Key), Size: aws.ToInt64(o.Size)}
			if o.LastModified != nil {
				obj.LastModified = *o.LastModified
			}
			out = append(out, obj)
		}
	}
	return out, nil
}

func (s *S3) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return classify("delete "+key, err)
	}
	return nil
}

var credentialCodes = map[string]struct{}{
	"InvalidAccessKeyId":    {},
	"SignatureDoesNotMatch": {},
	"ExpiredToken":          {},
	"InvalidToken":          {},
	"TokenRefreshRequired":  {},
}

func classify(op string, err error) error {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		if _, ok := credentialCodes[apiErr.ErrorCode()]; ok {
			return fmt.Errorf("%w: %s: %s", domain.ErrStorageCredentials, op, apiErr.ErrorCode())
		}
	}
	return fmt.Errorf("%w: %s: %v", domain.ErrStorageClient, op, err)
}
