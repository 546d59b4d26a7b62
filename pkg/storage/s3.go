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
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/norman-ai/norman-sdk-go/pkg/config"
	"github.com/norman-ai/norman-sdk-go/pkg/errs"
)

// ObjectAPI is the subset of *s3.Client used here.
type ObjectAPI interface {
	HeadObject(ctx context.Context, in *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3 implements Presigner and Opener over the AWS SDK.
type S3 struct {
	api     ObjectAPI
	presign func(ctx context.Context, in *s3.GetObjectInput, ttl time.Duration) (string, error)
}

var (
	_ Presigner = (*S3)(nil)
	_ Opener    = (*S3)(nil)
)

// NewS3 builds an S3 backend. Static keys are used when set, otherwise the
// default AWS credential chain. A custom endpoint switches to path-style
// addressing for S3-compatible stores.
func NewS3(ctx context.Context, cfg config.S3) (*S3, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(aws.NewCredentialsCache(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, cfg.SessionToken))))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
		if cfg.UsePathStyle {
			o.UsePathStyle = true
		}
	})
	pc := s3.NewPresignClient(client)
	return &S3{
		api: client,
		presign: func(ctx context.Context, in *s3.GetObjectInput, ttl time.Duration) (string, error) {
			req, err := pc.PresignGetObject(ctx, in, s3.WithPresignExpires(ttl))
			if err != nil {
				return "", err
			}
			return req.URL, nil
		},
	}, nil
}

// NewS3WithAPI builds an S3 backend over explicit clients.
func NewS3WithAPI(api ObjectAPI, presign func(ctx context.Context, in *s3.GetObjectInput, ttl time.Duration) (string, error)) *S3 {
	return &S3{api: api, presign: presign}
}

func (s *S3) PresignURL(ctx context.Context, obj Object, ttl time.Duration) (string, error) {
	return s.presign(ctx, &s3.GetObjectInput{
		Bucket: aws.String(obj.Bucket),
		Key:    aws.String(obj.Key),
	}, ttl)
}

// Open reads the object size with HeadObject and defers GetObject until the
// first Read.
func (s *S3) Open(ctx context.Context, obj Object) (*ObjectReader, error) {
	head, err := s.api.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(obj.Bucket),
		Key:    aws.String(obj.Key),
	})
	if err != nil {
		var nf *s3types.NotFound
		if errors.As(err, &nf) {
			return nil, fmt.Errorf("%w: %s", errs.ErrNotFound, obj)
		}
		return nil, err
	}
	return &ObjectReader{
		ctx:  ctx,
		api:  s.api,
		obj:  obj,
		size: aws.ToInt64(head.ContentLength),
	}, nil
}

// ObjectReader is a lazily opened object body of known size.
type ObjectReader struct {
	ctx  context.Context
	api  ObjectAPI
	obj  Object
	size int64
	body io.ReadCloser
}

func (r *ObjectReader) Size() int64 { return r.size }

func (r *ObjectReader) Read(p []byte) (int, error) {
	if r.body == nil {
		out, err := r.api.GetObject(r.ctx, &s3.GetObjectInput{
			Bucket: aws.String(r.obj.Bucket),
			Key:    aws.String(r.obj.Key),
		})
		if err != nil {
			return 0, fmt.Errorf("failed to get object from S3: %w", err)
		}
		r.body = out.Body
	}
	return r.body.Read(p)
}

func (r *ObjectReader) Close() error {
	if r.body == nil {
		return nil
	}
	return r.body.Close()
}
