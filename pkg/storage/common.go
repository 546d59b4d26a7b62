package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/norman-ai/norman-sdk-go/pkg/config"
	"github.com/norman-ai/norman-sdk-go/pkg/errs"
	"github.com/norman-ai/norman-sdk-go/pkg/model"
	"go.uber.org/zap"
)

// S3Prefix is the URI scheme recognized for object storage items.
const S3Prefix = "s3://"

// Object addresses one stored object.
type Object struct {
	Bucket string
	Key    string
}

func (o Object) String() string { return S3Prefix + o.Bucket + "/" + o.Key }

// IsObjectURI reports whether data is a string naming an s3:// object.
func IsObjectURI(data any) bool {
	s, ok := data.(string)
	return ok && strings.HasPrefix(strings.TrimSpace(s), S3Prefix)
}

// ParseURI splits s3://bucket/key. Both parts are required.
func ParseURI(uri string) (Object, error) {
	rest, ok := strings.CutPrefix(strings.TrimSpace(uri), S3Prefix)
	if !ok {
		return Object{}, errs.Invalid("%q is not an %s URI", uri, S3Prefix)
	}
	bucket, key, _ := strings.Cut(rest, "/")
	if bucket == "" || key == "" {
		return Object{}, errs.Invalid("%q needs a bucket and a key", uri)
	}
	return Object{Bucket: bucket, Key: key}, nil
}

// Presigner issues time-limited GET URLs.
type Presigner interface {
	PresignURL(ctx context.Context, obj Object, ttl time.Duration) (string, error)
}

// Opener opens objects as sized streams.
type Opener interface {
	Open(ctx context.Context, obj Object) (*ObjectReader, error)
}

// Client turns s3:// items into something the dispatcher can send: a
// presigned Link the platform pulls itself, or a sized Stream pushed by
// the SDK.
type Client struct {
	mode      string
	ttl       time.Duration
	presigner Presigner
	opener    Opener
}

// NewClient builds a Client over explicit backends. mode is config.S3Presign
// or config.S3Stream.
func NewClient(mode string, ttl time.Duration, p Presigner, o Opener) *Client {
	if mode == "" {
		mode = config.S3Presign
	}
	return &Client{mode: mode, ttl: ttl, presigner: p, opener: o}
}

// Resolve rewrites data when it names an s3:// object and returns the new
// data with its source. Other data is returned unchanged with the declared
// source and ok=false. An object declared as a Link is always presigned.
func (c *Client) Resolve(ctx context.Context, data any, declared model.Source) (any, model.Source, bool, error) {
	if !IsObjectURI(data) {
		return data, declared, false, nil
	}
	obj, err := ParseURI(data.(string))
	if err != nil {
		return nil, "", false, err
	}

	if c.mode == config.S3Presign || declared == model.SourceLink {
		u, err := c.presigner.PresignURL(ctx, obj, c.ttl)
		if err != nil {
			return nil, "", false, fmt.Errorf("presign %s: %w", obj, err)
		}
		zap.L().Debug("object presigned", zap.String("object", obj.String()), zap.Duration("ttl", c.ttl))
		return u, model.SourceLink, true, nil
	}

	r, err := c.opener.Open(ctx, obj)
	if err != nil {
		return nil, "", false, fmt.Errorf("open %s: %w", obj, err)
	}
	zap.L().Debug("object opened", zap.String("object", obj.String()), zap.Int64("size", r.Size()))
	return r, model.SourceStream, true, nil
}
