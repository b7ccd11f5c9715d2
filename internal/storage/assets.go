// Package storage manages binary assets (images, downloads) in an
// S3-compatible bucket, keeping large blobs out of the git content tree.
package storage

import (
	"context"
	"io"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/kestrelworks/inkwell/internal/log"
	"github.com/kestrelworks/inkwell/internal/pathutil"
	"github.com/kestrelworks/inkwell/internal/xerrors"
)

const (
	DefaultListLimit = 100
	MaxListLimit     = 1000
)

// s3API is the slice of the S3 client the store uses.
type s3API interface {
	ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, opts ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	PutObject(ctx context.Context, in *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type Options struct {
	Bucket        string
	Prefix        string
	Region        string
	Endpoint      string // non-empty for S3-compatible stores (R2, minio)
	PublicBaseURL string // base for public asset URLs, no trailing slash

	// AWSConfig overrides the default credential chain, used in tests.
	AWSConfig *aws.Config
	Logger    log.Logger
}

// Store lists and uploads assets under a single bucket prefix.
type Store struct {
	client s3API
	opts   Options
	logger log.Logger
}

func New(ctx context.Context, opts Options) (*Store, error) {
	if opts.Bucket == "" {
		return nil, xerrors.New("asset storage requires a bucket")
	}
	if opts.Logger == nil {
		opts.Logger = log.Nop()
	}

	var awsCfg aws.Config
	var err error
	if opts.AWSConfig != nil {
		awsCfg = *opts.AWSConfig
	} else {
		awsCfg, err = config.LoadDefaultConfig(ctx, config.WithRegion(opts.Region))
		if err != nil {
			return nil, xerrors.Wrap(err, "load AWS config")
		}
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true
		}
	})

	return &Store{client: client, opts: opts, logger: opts.Logger}, nil
}

// Asset is one stored object, keyed relative to the configured prefix.
type Asset struct {
	Key          string    `json:"key"`
	Size         int64     `json:"size"`
	LastModified time.Time `json:"last_modified"`
	URL          string    `json:"url,omitempty"`
}

type ListQuery struct {
	Limit  int
	Cursor string // continuation token from a previous page
}

type ListPage struct {
	Assets     []Asset `json:"assets"`
	NextCursor string  `json:"next_cursor,omitempty"`
}

// List returns one page of assets. Limit defaults to DefaultListLimit and
// is clamped to MaxListLimit; NextCursor is empty on the final page.
func (s *Store) List(ctx context.Context, q ListQuery) (*ListPage, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}

	in := &s3.ListObjectsV2Input{
		Bucket:  aws.String(s.opts.Bucket),
		MaxKeys: aws.Int32(int32(limit)),
	}
	if s.opts.Prefix != "" {
		in.Prefix = aws.String(s.opts.Prefix + "/")
	}
	if q.Cursor != "" {
		in.ContinuationToken = aws.String(q.Cursor)
	}

	out, err := s.client.ListObjectsV2(ctx, in)
	if err != nil {
		return nil, xerrors.Wrapf(err, "list assets in %s", s.opts.Bucket)
	}

	page := &ListPage{Assets: make([]Asset, 0, len(out.Contents))}
	for _, obj := range out.Contents {
		key := aws.ToString(obj.Key)
		rel := s.relativeKey(key)
		if rel == "" {
			continue
		}
		a := Asset{
			Key:  rel,
			Size: aws.ToInt64(obj.Size),
			URL:  s.publicURL(rel),
		}
		if obj.LastModified != nil {
			a.LastModified = *obj.LastModified
		}
		page.Assets = append(page.Assets, a)
	}
	if aws.ToBool(out.IsTruncated) {
		page.NextCursor = aws.ToString(out.NextContinuationToken)
	}
	return page, nil
}

// Upload stores body at the cleaned key under the prefix and returns the
// resulting asset. The key is caller-supplied and validated.
func (s *Store) Upload(ctx context.Context, key, contentType string, body io.Reader) (*Asset, error) {
	rel, err := pathutil.CleanTreeRelative(key)
	if err != nil {
		return nil, xerrors.Wrapf(err, "asset key %q", key)
	}

	full := rel
	if s.opts.Prefix != "" {
		full = s.opts.Prefix + "/" + rel
	}

	in := &s3.PutObjectInput{
		Bucket: aws.String(s.opts.Bucket),
		Key:    aws.String(full),
		Body:   body,
	}
	if contentType != "" {
		in.ContentType = aws.String(contentType)
	}

	if _, err := s.client.PutObject(ctx, in); err != nil {
		return nil, xerrors.Wrapf(err, "upload asset %s", full)
	}

	s.logger.Info(ctx, "asset uploaded", "bucket", s.opts.Bucket, "key", full)
	return &Asset{Key: rel, URL: s.publicURL(rel), LastModified: time.Now().UTC()}, nil
}

func (s *Store) relativeKey(full string) string {
	if s.opts.Prefix == "" {
		return full
	}
	rel := strings.TrimPrefix(full, s.opts.Prefix+"/")
	if rel == full || rel == "" {
		// outside our prefix, or the prefix placeholder itself
		return ""
	}
	return rel
}

func (s *Store) publicURL(rel string) string {
	if s.opts.PublicBaseURL == "" {
		return ""
	}
	return strings.TrimSuffix(s.opts.PublicBaseURL, "/") + "/" + rel
}
