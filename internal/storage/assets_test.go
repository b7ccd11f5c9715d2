package storage

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/kestrelworks/inkwell/internal/log"
)

type fakeS3 struct {
	listIn  *s3.ListObjectsV2Input
	listOut *s3.ListObjectsV2Output
	listErr error

	putIn   *s3.PutObjectInput
	putBody []byte
}

func (f *fakeS3) ListObjectsV2(_ context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	f.listIn = in
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.listOut, nil
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.putIn = in
	if in.Body != nil {
		f.putBody, _ = io.ReadAll(in.Body)
	}
	return &s3.PutObjectOutput{}, nil
}

func newTestStore(fake *fakeS3) *Store {
	return &Store{
		client: fake,
		opts: Options{
			Bucket:        "assets-bucket",
			Prefix:        "blog",
			PublicBaseURL: "https://cdn.example.com/",
		},
		logger: log.Nop(),
	}
}

func TestList_PageAndCursor(t *testing.T) {
	mod := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	fake := &fakeS3{
		listOut: &s3.ListObjectsV2Output{
			Contents: []types.Object{
				{Key: aws.String("blog/images/a.png"), Size: aws.Int64(123), LastModified: &mod},
				{Key: aws.String("blog/images/b.png"), Size: aws.Int64(456), LastModified: &mod},
				{Key: aws.String("other/outside.png"), Size: aws.Int64(1)},
			},
			IsTruncated:           aws.Bool(true),
			NextContinuationToken: aws.String("token-next"),
		},
	}
	s := newTestStore(fake)

	page, err := s.List(context.Background(), ListQuery{Limit: 2, Cursor: "token-prev"})
	if err != nil {
		t.Fatalf("List: %v", err)
	}

	if got := aws.ToString(fake.listIn.Prefix); got != "blog/" {
		t.Errorf("prefix = %q", got)
	}
	if got := aws.ToInt32(fake.listIn.MaxKeys); got != 2 {
		t.Errorf("max keys = %d", got)
	}
	if got := aws.ToString(fake.listIn.ContinuationToken); got != "token-prev" {
		t.Errorf("continuation = %q", got)
	}

	if len(page.Assets) != 2 {
		t.Fatalf("assets = %d, want 2 (out-of-prefix key must be dropped)", len(page.Assets))
	}
	if page.Assets[0].Key != "images/a.png" {
		t.Errorf("key = %q, want prefix stripped", page.Assets[0].Key)
	}
	if page.Assets[0].URL != "https://cdn.example.com/images/a.png" {
		t.Errorf("url = %q", page.Assets[0].URL)
	}
	if page.NextCursor != "token-next" {
		t.Errorf("next cursor = %q", page.NextCursor)
	}
}

func TestList_LimitClamping(t *testing.T) {
	fake := &fakeS3{listOut: &s3.ListObjectsV2Output{}}
	s := newTestStore(fake)

	if _, err := s.List(context.Background(), ListQuery{}); err != nil {
		t.Fatal(err)
	}
	if got := aws.ToInt32(fake.listIn.MaxKeys); got != DefaultListLimit {
		t.Errorf("default limit = %d, want %d", got, DefaultListLimit)
	}

	if _, err := s.List(context.Background(), ListQuery{Limit: 99999}); err != nil {
		t.Fatal(err)
	}
	if got := aws.ToInt32(fake.listIn.MaxKeys); got != MaxListLimit {
		t.Errorf("clamped limit = %d, want %d", got, MaxListLimit)
	}
}

func TestUpload_CleansKeyAndAppliesPrefix(t *testing.T) {
	fake := &fakeS3{}
	s := newTestStore(fake)

	asset, err := s.Upload(context.Background(), "/images//cover.png", "image/png", strings.NewReader("png-bytes"))
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}

	if got := aws.ToString(fake.putIn.Key); got != "blog/images/cover.png" {
		t.Errorf("stored key = %q", got)
	}
	if got := aws.ToString(fake.putIn.ContentType); got != "image/png" {
		t.Errorf("content type = %q", got)
	}
	if string(fake.putBody) != "png-bytes" {
		t.Errorf("body = %q", fake.putBody)
	}
	if asset.Key != "images/cover.png" {
		t.Errorf("asset key = %q", asset.Key)
	}
	if asset.URL != "https://cdn.example.com/images/cover.png" {
		t.Errorf("asset url = %q", asset.URL)
	}
}

func TestUpload_RejectsTraversal(t *testing.T) {
	s := newTestStore(&fakeS3{})
	if _, err := s.Upload(context.Background(), "../secrets.txt", "", strings.NewReader("x")); err == nil {
		t.Fatal("traversal key must be rejected")
	}
}
