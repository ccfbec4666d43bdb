package s3store

import (
	"bytes"
	"context"
	"io"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/philjs-dev/philjs/pkg/isr"
)

var ctx = context.Background()

// fakeClient implements Client over an in-memory map.
type fakeClient struct {
	objects map[string][]byte
}

func newFakeClient() *fakeClient {
	return &fakeClient{objects: make(map[string][]byte)}
}

func (f *fakeClient) GetObject(_ context.Context, params *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	data, ok := f.objects[aws.ToString(params.Key)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (f *fakeClient) PutObject(_ context.Context, params *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(params.Body)
	if err != nil {
		return nil, err
	}
	f.objects[aws.ToString(params.Key)] = data
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeClient) DeleteObject(_ context.Context, params *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	delete(f.objects, aws.ToString(params.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func (f *fakeClient) ListObjectsV2(_ context.Context, params *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	out := &s3.ListObjectsV2Output{}
	prefix := aws.ToString(params.Prefix)
	for k := range f.objects {
		if len(prefix) > 0 && len(k) >= len(prefix) && k[:len(prefix)] != prefix {
			continue
		}
		key := k
		out.Contents = append(out.Contents, types.Object{Key: aws.String(key)})
	}
	return out, nil
}

func testEntry(path string) *isr.Entry {
	now := time.Now().UTC().Truncate(time.Second)
	return &isr.Entry{
		HTML: "<html>" + path + "</html>",
		Meta: isr.Meta{
			Path:               path,
			CreatedAt:          now,
			RevalidatedAt:      now,
			RevalidateInterval: time.Minute,
			Status:             isr.StatusFresh,
		},
	}
}

func TestRoundTrip(t *testing.T) {
	s := New(newFakeClient(), "bucket", "isr/")

	want := testEntry("/blog/post-1?page=2")
	if err := s.Set(ctx, "/blog/post-1?page=2", want); err != nil {
		t.Fatalf("Set: %v", err)
	}

	got, err := s.Get(ctx, "/blog/post-1?page=2")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got == nil {
		t.Fatal("Get returned nil for stored entry")
	}
	if got.HTML != want.HTML {
		t.Errorf("HTML = %q, want %q", got.HTML, want.HTML)
	}
	if got.Meta.Path != want.Meta.Path {
		t.Errorf("Path = %q, want %q", got.Meta.Path, want.Meta.Path)
	}
}

func TestGetMissing(t *testing.T) {
	s := New(newFakeClient(), "bucket", "isr/")

	got, err := s.Get(ctx, "/nope")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != nil {
		t.Errorf("Get missing = %+v, want nil", got)
	}

	meta, err := s.GetMeta(ctx, "/nope")
	if err != nil {
		t.Fatalf("GetMeta: %v", err)
	}
	if meta != nil {
		t.Errorf("GetMeta missing = %+v, want nil", meta)
	}
}

func TestDelete(t *testing.T) {
	s := New(newFakeClient(), "bucket", "")

	if err := s.Set(ctx, "/a", testEntry("/a")); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := s.Delete(ctx, "/a"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	got, err := s.Get(ctx, "/a")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != nil {
		t.Error("entry still present after Delete")
	}
	if err := s.Delete(ctx, "/a"); err != nil {
		t.Errorf("Delete missing: %v", err)
	}
}

func TestKeys(t *testing.T) {
	client := newFakeClient()
	s := New(client, "bucket", "isr/")

	paths := []string{"/", "/blog", "/blog/post-1?page=2"}
	for _, p := range paths {
		if err := s.Set(ctx, p, testEntry(p)); err != nil {
			t.Fatalf("Set %q: %v", p, err)
		}
	}
	// Objects outside the encoding scheme are ignored.
	client.objects["isr/not-base64!.json"] = []byte("{}")

	keys, err := s.Keys(ctx)
	if err != nil {
		t.Fatalf("Keys: %v", err)
	}
	if len(keys) != len(paths) {
		t.Fatalf("Keys = %v, want %d entries", keys, len(paths))
	}
	seen := make(map[string]bool, len(keys))
	for _, k := range keys {
		seen[k] = true
	}
	for _, p := range paths {
		if !seen[p] {
			t.Errorf("Keys missing %q", p)
		}
	}
}

func TestGetMeta(t *testing.T) {
	s := New(newFakeClient(), "bucket", "isr/")

	if err := s.Set(ctx, "/about", testEntry("/about")); err != nil {
		t.Fatalf("Set: %v", err)
	}
	meta, err := s.GetMeta(ctx, "/about")
	if err != nil {
		t.Fatalf("GetMeta: %v", err)
	}
	if meta == nil {
		t.Fatal("GetMeta returned nil")
	}
	if meta.Path != "/about" {
		t.Errorf("Path = %q, want /about", meta.Path)
	}
}
