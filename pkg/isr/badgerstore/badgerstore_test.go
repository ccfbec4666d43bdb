package badgerstore

import (
	"context"
	"testing"
	"time"

	"github.com/philjs-dev/philjs/pkg/isr"
)

var ctx = context.Background()

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(InMemoryConfig())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testEntry(path string) *isr.Entry {
	now := time.Now().UTC().Truncate(time.Second)
	return &isr.Entry{
		HTML: "<html><body>" + path + "</body></html>",
		Meta: isr.Meta{
			Path:               path,
			CreatedAt:          now,
			RevalidatedAt:      now,
			RevalidateInterval: time.Minute,
			Tags:               []string{"blog"},
			Status:             isr.StatusFresh,
			ContentHash:        isr.ContentHash("x"),
		},
		Headers: map[string]string{"Content-Type": "text/html"},
	}
}

func TestRoundTrip(t *testing.T) {
	s := openTestStore(t)

	want := testEntry("/blog/post-1")
	if err := s.Set(ctx, "/blog/post-1", want); err != nil {
		t.Fatalf("Set: %v", err)
	}

	got, err := s.Get(ctx, "/blog/post-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got == nil {
		t.Fatal("Get returned nil for stored entry")
	}
	if got.HTML != want.HTML {
		t.Errorf("HTML = %q, want %q", got.HTML, want.HTML)
	}
	if !got.Meta.RevalidatedAt.Equal(want.Meta.RevalidatedAt) {
		t.Errorf("RevalidatedAt = %v, want %v", got.Meta.RevalidatedAt, want.Meta.RevalidatedAt)
	}
	if got.Headers["Content-Type"] != "text/html" {
		t.Errorf("Headers = %v", got.Headers)
	}
}

func TestGetMissing(t *testing.T) {
	s := openTestStore(t)

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

func TestGetMeta(t *testing.T) {
	s := openTestStore(t)

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
	if meta.Status != isr.StatusFresh {
		t.Errorf("Status = %q, want fresh", meta.Status)
	}
}

func TestDelete(t *testing.T) {
	s := openTestStore(t)

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
	if meta, _ := s.GetMeta(ctx, "/a"); meta != nil {
		t.Error("meta still present after Delete")
	}

	// Deleting a missing key is tolerated.
	if err := s.Delete(ctx, "/a"); err != nil {
		t.Errorf("Delete missing: %v", err)
	}
}

func TestKeys(t *testing.T) {
	s := openTestStore(t)

	paths := []string{"/", "/blog", "/blog/post-1?page=2"}
	for _, p := range paths {
		if err := s.Set(ctx, p, testEntry(p)); err != nil {
			t.Fatalf("Set %q: %v", p, err)
		}
	}

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

func TestOpenPersistent(t *testing.T) {
	dir := t.TempDir()
	s, err := OpenPath(dir)
	if err != nil {
		t.Fatalf("OpenPath: %v", err)
	}
	if err := s.Set(ctx, "/persist", testEntry("/persist")); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	s2, err := OpenPath(dir)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s2.Close()
	got, err := s2.Get(ctx, "/persist")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got == nil {
		t.Fatal("entry did not survive reopen")
	}
}

func TestOpenRequiresPath(t *testing.T) {
	_, err := Open(Config{})
	if err == nil {
		t.Fatal("expected error for persistent store without path")
	}
}
