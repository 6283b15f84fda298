package filesniff

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/gobeaver/filesniff/magic"
	"github.com/gobeaver/filesniff/policy"
)

func TestSnifferClassify(t *testing.T) {
	store := newFakeStore()
	store.put("docs/report.pdf", []byte("%PDF-1.7\n"))
	store.put("img/logo", []byte(pngHeader))
	store.put("notes.txt", []byte("hello"))
	store.put("empty", nil)

	s := NewSniffer(store)
	ctx := context.Background()

	tests := []struct {
		path string
		ext  string
		rule string
	}{
		{"docs/report.pdf", "pdf", "pdf"},
		{"img/logo", "png", "png"},
		{"notes.txt", "txt", magic.DefaultRule},
		{"empty", "txt", magic.DefaultRule},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			r, err := s.Classify(ctx, tt.path)
			if err != nil {
				t.Fatalf("Classify() error = %v", err)
			}
			if r.Ext != tt.ext || r.Rule != tt.rule || r.Path != tt.path {
				t.Errorf("Classify() = %+v, want ext %s rule %s", r, tt.ext, tt.rule)
			}
		})
	}

	if _, err := s.Classify(ctx, "missing"); !IsNotExist(err) || !IsSourceUnavailable(err) {
		t.Errorf("Classify(missing) error = %v", err)
	}
}

func TestSnifferWithoutStore(t *testing.T) {
	s := NewSniffer(nil)
	if _, err := s.Classify(context.Background(), "x"); !errors.Is(err, ErrNotSupported) {
		t.Errorf("Classify() error = %v, want ErrNotSupported", err)
	}
	if r := s.ClassifyBytes([]byte("GIF89a")); r.Ext != "gif" || r.Size != 6 {
		t.Errorf("ClassifyBytes() = %+v", r)
	}
	if err := s.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}

func TestSnifferCache(t *testing.T) {
	store := newFakeStore()
	store.put("a.png", []byte(pngHeader))

	var mu sync.Mutex
	var hits, misses []string
	cache := NewMemoryCache()
	s := NewSniffer(store,
		WithCache(cache),
		WithCacheTTL(time.Minute),
		WithCacheHitCallback(func(p string) { mu.Lock(); hits = append(hits, p); mu.Unlock() }),
		WithCacheMissCallback(func(p string) { mu.Lock(); misses = append(misses, p); mu.Unlock() }),
	)
	ctx := context.Background()

	first, err := s.Classify(ctx, "a.png")
	if err != nil {
		t.Fatal(err)
	}
	reads := store.ranges.Load()

	second, err := s.Classify(ctx, "a.png")
	if err != nil {
		t.Fatal(err)
	}
	if first != second {
		t.Errorf("cached result %+v differs from %+v", second, first)
	}
	if store.ranges.Load() != reads {
		t.Error("cache hit read from the store")
	}
	if len(hits) != 1 || len(misses) != 1 {
		t.Errorf("hits = %v, misses = %v", hits, misses)
	}

	// Rewriting the object changes size and mtime, so the key misses.
	time.Sleep(time.Millisecond)
	store.put("a.png", []byte("%PDF-1.4"))
	third, err := s.Classify(ctx, "a.png")
	if err != nil {
		t.Fatal(err)
	}
	if third.Ext != "pdf" {
		t.Errorf("Ext after rewrite = %q, want pdf", third.Ext)
	}
	if stats := cache.Stats(); stats.Hits != 1 || stats.Misses != 2 || stats.Size != 2 {
		t.Errorf("Stats() = %+v", stats)
	}
}

func TestSnifferHook(t *testing.T) {
	store := newFakeStore()
	store.put("a.gif", []byte("GIF89a\x00"))

	var got []Result
	var errs []error
	s := NewSniffer(store, WithClassifyHook(func(r Result, err error) {
		got = append(got, r)
		errs = append(errs, err)
	}))
	ctx := context.Background()

	_, _ = s.Classify(ctx, "a.gif")
	_, _ = s.Classify(ctx, "missing")
	_, _ = s.ClassifySource(ctx, FromBytes("inline", []byte("{}")))

	if len(got) != 3 {
		t.Fatalf("hook calls = %d, want 3", len(got))
	}
	if got[0].Ext != "gif" || errs[0] != nil {
		t.Errorf("first call = %+v, %v", got[0], errs[0])
	}
	if got[1].Path != "missing" || errs[1] == nil {
		t.Errorf("second call = %+v, %v", got[1], errs[1])
	}
	if got[2].Ext != "json" || got[2].Path != "inline" {
		t.Errorf("third call = %+v", got[2])
	}
}

func TestSnifferCheck(t *testing.T) {
	store := newFakeStore()
	store.put("upload.jpg", []byte("MZ\x90\x00\x03")) // an executable with an image name
	store.put("photo.jpg", []byte("\xFF\xD8\xFF\xE0\x00\x10JFIF"))

	s := NewSniffer(store, WithPolicy(policy.ImageOnly()))
	ctx := context.Background()

	if _, err := s.Check(ctx, "photo.jpg"); err != nil {
		t.Errorf("Check(photo) error = %v", err)
	}

	r, err := s.Check(ctx, "upload.jpg")
	if !IsNotAllowed(err) {
		t.Fatalf("Check(upload) error = %v, want ErrNotAllowed", err)
	}
	if policy.ConstraintOf(err) != policy.ConstraintMIME {
		t.Errorf("Check(upload) error = %v, want mime validation error", err)
	}
	if r.Ext != "exe" {
		t.Errorf("Check(upload) result = %+v", r)
	}

	// Without a policy everything passes.
	if _, err := NewSniffer(store).Check(ctx, "upload.jpg"); err != nil {
		t.Errorf("Check() without policy error = %v", err)
	}
}

func TestNewFromConfig(t *testing.T) {
	rules := filepath.Join(t.TempDir(), "rules.yaml")
	doc := "rules:\n  - name: acme\n    ext: acme\n    mime: application/x-acme\n    text: \"ACME\\x00\"\n"
	if err := os.WriteFile(rules, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := defaultConfig()
	cfg.Driver = "memory"
	cfg.RulesFile = rules
	cfg.ZipMIME = "application/x-zip-compressed"
	cfg.AllowedMimeTypes = "image/*"

	s, err := New(&cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if s.cache == nil || s.cacheTTL != 5*time.Minute {
		t.Errorf("cache = %v, ttl = %v", s.cache, s.cacheTTL)
	}
	if s.policy == nil || len(s.policy.AcceptedTypes) != 1 {
		t.Errorf("policy = %+v", s.policy)
	}
	if s.concurrency != 8 || s.nestedLimit != 16777216 {
		t.Errorf("concurrency = %d, nested limit = %d", s.concurrency, s.nestedLimit)
	}
	if r := s.ClassifyBytes([]byte("ACME\x00payload")); r.Ext != "acme" {
		t.Errorf("custom rule not applied: %+v", r)
	}
	if r := s.ClassifyBytes([]byte("PK\x03\x04\x14\x00\x00\x00")); r.MIME != "application/x-zip-compressed" {
		t.Errorf("zip MIME = %q", r.MIME)
	}

	cfg.CacheEnabled = false
	cfg.AllowedMimeTypes = ""
	cfg.RulesFile = ""
	s, err = New(&cfg)
	if err != nil {
		t.Fatal(err)
	}
	if s.cache != nil || s.policy != nil {
		t.Errorf("cache = %v, policy = %v, want neither", s.cache, s.policy)
	}

	cfg.RulesFile = filepath.Join(t.TempDir(), "missing.toml")
	if _, err := New(&cfg); err == nil {
		t.Error("New() with missing rules file should fail")
	}
	cfg.RulesFile = ""
	cfg.Driver = "ftp"
	if _, err := New(&cfg); err == nil {
		t.Error("New() with unknown driver should fail")
	}
}

func TestGlobalInstance(t *testing.T) {
	Reset()
	t.Cleanup(Reset)
	t.Setenv("BEAVER_FILESNIFF_DRIVER", "memory")

	s, err := Default()
	if err != nil {
		t.Fatalf("Default() error = %v", err)
	}
	again, _ := Default()
	if s != again {
		t.Error("Default() should return the same instance")
	}
}
