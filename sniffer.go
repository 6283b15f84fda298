package filesniff

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gobeaver/beaver-kit/config"
	"github.com/gobeaver/filesniff/magic"
	"github.com/gobeaver/filesniff/policy"
)

const (
	defaultNestedLimit = 16 << 20
	defaultConcurrency = 8
)

// Sniffer classifies the objects of a Store. It is safe for concurrent use.
type Sniffer struct {
	store       Store
	engine      *magic.Engine
	cache       Cache
	cacheTTL    time.Duration
	policy      *policy.Policy
	nestedLimit int64
	concurrency int

	hook        ClassifyHook
	onCacheHit  func(path string)
	onCacheMiss func(path string)
}

// NewSniffer creates a Sniffer over store. store may be nil when only
// ClassifySource and ClassifyBytes are used.
func NewSniffer(store Store, opts ...Option) *Sniffer {
	s := &Sniffer{
		store:       store,
		engine:      magic.Default(),
		nestedLimit: defaultNestedLimit,
		concurrency: defaultConcurrency,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Store returns the underlying store.
func (s *Sniffer) Store() Store {
	return s.store
}

// Engine returns the classification engine.
func (s *Sniffer) Engine() *magic.Engine {
	return s.engine
}

// Close releases the store.
func (s *Sniffer) Close() error {
	if s.store == nil {
		return nil
	}
	return Close(s.store)
}

// Classify classifies the store object at path. Only the header and trailer
// windows are read. Results are cached by path, size and modification time
// when a cache is configured.
func (s *Sniffer) Classify(ctx context.Context, path string) (Result, error) {
	r, err := s.classify(ctx, path)
	if s.hook != nil {
		s.hook(r, err)
	}
	return r, err
}

func (s *Sniffer) classify(ctx context.Context, path string) (Result, error) {
	if s.store == nil {
		return Result{Path: path}, newSourceError("classify", path, ErrNotSupported)
	}

	info, err := s.store.Stat(ctx, path)
	if err != nil {
		return Result{Path: path}, newSourceError("stat", path, err)
	}

	var key string
	if s.cache != nil {
		key = CacheKey(info)
		if r, ok := s.cache.Get(key); ok {
			if s.onCacheHit != nil {
				s.onCacheHit(path)
			}
			return r, nil
		}
		if s.onCacheMiss != nil {
			s.onCacheMiss(path)
		}
	}

	smp, err := sampleStore(ctx, s.store, path, info)
	if err != nil {
		return Result{Path: path}, err
	}
	r := Result{
		Result: s.engine.Classify(smp.Header, smp.Trailer),
		Path:   path,
		Size:   smp.Size,
	}

	if s.cache != nil {
		s.cache.Set(key, r, s.cacheTTL)
	}
	return r, nil
}

// ClassifySource classifies any Source with the sniffer's engine.
func (s *Sniffer) ClassifySource(ctx context.Context, src Source) (Result, error) {
	r, err := classifySource(ctx, s.engine, src)
	if err != nil {
		r.Path = src.Name()
	}
	if s.hook != nil {
		s.hook(r, err)
	}
	return r, err
}

// ClassifyBytes classifies an in-memory blob. It never fails.
func (s *Sniffer) ClassifyBytes(b []byte) Result {
	return Result{Result: s.engine.ClassifyBytes(b), Size: int64(len(b))}
}

// Check classifies the object at path and applies the sniffer's policy.
// A rejected object returns its result together with an error matching both
// ErrNotAllowed and a *policy.ValidationError.
func (s *Sniffer) Check(ctx context.Context, path string) (Result, error) {
	r, err := s.Classify(ctx, path)
	if err != nil {
		return r, err
	}
	if err := s.policy.Check(r.Classification, r.Size); err != nil {
		return r, &PathError{Op: "check", Path: path, Err: fmt.Errorf("%w: %w", ErrNotAllowed, err)}
	}
	return r, nil
}

// ============================================================================
// Global instance
// ============================================================================

var (
	defaultSniffer *Sniffer
	defaultOnce    sync.Once
	defaultErr     error
)

// Builder provides a way to create Sniffer instances with custom prefixes
type Builder struct {
	prefix string
}

// WithPrefix creates a new Builder with the specified prefix
func WithPrefix(prefix string) *Builder {
	return &Builder{prefix: prefix}
}

// Init initializes the global Sniffer instance using the builder's prefix
func (b *Builder) Init() error {
	cfg := &Config{}
	if err := config.Load(cfg, config.LoadOptions{Prefix: b.prefix}); err != nil {
		return err
	}
	return Init(cfg)
}

// New creates a new Sniffer instance using the builder's prefix
func (b *Builder) New() (*Sniffer, error) {
	cfg := &Config{}
	if err := config.Load(cfg, config.LoadOptions{Prefix: b.prefix}); err != nil {
		return nil, err
	}
	return New(cfg)
}

// Init initializes the global sniffer instance
func Init(configs ...*Config) error {
	defaultOnce.Do(func() {
		var cfg *Config
		if len(configs) > 0 {
			cfg = configs[0]
		} else {
			cfg, defaultErr = GetConfig()
			if defaultErr != nil {
				return
			}
		}

		defaultSniffer, defaultErr = New(cfg)
	})

	return defaultErr
}

// New creates a new sniffer with given config
func New(cfg *Config, opts ...Option) (*Sniffer, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	engine, err := createEngine(cfg)
	if err != nil {
		return nil, err
	}

	store, err := CreateDriver(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create driver: %w", err)
	}

	base := []Option{
		WithEngine(engine),
		WithNestedLimit(cfg.NestedLimit),
		WithConcurrency(cfg.Concurrency),
	}
	if p := createPolicy(cfg); !p.IsZero() {
		base = append(base, WithPolicy(p))
	}
	if cfg.CacheEnabled {
		ttl, _ := cfg.cacheTTL() // validated above
		base = append(base, WithCache(NewMemoryCache(WithMaxEntries(cfg.CacheEntries))), WithCacheTTL(ttl))
	}

	return NewSniffer(store, append(base, opts...)...), nil
}

// validateConfig checks configuration validity
func validateConfig(cfg *Config) error {
	if cfg.Driver == "" {
		return errors.New("driver is required")
	}

	switch cfg.Driver {
	case "local":
		if cfg.LocalBasePath == "" {
			return errors.New("local base path is required for local driver")
		}
	case "memory":
	case "zip":
		if cfg.ZipArchivePath == "" {
			return errors.New("archive path is required for zip driver")
		}
	case "s3":
		if cfg.S3Bucket == "" {
			return errors.New("S3 bucket is required for S3 driver")
		}
		// Access keys can be provided via IAM roles, so not always required
	case "gcs":
		if cfg.GCSBucket == "" {
			return errors.New("GCS bucket is required for GCS driver")
		}
	case "azure":
		if cfg.AzureAccountName == "" || cfg.AzureContainerName == "" {
			return errors.New("account name and container are required for Azure driver")
		}
	case "sftp":
		if cfg.SFTPHost == "" || cfg.SFTPUsername == "" {
			return errors.New("host and username are required for SFTP driver")
		}
	default:
		return fmt.Errorf("unknown driver: %s", cfg.Driver)
	}

	if cfg.Concurrency < 0 {
		return fmt.Errorf("concurrency must not be negative: %d", cfg.Concurrency)
	}
	if cfg.NestedLimit < 0 {
		return fmt.Errorf("nested limit must not be negative: %d", cfg.NestedLimit)
	}
	if _, err := cfg.cacheTTL(); err != nil {
		return err
	}
	if cfg.PollInterval != "" {
		if d, err := time.ParseDuration(cfg.PollInterval); err != nil || d <= 0 {
			return fmt.Errorf("invalid poll interval %q", cfg.PollInterval)
		}
	}
	return nil
}

// createEngine builds the engine from the classification settings
func createEngine(cfg *Config) (*magic.Engine, error) {
	opts := []magic.Option{magic.WithZipMIME(cfg.ZipMIME)}
	if cfg.RulesFile != "" {
		rules, err := magic.LoadRulesFile(cfg.RulesFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load rules: %w", err)
		}
		opts = append(opts, magic.WithRules(rules))
	}
	return magic.New(opts...), nil
}

// createPolicy creates a policy from config
func createPolicy(cfg *Config) *policy.Policy {
	return &policy.Policy{
		MaxFileSize:   cfg.MaxFileSize,
		AcceptedTypes: splitList(cfg.AllowedMimeTypes),
		BlockedTypes:  splitList(cfg.BlockedMimeTypes),
		AllowedExts:   splitList(cfg.AllowedExtensions),
		BlockedExts:   splitList(cfg.BlockedExtensions),
	}
}

// Default returns the global instance, initializing if needed with error handling
func Default() (*Sniffer, error) {
	if defaultSniffer == nil {
		if err := Init(); err != nil {
			return nil, err
		}
	}
	return defaultSniffer, nil
}

// NewFromEnv creates instance from environment variables (convenience constructor)
func NewFromEnv() (*Sniffer, error) {
	cfg, err := GetConfig()
	if err != nil {
		return nil, err
	}
	return New(cfg)
}

// Reset clears the global instance (for testing)
func Reset() {
	defaultSniffer = nil
	defaultOnce = sync.Once{}
	defaultErr = nil
}
