package filesniff

import (
	"time"

	"github.com/gobeaver/filesniff/magic"
	"github.com/gobeaver/filesniff/policy"
)

// Option configures a Sniffer.
type Option func(*Sniffer)

// ClassifyHook observes every classification made by a Sniffer, including
// cache hits and failures.
type ClassifyHook func(r Result, err error)

// WithEngine sets the classification engine. The default is magic.Default().
func WithEngine(engine *magic.Engine) Option {
	return func(s *Sniffer) {
		if engine != nil {
			s.engine = engine
		}
	}
}

// WithCache enables result caching for store objects.
//
// Example:
//
//	sniffer := filesniff.NewSniffer(store,
//	    filesniff.WithCache(filesniff.NewMemoryCache()),
//	    filesniff.WithCacheTTL(10*time.Minute),
//	)
func WithCache(cache Cache) Option {
	return func(s *Sniffer) {
		s.cache = cache
	}
}

// WithCacheTTL sets the TTL for cached results. 0 means no expiry.
func WithCacheTTL(ttl time.Duration) Option {
	return func(s *Sniffer) {
		s.cacheTTL = ttl
	}
}

// WithCacheHitCallback sets a callback for cache hits.
func WithCacheHitCallback(fn func(path string)) Option {
	return func(s *Sniffer) {
		s.onCacheHit = fn
	}
}

// WithCacheMissCallback sets a callback for cache misses.
func WithCacheMissCallback(fn func(path string)) Option {
	return func(s *Sniffer) {
		s.onCacheMiss = fn
	}
}

// WithClassifyHook sets a hook called after every classification.
func WithClassifyHook(hook ClassifyHook) Option {
	return func(s *Sniffer) {
		s.hook = hook
	}
}

// WithPolicy sets the policy used by Check.
func WithPolicy(p *policy.Policy) Option {
	return func(s *Sniffer) {
		s.policy = p
	}
}

// WithNestedLimit bounds the number of decompressed bytes ClassifyNested
// reads. Values <= 0 keep the default.
func WithNestedLimit(n int64) Option {
	return func(s *Sniffer) {
		if n > 0 {
			s.nestedLimit = n
		}
	}
}

// WithConcurrency bounds the number of objects classified at once by
// ClassifyAll and ClassifyTree. Values <= 0 keep the default.
func WithConcurrency(n int) Option {
	return func(s *Sniffer) {
		if n > 0 {
			s.concurrency = n
		}
	}
}
