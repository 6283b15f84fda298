package filesniff

import (
	"context"
	"runtime"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// ============================================================================
// ChangeToken
// ============================================================================

// ChangeToken represents a change notification token.
//
// Consumers can either:
// 1. Poll HasChanged() periodically
// 2. Register a callback via RegisterChangeCallback()
//
// Tokens are single-use: once HasChanged returns true it stays true. Use
// OnChange to keep watching.
type ChangeToken interface {
	// HasChanged returns true if a change has occurred.
	HasChanged() bool

	// Changed returns the paths whose change triggered the token, if the
	// backend reports them.
	Changed() []string

	// RegisterChangeCallback registers a callback to be invoked when change occurs.
	// Returns a function to unregister the callback.
	RegisterChangeCallback(callback func()) (unregister func())
}

// CallbackChangeToken is a ChangeToken signalled by drivers with native
// events (local, memory).
type CallbackChangeToken struct {
	mu        sync.RWMutex
	changed   atomic.Bool
	paths     []string
	callbacks []func()
}

// NewCallbackChangeToken creates a new ChangeToken that supports active callbacks.
func NewCallbackChangeToken() *CallbackChangeToken {
	return &CallbackChangeToken{}
}

func (t *CallbackChangeToken) HasChanged() bool {
	return t.changed.Load()
}

func (t *CallbackChangeToken) Changed() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return append([]string(nil), t.paths...)
}

func (t *CallbackChangeToken) RegisterChangeCallback(callback func()) (unregister func()) {
	t.mu.Lock()
	t.callbacks = append(t.callbacks, callback)
	index := len(t.callbacks) - 1
	t.mu.Unlock()

	if t.changed.Load() {
		callback()
	}

	return func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		if index < len(t.callbacks) {
			// Set to nil instead of removing to avoid index shifting
			t.callbacks[index] = nil
		}
	}
}

// SignalChange marks the token as changed and invokes all callbacks.
// Only the first call has an effect.
func (t *CallbackChangeToken) SignalChange(paths ...string) {
	t.mu.Lock()
	if t.changed.Load() {
		t.mu.Unlock()
		return
	}
	t.paths = append(t.paths, paths...)
	t.changed.Store(true)
	callbacks := make([]func(), len(t.callbacks))
	copy(callbacks, t.callbacks)
	t.mu.Unlock()

	for _, cb := range callbacks {
		if cb != nil {
			cb()
		}
	}
}

// ============================================================================
// Polling ChangeToken
// ============================================================================

// PollingConfig configures a polling change token.
type PollingConfig struct {
	// Interval between polls (default: 5 seconds)
	Interval time.Duration

	// Check returns the changed paths; a non-empty result signals the token.
	Check func() []string
}

// pollingChangeToken is a ChangeToken for backends without native events.
//
// The polling goroutine stops when the token fires, when ctx is cancelled,
// or when Stop is called.
type pollingChangeToken struct {
	*CallbackChangeToken
	cancel context.CancelFunc
}

// NewPollingChangeToken creates a ChangeToken that polls for changes.
func NewPollingChangeToken(ctx context.Context, cfg PollingConfig) *pollingChangeToken {
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Second
	}
	ctx, cancel := context.WithCancel(ctx)
	t := &pollingChangeToken{
		CallbackChangeToken: NewCallbackChangeToken(),
		cancel:              cancel,
	}
	runtime.SetFinalizer(t, func(token *pollingChangeToken) {
		token.Stop()
	})
	go t.poll(ctx, cfg)
	return t
}

func (t *pollingChangeToken) poll(ctx context.Context, cfg PollingConfig) {
	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()
	defer t.cancel()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if cfg.Check == nil {
				continue
			}
			if paths := cfg.Check(); len(paths) > 0 {
				t.SignalChange(paths...)
				return
			}
		}
	}
}

// Stop stops the polling goroutine and releases its context.
// It is safe to call Stop multiple times.
func (t *pollingChangeToken) Stop() {
	t.cancel()
}

// WatchByPolling returns a token that fires when the set of objects selected
// by selector under dir changes in size or modification time. It serves
// stores that do not implement CanWatch.
func WatchByPolling(ctx context.Context, store Store, dir string, selector FileSelector, interval time.Duration) (ChangeToken, error) {
	before, err := snapshot(ctx, store, dir, selector)
	if err != nil {
		return nil, err
	}
	return NewPollingChangeToken(ctx, PollingConfig{
		Interval: interval,
		Check: func() []string {
			after, err := snapshot(ctx, store, dir, selector)
			if err != nil {
				return nil
			}
			return diffSnapshots(before, after)
		},
	}), nil
}

type fileState struct {
	size    int64
	modTime time.Time
}

func snapshot(ctx context.Context, store Store, dir string, selector FileSelector) (map[string]fileState, error) {
	files, err := ListWithSelector(ctx, store, dir, selector, true)
	if err != nil {
		return nil, err
	}
	m := make(map[string]fileState, len(files))
	for _, f := range files {
		m[f.Path] = fileState{size: f.Size, modTime: f.ModTime}
	}
	return m, nil
}

func diffSnapshots(before, after map[string]fileState) []string {
	var changed []string
	for p, a := range after {
		if b, ok := before[p]; !ok || b.size != a.size || !b.modTime.Equal(a.modTime) {
			changed = append(changed, p)
		}
	}
	for p := range before {
		if _, ok := after[p]; !ok {
			changed = append(changed, p)
		}
	}
	sort.Strings(changed)
	return changed
}

// ============================================================================
// Static ChangeToken
// ============================================================================

// NeverChangeToken is a ChangeToken that never changes.
// Useful for static stores such as a zip archive.
type NeverChangeToken struct{}

func (NeverChangeToken) HasChanged() bool  { return false }
func (NeverChangeToken) Changed() []string { return nil }

func (NeverChangeToken) RegisterChangeCallback(callback func()) func() {
	return func() {}
}

// ============================================================================
// OnChange
// ============================================================================

// OnChange continuously watches for changes: it creates a new token each time
// the previous one fires and passes the changed paths to changeAction.
// Watching stops when ctx is cancelled or tokenProducer fails.
//
// Example:
//
//	filesniff.OnChange(ctx,
//	    func() (filesniff.ChangeToken, error) {
//	        return store.(filesniff.CanWatch).Watch(ctx, "uploads/**")
//	    },
//	    func(paths []string) {
//	        results, err := sniffer.ClassifyAll(ctx, paths)
//	        ...
//	    },
//	)
func OnChange(ctx context.Context, tokenProducer func() (ChangeToken, error), changeAction func(paths []string)) error {
	for {
		token, err := tokenProducer()
		if err != nil {
			return err
		}

		done := make(chan struct{})
		var once sync.Once
		unregister := token.RegisterChangeCallback(func() {
			once.Do(func() { close(done) })
		})

		select {
		case <-ctx.Done():
			unregister()
			if s, ok := token.(interface{ Stop() }); ok {
				s.Stop()
			}
			return ctx.Err()
		case <-done:
			unregister()
			changeAction(token.Changed())
		}
	}
}
