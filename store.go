package filesniff

import (
	"context"
	"io"
	"time"
)

// FileInfo represents file/directory metadata
type FileInfo struct {
	Name    string
	Path    string
	Size    int64
	ModTime time.Time
	IsDir   bool

	// ContentType is the type declared by the backend, if any. It is never
	// used for classification.
	ContentType string
	Metadata    map[string]string
}

// ============================================================================
// Store
// ============================================================================

// Store provides read-only access to the objects that get classified.
// Implementations live in the driver modules and must be safe for concurrent
// use.
type Store interface {
	// Stat returns file/directory metadata.
	Stat(ctx context.Context, path string) (*FileInfo, error)

	// Read returns a stream for reading the whole object.
	Read(ctx context.Context, path string) (io.ReadCloser, error)

	// ReadRange returns up to length bytes starting at offset. Reading past
	// the end of the object returns the available bytes without error.
	// A negative offset or length returns ErrInvalidRange.
	ReadRange(ctx context.Context, path string, offset, length int64) ([]byte, error)

	// ListContents lists directory contents.
	// If recursive is true, includes all descendants.
	ListContents(ctx context.Context, path string, recursive bool) ([]FileInfo, error)
}

// ============================================================================
// Optional Capability Interfaces
// ============================================================================
// Use type assertion to check if a store supports a capability:
//
//	if w, ok := store.(CanWatch); ok {
//	    token, err := w.Watch(ctx, "**/*.pdf")
//	}

// CanWatch indicates the store supports change notifications.
type CanWatch interface {
	// Watch creates a change token for the specified filter pattern.
	// Supports glob patterns: "**/*.txt", "uploads/*", "*.json", etc.
	// The token signals when any matching object is created, modified, or
	// deleted.
	Watch(ctx context.Context, pattern string) (ChangeToken, error)
}

// CanClose indicates the store holds resources (connections, open archives)
// that must be released.
type CanClose interface {
	Close() error
}

// Close releases the resources held by s, if any.
func Close(s Store) error {
	if c, ok := s.(CanClose); ok {
		return c.Close()
	}
	return nil
}
