package sftp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"mime"
	"os"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"

	"github.com/gobeaver/filesniff"
)

// DefaultPollInterval is the interval between listings of a Watch.
const DefaultPollInterval = 30 * time.Second

// Adapter provides an SFTP implementation of filesniff.Store
type Adapter struct {
	mu           sync.Mutex
	client       *sftp.Client
	sshConn      *ssh.Client
	basePath     string
	config       Config
	pollInterval time.Duration
}

// Config holds SFTP connection configuration
type Config struct {
	Host       string
	Port       int
	Username   string
	Password   string
	PrivateKey []byte // PEM encoded private key
	BasePath   string
}

// AdapterOption is a function that configures SFTP Adapter
type AdapterOption func(*Adapter)

// WithBasePath sets the base path for SFTP operations
func WithBasePath(basePath string) AdapterOption {
	return func(a *Adapter) {
		a.basePath = basePath
	}
}

// WithPollInterval sets how often Watch lists the remote tree.
func WithPollInterval(d time.Duration) AdapterOption {
	return func(a *Adapter) {
		a.pollInterval = d
	}
}

// New creates a new SFTP adapter and connects to the server
func New(cfg Config, options ...AdapterOption) (*Adapter, error) {
	adapter := &Adapter{
		config:       cfg,
		basePath:     cfg.BasePath,
		pollInterval: DefaultPollInterval,
	}

	// Apply options
	for _, option := range options {
		option(adapter)
	}

	adapter.mu.Lock()
	defer adapter.mu.Unlock()
	if err := adapter.connect(); err != nil {
		return nil, err
	}

	return adapter, nil
}

// NewFromClient wraps an established SFTP session. The adapter does not
// reconnect it.
func NewFromClient(client *sftp.Client, options ...AdapterOption) *Adapter {
	adapter := &Adapter{
		client:       client,
		pollInterval: DefaultPollInterval,
	}
	for _, option := range options {
		option(adapter)
	}
	return adapter
}

// connect establishes SSH and SFTP connections.
// Must be called with lock held
func (a *Adapter) connect() error {
	if a.config.Host == "" {
		return errors.New("sftp: connection closed")
	}

	sshConfig := &ssh.ClientConfig{
		User:            a.config.Username,
		HostKeyCallback: ssh.InsecureIgnoreHostKey(), // TODO: verify against known_hosts
		Timeout:         30 * time.Second,
	}

	// Add authentication method
	if len(a.config.PrivateKey) > 0 {
		signer, err := ssh.ParsePrivateKey(a.config.PrivateKey)
		if err != nil {
			return fmt.Errorf("failed to parse private key: %w", err)
		}
		sshConfig.Auth = append(sshConfig.Auth, ssh.PublicKeys(signer))
	}

	if a.config.Password != "" {
		sshConfig.Auth = append(sshConfig.Auth, ssh.Password(a.config.Password))
	}

	if len(sshConfig.Auth) == 0 {
		return fmt.Errorf("no authentication method provided")
	}

	port := a.config.Port
	if port == 0 {
		port = 22
	}

	addr := fmt.Sprintf("%s:%d", a.config.Host, port)
	sshConn, err := ssh.Dial("tcp", addr, sshConfig)
	if err != nil {
		return fmt.Errorf("failed to connect to SSH: %w", err)
	}

	sftpClient, err := sftp.NewClient(sshConn)
	if err != nil {
		sshConn.Close()
		return fmt.Errorf("failed to create SFTP client: %w", err)
	}

	a.sshConn = sshConn
	a.client = sftpClient

	return nil
}

// Close implements filesniff.CanClose
func (a *Adapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	var errs []error

	if a.client != nil {
		if err := a.client.Close(); err != nil {
			errs = append(errs, err)
		}
		a.client = nil
	}

	if a.sshConn != nil {
		if err := a.sshConn.Close(); err != nil {
			errs = append(errs, err)
		}
		a.sshConn = nil
	}

	// Closed adapters stay closed
	a.config.Host = ""

	return errors.Join(errs...)
}

// session returns a live SFTP client, reconnecting a dropped session.
func (a *Adapter) session() (*sftp.Client, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.client != nil {
		// Test connection with a simple operation
		if _, err := a.client.Getwd(); err == nil {
			return a.client, nil
		}
		a.client = nil
		a.sshConn = nil
	}

	if err := a.connect(); err != nil {
		return nil, err
	}
	return a.client, nil
}

// resolve returns the remote path of a store path, refusing paths that
// escape the base path.
func (a *Adapter) resolve(op, p string) (string, error) {
	rel := path.Clean(strings.TrimPrefix(p, "/"))
	if rel == ".." || strings.HasPrefix(rel, "../") {
		return "", &filesniff.PathError{Op: op, Path: p, Err: filesniff.ErrNotAllowed}
	}
	if rel == "." {
		rel = ""
	}
	if a.basePath == "" {
		if rel == "" {
			return ".", nil
		}
		return rel, nil
	}
	return path.Join(a.basePath, rel), nil
}

// prepare checks ctx, resolves p and returns a live client.
func (a *Adapter) prepare(ctx context.Context, op, p string) (*sftp.Client, string, error) {
	if err := ctx.Err(); err != nil {
		return nil, "", err
	}
	full, err := a.resolve(op, p)
	if err != nil {
		return nil, "", err
	}
	client, err := a.session()
	if err != nil {
		return nil, "", &filesniff.PathError{Op: op, Path: p, Err: err}
	}
	return client, full, nil
}

// Read implements filesniff.Store
func (a *Adapter) Read(ctx context.Context, filePath string) (io.ReadCloser, error) {
	client, full, err := a.prepare(ctx, "read", filePath)
	if err != nil {
		return nil, err
	}

	file, err := client.Open(full)
	if err != nil {
		return nil, mapSFTPError("read", filePath, err)
	}
	return file, nil
}

// ReadRange implements filesniff.Store with a positioned read.
func (a *Adapter) ReadRange(ctx context.Context, filePath string, offset, length int64) ([]byte, error) {
	if offset < 0 || length < 0 {
		return nil, &filesniff.PathError{Op: "read", Path: filePath, Err: filesniff.ErrInvalidRange}
	}
	client, full, err := a.prepare(ctx, "read", filePath)
	if err != nil {
		return nil, err
	}

	file, err := client.Open(full)
	if err != nil {
		return nil, mapSFTPError("read", filePath, err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, mapSFTPError("read", filePath, err)
	}
	if info.IsDir() {
		return nil, &filesniff.PathError{Op: "read", Path: filePath, Err: filesniff.ErrIsDir}
	}
	if offset >= info.Size() {
		return []byte{}, nil
	}

	buf := make([]byte, min(length, info.Size()-offset))
	n, err := file.ReadAt(buf, offset)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, mapSFTPError("read", filePath, err)
	}
	return buf[:n], nil
}

// Stat implements filesniff.Store
func (a *Adapter) Stat(ctx context.Context, filePath string) (*filesniff.FileInfo, error) {
	client, full, err := a.prepare(ctx, "stat", filePath)
	if err != nil {
		return nil, err
	}

	info, err := client.Stat(full)
	if err != nil {
		return nil, mapSFTPError("stat", filePath, err)
	}

	fi := fileInfo(strings.TrimPrefix(path.Clean("/"+filePath), "/"), info)
	return &fi, nil
}

func fileInfo(rel string, info os.FileInfo) filesniff.FileInfo {
	fi := filesniff.FileInfo{
		Name:    info.Name(),
		Path:    rel,
		Size:    info.Size(),
		ModTime: info.ModTime(),
		IsDir:   info.IsDir(),
	}
	if !info.IsDir() {
		fi.ContentType = mime.TypeByExtension(path.Ext(info.Name()))
	}
	if st, ok := info.Sys().(*sftp.FileStat); ok {
		fi.Metadata = map[string]string{
			"uid":  fmt.Sprint(st.UID),
			"gid":  fmt.Sprint(st.GID),
			"mode": fs.FileMode(st.Mode).Perm().String(),
		}
	}
	return fi
}

// ListContents implements filesniff.Store
func (a *Adapter) ListContents(ctx context.Context, dir string, recursive bool) ([]filesniff.FileInfo, error) {
	client, full, err := a.prepare(ctx, "listcontents", dir)
	if err != nil {
		return nil, err
	}

	info, err := client.Stat(full)
	if err != nil {
		return nil, mapSFTPError("listcontents", dir, err)
	}
	if !info.IsDir() {
		return nil, &filesniff.PathError{Op: "listcontents", Path: dir, Err: errors.New("not a directory")}
	}

	rel := strings.TrimPrefix(path.Clean("/"+dir), "/")
	var files []filesniff.FileInfo
	if err := a.list(ctx, client, full, rel, recursive, &files); err != nil {
		return nil, mapSFTPError("listcontents", dir, err)
	}
	return files, nil
}

func (a *Adapter) list(ctx context.Context, client *sftp.Client, full, rel string, recursive bool, results *[]filesniff.FileInfo) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	entries, err := client.ReadDir(full)
	if err != nil {
		return err
	}

	for _, entry := range entries {
		entryRel := path.Join(rel, entry.Name())
		*results = append(*results, fileInfo(entryRel, entry))

		if recursive && entry.IsDir() {
			if err := a.list(ctx, client, path.Join(full, entry.Name()), entryRel, true, results); err != nil {
				return err
			}
		}
	}

	return nil
}

// mapSFTPError maps SFTP errors to filesniff errors
func mapSFTPError(op, filePath string, err error) error {
	var status *sftp.StatusError
	switch {
	case errors.Is(err, fs.ErrNotExist):
		err = filesniff.ErrNotExist
	case errors.Is(err, fs.ErrPermission):
		err = filesniff.ErrNotAllowed
	case errors.As(err, &status) && status.FxCode() == sftp.ErrSSHFxNoSuchFile:
		err = filesniff.ErrNotExist
	}

	return &filesniff.PathError{Op: op, Path: filePath, Err: err}
}

// ============================================================================
// Watcher Implementation (Polling-based)
// ============================================================================

// Watch implements filesniff.CanWatch by polling directory listings; SFTP
// has no change notifications.
func (a *Adapter) Watch(ctx context.Context, filter string) (filesniff.ChangeToken, error) {
	return filesniff.WatchByPolling(ctx, a, "", filesniff.Glob(filter), a.pollInterval)
}

// Ensure Adapter implements interfaces
var (
	_ filesniff.Store    = (*Adapter)(nil)
	_ filesniff.CanWatch = (*Adapter)(nil)
	_ filesniff.CanClose = (*Adapter)(nil)
)
