package sftp

import (
	"context"
	"errors"
	"net"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/pkg/sftp"

	"github.com/gobeaver/filesniff"
)

// newTestAdapter serves a temp directory through an in-process SFTP server.
func newTestAdapter(t *testing.T, files map[string]string, opts ...AdapterOption) (*Adapter, string) {
	t.Helper()
	root := t.TempDir()
	for name, content := range files {
		full := filepath.Join(root, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	serverConn, clientConn := net.Pipe()
	server, err := sftp.NewServer(serverConn)
	if err != nil {
		t.Fatal(err)
	}
	go server.Serve()

	client, err := sftp.NewClientPipe(clientConn, clientConn)
	if err != nil {
		t.Fatal(err)
	}

	a := NewFromClient(client, append([]AdapterOption{WithBasePath(filepath.ToSlash(root))}, opts...)...)
	t.Cleanup(func() {
		a.Close()
		server.Close()
	})
	return a, root
}

func TestReadRange(t *testing.T) {
	a, _ := newTestAdapter(t, map[string]string{"data.bin": "0123456789"})
	ctx := context.Background()

	tests := []struct {
		name   string
		offset int64
		length int64
		want   string
	}{
		{"head", 0, 4, "0123"},
		{"middle", 3, 4, "3456"},
		{"past end", 8, 10, "89"},
		{"beyond", 20, 4, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := a.ReadRange(ctx, "data.bin", tt.offset, tt.length)
			if err != nil {
				t.Fatalf("ReadRange() error = %v", err)
			}
			if string(got) != tt.want {
				t.Errorf("ReadRange() = %q, want %q", got, tt.want)
			}
		})
	}

	if _, err := a.ReadRange(ctx, "data.bin", -1, 4); !errors.Is(err, filesniff.ErrInvalidRange) {
		t.Errorf("negative offset error = %v", err)
	}
	if _, err := a.ReadRange(ctx, "missing.bin", 0, 4); !filesniff.IsNotExist(err) {
		t.Errorf("missing file error = %v", err)
	}
}

func TestPathConfinement(t *testing.T) {
	a, _ := newTestAdapter(t, map[string]string{"a.txt": "a"})
	ctx := context.Background()

	for _, p := range []string{"../a.txt", "x/../../etc/passwd"} {
		if _, err := a.Stat(ctx, p); !filesniff.IsNotAllowed(err) {
			t.Errorf("Stat(%q) error = %v, want not allowed", p, err)
		}
	}
	if _, err := a.Stat(ctx, "/a.txt"); err != nil {
		t.Errorf("Stat(/a.txt) error = %v", err)
	}
}

func TestStatAndList(t *testing.T) {
	a, _ := newTestAdapter(t, map[string]string{
		"docs/report.pdf":    "%PDF-1.4",
		"docs/old/notes.txt": "notes",
		"root.json":          "{}",
	})
	ctx := context.Background()

	info, err := a.Stat(ctx, "docs/report.pdf")
	if err != nil {
		t.Fatal(err)
	}
	if info.Path != "docs/report.pdf" || info.Size != 8 || info.IsDir {
		t.Errorf("Stat() = %+v", info)
	}
	if info.ContentType != "application/pdf" {
		t.Errorf("ContentType = %q", info.ContentType)
	}

	flat, err := a.ListContents(ctx, "docs", false)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"docs/old", "docs/report.pdf"}, paths(flat)); diff != "" {
		t.Errorf("ListContents() mismatch (-want +got):\n%s", diff)
	}

	all, err := a.ListContents(ctx, "", true)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"docs", "docs/old", "docs/old/notes.txt", "docs/report.pdf", "root.json"}
	if diff := cmp.Diff(want, paths(all)); diff != "" {
		t.Errorf("recursive ListContents() mismatch (-want +got):\n%s", diff)
	}

	if _, err := a.ListContents(ctx, "root.json", false); err == nil {
		t.Error("ListContents() on a file should fail")
	}
}

func TestClassifyThroughSniffer(t *testing.T) {
	a, _ := newTestAdapter(t, map[string]string{
		"upload.jpg": "%PDF-1.7\n",
		"img/x":      "GIF89a\x00",
	})
	s := filesniff.NewSniffer(a)
	ctx := context.Background()

	r, err := s.Classify(ctx, "upload.jpg")
	if err != nil {
		t.Fatal(err)
	}
	if r.Ext != "pdf" {
		t.Errorf("Classify() = %+v, want pdf", r)
	}

	r, err = s.Classify(ctx, "img/x")
	if err != nil {
		t.Fatal(err)
	}
	if r.Ext != "gif" {
		t.Errorf("Classify() = %+v, want gif", r)
	}
}

func TestWatch(t *testing.T) {
	a, root := newTestAdapter(t, map[string]string{"in/a.png": "x"}, WithPollInterval(10*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	token, err := a.Watch(ctx, "in/*.png")
	if err != nil {
		t.Fatal(err)
	}

	if err := os.WriteFile(filepath.Join(root, "in", "notes.txt"), []byte("ignored"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "in", "b.png"), []byte("new"), 0o644); err != nil {
		t.Fatal(err)
	}

	deadline := time.After(5 * time.Second)
	for !token.HasChanged() {
		select {
		case <-deadline:
			t.Fatal("token did not fire")
		case <-time.After(10 * time.Millisecond):
		}
	}
	if diff := cmp.Diff([]string{"in/b.png"}, token.Changed()); diff != "" {
		t.Errorf("Changed() mismatch (-want +got):\n%s", diff)
	}
}

func TestClosedAdapter(t *testing.T) {
	a, _ := newTestAdapter(t, map[string]string{"a.txt": "a"})
	if err := a.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if _, err := a.Stat(context.Background(), "a.txt"); err == nil {
		t.Error("Stat() after Close should fail")
	}
}

func paths(files []filesniff.FileInfo) []string {
	out := make([]string, len(files))
	for i, f := range files {
		out[i] = f.Path
	}
	sort.Strings(out)
	return out
}
