// Package fileurl maps file: URLs to local paths and streams their contents.
package fileurl

import (
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
)

// ErrNotLocal is returned for file URLs that name a remote host.
var ErrNotLocal = errors.New("fileurl: file URL is not local")

// ToPath converts a file: URL to a local filesystem path.
func ToPath(u *url.URL) (string, error) {
	if !strings.EqualFold(u.Scheme, "file") {
		return "", fmt.Errorf("fileurl: not a file URL: %s", u.Scheme)
	}
	if u.Host != "" && !strings.EqualFold(u.Host, "localhost") {
		return "", fmt.Errorf("%w: host %q", ErrNotLocal, u.Host)
	}

	p := u.Path
	if p == "" {
		p = u.Opaque
	}
	if p == "" {
		return "", fmt.Errorf("fileurl: empty path")
	}
	if strings.ContainsRune(p, 0) {
		return "", fmt.Errorf("fileurl: path contains NUL")
	}

	if runtime.GOOS == "windows" {
		// /C:/dir/file → C:/dir/file
		if len(p) >= 3 && p[0] == '/' && p[2] == ':' {
			p = p[1:]
		}
	}
	return filepath.FromSlash(p), nil
}

// Stream is an io.ReadCloser that opens its file on first read, so that a
// missing file surfaces as a read error rather than at construction.
type Stream struct {
	path string

	once sync.Once
	f    *os.File
	err  error
}

// Open returns a lazily opened stream over path.
func Open(path string) *Stream {
	return &Stream{path: path}
}

// Path returns the local path the stream reads.
func (s *Stream) Path() string { return s.path }

func (s *Stream) open() {
	s.once.Do(func() {
		s.f, s.err = os.Open(s.path)
	})
}

func (s *Stream) Read(p []byte) (int, error) {
	s.open()
	if s.err != nil {
		return 0, s.err
	}
	return s.f.Read(p)
}

// Close closes the file if it was opened. Reads after Close fail.
func (s *Stream) Close() error {
	opened := true
	s.once.Do(func() {
		opened = false
		s.err = os.ErrClosed
	})
	if !opened || s.f == nil {
		return nil
	}
	return s.f.Close()
}

var _ io.ReadCloser = (*Stream)(nil)
