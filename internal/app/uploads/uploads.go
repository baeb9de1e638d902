// Package uploads stores product images on local disk and serves them back.
package uploads

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"unicode"

	"github.com/google/uuid"
	"golang.org/x/text/unicode/norm"
)

var (
	// ErrTooLarge is returned when an upload exceeds the configured limit.
	ErrTooLarge = errors.New("uploads: file too large")
	// ErrUnsupportedType is returned for content that is not a supported image.
	ErrUnsupportedType = errors.New("uploads: unsupported image type")
	// ErrEmpty is returned for a zero-length upload.
	ErrEmpty = errors.New("uploads: empty file")
)

var allowedTypes = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// Store writes uploads under a root directory.
type Store struct {
	root     string
	maxBytes int64
}

// New creates root if needed and returns a store accepting files up to maxBytes.
func New(root string, maxBytes int64) (*Store, error) {
	if strings.TrimSpace(root) == "" {
		return nil, errors.New("uploads: folder is required")
	}
	if maxBytes <= 0 {
		return nil, errors.New("uploads: max bytes must be positive")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("uploads: create folder: %w", err)
	}
	return &Store{root: root, maxBytes: maxBytes}, nil
}

func (s *Store) Root() string { return s.root }

// Save writes r under a sanitized form of filename and returns the stored
// name relative to the root. Existing files are never overwritten.
func (s *Store) Save(filename string, r io.Reader) (string, error) {
	data, err := io.ReadAll(io.LimitReader(r, s.maxBytes+1))
	if err != nil {
		return "", fmt.Errorf("uploads: read: %w", err)
	}
	if len(data) == 0 {
		return "", ErrEmpty
	}
	if int64(len(data)) > s.maxBytes {
		return "", ErrTooLarge
	}
	ext, ok := allowedTypes[http.DetectContentType(data)]
	if !ok {
		return "", ErrUnsupportedType
	}

	name := SecureFilename(filename)
	if name == "" || filepath.Ext(name) == "" {
		name = uuid.NewString() + ext
	}
	if _, err := os.Stat(filepath.Join(s.root, name)); err == nil {
		name = uuid.NewString()[:8] + "_" + name
	}

	tmp, err := os.CreateTemp(s.root, ".upload-*")
	if err != nil {
		return "", fmt.Errorf("uploads: create temp: %w", err)
	}
	if _, err := io.Copy(tmp, bytes.NewReader(data)); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("uploads: write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("uploads: close: %w", err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(s.root, name)); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("uploads: rename: %w", err)
	}
	return name, nil
}

// Remove deletes a stored file. Missing files are not an error.
func (s *Store) Remove(name string) error {
	clean := path.Clean("/" + filepath.ToSlash(name))
	if clean == "/" {
		return nil
	}
	err := os.Remove(filepath.Join(s.root, filepath.FromSlash(clean)))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("uploads: remove: %w", err)
	}
	return nil
}

// Handler serves stored files. Mount it with http.StripPrefix. Directory
// listings are not served.
func (s *Store) Handler() http.Handler {
	return http.FileServer(noDirFS{http.Dir(s.root)})
}

type noDirFS struct{ fs http.FileSystem }

func (n noDirFS) Open(name string) (http.File, error) {
	f, err := n.fs.Open(name)
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	if info.IsDir() {
		f.Close()
		return nil, os.ErrNotExist
	}
	return f, nil
}

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9_.-]`)

// SecureFilename reduces name to ASCII letters, digits, '_', '.' and '-'
// with no path components. The result may be empty.
func SecureFilename(name string) string {
	var b strings.Builder
	for _, r := range norm.NFKD.String(name) {
		if r < unicode.MaxASCII {
			b.WriteRune(r)
		}
	}
	s := b.String()
	s = strings.NewReplacer("/", " ", "\\", " ").Replace(s)
	s = strings.Join(strings.Fields(s), "_")
	s = unsafeChars.ReplaceAllString(s, "")
	return strings.Trim(s, "._")
}
