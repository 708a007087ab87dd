package storage

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/starford/vellum/internal/checksum"
	"github.com/starford/vellum/internal/contenttype"
	"github.com/starford/vellum/internal/models"
)

// FS is a vault backed by the local file system.
type FS struct {
	root string // absolute path to vault directory
}

// NewFS creates a new FS rooted at the given directory.
// The directory must already exist.
func NewFS(root string) (*FS, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("storage: resolve root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("storage: stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("storage: root is not a directory: %s", abs)
	}
	return &FS{root: abs}, nil
}

// Root returns the absolute vault directory.
func (f *FS) Root() string { return f.root }

// safePath resolves a vault path against the root and rejects any result
// that escapes it (directory traversal). A leading "/" is the vault root.
func (f *FS) safePath(rel string) (string, error) {
	rel = strings.TrimPrefix(filepath.FromSlash(rel), string(os.PathSeparator))
	if rel == "" {
		return f.root, nil
	}
	cleaned := filepath.Clean(rel)
	if filepath.IsAbs(cleaned) {
		return "", fmt.Errorf("storage: absolute paths not allowed: %s", rel)
	}
	abs, err := filepath.Abs(filepath.Join(f.root, cleaned))
	if err != nil {
		return "", fmt.Errorf("storage: resolve path: %w", err)
	}
	if !strings.HasPrefix(abs, f.root+string(os.PathSeparator)) && abs != f.root {
		return "", fmt.Errorf("storage: path escapes vault root: %s", rel)
	}
	return abs, nil
}

// vaultPath turns an absolute file path into a rooted slash path.
func (f *FS) vaultPath(abs string) string {
	rel, err := filepath.Rel(f.root, abs)
	if err != nil || rel == "." {
		return "/"
	}
	return "/" + filepath.ToSlash(rel)
}

// Document returns a handle for the vault path p. Paths escaping the root
// yield a handle that does not exist.
func (f *FS) Document(p string) Document {
	abs, err := f.safePath(p)
	if err != nil {
		return missing(p)
	}
	return &file{fs: f, abs: abs}
}

// List walks dir and returns metadata for every document with a known
// content type. Hidden files and directories (such as the attachment
// namespace) are skipped.
func (f *FS) List(dir string) ([]models.DocumentInfo, error) {
	base, err := f.safePath(dir)
	if err != nil {
		return nil, err
	}
	var out []models.DocumentInfo
	err = filepath.WalkDir(base, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if strings.HasPrefix(d.Name(), ".") && p != base {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		ct := contenttype.ForName(d.Name())
		if ct == "" {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		data, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		out = append(out, models.DocumentInfo{
			Path:        f.vaultPath(p),
			ContentType: ct,
			Size:        info.Size(),
			Checksum:    checksum.Sum(data),
			UpdatedAt:   info.ModTime(),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("storage: list: %w", err)
	}
	return out, nil
}

// Read returns the raw bytes of a vault file.
func (f *FS) Read(p string) ([]byte, error) {
	abs, err := f.safePath(p)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("storage: read %s: %w", p, err)
	}
	return data, nil
}

// Write atomically writes content: tmp file → fsync → rename.
func (f *FS) Write(p string, content []byte) error {
	abs, err := f.safePath(p)
	if err != nil {
		return err
	}
	dir := filepath.Dir(abs)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("storage: mkdir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".vellum-tmp-*")
	if err != nil {
		return fmt.Errorf("storage: create temp: %w", err)
	}
	tmpName := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(content); err != nil {
		return fmt.Errorf("storage: write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("storage: fsync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("storage: close temp: %w", err)
	}
	if err := os.Rename(tmpName, abs); err != nil {
		return fmt.Errorf("storage: rename: %w", err)
	}
	success = true
	return nil
}

// Delete removes a file from the vault.
func (f *FS) Delete(p string) error {
	abs, err := f.safePath(p)
	if err != nil {
		return err
	}
	if err := os.Remove(abs); err != nil {
		return fmt.Errorf("storage: delete %s: %w", p, err)
	}
	return nil
}

// file is a Document backed by a path in the vault. It stats lazily so a
// handle for a missing file is cheap and reports Exists() == false.
type file struct {
	fs  *FS
	abs string
}

func (d *file) stat() (os.FileInfo, error) { return os.Stat(d.abs) }

func (d *file) Name() string { return filepath.Base(d.abs) }
func (d *file) Path() string { return d.fs.vaultPath(d.abs) }

func (d *file) Size() int64 {
	info, err := d.stat()
	if err != nil {
		return 0
	}
	return info.Size()
}

func (d *file) ContentType() string {
	if d.isDir() {
		return ""
	}
	return contenttype.ForName(d.abs)
}

func (d *file) LastModified() time.Time {
	info, err := d.stat()
	if err != nil {
		return time.Time{}
	}
	return info.ModTime()
}

func (d *file) Exists() bool {
	_, err := d.stat()
	return err == nil
}

func (d *file) isDir() bool {
	info, err := d.stat()
	return err == nil && info.IsDir()
}

func (d *file) Open() (io.ReadCloser, error) {
	fh, err := os.Open(d.abs)
	if err != nil {
		return nil, fmt.Errorf("storage: open %s: %w", d.Path(), err)
	}
	return fh, nil
}

func (d *file) Parent() Document {
	if d.abs == d.fs.root {
		return nil
	}
	return &file{fs: d.fs, abs: filepath.Dir(d.abs)}
}

func (d *file) Resolve(rel string) Document {
	if strings.HasPrefix(rel, "/") {
		return d.fs.Document(rel)
	}
	dir := d.Path()
	if !d.isDir() {
		dir = path.Dir(dir)
	}
	return d.fs.Document(path.Join(dir, rel))
}
