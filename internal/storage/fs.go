package storage

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/afero"
)

// FS implements Provider on top of an afero file system.
type FS struct {
	fs afero.Fs
}

// NewFS creates a provider whose vault root is the root of fsys.
func NewFS(fsys afero.Fs) *FS {
	return &FS{fs: fsys}
}

// NewOSFS creates a provider rooted at a directory on the local disk.
// The directory must already exist.
func NewOSFS(root string) (*FS, error) {
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
	return NewFS(afero.NewBasePathFs(afero.NewOsFs(), abs)), nil
}

// cleanPath normalises a vault-relative path and rejects anything that
// would escape the vault root.
func cleanPath(rel string) (string, error) {
	if rel == "" || rel == "." || rel == "/" {
		return "/", nil
	}
	if strings.HasPrefix(rel, "/") || filepath.IsAbs(rel) {
		return "", fmt.Errorf("storage: absolute paths not allowed: %s", rel)
	}
	cleaned := path.Clean(filepath.ToSlash(rel))
	if cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", fmt.Errorf("storage: path escapes vault root: %s", rel)
	}
	return "/" + cleaned, nil
}

// ListChildren returns the direct children of folder sorted by name.
func (f *FS) ListChildren(folder string) ([]Entry, error) {
	p, err := cleanPath(folder)
	if err != nil {
		return nil, err
	}
	infos, err := afero.ReadDir(f.fs, p)
	if err != nil {
		return nil, fmt.Errorf("storage: list %s: %w", folder, err)
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name() < infos[j].Name() })

	base := strings.TrimPrefix(p, "/")
	out := make([]Entry, 0, len(infos))
	for _, info := range infos {
		out = append(out, Entry{
			Name:     info.Name(),
			IsFolder: info.IsDir(),
			Path:     path.Join(base, info.Name()),
		})
	}
	return out, nil
}

// Read returns the raw bytes of a vault file.
func (f *FS) Read(rel string) ([]byte, error) {
	p, err := cleanPath(rel)
	if err != nil {
		return nil, err
	}
	data, err := afero.ReadFile(f.fs, p)
	if err != nil {
		return nil, fmt.Errorf("storage: read %s: %w", rel, err)
	}
	return data, nil
}

// Exists reports whether path exists in the vault.
func (f *FS) Exists(rel string) bool {
	p, err := cleanPath(rel)
	if err != nil {
		return false
	}
	ok, err := afero.Exists(f.fs, p)
	return err == nil && ok
}

// Write atomically writes content: tmp file → fsync → rename.
func (f *FS) Write(rel string, content []byte) error {
	p, err := cleanPath(rel)
	if err != nil {
		return err
	}
	if p == "/" {
		return fmt.Errorf("storage: write: empty path")
	}
	dir := path.Dir(p)
	if err := f.fs.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("storage: mkdir: %w", err)
	}

	tmp, err := afero.TempFile(f.fs, dir, ".taskboard-tmp-*")
	if err != nil {
		return fmt.Errorf("storage: create temp: %w", err)
	}
	tmpName := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = f.fs.Remove(tmpName)
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
	if err := f.fs.Rename(tmpName, p); err != nil {
		return fmt.Errorf("storage: rename: %w", err)
	}
	success = true
	return nil
}

// Delete removes a file from the vault.
func (f *FS) Delete(rel string) error {
	p, err := cleanPath(rel)
	if err != nil {
		return err
	}
	if err := f.fs.Remove(p); err != nil {
		return fmt.Errorf("storage: delete %s: %w", rel, err)
	}
	return nil
}

// Move renames a file within the vault.
func (f *FS) Move(oldRel, newRel string) error {
	oldPath, err := cleanPath(oldRel)
	if err != nil {
		return err
	}
	newPath, err := cleanPath(newRel)
	if err != nil {
		return err
	}
	if err := f.fs.MkdirAll(path.Dir(newPath), 0o755); err != nil {
		return fmt.Errorf("storage: mkdir for move: %w", err)
	}
	if err := f.fs.Rename(oldPath, newPath); err != nil {
		return fmt.Errorf("storage: move: %w", err)
	}
	return nil
}
