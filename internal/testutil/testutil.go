// Package testutil provides shared test helpers for building task vaults.
package testutil

import (
	"fmt"
	"strings"
	"testing"

	"github.com/spf13/afero"

	"github.com/starford/taskboard/internal/storage"
)

// MemVault returns a storage provider backed by an in-memory file system.
func MemVault(t *testing.T) *storage.FS {
	t.Helper()
	return storage.NewFS(afero.NewMemMapFs())
}

// DiskVault creates a temporary vault directory on disk with a provider.
func DiskVault(t *testing.T) (string, *storage.FS) {
	t.Helper()
	dir := t.TempDir()
	store, err := storage.NewOSFS(dir)
	if err != nil {
		t.Fatal(err)
	}
	return dir, store
}

// TaskContent renders a task file. extra holds additional "key: value" lines.
func TaskContent(name, start, end string, extra ...string) string {
	var b strings.Builder
	b.WriteString("---\n")
	fmt.Fprintf(&b, "name: %s\n", name)
	fmt.Fprintf(&b, "start: %s\n", start)
	if end != "" {
		fmt.Fprintf(&b, "end: %s\n", end)
	}
	for _, line := range extra {
		b.WriteString(line + "\n")
	}
	b.WriteString("---\n")
	return b.String()
}

// WriteTask writes content to path in store, failing the test on error.
func WriteTask(t *testing.T, store storage.Provider, path, content string) {
	t.Helper()
	if err := store.Write(path, []byte(content)); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}
