// Package storage defines the vault file-system abstraction consumed by the task index.
package storage

// Entry describes one child of a vault folder.
type Entry struct {
	Name     string `json:"name"`
	IsFolder bool   `json:"is_folder"`
	Path     string `json:"path"`
}

// Provider is the interface for vault file operations.
// All paths are relative to the vault root and use forward slashes.
type Provider interface {
	// Read returns the raw bytes of the file at path.
	Read(path string) ([]byte, error)
	// ListChildren returns the direct children of folder ("" for the vault root).
	ListChildren(folder string) ([]Entry, error)
	// Exists reports whether a file or folder exists at path.
	Exists(path string) bool
	// Write atomically writes content to path, creating parent folders.
	Write(path string, content []byte) error
	// Delete removes the file at path.
	Delete(path string) error
	// Move renames oldPath to newPath.
	Move(oldPath, newPath string) error
}
