// Package storage defines the site file-system abstraction.
package storage

// Provider is the interface for site file operations. All paths are
// relative to the site root.
type Provider interface {
	// Read returns the raw bytes of the file at path.
	Read(path string) ([]byte, error)
	// Write atomically writes content to path.
	Write(path string, content []byte) error
	// Delete removes the file at path.
	Delete(path string) error
	// Rename moves oldPath to newPath in a single step.
	Rename(oldPath, newPath string) error
	// Exists reports whether a regular file exists at path.
	Exists(path string) (bool, error)
	// List returns the file names (not paths) directly inside dir.
	// A missing directory yields an empty list.
	List(dir string) ([]string, error)
}
