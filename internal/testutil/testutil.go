// Package testutil provides shared test helpers for setting up site
// directories and services.
package testutil

import (
	"testing"

	"github.com/ostberg/folio/internal/storage"
)

// TestSite creates a temporary site directory with a storage.Provider.
func TestSite(t *testing.T) (string, storage.Provider) {
	t.Helper()
	dir := t.TempDir()
	fs, err := storage.NewFS(dir)
	if err != nil {
		t.Fatal(err)
	}
	return dir, fs
}

// PNGBytes returns a tiny byte blob standing in for image content.
// The asset layer validates declared MIME type and size, not magic bytes,
// so any payload works.
func PNGBytes() []byte {
	return []byte("\x89PNG\r\n\x1a\nfake-image-payload")
}
