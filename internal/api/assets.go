package api

import (
	"net/http"
	"os"
	"path/filepath"

	"github.com/go-chi/chi/v5"

	"github.com/ostberg/folio/internal/assets"
)

// AssetHandler serves committed asset files from the site's assets directory.
type AssetHandler struct {
	dir string
}

// NewAssetHandler creates a handler rooted at the absolute assets directory.
func NewAssetHandler(dir string) *AssetHandler {
	return &AssetHandler{dir: dir}
}

// ServeFile handles GET /assets/{filename}. The filename must look like a
// committed asset name (<id><ext>), which also rules out traversal.
func (h *AssetHandler) ServeFile(w http.ResponseWriter, r *http.Request) {
	filename := chi.URLParam(r, "filename")
	name, err := assets.Filename(assets.Scheme + filename)
	if err != nil {
		http.Error(w, "invalid asset name", http.StatusBadRequest)
		return
	}
	abs := filepath.Join(h.dir, name)
	if _, statErr := os.Stat(abs); os.IsNotExist(statErr) {
		http.NotFound(w, r)
		return
	}
	http.ServeFile(w, r, abs)
}
