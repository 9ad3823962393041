// Package assets manages the thumbnail files referenced by project records,
// including the staged temp → commit/cancel protocol used by the admin UI
// for live previews.
package assets

import (
	"errors"
	"fmt"
	"os"
	"path"
	"strings"

	"github.com/ostberg/folio/internal/apperr"
	"github.com/ostberg/folio/internal/storage"
)

// MaxSize is the upper bound for thumbnail uploads.
const MaxSize = 5 << 20 // 5 MiB

// Scheme is the reference prefix stored in thumbnailLink fields.
const Scheme = "asset://"

var (
	mimeToExt = map[string]string{
		"image/png":  ".png",
		"image/jpeg": ".jpg",
		"image/gif":  ".gif",
		"image/webp": ".webp",
	}

	// extensions lists every on-disk extension an asset may carry. It is a
	// superset of mimeToExt values: .jpeg files placed by hand are found too.
	extensions = []string{".png", ".jpg", ".jpeg", ".gif", ".webp"}
)

// FinalRef points at a committed, record-referenced asset file.
type FinalRef struct {
	ID  string
	Ext string
}

// String renders the reference as stored in a record's thumbnailLink.
func (r FinalRef) String() string { return Scheme + r.ID + r.Ext }

// Filename is the on-disk name inside the asset directory.
func (r FinalRef) Filename() string { return r.ID + r.Ext }

// TempRef points at a staged, not-yet-committed asset file.
type TempRef struct {
	ID  string
	Ext string
}

func (r TempRef) String() string   { return Scheme + r.ID + ".temp" + r.Ext }
func (r TempRef) Filename() string { return r.ID + ".temp" + r.Ext }

// Filename extracts the servable file name from an asset:// reference.
// Anything that is not a plain file name under the scheme is rejected.
func Filename(ref string) (string, error) {
	if !strings.HasPrefix(ref, Scheme) {
		return "", fmt.Errorf("assets: not an asset reference: %q", ref)
	}
	name := strings.TrimPrefix(ref, Scheme)
	if name == "" || name != path.Base(name) || strings.Contains(name, "..") {
		return "", fmt.Errorf("assets: invalid asset reference: %q", ref)
	}
	return name, nil
}

// IsRef reports whether s uses the asset:// scheme. External thumbnail links
// (plain URLs) return false and are never touched by this package.
func IsRef(s string) bool { return strings.HasPrefix(s, Scheme) }

// Store manages asset files in a flat directory under the site root.
type Store struct {
	fs  storage.Provider
	dir string
}

// NewStore creates an asset store writing into dir (relative to the
// provider's root), e.g. "assets".
func NewStore(fs storage.Provider, dir string) *Store {
	return &Store{fs: fs, dir: dir}
}

// Dir returns the asset directory relative to the site root.
func (s *Store) Dir() string { return s.dir }

// Validate checks the declared MIME type and size without touching disk.
func (s *Store) Validate(mimeType string, size int64) error {
	if _, ok := mimeToExt[mimeType]; !ok {
		return fmt.Errorf("assets: %q: %w", mimeType, apperr.ErrUnsupportedType)
	}
	if size > MaxSize {
		return fmt.Errorf("assets: %d bytes (max %d): %w", size, MaxSize, apperr.ErrTooLarge)
	}
	return nil
}

// FindFinal scans for the committed file of an id across all supported
// extensions and returns its file name.
func (s *Store) FindFinal(id string) (string, bool, error) {
	for _, ext := range extensions {
		name := id + ext
		ok, err := s.fs.Exists(path.Join(s.dir, name))
		if err != nil {
			return "", false, err
		}
		if ok {
			return name, true, nil
		}
	}
	return "", false, nil
}

// SaveFinal validates and writes a committed asset directly, replacing any
// prior final file for the id.
func (s *Store) SaveFinal(id string, data []byte, mimeType string) (FinalRef, error) {
	if err := s.Validate(mimeType, int64(len(data))); err != nil {
		return FinalRef{}, err
	}
	if err := s.DeleteFinal(id); err != nil {
		return FinalRef{}, err
	}
	ref := FinalRef{ID: id, Ext: mimeToExt[mimeType]}
	if err := s.fs.Write(path.Join(s.dir, ref.Filename()), data); err != nil {
		return FinalRef{}, err
	}
	return ref, nil
}

// DeleteFinal removes the committed file for an id. Absence is success.
func (s *Store) DeleteFinal(id string) error {
	return s.deleteAll(id, "")
}

// StageTemp validates and writes a staged asset, replacing any prior temp
// file for the id so at most one temp exists per id.
func (s *Store) StageTemp(id string, data []byte, mimeType string) (TempRef, error) {
	if err := s.Validate(mimeType, int64(len(data))); err != nil {
		return TempRef{}, err
	}
	if err := s.DeleteTemp(id); err != nil {
		return TempRef{}, err
	}
	ref := TempRef{ID: id, Ext: mimeToExt[mimeType]}
	if err := s.fs.Write(path.Join(s.dir, ref.Filename()), data); err != nil {
		return TempRef{}, err
	}
	return ref, nil
}

// CommitTemp promotes the staged file for an id to final. The temp file is
// renamed, never copied, so there is no window where neither file exists.
// When no temp file is staged it returns ok=false with no side effects.
func (s *Store) CommitTemp(id string) (FinalRef, bool, error) {
	for _, ext := range extensions {
		temp := TempRef{ID: id, Ext: ext}
		ok, err := s.fs.Exists(path.Join(s.dir, temp.Filename()))
		if err != nil {
			return FinalRef{}, false, err
		}
		if !ok {
			continue
		}
		if err := s.DeleteFinal(id); err != nil {
			return FinalRef{}, false, err
		}
		final := FinalRef{ID: id, Ext: ext}
		if err := s.fs.Rename(path.Join(s.dir, temp.Filename()), path.Join(s.dir, final.Filename())); err != nil {
			return FinalRef{}, false, err
		}
		return final, true, nil
	}
	return FinalRef{}, false, nil
}

// DeleteTemp removes any staged file for an id. Absence is success.
func (s *Store) DeleteTemp(id string) error {
	return s.deleteAll(id, ".temp")
}

// deleteAll removes id+marker+ext for every supported extension, treating
// "already gone" as success.
func (s *Store) deleteAll(id, marker string) error {
	for _, ext := range extensions {
		err := s.fs.Delete(path.Join(s.dir, id+marker+ext))
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
	}
	return nil
}

// CleanupOrphans removes asset files whose id is not in keep, plus every
// leftover temp file. It returns the removed file names. Run it at startup
// or after bulk edits; committed-but-never-referenced files from interrupted
// saves are collected here.
func (s *Store) CleanupOrphans(keep map[string]bool) ([]string, error) {
	names, err := s.fs.List(s.dir)
	if err != nil {
		return nil, err
	}
	var removed []string
	for _, name := range names {
		id, temp, ok := splitAssetName(name)
		if !ok {
			continue
		}
		if temp || !keep[id] {
			if err := s.fs.Delete(path.Join(s.dir, name)); err != nil && !errors.Is(err, os.ErrNotExist) {
				return removed, err
			}
			removed = append(removed, name)
		}
	}
	return removed, nil
}

// splitAssetName decomposes "<id>[.temp]<ext>" and reports whether the name
// is an asset file this store manages.
func splitAssetName(name string) (id string, temp bool, ok bool) {
	ext := path.Ext(name)
	valid := false
	for _, e := range extensions {
		if ext == e {
			valid = true
			break
		}
	}
	if !valid {
		return "", false, false
	}
	stem := strings.TrimSuffix(name, ext)
	if strings.HasSuffix(stem, ".temp") {
		return strings.TrimSuffix(stem, ".temp"), true, true
	}
	return stem, false, true
}
