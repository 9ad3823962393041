// Package project coordinates record-store mutations with thumbnail asset
// transitions so a UI-level save or delete leaves both in a consistent state.
package project

import (
	"context"
	"fmt"
	"sync"

	"github.com/ostberg/folio/internal/apperr"
	"github.com/ostberg/folio/internal/assets"
	"github.com/ostberg/folio/internal/models"
	"github.com/ostberg/folio/internal/store"
)

// Service sequences the record store and the asset store for one logical
// edit. Within one call, a pending thumbnail commit happens before the
// record is persisted, and a record delete happens before its asset delete.
// A mutex serializes calls: the store session is single-writer.
type Service struct {
	mu      sync.Mutex
	records *store.Session
	assets  *assets.Store
	notify  func(kind, id string)
}

// NewService creates a new project service.
func NewService(records *store.Session, assets *assets.Store) *Service {
	return &Service{records: records, assets: assets}
}

// SetNotify installs a callback invoked after each successful mutation with
// the change kind ("created", "updated", "deleted") and the project id.
func (s *Service) SetNotify(fn func(kind, id string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notify = fn
}

// emit is called with s.mu held.
func (s *Service) emit(kind, id string) {
	if s.notify != nil {
		s.notify(kind, id)
	}
}

// List reloads the collection from disk.
func (s *Service) List(_ context.Context) (models.Collection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.records.Read()
}

// Get returns a single project by id.
func (s *Service) Get(_ context.Context, id string) (models.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	col, err := s.records.Read()
	if err != nil {
		return models.Project{}, err
	}
	for _, p := range col.Projects {
		if p.ID == id {
			return p, nil
		}
	}
	return models.Project{}, fmt.Errorf("project %q: %w", id, apperr.ErrNotFound)
}

// CreateProject commits any staged thumbnail for the record's id, wires the
// resulting reference into thumbnailLink, then creates the record.
//
// When the record create fails after a successful commit (a duplicate id
// racing this call), the committed file stays on disk until CleanupOrphans
// runs. Rolling the commit back here could destroy an image the existing
// record legitimately owns, so the orphan is the lesser evil.
func (s *Service) CreateProject(ctx context.Context, p models.Project) (models.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.records.Read(); err != nil {
		return models.Project{}, err
	}
	ref, ok, err := s.assets.CommitTemp(p.ID)
	if err != nil {
		return models.Project{}, err
	}
	if ok {
		p.ThumbnailLink = ref.String()
	}
	if err := s.records.Create(p); err != nil {
		return models.Project{}, err
	}
	s.emit("created", p.ID)
	return p, nil
}

// UpdateProject commits any staged thumbnail before persisting the record
// mutation. A failed commit aborts the update, so a half-updated record is
// never written. When the caller cleared an asset-backed thumbnailLink, the
// final file is deleted after the record persists.
func (s *Service) UpdateProject(ctx context.Context, id string, p models.Project) (models.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	col, err := s.records.Read()
	if err != nil {
		return models.Project{}, err
	}
	ref, ok, err := s.assets.CommitTemp(id)
	if err != nil {
		return models.Project{}, err
	}
	if ok {
		p.ThumbnailLink = ref.String()
	}

	clearFinal := false
	if !ok && p.ThumbnailLink == "" {
		for _, old := range col.Projects {
			if old.ID == id && assets.IsRef(old.ThumbnailLink) {
				clearFinal = true
			}
		}
	}

	if err := s.records.Update(id, p); err != nil {
		return models.Project{}, err
	}
	if clearFinal {
		if err := s.assets.DeleteFinal(id); err != nil {
			return models.Project{}, err
		}
	}
	s.emit("updated", id)
	return p, nil
}

// DeleteProject removes the record first; only on success is the committed
// asset deleted. A failed record delete leaves the asset in place, matching
// the still-existing record.
func (s *Service) DeleteProject(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.records.Read(); err != nil {
		return err
	}
	if err := s.records.Delete(id); err != nil {
		return err
	}
	if err := s.assets.DeleteFinal(id); err != nil {
		return err
	}
	s.emit("deleted", id)
	return nil
}

// StageThumbnail stages image bytes for a live preview. The record itself is
// untouched until the edit is saved.
func (s *Service) StageThumbnail(_ context.Context, id string, data []byte, mimeType string) (assets.TempRef, error) {
	if !models.SlugRe.MatchString(id) {
		return assets.TempRef{}, fmt.Errorf("project: stage thumbnail: invalid id %q", id)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.assets.StageTemp(id, data, mimeType)
}

// CancelEdit discards a staged thumbnail. The committed file and the record
// are never touched.
func (s *Service) CancelEdit(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.assets.DeleteTemp(id)
}

// CleanupOrphans deletes asset files that no record can ever reference
// again: every temp file, and final files whose id has no record. Final
// files for existing records are kept even when the record currently points
// elsewhere, to err on the side of not destroying data.
func (s *Service) CleanupOrphans(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	col, err := s.records.Read()
	if err != nil {
		return nil, err
	}
	keep := make(map[string]bool, len(col.Projects))
	for _, p := range col.Projects {
		keep[p.ID] = true
	}
	return s.assets.CleanupOrphans(keep)
}
