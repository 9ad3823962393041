// Package store implements CRUD over the project collection file. It is the
// only package that reads or writes the backing file.
package store

import (
	"errors"
	"fmt"
	"os"

	"github.com/ostberg/folio/internal/apperr"
	"github.com/ostberg/folio/internal/document"
	"github.com/ostberg/folio/internal/models"
	"github.com/ostberg/folio/internal/storage"
)

// Session owns the in-memory document for one backing file. A session is
// single-writer: it caches the parsed document from Read until the session is
// discarded, so two interleaved sessions over the same file can overwrite
// each other. Serialize access at a higher layer when that matters.
type Session struct {
	fs     storage.Provider
	path   string
	format document.Format
	doc    document.Document
}

// NewSession creates a session for the collection file at path (relative to
// the site root). The format is derived from the file extension.
func NewSession(fs storage.Provider, path string) *Session {
	return &Session{fs: fs, path: path, format: document.DetectFormat(path)}
}

// Read loads and parses the backing file. A missing file behaves as an empty
// collection so a fresh site directory works without scaffolding. Read must
// succeed before any mutator is called on the session.
func (s *Session) Read() (models.Collection, error) {
	data, err := s.fs.Read(s.path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return models.Collection{}, err
		}
		data = nil
	}
	doc, err := document.Load(data, s.format)
	if err != nil {
		return models.Collection{}, fmt.Errorf("store: load %s: %w", s.path, err)
	}
	records, err := doc.Records()
	if err != nil {
		return models.Collection{}, fmt.Errorf("store: load %s: %w", s.path, err)
	}
	s.doc = doc
	return models.Collection{Config: doc.Config(), Projects: records}, nil
}

// Create appends a new record. The id must not already be present.
func (s *Session) Create(p models.Project) error {
	if s.doc == nil {
		return fmt.Errorf("store: create: %w", apperr.ErrNotInitialized)
	}
	if err := p.Validate(); err != nil {
		return fmt.Errorf("store: create %q: %w", p.ID, err)
	}
	if _, ok := s.doc.FindIndexByID(p.ID); ok {
		return fmt.Errorf("store: create %q: %w", p.ID, apperr.ErrDuplicateID)
	}
	p.CreationDate = models.NormalizeDate(p.CreationDate)
	if err := s.doc.AppendRecord(p); err != nil {
		return err
	}
	return s.persist()
}

// Update replaces the record with the given id in place. The id itself is
// immutable; p may carry an empty ID or must repeat id.
func (s *Session) Update(id string, p models.Project) error {
	if s.doc == nil {
		return fmt.Errorf("store: update: %w", apperr.ErrNotInitialized)
	}
	if p.ID == "" {
		p.ID = id
	}
	if p.ID != id {
		return fmt.Errorf("store: update %q: id is immutable (got %q)", id, p.ID)
	}
	if err := p.Validate(); err != nil {
		return fmt.Errorf("store: update %q: %w", id, err)
	}
	i, ok := s.doc.FindIndexByID(id)
	if !ok {
		return fmt.Errorf("store: update %q: %w", id, apperr.ErrNotFound)
	}
	p.CreationDate = models.NormalizeDate(p.CreationDate)
	if err := s.doc.ReplaceRecordAt(i, p); err != nil {
		return err
	}
	return s.persist()
}

// Delete removes the record with the given id. Deleting an absent id fails;
// callers wanting idempotent delete treat ErrNotFound as success.
func (s *Session) Delete(id string) error {
	if s.doc == nil {
		return fmt.Errorf("store: delete: %w", apperr.ErrNotInitialized)
	}
	i, ok := s.doc.FindIndexByID(id)
	if !ok {
		return fmt.Errorf("store: delete %q: %w", id, apperr.ErrNotFound)
	}
	if err := s.doc.RemoveRecordAt(i); err != nil {
		return err
	}
	return s.persist()
}

// persist serializes the whole document in memory and overwrites the backing
// file through the provider's atomic write. Readers never see partial state.
func (s *Session) persist() error {
	data, err := s.doc.Serialize()
	if err != nil {
		return err
	}
	return s.fs.Write(s.path, data)
}
