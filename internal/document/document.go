// Package document provides an editable, format-preserving representation of
// a project collection file. Loading then serializing an untouched document
// reproduces the input byte for byte; mutations only rewrite the touched
// record's span, so comments, key order, and formatting written by the user
// survive programmatic edits.
package document

import (
	"path/filepath"
	"strings"

	"github.com/ostberg/folio/internal/models"
)

// Format identifies the serialization format of a backing file.
type Format int

const (
	FormatYAML Format = iota
	FormatJSON
)

// String returns the lowercase format name.
func (f Format) String() string {
	if f == FormatJSON {
		return "json"
	}
	return "yaml"
}

// DetectFormat derives the format from a file path's extension.
// Anything that is not .json is treated as YAML.
func DetectFormat(path string) Format {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return FormatJSON
	}
	return FormatYAML
}

// Document is a parsed collection file that supports surgical record edits.
//
// Indices refer to positions in the projects sequence. All index-taking
// operations fail with a wrapped apperr.ErrNotFound when the index is out of
// range; callers are expected to locate records via FindIndexByID first.
type Document interface {
	// Records decodes the projects sequence. The result is never nil.
	Records() ([]models.Project, error)
	// FindIndexByID returns the position of the record with the given id.
	FindIndexByID(id string) (int, bool)
	// ReplaceRecordAt builds a fresh node from p and substitutes it at i.
	ReplaceRecordAt(i int, p models.Project) error
	// AppendRecord builds a fresh node from p and appends it to the
	// sequence, creating the projects key when the file lacks one.
	AppendRecord(p models.Project) error
	// RemoveRecordAt splices the record at i out of the sequence.
	RemoveRecordAt(i int) error
	// Config decodes the opaque config block, or nil when absent.
	Config() map[string]interface{}
	// Serialize renders the document, preserving untouched regions.
	Serialize() ([]byte, error)
}

// Load parses data in the given format.
func Load(data []byte, format Format) (Document, error) {
	if format == FormatJSON {
		return loadJSON(data)
	}
	return loadYAML(data)
}
