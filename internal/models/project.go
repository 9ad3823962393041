// Package models defines the domain types for Folio.
package models

import (
	"regexp"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

var (
	// SlugRe matches project ids: lowercase URL slugs like "my-project-2".
	SlugRe = regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*$`)
	// DateRe matches calendar dates in YYYY-MM-DD form.
	DateRe = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
)

// Project is one portfolio entry in the collection.
//
// ID is immutable after creation. CreationDate is always persisted as a
// double-quoted YYYY-MM-DD string so downstream YAML consumers cannot
// reinterpret it as a native timestamp.
type Project struct {
	ID            string   `yaml:"id" json:"id"`
	Title         string   `yaml:"title" json:"title"`
	Description   string   `yaml:"description" json:"description"`
	CreationDate  string   `yaml:"creationDate" json:"creationDate"`
	Tags          []string `yaml:"tags" json:"tags"`
	PageLink      string   `yaml:"pageLink" json:"pageLink"`
	SourceLink    string   `yaml:"sourceLink,omitempty" json:"sourceLink,omitempty"`
	ThumbnailLink string   `yaml:"thumbnailLink,omitempty" json:"thumbnailLink,omitempty"`
	Featured      *bool    `yaml:"featured,omitempty" json:"featured,omitempty"`
}

// Validate checks the structural invariants of a project record.
// Business semantics (link reachability etc.) are deliberately not checked.
func (p Project) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.ID, validation.Required, validation.Match(SlugRe)),
		validation.Field(&p.Title, validation.Required),
		validation.Field(&p.Description, validation.Required),
		validation.Field(&p.CreationDate, validation.Required, validation.By(validDate)),
		validation.Field(&p.PageLink, validation.Required),
	)
}

func validDate(value interface{}) error {
	s, _ := value.(string)
	if DateRe.MatchString(NormalizeDate(s)) {
		return nil
	}
	return validation.NewError("validation_date", "must be a YYYY-MM-DD date")
}

// NormalizeDate reduces a date-ish string to its YYYY-MM-DD form.
// Accepts plain dates as well as RFC 3339 timestamps (a YAML parser that
// recognised an unquoted date may have expanded it to a full timestamp).
func NormalizeDate(s string) string {
	if DateRe.MatchString(s) {
		return s
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02 15:04:05 -0700 MST"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("2006-01-02")
		}
	}
	return s
}

// Collection is the ordered set of projects plus the opaque site
// configuration block that is round-tripped but never interpreted here.
type Collection struct {
	Config   map[string]interface{} `yaml:"config,omitempty" json:"config,omitempty"`
	Projects []Project              `yaml:"projects" json:"projects"`
}
