package api

import "github.com/ostberg/folio/internal/models"

// ProjectListResponse wraps the full project listing.
type ProjectListResponse struct {
	Projects []models.Project `json:"projects"`
	Total    int              `json:"total"`
}

// ThumbnailResponse is returned after an image is staged.
type ThumbnailResponse struct {
	Ref  string `json:"ref"`
	Size int64  `json:"size"`
}

// TagSuggestion is one autocomplete candidate.
type TagSuggestion struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// TagSuggestResponse wraps tag autocomplete results.
type TagSuggestResponse struct {
	Tags []TagSuggestion `json:"tags"`
}
