package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/ostberg/folio/internal/apperr"
	"github.com/ostberg/folio/internal/index"
	"github.com/ostberg/folio/internal/models"
	"github.com/ostberg/folio/internal/project"
)

// Handler holds API route handlers. tags may be nil when the tag index is
// not configured; suggestions then come back empty.
type Handler struct {
	svc  *project.Service
	tags *index.DB
}

// NewHandler creates a new Handler.
func NewHandler(svc *project.Service, tags *index.DB) *Handler {
	return &Handler{svc: svc, tags: tags}
}

// writeProjectError maps domain errors onto HTTP statuses.
func writeProjectError(w http.ResponseWriter, op string, err error) {
	var verrs validation.Errors
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
	case errors.Is(err, apperr.ErrDuplicateID):
		writeJSON(w, http.StatusConflict, errorBody("id already exists"))
	case errors.As(err, &verrs):
		writeJSON(w, http.StatusBadRequest, errorBody(verrs.Error()))
	case errors.Is(err, apperr.ErrParse):
		slog.Error(op+" failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("collection file is malformed"))
	default:
		slog.Error(op+" failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
	}
}

// ListProjects handles GET /api/projects.
func (h *Handler) ListProjects(w http.ResponseWriter, r *http.Request) {
	col, err := h.svc.List(r.Context())
	if err != nil {
		writeProjectError(w, "list projects", err)
		return
	}
	projects := col.Projects
	if projects == nil {
		projects = []models.Project{}
	}
	writeJSON(w, http.StatusOK, ProjectListResponse{
		Projects: projects,
		Total:    len(projects),
	})
}

// GetProject handles GET /api/projects/{id}.
func (h *Handler) GetProject(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	p, err := h.svc.Get(r.Context(), id)
	if err != nil {
		writeProjectError(w, "get project", err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// CreateProject handles POST /api/projects.
func (h *Handler) CreateProject(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	var p models.Project
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	created, err := h.svc.CreateProject(r.Context(), p)
	if err != nil {
		writeProjectError(w, "create project", err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// UpdateProject handles PUT /api/projects/{id}.
func (h *Handler) UpdateProject(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	id := chi.URLParam(r, "id")
	var p models.Project
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if p.ID != "" && p.ID != id {
		writeJSON(w, http.StatusBadRequest, errorBody("id is immutable"))
		return
	}
	updated, err := h.svc.UpdateProject(r.Context(), id, p)
	if err != nil {
		writeProjectError(w, "update project", err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// DeleteProject handles DELETE /api/projects/{id}.
func (h *Handler) DeleteProject(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.svc.DeleteProject(r.Context(), id); err != nil {
		writeProjectError(w, "delete project", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// StageThumbnail handles POST /api/projects/{id}/thumbnail. The raw image
// bytes go in the body; Content-Type declares the image type. The file is
// staged, not committed: it becomes the record's thumbnail only when the
// record is next saved.
func (h *Handler) StageThumbnail(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	mimeType := r.Header.Get("Content-Type")

	r.Body = http.MaxBytesReader(w, r.Body, 6<<20)
	data, err := io.ReadAll(r.Body)
	if err != nil {
		writeJSON(w, http.StatusRequestEntityTooLarge, errorBody("image too large"))
		return
	}

	ref, err := h.svc.StageThumbnail(r.Context(), id, data, mimeType)
	if err != nil {
		switch {
		case errors.Is(err, apperr.ErrUnsupportedType):
			writeJSON(w, http.StatusUnsupportedMediaType, errorBody("unsupported image type"))
		case errors.Is(err, apperr.ErrTooLarge):
			writeJSON(w, http.StatusRequestEntityTooLarge, errorBody("image too large"))
		default:
			writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		}
		return
	}
	writeJSON(w, http.StatusCreated, ThumbnailResponse{
		Ref:  ref.String(),
		Size: int64(len(data)),
	})
}

// CancelEdit handles DELETE /api/projects/{id}/thumbnail. Discards the staged
// file, if any; safe to call repeatedly.
func (h *Handler) CancelEdit(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.svc.CancelEdit(r.Context(), id); err != nil {
		slog.Error("cancel edit failed", slog.String("id", id), slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SuggestTags handles GET /api/tags/suggest.
func (h *Handler) SuggestTags(w http.ResponseWriter, r *http.Request) {
	if h.tags == nil {
		writeJSON(w, http.StatusOK, TagSuggestResponse{Tags: []TagSuggestion{}})
		return
	}
	prefix := r.URL.Query().Get("q")
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	counts, err := h.tags.Suggest(prefix, limit)
	if err != nil {
		slog.Error("tag suggest failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	tags := make([]TagSuggestion, 0, len(counts))
	for _, c := range counts {
		tags = append(tags, TagSuggestion{Name: c.Name, Count: c.Count})
	}
	writeJSON(w, http.StatusOK, TagSuggestResponse{Tags: tags})
}
