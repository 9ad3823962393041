package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ostberg/folio/internal/assets"
	"github.com/ostberg/folio/internal/index"
	"github.com/ostberg/folio/internal/models"
	"github.com/ostberg/folio/internal/project"
	"github.com/ostberg/folio/internal/storage"
	"github.com/ostberg/folio/internal/store"
)

// testEnv sets up a temp site, SQLite tag index, service, and router.
// authToken="" means disabled mode; non-empty means token mode.
func testEnv(t *testing.T, authToken string) (*project.Service, http.Handler) {
	t.Helper()
	svc, router, _ := testEnvWithSite(t, authToken != "", authToken, nil)
	return svc, router
}

func testEnvWithSite(t *testing.T, authEnabled bool, authToken string, sseHandler http.Handler) (*project.Service, http.Handler, string) {
	t.Helper()

	siteDir := t.TempDir()
	fs, err := storage.NewFS(siteDir)
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}

	dbFile, err := os.CreateTemp("", "folio-api-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := index.Open(dbFile.Name())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	svc := project.NewService(store.NewSession(fs, "projects.yaml"), assets.NewStore(fs, "assets"))
	router := NewRouter(svc, db, authEnabled, authToken, sseHandler, filepath.Join(siteDir, "assets"))
	return svc, router, siteDir
}

func projectBody(t *testing.T, id string) []byte {
	t.Helper()
	body, err := json.Marshal(map[string]any{
		"id":           id,
		"title":        "Project " + id,
		"description":  "A test project.",
		"creationDate": "2024-03-01",
		"pageLink":     "https://example.com/" + id,
	})
	if err != nil {
		t.Fatal(err)
	}
	return body
}

func TestCreateAndGetProject(t *testing.T) {
	_, router := testEnv(t, "")

	req := httptest.NewRequest(http.MethodPost, "/projects", bytes.NewReader(projectBody(t, "hello")))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body = %s", w.Code, w.Body.String())
	}

	req = httptest.NewRequest(http.MethodGet, "/projects/hello", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("get status = %d", w.Code)
	}
	var p models.Project
	_ = json.Unmarshal(w.Body.Bytes(), &p)
	if p.ID != "hello" {
		t.Errorf("id = %q", p.ID)
	}
	if p.Title != "Project hello" {
		t.Errorf("title = %q", p.Title)
	}
}

func TestCreateDuplicate(t *testing.T) {
	_, router := testEnv(t, "")

	req := httptest.NewRequest(http.MethodPost, "/projects", bytes.NewReader(projectBody(t, "dup")))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusCreated {
		t.Fatalf("first create = %d", w.Code)
	}

	// Second create should 409.
	req = httptest.NewRequest(http.MethodPost, "/projects", bytes.NewReader(projectBody(t, "dup")))
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusConflict {
		t.Errorf("duplicate create = %d, want 409", w.Code)
	}
}

func TestCreateInvalidProject(t *testing.T) {
	_, router := testEnv(t, "")

	body, _ := json.Marshal(map[string]any{
		"id":    "Bad ID",
		"title": "No date",
	})
	req := httptest.NewRequest(http.MethodPost, "/projects", bytes.NewReader(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("invalid create = %d, want 400", w.Code)
	}
}

func TestUpdateProject(t *testing.T) {
	_, router := testEnv(t, "")

	req := httptest.NewRequest(http.MethodPost, "/projects", bytes.NewReader(projectBody(t, "edit")))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusCreated {
		t.Fatalf("create = %d", w.Code)
	}

	body, _ := json.Marshal(map[string]any{
		"id":           "edit",
		"title":        "Renamed",
		"description":  "Updated description.",
		"creationDate": "2024-03-01",
		"pageLink":     "https://example.com/edit",
	})
	req = httptest.NewRequest(http.MethodPut, "/projects/edit", bytes.NewReader(body))
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("update = %d, body = %s", w.Code, w.Body.String())
	}
	var p models.Project
	_ = json.Unmarshal(w.Body.Bytes(), &p)
	if p.Title != "Renamed" {
		t.Errorf("title = %q, want Renamed", p.Title)
	}
}

func TestUpdateProject_IDImmutable(t *testing.T) {
	_, router := testEnv(t, "")

	req := httptest.NewRequest(http.MethodPost, "/projects", bytes.NewReader(projectBody(t, "fixed")))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	body, _ := json.Marshal(map[string]any{
		"id":           "different",
		"title":        "Renamed",
		"description":  "x",
		"creationDate": "2024-03-01",
		"pageLink":     "https://example.com/x",
	})
	req = httptest.NewRequest(http.MethodPut, "/projects/fixed", bytes.NewReader(body))
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("id change = %d, want 400", w.Code)
	}
}

func TestDeleteProject(t *testing.T) {
	_, router := testEnv(t, "")

	req := httptest.NewRequest(http.MethodPost, "/projects", bytes.NewReader(projectBody(t, "bye")))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	req = httptest.NewRequest(http.MethodDelete, "/projects/bye", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusNoContent {
		t.Errorf("delete = %d, want 204", w.Code)
	}

	// GET should now 404.
	req = httptest.NewRequest(http.MethodGet, "/projects/bye", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Errorf("get after delete = %d, want 404", w.Code)
	}
}

func TestListProjects(t *testing.T) {
	_, router := testEnv(t, "")

	for _, id := range []string{"alpha", "beta"} {
		req := httptest.NewRequest(http.MethodPost, "/projects", bytes.NewReader(projectBody(t, id)))
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
	}

	req := httptest.NewRequest(http.MethodGet, "/projects", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("list = %d", w.Code)
	}
	var resp ProjectListResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Total != 2 || len(resp.Projects) != 2 {
		t.Errorf("total = %d, len = %d, want 2", resp.Total, len(resp.Projects))
	}
}

func TestListProjects_EmptySite(t *testing.T) {
	_, router := testEnv(t, "")

	req := httptest.NewRequest(http.MethodGet, "/projects", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("list = %d", w.Code)
	}
	if !bytes.Contains(w.Body.Bytes(), []byte(`"projects":[]`)) {
		t.Errorf("empty list should encode as [], got %s", w.Body.String())
	}
}

// Thumbnail staging tests.

func TestStageThumbnailAndCreate(t *testing.T) {
	_, router, siteDir := testEnvWithSite(t, false, "", nil)

	// Stage an image for a project that does not exist yet.
	req := httptest.NewRequest(http.MethodPost, "/projects/shiny/thumbnail", bytes.NewReader([]byte("png-bytes")))
	req.Header.Set("Content-Type", "image/png")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusCreated {
		t.Fatalf("stage = %d, body = %s", w.Code, w.Body.String())
	}
	var tr ThumbnailResponse
	_ = json.Unmarshal(w.Body.Bytes(), &tr)
	if tr.Ref != "asset://shiny.temp.png" {
		t.Errorf("ref = %q", tr.Ref)
	}

	// Creating the record commits the staged file.
	req = httptest.NewRequest(http.MethodPost, "/projects", bytes.NewReader(projectBody(t, "shiny")))
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusCreated {
		t.Fatalf("create = %d, body = %s", w.Code, w.Body.String())
	}
	var p models.Project
	_ = json.Unmarshal(w.Body.Bytes(), &p)
	if p.ThumbnailLink != "asset://shiny.png" {
		t.Errorf("thumbnailLink = %q", p.ThumbnailLink)
	}
	if _, err := os.Stat(filepath.Join(siteDir, "assets", "shiny.png")); err != nil {
		t.Errorf("committed asset missing: %v", err)
	}
}

func TestStageThumbnail_UnsupportedType(t *testing.T) {
	_, router := testEnv(t, "")

	req := httptest.NewRequest(http.MethodPost, "/projects/p1/thumbnail", bytes.NewReader([]byte("<svg/>")))
	req.Header.Set("Content-Type", "image/svg+xml")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusUnsupportedMediaType {
		t.Errorf("svg stage = %d, want 415", w.Code)
	}
}

func TestCancelEdit(t *testing.T) {
	_, router, siteDir := testEnvWithSite(t, false, "", nil)

	req := httptest.NewRequest(http.MethodPost, "/projects/draft/thumbnail", bytes.NewReader([]byte("data")))
	req.Header.Set("Content-Type", "image/png")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusCreated {
		t.Fatalf("stage = %d", w.Code)
	}

	req = httptest.NewRequest(http.MethodDelete, "/projects/draft/thumbnail", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusNoContent {
		t.Errorf("cancel = %d, want 204", w.Code)
	}
	if _, err := os.Stat(filepath.Join(siteDir, "assets", "draft.temp.png")); !os.IsNotExist(err) {
		t.Error("staged file should be gone after cancel")
	}

	// Cancel with nothing staged is still a 204.
	req = httptest.NewRequest(http.MethodDelete, "/projects/draft/thumbnail", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusNoContent {
		t.Errorf("second cancel = %d, want 204", w.Code)
	}
}

// Tag suggestion tests.

func TestSuggestTags(t *testing.T) {
	siteDir := t.TempDir()
	fs, err := storage.NewFS(siteDir)
	if err != nil {
		t.Fatal(err)
	}
	db, err := index.Open(filepath.Join(t.TempDir(), "tags.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	svc := project.NewService(store.NewSession(fs, "projects.yaml"), assets.NewStore(fs, "assets"))
	router := NewRouter(svc, db, false, "", nil, filepath.Join(siteDir, "assets"))

	body, _ := json.Marshal(map[string]any{
		"id":           "tagged",
		"title":        "Tagged",
		"description":  "x",
		"creationDate": "2024-01-01",
		"pageLink":     "https://example.com/tagged",
		"tags":         []string{"golang", "graphics"},
	})
	req := httptest.NewRequest(http.MethodPost, "/projects", bytes.NewReader(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusCreated {
		t.Fatalf("create = %d", w.Code)
	}

	// The index is rebuilt by the serve loop in production; do it by hand here.
	col, err := svc.List(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if err := db.Rebuild(col.Projects); err != nil {
		t.Fatal(err)
	}

	req = httptest.NewRequest(http.MethodGet, "/tags/suggest?q=go", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("suggest = %d", w.Code)
	}
	var resp TagSuggestResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if len(resp.Tags) != 1 || resp.Tags[0].Name != "golang" {
		t.Errorf("tags = %+v, want single golang", resp.Tags)
	}
}

// Asset serving tests.

func TestServeAsset(t *testing.T) {
	_, router, siteDir := testEnvWithSite(t, false, "", nil)

	if err := os.MkdirAll(filepath.Join(siteDir, "assets"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(siteDir, "assets", "pic.png"), []byte("img"), 0o644); err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(http.MethodGet, "/assets/pic.png", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("serve asset = %d", w.Code)
	}
	if w.Body.String() != "img" {
		t.Errorf("body = %q", w.Body.String())
	}
}

func TestServeAsset_NotFound(t *testing.T) {
	ah := NewAssetHandler(t.TempDir())
	r := chi.NewRouter()
	r.Get("/assets/{filename}", ah.ServeFile)

	req := httptest.NewRequest(http.MethodGet, "/assets/nope.png", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Errorf("missing asset = %d, want 404", w.Code)
	}
}

func TestServeAsset_TraversalBlocked(t *testing.T) {
	ah := NewAssetHandler(t.TempDir())
	r := chi.NewRouter()
	r.Get("/assets/{filename}", ah.ServeFile)

	for _, name := range []string{"..%2Fsecret.yaml", "..%2F..%2Fetc%2Fpasswd"} {
		req := httptest.NewRequest(http.MethodGet, "/assets/"+name, nil)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		if w.Code == http.StatusOK {
			t.Errorf("traversal %q should not return 200", name)
		}
	}
}

// Auth middleware tests.

func TestAuthMiddleware_ValidToken(t *testing.T) {
	_, router := testEnv(t, "secret123")

	req := httptest.NewRequest(http.MethodPost, "/projects", bytes.NewReader(projectBody(t, "auth")))
	req.Header.Set("Authorization", "Bearer secret123")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusCreated {
		t.Errorf("authed create = %d, want 201", w.Code)
	}
}

func TestAuthMiddleware_MissingToken(t *testing.T) {
	_, router := testEnv(t, "secret123")

	req := httptest.NewRequest(http.MethodGet, "/projects", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("unauthed = %d, want 401", w.Code)
	}
}

func TestAuthMiddleware_WrongToken(t *testing.T) {
	_, router := testEnv(t, "secret123")

	req := httptest.NewRequest(http.MethodGet, "/projects", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("wrong token = %d, want 401", w.Code)
	}
}

func TestAuthMiddleware_Disabled(t *testing.T) {
	_, router := testEnv(t, "")

	req := httptest.NewRequest(http.MethodGet, "/projects", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("no auth = %d, want 200", w.Code)
	}
}

func TestGetProject_NotFound(t *testing.T) {
	_, router := testEnv(t, "")

	req := httptest.NewRequest(http.MethodGet, "/projects/nope", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Errorf("missing project = %d, want 404", w.Code)
	}
}

func TestUpdateProject_NotFound(t *testing.T) {
	_, router := testEnv(t, "")

	body, _ := json.Marshal(map[string]any{
		"title":        "Ghost",
		"description":  "x",
		"creationDate": "2024-01-01",
		"pageLink":     "https://example.com/ghost",
	})
	req := httptest.NewRequest(http.MethodPut, "/projects/ghost", bytes.NewReader(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Errorf("update missing = %d, want 404", w.Code)
	}
}

// SSE endpoint auth tests.

func sseStub() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
		<-r.Context().Done()
	})
}

func TestSSEEvents_AuthProtected(t *testing.T) {
	_, router, _ := testEnvWithSite(t, true, "secret", sseStub())

	req := httptest.NewRequest(http.MethodGet, "/events", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("SSE no auth = %d, want 401", w.Code)
	}
}

func TestSSEEvents_ValidToken(t *testing.T) {
	_, router, _ := testEnvWithSite(t, true, "tok", sseStub())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/events", nil).WithContext(ctx)
	req.Header.Set("Authorization", "Bearer tok")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code == http.StatusUnauthorized {
		t.Error("SSE with valid token should not 401")
	}
}
