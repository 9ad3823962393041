package index

import (
	"os"
	"testing"

	"github.com/ostberg/folio/internal/models"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	f, err := os.CreateTemp("", "folio-index-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	f.Close()
	t.Cleanup(func() { os.Remove(f.Name()) })

	db, err := Open(f.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func projectsWithTags(tagSets ...[]string) []models.Project {
	out := make([]models.Project, len(tagSets))
	for i, tags := range tagSets {
		out[i] = models.Project{Tags: tags}
	}
	return out
}

func TestRebuildAndSuggest(t *testing.T) {
	db := testDB(t)
	err := db.Rebuild(projectsWithTags(
		[]string{"go", "web"},
		[]string{"go", "cli"},
		[]string{"go"},
	))
	if err != nil {
		t.Fatalf("Rebuild: %v", err)
	}

	got, err := db.Suggest("g", 10)
	if err != nil {
		t.Fatalf("Suggest: %v", err)
	}
	if len(got) != 1 || got[0].Name != "go" || got[0].Count != 3 {
		t.Errorf("suggest(g) = %v", got)
	}

	all, err := db.Suggest("", 10)
	if err != nil {
		t.Fatalf("Suggest: %v", err)
	}
	if len(all) != 3 || all[0].Name != "go" {
		t.Errorf("suggest('') = %v", all)
	}
}

func TestRebuildReplacesOldTags(t *testing.T) {
	db := testDB(t)
	if err := db.Rebuild(projectsWithTags([]string{"stale"})); err != nil {
		t.Fatal(err)
	}
	if err := db.Rebuild(projectsWithTags([]string{"fresh"})); err != nil {
		t.Fatal(err)
	}
	got, err := db.Suggest("", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Name != "fresh" {
		t.Errorf("suggest = %v", got)
	}
}

func TestSuggestNoMatches(t *testing.T) {
	db := testDB(t)
	if err := db.Rebuild(nil); err != nil {
		t.Fatal(err)
	}
	got, err := db.Suggest("zzz", 5)
	if err != nil {
		t.Fatal(err)
	}
	if got == nil || len(got) != 0 {
		t.Errorf("suggest = %v, want empty non-nil", got)
	}
}

func TestSuggestLimitClamped(t *testing.T) {
	db := testDB(t)
	if err := db.Rebuild(projectsWithTags([]string{"a", "b", "c"})); err != nil {
		t.Fatal(err)
	}
	got, err := db.Suggest("", 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Errorf("len = %d, want 2", len(got))
	}
}
