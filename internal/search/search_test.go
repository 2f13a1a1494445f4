package search

import (
	"path/filepath"
	"testing"

	"github.com/ipodsync/core/internal/itunesdb"
)

func testDB() *itunesdb.Database {
	return &itunesdb.Database{
		Tracks: []itunesdb.Track{
			{DBID: 1, Title: "Come Together", Artist: "The Beatles", Album: "Abbey Road"},
			{DBID: 2, Title: "Paranoid Android", Artist: "Radiohead", Album: "OK Computer"},
		},
	}
}

func TestRebuildAndQuery(t *testing.T) {
	idx, err := Open(filepath.Join(t.TempDir(), "idx.bleve"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer idx.Close()

	if err := idx.Rebuild(testDB()); err != nil {
		t.Fatalf("Rebuild: %v", err)
	}

	dbids, err := idx.Query("Beatles", 10)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(dbids) != 1 || dbids[0] != 1 {
		t.Errorf("Query(Beatles) = %v, want [1]", dbids)
	}
}

func TestQueryNoMatches(t *testing.T) {
	idx, err := Open(filepath.Join(t.TempDir(), "idx.bleve"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer idx.Close()

	if err := idx.Rebuild(testDB()); err != nil {
		t.Fatalf("Rebuild: %v", err)
	}

	dbids, err := idx.Query("nonexistentband", 10)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(dbids) != 0 {
		t.Errorf("Query(nonexistentband) = %v, want empty", dbids)
	}
}

func TestRebuildReplacesPriorContents(t *testing.T) {
	idx, err := Open(filepath.Join(t.TempDir(), "idx.bleve"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer idx.Close()

	if err := idx.Rebuild(testDB()); err != nil {
		t.Fatalf("Rebuild: %v", err)
	}

	smaller := &itunesdb.Database{Tracks: []itunesdb.Track{{DBID: 2, Title: "Paranoid Android", Artist: "Radiohead", Album: "OK Computer"}}}
	if err := idx.Rebuild(smaller); err != nil {
		t.Fatalf("second Rebuild: %v", err)
	}

	dbids, err := idx.Query("Beatles", 10)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(dbids) != 0 {
		t.Errorf("expected stale Beatles entry to be gone after Rebuild, got %v", dbids)
	}
}
