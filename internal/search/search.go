// Package search maintains an offline full-text index over the
// on-device track list (title/artist/album), so `ipodsync search` can
// answer without touching the device after a sync. Grounded on
// blevesearch/bleve/v2's standard open-or-create-index pattern.
package search

import (
	"fmt"
	"os"
	"strconv"

	"github.com/blevesearch/bleve/v2"

	"github.com/ipodsync/core/internal/itunesdb"
)

// Doc is one indexed track.
type Doc struct {
	DBID   uint64 `json:"dbid"`
	Title  string `json:"title"`
	Artist string `json:"artist"`
	Album  string `json:"album"`
	Genre  string `json:"genre"`
}

// Index wraps a bleve.Index persisted at path, recreated wholesale by
// every Rebuild so a removed track never lingers as a stale hit.
type Index struct {
	bleve.Index
	path string
}

// Open opens the index at path, creating it with a default mapping if
// it doesn't exist yet.
func Open(path string) (*Index, error) {
	idx, err := openOrCreate(path)
	if err != nil {
		return nil, err
	}
	return &Index{Index: idx, path: path}, nil
}

func openOrCreate(path string) (bleve.Index, error) {
	idx, err := bleve.Open(path)
	if err == nil {
		return idx, nil
	}
	if !os.IsNotExist(err) && err != bleve.ErrorIndexPathDoesNotExist {
		return nil, fmt.Errorf("search: open %s: %w", path, err)
	}

	mapping := bleve.NewIndexMapping()
	idx, err = bleve.New(path, mapping)
	if err != nil {
		return nil, fmt.Errorf("search: create %s: %w", path, err)
	}
	return idx, nil
}

// Rebuild replaces the index contents with db's current track list,
// run once at the end of every successful sync (§ "offline full text
// index over the current on-device track list"). The prior index is
// discarded wholesale rather than diffed, since a full sync always
// re-derives the complete device track list anyway.
func (idx *Index) Rebuild(db *itunesdb.Database) error {
	if err := idx.Index.Close(); err != nil {
		return fmt.Errorf("search: close prior index: %w", err)
	}
	if err := os.RemoveAll(idx.path); err != nil {
		return fmt.Errorf("search: clear %s: %w", idx.path, err)
	}

	fresh, err := openOrCreate(idx.path)
	if err != nil {
		return err
	}
	idx.Index = fresh

	batch := idx.Index.NewBatch()
	for _, t := range db.Tracks {
		doc := Doc{DBID: t.DBID, Title: t.Title, Artist: t.Artist, Album: t.Album, Genre: t.Genre}
		if err := batch.Index(strconv.FormatUint(t.DBID, 10), doc); err != nil {
			return fmt.Errorf("search: index track %d: %w", t.DBID, err)
		}
	}
	return idx.Index.Batch(batch)
}

// Query runs a free-text search across title/artist/album/genre and
// returns the matching dbids, best match first.
func (idx *Index) Query(text string, limit int) ([]uint64, error) {
	q := bleve.NewQueryStringQuery(text)
	req := bleve.NewSearchRequestOptions(q, limit, 0, false)

	result, err := idx.Index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("search: query %q: %w", text, err)
	}

	out := make([]uint64, 0, len(result.Hits))
	for _, hit := range result.Hits {
		dbid, err := strconv.ParseUint(hit.ID, 10, 64)
		if err != nil {
			continue
		}
		out = append(out, dbid)
	}
	return out, nil
}
