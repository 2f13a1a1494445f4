package transcode

import (
	"fmt"

	"github.com/cockroachdb/pebble/v2"
)

// PebbleCache is the content-addressed transcode cache backend for
// real runs, keyed exactly as CacheKey produces. Grounded on the
// teacher's internal/database/pebble_store.go key-schema idiom: one
// flat keyspace, string keys, small values (here, an output file path
// rather than a JSON record).
type PebbleCache struct {
	db *pebble.DB
}

// OpenPebbleCache opens (creating if needed) the cache database at path.
func OpenPebbleCache(path string) (*PebbleCache, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("transcode: open pebble cache: %w", err)
	}
	return &PebbleCache{db: db}, nil
}

func (c *PebbleCache) Get(key string) (string, bool) {
	value, closer, err := c.db.Get([]byte(key))
	if err != nil {
		return "", false
	}
	defer closer.Close()
	out := make([]byte, len(value))
	copy(out, value)
	return string(out), true
}

func (c *PebbleCache) Set(key, path string) {
	_ = c.db.Set([]byte(key), []byte(path), pebble.Sync)
}

func (c *PebbleCache) Invalidate(key string) {
	_ = c.db.Delete([]byte(key), pebble.Sync)
}

// Close releases the underlying database handle.
func (c *PebbleCache) Close() error {
	return c.db.Close()
}
