package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ipodsync/core/internal/itunesdb"
	"github.com/ipodsync/core/internal/search"
)

var searchLimit int

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search the offline index of on-device track titles/artists/albums",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		idx, err := search.Open(cfg.SearchIndexPath)
		if err != nil {
			return fmt.Errorf("search: open index: %w", err)
		}
		defer idx.Close()

		dbids, err := idx.Query(args[0], searchLimit)
		if err != nil {
			return err
		}
		if len(dbids) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "search: no matches")
			return nil
		}

		titles := titlesByDBID(dbids)
		for _, dbid := range dbids {
			fmt.Fprintf(cmd.OutOrStdout(), "%d\t%s\n", dbid, titles[dbid])
		}
		return nil
	},
}

// titlesByDBID re-parses the on-device iTunesDB to print human-readable
// results, since search.Index.Query returns only the matching dbids.
func titlesByDBID(dbids []uint64) map[uint64]string {
	out := make(map[uint64]string, len(dbids))
	dbPath := filepath.Join(cfg.MountRoot, "iPod_Control", "iTunes", "iTunesDB")
	raw, err := os.ReadFile(dbPath)
	if err != nil {
		return out
	}
	db, err := itunesdb.Parse(raw)
	if err != nil {
		return out
	}
	want := make(map[uint64]bool, len(dbids))
	for _, id := range dbids {
		want[id] = true
	}
	for _, t := range db.Tracks {
		if want[t.DBID] {
			out[t.DBID] = fmt.Sprintf("%s — %s (%s)", t.Artist, t.Title, t.Album)
		}
	}
	return out
}

func init() {
	searchCmd.Flags().IntVar(&searchLimit, "limit", 20, "maximum number of results")
}
