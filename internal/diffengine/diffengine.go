// Package diffengine groups PC-side tracks by identity, matches them
// against the mapping store, and produces a categorized SyncPlan for
// the executor (§4.6).
package diffengine

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"

	"github.com/ipodsync/core/internal/mapping"
)

// PCTrack is one track discovered on the PC side of the library, with
// its fingerprint already computed.
type PCTrack struct {
	Path          string
	Fingerprint   string
	Size          int64
	MTime         int64
	Title         string
	Artist        string
	Album         string
	AlbumArtist   string
	Genre         string
	Year          int
	TrackNumber   int
	DiscNumber    int
	Rating        uint32 // stars * 20, read from the PC file's own rating tag
	ArtHash       string // "none" if the track carries no embedded artwork
	FormatInfo    string
}

// IPodTrack is the subset of an iTunesDB track record the diff engine
// needs to detect play-count and rating changes and missing artwork.
type IPodTrack struct {
	DBID          uint64
	Rating        uint32
	PlayCount2    uint32
	ArtworkCount  int
	MHIILink      uint32
}

// ActionKind discriminates SyncAction's variants (§3 "SyncAction").
type ActionKind int

const (
	ActionAdd ActionKind = iota
	ActionRemove
	ActionUpdateFile
	ActionUpdateMetadata
	ActionUpdateArtwork
	ActionSyncPlayCount
	ActionSyncRating
)

// SyncAction is one planned mutation. Not every field is populated for
// every Kind: Remove only needs DBID; Add only needs PC and AlbumKey;
// the Update* variants need both DBID and PC (or just the delta).
type SyncAction struct {
	Kind          ActionKind
	DBID          uint64
	PC            *PCTrack
	MappingEntry  *mapping.Entry
	AlbumKey      string
	ChangedFields []string
	NewArtHash    string
	PlayCountDelta uint32
	ResolvedRating uint32
	SizeDelta     int64
}

// DuplicateGroup reports PC files sharing identity that were collapsed
// to a single canonical source (§4.6 "Grouping").
type DuplicateGroup struct {
	Fingerprint string
	AlbumKey    string
	Canonical   string
	Duplicates  []string
}

// UnresolvedCollision reports a fingerprint+album_key group with more
// than one unclaimed mapping candidate and no exact source_path_hint
// match (§4.6 "Matching").
type UnresolvedCollision struct {
	Fingerprint string
	AlbumKey    string
	PCPath      string
	Suggestions []SuggestedMatch
}

// SuggestedMatch is a fuzzy-ranked candidate entry for an unresolved
// collision, purely informational (§4.6 addition).
type SuggestedMatch struct {
	Entry mapping.Entry
	Score int
}

// StorageSummary totals the byte impact of a plan (§3 "SyncPlan").
type StorageSummary struct {
	BytesToAdd    int64
	BytesToRemove int64
	BytesToUpdate int64
	NetChange     int64
}

// SyncPlan is the diff engine's output: a categorized, ordered action
// list plus informational sections for a human or GUI to review.
type SyncPlan struct {
	Actions              []SyncAction
	Duplicates           []DuplicateGroup
	UnresolvedCollisions []UnresolvedCollision
	MissingArtwork       []uint64
	FingerprintErrors    []string
	Storage              StorageSummary
}

// AlbumKey derives the grouping/matching secondary key: lowercased,
// stripped album title (§GLOSSARY "album_key").
func AlbumKey(album string) string {
	return strings.ToLower(strings.TrimSpace(album))
}

type group struct {
	fingerprint string
	albumKey    string
	canonical   PCTrack
	duplicates  []string
}

// groupByIdentity implements §4.6 "Grouping": PC tracks are grouped by
// (fingerprint, album_key); the first file in input order is the
// canonical source, any others are reported as true duplicates.
func groupByIdentity(tracks []PCTrack) ([]group, []DuplicateGroup) {
	order := make([]string, 0)
	groups := make(map[string]*group)

	for _, t := range tracks {
		key := t.Fingerprint + "\x00" + AlbumKey(t.Album)
		g, ok := groups[key]
		if !ok {
			g = &group{fingerprint: t.Fingerprint, albumKey: AlbumKey(t.Album), canonical: t}
			groups[key] = g
			order = append(order, key)
			continue
		}
		g.duplicates = append(g.duplicates, t.Path)
	}

	out := make([]group, 0, len(order))
	var dupReports []DuplicateGroup
	for _, key := range order {
		g := groups[key]
		out = append(out, *g)
		if len(g.duplicates) > 0 {
			dupReports = append(dupReports, DuplicateGroup{
				Fingerprint: g.fingerprint,
				AlbumKey:    g.albumKey,
				Canonical:   g.canonical.Path,
				Duplicates:  append([]string{}, g.duplicates...),
			})
		}
	}
	return out, dupReports
}

// fileChanged implements the size+mtime rule from §4.6 "File change":
// changed if size differs by more than max(1%, 10 KB) AND mtime differs.
func fileChanged(entry mapping.Entry, pc PCTrack) bool {
	if entry.SourceMTime == pc.MTime {
		return false
	}
	threshold := int64(math.Max(float64(entry.SourceSize)*0.01, 10*1024))
	delta := entry.SourceSize - pc.Size
	if delta < 0 {
		delta = -delta
	}
	return delta > threshold
}

func metadataChangedFields(entry mapping.Entry, pc PCTrack, prior IPodMetadata) []string {
	var changed []string
	if prior.Title != pc.Title {
		changed = append(changed, "title")
	}
	if prior.Artist != pc.Artist {
		changed = append(changed, "artist")
	}
	if prior.Album != pc.Album {
		changed = append(changed, "album")
	}
	if prior.AlbumArtist != pc.AlbumArtist {
		changed = append(changed, "album_artist")
	}
	if prior.Genre != pc.Genre {
		changed = append(changed, "genre")
	}
	if prior.Year != pc.Year {
		changed = append(changed, "year")
	}
	if prior.TrackNumber != pc.TrackNumber {
		changed = append(changed, "track_number")
	}
	if prior.DiscNumber != pc.DiscNumber {
		changed = append(changed, "disc_number")
	}
	return changed
}

// IPodMetadata is the subset of fields compared for metadata change
// detection, read from the iPod-side track record.
type IPodMetadata struct {
	Title, Artist, Album, AlbumArtist, Genre string
	Year, TrackNumber, DiscNumber            int
}

// MD5Hex hashes embedded artwork bytes for art_hash comparison, or
// returns "none" for tracks with no artwork.
func MD5Hex(artBytes []byte) string {
	if len(artBytes) == 0 {
		return "none"
	}
	sum := md5.Sum(artBytes)
	return hex.EncodeToString(sum[:])
}

// Build runs grouping, matching, change detection, removal detection,
// and missing-artwork detection, returning the finished plan (§4.6).
// ipodMeta and ipodTracks are keyed by dbid and must reflect the
// working set after the integrity checker has already run.
func Build(pcTracks []PCTrack, store mapping.Store, ipodMeta map[uint64]IPodMetadata, ipodTracks map[uint64]IPodTrack) SyncPlan {
	var plan SyncPlan

	groups, dupReports := groupByIdentity(pcTracks)
	plan.Duplicates = dupReports

	claimed := make(map[string]bool) // "fingerprint\x00dbid"

	for _, g := range groups {
		entries := store.Lookup(g.fingerprint)

		var candidates []mapping.Entry
		for _, e := range entries {
			if e.AlbumKey == g.albumKey && !claimed[claimKey(e)] {
				candidates = append(candidates, e)
			}
		}

		switch len(candidates) {
		case 0:
			pc := g.canonical
			plan.Actions = append(plan.Actions, SyncAction{
				Kind:      ActionAdd,
				PC:        &pc,
				AlbumKey:  g.albumKey,
				SizeDelta: pc.Size,
			})
			plan.Storage.BytesToAdd += pc.Size

		case 1:
			entry := candidates[0]
			claimed[claimKey(entry)] = true
			applyMatchedActions(&plan, g.canonical, entry, ipodMeta, ipodTracks)

		default:
			resolved := false
			for _, e := range candidates {
				if e.SourcePathHint == g.canonical.Path {
					claimed[claimKey(e)] = true
					applyMatchedActions(&plan, g.canonical, e, ipodMeta, ipodTracks)
					resolved = true
					break
				}
			}
			if !resolved {
				plan.UnresolvedCollisions = append(plan.UnresolvedCollisions, UnresolvedCollision{
					Fingerprint: g.fingerprint,
					AlbumKey:    g.albumKey,
					PCPath:      g.canonical.Path,
					Suggestions: suggestMatches(candidates, g.canonical.Path),
				})
			}
		}
	}

	// Removal detection (§4.6): any entry not claimed above is removed,
	// whether its fingerprint was absent from the PC set entirely or it
	// was simply left unclaimed among multiple candidates.
	for _, e := range store.All() {
		if claimed[claimKey(e)] {
			continue
		}
		plan.Actions = append(plan.Actions, SyncAction{
			Kind:         ActionRemove,
			DBID:         e.DBID,
			MappingEntry: &e,
			SizeDelta:    -e.SourceSize,
		})
		plan.Storage.BytesToRemove += e.SourceSize
	}

	plan.Storage.NetChange = plan.Storage.BytesToAdd - plan.Storage.BytesToRemove + plan.Storage.BytesToUpdate

	for dbid, t := range ipodTracks {
		if t.ArtworkCount == 0 || t.MHIILink == 0 {
			plan.MissingArtwork = append(plan.MissingArtwork, dbid)
		}
	}
	sort.Slice(plan.MissingArtwork, func(i, j int) bool { return plan.MissingArtwork[i] < plan.MissingArtwork[j] })

	return plan
}

func claimKey(e mapping.Entry) string {
	return fmt.Sprintf("%s\x00%d", e.Fingerprint, e.DBID)
}

func applyMatchedActions(plan *SyncPlan, pc PCTrack, entry mapping.Entry, ipodMeta map[uint64]IPodMetadata, ipodTracks map[uint64]IPodTrack) {
	if fileChanged(entry, pc) {
		plan.Actions = append(plan.Actions, SyncAction{Kind: ActionUpdateFile, DBID: entry.DBID, PC: &pc, MappingEntry: &entry})
		plan.Storage.BytesToUpdate += pc.Size
	}

	if prior, ok := ipodMeta[entry.DBID]; ok {
		if changed := metadataChangedFields(entry, pc, prior); len(changed) > 0 {
			plan.Actions = append(plan.Actions, SyncAction{Kind: ActionUpdateMetadata, DBID: entry.DBID, PC: &pc, MappingEntry: &entry, ChangedFields: changed})
		}
	}

	newArt := pc.ArtHash
	if newArt == "" {
		newArt = "none"
	}
	if newArt != entry.ArtHash {
		plan.Actions = append(plan.Actions, SyncAction{Kind: ActionUpdateArtwork, DBID: entry.DBID, PC: &pc, MappingEntry: &entry, NewArtHash: newArt})
	}

	if t, ok := ipodTracks[entry.DBID]; ok {
		if t.PlayCount2 > 0 {
			plan.Actions = append(plan.Actions, SyncAction{Kind: ActionSyncPlayCount, DBID: entry.DBID, PlayCountDelta: t.PlayCount2})
		}
		// iPod wins on rating conflicts (last-write), per §4.6.
		if t.Rating != pc.Rating && (t.Rating != 0 || pc.Rating != 0) {
			plan.Actions = append(plan.Actions, SyncAction{Kind: ActionSyncRating, DBID: entry.DBID, ResolvedRating: t.Rating})
		}
	}
}

// suggestMatches ranks up to 3 candidates by fuzzy similarity between
// their source_path_hint and the current PC path (§4.6 addition).
// RankMatchNormalized returns a Levenshtein-style distance (-1 when the
// strings don't fuzzy-match at all), so lower Score is a better match;
// non-matches are dropped. Grounded on the teacher's matcher package,
// which already imports lithammer/fuzzysearch/fuzzy for series-name
// matching.
func suggestMatches(candidates []mapping.Entry, pcPath string) []SuggestedMatch {
	matches := make([]SuggestedMatch, 0, len(candidates))
	for _, e := range candidates {
		rank := fuzzy.RankMatchNormalized(pcPath, e.SourcePathHint)
		if rank < 0 {
			continue
		}
		matches = append(matches, SuggestedMatch{Entry: e, Score: rank})
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].Score < matches[j].Score })
	if len(matches) > 3 {
		matches = matches[:3]
	}
	return matches
}
