// Package metadataprovider reads PC-side audio tags for diff-engine
// comparison and writes rating/play-count tags back after a sync
// (§4.7 executor stages 5 and 6). Reads are grounded on the teacher's
// internal/metadata/metadata.go use of dhowden/tag; writes are grounded
// on internal/metadata/taglib_support.go's use of a TagLib binding,
// here go.senan.xyz/taglib, used unconditionally rather than behind a
// build tag since write-back is a core operation, not an optional one.
package metadataprovider

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/dhowden/tag"
	taglib "go.senan.xyz/taglib"
)

// Tags holds the PC-side fields the diff engine compares against the
// on-device track record.
type Tags struct {
	Title       string
	Artist      string
	Album       string
	Genre       string
	Year        int
	TrackNumber int
	DiscNumber  int
	// Rating0to100 is the star rating already normalized to the
	// 0-100 scale used throughout the sync engine (§3 "Track record
	// invariants": "rating in [0,100] representable as stars × 20").
	Rating0to100 uint32
	HasRating    bool
}

// Provider is the PC-side tag capability the executor and diff engine
// depend on. A single interface keeps both callers agnostic to the
// concrete tag library.
type Provider interface {
	Read(path string) (Tags, error)
	WriteRating(path string, rating0to100 uint32) error
	WritePlayCount(path string, delta uint32) error
}

// ratingProperty and playCountProperty are the generic property keys
// passed to TagLib's property map. TagLib maps generic properties onto
// the native per-format frame (POPM for MP3, a freeform atom for M4A,
// a plain comment for Vorbis/FLAC) on write.
const (
	ratingProperty    = "RATING"
	playCountProperty = "PLAYCOUNT"
)

// popmMax, freeformVorbisMax are the native scales §4.7 names per
// container; DefaultProvider converts the universal 0-100 rating into
// whichever scale the target extension calls for before handing it to
// TagLib.
const (
	popmMax           = 255
	freeformVorbisMax = 100
)

// DefaultProvider is the production Provider: dhowden/tag for reads
// (it tolerates a wider range of malformed/unusual container layouts
// than a strict writer needs to), go.senan.xyz/taglib for writes.
type DefaultProvider struct{}

// NewDefaultProvider constructs the production tag provider.
func NewDefaultProvider() *DefaultProvider {
	return &DefaultProvider{}
}

func (DefaultProvider) Read(path string) (Tags, error) {
	f, err := os.Open(path)
	if err != nil {
		return Tags{}, fmt.Errorf("metadataprovider: open %s: %w", path, err)
	}
	defer f.Close()

	m, err := tag.ReadFrom(f)
	if err != nil {
		return Tags{}, fmt.Errorf("metadataprovider: read tags from %s: %w", path, err)
	}

	trackNum, _ := m.Track()
	discNum, _ := m.Disc()

	out := Tags{
		Title:       m.Title(),
		Artist:      m.Artist(),
		Album:       m.Album(),
		Genre:       m.Genre(),
		Year:        m.Year(),
		TrackNumber: trackNum,
		DiscNumber:  discNum,
	}

	if raw, ok := m.Raw()[ratingProperty].(string); ok {
		if strings.EqualFold(filepath.Ext(path), ".mp3") {
			// MP3 ratings are stored on the POPM 0-255 scale.
			if v, err := strconv.ParseUint(strings.TrimSpace(raw), 10, 32); err == nil && v <= popmMax {
				out.Rating0to100 = uint32(v * 100 / popmMax)
				out.HasRating = true
			}
		} else if rating, ok := parseRating(raw); ok {
			out.Rating0to100 = rating
			out.HasRating = true
		}
	}

	return out, nil
}

func (DefaultProvider) WriteRating(path string, rating0to100 uint32) error {
	if rating0to100 > 100 {
		rating0to100 = 100
	}

	value := rating0to100
	if strings.EqualFold(filepath.Ext(path), ".mp3") {
		value = rating0to100 * popmMax / 100
	} else {
		value = rating0to100 * freeformVorbisMax / 100
	}

	tags := map[string][]string{ratingProperty: {strconv.FormatUint(uint64(value), 10)}}
	if err := taglib.WriteTags(path, tags, 0); err != nil {
		return fmt.Errorf("metadataprovider: write rating to %s: %w", path, err)
	}
	return nil
}

func (DefaultProvider) WritePlayCount(path string, delta uint32) error {
	current, err := taglib.ReadTags(path)
	if err != nil {
		return fmt.Errorf("metadataprovider: read play count from %s: %w", path, err)
	}

	existing := uint64(0)
	if raw, ok := current[playCountProperty]; ok && len(raw) > 0 {
		existing, _ = strconv.ParseUint(strings.TrimSpace(raw[0]), 10, 32)
	}

	tags := map[string][]string{playCountProperty: {strconv.FormatUint(existing+uint64(delta), 10)}}
	if err := taglib.WriteTags(path, tags, 0); err != nil {
		return fmt.Errorf("metadataprovider: write play count to %s: %w", path, err)
	}
	return nil
}

func parseRating(raw string) (uint32, bool) {
	v, err := strconv.ParseUint(strings.TrimSpace(raw), 10, 32)
	if err != nil {
		return 0, false
	}
	// Stored native scale varies by container; normalize the common
	// cases back to 0-100 the same way WriteRating expands them.
	switch {
	case v > 100 && v <= popmMax:
		return uint32(v * 100 / popmMax), true
	case v <= 100:
		return uint32(v), true
	default:
		return 100, true
	}
}
