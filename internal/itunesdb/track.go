package itunesdb

import (
	"fmt"
	"strings"
	"time"

	"github.com/ipodsync/core/internal/bytebuffer"
)

// sampleRateFixedPointShift is the scale factor applied to a sample
// rate in Hz before it is written to mhit's fixed-point field (§3:
// "sample rate encoded as hz × 65536").
const sampleRateFixedPointShift = 65536

// Track is the in-memory form of one mhit record plus its string
// children. See §3 "Track record invariants".
type Track struct {
	DBID         uint64
	TrackID      uint32
	FileType     string // four-character ASCII, e.g. "MP3 "
	MediaType    uint32
	Size         uint32
	DurationMS   uint32
	BitRateKbps  uint32
	SampleRateHz uint32
	TrackNumber  uint32
	TrackCount   uint32
	DiscNumber   uint32
	DiscCount    uint32
	Year         uint32
	Rating       uint32 // stars * 20, in [0, 100]
	PlayCount    uint32
	PlayCount2   uint32
	LastPlayed   time.Time
	DateModified time.Time
	DateAdded    time.Time
	MHIILink     uint32
	AlbumID      uint32

	Title       string
	Location    string
	Album       string
	Artist      string
	AlbumArtist string
	Genre       string
	Comment     string
}

// mhit fixed-field byte offsets, relative to the chunk's tag.
const (
	mhitOffNumChildren = 12
	mhitOffDBID        = 16
	mhitOffTrackID     = 24
	mhitOffFileType    = 28
	mhitOffMediaType   = 32
	mhitOffSize        = 36
	mhitOffDuration    = 40
	mhitOffBitRate     = 44
	mhitOffSampleRate  = 48
	mhitOffTrackNumber = 52
	mhitOffTrackCount  = 56
	mhitOffDiscNumber  = 60
	mhitOffDiscCount   = 64
	mhitOffYear        = 68
	mhitOffRating      = 72
	mhitOffPlayCount   = 76
	mhitOffPlayCount2  = 80
	mhitOffLastPlayed  = 84
	mhitOffDateMod     = 88
	mhitOffDateAdded   = 92
	mhitOffMHIILink    = 96
	mhitOffAlbumID     = 100
)

func readTrack(data []byte, offset int) (Track, int, error) {
	hdr, err := readChunkHeader(data, offset)
	if err != nil {
		return Track{}, 0, err
	}
	if hdr.Tag != tagTrack {
		return Track{}, 0, fmt.Errorf("%w: expected mhit, got %q", ErrBadMagic, hdr.Tag)
	}
	if int(hdr.HeaderLength) < mhitOffAlbumID+4 || offset+int(hdr.HeaderLength) > len(data) {
		return Track{}, 0, fmt.Errorf("%w: mhit header_length %d too small", ErrTruncated, hdr.HeaderLength)
	}

	u32 := func(off int) uint32 {
		v, _ := readU32LE(data, offset+off)
		return v
	}
	u64 := func(off int) uint64 {
		v, _ := readU64LE(data, offset+off)
		return v
	}

	t := Track{
		DBID:         u64(mhitOffDBID),
		TrackID:      u32(mhitOffTrackID),
		FileType:     strings.TrimRight(string(data[offset+mhitOffFileType:offset+mhitOffFileType+4]), "\x00"),
		MediaType:    u32(mhitOffMediaType),
		Size:         u32(mhitOffSize),
		DurationMS:   u32(mhitOffDuration),
		BitRateKbps:  u32(mhitOffBitRate),
		SampleRateHz: u32(mhitOffSampleRate) / sampleRateFixedPointShift,
		TrackNumber:  u32(mhitOffTrackNumber),
		TrackCount:   u32(mhitOffTrackCount),
		DiscNumber:   u32(mhitOffDiscNumber),
		DiscCount:    u32(mhitOffDiscCount),
		Year:         u32(mhitOffYear),
		Rating:       u32(mhitOffRating),
		PlayCount:    u32(mhitOffPlayCount),
		PlayCount2:   u32(mhitOffPlayCount2),
		LastPlayed:   macTimeToTime(u32(mhitOffLastPlayed)),
		DateModified: macTimeToTime(u32(mhitOffDateMod)),
		DateAdded:    macTimeToTime(u32(mhitOffDateAdded)),
		MHIILink:     u32(mhitOffMHIILink),
		AlbumID:      u32(mhitOffAlbumID),
	}

	childOffset := offset + int(hdr.HeaderLength)
	end := offset + int(hdr.TotalLength)
	for childOffset+8 <= end {
		tag, err := readTag(data, childOffset)
		if err != nil {
			return Track{}, 0, err
		}
		if tag != tagString {
			// Unknown trailing sub-chunk: stop reading children. The
			// sub-chunk is not recorded in Database.Unknown.
			break
		}
		child, next, err := readMhod(data, childOffset)
		if err != nil {
			return Track{}, 0, err
		}
		switch child.Type {
		case MhodTitle:
			t.Title = child.Value
		case MhodLocation:
			t.Location = child.Value
		case MhodAlbum:
			t.Album = child.Value
		case MhodArtist:
			t.Artist = child.Value
		case MhodAlbumArtist:
			t.AlbumArtist = child.Value
		case MhodGenre:
			t.Genre = child.Value
		case MhodComment:
			t.Comment = child.Value
		}
		childOffset = next
	}

	return t, end, nil
}

func writeTrack(buf *bytebuffer.Buffer, t Track) {
	mark := buf.StartContainer(8)
	buf.Append([]byte(tagTrack))
	buf.WriteU32LE(mhitHeaderLen)
	buf.WriteU32LE(0) // total_length, patched below

	children := stringChildren(t)
	buf.WriteU32LE(uint32(len(children)))
	buf.WriteU64LE(t.DBID)
	buf.WriteU32LE(t.TrackID)
	buf.Append(fileTypeBytes(t.FileType))
	buf.WriteU32LE(t.MediaType)
	buf.WriteU32LE(t.Size)
	buf.WriteU32LE(t.DurationMS)
	buf.WriteU32LE(t.BitRateKbps)
	buf.WriteU32LE(t.SampleRateHz * sampleRateFixedPointShift)
	buf.WriteU32LE(t.TrackNumber)
	buf.WriteU32LE(t.TrackCount)
	buf.WriteU32LE(t.DiscNumber)
	buf.WriteU32LE(t.DiscCount)
	buf.WriteU32LE(t.Year)
	buf.WriteU32LE(t.Rating)
	buf.WriteU32LE(t.PlayCount)
	buf.WriteU32LE(t.PlayCount2)
	buf.WriteU32LE(timeToMacTime(t.LastPlayed))
	buf.WriteU32LE(timeToMacTime(t.DateModified))
	buf.WriteU32LE(timeToMacTime(t.DateAdded))
	buf.WriteU32LE(t.MHIILink)
	buf.WriteU32LE(t.AlbumID)
	// Pad out to the fixed header length.
	written := buf.Pos() - mark.Start()
	if pad := mhitHeaderLen - written; pad > 0 {
		buf.Zero(pad)
	}

	for _, c := range children {
		writeMhod(buf, c.typ, c.value)
	}

	mark.Close(buf)
}

func fileTypeBytes(ft string) []byte {
	out := make([]byte, 4)
	copy(out, ft)
	return out
}

type mhodField struct {
	typ   uint32
	value string
}

func stringChildren(t Track) []mhodField {
	candidates := []mhodField{
		{MhodTitle, t.Title},
		{MhodLocation, t.Location},
		{MhodAlbum, t.Album},
		{MhodArtist, t.Artist},
		{MhodAlbumArtist, t.AlbumArtist},
		{MhodGenre, t.Genre},
		{MhodComment, t.Comment},
	}
	out := make([]mhodField, 0, len(candidates))
	for _, c := range candidates {
		if c.value != "" {
			out = append(out, c)
		}
	}
	return out
}
