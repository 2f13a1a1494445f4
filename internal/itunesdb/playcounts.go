package itunesdb

import (
	"fmt"
	"time"

	"github.com/ipodsync/core/internal/bytebuffer"
)

// PlayCountEntry is one fixed-width record of the device's
// `/iPod_Control/iTunes/Play Counts` file (§6). Entries are positional:
// the Nth entry corresponds to the Nth mhit in file order, not to any
// dbid or trackID carried in the entry itself.
type PlayCountEntry struct {
	PlayCount   uint32
	LastPlayed  time.Time
	Bookmark    uint32
	Rating      uint32
	Unknown     uint32
	SkipCount   uint32
	LastSkipped time.Time
}

const (
	playCountsTag         = "mhdp"
	playCountsHeaderLen   = 16
	playCountsEntryLength = 0x1C // 28 bytes: seven 32-bit LE words
)

// ParsePlayCounts reads a Play Counts file image.
func ParsePlayCounts(data []byte) ([]PlayCountEntry, error) {
	if len(data) < playCountsHeaderLen {
		return nil, fmt.Errorf("%w: Play Counts file shorter than header", ErrTruncated)
	}
	tag, err := readTag(data, 0)
	if err != nil {
		return nil, err
	}
	if tag != playCountsTag {
		return nil, fmt.Errorf("%w: expected mhdp, got %q", ErrBadMagic, tag)
	}
	entryLen, err := readU32LE(data, 8)
	if err != nil {
		return nil, err
	}
	count, err := readU32LE(data, 12)
	if err != nil {
		return nil, err
	}

	entries := make([]PlayCountEntry, 0, count)
	offset := playCountsHeaderLen
	for i := uint32(0); i < count; i++ {
		if offset+int(entryLen) > len(data) {
			return nil, fmt.Errorf("%w: Play Counts entry %d overruns buffer", ErrTruncated, i)
		}
		u32 := func(o int) uint32 {
			v, _ := readU32LE(data, offset+o)
			return v
		}
		entries = append(entries, PlayCountEntry{
			PlayCount:   u32(0),
			LastPlayed:  macTimeToTime(u32(4)),
			Bookmark:    u32(8),
			Rating:      u32(12),
			Unknown:     u32(16),
			SkipCount:   u32(20),
			LastSkipped: macTimeToTime(u32(24)),
		})
		offset += int(entryLen)
	}
	return entries, nil
}

// WritePlayCounts emits a Play Counts file image for entries, in
// device-positional order.
func WritePlayCounts(entries []PlayCountEntry) []byte {
	buf := bytebuffer.New(playCountsHeaderLen + len(entries)*playCountsEntryLength)
	buf.Append([]byte(playCountsTag))
	buf.WriteU32LE(playCountsHeaderLen)
	buf.WriteU32LE(playCountsEntryLength)
	buf.WriteU32LE(uint32(len(entries)))
	for _, e := range entries {
		buf.WriteU32LE(e.PlayCount)
		buf.WriteU32LE(timeToMacTime(e.LastPlayed))
		buf.WriteU32LE(e.Bookmark)
		buf.WriteU32LE(e.Rating)
		buf.WriteU32LE(e.Unknown)
		buf.WriteU32LE(e.SkipCount)
		buf.WriteU32LE(timeToMacTime(e.LastSkipped))
	}
	return buf.Bytes()
}
