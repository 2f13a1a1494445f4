package itunesdb

import (
	"fmt"

	"github.com/ipodsync/core/internal/bytebuffer"
)

// Playlist is the in-memory form of one mhyp record and its mhip
// children (§3: "mhyp: Playlist header; children are playlist items").
type Playlist struct {
	Title    string
	IsMaster bool
	TrackIDs []uint32
}

// mhyp fixed-field byte offsets.
const (
	mhypOffNumStringChildren = 12
	mhypOffNumItems          = 16
	mhypOffIsMaster          = 20
)

// mhip fixed-field byte offsets.
const (
	mhipOffTrackID = 16
)

func readPlaylist(data []byte, offset int) (Playlist, int, error) {
	hdr, err := readChunkHeader(data, offset)
	if err != nil {
		return Playlist{}, 0, err
	}
	if hdr.Tag != tagPlaylist {
		return Playlist{}, 0, fmt.Errorf("%w: expected mhyp, got %q", ErrBadMagic, hdr.Tag)
	}
	isMaster, err := readU32LE(data, offset+mhypOffIsMaster)
	if err != nil {
		return Playlist{}, 0, err
	}

	p := Playlist{IsMaster: isMaster != 0}
	childOffset := offset + int(hdr.HeaderLength)
	end := offset + int(hdr.TotalLength)
	for childOffset+8 <= end {
		tag, err := readTag(data, childOffset)
		if err != nil {
			return Playlist{}, 0, err
		}
		switch tag {
		case tagString:
			child, next, err := readMhod(data, childOffset)
			if err != nil {
				return Playlist{}, 0, err
			}
			if child.Type == MhodTitle {
				p.Title = child.Value
			}
			childOffset = next
		case tagPlayItem:
			trackID, next, err := readPlaylistItem(data, childOffset)
			if err != nil {
				return Playlist{}, 0, err
			}
			p.TrackIDs = append(p.TrackIDs, trackID)
			childOffset = next
		default:
			childOffset = end // unrecognized trailing content; stop
		}
	}

	return p, end, nil
}

func readPlaylistItem(data []byte, offset int) (uint32, int, error) {
	hdr, err := readChunkHeader(data, offset)
	if err != nil {
		return 0, 0, err
	}
	if hdr.Tag != tagPlayItem {
		return 0, 0, fmt.Errorf("%w: expected mhip, got %q", ErrBadMagic, hdr.Tag)
	}
	trackID, err := readU32LE(data, offset+mhipOffTrackID)
	if err != nil {
		return 0, 0, err
	}
	return trackID, offset + int(hdr.TotalLength), nil
}

func writePlaylist(buf *bytebuffer.Buffer, p Playlist) {
	mark := buf.StartContainer(8)
	buf.Append([]byte(tagPlaylist))
	buf.WriteU32LE(mhypHeaderLen)
	buf.WriteU32LE(0)

	numStringChildren := uint32(0)
	if p.Title != "" {
		numStringChildren = 1
	}
	buf.WriteU32LE(numStringChildren)
	buf.WriteU32LE(uint32(len(p.TrackIDs)))
	if p.IsMaster {
		buf.WriteU32LE(1)
	} else {
		buf.WriteU32LE(0)
	}
	buf.Zero(mhypHeaderLen - (buf.Pos() - mark.Start()))

	writeMhod(buf, MhodTitle, p.Title)
	for _, id := range p.TrackIDs {
		writePlaylistItem(buf, id)
	}

	mark.Close(buf)
}

func writePlaylistItem(buf *bytebuffer.Buffer, trackID uint32) {
	mark := buf.StartContainer(8)
	buf.Append([]byte(tagPlayItem))
	buf.WriteU32LE(mhipHeaderLen)
	buf.WriteU32LE(0)
	buf.WriteU32LE(0) // numStringChildren, always 0
	buf.WriteU32LE(trackID)
	buf.Zero(mhipHeaderLen - (buf.Pos() - mark.Start()))
	mark.Close(buf)
}
