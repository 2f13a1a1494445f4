package itunesdb

import (
	"fmt"

	"github.com/ipodsync/core/internal/bytebuffer"
)

// Album is the in-memory form of one mhia record.
type Album struct {
	AlbumID uint32
	Title   string
	Artist  string // album_artist
}

// mhia fixed-field byte offsets, relative to the chunk's tag.
const (
	mhiaOffNumChildren = 12
	mhiaOffAlbumID     = 16
)

func readAlbum(data []byte, offset int) (Album, int, error) {
	hdr, err := readChunkHeader(data, offset)
	if err != nil {
		return Album{}, 0, err
	}
	if hdr.Tag != tagAlbum {
		return Album{}, 0, fmt.Errorf("%w: expected mhia, got %q", ErrBadMagic, hdr.Tag)
	}
	albumID, err := readU32LE(data, offset+mhiaOffAlbumID)
	if err != nil {
		return Album{}, 0, err
	}

	a := Album{AlbumID: albumID}
	childOffset := offset + int(hdr.HeaderLength)
	end := offset + int(hdr.TotalLength)
	for childOffset+8 <= end {
		tag, err := readTag(data, childOffset)
		if err != nil {
			return Album{}, 0, err
		}
		if tag != tagString {
			break
		}
		child, next, err := readMhod(data, childOffset)
		if err != nil {
			return Album{}, 0, err
		}
		switch child.Type {
		case MhodTitle:
			a.Title = child.Value
		case MhodArtist:
			a.Artist = child.Value
		}
		childOffset = next
	}

	return a, end, nil
}

func writeAlbum(buf *bytebuffer.Buffer, a Album) {
	mark := buf.StartContainer(8)
	buf.Append([]byte(tagAlbum))
	buf.WriteU32LE(mhiaHeaderLen)
	buf.WriteU32LE(0)

	children := []mhodField{{MhodTitle, a.Title}, {MhodArtist, a.Artist}}
	present := 0
	for _, c := range children {
		if c.value != "" {
			present++
		}
	}
	buf.WriteU32LE(uint32(present))
	buf.WriteU32LE(a.AlbumID)
	buf.Zero(mhiaHeaderLen - (buf.Pos() - mark.Start()))

	for _, c := range children {
		writeMhod(buf, c.typ, c.value)
	}

	mark.Close(buf)
}
