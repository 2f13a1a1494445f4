package itunesdb

import "fmt"

// Database is the parsed in-memory form of an entire iTunesDB file
// (§3, §4.2 "Reader contract").
type Database struct {
	Version        uint32
	ID             uint64
	NextID         uint32
	Albums         []Album
	Tracks         []Track
	Podcasts       []Track
	Playlists      []Playlist
	SmartPlaylists []Playlist
	Unknown        []UnknownChunk
}

// Parse reads a complete iTunesDB byte image and produces a Database
// tree. The reader is recursive by chunk type; every chunk parser
// returns the next sibling offset so Parse never trusts a declared
// child count for a container chunk — only mhlt/mhla/mhlp (which carry
// no total_length) are trusted for count.
func Parse(data []byte) (*Database, error) {
	hdr, err := readChunkHeader(data, 0)
	if err != nil {
		return nil, err
	}
	if hdr.Tag != tagDatabase {
		return nil, fmt.Errorf("%w: expected mhbd, got %q", ErrBadMagic, hdr.Tag)
	}
	if int(hdr.HeaderLength) < mhbdHeaderLen {
		return nil, fmt.Errorf("%w: mhbd header_length %d shorter than expected %d", ErrTruncated, hdr.HeaderLength, mhbdHeaderLen)
	}

	version, err := readU32LE(data, 12)
	if err != nil {
		return nil, err
	}
	id, err := readU64LE(data, MhbdDBIDOffset)
	if err != nil {
		return nil, err
	}
	nextID, err := readU32LE(data, MhbdNextIDOffset)
	if err != nil {
		return nil, err
	}

	db := &Database{Version: version, ID: id, NextID: nextID}

	offset := int(hdr.HeaderLength)
	end := int(hdr.TotalLength)
	for offset+8 <= end {
		tag, err := readTag(data, offset)
		if err != nil {
			return nil, err
		}
		if tag != tagDataset {
			return nil, fmt.Errorf("%w: expected mhsd inside mhbd, got %q", ErrBadMagic, tag)
		}
		next, err := readDataset(data, offset, db)
		if err != nil {
			return nil, err
		}
		offset = next
	}

	return db, nil
}

func readDataset(data []byte, offset int, db *Database) (int, error) {
	hdr, err := readChunkHeader(data, offset)
	if err != nil {
		return 0, err
	}
	datasetType, err := readU32LE(data, offset+12)
	if err != nil {
		return 0, err
	}

	listOffset := offset + int(hdr.HeaderLength)
	end := offset + int(hdr.TotalLength)
	if listOffset >= end {
		return end, nil
	}
	listTag, childCount, err := readListHeader(data, listOffset)
	if err != nil {
		return 0, err
	}

	childOffset := listOffset + mhlHeaderLen
	switch datasetType {
	case DatasetAlbums:
		if listTag != tagListAlbum {
			return 0, fmt.Errorf("%w: albums dataset expected mhla, got %q", ErrBadMagic, listTag)
		}
		for i := uint32(0); i < childCount && childOffset < end; i++ {
			a, next, err := readAlbum(data, childOffset)
			if err != nil {
				return 0, err
			}
			db.Albums = append(db.Albums, a)
			childOffset = next
		}
	case DatasetTracks, DatasetPodcasts:
		if listTag != tagListTrack {
			return 0, fmt.Errorf("%w: track dataset expected mhlt, got %q", ErrBadMagic, listTag)
		}
		for i := uint32(0); i < childCount && childOffset < end; i++ {
			tr, next, err := readTrack(data, childOffset)
			if err != nil {
				return 0, err
			}
			if datasetType == DatasetPodcasts {
				db.Podcasts = append(db.Podcasts, tr)
			} else {
				db.Tracks = append(db.Tracks, tr)
			}
			childOffset = next
		}
	case DatasetPlaylists, DatasetSmartPlaylists:
		if listTag != tagListPlay {
			return 0, fmt.Errorf("%w: playlist dataset expected mhlp, got %q", ErrBadMagic, listTag)
		}
		for i := uint32(0); i < childCount && childOffset < end; i++ {
			p, next, err := readPlaylist(data, childOffset)
			if err != nil {
				return 0, err
			}
			if datasetType == DatasetSmartPlaylists {
				db.SmartPlaylists = append(db.SmartPlaylists, p)
			} else {
				db.Playlists = append(db.Playlists, p)
			}
			childOffset = next
		}
	default:
		db.Unknown = append(db.Unknown, UnknownChunk{Tag: fmt.Sprintf("mhsd:%d", datasetType), Offset: offset, Length: int(hdr.TotalLength)})
	}

	return end, nil
}
