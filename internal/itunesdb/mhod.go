package itunesdb

import (
	"encoding/binary"
	"fmt"
	"unicode/utf16"

	"github.com/ipodsync/core/internal/bytebuffer"
)

// StringChild is a decoded mhod string payload (§3, §4.2).
type StringChild struct {
	Type    uint32
	Value   string
	Offset  int // byte offset of the owning chunk, for diagnostics
}

// mhod on-disk layout used by this codec:
//
//	+0  tag "mhod"            (4)
//	+4  header_length = 24    (4)
//	+8  total_length          (4)  = 24 + 8 + len(encoded payload)
//	+12 type                  (4)
//	+16 zero word             (4)
//	+20 zero word             (4)
//	+24 payload_length        (4)  = len(encoded payload)
//	+28 zero word             (4)
//	+32 payload bytes         (payload_length)
const (
	mhodPayloadLenOff = 24
	mhodPayloadOff    = 32
)

// decodeMhodString decodes the payload bytes of a string mhod. Per
// §3: if any of the first four payload bytes is zero, the payload is
// UTF-16LE; otherwise UTF-8. A chunk shorter than 4 payload bytes is
// treated as UTF-8 (there's no zero byte to detect).
func decodeMhodString(payload []byte) string {
	isUTF16 := false
	probe := payload
	if len(probe) > 4 {
		probe = probe[:4]
	}
	for _, c := range probe {
		if c == 0 {
			isUTF16 = true
			break
		}
	}
	if !isUTF16 {
		return string(payload)
	}
	if len(payload)%2 != 0 {
		payload = append(payload, 0)
	}
	units := make([]uint16, len(payload)/2)
	for i := range units {
		units[i] = binary.LittleEndian.Uint16(payload[i*2 : i*2+2])
	}
	return string(utf16.Decode(units))
}

// encodeMhodString encodes s the way this codec's writer chooses to:
// UTF-16LE for any non-ASCII string, UTF-8 for pure ASCII. Readers
// accept both per the detection rule in decodeMhodString.
func encodeMhodString(s string) []byte {
	pureASCII := true
	for _, r := range s {
		if r > 0x7f {
			pureASCII = false
			break
		}
	}
	if pureASCII {
		return []byte(s)
	}
	units := utf16.Encode([]rune(s))
	out := make([]byte, len(units)*2)
	for i, u := range units {
		binary.LittleEndian.PutUint16(out[i*2:i*2+2], u)
	}
	return out
}

// readMhod parses a single mhod chunk starting at offset and returns
// the decoded string child plus the offset of the next sibling chunk.
func readMhod(data []byte, offset int) (StringChild, int, error) {
	hdr, err := readChunkHeader(data, offset)
	if err != nil {
		return StringChild{}, 0, err
	}
	if hdr.Tag != tagString {
		return StringChild{}, 0, fmt.Errorf("%w: expected mhod, got %q", ErrBadMagic, hdr.Tag)
	}
	typ, err := readU32LE(data, offset+12)
	if err != nil {
		return StringChild{}, 0, err
	}
	payloadLen, err := readU32LE(data, offset+mhodPayloadLenOff)
	if err != nil {
		return StringChild{}, 0, err
	}
	start := offset + mhodPayloadOff
	end := start + int(payloadLen)
	if end > offset+int(hdr.TotalLength) || end > len(data) {
		return StringChild{}, 0, fmt.Errorf("%w: mhod payload overruns chunk", ErrTruncated)
	}
	value := decodeMhodString(data[start:end])
	return StringChild{Type: typ, Value: value, Offset: offset}, offset + int(hdr.TotalLength), nil
}

// writeMhod emits a string mhod chunk for (typ, value). It's a no-op
// (writes nothing) when value is empty, matching the writer's practice
// of omitting absent string fields rather than emitting an empty one.
func writeMhod(buf *bytebuffer.Buffer, typ uint32, value string) {
	if value == "" {
		return
	}
	encoded := encodeMhodString(value)
	mark := buf.StartContainer(8)
	buf.Append([]byte(tagString))
	buf.WriteU32LE(mhodHeaderLen)
	buf.WriteU32LE(0) // patched by mark.Close
	buf.WriteU32LE(typ)
	buf.Zero(8) // two zero words
	buf.WriteU32LE(uint32(len(encoded)))
	buf.Zero(4) // one zero word
	buf.Append(encoded)
	mark.Close(buf)
}
