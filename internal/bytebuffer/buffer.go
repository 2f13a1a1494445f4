// Package bytebuffer implements the append-only byte buffer with
// backpatching that the iTunesDB codec and the artwork codec build on.
// Every container chunk in those formats declares its own total length
// before its children are known, so the buffer never rewrites bytes
// that have already been appended — it only patches a reserved length
// field once the matching container closes.
package bytebuffer

import "encoding/binary"

// Buffer is a growable byte slice with absolute-position patch support.
// The zero value is ready to use.
type Buffer struct {
	buf []byte
}

// New returns a Buffer with the given initial capacity hint.
func New(capHint int) *Buffer {
	return &Buffer{buf: make([]byte, 0, capHint)}
}

// Pos returns the current write position, i.e. the number of bytes
// appended so far.
func (b *Buffer) Pos() int {
	return len(b.buf)
}

// Append writes p at the current position and advances it.
func (b *Buffer) Append(p []byte) {
	b.buf = append(b.buf, p...)
}

// WriteU8 appends a single byte.
func (b *Buffer) WriteU8(v uint8) {
	b.buf = append(b.buf, v)
}

// WriteU16LE appends v as two little-endian bytes.
func (b *Buffer) WriteU16LE(v uint16) {
	var tmp [2]byte
	binary.LittleEndian.PutUint16(tmp[:], v)
	b.buf = append(b.buf, tmp[:]...)
}

// WriteU32LE appends v as four little-endian bytes.
func (b *Buffer) WriteU32LE(v uint32) {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], v)
	b.buf = append(b.buf, tmp[:]...)
}

// WriteU64LE appends v as eight little-endian bytes.
func (b *Buffer) WriteU64LE(v uint64) {
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], v)
	b.buf = append(b.buf, tmp[:]...)
}

// Zero appends n zero bytes, used for reserved/unknown fixed fields.
func (b *Buffer) Zero(n int) {
	for i := 0; i < n; i++ {
		b.buf = append(b.buf, 0)
	}
}

// PatchU32LE overwrites the four bytes at pos with v. pos must have
// been obtained from Pos() before the bytes it points at were
// appended; it panics if pos+4 is past the current length, since that
// indicates the caller patched before writing the placeholder.
func (b *Buffer) PatchU32LE(pos int, v uint32) {
	binary.LittleEndian.PutUint32(b.buf[pos:pos+4:len(b.buf)], v)
}

// PatchU16LE overwrites the two bytes at pos with v.
func (b *Buffer) PatchU16LE(pos int, v uint16) {
	binary.LittleEndian.PutUint16(b.buf[pos:pos+2], v)
}

// Bytes returns the accumulated buffer. The returned slice aliases the
// Buffer's internal storage and must not be retained across further
// writes.
func (b *Buffer) Bytes() []byte {
	return b.buf
}

// Mark is a captured start offset for a container chunk whose
// total-length field lives at a fixed byte offset from that start.
type Mark struct {
	start        int
	lengthOffset int
}

// StartContainer records the buffer's current position as the start of
// a new container chunk. lengthOffset is the byte offset, relative to
// start, of the container's 32-bit total-length field (8 for every
// chunk tag in this codec family: 4-byte tag + 4-byte header length).
func (b *Buffer) StartContainer(lengthOffset int) Mark {
	return Mark{start: b.Pos(), lengthOffset: lengthOffset}
}

// Close patches the container's total-length field with the number of
// bytes written since StartContainer, i.e. the distance from the
// chunk's tag to the current position.
func (m Mark) Close(b *Buffer) {
	total := b.Pos() - m.start
	b.PatchU32LE(m.start+m.lengthOffset, uint32(total))
}

// CloseAt is like Close but patches an explicit value instead of the
// buffer's current distance from the mark — used when the caller needs
// to report an extent that excludes trailing sibling bytes already
// appended by the time Close would run (not needed by any chunk in
// this codec today, kept for list-header-style callers that compute
// their own extent).
func (m Mark) CloseAt(b *Buffer, total int) {
	b.PatchU32LE(m.start+m.lengthOffset, uint32(total))
}

// Start returns the mark's captured start offset.
func (m Mark) Start() int {
	return m.start
}
