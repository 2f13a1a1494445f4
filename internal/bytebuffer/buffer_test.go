package bytebuffer

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteLEPrimitives(t *testing.T) {
	b := New(0)
	b.WriteU8(0xAB)
	b.WriteU16LE(0x1234)
	b.WriteU32LE(0xDEADBEEF)
	b.WriteU64LE(0x0102030405060708)

	got := b.Bytes()
	require.Len(t, got, 1+2+4+8)
	assert.Equal(t, byte(0xAB), got[0])
	assert.Equal(t, uint16(0x1234), binary.LittleEndian.Uint16(got[1:3]))
	assert.Equal(t, uint32(0xDEADBEEF), binary.LittleEndian.Uint32(got[3:7]))
	assert.Equal(t, uint64(0x0102030405060708), binary.LittleEndian.Uint64(got[7:15]))
}

func TestNestedContainerBackpatch(t *testing.T) {
	b := New(0)

	outer := b.StartContainer(8) // length field at start+8, like mhbd/mhsd/...
	b.Append([]byte("mhbd"))
	b.WriteU32LE(0) // header length placeholder
	b.WriteU32LE(0) // total length placeholder, patched by outer.Close

	inner := b.StartContainer(8)
	b.Append([]byte("mhod"))
	b.WriteU32LE(24)
	b.WriteU32LE(0) // patched by inner.Close
	b.Zero(12)
	payload := []byte("hello")
	b.WriteU32LE(uint32(len(payload)))
	b.Zero(4)
	b.Append(payload)
	inner.Close(b)

	outer.Close(b)

	data := b.Bytes()
	innerLen := binary.LittleEndian.Uint32(data[inner.Start()+8 : inner.Start()+12])
	outerLen := binary.LittleEndian.Uint32(data[outer.Start()+8 : outer.Start()+12])

	assert.Equal(t, uint32(len(data)-inner.Start()), innerLen)
	assert.Equal(t, uint32(len(data)-outer.Start()), outerLen)
	assert.Equal(t, outerLen, innerLen+12) // outer = its own 12-byte header + inner chunk
}

func TestPatchU32LEOverwritesInPlace(t *testing.T) {
	b := New(0)
	pos := b.Pos()
	b.WriteU32LE(0)
	b.PatchU32LE(pos, 0x11223344)
	assert.Equal(t, uint32(0x11223344), binary.LittleEndian.Uint32(b.Bytes()[pos:pos+4]))
}
