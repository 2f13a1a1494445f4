// Package signer stamps the device-specific cryptographic signature
// into an emitted iTunesDB buffer (§4.3). The device firmware rejects
// the database outright if this signature doesn't verify, so signing
// is part of the codec's correctness contract, not an optional extra.
package signer

import (
	"errors"

	"github.com/ipodsync/core/internal/itunesdb"
)

// DeviceClass selects which signing scheme(s) a device model requires.
type DeviceClass int

const (
	// ClassHash58Only covers older non-Classic models keyed only by
	// the FireWire GUID.
	ClassHash58Only DeviceClass = iota
	// ClassHash72Only covers models that ship a HashInfo artifact and
	// need no HASH58 pass.
	ClassHash72Only
	// ClassClassicBoth is the iPod Classic: HASH72 is computed first,
	// its bytes feed into the database HASH58 then overwrites, and
	// HASH58 is what actually ends up on disk (§4.3 "Classic (both)").
	ClassClassicBoth
	// ClassHashABUnsupported is the Nano 6G/7G scheme, which this
	// signer does not implement (§9 design note).
	ClassHashABUnsupported
)

// ErrSignerInputMissing is returned when the inputs a device class
// requires (FireWire GUID, HashInfo) are absent, or when asked to sign
// for ClassHashABUnsupported.
var ErrSignerInputMissing = errors.New("signer: required signing input missing for this device class")

// signatureSlotLen is sized to the larger of the two signatures
// (HASH72's 46 bytes); HASH58's 20-byte signature simply leaves the
// remainder of the slot zeroed.
const signatureSlotLen = 46

// Sign stamps buf in place (buf must be the full emitted iTunesDB
// image, with mhbd at offset 0) according to class, and returns the
// same slice for convenience. guid is required for ClassHash58Only and
// ClassClassicBoth; info is required for ClassHash72Only and
// ClassClassicBoth.
func Sign(buf []byte, class DeviceClass, guid [8]byte, info *HashInfo) ([]byte, error) {
	if class == ClassHashABUnsupported {
		return nil, ErrSignerInputMissing
	}
	if (class == ClassHash72Only || class == ClassClassicBoth) && info == nil {
		return nil, ErrSignerInputMissing
	}
	if (class == ClassHash58Only || class == ClassClassicBoth) && guid == ([8]byte{}) {
		return nil, ErrSignerInputMissing
	}

	savedDBID := snapshot(buf, itunesdb.MhbdDBIDOffset, 8)
	savedUnk := snapshot(buf, itunesdb.MhbdUnk0x32Offset, itunesdb.MhbdUnk0x32Len)
	zero(buf, itunesdb.MhbdDBIDOffset, 8)
	zero(buf, itunesdb.MhbdUnk0x32Offset, itunesdb.MhbdUnk0x32Len)
	zero(buf, itunesdb.MhbdSignatureOffset, signatureSlotLen)

	// Excluded ranges are restored after hashing but before the final
	// signature bytes land (order matters, see restore below).
	var finalSig []byte
	switch class {
	case ClassHash72Only:
		sig, err := computeHash72(buf, *info)
		if err != nil {
			return nil, err
		}
		finalSig = sig

	case ClassHash58Only:
		finalSig = computeHash58(buf, guid)

	case ClassClassicBoth:
		sig72, err := computeHash72(buf, *info)
		if err != nil {
			return nil, err
		}
		// HASH72's bytes must be present in the buffer for HASH58 to
		// hash over them, even though they're never the bytes that
		// end up on disk.
		writeSignature(buf, sig72)
		finalSig = computeHash58(buf, guid)
	}

	restore(buf, itunesdb.MhbdDBIDOffset, savedDBID)
	restore(buf, itunesdb.MhbdUnk0x32Offset, savedUnk)

	writeSignature(buf, finalSig)
	if class == ClassHash58Only || class == ClassClassicBoth {
		buf[itunesdb.MhbdHashSelectorOff] = 1
	}

	return buf, nil
}

func snapshot(buf []byte, offset, length int) []byte {
	out := make([]byte, length)
	copy(out, buf[offset:offset+length])
	return out
}

func restore(buf []byte, offset int, saved []byte) {
	copy(buf[offset:offset+len(saved)], saved)
}

func zero(buf []byte, offset, length int) {
	for i := 0; i < length; i++ {
		buf[offset+i] = 0
	}
}

// writeSignature writes sig into the signature slot, zeroing any
// trailing bytes the previous write left behind (HASH58's 20-byte
// signature is shorter than HASH72's 46-byte one).
func writeSignature(buf []byte, sig []byte) {
	zero(buf, itunesdb.MhbdSignatureOffset, signatureSlotLen)
	copy(buf[itunesdb.MhbdSignatureOffset:], sig)
}
