package signer

import (
	"crypto/hmac"
	"crypto/sha1"
)

// hash58Constant is the 18-byte fixed constant prepended to the
// S-box-derived vector before the SHA1 that seeds the HMAC key (§6).
var hash58Constant = []byte{
	0x67, 0x23, 0xFE, 0x30, 0x45, 0x33, 0xF8, 0x90, 0x99, 0x21, 0x07, 0xC1, 0xD0, 0x12, 0xB2, 0xA1, 0x07, 0x81,
}

func lcm(a, b byte) uint16 {
	if a == 0 || b == 0 {
		return 1
	}
	g := gcd(uint16(a), uint16(b))
	return uint16(a) * uint16(b) / g
}

func gcd(a, b uint16) uint16 {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

// deriveHash58Key computes the 16-byte S-box vector y from the
// FireWire GUID, then the 64-byte zero-padded HMAC key derived from
// SHA1(constant || y), per §4.3 HASH58.
func deriveHash58Key(guid [8]byte) []byte {
	y := make([]byte, 0, 16)
	for i := 0; i < 4; i++ {
		a, b := guid[2*i], guid[2*i+1]
		l := lcm(a, b)
		hi := byte((l >> 8) & 0xFF)
		lo := byte(l & 0xFF)
		y = append(y, forwardSBox[hi], inverseSBox[hi], forwardSBox[lo], inverseSBox[lo])
	}

	seed := make([]byte, 0, len(hash58Constant)+len(y))
	seed = append(seed, hash58Constant...)
	seed = append(seed, y...)
	digest := sha1.Sum(seed)

	key := make([]byte, 64)
	copy(key, digest[:])
	return key
}

// computeHash58 returns the 20-byte HMAC-SHA1 of buf under the key
// derived from guid.
func computeHash58(buf []byte, guid [8]byte) []byte {
	key := deriveHash58Key(guid)
	mac := hmac.New(sha1.New, key)
	mac.Write(buf)
	return mac.Sum(nil)
}
