package signer

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha1"
)

// hash72AESKey is the fixed 16-byte AES-128 key used to encrypt the
// HASH72 payload (§6 "Byte-exact database constants").
var hash72AESKey = []byte{
	0x61, 0x8C, 0xA1, 0x0D, 0xC7, 0xF5, 0x7F, 0xD3, 0xB4, 0x72, 0x3E, 0x08, 0x15, 0x74, 0x63, 0xD7,
}

// HashInfo is the device-specific artifact required to produce a
// HASH72 signature (§4.3, §6): a 16-byte IV and 12-byte random
// component, both read once from a genuine device sync.
type HashInfo struct {
	IV      [16]byte
	RndPart [12]byte
}

// computeHash72 returns the 46-byte HASH72 signature:
// 0x01 0x00 || rndpart || AES-128-CBC(sha1(buf) || rndpart).
func computeHash72(buf []byte, info HashInfo) ([]byte, error) {
	sum := sha1.Sum(buf)

	plaintext := make([]byte, 0, 32)
	plaintext = append(plaintext, sum[:]...)
	plaintext = append(plaintext, info.RndPart[:]...)

	block, err := aes.NewCipher(hash72AESKey)
	if err != nil {
		return nil, err
	}
	ciphertext := make([]byte, len(plaintext))
	iv := info.IV
	cbc := cipher.NewCBCEncrypter(block, iv[:])
	cbc.CryptBlocks(ciphertext, plaintext)

	sig := make([]byte, 0, 2+12+32)
	sig = append(sig, 0x01, 0x00)
	sig = append(sig, info.RndPart[:]...)
	sig = append(sig, ciphertext...)
	return sig, nil
}
