// Package device reads the small device-identification artifacts a
// sync run needs before it can sign a database (the FireWire GUID and
// HashInfo), and reports free space on the mounted volume.
package device

import (
	"bufio"
	"bytes"
	"encoding/hex"
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"

	"github.com/ipodsync/core/internal/signer"
)

// SysInfo is the parsed form of the device's SysInfo file: a flat
// "Key: Value" text document iTunes itself writes during activation.
type SysInfo struct {
	FireWireGUID [8]byte
	ModelNumStr  string
	Raw          map[string]string
}

// Class derives the DeviceClass a SysInfo implies, based on the model
// number prefix. Classic-family models ("xB", "xC" prefixes used by
// real SysInfo ModelNumStr values) require both hashes; most other
// post-HASH58-era models need only HASH58. This mirrors the device
// class table referenced from §4.3, not a literal prefix list from the
// distilled spec (which leaves HASHAB detection as a non-goal).
func (s SysInfo) Class() signer.DeviceClass {
	model := strings.ToLower(s.ModelNumStr)
	switch {
	case strings.HasPrefix(model, "xa"):
		return signer.ClassHashABUnsupported
	case strings.HasPrefix(model, "xb"), strings.HasPrefix(model, "xc"):
		return signer.ClassClassicBoth
	default:
		return signer.ClassHash58Only
	}
}

// ParseSysInfo reads SysInfo's "Key: Value" lines. Values that fail
// UTF-8 validation are decoded as Windows-1252, the same legacy
// fallback encoding the teacher's hohm string codec falls back to for
// encoding flag 3 (itunes/itl.go).
func ParseSysInfo(data []byte) (SysInfo, error) {
	info := SysInfo{Raw: make(map[string]string)}

	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		key, value, ok := splitSysInfoLine(line)
		if !ok {
			continue
		}
		info.Raw[key] = value
	}
	if err := scanner.Err(); err != nil {
		return SysInfo{}, fmt.Errorf("device: scan SysInfo: %w", err)
	}

	if guidHex, ok := info.Raw["FirewireGuid"]; ok {
		guidHex = strings.TrimPrefix(guidHex, "0x")
		raw, err := hex.DecodeString(guidHex)
		if err == nil && len(raw) == 8 {
			copy(info.FireWireGUID[:], raw)
		}
	}
	info.ModelNumStr = info.Raw["ModelNumStr"]

	return info, nil
}

func splitSysInfoLine(line []byte) (key, value string, ok bool) {
	idx := bytes.IndexByte(line, ':')
	if idx < 0 {
		return "", "", false
	}
	key = strings.TrimSpace(string(line[:idx]))
	rawValue := bytes.TrimSpace(line[idx+1:])
	if !utf8.Valid(rawValue) {
		if decoded, err := charmap.Windows1252.NewDecoder().Bytes(rawValue); err == nil {
			return key, string(decoded), true
		}
	}
	return key, string(rawValue), true
}

// HashInfo on-disk layout (§6 "External interfaces"): 6-byte tag
// "HASHv0", 20-byte UUID, 12-byte rndpart at offset 26, 16-byte iv at
// offset 38.
const (
	hashInfoLen           = 54
	hashInfoRndPartOffset = 26
	hashInfoIVOffset      = 38
)

// ParseHashInfo extracts signer.HashInfo from a raw HashInfo artifact.
func ParseHashInfo(data []byte) (signer.HashInfo, error) {
	if len(data) < hashInfoLen {
		return signer.HashInfo{}, fmt.Errorf("device: HashInfo artifact too short: %d bytes", len(data))
	}
	var info signer.HashInfo
	copy(info.IV[:], data[hashInfoIVOffset:hashInfoIVOffset+16])
	copy(info.RndPart[:], data[hashInfoRndPartOffset:hashInfoRndPartOffset+12])
	return info, nil
}
