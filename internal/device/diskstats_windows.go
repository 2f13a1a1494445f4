//go:build windows

package device

import (
	"fmt"
	"syscall"
	"unsafe"
)

// diskStats returns total, free bytes for the given path using the
// Windows API.
func diskStats(path string) (total, free uint64, err error) {
	kernel32 := syscall.NewLazyDLL("kernel32.dll")
	proc := kernel32.NewProc("GetDiskFreeSpaceExW")
	pathPtr, err := syscall.UTF16PtrFromString(path)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid path: %w", err)
	}
	var freeBytesAvailable, totalBytes, totalFreeBytes uint64
	r1, _, e1 := proc.Call(
		uintptr(unsafe.Pointer(pathPtr)),
		uintptr(unsafe.Pointer(&freeBytesAvailable)),
		uintptr(unsafe.Pointer(&totalBytes)),
		uintptr(unsafe.Pointer(&totalFreeBytes)),
	)
	if r1 == 0 {
		return 0, 0, fmt.Errorf("GetDiskFreeSpaceExW failed: %w", e1)
	}
	return totalBytes, freeBytesAvailable, nil
}
