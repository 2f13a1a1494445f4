package device

import "fmt"

// StorageStats is the free-space snapshot the executor's pre-flight
// check consults before Stage 1 (§4.7 "Pre-flight storage check").
type StorageStats struct {
	TotalBytes uint64
	FreeBytes  uint64
}

// DiskStats reports total/free bytes for the volume mounted at path.
// Grounded on the teacher's internal/server/diskstats_unix.go /
// diskstats_windows.go build-tag pair, generalized into this package
// so it can be reused outside the HTTP server.
func DiskStats(path string) (StorageStats, error) {
	total, free, err := diskStats(path)
	if err != nil {
		return StorageStats{}, fmt.Errorf("device: disk stats for %s: %w", path, err)
	}
	return StorageStats{TotalBytes: total, FreeBytes: free}, nil
}
