package itunesdb

import "time"

// macUnixOffset is the number of seconds between the Mac epoch
// (1904-01-01 00:00:00 UTC) and the Unix epoch.
const macUnixOffset = 2082844800

// macTimeToTime converts a Mac-epoch second count to a time.Time. Zero
// is treated as "unset" and maps to the zero time, matching the
// teacher's itl.go macDateToTime convention for ITL dates.
func macTimeToTime(seconds uint32) time.Time {
	if seconds == 0 {
		return time.Time{}
	}
	return time.Unix(int64(seconds)-macUnixOffset, 0).UTC()
}

// timeToMacTime converts t to a Mac-epoch second count. The zero time
// maps back to 0.
func timeToMacTime(t time.Time) uint32 {
	if t.IsZero() {
		return 0
	}
	secs := t.Unix() + macUnixOffset
	if secs < 0 {
		return 0
	}
	return uint32(secs)
}
