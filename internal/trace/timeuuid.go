package trace

import (
	"time"

	"github.com/google/uuid"
)

// gregorianToUnixOffset is the number of 100ns intervals between the
// gregorian calendar epoch (1582-10-15T00:00:00Z) that time-based UUIDs
// count from and the unix epoch. The value matches what cqlsh and existing
// trace data use, so it must not change.
const gregorianToUnixOffset int64 = 0x01b21dd213814000

// UnixMilli converts the timestamp embedded in a time-based (version 1)
// unique identifier to unix epoch milliseconds.
func UnixMilli(id uuid.UUID) int64 {
	return (int64(id.Time()) - gregorianToUnixOffset) / 10000
}

// timeOf converts a time-based unique identifier to a UTC timestamp with
// millisecond precision.
func timeOf(id uuid.UUID) time.Time {
	return time.UnixMilli(UnixMilli(id)).UTC()
}
