package internal

import "time"

// Bit widths of the packed time-log, most significant field first.
const (
	timeLogSecondBits = 6
	timeLogMinuteBits = 6
	timeLogHourBits   = 5
	timeLogDayBits    = 5
	timeLogMonthBits  = 4
)

// TimeLog packs t as year(13) | month-1(4) | day-1(5) | hour(5) | minute(6) | second(6).
// The server subtracts this value from its own clock during timestamp sync.
func TimeLog(t time.Time) uint64 {
	v := uint64(t.Year())
	v = v<<timeLogMonthBits | uint64(t.Month()-1)
	v = v<<timeLogDayBits | uint64(t.Day()-1)
	v = v<<timeLogHourBits | uint64(t.Hour())
	v = v<<timeLogMinuteBits | uint64(t.Minute())
	v = v<<timeLogSecondBits | uint64(t.Second())
	return v
}

// ServerTimeOffset returns serverTimeLog minus the local time-log of now.
func ServerTimeOffset(serverTimeLog uint64, now time.Time) int64 {
	return int64(serverTimeLog) - int64(TimeLog(now))
}
