package imessage

import "time"

// appleEpochOffset is the number of seconds between the Unix epoch
// (1970-01-01) and the Core Data epoch (2001-01-01). Message dates in the
// chat database are nanoseconds since the Core Data epoch.
const appleEpochOffset int64 = 978307200

// fromAppleTime converts a Core Data nanosecond timestamp to UTC.
func fromAppleTime(appleNs int64) time.Time {
	unixNs := appleNs + appleEpochOffset*int64(time.Second)
	return time.Unix(0, unixNs).UTC()
}

// toAppleTime converts a time to a Core Data nanosecond timestamp.
// Round-trips exactly with fromAppleTime within integer truncation.
func toAppleTime(t time.Time) int64 {
	return t.UnixNano() - appleEpochOffset*int64(time.Second)
}
