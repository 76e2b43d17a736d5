package file

import (
	"strconv"
	"strings"
	"time"
)

func leadingZeros(v int, size int) string {
	out := strconv.FormatInt(int64(v), 10)
	if len(out) >= size {
		return out
	}
	return strings.Repeat("0", size-len(out)) + out
}

// segmentPath fills a path format with the given time.
// Supported placeholders are %Y %m %d %H %M %S (calendar fields) and %f (microseconds).
func segmentPath(format string, t time.Time) string {
	format = strings.ReplaceAll(format, "%Y", strconv.FormatInt(int64(t.Year()), 10))
	format = strings.ReplaceAll(format, "%m", leadingZeros(int(t.Month()), 2))
	format = strings.ReplaceAll(format, "%d", leadingZeros(t.Day(), 2))
	format = strings.ReplaceAll(format, "%H", leadingZeros(t.Hour(), 2))
	format = strings.ReplaceAll(format, "%M", leadingZeros(t.Minute(), 2))
	format = strings.ReplaceAll(format, "%S", leadingZeros(t.Second(), 2))
	format = strings.ReplaceAll(format, "%f", leadingZeros(t.Nanosecond()/1000, 6))
	return format
}
