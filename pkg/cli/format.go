package cli

import (
	"fmt"
	"time"
)

// FormatDuration renders a duration for status lines: milliseconds
// under a second, tenths of a second under a minute, minutes and
// seconds above.
func FormatDuration(d time.Duration) string {
	switch {
	case d < time.Second:
		return fmt.Sprintf("%dms", d.Milliseconds())
	case d < time.Minute:
		return fmt.Sprintf("%.1fs", d.Seconds())
	default:
		mins := int(d.Minutes())
		secs := d.Seconds() - float64(mins)*60
		return fmt.Sprintf("%dm%.1fs", mins, secs)
	}
}

var byteUnits = []string{"B", "KB", "MB", "GB", "TB"}

// FormatBytes renders a byte count with a binary-scaled unit.
func FormatBytes(n int64) string {
	if n < 1024 {
		return fmt.Sprintf("%d B", n)
	}
	v := float64(n)
	unit := 0
	for v >= 1024 && unit < len(byteUnits)-1 {
		v /= 1024
		unit++
	}
	return fmt.Sprintf("%.2f %s", v, byteUnits[unit])
}

// FormatBytesInt is FormatBytes for int counts.
func FormatBytesInt(n int) string {
	return FormatBytes(int64(n))
}
