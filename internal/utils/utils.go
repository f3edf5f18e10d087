package utils

import (
	"fmt"
	"time"
)

// FormatDuration renders a second count for terminal output, dropping
// precision the reader would not care about at that scale
func FormatDuration(seconds int64) string {
	if seconds < 0 {
		seconds = 0
	}

	d := time.Duration(seconds) * time.Second
	hours := int64(d.Hours())
	minutes := int64(d.Minutes()) % 60

	switch {
	case hours > 0:
		return fmt.Sprintf("%dh %dm", hours, minutes)
	case minutes > 0:
		return fmt.Sprintf("%dm %ds", minutes, seconds%60)
	default:
		return fmt.Sprintf("%ds", seconds)
	}
}

// FormatClock renders a point in time as a short local clock reading
func FormatClock(t time.Time) string {
	return t.Format("15:04")
}

// FormatTimestamp renders a point in time for tables and logs
func FormatTimestamp(t time.Time) string {
	return t.Format("2006-01-02 15:04:05")
}
