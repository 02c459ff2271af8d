// Package util contains misc internal utilities.
package util

import (
	"fmt"
	"time"
)

// Limiter has a min and max value and can check if a
// commanded position falls within them
type Limiter struct {
	// Min is the lower limit
	Min float64 `yaml:"Min" json:"min"`

	// Max is the upper limit
	Max float64 `yaml:"Max" json:"max"`
}

// Check returns true if min <= v <= max
func (l Limiter) Check(v float64) bool {
	return v >= l.Min && v <= l.Max
}

// Clamp restricts x to the range [low, high]
func Clamp(x, low, high float64) float64 {
	if x < low {
		return low
	}
	if x > high {
		return high
	}
	return x
}

// SecsToDuration converts a floating point number of seconds to a time.Duration
func SecsToDuration(secs float64) time.Duration {
	return time.Duration(secs * float64(time.Second))
}

// FormatDuration renders a duration as H:MM:SS, M:SS, or SSs depending on
// its magnitude.  It is used for scan time estimates shown to operators.
func FormatDuration(d time.Duration) string {
	total := int(d.Seconds())
	hours := total / 3600
	minutes := (total % 3600) / 60
	secs := total % 60
	if hours > 0 {
		return fmt.Sprintf("%d:%02d:%02d", hours, minutes, secs)
	}
	if minutes > 0 {
		return fmt.Sprintf("%d:%02d", minutes, secs)
	}
	return fmt.Sprintf("%ds", secs)
}
