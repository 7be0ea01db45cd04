package playback

import (
	"fmt"
	"math"
	"time"
)

// FormatTime formats seconds as m:ss. Unknown or invalid input formats as 0:00.
func FormatTime(seconds float64) string {
	if math.IsNaN(seconds) || math.IsInf(seconds, 0) || seconds < 0 {
		return "0:00"
	}
	total := int64(math.Floor(seconds))
	return fmt.Sprintf("%d:%02d", total/60, total%60)
}

// FormatDuration formats d with FormatTime.
func FormatDuration(d time.Duration) string {
	return FormatTime(d.Seconds())
}

// progress returns pos/total clamped to [0,1], or 0 if total is unknown.
func progress(pos, total time.Duration) float64 {
	if total <= 0 {
		return 0
	}
	f := float64(pos) / float64(total)
	return clamp01(f)
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
