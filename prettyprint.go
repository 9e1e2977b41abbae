package microbench

import (
	"fmt"
	"math"
	"time"
)

// PrettyPrint formats a duration compactly, with at most one decimal digit.
func PrettyPrint(d time.Duration) string {
	if d < time.Microsecond {
		return fmt.Sprintf("%dns", int(d/time.Nanosecond))
	}
	if d < time.Millisecond {
		return fmt.Sprintf("%.1fµs", float64(d)/float64(time.Microsecond))
	}
	if d < time.Second {
		return fmt.Sprintf("%.1fms", float64(d)/float64(time.Millisecond))
	}
	if d < 5*time.Minute {
		return fmt.Sprintf("%.1fs", float64(d)/float64(time.Second))
	}
	if d < time.Hour {
		minutes := d / time.Minute
		seconds := float64(d-(minutes*time.Minute)) / float64(time.Second)
		return fmt.Sprintf("%dm%04.1fs", minutes, seconds)
	}
	if d < 24*time.Hour {
		hours := d / time.Hour
		remainder := d - (hours * time.Hour)
		minutes := remainder / time.Minute
		remainder -= minutes * time.Minute
		seconds := remainder / time.Second
		return fmt.Sprintf("%dh%02dm%02ds", hours, minutes, seconds)
	}

	// Multi-day duration:
	Day := 24 * time.Hour
	days := d / Day
	remainder := d - (days * Day)
	hours := remainder / time.Hour
	remainder -= hours * time.Hour
	minutes := remainder / time.Minute
	remainder -= minutes * time.Minute
	seconds := remainder / time.Second
	return fmt.Sprintf("%dd %dh%02dm%02ds", days, hours, minutes, seconds)
}

// PrettyPrintNs is like PrettyPrint, but for a fractional number of nanoseconds:
// per-call times of tiny operations are often a fraction of a nanosecond.
func PrettyPrintNs(ns float64) string {
	switch {
	case math.IsNaN(ns) || math.IsInf(ns, 0):
		return fmt.Sprint(ns)
	case ns < 0:
		return "-" + PrettyPrintNs(-ns)
	case ns == 0:
		return "0ns"
	case ns < 10:
		return fmt.Sprintf("%.2fns", ns)
	case ns < 1000:
		return fmt.Sprintf("%.0fns", ns)
	}
	return PrettyPrint(time.Duration(math.Round(ns)))
}

// PrettyPrintMs is like PrettyPrintNs, for times given in milliseconds, as in Result.
func PrettyPrintMs(ms float64) string {
	return PrettyPrintNs(ms * nsPerMs)
}
