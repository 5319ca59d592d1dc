// Package timewindow converts relative range expressions such as "1h", "30m"
// or "2d" into absolute UTC intervals and slices them into sub-windows.
package timewindow

import (
	"strconv"
	"time"
)

// DefaultRange is applied when a range expression cannot be parsed.
const DefaultRange = time.Hour

// Window is an immutable half-open interval [Start, End) in UTC.
type Window struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Duration returns the window length.
func (w Window) Duration() time.Duration {
	return w.End.Sub(w.Start)
}

// Contains reports whether t falls inside [Start, End).
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}

// Parse converts a range expression anchored at "now" into a Window. The
// expression is an integer count followed by a unit letter from s, m, h or d.
// Malformed or empty expressions fall back to the last hour rather than
// failing; callers must not rely on rejection of bad input.
func Parse(expr string) Window {
	return ParseAt(expr, time.Now().UTC())
}

// ParseAt is Parse with an explicit anchor, for deterministic tests.
func ParseAt(expr string, now time.Time) Window {
	now = now.UTC()
	d := rangeDuration(expr)
	return Window{Start: now.Add(-d), End: now}
}

// ParseDuration converts a range expression into its duration, with the
// same lenient fallback as Parse.
func ParseDuration(expr string) time.Duration {
	return rangeDuration(expr)
}

func rangeDuration(expr string) time.Duration {
	if len(expr) < 2 {
		return DefaultRange
	}

	var unit time.Duration
	switch expr[len(expr)-1] {
	case 's':
		unit = time.Second
	case 'm':
		unit = time.Minute
	case 'h':
		unit = time.Hour
	case 'd':
		unit = 24 * time.Hour
	default:
		return DefaultRange
	}

	count, err := strconv.Atoi(expr[:len(expr)-1])
	if err != nil || count <= 0 {
		return DefaultRange
	}
	return time.Duration(count) * unit
}

// Slice splits w into contiguous, non-overlapping sub-windows of length sub.
// The final sub-window is clipped to w.End. A non-positive sub duration
// yields the whole window as a single slice.
func Slice(w Window, sub time.Duration) []Window {
	if sub <= 0 || sub >= w.Duration() {
		return []Window{w}
	}

	windows := make([]Window, 0, int(w.Duration()/sub)+1)
	for cursor := w.Start; cursor.Before(w.End); cursor = cursor.Add(sub) {
		end := cursor.Add(sub)
		if end.After(w.End) {
			end = w.End
		}
		windows = append(windows, Window{Start: cursor, End: end})
	}
	return windows
}
