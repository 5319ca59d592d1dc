package timewindow

import (
	"testing"
	"time"
)

func TestParseAtValidExpressions(t *testing.T) {
	now := time.Date(2025, 3, 14, 12, 0, 0, 0, time.UTC)

	cases := []struct {
		expr string
		want time.Duration
	}{
		{"30s", 30 * time.Second},
		{"45m", 45 * time.Minute},
		{"1h", time.Hour},
		{"12h", 12 * time.Hour},
		{"2d", 48 * time.Hour},
	}

	for _, tc := range cases {
		w := ParseAt(tc.expr, now)
		if got := w.Duration(); got != tc.want {
			t.Errorf("ParseAt(%q) duration = %v, want %v", tc.expr, got, tc.want)
		}
		if !w.End.Equal(now) {
			t.Errorf("ParseAt(%q) end = %v, want %v", tc.expr, w.End, now)
		}
	}
}

func TestParseAtMalformedFallsBackToOneHour(t *testing.T) {
	now := time.Date(2025, 3, 14, 12, 0, 0, 0, time.UTC)

	for _, expr := range []string{"", "h", "xyz", "1w", "-5m", "m30", "1.5h", "0h"} {
		w := ParseAt(expr, now)
		if got := w.Duration(); got != DefaultRange {
			t.Errorf("ParseAt(%q) duration = %v, want default %v", expr, got, DefaultRange)
		}
	}
}

func TestParseAnchorsNearNow(t *testing.T) {
	before := time.Now().UTC()
	w := Parse("10m")
	after := time.Now().UTC()

	if w.End.Before(before) || w.End.After(after) {
		t.Errorf("Parse end %v outside [%v, %v]", w.End, before, after)
	}
}

func TestSliceCoversWindow(t *testing.T) {
	now := time.Date(2025, 3, 14, 12, 0, 0, 0, time.UTC)
	w := Window{Start: now.Add(-2 * time.Hour), End: now}

	slices := Slice(w, 15*time.Minute)
	if len(slices) != 8 {
		t.Fatalf("expected 8 sub-windows, got %d", len(slices))
	}

	var total time.Duration
	for i, s := range slices {
		total += s.Duration()
		if i > 0 && !s.Start.Equal(slices[i-1].End) {
			t.Errorf("sub-window %d not contiguous: starts %v, previous ends %v", i, s.Start, slices[i-1].End)
		}
	}
	if total != w.Duration() {
		t.Errorf("sub-window durations sum to %v, want %v", total, w.Duration())
	}
}

func TestSliceClipsFinalWindow(t *testing.T) {
	now := time.Date(2025, 3, 14, 12, 0, 0, 0, time.UTC)
	w := Window{Start: now.Add(-50 * time.Minute), End: now}

	slices := Slice(w, 20*time.Minute)
	if len(slices) != 3 {
		t.Fatalf("expected 3 sub-windows, got %d", len(slices))
	}
	last := slices[len(slices)-1]
	if last.Duration() != 10*time.Minute {
		t.Errorf("final sub-window length = %v, want 10m", last.Duration())
	}
	if !last.End.Equal(w.End) {
		t.Errorf("final sub-window end = %v, want %v", last.End, w.End)
	}
}

func TestSliceDegenerateDurations(t *testing.T) {
	now := time.Date(2025, 3, 14, 12, 0, 0, 0, time.UTC)
	w := Window{Start: now.Add(-time.Hour), End: now}

	if got := Slice(w, 0); len(got) != 1 || got[0] != w {
		t.Errorf("Slice with zero duration = %v, want whole window", got)
	}
	if got := Slice(w, 2*time.Hour); len(got) != 1 || got[0] != w {
		t.Errorf("Slice with oversized duration = %v, want whole window", got)
	}
}
