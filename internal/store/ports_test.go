package store

import (
	"testing"
	"time"
)

func TestNormalizeRangeExpandsEndOfDay(t *testing.T) {
	start := time.Date(2025, 3, 1, 10, 30, 0, 0, time.UTC)
	end := time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC)

	r := NormalizeRange(start, end)

	if r.Start != start {
		t.Errorf("Start = %v, want %v", r.Start, start)
	}
	wantEnd := time.Date(2025, 3, 15, 23, 59, 59, 999999999, time.UTC)
	if r.End != wantEnd {
		t.Errorf("End = %v, want %v", r.End, wantEnd)
	}
}

func TestNormalizeRangeConvertsToUTC(t *testing.T) {
	loc := time.FixedZone("UTC+5", 5*3600)
	end := time.Date(2025, 3, 15, 2, 0, 0, 0, loc) // 2025-03-14T21:00Z

	r := NormalizeRange(time.Date(2025, 3, 1, 0, 0, 0, 0, loc), end)

	if r.End.Day() != 14 {
		t.Errorf("End day = %d, want 14 (UTC calendar day)", r.End.Day())
	}
	if r.End.Location() != time.UTC {
		t.Errorf("End not in UTC")
	}
}

func TestDateRangeContains(t *testing.T) {
	r := NormalizeRange(
		time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC),
	)

	cases := []struct {
		t    time.Time
		want bool
	}{
		{time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC), true},
		{time.Date(2025, 3, 15, 23, 59, 59, 0, time.UTC), true},
		{time.Date(2025, 3, 16, 0, 0, 0, 0, time.UTC), false},
		{time.Date(2025, 2, 28, 23, 59, 0, 0, time.UTC), false},
	}
	for i, tc := range cases {
		if got := r.Contains(tc.t); got != tc.want {
			t.Errorf("case %d: Contains(%v) = %v, want %v", i, tc.t, got, tc.want)
		}
	}
}
