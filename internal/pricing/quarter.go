package pricing

import (
	"fmt"
	"strconv"
	"time"
)

// Quarter ids are the literal form "YYYY-Qn", e.g. "2026-Q1". They sort
// lexicographically in chronological order, which the cache keys rely on.

// ParseQuarter splits a quarter id into year and quarter number.
func ParseQuarter(id string) (year int, quarter int, err error) {
	if len(id) != 7 || id[4] != '-' || id[5] != 'Q' {
		return 0, 0, fmt.Errorf("malformed quarter id %q, want YYYY-Qn", id)
	}
	year, err = strconv.Atoi(id[:4])
	if err != nil || year < 1000 {
		return 0, 0, fmt.Errorf("malformed quarter id %q, want YYYY-Qn", id)
	}
	quarter = int(id[6] - '0')
	if quarter < 1 || quarter > 4 {
		return 0, 0, fmt.Errorf("quarter id %q out of range, want Q1-Q4", id)
	}
	return year, quarter, nil
}

// FormatQuarter builds a quarter id from year and quarter number.
func FormatQuarter(year, quarter int) string {
	return fmt.Sprintf("%04d-Q%d", year, quarter)
}

// ValidQuarter reports whether id is a well-formed quarter id.
func ValidQuarter(id string) bool {
	_, _, err := ParseQuarter(id)
	return err == nil
}

// QuarterOf returns the quarter id containing t.
func QuarterOf(t time.Time) string {
	return FormatQuarter(t.Year(), (int(t.Month())-1)/3+1)
}
