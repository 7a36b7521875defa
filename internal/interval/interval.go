// Package interval parses human-written durations such as "2 hours",
// ".5d" or "3 M" (months).
package interval

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"time"
)

const (
	day   = 24 * time.Hour
	month = 2630016 * time.Second  // 30.44 days
	year  = 31557600 * time.Second // 365.25 days
)

// Unit names are case-sensitive: "m" is minutes, "M" is months.
var units = map[string]time.Duration{
	"ms": time.Millisecond, "msec": time.Millisecond, "msecs": time.Millisecond,
	"millisecond": time.Millisecond, "milliseconds": time.Millisecond,

	"s": time.Second, "sec": time.Second, "secs": time.Second,
	"second": time.Second, "seconds": time.Second,

	"m": time.Minute, "min": time.Minute, "mins": time.Minute,
	"minute": time.Minute, "minutes": time.Minute,

	"h": time.Hour, "hr": time.Hour, "hrs": time.Hour,
	"hour": time.Hour, "hours": time.Hour,

	"d": day, "day": day, "days": day,

	"w": 7 * day, "wk": 7 * day, "wks": 7 * day, "week": 7 * day, "weeks": 7 * day,

	"M": month, "mo": month, "mon": month, "month": month, "months": month,

	"y": year, "yr": year, "yrs": year, "year": year, "years": year,
}

var pattern = regexp.MustCompile(`^\s*(\d+\.?\d*|\.\d+)\s*([A-Za-z]+)\s*$`)

// Parse converts a number followed by a unit into a duration. Whitespace
// around and between the parts is ignored. Compound Go durations such as
// "1h30m" are accepted too.
func Parse(s string) (time.Duration, error) {
	m := pattern.FindStringSubmatch(s)
	if m == nil {
		if d, err := time.ParseDuration(s); err == nil && d >= 0 {
			return d, nil
		}
		return 0, fmt.Errorf("invalid interval %q: want a number and a unit, e.g. \"2 hours\"", s)
	}

	unit, ok := units[m[2]]
	if !ok {
		return 0, fmt.Errorf("invalid interval %q: unknown unit %q", s, m[2])
	}
	n, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, fmt.Errorf("invalid interval %q: %w", s, err)
	}

	d := n * float64(unit)
	if d > math.MaxInt64 {
		return 0, fmt.Errorf("invalid interval %q: too large", s)
	}
	return time.Duration(math.Round(d)), nil
}
