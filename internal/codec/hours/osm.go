package hours

import (
	"errors"
	"fmt"
	"strings"
)

var ErrUnsupportedSyntax = errors.New("unsupported opening_hours syntax")

var dayNames = map[string]int{"Mo": 0, "Tu": 1, "We": 2, "Th": 3, "Fr": 4, "Sa": 5, "Su": 6}

// ParseOSM reads the common subset of the OSM opening_hours tag:
// "24/7", and ";"-separated rules of the form "Mo-Fr,Su 08:00-12:00,13:00-17:30"
// or "Sa off". A rule without a day selector applies to every day; later
// rules override earlier ones for the days they name.
func ParseOSM(s string) (Week, error) {
	var w Week
	for d := range w {
		w[d] = Day{Closed: true}
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return w, fmt.Errorf("%w: empty", ErrUnsupportedSyntax)
	}
	if s == "24/7" {
		for d := range w {
			w[d] = Day{Intervals: []Interval{{Open: "00:00", Close: midnightEnd}}}
		}
		return w, nil
	}

	for _, rule := range strings.Split(s, ";") {
		rule = strings.TrimSpace(rule)
		if rule == "" {
			continue
		}
		days := allDays()
		spec := rule
		if sel, rest, ok := strings.Cut(rule, " "); ok && isDaySelector(sel) {
			var err error
			if days, err = parseDays(sel); err != nil {
				return Week{}, err
			}
			spec = strings.TrimSpace(rest)
		} else if isDaySelector(rule) {
			return Week{}, fmt.Errorf("%w: %q has no times", ErrUnsupportedSyntax, rule)
		}

		var day Day
		switch spec {
		case "off", "closed":
			day.Closed = true
		default:
			ivs, err := parseSpans(spec)
			if err != nil {
				return Week{}, err
			}
			day.Intervals = ivs
		}
		for _, d := range days {
			w[d] = day
		}
	}
	return w, nil
}

func allDays() []int { return []int{0, 1, 2, 3, 4, 5, 6} }

func isDaySelector(s string) bool {
	for _, part := range strings.Split(s, ",") {
		from, to, _ := strings.Cut(part, "-")
		if _, ok := dayNames[from]; !ok {
			return false
		}
		if to != "" {
			if _, ok := dayNames[to]; !ok {
				return false
			}
		}
	}
	return true
}

func parseDays(sel string) ([]int, error) {
	var out []int
	seen := make(map[int]bool, DaysPerWeek)
	for _, part := range strings.Split(sel, ",") {
		from, to, isRange := strings.Cut(part, "-")
		a, ok := dayNames[from]
		if !ok {
			return nil, fmt.Errorf("%w: day %q", ErrUnsupportedSyntax, from)
		}
		b := a
		if isRange {
			if b, ok = dayNames[to]; !ok {
				return nil, fmt.Errorf("%w: day %q", ErrUnsupportedSyntax, to)
			}
		}
		for d := a; ; d = (d + 1) % DaysPerWeek {
			if !seen[d] {
				seen[d] = true
				out = append(out, d)
			}
			if d == b {
				break
			}
		}
	}
	return out, nil
}

func parseSpans(spec string) ([]Interval, error) {
	parts := strings.Split(spec, ",")
	ivs := make([]Interval, 0, len(parts))
	for _, p := range parts {
		open, cl, ok := strings.Cut(strings.TrimSpace(p), "-")
		if !ok {
			return nil, fmt.Errorf("%w: span %q", ErrUnsupportedSyntax, p)
		}
		if _, err := parseSlot(open); err != nil {
			return nil, err
		}
		if cl != midnightEnd {
			if _, err := parseSlot(cl); err != nil {
				return nil, err
			}
		}
		ivs = append(ivs, Interval{Open: open, Close: cl})
	}
	if len(ivs) > maxIntervals {
		return nil, fmt.Errorf("%w: %d spans", ErrTooManyIntervals, len(ivs))
	}
	return ivs, nil
}
