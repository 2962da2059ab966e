// Package hours bit-packs a weekly opening-hours schedule.
//
// Times are quantized to half hours. Every value starts with a form bit:
//
//	1 start:4 end:4 count:4 interval*count            days start..end share one schedule
//	0 (count:4 interval*count)*7                      one schedule per day, count 0 = closed
//
// An interval is open:6 close:6 closeIs2400:1. Slot values are half hours
// plus one, so 0 never denotes a clock time. Bits are packed MSB first and the
// last byte is zero padded.
package hours

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	ErrInvalidTime       = errors.New("invalid opening time")
	ErrTooManyIntervals  = errors.New("more than 15 intervals in a day")
	ErrMalformedSchedule = errors.New("malformed opening hours")
)

const (
	DaysPerWeek  = 7
	maxIntervals = 15
	midnightEnd  = "24:00"
)

// Interval is an opening span in "HH:MM". Close may be "24:00".
type Interval struct {
	Open  string `json:"open"`
	Close string `json:"close"`
}

// Day is closed, or open for the listed intervals in order.
type Day struct {
	Closed    bool       `json:"closed,omitempty"`
	Intervals []Interval `json:"intervals,omitempty"`
}

func (d Day) isClosed() bool { return d.Closed || len(d.Intervals) == 0 }

// Week starts on Monday.
type Week [DaysPerWeek]Day

type slotInterval struct {
	open, close uint8
	close2400   bool
}

// Normalize quantizes every time to the half hour and marks days without
// intervals as closed. Decode(Encode(w)) equals Normalize(w).
func Normalize(w Week) (Week, error) {
	slots, err := toSlots(w)
	if err != nil {
		return Week{}, err
	}
	return fromSlots(slots), nil
}

// Encode packs w, choosing the compact form when every open day forms one
// contiguous run sharing identical intervals.
func Encode(w Week) ([]byte, error) {
	slots, err := toSlots(w)
	if err != nil {
		return nil, err
	}

	var bw bitWriter
	if start, end, ok := compactRun(slots); ok {
		bw.write(1, 1)
		bw.write(uint32(start), 4)
		bw.write(uint32(end), 4)
		writeIntervals(&bw, slots[start])
		return bw.bytes(), nil
	}

	bw.write(0, 1)
	for _, day := range slots {
		writeIntervals(&bw, day)
	}
	return bw.bytes(), nil
}

// Decode unpacks a schedule written by Encode.
func Decode(b []byte) (Week, error) {
	br := bitReader{buf: b}
	form, err := br.read(1)
	if err != nil {
		return Week{}, err
	}

	var slots [DaysPerWeek][]slotInterval
	if form == 1 {
		start, err := br.read(4)
		if err != nil {
			return Week{}, err
		}
		end, err := br.read(4)
		if err != nil {
			return Week{}, err
		}
		if start > end || end >= DaysPerWeek {
			return Week{}, fmt.Errorf("%w: day run %d..%d", ErrMalformedSchedule, start, end)
		}
		ivs, err := readIntervals(&br)
		if err != nil {
			return Week{}, err
		}
		if len(ivs) == 0 {
			return Week{}, fmt.Errorf("%w: empty shared schedule", ErrMalformedSchedule)
		}
		for d := start; d <= end; d++ {
			slots[d] = ivs
		}
	} else {
		for d := range slots {
			ivs, err := readIntervals(&br)
			if err != nil {
				return Week{}, err
			}
			slots[d] = ivs
		}
	}
	return fromSlots(slots), nil
}

func compactRun(slots [DaysPerWeek][]slotInterval) (start, end int, ok bool) {
	start, end = -1, -1
	for d, ivs := range slots {
		if len(ivs) == 0 {
			continue
		}
		if start < 0 {
			start = d
		} else if end != d-1 {
			return 0, 0, false
		}
		end = d
	}
	if start < 0 {
		return 0, 0, false
	}
	first := slots[start]
	for d := start + 1; d <= end; d++ {
		if !sameIntervals(first, slots[d]) {
			return 0, 0, false
		}
	}
	return start, end, true
}

func sameIntervals(a, b []slotInterval) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func writeIntervals(bw *bitWriter, ivs []slotInterval) {
	bw.write(uint32(len(ivs)), 4)
	for _, iv := range ivs {
		bw.write(uint32(iv.open), 6)
		bw.write(uint32(iv.close), 6)
		if iv.close2400 {
			bw.write(1, 1)
		} else {
			bw.write(0, 1)
		}
	}
}

func readIntervals(br *bitReader) ([]slotInterval, error) {
	n, err := br.read(4)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}
	ivs := make([]slotInterval, 0, n)
	for range n {
		open, err := br.read(6)
		if err != nil {
			return nil, err
		}
		cl, err := br.read(6)
		if err != nil {
			return nil, err
		}
		flag, err := br.read(1)
		if err != nil {
			return nil, err
		}
		iv := slotInterval{open: uint8(open), close: uint8(cl), close2400: flag == 1}
		if iv.open == 0 || iv.open > 48 || (!iv.close2400 && (iv.close == 0 || iv.close > 48)) {
			return nil, fmt.Errorf("%w: slot out of range", ErrMalformedSchedule)
		}
		ivs = append(ivs, iv)
	}
	return ivs, nil
}

func toSlots(w Week) ([DaysPerWeek][]slotInterval, error) {
	var out [DaysPerWeek][]slotInterval
	for d, day := range w {
		if day.isClosed() {
			continue
		}
		if len(day.Intervals) > maxIntervals {
			return out, fmt.Errorf("%w: day %d has %d", ErrTooManyIntervals, d, len(day.Intervals))
		}
		ivs := make([]slotInterval, 0, len(day.Intervals))
		for _, iv := range day.Intervals {
			open, err := parseSlot(iv.Open)
			if err != nil {
				return out, fmt.Errorf("day %d open: %w", d, err)
			}
			si := slotInterval{open: open}
			if strings.TrimSpace(iv.Close) == midnightEnd {
				si.close2400 = true
			} else {
				cl, err := parseSlot(iv.Close)
				if err != nil {
					return out, fmt.Errorf("day %d close: %w", d, err)
				}
				si.close = cl
			}
			ivs = append(ivs, si)
		}
		out[d] = ivs
	}
	return out, nil
}

func fromSlots(slots [DaysPerWeek][]slotInterval) Week {
	var w Week
	for d, ivs := range slots {
		if len(ivs) == 0 {
			w[d] = Day{Closed: true}
			continue
		}
		day := Day{Intervals: make([]Interval, len(ivs))}
		for i, iv := range ivs {
			day.Intervals[i].Open = formatSlot(iv.open)
			if iv.close2400 {
				day.Intervals[i].Close = midnightEnd
			} else {
				day.Intervals[i].Close = formatSlot(iv.close)
			}
		}
		w[d] = day
	}
	return w
}

// parseSlot maps "HH:MM" (00:00..23:59) to 1..48.
func parseSlot(s string) (uint8, error) {
	hh, mm, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTime, s)
	}
	h, err := strconv.Atoi(hh)
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTime, s)
	}
	m, err := strconv.Atoi(mm)
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTime, s)
	}
	half := h * 2
	if m >= 30 {
		half++
	}
	return uint8(half + 1), nil
}

func formatSlot(v uint8) string {
	half := int(v) - 1
	return fmt.Sprintf("%02d:%02d", half/2, (half%2)*30)
}
