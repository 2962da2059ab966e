package hours

import (
	"bytes"
	"errors"
	"fmt"
	"math/rand/v2"
	"reflect"
	"testing"
)

func weekdays(open, close string) Week {
	var w Week
	for d := range w {
		if d < 5 {
			w[d] = Day{Intervals: []Interval{{Open: open, Close: close}}}
		} else {
			w[d] = Day{Closed: true}
		}
	}
	return w
}

func roundTrip(t *testing.T, w Week) ([]byte, Week) {
	t.Helper()
	b, err := Encode(w)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	got, err := Decode(b)
	if err != nil {
		t.Fatalf("Decode(%x): %v", b, err)
	}
	return b, got
}

func TestEncode_CompactWeekdays(t *testing.T) {
	w := weekdays("09:00", "17:00")
	b, got := roundTrip(t, w)
	if want := []byte{0x82, 0x0a, 0x71, 0x80}; !bytes.Equal(b, want) {
		t.Fatalf("Encode = %x, want %x", b, want)
	}
	if !reflect.DeepEqual(got, w) {
		t.Fatalf("Decode = %+v", got)
	}
}

func TestEncode_AllDayEveryDay(t *testing.T) {
	var w Week
	for d := range w {
		w[d] = Day{Intervals: []Interval{{Open: "00:00", Close: "24:00"}}}
	}
	b, got := roundTrip(t, w)
	if want := []byte{0x83, 0x08, 0x20, 0x40}; !bytes.Equal(b, want) {
		t.Fatalf("Encode = %x, want %x", b, want)
	}
	if !reflect.DeepEqual(got, w) {
		t.Fatalf("Decode = %+v", got)
	}
}

func TestEncode_PerDayForm(t *testing.T) {
	w := weekdays("08:00", "12:00")
	w[2] = Day{Intervals: []Interval{{Open: "08:00", Close: "12:00"}, {Open: "13:00", Close: "18:30"}}}
	w[6] = Day{Intervals: []Interval{{Open: "10:00", Close: "14:00"}}}

	b, got := roundTrip(t, w)
	if b[0]&0x80 != 0 {
		t.Fatalf("expected per-day form, got %x", b)
	}
	if !reflect.DeepEqual(got, w) {
		t.Fatalf("Decode = %+v", got)
	}
}

func TestEncode_GapBreaksCompactForm(t *testing.T) {
	w := weekdays("09:00", "17:00")
	w[2] = Day{Closed: true}

	b, got := roundTrip(t, w)
	if b[0]&0x80 != 0 {
		t.Fatalf("expected per-day form, got %x", b)
	}
	if !reflect.DeepEqual(got, w) {
		t.Fatalf("Decode = %+v", got)
	}
}

func TestEncode_AllClosed(t *testing.T) {
	b, got := roundTrip(t, Week{})
	// form bit plus seven zero counts
	if want := []byte{0x00, 0x00, 0x00, 0x00}; !bytes.Equal(b, want) {
		t.Fatalf("Encode = %x, want %x", b, want)
	}
	for i, d := range got {
		if !d.Closed {
			t.Fatalf("day %d = %+v, want closed", i, d)
		}
	}
}

func TestEncode_MidnightOpenIsNotClosed(t *testing.T) {
	var w Week
	w[0] = Day{Intervals: []Interval{{Open: "00:00", Close: "00:30"}}}
	w[3] = Day{Intervals: []Interval{{Open: "22:00", Close: "00:00"}}}
	_, got := roundTrip(t, w)
	for _, d := range []int{0, 3} {
		if got[d].Closed || !reflect.DeepEqual(got[d], w[d]) {
			t.Fatalf("day %d = %+v, want %+v", d, got[d], w[d])
		}
	}
}

func TestNormalize_QuantizesToHalfHour(t *testing.T) {
	w := weekdays("9:15", "17:45")
	n, err := Normalize(w)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if want := weekdays("09:00", "17:30"); !reflect.DeepEqual(n, want) {
		t.Fatalf("Normalize = %+v", n)
	}
	if _, got := roundTrip(t, w); !reflect.DeepEqual(got, n) {
		t.Fatalf("Decode(Encode(w)) = %+v, want %+v", got, n)
	}
}

func randomSlot(rng *rand.Rand) string {
	h := rng.IntN(48)
	return fmt.Sprintf("%02d:%02d", h/2, (h%2)*30)
}

func randomDay(rng *rand.Rand) Day {
	n := rng.IntN(4)
	if n == 0 {
		return Day{Closed: true}
	}
	d := Day{Intervals: make([]Interval, n)}
	for i := range d.Intervals {
		d.Intervals[i].Open = randomSlot(rng)
		if rng.IntN(5) == 0 {
			d.Intervals[i].Close = "24:00"
		} else {
			d.Intervals[i].Close = randomSlot(rng)
		}
	}
	return d
}

func TestEncode_RandomWeeksRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewPCG(20251026, 7))
	compact := 0
	for i := range 2000 {
		var w Week
		for d := range w {
			// repeat the previous day often so the compact form gets exercised
			if d > 0 && rng.IntN(3) == 0 {
				w[d] = w[d-1]
				continue
			}
			w[d] = randomDay(rng)
		}

		b, got := roundTrip(t, w)
		if b[0]&0x80 != 0 {
			compact++
		}
		if !reflect.DeepEqual(got, w) {
			t.Fatalf("week %d: Decode(Encode(w)) = %+v, want %+v (bytes %x)", i, got, w, b)
		}
	}
	if compact == 0 {
		t.Fatalf("no random week used the compact form")
	}
}

func TestEncode_Errors(t *testing.T) {
	for _, bad := range []string{"", "25:00", "12:60", "noon", "24:00"} {
		if _, err := Encode(weekdays(bad, "18:00")); !errors.Is(err, ErrInvalidTime) {
			t.Fatalf("open %q: err = %v, want ErrInvalidTime", bad, err)
		}
	}

	var w Week
	for range 16 {
		w[0].Intervals = append(w[0].Intervals, Interval{Open: "01:00", Close: "02:00"})
	}
	if _, err := Encode(w); !errors.Is(err, ErrTooManyIntervals) {
		t.Fatalf("err = %v, want ErrTooManyIntervals", err)
	}
}

func TestDecode_Malformed(t *testing.T) {
	if _, err := Decode(nil); !errors.Is(err, ErrMalformedSchedule) {
		t.Fatalf("Decode(nil) err = %v", err)
	}

	// compact form whose day run ends past Sunday
	if _, err := Decode([]byte{0x84, 0x00}); !errors.Is(err, ErrMalformedSchedule) {
		t.Fatalf("bad day run err = %v", err)
	}

	b, err := Encode(weekdays("09:00", "17:00"))
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if _, err := Decode(b[:2]); !errors.Is(err, ErrMalformedSchedule) {
		t.Fatalf("truncated err = %v", err)
	}
}
