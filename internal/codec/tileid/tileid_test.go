package tileid

import (
	"bytes"
	"errors"
	"testing"

	"github.com/mohammed-shakir/poi-tile-cache/internal/codec/ranks"
)

func TestEncode_Scenario(t *testing.T) {
	id, err := Encoder{}.Encode(150, 200, 12, 9, ranks.Amenity, "bar")
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if want := []byte{0x30, 0x03, 0x00, 0x00, 0xe1, 0x94}; !bytes.Equal(id, want) {
		t.Fatalf("id = %x, want %x", id, want)
	}

	zp, cat, err := ParseHeader(id)
	if err != nil || zp != 3 || cat != ranks.Amenity {
		t.Fatalf("ParseHeader = %d, %v, %v", zp, cat, err)
	}
}

func TestMorton(t *testing.T) {
	if m := Morton(3, 5, 3); m != 39 {
		t.Fatalf("Morton(3,5,3) = %d, want 39", m)
	}
	if m := Morton(150, 200, 12); m != 0xe194 {
		t.Fatalf("Morton(150,200,12) = %#x, want 0xe194", m)
	}
	if x, y := Unmorton(0xe194, 12); x != 150 || y != 200 {
		t.Fatalf("Unmorton = %d,%d", x, y)
	}
}

func TestEncode_OrderFollowsMorton(t *testing.T) {
	e := Encoder{}
	const z = 10
	var prevM uint64
	var prev []byte
	for y := uint32(0); y < 8; y++ {
		for x := uint32(0); x < 8; x++ {
			id, err := e.Encode(x*37, y*53, z, 9, ranks.Shop, "bakery")
			if err != nil {
				t.Fatalf("Encode(%d,%d): %v", x*37, y*53, err)
			}
			m := Morton(x*37, y*53, z)
			if prev != nil {
				cmp := bytes.Compare(prev, id)
				if (prevM < m && cmp != -1) || (prevM > m && cmp != 1) {
					t.Fatalf("byte order %d disagrees with morton %d vs %d", cmp, prevM, m)
				}
			}
			prev, prevM = id, m
		}
	}
}

func TestEncode_Errors(t *testing.T) {
	e := Encoder{}
	cases := []struct {
		x, y uint32
		z    int
		cat  ranks.Category
		want error
	}{
		{1, 1, 8, ranks.Amenity, ErrZoomBelowFloor},
		{1, 1, 25, ranks.Amenity, ErrZoomOffsetRange},
		{1 << 12, 0, 12, ranks.Amenity, ErrTileOutOfRange},
		{1, 1, 12, ranks.Category(7), ranks.ErrUnknownCategory},
	}
	for _, c := range cases {
		if _, err := e.Encode(c.x, c.y, c.z, 9, c.cat, "bar"); !errors.Is(err, c.want) {
			t.Fatalf("Encode(%d,%d,%d,%v) err = %v, want %v", c.x, c.y, c.z, c.cat, err, c.want)
		}
	}
}

func TestDecode_RoundTrip(t *testing.T) {
	e := Encoder{}
	for _, tc := range []struct {
		x, y  uint32
		z     int
		cat   ranks.Category
		value string
	}{
		{150, 200, 12, ranks.Amenity, "bar"},
		{0, 0, 9, ranks.Tourism, "hotel"},
		{65535, 1, 16, ranks.Leisure, "a leisure value with no rank"},
		{5, 9, 13, ranks.Shop, "bakery"},
	} {
		id, err := e.Encode(tc.x, tc.y, tc.z, 9, tc.cat, tc.value)
		if err != nil {
			t.Fatalf("Encode %+v: %v", tc, err)
		}

		k, err := e.Decode(id, 9)
		if err != nil {
			t.Fatalf("Decode %x: %v", id, err)
		}
		if want := (Key{X: tc.x, Y: tc.y, Z: tc.z, Category: tc.cat, Value: tc.value}); k != want {
			t.Fatalf("Decode = %+v, want %+v", k, want)
		}

		back, err := Parse(String(id))
		if err != nil || !bytes.Equal(back, id) {
			t.Fatalf("Parse(String) = %x, %v", back, err)
		}
	}
}

func TestParse_Invalid(t *testing.T) {
	for _, s := range []string{"", "0OIl"} {
		if _, err := Parse(s); !errors.Is(err, ErrMalformedID) {
			t.Fatalf("Parse(%q) err = %v", s, err)
		}
	}
	if _, _, err := ParseHeader([]byte{0x31, 0x03}); !errors.Is(err, ErrMalformedID) {
		t.Fatalf("bad version err = %v", err)
	}
	if _, _, err := ParseHeader([]byte{0x30, 0x09}); !errors.Is(err, ranks.ErrUnknownCategory) {
		t.Fatalf("bad category err = %v", err)
	}
}

func TestExtractBinary(t *testing.T) {
	raw := []byte{0x00, 0x01, 0xfe}
	if got, err := ExtractBinary(raw); err != nil || !bytes.Equal(got, raw) {
		t.Fatalf("raw = %x, %v", got, err)
	}
	if got, err := ExtractBinary(DataURI(raw)); err != nil || !bytes.Equal(got, raw) {
		t.Fatalf("data uri = %x, %v", got, err)
	}

	for _, v := range []any{"plain text", 42, nil, DataURIPrefix + "!!"} {
		if _, err := ExtractBinary(v); !errors.Is(err, ErrUnrecognizedBinaryType) {
			t.Fatalf("ExtractBinary(%v) err = %v", v, err)
		}
	}
}
