package ranks

import (
	"bytes"
	"errors"
	"fmt"
	"testing"
)

func syntheticSet(n int) *Set {
	vals := make([]string, n)
	for i := range vals {
		vals[i] = fmt.Sprintf("v%d", i)
	}
	return NewSet(map[Category][]string{Amenity: vals})
}

func TestDefault_EmbeddedTablesLoaded(t *testing.T) {
	s := Default()
	for _, c := range Categories {
		if s.Table(c).Len() == 0 {
			t.Fatalf("%s table is empty", c)
		}
	}

	if r, ok := s.Table(Amenity).RankOf("bar"); !ok || r != 0 {
		t.Fatalf("RankOf(bar) = %d, %v", r, ok)
	}
	if v, ok := s.Table(Tourism).ValueOf(0); !ok || v != "hotel" {
		t.Fatalf("ValueOf(0) = %q, %v", v, ok)
	}
	if _, ok := s.Table(Shop).RankOf("definitely_not_a_shop"); ok {
		t.Fatalf("unexpected rank for unknown shop")
	}
}

func TestRankBytes_Boundary(t *testing.T) {
	b, err := RankBytes(512)
	if err != nil || !bytes.Equal(b, []byte{0x02, 0x00}) {
		t.Fatalf("RankBytes(512) = %x, %v", b, err)
	}
	if _, err := RankBytes(513); !errors.Is(err, ErrRankOverflow) {
		t.Fatalf("RankBytes(513) err = %v", err)
	}
	b, err = RankBytes(0)
	if err != nil || !bytes.Equal(b, []byte{0x00}) {
		t.Fatalf("RankBytes(0) = %x, %v", b, err)
	}
}

func TestEncodeValue_RankBoundaryFallsBackToText(t *testing.T) {
	s := syntheticSet(600)

	at, err := s.EncodeValue(Amenity, "v512")
	if err != nil || !bytes.Equal(at, []byte{0x02, 0x00}) {
		t.Fatalf("EncodeValue(v512) = %x, %v", at, err)
	}
	if got, err := s.DecodeValue(Amenity, at); err != nil || got != "v512" {
		t.Fatalf("DecodeValue = %q, %v", got, err)
	}

	over, err := s.EncodeValue(Amenity, "v513")
	if err != nil {
		t.Fatalf("EncodeValue(v513): %v", err)
	}
	if len(over) <= 2 {
		t.Fatalf("v513 should fall back to text, got %x", over)
	}
	if got, err := s.DecodeValue(Amenity, over); err != nil || got != "v513" {
		t.Fatalf("DecodeValue = %q, %v", got, err)
	}
}

func TestEncodeValue_UnrankedRoundTrip(t *testing.T) {
	s := Default()
	for _, c := range Categories {
		b, err := s.EncodeValue(c, "x")
		if err != nil {
			t.Fatalf("%s: EncodeValue: %v", c, err)
		}
		if len(b) != 3 {
			t.Fatalf("%s: encoded %x, want 3 bytes", c, b)
		}
		if got, err := s.DecodeValue(c, b); err != nil || got != "x" {
			t.Fatalf("%s: DecodeValue = %q, %v", c, got, err)
		}
	}
}

func TestEncodeValue_Errors(t *testing.T) {
	s := Default()
	if _, err := s.EncodeValue(Amenity, ""); !errors.Is(err, ErrEmptyValue) {
		t.Fatalf("empty value err = %v", err)
	}
	if _, err := s.EncodeValue(Category(9), "bar"); !errors.Is(err, ErrUnknownCategory) {
		t.Fatalf("unknown category err = %v", err)
	}
	if _, err := s.DecodeValue(Tourism, []byte{0x02, 0x00}); !errors.Is(err, ErrUnknownRank) {
		t.Fatalf("unknown rank err = %v", err)
	}
}

func TestCategory_ByteMapping(t *testing.T) {
	want := map[string]byte{"tourism": 0, "leisure": 1, "shop": 2, "amenity": 3}
	for name, b := range want {
		c, err := ParseCategory(name)
		if err != nil || c.Byte() != b {
			t.Fatalf("ParseCategory(%q) = %v, %v", name, c, err)
		}
		back, err := CategoryFromByte(b)
		if err != nil || back.String() != name {
			t.Fatalf("CategoryFromByte(%d) = %v, %v", b, back, err)
		}
	}

	if _, err := CategoryFromByte(4); !errors.Is(err, ErrUnknownCategory) {
		t.Fatalf("CategoryFromByte(4) err = %v", err)
	}
	if _, err := ParseCategory("highway"); !errors.Is(err, ErrUnknownCategory) {
		t.Fatalf("ParseCategory(highway) err = %v", err)
	}
}
