package scalar

import (
	"bytes"
	"math/big"
	"testing"
)

func TestEncodePhone_StripsFormatting(t *testing.T) {
	enc := EncodePhone("(555) 123-4567")
	if want := []byte{0x01, 0x4a, 0xe1, 0x1e, 0x07}; !bytes.Equal(enc, want) {
		t.Fatalf("EncodePhone = %x, want %x", enc, want)
	}
	if got := DecodePhone(enc); got != "5551234567" {
		t.Fatalf("DecodePhone = %q", got)
	}
}

func TestEncodePhone_EmptyAndNonNumeric(t *testing.T) {
	for _, in := range []string{"", "call us!"} {
		if got := EncodePhone(in); !bytes.Equal(got, []byte{0x00}) {
			t.Fatalf("EncodePhone(%q) = %x, want 00", in, got)
		}
	}
	if got := DecodePhone([]byte{0x00}); got != "0" {
		t.Fatalf("DecodePhone(00) = %q, want 0", got)
	}
}

func TestEncodePhone_LongInternationalNumber(t *testing.T) {
	enc := EncodePhone("+44 20 7946 0958 123 456 789")
	if got := DecodePhone(enc); got != "442079460958123456789" {
		t.Fatalf("DecodePhone = %q", got)
	}
	if len(enc) <= 8 {
		t.Fatalf("len = %d, want more than a uint64", len(enc))
	}
}

func TestUintBytes_Minimal(t *testing.T) {
	cases := []struct {
		v    int64
		want []byte
	}{
		{0, []byte{0x00}},
		{1, []byte{0x01}},
		{127, []byte{0x7f}},
		{128, []byte{0x80}},
		{255, []byte{0xff}},
		{256, []byte{0x01, 0x00}},
		{512, []byte{0x02, 0x00}},
	}
	for _, c := range cases {
		if got := UintBytes(big.NewInt(c.v)); !bytes.Equal(got, c.want) {
			t.Fatalf("UintBytes(%d) = %x, want %x", c.v, got, c.want)
		}
		if got := SmallUintBytes(uint64(c.v)); !bytes.Equal(got, c.want) {
			t.Fatalf("SmallUintBytes(%d) = %x, want %x", c.v, got, c.want)
		}
		got, ok := BytesSmallUint(c.want)
		if !ok || got != uint64(c.v) {
			t.Fatalf("BytesSmallUint(%x) = %d, %v", c.want, got, ok)
		}
	}
}

func TestBytesSmallUint_RejectsWide(t *testing.T) {
	if _, ok := BytesSmallUint(make([]byte, 9)); ok {
		t.Fatalf("nine bytes should not fit a uint64")
	}
}
