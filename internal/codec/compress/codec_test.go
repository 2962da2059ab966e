package compress

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestPack_RoundTripAllTypes(t *testing.T) {
	text := []byte(strings.Repeat("A quiet park with a pond, benches and a small playground. ", 8))
	for _, typ := range []Type{None, Zstd, S2, LZ4} {
		packed, err := Pack(typ, text)
		if err != nil {
			t.Fatalf("%s: Pack: %v", typ, err)
		}
		if packed[0] != byte(typ) {
			t.Fatalf("%s: type byte = %d", typ, packed[0])
		}
		if typ != None && len(packed) >= len(text) {
			t.Fatalf("%s: packed %d bytes, input %d", typ, len(packed), len(text))
		}

		got, err := Unpack(packed)
		if err != nil {
			t.Fatalf("%s: Unpack: %v", typ, err)
		}
		if !bytes.Equal(got, text) {
			t.Fatalf("%s: round trip mismatch", typ)
		}
	}
}

func TestPack_IncompressibleStoredRaw(t *testing.T) {
	short := []byte("Cafe")
	want := append([]byte{byte(None)}, short...)
	for _, typ := range []Type{Zstd, S2, LZ4} {
		packed, err := Pack(typ, short)
		if err != nil {
			t.Fatalf("%s: Pack: %v", typ, err)
		}
		if !bytes.Equal(packed, want) {
			t.Fatalf("%s: packed = %x, want %x", typ, packed, want)
		}

		got, err := Unpack(packed)
		if err != nil || !bytes.Equal(short, got) {
			t.Fatalf("%s: Unpack = %q, %v", typ, got, err)
		}
	}
}

func TestUnpack_Errors(t *testing.T) {
	if _, err := Unpack(nil); !errors.Is(err, ErrUnknownType) {
		t.Fatalf("Unpack(nil) err = %v", err)
	}
	if _, err := Unpack([]byte{0x09, 0x01}); !errors.Is(err, ErrUnknownType) {
		t.Fatalf("unknown type err = %v", err)
	}
	if _, err := Unpack([]byte{byte(Zstd), 0xde, 0xad, 0xbe, 0xef}); err == nil {
		t.Fatalf("expected error for corrupt zstd frame")
	}
}

func TestParseType(t *testing.T) {
	for in, want := range map[string]Type{"": Zstd, "ZSTD": Zstd, "s2": S2, "lz4": LZ4, "none": None} {
		got, err := ParseType(in)
		if err != nil || got != want {
			t.Fatalf("ParseType(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
	if _, err := ParseType("brotli"); !errors.Is(err, ErrUnknownType) {
		t.Fatalf("ParseType(brotli) err = %v", err)
	}
}
