// Package tileid packs a map tile and a category filter into a short binary
// key that sorts by zoom, then category, then value, then Z-order position:
//
//	byte 0   zoomOffset<<4 (low nibble zero)
//	byte 1   category byte
//	value    rank (1-2 bytes) or compressed text (3+ bytes)
//	morton   ceil(2z/8) bytes, big-endian
package tileid

import (
	"errors"
	"fmt"

	"github.com/mr-tron/base58"

	"github.com/mohammed-shakir/poi-tile-cache/internal/codec/ranks"
)

var (
	ErrZoomBelowFloor  = errors.New("zoom below configured minimum")
	ErrZoomOffsetRange = errors.New("zoom offset does not fit in 4 bits")
	ErrTileOutOfRange  = errors.New("tile coordinate outside zoom level")
	ErrMalformedID     = errors.New("malformed tile id")
)

const (
	MaxZoomOffset = 15
	maxZoom       = 32
	headerLen     = 2
)

// Encoder builds tile ids. A nil Ranks uses the embedded tables.
type Encoder struct {
	Ranks *ranks.Set
}

func (e Encoder) ranks() *ranks.Set {
	if e.Ranks == nil {
		return ranks.Default()
	}
	return e.Ranks
}

// Encode returns the id of tile (x, y, z) filtered on category=value.
func (e Encoder) Encode(x, y uint32, z, minZoom int, cat ranks.Category, value string) ([]byte, error) {
	if z < minZoom {
		return nil, fmt.Errorf("%w: z=%d min=%d", ErrZoomBelowFloor, z, minZoom)
	}
	zp := z - minZoom
	if zp > MaxZoomOffset || z > maxZoom {
		return nil, fmt.Errorf("%w: z=%d min=%d", ErrZoomOffsetRange, z, minZoom)
	}
	if z < maxZoom && (uint64(x)>>uint(z) != 0 || uint64(y)>>uint(z) != 0) {
		return nil, fmt.Errorf("%w: %d/%d/%d", ErrTileOutOfRange, z, x, y)
	}

	val, err := e.ranks().EncodeValue(cat, value)
	if err != nil {
		return nil, err
	}

	n := mortonLen(z)
	out := make([]byte, headerLen+len(val)+n)
	out[0] = byte(zp << 4)
	out[1] = cat.Byte()
	copy(out[headerLen:], val)
	putMorton(out[headerLen+len(val):], Morton(x, y, z))
	return out, nil
}

// Morton interleaves the low z bits of x and y: bit 2i is x's bit i and
// bit 2i+1 is y's bit i.
func Morton(x, y uint32, z int) uint64 {
	var out uint64
	for i := 0; i < z && i < maxZoom; i++ {
		out |= uint64(x>>uint(i)&1) << (2 * uint(i))
		out |= uint64(y>>uint(i)&1) << (2*uint(i) + 1)
	}
	return out
}

// Unmorton splits a Morton code back into x and y.
func Unmorton(m uint64, z int) (x, y uint32) {
	for i := 0; i < z && i < maxZoom; i++ {
		x |= uint32(m>>(2*uint(i))&1) << uint(i)
		y |= uint32(m>>(2*uint(i)+1)&1) << uint(i)
	}
	return x, y
}

func mortonLen(z int) int { return (2*z + 7) / 8 }

func putMorton(dst []byte, m uint64) {
	for i := len(dst) - 1; i >= 0; i-- {
		dst[i] = byte(m)
		m >>= 8
	}
}

// ParseHeader reads the zoom offset and category of an id.
func ParseHeader(id []byte) (zoomOffset int, cat ranks.Category, err error) {
	if len(id) < headerLen {
		return 0, 0, fmt.Errorf("%w: %d bytes", ErrMalformedID, len(id))
	}
	if id[0]&0x0f != 0 {
		return 0, 0, fmt.Errorf("%w: reserved bits set", ErrMalformedID)
	}
	cat, err = ranks.CategoryFromByte(id[1])
	if err != nil {
		return 0, 0, err
	}
	return int(id[0] >> 4), cat, nil
}

// Key is a decoded tile id.
type Key struct {
	X, Y     uint32
	Z        int
	Category ranks.Category
	Value    string
}

// Decode reverses Encode for ids built with the same minZoom.
func (e Encoder) Decode(id []byte, minZoom int) (Key, error) {
	zp, cat, err := ParseHeader(id)
	if err != nil {
		return Key{}, err
	}
	z := minZoom + zp
	n := mortonLen(z)
	vlen := len(id) - headerLen - n
	if vlen < 1 {
		return Key{}, fmt.Errorf("%w: %d bytes for zoom %d", ErrMalformedID, len(id), z)
	}
	val, err := e.ranks().DecodeValue(cat, id[headerLen:headerLen+vlen])
	if err != nil {
		return Key{}, err
	}
	var m uint64
	for _, b := range id[headerLen+vlen:] {
		m = m<<8 | uint64(b)
	}
	x, y := Unmorton(m, z)
	return Key{X: x, Y: y, Z: z, Category: cat, Value: val}, nil
}

// String is the base-58 form used in store keys.
func String(id []byte) string { return base58.Encode(id) }

// Parse decodes the base-58 form.
func Parse(s string) ([]byte, error) {
	if s == "" {
		return nil, fmt.Errorf("%w: empty", ErrMalformedID)
	}
	b, err := base58.Decode(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedID, err)
	}
	return b, nil
}
