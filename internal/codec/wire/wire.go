// Package wire frames batches of tile ids and POI blobs for the remote cache.
//
//	read request    0x01 ( idLen:2 id )*
//	write request   0x02 ( idLen:2 id nLen:2 n poiLen:4 poi )*
//	grouped reply   idCount:4 ( idLen:2 id poiCount:4 ( poiLen:2 poi )* )*
//
// The grouped reply carries no mode byte. All integers are big-endian.
// Decoded slices alias the input buffer.
package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

var (
	ErrMalformedFrame  = errors.New("malformed batch frame")
	ErrPayloadTooLarge = errors.New("payload exceeds frame length field")
	ErrUnknownMode     = errors.New("unknown batch mode")
)

const (
	ModeRead  byte = 0x01
	ModeWrite byte = 0x02
)

// Entry is one stored POI: tile id, sequence index within the tile, blob.
// An empty POI marks a tile known to hold nothing.
type Entry struct {
	ID  []byte
	N   []byte
	POI []byte
}

// Group is every POI blob stored under one id.
type Group struct {
	ID   []byte
	POIs [][]byte
}

// PeekMode returns the mode byte of a request frame.
func PeekMode(b []byte) (byte, error) {
	if len(b) == 0 {
		return 0, fmt.Errorf("%w: empty frame", ErrMalformedFrame)
	}
	switch b[0] {
	case ModeRead, ModeWrite:
		return b[0], nil
	}
	return 0, fmt.Errorf("%w: 0x%02x", ErrUnknownMode, b[0])
}

func EncodeReadBatch(ids [][]byte) ([]byte, error) {
	size := 1
	for _, id := range ids {
		size += 2 + len(id)
	}
	out := make([]byte, 0, size)
	out = append(out, ModeRead)
	var err error
	for _, id := range ids {
		if out, err = appendShort(out, id, "id"); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func DecodeReadBatch(b []byte) ([][]byte, error) {
	if err := expectMode(b, ModeRead); err != nil {
		return nil, err
	}
	r := reader{buf: b, off: 1}
	var ids [][]byte
	for !r.done() {
		id, err := r.short()
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func EncodeWriteBatch(entries []Entry) ([]byte, error) {
	size := 1
	for _, e := range entries {
		size += 2 + len(e.ID) + 2 + len(e.N) + 4 + len(e.POI)
	}
	out := make([]byte, 0, size)
	out = append(out, ModeWrite)
	var err error
	for _, e := range entries {
		if out, err = appendShort(out, e.ID, "id"); err != nil {
			return nil, err
		}
		if out, err = appendShort(out, e.N, "n"); err != nil {
			return nil, err
		}
		if uint64(len(e.POI)) > math.MaxUint32 {
			return nil, fmt.Errorf("%w: poi of %d bytes", ErrPayloadTooLarge, len(e.POI))
		}
		out = binary.BigEndian.AppendUint32(out, uint32(len(e.POI)))
		out = append(out, e.POI...)
	}
	return out, nil
}

func DecodeWriteBatch(b []byte) ([]Entry, error) {
	if err := expectMode(b, ModeWrite); err != nil {
		return nil, err
	}
	r := reader{buf: b, off: 1}
	var entries []Entry
	for !r.done() {
		var e Entry
		var err error
		if e.ID, err = r.short(); err != nil {
			return nil, err
		}
		if e.N, err = r.short(); err != nil {
			return nil, err
		}
		n, err := r.u32()
		if err != nil {
			return nil, err
		}
		if e.POI, err = r.take(n); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// EncodeGroupedResponse fails with ErrPayloadTooLarge when an id or a POI
// blob does not fit its 2-byte length.
func EncodeGroupedResponse(groups []Group) ([]byte, error) {
	if uint64(len(groups)) > math.MaxUint32 {
		return nil, fmt.Errorf("%w: %d ids", ErrPayloadTooLarge, len(groups))
	}
	size := 4
	for _, g := range groups {
		size += 2 + len(g.ID) + 4
		for _, p := range g.POIs {
			size += 2 + len(p)
		}
	}
	out := make([]byte, 0, size)
	out = binary.BigEndian.AppendUint32(out, uint32(len(groups)))
	var err error
	for _, g := range groups {
		if out, err = appendShort(out, g.ID, "id"); err != nil {
			return nil, err
		}
		out = binary.BigEndian.AppendUint32(out, uint32(len(g.POIs)))
		for _, p := range g.POIs {
			if out, err = appendShort(out, p, "poi"); err != nil {
				return nil, err
			}
		}
	}
	return out, nil
}

func DecodeGroupedResponse(b []byte) ([]Group, error) {
	r := reader{buf: b}
	count, err := r.u32()
	if err != nil {
		return nil, err
	}
	// each group needs at least 6 bytes
	if count > (len(b)-4)/6 {
		return nil, fmt.Errorf("%w: %d ids in %d bytes", ErrMalformedFrame, count, len(b))
	}
	groups := make([]Group, 0, count)
	for range count {
		var g Group
		if g.ID, err = r.short(); err != nil {
			return nil, err
		}
		n, err := r.u32()
		if err != nil {
			return nil, err
		}
		if n > (len(b)-r.off)/2 {
			return nil, fmt.Errorf("%w: %d pois in %d bytes", ErrMalformedFrame, n, len(b)-r.off)
		}
		for range n {
			p, err := r.short()
			if err != nil {
				return nil, err
			}
			g.POIs = append(g.POIs, p)
		}
		groups = append(groups, g)
	}
	if !r.done() {
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrMalformedFrame, len(b)-r.off)
	}
	return groups, nil
}

// GroupMap indexes groups by string(id).
func GroupMap(groups []Group) map[string][][]byte {
	out := make(map[string][][]byte, len(groups))
	for _, g := range groups {
		out[string(g.ID)] = append(out[string(g.ID)], g.POIs...)
	}
	return out
}

func expectMode(b []byte, want byte) error {
	m, err := PeekMode(b)
	if err != nil {
		return err
	}
	if m != want {
		return fmt.Errorf("%w: got 0x%02x, want 0x%02x", ErrUnknownMode, m, want)
	}
	return nil
}

func appendShort(out, v []byte, what string) ([]byte, error) {
	if len(v) > math.MaxUint16 {
		return nil, fmt.Errorf("%w: %s of %d bytes", ErrPayloadTooLarge, what, len(v))
	}
	out = binary.BigEndian.AppendUint16(out, uint16(len(v)))
	return append(out, v...), nil
}

type reader struct {
	buf []byte
	off int
}

func (r *reader) done() bool { return r.off >= len(r.buf) }

func (r *reader) take(n int) ([]byte, error) {
	if n < 0 || n > len(r.buf)-r.off {
		return nil, fmt.Errorf("%w: need %d bytes at offset %d of %d", ErrMalformedFrame, n, r.off, len(r.buf))
	}
	if n == 0 {
		return nil, nil
	}
	b := r.buf[r.off : r.off+n : r.off+n]
	r.off += n
	return b, nil
}

func (r *reader) short() ([]byte, error) {
	b, err := r.take(2)
	if err != nil {
		return nil, err
	}
	return r.take(int(binary.BigEndian.Uint16(b)))
}

func (r *reader) u32() (int, error) {
	b, err := r.take(4)
	if err != nil {
		return 0, err
	}
	return int(binary.BigEndian.Uint32(b)), nil
}
