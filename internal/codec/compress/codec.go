// Package compress wraps general-purpose byte compressors behind a one-byte
// type tag so long free-text fields can pick the best codec per value.
package compress

import (
	"errors"
	"fmt"
	"strings"
)

var ErrUnknownType = errors.New("unknown compression type")

// Type is the tag byte written ahead of a packed payload.
type Type byte

const (
	None Type = iota
	Zstd
	S2
	LZ4
)

func (t Type) String() string {
	switch t {
	case None:
		return "none"
	case Zstd:
		return "zstd"
	case S2:
		return "s2"
	case LZ4:
		return "lz4"
	}
	return fmt.Sprintf("type(%d)", byte(t))
}

func ParseType(s string) (Type, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "zstd":
		return Zstd, nil
	case "none", "raw":
		return None, nil
	case "s2":
		return S2, nil
	case "lz4":
		return LZ4, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownType, s)
}

type Codec interface {
	Compress(data []byte) ([]byte, error)
	Decompress(data []byte) ([]byte, error)
}

var builtin = map[Type]Codec{
	None: noopCodec{},
	Zstd: zstdCodec{},
	S2:   s2Codec{},
	LZ4:  lz4Codec{},
}

// Get returns the built-in codec for t.
func Get(t Type) (Codec, error) {
	if c, ok := builtin[t]; ok {
		return c, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownType, t)
}

// Pack compresses data with t and prefixes the tag byte. When compression
// does not shrink the payload it is stored raw under None.
func Pack(t Type, data []byte) ([]byte, error) {
	c, err := Get(t)
	if err != nil {
		return nil, err
	}
	if t != None && len(data) > 0 {
		out, err := c.Compress(data)
		if err != nil {
			return nil, fmt.Errorf("%s compress: %w", t, err)
		}
		if len(out) > 0 && len(out) < len(data) {
			return append([]byte{byte(t)}, out...), nil
		}
	}
	return append([]byte{byte(None)}, data...), nil
}

// Unpack reverses Pack.
func Unpack(b []byte) ([]byte, error) {
	if len(b) == 0 {
		return nil, fmt.Errorf("%w: empty payload", ErrUnknownType)
	}
	t := Type(b[0])
	c, err := Get(t)
	if err != nil {
		return nil, err
	}
	out, err := c.Decompress(b[1:])
	if err != nil {
		return nil, fmt.Errorf("%s decompress: %w", t, err)
	}
	return out, nil
}
