// Package textcodec compresses short strings against per-field codebooks of
// frequent substrings.
//
// A compressed value is a 2-byte big-endian payload length followed by the
// payload. The payload is a sequence of codebook indexes, interleaved with
// literal runs for bytes no entry covers. Values that fail this framing are
// treated as legacy plaintext by TryDecompress.
package textcodec

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"strings"
)

var (
	ErrCorrupt = errors.New("textcodec: corrupt payload")
	ErrTooLong = errors.New("textcodec: compressed payload exceeds 65535 bytes")
)

const headerLen = 2

// Compress encodes s with the given profile's codebook.
func Compress(s string, p *Profile) ([]byte, error) {
	if p == nil {
		p = defaultProfile
	}
	out := make([]byte, headerLen, headerLen+len(s))
	var lit []byte
	flush := func() {
		for len(lit) > 0 {
			n := min(len(lit), 256)
			if n == 1 {
				out = append(out, verbatimByte, lit[0])
			} else {
				out = append(out, verbatimString, byte(n-1))
				out = append(out, lit[:n]...)
			}
			lit = lit[n:]
		}
	}
	for i := 0; i < len(s); {
		n, code := p.book.root.longest(s[i:])
		if n == 0 {
			lit = append(lit, s[i])
			i++
			continue
		}
		flush()
		out = append(out, code)
		i += n
	}
	flush()

	payload := len(out) - headerLen
	if payload > math.MaxUint16 {
		return nil, fmt.Errorf("%w: %d", ErrTooLong, payload)
	}
	binary.BigEndian.PutUint16(out, uint16(payload))
	return out, nil
}

// Decompress reverses Compress. The profile must match the one used to encode.
func Decompress(b []byte, p *Profile) (string, error) {
	if p == nil {
		p = defaultProfile
	}
	if len(b) < headerLen {
		return "", fmt.Errorf("%w: short header", ErrCorrupt)
	}
	if int(binary.BigEndian.Uint16(b)) != len(b)-headerLen {
		return "", fmt.Errorf("%w: length mismatch", ErrCorrupt)
	}
	entries := p.book.entries
	var sb strings.Builder
	sb.Grow(2 * len(b))
	for i := headerLen; i < len(b); {
		c := b[i]
		i++
		switch {
		case c == verbatimByte:
			if i >= len(b) {
				return "", fmt.Errorf("%w: truncated literal", ErrCorrupt)
			}
			sb.WriteByte(b[i])
			i++
		case c == verbatimString:
			if i >= len(b) {
				return "", fmt.Errorf("%w: truncated literal run", ErrCorrupt)
			}
			n := int(b[i]) + 1
			i++
			if i+n > len(b) {
				return "", fmt.Errorf("%w: truncated literal run", ErrCorrupt)
			}
			sb.Write(b[i : i+n])
			i += n
		case int(c) < len(entries):
			sb.WriteString(entries[c])
		default:
			return "", fmt.Errorf("%w: code %d outside %s codebook", ErrCorrupt, c, p.name)
		}
	}
	return sb.String(), nil
}

// TryDecompress returns the decoded text, or b itself as text when b is not a
// valid compressed value (stored plaintext from older writers).
func TryDecompress(b []byte, p *Profile) string {
	s, err := Decompress(b, p)
	if err != nil {
		return string(b)
	}
	return s
}
