// Package keys builds the Redis key space of a tile cache.
//
// A tile store key is the base-58 tile id, "::" and the decimal position of
// the POI in the tile ("X::0", "X::1", ...). "X::" alone holds the zero-length
// marker of a tile known to be empty. Base-58 never produces ':' or ';', so
// every key of tile X sorts inside ["X::", "X:;").
package keys

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
)

const (
	sep      = "::"
	rangeEnd = ":;"

	maxNameLen = 64
)

var ErrMalformedKey = errors.New("malformed tile key")

// Namespace returns the key prefix of the named cache. Ephemeral caches get a
// random suffix so separate processes never share entries.
func Namespace(name string, ephemeral bool) string {
	n := sanitizeName(strings.TrimSpace(name))
	if n == "" {
		n = "default"
	}
	if len(n) > maxNameLen {
		n = fmt.Sprintf("%s-%016x", n[:maxNameLen-17], xxhash.Sum64String(n))
	}
	if ephemeral {
		n += "~" + uuid.NewString()
	}
	return "poi:" + n + ":"
}

// TileKey is the key of the n-th POI of a tile.
func TileKey(id string, n int) string {
	return id + sep + strconv.Itoa(n)
}

// EmptyKey holds the marker of a tile with no POIs.
func EmptyKey(id string) string { return id + sep }

// RangeStart and RangeEnd bound every key of tile id, end exclusive.
func RangeStart(id string) string { return id + sep }
func RangeEnd(id string) string   { return id + rangeEnd }

// ParseTileKey splits a key into its tile id and POI position. empty reports
// the "id::" marker.
func ParseTileKey(key string) (id string, n int, empty bool, err error) {
	i := strings.Index(key, sep)
	if i <= 0 {
		return "", 0, false, fmt.Errorf("%w: %q", ErrMalformedKey, key)
	}
	id, rest := key[:i], key[i+len(sep):]
	if rest == "" {
		return id, 0, true, nil
	}
	n, err = strconv.Atoi(rest)
	if err != nil || n < 0 || strconv.Itoa(n) != rest {
		return "", 0, false, fmt.Errorf("%w: %q", ErrMalformedKey, key)
	}
	return id, n, false, nil
}

func sanitizeName(s string) string {
	if s == "" {
		return ""
	}
	var b strings.Builder
	b.Grow(len(s))
	var prev rune
	for _, r := range s {
		out := rune(0)
		switch {
		case unicode.IsSpace(r):
			out = '_'
		case isAlphaNum(r) || r == '_' || r == '-' || r == '.':
			out = r
		default:
			// Any other rune (including ':' and non-ASCII) becomes '-'
			out = '-'
		}
		if (out == '_' || out == '-') && out == prev {
			continue
		}
		b.WriteRune(out)
		prev = out
	}
	return b.String()
}

func isAlphaNum(r rune) bool {
	return (r >= 'a' && r <= 'z') ||
		(r >= 'A' && r <= 'Z') ||
		(r >= '0' && r <= '9')
}
