// Package ranks maps common tag values of the four top-level OSM keys to small
// integer ranks so they can be stored in one or two bytes.
package ranks

import (
	"embed"
	"errors"
	"fmt"
	"strings"

	"github.com/mohammed-shakir/poi-tile-cache/internal/codec/scalar"
	"github.com/mohammed-shakir/poi-tile-cache/internal/codec/textcodec"
)

// MaxRank is the highest rank the fast path may emit.
const MaxRank = 512

var (
	ErrUnknownCategory = errors.New("unknown top-level key")
	ErrRankOverflow    = errors.New("rank exceeds 512")
	ErrUnknownRank     = errors.New("rank not present in table")
	ErrEmptyValue      = errors.New("empty category value")
)

//go:embed data/*.txt
var dataFS embed.FS

// Table is one ranked list of tag values.
type Table struct {
	values []string
	index  map[string]int
}

// NewTable builds a table where a value's rank is its position in values.
// Blank entries are skipped; a duplicate keeps its first rank.
func NewTable(values []string) *Table {
	t := &Table{
		values: make([]string, 0, len(values)),
		index:  make(map[string]int, len(values)),
	}
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := t.index[v]; !ok {
			t.index[v] = len(t.values)
		}
		t.values = append(t.values, v)
	}
	return t
}

func (t *Table) RankOf(value string) (int, bool) {
	r, ok := t.index[value]
	return r, ok
}

func (t *Table) ValueOf(rank int) (string, bool) {
	if rank < 0 || rank >= len(t.values) {
		return "", false
	}
	return t.values[rank], true
}

func (t *Table) Len() int { return len(t.values) }

// Set holds one table per category.
type Set struct {
	tables [numCategories]*Table
}

// NewSet builds a Set; categories missing from lists get an empty table.
func NewSet(lists map[Category][]string) *Set {
	s := &Set{}
	for _, c := range Categories {
		s.tables[c] = NewTable(lists[c])
	}
	return s
}

var defaultSet = mustLoadEmbedded()

// Default returns the tables compiled into the binary.
func Default() *Set { return defaultSet }

func mustLoadEmbedded() *Set {
	lists := make(map[Category][]string, numCategories)
	for _, c := range Categories {
		raw, err := dataFS.ReadFile("data/" + c.String() + ".txt")
		if err != nil {
			panic(fmt.Sprintf("ranks: embedded table %s: %v", c, err))
		}
		lists[c] = strings.FieldsFunc(string(raw), func(r rune) bool { return r == '\n' || r == '\r' })
	}
	return NewSet(lists)
}

func (s *Set) Table(c Category) *Table {
	if !c.Valid() {
		return NewTable(nil)
	}
	return s.tables[c]
}

// RankBytes encodes a rank in its minimal big-endian form.
func RankBytes(rank int) ([]byte, error) {
	if rank < 0 {
		return nil, fmt.Errorf("negative rank %d", rank)
	}
	if rank > MaxRank {
		return nil, fmt.Errorf("%w: %d", ErrRankOverflow, rank)
	}
	return scalar.SmallUintBytes(uint64(rank)), nil
}

// EncodeValue returns the rank bytes for a ranked value, or the compressed
// string when the value is unranked or ranked above MaxRank. Rank bytes are at
// most two bytes long and a non-empty compressed string is at least three,
// which is what DecodeValue keys on.
func (s *Set) EncodeValue(c Category, value string) ([]byte, error) {
	if !c.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownCategory, uint8(c))
	}
	if value == "" {
		return nil, ErrEmptyValue
	}
	if rank, ok := s.tables[c].RankOf(value); ok {
		b, err := RankBytes(rank)
		if err == nil {
			return b, nil
		}
		if !errors.Is(err, ErrRankOverflow) {
			return nil, err
		}
	}
	b, err := textcodec.Compress(value, textcodec.Default())
	if err != nil {
		return nil, fmt.Errorf("compress %s value: %w", c, err)
	}
	return b, nil
}

// DecodeValue reverses EncodeValue.
func (s *Set) DecodeValue(c Category, b []byte) (string, error) {
	if !c.Valid() {
		return "", fmt.Errorf("%w: %d", ErrUnknownCategory, uint8(c))
	}
	if len(b) == 0 {
		return "", ErrEmptyValue
	}
	if len(b) <= 2 {
		rank, _ := scalar.BytesSmallUint(b)
		v, ok := s.tables[c].ValueOf(int(rank))
		if !ok {
			return "", fmt.Errorf("%w: %s rank %d", ErrUnknownRank, c, rank)
		}
		return v, nil
	}
	return textcodec.TryDecompress(b, textcodec.Default()), nil
}
