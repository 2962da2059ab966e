// Package record serializes a POI into a tagged, length-prefixed blob:
//
//	fieldCount:2 ( tagLen:2 tag valueLen:4 value )*
//
// Recognized fields use decimal tags: "0".."3" for the categories (matching
// the category byte), then 4 name, 5 addr, 6 website, 7 opening_hours,
// 8 phone, 9 email, 10 description, 11 social. Any other tag is the literal
// name of an extra field, plain or compressed with the default text profile.
// All integers are big-endian.
package record

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"

	"github.com/mohammed-shakir/poi-tile-cache/internal/codec/compress"
	"github.com/mohammed-shakir/poi-tile-cache/internal/codec/hours"
	"github.com/mohammed-shakir/poi-tile-cache/internal/codec/ranks"
	"github.com/mohammed-shakir/poi-tile-cache/internal/codec/scalar"
	"github.com/mohammed-shakir/poi-tile-cache/internal/codec/textcodec"
	"github.com/mohammed-shakir/poi-tile-cache/internal/core/model"
)

var (
	ErrMalformedRecord = errors.New("malformed poi record")
	ErrReservedField   = errors.New("extra field uses a reserved name")
)

const (
	tagName         = 4
	tagAddr         = 5
	tagWebsite      = 6
	tagOpeningHours = 7
	tagPhone        = 8
	tagEmail        = 9
	tagDescription  = 10
	tagSocial       = 11
	maxTag          = tagSocial
)

// Codec encodes and decodes POI records. The zero value uses the general
// domain, the embedded rank tables and stores descriptions raw; New picks
// zstd for descriptions.
type Codec struct {
	Domain      textcodec.Domain
	Ranks       *ranks.Set
	Description compress.Type
}

func New(domain textcodec.Domain) Codec {
	return Codec{Domain: domain, Ranks: ranks.Default(), Description: compress.Zstd}
}

func (c Codec) ranks() *ranks.Set {
	if c.Ranks == nil {
		return ranks.Default()
	}
	return c.Ranks
}

func (c Codec) profile(f textcodec.Field) *textcodec.Profile {
	return textcodec.ProfileFor(f, c.Domain)
}

type field struct {
	tag   string
	value []byte
}

// Encode serializes p. Empty fields are omitted.
func (c Codec) Encode(p model.POI) ([]byte, error) {
	var fields []field
	add := func(tag int, v []byte) {
		fields = append(fields, field{tag: strconv.Itoa(tag), value: v})
	}
	text := func(tag int, f textcodec.Field, s string) error {
		if s == "" {
			return nil
		}
		b, err := textcodec.Compress(s, c.profile(f))
		if err != nil {
			return fmt.Errorf("field %d: %w", tag, err)
		}
		add(tag, b)
		return nil
	}

	for _, cat := range ranks.Categories {
		v := p.Category(cat)
		if v == "" {
			continue
		}
		b, err := c.ranks().EncodeValue(cat, v)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", cat, err)
		}
		add(int(cat.Byte()), b)
	}

	if err := text(tagName, textcodec.FieldName, p.Name); err != nil {
		return nil, err
	}
	if err := text(tagAddr, textcodec.FieldAddress, p.Addr); err != nil {
		return nil, err
	}
	if err := text(tagWebsite, textcodec.FieldURL, p.Website); err != nil {
		return nil, err
	}
	if p.OpeningHours != nil {
		b, err := hours.Encode(*p.OpeningHours)
		if err != nil {
			return nil, fmt.Errorf("field opening_hours: %w", err)
		}
		add(tagOpeningHours, b)
	}
	if p.Phone != "" {
		add(tagPhone, scalar.EncodePhone(p.Phone))
	}
	if err := text(tagEmail, textcodec.FieldEmail, p.Email); err != nil {
		return nil, err
	}
	if p.Description != "" {
		b, err := compress.Pack(c.Description, []byte(p.Description))
		if err != nil {
			return nil, fmt.Errorf("field description: %w", err)
		}
		add(tagDescription, b)
	}
	if len(p.Social) > 0 {
		b, err := c.encodeSocial(p.Social)
		if err != nil {
			return nil, err
		}
		add(tagSocial, b)
	}

	extras := make([]string, 0, len(p.Extra))
	for k := range p.Extra {
		extras = append(extras, k)
	}
	sort.Strings(extras)
	for _, k := range extras {
		if reserved(k) {
			return nil, fmt.Errorf("%w: %q", ErrReservedField, k)
		}
		v := p.Extra[k]
		if v == "" {
			continue
		}
		if len(k) > math.MaxUint16 {
			return nil, fmt.Errorf("%w: name of %d bytes", ErrReservedField, len(k))
		}
		b, err := textcodec.Compress(v, textcodec.Default())
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", k, err)
		}
		fields = append(fields, field{tag: k, value: b})
	}

	return frame(fields)
}

func reserved(k string) bool {
	if k == "" || model.IsRecognized(k) {
		return true
	}
	n, err := strconv.Atoi(k)
	return err == nil && n >= 0 && n <= maxTag && strconv.Itoa(n) == k
}

func frame(fields []field) ([]byte, error) {
	if len(fields) > math.MaxUint16 {
		return nil, fmt.Errorf("%w: %d fields", ErrMalformedRecord, len(fields))
	}
	size := 2
	for _, f := range fields {
		size += 2 + len(f.tag) + 4 + len(f.value)
	}
	out := make([]byte, 0, size)
	out = binary.BigEndian.AppendUint16(out, uint16(len(fields)))
	for _, f := range fields {
		if uint64(len(f.value)) > math.MaxUint32 {
			return nil, fmt.Errorf("%w: field %q of %d bytes", ErrMalformedRecord, f.tag, len(f.value))
		}
		out = binary.BigEndian.AppendUint16(out, uint16(len(f.tag)))
		out = append(out, f.tag...)
		out = binary.BigEndian.AppendUint32(out, uint32(len(f.value)))
		out = append(out, f.value...)
	}
	return out, nil
}

// social: count:2 ( platformLen:2 platform urlLen:4 url )*, sorted by platform.
func (c Codec) encodeSocial(social map[string]string) ([]byte, error) {
	platforms := make([]string, 0, len(social))
	for k, v := range social {
		if k != "" && v != "" {
			platforms = append(platforms, k)
		}
	}
	sort.Strings(platforms)
	if len(platforms) > math.MaxUint16 {
		return nil, fmt.Errorf("%w: %d social entries", ErrMalformedRecord, len(platforms))
	}

	out := binary.BigEndian.AppendUint16(nil, uint16(len(platforms)))
	for _, k := range platforms {
		pb, err := textcodec.Compress(k, textcodec.Default())
		if err != nil {
			return nil, fmt.Errorf("social platform %q: %w", k, err)
		}
		ub, err := textcodec.Compress(social[k], c.profile(textcodec.FieldSocial))
		if err != nil {
			return nil, fmt.Errorf("social %q url: %w", k, err)
		}
		out = binary.BigEndian.AppendUint16(out, uint16(len(pb)))
		out = append(out, pb...)
		out = binary.BigEndian.AppendUint32(out, uint32(len(ub)))
		out = append(out, ub...)
	}
	return out, nil
}
