package record

import (
	"encoding/binary"
	"fmt"
	"strconv"

	"github.com/mohammed-shakir/poi-tile-cache/internal/codec/compress"
	"github.com/mohammed-shakir/poi-tile-cache/internal/codec/hours"
	"github.com/mohammed-shakir/poi-tile-cache/internal/codec/ranks"
	"github.com/mohammed-shakir/poi-tile-cache/internal/codec/scalar"
	"github.com/mohammed-shakir/poi-tile-cache/internal/codec/textcodec"
	"github.com/mohammed-shakir/poi-tile-cache/internal/core/model"
)

type reader struct {
	buf []byte
	off int
}

func (r *reader) take(n int) ([]byte, error) {
	if n < 0 || n > len(r.buf)-r.off {
		return nil, fmt.Errorf("%w: need %d bytes at offset %d of %d", ErrMalformedRecord, n, r.off, len(r.buf))
	}
	b := r.buf[r.off : r.off+n]
	r.off += n
	return b, nil
}

func (r *reader) u16() (int, error) {
	b, err := r.take(2)
	if err != nil {
		return 0, err
	}
	return int(binary.BigEndian.Uint16(b)), nil
}

func (r *reader) u32() (int, error) {
	b, err := r.take(4)
	if err != nil {
		return 0, err
	}
	return int(binary.BigEndian.Uint32(b)), nil
}

func (r *reader) done() bool { return r.off == len(r.buf) }

// Decode reverses Encode. A length prefix running past the buffer, or bytes
// left over after the last field, fail with ErrMalformedRecord. Text values
// that do not decode are returned as plain text.
func (c Codec) Decode(b []byte) (model.POI, error) {
	var p model.POI
	r := &reader{buf: b}
	n, err := r.u16()
	if err != nil {
		return p, err
	}
	for range n {
		tl, err := r.u16()
		if err != nil {
			return p, err
		}
		tag, err := r.take(tl)
		if err != nil {
			return p, err
		}
		vl, err := r.u32()
		if err != nil {
			return p, err
		}
		val, err := r.take(vl)
		if err != nil {
			return p, err
		}
		if len(val) == 0 {
			continue
		}
		if err := c.decodeField(&p, string(tag), val); err != nil {
			return p, err
		}
	}
	if !r.done() {
		return p, fmt.Errorf("%w: %d trailing bytes", ErrMalformedRecord, len(b)-r.off)
	}
	return p, nil
}

func (c Codec) decodeField(p *model.POI, tag string, val []byte) error {
	num, err := strconv.Atoi(tag)
	if err != nil || num < 0 || num > maxTag || strconv.Itoa(num) != tag {
		if p.Extra == nil {
			p.Extra = make(map[string]string)
		}
		// other writers compress extra names with the default codebook
		name := textcodec.TryDecompress([]byte(tag), textcodec.Default())
		p.Extra[name] = textcodec.TryDecompress(val, textcodec.Default())
		return nil
	}

	switch num {
	case tagName:
		p.Name = textcodec.TryDecompress(val, c.profile(textcodec.FieldName))
	case tagAddr:
		p.Addr = textcodec.TryDecompress(val, c.profile(textcodec.FieldAddress))
	case tagWebsite:
		p.Website = textcodec.TryDecompress(val, c.profile(textcodec.FieldURL))
	case tagOpeningHours:
		w, err := hours.Decode(val)
		if err != nil {
			return fmt.Errorf("%w: opening_hours: %w", ErrMalformedRecord, err)
		}
		p.OpeningHours = &w
	case tagPhone:
		p.Phone = scalar.DecodePhone(val)
	case tagEmail:
		p.Email = textcodec.TryDecompress(val, c.profile(textcodec.FieldEmail))
	case tagDescription:
		d, err := compress.Unpack(val)
		if err != nil {
			return fmt.Errorf("%w: description: %w", ErrMalformedRecord, err)
		}
		p.Description = string(d)
	case tagSocial:
		social, err := c.decodeSocial(val)
		if err != nil {
			return err
		}
		p.Social = social
	default:
		cat, err := ranks.CategoryFromByte(byte(num))
		if err != nil {
			return fmt.Errorf("%w: %w", ErrMalformedRecord, err)
		}
		v, err := c.ranks().DecodeValue(cat, val)
		if err != nil {
			return fmt.Errorf("%w: %s: %w", ErrMalformedRecord, cat, err)
		}
		p.SetCategory(cat, v)
	}
	return nil
}

func (c Codec) decodeSocial(b []byte) (map[string]string, error) {
	r := &reader{buf: b}
	n, err := r.u16()
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, n)
	for range n {
		pl, err := r.u16()
		if err != nil {
			return nil, err
		}
		pb, err := r.take(pl)
		if err != nil {
			return nil, err
		}
		ul, err := r.u32()
		if err != nil {
			return nil, err
		}
		ub, err := r.take(ul)
		if err != nil {
			return nil, err
		}
		platform := textcodec.TryDecompress(pb, textcodec.Default())
		out[platform] = textcodec.TryDecompress(ub, c.profile(textcodec.FieldSocial))
	}
	if !r.done() {
		return nil, fmt.Errorf("%w: social has %d trailing bytes", ErrMalformedRecord, len(b)-r.off)
	}
	return out, nil
}
