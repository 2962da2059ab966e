package hours

import "fmt"

type bitWriter struct {
	buf  []byte
	nbit int
}

func (w *bitWriter) write(v uint32, n int) {
	for i := n - 1; i >= 0; i-- {
		if w.nbit%8 == 0 {
			w.buf = append(w.buf, 0)
		}
		if v>>uint(i)&1 == 1 {
			w.buf[len(w.buf)-1] |= 1 << uint(7-w.nbit%8)
		}
		w.nbit++
	}
}

func (w *bitWriter) bytes() []byte { return w.buf }

type bitReader struct {
	buf []byte
	pos int
}

func (r *bitReader) read(n int) (uint32, error) {
	if r.pos+n > len(r.buf)*8 {
		return 0, fmt.Errorf("%w: truncated at bit %d", ErrMalformedSchedule, r.pos)
	}
	var v uint32
	for range n {
		bit := r.buf[r.pos/8] >> uint(7-r.pos%8) & 1
		v = v<<1 | uint32(bit)
		r.pos++
	}
	return v, nil
}
