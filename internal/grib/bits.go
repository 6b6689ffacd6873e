package grib

// bitReader reads big-endian bit fields from a byte slice, MSB first, as
// GRIB2 packs them.
type bitReader struct {
	data []byte
	pos  int // bit position
}

func (r *bitReader) read(n int) (uint64, bool) {
	if r.pos+n > len(r.data)*8 {
		return 0, false
	}
	var v uint64
	for i := 0; i < n; i++ {
		byteIdx := (r.pos + i) / 8
		bitIdx := 7 - (r.pos+i)%8
		v = v<<1 | uint64(r.data[byteIdx]>>bitIdx&1)
	}
	r.pos += n
	return v, true
}

// bitWriter appends big-endian bit fields, padding the final byte with
// zeros on flush.
type bitWriter struct {
	data []byte
	nbit int // bits used in the last byte, 0 when byte-aligned
}

func (w *bitWriter) write(v uint64, n int) {
	for i := n - 1; i >= 0; i-- {
		bit := byte(v >> i & 1)
		if w.nbit == 0 {
			w.data = append(w.data, 0)
		}
		w.data[len(w.data)-1] |= bit << (7 - w.nbit)
		w.nbit = (w.nbit + 1) % 8
	}
}

func (w *bitWriter) bytes() []byte { return w.data }
