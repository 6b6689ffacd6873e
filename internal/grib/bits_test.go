package grib

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBitWriterReader_RoundTrip(t *testing.T) {
	tests := []struct {
		name   string
		widths []int
		values []uint64
	}{
		{name: "byte aligned", widths: []int{8, 8, 8}, values: []uint64{0, 127, 255}},
		{name: "unaligned widths", widths: []int{3, 5, 11, 1, 12}, values: []uint64{5, 30, 2047, 1, 4095}},
		{name: "wide values", widths: []int{32, 24}, values: []uint64{0xFFFFFFFF, 0xABCDEF}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := &bitWriter{}
			for i, v := range tt.values {
				w.write(v, tt.widths[i])
			}
			r := &bitReader{data: w.bytes()}
			for i, want := range tt.values {
				got, ok := r.read(tt.widths[i])
				require.True(t, ok, "value %d", i)
				assert.Equal(t, want, got, "value %d", i)
			}
		})
	}
}

func TestBitReader_Exhausted(t *testing.T) {
	r := &bitReader{data: []byte{0xFF}}
	_, ok := r.read(8)
	require.True(t, ok)
	_, ok = r.read(1)
	assert.False(t, ok)
}
