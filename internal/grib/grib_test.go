package grib

import (
	"encoding/binary"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/nwp-overlay/internal/proj"
)

var testReference = time.Date(2026, time.March, 5, 6, 0, 0, 0, time.UTC)

func latLonGrid(rows, cols int, values []float64) *Grid {
	return &Grid{
		Discipline:   0,
		Category:     1,
		Number:       52,
		Reference:    testReference,
		ForecastHour: 7,
		Geometry: Geometry{
			Kind:      KindLatLon,
			Rows:      rows,
			Cols:      cols,
			JPositive: true,
			La1:       41.0,
			Lo1:       -5.5,
			Di:        0.1,
			Dj:        0.1,
		},
		Values: values,
	}
}

// findSection walks the section chain and returns the offset of the first
// section with the given number.
func findSection(t *testing.T, data []byte, num byte) int {
	t.Helper()
	off := 16
	for off+5 < len(data) {
		if string(data[off:off+4]) == "7777" {
			break
		}
		if data[off+4] == num {
			return off
		}
		off += int(binary.BigEndian.Uint32(data[off : off+4]))
	}
	t.Fatalf("section %d not found", num)
	return 0
}

func TestEncodeDecode_RoundTrip(t *testing.T) {
	values := make([]float64, 4*5)
	for i := range values {
		values[i] = float64(i) * 0.25
	}
	in := latLonGrid(4, 5, values)

	data, err := Encode(in, 2)
	require.NoError(t, err)

	out, err := Decode(data)
	require.NoError(t, err)

	assert.Equal(t, uint8(0), out.Discipline)
	assert.Equal(t, uint8(1), out.Category)
	assert.Equal(t, uint8(52), out.Number)
	assert.True(t, out.Reference.Equal(testReference))
	assert.Equal(t, 7, out.ForecastHour)

	geo := out.Geometry
	assert.Equal(t, KindLatLon, geo.Kind)
	assert.Equal(t, 4, geo.Rows)
	assert.Equal(t, 5, geo.Cols)
	assert.True(t, geo.JPositive)
	assert.InDelta(t, 41.0, geo.La1, 1e-6)
	assert.InDelta(t, -5.5, geo.Lo1, 1e-6)
	assert.InDelta(t, 0.1, geo.Di, 1e-6)
	assert.InDelta(t, 0.1, geo.Dj, 1e-6)

	require.Len(t, out.Values, len(values))
	for i, want := range values {
		assert.InDelta(t, want, out.Values[i], 0.005, "value %d", i)
	}
}

func TestEncodeDecode_Bitmap(t *testing.T) {
	values := []float64{1.5, math.NaN(), 3.0, math.NaN(), 5.5, 0}
	in := latLonGrid(2, 3, values)

	data, err := Encode(in, 1)
	require.NoError(t, err)

	out, err := Decode(data)
	require.NoError(t, err)

	require.Len(t, out.Values, 6)
	assert.True(t, out.IsMissing(0, 1))
	assert.True(t, out.IsMissing(1, 0))
	assert.InDelta(t, 1.5, out.At(0, 0), 0.05)
	assert.InDelta(t, 3.0, out.At(0, 2), 0.05)
	assert.InDelta(t, 5.5, out.At(1, 1), 0.05)
	assert.InDelta(t, 0, out.At(1, 2), 0.05)
}

func TestEncodeDecode_ConstantField(t *testing.T) {
	values := []float64{273.15, 273.15, 273.15, 273.15}
	in := latLonGrid(2, 2, values)

	data, err := Encode(in, 2)
	require.NoError(t, err)

	out, err := Decode(data)
	require.NoError(t, err)
	for i := range values {
		assert.InDelta(t, 273.15, out.Values[i], 0.005, "value %d", i)
	}
}

func TestEncode_AllMissing(t *testing.T) {
	values := []float64{math.NaN(), math.NaN()}
	in := latLonGrid(1, 2, values)

	_, err := Encode(in, 1)
	require.Error(t, err)
}

func TestEncode_ValueCountMismatch(t *testing.T) {
	in := latLonGrid(2, 3, []float64{1, 2})
	_, err := Encode(in, 1)
	require.Error(t, err)
}

func TestEncodeDecode_Lambert(t *testing.T) {
	lam := proj.NewLambertConformal(6371229, 46.5, 2.0, 46.5, 46.5)
	x1, y1 := lam.Forward(41.0, -5.5)

	values := make([]float64, 3*4)
	for i := range values {
		values[i] = 280 + float64(i)
	}
	in := &Grid{
		Discipline:   0,
		Category:     0,
		Number:       0,
		Reference:    testReference,
		ForecastHour: 12,
		Geometry: Geometry{
			Kind:      KindLambert,
			Rows:      3,
			Cols:      4,
			JPositive: true,
			Lambert:   lam,
			X1:        x1,
			Y1:        y1,
			Dx:        2500,
			Dy:        2500,
		},
		Values: values,
	}

	data, err := Encode(in, 1)
	require.NoError(t, err)

	out, err := Decode(data)
	require.NoError(t, err)

	geo := out.Geometry
	assert.Equal(t, KindLambert, geo.Kind)
	assert.Equal(t, 3, geo.Rows)
	assert.Equal(t, 4, geo.Cols)
	assert.Equal(t, 2500.0, geo.Dx)
	assert.Equal(t, 2500.0, geo.Dy)
	require.NotNil(t, geo.Lambert)
	assert.InDelta(t, 46.5, geo.Lambert.Latin1, 1e-6)
	assert.InDelta(t, 2.0, geo.Lambert.RefLon, 1e-6)

	// The first-point coordinate travels as microdegrees, so the projected
	// origin drifts by at most a few decimetres.
	assert.InDelta(t, x1, geo.X1, 0.5)
	assert.InDelta(t, y1, geo.Y1, 0.5)

	for i, want := range values {
		assert.InDelta(t, want, out.Values[i], 0.05, "value %d", i)
	}

	// A geographic coordinate indexes the same cell before and after the
	// round trip.
	col, row := geo.Locate(41.02, -5.45)
	wantCol, wantRow := in.Geometry.Locate(41.02, -5.45)
	assert.InDelta(t, wantCol, col, 1e-3)
	assert.InDelta(t, wantRow, row, 1e-3)
}

func TestDecode_NotGRIB(t *testing.T) {
	_, err := Decode([]byte("PNG\x00 definitely not a grib message"))
	var derr *DecodeError
	require.ErrorAs(t, err, &derr)
}

func TestDecode_Truncated(t *testing.T) {
	data, err := Encode(latLonGrid(2, 2, []float64{1, 2, 3, 4}), 1)
	require.NoError(t, err)

	for _, n := range []int{0, 8, 20, len(data) / 2, len(data) - 4} {
		t.Run("", func(t *testing.T) {
			_, err := Decode(data[:n])
			var derr *DecodeError
			assert.ErrorAs(t, err, &derr, "truncated to %d bytes", n)
		})
	}
}

func TestDecode_WrongEdition(t *testing.T) {
	data, err := Encode(latLonGrid(1, 2, []float64{1, 2}), 1)
	require.NoError(t, err)
	data[7] = 1

	_, err = Decode(data)
	var uerr *UnsupportedFormatError
	require.ErrorAs(t, err, &uerr)
	assert.Equal(t, 1, uerr.Template)
}

func TestDecode_UnsupportedGridTemplate(t *testing.T) {
	data, err := Encode(latLonGrid(1, 2, []float64{1, 2}), 1)
	require.NoError(t, err)

	off := findSection(t, data, 3)
	binary.BigEndian.PutUint16(data[off+12:off+14], 90) // space view

	_, err = Decode(data)
	var uerr *UnsupportedFormatError
	require.ErrorAs(t, err, &uerr)
	assert.Equal(t, "grid definition template", uerr.What)
	assert.Equal(t, 90, uerr.Template)
}

func TestDecode_UnsupportedPackingTemplate(t *testing.T) {
	data, err := Encode(latLonGrid(1, 2, []float64{1, 2}), 1)
	require.NoError(t, err)

	off := findSection(t, data, 5)
	binary.BigEndian.PutUint16(data[off+9:off+11], 3) // complex packing

	_, err = Decode(data)
	var uerr *UnsupportedFormatError
	require.ErrorAs(t, err, &uerr)
	assert.Equal(t, "data representation template", uerr.What)
}

func TestDecode_UnsupportedScanMode(t *testing.T) {
	data, err := Encode(latLonGrid(1, 2, []float64{1, 2}), 1)
	require.NoError(t, err)

	off := findSection(t, data, 3)
	data[off+71] |= 0x80 // i scans negative

	_, err = Decode(data)
	var uerr *UnsupportedFormatError
	require.ErrorAs(t, err, &uerr)
	assert.Equal(t, "scanning mode", uerr.What)
}

func TestDecode_MinuteForecastTime(t *testing.T) {
	data, err := Encode(latLonGrid(1, 2, []float64{1, 2}), 1)
	require.NoError(t, err)

	off := findSection(t, data, 4)
	data[off+17] = 0 // minutes
	binary.BigEndian.PutUint32(data[off+18:off+22], 120)

	out, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, 2, out.ForecastHour)

	binary.BigEndian.PutUint32(data[off+18:off+22], 90) // not a whole hour
	_, err = Decode(data)
	var derr *DecodeError
	require.ErrorAs(t, err, &derr)
}

func TestGeometry_LocateCellCenter(t *testing.T) {
	t.Run("north to south lat/lon", func(t *testing.T) {
		ge := Geometry{
			Kind: KindLatLon,
			Rows: 10, Cols: 20,
			JPositive: false,
			La1:       51.5, Lo1: -5.5,
			Di: 0.5, Dj: 0.5,
		}
		for _, cell := range [][2]int{{0, 0}, {3, 7}, {9, 19}} {
			lat, lon := ge.CellCenter(cell[0], cell[1])
			col, row := ge.Locate(lat, lon)
			assert.InDelta(t, float64(cell[1]), col, 1e-9)
			assert.InDelta(t, float64(cell[0]), row, 1e-9)
		}
	})

	t.Run("lambert", func(t *testing.T) {
		lam := proj.NewLambertConformal(6371229, 46.5, 2.0, 46.5, 46.5)
		x1, y1 := lam.Forward(41.0, -5.5)
		ge := Geometry{
			Kind: KindLambert,
			Rows: 8, Cols: 12,
			JPositive: true,
			Lambert:   lam,
			X1:        x1, Y1: y1,
			Dx: 1300, Dy: 1300,
		}
		for _, cell := range [][2]int{{0, 0}, {5, 5}, {7, 11}} {
			lat, lon := ge.CellCenter(cell[0], cell[1])
			col, row := ge.Locate(lat, lon)
			assert.InDelta(t, float64(cell[1]), col, 1e-6)
			assert.InDelta(t, float64(cell[0]), row, 1e-6)
		}
	})
}

func TestDecodeError_Unwrap(t *testing.T) {
	inner := errors.New("inner")
	err := &DecodeError{Reason: "outer", Err: inner}
	assert.ErrorIs(t, err, inner)
	assert.Contains(t, err.Error(), "outer")
}
