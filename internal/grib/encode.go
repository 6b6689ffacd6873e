package grib

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Encode serializes a Grid as a single GRIB2 message using simple packing.
// decimalScale sets the stored precision: values survive a round trip to
// within 0.5*10^-decimalScale. NaN cells become bitmap-missing points.
//
// This is the fixture side of the format contract: genrun and the tests
// build store contents through Encode so every blob the pipeline touches in
// development decodes through the same code path as provider data.
func Encode(g *Grid, decimalScale int) ([]byte, error) {
	n := g.Geometry.Rows * g.Geometry.Cols
	if len(g.Values) != n {
		return nil, fmt.Errorf("grib encode: %d values for %dx%d grid",
			len(g.Values), g.Geometry.Rows, g.Geometry.Cols)
	}

	packed, pack, bitmap, err := packValues(g.Values, decimalScale)
	if err != nil {
		return nil, err
	}

	var msg []byte
	msg = append(msg, encodeIndicatorStub(g.Discipline)...)
	msg = append(msg, encodeIdentification(g)...)
	msg = append(msg, encodeGridDefinition(&g.Geometry)...)
	msg = append(msg, encodeProductDefinition(g)...)
	msg = append(msg, encodeDataRepresentation(pack)...)
	msg = append(msg, encodeBitmapSection(bitmap)...)
	msg = append(msg, encodeDataSection(packed)...)
	msg = append(msg, '7', '7', '7', '7')

	binary.BigEndian.PutUint64(msg[8:16], uint64(len(msg)))
	return msg, nil
}

// packValues performs simple packing with binary scale 0: X = round(v*10^D - R).
func packValues(values []float64, decimalScale int) ([]byte, simplePacking, []byte, error) {
	decFactor := math.Pow(10, float64(decimalScale))

	minScaled := math.Inf(1)
	maxScaled := math.Inf(-1)
	present := 0
	for _, v := range values {
		if math.IsNaN(v) {
			continue
		}
		s := v * decFactor
		minScaled = math.Min(minScaled, s)
		maxScaled = math.Max(maxScaled, s)
		present++
	}
	if present == 0 {
		return nil, simplePacking{}, nil, fmt.Errorf("grib encode: no non-missing values")
	}

	// The reference travels as a float32; compute offsets against the
	// rounded value so unpacking reverses exactly.
	ref := float64(float32(minScaled))
	span := maxScaled - ref

	bits := 0
	for span >= math.Pow(2, float64(bits))-0.5 {
		bits++
		if bits > 32 {
			return nil, simplePacking{}, nil, fmt.Errorf("grib encode: value span %g too wide for 32-bit packing at scale %d", span, decimalScale)
		}
	}

	var bitmap []byte
	if present < len(values) {
		bitmap = make([]byte, (len(values)+7)/8)
	}

	w := &bitWriter{}
	for i, v := range values {
		if math.IsNaN(v) {
			continue
		}
		if bitmap != nil {
			bitmap[i/8] |= 1 << (7 - i%8)
		}
		if bits > 0 {
			x := uint64(math.Round(v*decFactor - ref))
			w.write(x, bits)
		}
	}

	p := simplePacking{
		numPoints:    present,
		reference:    ref,
		decimalScale: decimalScale,
		bits:         bits,
	}
	return w.bytes(), p, bitmap, nil
}

// encodeIndicatorStub writes section 0 with a zero total length, patched at
// the end of Encode.
func encodeIndicatorStub(discipline uint8) []byte {
	sec := make([]byte, 16)
	copy(sec, "GRIB")
	sec[6] = discipline
	sec[7] = editionGRIB2
	return sec
}

func encodeIdentification(g *Grid) []byte {
	sec := make([]byte, 21)
	binary.BigEndian.PutUint32(sec[0:4], 21)
	sec[4] = 1
	binary.BigEndian.PutUint16(sec[5:7], 85) // originating centre: Toulouse
	sec[9] = 2                               // master tables version
	sec[11] = 1                              // reference time is start of forecast
	ref := g.Reference.UTC()
	binary.BigEndian.PutUint16(sec[12:14], uint16(ref.Year()))
	sec[14] = byte(ref.Month())
	sec[15] = byte(ref.Day())
	sec[16] = byte(ref.Hour())
	sec[17] = byte(ref.Minute())
	sec[18] = byte(ref.Second())
	sec[20] = 1 // forecast products
	return sec
}

func encodeGridDefinition(ge *Geometry) []byte {
	switch ge.Kind {
	case KindLambert:
		return encodeLambertGrid(ge)
	default:
		return encodeLatLonGrid(ge)
	}
}

// encodeEarth writes the shape-of-earth octets: a specified sphere.
func encodeEarth(sec []byte, radius float64) {
	sec[14] = 1 // spherical, radius specified
	binary.BigEndian.PutUint32(sec[16:20], uint32(math.Round(radius)))
}

func encodeLatLonGrid(ge *Geometry) []byte {
	sec := make([]byte, 72)
	binary.BigEndian.PutUint32(sec[0:4], 72)
	sec[4] = 3
	binary.BigEndian.PutUint32(sec[6:10], uint32(ge.Rows*ge.Cols))
	binary.BigEndian.PutUint16(sec[12:14], gridTemplateLatLon)
	encodeEarth(sec, 6371229)
	binary.BigEndian.PutUint32(sec[30:34], uint32(ge.Cols))
	binary.BigEndian.PutUint32(sec[34:38], uint32(ge.Rows))

	la2 := ge.La1 - float64(ge.Rows-1)*ge.Dj
	if ge.JPositive {
		la2 = ge.La1 + float64(ge.Rows-1)*ge.Dj
	}
	lo2 := ge.Lo1 + float64(ge.Cols-1)*ge.Di

	putGribMicrodeg(sec[46:50], ge.La1)
	putGribMicrodeg(sec[50:54], ge.Lo1)
	sec[54] = 0x30 // i and j direction increments given
	putGribMicrodeg(sec[55:59], la2)
	putGribMicrodeg(sec[59:63], lo2)
	putGribMicrodeg(sec[63:67], ge.Di)
	putGribMicrodeg(sec[67:71], ge.Dj)
	if ge.JPositive {
		sec[71] = 0x40
	}
	return sec
}

func encodeLambertGrid(ge *Geometry) []byte {
	sec := make([]byte, 81)
	binary.BigEndian.PutUint32(sec[0:4], 81)
	sec[4] = 3
	binary.BigEndian.PutUint32(sec[6:10], uint32(ge.Rows*ge.Cols))
	binary.BigEndian.PutUint16(sec[12:14], gridTemplateLambert)
	encodeEarth(sec, ge.Lambert.Radius)
	binary.BigEndian.PutUint32(sec[30:34], uint32(ge.Cols))
	binary.BigEndian.PutUint32(sec[34:38], uint32(ge.Rows))

	la1, lo1 := ge.Lambert.Inverse(ge.X1, ge.Y1)
	putGribMicrodeg(sec[38:42], la1)
	putGribMicrodeg(sec[42:46], lo1)
	sec[46] = 0x30
	putGribMicrodeg(sec[47:51], ge.Lambert.RefLat)
	putGribMicrodeg(sec[51:55], ge.Lambert.RefLon)
	binary.BigEndian.PutUint32(sec[55:59], uint32(math.Round(ge.Dx*1e3)))
	binary.BigEndian.PutUint32(sec[59:63], uint32(math.Round(ge.Dy*1e3)))
	if ge.JPositive {
		sec[64] = 0x40
	}
	putGribMicrodeg(sec[65:69], ge.Lambert.Latin1)
	putGribMicrodeg(sec[69:73], ge.Lambert.Latin2)
	putGribMicrodeg(sec[73:77], -90) // south pole of projection
	return sec
}

func encodeProductDefinition(g *Grid) []byte {
	sec := make([]byte, 34)
	binary.BigEndian.PutUint32(sec[0:4], 34)
	sec[4] = 4
	binary.BigEndian.PutUint16(sec[7:9], prodTemplateInstant)
	sec[9] = g.Category
	sec[10] = g.Number
	sec[11] = 2 // generating process: forecast
	sec[17] = 1 // time unit: hour
	binary.BigEndian.PutUint32(sec[18:22], uint32(g.ForecastHour))
	sec[22] = 1 // first fixed surface: ground
	sec[28] = 255
	sec[29] = 0xFF
	binary.BigEndian.PutUint32(sec[30:34], 0xFFFFFFFF)
	return sec
}

func encodeDataRepresentation(p simplePacking) []byte {
	sec := make([]byte, 21)
	binary.BigEndian.PutUint32(sec[0:4], 21)
	sec[4] = 5
	binary.BigEndian.PutUint32(sec[5:9], uint32(p.numPoints))
	binary.BigEndian.PutUint16(sec[9:11], packTemplateSimple)
	binary.BigEndian.PutUint32(sec[11:15], math.Float32bits(float32(p.reference)))
	putGribInt16(sec[15:17], p.binaryScale)
	putGribInt16(sec[17:19], p.decimalScale)
	sec[19] = byte(p.bits)
	return sec
}

func encodeBitmapSection(bitmap []byte) []byte {
	sec := make([]byte, 6+len(bitmap))
	binary.BigEndian.PutUint32(sec[0:4], uint32(len(sec)))
	sec[4] = 6
	if bitmap == nil {
		sec[5] = bitmapNone
	} else {
		sec[5] = bitmapPresent
		copy(sec[6:], bitmap)
	}
	return sec
}

func encodeDataSection(packed []byte) []byte {
	sec := make([]byte, 5+len(packed))
	binary.BigEndian.PutUint32(sec[0:4], uint32(len(sec)))
	sec[4] = 7
	copy(sec[5:], packed)
	return sec
}

func putGribInt16(b []byte, v int) {
	if v < 0 {
		binary.BigEndian.PutUint16(b, uint16(-v)|0x8000)
		return
	}
	binary.BigEndian.PutUint16(b, uint16(v))
}

func putGribMicrodeg(b []byte, deg float64) {
	v := int64(math.Round(deg * 1e6))
	if v < 0 {
		binary.BigEndian.PutUint32(b, uint32(-v)|0x80000000)
		return
	}
	binary.BigEndian.PutUint32(b, uint32(v))
}
