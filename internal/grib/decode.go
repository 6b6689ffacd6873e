package grib

import (
	"encoding/binary"
	"math"
	"time"

	"github.com/couchcryptid/nwp-overlay/internal/proj"
)

const (
	editionGRIB2 = 2

	// Supported template numbers.
	gridTemplateLatLon  = 0
	gridTemplateLambert = 30
	prodTemplateInstant = 0
	prodTemplateAccum   = 8 // accumulations (precipitation) share the 4.0 prefix
	packTemplateSimple  = 0

	bitmapPresent = 0
	bitmapNone    = 255
)

// Decode parses a single GRIB2 message. Truncated or malformed input yields
// a *DecodeError; recognized messages using an unsupported template or
// packing yield an *UnsupportedFormatError.
func Decode(data []byte) (*Grid, error) {
	if len(data) < 16 {
		return nil, decodeErrf("message shorter than indicator section (%d bytes)", len(data))
	}
	if string(data[0:4]) != "GRIB" {
		return nil, decodeErrf("missing GRIB magic")
	}
	if ed := data[7]; ed != editionGRIB2 {
		return nil, &UnsupportedFormatError{What: "GRIB edition", Template: int(ed)}
	}
	total := binary.BigEndian.Uint64(data[8:16])
	if total > uint64(len(data)) {
		return nil, decodeErrf("declared length %d exceeds input %d", total, len(data))
	}

	g := &Grid{Discipline: data[6]}
	var (
		havePack   bool
		pack       simplePacking
		bitmap     []byte
		packed     []byte
		havePacked bool
	)

	off := uint64(16)
	for {
		if off+4 > total {
			return nil, decodeErrf("message ends before end section")
		}
		if string(data[off:off+4]) == "7777" {
			break
		}
		if off+5 > total {
			return nil, decodeErrf("truncated section header at offset %d", off)
		}
		secLen := uint64(binary.BigEndian.Uint32(data[off : off+4]))
		secNum := data[off+4]
		if secLen < 5 || off+secLen > total {
			return nil, decodeErrf("section %d has invalid length %d", secNum, secLen)
		}
		sec := data[off : off+secLen]

		var err error
		switch secNum {
		case 1:
			err = decodeIdentification(sec, g)
		case 2:
			// Local use, ignored.
		case 3:
			err = decodeGridDefinition(sec, g)
		case 4:
			err = decodeProductDefinition(sec, g)
		case 5:
			pack, err = decodeDataRepresentation(sec)
			havePack = err == nil
		case 6:
			bitmap, err = decodeBitmap(sec)
		case 7:
			if secLen < 5 {
				return nil, decodeErrf("data section too short")
			}
			packed = sec[5:]
			havePacked = true
		default:
			return nil, decodeErrf("unexpected section number %d", secNum)
		}
		if err != nil {
			return nil, err
		}
		off += secLen
	}

	if g.Geometry.Rows == 0 || g.Geometry.Cols == 0 {
		return nil, decodeErrf("missing grid definition section")
	}
	if !havePack || !havePacked {
		return nil, decodeErrf("missing data representation or data section")
	}
	if err := unpack(g, pack, bitmap, packed); err != nil {
		return nil, err
	}
	return g, nil
}

// decodeIdentification reads section 1: the run's reference time.
func decodeIdentification(sec []byte, g *Grid) error {
	if len(sec) < 21 {
		return decodeErrf("identification section too short (%d bytes)", len(sec))
	}
	year := int(binary.BigEndian.Uint16(sec[12:14]))
	month := time.Month(sec[14])
	day := int(sec[15])
	hour, minute, second := int(sec[16]), int(sec[17]), int(sec[18])
	if month < time.January || month > time.December || day < 1 || day > 31 {
		return decodeErrf("invalid reference date %04d-%02d-%02d", year, month, day)
	}
	g.Reference = time.Date(year, month, day, hour, minute, second, 0, time.UTC)
	return nil
}

func decodeGridDefinition(sec []byte, g *Grid) error {
	if len(sec) < 14 {
		return decodeErrf("grid definition section too short")
	}
	if opt := sec[10]; opt != 0 {
		return &UnsupportedFormatError{What: "optional grid point list", Template: int(opt)}
	}
	numPoints := int(binary.BigEndian.Uint32(sec[6:10]))
	template := int(binary.BigEndian.Uint16(sec[12:14]))

	switch template {
	case gridTemplateLatLon:
		if err := decodeLatLonGrid(sec, &g.Geometry); err != nil {
			return err
		}
	case gridTemplateLambert:
		if err := decodeLambertGrid(sec, &g.Geometry); err != nil {
			return err
		}
	default:
		return &UnsupportedFormatError{What: "grid definition template", Template: template}
	}

	if g.Geometry.Rows*g.Geometry.Cols != numPoints {
		return decodeErrf("grid %dx%d does not match declared %d points",
			g.Geometry.Rows, g.Geometry.Cols, numPoints)
	}
	return nil
}

// decodeLatLonGrid reads grid definition template 3.0.
func decodeLatLonGrid(sec []byte, ge *Geometry) error {
	if len(sec) < 72 {
		return decodeErrf("lat/lon grid template truncated (%d bytes)", len(sec))
	}
	ge.Kind = KindLatLon
	ge.Cols = int(binary.BigEndian.Uint32(sec[30:34]))
	ge.Rows = int(binary.BigEndian.Uint32(sec[34:38]))
	ge.La1 = microdeg(gribInt32(sec[46:50]))
	ge.Lo1 = normLon(microdeg(gribInt32(sec[50:54])))
	ge.Di = microdeg(gribInt32(sec[63:67]))
	ge.Dj = microdeg(gribInt32(sec[67:71]))

	scan := sec[71]
	if err := checkScanMode(scan); err != nil {
		return err
	}
	ge.JPositive = scan&0x40 != 0

	if ge.Rows <= 0 || ge.Cols <= 0 || ge.Di <= 0 || ge.Dj <= 0 {
		return decodeErrf("degenerate lat/lon grid geometry")
	}
	return nil
}

// decodeLambertGrid reads grid definition template 3.30.
func decodeLambertGrid(sec []byte, ge *Geometry) error {
	if len(sec) < 81 {
		return decodeErrf("lambert grid template truncated (%d bytes)", len(sec))
	}
	radius, err := earthRadius(sec)
	if err != nil {
		return err
	}

	ge.Kind = KindLambert
	ge.Cols = int(binary.BigEndian.Uint32(sec[30:34]))
	ge.Rows = int(binary.BigEndian.Uint32(sec[34:38]))
	la1 := microdeg(gribInt32(sec[38:42]))
	lo1 := normLon(microdeg(gribInt32(sec[42:46])))
	laD := microdeg(gribInt32(sec[47:51]))
	loV := normLon(microdeg(gribInt32(sec[51:55])))
	ge.Dx = float64(binary.BigEndian.Uint32(sec[55:59])) / 1e3 // millimetres to metres
	ge.Dy = float64(binary.BigEndian.Uint32(sec[59:63])) / 1e3
	latin1 := microdeg(gribInt32(sec[65:69]))
	latin2 := microdeg(gribInt32(sec[69:73]))

	scan := sec[64]
	if err := checkScanMode(scan); err != nil {
		return err
	}
	ge.JPositive = scan&0x40 != 0

	if ge.Rows <= 0 || ge.Cols <= 0 || ge.Dx <= 0 || ge.Dy <= 0 {
		return decodeErrf("degenerate lambert grid geometry")
	}

	ge.Lambert = proj.NewLambertConformal(radius, laD, loV, latin1, latin2)
	ge.X1, ge.Y1 = ge.Lambert.Forward(la1, lo1)
	return nil
}

func decodeProductDefinition(sec []byte, g *Grid) error {
	if len(sec) < 22 {
		return decodeErrf("product definition section too short")
	}
	if nCoord := binary.BigEndian.Uint16(sec[5:7]); nCoord != 0 {
		return &UnsupportedFormatError{What: "hybrid coordinate values", Template: int(nCoord)}
	}
	template := int(binary.BigEndian.Uint16(sec[7:9]))
	if template != prodTemplateInstant && template != prodTemplateAccum {
		return &UnsupportedFormatError{What: "product definition template", Template: template}
	}

	g.Category = sec[9]
	g.Number = sec[10]

	unit := sec[17]
	forecast := int(binary.BigEndian.Uint32(sec[18:22]))
	hours, err := forecastHours(unit, forecast)
	if err != nil {
		return err
	}
	g.ForecastHour = hours
	return nil
}

// forecastHours converts (time unit indicator, count) to whole hours.
func forecastHours(unit byte, n int) (int, error) {
	switch unit {
	case 0: // minute
		if n%60 != 0 {
			return 0, decodeErrf("forecast time %d minutes is not a whole hour", n)
		}
		return n / 60, nil
	case 1: // hour
		return n, nil
	case 2: // day
		return n * 24, nil
	case 10: // 3 hours
		return n * 3, nil
	case 11: // 6 hours
		return n * 6, nil
	case 12: // 12 hours
		return n * 12, nil
	case 13: // second
		if n%3600 != 0 {
			return 0, decodeErrf("forecast time %d seconds is not a whole hour", n)
		}
		return n / 3600, nil
	}
	return 0, &UnsupportedFormatError{What: "time range unit", Template: int(unit)}
}

// simplePacking is data representation template 5.0.
type simplePacking struct {
	numPoints    int
	reference    float64
	binaryScale  int
	decimalScale int
	bits         int
}

func decodeDataRepresentation(sec []byte) (simplePacking, error) {
	var p simplePacking
	if len(sec) < 21 {
		return p, decodeErrf("data representation section too short")
	}
	template := int(binary.BigEndian.Uint16(sec[9:11]))
	if template != packTemplateSimple {
		return p, &UnsupportedFormatError{What: "data representation template", Template: template}
	}
	p.numPoints = int(binary.BigEndian.Uint32(sec[5:9]))
	p.reference = float64(math.Float32frombits(binary.BigEndian.Uint32(sec[11:15])))
	p.binaryScale = gribInt16(sec[15:17])
	p.decimalScale = gribInt16(sec[17:19])
	p.bits = int(sec[19])
	if p.bits > 32 {
		return p, decodeErrf("bit width %d exceeds 32", p.bits)
	}
	return p, nil
}

func decodeBitmap(sec []byte) ([]byte, error) {
	if len(sec) < 6 {
		return nil, decodeErrf("bitmap section too short")
	}
	switch sec[5] {
	case bitmapPresent:
		return sec[6:], nil
	case bitmapNone:
		return nil, nil
	}
	return nil, &UnsupportedFormatError{What: "bitmap indicator", Template: int(sec[5])}
}

// unpack expands the simple-packed data section into g.Values, applying the
// bitmap (absent cells become NaN) and the scale/reference transform
//
//	value = (R + X*2^E) / 10^D
func unpack(g *Grid, p simplePacking, bitmap, packed []byte) error {
	n := g.Geometry.Rows * g.Geometry.Cols
	if bitmap != nil && len(bitmap)*8 < n {
		return decodeErrf("bitmap has %d bits for %d points", len(bitmap)*8, n)
	}

	binFactor := math.Pow(2, float64(p.binaryScale))
	decFactor := math.Pow(10, float64(p.decimalScale))
	reader := &bitReader{data: packed}

	g.Values = make([]float64, n)
	present := 0
	for i := 0; i < n; i++ {
		if bitmap != nil {
			bit := bitmap[i/8] >> (7 - i%8) & 1
			if bit == 0 {
				g.Values[i] = math.NaN()
				continue
			}
		}
		present++
		if p.bits == 0 {
			// Constant field: every present value is the reference.
			g.Values[i] = p.reference / decFactor
			continue
		}
		x, ok := reader.read(p.bits)
		if !ok {
			return decodeErrf("data section exhausted at point %d of %d", i, n)
		}
		g.Values[i] = (p.reference + float64(x)*binFactor) / decFactor
	}

	if p.numPoints != 0 && present != p.numPoints {
		return decodeErrf("bitmap leaves %d points but representation declares %d", present, p.numPoints)
	}
	return nil
}

// earthRadius resolves the shape-of-earth octets (15-30 of section 3) to a
// spherical radius in metres.
func earthRadius(sec []byte) (float64, error) {
	shape := sec[14]
	switch shape {
	case 0:
		return 6367470, nil
	case 1:
		scale := int(sec[15])
		value := float64(binary.BigEndian.Uint32(sec[16:20]))
		if value == 0 {
			return 0, decodeErrf("spherical earth with zero radius")
		}
		return value / math.Pow(10, float64(scale)), nil
	case 6:
		return 6371229, nil
	}
	// Oblate shapes would need ellipsoidal Lambert math.
	return 0, &UnsupportedFormatError{What: "shape of earth", Template: int(shape)}
}

func checkScanMode(scan byte) error {
	// Bit 1 (0x80): i scans negative; bit 3 (0x20): adjacent points are
	// consecutive in j. Neither appears in AROME output.
	if scan&0x80 != 0 || scan&0x20 != 0 {
		return &UnsupportedFormatError{What: "scanning mode", Template: int(scan)}
	}
	return nil
}

// gribInt32 reads a GRIB sign-magnitude 32-bit integer.
func gribInt32(b []byte) int {
	v := binary.BigEndian.Uint32(b)
	if v&0x80000000 != 0 {
		return -int(v & 0x7fffffff)
	}
	return int(v)
}

// gribInt16 reads a GRIB sign-magnitude 16-bit integer.
func gribInt16(b []byte) int {
	v := binary.BigEndian.Uint16(b)
	if v&0x8000 != 0 {
		return -int(v & 0x7fff)
	}
	return int(v)
}

func microdeg(v int) float64 { return float64(v) / 1e6 }

// normLon maps provider longitudes (0..360) onto -180..180.
func normLon(lon float64) float64 {
	if lon > 180 {
		return lon - 360
	}
	return lon
}
