package colormath

import "fmt"

// Primaries identifies a standard set of color primaries. Values match the
// GStreamer GstVideoColorPrimaries enumeration so they can be reported to
// callers unchanged.
type Primaries int

const (
	PrimariesUnknown Primaries = iota
	PrimariesBT709
	PrimariesBT470M
	PrimariesBT470BG
	PrimariesSMPTE170M
	PrimariesSMPTE240M
	PrimariesFilm
	PrimariesBT2020
	PrimariesAdobeRGB
	PrimariesSMPTEST428
	PrimariesSMPTERP431
	PrimariesSMPTEEG432
	PrimariesEBU3213
)

var (
	whiteD65 = Vec2{0.3127, 0.3290}
	whiteC   = Vec2{0.310, 0.316}
)

var primariesTable = map[Primaries]Gamut{
	PrimariesBT709:      {Vec2{0.64, 0.33}, Vec2{0.30, 0.60}, Vec2{0.15, 0.06}, whiteD65},
	PrimariesBT470M:     {Vec2{0.67, 0.33}, Vec2{0.21, 0.71}, Vec2{0.14, 0.08}, whiteC},
	PrimariesBT470BG:    {Vec2{0.64, 0.33}, Vec2{0.29, 0.60}, Vec2{0.15, 0.06}, whiteD65},
	PrimariesSMPTE170M:  {Vec2{0.63, 0.34}, Vec2{0.31, 0.595}, Vec2{0.155, 0.07}, whiteD65},
	PrimariesSMPTE240M:  {Vec2{0.63, 0.34}, Vec2{0.31, 0.595}, Vec2{0.155, 0.07}, whiteD65},
	PrimariesFilm:       {Vec2{0.681, 0.319}, Vec2{0.243, 0.692}, Vec2{0.145, 0.049}, whiteC},
	PrimariesBT2020:     {Vec2{0.708, 0.292}, Vec2{0.170, 0.797}, Vec2{0.131, 0.046}, whiteD65},
	PrimariesAdobeRGB:   {Vec2{0.64, 0.33}, Vec2{0.21, 0.71}, Vec2{0.15, 0.06}, whiteD65},
	PrimariesSMPTEST428: {Vec2{1, 0}, Vec2{0, 1}, Vec2{0, 0}, Vec2{1.0 / 3, 1.0 / 3}},
	PrimariesSMPTERP431: {Vec2{0.68, 0.32}, Vec2{0.265, 0.69}, Vec2{0.15, 0.06}, Vec2{0.314, 0.351}},
	PrimariesSMPTEEG432: {Vec2{0.68, 0.32}, Vec2{0.265, 0.69}, Vec2{0.15, 0.06}, whiteD65},
	PrimariesEBU3213:    {Vec2{0.63, 0.34}, Vec2{0.295, 0.605}, Vec2{0.155, 0.077}, whiteD65},
}

var primariesNames = map[Primaries]string{
	PrimariesUnknown:    "unknown",
	PrimariesBT709:      "bt709",
	PrimariesBT470M:     "bt470m",
	PrimariesBT470BG:    "bt470bg",
	PrimariesSMPTE170M:  "smpte170m",
	PrimariesSMPTE240M:  "smpte240m",
	PrimariesFilm:       "film",
	PrimariesBT2020:     "bt2020",
	PrimariesAdobeRGB:   "adobergb",
	PrimariesSMPTEST428: "smptest428",
	PrimariesSMPTERP431: "smpterp431",
	PrimariesSMPTEEG432: "smpteeg432",
	PrimariesEBU3213:    "ebu3213",
}

func (p Primaries) String() string {
	if s, ok := primariesNames[p]; ok {
		return s
	}
	return fmt.Sprintf("primaries(%d)", int(p))
}

// Gamut returns the chromaticities of p. ok is false for unknown primaries.
func (p Primaries) Gamut() (Gamut, bool) {
	g, ok := primariesTable[p]
	return g, ok
}

// BT709 and BT2020 are the default display gamuts for SDR and HDR windows.
var (
	BT709  = primariesTable[PrimariesBT709]
	BT2020 = primariesTable[PrimariesBT2020]
)

// GamutFromSlice reads an 8-float "Rx Ry Gx Gy Bx By Wx Wy" description.
// Fewer than 8 values yields the unset gamut.
func GamutFromSlice(v []float64) Gamut {
	if len(v) < 8 {
		return Gamut{}
	}
	return Gamut{
		Red:   Vec2{v[0], v[1]},
		Green: Vec2{v[2], v[3]},
		Blue:  Vec2{v[4], v[5]},
		White: Vec2{v[6], v[7]},
	}
}
