package videofmt

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/e7canasta/movie-playback/internal/colormath"
)

// HDRMetadataType tags the kind of static metadata. Only the SMPTE ST-2086 /
// CTA-861.3 static type (0) exists today.
const HDRMetadataTypeStatic = 0

// HDRMetadata is the static HDR metadata of a stream.
type HDRMetadata struct {
	Valid bool
	Type  int

	// Primaries holds red, green, blue mastering display primaries (CIE xy).
	Primaries [3]colormath.Vec2
	White     colormath.Vec2

	// Luminances in nits.
	MinLuminance float64
	MaxLuminance float64

	MaxFrameAverageLightLevel float64
	MaxContentLightLevel      float64
}

// Mastering display units as carried in caps: chromaticity in 0.00002 steps,
// luminance in 0.0001 cd/m² steps.
const (
	chromaticityUnits = 50000.0
	luminanceUnits    = 10000.0
)

// ParseHDR extracts static HDR metadata from caps fields. A stream without
// either field yields a zero, invalid record.
func ParseHDR(info Info) (HDRMetadata, error) {
	var md HDRMetadata

	if info.MasteringDisplayInfo != "" {
		v, err := parseUints(info.MasteringDisplayInfo, 10)
		if err != nil {
			return HDRMetadata{}, fmt.Errorf("videofmt: mastering-display-info: %w", err)
		}
		for i := 0; i < 3; i++ {
			md.Primaries[i] = colormath.Vec2{v[2*i] / chromaticityUnits, v[2*i+1] / chromaticityUnits}
		}
		md.White = colormath.Vec2{v[6] / chromaticityUnits, v[7] / chromaticityUnits}
		md.MaxLuminance = v[8] / luminanceUnits
		md.MinLuminance = v[9] / luminanceUnits
		md.Type = HDRMetadataTypeStatic
		md.Valid = true
	}

	if info.ContentLightLevel != "" {
		v, err := parseUints(info.ContentLightLevel, 2)
		if err != nil {
			return HDRMetadata{}, fmt.Errorf("videofmt: content-light-level: %w", err)
		}
		md.MaxContentLightLevel = v[0]
		md.MaxFrameAverageLightLevel = v[1]
		md.Valid = true
	}

	return md, nil
}

func parseUints(s string, n int) ([]float64, error) {
	parts := strings.Split(s, ":")
	if len(parts) != n {
		return nil, fmt.Errorf("want %d fields, got %d", n, len(parts))
	}
	out := make([]float64, n)
	for i, p := range parts {
		u, err := strconv.ParseUint(strings.TrimSpace(p), 10, 32)
		if err != nil {
			return nil, err
		}
		out[i] = float64(u)
	}
	return out, nil
}
