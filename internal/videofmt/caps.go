package videofmt

import (
	"fmt"
	"strconv"
	"strings"
)

// Info is the subset of a raw-video caps description the engine needs.
type Info struct {
	MediaType string
	Format    Format
	Width     int
	Height    int

	// FPSNum/FPSDen is the nominal framerate; 0/1 for variable rate.
	FPSNum, FPSDen int
	// PARNum/PARDen is the pixel aspect ratio; 1/1 when absent.
	PARNum, PARDen int

	// Colorimetry is the raw caps string, empty if absent.
	Colorimetry string

	// HDR static metadata strings, empty if absent.
	MasteringDisplayInfo string
	ContentLightLevel    string

	fields map[string]string
}

// FPS returns the nominal framerate, 0 if unknown.
func (i Info) FPS() float64 {
	if i.FPSDen == 0 {
		return 0
	}
	return float64(i.FPSNum) / float64(i.FPSDen)
}

// AspectRatio returns the pixel aspect ratio as a float.
func (i Info) AspectRatio() float64 {
	if i.PARNum == 0 || i.PARDen == 0 {
		return 1
	}
	return float64(i.PARNum) / float64(i.PARDen)
}

// Field returns the raw value of a caps field without its type annotation.
func (i Info) Field(name string) (string, bool) {
	v, ok := i.fields[name]
	return v, ok
}

// ParseCaps parses a serialized caps string such as
//
//	video/x-raw, format=(string)I420, width=(int)1920, framerate=(fraction)30/1
//
// Only the first structure is considered.
func ParseCaps(s string) (Info, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Info{}, fmt.Errorf("videofmt: empty caps")
	}
	if i := strings.Index(s, ";"); i >= 0 {
		s = s[:i]
	}

	tokens := splitFields(s)
	info := Info{
		MediaType: strings.TrimSpace(tokens[0]),
		FPSDen:    1,
		PARNum:    1,
		PARDen:    1,
		fields:    make(map[string]string, len(tokens)),
	}

	for _, tok := range tokens[1:] {
		name, value, ok := strings.Cut(tok, "=")
		if !ok {
			continue
		}
		name = strings.TrimSpace(name)
		value = stripType(strings.TrimSpace(value))
		info.fields[name] = value

		var err error
		switch name {
		case "format":
			info.Format = Format(value)
		case "width":
			info.Width, err = strconv.Atoi(value)
		case "height":
			info.Height, err = strconv.Atoi(value)
		case "framerate":
			info.FPSNum, info.FPSDen, err = parseFraction(value)
		case "pixel-aspect-ratio":
			info.PARNum, info.PARDen, err = parseFraction(value)
		case "colorimetry":
			info.Colorimetry = value
		case "mastering-display-info":
			info.MasteringDisplayInfo = value
		case "content-light-level":
			info.ContentLightLevel = value
		}
		if err != nil {
			return Info{}, fmt.Errorf("videofmt: caps field %s=%q: %w", name, value, err)
		}
	}
	return info, nil
}

// splitFields splits on commas outside double quotes.
func splitFields(s string) []string {
	var out []string
	var b strings.Builder
	quoted := false
	for _, r := range s {
		switch {
		case r == '"':
			quoted = !quoted
		case r == ',' && !quoted:
			out = append(out, b.String())
			b.Reset()
			continue
		}
		b.WriteRune(r)
	}
	return append(out, b.String())
}

// stripType removes a leading "(type)" annotation and surrounding quotes.
func stripType(v string) string {
	if strings.HasPrefix(v, "(") {
		if end := strings.Index(v, ")"); end >= 0 {
			v = v[end+1:]
		}
	}
	return strings.Trim(v, "\"")
}

func parseFraction(v string) (int, int, error) {
	num, den, ok := strings.Cut(v, "/")
	if !ok {
		n, err := strconv.Atoi(v)
		return n, 1, err
	}
	n, err := strconv.Atoi(num)
	if err != nil {
		return 0, 0, err
	}
	d, err := strconv.Atoi(den)
	if err != nil {
		return 0, 0, err
	}
	return n, d, nil
}
