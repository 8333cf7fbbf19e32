package movieplayback

import (
	"fmt"
	"log/slog"

	"github.com/e7canasta/movie-playback/internal/eotf"
	"github.com/e7canasta/movie-playback/internal/videofmt"
)

// HDRMetadata returns the movie's HDR metadata and colorimetry.
func (e *Engine) HDRMetadata(h Handle) (HDRInfo, error) {
	m, err := e.acquire(h)
	if err != nil {
		return HDRInfo{}, err
	}
	defer m.mu.Unlock()

	c := m.colorimetry
	info := HDRInfo{
		Valid:                     m.hdr.Valid,
		MetadataType:              m.hdr.Type,
		MinLuminance:              m.hdr.MinLuminance,
		MaxLuminance:              m.hdr.MaxLuminance,
		MaxFrameAverageLightLevel: m.hdr.MaxFrameAverageLightLevel,
		MaxContentLightLevel:      m.hdr.MaxContentLightLevel,
		Colorimetry:               c.String(),
		LimitedRange:              int(c.Range),
		MatrixType:                int(c.Matrix),
		PrimaryType:               int(c.Primaries),
		EOTFType:                  int(c.Transfer),
	}
	for i, p := range m.hdr.Primaries {
		info.ColorGamut[i] = p
	}
	info.ColorGamut[3] = m.hdr.White

	if m.hdr.Valid {
		info.Format = m.sinkFormat.String()
		info.Depth = m.sinkFormat.Depth()
	}
	return info, nil
}

// colorimetryOf returns the stream colorimetry, defaulting by layout and
// size when the caps carry none.
func colorimetryOf(info videofmt.Info, logger *slog.Logger) videofmt.Colorimetry {
	name := info.Colorimetry
	if name == "" {
		name = defaultColorimetry(info)
	}
	c, err := videofmt.ParseColorimetry(name)
	if err != nil {
		logger.Warn("movie-playback: unknown colorimetry, assuming defaults",
			"colorimetry", name,
			"error", err,
		)
		c, _ = videofmt.ParseColorimetry(defaultColorimetry(info))
	}
	return c
}

func defaultColorimetry(info videofmt.Info) string {
	l, ok := info.Format.Layout()
	switch {
	case ok && !l.Planar && info.Format != videofmt.FormatUYVY:
		return "sRGB"
	case info.Height > 576:
		return "bt709"
	default:
		return "bt601"
	}
}

// planarProgram builds the HDR decode program of m on first use.
func (e *Engine) planarProgram(m *movie) error {
	if m.program != nil {
		return nil
	}

	params, err := eotf.Compute(eotf.Input{
		Format:      m.sinkFormat,
		Colorimetry: m.colorimetry,
		Display:     e.display,
	})
	if err != nil {
		return fmt.Errorf("%w: planar decode for %s: %w", ErrConfiguration, m.sinkFormat, err)
	}
	if params.PrimariesFallback {
		m.logger.Warn("movie-playback: unknown color primaries, assuming BT.709",
			"primaries", int(m.colorimetry.Primaries),
		)
	}

	prog, err := eotf.NewProgram(e.profile, params)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrConfiguration, err)
	}
	if e.renderer != nil {
		id, err := e.renderer.CompileProgram(prog)
		if err != nil {
			return fmt.Errorf("%w: compile planar decode program: %w", ErrConfiguration, err)
		}
		m.programID = id
	}
	m.program = prog

	m.logger.Info("movie-playback: planar decode program ready",
		"format", m.sinkFormat.String(),
		"transfer", params.Transfer.String(),
		"profile", e.profile.String(),
		"program_id", m.programID,
	)
	return nil
}
