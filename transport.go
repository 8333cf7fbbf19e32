package movieplayback

import (
	"fmt"
	"math"

	"github.com/e7canasta/movie-playback/internal/emitter"
	"github.com/e7canasta/movie-playback/internal/pipeline"
)

// SetRate starts (rate != 0) or stops (rate 0) playback of h. Repeating
// the current rate only updates the volume. Stopping returns the frames
// dropped since playback started.
func (e *Engine) SetRate(h Handle, rate float64, loop LoopMode, volume float64) (int, error) {
	if math.IsNaN(rate) || math.IsInf(rate, 0) {
		return 0, fmt.Errorf("%w: rate %g", ErrInvalidArgument, rate)
	}
	if math.IsNaN(volume) {
		return 0, fmt.Errorf("%w: volume %g", ErrInvalidArgument, volume)
	}

	m, err := e.acquire(h)
	if err != nil {
		return 0, err
	}
	defer m.mu.Unlock()

	if rate == m.ctl.Rate() {
		m.setVolume(volume)
		return 0, nil
	}
	if rate != 0 {
		e.start(m, rate, loop, volume)
		return 0, nil
	}
	return e.stop(m), nil
}

func (m *movie) setVolume(volume float64) {
	m.volume = volume
	m.pl.SetVolume(volume, volume <= 0)
}

func (e *Engine) start(m *movie, rate float64, loop LoopMode, volume float64) {
	m.setVolume(volume)

	now := m.timeIndex()
	loop = pipeline.NormalizeLoop(loop, m.special)

	seek := pipeline.Seek{
		Rate:   rate,
		Format: pipeline.FormatTime,
		Flags:  pipeline.SeekFlush | pipeline.SeekAccurate,
	}
	if loop.Has(LoopEnabled) && loop.Has(LoopSegment) {
		seek.Flags |= pipeline.SeekSegment
	}
	pos := int64(now * 1e9)
	if rate > 0 {
		seek.StartType, seek.Start = pipeline.SeekTypeSet, pos
		seek.StopType, seek.Stop = pipeline.SeekTypeNone, -1
	} else {
		seek.StartType, seek.Start = pipeline.SeekTypeSet, 0
		seek.StopType, seek.Stop = pipeline.SeekTypeSet, pos
	}

	// The flush discards every announced buffer.
	m.x.Reset()
	if !m.pl.Seek(seek) {
		m.logger.Warn("movie-playback: rate change seek failed, keeping previous direction",
			"rate", rate,
			"position", now,
		)
	}

	m.ctl.SetLoop(loop)
	m.ctl.SetRate(rate)
	m.lastPTS = -1
	m.dropped = 0
	m.cadence.Reset()

	if m.videoTracks > 0 && m.sink.Drop() {
		m.startPending = true
	} else {
		m.startPending = false
		if !m.ctl.SetState(pipeline.StatePlaying, e.policy.RateChangeTimeout) {
			m.logger.Warn("movie-playback: could not start playback", "rate", rate)
		}
		m.ctl.Drain(false)
	}

	m.logger.Info("movie-playback: playback started",
		"rate", rate,
		"loop", int(loop),
		"volume", volume,
		"position", now,
		"deferred", m.startPending,
	)
	e.emit(m, Event{Type: emitter.EventStarted, Rate: rate, Position: now})
}

func (e *Engine) stop(m *movie) int {
	m.ctl.SetRate(0)
	m.ctl.SetLoop(0)
	m.startPending = false
	m.endOfFetch = false

	if !m.ctl.SetState(pipeline.StatePaused, e.policy.RateChangeTimeout) {
		m.logger.Warn("movie-playback: could not pause playback")
	}
	m.ctl.Drain(false)

	if m.dropped > 0 {
		m.logger.Info("movie-playback: frames dropped during playback", "dropped", m.dropped)
	}
	m.logger.Info("movie-playback: playback stopped", "cadence_frames", m.cadence.Stats().Frames)
	e.emit(m, Event{Type: emitter.EventStopped, Dropped: m.dropped, Position: m.timeIndex()})
	return m.dropped
}

// SetTimeIndex seeks h to t seconds, or to frame t when frames is set, and
// returns the position before the seek.
func (e *Engine) SetTimeIndex(h Handle, t float64, frames bool) (float64, error) {
	if math.IsNaN(t) || math.IsInf(t, 0) || t < 0 {
		return 0, fmt.Errorf("%w: time index %g", ErrInvalidArgument, t)
	}
	m, err := e.acquire(h)
	if err != nil {
		return 0, err
	}
	defer m.mu.Unlock()

	return e.seek(m, t, frames), nil
}

// seek performs a flushing, accurate seek and waits for it to settle. Seek
// failures are logged, not returned: the movie keeps playing from where it
// was.
func (e *Engine) seek(m *movie, t float64, frames bool) float64 {
	old := m.timeIndex()

	flags := pipeline.SeekFlush | pipeline.SeekAccurate
	loop := m.ctl.Loop()
	if m.ctl.Rate() != 0 && loop.Has(LoopEnabled) && loop.Has(LoopSegment) {
		flags |= pipeline.SeekSegment
	}

	m.x.Reset()
	target := t
	if frames {
		index := int64(t + 0.5)
		ok := m.pl.Seek(pipeline.Seek{
			Rate:      1,
			Format:    pipeline.FormatDefault,
			Flags:     flags,
			StartType: pipeline.SeekTypeSet,
			Start:     index,
			StopType:  pipeline.SeekTypeNone,
			Stop:      -1,
		})
		if !ok {
			if m.fps <= 0 {
				m.logger.Warn("movie-playback: frame seek unsupported and framerate unknown", "frame", index)
				return old
			}
			target = float64(index) / m.fps
			m.logger.Warn("movie-playback: frame seek unsupported, seeking by time with reduced precision",
				"frame", index,
				"seconds", target,
			)
			frames = false
		}
	}
	if !frames && !m.pl.Seek(timeSeek(flags, target)) {
		m.logger.Warn("movie-playback: seek failed", "target", target)
	}

	if m.pl.WaitState(e.policy.SeekTimeout) == pipeline.StateChangeFailure {
		m.logger.Warn("movie-playback: seek did not complete", "target", target)
	}
	m.endOfFetch = false
	m.ctl.Drain(false)

	e.emit(m, Event{Type: emitter.EventSeek, Position: target, Rate: m.ctl.Rate()})
	return old
}

func timeSeek(flags pipeline.SeekFlags, seconds float64) pipeline.Seek {
	return pipeline.Seek{
		Rate:      1,
		Format:    pipeline.FormatTime,
		Flags:     flags,
		StartType: pipeline.SeekTypeSet,
		Start:     int64(seconds * 1e9),
		StopType:  pipeline.SeekTypeNone,
		Stop:      -1,
	}
}

// TimeIndex returns the current position of h in seconds.
func (e *Engine) TimeIndex(h Handle) (float64, error) {
	m, err := e.acquire(h)
	if err != nil {
		return 0, err
	}
	defer m.mu.Unlock()

	m.ctl.Drain(false)
	return m.timeIndex(), nil
}

// timeIndex returns the stream position in seconds, 0 when the pipeline
// cannot report one.
func (m *movie) timeIndex() float64 {
	pos, ok := m.pl.Position(pipeline.FormatTime)
	if !ok {
		m.logger.Warn("movie-playback: could not query playback position")
		return 0
	}
	return float64(pos) / 1e9
}
