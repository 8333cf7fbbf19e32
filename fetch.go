package movieplayback

import (
	"fmt"
	"math"
	"time"

	"github.com/e7canasta/movie-playback/internal/pipeline"
)

// maxTargetTime bounds GetFrame's targetTime, in seconds.
const maxTargetTime = 100000

// GetFrame checks for or fetches the next frame of h.
func (e *Engine) GetFrame(h Handle, mode FetchMode, targetTime float64) (FetchStatus, *Frame, error) {
	if mode < FetchBlocking || mode > FetchWait {
		return StatusNotReady, nil, fmt.Errorf("%w: fetch mode %d", ErrInvalidArgument, int(mode))
	}
	if targetTime != -1 && (math.IsNaN(targetTime) || targetTime < 0 || targetTime >= maxTargetTime) {
		return StatusNotReady, nil, fmt.Errorf("%w: target time %g not -1 or in [0, %d)", ErrInvalidArgument, targetTime, maxTargetTime)
	}

	m, err := e.acquire(h)
	if err != nil {
		return StatusNotReady, nil, err
	}
	defer m.mu.Unlock()

	rate := m.ctl.Rate()
	playback := rate != 0

	// Dropping sinks start on the first fetch, so no frame is lost between
	// SetRate and the consumer being ready.
	if playback && m.startPending {
		m.startPending = false
		if !m.ctl.SetState(pipeline.StatePlaying, e.policy.StartTimeout) {
			m.logger.Warn("movie-playback: deferred start did not complete in time")
		}
	}
	m.ctl.Drain(false)

	if m.videoTracks == 0 {
		return StatusExhausted, nil, nil
	}

	check := mode != FetchBlocking
	if !playback && check && targetTime >= 0 {
		e.seek(m, targetTime, false)
	}

	if (playback && m.ctl.Loop() == 0 && m.sink.IsEOS()) || (!playback && m.endOfFetch) {
		m.endOfFetch = false
		return StatusExhausted, nil, nil
	}

	if !m.x.Available(playback) {
		if mode == FetchPoll {
			return StatusNotReady, nil, nil
		}
		m.x.Wait(playback, e.policy.FetchWait)
		m.ctl.Drain(false)
		if !m.x.Available(playback) {
			return StatusNotReady, nil, nil
		}
	}
	if check {
		return StatusReady, nil, nil
	}

	f, err := e.fetch(m, rate, targetTime)
	if err != nil {
		return StatusNotReady, nil, err
	}
	if f == nil {
		return StatusNotReady, nil, nil
	}
	return StatusReady, f, nil
}

// fetch pulls one frame. A nil frame without error means the announced
// buffer was flushed, or not pulled within the fetch wait.
func (e *Engine) fetch(m *movie, rate, targetTime float64) (*Frame, error) {
	playback := rate != 0
	m.x.Claim(playback, m.sink.MaxBuffers())

	var s pipeline.Sample
	if playback {
		s = m.sink.PullSample(e.policy.FetchWait)
	} else {
		s = m.sink.PullPreroll(e.policy.FetchWait)
	}
	if s == nil {
		m.logger.Debug("movie-playback: announced frame was gone", "playback", playback)
		return nil, nil
	}

	pts, hasPTS := sampleTime(s.PTS())
	if rate > 0 && targetTime >= 0 {
		for pts < targetTime && m.x.SkipOne() {
			next := m.sink.PullSample(e.policy.FetchWait)
			if next == nil {
				break
			}
			s.Release()
			s = next
			pts, hasPTS = sampleTime(s.PTS())
		}
	}

	data, err := s.Map()
	if err != nil {
		s.Release()
		return nil, fmt.Errorf("movie-playback: map frame at %.3fs: %w", pts, err)
	}
	td, err := e.describe(m, s, data)
	if err != nil {
		s.Release()
		return nil, err
	}

	if playback {
		if hasPTS {
			m.accountDrops(pts, rate)
			m.cadence.Add(time.Duration(pts * float64(time.Second)))
		}
	} else {
		e.step(m)
	}

	td.TextureID = m.cachedTexture
	m.cachedTexture = 0

	dur, _ := sampleTime(s.Duration())
	return &Frame{
		Texture:  td,
		PTS:      pts,
		Duration: dur,
		Offset:   s.Offset(),
		release:  s.Release,
	}, nil
}

func sampleTime(d time.Duration, ok bool) (float64, bool) {
	if !ok {
		return 0, false
	}
	return d.Seconds(), true
}

// accountDrops adds the frames skipped between the previous and this
// presentation timestamp to the dropped counter.
func (m *movie) accountDrops(pts, rate float64) {
	if m.fps > 0 && m.lastPTS >= 0 {
		delta := pts - m.lastPTS
		if rate < 0 {
			delta = -delta
		}
		if delta < 0 {
			delta = 0
		}
		if frames := delta * m.fps; frames > 1 {
			m.dropped += int(frames - 1 + 0.5)
		}
	}
	m.lastPTS = pts
}

// step advances a paused movie by one frame. When the position does not
// move, the movie is at its end and the next check reports exhaustion.
func (e *Engine) step(m *movie) {
	m.endOfFetch = false
	before := m.timeIndex()

	if !m.sink.Step(1) {
		m.logger.Warn("movie-playback: frame step rejected")
	}
	if m.pl.WaitState(e.policy.StepTimeout) == pipeline.StateChangeFailure {
		m.logger.Warn("movie-playback: frame step did not complete")
	}

	if m.timeIndex()-before < e.policy.StepEpsilon.Seconds() {
		m.endOfFetch = true
	}
}

// RecycleTexture offers a released texture of h for reuse by the next fetch.
func (e *Engine) RecycleTexture(h Handle, textureID uint32) bool {
	if textureID == 0 {
		return false
	}
	m, err := e.acquire(h)
	if err != nil {
		return false
	}
	defer m.mu.Unlock()

	if m.cachedTexture != 0 {
		return false
	}
	m.cachedTexture = textureID
	return true
}
