package gstreamer

import (
	"github.com/e7canasta/movie-playback/internal/pipeline"
	"github.com/tinyzimmer/go-gst/gst"
)

// translateMessage maps a GStreamer bus message onto the backend-neutral
// pipeline.Message. Errors are classified here, where the GError text and
// debug string are still at hand.
func translateMessage(msg *gst.Message) pipeline.Message {
	m := pipeline.Message{Source: msg.Source()}

	switch msg.Type() {
	case gst.MessageEOS:
		m.Type = pipeline.MessageEOS

	case gst.MessageSegmentDone:
		m.Type = pipeline.MessageSegmentDone

	case gst.MessageError:
		m.Type = pipeline.MessageError
		if gerr := msg.ParseError(); gerr != nil {
			m.Text = gerr.Error()
			m.Debug = gerr.DebugString()
		}
		m.Category = pipeline.ClassifyError(m.Text, m.Debug)

	case gst.MessageWarning:
		m.Type = pipeline.MessageWarning
		if gerr := msg.ParseWarning(); gerr != nil {
			m.Text = gerr.Error()
			m.Debug = gerr.DebugString()
		}

	case gst.MessageBuffering:
		m.Type = pipeline.MessageBuffering
		m.Percent = msg.ParseBuffering()

	default:
		m.Type = pipeline.MessageOther
	}
	return m
}
