package gstreamer

import (
	"strconv"
	"time"

	"github.com/e7canasta/movie-playback/internal/pipeline"
	"github.com/tinyzimmer/go-glib/glib"
	"github.com/tinyzimmer/go-gst/gst"
)

// Decoder adapts a video decoder element, typically avdec_*, to
// pipeline.Decoder.
type Decoder struct {
	element *gst.Element
	state   *stateWaiter
}

var _ pipeline.Decoder = (*Decoder)(nil)

func newDecoder(el *gst.Element) *Decoder {
	return &Decoder{element: el, state: newStateWaiter(el)}
}

// hasProperty reports whether the element declares name with a type
// derived from want. Same-named properties of other types are ignored.
func (d *Decoder) hasProperty(name string, want glib.Type) bool {
	t, err := d.element.GetPropertyType(name)
	if err != nil {
		return false
	}
	return t.IsA(want)
}

// Name implements pipeline.Decoder.
func (d *Decoder) Name() string {
	return d.element.GetName()
}

// SupportsThreads implements pipeline.Decoder.
func (d *Decoder) SupportsThreads() bool {
	return d.hasProperty("max-threads", glib.TYPE_INT)
}

// SupportsSkipFrame implements pipeline.Decoder.
func (d *Decoder) SupportsSkipFrame() bool {
	return d.hasProperty("skip-frame", glib.TYPE_ENUM)
}

// SetMaxThreads implements pipeline.Decoder. 0 lets the decoder pick.
func (d *Decoder) SetMaxThreads(n int) {
	d.element.SetProperty("max-threads", n)
}

// SetSkipFrame implements pipeline.Decoder. Mode 1 skips non-reference frames.
// skip-frame is an enum, so the value goes through the string deserializer.
func (d *Decoder) SetSkipFrame(mode int) {
	d.element.SetArg("skip-frame", strconv.Itoa(mode))
}

// SetState implements pipeline.Decoder.
func (d *Decoder) SetState(s pipeline.State) pipeline.StateChange {
	return d.state.request(toGstState(s))
}

// WaitState implements pipeline.Decoder.
func (d *Decoder) WaitState(timeout time.Duration) pipeline.StateChange {
	return d.state.wait(timeout)
}
