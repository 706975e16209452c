// Package videosrc adapts an externally driven raw-frame producer (a
// GStreamer pipeline whose terminal element is conventionally named
// "pixelflut_out") into a canvas.FrameSource. The GStreamer bindings
// themselves are out of scope (an explicit Non-goal); this package only
// implements the consumption side of the interface, mirroring the
// appsink callback in gst.rs as a plain Push method any pipeline runner
// can call.
package videosrc

import (
	"errors"
	"image"
	"sync"

	"github.com/kleinesfilmroellchen/hyperflut/internal/canvas"
)

// ErrClosed is returned by Push once the Source has been closed.
var ErrClosed = errors.New("videosrc: source is closed")

// Source implements canvas.FrameSource over a buffered channel fed by
// Push. The channel has capacity 1: a frame not yet drained by the
// canvas is replaced rather than queued, since a painter only ever
// wants the freshest frame (see painter.Painter's adopt-new-frame
// policy).
type Source struct {
	mu     sync.Mutex
	frames chan canvas.SharedFrame
	done   bool
}

// New creates an empty Source. Push does not scale frames: they are
// expected to arrive already at the canvas's draw size.
func New() *Source {
	return &Source{frames: make(chan canvas.SharedFrame, 1)}
}

// Push delivers one decoded frame, converting it to the canonical
// straight-alpha buffer type if necessary. It never blocks: a frame the
// canvas hasn't drained yet is dropped in favor of the new one.
func (s *Source) Push(img image.Image) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done {
		return ErrClosed
	}

	frame := toCanonical(img)

	select {
	case s.frames <- frame:
	default:
		select {
		case <-s.frames:
		default:
		}
		s.frames <- frame
	}
	return nil
}

// Frames implements canvas.FrameSource.
func (s *Source) Frames() <-chan canvas.SharedFrame {
	return s.frames
}

// Close stops accepting further frames and closes the channel Frames
// returns, so its consumer sees the end of the stream after draining any
// frame still pending in it.
func (s *Source) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done {
		return
	}
	s.done = true
	close(s.frames)
}

func toCanonical(img image.Image) *image.NRGBA {
	if n, ok := img.(*image.NRGBA); ok {
		return n
	}
	bounds := img.Bounds()
	dst := image.NewNRGBA(bounds)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			dst.Set(x, y, img.At(x, y))
		}
	}
	return dst
}
