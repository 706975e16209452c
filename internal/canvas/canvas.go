// Package canvas implements the coordinator that slices the draw region
// among painter goroutines, fans frames out to them, and respawns
// painters whose transport has failed.
package canvas

import (
	"time"

	"go.uber.org/zap"

	"github.com/kleinesfilmroellchen/hyperflut/internal/geom"
	"github.com/kleinesfilmroellchen/hyperflut/internal/painter"
	"github.com/kleinesfilmroellchen/hyperflut/internal/transport"
)

// reconnectBackoff is the delay between a failed transport construction
// or a painter.Work error and the next reconnect attempt.
const reconnectBackoff = 500 * time.Millisecond

// SharedFrame is the reference a FrameSource hands to the canvas: a
// single decoded, draw-size buffer shared (never copied) across every
// painter's inbox. Go's garbage collector already keeps it alive as long
// as any painter holds the pointer, so fan-out is one pointer send per
// painter rather than one decode per painter per pass.
type SharedFrame = painter.Frame

// FrameSource is the interface external collaborators (the image
// manager, a video pipeline) push frames through.
type FrameSource interface {
	// Frames returns the channel new frames arrive on. The channel is
	// closed when the source has no more frames to deliver.
	Frames() <-chan SharedFrame
}

// TransportFactory constructs a transport.Client for one painter. The
// canvas calls it again on every reconnect attempt, so implementations
// must be safe to call repeatedly and cheap to fail.
type TransportFactory func() (transport.Client, error)

// Config configures a Canvas's construction.
type Config struct {
	Width, Height uint16
	PainterCount  int
	NewTransport  TransportFactory
	Logger        *zap.Logger

	// OffsetX/OffsetY are the painter-local pixel offset applied when
	// the transport did not already negotiate a server-side OFFSET.
	OffsetX, OffsetY uint16
	// SlowPaint enables shuffled, throttled painting (see painter.New).
	SlowPaint bool
}

// paintHandle tracks one spawned painter goroutine: its slice and the
// send half of its frame inbox.
type paintHandle struct {
	slice geom.Rect
	inbox chan painter.Frame
}

// Canvas owns N painter goroutines and fans decoded frames out to them.
// It never touches the network directly; painters do.
type Canvas struct {
	width, height uint16
	handles       []paintHandle
	logger        *zap.Logger
}

// New partitions (width, height) into cfg.PainterCount equal vertical
// strips (any right-edge remainder is dropped, per invariant 4) and
// spawns one painter goroutine per strip. Each goroutine's outer loop
// constructs a transport via cfg.NewTransport, runs Painter.Work
// repeatedly until it errors, logs, sleeps reconnectBackoff, and retries
// — forever, with no explicit shutdown path beyond Close.
func New(cfg Config) *Canvas {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	slices := geom.Slices(cfg.Width, cfg.Height, cfg.PainterCount)
	c := &Canvas{
		width:   cfg.Width,
		height:  cfg.Height,
		handles: make([]paintHandle, len(slices)),
		logger:  logger,
	}

	for i, slice := range slices {
		inbox := make(chan painter.Frame, 1)
		c.handles[i] = paintHandle{slice: slice, inbox: inbox}
		go c.supervise(i, slice, inbox, cfg.NewTransport, cfg.OffsetX, cfg.OffsetY, cfg.SlowPaint)
	}

	return c
}

// supervise is one painter's outer loop (spec.md §4.7's "forever:
// construct transport; run Painter.work repeatedly until transport
// error; on failure log, sleep, retry").
func (c *Canvas) supervise(index int, slice geom.Rect, inbox <-chan painter.Frame, newTransport TransportFactory, offsetX, offsetY uint16, slowPaint bool) {
	log := c.logger.With(zap.Int("painter", index), zap.Uint16("slice_x", slice.X), zap.Uint16("slice_w", slice.W))

	for {
		client, err := newTransport()
		if err != nil {
			log.Warn("transport construction failed, retrying", zap.Error(err), zap.Duration("backoff", reconnectBackoff))
			time.Sleep(reconnectBackoff)
			continue
		}
		log.Info("painter connected")

		p := painter.New(client, slice, offsetX, offsetY, slowPaint)
		for {
			err := p.Work(inbox)
			if err == nil {
				continue
			}
			if err == painter.ErrUpstreamClosed {
				log.Info("frame source closed, painter exiting")
				closeClient(client)
				return
			}
			log.Warn("painter work failed, reconnecting", zap.Error(err), zap.Duration("backoff", reconnectBackoff))
			closeClient(client)
			break
		}
		time.Sleep(reconnectBackoff)
	}
}

func closeClient(client transport.Client) {
	if closer, ok := client.(interface{ Close() error }); ok {
		_ = closer.Close()
	}
}

// UpdateImage fans frame out to every painter's inbox without blocking:
// a painter that hasn't drained its previous frame yet has it replaced
// in place, since the inbox is a capacity-1 channel and stale frames are
// worthless once a fresher one exists.
func (c *Canvas) UpdateImage(frame SharedFrame) {
	for _, h := range c.handles {
		select {
		case h.inbox <- frame:
		default:
			select {
			case <-h.inbox:
			default:
			}
			select {
			case h.inbox <- frame:
			default:
			}
		}
	}
}

// Close closes every painter's inbox. A painter that has not yet received
// a frame returns ErrUpstreamClosed and its supervisor goroutine exits; a
// painter that already holds a frame keeps repainting it. Canvas has no
// other shutdown path, matching spec.md §4.7.
func (c *Canvas) Close() error {
	for _, h := range c.handles {
		close(h.inbox)
	}
	return nil
}

// PainterCount reports how many painter goroutines were spawned (the
// slice count after dropping the right-edge remainder).
func (c *Canvas) PainterCount() int { return len(c.handles) }

// Dimensions reports the configured draw size.
func (c *Canvas) Dimensions() (width, height uint16) { return c.width, c.height }
