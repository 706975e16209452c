// Package painter implements the worker that walks one vertical strip
// of the canvas and emits its pixels through a transport.Client.
package painter

import (
	"errors"
	"fmt"
	"image"
	"math/rand"
	"time"

	"github.com/kleinesfilmroellchen/hyperflut/internal/color"
	"github.com/kleinesfilmroellchen/hyperflut/internal/geom"
	"github.com/kleinesfilmroellchen/hyperflut/internal/transport"
)

// Frame is the decoded, draw-region-sized image a painter reads pixels
// from. It is non-premultiplied straight-alpha RGBA (*image.NRGBA), the Go
// analogue of the reference design's RgbaImage: premultiplied alpha would
// scale down the RGB channels of translucent pixels before they ever reach
// the wire, which pixelflut servers that honor the alpha channel do not
// expect.
type Frame = *image.NRGBA

// ErrUpstreamClosed is returned by Work when the frame inbox is closed
// before any frame has ever arrived.
var ErrUpstreamClosed = errors.New("painter: frame source closed before first frame")

// point is a local (slice-relative) pixel coordinate.
type point struct{ X, Y uint16 }

// Painter owns one transport and one slice of the canvas. It is driven by
// repeated calls to Work, one per pass over its slice; the caller (the
// canvas's per-painter goroutine) is responsible for restarting the
// transport and resuming Work calls when an error is returned.
type Painter struct {
	client  transport.Client
	slice   geom.Rect
	offsetX uint16
	offsetY uint16

	slowPaint bool
	scanOrder []point

	current Frame
	rng     *rand.Rand
}

// New creates a Painter over slice, sending pixels through client.
// offsetX/offsetY are added to every coordinate sent to the transport; the
// caller zeroes them when the transport already negotiated a server-side
// OFFSET (see SPEC_FULL.md §4.7).
func New(client transport.Client, slice geom.Rect, offsetX, offsetY uint16, slowPaint bool) *Painter {
	order := make([]point, 0, int(slice.W)*int(slice.H))
	for y := uint16(0); y < slice.H; y++ {
		for x := uint16(0); x < slice.W; x++ {
			order = append(order, point{X: x, Y: y})
		}
	}
	return &Painter{
		client:    client,
		slice:     slice,
		offsetX:   offsetX,
		offsetY:   offsetY,
		slowPaint: slowPaint,
		scanOrder: order,
		rng:       rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// adopt replaces the painter's current frame and clears any per-frame
// transport buffering (notably a TCP batch buffer), since it no longer
// corresponds to the newly adopted frame.
func (p *Painter) adopt(f Frame) {
	p.current = f
	p.client.ClearBuffers()
}

// tryAdopt performs one non-blocking receive on inbox, adopting a fresher
// frame if one is immediately available.
func (p *Painter) tryAdopt(inbox <-chan Frame) {
	select {
	case f, ok := <-inbox:
		if ok {
			p.adopt(f)
		}
	default:
	}
}

// Work performs one pass over the painter's slice: wait for the first
// frame if none has arrived yet, adopt any fresher frame available now,
// then walk the slice emitting non-transparent pixels. It returns
// whatever error the transport raised, or nil after a full pass completed
// and FlushPixels succeeded.
func (p *Painter) Work(inbox <-chan Frame) error {
	if p.current == nil {
		f, ok := <-inbox
		if !ok {
			return ErrUpstreamClosed
		}
		p.adopt(f)
	}

	p.tryAdopt(inbox)

	order := p.scanOrder
	if p.slowPaint {
		order = p.shuffledOrder()
	}

	for _, pt := range order {
		// Adopt a fresher frame mid-scan without resetting scan position:
		// staleness is bounded to one pixel step (SPEC_FULL.md §8, invariant 7).
		p.tryAdopt(inbox)

		frame := p.current
		gx := int(p.slice.X) + int(pt.X)
		gy := int(p.slice.Y) + int(pt.Y)
		px := frame.NRGBAAt(gx, gy)
		if px.A == 0 {
			continue
		}

		wx := p.slice.X + pt.X + p.offsetX
		wy := p.slice.Y + pt.Y + p.offsetY
		if err := p.client.SendPixel(wx, wy, color.New(px.R, px.G, px.B, px.A)); err != nil {
			return fmt.Errorf("painter: send pixel (%d,%d): %w", wx, wy, err)
		}

		if p.slowPaint {
			time.Sleep(time.Microsecond)
			if err := p.client.FlushPixels(); err != nil {
				return fmt.Errorf("painter: slowpaint flush: %w", err)
			}
		}
	}

	if err := p.client.FlushPixels(); err != nil {
		return fmt.Errorf("painter: flush pass: %w", err)
	}
	return nil
}

// shuffledOrder returns a freshly shuffled copy of the scanline order, for
// slow-paint demo mode.
func (p *Painter) shuffledOrder() []point {
	shuffled := make([]point, len(p.scanOrder))
	copy(shuffled, p.scanOrder)
	p.rng.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})
	return shuffled
}
