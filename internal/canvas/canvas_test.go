package canvas

import (
	"errors"
	"image"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kleinesfilmroellchen/hyperflut/internal/color"
	"github.com/kleinesfilmroellchen/hyperflut/internal/transport"
)

// fakeClient records every pixel sent and lets a test force SendPixel to
// fail once (to exercise the reconnect path).
type fakeClient struct {
	mu       sync.Mutex
	sent     int
	flushes  int32
	closed   int32
	failNext bool
}

func (f *fakeClient) SendPixel(x, y uint16, c color.Color) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failNext {
		f.failNext = false
		return errors.New("injected send failure")
	}
	f.sent++
	return nil
}

func (f *fakeClient) FlushPixels() error {
	atomic.AddInt32(&f.flushes, 1)
	return nil
}

func (f *fakeClient) ClearBuffers() {}

func (f *fakeClient) Close() error {
	atomic.AddInt32(&f.closed, 1)
	return nil
}

func solidFrame(w, h int, c color.Color) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, image.NRGBA{R: c.R, G: c.G, B: c.B, A: c.A})
		}
	}
	return img
}

func TestNewPartitionsIntoConfiguredPainterCount(t *testing.T) {
	c := New(Config{
		Width: 8, Height: 2, PainterCount: 4,
		NewTransport: func() (transport.Client, error) { return &fakeClient{}, nil },
	})
	defer c.Close()

	if c.PainterCount() != 4 {
		t.Fatalf("got %d painters, want 4", c.PainterCount())
	}
	w, h := c.Dimensions()
	if w != 8 || h != 2 {
		t.Fatalf("got dimensions (%d,%d), want (8,2)", w, h)
	}
}

func TestUpdateImageDeliversToEveryPainter(t *testing.T) {
	clients := make([]*fakeClient, 2)
	var idx int32 = -1
	c := New(Config{
		Width: 4, Height: 1, PainterCount: 2,
		NewTransport: func() (transport.Client, error) {
			i := atomic.AddInt32(&idx, 1)
			fc := &fakeClient{}
			clients[i] = fc
			return fc, nil
		},
	})
	defer c.Close()

	frame := solidFrame(4, 1, color.New(1, 2, 3, 255))
	c.UpdateImage(frame)

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		// Painters repaint continuously, so each client's count keeps
		// growing; every painter must have sent at least its 2-pixel slice.
		allPresent := true
		for _, fc := range clients {
			if fc == nil {
				allPresent = false
				break
			}
			fc.mu.Lock()
			sent := fc.sent
			fc.mu.Unlock()
			if sent < 2 {
				allPresent = false
			}
		}
		if allPresent {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("timed out waiting for all pixels to be sent across both painters")
}

func TestCloseStopsPaintersWithoutPanicking(t *testing.T) {
	c := New(Config{
		Width: 4, Height: 1, PainterCount: 1,
		NewTransport: func() (transport.Client, error) { return &fakeClient{}, nil },
	})
	if err := c.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestReconnectAfterTransportError(t *testing.T) {
	var built int32
	failing := &fakeClient{failNext: true}
	c := New(Config{
		Width: 1, Height: 1, PainterCount: 1,
		NewTransport: func() (transport.Client, error) {
			n := atomic.AddInt32(&built, 1)
			if n == 1 {
				return failing, nil
			}
			return &fakeClient{}, nil
		},
	})
	defer c.Close()

	frame := solidFrame(1, 1, color.New(9, 9, 9, 255))
	c.UpdateImage(frame)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if atomic.LoadInt32(&built) >= 2 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("timed out waiting for a second transport to be constructed after the injected failure")
}
