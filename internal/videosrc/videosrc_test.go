package videosrc

import (
	"image"
	"testing"
)

func TestPushDeliversFrame(t *testing.T) {
	s := New()
	img := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	img.SetNRGBA(0, 0, image.NRGBA{R: 1, G: 2, B: 3, A: 255})

	if err := s.Push(img); err != nil {
		t.Fatalf("Push: %v", err)
	}

	got := <-s.Frames()
	if got.NRGBAAt(0, 0) != img.NRGBAAt(0, 0) {
		t.Fatalf("got %+v, want %+v", got.NRGBAAt(0, 0), img.NRGBAAt(0, 0))
	}
}

func TestPushReplacesUndrainedFrame(t *testing.T) {
	s := New()
	first := image.NewNRGBA(image.Rect(0, 0, 1, 1))
	first.SetNRGBA(0, 0, image.NRGBA{R: 1, A: 255})
	second := image.NewNRGBA(image.Rect(0, 0, 1, 1))
	second.SetNRGBA(0, 0, image.NRGBA{R: 2, A: 255})

	if err := s.Push(first); err != nil {
		t.Fatalf("Push first: %v", err)
	}
	if err := s.Push(second); err != nil {
		t.Fatalf("Push second: %v", err)
	}

	got := <-s.Frames()
	if got.NRGBAAt(0, 0).R != 2 {
		t.Fatalf("got R=%d, want R=2 (second frame should win)", got.NRGBAAt(0, 0).R)
	}
}

func TestPushAfterCloseErrors(t *testing.T) {
	s := New()
	s.Close()
	img := image.NewNRGBA(image.Rect(0, 0, 1, 1))
	if err := s.Push(img); err != ErrClosed {
		t.Fatalf("got %v, want ErrClosed", err)
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	s := New()
	s.Close()
	s.Close()
}

func TestConvertsArbitraryImageToNRGBA(t *testing.T) {
	s := New()
	rgba := image.NewRGBA(image.Rect(0, 0, 1, 1))
	rgba.Set(0, 0, image.NRGBA{R: 5, G: 6, B: 7, A: 255})

	if err := s.Push(rgba); err != nil {
		t.Fatalf("Push: %v", err)
	}
	got := <-s.Frames()
	if got.NRGBAAt(0, 0).R != 5 {
		t.Fatalf("got R=%d, want 5", got.NRGBAAt(0, 0).R)
	}
}
