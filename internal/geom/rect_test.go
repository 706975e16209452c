package geom

import "testing"

func TestSlicesDisjointAndCovering(t *testing.T) {
	const width, height = 10, 4
	for n := 1; n <= 5; n++ {
		rects := Slices(width, height, n)
		if len(rects) != n {
			t.Fatalf("n=%d: got %d rects", n, len(rects))
		}
		covered := map[[2]uint16]bool{}
		for _, r := range rects {
			for x := r.X; x < r.X+r.W; x++ {
				for y := r.Y; y < r.Y+r.H; y++ {
					key := [2]uint16{x, y}
					if covered[key] {
						t.Fatalf("n=%d: pixel (%d,%d) covered by more than one slice", n, x, y)
					}
					covered[key] = true
				}
			}
		}
		stripWidth := uint16(width) / uint16(n)
		wantCovered := int(stripWidth) * int(n) * height
		if len(covered) != wantCovered {
			t.Fatalf("n=%d: covered %d pixels, want %d", n, len(covered), wantCovered)
		}
	}
}

func TestSliceWithZeroWidthIsEmpty(t *testing.T) {
	rects := Slices(3, 10, 8) // 3/8 == 0
	for i, r := range rects {
		if !r.Empty() {
			t.Fatalf("slice %d should be empty, got %+v", i, r)
		}
	}
}

func TestSlicesNonPositiveCount(t *testing.T) {
	if got := Slices(10, 10, 0); got != nil {
		t.Fatalf("Slices with n=0 should return nil, got %v", got)
	}
}
