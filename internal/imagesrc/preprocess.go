package imagesrc

import "image"

// Preprocessing selects how a loaded frame sequence is transformed
// before scaling, mirroring ImagePreprocessing in image_manager.rs.
type Preprocessing int

const (
	// PreprocessNone passes frames through unchanged.
	PreprocessNone Preprocessing = iota
	// PreprocessDiff replaces pixels equal to the previous frame's pixel
	// at the same coordinate with fully transparent, leaving the first
	// frame untouched.
	PreprocessDiff
	// PreprocessCutoff replaces pixels below a luma threshold with fully
	// transparent.
	PreprocessCutoff
)

// cutoffLuma matches the reference's hardcoded threshold (ITU-R BT.601
// luma < 127 is cut).
const cutoffLuma = 127

// Execute applies the preprocessing mode to a frame sequence, returning
// a new sequence of the same length (Diff and Cutoff never drop or add
// frames, only mutate pixels).
func (p Preprocessing) Execute(frames []Frame) []Frame {
	switch p {
	case PreprocessDiff:
		return diff(frames)
	case PreprocessCutoff:
		return cutoff(frames)
	default:
		return frames
	}
}

func diff(frames []Frame) []Frame {
	if len(frames) == 0 {
		return nil
	}
	out := make([]Frame, len(frames))
	out[0] = frames[0]
	last := frames[0].Image

	for i := 1; i < len(frames); i++ {
		img := frames[i].Image
		bounds := img.Bounds()
		diffImg := image.NewNRGBA(bounds)
		for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
			for x := bounds.Min.X; x < bounds.Max.X; x++ {
				this := img.NRGBAAt(x, y)
				prev := last.NRGBAAt(x, y)
				if this == prev {
					diffImg.SetNRGBA(x, y, image.NRGBA{})
				} else {
					diffImg.SetNRGBA(x, y, this)
				}
			}
		}
		out[i] = Frame{Image: diffImg, Delay: frames[i].Delay}
		last = img
	}
	return out
}

func cutoff(frames []Frame) []Frame {
	out := make([]Frame, len(frames))
	for i, f := range frames {
		bounds := f.Image.Bounds()
		cut := image.NewNRGBA(bounds)
		for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
			for x := bounds.Min.X; x < bounds.Max.X; x++ {
				px := f.Image.NRGBAAt(x, y)
				if luma(px) < cutoffLuma {
					cut.SetNRGBA(x, y, image.NRGBA{})
				} else {
					cut.SetNRGBA(x, y, px)
				}
			}
		}
		out[i] = Frame{Image: cut, Delay: f.Delay}
	}
	return out
}

// luma computes ITU-R BT.601 luma from straight-alpha RGB, ignoring
// alpha (matching image::Pixel::to_luma, which operates on the color
// channels only).
func luma(px image.NRGBA) uint8 {
	r, g, b := uint32(px.R), uint32(px.G), uint32(px.B)
	return uint8((r*299 + g*587 + b*114) / 1000)
}
