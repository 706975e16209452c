// Package imagesrc loads still images, GIFs and animated WebP files,
// applies preprocessing and scaling, and feeds the resulting frame
// sequence to a canvas.Canvas on a timer, mirroring ImageManager in
// image_manager.rs.
package imagesrc

import (
	"bytes"
	"fmt"
	"image"
	"image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/deepteams/webp"
	"github.com/deepteams/webp/animation"
	"go.uber.org/zap"

	"github.com/kleinesfilmroellchen/hyperflut/internal/canvas"
)

// Frame is one decoded, scaled animation frame plus its preferred
// display delay (nil for stills, where the caller falls back to the
// configured FPS).
type Frame struct {
	Image *image.NRGBA
	Delay *time.Duration
}

// maxParallelLoads bounds the image-loading worker pool, entirely
// separate from and torn down before any painter goroutine starts.
const maxParallelLoads = 8

// Manager owns the decoded, scaled, preprocessed frame sequence and a
// tick cursor over it.
type Manager struct {
	frames []Frame
	index  int
	first  bool
	logger *zap.Logger
}

// Load decodes every path in paths concurrently (bounded by
// maxParallelLoads), applies preprocessing, then scales every resulting
// frame to (width, height) with filter. Paths are processed independent
// of each other in parallel; frames within one multi-frame file (GIF,
// animated WebP) preserve their original order.
func Load(paths []string, width, height int, filter ScalingFilter, pp Preprocessing, logger *zap.Logger) (*Manager, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if len(paths) > 0 {
		logger.Info("loading images", zap.Int("count", len(paths)))
	}

	type result struct {
		index  int
		frames []Frame
		err    error
	}

	sem := make(chan struct{}, maxParallelLoads)
	results := make(chan result, len(paths))
	var wg sync.WaitGroup

	for i, path := range paths {
		wg.Add(1)
		go func(i int, path string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			frames, err := loadPath(path, width, height, filter, pp)
			results <- result{index: i, frames: frames, err: err}
		}(i, path)
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	ordered := make([][]Frame, len(paths))
	for r := range results {
		if r.err != nil {
			return nil, r.err
		}
		ordered[r.index] = r.frames
	}

	var all []Frame
	for _, frames := range ordered {
		all = append(all, frames...)
	}

	if len(paths) > 0 {
		logger.Info("images loaded successfully", zap.Int("frames", len(all)))
	}

	return &Manager{frames: all, logger: logger}, nil
}

// loadPath decodes one file, applies preprocessing across its own
// frames, and scales every resulting frame.
func loadPath(path string, width, height int, filter ScalingFilter, pp Preprocessing) ([]Frame, error) {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return nil, fmt.Errorf("imagesrc: %q does not exist or is not a file", path)
	}

	ext := strings.ToLower(filepath.Ext(path))

	var frames []Frame
	switch ext {
	case ".gif":
		frames, err = decodeGIF(path)
	case ".webp":
		frames, err = decodeWebP(path)
	default:
		frames, err = decodeStill(path)
	}
	if err != nil {
		return nil, err
	}

	frames = pp.Execute(frames)

	scaled := make([]Frame, len(frames))
	for i, f := range frames {
		scaled[i] = Frame{Image: ResizeExact(f.Image, width, height, filter), Delay: f.Delay}
	}
	return scaled, nil
}

func decodeStill(path string) ([]Frame, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %q: %w", path, err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %q: %w", path, err)
	}
	return []Frame{{Image: toNRGBA(img), Delay: nil}}, nil
}

func decodeGIF(path string) ([]Frame, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %q: %w", path, err)
	}
	defer f.Close()

	g, err := gif.DecodeAll(f)
	if err != nil {
		return nil, fmt.Errorf("decode GIF %q: %w", path, err)
	}

	frames := make([]Frame, len(g.Image))
	for i, paletted := range g.Image {
		delay := time.Duration(g.Delay[i]) * 10 * time.Millisecond
		frames[i] = Frame{Image: toNRGBA(paletted), Delay: &delay}
	}
	return frames, nil
}

// decodeWebP decodes a still or animated WebP file, mirroring load_image's
// webp branch: GetFeatures decides whether the file carries an ANIM chunk
// before committing to the (more expensive) animation decode path.
func decodeWebP(path string) ([]Frame, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %q: %w", path, err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("read %q: %w", path, err)
	}

	feat, err := webp.GetFeatures(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode WEBP %q: %w", path, err)
	}

	if !feat.HasAnimation {
		img, err := webp.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("decode WEBP %q: %w", path, err)
		}
		return []Frame{{Image: toNRGBA(img), Delay: nil}}, nil
	}

	anim, err := animation.DecodeBytes(data)
	if err != nil {
		return nil, fmt.Errorf("decode animated WEBP %q: %w", path, err)
	}
	if err := anim.DecodeFrames(); err != nil {
		return nil, fmt.Errorf("decode animated WEBP %q frames: %w", path, err)
	}

	dec := animation.NewAnimDecoder(anim)
	frames := make([]Frame, 0, len(anim.Frames))
	for dec.HasNext() {
		img, delay, err := dec.NextFrame()
		if err != nil {
			return nil, fmt.Errorf("decode animated WEBP %q frame %d: %w", path, len(frames), err)
		}
		frames = append(frames, Frame{Image: img, Delay: &delay})
	}
	return frames, nil
}

func toNRGBA(src image.Image) *image.NRGBA {
	if n, ok := src.(*image.NRGBA); ok {
		return n
	}
	bounds := src.Bounds()
	dst := image.NewNRGBA(bounds)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			dst.Set(x, y, src.At(x, y))
		}
	}
	return dst
}

// FrameCount reports the number of loaded animation frames/images.
func (m *Manager) FrameCount() int { return len(m.frames) }

// Tick pushes the current frame to c and advances the cursor, returning
// the delay the caller should sleep before the next Tick. ok is false
// once a single still image has already been shown (nothing left to
// update), mirroring ImageManager::tick's early return.
func (m *Manager) Tick(c *canvas.Canvas, fps int) (delay time.Duration, ok bool) {
	if len(m.frames) == 0 {
		return 0, false
	}
	if m.first && len(m.frames) == 1 {
		return 0, false
	}

	frame := m.frames[m.index%len(m.frames)]
	c.UpdateImage(frame.Image)
	m.index++
	m.first = true

	if frame.Delay != nil {
		return *frame.Delay, true
	}
	if fps <= 0 {
		fps = 1
	}
	return time.Second / time.Duration(fps), true
}

// Run drives Tick forever, sleeping the returned delay between calls.
// When Tick has nothing new to push (ok is false: a single still image
// already shown, or no frames loaded at all) Run keeps looping on the
// configured-FPS fallback delay instead of returning, mirroring
// ImageManager::work's unconditional loop: tick returning no duration
// only means "nothing to push this round", never "stop running" — the
// process must stay alive so painters keep re-flushing their batch
// buffer and reconnecting after transport errors.
func (m *Manager) Run(c *canvas.Canvas, fps int) {
	if fps <= 0 {
		fps = 1
	}
	fallback := time.Second / time.Duration(fps)
	for {
		delay, ok := m.Tick(c, fps)
		if !ok {
			delay = fallback
		}
		time.Sleep(delay)
	}
}
