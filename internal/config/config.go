// Package config parses the CLI surface into a validated Config.
package config

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/kleinesfilmroellchen/hyperflut/internal/imagesrc"
	"github.com/kleinesfilmroellchen/hyperflut/internal/transport"
)

// Config is the validated result of parsing the CLI surface: host, bind
// address, draw size/offset, painter count, fps, scaling filter,
// preprocessing mode, flush/offset/slowpaint flags, backend kind, and
// image paths.
type Config struct {
	Host    string
	Address string

	ImagePaths []string

	Width, Height   *uint16 // nil means "use the server's reported SIZE"
	OffsetX, OffsetY uint16

	Count int // painter thread count; 0 means "use runtime.NumCPU()"
	FPS   int

	Scaling       imagesrc.ScalingFilter
	Preprocessing imagesrc.Preprocessing

	Flush            bool
	UseOffsetCommand bool
	SlowPaint        bool

	Backend transport.Kind
}

// PainterCount resolves Count, defaulting to the number of logical CPUs
// when the operator did not specify one, mirroring ArgHandler::count.
func (c Config) PainterCount() int {
	if c.Count > 0 {
		return c.Count
	}
	return runtime.NumCPU()
}

// Size resolves the draw size against a fallback (typically the
// server's reported SIZE), mirroring ArgHandler::size.
func (c Config) Size(fallbackWidth, fallbackHeight uint16) (width, height uint16) {
	width, height = fallbackWidth, fallbackHeight
	if c.Width != nil {
		width = *c.Width
	}
	if c.Height != nil {
		height = *c.Height
	}
	return width, height
}

var scalingNames = []string{"gaussian", "triangle", "catmull-rom", "lanczos", "nearest"}
var preprocessingNames = []string{"none", "diff", "cutoff"}
var backendNames = []string{"text-tcp", "ping-v6"}

// Bind registers every flag from spec.md §6's CLI option table on cmd,
// using the same short/long forms as args.rs, and returns a function
// that, once cmd has parsed os.Args, produces the validated Config for
// the given positional host argument (server address, or IPv6 prefix
// for the ping-v6 backend).
func Bind(cmd *cobra.Command) func(host string) (Config, error) {
	var (
		width, height  uint16
		x, y           uint16
		count          int
		fps            int
		scalingName    string
		preprocessName string
		flush          bool
		useOffset      bool
		slowpaint      bool
		backendName    string
		address        string
		images         []string
	)

	flags := cmd.Flags()
	flags.Uint16VarP(&width, "width", "w", 0, "Draw width [default: screen width]")
	flags.Uint16VarP(&height, "height", "h", 0, "Draw height [default: screen height]")
	flags.Uint16VarP(&x, "x", "x", 0, "Draw X offset")
	flags.Uint16VarP(&y, "y", "y", 0, "Draw Y offset")
	flags.IntVarP(&count, "count", "c", 0, "Number of concurrent painters [default: number of CPUs]")
	flags.IntVarP(&fps, "fps", "r", 1, "Frames per second with multiple images")
	flags.StringVarP(&scalingName, "scaling", "s", "gaussian", "Image scaling algorithm: gaussian|triangle|catmull-rom|lanczos|nearest")
	flags.StringVar(&preprocessName, "preprocessing", "none", "Frame preprocessing: none|diff|cutoff")
	flags.BoolVarP(&flush, "flush", "f", false, "Flush socket after each pixel")
	flags.BoolVarP(&useOffset, "offset", "o", false, "Use OFFSET command to save bandwidth on pixel coordinates")
	flags.BoolVar(&slowpaint, "slowpaint", false, "Paint super slowly (demo mode)")
	flags.StringVar(&backendName, "backend", "text-tcp", "Pixel sending backend: text-tcp|ping-v6")
	flags.StringVar(&address, "address", "", "Local source address to bind to")
	flags.StringSliceVarP(&images, "image", "i", nil, "Image path(s) (repeatable)")

	return func(host string) (Config, error) {
		if host == "" {
			return Config{}, fmt.Errorf("config: host is required")
		}

		scaling, ok := imagesrc.ParseScalingFilter(scalingName)
		if !ok {
			return Config{}, fmt.Errorf("config: invalid image filter %q (want one of %v)", scalingName, scalingNames)
		}

		preprocessing, ok := parsePreprocessing(preprocessName)
		if !ok {
			return Config{}, fmt.Errorf("config: invalid preprocessing mode %q (want one of %v)", preprocessName, preprocessingNames)
		}

		backend, ok := parseBackend(backendName)
		if !ok {
			return Config{}, fmt.Errorf("config: invalid backend %q (want one of %v)", backendName, backendNames)
		}

		if len(images) == 0 {
			return Config{}, fmt.Errorf("config: at least one --image path is required")
		}

		cfg := Config{
			Host:             host,
			Address:          address,
			ImagePaths:       images,
			OffsetX:          x,
			OffsetY:          y,
			Count:            count,
			FPS:              fps,
			Scaling:          scaling,
			Preprocessing:    preprocessing,
			Flush:            flush,
			UseOffsetCommand: useOffset,
			SlowPaint:        slowpaint,
			Backend:          backend,
		}
		if flags.Changed("width") {
			cfg.Width = &width
		}
		if flags.Changed("height") {
			cfg.Height = &height
		}
		return cfg, nil
	}
}

func parsePreprocessing(s string) (imagesrc.Preprocessing, bool) {
	switch s {
	case "none":
		return imagesrc.PreprocessNone, true
	case "diff":
		return imagesrc.PreprocessDiff, true
	case "cutoff":
		return imagesrc.PreprocessCutoff, true
	default:
		return 0, false
	}
}

func parseBackend(s string) (transport.Kind, bool) {
	switch s {
	case "text-tcp":
		return transport.KindTextTCP, true
	case "ping-v6":
		return transport.KindPingxelV6, true
	default:
		return 0, false
	}
}
