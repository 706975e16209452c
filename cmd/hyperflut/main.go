// Command hyperflut paints images and animations onto a Pixelflut
// canvas over a TCP text connection or the ICMPv6 "pingxel" protocol.
package main

import (
	"fmt"
	"net"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kleinesfilmroellchen/hyperflut/internal/canvas"
	"github.com/kleinesfilmroellchen/hyperflut/internal/config"
	"github.com/kleinesfilmroellchen/hyperflut/internal/imagesrc"
	"github.com/kleinesfilmroellchen/hyperflut/internal/logging"
	"github.com/kleinesfilmroellchen/hyperflut/internal/transport"
)

func main() {
	var verbose bool

	cmd := &cobra.Command{
		Use:                   "hyperflut <host> [address]",
		Short:                 "Flood a Pixelflut canvas with images and animations",
		Args:                  cobra.RangeArgs(1, 2),
		DisableFlagsInUseLine: true,
	}
	cmd.Flags().BoolVar(&verbose, "verbose", false, "Enable debug logging")

	resolve := config.Bind(cmd)

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		host := args[0]
		cfg, err := resolve(host)
		if err != nil {
			return err
		}
		if len(args) == 2 {
			cfg.Address = args[1]
		}

		logger, err := logging.New(verbose)
		if err != nil {
			return fmt.Errorf("set up logging: %w", err)
		}
		defer logger.Sync()

		return run(cfg, logger)
	}

	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// run mirrors start()/gather_host_facts() in main.rs: negotiate a draw
// size, load images, construct the canvas, then drive the image manager
// forever.
func run(cfg config.Config, logger *zap.Logger) error {
	logger.Info("starting (use CTRL+C to stop)")

	width, height := gatherHostFacts(cfg, logger)

	mgr, err := imagesrc.Load(cfg.ImagePaths, int(width), int(height), cfg.Scaling, cfg.Preprocessing, logger)
	if err != nil {
		return fmt.Errorf("load images: %w", err)
	}

	singleFrameHint := mgr.FrameCount() == 1

	c := canvas.New(canvas.Config{
		Width:        width,
		Height:       height,
		PainterCount: cfg.PainterCount(),
		Logger:       logger,
		OffsetX:      offsetForPainter(cfg, cfg.OffsetX),
		OffsetY:      offsetForPainter(cfg, cfg.OffsetY),
		SlowPaint:    cfg.SlowPaint,
		NewTransport: transportFactory(cfg, singleFrameHint),
	})
	defer c.Close()

	logger.Info("canvas ready", zap.Int("painters", c.PainterCount()), zap.Uint16("width", width), zap.Uint16("height", height))

	mgr.Run(c, cfg.FPS)
	return nil
}

// offsetForPainter zeroes the painter-local offset when the server's
// own OFFSET command is in use (the offset is then applied once at
// connect time instead of per pixel); see spec.md §4.7.
func offsetForPainter(cfg config.Config, axis uint16) uint16 {
	if cfg.UseOffsetCommand {
		return 0
	}
	return axis
}

// gatherHostFacts negotiates the draw size against the server's
// reported SIZE for the TCP backend, with an explicit -w/-h overriding
// the server's value for that axis; a failure here is
// reported and the program continues with the operator-supplied
// defaults where possible (spec.md §7's "configuration error" kind is
// deliberately not fatal).
func gatherHostFacts(cfg config.Config, logger *zap.Logger) (width, height uint16) {
	if cfg.Backend != transport.KindTextTCP {
		// Pingxel has no SIZE negotiation; width/height must be supplied.
		return cfg.Size(0, 0)
	}

	client, err := transport.ConnectTCP(transport.TCPConfig{Host: cfg.Host, BindAddr: cfg.Address})
	if err != nil {
		logger.Warn("could not gather screen size, using configured/default size", zap.Error(err))
		return cfg.Size(0, 0)
	}
	defer client.Close()

	w, h, err := client.ReadScreenSize()
	if err != nil {
		logger.Warn("could not gather screen size, using configured/default size", zap.Error(err))
		return cfg.Size(0, 0)
	}

	logger.Info("gathered screen size", zap.Uint16("width", w), zap.Uint16("height", h))
	return cfg.Size(w, h)
}

// transportFactory builds the TransportFactory canvas.New calls on every
// (re)connect, closing over the resolved Config.
func transportFactory(cfg config.Config, singleFrameHint bool) canvas.TransportFactory {
	switch cfg.Backend {
	case transport.KindPingxelV6:
		return func() (transport.Client, error) {
			return pingxelFactory(cfg.Host)
		}
	default:
		return func() (transport.Client, error) {
			return transport.ConnectTCP(transport.TCPConfig{
				Host:             cfg.Host,
				BindAddr:         cfg.Address,
				FlushPerPixel:    cfg.Flush,
				Batch:            singleFrameHint,
				UseOffsetCommand: cfg.UseOffsetCommand,
				OffsetX:          cfg.OffsetX,
				OffsetY:          cfg.OffsetY,
			})
		}
	}
}

func pingxelFactory(hostPrefix string) (transport.Client, error) {
	prefix := net.ParseIP(hostPrefix)
	if prefix == nil {
		return nil, fmt.Errorf("hyperflut: %q is not a valid IPv6 prefix address", hostPrefix)
	}
	return transport.NewPingxel(prefix)
}
