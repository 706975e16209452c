// Package transport implements the pluggable pixel-sending backends: a
// TCP text protocol and an ICMPv6 "pingxel" protocol. Both satisfy the
// same small capability interface so painter.Painter can drive either one
// without knowing which it holds.
package transport

import "github.com/kleinesfilmroellchen/hyperflut/internal/color"

// Client is the capability a painter needs from its transport: send one
// pixel, optionally flush buffered pixels, and clear per-frame buffering
// state when a new frame is adopted. FlushPixels and ClearBuffers are
// no-ops for stateless transports (ICMPv6 pingxel).
type Client interface {
	// SendPixel writes a single pixel at (x, y) with the given color.
	// Implementations must not be called with a fully transparent color;
	// painters skip those before calling SendPixel.
	SendPixel(x, y uint16, c color.Color) error
	// FlushPixels flushes any buffered pixel writes. Called once per
	// painter pass, after the slice has been walked, and in slow-paint
	// mode also after every pixel.
	FlushPixels() error
	// ClearBuffers discards any per-frame buffering state (notably the
	// TCP batch buffer) in anticipation of a new frame.
	ClearBuffers()
}

// Kind names a transport implementation, matching the CLI "backend"
// option in SPEC_FULL.md §6.
type Kind int

const (
	// KindTextTCP is the classic line-oriented TCP text protocol.
	KindTextTCP Kind = iota
	// KindPingxelV6 is the ICMPv6 echo-request encoding.
	KindPingxelV6
)

func (k Kind) String() string {
	switch k {
	case KindTextTCP:
		return "text-tcp"
	case KindPingxelV6:
		return "ping-v6"
	default:
		return "unknown"
	}
}
