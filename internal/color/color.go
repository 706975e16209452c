// Package color defines the 4-channel pixel color used throughout the
// painting pipeline and its allocation-free hex serializer.
package color

import "github.com/kleinesfilmroellchen/hyperflut/internal/lut"

// Color is an RGBA pixel color with 8 bits per channel.
type Color struct {
	R, G, B, A uint8
}

// Opaque is the alpha value meaning "fully opaque": the hex encoding omits
// the alpha channel entirely when a color carries this value.
const Opaque = 0xFF

// New constructs a Color from individual channels.
func New(r, g, b, a uint8) Color {
	return Color{R: r, G: g, B: b, A: a}
}

// HexLen returns the number of ASCII characters WriteHex will write for c:
// 6 if c is fully opaque, 8 otherwise.
func (c Color) HexLen() int {
	if c.A == Opaque {
		return 6
	}
	return 8
}

// WriteHex appends c's uppercase hex encoding to dst and returns the
// extended slice. It never allocates beyond what append needs to grow dst,
// and emits 6 hex digits when c.A == Opaque, 8 otherwise.
func (c Color) WriteHex(dst []byte) []byte {
	dst = append(dst, lut.Hex[c.R]...)
	dst = append(dst, lut.Hex[c.G]...)
	dst = append(dst, lut.Hex[c.B]...)
	if c.A != Opaque {
		dst = append(dst, lut.Hex[c.A]...)
	}
	return dst
}

// Hex returns c's hex encoding as a standalone string. Prefer WriteHex on
// hot paths where the destination buffer is already being built.
func (c Color) Hex() string {
	var buf [8]byte
	return string(c.WriteHex(buf[:0]))
}

// Transparent reports whether c should be skipped entirely by a painter:
// a fully transparent pixel leaves the underlying canvas state untouched.
func (c Color) Transparent() bool {
	return c.A == 0
}
