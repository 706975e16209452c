// Package lut holds compile-time lookup tables for the hot path of the
// pixel encoder: byte-to-hex and integer-to-decimal ASCII, so the text
// protocol never calls into a general-purpose formatter while painting.
package lut

import "strconv"

// MaxCoordinate is the largest canvas coordinate covered by Dec. Pixelflut
// servers negotiate a SIZE well below this in practice; coordinates beyond
// it fall back to strconv.Itoa.
const MaxCoordinate = 5000

// hexDigits are the uppercase hex digits used to build Hex.
const hexDigits = "0123456789ABCDEF"

// Hex maps a byte to its two-character uppercase hex ASCII encoding.
// Hex[b] always has length 2.
var Hex [256]string

// Dec maps an integer in [0, MaxCoordinate] to its decimal ASCII encoding,
// zero-based, no padding. Dec[0] == "0", Dec[MaxCoordinate] == "5000".
var Dec [MaxCoordinate + 1]string

func init() {
	for b := 0; b < 256; b++ {
		Hex[b] = string([]byte{hexDigits[b>>4], hexDigits[b&0xf]})
	}
	for n := 0; n <= MaxCoordinate; n++ {
		Dec[n] = strconv.Itoa(n)
	}
}

// DecString returns the decimal ASCII encoding of n, using Dec directly
// when n is in range and falling back to strconv.Itoa above the ceiling.
func DecString(n int) string {
	if n >= 0 && n <= MaxCoordinate {
		return Dec[n]
	}
	return strconv.Itoa(n)
}
