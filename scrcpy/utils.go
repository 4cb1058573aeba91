package scrcpy

import "math"

// Utf8TruncationIndex returns the largest length <= max that does not cut a
// UTF-8 sequence in b.
func Utf8TruncationIndex(b []byte, max int) int {
	l := len(b)
	if l <= max {
		return l
	}
	l = max
	// back up while b[l] is a continuation byte (10xxxxxx)
	for l > 0 && b[l]&0xC0 == 0x80 {
		l--
	}
	return l
}

// ToFixedPoint16 maps a pressure in [0, 1] to a u16; 1.0 saturates to 0xFFFF.
func ToFixedPoint16(f float32) uint16 {
	if math.IsNaN(float64(f)) || f <= 0 {
		return 0
	}
	v := math.Round(float64(f) * 65536)
	if v >= 0xFFFF {
		return 0xFFFF
	}
	return uint16(v)
}

// FromFixedPoint16 is the inverse of ToFixedPoint16, up to 1/65536.
func FromFixedPoint16(v uint16) float32 {
	if v == 0xFFFF {
		return 1
	}
	return float32(v) / 65536
}
