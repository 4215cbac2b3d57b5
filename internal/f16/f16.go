// Package f16 implements IEEE 754 half-precision conversion in pure Go.
// The metadata writer stores analysis results as 16-bit halves; a runtime
// loader converts them back at parse time.
package f16

import "math"

// FromFloat32 converts a float32 to its half-precision bit pattern using
// round-to-nearest-even. Values above the half range become +/-Inf,
// subnormal halves are produced for tiny magnitudes, and NaN is preserved
// with a set mantissa bit.
func FromFloat32(f float32) uint16 {
	bits := math.Float32bits(f)
	sign := uint16((bits >> 16) & 0x8000)
	exp := int32((bits >> 23) & 0xFF)
	mant := bits & 0x7FFFFF

	switch {
	case exp == 0xFF:
		// Inf or NaN.
		if mant != 0 {
			return sign | 0x7E00
		}
		return sign | 0x7C00
	case exp == 0 && mant == 0:
		return sign
	}

	// Rebase exponent from float32 bias (127) to half bias (15).
	e := exp - 127 + 15
	if e >= 0x1F {
		// Overflow to infinity.
		return sign | 0x7C00
	}
	if e <= 0 {
		// Subnormal half, or underflow to zero.
		if e < -10 {
			return sign
		}
		// Add the implicit leading bit, then shift into subnormal position.
		m := mant | 0x800000
		shift := uint32(14 - e)
		half := uint16(m >> shift)
		// Round to nearest even.
		round := uint32(1) << (shift - 1)
		if m&round != 0 && (m&(round-1) != 0 || half&1 != 0) {
			half++
		}
		return sign | half
	}

	half := sign | uint16(e)<<10 | uint16(mant>>13)
	// Round to nearest even on the 13 truncated mantissa bits.
	if mant&0x1000 != 0 && (mant&0xFFF != 0 || half&1 != 0) {
		half++ // may carry into the exponent, which is still correct
	}
	return half
}

// ToFloat32 converts a half-precision bit pattern to float32.
func ToFloat32(h uint16) float32 {
	sign := uint32(h&0x8000) << 16
	exp := uint32(h>>10) & 0x1F
	mant := uint32(h & 0x3FF)

	switch exp {
	case 0:
		if mant == 0 {
			return math.Float32frombits(sign)
		}
		// Subnormal: normalize the mantissa.
		e := uint32(127 - 15 + 1)
		for mant&0x400 == 0 {
			mant <<= 1
			e--
		}
		mant &= 0x3FF
		return math.Float32frombits(sign | e<<23 | mant<<13)
	case 0x1F:
		return math.Float32frombits(sign | 0x7F800000 | mant<<13)
	}

	return math.Float32frombits(sign | (exp+127-15)<<23 | mant<<13)
}

// AppendLE appends half bit patterns to b in little-endian byte order.
func AppendLE(b []byte, vals ...uint16) []byte {
	for _, v := range vals {
		b = append(b, byte(v), byte(v>>8))
	}
	return b
}

// AppendFloatsLE converts floats to half precision and appends them
// little-endian.
func AppendFloatsLE(b []byte, vals ...float32) []byte {
	for _, v := range vals {
		h := FromFloat32(v)
		b = append(b, byte(h), byte(h>>8))
	}
	return b
}

// ReadLE decodes a little-endian half bit pattern from the first two bytes.
func ReadLE(b []byte) uint16 {
	return uint16(b[0]) | uint16(b[1])<<8
}
