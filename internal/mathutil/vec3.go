package mathutil

import "math"

// Vec3 is a 3-component vector (value type, stack-allocated).
type Vec3 [3]float64

func (a Vec3) Add(b Vec3) Vec3 {
	return Vec3{a[0] + b[0], a[1] + b[1], a[2] + b[2]}
}

func (v Vec3) Scale(s float64) Vec3 {
	return Vec3{v[0] * s, v[1] * s, v[2] * s}
}

func (a Vec3) Dot(b Vec3) float64 {
	return a[0]*b[0] + a[1]*b[1] + a[2]*b[2]
}

func (v Vec3) Len() float64 {
	return math.Sqrt(v[0]*v[0] + v[1]*v[1] + v[2]*v[2])
}

func (v Vec3) Normalize() Vec3 {
	l := v.Len()
	if l < 1e-12 {
		return Vec3{}
	}
	return Vec3{v[0] / l, v[1] / l, v[2] / l}
}

// DecodeNormal maps tangent-space normal map components from [0,1]
// storage range to the [-1,1] vector range.
func DecodeNormal(r, g, b float32) Vec3 {
	return Vec3{
		float64(r)*2 - 1,
		float64(g)*2 - 1,
		float64(b)*2 - 1,
	}
}

// EncodeNormal maps a tangent-space vector back to [0,1] storage range.
func EncodeNormal(v Vec3) (r, g, b float32) {
	return float32(v[0]*0.5 + 0.5),
		float32(v[1]*0.5 + 0.5),
		float32(v[2]*0.5 + 0.5)
}
