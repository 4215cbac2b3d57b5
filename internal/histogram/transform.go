package histogram

import "pc-texprep/internal/raster"

// ApplyWinsorization maps each color channel through the analysis
// transform v*scale+offset and hard-clamps the result to [0,1]. Returns a
// new buffer; the source is never mutated and alpha passes through
// untouched.
func ApplyWinsorization(img *raster.Buffer, res Result) *raster.Buffer {
	return transform(img, res, func(v float32, scale, offset float32) float32 {
		return raster.Clamp01(v*scale + offset)
	})
}

// ApplySoftKnee maps each color channel through the analysis transform but
// blends smoothly into the clamp region over the knee width instead of
// hard-clipping, avoiding banding at the range edges. The blend uses the
// cubic smoothstep S(t) = 3t^2 - 2t^3.
func ApplySoftKnee(img *raster.Buffer, res Result, kneeWidth float32) *raster.Buffer {
	if kneeWidth <= 0 {
		return ApplyWinsorization(img, res)
	}
	return transform(img, res, func(v float32, scale, offset float32) float32 {
		return softClamp(v*scale+offset, kneeWidth)
	})
}

func transform(img *raster.Buffer, res Result, f func(v, scale, offset float32) float32) *raster.Buffer {
	out := img.Clone()
	if !res.Success || len(res.Scale) == 0 {
		return out
	}
	scaleFor := func(c int) (float32, float32) {
		if c < len(res.Scale) {
			return res.Scale[c], res.Offset[c]
		}
		return res.Scale[0], res.Offset[0]
	}
	for i := 0; i < len(out.Pix); i += 4 {
		for c := 0; c < 3; c++ {
			s, o := scaleFor(c)
			out.Pix[i+c] = f(img.Pix[i+c], s, o)
		}
		// Alpha is never remapped, even when the analyzer produced a
		// fourth pair; that pair exists for the runtime's benefit only.
	}
	return out
}

// softClamp clamps y to [0,1] with a roll-off of half-width k around each
// edge. Inside [k, 1-k] it is the identity; across the knee the slope is
// attenuated by the cubic smoothstep S(t)=3t^2-2t^3 (slope 1-S(t)), so the
// curve joins the linear segment with matching slope and lands exactly on
// the clamp value with zero slope. Outside [-k, 1+k] it is a hard clamp.
func softClamp(y, k float32) float32 {
	if y < k {
		if y <= -k {
			return 0
		}
		t := (k - y) / (2 * k)
		return k - 2*k*softEdge(t)
	}
	if y > 1-k {
		if y >= 1+k {
			return 1
		}
		t := (y - (1 - k)) / (2 * k)
		return (1 - k) + 2*k*softEdge(t)
	}
	return y
}

// softEdge is the integral of 1-S(t): t - t^3 + t^4/2. It runs from 0 to
// 1/2 as t runs from 0 to 1.
func softEdge(t float32) float32 {
	t2 := t * t
	return t - t2*t + t2*t2/2
}
