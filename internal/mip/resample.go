package mip

import (
	"math"
	"sort"

	"pc-texprep/internal/raster"
)

// kernel is a separable reconstruction filter with finite support,
// evaluated in destination-pixel units.
type kernel struct {
	support float64
	at      func(x float64) float64
}

func sinc(x float64) float64 {
	if x == 0 {
		return 1
	}
	x *= math.Pi
	return math.Sin(x) / x
}

// besselI0 is the zeroth-order modified Bessel function of the first kind,
// evaluated by series expansion. Converges quickly for the small arguments
// the Kaiser window uses.
func besselI0(x float64) float64 {
	sum, term := 1.0, 1.0
	half := x / 2
	for k := 1; k < 32; k++ {
		term *= (half / float64(k)) * (half / float64(k))
		sum += term
		if term < 1e-12*sum {
			break
		}
	}
	return sum
}

const kaiserBeta = 4.0

func kernelFor(f Filter) kernel {
	switch f {
	case FilterBox:
		return kernel{support: 0.5, at: func(x float64) float64 {
			if x < 0 {
				x = -x
			}
			if x <= 0.5 {
				return 1
			}
			return 0
		}}
	case FilterBilinear:
		return kernel{support: 1, at: func(x float64) float64 {
			if x < 0 {
				x = -x
			}
			if x < 1 {
				return 1 - x
			}
			return 0
		}}
	case FilterBicubic:
		// Catmull-Rom (a = -0.5).
		return kernel{support: 2, at: func(x float64) float64 {
			if x < 0 {
				x = -x
			}
			switch {
			case x < 1:
				return 1.5*x*x*x - 2.5*x*x + 1
			case x < 2:
				return -0.5*x*x*x + 2.5*x*x - 4*x + 2
			}
			return 0
		}}
	case FilterMitchell:
		// Mitchell-Netravali, B = C = 1/3.
		const b, c = 1.0 / 3.0, 1.0 / 3.0
		return kernel{support: 2, at: func(x float64) float64 {
			if x < 0 {
				x = -x
			}
			x2 := x * x
			switch {
			case x < 1:
				return ((12-9*b-6*c)*x*x2 + (-18+12*b+6*c)*x2 + (6 - 2*b)) / 6
			case x < 2:
				return ((-b-6*c)*x*x2 + (6*b+30*c)*x2 + (-12*b-48*c)*x + (8*b + 24*c)) / 6
			}
			return 0
		}}
	case FilterLanczos3:
		return kernel{support: 3, at: func(x float64) float64 {
			if x < 0 {
				x = -x
			}
			if x >= 3 {
				return 0
			}
			return sinc(x) * sinc(x/3)
		}}
	default: // FilterKaiser
		i0beta := besselI0(kaiserBeta)
		return kernel{support: 3, at: func(x float64) float64 {
			if x < 0 {
				x = -x
			}
			if x >= 3 {
				return 0
			}
			r := x / 3
			return sinc(x) * besselI0(kaiserBeta*math.Sqrt(1-r*r)) / i0beta
		}}
	}
}

// resampleHalf downsamples src to (max(1,w/2), max(1,h/2)) with the given
// separable kernel, clamping at the edges. All four channels are filtered
// independently.
func resampleHalf(src *raster.Buffer, k kernel) *raster.Buffer {
	dstW := halve(src.Width)
	dstH := halve(src.Height)
	tmp := resampleAxis(src, k, dstW, src.Height, true)
	return resampleAxis(tmp, k, dstW, dstH, false)
}

func halve(v int) int {
	if v <= 1 {
		return 1
	}
	return v / 2
}

// resampleAxis filters one axis. horizontal selects which; the two
// dimensions are the output size.
func resampleAxis(src *raster.Buffer, k kernel, dstW, dstH int, horizontal bool) *raster.Buffer {
	dst := raster.New(dstW, dstH)

	srcLen := src.Height
	dstLen := dstH
	if horizontal {
		srcLen = src.Width
		dstLen = dstW
	}
	if srcLen == dstLen {
		copy(dst.Pix, src.Pix)
		return dst
	}

	ratio := float64(srcLen) / float64(dstLen)
	support := k.support * ratio

	// Precompute contributions per output coordinate; both axes reuse them
	// for every row/column.
	type tap struct {
		index  int
		weight float64
	}
	taps := make([][]tap, dstLen)
	for d := 0; d < dstLen; d++ {
		center := (float64(d) + 0.5) * ratio
		lo := int(math.Floor(center - support))
		hi := int(math.Ceil(center + support))
		var sum float64
		row := make([]tap, 0, hi-lo+1)
		for j := lo; j <= hi; j++ {
			w := k.at((float64(j) + 0.5 - center) / ratio)
			if w == 0 {
				continue
			}
			idx := j
			if idx < 0 {
				idx = 0
			} else if idx >= srcLen {
				idx = srcLen - 1
			}
			row = append(row, tap{index: idx, weight: w})
			sum += w
		}
		if sum != 0 {
			inv := 1 / sum
			for i := range row {
				row[i].weight *= inv
			}
		}
		taps[d] = row
	}

	if horizontal {
		for y := 0; y < dstH; y++ {
			srcRow := src.Pix[y*src.Width*4:]
			dstRow := dst.Pix[y*dstW*4:]
			for x := 0; x < dstW; x++ {
				var acc [4]float64
				for _, t := range taps[x] {
					si := t.index * 4
					acc[0] += float64(srcRow[si]) * t.weight
					acc[1] += float64(srcRow[si+1]) * t.weight
					acc[2] += float64(srcRow[si+2]) * t.weight
					acc[3] += float64(srcRow[si+3]) * t.weight
				}
				di := x * 4
				dstRow[di] = float32(acc[0])
				dstRow[di+1] = float32(acc[1])
				dstRow[di+2] = float32(acc[2])
				dstRow[di+3] = float32(acc[3])
			}
		}
	} else {
		for y := 0; y < dstH; y++ {
			for x := 0; x < dstW; x++ {
				var acc [4]float64
				for _, t := range taps[y] {
					si := (t.index*src.Width + x) * 4
					acc[0] += float64(src.Pix[si]) * t.weight
					acc[1] += float64(src.Pix[si+1]) * t.weight
					acc[2] += float64(src.Pix[si+2]) * t.weight
					acc[3] += float64(src.Pix[si+3]) * t.weight
				}
				di := (y*dstW + x) * 4
				dst.Pix[di] = float32(acc[0])
				dst.Pix[di+1] = float32(acc[1])
				dst.Pix[di+2] = float32(acc[2])
				dst.Pix[di+3] = float32(acc[3])
			}
		}
	}
	return dst
}

// reduce2x2 downsamples with a non-linear per-footprint reducer. Odd
// dimensions clamp the footprint at the edge, matching the linear path's
// edge handling.
func reduce2x2(src *raster.Buffer, reduce func(vals []float32) float32) *raster.Buffer {
	dstW := halve(src.Width)
	dstH := halve(src.Height)
	dst := raster.New(dstW, dstH)

	var vals [4]float32
	for y := 0; y < dstH; y++ {
		sy0 := y * 2
		sy1 := minInt(sy0+1, src.Height-1)
		for x := 0; x < dstW; x++ {
			sx0 := x * 2
			sx1 := minInt(sx0+1, src.Width-1)
			di := dst.Offset(x, y)
			for c := 0; c < 4; c++ {
				vals[0] = src.Pix[src.Offset(sx0, sy0)+c]
				vals[1] = src.Pix[src.Offset(sx1, sy0)+c]
				vals[2] = src.Pix[src.Offset(sx0, sy1)+c]
				vals[3] = src.Pix[src.Offset(sx1, sy1)+c]
				dst.Pix[di+c] = reduce(vals[:])
			}
		}
	}
	return dst
}

func reduceMin(vals []float32) float32 {
	m := vals[0]
	for _, v := range vals[1:] {
		if v < m {
			m = v
		}
	}
	return m
}

func reduceMax(vals []float32) float32 {
	m := vals[0]
	for _, v := range vals[1:] {
		if v > m {
			m = v
		}
	}
	return m
}

func reduceMean(vals []float32) float32 {
	var sum float32
	for _, v := range vals {
		sum += v
	}
	return sum / float32(len(vals))
}

// aoReducer returns the footprint reducer for an AO processing mode.
func aoReducer(mode AOMode) func(vals []float32) float32 {
	switch m := mode.(type) {
	case AOBiasedDarkening:
		bias := float32(m.Bias)
		return func(vals []float32) float32 {
			mean := reduceMean(vals)
			return mean + (reduceMin(vals)-mean)*bias
		}
	case AOPercentile:
		pct := m.Percentile
		return func(vals []float32) float32 {
			sorted := append([]float32(nil), vals...)
			sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
			rank := int(pct/100*float64(len(sorted)-1) + 0.5)
			return sorted[rank]
		}
	default:
		return reduceMean
	}
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
