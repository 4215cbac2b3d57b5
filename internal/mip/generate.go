package mip

import (
	"math"

	"github.com/anthonynsimon/bild/blur"

	"pc-texprep/internal/mathutil"
	"pc-texprep/internal/raster"
)

// CalculateMipLevels returns the number of mip levels for a w x h source,
// stopping once a further halving would bring the smaller dimension below
// minSize. A 1x1 source has exactly one level.
func CalculateMipLevels(w, h, minSize int) int {
	if minSize < 1 {
		minSize = 1
	}
	n := 1
	for w > 1 || h > 1 {
		w = halve(w)
		h = halve(h)
		if minInt(w, h) < minSize {
			break
		}
		n++
	}
	return n
}

// GenerateMipmaps builds the filtered mip chain for src under the given
// profile. Level 0 has the source dimensions; each following level halves
// both (minimum 1). The source is cloned internally and never mutated; the
// returned buffers are independently owned by the caller.
func GenerateMipmaps(src *raster.Buffer, p Profile) ([]*raster.Buffer, error) {
	return generate(src, p, nil)
}

// GenerateAOMipmaps builds an ambient-occlusion chain whose downsampling
// uses the given footprint reducer instead of the profile's linear kernel,
// keeping occlusion from washing out at lower mips.
func GenerateAOMipmaps(src *raster.Buffer, p Profile, mode AOMode) ([]*raster.Buffer, error) {
	if mode == nil {
		mode = AOMean{}
	}
	return generate(src, p, aoReducer(mode))
}

func generate(src *raster.Buffer, p Profile, reducer func([]float32) float32) ([]*raster.Buffer, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	level0 := src.Clone()
	if p.BlurRadius > 0 {
		level0 = preBlur(level0, p.BlurRadius)
	}

	count := CalculateMipLevels(src.Width, src.Height, p.MinMipSize)
	if !p.IncludeLastLevel && count > 1 {
		count--
	}

	chain := make([]*raster.Buffer, 0, count)
	chain = append(chain, level0)

	switch p.Filter {
	case FilterMin:
		reducer = reduceMin
	case FilterMax:
		reducer = reduceMax
	}
	k := kernelFor(p.Filter)

	cur := level0
	for i := 1; i < count; i++ {
		var next *raster.Buffer
		if reducer != nil {
			next = reduce2x2(cur, reducer)
		} else {
			work := cur.Clone()
			toFilterDomain(work, p)
			next = resampleHalf(work, k)
			fromFilterDomain(next, p)
		}
		if p.NormalizeNormals {
			renormalize(next)
		}
		chain = append(chain, next)
		cur = next
	}
	return chain, nil
}

// preBlur applies a Gaussian blur to level 0 before chain generation.
func preBlur(buf *raster.Buffer, radius float64) *raster.Buffer {
	blurred := blur.Gaussian(buf.ToNRGBA(), radius)
	return raster.FromRGBA(blurred)
}

// toFilterDomain transforms color channels into the domain the filter
// convolution should average in: linear light for gamma-corrected color
// textures, specular energy for roughness and gloss. Alpha stays in the
// storage domain.
func toFilterDomain(buf *raster.Buffer, p Profile) {
	switch {
	case p.ApplyGammaCorrection:
		mapRGB(buf, func(v float64) float64 { return math.Pow(v, p.Gamma) })
	case p.UseEnergyPreserving && p.IsGloss:
		// Gloss is inverted roughness; conserve the implied energy.
		mapRGB(buf, func(v float64) float64 { r := 1 - v; return r * r })
	case p.UseEnergyPreserving:
		mapRGB(buf, func(v float64) float64 { return v * v })
	}
}

// fromFilterDomain is the inverse of toFilterDomain.
func fromFilterDomain(buf *raster.Buffer, p Profile) {
	switch {
	case p.ApplyGammaCorrection:
		inv := 1 / p.Gamma
		mapRGB(buf, func(v float64) float64 { return math.Pow(v, inv) })
	case p.UseEnergyPreserving && p.IsGloss:
		mapRGB(buf, func(v float64) float64 { return 1 - math.Sqrt(v) })
	case p.UseEnergyPreserving:
		mapRGB(buf, math.Sqrt)
	}
}

func mapRGB(buf *raster.Buffer, f func(float64) float64) {
	for i := 0; i < len(buf.Pix); i += 4 {
		for c := 0; c < 3; c++ {
			v := float64(buf.Pix[i+c])
			if v < 0 {
				v = 0
			}
			buf.Pix[i+c] = float32(f(v))
		}
	}
}

// renormalize rescales every decoded normal back to unit length, so
// filtered normals do not shorten and darken lighting at lower mips.
func renormalize(buf *raster.Buffer) {
	for i := 0; i < len(buf.Pix); i += 4 {
		n := mathutil.DecodeNormal(buf.Pix[i], buf.Pix[i+1], buf.Pix[i+2])
		if n.Len() < 1e-6 {
			buf.Pix[i], buf.Pix[i+1], buf.Pix[i+2] = 0.5, 0.5, 1
			continue
		}
		buf.Pix[i], buf.Pix[i+1], buf.Pix[i+2] = mathutil.EncodeNormal(n.Normalize())
	}
}
