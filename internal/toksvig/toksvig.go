// Package toksvig corrects mip-map specular aliasing. Filtering a normal
// map loses high-frequency detail, shortening the averaged normals; the
// shortening is itself the detail-loss signal, and this package converts it
// into a per-texel roughness broadening (or gloss sharpening) of the
// companion roughness/gloss chain.
package toksvig

import (
	"fmt"
	"math"

	"pc-texprep/internal/mathutil"
	"pc-texprep/internal/mip"
	"pc-texprep/internal/raster"
)

// CalculationMode selects the variance-to-roughness formula.
type CalculationMode int

const (
	// Classic derives the correction from the specular-power NDF.
	Classic CalculationMode = iota
	// Simplified accumulates the variance directly onto the roughness.
	Simplified
)

// Settings drives one correction pass.
type Settings struct {
	Enabled             bool
	CalculationMode     CalculationMode
	CompositePower      float64 // scales the variance before it is applied
	MinToksvigMipLevel  int     // levels below this are left untouched
	SmoothVariance      bool    // 3x3 box smoothing of the variance plane
	UseEnergyPreserving bool    // accumulate in the squared-roughness domain
	NormalMapPath       string  // companion normal map; empty means "discover"
	VarianceThreshold   float64 // texels below this variance are skipped
}

// DefaultSettings returns the corrector defaults.
func DefaultSettings() Settings {
	return Settings{
		Enabled:             true,
		CalculationMode:     Classic,
		CompositePower:      1,
		MinToksvigMipLevel:  1,
		SmoothVariance:      true,
		UseEnergyPreserving: true,
		VarianceThreshold:   1e-4,
	}
}

// Correct applies the Toksvig correction to a roughness or gloss mip chain
// using the companion normal map. Missing or mismatched normal maps are
// non-fatal: the chain is returned unmodified with a warning. Corrected
// levels are new buffers; untouched levels are shared with the input.
func Correct(chain []*raster.Buffer, normalMap *raster.Buffer, isGloss bool, s Settings) ([]*raster.Buffer, []string) {
	if !s.Enabled || len(chain) == 0 {
		return chain, nil
	}
	if normalMap == nil {
		return chain, []string{"toksvig: no companion normal map, correction skipped"}
	}
	if normalMap.Width != chain[0].Width || normalMap.Height != chain[0].Height {
		return chain, []string{fmt.Sprintf(
			"toksvig: normal map %dx%d does not match chain %dx%d, correction skipped",
			normalMap.Width, normalMap.Height, chain[0].Width, chain[0].Height)}
	}

	// Filter the normal map without renormalization: the residual length of
	// each averaged normal carries the variance we need.
	prof := mip.DefaultProfile(mip.Normal)
	prof.NormalizeNormals = false
	normals, err := mip.GenerateMipmaps(normalMap, prof)
	if err != nil {
		return chain, []string{fmt.Sprintf("toksvig: normal chain: %v", err)}
	}

	first := s.MinToksvigMipLevel
	if first < 1 {
		first = 1
	}

	out := make([]*raster.Buffer, len(chain))
	copy(out, chain)
	for lvl := first; lvl < len(chain) && lvl < len(normals); lvl++ {
		v := variancePlane(normals[lvl], s.CompositePower)
		if s.SmoothVariance {
			v = boxSmooth(v, normals[lvl].Width, normals[lvl].Height)
		}
		out[lvl] = applyCorrection(chain[lvl], v, isGloss, s)
	}
	return out, nil
}

// variancePlane derives the Toksvig variance sigma^2 = (1-|n|)/|n| for each
// texel of an un-renormalized filtered normal level.
func variancePlane(normals *raster.Buffer, power float64) []float64 {
	plane := make([]float64, normals.Width*normals.Height)
	for i := range plane {
		pi := i * 4
		n := mathutil.DecodeNormal(normals.Pix[pi], normals.Pix[pi+1], normals.Pix[pi+2])
		l := n.Len()
		if l < 1e-4 {
			l = 1e-4
		} else if l > 1 {
			l = 1
		}
		plane[i] = (1 - l) / l * power
	}
	return plane
}

// boxSmooth applies a 3x3 box filter to the variance plane, trading a
// little spatial precision for freedom from per-texel correction noise.
func boxSmooth(plane []float64, w, h int) []float64 {
	out := make([]float64, len(plane))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			var sum float64
			var n int
			for dy := -1; dy <= 1; dy++ {
				yy := y + dy
				if yy < 0 || yy >= h {
					continue
				}
				for dx := -1; dx <= 1; dx++ {
					xx := x + dx
					if xx < 0 || xx >= w {
						continue
					}
					sum += plane[yy*w+xx]
					n++
				}
			}
			out[y*w+x] = sum / float64(n)
		}
	}
	return out
}

func applyCorrection(level *raster.Buffer, variance []float64, isGloss bool, s Settings) *raster.Buffer {
	out := level.Clone()
	for i := 0; i < len(out.Pix); i += 4 {
		sigma2 := variance[i/4]
		if sigma2 < s.VarianceThreshold {
			continue
		}
		v := float64(out.Pix[i])
		r := v
		if isGloss {
			r = 1 - v
		}
		r = correctedRoughness(r, sigma2, s)
		if isGloss {
			v = 1 - r
		} else {
			v = r
		}
		f := float32(clamp01(v))
		out.Pix[i] = f
		out.Pix[i+1] = f
		out.Pix[i+2] = f
	}
	return out
}

// correctedRoughness broadens r by the normal variance sigma2.
func correctedRoughness(r, sigma2 float64, s Settings) float64 {
	if s.CalculationMode == Simplified {
		if s.UseEnergyPreserving {
			return math.Sqrt(r*r + sigma2)
		}
		return r + sigma2
	}

	// Classic: convert to Blinn-Phong specular power, attenuate it by the
	// Toksvig factor 1/(1 + power*sigma^2), and convert back.
	if r < 0.01 {
		r = 0.01
	}
	power := 2/(r*r) - 2
	if power <= 0 {
		return r
	}
	power /= 1 + power*sigma2
	return math.Sqrt(2 / (power + 2))
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
