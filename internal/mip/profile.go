// Package mip builds filtered mipmap chains with perceptually-correct
// semantics per texture type: gamma-aware resampling for color data,
// energy-preserving resampling for roughness and gloss, and renormalization
// for normal maps.
package mip

import "fmt"

// TextureType identifies the semantic content of a texture, which selects
// the default filtering behavior.
type TextureType int

const (
	Generic TextureType = iota
	Albedo
	Normal
	Roughness
	Metallic
	AO
	Emissive
	Gloss
)

func (t TextureType) String() string {
	switch t {
	case Albedo:
		return "albedo"
	case Normal:
		return "normal"
	case Roughness:
		return "roughness"
	case Metallic:
		return "metallic"
	case AO:
		return "ao"
	case Emissive:
		return "emissive"
	case Gloss:
		return "gloss"
	default:
		return "generic"
	}
}

// Filter selects the downsampling kernel.
type Filter int

const (
	FilterKaiser Filter = iota
	FilterBox
	FilterBilinear
	FilterBicubic
	FilterLanczos3
	FilterMitchell
	// FilterMin and FilterMax are the non-linear 2x2 reducers used for
	// coverage and mask textures.
	FilterMin
	FilterMax
)

func (f Filter) String() string {
	switch f {
	case FilterBox:
		return "box"
	case FilterBilinear:
		return "bilinear"
	case FilterBicubic:
		return "bicubic"
	case FilterLanczos3:
		return "lanczos3"
	case FilterMitchell:
		return "mitchell"
	case FilterMin:
		return "min"
	case FilterMax:
		return "max"
	default:
		return "kaiser"
	}
}

// Profile describes one mip chain generation. It is immutable for the
// duration of a GenerateMipmaps call; use Clone when deriving variants.
type Profile struct {
	TextureType          TextureType
	Filter               Filter
	ApplyGammaCorrection bool
	Gamma                float64
	BlurRadius           float64 // Gaussian pre-blur of level 0, in pixels
	IncludeLastLevel     bool
	MinMipSize           int
	NormalizeNormals     bool
	UseEnergyPreserving  bool
	IsGloss              bool
}

// Clone returns a copy of the profile.
func (p Profile) Clone() Profile {
	return p
}

// Validate reports profile field combinations the generator cannot honor.
func (p Profile) Validate() error {
	if p.MinMipSize < 1 {
		return fmt.Errorf("mip: MinMipSize must be >= 1, got %d", p.MinMipSize)
	}
	if p.ApplyGammaCorrection && p.Gamma <= 0 {
		return fmt.Errorf("mip: gamma must be > 0, got %g", p.Gamma)
	}
	return nil
}

// DefaultProfile returns the per-texture-type filtering defaults. Color
// textures filter gamma-aware with a Kaiser kernel; data textures filter
// in their storage domain.
func DefaultProfile(t TextureType) Profile {
	p := Profile{
		TextureType:      t,
		Filter:           FilterKaiser,
		IncludeLastLevel: true,
		MinMipSize:       1,
		Gamma:            2.2,
	}
	switch t {
	case Albedo, Emissive:
		p.ApplyGammaCorrection = true
	case Normal:
		p.NormalizeNormals = true
	case Roughness:
		p.UseEnergyPreserving = true
	case Gloss:
		p.UseEnergyPreserving = true
		p.IsGloss = true
	case Metallic:
		p.Filter = FilterBox
	}
	return p
}

// AOMode selects how ambient occlusion footprints are reduced when
// downsampling, so that mips do not wash out occlusion.
type AOMode interface {
	isAOMode()
	String() string
}

// AOMean is the plain averaging reducer.
type AOMean struct{}

// AOBiasedDarkening biases the footprint average toward the darkest
// (most occluding) sample by Bias in [0,1].
type AOBiasedDarkening struct {
	Bias float64
}

// AOPercentile takes a low percentile of the footprint instead of the mean.
type AOPercentile struct {
	Percentile float64 // 0..100
}

func (AOMean) isAOMode()            {}
func (AOBiasedDarkening) isAOMode() {}
func (AOPercentile) isAOMode()      {}

func (AOMean) String() string { return "mean" }

func (m AOBiasedDarkening) String() string {
	return fmt.Sprintf("biased-darkening(%.2f)", m.Bias)
}

func (m AOPercentile) String() string {
	return fmt.Sprintf("percentile(%.1f)", m.Percentile)
}
