package toksvig

import (
	"strings"
	"testing"

	"pc-texprep/internal/mathutil"
	"pc-texprep/internal/mip"
	"pc-texprep/internal/raster"
)

func roughnessChain(t *testing.T, w, h int, value float32) []*raster.Buffer {
	t.Helper()
	src := raster.NewFilled(w, h, value, value, value, 1)
	chain, err := mip.GenerateMipmaps(src, mip.DefaultProfile(mip.Roughness))
	if err != nil {
		t.Fatal(err)
	}
	return chain
}

func flatNormalMap(w, h int) *raster.Buffer {
	buf := raster.New(w, h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			buf.Set(x, y, 0.5, 0.5, 1, 1)
		}
	}
	return buf
}

// bumpyNormalMap alternates between two strongly tilted normals so that
// filtered levels shorten noticeably.
func bumpyNormalMap(w, h int) *raster.Buffer {
	buf := raster.New(w, h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			n := mathutil.Vec3{0.9, 0, 0.435}
			if (x+y)%2 == 1 {
				n = mathutil.Vec3{-0.9, 0, 0.435}
			}
			r, g, b := mathutil.EncodeNormal(n.Normalize())
			buf.Set(x, y, r, g, b, 1)
		}
	}
	return buf
}

func TestCorrectDisabled(t *testing.T) {
	chain := roughnessChain(t, 8, 8, 0.3)
	s := DefaultSettings()
	s.Enabled = false
	out, warnings := Correct(chain, bumpyNormalMap(8, 8), false, s)
	if len(warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", warnings)
	}
	for i := range chain {
		if out[i] != chain[i] {
			t.Fatalf("level %d: disabled correction replaced the buffer", i)
		}
	}
}

func TestCorrectMissingNormalMap(t *testing.T) {
	chain := roughnessChain(t, 8, 8, 0.3)
	out, warnings := Correct(chain, nil, false, DefaultSettings())
	if len(warnings) != 1 || !strings.Contains(warnings[0], "no companion normal map") {
		t.Fatalf("warnings = %v", warnings)
	}
	for i := range chain {
		if out[i] != chain[i] {
			t.Fatalf("level %d: chain modified despite missing normal map", i)
		}
	}
}

func TestCorrectDimensionMismatch(t *testing.T) {
	chain := roughnessChain(t, 8, 8, 0.3)
	out, warnings := Correct(chain, flatNormalMap(16, 16), false, DefaultSettings())
	if len(warnings) != 1 || !strings.Contains(warnings[0], "does not match") {
		t.Fatalf("warnings = %v", warnings)
	}
	if out[1] != chain[1] {
		t.Fatal("chain modified despite dimension mismatch")
	}
}

func TestFlatNormalsBelowThreshold(t *testing.T) {
	// A flat normal map keeps unit length under filtering, so the variance
	// stays below the threshold and no texel is rewritten.
	chain := roughnessChain(t, 8, 8, 0.3)
	out, warnings := Correct(chain, flatNormalMap(8, 8), false, DefaultSettings())
	if len(warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", warnings)
	}
	for lvl := range chain {
		for i := 0; i < len(chain[lvl].Pix); i += 4 {
			if out[lvl].Pix[i] != chain[lvl].Pix[i] {
				t.Fatalf("level %d texel %d changed for a flat normal map", lvl, i/4)
			}
		}
	}
}

func TestBumpyNormalsBroadenRoughness(t *testing.T) {
	chain := roughnessChain(t, 8, 8, 0.3)
	out, warnings := Correct(chain, bumpyNormalMap(8, 8), false, DefaultSettings())
	if len(warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", warnings)
	}

	if out[0] != chain[0] {
		t.Fatal("level 0 must never be corrected")
	}
	for lvl := 1; lvl < len(chain); lvl++ {
		if out[lvl] == chain[lvl] {
			t.Fatalf("level %d: expected a new corrected buffer", lvl)
		}
		before := chain[lvl].Pix[0]
		after := out[lvl].Pix[0]
		if after <= before {
			t.Errorf("level %d: roughness %g not broadened above %g", lvl, after, before)
		}
		// Grayscale invariant: correction writes the same value to RGB.
		if out[lvl].Pix[0] != out[lvl].Pix[1] || out[lvl].Pix[1] != out[lvl].Pix[2] {
			t.Errorf("level %d: corrected texel is not grayscale", lvl)
		}
	}
}

func TestBumpyNormalsSharpenGloss(t *testing.T) {
	src := raster.NewFilled(8, 8, 0.7, 0.7, 0.7, 1)
	chain, err := mip.GenerateMipmaps(src, mip.DefaultProfile(mip.Gloss))
	if err != nil {
		t.Fatal(err)
	}
	out, warnings := Correct(chain, bumpyNormalMap(8, 8), true, DefaultSettings())
	if len(warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", warnings)
	}
	for lvl := 1; lvl < len(chain); lvl++ {
		before := chain[lvl].Pix[0]
		after := out[lvl].Pix[0]
		if after >= before {
			t.Errorf("level %d: gloss %g not reduced below %g", lvl, after, before)
		}
	}
}

func TestSimplifiedMode(t *testing.T) {
	chain := roughnessChain(t, 8, 8, 0.3)
	s := DefaultSettings()
	s.CalculationMode = Simplified
	out, _ := Correct(chain, bumpyNormalMap(8, 8), false, s)
	if out[1].Pix[0] <= chain[1].Pix[0] {
		t.Errorf("simplified mode: roughness %g not broadened above %g", out[1].Pix[0], chain[1].Pix[0])
	}

	s.UseEnergyPreserving = false
	linear, _ := Correct(chain, bumpyNormalMap(8, 8), false, s)
	if linear[1].Pix[0] <= chain[1].Pix[0] {
		t.Errorf("linear accumulation: roughness %g not broadened above %g", linear[1].Pix[0], chain[1].Pix[0])
	}
}

func TestMinToksvigMipLevel(t *testing.T) {
	chain := roughnessChain(t, 16, 16, 0.3)
	s := DefaultSettings()
	s.MinToksvigMipLevel = 2
	out, _ := Correct(chain, bumpyNormalMap(16, 16), false, s)
	if out[1] != chain[1] {
		t.Error("level 1 corrected despite MinToksvigMipLevel 2")
	}
	if out[2] == chain[2] {
		t.Error("level 2 not corrected")
	}
}

func TestCorrectedRoughnessMonotone(t *testing.T) {
	for _, mode := range []CalculationMode{Classic, Simplified} {
		s := DefaultSettings()
		s.CalculationMode = mode
		prev := 0.0
		for sigma2 := 0.0; sigma2 <= 1.0; sigma2 += 0.05 {
			r := correctedRoughness(0.3, sigma2, s)
			if r < prev {
				t.Fatalf("mode %d: correction not monotone in variance at sigma2=%g", mode, sigma2)
			}
			if r < 0.3-1e-9 {
				t.Fatalf("mode %d: corrected roughness %g below input", mode, r)
			}
			prev = r
		}
	}
}
