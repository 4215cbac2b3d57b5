package histogram

import (
	"math"
	"strings"
	"testing"

	"pc-texprep/internal/raster"
)

func uniformImage(w, h int, v float32) *raster.Buffer {
	return raster.NewFilled(w, h, v, v, v, 1)
}

// gradientImage ramps R, G and B from lo to hi across the width.
func gradientImage(w, h int, lo, hi float32) *raster.Buffer {
	buf := raster.New(w, h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := lo + (hi-lo)*float32(x)/float32(w-1)
			buf.Set(x, y, v, v, v, 1)
		}
	}
	return buf
}

func TestModeOffIsIdentity(t *testing.T) {
	s := DefaultSettings()
	s.Mode = ModeOff
	res := Analyze(uniformImage(8, 8, 0.3), s)
	if !res.Success {
		t.Fatalf("unexpected failure: %s", res.Error)
	}
	if len(res.Scale) != 1 || res.Scale[0] != 1 || res.Offset[0] != 0 {
		t.Errorf("got scale=%v offset=%v, want identity", res.Scale, res.Offset)
	}
	if res.RangeLow != 0 || res.RangeHigh != 1 {
		t.Errorf("got range [%g,%g], want [0,1]", res.RangeLow, res.RangeHigh)
	}
}

func TestUniformImageFallsBackToIdentity(t *testing.T) {
	s := DefaultSettings()
	s.PercentileLow = 0
	s.PercentileHigh = 100
	res := Analyze(uniformImage(16, 16, 0.5), s)
	if !res.Success {
		t.Fatalf("unexpected failure: %s", res.Error)
	}
	if float64(res.RangeHigh-res.RangeLow) >= s.MinRangeThreshold {
		t.Errorf("range %g should be below threshold %g", res.RangeHigh-res.RangeLow, s.MinRangeThreshold)
	}
	if res.Scale[0] != 1 || res.Offset[0] != 0 {
		t.Errorf("got scale=%v offset=%v, want identity fallback", res.Scale, res.Offset)
	}
	found := false
	for _, w := range res.Warnings {
		if strings.Contains(w, "range too small") {
			found = true
		}
	}
	if !found {
		t.Errorf("missing 'range too small' warning, got %v", res.Warnings)
	}
}

func TestGradientScaleOffset(t *testing.T) {
	s := DefaultSettings()
	s.PercentileLow = 0
	s.PercentileHigh = 100
	res := Analyze(gradientImage(256, 4, 0.25, 0.75), s)
	if !res.Success {
		t.Fatalf("unexpected failure: %s", res.Error)
	}
	scale := float64(res.Scale[0])
	if scale < 1.9 || scale > 2.1 {
		t.Errorf("scale %g, want ~2 for a [0.25,0.75] range", scale)
	}
	wantOffset := -float64(res.RangeLow) * scale
	if math.Abs(float64(res.Offset[0])-wantOffset) > 0.02 {
		t.Errorf("offset %g, want ~%g", res.Offset[0], wantOffset)
	}
	// The transform stretches the low end to ~0 and the high end to ~1.
	lo := 0.25*scale + float64(res.Offset[0])
	hi := 0.75*scale + float64(res.Offset[0])
	if math.Abs(lo) > 0.02 || math.Abs(hi-1) > 0.02 {
		t.Errorf("transformed range [%g,%g], want ~[0,1]", lo, hi)
	}
}

func TestChannelModes(t *testing.T) {
	tests := []struct {
		mode ChannelMode
		want int
	}{
		{AverageLuminance, 1},
		{PerChannel, 3},
		{RGBOnly, 3},
		{PerChannelRGBA, 4},
	}
	for _, tt := range tests {
		s := DefaultSettings()
		s.ChannelMode = tt.mode
		res := Analyze(gradientImage(64, 4, 0, 1), s)
		if !res.Success {
			t.Fatalf("mode %d: %s", tt.mode, res.Error)
		}
		if len(res.Scale) != tt.want || len(res.Offset) != tt.want {
			t.Errorf("mode %d: got %d/%d pairs, want %d", tt.mode, len(res.Scale), len(res.Offset), tt.want)
		}
	}
}

func TestInvalidPercentiles(t *testing.T) {
	s := DefaultSettings()
	s.PercentileLow = 90
	s.PercentileHigh = 10
	res := Analyze(uniformImage(4, 4, 0.5), s)
	if res.Success {
		t.Error("expected failure for low >= high")
	}
}

func TestWinsorizationDoesNotMutateSource(t *testing.T) {
	src := gradientImage(32, 4, 0, 1)
	orig := src.Clone()

	res := Identity(AverageLuminance)
	res.Scale[0] = 2
	res.Offset[0] = -0.5

	out := ApplyWinsorization(src, res)
	for i := range src.Pix {
		if src.Pix[i] != orig.Pix[i] {
			t.Fatal("source image was mutated")
		}
	}
	// Alpha passes through untouched.
	for i := 3; i < len(out.Pix); i += 4 {
		if out.Pix[i] != src.Pix[i] {
			t.Fatal("alpha channel was modified")
		}
	}
	// Values map through v*2-0.5 with clamping.
	if got := out.Pix[out.Offset(0, 0)]; got != 0 {
		t.Errorf("low end: got %g, want 0", got)
	}
	if got := out.Pix[out.Offset(31, 0)]; got != 1 {
		t.Errorf("high end: got %g, want 1", got)
	}
}

func TestSoftKneeContinuity(t *testing.T) {
	const k = 0.1
	// Identity transform isolates the knee behavior.
	res := Identity(AverageLuminance)

	probe := func(v float32) float32 {
		img := uniformImage(1, 1, v)
		out := ApplySoftKnee(img, res, k)
		return out.Pix[0]
	}

	// Inside the linear region the knee is the identity.
	if got := probe(0.5); math.Abs(float64(got-0.5)) > 1e-6 {
		t.Errorf("probe(0.5) = %g, want 0.5", got)
	}
	// At the knee edge the curve joins the linear segment.
	if got := probe(1 - k); math.Abs(float64(got)-(1-k)) > 1e-5 {
		t.Errorf("probe(1-k) = %g, want %g", got, 1-k)
	}
	// Monotonically approaches 1 without overshooting.
	prev := probe(1 - k)
	for v := float32(1 - k); v <= 1.3; v += 0.01 {
		got := probe(v)
		if got > 1.000001 {
			t.Fatalf("probe(%g) = %g overshoots 1", v, got)
		}
		if got+1e-6 < prev {
			t.Fatalf("probe(%g) = %g not monotonic (prev %g)", v, got, prev)
		}
		prev = got
	}
}
