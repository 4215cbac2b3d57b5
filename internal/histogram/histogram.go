// Package histogram computes a reversible linear normalization for an
// image's pixel value distribution. The resulting (scale, offset) pair is
// applied before mip generation and embedded into the encoded container so
// a runtime can invert the transform at sample time.
package histogram

import (
	"fmt"
	"runtime"
	"sync"

	"pc-texprep/internal/raster"
)

// Mode selects how the analyzer derives the normalization range.
type Mode int

const (
	// ModeOff disables analysis; the identity transform is returned.
	ModeOff Mode = iota
	// ModePercentile clamps to the configured percentile range.
	ModePercentile
	// ModePercentileWithKnee expands the percentile range outward by the
	// knee width so the soft-knee transform has room to roll off.
	ModePercentileWithKnee
)

// ChannelMode selects which channels are analyzed and how many
// (scale, offset) pairs the result carries.
type ChannelMode int

const (
	// AverageLuminance bins (R+G+B)/3 into a single histogram.
	AverageLuminance ChannelMode = iota
	// PerChannel analyzes R, G and B independently.
	PerChannel
	// PerChannelRGBA analyzes all four channels independently.
	PerChannelRGBA
	// RGBOnly analyzes R, G and B independently and ignores alpha
	// entirely, even for tail statistics.
	RGBOnly
)

// Channels returns the number of (scale, offset) pairs the mode produces.
func (m ChannelMode) Channels() int {
	switch m {
	case PerChannel, RGBOnly:
		return 3
	case PerChannelRGBA:
		return 4
	default:
		return 1
	}
}

// Quality trades analysis precision for speed by subsampling columns.
type Quality int

const (
	QualityFull Quality = iota // every pixel
	QualityFast                // every 4th column
)

func (q Quality) stride() int {
	if q == QualityFast {
		return 4
	}
	return 1
}

// Settings drives a single analysis pass.
type Settings struct {
	Mode              Mode
	ChannelMode       ChannelMode
	PercentileLow     float64 // 0..100, must be < PercentileHigh
	PercentileHigh    float64 // 0..100
	KneeWidth         float64 // fraction of the range, ModePercentileWithKnee only
	MinRangeThreshold float64 // ranges narrower than this fall back to identity
	TailThreshold     float64 // warn when the clipped tail fraction exceeds this
	Quality           Quality
}

// DefaultSettings returns the analyzer defaults used by the pipeline.
func DefaultSettings() Settings {
	return Settings{
		Mode:              ModePercentile,
		ChannelMode:       AverageLuminance,
		PercentileLow:     0.5,
		PercentileHigh:    99.5,
		KneeWidth:         0.1,
		MinRangeThreshold: 0.05,
		TailThreshold:     0.1,
		Quality:           QualityFull,
	}
}

// Result is the outcome of one analysis pass. Scale and Offset have one
// entry per analyzed channel; a runtime inverts the transform with
// original = (normalized - offset) / scale per channel.
type Result struct {
	Success      bool
	Error        string
	Mode         Mode
	ChannelMode  ChannelMode
	Scale        []float32
	Offset       []float32
	RangeLow     float32 // union across channels
	RangeHigh    float32
	TailFraction float64
	TotalPixels  int
	Warnings     []string
}

// Identity returns a result carrying the identity transform for the
// given channel mode.
func Identity(cm ChannelMode) Result {
	n := cm.Channels()
	r := Result{
		Success:     true,
		ChannelMode: cm,
		Scale:       make([]float32, n),
		Offset:      make([]float32, n),
		RangeLow:    0,
		RangeHigh:   1,
	}
	for i := range r.Scale {
		r.Scale[i] = 1
	}
	return r
}

const bins = 256

// Analyze builds per-channel histograms of img and derives a linear
// (scale, offset) normalization per the configured percentile range.
// Degenerate ranges fall back to identity with a warning rather than
// failing; unexpected panics surface as Success=false.
func Analyze(img *raster.Buffer, s Settings) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			res = Result{
				Success:     false,
				Error:       fmt.Sprintf("histogram: analyze: %v", r),
				Mode:        s.Mode,
				ChannelMode: s.ChannelMode,
			}
		}
	}()

	if s.Mode == ModeOff {
		r := Identity(s.ChannelMode)
		r.Mode = ModeOff
		return r
	}
	if img == nil || img.Width <= 0 || img.Height <= 0 {
		return Result{Success: false, Error: "histogram: empty image", Mode: s.Mode, ChannelMode: s.ChannelMode}
	}
	if s.PercentileLow >= s.PercentileHigh {
		return Result{
			Success: false,
			Error:   fmt.Sprintf("histogram: percentile low %.2f >= high %.2f", s.PercentileLow, s.PercentileHigh),
			Mode:    s.Mode, ChannelMode: s.ChannelMode,
		}
	}

	nch := s.ChannelMode.Channels()
	hists, total := binImage(img, s)

	res = Result{
		Success:     true,
		Mode:        s.Mode,
		ChannelMode: s.ChannelMode,
		Scale:       make([]float32, nch),
		Offset:      make([]float32, nch),
		RangeLow:    1,
		RangeHigh:   0,
		TotalPixels: total,
	}

	var tailPixels int
	for c := 0; c < nch; c++ {
		lo, hi, tail := percentileRange(hists[c], total, s.PercentileLow, s.PercentileHigh)
		tailPixels += tail

		if s.Mode == ModePercentileWithKnee {
			span := hi - lo
			lo = clamp01(lo - s.KneeWidth*span)
			hi = clamp01(hi + s.KneeWidth*span)
		}

		if lo < float64(res.RangeLow) {
			res.RangeLow = float32(lo)
		}
		if hi > float64(res.RangeHigh) {
			res.RangeHigh = float32(hi)
		}

		if hi-lo < s.MinRangeThreshold {
			res.Scale[c] = 1
			res.Offset[c] = 0
			res.Warnings = append(res.Warnings,
				fmt.Sprintf("channel %d: range too small (%.4f), using identity", c, hi-lo))
			continue
		}
		scale := 1 / (hi - lo)
		res.Scale[c] = float32(scale)
		res.Offset[c] = float32(-lo * scale)
	}

	res.TailFraction = float64(tailPixels) / float64(total*nch)
	if res.TailFraction > s.TailThreshold {
		res.Warnings = append(res.Warnings,
			fmt.Sprintf("%.1f%% of pixels fall outside the percentile range", res.TailFraction*100))
	}
	if res.RangeHigh < res.RangeLow {
		// All channels degenerate at the same bin.
		res.RangeLow, res.RangeHigh = res.RangeHigh, res.RangeLow
	}
	return res
}

// binImage accumulates the per-channel histograms in parallel. Work is
// partitioned by scanline; each worker owns private accumulators that are
// merged into the shared set under a single lock.
func binImage(img *raster.Buffer, s Settings) ([][]int, int) {
	nch := s.ChannelMode.Channels()
	stride := s.Quality.stride()

	hists := make([][]int, nch)
	for i := range hists {
		hists[i] = make([]int, bins)
	}

	workers := runtime.NumCPU()
	if workers > img.Height {
		workers = img.Height
	}
	if workers < 1 {
		workers = 1
	}

	rows := make(chan int, workers*2)
	var mu sync.Mutex
	var wg sync.WaitGroup
	var total int

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			local := make([][]int, nch)
			for i := range local {
				local[i] = make([]int, bins)
			}
			count := 0
			for y := range rows {
				base := y * img.Width * 4
				for x := 0; x < img.Width; x += stride {
					i := base + x*4
					if s.ChannelMode == AverageLuminance {
						lum := (img.Pix[i] + img.Pix[i+1] + img.Pix[i+2]) / 3
						local[0][binOf(lum)]++
					} else {
						local[0][binOf(img.Pix[i])]++
						local[1][binOf(img.Pix[i+1])]++
						local[2][binOf(img.Pix[i+2])]++
						if s.ChannelMode == PerChannelRGBA {
							local[3][binOf(img.Pix[i+3])]++
						}
					}
					count++
				}
			}
			mu.Lock()
			for c := range hists {
				for b, n := range local[c] {
					hists[c][b] += n
				}
			}
			total += count
			mu.Unlock()
		}()
	}

	for y := 0; y < img.Height; y++ {
		rows <- y
	}
	close(rows)
	wg.Wait()

	return hists, total
}

func binOf(v float32) int {
	b := int(v*255 + 0.5)
	if b < 0 {
		return 0
	}
	if b > 255 {
		return 255
	}
	return b
}

// percentileRange scans the histogram for the lowest bins whose cumulative
// counts reach the low and high pixel-count thresholds, normalized to
// [0,1]. It also returns the number of pixels strictly outside the bins.
func percentileRange(hist []int, total int, pLow, pHigh float64) (lo, hi float64, tail int) {
	loThreshold := int(float64(total)*pLow/100 + 0.5)
	if loThreshold < 1 {
		loThreshold = 1
	}
	hiThreshold := int(float64(total)*pHigh/100 + 0.5)
	if hiThreshold < loThreshold {
		hiThreshold = loThreshold
	}

	loIndex, hiIndex := bins-1, bins-1
	cum := 0
	foundLo := false
	for b := 0; b < bins; b++ {
		cum += hist[b]
		if !foundLo && cum >= loThreshold {
			loIndex = b
			foundLo = true
		}
		if cum >= hiThreshold {
			hiIndex = b
			break
		}
	}

	for b := 0; b < loIndex; b++ {
		tail += hist[b]
	}
	for b := hiIndex + 1; b < bins; b++ {
		tail += hist[b]
	}

	return float64(loIndex) / 255, float64(hiIndex) / 255, tail
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
