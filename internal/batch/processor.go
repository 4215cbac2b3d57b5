// Package batch drives the preprocessing pipeline over many textures with
// a worker pool.
package batch

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/HugoSmits86/nativewebp"

	"pc-texprep/internal/histogram"
	"pc-texprep/internal/mip"
	"pc-texprep/internal/pack"
	"pc-texprep/internal/raster"
	"pc-texprep/internal/texture"
)

// Config holds all shared settings for a batch run.
type Config struct {
	OutputDir string
	Histogram histogram.Settings
	Profile   mip.Profile
	Packing   pack.Mode
	Toksvig   bool
	Workers   int
	Preview   bool
}

// Result holds the outcome of processing one texture.
type Result struct {
	Name     string
	Success  bool
	Error    string
	Levels   int
	Packed   pack.Mode
	Warnings []string
}

// Run processes all input files using a worker pool.
func Run(cfg Config, paths []string) []Result {
	total := len(paths)
	results := make([]Result, total)
	var processed atomic.Int64

	start := time.Now()

	// Progress reporter
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(2 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				p := processed.Load()
				if p > 0 {
					elapsed := time.Since(start).Seconds()
					rate := float64(p) / elapsed
					fmt.Printf("  [%d/%d] %.1f textures/sec\n", p, total, rate)
				}
			}
		}
	}()

	// Worker pool. The texture cache is shared so companion maps decode
	// once even when several jobs reference them.
	cache := texture.NewCache()
	jobChan := make(chan int, cfg.Workers*2)
	var wg sync.WaitGroup

	for w := 0; w < cfg.Workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobChan {
				results[idx] = processTexture(cfg, paths[idx], cache)
				processed.Add(1)
			}
		}()
	}

	for i := range paths {
		jobChan <- i
	}
	close(jobChan)

	wg.Wait()
	close(done)

	return results
}

func processTexture(cfg Config, path string, cache *texture.Cache) Result {
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	res := Result{Name: name, Packed: pack.ModeNone}

	buf, err := cache.Load(path)
	if err != nil {
		res.Error = err.Error()
		return res
	}

	histRes := histogram.Analyze(buf, cfg.Histogram)
	res.Warnings = append(res.Warnings, histRes.Warnings...)

	working := buf
	switch {
	case cfg.Histogram.Mode == histogram.ModeOff:
		// untouched
	case !histRes.Success:
		res.Warnings = append(res.Warnings,
			fmt.Sprintf("analysis failed (%s), pixels left unmodified", histRes.Error))
	case cfg.Histogram.Mode == histogram.ModePercentileWithKnee:
		working = histogram.ApplySoftKnee(buf, histRes, float32(cfg.Histogram.KneeWidth))
	default:
		working = histogram.ApplyWinsorization(buf, histRes)
	}

	chain, err := mip.GenerateMipmaps(working, cfg.Profile)
	if err != nil {
		res.Error = err.Error()
		return res
	}
	res.Levels = len(chain)

	texDir := filepath.Join(cfg.OutputDir, name)
	if err := os.MkdirAll(texDir, 0755); err != nil {
		res.Error = err.Error()
		return res
	}
	for i, lvl := range chain {
		if err := writeWebP(filepath.Join(texDir, fmt.Sprintf("mip%d.webp", i)), lvl); err != nil {
			res.Error = err.Error()
			return res
		}
	}

	if err := writeSidecar(filepath.Join(cfg.OutputDir, name+".hist.json"), histRes); err != nil {
		res.Error = err.Error()
		return res
	}

	if cfg.Preview {
		if err := WritePreviewSheet(filepath.Join(cfg.OutputDir, name+"_mips.webp"), chain); err != nil {
			res.Warnings = append(res.Warnings, fmt.Sprintf("preview: %v", err))
		}
	}

	if cfg.Packing != pack.ModeNone {
		packed, warnings := packTexture(cfg, path, texDir, cache)
		res.Packed = packed
		res.Warnings = append(res.Warnings, warnings...)
	}

	res.Success = true
	return res
}

// packTexture runs companion discovery and, when packable, writes the
// composite ORM chain next to the base texture's mips. Packing problems
// degrade to warnings; the base texture output above already succeeded.
func packTexture(cfg Config, path, texDir string, cache *texture.Cache) (pack.Mode, []string) {
	det, err := pack.Detect(path)
	if err != nil {
		return pack.ModeNone, []string{fmt.Sprintf("pack: %v", err)}
	}
	warnings := det.Warnings

	settings := det.SourcesFor(cfg.Toksvig)
	settings.Mode = cfg.Packing
	if cfg.Packing == pack.ModeAuto && !det.Packable() {
		return pack.ModeNone, append(warnings, "pack: not enough companion maps, skipped")
	}

	composite, pres, err := pack.Build(settings, cache)
	warnings = append(warnings, pres.Warnings...)
	if err != nil {
		return pack.ModeNone, append(warnings, fmt.Sprintf("pack: %v", err))
	}
	if composite == nil {
		return pack.ModeNone, warnings
	}

	for i, lvl := range composite {
		out := filepath.Join(texDir, fmt.Sprintf("orm_mip%d.webp", i))
		if err := writeWebP(out, lvl); err != nil {
			return pack.ModeNone, append(warnings, fmt.Sprintf("pack: %v", err))
		}
	}
	return pres.Mode, warnings
}

func writeWebP(path string, buf *raster.Buffer) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := nativewebp.Encode(f, buf.ToNRGBA(), nil); err != nil {
		return fmt.Errorf("webp encode %s: %w", path, err)
	}
	return nil
}

// writeSidecar stores the analysis result next to the mips; ktxmeta reads
// it back to patch the encoder's container output.
func writeSidecar(path string, res histogram.Result) error {
	data, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
