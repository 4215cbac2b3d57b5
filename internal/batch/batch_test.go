package batch

import (
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"pc-texprep/internal/histogram"
	"pc-texprep/internal/mip"
	"pc-texprep/internal/pack"
)

func writeGradientPNG(t *testing.T, path string, w, h int) {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := uint8(64 + (x*128)/(w-1))
			img.SetNRGBA(x, y, color.NRGBA{v, v, v, 255})
		}
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatal(err)
	}
}

func TestRunProcessesBatch(t *testing.T) {
	inDir := t.TempDir()
	outDir := t.TempDir()
	paths := []string{
		filepath.Join(inDir, "alpha.png"),
		filepath.Join(inDir, "beta.png"),
		filepath.Join(inDir, "broken.png"),
	}
	writeGradientPNG(t, paths[0], 16, 16)
	writeGradientPNG(t, paths[1], 8, 8)
	os.WriteFile(paths[2], []byte("junk"), 0644)

	cfg := Config{
		OutputDir: outDir,
		Histogram: histogram.DefaultSettings(),
		Profile:   mip.DefaultProfile(mip.Generic),
		Packing:   pack.ModeNone,
		Workers:   2,
	}
	results := Run(cfg, paths)
	if len(results) != 3 {
		t.Fatalf("got %d results", len(results))
	}

	byName := map[string]Result{}
	for _, r := range results {
		byName[r.Name] = r
	}
	if !byName["alpha"].Success || byName["alpha"].Levels != 5 {
		t.Errorf("alpha = %+v", byName["alpha"])
	}
	if !byName["beta"].Success || byName["beta"].Levels != 4 {
		t.Errorf("beta = %+v", byName["beta"])
	}
	if byName["broken"].Success || byName["broken"].Error == "" {
		t.Errorf("broken = %+v", byName["broken"])
	}

	// Every level of a successful texture lands on disk.
	for i := 0; i < 5; i++ {
		p := filepath.Join(outDir, "alpha", fmt.Sprintf("mip%d.webp", i))
		if _, err := os.Stat(p); err != nil {
			t.Errorf("missing %s", p)
		}
	}

	// The sidecar carries a usable transform for the container patcher.
	data, err := os.ReadFile(filepath.Join(outDir, "alpha.hist.json"))
	if err != nil {
		t.Fatal(err)
	}
	var hr histogram.Result
	if err := json.Unmarshal(data, &hr); err != nil {
		t.Fatal(err)
	}
	if !hr.Success || len(hr.Scale) == 0 {
		t.Errorf("sidecar = %+v", hr)
	}
	if hr.Scale[0] <= 1 {
		t.Errorf("gradient spanning half the range should expand, scale = %g", hr.Scale[0])
	}
}

func TestRunWithPreviewAndPacking(t *testing.T) {
	inDir := t.TempDir()
	outDir := t.TempDir()
	base := filepath.Join(inDir, "stone_albedo.png")
	writeGradientPNG(t, base, 8, 8)
	writeGradientPNG(t, filepath.Join(inDir, "stone_ao.png"), 8, 8)
	writeGradientPNG(t, filepath.Join(inDir, "stone_gloss.png"), 8, 8)

	cfg := Config{
		OutputDir: outDir,
		Histogram: histogram.DefaultSettings(),
		Profile:   mip.DefaultProfile(mip.Albedo),
		Packing:   pack.ModeAuto,
		Workers:   1,
		Preview:   true,
	}
	results := Run(cfg, []string{base})
	if !results[0].Success {
		t.Fatalf("result = %+v", results[0])
	}
	if results[0].Packed != pack.ModeOG {
		t.Errorf("packed = %s, want OG", results[0].Packed)
	}
	if _, err := os.Stat(filepath.Join(outDir, "stone_albedo_mips.webp")); err != nil {
		t.Error("preview sheet not written")
	}
	for i := 0; i < 4; i++ {
		p := filepath.Join(outDir, "stone_albedo", fmt.Sprintf("orm_mip%d.webp", i))
		if _, err := os.Stat(p); err != nil {
			t.Errorf("missing composite level %s", p)
		}
	}
}

func TestWriteManifest(t *testing.T) {
	dir := t.TempDir()
	results := []Result{
		{Name: "a", Success: true, Levels: 5, Packed: pack.ModeOG},
		{Name: "b", Success: false, Error: "decode failed"},
	}
	path := filepath.Join(dir, "manifest.json")
	if err := WriteManifest(path, results); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var entries []ManifestEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		t.Fatal(err)
	}
	// Failed textures are excluded; the encoder step must not consume them.
	if len(entries) != 1 {
		t.Fatalf("entries = %+v, want only the successful texture", entries)
	}
	e := entries[0]
	if e.Name != "a" || e.Levels != 5 || e.Packed != "OG" || e.Sidecar != "a.hist.json" {
		t.Errorf("entry = %+v", e)
	}
}
