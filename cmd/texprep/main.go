// Command texprep prepares raster textures for GPU compression: histogram
// normalization, filtered mip chains per texture type, optional ORM channel
// packing. The output mips and histogram sidecars feed an external encoder;
// ktxmeta patches the encoder's container afterwards.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"pc-texprep/internal/batch"
	"pc-texprep/internal/config"
	"pc-texprep/internal/mip"
)

var inputExts = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true,
	".tga": true, ".bmp": true, ".tif": true, ".tiff": true,
}

func main() {
	configFile := flag.String("config", "", "Path to config.json file")
	inputDir := flag.String("input", "", "Directory of source textures")
	outputDir := flag.String("output", "", "Output directory (default: <input>-mips)")
	texType := flag.String("type", "", "Texture type: albedo, normal, roughness, metallic, ao, emissive, gloss, generic")
	packing := flag.String("packing", "", "Channel packing: none, og, ogm, ogmh, auto")
	workers := flag.Int("workers", 0, "Number of worker goroutines (default: NumCPU)")
	testN := flag.Int("test", 0, "Process only first N textures for testing")
	preview := flag.Bool("preview", false, "Write a mip preview sheet per texture")

	flag.Parse()

	var cfg config.Config
	if *configFile != "" {
		var err error
		cfg, err = config.Load(*configFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			os.Exit(1)
		}
	}
	cfg.Resolve(config.Flags{
		InputDir:    *inputDir,
		OutputDir:   *outputDir,
		TextureType: *texType,
		Packing:     *packing,
		Workers:     *workers,
	})
	if *preview {
		cfg.Preview = true
	}

	if cfg.InputDir == "" {
		fmt.Fprintln(os.Stderr, "Error: no input directory. Use -input or config.json.")
		os.Exit(1)
	}

	histSettings, err := cfg.HistogramSettings()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	ttype, err := cfg.MipTextureType()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	packMode, err := cfg.PackingMode()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	paths, err := collectInputs(cfg.InputDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error scanning input: %v\n", err)
		os.Exit(1)
	}
	if *testN > 0 && *testN < len(paths) {
		paths = paths[:*testN]
	}
	if len(paths) == 0 {
		fmt.Println("No textures to process.")
		os.Exit(0)
	}

	profile := mip.DefaultProfile(ttype)

	fmt.Printf("Texture preprocessing → %s mips\n", ttype)
	fmt.Printf("Textures: %d, Workers: %d, Packing: %s\n", len(paths), cfg.Workers, packMode)
	fmt.Printf("Output: %s\n", cfg.OutputDir)
	fmt.Println("------------------------------------------------------------")

	if err := os.MkdirAll(cfg.OutputDir, 0755); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	start := time.Now()
	results := batch.Run(batch.Config{
		OutputDir: cfg.OutputDir,
		Histogram: histSettings,
		Profile:   profile,
		Packing:   packMode,
		Toksvig:   cfg.Toksvig,
		Workers:   cfg.Workers,
		Preview:   cfg.Preview,
	}, paths)
	elapsed := time.Since(start)

	fmt.Println("------------------------------------------------------------")
	fmt.Printf("Done in %.1fs\n", elapsed.Seconds())

	success, failed := 0, 0
	var errors []batch.Result
	for _, r := range results {
		if r.Success {
			success++
		} else {
			failed++
			errors = append(errors, r)
		}
	}
	fmt.Printf("Processed: %d/%d\n", success, len(paths))

	if len(errors) > 0 {
		fmt.Printf("\nFailed (%d):\n", failed)
		limit := 20
		if len(errors) < limit {
			limit = len(errors)
		}
		for _, e := range errors[:limit] {
			fmt.Printf("  %s: %s\n", e.Name, e.Error)
		}
	}

	manifestPath := filepath.Join(cfg.OutputDir, "manifest.json")
	if err := batch.WriteManifest(manifestPath, results); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: manifest write failed: %v\n", err)
	} else {
		fmt.Printf("Manifest: %s\n", manifestPath)
	}

	if failed > 0 {
		os.Exit(1)
	}
}

// collectInputs gathers supported image files under dir in a stable order.
func collectInputs(dir string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		if !inputExts[strings.ToLower(filepath.Ext(path))] {
			return nil
		}
		paths = append(paths, path)
		return nil
	})
	sort.Strings(paths)
	return paths, err
}
