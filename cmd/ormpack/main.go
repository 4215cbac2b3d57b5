// Command ormpack discovers companion channel maps for one base texture,
// assembles the composite ORM mip chain, and writes the levels as PNGs.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/anthonynsimon/bild/imgio"

	"pc-texprep/internal/pack"
	"pc-texprep/internal/texture"
)

func main() {
	base := flag.String("base", "", "Base texture path (companions discovered by suffix)")
	outDir := flag.String("output", "", "Output directory (default: alongside the base texture)")
	toksvig := flag.Bool("toksvig", true, "Apply Toksvig gloss correction when a normal map is found")
	dryRun := flag.Bool("detect-only", false, "Only report discovered channels, write nothing")
	flag.Parse()

	if *base == "" {
		fmt.Fprintln(os.Stderr, "Usage: ormpack -base texture_albedo.png [-output dir]")
		os.Exit(1)
	}

	det, err := pack.Detect(*base)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	report := func(label, path string) {
		if path != "" {
			fmt.Printf("  %-9s %s\n", label+":", path)
		}
	}
	fmt.Printf("Base: %s\n", *base)
	report("ao", det.AOPath)
	if det.GlossInvert {
		report("roughness", det.GlossPath)
	} else {
		report("gloss", det.GlossPath)
	}
	report("metallic", det.MetallicPath)
	report("height", det.HeightPath)
	report("normal", det.NormalPath)
	for _, w := range det.Warnings {
		fmt.Printf("  warning: %s\n", w)
	}
	fmt.Printf("Recommended mode: %s\n", det.Recommended)

	if !det.Packable() {
		fmt.Println("Not packable: need at least AO and gloss/roughness companions.")
		os.Exit(1)
	}
	if *dryRun {
		return
	}

	settings := det.SourcesFor(*toksvig)
	composite, res, err := pack.Build(settings, texture.NewCache())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	for _, w := range res.Warnings {
		fmt.Printf("  warning: %s\n", w)
	}

	dir := *outDir
	if dir == "" {
		dir = filepath.Dir(*base)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	stem := strings.TrimSuffix(filepath.Base(*base), filepath.Ext(*base))
	for i, lvl := range composite {
		out := filepath.Join(dir, fmt.Sprintf("%s_orm_mip%d.png", stem, i))
		if err := imgio.Save(out, lvl.ToNRGBA(), imgio.PNGEncoder()); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	}
	fmt.Printf("Wrote %d %s levels to %s\n", len(composite), res.Mode, dir)
}
