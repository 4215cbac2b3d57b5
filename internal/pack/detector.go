package pack

import (
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"
)

// Detection is the outcome of companion-texture discovery for one base
// texture.
type Detection struct {
	AOPath       string
	GlossPath    string
	GlossInvert  bool // found a roughness map; invert into gloss on load
	MetallicPath string
	HeightPath   string
	NormalPath   string // companion normal map, feeds the Toksvig pass
	Recommended  Mode
	Warnings     []string
}

// Channels returns how many packable channels were discovered.
func (d Detection) Channels() int {
	n := 0
	for _, p := range []string{d.AOPath, d.GlossPath, d.MetallicPath, d.HeightPath} {
		if p != "" {
			n++
		}
	}
	return n
}

// Packable reports whether enough channels were found to pack at all.
func (d Detection) Packable() bool {
	return d.Recommended != ModeNone
}

// Suffix conventions for companion maps, tried in order.
var (
	baseSuffixes     = []string{"_albedo", "_basecolor", "_diffuse", "_color", "_col", "_d"}
	aoSuffixes       = []string{"_ao", "_occlusion", "_ambient"}
	glossSuffixes    = []string{"_gloss", "_glossiness", "_smoothness"}
	roughSuffixes    = []string{"_roughness", "_rough"}
	metallicSuffixes = []string{"_metallic", "_metalness", "_metal"}
	heightSuffixes   = []string{"_height", "_disp", "_displacement", "_bump"}
	normalSuffixes   = []string{"_normal", "_norm", "_n"}

	probeExts = []string{".png", ".tga", ".jpg", ".jpeg", ".bmp", ".tif", ".tiff"}
)

// Detect discovers companion channel textures next to basePath by filename
// suffix convention, validates their dimensions against the base texture,
// and recommends a packing mode. Fewer than two usable channels means "not
// packable".
func Detect(basePath string) (Detection, error) {
	var d Detection

	baseW, baseH, err := imageSize(basePath)
	if err != nil {
		return d, fmt.Errorf("pack: detect %s: %w", basePath, err)
	}

	ext := filepath.Ext(basePath)
	stem := strings.TrimSuffix(basePath, ext)
	for _, s := range baseSuffixes {
		if strings.HasSuffix(strings.ToLower(stem), s) {
			stem = stem[:len(stem)-len(s)]
			break
		}
	}

	find := func(suffixes []string) string {
		for _, s := range suffixes {
			for _, e := range append([]string{ext}, probeExts...) {
				p := stem + s + e
				if _, err := os.Stat(p); err != nil {
					continue
				}
				w, h, err := imageSize(p)
				if err != nil {
					d.Warnings = append(d.Warnings, fmt.Sprintf("pack: unreadable companion %s: %v", p, err))
					continue
				}
				if w != baseW || h != baseH {
					d.Warnings = append(d.Warnings, fmt.Sprintf(
						"pack: companion %s is %dx%d, base is %dx%d, skipped", p, w, h, baseW, baseH))
					continue
				}
				return p
			}
		}
		return ""
	}

	d.AOPath = find(aoSuffixes)
	d.GlossPath = find(glossSuffixes)
	if d.GlossPath == "" {
		if p := find(roughSuffixes); p != "" {
			d.GlossPath = p
			d.GlossInvert = true
		}
	}
	d.MetallicPath = find(metallicSuffixes)
	d.HeightPath = find(heightSuffixes)
	d.NormalPath = find(normalSuffixes)

	switch {
	case d.AOPath != "" && d.GlossPath != "" && d.MetallicPath != "" && d.HeightPath != "":
		d.Recommended = ModeOGMH
	case d.AOPath != "" && d.GlossPath != "" && d.MetallicPath != "":
		d.Recommended = ModeOGM
	case d.AOPath != "" && d.GlossPath != "":
		d.Recommended = ModeOG
	default:
		d.Recommended = ModeNone
	}
	return d, nil
}

// SourcesFor converts a detection into packing settings using the default
// per-channel profiles. Slots without a discovered companion fall back to
// constant fill.
func (d Detection) SourcesFor(toksvigOn bool) Settings {
	s := Settings{Mode: d.Recommended}
	s.AO = &ChannelSource{
		Type: ChannelAO, SourcePath: d.AOPath, DefaultValue: defaultFor(ChannelAO),
		AOMode: AODefaultMode(), Profile: defaultChannelProfile(ChannelAO),
	}
	gloss := &ChannelSource{
		Type: ChannelGloss, SourcePath: d.GlossPath, DefaultValue: defaultFor(ChannelGloss),
		Invert: d.GlossInvert, Profile: defaultChannelProfile(ChannelGloss),
	}
	if toksvigOn && d.NormalPath != "" {
		gloss.ApplyToksvig = true
		gloss.Toksvig = toksvigDefaults(d.NormalPath)
	}
	s.Gloss = gloss
	s.Metallic = &ChannelSource{
		Type: ChannelMetallic, SourcePath: d.MetallicPath, DefaultValue: defaultFor(ChannelMetallic),
		Profile: defaultChannelProfile(ChannelMetallic),
	}
	s.Height = &ChannelSource{
		Type: ChannelHeight, SourcePath: d.HeightPath, DefaultValue: defaultFor(ChannelHeight),
		Profile: defaultChannelProfile(ChannelHeight),
	}
	return s
}

func imageSize(path string) (int, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, err
	}
	defer f.Close()
	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return 0, 0, err
	}
	return cfg.Width, cfg.Height, nil
}
