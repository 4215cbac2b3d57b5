// Package pack assembles composite multi-channel (ORM) mip chains from up
// to four independently-processed source channels, and discovers companion
// channel textures by filename convention.
package pack

import (
	"fmt"
	"sync"

	"pc-texprep/internal/mip"
	"pc-texprep/internal/raster"
	"pc-texprep/internal/texture"
	"pc-texprep/internal/toksvig"
)

// Mode selects which RGBA slots the composite populates.
type Mode int

const (
	// ModeNone disables packing; sources pass through individually.
	ModeNone Mode = iota
	// ModeOG packs RGB=AO, A=Gloss.
	ModeOG
	// ModeOGM packs R=AO, G=Gloss, B=Metallic.
	ModeOGM
	// ModeOGMH packs R=AO, G=Gloss, B=Metallic, A=Height.
	ModeOGMH
	// ModeAuto picks the richest mode the present sources support.
	ModeAuto
)

func (m Mode) String() string {
	switch m {
	case ModeOG:
		return "OG"
	case ModeOGM:
		return "OGM"
	case ModeOGMH:
		return "OGMH"
	case ModeAuto:
		return "auto"
	default:
		return "none"
	}
}

// ChannelType identifies the semantic content of a packed channel.
type ChannelType int

const (
	ChannelAO ChannelType = iota
	ChannelGloss
	ChannelMetallic
	ChannelHeight
)

// ChannelSource describes one input channel. A source with an empty
// SourcePath still produces a full mip chain, filled uniformly with
// DefaultValue at every level — the explicit contract for missing data.
type ChannelSource struct {
	Type         ChannelType
	SourcePath   string
	DefaultValue float32
	Invert       bool // e.g. a roughness map feeding the gloss slot

	// AO channels only.
	AOMode mip.AOMode

	// Gloss channels only.
	ApplyToksvig bool
	Toksvig      toksvig.Settings

	Profile mip.Profile
}

// Settings drives one packing run.
type Settings struct {
	Mode     Mode
	AO       *ChannelSource
	Gloss    *ChannelSource
	Metallic *ChannelSource
	Height   *ChannelSource
}

// Result reports how a packing run resolved.
type Result struct {
	Mode     Mode // resolved mode, never ModeAuto
	Levels   int
	Warnings []string
}

// AODefaultMode is the footprint reducer used when no AO processing mode
// is configured: biased toward the occluding value so mips keep contact
// shadows.
func AODefaultMode() mip.AOMode {
	return mip.AOBiasedDarkening{Bias: 0.3}
}

func toksvigDefaults(normalPath string) toksvig.Settings {
	s := toksvig.DefaultSettings()
	s.NormalMapPath = normalPath
	return s
}

// defaultFor returns the constant used when a channel has no source at all.
func defaultFor(t ChannelType) float32 {
	switch t {
	case ChannelAO:
		return 1 // unoccluded
	case ChannelHeight:
		return 0.5 // mid-level displacement
	default:
		return 0
	}
}

// Build generates the composite chain. Channel chains are generated
// concurrently; each works on its own buffers. ModeNone (or an Auto
// resolution below two usable sources) yields a nil chain.
func Build(s Settings, cache *texture.Cache) ([]*raster.Buffer, Result, error) {
	if cache == nil {
		cache = texture.NewCache()
	}

	res := Result{Mode: s.Mode}
	if s.Mode == ModeAuto {
		res.Mode = resolveAuto(s)
		if res.Mode == ModeNone {
			res.Warnings = append(res.Warnings, "pack: fewer than the required sources present, not packable")
			return nil, res, nil
		}
	}
	if res.Mode == ModeNone {
		return nil, res, nil
	}

	// Figure out the composite dimensions from the first real source.
	w, h := 0, 0
	for _, src := range []*ChannelSource{s.AO, s.Gloss, s.Metallic, s.Height} {
		if src == nil || src.SourcePath == "" {
			continue
		}
		buf, err := cache.Load(src.SourcePath)
		if err != nil {
			continue
		}
		if w == 0 {
			w, h = buf.Width, buf.Height
		} else if buf.Width != w || buf.Height != h {
			return nil, res, fmt.Errorf("pack: source %s is %dx%d, expected %dx%d",
				src.SourcePath, buf.Width, buf.Height, w, h)
		}
	}
	if w == 0 {
		return nil, res, fmt.Errorf("pack: no readable channel source")
	}

	type built struct {
		chain    []*raster.Buffer
		warnings []string
	}
	sources := map[ChannelType]*ChannelSource{
		ChannelAO:       s.AO,
		ChannelGloss:    s.Gloss,
		ChannelMetallic: s.Metallic,
		ChannelHeight:   s.Height,
	}
	chains := make(map[ChannelType]*built, len(sources))
	var mu sync.Mutex
	var wg sync.WaitGroup
	for t, src := range sources {
		wg.Add(1)
		go func(t ChannelType, src *ChannelSource) {
			defer wg.Done()
			b := &built{}
			b.chain, b.warnings = buildChannel(t, src, cache, w, h)
			mu.Lock()
			chains[t] = b
			mu.Unlock()
		}(t, src)
	}
	wg.Wait()

	levels := 0
	for _, b := range chains {
		res.Warnings = append(res.Warnings, b.warnings...)
		if len(b.chain) > levels {
			levels = len(b.chain)
		}
	}
	res.Levels = levels

	composite := make([]*raster.Buffer, levels)
	lw, lh := w, h
	for lvl := 0; lvl < levels; lvl++ {
		out := raster.New(lw, lh)
		ao := heldLevel(chains[ChannelAO].chain, lvl)
		gloss := heldLevel(chains[ChannelGloss].chain, lvl)
		metallic := heldLevel(chains[ChannelMetallic].chain, lvl)
		height := heldLevel(chains[ChannelHeight].chain, lvl)
		for y := 0; y < lh; y++ {
			for x := 0; x < lw; x++ {
				i := out.Offset(x, y)
				switch res.Mode {
				case ModeOG:
					o := sampleHeld(ao, x, y)
					out.Pix[i] = o
					out.Pix[i+1] = o
					out.Pix[i+2] = o
					out.Pix[i+3] = sampleHeld(gloss, x, y)
				case ModeOGM:
					out.Pix[i] = sampleHeld(ao, x, y)
					out.Pix[i+1] = sampleHeld(gloss, x, y)
					out.Pix[i+2] = sampleHeld(metallic, x, y)
					out.Pix[i+3] = 1
				case ModeOGMH:
					out.Pix[i] = sampleHeld(ao, x, y)
					out.Pix[i+1] = sampleHeld(gloss, x, y)
					out.Pix[i+2] = sampleHeld(metallic, x, y)
					out.Pix[i+3] = sampleHeld(height, x, y)
				}
			}
		}
		composite[lvl] = out
		if lw > 1 {
			lw /= 2
		}
		if lh > 1 {
			lh /= 2
		}
	}
	return composite, res, nil
}

// resolveAuto maps the set of present sources to the richest mode.
func resolveAuto(s Settings) Mode {
	has := func(src *ChannelSource) bool { return src != nil && src.SourcePath != "" }
	switch {
	case has(s.AO) && has(s.Gloss) && has(s.Metallic) && has(s.Height):
		return ModeOGMH
	case has(s.AO) && has(s.Gloss) && has(s.Metallic):
		return ModeOGM
	case has(s.AO) && has(s.Gloss):
		return ModeOG
	default:
		return ModeNone
	}
}

// buildChannel generates one channel's full mip chain. Any failure to read
// the source degrades to a constant-fill chain with a warning, never an
// abort.
func buildChannel(t ChannelType, src *ChannelSource, cache *texture.Cache, w, h int) ([]*raster.Buffer, []string) {
	if src == nil {
		src = &ChannelSource{Type: t, DefaultValue: defaultFor(t), Profile: defaultChannelProfile(t)}
	}
	var warnings []string

	if src.SourcePath != "" {
		buf, err := cache.Load(src.SourcePath)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("pack: %s source: %v, using constant %.2f",
				chanName(t), err, src.DefaultValue))
		} else {
			input := buf
			if src.Invert {
				input = invert(buf)
			}
			prof := src.Profile
			if prof.MinMipSize < 1 {
				prof = defaultChannelProfile(t)
			}
			var chain []*raster.Buffer
			if t == ChannelAO {
				chain, err = mip.GenerateAOMipmaps(input, prof, src.AOMode)
			} else {
				chain, err = mip.GenerateMipmaps(input, prof)
			}
			if err != nil {
				warnings = append(warnings, fmt.Sprintf("pack: %s chain: %v, using constant %.2f",
					chanName(t), err, src.DefaultValue))
			} else {
				if t == ChannelGloss && src.ApplyToksvig {
					chain, warnings = applyToksvig(chain, src, cache, warnings)
				}
				return chain, warnings
			}
		}
	}

	return constantChain(w, h, src.DefaultValue), warnings
}

func applyToksvig(chain []*raster.Buffer, src *ChannelSource, cache *texture.Cache, warnings []string) ([]*raster.Buffer, []string) {
	var normal *raster.Buffer
	if src.Toksvig.NormalMapPath != "" {
		var err error
		normal, err = cache.Load(src.Toksvig.NormalMapPath)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("pack: toksvig normal map: %v", err))
			normal = nil
		}
	}
	// The chain always holds gloss values here; roughness sources were
	// inverted on load.
	corrected, tw := toksvig.Correct(chain, normal, true, src.Toksvig)
	return corrected, append(warnings, tw...)
}

// constantChain builds a full mip chain filled uniformly with v.
func constantChain(w, h int, v float32) []*raster.Buffer {
	count := mip.CalculateMipLevels(w, h, 1)
	chain := make([]*raster.Buffer, count)
	for i := 0; i < count; i++ {
		chain[i] = raster.NewFilled(w, h, v, v, v, 1)
		if w > 1 {
			w /= 2
		}
		if h > 1 {
			h /= 2
		}
	}
	return chain
}

func defaultChannelProfile(t ChannelType) mip.Profile {
	switch t {
	case ChannelAO:
		return mip.DefaultProfile(mip.AO)
	case ChannelGloss:
		return mip.DefaultProfile(mip.Gloss)
	case ChannelMetallic:
		return mip.DefaultProfile(mip.Metallic)
	default:
		return mip.DefaultProfile(mip.Generic)
	}
}

func invert(buf *raster.Buffer) *raster.Buffer {
	out := buf.Clone()
	for i := 0; i < len(out.Pix); i += 4 {
		out.Pix[i] = 1 - out.Pix[i]
		out.Pix[i+1] = 1 - out.Pix[i+1]
		out.Pix[i+2] = 1 - out.Pix[i+2]
	}
	return out
}

// heldLevel returns the chain's level for lvl, holding the last level when
// the chain is shorter than its siblings.
func heldLevel(chain []*raster.Buffer, lvl int) *raster.Buffer {
	if len(chain) == 0 {
		return nil
	}
	if lvl >= len(chain) {
		lvl = len(chain) - 1
	}
	return chain[lvl]
}

// sampleHeld reads the red (grayscale) component with edge clamping, so a
// held smaller level can still fill a larger composite level.
func sampleHeld(buf *raster.Buffer, x, y int) float32 {
	if buf == nil {
		return 0
	}
	if x >= buf.Width {
		x = buf.Width - 1
	}
	if y >= buf.Height {
		y = buf.Height - 1
	}
	return buf.Pix[buf.Offset(x, y)]
}

func chanName(t ChannelType) string {
	switch t {
	case ChannelAO:
		return "ao"
	case ChannelGloss:
		return "gloss"
	case ChannelMetallic:
		return "metallic"
	default:
		return "height"
	}
}
