// Package config loads and resolves the pipeline configuration: a JSON
// file overridden by CLI flags, with auto-detected defaults for anything
// left unset.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"runtime"
	"strings"

	"pc-texprep/internal/histogram"
	"pc-texprep/internal/mip"
	"pc-texprep/internal/pack"
)

// Config holds all configurable paths and pipeline settings.
type Config struct {
	// Paths
	InputDir  string `json:"input_dir"`
	OutputDir string `json:"output_dir"`

	// Pipeline settings
	TextureType string          `json:"texture_type"` // albedo, normal, roughness, ...
	Histogram   HistogramConfig `json:"histogram"`
	Packing     string          `json:"packing"` // none, og, ogm, ogmh, auto
	Toksvig     bool            `json:"toksvig"`
	Workers     int             `json:"workers"`
	Preview     bool            `json:"preview"` // write a mip preview sheet per texture
}

// HistogramConfig mirrors histogram.Settings with JSON-friendly fields.
type HistogramConfig struct {
	Mode              string  `json:"mode"`         // off, percentile, knee
	ChannelMode       string  `json:"channel_mode"` // luminance, rgb, rgba, rgb-only
	PercentileLow     float64 `json:"percentile_low"`
	PercentileHigh    float64 `json:"percentile_high"`
	KneeWidth         float64 `json:"knee_width"`
	MinRangeThreshold float64 `json:"min_range_threshold"`
	TailThreshold     float64 `json:"tail_threshold"`
	Fast              bool    `json:"fast"`
}

// Flags holds CLI flag values that override config file settings.
type Flags struct {
	InputDir    string
	OutputDir   string
	TextureType string
	Packing     string
	Workers     int
}

// Load reads a JSON config file. Fields not set in the file keep their
// zero values until Resolve fills defaults.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}

// Resolve applies CLI flag overrides, then fills remaining empty fields
// with defaults.
func (c *Config) Resolve(flags Flags) {
	if flags.InputDir != "" {
		c.InputDir = flags.InputDir
	}
	if flags.OutputDir != "" {
		c.OutputDir = flags.OutputDir
	}
	if flags.TextureType != "" {
		c.TextureType = flags.TextureType
	}
	if flags.Packing != "" {
		c.Packing = flags.Packing
	}
	if flags.Workers > 0 {
		c.Workers = flags.Workers
	}

	if c.OutputDir == "" && c.InputDir != "" {
		c.OutputDir = c.InputDir + "-mips"
	}
	if c.TextureType == "" {
		c.TextureType = "generic"
	}
	if c.Packing == "" {
		c.Packing = "none"
	}
	if c.Workers <= 0 {
		c.Workers = runtime.NumCPU()
	}

	d := histogram.DefaultSettings()
	if c.Histogram.Mode == "" {
		c.Histogram.Mode = "percentile"
	}
	if c.Histogram.ChannelMode == "" {
		c.Histogram.ChannelMode = "luminance"
	}
	if c.Histogram.PercentileLow == 0 && c.Histogram.PercentileHigh == 0 {
		c.Histogram.PercentileLow = d.PercentileLow
		c.Histogram.PercentileHigh = d.PercentileHigh
	}
	if c.Histogram.KneeWidth == 0 {
		c.Histogram.KneeWidth = d.KneeWidth
	}
	if c.Histogram.MinRangeThreshold == 0 {
		c.Histogram.MinRangeThreshold = d.MinRangeThreshold
	}
	if c.Histogram.TailThreshold == 0 {
		c.Histogram.TailThreshold = d.TailThreshold
	}
}

// HistogramSettings converts the JSON config into analyzer settings.
func (c *Config) HistogramSettings() (histogram.Settings, error) {
	s := histogram.DefaultSettings()
	switch strings.ToLower(c.Histogram.Mode) {
	case "off":
		s.Mode = histogram.ModeOff
	case "", "percentile":
		s.Mode = histogram.ModePercentile
	case "knee", "percentile-knee":
		s.Mode = histogram.ModePercentileWithKnee
	default:
		return s, fmt.Errorf("config: unknown histogram mode %q", c.Histogram.Mode)
	}
	switch strings.ToLower(c.Histogram.ChannelMode) {
	case "", "luminance":
		s.ChannelMode = histogram.AverageLuminance
	case "rgb":
		s.ChannelMode = histogram.PerChannel
	case "rgba":
		s.ChannelMode = histogram.PerChannelRGBA
	case "rgb-only":
		s.ChannelMode = histogram.RGBOnly
	default:
		return s, fmt.Errorf("config: unknown channel mode %q", c.Histogram.ChannelMode)
	}
	s.PercentileLow = c.Histogram.PercentileLow
	s.PercentileHigh = c.Histogram.PercentileHigh
	s.KneeWidth = c.Histogram.KneeWidth
	s.MinRangeThreshold = c.Histogram.MinRangeThreshold
	s.TailThreshold = c.Histogram.TailThreshold
	if c.Histogram.Fast {
		s.Quality = histogram.QualityFast
	}
	return s, nil
}

// MipTextureType parses the configured texture type.
func (c *Config) MipTextureType() (mip.TextureType, error) {
	switch strings.ToLower(c.TextureType) {
	case "", "generic":
		return mip.Generic, nil
	case "albedo":
		return mip.Albedo, nil
	case "normal":
		return mip.Normal, nil
	case "roughness":
		return mip.Roughness, nil
	case "metallic":
		return mip.Metallic, nil
	case "ao", "occlusion":
		return mip.AO, nil
	case "emissive":
		return mip.Emissive, nil
	case "gloss":
		return mip.Gloss, nil
	}
	return mip.Generic, fmt.Errorf("config: unknown texture type %q", c.TextureType)
}

// PackingMode parses the configured packing mode.
func (c *Config) PackingMode() (pack.Mode, error) {
	switch strings.ToLower(c.Packing) {
	case "", "none":
		return pack.ModeNone, nil
	case "og":
		return pack.ModeOG, nil
	case "ogm":
		return pack.ModeOGM, nil
	case "ogmh":
		return pack.ModeOGMH, nil
	case "auto":
		return pack.ModeAuto, nil
	}
	return pack.ModeNone, fmt.Errorf("config: unknown packing mode %q", c.Packing)
}
