package batch

import (
	"encoding/json"
	"fmt"
	"os"
)

// ManifestEntry represents one processed texture in the output manifest.
type ManifestEntry struct {
	Name     string `json:"name"`
	Levels   int    `json:"levels"`
	Packed   string `json:"packed,omitempty"`
	MipDir   string `json:"mip_dir"`
	Sidecar  string `json:"sidecar"`
	Warnings int    `json:"warnings,omitempty"`
}

// WriteManifest writes manifest.json describing the batch output, so the
// external encoder step can be driven from one file.
func WriteManifest(path string, results []Result) error {
	var entries []ManifestEntry
	for _, r := range results {
		if !r.Success {
			continue
		}
		e := ManifestEntry{
			Name:     r.Name,
			Levels:   r.Levels,
			MipDir:   r.Name,
			Sidecar:  r.Name + ".hist.json",
			Warnings: len(r.Warnings),
		}
		if r.Packed.String() != "none" {
			e.Packed = r.Packed.String()
		}
		entries = append(entries, e)
	}

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("batch: manifest: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}
