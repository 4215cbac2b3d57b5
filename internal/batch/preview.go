package batch

import (
	"fmt"
	"image"
	"os"

	"github.com/HugoSmits86/nativewebp"
	xdraw "golang.org/x/image/draw"

	"pc-texprep/internal/raster"
)

const previewGap = 2 // pixels between levels

// WritePreviewSheet composes every mip level side by side into a single
// image for quick visual inspection of the chain.
func WritePreviewSheet(path string, chain []*raster.Buffer) error {
	if len(chain) == 0 {
		return fmt.Errorf("preview: empty chain")
	}

	width := 0
	for _, lvl := range chain {
		width += lvl.Width + previewGap
	}
	width -= previewGap
	sheet := image.NewNRGBA(image.Rect(0, 0, width, chain[0].Height))

	x := 0
	for _, lvl := range chain {
		img := lvl.ToNRGBA()
		xdraw.Copy(sheet, image.Pt(x, 0), img, img.Bounds(), xdraw.Src, nil)
		x += lvl.Width + previewGap
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return nativewebp.Encode(f, sheet, nil)
}
