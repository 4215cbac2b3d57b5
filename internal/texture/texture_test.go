package texture

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"sync"
	"testing"
)

func writePNG(t *testing.T, path string, img image.Image) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatal(err)
	}
}

func TestLoadBuffer(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "in.png")
	img := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	img.SetNRGBA(0, 0, color.NRGBA{255, 0, 0, 255})
	img.SetNRGBA(1, 0, color.NRGBA{0, 255, 0, 255})
	img.SetNRGBA(0, 1, color.NRGBA{0, 0, 255, 255})
	img.SetNRGBA(1, 1, color.NRGBA{51, 51, 51, 128})
	writePNG(t, path, img)

	buf, err := LoadBuffer(path)
	if err != nil {
		t.Fatal(err)
	}
	if buf.Width != 2 || buf.Height != 2 {
		t.Fatalf("size %dx%d, want 2x2", buf.Width, buf.Height)
	}
	if buf.Pix[0] != 1 || buf.Pix[1] != 0 {
		t.Errorf("pixel (0,0) = (%g,%g,...)", buf.Pix[0], buf.Pix[1])
	}
	i := buf.Offset(1, 1)
	if got := buf.Pix[i]; got < 0.19 || got > 0.21 {
		t.Errorf("pixel (1,1) red = %g, want ~0.2", got)
	}
	if got := buf.Pix[i+3]; got < 0.5 || got > 0.51 {
		t.Errorf("pixel (1,1) alpha = %g, want ~0.5", got)
	}
}

func TestLoadGrayGetsOpaqueAlpha(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "gray.png")
	img := image.NewGray(image.Rect(0, 0, 4, 4))
	for i := range img.Pix {
		img.Pix[i] = 100
	}
	writePNG(t, path, img)

	buf, err := LoadBuffer(path)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < len(buf.Pix); i += 4 {
		if buf.Pix[i+3] != 1 {
			t.Fatalf("texel %d alpha = %g, want 1", i/4, buf.Pix[i+3])
		}
	}
}

func TestLoadErrors(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.png")); err == nil {
		t.Error("missing file accepted")
	}
	bad := filepath.Join(t.TempDir(), "bad.png")
	os.WriteFile(bad, []byte("not an image"), 0644)
	if _, err := Load(bad); err == nil {
		t.Error("undecodable file accepted")
	}
}

func TestCache(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tex.png")
	writePNG(t, path, image.NewNRGBA(image.Rect(0, 0, 2, 2)))

	c := NewCache()
	first, err := c.Load(path)
	if err != nil {
		t.Fatal(err)
	}

	// A second load must come from the cache, not the file.
	os.Remove(path)
	second, err := c.Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if first != second {
		t.Error("cache returned a different buffer on the second load")
	}

	// Failed loads are cached too.
	missing := filepath.Join(dir, "gone.png")
	if _, err := c.Load(missing); err == nil {
		t.Fatal("missing file accepted")
	}
	writePNG(t, missing, image.NewNRGBA(image.Rect(0, 0, 2, 2)))
	if _, err := c.Load(missing); err == nil {
		t.Error("negative cache entry not retained")
	}
}

func TestCacheConcurrent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tex.png")
	writePNG(t, path, image.NewNRGBA(image.Rect(0, 0, 8, 8)))

	c := NewCache()
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := c.Load(path); err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()
}
