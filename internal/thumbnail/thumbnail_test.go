package thumbnail

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"
)

func sourcePNG(t *testing.T, w, h int) *bytes.Buffer {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png encode failed: %v", err)
	}
	return &buf
}

func TestGenerateThenLookupHitsCache(t *testing.T) {
	c := New(t.TempDir())
	key := Key("/local/photo.png", 100, 100, FitCover)

	if _, ok := c.Lookup(key); ok {
		t.Fatal("expected cache miss before Generate")
	}

	out, err := c.Generate(key, sourcePNG(t, 400, 200), 100, 100, FitCover)
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}
	if len(out) == 0 {
		t.Fatal("expected non-empty thumbnail bytes")
	}

	cached, ok := c.Lookup(key)
	if !ok {
		t.Fatal("expected cache hit after Generate")
	}
	if !bytes.Equal(cached, out) {
		t.Error("cached bytes differ from generated bytes")
	}
}

func TestGenerateContainPreservesAspectWithinBox(t *testing.T) {
	c := New(t.TempDir())
	key := Key("/local/wide.png", 50, 50, FitContain)

	out, err := c.Generate(key, sourcePNG(t, 400, 100), 50, 50, FitContain)
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}
	img, _, err := image.Decode(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("decode thumbnail failed: %v", err)
	}
	b := img.Bounds()
	if b.Dx() != 50 || b.Dy() != 50 {
		t.Errorf("bounds = %v, want 50x50 canvas", b)
	}
}

func TestGenerateRejectsCorruptImage(t *testing.T) {
	c := New(t.TempDir())
	key := Key("/local/bad.png", 10, 10, FitCover)

	if _, err := c.Generate(key, bytes.NewReader([]byte("not an image")), 10, 10, FitCover); err == nil {
		t.Error("expected corrupt image to fail")
	}
}

func TestKeyIsDeterministicAndDimensionSensitive(t *testing.T) {
	k1 := Key("/local/photo.png", 100, 100, FitCover)
	k2 := Key("/local/photo.png", 100, 100, FitCover)
	k3 := Key("/local/photo.png", 200, 200, FitCover)

	if k1 != k2 {
		t.Error("expected identical inputs to produce identical keys")
	}
	if k1 == k3 {
		t.Error("expected different dimensions to produce different keys")
	}
}
