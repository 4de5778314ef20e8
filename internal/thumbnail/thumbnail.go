// Package thumbnail implements the Thumbnail Cache (spec §4.F): derive a
// resized preview of an image, keyed by source path and the requested fit,
// and persist it in a two-level sharded directory so a directory listing
// with thousands of cached thumbnails never puts them all in one
// directory entry.
package thumbnail

import (
	"bytes"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	_ "image/gif"
	_ "image/png"
	"io"
	"os"
	"path/filepath"

	"golang.org/x/image/draw"

	"github.com/objectfs/objectfs/pkg/errors"
)

// FitMode controls how the source image is mapped onto the target box.
type FitMode string

const (
	// FitCover scales to fill the box and crops any overflow.
	FitCover FitMode = "cover"
	// FitContain scales to fit entirely within the box, letterboxing.
	FitContain FitMode = "contain"
)

const jpegQuality = 80

// Cache is a disk-backed thumbnail store addressed by Key (source path and
// requested dimensions, not the image content).
type Cache struct {
	root string
}

// New creates a Cache rooted at dir (Global.ThumbCacheDir).
func New(dir string) *Cache {
	return &Cache{root: dir}
}

// Key computes the cache key for a source path and target dimensions. It
// is a SHA-1 digest of path|width|height|fit, matching the scheme used to
// shard the on-disk layout.
func Key(srcPath string, width, height int, fit FitMode) string {
	h := sha1.New()
	fmt.Fprintf(h, "%s|%d|%d|%s", srcPath, width, height, fit)
	return hex.EncodeToString(h.Sum(nil))
}

// shardedPath splits key into a two-level directory (first two, next two
// hex characters) so no single directory holds the whole cache.
func (c *Cache) shardedPath(key string) string {
	if len(key) < 4 {
		return filepath.Join(c.root, key+".jpg")
	}
	return filepath.Join(c.root, key[:2], key[2:4], key+".jpg")
}

// Lookup returns cached thumbnail bytes, or (nil, false) on a cache miss.
func (c *Cache) Lookup(key string) ([]byte, bool) {
	data, err := os.ReadFile(c.shardedPath(key))
	if err != nil {
		return nil, false
	}
	return data, true
}

// Generate decodes src, resizes per fit/width/height, encodes as JPEG at
// quality 80, stores it under key, and returns the encoded bytes.
func (c *Cache) Generate(key string, src io.Reader, width, height int, fit FitMode) ([]byte, error) {
	img, _, err := image.Decode(src)
	if err != nil {
		return nil, errors.InvalidArgument("thumbnail", "unsupported or corrupt image: "+err.Error())
	}

	resized := resize(img, width, height, fit)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, resized, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, errors.NewError(errors.ErrCodeInternalError, "failed to encode thumbnail").WithCause(err)
	}

	if err := c.store(key, buf.Bytes()); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (c *Cache) store(key string, data []byte) error {
	dst := c.shardedPath(key)
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return errors.NewError(errors.ErrCodeInternalError, "failed to create thumbnail cache shard").WithCause(err)
	}
	tmp := dst + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return errors.NewError(errors.ErrCodeInternalError, "failed to write thumbnail").WithCause(err)
	}
	if err := os.Rename(tmp, dst); err != nil {
		return errors.NewError(errors.ErrCodeInternalError, "failed to commit thumbnail").WithCause(err)
	}
	return nil
}

// resize scales img into a width x height box per fit, using a
// high-quality Catmull-Rom kernel (golang.org/x/image/draw).
func resize(img image.Image, width, height int, fit FitMode) image.Image {
	sb := img.Bounds()
	sw, sh := sb.Dx(), sb.Dy()
	if sw == 0 || sh == 0 {
		return img
	}

	switch fit {
	case FitContain:
		scale := min(float64(width)/float64(sw), float64(height)/float64(sh))
		dw, dh := int(float64(sw)*scale), int(float64(sh)*scale)
		scaled := image.NewRGBA(image.Rect(0, 0, dw, dh))
		draw.CatmullRom.Scale(scaled, scaled.Bounds(), img, sb, draw.Over, nil)

		canvas := image.NewRGBA(image.Rect(0, 0, width, height))
		draw.Draw(canvas, canvas.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
		ox, oy := (width-dw)/2, (height-dh)/2
		draw.Draw(canvas, image.Rect(ox, oy, ox+dw, oy+dh), scaled, image.Point{}, draw.Over)
		return canvas

	default: // FitCover
		scale := max(float64(width)/float64(sw), float64(height)/float64(sh))
		dw, dh := int(float64(sw)*scale), int(float64(sh)*scale)
		scaled := image.NewRGBA(image.Rect(0, 0, dw, dh))
		draw.CatmullRom.Scale(scaled, scaled.Bounds(), img, sb, draw.Over, nil)

		ox, oy := (dw-width)/2, (dh-height)/2
		cropped := image.NewRGBA(image.Rect(0, 0, width, height))
		draw.Draw(cropped, cropped.Bounds(), scaled, image.Point{X: ox, Y: oy}, draw.Src)
		return cropped
	}
}

func min(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func max(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
