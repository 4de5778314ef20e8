package processor

import (
	"bytes"
	"context"
	"image"
	"image/color"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/objectfs/objectfs/pkg/errors"
)

const watermarkJPEGQuality = 85

// Watermark stamps a semi-transparent text label across the bottom-right
// corner of an image (spec §4.G "image_watermark").
type Watermark struct{}

// Process decodes data as an image, draws config["text"] (default
// "foxelfs") onto it, and returns the re-encoded JPEG. It always produces
// a file.
func (w *Watermark) Process(ctx context.Context, data []byte, srcName string, config map[string]any) ([]byte, bool, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, false, errors.InvalidArgument("watermark", "unsupported or corrupt image: "+err.Error())
	}

	text := "foxelfs"
	if v, ok := config["text"].(string); ok && v != "" {
		text = v
	}

	stamped := stampText(img, text)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, stamped, &jpeg.Options{Quality: watermarkJPEGQuality}); err != nil {
		return nil, false, errors.NewError(errors.ErrCodeInternalError, "failed to encode watermarked image").WithCause(err)
	}
	return buf.Bytes(), true, nil
}

func stampText(src image.Image, text string) image.Image {
	b := src.Bounds()
	out := image.NewRGBA(b)
	draw.Draw(out, b, src, b.Min, draw.Src)

	face := basicfont.Face7x13
	advance := font.MeasureString(face, text).Round()
	margin := 10
	x := b.Max.X - advance - margin
	y := b.Max.Y - margin
	if x < b.Min.X {
		x = b.Min.X
	}

	label := color.RGBA{R: 255, G: 255, B: 255, A: 160}
	d := &font.Drawer{
		Dst:  out,
		Src:  image.NewUniform(label),
		Face: face,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(text)
	return out
}
