package model

import (
	"image"
	"image/draw"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"

	"github.com/cockroachdb/errors"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// Texture is tightly packed 8-bit RGBA pixel data, rows top to bottom.
type Texture struct {
	Width  int
	Height int
	Pixels []byte
}

func (t *Texture) Size() int {
	return len(t.Pixels)
}

// BlankTexture is a single opaque white pixel. Models whose texture cannot be
// loaded are drawn with it.
func BlankTexture() *Texture {
	return &Texture{
		Width:  1,
		Height: 1,
		Pixels: []byte{255, 255, 255, 255},
	}
}

// DecodeTexture decodes any registered image format into RGBA.
func DecodeTexture(r io.Reader) (*Texture, error) {
	decoded, format, err := image.Decode(r)
	if err != nil {
		return nil, errors.Wrap(err, "decode image")
	}

	bounds := decoded.Bounds()
	if bounds.Empty() {
		return nil, errors.Newf("%s image is empty", format)
	}

	rgba, ok := decoded.(*image.RGBA)
	if !ok || rgba.Stride != bounds.Dx()*4 || bounds.Min != (image.Point{}) {
		rgba = image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
		draw.Draw(rgba, rgba.Bounds(), decoded, bounds.Min, draw.Src)
	}

	return &Texture{
		Width:  bounds.Dx(),
		Height: bounds.Dy(),
		Pixels: rgba.Pix,
	}, nil
}

func LoadTexture(path string) (*Texture, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open texture %s", path)
	}
	defer f.Close()

	texture, err := DecodeTexture(f)
	if err != nil {
		return nil, errors.Wrapf(err, "texture %s", path)
	}
	return texture, nil
}
