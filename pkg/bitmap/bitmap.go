// Package bitmap holds the decoded RGB pixel grid shared by the capture,
// reference, alignment and diff stages.
//
// A Bitmap is treated as immutable once it leaves the function that built it:
// every transform (Resize, Crop) returns a fresh value.
package bitmap

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg" // register decoder
	"image/png"
	"io"

	"golang.org/x/image/draw"

	_ "golang.org/x/image/bmp"  // register decoder
	_ "golang.org/x/image/webp" // register decoder
)

// Channels is the number of samples stored per pixel.
const Channels = 3

// Bitmap is a row-major RGB image. Pix holds Width*Height*3 samples.
type Bitmap struct {
	Width  int
	Height int
	Pix    []uint8
}

// New returns a black bitmap of the given size.
func New(width, height int) *Bitmap {
	if width < 0 || height < 0 {
		width, height = 0, 0
	}
	return &Bitmap{
		Width:  width,
		Height: height,
		Pix:    make([]uint8, width*height*Channels),
	}
}

// Solid returns a bitmap filled with a single color.
func Solid(width, height int, r, g, b uint8) *Bitmap {
	bm := New(width, height)
	for i := 0; i < len(bm.Pix); i += Channels {
		bm.Pix[i], bm.Pix[i+1], bm.Pix[i+2] = r, g, b
	}
	return bm
}

// Empty reports whether the bitmap has no pixels.
func (b *Bitmap) Empty() bool {
	return b == nil || b.Width <= 0 || b.Height <= 0
}

// Offset returns the index of the red sample of pixel (x, y) in Pix.
func (b *Bitmap) Offset(x, y int) int {
	return (y*b.Width + x) * Channels
}

// At returns the RGB samples of pixel (x, y).
func (b *Bitmap) At(x, y int) (r, g, bl uint8) {
	i := b.Offset(x, y)
	return b.Pix[i], b.Pix[i+1], b.Pix[i+2]
}

// Bounds returns the pixel rectangle of the bitmap, anchored at the origin.
func (b *Bitmap) Bounds() image.Rectangle {
	return image.Rect(0, 0, b.Width, b.Height)
}

// FromImage converts any image to a Bitmap, dropping the alpha channel
// without compositing (straight, non-premultiplied color is kept).
func FromImage(img image.Image) *Bitmap {
	bounds := img.Bounds()
	bm := New(bounds.Dx(), bounds.Dy())

	switch src := img.(type) {
	case *image.NRGBA:
		for y := 0; y < bm.Height; y++ {
			row := src.Pix[src.PixOffset(bounds.Min.X, bounds.Min.Y+y):]
			for x := 0; x < bm.Width; x++ {
				s := x * 4
				d := bm.Offset(x, y)
				bm.Pix[d], bm.Pix[d+1], bm.Pix[d+2] = row[s], row[s+1], row[s+2]
			}
		}
		return bm
	case *image.RGBA:
		if src.Opaque() {
			for y := 0; y < bm.Height; y++ {
				row := src.Pix[src.PixOffset(bounds.Min.X, bounds.Min.Y+y):]
				for x := 0; x < bm.Width; x++ {
					s := x * 4
					d := bm.Offset(x, y)
					bm.Pix[d], bm.Pix[d+1], bm.Pix[d+2] = row[s], row[s+1], row[s+2]
				}
			}
			return bm
		}
	}

	for y := 0; y < bm.Height; y++ {
		for x := 0; x < bm.Width; x++ {
			c := color.NRGBAModel.Convert(img.At(bounds.Min.X+x, bounds.Min.Y+y)).(color.NRGBA)
			d := bm.Offset(x, y)
			bm.Pix[d], bm.Pix[d+1], bm.Pix[d+2] = c.R, c.G, c.B
		}
	}
	return bm
}

// Image returns an opaque *image.RGBA copy of the bitmap.
func (b *Bitmap) Image() *image.RGBA {
	img := image.NewRGBA(b.Bounds())
	for y := 0; y < b.Height; y++ {
		row := img.Pix[y*img.Stride:]
		for x := 0; x < b.Width; x++ {
			s := b.Offset(x, y)
			d := x * 4
			row[d], row[d+1], row[d+2], row[d+3] = b.Pix[s], b.Pix[s+1], b.Pix[s+2], 0xff
		}
	}
	return img
}

// Decode reads an encoded image (png, jpeg, webp or bmp) and converts it to RGB.
func Decode(r io.Reader) (*Bitmap, error) {
	img, _, err := image.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	return FromImage(img), nil
}

// DecodeBytes is Decode over an in-memory buffer.
func DecodeBytes(data []byte) (*Bitmap, error) {
	return Decode(bytes.NewReader(data))
}

// EncodePNG writes the bitmap as an opaque PNG.
func (b *Bitmap) EncodePNG(w io.Writer) error {
	return png.Encode(w, b.Image())
}

// PNG returns the PNG encoding of the bitmap.
func (b *Bitmap) PNG() ([]byte, error) {
	var buf bytes.Buffer
	if err := b.EncodePNG(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Resize resamples the bitmap to width x height with a Catmull-Rom kernel.
// A non-positive target dimension yields an empty bitmap.
func (b *Bitmap) Resize(width, height int) *Bitmap {
	if width <= 0 || height <= 0 || b.Empty() {
		return New(0, 0)
	}
	if width == b.Width && height == b.Height {
		return b.clone()
	}

	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.CatmullRom.Scale(dst, dst.Bounds(), b.Image(), b.Bounds(), draw.Src, nil)
	return FromImage(dst)
}

// Crop returns the part of the bitmap inside r, clipped to the bitmap bounds.
func (b *Bitmap) Crop(r image.Rectangle) *Bitmap {
	r = r.Intersect(b.Bounds())
	out := New(r.Dx(), r.Dy())
	rowLen := out.Width * Channels
	for y := 0; y < out.Height; y++ {
		s := b.Offset(r.Min.X, r.Min.Y+y)
		copy(out.Pix[y*rowLen:(y+1)*rowLen], b.Pix[s:s+rowLen])
	}
	return out
}

func (b *Bitmap) clone() *Bitmap {
	out := &Bitmap{Width: b.Width, Height: b.Height, Pix: make([]uint8, len(b.Pix))}
	copy(out.Pix, b.Pix)
	return out
}
