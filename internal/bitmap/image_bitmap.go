package bitmap

import (
	"fmt"
	"image"
	"image/color"
)

type ImageBitmap struct {
	image *image.Paletted
	// colorMap[i] represents the device bit of the palette colour at index i.
	// If the first colour in the image is black, and a high bit in a bitmap
	// sent to the device will be printed as black, then colorMap[0] == 1.
	colorMap [2]byte
}

func (b *ImageBitmap) Width() int {
	return b.image.Rect.Dx()
}

func (b *ImageBitmap) Height() int {
	return b.image.Rect.Dy()
}

func (b *ImageBitmap) GetBit(x int, y int) byte {
	r := b.image.Rect
	return b.colorMap[b.image.ColorIndexAt(r.Min.X+x, r.Min.Y+y)]
}

func FromPaletted(i *image.Paletted) (*ImageBitmap, error) {
	if len(i.Palette) != 2 {
		return nil, fmt.Errorf("Image passed to FromPaletted must have only 2 colours in palette")
	}

	var colorMap [2]byte

	// Determine which of the two colours in the image's palette is closest to white.
	if i.Palette.Index(color.White) == 0 {
		colorMap = [2]byte{0, 1}
	} else {
		colorMap = [2]byte{1, 0}
	}

	return &ImageBitmap{
		image:    i,
		colorMap: colorMap,
	}, nil
}

// ToBinary copies any Bitmap into a Binary plane.
func ToBinary(b Bitmap) *Binary {
	out := NewBinary(b.Width(), b.Height())
	for y := range b.Height() {
		for x := range b.Width() {
			out.Set(x, y, b.GetBit(x, y)^1)
		}
	}
	return out
}
