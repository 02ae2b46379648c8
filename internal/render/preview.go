package render

import (
	"image"
	"image/color"

	"tomgalvin.uk/catprint/internal/bitmap"
)

// Preview renders a packed bitmap as it would come out of the printer, ink
// in black on white paper.
func Preview(b *bitmap.PackedBitmap) *image.Paletted {
	img := image.NewPaletted(image.Rect(0, 0, b.Width(), b.Height()), color.Palette{color.White, color.Black})
	for y := range b.Height() {
		for x := range b.Width() {
			img.SetColorIndex(x, y, b.GetBit(x, y))
		}
	}
	return img
}
