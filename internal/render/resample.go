package render

import (
	"image"
	"math"

	"golang.org/x/image/draw"
)

// Physical dot width of the print head.
const PrinterWidth = 384

// Resample scales the image to the given width, keeping the aspect ratio,
// onto a white canvas so transparent areas come out blank.
func Resample(i image.Image, width int) *image.RGBA {
	if width <= 0 {
		width = PrinterWidth
	}
	src := i.Bounds()
	height := int(math.Round(float64(width) * float64(src.Dy()) / float64(src.Dx())))
	if height < 1 {
		height = 1
	}

	scaledBounds := image.Rect(0, 0, width, height)
	scaledImage := image.NewRGBA(scaledBounds)
	draw.Draw(scaledImage, scaledBounds, image.White, image.Point{}, draw.Src)
	// resize image using Catmull Rom scaling
	draw.CatmullRom.Scale(scaledImage, scaledBounds, i, src, draw.Over, nil)
	return scaledImage
}
