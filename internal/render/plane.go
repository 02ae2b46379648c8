package render

import (
	"image"
	"math"
)

// Plane is an 8-bit luminance image stored row-major. Adjustments mutate it
// in place.
type Plane struct {
	Pix           []uint8
	Width, Height int
}

func NewPlane(width, height int) *Plane {
	return &Plane{Pix: make([]uint8, width*height), Width: width, Height: height}
}

func (p *Plane) At(x, y int) uint8 {
	return p.Pix[y*p.Width+x]
}

func (p *Plane) Clone() *Plane {
	c := NewPlane(p.Width, p.Height)
	copy(c.Pix, p.Pix)
	return c
}

// Gray wraps the plane's pixels as an image.Gray without copying.
func (p *Plane) Gray() *image.Gray {
	return &image.Gray{Pix: p.Pix, Stride: p.Width, Rect: image.Rect(0, 0, p.Width, p.Height)}
}

func clampByte(v float64) uint8 {
	switch {
	case v <= 0:
		return 0
	case v >= 255:
		return 255
	}
	return uint8(v)
}

func clampInt(v, lo, hi int) int {
	return max(lo, min(hi, v))
}

// Grayscale converts an opaque RGBA image into luminance using the
// 0.299/0.587/0.114 weights, rounded to the nearest integer.
func Grayscale(img *image.RGBA) *Plane {
	b := img.Bounds()
	p := NewPlane(b.Dx(), b.Dy())
	for y := 0; y < p.Height; y++ {
		row := img.Pix[img.PixOffset(b.Min.X, b.Min.Y+y):]
		for x := 0; x < p.Width; x++ {
			r, g, bl := float64(row[x*4]), float64(row[x*4+1]), float64(row[x*4+2])
			p.Pix[y*p.Width+x] = clampByte(math.Round(0.299*r + 0.587*g + 0.114*bl))
		}
	}
	return p
}

// AdjustBrightness shifts every pixel by round(255*value/100), value in [-100,100].
func (p *Plane) AdjustBrightness(value int) {
	value = clampInt(value, -100, 100)
	if value == 0 {
		return
	}
	shift := math.Round(255 * float64(value) / 100)
	for i, v := range p.Pix {
		p.Pix[i] = clampByte(float64(v) + shift)
	}
}

// AdjustContrast remaps pixels around 128, value in [-100,100].
func (p *Plane) AdjustContrast(value int) {
	value = clampInt(value, -100, 100)
	if value == 0 {
		return
	}
	v := float64(value)
	factor := (259 * (v + 255)) / (255 * (259 - v))
	for i, px := range p.Pix {
		p.Pix[i] = clampByte(math.Round(factor*(float64(px)-128) + 128))
	}
}

// Sharpen applies a 5-point laplacian kernel to interior pixels and blends
// the result with the original by amount/100, amount in [0,100].
func (p *Plane) Sharpen(amount int) {
	amount = clampInt(amount, 0, 100)
	if amount == 0 || p.Width < 3 || p.Height < 3 {
		return
	}
	mix := float64(amount) / 100
	src := p.Clone().Pix
	w := p.Width
	for y := 1; y < p.Height-1; y++ {
		for x := 1; x < w-1; x++ {
			i := y*w + x
			c := float64(src[i])
			sharp := 5*c - float64(src[i-w]) - float64(src[i+w]) - float64(src[i-1]) - float64(src[i+1])
			sharp = float64(clampByte(sharp))
			p.Pix[i] = clampByte(math.Round(c*(1-mix) + sharp*mix))
		}
	}
}
