package render

import (
	"fmt"
	"image/color"
	"strings"

	"github.com/makeworld-the-better-one/dither/v2"
	"tomgalvin.uk/catprint/internal/bitmap"
)

type Algorithm string

const (
	Threshold      Algorithm = "threshold"
	FloydSteinberg Algorithm = "floyd"
	Atkinson       Algorithm = "atkinson"
	SierraLite     Algorithm = "sierra"
	// Bayer and Stucki are rendered by the dither library rather than the
	// diffusion loop below.
	Bayer  Algorithm = "bayer"
	Stucki Algorithm = "stucki"
)

var Algorithms = []Algorithm{Threshold, FloydSteinberg, Atkinson, SierraLite, Bayer, Stucki}

func ParseAlgorithm(s string) (Algorithm, error) {
	a := Algorithm(strings.ToLower(strings.TrimSpace(s)))
	switch a {
	case "floyd-steinberg", "floydsteinberg":
		return FloydSteinberg, nil
	case "sierra-lite", "sierralite":
		return SierraLite, nil
	}
	for _, known := range Algorithms {
		if a == known {
			return a, nil
		}
	}
	return "", fmt.Errorf("Unrecognised dither algorithm %q", s)
}

const (
	DefaultThreshold = 128
	// decision point for error diffusion, inclusive on the ink side
	diffusionThreshold = 128
)

// ApplyThreshold marks every pixel at or below cutoff as ink.
func ApplyThreshold(p *Plane, cutoff int) *bitmap.Binary {
	cutoff = clampInt(cutoff, 0, 255)
	out := bitmap.NewBinary(p.Width, p.Height)
	cells := out.Cells()
	for i, v := range p.Pix {
		if int(v) <= cutoff {
			cells[i] = bitmap.Ink
		}
	}
	return out
}

type diffusion struct {
	dx, dy int
	weight float32
}

var (
	floydSteinbergKernel = []diffusion{
		{1, 0, 7.0 / 16},
		{-1, 1, 3.0 / 16},
		{0, 1, 5.0 / 16},
		{1, 1, 1.0 / 16},
	}
	// only 6/8 of the error is passed on
	atkinsonKernel = []diffusion{
		{1, 0, 1.0 / 8},
		{2, 0, 1.0 / 8},
		{-1, 1, 1.0 / 8},
		{0, 1, 1.0 / 8},
		{1, 1, 1.0 / 8},
		{0, 2, 1.0 / 8},
	}
	sierraLiteKernel = []diffusion{
		{1, 0, 2.0 / 4},
		{-1, 1, 1.0 / 4},
		{0, 1, 1.0 / 4},
	}
)

// Diffuse runs single pass error diffusion in raster order. The running
// values are kept as float32 so rounding doesn't compound.
func diffuse(p *Plane, kernel []diffusion) *bitmap.Binary {
	w, h := p.Width, p.Height
	buffer := make([]float32, len(p.Pix))
	for i, v := range p.Pix {
		buffer[i] = float32(v)
	}
	out := bitmap.NewBinary(w, h)
	cells := out.Cells()

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := y*w + x
			oldPixel := buffer[i]
			var newPixel float32 = 255
			if oldPixel <= diffusionThreshold {
				newPixel = 0
				cells[i] = bitmap.Ink
			}
			quantError := oldPixel - newPixel
			if quantError == 0 {
				continue
			}
			for _, k := range kernel {
				nx, ny := x+k.dx, y+k.dy
				if nx < 0 || nx >= w || ny >= h {
					continue
				}
				buffer[ny*w+nx] += quantError * k.weight
			}
		}
	}
	return out
}

func ApplyFloydSteinberg(p *Plane) *bitmap.Binary {
	return diffuse(p, floydSteinbergKernel)
}

func ApplyAtkinson(p *Plane) *bitmap.Binary {
	return diffuse(p, atkinsonKernel)
}

func ApplySierraLite(p *Plane) *bitmap.Binary {
	return diffuse(p, sierraLiteKernel)
}

// applyLibraryDither runs one of the dither library's ditherers over the
// plane and maps the two colour result back into a binary plane.
func applyLibraryDither(p *Plane, a Algorithm) (*bitmap.Binary, error) {
	palette := []color.Color{color.Black, color.White}
	ditherer := dither.NewDitherer(palette)
	switch a {
	case Bayer:
		ditherer.Mapper = dither.Bayer(4, 4, 1.0)
	case Stucki:
		ditherer.Matrix = dither.Stucki
	default:
		return nil, fmt.Errorf("Algorithm %q isn't handled by the dither library", a)
	}
	ditheredImage := ditherer.DitherPaletted(p.Gray())

	b, err := bitmap.FromPaletted(ditheredImage)
	if err != nil {
		return nil, err
	}
	return bitmap.ToBinary(b), nil
}
