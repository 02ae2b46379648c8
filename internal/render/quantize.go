package render

import (
	"image"
	"log/slog"

	"tomgalvin.uk/catprint/internal/bitmap"
)

// Options controls the quantization pipeline. Numeric values outside their
// range are clamped.
type Options struct {
	Algorithm Algorithm
	// Cutoff for the Threshold algorithm in [1,255]; 0 selects DefaultThreshold.
	Threshold  int
	Brightness int // [-100,100]
	Contrast   int // [-100,100]
	Sharpen    int // [0,100]
	// Output width in dots; 0 selects PrinterWidth.
	Width int
}

type Result struct {
	Bitmap        *bitmap.PackedBitmap
	Width, Height int
}

// Luminance runs the pipeline up to and including the tone adjustments.
func Luminance(i image.Image, opts Options) *Plane {
	scaled := Resample(i, opts.Width)
	plane := Grayscale(scaled)
	plane.AdjustBrightness(opts.Brightness)
	plane.AdjustContrast(opts.Contrast)
	plane.Sharpen(opts.Sharpen)
	return plane
}

// Reduce turns a luminance plane into one bit per pixel.
func Reduce(p *Plane, opts Options) (*bitmap.Binary, error) {
	switch opts.Algorithm {
	case FloydSteinberg:
		return ApplyFloydSteinberg(p), nil
	case Atkinson:
		return ApplyAtkinson(p), nil
	case SierraLite:
		return ApplySierraLite(p), nil
	case Bayer, Stucki:
		return applyLibraryDither(p, opts.Algorithm)
	default:
		cutoff := opts.Threshold
		if cutoff <= 0 {
			cutoff = DefaultThreshold
		}
		return ApplyThreshold(p, cutoff), nil
	}
}

// Quantize turns a raster into a packed bitmap at printer width. Each call is
// independent; no diffusion state is carried between images.
func Quantize(i image.Image, opts Options) (*Result, error) {
	plane := Luminance(i, opts)
	binary, err := Reduce(plane, opts)
	if err != nil {
		return nil, err
	}
	packed := bitmap.PackBitmap(binary)

	slog.Debug("Quantized image",
		"algorithm", opts.Algorithm,
		"width", packed.Width(),
		"height", packed.Height(),
		"ink", packed.InkCount(),
	)

	return &Result{
		Bitmap: packed,
		Width:  packed.Width(),
		Height: packed.Height(),
	}, nil
}
