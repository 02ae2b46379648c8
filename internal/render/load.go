package render

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"io"
	"os"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"
)

var ErrDecodeFailed = errors.New("image could not be decoded")

// Load decodes any registered raster format (png, jpeg, gif, bmp, tiff, webp)
// and applies the EXIF orientation tag when the image carries one.
func Load(r io.Reader) (image.Image, error) {
	img, err := imaging.Decode(r, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("%w:\n%w", ErrDecodeFailed, err)
	}
	if img.Bounds().Empty() {
		return nil, fmt.Errorf("%w: image has no pixels", ErrDecodeFailed)
	}
	return img, nil
}

func LoadBytes(data []byte) (image.Image, error) {
	return Load(bytes.NewReader(data))
}

func LoadFile(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: couldn't open %s:\n%w", ErrDecodeFailed, path, err)
	}
	defer f.Close()
	return Load(f)
}
