// This package defines an interface for a simple bitmap structure that has a
// width, height, and can get bits from the bitmap by (x,y) coordinate.
// GetBit always returns the bit as the device sees it: 1 deposits ink on the
// paper, 0 leaves it blank.
// PixelBitmap stores each device bit in a byte and is used to test the
// PackedBitmap impl. Binary holds the output of the quantizer, where a cell
// value of 0 means ink. PackedBitmap is the format the printer consumes over
// the wire.
package bitmap

import (
	"fmt"
)

type Bitmap interface {
	Width() int
	Height() int
	GetBit(x int, y int) byte
}

type PixelBitmap struct {
	pixels        [][]byte
	width, height int
}

func NewPixelBitmap(pixels [][]byte) *PixelBitmap {
	b := &PixelBitmap{pixels: pixels, height: len(pixels)}
	if len(pixels) > 0 {
		b.width = len(pixels[0])
	}
	return b
}

func (b *PixelBitmap) Width() int {
	return b.width
}

func (b *PixelBitmap) Height() int {
	return b.height
}

func (b *PixelBitmap) GetBit(x int, y int) byte {
	return b.pixels[y][x]
}

func (b *PixelBitmap) String() string {
	return fmt.Sprintf("PixelBitmap(%d,%d)", b.width, b.height)
}

// Cell values of a Binary plane.
const (
	Ink   byte = 0
	Blank byte = 1
)

// Binary is a row-major plane with one cell per pixel, where Ink (0) prints
// and Blank (1) doesn't. The inversion relative to device bits happens in
// GetBit, so packing a Binary sets a bit for every Ink cell.
type Binary struct {
	cells         []byte
	width, height int
}

// NewBinary creates a plane with every cell Blank.
func NewBinary(width, height int) *Binary {
	cells := make([]byte, width*height)
	for i := range cells {
		cells[i] = Blank
	}
	return &Binary{cells, width, height}
}

func (b *Binary) Width() int {
	return b.width
}

func (b *Binary) Height() int {
	return b.height
}

func (b *Binary) Cell(x, y int) byte {
	return b.cells[y*b.width+x]
}

func (b *Binary) Set(x, y int, v byte) {
	b.cells[y*b.width+x] = v & 1
}

// Cells exposes the backing row-major slice.
func (b *Binary) Cells() []byte {
	return b.cells
}

func (b *Binary) GetBit(x int, y int) byte {
	return (b.cells[y*b.width+x] & 1) ^ 1
}

func (b *Binary) String() string {
	return fmt.Sprintf("Binary(%d,%d)", b.width, b.height)
}
