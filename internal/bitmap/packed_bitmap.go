// This file implements methods to pack bitmap pixel data into
// the bit structure accepted by cat printers.

package bitmap

import "fmt"

// a bitmap packed in memory, 8 pixels per byte with the leftmost pixel in
// the most significant bit
type PackedBitmap struct {
	data                  []byte
	width, height, stride int
}

const bitsPerWord = 8

// Stride returns the number of bytes used by a row of the given width.
func Stride(width int) int {
	return (width + bitsPerWord - 1) / bitsPerWord
}

// Wraps already packed data. The length of data must be Stride(width)*height.
func NewPackedBitmap(data []byte, width, height int) (*PackedBitmap, error) {
	stride := Stride(width)
	if len(data) != stride*height {
		return nil, fmt.Errorf("Packed data not consistent with provided width and height (got %v, expecting %v*%v=%v)",
			len(data), stride, height, stride*height)
	}
	return &PackedBitmap{data, width, height, stride}, nil
}

func (b *PackedBitmap) Width() int {
	return b.width
}

func (b *PackedBitmap) Height() int {
	return b.height
}

func (b *PackedBitmap) Stride() int {
	return b.stride
}

func (b *PackedBitmap) Data() []byte {
	return b.data
}

// Gets a single bit from the bitmap at the (x, y) coordinate, returns either 0 or 1
func (b *PackedBitmap) GetBit(x int, y int) byte {
	// Pixels are left-aligned in each byte, so if the width isn't a multiple
	// of 8 the final byte of a row has its unused low bits left at zero.
	bitIndex := x % bitsPerWord
	index := (y * b.stride) + (x / bitsPerWord)
	return (b.data[index] >> (bitsPerWord - 1 - bitIndex)) & 1
}

func (b *PackedBitmap) String() string {
	return fmt.Sprintf("PackedBitmap(%d,%d)", b.width, b.height)
}

// Row returns the stride-sized slice of packed data for row y.
func (b *PackedBitmap) Row(y int) []byte {
	return b.data[b.stride*y : b.stride*(y+1)]
}

// InkCount returns the number of set bits, i.e. dots that will be printed.
func (b *PackedBitmap) InkCount() int {
	n := 0
	for _, d := range b.data {
		for ; d != 0; d &= d - 1 {
			n++
		}
	}
	return n
}

// Take data from any Bitmap implementation and pack it into the cat printer bitmap structure
func PackBitmap(b Bitmap) *PackedBitmap {
	width, height, stride := b.Width(), b.Height(), Stride(b.Width())
	data := make([]byte, stride*height)

	for y := range height {
		row := data[y*stride : (y+1)*stride]
		for x := range width {
			if b.GetBit(x, y)&1 == 1 {
				row[x/bitsPerWord] |= 0x80 >> (x % bitsPerWord)
			}
		}
	}

	return &PackedBitmap{data, width, height, stride}
}
