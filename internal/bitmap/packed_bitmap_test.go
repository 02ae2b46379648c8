package bitmap

import (
	"fmt"
	"image"
	"image/color"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func aRandomBitmap() *PixelBitmap {
	width, height := 1+rand.IntN(400), 1+rand.IntN(400)
	pixels := make([][]byte, height)
	for y := range height {
		row := make([]byte, width)
		for x := range width {
			row[x] = byte(rand.IntN(2))
		}
		pixels[y] = row
	}

	return &PixelBitmap{pixels, width, height}
}

func assertBitmapsIdentical(t *testing.T, b1 Bitmap, b2 Bitmap) {
	t.Helper()
	require.Equal(t, b1.Width(), b2.Width(), "Bitmaps not of equal width: %s %s", b1, b2)
	require.Equal(t, b1.Height(), b2.Height(), "Bitmaps not of equal height: %s %s", b1, b2)
	width, height := b1.Width(), b1.Height()

	for y := range height {
		for x := range width {
			bit1, bit2 := b1.GetBit(x, y), b2.GetBit(x, y)
			if bit1 != bit2 {
				t.Fatalf("Bit at (%v, %v) doesn't match: %v vs %v", x, y, bit1, bit2)
			}
		}
	}
}

func TestPackBitmap(t *testing.T) {
	test := NewPixelBitmap([][]byte{
		{1, 0},
		{0, 1},
	})

	copied := PackBitmap(test)
	assertBitmapsIdentical(t, test, copied)
	assert.Equal(t, []byte{0x80, 0x40}, copied.Data())
}

func TestPackBitmapLeftAlignsPartialBytes(t *testing.T) {
	// 10 pixels wide: second byte holds 2 pixels in its top bits
	row := []byte{1, 0, 0, 0, 0, 0, 0, 1, 1, 1}
	packed := PackBitmap(NewPixelBitmap([][]byte{row}))

	assert.Equal(t, 2, packed.Stride())
	assert.Equal(t, []byte{0x81, 0xC0}, packed.Data())
}

func TestPackBitmapMany(t *testing.T) {
	const testCaseCount = 30

	for i := range testCaseCount {
		testBitmap := aRandomBitmap()
		t.Run(fmt.Sprintf("test %v: %s", i, testBitmap.String()), func(t *testing.T) {
			copiedBitmap := PackBitmap(testBitmap)
			assertBitmapsIdentical(t, testBitmap, copiedBitmap)
			copiedAgainBitmap := PackBitmap(copiedBitmap)
			assertBitmapsIdentical(t, copiedBitmap, copiedAgainBitmap)
		})
	}
}

func binaryGen() *rapid.Generator[*Binary] {
	return rapid.Custom(func(t *rapid.T) *Binary {
		width := rapid.IntRange(1, 64).Draw(t, "width")
		height := rapid.IntRange(1, 16).Draw(t, "height")
		b := NewBinary(width, height)
		for i := range b.cells {
			b.cells[i] = rapid.ByteRange(0, 1).Draw(t, "cell")
		}
		return b
	})
}

func TestPackedSizeProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		b := binaryGen().Draw(t, "binary")
		packed := PackBitmap(b)
		expected := ((b.Width() + 7) / 8) * b.Height()
		if len(packed.Data()) != expected {
			t.Fatalf("packed size %d, expected %d", len(packed.Data()), expected)
		}
	})
}

func TestInkCellsSetBitsProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		b := binaryGen().Draw(t, "binary")
		packed := PackBitmap(b)
		for y := range b.Height() {
			for x := range b.Width() {
				bit := (packed.Data()[y*packed.Stride()+x/8] >> (7 - x%8)) & 1
				if b.Cell(x, y) == Ink && bit != 1 {
					t.Fatalf("ink at (%d,%d) not set", x, y)
				}
				if b.Cell(x, y) == Blank && bit != 0 {
					t.Fatalf("blank at (%d,%d) set", x, y)
				}
			}
		}
		// padding bits at the end of each row stay clear
		if pad := b.Width() % 8; pad != 0 {
			mask := byte(0xFF) >> pad
			for y := range b.Height() {
				if last := packed.Row(y)[packed.Stride()-1]; last&mask != 0 {
					t.Fatalf("row %d has padding bits set: %08b", y, last)
				}
			}
		}
	})
}

func TestNewPackedBitmapRejectsBadLength(t *testing.T) {
	_, err := NewPackedBitmap(make([]byte, 5), 16, 3)
	require.Error(t, err)

	pb, err := NewPackedBitmap(make([]byte, 6), 16, 3)
	require.NoError(t, err)
	assert.Equal(t, 2, pb.Stride())
}

func TestRow(t *testing.T) {
	pb, err := NewPackedBitmap([]byte{1, 2, 3, 4, 5, 6}, 9, 3)
	require.NoError(t, err)

	assert.Equal(t, []byte{1, 2}, pb.Row(0))
	assert.Equal(t, []byte{3, 4}, pb.Row(1))
	assert.Equal(t, []byte{5, 6}, pb.Row(2))
}

func TestInkCount(t *testing.T) {
	pb, err := NewPackedBitmap([]byte{0xFF, 0x01, 0x80}, 8, 3)
	require.NoError(t, err)
	assert.Equal(t, 10, pb.InkCount())
}

func TestFromPaletted(t *testing.T) {
	img := image.NewPaletted(image.Rect(0, 0, 2, 1), color.Palette{color.White, color.Black})
	img.SetColorIndex(0, 0, 1)

	b, err := FromPaletted(img)
	require.NoError(t, err)
	assert.Equal(t, byte(1), b.GetBit(0, 0))
	assert.Equal(t, byte(0), b.GetBit(1, 0))

	binary := ToBinary(b)
	assert.Equal(t, Ink, binary.Cell(0, 0))
	assert.Equal(t, Blank, binary.Cell(1, 0))

	_, err = FromPaletted(image.NewPaletted(image.Rect(0, 0, 1, 1), color.Palette{color.White}))
	assert.Error(t, err)
}
