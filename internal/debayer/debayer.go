// Package debayer converts raw 8-bit Bayer sensor frames to packed RGB8.
package debayer

import (
	"errors"
	"fmt"
)

// Pattern is the color filter layout of the top-left 2x2 cell.
type Pattern int

const (
	RGGB Pattern = iota
	BGGR
	GRBG
	GBRG
)

func (p Pattern) String() string {
	switch p {
	case RGGB:
		return "rggb"
	case BGGR:
		return "bggr"
	case GRBG:
		return "grbg"
	case GBRG:
		return "gbrg"
	default:
		return fmt.Sprintf("pattern(%d)", int(p))
	}
}

// offsets returns the (x, y) position of red and blue inside a 2x2 cell.
func (p Pattern) offsets() (rx, ry, bx, by int) {
	switch p {
	case BGGR:
		return 1, 1, 0, 0
	case GRBG:
		return 1, 0, 0, 1
	case GBRG:
		return 0, 1, 1, 0
	default:
		return 0, 0, 1, 1
	}
}

// ErrBufferSize is returned when a buffer is too small for the frame.
var ErrBufferSize = errors.New("debayer: buffer too small")

// Convert debayers src (one byte per sensel, rows stride bytes apart) into a
// new tightly packed RGB8 buffer of width*height*3 bytes.
func Convert(p Pattern, src []byte, width, height, stride int) ([]byte, error) {
	dst := make([]byte, width*height*3)
	if err := ConvertInto(p, dst, src, width, height, stride); err != nil {
		return nil, err
	}
	return dst, nil
}

// ConvertInto is Convert writing into a caller supplied dst.
//
// Each output pixel takes red and blue from its 2x2 cell and the mean of the
// cell's two greens. Cells at odd right/bottom edges reuse the last sensel.
func ConvertInto(p Pattern, dst, src []byte, width, height, stride int) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("debayer: invalid frame size %dx%d", width, height)
	}
	if stride < width {
		return fmt.Errorf("debayer: stride %d below width %d", stride, width)
	}
	if len(src) < stride*(height-1)+width {
		return fmt.Errorf("%w: source has %d bytes for %dx%d stride %d", ErrBufferSize, len(src), width, height, stride)
	}
	if len(dst) < width*height*3 {
		return fmt.Errorf("%w: destination has %d bytes, need %d", ErrBufferSize, len(dst), width*height*3)
	}

	rx, ry, bx, by := p.offsets()
	at := func(x, y int) int {
		if x >= width {
			x = width - 1
		}
		if y >= height {
			y = height - 1
		}
		return int(src[y*stride+x])
	}

	for cy := 0; cy < height; cy += 2 {
		for cx := 0; cx < width; cx += 2 {
			r := at(cx+rx, cy+ry)
			b := at(cx+bx, cy+by)
			// The greens sit on the other diagonal of the cell.
			g := (at(cx+1-rx, cy+ry) + at(cx+rx, cy+1-ry) + 1) / 2

			for dy := 0; dy < 2 && cy+dy < height; dy++ {
				for dx := 0; dx < 2 && cx+dx < width; dx++ {
					o := ((cy+dy)*width + cx + dx) * 3
					dst[o] = byte(r)
					dst[o+1] = byte(g)
					dst[o+2] = byte(b)
				}
			}
		}
	}
	return nil
}
