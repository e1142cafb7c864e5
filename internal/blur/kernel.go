package blur

import (
	"image"
	"image/draw"
)

// BoxBlur returns a softened copy of src using a two-pass sliding-window box
// blur. Each pass keeps running channel sums while the window slides, so the
// cost is proportional to the pixel count and independent of the radius.
// Edge pixels are treated as replicated beyond the bounds. A radius of zero
// returns an unblurred copy.
func BoxBlur(src *image.RGBA, radius int) *image.RGBA {
	bounds := src.Bounds()
	out := image.NewRGBA(bounds)
	if radius <= 0 {
		copy(out.Pix, src.Pix)
		return out
	}

	tmp := image.NewRGBA(bounds)
	blurHorizontal(src, tmp, radius)
	blurVertical(tmp, out, radius)
	return out
}

// ToRGBA converts any image to RGBA, reusing the pixels when it already is
// one.
func ToRGBA(src image.Image) *image.RGBA {
	if rgba, ok := src.(*image.RGBA); ok {
		return rgba
	}
	bounds := src.Bounds()
	out := image.NewRGBA(bounds)
	draw.Draw(out, bounds, src, bounds.Min, draw.Src)
	return out
}

func blurHorizontal(src, dst *image.RGBA, radius int) {
	bounds := src.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()
	if width == 0 || height == 0 {
		return
	}
	window := uint32(2*radius + 1)
	srcBase := src.PixOffset(bounds.Min.X, bounds.Min.Y)
	dstBase := dst.PixOffset(bounds.Min.X, bounds.Min.Y)

	for y := 0; y < height; y++ {
		row := src.Pix[srcBase+y*src.Stride : srcBase+y*src.Stride+width*4]
		outRow := dst.Pix[dstBase+y*dst.Stride : dstBase+y*dst.Stride+width*4]

		clamp := func(x int) int {
			if x < 0 {
				return 0
			}
			if x >= width {
				return width - 1
			}
			return x
		}

		var sumR, sumG, sumB, sumA uint32
		for i := -radius; i <= radius; i++ {
			offset := clamp(i) * 4
			sumR += uint32(row[offset])
			sumG += uint32(row[offset+1])
			sumB += uint32(row[offset+2])
			sumA += uint32(row[offset+3])
		}

		for x := 0; x < width; x++ {
			offset := x * 4
			outRow[offset] = uint8(sumR / window)
			outRow[offset+1] = uint8(sumG / window)
			outRow[offset+2] = uint8(sumB / window)
			outRow[offset+3] = uint8(sumA / window)

			add := clamp(x+radius+1) * 4
			drop := clamp(x-radius) * 4
			sumR += uint32(row[add]) - uint32(row[drop])
			sumG += uint32(row[add+1]) - uint32(row[drop+1])
			sumB += uint32(row[add+2]) - uint32(row[drop+2])
			sumA += uint32(row[add+3]) - uint32(row[drop+3])
		}
	}
}

func blurVertical(src, dst *image.RGBA, radius int) {
	bounds := src.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()
	if width == 0 || height == 0 {
		return
	}
	window := uint32(2*radius + 1)
	srcBase := src.PixOffset(bounds.Min.X, bounds.Min.Y)
	dstBase := dst.PixOffset(bounds.Min.X, bounds.Min.Y)

	clamp := func(y int) int {
		if y < 0 {
			return 0
		}
		if y >= height {
			return height - 1
		}
		return y
	}

	for x := 0; x < width; x++ {
		column := x * 4

		var sumR, sumG, sumB, sumA uint32
		for i := -radius; i <= radius; i++ {
			offset := srcBase + clamp(i)*src.Stride + column
			sumR += uint32(src.Pix[offset])
			sumG += uint32(src.Pix[offset+1])
			sumB += uint32(src.Pix[offset+2])
			sumA += uint32(src.Pix[offset+3])
		}

		for y := 0; y < height; y++ {
			offset := dstBase + y*dst.Stride + column
			dst.Pix[offset] = uint8(sumR / window)
			dst.Pix[offset+1] = uint8(sumG / window)
			dst.Pix[offset+2] = uint8(sumB / window)
			dst.Pix[offset+3] = uint8(sumA / window)

			add := srcBase + clamp(y+radius+1)*src.Stride + column
			drop := srcBase + clamp(y-radius)*src.Stride + column
			sumR += uint32(src.Pix[add]) - uint32(src.Pix[drop])
			sumG += uint32(src.Pix[add+1]) - uint32(src.Pix[drop+1])
			sumB += uint32(src.Pix[add+2]) - uint32(src.Pix[drop+2])
			sumA += uint32(src.Pix[add+3]) - uint32(src.Pix[drop+3])
		}
	}
}
