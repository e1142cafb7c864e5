package blur_test

import (
	"image"
	"image/color"
	"testing"
	"time"

	"aria/internal/blur"
)

func uniformImage(width, height int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

func TestBoxBlurPreservesUniformColor(t *testing.T) {
	c := color.RGBA{R: 120, G: 60, B: 200, A: 255}
	src := uniformImage(16, 16, c)

	out := blur.BoxBlur(src, 4)

	for y := 0; y < 16; y++ {
		for x := 0; x < 16; x++ {
			if got := out.RGBAAt(x, y); got != c {
				t.Fatalf("pixel (%d,%d) changed: %v", x, y, got)
			}
		}
	}
}

func TestBoxBlurZeroRadiusCopies(t *testing.T) {
	src := uniformImage(4, 4, color.RGBA{A: 255})
	src.SetRGBA(1, 2, color.RGBA{R: 255, A: 255})

	out := blur.BoxBlur(src, 0)

	if out == src {
		t.Fatal("expected a copy, not the source")
	}
	for i := range src.Pix {
		if out.Pix[i] != src.Pix[i] {
			t.Fatalf("pixel data differs at byte %d", i)
		}
	}
}

func TestBoxBlurSpreadsPointSource(t *testing.T) {
	src := uniformImage(9, 9, color.RGBA{A: 255})
	src.SetRGBA(4, 4, color.RGBA{R: 255, A: 255})

	out := blur.BoxBlur(src, 2)

	center := out.RGBAAt(4, 4)
	neighbor := out.RGBAAt(6, 4)
	corner := out.RGBAAt(0, 0)

	if center.R == 0 || center.R == 255 {
		t.Errorf("expected center softened, got %d", center.R)
	}
	if neighbor.R == 0 {
		t.Error("expected energy to spread within the radius")
	}
	if corner.R != 0 {
		t.Errorf("expected no energy outside the blur reach, got %d", corner.R)
	}
}

func TestBoxBlurSmoothsMoreWithLargerRadius(t *testing.T) {
	src := uniformImage(32, 1, color.RGBA{A: 255})
	for x := 16; x < 32; x++ {
		src.SetRGBA(x, 0, color.RGBA{R: 255, A: 255})
	}

	small := blur.BoxBlur(src, 1)
	large := blur.BoxBlur(src, 8)

	// The step edge should be softer under the larger radius.
	smallStep := int(small.RGBAAt(16, 0).R) - int(small.RGBAAt(15, 0).R)
	largeStep := int(large.RGBAAt(16, 0).R) - int(large.RGBAAt(15, 0).R)
	if largeStep >= smallStep {
		t.Errorf("expected larger radius to soften the edge more: small=%d large=%d", smallStep, largeStep)
	}
}

func TestToRGBAConvertsOtherFormats(t *testing.T) {
	gray := image.NewGray(image.Rect(0, 0, 3, 3))
	gray.SetGray(1, 1, color.Gray{Y: 200})

	rgba := blur.ToRGBA(gray)

	if got := rgba.RGBAAt(1, 1); got.R != 200 || got.A != 255 {
		t.Errorf("unexpected conversion result %v", got)
	}

	// Already-RGBA images pass through without copying.
	if again := blur.ToRGBA(rgba); again != rgba {
		t.Error("expected RGBA input returned as-is")
	}
}

// The running-sum kernel walks each pixel a constant number of times no
// matter how wide the window is, so a much larger radius must stay within
// the same order of magnitude as a small one on the same image.
func TestBoxBlurCostIndependentOfRadius(t *testing.T) {
	src := uniformImage(512, 384, color.RGBA{R: 120, G: 80, B: 200, A: 255})

	measure := func(radius int) time.Duration {
		best := time.Duration(1<<63 - 1)
		for i := 0; i < 5; i++ {
			start := time.Now()
			blur.BoxBlur(src, radius)
			if elapsed := time.Since(start); elapsed < best {
				best = elapsed
			}
		}
		return best
	}

	// Warm up allocators and caches before timing.
	blur.BoxBlur(src, 4)

	small := measure(4)
	large := measure(64)

	// Allow generous scheduler noise; a windowed kernel without running
	// sums would be ~16x here and fail comfortably.
	if limit := small*10 + 5*time.Millisecond; large > limit {
		t.Errorf("radius 64 took %v, radius 4 took %v; expected the same order of magnitude", large, small)
	}
}
