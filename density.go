package stipple

import (
	"fmt"
	"image"
	idraw "image/draw"

	"golang.org/x/image/draw"
)

// densityEpsilon is the weight floor for fully white pixels, so that every
// pixel contributes a strictly positive weight to its cell.
const densityEpsilon = 0x1p-52

// DensityMap is the 8-bit grayscale weight grid one stippling run relaxes
// against. It is immutable once built and safe for concurrent reads.
//
// Each pixel contributes weight max(1 − gray/255, ε): black pixels weigh 1,
// white pixels a vanishingly small ε > 0.
type DensityMap struct {
	width  int
	height int
	gray   []uint8
}

// NewDensityMap converts img to 8-bit luminance, upscaled by the integer
// superSampling factor (≥ 1) with Catmull-Rom resampling. Returns an error
// wrapping ErrEmptyDensity for a zero-sized image.
func NewDensityMap(img image.Image, superSampling int) (*DensityMap, error) {
	if superSampling < 1 {
		superSampling = 1
	}
	b := img.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, fmt.Errorf("%w: %dx%d input", ErrEmptyDensity, b.Dx(), b.Dy())
	}

	w := b.Dx() * superSampling
	h := b.Dy() * superSampling
	dst := image.NewGray(image.Rect(0, 0, w, h))
	if superSampling == 1 {
		idraw.Draw(dst, dst.Bounds(), img, b.Min, idraw.Src)
	} else {
		draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	}

	d := &DensityMap{width: w, height: h, gray: make([]uint8, w*h)}
	for y := 0; y < h; y++ {
		copy(d.gray[y*w:(y+1)*w], dst.Pix[y*dst.Stride:y*dst.Stride+w])
	}
	return d, nil
}

// Width returns the density grid width in pixels (input width × supersampling).
func (d *DensityMap) Width() int { return d.width }

// Height returns the density grid height in pixels.
func (d *DensityMap) Height() int { return d.height }

// GrayAt returns the 8-bit luminance of pixel (x, y).
func (d *DensityMap) GrayAt(x, y int) uint8 {
	return d.gray[y*d.width+x]
}

// Weight returns the density weight of pixel (x, y):
// max(1 − gray/255, ε).
func (d *DensityMap) Weight(x, y int) float64 {
	w := 1.0 - float64(d.gray[y*d.width+x])/255.0
	if w < densityEpsilon {
		return densityEpsilon
	}
	return w
}

// TotalWeight returns the sum of Weight over all pixels.
func (d *DensityMap) TotalWeight() float64 {
	var sum float64
	for _, g := range d.gray {
		w := 1.0 - float64(g)/255.0
		if w < densityEpsilon {
			w = densityEpsilon
		}
		sum += w
	}
	return sum
}
