package stipple

import (
	"fmt"
	"math"
	"os"
)

// coneRadius is the cone base radius in units of the grid's larger dimension.
// From any apex inside the grid, a radius of √2·max(W,H) pixels reaches every
// pixel, so the depth buffer is fully covered.
const coneRadius = math.Sqrt2

// coneRaster computes the index map by rendering one right circular cone of
// unit slope per generator, apex up, into a software color+depth framebuffer.
// With a depth test, the surviving fragment at each pixel belongs to the cone
// whose apex is nearest, i.e. the nearest site. The generator index rides
// along as a 24-bit RGB color and is decoded from the framebuffer afterwards.
//
// Cones are meshed as triangle fans. The slice count is chosen so the radial
// sagitta error stays under one pixel; the fan is rendered in generator order
// and depth ties keep the earlier fragment, so the output is deterministic
// with ties resolving to the lower index.
type coneRaster struct {
	width  int
	height int

	slices  int       // fan subdivisions for the 1-pixel error bound
	ringX   []float64 // unit ring offsets, slices+1 entries (closed)
	ringY   []float64
	pixRad  float64 // ring radius in pixels
	color   []uint8 // 3 bytes per pixel
	depth   []float64
	sites   []Vec2 // pixel-space positions of the current generators
	unowned []int32
}

func newConeRaster(w, h int) *coneRaster {
	maxDim := w
	if h > maxDim {
		maxDim = h
	}
	pixRad := coneRadius * float64(maxDim)

	// Smallest slice count keeping the sagitta below one pixel:
	// n = ⌈π / acos(1 − 1/R)⌉, the collapsed form of
	// ⌈2π / (2·acos((R−1)/R))⌉.
	n := int(math.Ceil(math.Pi / math.Acos(1-1/pixRad)))
	if n < 3 {
		n = 3
	}

	c := &coneRaster{
		width:  w,
		height: h,
		slices: n,
		ringX:  make([]float64, n+1),
		ringY:  make([]float64, n+1),
		pixRad: pixRad,
		color:  make([]uint8, 3*w*h),
		depth:  make([]float64, w*h),
	}
	incr := 2 * math.Pi / float64(n)
	for i := 0; i <= n; i++ {
		c.ringX[i] = math.Cos(float64(i) * incr)
		c.ringY[i] = math.Sin(float64(i) * incr)
	}
	// Close the fan exactly on the first ring vertex.
	c.ringX[n] = c.ringX[0]
	c.ringY[n] = c.ringY[0]
	return c
}

// Partition implements Partitioner.
func (c *coneRaster) Partition(points []Vec2) (*IndexMap, error) {
	if err := checkGenerators(points); err != nil {
		return nil, err
	}

	w, h := c.width, c.height
	for i := range c.depth {
		c.depth[i] = math.Inf(1)
	}
	for i := range c.color {
		c.color[i] = 0xFF
	}

	if cap(c.sites) < len(points) {
		c.sites = make([]Vec2, len(points))
	}
	c.sites = c.sites[:len(points)]
	for i, p := range points {
		c.sites[i] = Vec2{X: clamp01(p.X) * float64(w), Y: clamp01(p.Y) * float64(h)}
	}

	for i, s := range c.sites {
		c.renderCone(uint32(i), s.X, s.Y)
	}

	// Decode the framebuffer back to indices.
	m := newIndexMap(w, h, len(points))
	wrong := 0
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			o := y*w + x
			idx := DecodeIndex(c.color[3*o], c.color[3*o+1], c.color[3*o+2])
			if idx >= uint32(len(points)) {
				wrong++
				idx = uint32(nearestSiteScan(c.sites, x, y))
			}
			m.set(x, y, idx)
		}
	}
	if wrong > 0 {
		fmt.Fprintf(os.Stderr, "[stipple] cone raster: %d undecodable pixels repaired by scan\n", wrong)
	}
	return m, nil
}

// renderCone rasterizes the triangle fan of one cone with apex at pixel
// position (ax, ay). Fragment depth is the interpolated distance from the
// apex; strictly smaller depth wins.
func (c *coneRaster) renderCone(index uint32, ax, ay float64) {
	r, g, b := EncodeIndex(index)
	for k := 0; k < c.slices; k++ {
		bx := ax + c.pixRad*c.ringX[k]
		by := ay + c.pixRad*c.ringY[k]
		cx := ax + c.pixRad*c.ringX[k+1]
		cy := ay + c.pixRad*c.ringY[k+1]
		c.rasterTriangle(ax, ay, bx, by, cx, cy, 0, c.pixRad, c.pixRad, r, g, b)
	}
}

// rasterTriangle samples pixel centers inside the triangle (a, b, c) with
// vertex depths (za, zb, zc), interpolating depth barycentrically and
// applying the depth test.
func (c *coneRaster) rasterTriangle(axf, ayf, bxf, byf, cxf, cyf, za, zb, zc float64, r, g, b uint8) {
	area := (bxf-axf)*(cyf-ayf) - (byf-ayf)*(cxf-axf)
	if area == 0 {
		return
	}

	minX := clampInt(int(math.Floor(min3(axf, bxf, cxf))), 0, c.width-1)
	maxX := clampInt(int(math.Ceil(max3(axf, bxf, cxf))), 0, c.width-1)
	minY := clampInt(int(math.Floor(min3(ayf, byf, cyf))), 0, c.height-1)
	maxY := clampInt(int(math.Ceil(max3(ayf, byf, cyf))), 0, c.height-1)

	for y := minY; y <= maxY; y++ {
		py := float64(y) + 0.5
		for x := minX; x <= maxX; x++ {
			px := float64(x) + 0.5

			w0 := (cxf-bxf)*(py-byf) - (cyf-byf)*(px-bxf)
			w1 := (axf-cxf)*(py-cyf) - (ayf-cyf)*(px-cxf)
			w2 := (bxf-axf)*(py-ayf) - (byf-ayf)*(px-axf)
			if area > 0 {
				if w0 < 0 || w1 < 0 || w2 < 0 {
					continue
				}
			} else {
				if w0 > 0 || w1 > 0 || w2 > 0 {
					continue
				}
			}

			z := (w0*za + w1*zb + w2*zc) / area
			o := y*c.width + x
			if z < c.depth[o] {
				c.depth[o] = z
				c.color[3*o] = r
				c.color[3*o+1] = g
				c.color[3*o+2] = b
			}
		}
	}
}

func min3(a, b, c float64) float64 {
	return math.Min(a, math.Min(b, c))
}

func max3(a, b, c float64) float64 {
	return math.Max(a, math.Max(b, c))
}
