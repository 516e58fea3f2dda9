package stipple

import (
	"fmt"
	"math"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// moments are the raw image moments of one cell, weighted by pixel density.
type moments struct {
	m00, m10, m01, m11, m20, m02 float64
}

// AccumulateCells converts an index map plus density map into one VoronoiCell
// per generator: pixel area, density sum, density-weighted centroid (shifted
// to pixel centers and normalized to [0,1]²), and principal-axis orientation.
//
// Pixel accumulation fans out across row bands with per-band local
// accumulators that are reduced in band order. For a fixed band count the
// floating-point sums are bit-stable; across different GOMAXPROCS values the
// reduction order changes, so density sums may differ by a few ULPs while
// area counts stay identical.
func AccumulateCells(m *IndexMap, d *DensityMap) ([]VoronoiCell, error) {
	workers := runtime.GOMAXPROCS(0)
	return accumulateCells(m, d, workers)
}

func accumulateCells(m *IndexMap, d *DensityMap, workers int) ([]VoronoiCell, error) {
	w, h := m.Width, m.Height
	if w != d.Width() || h != d.Height() {
		return nil, fmt.Errorf("accumulate: index map %dx%d does not match density %dx%d",
			w, h, d.Width(), d.Height())
	}

	n := m.Count()
	if workers < 1 {
		workers = 1
	}
	if workers > h {
		workers = h
	}

	locals := make([][]moments, workers)
	areas := make([][]float64, workers)
	rowsPerBand := (h + workers - 1) / workers

	var eg errgroup.Group
	for band := 0; band < workers; band++ {
		y0 := band * rowsPerBand
		y1 := y0 + rowsPerBand
		if y1 > h {
			y1 = h
		}
		eg.Go(func() error {
			mom := make([]moments, n)
			area := make([]float64, n)
			accumulateRows(m, d, y0, y1, mom, area)
			locals[band] = mom
			areas[band] = area
			return nil
		})
	}
	// Workers cannot fail; Wait is for the join.
	_ = eg.Wait()

	total := make([]moments, n)
	cells := make([]VoronoiCell, n)
	for band := 0; band < workers; band++ {
		for i := 0; i < n; i++ {
			t := &total[i]
			l := &locals[band][i]
			t.m00 += l.m00
			t.m10 += l.m10
			t.m01 += l.m01
			t.m11 += l.m11
			t.m20 += l.m20
			t.m02 += l.m02
			cells[i].Area += areas[band][i]
		}
	}

	fw, fh := float64(w), float64(h)
	for i := range cells {
		c := &cells[i]
		t := &total[i]
		c.SumDensity = t.m00
		if t.m00 <= 0 {
			continue
		}

		cx := t.m10 / t.m00
		cy := t.m01 / t.m00

		a := t.m20/t.m00 - cx*cx
		b := 2 * (t.m11/t.m00 - cx*cy)
		z := t.m02/t.m00 - cy*cy
		c.Orientation = math.Atan2(b, a-z) / 2

		c.Centroid.X = (cx + 0.5) / fw
		c.Centroid.Y = (cy + 0.5) / fh
	}
	return cells, nil
}

// accumulateRows accumulates moments and pixel areas for rows [y0, y1).
func accumulateRows(m *IndexMap, d *DensityMap, y0, y1 int, mom []moments, area []float64) {
	w := m.Width
	for y := y0; y < y1; y++ {
		fy := float64(y)
		for x := 0; x < w; x++ {
			i := m.Get(x, y)
			weight := d.Weight(x, y)
			fx := float64(x)

			area[i]++
			mm := &mom[i]
			mm.m00 += weight
			mm.m10 += fx * weight
			mm.m01 += fy * weight
			mm.m11 += fx * fy * weight
			mm.m20 += fx * fx * weight
			mm.m02 += fy * fy * weight
		}
	}
}
