package stipple

// jumpFlood computes the index map with the 1+JFA jump-flooding scheme: an
// initial step-1 pass followed by halving step sizes. Ownership propagates
// from each generator's seed pixel outward; every pixel compares the sites
// claimed by its 8 neighbors at the current step distance and adopts the
// nearest. Distance ties resolve to the lower generator index, so the output
// is deterministic.
type jumpFlood struct {
	width  int
	height int

	owner   []int32 // current ownership, -1 while unclaimed
	scratch []int32 // write buffer for the running pass
	sites   []Vec2  // generator positions in pixel coordinates
}

func newJumpFlood(w, h int) *jumpFlood {
	return &jumpFlood{
		width:   w,
		height:  h,
		owner:   make([]int32, w*h),
		scratch: make([]int32, w*h),
	}
}

// Partition implements Partitioner.
func (j *jumpFlood) Partition(points []Vec2) (*IndexMap, error) {
	if err := checkGenerators(points); err != nil {
		return nil, err
	}

	w, h := j.width, j.height
	fw, fh := float64(w), float64(h)

	// Generator positions in pixel space, clamped to the grid.
	if cap(j.sites) < len(points) {
		j.sites = make([]Vec2, len(points))
	}
	j.sites = j.sites[:len(points)]
	for i, p := range points {
		j.sites[i] = Vec2{X: clamp01(p.X) * fw, Y: clamp01(p.Y) * fh}
	}

	for i := range j.owner {
		j.owner[i] = -1
	}

	// Seed: each site claims its containing pixel; on collision the site
	// nearer the pixel center wins, ties to the lower index.
	for i, s := range j.sites {
		x := clampInt(int(s.X), 0, w-1)
		y := clampInt(int(s.Y), 0, h-1)
		at := y*w + x
		if cur := j.owner[at]; cur >= 0 {
			if j.pixelDist2(x, y, cur) <= j.pixelDist2(x, y, int32(i)) {
				continue
			}
		}
		j.owner[at] = int32(i)
	}

	// 1+JFA: step 1 first, then the standard halving schedule.
	j.pass(1)
	maxDim := w
	if h > maxDim {
		maxDim = h
	}
	step := 1
	for step < maxDim {
		step <<= 1
	}
	for step >>= 1; step >= 1; step >>= 1 {
		j.pass(step)
	}

	m := newIndexMap(w, h, len(points))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			o := j.owner[y*w+x]
			if o < 0 {
				// Flood missed the pixel (cannot happen on sane grids, but
				// the IndexMap invariant is unconditional).
				o = nearestSiteScan(j.sites, x, y)
			}
			m.set(x, y, uint32(o))
		}
	}
	return m, nil
}

// pass runs one jump-flood round at the given step size, reading owner and
// writing scratch, then swaps the buffers.
func (j *jumpFlood) pass(step int) {
	w, h := j.width, j.height
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			best := j.owner[y*w+x]
			bestD := 0.0
			if best >= 0 {
				bestD = j.pixelDist2(x, y, best)
			}
			for dy := -step; dy <= step; dy += step {
				ny := y + dy
				if ny < 0 || ny >= h {
					continue
				}
				for dx := -step; dx <= step; dx += step {
					nx := x + dx
					if nx < 0 || nx >= w {
						continue
					}
					cand := j.owner[ny*w+nx]
					if cand < 0 || cand == best {
						continue
					}
					d := j.pixelDist2(x, y, cand)
					if best < 0 || d < bestD || (d == bestD && cand < best) {
						best = cand
						bestD = d
					}
				}
			}
			j.scratch[y*w+x] = best
		}
	}
	j.owner, j.scratch = j.scratch, j.owner
}

// pixelDist2 returns the squared distance from the center of pixel (x, y) to
// site i, in pixel units.
func (j *jumpFlood) pixelDist2(x, y int, i int32) float64 {
	return sitePixelDist2(j.sites, x, y, i)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
