package stipple

import (
	"context"
	"fmt"
	"image"
	"math"
	"math/rand/v2"
	"os"
)

// Stippler runs the weighted Linde-Buzo-Gray relaxation loop. Create one with
// NewStippler, optionally set the reporter callbacks, then call Stipple.
//
// A Stippler is single-threaded: one run is a linear sequence of iterations
// and the reporters are invoked synchronously between them, on the goroutine
// that called Stipple. Internal parallelism is confined to the leaf
// components (partition, accumulation).
type Stippler struct {
	// OnStipples, when set, receives the full stipple vector after every
	// iteration. The slice is owned by the controller and rebuilt next
	// iteration; copy it if it outlives the callback.
	OnStipples StipplesFunc
	// OnStatus, when set, receives the Status record after every iteration,
	// following OnStipples.
	OnStatus StatusFunc

	params  Params
	density *DensityMap
	part    Partitioner
	state   State

	placeRand  *rand.Rand // initial seed placement
	jitterRand *rand.Rand // split jitter
}

// NewStippler validates params, builds the density map from img (including
// the supersampling upscale), and constructs the selected partition backend
// sized to it. Errors wrap ErrInvalidParams, ErrEmptyDensity, or
// ErrBackendInit respectively.
func NewStippler(img image.Image, p Params, b Backend) (*Stippler, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	d, err := NewDensityMap(img, p.SuperSamplingFactor)
	if err != nil {
		return nil, err
	}
	part, err := NewPartitioner(b, d.Width(), d.Height())
	if err != nil {
		return nil, err
	}
	return newStippler(d, p, part), nil
}

// NewStipplerWithPartitioner wires a prebuilt density map and partition
// backend together. The partitioner's grid must match the density map's
// dimensions; use this to supply a custom Partitioner implementation.
func NewStipplerWithPartitioner(d *DensityMap, p Params, part Partitioner) (*Stippler, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return newStippler(d, p, part), nil
}

func newStippler(d *DensityMap, p Params, part Partitioner) *Stippler {
	seed := p.Seed
	if seed == 0 {
		seed = rand.Uint64()
	}
	return &Stippler{
		params:     p,
		density:    d,
		part:       part,
		placeRand:  rand.New(rand.NewPCG(seed, 0x9e3779b97f4a7c15)),
		jitterRand: rand.New(rand.NewPCG(seed, 0xd1b54a32d192ed03)),
	}
}

// Width returns the density grid width the stippler relaxes against
// (input width × supersampling). Stipple diameters are in these pixel units.
func (s *Stippler) Width() int { return s.density.Width() }

// Height returns the density grid height.
func (s *Stippler) Height() int { return s.density.Height() }

// State reports where the stippler is in its lifecycle.
func (s *Stippler) State() State { return s.state }

// Stipple runs the relaxation to a fixed point or the iteration cap and
// returns the final stipple set.
//
// Each iteration partitions the grid on the current points, accumulates
// per-cell statistics, and applies the split/keep/merge rule under the
// current hysteresis band. Cancelling ctx stops the run cooperatively at the
// next iteration boundary; that is a normal terminal state, and the set from
// the last completed iteration is returned with a nil error.
func (s *Stippler) Stipple(ctx context.Context) ([]Stipple, error) {
	if s.state == StateRunning {
		return nil, fmt.Errorf("stipple: run already in progress")
	}
	s.state = StateRunning
	defer func() { s.state = StateFinished }()

	p := s.params
	ss := float64(p.SuperSamplingFactor)

	stipples := make([]Stipple, p.InitialPoints)
	for i := range stipples {
		stipples[i] = Stipple{
			Pos: Vec2{
				X: 0.01 + 0.98*s.placeRand.Float64(),
				Y: 0.01 + 0.98*s.placeRand.Float64(),
			},
			Diameter: p.InitialPointSize,
			Tag:      TagFresh,
		}
	}

	points := make([]Vec2, 0, len(stipples))

	for iter := 0; ; iter++ {
		if ctx.Err() != nil {
			return stipples, nil
		}

		hyst := p.Hysteresis
		if p.AdaptiveHysteresis {
			hyst += float64(iter) * p.HysteresisDelta
		}

		points = points[:0]
		for _, st := range stipples {
			points = append(points, st.Pos)
		}
		indexMap, err := s.part.Partition(points)
		if err != nil {
			return nil, err
		}
		cells, err := AccumulateCells(indexMap, s.density)
		if err != nil {
			return nil, err
		}

		next := make([]Stipple, 0, len(stipples))
		splits, merges := 0, 0

		for i := range cells {
			cell := &cells[i]

			diameter := p.InitialPointSize
			if p.AdaptivePointSize && cell.Area > 0 {
				avgIntensitySqrt := math.Sqrt(cell.SumDensity / cell.Area)
				diameter = p.PointSize.Lerp(avgIntensitySqrt)
			}

			pointArea := math.Pi * diameter * diameter / 4
			lower := (1 - hyst/2) * pointArea * ss * ss
			upper := (1 + hyst/2) * pointArea * ss * ss

			switch {
			case cell.Area == 0 || cell.SumDensity < lower:
				merges++

			case cell.SumDensity < upper:
				next = append(next, Stipple{Pos: cell.Centroid, Diameter: diameter, Tag: TagFresh})

			default:
				a, b := s.splitCell(cell)
				a.Diameter = diameter
				b.Diameter = diameter
				next = append(next, a, b)
				splits++
			}
		}

		stipples = next
		s.emitStipples(stipples)
		s.emitStatus(Status{
			Iteration:  iter,
			Size:       len(stipples),
			Splits:     splits,
			Merges:     merges,
			Hysteresis: hyst,
		})

		if splits == 0 && merges == 0 {
			break
		}
		if len(stipples) == 0 {
			// Everything merged away; there is nothing left to relax.
			break
		}
		if iter+1 >= p.MaxIterations {
			break
		}
	}
	return stipples, nil
}

// splitCell produces the two replacement stipples of an over-covered cell,
// placed symmetrically about the centroid along the cell's principal axis at
// half the radius of the equivalent-area disk, jittered to break the exact
// symmetry that could make the next partition oscillate.
func (s *Stippler) splitCell(cell *VoronoiCell) (Stipple, Stipple) {
	fw := float64(s.density.Width())
	fh := float64(s.density.Height())

	area := math.Max(1, cell.Area)
	offset := 0.5 * math.Sqrt(area/math.Pi)
	v := Vec2{
		X: offset * math.Cos(cell.Orientation) / fw,
		Y: offset * math.Sin(cell.Orientation) / fh,
	}

	a := clampVec(Vec2{X: cell.Centroid.X - v.X, Y: cell.Centroid.Y - v.Y})
	b := clampVec(Vec2{X: cell.Centroid.X + v.X, Y: cell.Centroid.Y + v.Y})
	a = clampVec(Vec2{X: a.X + s.jitter(), Y: a.Y + s.jitter()})
	b = clampVec(Vec2{X: b.X + s.jitter(), Y: b.Y + s.jitter()})

	return Stipple{Pos: a, Tag: TagSplit}, Stipple{Pos: b, Tag: TagSplit}
}

// jitter returns a uniform sample from [−0.001, 0.001].
func (s *Stippler) jitter() float64 {
	return s.jitterRand.Float64()*0.002 - 0.001
}

func (s *Stippler) emitStipples(v []Stipple) {
	if s.OnStipples == nil {
		return
	}
	defer reporterRecover("stipples")
	s.OnStipples(v)
}

func (s *Stippler) emitStatus(st Status) {
	if s.OnStatus == nil {
		return
	}
	defer reporterRecover("status")
	s.OnStatus(st)
}

// reporterRecover keeps a panicking reporter from tearing down the iteration.
// Reporter panics are logic errors in the caller; they are reported and
// swallowed.
func reporterRecover(which string) {
	if r := recover(); r != nil {
		fmt.Fprintf(os.Stderr, "[stipple] %s reporter panicked: %v\n", which, r)
	}
}

func clampVec(v Vec2) Vec2 {
	return Vec2{X: clamp01(v.X), Y: clamp01(v.Y)}
}
