package stipple

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Params controls a stippling run. Zero values are not usable; start from
// DefaultParams and override fields, or load a YAML file with LoadParams.
type Params struct {
	// InitialPoints is the number of random seed points (≥ 1).
	InitialPoints int `yaml:"initialPoints"`
	// InitialPointSize is the stipple diameter in density-image pixels when
	// adaptive sizing is off (> 0).
	InitialPointSize float64 `yaml:"initialPointSize"`

	// AdaptivePointSize derives each stipple's diameter from its cell's
	// average density, interpolated over PointSize.
	AdaptivePointSize bool `yaml:"adaptivePointSize"`
	// PointSize is the diameter range for adaptive sizing (Min ≤ Max, both > 0).
	PointSize Range `yaml:"pointSize"`

	// SuperSamplingFactor upscales the density image by an integer factor
	// for higher partition precision. Must be 1, 2, or 3.
	SuperSamplingFactor int `yaml:"superSamplingFactor"`
	// MaxIterations is the hard cap on completed iterations (≥ 1).
	MaxIterations int `yaml:"maxIterations"`

	// Hysteresis is the base width of the tolerance band around a cell's
	// target density load, in (0, 3]. Smaller values split and merge more
	// aggressively per iteration.
	Hysteresis float64 `yaml:"hysteresis"`
	// HysteresisDelta is added to the hysteresis every iteration when
	// AdaptiveHysteresis is set (≥ 0). Widening the band over time forces
	// convergence.
	HysteresisDelta float64 `yaml:"hysteresisDelta"`
	// AdaptiveHysteresis enables the per-iteration HysteresisDelta increment.
	AdaptiveHysteresis bool `yaml:"adaptiveHysteresis"`

	// Seed initializes both random streams (seed placement and split
	// jitter). Zero selects a random seed; any other value makes runs
	// reproducible.
	Seed uint64 `yaml:"seed"`
}

// DefaultParams returns the parameter set the original algorithm ships with:
// one seed point, adaptive sizing in [2, 4], 50 iterations, and an adaptive
// hysteresis ramp that spans the base value over the full run.
func DefaultParams() Params {
	const maxIter = 50
	const hysteresis = 0.6
	return Params{
		InitialPoints:       1,
		InitialPointSize:    4.0,
		AdaptivePointSize:   true,
		PointSize:           Range{Min: 2.0, Max: 4.0},
		SuperSamplingFactor: 1,
		MaxIterations:       maxIter,
		Hysteresis:          hysteresis,
		HysteresisDelta:     hysteresis / (maxIter - 1),
		AdaptiveHysteresis:  true,
	}
}

// Validate checks all numeric ranges. The returned error wraps
// ErrInvalidParams and names the offending field.
func (p Params) Validate() error {
	switch {
	case p.InitialPoints < 1:
		return fmt.Errorf("%w: initialPoints %d, must be >= 1", ErrInvalidParams, p.InitialPoints)
	case p.InitialPointSize <= 0:
		return fmt.Errorf("%w: initialPointSize %g, must be > 0", ErrInvalidParams, p.InitialPointSize)
	case p.AdaptivePointSize && (p.PointSize.Min <= 0 || p.PointSize.Max <= 0):
		return fmt.Errorf("%w: pointSize range %g..%g, bounds must be > 0", ErrInvalidParams, p.PointSize.Min, p.PointSize.Max)
	case p.AdaptivePointSize && p.PointSize.Min > p.PointSize.Max:
		return fmt.Errorf("%w: pointSize min %g > max %g", ErrInvalidParams, p.PointSize.Min, p.PointSize.Max)
	case p.SuperSamplingFactor < 1 || p.SuperSamplingFactor > 3:
		return fmt.Errorf("%w: superSamplingFactor %d, must be 1, 2, or 3", ErrInvalidParams, p.SuperSamplingFactor)
	case p.MaxIterations < 1:
		return fmt.Errorf("%w: maxIterations %d, must be >= 1", ErrInvalidParams, p.MaxIterations)
	case p.Hysteresis <= 0 || p.Hysteresis > 3:
		return fmt.Errorf("%w: hysteresis %g, must be in (0, 3]", ErrInvalidParams, p.Hysteresis)
	case p.HysteresisDelta < 0:
		return fmt.Errorf("%w: hysteresisDelta %g, must be >= 0", ErrInvalidParams, p.HysteresisDelta)
	}
	return nil
}

// LoadParams reads a YAML parameter file. Fields absent from the file keep
// their DefaultParams values.
func LoadParams(path string) (Params, error) {
	p := DefaultParams()
	data, err := os.ReadFile(path)
	if err != nil {
		return p, fmt.Errorf("load params: %w", err)
	}
	if err := yaml.Unmarshal(data, &p); err != nil {
		return p, fmt.Errorf("parse params %s: %w", path, err)
	}
	return p, nil
}
