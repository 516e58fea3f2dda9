package stipple

import (
	"context"
	"errors"
	"image"
	"math"
	"testing"
)

// collector records every reporter delivery of a run.
type collector struct {
	sets     [][]Stipple
	statuses []Status
}

func (c *collector) attach(s *Stippler) {
	s.OnStipples = func(v []Stipple) {
		cp := make([]Stipple, len(v))
		copy(cp, v)
		c.sets = append(c.sets, cp)
	}
	s.OnStatus = func(st Status) {
		c.statuses = append(c.statuses, st)
	}
}

func (c *collector) last() Status {
	return c.statuses[len(c.statuses)-1]
}

func mustStippler(t *testing.T, img image.Image, p Params) *Stippler {
	t.Helper()
	s, err := NewStippler(img, p, BackendJumpFlood)
	if err != nil {
		t.Fatalf("NewStippler: %v", err)
	}
	return s
}

// --- construction and validation ---

func TestNewStipplerValidation(t *testing.T) {
	img := uniformImage(8, 8, 0)
	tests := []struct {
		name   string
		mutate func(*Params)
	}{
		{"zero points", func(p *Params) { p.InitialPoints = 0 }},
		{"zero size", func(p *Params) { p.InitialPointSize = 0 }},
		{"inverted range", func(p *Params) { p.PointSize = Range{Min: 5, Max: 2} }},
		{"bad supersampling", func(p *Params) { p.SuperSamplingFactor = 4 }},
		{"zero iterations", func(p *Params) { p.MaxIterations = 0 }},
		{"zero hysteresis", func(p *Params) { p.Hysteresis = 0 }},
		{"huge hysteresis", func(p *Params) { p.Hysteresis = 3.5 }},
		{"negative delta", func(p *Params) { p.HysteresisDelta = -0.1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := DefaultParams()
			tt.mutate(&p)
			if _, err := NewStippler(img, p, BackendJumpFlood); !errors.Is(err, ErrInvalidParams) {
				t.Errorf("err = %v, want ErrInvalidParams", err)
			}
		})
	}
}

func TestNewStipplerEmptyImage(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 0, 0))
	if _, err := NewStippler(img, DefaultParams(), BackendJumpFlood); !errors.Is(err, ErrEmptyDensity) {
		t.Fatalf("err = %v, want ErrEmptyDensity", err)
	}
}

// --- scenario: all-white input merges everything away ---

func TestWhiteInputMergesAll(t *testing.T) {
	p := Params{
		InitialPoints:       10,
		InitialPointSize:    4,
		SuperSamplingFactor: 1,
		MaxIterations:       5,
		Hysteresis:          0.6,
		Seed:                1,
	}
	s := mustStippler(t, uniformImage(64, 64, 255), p)
	var c collector
	c.attach(s)

	final, err := s.Stipple(context.Background())
	if err != nil {
		t.Fatalf("Stipple: %v", err)
	}
	if len(final) != 0 {
		t.Fatalf("final count = %d, want 0", len(final))
	}
	if s.State() != StateFinished {
		t.Errorf("state = %v, want StateFinished", s.State())
	}

	sawFullMerge := false
	for _, st := range c.statuses {
		if st.Merges == 10 {
			sawFullMerge = true
		}
	}
	if !sawFullMerge {
		t.Errorf("no status with merges == 10; statuses: %+v", c.statuses)
	}
}

// --- scenario: all-black input grows to a density-balanced count ---

func TestBlackInputGrowsToBalance(t *testing.T) {
	p := Params{
		InitialPoints:       1,
		InitialPointSize:    4,
		SuperSamplingFactor: 1,
		MaxIterations:       10,
		Hysteresis:          0.6,
		HysteresisDelta:     0.06,
		AdaptiveHysteresis:  true,
		Seed:                1,
	}
	s := mustStippler(t, uniformImage(64, 64, 0), p)
	var c collector
	c.attach(s)

	final, err := s.Stipple(context.Background())
	if err != nil {
		t.Fatalf("Stipple: %v", err)
	}

	for i := 1; i < len(c.statuses); i++ {
		if c.statuses[i].Size < c.statuses[i-1].Size {
			t.Errorf("count shrank at iteration %d: %d -> %d",
				c.statuses[i].Iteration, c.statuses[i-1].Size, c.statuses[i].Size)
		}
	}
	if len(c.statuses) > p.MaxIterations {
		t.Fatalf("%d iterations exceed cap %d", len(c.statuses), p.MaxIterations)
	}

	// The converged count balances total density against the per-point disk
	// load, within the final hysteresis band.
	h := c.last().Hysteresis
	pointArea := math.Pi * 4 * 4 / 4
	lo := 64 * 64 / (pointArea * (1 + h/2))
	hi := 64 * 64 / (pointArea * (1 - h/2))
	if n := float64(len(final)); n < lo || n > hi {
		t.Errorf("final count %d outside balance band [%.0f, %.0f] (h=%.2f)", len(final), lo, hi, h)
	}
}

// --- scenario: centered disk attracts all stipples ---

func TestDiskInputConcentratesStipples(t *testing.T) {
	p := Params{
		InitialPoints:       1,
		InitialPointSize:    4,
		AdaptivePointSize:   true,
		PointSize:           Range{Min: 2, Max: 4},
		SuperSamplingFactor: 1,
		MaxIterations:       20,
		Hysteresis:          0.6,
		HysteresisDelta:     0.6 / 19,
		AdaptiveHysteresis:  true,
		Seed:                3,
	}
	s := mustStippler(t, diskImage(32, 32, 10), p)

	final, err := s.Stipple(context.Background())
	if err != nil {
		t.Fatalf("Stipple: %v", err)
	}
	if len(final) == 0 {
		t.Fatal("no stipples survived on a dark disk")
	}
	for i, st := range final {
		dx := st.Pos.X - 0.5
		dy := st.Pos.Y - 0.5
		if d := math.Sqrt(dx*dx + dy*dy); d > 11.0/32.0 {
			t.Errorf("stipple %d at %v is %.3f from center, want <= %.3f", i, st.Pos, d, 11.0/32.0)
		}
		if st.Diameter < 2-1e-9 || st.Diameter > 4+1e-9 {
			t.Errorf("stipple %d diameter %v outside adaptive range [2, 4]", i, st.Diameter)
		}
	}
}

// --- determinism ---

func TestDeterministicRuns(t *testing.T) {
	p := Params{
		InitialPoints:       4,
		InitialPointSize:    4,
		SuperSamplingFactor: 1,
		MaxIterations:       8,
		Hysteresis:          0.6,
		HysteresisDelta:     0.06,
		AdaptiveHysteresis:  true,
		Seed:                99,
	}
	img := diskImage(48, 48, 16)

	run := func() ([][]Stipple, []Status, []Stipple) {
		s := mustStippler(t, img, p)
		var c collector
		c.attach(s)
		final, err := s.Stipple(context.Background())
		if err != nil {
			t.Fatalf("Stipple: %v", err)
		}
		return c.sets, c.statuses, final
	}

	sets1, stats1, final1 := run()
	sets2, stats2, final2 := run()

	if len(stats1) != len(stats2) {
		t.Fatalf("status counts differ: %d vs %d", len(stats1), len(stats2))
	}
	for i := range stats1 {
		if stats1[i] != stats2[i] {
			t.Fatalf("status %d differs: %+v vs %+v", i, stats1[i], stats2[i])
		}
	}
	for i := range sets1 {
		if len(sets1[i]) != len(sets2[i]) {
			t.Fatalf("set %d sizes differ", i)
		}
		for j := range sets1[i] {
			if sets1[i][j] != sets2[i][j] {
				t.Fatalf("stipple %d/%d differs: %+v vs %+v", i, j, sets1[i][j], sets2[i][j])
			}
		}
	}
	for j := range final1 {
		if final1[j] != final2[j] {
			t.Fatalf("final stipple %d differs", j)
		}
	}
}

// --- cancellation ---

func TestCancellationBetweenIterations(t *testing.T) {
	p := Params{
		InitialPoints:       1,
		InitialPointSize:    4,
		SuperSamplingFactor: 1,
		MaxIterations:       20,
		Hysteresis:          0.6,
		Seed:                7,
	}
	s := mustStippler(t, uniformImage(16, 16, 0), p)

	ctx, cancel := context.WithCancel(context.Background())
	var c collector
	c.attach(s)
	base := s.OnStatus
	s.OnStatus = func(st Status) {
		base(st)
		if st.Iteration == 3 {
			cancel()
		}
	}

	final, err := s.Stipple(ctx)
	if err != nil {
		t.Fatalf("Stipple: %v", err)
	}
	if got := c.last().Iteration; got != 3 {
		t.Fatalf("last status iteration = %d, want 3", got)
	}
	want := c.sets[len(c.sets)-1]
	if len(final) != len(want) {
		t.Fatalf("final count %d != last emitted %d", len(final), len(want))
	}
	for i := range final {
		if final[i] != want[i] {
			t.Fatalf("final stipple %d differs from the iteration-3 set", i)
		}
	}
	if s.State() != StateFinished {
		t.Errorf("state = %v, want StateFinished", s.State())
	}
}

// --- termination and fixed point ---

func TestIterationCapOfOne(t *testing.T) {
	p := Params{
		InitialPoints:       1,
		InitialPointSize:    4,
		SuperSamplingFactor: 1,
		MaxIterations:       1,
		Hysteresis:          0.6,
		Seed:                2,
	}
	s := mustStippler(t, uniformImage(32, 32, 0), p)
	var c collector
	c.attach(s)

	if _, err := s.Stipple(context.Background()); err != nil {
		t.Fatalf("Stipple: %v", err)
	}
	if len(c.statuses) != 1 {
		t.Fatalf("completed %d iterations, want exactly 1", len(c.statuses))
	}
	if c.statuses[0].Iteration != 0 {
		t.Errorf("iteration label = %d, want 0", c.statuses[0].Iteration)
	}
}

func TestConvergedRunIsFixedPoint(t *testing.T) {
	p := Params{
		InitialPoints:       1,
		InitialPointSize:    4,
		SuperSamplingFactor: 1,
		MaxIterations:       60,
		Hysteresis:          0.6,
		HysteresisDelta:     0.02,
		AdaptiveHysteresis:  true,
		Seed:                5,
	}
	s := mustStippler(t, uniformImage(32, 32, 0), p)
	var c collector
	c.attach(s)

	final, err := s.Stipple(context.Background())
	if err != nil {
		t.Fatalf("Stipple: %v", err)
	}
	last := c.last()
	if last.Splits != 0 || last.Merges != 0 {
		t.Fatalf("run hit the cap still changing: %+v", last)
	}
	emitted := c.sets[len(c.sets)-1]
	if len(final) != len(emitted) {
		t.Fatalf("final %d != last emitted %d", len(final), len(emitted))
	}
	for i := range final {
		if final[i] != emitted[i] {
			t.Fatalf("stipple %d differs from the fixed-point emission", i)
		}
	}
}

// --- stipple position invariant ---

func TestAllPositionsNormalized(t *testing.T) {
	p := Params{
		InitialPoints:       3,
		InitialPointSize:    5,
		SuperSamplingFactor: 1,
		MaxIterations:       12,
		Hysteresis:          0.4,
		HysteresisDelta:     0.05,
		AdaptiveHysteresis:  true,
		Seed:                11,
	}
	s := mustStippler(t, diskImage(40, 40, 18), p)
	var c collector
	c.attach(s)

	if _, err := s.Stipple(context.Background()); err != nil {
		t.Fatalf("Stipple: %v", err)
	}
	for i, set := range c.sets {
		for j, st := range set {
			if st.Pos.X < 0 || st.Pos.X > 1 || st.Pos.Y < 0 || st.Pos.Y > 1 {
				t.Fatalf("iteration %d stipple %d at %v outside [0,1]²", i, j, st.Pos)
			}
		}
	}
}

// --- reporter robustness ---

func TestPanickingReporterDoesNotAbort(t *testing.T) {
	p := Params{
		InitialPoints:       2,
		InitialPointSize:    4,
		SuperSamplingFactor: 1,
		MaxIterations:       3,
		Hysteresis:          0.6,
		Seed:                13,
	}
	s := mustStippler(t, uniformImage(16, 16, 0), p)
	s.OnStatus = func(Status) { panic("reporter bug") }

	if _, err := s.Stipple(context.Background()); err != nil {
		t.Fatalf("Stipple: %v", err)
	}
	if s.State() != StateFinished {
		t.Errorf("state = %v, want StateFinished", s.State())
	}
}

// --- custom partitioner wiring ---

func TestStippleWithConeBackend(t *testing.T) {
	d, err := NewDensityMap(uniformImage(12, 12, 0), 1)
	if err != nil {
		t.Fatalf("NewDensityMap: %v", err)
	}
	part, err := NewPartitioner(BackendCone, d.Width(), d.Height())
	if err != nil {
		t.Fatalf("NewPartitioner: %v", err)
	}
	p := Params{
		InitialPoints:       1,
		InitialPointSize:    4,
		SuperSamplingFactor: 1,
		MaxIterations:       8,
		Hysteresis:          0.6,
		HysteresisDelta:     0.1,
		AdaptiveHysteresis:  true,
		Seed:                23,
	}
	s, err := NewStipplerWithPartitioner(d, p, part)
	if err != nil {
		t.Fatalf("NewStipplerWithPartitioner: %v", err)
	}
	final, err := s.Stipple(context.Background())
	if err != nil {
		t.Fatalf("Stipple: %v", err)
	}
	if len(final) == 0 {
		t.Fatal("no stipples survived on a black input")
	}
}

// --- supersampling thresholds ---

func TestSuperSamplingScalesThresholds(t *testing.T) {
	// The same uniform black input must converge to a similar stipple count
	// regardless of supersampling: thresholds scale by S² to compensate for
	// the S²-times-larger density grid.
	base := Params{
		InitialPoints:       1,
		InitialPointSize:    4,
		SuperSamplingFactor: 1,
		MaxIterations:       15,
		Hysteresis:          0.6,
		HysteresisDelta:     0.06,
		AdaptiveHysteresis:  true,
		Seed:                17,
	}
	img := uniformImage(32, 32, 0)

	counts := make(map[int]int)
	for _, ss := range []int{1, 2} {
		p := base
		p.SuperSamplingFactor = ss
		s := mustStippler(t, img, p)
		final, err := s.Stipple(context.Background())
		if err != nil {
			t.Fatalf("Stipple(ss=%d): %v", ss, err)
		}
		counts[ss] = len(final)
	}

	lo, hi := float64(counts[1]), float64(counts[2])
	if lo > hi {
		lo, hi = hi, lo
	}
	if lo == 0 || hi/lo > 1.6 {
		t.Errorf("counts diverge across supersampling: %v", counts)
	}
}
