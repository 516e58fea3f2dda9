// Command stipple converts a grayscale image into a stipple drawing.
//
// Usage:
//
//	stipple [options] <input-image> <output-file>
//
// The output format follows the file extension: .svg produces a vector file
// with one circle per stipple, anything else a raster PNG. Exit codes: 0 on
// success, 2 for invalid parameters, 3 for unreadable or unsupported input,
// 4 when the partition backend fails to initialize.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"os/signal"
	"strings"

	"github.com/phanxgames/stipple"
)

const (
	exitOK            = 0
	exitInvalidParams = 2
	exitBadInput      = 3
	exitBackendInit   = 4
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("stipple", flag.ContinueOnError)
	fs.Usage = func() { printUsage(fs) }

	def := stipple.DefaultParams()
	var (
		configPath = fs.String("config", "", "YAML parameter file (flags override its values)")
		points     = fs.Int("n", def.InitialPoints, "initial number of seed points")
		size       = fs.Float64("size", def.InitialPointSize, "stipple diameter when adaptive sizing is off")
		adaptive   = fs.Bool("adaptive", def.AdaptivePointSize, "derive stipple diameters from cell density")
		sizeMin    = fs.Float64("min", def.PointSize.Min, "adaptive diameter lower bound")
		sizeMax    = fs.Float64("max", def.PointSize.Max, "adaptive diameter upper bound")
		super      = fs.Int("ss", def.SuperSamplingFactor, "supersampling factor (1-3)")
		iterations = fs.Int("iterations", def.MaxIterations, "iteration cap")
		hysteresis = fs.Float64("hysteresis", def.Hysteresis, "tolerance band width (0, 3]")
		delta      = fs.Float64("delta", def.HysteresisDelta, "per-iteration hysteresis increment")
		adaptHyst  = fs.Bool("adaptive-hysteresis", def.AdaptiveHysteresis, "widen the hysteresis band every iteration")
		seed       = fs.Uint64("seed", 0, "random seed (0 = random)")
		backendArg = fs.String("backend", "jumpflood", "partition backend: jumpflood or cone")
		view       = fs.Bool("view", false, "show a live preview window while relaxing")
		quiet      = fs.Bool("quiet", false, "suppress per-iteration progress output")
	)
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		return exitInvalidParams
	}
	if fs.NArg() != 2 {
		fmt.Fprintln(os.Stderr, "stipple: expected <input-image> and <output-file> arguments")
		printUsage(fs)
		return exitInvalidParams
	}
	inputPath := fs.Arg(0)
	outputPath := fs.Arg(1)

	params := def
	if *configPath != "" {
		var err error
		params, err = stipple.LoadParams(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "stipple: %v\n", err)
			return exitInvalidParams
		}
	}
	// Explicit flags win over config-file values.
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "n":
			params.InitialPoints = *points
		case "size":
			params.InitialPointSize = *size
		case "adaptive":
			params.AdaptivePointSize = *adaptive
		case "min":
			params.PointSize.Min = *sizeMin
		case "max":
			params.PointSize.Max = *sizeMax
		case "ss":
			params.SuperSamplingFactor = *super
		case "iterations":
			params.MaxIterations = *iterations
		case "hysteresis":
			params.Hysteresis = *hysteresis
		case "delta":
			params.HysteresisDelta = *delta
		case "adaptive-hysteresis":
			params.AdaptiveHysteresis = *adaptHyst
		case "seed":
			params.Seed = *seed
		}
	})

	var backend stipple.Backend
	switch *backendArg {
	case "jumpflood":
		backend = stipple.BackendJumpFlood
	case "cone":
		backend = stipple.BackendCone
	default:
		fmt.Fprintf(os.Stderr, "stipple: unknown backend %q (want jumpflood or cone)\n", *backendArg)
		return exitInvalidParams
	}

	img, err := loadImage(inputPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "stipple: %v\n", err)
		return exitBadInput
	}

	st, err := stipple.NewStippler(img, params, backend)
	if err != nil {
		fmt.Fprintf(os.Stderr, "stipple: %v\n", err)
		switch {
		case errors.Is(err, stipple.ErrInvalidParams):
			return exitInvalidParams
		case errors.Is(err, stipple.ErrEmptyDensity):
			return exitBadInput
		case errors.Is(err, stipple.ErrBackendInit):
			return exitBackendInit
		default:
			return 1
		}
	}

	var status *stipple.StatusLine
	if !*quiet {
		status = stipple.NewStatusLine(os.Stderr)
		st.OnStatus = status.Report
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var dots []stipple.Stipple
	if *view {
		dots, err = runWithViewer(ctx, st)
	} else {
		dots, err = st.Stipple(ctx)
	}
	if status != nil {
		status.Done()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "stipple: %v\n", err)
		if errors.Is(err, stipple.ErrBackendInit) {
			return exitBackendInit
		}
		return 1
	}

	if err := export(outputPath, dots, st.Width(), st.Height()); err != nil {
		fmt.Fprintf(os.Stderr, "stipple: %v\n", err)
		return 1
	}
	if !*quiet {
		fmt.Fprintf(os.Stderr, "wrote %d stipples to %s\n", len(dots), outputPath)
	}
	return exitOK
}

// runWithViewer relaxes on a worker goroutine while the preview window runs
// on this one, then returns the final stipple set once both are done.
func runWithViewer(ctx context.Context, st *stipple.Stippler) ([]stipple.Stipple, error) {
	v := stipple.NewViewer(st.Width(), st.Height())
	st.OnStipples = v.SetStipples
	prevStatus := st.OnStatus
	v2 := v.SetStatus
	st.OnStatus = func(s stipple.Status) {
		v2(s)
		if prevStatus != nil {
			prevStatus(s)
		}
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	type result struct {
		dots []stipple.Stipple
		err  error
	}
	done := make(chan result, 1)
	go func() {
		dots, err := st.Stipple(runCtx)
		done <- result{dots, err}
	}()

	// Closing the window cancels a still-running relaxation; the last
	// completed iteration is returned.
	viewErr := stipple.RunViewer(v, "stipple")
	cancel()
	r := <-done
	if viewErr != nil {
		return nil, fmt.Errorf("viewer: %w", viewErr)
	}
	return r.dots, r.err
}

// loadImage decodes the input image in any registered format.
func loadImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return img, nil
}

// export writes dots in the format selected by the output extension.
func export(path string, dots []stipple.Stipple, w, h int) error {
	if strings.HasSuffix(strings.ToLower(path), ".svg") {
		return stipple.WriteSVG(path, dots, w, h)
	}
	return stipple.WritePNG(path, dots, w, h)
}

func printUsage(fs *flag.FlagSet) {
	fmt.Fprintf(os.Stderr, `Usage: stipple [options] <input-image> <output-file>

Converts a grayscale image into a stipple drawing by weighted
Linde-Buzo-Gray relaxation. The output format follows the file
extension: .svg for vector output, anything else for raster PNG.

Options:
`)
	fs.PrintDefaults()
}
