// Package stipple converts continuous-tone grayscale images into stipple
// drawings using weighted Linde-Buzo-Gray relaxation.
//
// The algorithm iteratively refines a point set: every pixel of the density
// image is assigned to its nearest point (a rasterized weighted Voronoi
// partition), each point moves to its cell's density-weighted centroid, and
// cells that carry too much density are split while cells that carry too
// little are merged away. Darker input pixels attract more points, so the
// local dot density approximates the input's darkness.
//
// # Quick start
//
//	img, err := loadImage("portrait.png")
//	if err != nil { ... }
//
//	st, err := stipple.NewStippler(img, stipple.DefaultParams(), stipple.BackendJumpFlood)
//	if err != nil { ... }
//
//	dots, err := st.Stipple(context.Background())
//	if err != nil { ... }
//
//	err = stipple.WriteSVG("portrait.svg", dots, st.Width(), st.Height())
//
// # Progress reporting
//
// Set [Stippler.OnStipples] and [Stippler.OnStatus] before calling
// [Stippler.Stipple] to observe each iteration. Both callbacks run
// synchronously between iterations on the calling goroutine. [Viewer]
// implements a live Ebitengine preview on top of them; run the stippler on a
// separate goroutine and the viewer on the main one:
//
//	v := stipple.NewViewer(st.Width(), st.Height())
//	st.OnStipples = v.SetStipples
//	st.OnStatus = v.SetStatus
//	go st.Stipple(ctx)
//	stipple.RunViewer(v, "relaxing...")
//
// # Partition backends
//
// Two interchangeable backends produce the pixel→point assignment:
// [BackendJumpFlood] (the default; fast flood propagation) and [BackendCone]
// (depth-tested cone rasterization, the classic GPU formulation executed in
// software). Both are deterministic; see [NewPartitioner].
package stipple
