package stipple

import (
	"fmt"
	"image/color"
	"math"
	"sync"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/tanema/gween"
	"github.com/tanema/gween/ease"
)

// splitFadeSeconds is how long freshly split points take to fade in.
const splitFadeSeconds = 0.35

// Viewer is a live Ebitengine preview of a stippling run. It implements
// [ebiten.Game]: stipples are drawn as fan-triangulated disks, points
// produced by a split fade in over a short tween in their debug color, and
// the latest Status is overlaid in the corner.
//
// SetStipples and SetStatus are safe to call from the goroutine running
// [Stippler.Stipple]; wire them to the stippler's reporter fields and run the
// viewer on the main goroutine via [RunViewer].
type Viewer struct {
	mu       sync.Mutex
	stipples []Stipple
	status   Status
	haveStat bool
	fade     *gween.Tween
	fadeVal  float32

	width  int
	height int

	verts []ebiten.Vertex
	inds  []uint32
	white *ebiten.Image
}

// NewViewer creates a viewer with a width×height pixel viewport, normally the
// stippler's density dimensions.
func NewViewer(width, height int) *Viewer {
	return &Viewer{width: width, height: height, fadeVal: 1}
}

// SetStipples replaces the displayed stipple set. Implements StipplesFunc.
func (v *Viewer) SetStipples(stipples []Stipple) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.stipples = append(v.stipples[:0], stipples...)
	for _, st := range stipples {
		if st.Tag == TagSplit {
			v.fade = gween.New(0, 1, splitFadeSeconds, ease.OutQuad)
			v.fadeVal = 0
			break
		}
	}
}

// SetStatus records the latest iteration status. Implements StatusFunc.
func (v *Viewer) SetStatus(st Status) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.status = st
	v.haveStat = true
}

// Update advances the split fade tween. Part of [ebiten.Game].
func (v *Viewer) Update() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.fade != nil {
		dt := float32(1.0 / float64(ebiten.TPS()))
		val, finished := v.fade.Update(dt)
		v.fadeVal = val
		if finished {
			v.fade = nil
		}
	}
	return nil
}

// Draw renders the current stipple set. Part of [ebiten.Game].
func (v *Viewer) Draw(screen *ebiten.Image) {
	screen.Fill(color.White)

	v.mu.Lock()
	v.verts, v.inds = appendDiskFans(v.verts[:0], v.inds[:0], v.stipples,
		float64(v.width), float64(v.height), v.fadeVal)
	st, haveStat := v.status, v.haveStat
	v.mu.Unlock()

	if len(v.inds) > 0 {
		if v.white == nil {
			v.white = ebiten.NewImage(1, 1)
			v.white.Fill(color.White)
		}
		var op ebiten.DrawTrianglesOptions
		op.AntiAlias = true
		screen.DrawTriangles32(v.verts, v.inds, v.white, &op)
	}

	if haveStat {
		ebitenutil.DebugPrint(screen, fmt.Sprintf("iter %d  points %d  splits %d  merges %d",
			st.Iteration, st.Size, st.Splits, st.Merges))
	}
}

// Layout reports the fixed logical screen size. Part of [ebiten.Game].
func (v *Viewer) Layout(outsideWidth, outsideHeight int) (int, int) {
	return v.width, v.height
}

// RunViewer opens a window sized to the viewer and runs the Ebitengine loop
// until the window closes. Must be called from the main goroutine.
func RunViewer(v *Viewer, title string) error {
	ebiten.SetWindowSize(v.width, v.height)
	if title != "" {
		ebiten.SetWindowTitle(title)
	}
	return ebiten.RunGame(v)
}

// appendDiskFans appends one triangle-fan disk per stipple to the vertex and
// index buffers. Positions are normalized coordinates scaled to (w, h);
// split-tagged stipples use their debug color with the given fade alpha.
func appendDiskFans(verts []ebiten.Vertex, inds []uint32, stipples []Stipple, w, h float64, fade float32) ([]ebiten.Vertex, []uint32) {
	for _, st := range stipples {
		cx := float32(st.Pos.X * w)
		cy := float32(st.Pos.Y * h)
		r := float32(st.Diameter / 2)

		segments := diskSegments(st.Diameter)
		c := st.Tag.DebugColor()
		alpha := float32(c.A)
		if st.Tag == TagSplit {
			alpha *= fade
		}
		cr := float32(c.R) * alpha
		cg := float32(c.G) * alpha
		cb := float32(c.B) * alpha

		base := uint32(len(verts))
		verts = append(verts, ebiten.Vertex{
			DstX: cx, DstY: cy, SrcX: 0.5, SrcY: 0.5,
			ColorR: cr, ColorG: cg, ColorB: cb, ColorA: alpha,
		})
		for i := 0; i <= segments; i++ {
			a := 2 * math.Pi * float64(i) / float64(segments)
			verts = append(verts, ebiten.Vertex{
				DstX: cx + r*float32(math.Cos(a)),
				DstY: cy + r*float32(math.Sin(a)),
				SrcX: 0.5, SrcY: 0.5,
				ColorR: cr, ColorG: cg, ColorB: cb, ColorA: alpha,
			})
		}
		for i := 0; i < segments; i++ {
			inds = append(inds, base, base+1+uint32(i), base+2+uint32(i))
		}
	}
	return verts, inds
}

// diskSegments picks the fan subdivision for a disk of the given diameter:
// enough for a smooth edge, bounded for large points.
func diskSegments(diameter float64) int {
	return clampInt(int(math.Ceil(math.Pi*diameter)), 8, 48)
}
