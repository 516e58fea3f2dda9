package stipple

import (
	"bufio"
	"fmt"
	"image"
	"image/png"
	"math"
	"os"
)

// WritePNG rasterizes the stipples as antialiased black disks on a white
// background at the given pixel resolution (normally the density image's
// native size) and writes the result as a PNG file.
func WritePNG(path string, stipples []Stipple, width, height int) error {
	img := RenderImage(stipples, width, height)
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return f.Close()
}

// RenderImage composites the stipples into a grayscale image. Disk edges are
// antialiased with one pixel of coverage falloff; overlapping disks keep the
// darker value.
func RenderImage(stipples []Stipple, width, height int) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, width, height))
	for i := range img.Pix {
		img.Pix[i] = 0xFF
	}

	fw, fh := float64(width), float64(height)
	for _, st := range stipples {
		cx := st.Pos.X * fw
		cy := st.Pos.Y * fh
		r := st.Diameter / 2

		minX := clampInt(int(math.Floor(cx-r-1)), 0, width-1)
		maxX := clampInt(int(math.Ceil(cx+r+1)), 0, width-1)
		minY := clampInt(int(math.Floor(cy-r-1)), 0, height-1)
		maxY := clampInt(int(math.Ceil(cy+r+1)), 0, height-1)

		for y := minY; y <= maxY; y++ {
			for x := minX; x <= maxX; x++ {
				dx := float64(x) + 0.5 - cx
				dy := float64(y) + 0.5 - cy
				cov := r - math.Sqrt(dx*dx+dy*dy) + 0.5
				if cov <= 0 {
					continue
				}
				if cov > 1 {
					cov = 1
				}
				v := uint8(math.Round(255 * (1 - cov)))
				o := y*img.Stride + x
				if v < img.Pix[o] {
					img.Pix[o] = v
				}
			}
		}
	}
	return img
}

// WriteSVG writes the stipples as one filled <circle> element each, scaled to
// a width×height viewport.
func WriteSVG(path string, stipples []Stipple, width, height int) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	w := bufio.NewWriter(f)

	fmt.Fprintf(w, "<?xml version=\"1.0\" encoding=\"UTF-8\"?>\n")
	fmt.Fprintf(w, "<svg xmlns=\"http://www.w3.org/2000/svg\" width=\"%d\" height=\"%d\" viewBox=\"0 0 %d %d\">\n",
		width, height, width, height)
	fmt.Fprintf(w, "<title>Stippling Result</title>\n")
	fmt.Fprintf(w, "<desc>Created by weighted Linde-Buzo-Gray stippling</desc>\n")
	fmt.Fprintf(w, "<rect width=\"%d\" height=\"%d\" fill=\"white\"/>\n", width, height)

	fw, fh := float64(width), float64(height)
	for _, st := range stipples {
		fmt.Fprintf(w, "<circle cx=\"%.3f\" cy=\"%.3f\" r=\"%.3f\" fill=\"black\"/>\n",
			st.Pos.X*fw, st.Pos.Y*fh, st.Diameter/2)
	}
	fmt.Fprintf(w, "</svg>\n")

	if err := w.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}
