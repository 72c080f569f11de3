//go:build ignore

// gen_fixtures writes a small menu of synthetic food photos for smoke-testing
// `platepix build` and `platepix analyze`.
// Usage: go run gen_fixtures.go <output_dir>
package main

import (
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"math"
	"os"
	"path/filepath"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: gen_fixtures <output_dir>")
		os.Exit(1)
	}
	dir := os.Args[1]
	if err := os.MkdirAll(filepath.Join(dir, "menu"), 0o755); err != nil {
		panic(err)
	}

	// Warm, bright, landscape: scores high on warmth and comfort.
	writeJPEG(filepath.Join(dir, "ramen.jpg"), bowl(2400, 1800, color.NRGBA{R: 214, G: 140, B: 60, A: 255}, color.NRGBA{R: 90, G: 40, B: 20, A: 255}))

	// Cool, square, above the sharpening threshold.
	writeJPEG(filepath.Join(dir, "menu", "salad.jpg"), bowl(900, 900, color.NRGBA{R: 60, G: 150, B: 190, A: 255}, color.NRGBA{R: 235, G: 240, B: 245, A: 255}))

	// Portrait dessert with transparency.
	writePNG(filepath.Join(dir, "menu", "sundae.png"), cutout(600, 800))

	// Narrow garnish below the sharpening threshold.
	writePNG(filepath.Join(dir, "menu", "garnish.png"), bowl(160, 120, color.NRGBA{R: 40, G: 160, B: 60, A: 255}, color.NRGBA{R: 250, G: 250, B: 240, A: 255}))

	fmt.Fprintf(os.Stderr, "[gen_fixtures] created 4 fixtures in %s\n", dir)
}

// bowl draws a filled disc of food colour on a plate background with a
// little radial shading so resizing and sharpening have edges to work on.
func bowl(w, h int, food, plate color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	cx, cy := float64(w)/2, float64(h)/2
	r := math.Min(cx, cy) * 0.8
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			d := math.Hypot(float64(x)-cx, float64(y)-cy)
			c := plate
			if d < r {
				shade := 1 - 0.3*d/r
				c = color.NRGBA{
					R: uint8(float64(food.R) * shade),
					G: uint8(float64(food.G) * shade),
					B: uint8(float64(food.B) * shade),
					A: 255,
				}
			}
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

func cutout(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{
				R: 240, G: 200, B: 210,
				A: uint8(y * 255 / h),
			})
		}
	}
	return img
}

func writePNG(path string, img *image.NRGBA) {
	f, err := os.Create(path)
	if err != nil {
		panic(err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		panic(err)
	}
}

func writeJPEG(path string, img *image.NRGBA) {
	f, err := os.Create(path)
	if err != nil {
		panic(err)
	}
	defer f.Close()
	if err := jpeg.Encode(f, img, &jpeg.Options{Quality: 92}); err != nil {
		panic(err)
	}
}
