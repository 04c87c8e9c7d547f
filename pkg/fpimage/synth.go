package fpimage

import (
	"math"
	"math/rand"
)

// Synthesize renders a ridge-like grayscale frame from a seed. The same seed
// always produces the same pixels, which keeps fallback captures and test
// fixtures reproducible. The output passes Plausible so it flows through the
// same validation as hardware frames.
func Synthesize(width, height int, seed int64) *Image {
	rng := rand.New(rand.NewSource(seed))

	theta := rng.Float64() * math.Pi
	freq := 0.5 + rng.Float64()*0.3 // ridge period roughly 9-13 px
	phase := rng.Float64() * 2 * math.Pi

	// low-frequency warp so the ridges bend like a real print
	wx := 0.015 + rng.Float64()*0.02
	wy := 0.015 + rng.Float64()*0.02
	warpAmp := 2.0 + rng.Float64()*3.0

	cosT, sinT := math.Cos(theta), math.Sin(theta)
	cx, cy := float64(width)/2, float64(height)/2
	rx, ry := float64(width)*0.45, float64(height)*0.45

	pixels := make([]byte, width*height)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			fx, fy := float64(x), float64(y)
			warp := warpAmp * math.Sin(fx*wx) * math.Cos(fy*wy)
			ridge := math.Sin((fx*cosT+fy*sinT)*freq + phase + warp)
			v := 128 + 90*ridge + float64(rng.Intn(31)-15)

			// fade to paper white outside the finger ellipse
			dx := (fx - cx) / rx
			dy := (fy - cy) / ry
			if r := dx*dx + dy*dy; r > 1 {
				fade := math.Min((r-1)*2, 1)
				v = v*(1-fade) + 235*fade
			}

			if v < 0 {
				v = 0
			}
			if v > 255 {
				v = 255
			}
			pixels[y*width+x] = byte(v)
		}
	}
	return &Image{Width: width, Height: height, Pixels: pixels}
}
