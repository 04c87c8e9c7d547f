package fpimage

import (
	"math"
)

const (
	// MaxMinutiae bounds a template; extraction truncates in scan order.
	MaxMinutiae = 128

	blockSize      = 16
	ridgeThreshold = 100
)

// Quality scores a frame in [0,100] from three capped sub-scores: pixel
// range (contrast), standard deviation (sharpness), and mean gradient
// magnitude over interior pixels (edge strength) on top of a small baseline.
func Quality(img *Image) int {
	if len(img.Pixels) == 0 {
		return 0
	}

	min, max := 255, 0
	var sum float64
	for _, p := range img.Pixels {
		v := int(p)
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
		sum += float64(v)
	}
	mean := sum / float64(len(img.Pixels))

	var varSum float64
	for _, p := range img.Pixels {
		d := float64(p) - mean
		varSum += d * d
	}
	stddev := math.Sqrt(varSum / float64(len(img.Pixels)))

	contrast := (max - min) * 40 / 255
	if contrast > 40 {
		contrast = 40
	}
	sharpness := int(stddev * 40 / 64)
	if sharpness > 40 {
		sharpness = 40
	}
	edge := 5 + int(meanGradient(img)/4)
	if edge > 20 {
		edge = 20
	}

	q := contrast + sharpness + edge
	if q > 100 {
		q = 100
	}
	if q < 0 {
		q = 0
	}
	return q
}

// meanGradient averages the 2-D gradient magnitude over interior pixels,
// excluding a 1-pixel border.
func meanGradient(img *Image) float64 {
	if img.Width < 3 || img.Height < 3 {
		return 0
	}
	var total float64
	var count int
	for y := 1; y < img.Height-1; y++ {
		for x := 1; x < img.Width-1; x++ {
			gx := float64(img.at(x+1, y) - img.at(x-1, y))
			gy := float64(img.at(x, y+1) - img.at(x, y-1))
			total += math.Sqrt(gx*gx + gy*gy)
			count++
		}
	}
	if count == 0 {
		return 0
	}
	return total / float64(count)
}

// ExtractMinutiae partitions the frame into 16x16 blocks and samples each
// block center. A center below the ridge threshold is a candidate; its
// 8-neighbourhood ridge count classifies it (1 = ending, 3 = bifurcation).
// Scan order is top-to-bottom, left-to-right and results truncate at
// MaxMinutiae, so identical frames always yield identical sequences.
func ExtractMinutiae(img *Image) []Minutia {
	var out []Minutia
	for by := 0; by < img.Height/blockSize; by++ {
		for bx := 0; bx < img.Width/blockSize; bx++ {
			cx := bx*blockSize + blockSize/2
			cy := by*blockSize + blockSize/2
			if cx < 1 || cy < 1 || cx >= img.Width-1 || cy >= img.Height-1 {
				continue
			}
			if img.at(cx, cy) >= ridgeThreshold {
				continue
			}

			ridges := 0
			for dy := -1; dy <= 1; dy++ {
				for dx := -1; dx <= 1; dx++ {
					if dx == 0 && dy == 0 {
						continue
					}
					if img.at(cx+dx, cy+dy) < ridgeThreshold {
						ridges++
					}
				}
			}

			var mt MinutiaType
			switch ridges {
			case 1:
				mt = RidgeEnding
			case 3:
				mt = Bifurcation
			default:
				continue
			}

			out = append(out, Minutia{
				X:     uint16(cx),
				Y:     uint16(cy),
				Angle: gradientAngle(img, cx, cy),
				Type:  mt,
			})
			if len(out) >= MaxMinutiae {
				return out
			}
		}
	}
	return out
}

// gradientAngle quantizes the local intensity gradient direction to a byte
// over [0, 2π).
func gradientAngle(img *Image, x, y int) uint8 {
	gx := float64(img.at(x+1, y) - img.at(x-1, y))
	gy := float64(img.at(x, y+1) - img.at(x, y-1))
	theta := math.Atan2(gy, gx)
	if theta < 0 {
		theta += 2 * math.Pi
	}
	return uint8(int(theta/(2*math.Pi)*256) & 0xFF)
}
