// Package fpimage holds the raw capture frame model, the quality and
// minutiae analysis over it, and the synthetic ridge generator used when
// hardware capture is unavailable.
package fpimage

import (
	"fmt"
)

// MinutiaType classifies a fingerprint feature point.
type MinutiaType uint8

const (
	RidgeEnding MinutiaType = 1
	Bifurcation MinutiaType = 2
)

func (t MinutiaType) String() string {
	switch t {
	case RidgeEnding:
		return "ridge_ending"
	case Bifurcation:
		return "bifurcation"
	default:
		return fmt.Sprintf("minutia_type(%d)", uint8(t))
	}
}

// Minutia is a discrete fingerprint feature point. Angle is the local ridge
// orientation quantized to a byte over [0, 2π). Immutable once created.
type Minutia struct {
	X     uint16      `json:"x"`
	Y     uint16      `json:"y"`
	Angle uint8       `json:"angle"`
	Type  MinutiaType `json:"type"`
}

// Image is a row-major 8-bit grayscale capture frame.
type Image struct {
	Width  int
	Height int
	Pixels []byte
}

// New wraps pixels as an Image, checking the byte count against the geometry.
func New(width, height int, pixels []byte) (*Image, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("fpimage: invalid dimensions %dx%d", width, height)
	}
	if len(pixels) != width*height {
		return nil, fmt.Errorf("fpimage: %dx%d image needs %d bytes, got %d", width, height, width*height, len(pixels))
	}
	return &Image{Width: width, Height: height, Pixels: pixels}, nil
}

func (img *Image) at(x, y int) int {
	return int(img.Pixels[y*img.Width+x])
}

// Plausible reports whether the frame looks like a real sensor read rather
// than a stuck transfer. All-black and all-white frames, and frames with no
// contrast to speak of, are treated as "no finger".
func (img *Image) Plausible() bool {
	if len(img.Pixels) == 0 {
		return false
	}
	var sum int
	min, max := 255, 0
	for _, p := range img.Pixels {
		v := int(p)
		sum += v
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	mean := sum / len(img.Pixels)
	if mean < 8 || mean > 247 {
		return false
	}
	return max-min >= 30
}
