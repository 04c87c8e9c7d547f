package fpimage

import (
	"fmt"
	"image"
	"image/color"
	"io"
	"os"

	"github.com/spakin/netpbm"

	_ "image/jpeg"
	_ "image/png"

	// registers the WSQ format used by fingerprint archives
	_ "github.com/jtejido/go-wsq"
)

// Gray converts the frame to a stdlib grayscale image sharing no memory.
func (img *Image) Gray() *image.Gray {
	g := image.NewGray(image.Rect(0, 0, img.Width, img.Height))
	copy(g.Pix, img.Pixels)
	return g
}

// FromImage converts any decoded image to a capture frame, collapsing color
// through the stdlib gray model.
func FromImage(src image.Image) *Image {
	bounds := src.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	pixels := make([]byte, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := color.GrayModel.Convert(src.At(bounds.Min.X+x, bounds.Min.Y+y)).(color.Gray)
			pixels[y*w+x] = c.Y
		}
	}
	return &Image{Width: w, Height: h, Pixels: pixels}
}

// EncodePGM writes the frame as a binary PGM.
func EncodePGM(w io.Writer, img *Image) error {
	return netpbm.Encode(w, img.Gray(), &netpbm.EncodeOptions{
		Format:   netpbm.PGM,
		MaxValue: 255,
	})
}

// DecodePGM reads a PGM frame.
func DecodePGM(r io.Reader) (*Image, error) {
	src, err := netpbm.Decode(r, &netpbm.DecodeOptions{Target: netpbm.PGM})
	if err != nil {
		return nil, fmt.Errorf("fpimage: decode pgm: %w", err)
	}
	return FromImage(src), nil
}

// LoadFile decodes a PNG, JPEG, WSQ, or PGM file into a capture frame.
func LoadFile(path string) (*Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	src, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("fpimage: decode %s: %w", path, err)
	}
	return FromImage(src), nil
}

// SaveFile writes the frame to path as a PGM.
func SaveFile(path string, img *Image) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return EncodePGM(f, img)
}
