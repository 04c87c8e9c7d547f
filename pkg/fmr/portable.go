package fmr

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/veritouch/fpscan/pkg/fpimage"
)

// portableTemplate is the self-describing interchange form. The binary FMR
// layout stays the canonical on-device format; the CBOR form is for archives
// and cross-system exchange where field names matter more than size.
type portableTemplate struct {
	Version  uint16            `cbor:"version"`
	Width    uint16            `cbor:"width"`
	Height   uint16            `cbor:"height"`
	DPI      uint16            `cbor:"dpi"`
	Minutiae []portableMinutia `cbor:"minutiae"`
}

type portableMinutia struct {
	X     uint16 `cbor:"x"`
	Y     uint16 `cbor:"y"`
	Angle uint8  `cbor:"angle"`
	Type  uint8  `cbor:"type"`
}

// MarshalPortable encodes the template as CBOR.
func MarshalPortable(t *Template) ([]byte, error) {
	p := portableTemplate{
		Version:  FormatVersion,
		Width:    t.Width,
		Height:   t.Height,
		DPI:      t.DPI,
		Minutiae: make([]portableMinutia, len(t.Minutiae)),
	}
	for i, m := range t.Minutiae {
		p.Minutiae[i] = portableMinutia{X: m.X, Y: m.Y, Angle: m.Angle, Type: uint8(m.Type)}
	}
	return cbor.Marshal(p)
}

// UnmarshalPortable decodes a CBOR template produced by MarshalPortable.
func UnmarshalPortable(blob []byte) (*Template, error) {
	var p portableTemplate
	if err := cbor.Unmarshal(blob, &p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptTemplate, err)
	}
	if p.Version != FormatVersion {
		return nil, fmt.Errorf("%w: unsupported portable version %d", ErrCorruptTemplate, p.Version)
	}
	if len(p.Minutiae) > fpimage.MaxMinutiae {
		return nil, fmt.Errorf("%w: %d minutiae exceeds maximum", ErrCorruptTemplate, len(p.Minutiae))
	}
	t := &Template{Width: p.Width, Height: p.Height, DPI: p.DPI}
	if len(p.Minutiae) > 0 {
		t.Minutiae = make([]fpimage.Minutia, len(p.Minutiae))
		for i, m := range p.Minutiae {
			t.Minutiae[i] = fpimage.Minutia{X: m.X, Y: m.Y, Angle: m.Angle, Type: fpimage.MinutiaType(m.Type)}
		}
	}
	return t, nil
}
