// Package fmr encodes minutiae sets into a compact binary template: a
// header-plus-feature-records layout loosely inspired by the ISO/ANSI Finger
// Minutiae Record structure (not conformant to it), with a trailing MD5
// digest. The digest is an integrity check against transport corruption, not
// a signature against tampering.
package fmr

import (
	"bytes"
	"crypto/md5"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/veritouch/fpscan/pkg/fpimage"
)

const (
	// FormatVersion is written into every template header.
	FormatVersion uint16 = 1

	headerLen = 14
	recordLen = 6
	digestLen = md5.Size
)

var magic = [4]byte{'F', 'M', 'R', 0}

// ErrCorruptTemplate marks a blob whose length, header, or digest is
// inconsistent. Callers match it with errors.Is.
var ErrCorruptTemplate = errors.New("fmr: corrupt template")

// Template is the decoded form of an encoded fingerprint template.
type Template struct {
	Width    uint16
	Height   uint16
	DPI      uint16
	Minutiae []fpimage.Minutia
}

// Encode serializes image metadata plus a minutiae sequence. Layout:
// 14-byte header (magic, version, count, width, height, dpi, big-endian),
// one 6-byte record per minutia (x, y, angle, type), 16-byte MD5 digest
// over header+records.
func Encode(width, height, dpi uint16, minutiae []fpimage.Minutia) ([]byte, error) {
	if len(minutiae) > fpimage.MaxMinutiae {
		return nil, fmt.Errorf("fmr: %d minutiae exceeds maximum %d", len(minutiae), fpimage.MaxMinutiae)
	}

	buf := bytes.NewBuffer(make([]byte, 0, headerLen+len(minutiae)*recordLen+digestLen))
	buf.Write(magic[:])
	binary.Write(buf, binary.BigEndian, FormatVersion)
	binary.Write(buf, binary.BigEndian, uint16(len(minutiae)))
	binary.Write(buf, binary.BigEndian, width)
	binary.Write(buf, binary.BigEndian, height)
	binary.Write(buf, binary.BigEndian, dpi)

	for _, m := range minutiae {
		binary.Write(buf, binary.BigEndian, m.X)
		binary.Write(buf, binary.BigEndian, m.Y)
		buf.WriteByte(m.Angle)
		buf.WriteByte(byte(m.Type))
	}

	digest := md5.Sum(buf.Bytes())
	buf.Write(digest[:])
	return buf.Bytes(), nil
}

// Decode parses and verifies an encoded template. Any structural
// inconsistency or digest mismatch yields ErrCorruptTemplate.
func Decode(blob []byte) (*Template, error) {
	if len(blob) < headerLen+digestLen {
		return nil, fmt.Errorf("%w: %d bytes is shorter than an empty template", ErrCorruptTemplate, len(blob))
	}
	if !bytes.Equal(blob[:4], magic[:]) {
		return nil, fmt.Errorf("%w: bad magic % X", ErrCorruptTemplate, blob[:4])
	}
	version := binary.BigEndian.Uint16(blob[4:6])
	if version != FormatVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrCorruptTemplate, version)
	}

	count := int(binary.BigEndian.Uint16(blob[6:8]))
	if count > fpimage.MaxMinutiae {
		return nil, fmt.Errorf("%w: declared count %d exceeds maximum", ErrCorruptTemplate, count)
	}
	want := headerLen + count*recordLen + digestLen
	if len(blob) != want {
		return nil, fmt.Errorf("%w: length %d inconsistent with %d minutiae (want %d)", ErrCorruptTemplate, len(blob), count, want)
	}

	body := blob[:len(blob)-digestLen]
	declared := blob[len(blob)-digestLen:]
	computed := md5.Sum(body)
	if !bytes.Equal(declared, computed[:]) {
		return nil, fmt.Errorf("%w: digest mismatch", ErrCorruptTemplate)
	}

	t := &Template{
		Width:  binary.BigEndian.Uint16(blob[8:10]),
		Height: binary.BigEndian.Uint16(blob[10:12]),
		DPI:    binary.BigEndian.Uint16(blob[12:14]),
	}
	if count > 0 {
		t.Minutiae = make([]fpimage.Minutia, count)
		for i := 0; i < count; i++ {
			rec := body[headerLen+i*recordLen:]
			t.Minutiae[i] = fpimage.Minutia{
				X:     binary.BigEndian.Uint16(rec[0:2]),
				Y:     binary.BigEndian.Uint16(rec[2:4]),
				Angle: rec[4],
				Type:  fpimage.MinutiaType(rec[5]),
			}
		}
	}
	return t, nil
}
