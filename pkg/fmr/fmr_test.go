package fmr

import (
	"errors"
	"math/rand"
	"reflect"
	"testing"

	"github.com/veritouch/fpscan/pkg/fpimage"
)

func randomMinutiae(n int, seed int64) []fpimage.Minutia {
	rng := rand.New(rand.NewSource(seed))
	out := make([]fpimage.Minutia, n)
	for i := range out {
		mt := fpimage.RidgeEnding
		if rng.Intn(2) == 1 {
			mt = fpimage.Bifurcation
		}
		out[i] = fpimage.Minutia{
			X:     uint16(rng.Intn(260)),
			Y:     uint16(rng.Intn(300)),
			Angle: uint8(rng.Intn(256)),
			Type:  mt,
		}
	}
	return out
}

func TestRoundTrip(t *testing.T) {
	for _, n := range []int{0, 1, 7, 64, 128} {
		minutiae := randomMinutiae(n, int64(n))
		blob, err := Encode(260, 300, 500, minutiae)
		if err != nil {
			t.Fatalf("encode %d minutiae: %v", n, err)
		}
		got, err := Decode(blob)
		if err != nil {
			t.Fatalf("decode %d minutiae: %v", n, err)
		}
		if got.Width != 260 || got.Height != 300 || got.DPI != 500 {
			t.Fatalf("metadata changed: %+v", got)
		}
		if len(got.Minutiae) != n {
			t.Fatalf("count changed: got %d want %d", len(got.Minutiae), n)
		}
		if n > 0 && !reflect.DeepEqual(got.Minutiae, minutiae) {
			t.Fatalf("minutiae changed across round trip")
		}
	}
}

func TestEncodeRejectsOversizedSet(t *testing.T) {
	if _, err := Encode(260, 300, 500, randomMinutiae(129, 1)); err == nil {
		t.Fatal("expected error for 129 minutiae")
	}
}

func TestCorruptionDetection(t *testing.T) {
	blob, err := Encode(260, 300, 500, randomMinutiae(16, 2))
	if err != nil {
		t.Fatal(err)
	}
	// flip every byte of the minutiae region in turn
	for i := 14; i < len(blob)-16; i++ {
		bad := append([]byte(nil), blob...)
		bad[i] ^= 0x01
		if _, err := Decode(bad); !errors.Is(err, ErrCorruptTemplate) {
			t.Fatalf("flip at byte %d not detected: %v", i, err)
		}
	}
}

func TestDecodeRejectsMalformedBlobs(t *testing.T) {
	valid, _ := Encode(260, 300, 500, randomMinutiae(4, 3))
	tests := []struct {
		name string
		blob []byte
	}{
		{"nil", nil},
		{"short", valid[:20]},
		{"truncated digest", valid[:len(valid)-1]},
		{"bad magic", append([]byte{'X', 'M', 'R', 0}, valid[4:]...)},
		{"garbage", make([]byte, 64)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Decode(tt.blob); !errors.Is(err, ErrCorruptTemplate) {
				t.Fatalf("expected ErrCorruptTemplate, got %v", err)
			}
		})
	}
}

func TestPortableRoundTrip(t *testing.T) {
	orig := &Template{Width: 260, Height: 300, DPI: 500, Minutiae: randomMinutiae(32, 4)}
	blob, err := MarshalPortable(orig)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	got, err := UnmarshalPortable(blob)
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !reflect.DeepEqual(got, orig) {
		t.Fatalf("portable round trip changed template:\ngot:  %+v\nwant: %+v", got, orig)
	}
}

func TestPortableRejectsGarbage(t *testing.T) {
	if _, err := UnmarshalPortable([]byte{0xFF, 0x00, 0x12}); !errors.Is(err, ErrCorruptTemplate) {
		t.Fatalf("expected ErrCorruptTemplate, got %v", err)
	}
}
