package fpimage

import (
	"bytes"
	"testing"
)

func flatImage(w, h int, v byte) *Image {
	pixels := make([]byte, w*h)
	for i := range pixels {
		pixels[i] = v
	}
	return &Image{Width: w, Height: h, Pixels: pixels}
}

func TestNewValidatesGeometry(t *testing.T) {
	if _, err := New(0, 10, nil); err == nil {
		t.Fatal("expected error for zero width")
	}
	if _, err := New(4, 4, make([]byte, 15)); err == nil {
		t.Fatal("expected error for short pixel buffer")
	}
	if _, err := New(4, 4, make([]byte, 16)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestQualityBounds(t *testing.T) {
	tests := []struct {
		name string
		img  *Image
	}{
		{"all zero", flatImage(260, 300, 0)},
		{"all white", flatImage(260, 300, 255)},
		{"synthetic", Synthesize(260, 300, 1)},
		{"tiny", flatImage(2, 2, 17)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := Quality(tt.img)
			if q < 0 || q > 100 {
				t.Fatalf("quality out of range: %d", q)
			}
		})
	}
}

func TestQualityPrefersStructuredFrames(t *testing.T) {
	synth := Quality(Synthesize(260, 300, 42))
	flat := Quality(flatImage(260, 300, 128))
	if synth <= flat {
		t.Fatalf("synthetic frame should outscore a flat one: %d <= %d", synth, flat)
	}
}

func TestPlausible(t *testing.T) {
	if flatImage(64, 64, 0).Plausible() {
		t.Error("all-black frame should be implausible")
	}
	if flatImage(64, 64, 255).Plausible() {
		t.Error("all-white frame should be implausible")
	}
	if flatImage(64, 64, 128).Plausible() {
		t.Error("zero-contrast frame should be implausible")
	}
	if !Synthesize(260, 300, 7).Plausible() {
		t.Error("synthetic frame should be plausible")
	}
}

func TestExtractMinutiaeDeterministic(t *testing.T) {
	img := Synthesize(260, 300, 99)
	a := ExtractMinutiae(img)
	b := ExtractMinutiae(img)
	if len(a) != len(b) {
		t.Fatalf("length differs between runs: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("minutia %d differs: %+v vs %+v", i, a[i], b[i])
		}
	}
}

func TestExtractMinutiaeCap(t *testing.T) {
	// engineer a ridge ending at every block center: a dark center with
	// exactly one dark neighbour, so candidates far exceed the cap
	img := flatImage(1024, 1024, 255)
	for by := 0; by < 64; by++ {
		for bx := 0; bx < 64; bx++ {
			cx, cy := bx*16+8, by*16+8
			img.Pixels[cy*1024+cx] = 20
			img.Pixels[cy*1024+cx-1] = 20
		}
	}
	got := ExtractMinutiae(img)
	if len(got) != MaxMinutiae {
		t.Fatalf("expected truncation at %d, got %d", MaxMinutiae, len(got))
	}
	for _, m := range got {
		if m.Type != RidgeEnding {
			t.Fatalf("expected ridge endings only, got %+v", m)
		}
	}
}

func TestExtractMinutiaeScanOrder(t *testing.T) {
	img := Synthesize(260, 300, 3)
	got := ExtractMinutiae(img)
	for i := 1; i < len(got); i++ {
		prev, cur := got[i-1], got[i]
		if cur.Y < prev.Y || (cur.Y == prev.Y && cur.X <= prev.X) {
			t.Fatalf("scan order violated at %d: %+v then %+v", i, prev, cur)
		}
	}
}

func TestSynthesizeDeterministic(t *testing.T) {
	a := Synthesize(260, 300, 12345)
	b := Synthesize(260, 300, 12345)
	if !bytes.Equal(a.Pixels, b.Pixels) {
		t.Fatal("same seed produced different frames")
	}
	c := Synthesize(260, 300, 54321)
	if bytes.Equal(a.Pixels, c.Pixels) {
		t.Fatal("different seeds produced identical frames")
	}
}

func TestPGMRoundTrip(t *testing.T) {
	img := Synthesize(64, 48, 8)
	var buf bytes.Buffer
	if err := EncodePGM(&buf, img); err != nil {
		t.Fatalf("encode: %v", err)
	}
	got, err := DecodePGM(&buf)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Width != img.Width || got.Height != img.Height {
		t.Fatalf("geometry changed: %dx%d", got.Width, got.Height)
	}
	if !bytes.Equal(got.Pixels, img.Pixels) {
		t.Fatal("pixels changed across PGM round trip")
	}
}
