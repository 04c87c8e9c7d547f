package matcher

import (
	"testing"

	"github.com/veritouch/fpscan/pkg/fmr"
	"github.com/veritouch/fpscan/pkg/fpimage"
)

func encode(t *testing.T, minutiae []fpimage.Minutia) []byte {
	t.Helper()
	blob, err := fmr.Encode(260, 300, 500, minutiae)
	if err != nil {
		t.Fatal(err)
	}
	return blob
}

func sampleMinutiae() []fpimage.Minutia {
	return []fpimage.Minutia{
		{X: 40, Y: 56, Angle: 10, Type: fpimage.RidgeEnding},
		{X: 120, Y: 88, Angle: 200, Type: fpimage.Bifurcation},
		{X: 72, Y: 152, Angle: 90, Type: fpimage.RidgeEnding},
		{X: 200, Y: 248, Angle: 45, Type: fpimage.Bifurcation},
		{X: 168, Y: 40, Angle: 130, Type: fpimage.RidgeEnding},
	}
}

func TestSelfMatch(t *testing.T) {
	blob := encode(t, sampleMinutiae())
	r := Match(blob, blob, DefaultOptions())
	if !r.Matched {
		t.Error("self-match should be a match")
	}
	if r.Score != 100 {
		t.Errorf("self-match score should be 100, got %d", r.Score)
	}
	if r.MatchedCount != len(sampleMinutiae()) {
		t.Errorf("expected all minutiae matched, got %d", r.MatchedCount)
	}
}

func TestMatchDeterministic(t *testing.T) {
	a := encode(t, sampleMinutiae())
	b := encode(t, sampleMinutiae()[:3])
	first := Match(a, b, DefaultOptions())
	for i := 0; i < 5; i++ {
		if got := Match(a, b, DefaultOptions()); got != first {
			t.Fatalf("result changed between calls: %+v vs %+v", got, first)
		}
	}
}

func TestMatchTotalOverGarbage(t *testing.T) {
	valid := encode(t, sampleMinutiae())
	tests := []struct {
		name string
		a, b []byte
	}{
		{"both nil", nil, nil},
		{"garbage probe", []byte("not a template"), valid},
		{"garbage candidate", valid, []byte{0x01, 0x02}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := Match(tt.a, tt.b, DefaultOptions())
			if r.Matched || r.Score != 0 {
				t.Fatalf("garbage input should not match: %+v", r)
			}
			if r.Error == "" {
				t.Fatal("expected decode error to be reported")
			}
		})
	}
}

func TestNearbyMinutiaeWithinTolerance(t *testing.T) {
	a := sampleMinutiae()
	b := make([]fpimage.Minutia, len(a))
	for i, m := range a {
		b[i] = fpimage.Minutia{X: m.X + 5, Y: m.Y + 5, Angle: m.Angle + 10, Type: m.Type}
	}
	r := Match(encode(t, a), encode(t, b), DefaultOptions())
	if !r.Matched || r.Score != 100 {
		t.Fatalf("jittered copy within tolerance should fully match: %+v", r)
	}
}

func TestTypeMismatchNeverPairs(t *testing.T) {
	a := []fpimage.Minutia{{X: 50, Y: 50, Angle: 10, Type: fpimage.RidgeEnding}}
	b := []fpimage.Minutia{{X: 50, Y: 50, Angle: 10, Type: fpimage.Bifurcation}}
	r := Match(encode(t, a), encode(t, b), DefaultOptions())
	if r.MatchedCount != 0 {
		t.Fatalf("differing types paired: %+v", r)
	}
}

func TestAngleWrapAround(t *testing.T) {
	a := []fpimage.Minutia{{X: 50, Y: 50, Angle: 250, Type: fpimage.RidgeEnding}}
	b := []fpimage.Minutia{{X: 50, Y: 50, Angle: 5, Type: fpimage.RidgeEnding}}
	r := Match(encode(t, a), encode(t, b), DefaultOptions())
	if r.MatchedCount != 1 {
		t.Fatalf("angles 250 and 5 are 11 apart with wrap-around, should pair: %+v", r)
	}
}

func TestStrictPairingConsumesCandidates(t *testing.T) {
	// two probe minutiae both within range of one candidate
	a := []fpimage.Minutia{
		{X: 50, Y: 50, Angle: 10, Type: fpimage.RidgeEnding},
		{X: 55, Y: 55, Angle: 12, Type: fpimage.RidgeEnding},
	}
	b := []fpimage.Minutia{{X: 52, Y: 52, Angle: 11, Type: fpimage.RidgeEnding}}

	relaxed := Match(encode(t, a), encode(t, b), DefaultOptions())
	if relaxed.MatchedCount != 2 {
		t.Fatalf("default mode should let one candidate satisfy both: %+v", relaxed)
	}

	strict := DefaultOptions()
	strict.StrictPairing = true
	r := Match(encode(t, a), encode(t, b), strict)
	if r.MatchedCount != 1 {
		t.Fatalf("strict mode should consume the candidate: %+v", r)
	}
}

func TestScoreUsesSmallerSet(t *testing.T) {
	a := sampleMinutiae()
	b := a[:2] // subset: both of b's minutiae match, so score is 100
	r := Match(encode(t, a), encode(t, b), DefaultOptions())
	if r.TotalCount != 2 {
		t.Fatalf("divisor should be the smaller set: %+v", r)
	}
	if r.Score != 100 {
		t.Fatalf("full coverage of the smaller set should score 100: %+v", r)
	}
}

func TestEmptyTemplatesDoNotMatch(t *testing.T) {
	empty := encode(t, nil)
	r := Match(empty, empty, DefaultOptions())
	if r.Matched || r.Score != 0 {
		t.Fatalf("empty templates should not match: %+v", r)
	}
}
