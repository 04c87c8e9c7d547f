// Package matcher compares two encoded templates and produces a score and a
// boolean decision. Match is total: it never fails, whatever bytes it is
// handed, and undecodable input degrades to a zero-score non-match.
package matcher

import (
	"math"

	"github.com/emirpasic/gods/sets/hashset"

	"github.com/veritouch/fpscan/pkg/fmr"
	"github.com/veritouch/fpscan/pkg/fpimage"
)

// Options tune the pairing tolerances.
type Options struct {
	// DistanceThreshold is the maximum Euclidean distance, in pixel units,
	// between paired minutiae.
	DistanceThreshold int
	// AngleThreshold is the maximum angular difference on the quantized
	// 0-255 scale, with wrap-around.
	AngleThreshold int
	// ScoreThreshold is the score at or above which Matched is true.
	ScoreThreshold int
	// StrictPairing removes a candidate minutia from consideration once it
	// has been paired. Off by default: the shipped behavior lets one
	// candidate minutia satisfy several probe minutiae, which inflates
	// scores slightly but matches the deployed scorer.
	StrictPairing bool
}

// DefaultOptions mirror the deployed tolerances.
func DefaultOptions() Options {
	return Options{
		DistanceThreshold: 20,
		AngleThreshold:    30,
		ScoreThreshold:    60,
	}
}

// Result is the outcome of one comparison.
type Result struct {
	Matched      bool   `json:"matched"`
	Score        int    `json:"score"`
	MatchedCount int    `json:"matchedCount"`
	TotalCount   int    `json:"totalCount"`
	Error        string `json:"error,omitempty"`
}

// Match decodes both templates and pairs minutiae within the spatial and
// angular tolerances, requiring identical types, first match wins. The score
// is matched/min(|A|,|B|) scaled to 100; the same two templates always
// produce the same score.
func Match(templateA, templateB []byte, opts Options) Result {
	a, err := fmr.Decode(templateA)
	if err != nil {
		return Result{Error: err.Error()}
	}
	b, err := fmr.Decode(templateB)
	if err != nil {
		return Result{Error: err.Error()}
	}
	return MatchTemplates(a, b, opts)
}

// MatchTemplates compares already-decoded templates.
func MatchTemplates(a, b *fmr.Template, opts Options) Result {
	total := len(a.Minutiae)
	if len(b.Minutiae) < total {
		total = len(b.Minutiae)
	}
	if total == 0 {
		return Result{TotalCount: 0}
	}

	var consumed *hashset.Set
	if opts.StrictPairing {
		consumed = hashset.New()
	}

	matched := 0
	for _, ma := range a.Minutiae {
		for j, mb := range b.Minutiae {
			if opts.StrictPairing && consumed.Contains(j) {
				continue
			}
			if ma.Type != mb.Type {
				continue
			}
			if !withinDistance(ma, mb, opts.DistanceThreshold) {
				continue
			}
			if angleDiff(ma.Angle, mb.Angle) > opts.AngleThreshold {
				continue
			}
			matched++
			if opts.StrictPairing {
				consumed.Add(j)
			}
			break
		}
	}

	score := int(math.Round(float64(matched) / float64(total) * 100))
	if score > 100 {
		score = 100
	}
	return Result{
		Matched:      score >= opts.ScoreThreshold,
		Score:        score,
		MatchedCount: matched,
		TotalCount:   total,
	}
}

func withinDistance(a, b fpimage.Minutia, threshold int) bool {
	dx := int(a.X) - int(b.X)
	dy := int(a.Y) - int(b.Y)
	return dx*dx+dy*dy <= threshold*threshold
}

func angleDiff(a, b uint8) int {
	d := int(a) - int(b)
	if d < 0 {
		d = -d
	}
	if d > 128 {
		d = 256 - d
	}
	return d
}
