package scoring

import (
	"errors"
	"reflect"
	"testing"

	"github.com/educlip/educlip/internal/types"
)

func newTestScorer(t *testing.T) *Scorer {
	t.Helper()
	s, err := NewScorer(DefaultWeights(), nil)
	if err != nil {
		t.Fatalf("new scorer: %v", err)
	}
	return s
}

func lectureSegments() []types.TranscriptSegment {
	return []types.TranscriptSegment{
		{Start: 0, End: 30, Text: "Welcome, today we define the key concept of limits."},
		{Start: 30, End: 60, Text: "So anyway let us continue with more material here."},
		{Start: 60, End: 90, Text: "Remember this theorem, it will be on the exam."},
	}
}

func TestScore_RangeAndLength(t *testing.T) {
	s := newTestScorer(t)
	out, err := s.Score(lectureSegments(), map[int]float64{1: 0.8})
	if err != nil {
		t.Fatalf("score: %v", err)
	}
	if len(out) != 3 {
		t.Fatalf("expected 3 scored segments, got %d", len(out))
	}
	for i, ss := range out {
		if ss.Importance < 0 || ss.Importance > 100 {
			t.Fatalf("segment %d importance out of range: %v", i, ss.Importance)
		}
	}
}

func TestScore_Deterministic(t *testing.T) {
	s := newTestScorer(t)
	hints := map[int]float64{0: 0.3, 2: 0.9}
	a, err := s.Score(lectureSegments(), hints)
	if err != nil {
		t.Fatalf("score: %v", err)
	}
	b, err := s.Score(lectureSegments(), hints)
	if err != nil {
		t.Fatalf("score: %v", err)
	}
	if !reflect.DeepEqual(a, b) {
		t.Fatalf("identical input produced different output:\n%v\n%v", a, b)
	}
}

func TestScore_EmptyInput(t *testing.T) {
	s := newTestScorer(t)
	out, err := s.Score(nil, nil)
	if err != nil {
		t.Fatalf("expected no error for empty input, got %v", err)
	}
	if len(out) != 0 {
		t.Fatalf("expected empty output, got %d", len(out))
	}
}

func TestScore_NoHints(t *testing.T) {
	// Scenario: salience hints omitted entirely; density and position alone
	// must still produce valid scores.
	s := newTestScorer(t)
	out, err := s.Score(lectureSegments(), nil)
	if err != nil {
		t.Fatalf("score: %v", err)
	}
	for i, ss := range out {
		if ss.Importance < 0 || ss.Importance > 100 {
			t.Fatalf("segment %d importance out of range: %v", i, ss.Importance)
		}
	}
	// Keyword-heavy segments should outrank the filler one.
	if out[1].Importance >= out[0].Importance {
		t.Fatalf("filler segment scored %v, keyword segment %v", out[1].Importance, out[0].Importance)
	}
}

func TestScore_BadTiming(t *testing.T) {
	s := newTestScorer(t)
	cases := []struct {
		name string
		segs []types.TranscriptSegment
	}{
		{"non-increasing", []types.TranscriptSegment{{Start: 10, End: 10, Text: "x"}}},
		{"overlapping", []types.TranscriptSegment{
			{Start: 0, End: 40, Text: "a"},
			{Start: 30, End: 60, Text: "b"},
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := s.Score(tc.segs, nil)
			var die *DataIntegrityError
			if !errors.As(err, &die) {
				t.Fatalf("expected DataIntegrityError, got %v", err)
			}
		})
	}
}

func TestScore_HintsClamped(t *testing.T) {
	s := newTestScorer(t)
	out, err := s.Score(lectureSegments(), map[int]float64{0: 5.0, 1: -3.0})
	if err != nil {
		t.Fatalf("score: %v", err)
	}
	for i, ss := range out {
		if ss.Importance < 0 || ss.Importance > 100 {
			t.Fatalf("segment %d importance out of range: %v", i, ss.Importance)
		}
	}
}

func TestWeights_Validate(t *testing.T) {
	if err := DefaultWeights().Validate(); err != nil {
		t.Fatalf("default weights invalid: %v", err)
	}
	bad := Weights{KeywordDensity: 0.5, PositionBias: 0.5, Salience: 0.5}
	if err := bad.Validate(); err == nil {
		t.Fatal("expected error for weights summing to 1.5")
	}
	neg := Weights{KeywordDensity: -0.2, PositionBias: 0.7, Salience: 0.5}
	if err := neg.Validate(); err == nil {
		t.Fatal("expected error for negative weight")
	}
}

func TestPositionBias_Shape(t *testing.T) {
	n := 11
	mid := positionBias(n/2, n)
	first := positionBias(0, n)
	last := positionBias(n-1, n)
	if first != 1 || last != 1 {
		t.Fatalf("expected full bias at boundaries, got %v and %v", first, last)
	}
	if mid >= first {
		t.Fatalf("expected middle bias below boundary bias, got %v", mid)
	}
	if positionBias(0, 1) != 1 {
		t.Fatal("single segment should get full bias")
	}
}
