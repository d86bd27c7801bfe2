package scoring

import (
	"fmt"
	"math"
	"strings"

	"github.com/educlip/educlip/internal/types"
)

// Weights combines the three scoring signals. Each signal is normalized to
// [0,1] before weighting, so the weights must sum to 1 for the final score
// to stay inside [0,100].
type Weights struct {
	KeywordDensity float64 `json:"keyword_density"`
	PositionBias   float64 `json:"position_bias"`
	Salience       float64 `json:"salience"`
}

func DefaultWeights() Weights {
	return Weights{KeywordDensity: 0.40, PositionBias: 0.25, Salience: 0.35}
}

func (w Weights) Validate() error {
	if w.KeywordDensity < 0 || w.PositionBias < 0 || w.Salience < 0 {
		return fmt.Errorf("scoring weights must be non-negative: %+v", w)
	}
	sum := w.KeywordDensity + w.PositionBias + w.Salience
	if math.Abs(sum-1) > 1e-9 {
		return fmt.Errorf("scoring weights must sum to 1, got %v", sum)
	}
	return nil
}

// DataIntegrityError reports malformed segment timing. It is not recoverable
// here; the pipeline marks the video failed when it sees one.
type DataIntegrityError struct {
	Index  int
	Reason string
}

func (e *DataIntegrityError) Error() string {
	return fmt.Sprintf("segment %d: %s", e.Index, e.Reason)
}

// Lecture-oriented keyword list. Density against this list is one of the
// three scoring signals; callers can swap it via NewScorer.
var defaultKeywords = []string{
	"definition", "define", "theorem", "proof", "formula", "equation",
	"example", "important", "key", "concept", "principle", "method",
	"remember", "exam", "summary", "conclusion", "question", "answer",
	"step", "rule", "property", "note",
}

type Scorer struct {
	weights  Weights
	keywords map[string]struct{}
}

// NewScorer builds a scorer with the given weights and keyword list. An
// empty keyword list falls back to the lecture defaults.
func NewScorer(w Weights, keywords []string) (*Scorer, error) {
	if err := w.Validate(); err != nil {
		return nil, err
	}
	if len(keywords) == 0 {
		keywords = defaultKeywords
	}
	set := make(map[string]struct{}, len(keywords))
	for _, k := range keywords {
		k = strings.ToLower(strings.TrimSpace(k))
		if k != "" {
			set[k] = struct{}{}
		}
	}
	return &Scorer{weights: w, keywords: set}, nil
}

// Score assigns an importance in [0,100] to every segment. hints maps
// segment index to an LLM salience value in [0,1]; a missing index counts
// as 0. Output order and length match the input. Empty input yields an
// empty result, not an error. The computation is deterministic.
func (s *Scorer) Score(segments []types.TranscriptSegment, hints map[int]float64) ([]types.ScoredSegment, error) {
	if len(segments) == 0 {
		return []types.ScoredSegment{}, nil
	}
	if err := validateTiming(segments); err != nil {
		return nil, err
	}

	n := len(segments)
	out := make([]types.ScoredSegment, 0, n)
	for i, seg := range segments {
		kd := s.keywordDensity(seg.Text)
		pos := positionBias(i, n)
		hint := clamp(hints[i], 0, 1)

		score := s.weights.KeywordDensity*kd + s.weights.PositionBias*pos + s.weights.Salience*hint
		out = append(out, types.ScoredSegment{
			TranscriptSegment: seg,
			Importance:        clamp(score*100, 0, 100),
		})
	}
	return out, nil
}

func validateTiming(segments []types.TranscriptSegment) error {
	for i, seg := range segments {
		if seg.End <= seg.Start {
			return &DataIntegrityError{Index: i, Reason: fmt.Sprintf("end %.3f <= start %.3f", seg.End, seg.Start)}
		}
		if i > 0 && seg.Start < segments[i-1].End {
			return &DataIntegrityError{Index: i, Reason: fmt.Sprintf("start %.3f overlaps previous end %.3f", seg.Start, segments[i-1].End)}
		}
	}
	return nil
}

// keywordDensity is keyword hits over word count, capped at 1.
func (s *Scorer) keywordDensity(text string) float64 {
	words := strings.Fields(strings.ToLower(text))
	if len(words) == 0 {
		return 0
	}
	hits := 0
	for _, w := range words {
		w = strings.Trim(w, ".,!?;:()\"'")
		if _, ok := s.keywords[w]; ok {
			hits++
		}
	}
	return clamp(float64(hits)/float64(len(words)), 0, 1)
}

// positionBias is a fixed decay curve favoring segments near the start and
// end of the lecture, where topic boundaries concentrate.
func positionBias(i, n int) float64 {
	if n <= 1 {
		return 1
	}
	p := float64(i) / float64(n-1)
	return math.Max(math.Exp(-4*p), math.Exp(-4*(1-p)))
}

func clamp(x, a, b float64) float64 {
	if x < a {
		return a
	}
	if x > b {
		return b
	}
	return x
}
