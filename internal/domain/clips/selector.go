package clips

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/educlip/educlip/internal/types"
)

// Target count bounds when derived from source duration: one clip per three
// minutes of video, clamped to [1,10].
const (
	targetPer      = 3 * time.Minute
	minTargetCount = 1
	maxTargetCount = 10
)

// DefaultTargetCount derives a clip count from the source duration.
func DefaultTargetCount(total time.Duration) int {
	n := int(total / targetPer)
	if n < minTargetCount {
		return minTargetCount
	}
	if n > maxTargetCount {
		return maxTargetCount
	}
	return n
}

// BuildCandidates slides a window over consecutive scored segments and emits
// every contiguous run whose total duration stays within [minDur, maxDur].
// ImportanceSum is the plain sum of the member importances.
func BuildCandidates(scored []types.ScoredSegment, minDur, maxDur time.Duration) []types.ClipCandidate {
	if len(scored) == 0 || minDur <= 0 || maxDur < minDur {
		return nil
	}

	var out []types.ClipCandidate
	for i := 0; i < len(scored); i++ {
		start := dur(scored[i].Start)
		sum := 0.0
		var parts []string
		for j := i; j < len(scored); j++ {
			end := dur(scored[j].End)
			win := end - start
			if win > maxDur {
				break
			}
			sum += scored[j].Importance
			if t := strings.TrimSpace(scored[j].Text); t != "" {
				parts = append(parts, t)
			}
			if win < minDur {
				continue
			}
			out = append(out, types.ClipCandidate{
				Start:         start,
				End:           end,
				Text:          strings.Join(parts, " "),
				ImportanceSum: sum,
			})
		}
	}
	return out
}

// Select picks up to TargetCount non-overlapping candidates, greedily by
// descending importance sum, enforcing MinGap separation between accepted
// intervals. The result is re-sorted chronologically and ranked 1..n. An
// input too short or fragmented to yield any candidate returns an empty
// slice, not an error. Select is pure: identical input gives identical
// output.
func Select(scored []types.ScoredSegment, c types.ClipConstraints) ([]types.SelectedClip, error) {
	if err := validate(c); err != nil {
		return nil, err
	}
	if len(scored) == 0 {
		return []types.SelectedClip{}, nil
	}

	target := c.TargetCount
	if target <= 0 {
		span := dur(scored[len(scored)-1].End) - dur(scored[0].Start)
		target = DefaultTargetCount(span)
	}

	cands := BuildCandidates(scored, c.MinDuration, c.MaxDuration)
	if len(cands) == 0 {
		return []types.SelectedClip{}, nil
	}

	// Rank order: highest sum first, then shorter, then earlier. The order is
	// total for distinct windows, which keeps the greedy pass deterministic.
	sort.Slice(cands, func(i, j int) bool {
		a, b := cands[i], cands[j]
		if a.ImportanceSum != b.ImportanceSum {
			return a.ImportanceSum > b.ImportanceSum
		}
		if a.Duration() != b.Duration() {
			return a.Duration() < b.Duration()
		}
		return a.Start < b.Start
	})

	var accepted []types.ClipCandidate
	for _, cand := range cands {
		if len(accepted) >= target {
			break
		}
		if conflicts(cand, accepted, c.MinGap) {
			continue
		}
		accepted = append(accepted, cand)
	}

	sort.Slice(accepted, func(i, j int) bool { return accepted[i].Start < accepted[j].Start })

	out := make([]types.SelectedClip, 0, len(accepted))
	for i, a := range accepted {
		out = append(out, types.SelectedClip{
			Start:         a.Start,
			End:           a.End,
			Text:          a.Text,
			ImportanceSum: a.ImportanceSum,
			Rank:          i + 1,
		})
	}
	return out, nil
}

func validate(c types.ClipConstraints) error {
	if c.MinDuration <= 0 {
		return fmt.Errorf("min clip duration must be > 0, got %s", c.MinDuration)
	}
	if c.MaxDuration < c.MinDuration {
		return fmt.Errorf("max clip duration %s must be >= min %s", c.MaxDuration, c.MinDuration)
	}
	if c.MinGap < 0 {
		return fmt.Errorf("min gap must be >= 0, got %s", c.MinGap)
	}
	return nil
}

// conflicts reports whether cand, expanded by gap on both sides, overlaps
// any accepted interval.
func conflicts(cand types.ClipCandidate, accepted []types.ClipCandidate, gap time.Duration) bool {
	for _, a := range accepted {
		if cand.Start-gap < a.End && cand.End+gap > a.Start {
			return true
		}
	}
	return false
}

func dur(sec float64) time.Duration { return time.Duration(sec * float64(time.Second)) }
