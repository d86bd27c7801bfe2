package types

// VideoStatus is the processing state of one video. Transitions follow a
// fixed machine with a single writer (the pipeline runner); everything else
// only reads.
type VideoStatus string

const (
	StatusUploaded     VideoStatus = "uploaded"
	StatusTranscribing VideoStatus = "transcribing"
	StatusSummarizing  VideoStatus = "summarizing"
	StatusSelecting    VideoStatus = "selecting"
	StatusCutting      VideoStatus = "cutting"
	StatusComplete     VideoStatus = "complete"
	StatusFailed       VideoStatus = "failed"
)

var statusNext = map[VideoStatus][]VideoStatus{
	StatusUploaded:     {StatusTranscribing, StatusFailed},
	StatusTranscribing: {StatusSummarizing, StatusFailed},
	StatusSummarizing:  {StatusSelecting, StatusFailed},
	StatusSelecting:    {StatusCutting, StatusFailed},
	StatusCutting:      {StatusComplete, StatusFailed},
	// complete and failed are terminal
	StatusComplete: nil,
	StatusFailed:   nil,
}

// ValidTransition reports whether from -> to is a legal status change.
func ValidTransition(from, to VideoStatus) bool {
	for _, n := range statusNext[from] {
		if n == to {
			return true
		}
	}
	return false
}

// Terminal reports whether s admits no further transitions.
func (s VideoStatus) Terminal() bool { return len(statusNext[s]) == 0 }

// Known reports whether s is part of the machine at all.
func (s VideoStatus) Known() bool {
	_, ok := statusNext[s]
	return ok
}
