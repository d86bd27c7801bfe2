package types

import "time"

// Transcript is the full ASR output for one video. Segments are ordered by
// start time and never overlap; the transcription step owns that guarantee.
type Transcript struct {
	Segments []TranscriptSegment `json:"segments"`
	Language string              `json:"language,omitempty"`
	Duration float64             `json:"duration,omitempty"`
}

type TranscriptSegment struct {
	Start      float64 `json:"start"`
	End        float64 `json:"end"`
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence,omitempty"`
}

// ScoredSegment is a TranscriptSegment with a derived importance in [0,100].
// Scored segments are recomputed per selection run, never persisted alone.
type ScoredSegment struct {
	TranscriptSegment
	Importance float64 `json:"importance"`
}

// ClipCandidate is a contiguous run of adjacent scored segments whose total
// duration falls within the configured clip bounds.
type ClipCandidate struct {
	Start         time.Duration
	End           time.Duration
	Text          string
	ImportanceSum float64
}

func (c ClipCandidate) Duration() time.Duration { return c.End - c.Start }

// SelectedClip is a candidate accepted by the selector. Rank is the
// chronological display order (1..n), not an importance order.
type SelectedClip struct {
	Start         time.Duration
	End           time.Duration
	Text          string
	ImportanceSum float64
	Rank          int
}

func (c SelectedClip) Duration() time.Duration { return c.End - c.Start }

// ClipConstraints bounds one selection run. A TargetCount <= 0 asks the
// selector to derive one from the span of the input.
type ClipConstraints struct {
	TargetCount int
	MinDuration time.Duration
	MaxDuration time.Duration
	MinGap      time.Duration
}

// Summary is the LLM analysis of one transcript. Salience maps segment index
// to a hint in [0,1]; a missing index means no hint, never an error.
type Summary struct {
	ExecutiveSummary   string          `json:"executive_summary"`
	KeyConcepts        []string        `json:"key_concepts"`
	LearningObjectives []string        `json:"learning_objectives"`
	Difficulty         string          `json:"difficulty"`
	Salience           map[int]float64 `json:"salience,omitempty"`
}

type Video struct {
	ID          string      `json:"video_id"`
	OwnerID     string      `json:"owner_id"`
	Title       string      `json:"title"`
	Description string      `json:"description,omitempty"`
	FilePath    string      `json:"-"`
	Status      VideoStatus `json:"status"`
	FailedStage string      `json:"failed_stage,omitempty"`
	DurationSec float64     `json:"duration,omitempty"`
	UploadedAt  time.Time   `json:"uploaded_at"`
}

// Clip is a persisted SelectedClip. One selection run replaces the whole set
// for a video atomically; clips are never mutated afterwards.
type Clip struct {
	ID         string  `json:"clip_id"`
	VideoID    string  `json:"video_id"`
	Rank       int     `json:"rank"`
	StartSec   float64 `json:"start_sec"`
	EndSec     float64 `json:"end_sec"`
	Importance float64 `json:"importance"`
	Text       string  `json:"text,omitempty"`
	File       string  `json:"file,omitempty"`
	Subtitles  string  `json:"subtitles,omitempty"`
}

// WatchEvent is one engagement sample reported by a player.
type WatchEvent struct {
	UserID     string    `json:"user_id"`
	VideoID    string    `json:"video_id"`
	WatchedSec float64   `json:"watched_sec"`
	Completed  float64   `json:"completed"` // fraction in [0,1]
	At         time.Time `json:"at"`
}

type UserAnalytics struct {
	UserID            string  `json:"user_id"`
	VideosWatched     int     `json:"total_videos_watched"`
	TotalWatchTimeSec float64 `json:"total_watch_time"`
	AvgCompletionRate float64 `json:"average_completion_rate"`
}

type VideoAnalytics struct {
	VideoID         string  `json:"video_id"`
	TotalViews      int     `json:"total_views"`
	UniqueViewers   int     `json:"unique_viewers"`
	AvgWatchTimeSec float64 `json:"average_watch_time"`
	CompletionRate  float64 `json:"completion_rate"`
}

// Manifest describes the artifacts of one pipeline run.
type Manifest struct {
	Input string         `json:"input"`
	Clips []ManifestClip `json:"clips"`
}

type ManifestClip struct {
	ID         string  `json:"id"`
	Rank       int     `json:"rank"`
	StartSec   float64 `json:"start_sec"`
	EndSec     float64 `json:"end_sec"`
	Importance float64 `json:"importance"`
	Text       string  `json:"text"`
	File       string  `json:"file"`
	Subtitles  string  `json:"subtitles,omitempty"`
}
