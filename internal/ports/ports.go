package ports

import (
	"context"
	"errors"
	"time"

	"github.com/educlip/educlip/internal/types"
)

var (
	// ErrNotFound marks a lookup for an entity the store does not have.
	ErrNotFound = errors.New("not found")
	// ErrStaleStatus marks a compare-and-set status update that lost to a
	// concurrent writer or observed an unexpected stored state.
	ErrStaleStatus = errors.New("stale status")
)

// VideoTool wraps the external media binary. Every call is synchronous and
// may fail; cutting failures come back as *CutError so the orchestrator can
// retry them.
type VideoTool interface {
	ExtractAudioMono16k(ctx context.Context, inPath, outWav string) error
	CutClip(ctx context.Context, inPath string, start, end time.Duration, outPath string) error
	ProbeDuration(ctx context.Context, inPath string) (time.Duration, error)
	Thumbnail(ctx context.Context, inPath string, at time.Duration, outPath string) error
}

// ASR transcribes extracted audio into ordered, non-overlapping segments.
type ASR interface {
	Transcribe(ctx context.Context, audioPath string) (types.Transcript, error)
}

// Summarizer is the LLM collaborator. Salience hints in the returned summary
// are optional; an empty map is a valid answer.
type Summarizer interface {
	Summarize(ctx context.Context, tr types.Transcript) (types.Summary, error)
}

// Store persists videos, stage outputs, and engagement events. Status
// updates are compare-and-set so only legal machine transitions land.
type Store interface {
	CreateVideo(ctx context.Context, v types.Video) error
	GetVideo(ctx context.Context, id string) (types.Video, error)
	ListVideos(ctx context.Context, ownerID string) ([]types.Video, error)
	DeleteVideo(ctx context.Context, id string) error

	// SetStatus moves id from `from` to `to`. It fails when the stored status
	// is not `from` or when the transition is not part of the machine.
	// failedStage records the triggering stage for terminal failures.
	SetStatus(ctx context.Context, id string, from, to types.VideoStatus, failedStage string) error
	SetDuration(ctx context.Context, id string, seconds float64) error

	SaveTranscript(ctx context.Context, videoID string, tr types.Transcript) error
	GetTranscript(ctx context.Context, videoID string) (types.Transcript, error)

	SaveSummary(ctx context.Context, videoID string, s types.Summary) error
	GetSummary(ctx context.Context, videoID string) (types.Summary, error)

	// ReplaceClips atomically discards any prior clip set for the video and
	// stores the new one.
	ReplaceClips(ctx context.Context, videoID string, clips []types.Clip) error
	ListClips(ctx context.Context, videoID string) ([]types.Clip, error)

	AddWatchEvent(ctx context.Context, ev types.WatchEvent) error
	UserAnalytics(ctx context.Context, userID string) (types.UserAnalytics, error)
	VideoAnalytics(ctx context.Context, videoID string) (types.VideoAnalytics, error)
}

// CutError marks a media-tool failure while extracting a clip subrange.
// Retryable a bounded number of times, unlike data-integrity failures.
type CutError struct {
	Path string
	Err  error
}

func (e *CutError) Error() string { return "cut clip " + e.Path + ": " + e.Err.Error() }
func (e *CutError) Unwrap() error { return e.Err }
