package pipeline

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/educlip/educlip/internal/domain/scoring"
	"github.com/educlip/educlip/internal/ports"
	"github.com/educlip/educlip/internal/ports/adapters/memstore"
	"github.com/educlip/educlip/internal/types"
	"github.com/educlip/educlip/internal/usecase"
)

type stubVideoTool struct{}

func (stubVideoTool) ExtractAudioMono16k(context.Context, string, string) error { return nil }
func (stubVideoTool) CutClip(context.Context, string, time.Duration, time.Duration, string) error {
	return nil
}
func (stubVideoTool) ProbeDuration(context.Context, string) (time.Duration, error) {
	return 5 * time.Minute, nil
}
func (stubVideoTool) Thumbnail(context.Context, string, time.Duration, string) error { return nil }

type stubASR struct{ tr types.Transcript }

func (s stubASR) Transcribe(context.Context, string) (types.Transcript, error) { return s.tr, nil }

// blockingSummarizer parks until its context is cancelled, signalling when
// the call has started.
type blockingSummarizer struct{ started chan struct{} }

func (b blockingSummarizer) Summarize(ctx context.Context, _ types.Transcript) (types.Summary, error) {
	close(b.started)
	<-ctx.Done()
	return types.Summary{}, ctx.Err()
}

func runnerTranscript() types.Transcript {
	return types.Transcript{Segments: []types.TranscriptSegment{
		{Start: 0, End: 60, Text: "the key definition"},
		{Start: 60, End: 120, Text: "an important example"},
	}}
}

func newRunnerUnderTest(t *testing.T, sum ports.Summarizer) (*Runner, *memstore.Store) {
	t.Helper()
	scorer, err := scoring.NewScorer(scoring.DefaultWeights(), nil)
	if err != nil {
		t.Fatalf("new scorer: %v", err)
	}
	st := memstore.New()
	r := NewRunner(usecase.Deps{
		Video:      stubVideoTool{},
		ASR:        stubASR{tr: runnerTranscript()},
		Summarizer: sum,
		Store:      st,
		Scorer:     scorer,
	}, nil)
	return r, st
}

func runnerInput(t *testing.T, id string) usecase.Input {
	t.Helper()
	tmp := t.TempDir()
	return usecase.Input{
		VideoID:   id,
		InputPath: filepath.Join(tmp, "in.mp4"),
		CacheDir:  tmp,
		OutDir:    filepath.Join(tmp, "out"),
		Constraints: types.ClipConstraints{
			TargetCount: 1,
			MinDuration: 30 * time.Second,
			MaxDuration: 90 * time.Second,
		},
	}
}

func TestRunner_CancelStopsFurtherStages(t *testing.T) {
	sum := blockingSummarizer{started: make(chan struct{})}
	r, st := newRunnerUnderTest(t, sum)
	if err := st.CreateVideo(context.Background(), types.Video{
		ID: "v1", OwnerID: "u1", Title: "t", Status: types.StatusUploaded, UploadedAt: time.Now(),
	}); err != nil {
		t.Fatalf("create video: %v", err)
	}

	if !r.Start(runnerInput(t, "v1")) {
		t.Fatal("start refused")
	}
	<-sum.started
	if !r.Cancel("v1") {
		t.Fatal("expected a running job to cancel")
	}
	r.Wait()

	// Transcript was persisted before the cancel; summary never lands.
	if _, err := st.GetTranscript(context.Background(), "v1"); err != nil {
		t.Fatalf("transcript should have been persisted: %v", err)
	}
	if _, err := st.GetSummary(context.Background(), "v1"); !errors.Is(err, ports.ErrNotFound) {
		t.Fatalf("summary must not be persisted after cancel, got %v", err)
	}
	v, _ := st.GetVideo(context.Background(), "v1")
	if v.Status == types.StatusFailed || v.Status == types.StatusComplete {
		t.Fatalf("cancelled run must not reach a terminal status, got %s", v.Status)
	}
}

func TestRunner_RejectsDuplicateStart(t *testing.T) {
	sum := blockingSummarizer{started: make(chan struct{})}
	r, st := newRunnerUnderTest(t, sum)
	if err := st.CreateVideo(context.Background(), types.Video{
		ID: "v1", OwnerID: "u1", Title: "t", Status: types.StatusUploaded, UploadedAt: time.Now(),
	}); err != nil {
		t.Fatalf("create video: %v", err)
	}

	in := runnerInput(t, "v1")
	if !r.Start(in) {
		t.Fatal("first start refused")
	}
	<-sum.started
	if r.Start(in) {
		t.Fatal("second start for the same video must be refused")
	}
	r.Cancel("v1")
	r.Wait()
}

func TestRunner_CancelUnknownVideo(t *testing.T) {
	r, _ := newRunnerUnderTest(t, blockingSummarizer{started: make(chan struct{})})
	if r.Cancel("missing") {
		t.Fatal("expected cancel of unknown video to report false")
	}
}
