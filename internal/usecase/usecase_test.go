package usecase

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/educlip/educlip/internal/domain/scoring"
	"github.com/educlip/educlip/internal/ports"
	"github.com/educlip/educlip/internal/ports/adapters/memstore"
	"github.com/educlip/educlip/internal/types"
)

type fakeVideoTool struct {
	cutCalls  []string
	cutStarts []time.Duration
	failCuts  int // fail this many cut calls with a CutError before succeeding
	probeDur  time.Duration
}

func (f *fakeVideoTool) ExtractAudioMono16k(_ context.Context, _, _ string) error { return nil }

func (f *fakeVideoTool) CutClip(_ context.Context, _ string, start, _ time.Duration, outPath string) error {
	f.cutCalls = append(f.cutCalls, outPath)
	if f.failCuts > 0 {
		f.failCuts--
		return &ports.CutError{Path: outPath, Err: errors.New("tool exploded")}
	}
	f.cutStarts = append(f.cutStarts, start)
	return nil
}

func (f *fakeVideoTool) ProbeDuration(_ context.Context, _ string) (time.Duration, error) {
	if f.probeDur == 0 {
		return 5 * time.Minute, nil
	}
	return f.probeDur, nil
}

func (f *fakeVideoTool) Thumbnail(_ context.Context, _ string, _ time.Duration, _ string) error {
	return nil
}

type fakeASR struct {
	tr  types.Transcript
	err error
}

func (f fakeASR) Transcribe(_ context.Context, _ string) (types.Transcript, error) {
	return f.tr, f.err
}

type fakeSummarizer struct {
	sum    types.Summary
	err    error
	onCall func()
}

func (f fakeSummarizer) Summarize(_ context.Context, _ types.Transcript) (types.Summary, error) {
	if f.onCall != nil {
		f.onCall()
	}
	return f.sum, f.err
}

func lectureTranscript() types.Transcript {
	segs := make([]types.TranscriptSegment, 0, 10)
	for i := 0; i < 10; i++ {
		segs = append(segs, types.TranscriptSegment{
			Start: float64(i) * 30,
			End:   float64(i+1) * 30,
			Text:  fmt.Sprintf("the key concept number %d is important for the exam", i),
		})
	}
	return types.Transcript{Segments: segs, Language: "en", Duration: 300}
}

func newDeps(t *testing.T, video *fakeVideoTool, asr fakeASR, sum fakeSummarizer) (Deps, *memstore.Store) {
	t.Helper()
	scorer, err := scoring.NewScorer(scoring.DefaultWeights(), nil)
	if err != nil {
		t.Fatalf("new scorer: %v", err)
	}
	st := memstore.New()
	return Deps{Video: video, ASR: asr, Summarizer: sum, Store: st, Scorer: scorer}, st
}

func createVideo(t *testing.T, st *memstore.Store, id string) {
	t.Helper()
	err := st.CreateVideo(context.Background(), types.Video{
		ID: id, OwnerID: "u1", Title: "lecture", Status: types.StatusUploaded, UploadedAt: time.Now(),
	})
	if err != nil {
		t.Fatalf("create video: %v", err)
	}
}

func baseInput(t *testing.T, id string) Input {
	t.Helper()
	tmp := t.TempDir()
	return Input{
		VideoID:   id,
		InputPath: filepath.Join(tmp, "in.mp4"),
		CacheDir:  filepath.Join(tmp, "cache"),
		OutDir:    filepath.Join(tmp, "out"),
		Constraints: types.ClipConstraints{
			TargetCount: 2,
			MinDuration: 30 * time.Second,
			MaxDuration: 90 * time.Second,
		},
		WriteSubtitles: true,
	}
}

func TestRun_HappyPath(t *testing.T) {
	t.Parallel()

	video := &fakeVideoTool{}
	deps, st := newDeps(t, video, fakeASR{tr: lectureTranscript()}, fakeSummarizer{
		sum: types.Summary{ExecutiveSummary: "s", Salience: map[int]float64{3: 0.9}},
	})
	createVideo(t, st, "v1")
	in := baseInput(t, "v1")
	if err := os.MkdirAll(in.CacheDir, 0o755); err != nil {
		t.Fatalf("mkdir cache: %v", err)
	}

	res, err := New(deps).Run(context.Background(), in)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(res.Clips) != 2 {
		t.Fatalf("expected 2 clips, got %d", len(res.Clips))
	}

	v, err := st.GetVideo(context.Background(), "v1")
	if err != nil {
		t.Fatalf("get video: %v", err)
	}
	if v.Status != types.StatusComplete {
		t.Fatalf("expected complete status, got %s", v.Status)
	}
	if v.DurationSec != 300 {
		t.Fatalf("expected probed duration persisted, got %v", v.DurationSec)
	}

	stored, err := st.ListClips(context.Background(), "v1")
	if err != nil {
		t.Fatalf("list clips: %v", err)
	}
	if len(stored) != 2 {
		t.Fatalf("expected 2 persisted clips, got %d", len(stored))
	}
	if stored[0].Rank != 1 || stored[1].Rank != 2 {
		t.Fatalf("expected ranks 1,2, got %d,%d", stored[0].Rank, stored[1].Rank)
	}
	if stored[0].StartSec >= stored[1].StartSec {
		t.Fatal("expected chronological clip order")
	}

	// Subtitle artifact next to the clip.
	b, err := os.ReadFile(filepath.Join(in.OutDir, "subtitles", "001.srt"))
	if err != nil {
		t.Fatalf("read srt: %v", err)
	}
	if !strings.Contains(string(b), "-->") {
		t.Fatalf("expected SRT cue markers, got:\n%s", b)
	}

	if len(res.Manifest.Clips) != 2 {
		t.Fatalf("expected 2 manifest clips, got %d", len(res.Manifest.Clips))
	}
}

func TestRun_CutRetriesThenSucceeds(t *testing.T) {
	t.Parallel()

	video := &fakeVideoTool{failCuts: 2}
	deps, st := newDeps(t, video, fakeASR{tr: lectureTranscript()}, fakeSummarizer{})
	createVideo(t, st, "v1")
	in := baseInput(t, "v1")
	in.Constraints.TargetCount = 1
	in.CutRetries = 3

	if _, err := New(deps).Run(context.Background(), in); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(video.cutCalls) != 3 {
		t.Fatalf("expected 3 cut attempts, got %d", len(video.cutCalls))
	}
	v, _ := st.GetVideo(context.Background(), "v1")
	if v.Status != types.StatusComplete {
		t.Fatalf("expected complete status, got %s", v.Status)
	}
}

func TestRun_CutFailureExhaustsRetries(t *testing.T) {
	t.Parallel()

	video := &fakeVideoTool{failCuts: 100}
	deps, st := newDeps(t, video, fakeASR{tr: lectureTranscript()}, fakeSummarizer{})
	createVideo(t, st, "v1")
	in := baseInput(t, "v1")
	in.CutRetries = 1

	_, err := New(deps).Run(context.Background(), in)
	if err == nil {
		t.Fatal("expected error")
	}
	var ce *ports.CutError
	if !errors.As(err, &ce) {
		t.Fatalf("expected CutError, got %v", err)
	}

	v, _ := st.GetVideo(context.Background(), "v1")
	if v.Status != types.StatusFailed {
		t.Fatalf("expected failed status, got %s", v.Status)
	}
	if v.FailedStage != StageCut {
		t.Fatalf("expected failing stage recorded, got %q", v.FailedStage)
	}

	// Earlier stage outputs survive the failure.
	if _, err := st.GetTranscript(context.Background(), "v1"); err != nil {
		t.Fatalf("transcript should survive a cutting failure: %v", err)
	}
	if _, err := st.GetSummary(context.Background(), "v1"); err != nil {
		t.Fatalf("summary should survive a cutting failure: %v", err)
	}
}

func TestRun_MalformedTranscriptFailsSelecting(t *testing.T) {
	t.Parallel()

	bad := types.Transcript{Segments: []types.TranscriptSegment{
		{Start: 0, End: 60, Text: "a"},
		{Start: 30, End: 90, Text: "overlaps"},
	}}
	deps, st := newDeps(t, &fakeVideoTool{}, fakeASR{tr: bad}, fakeSummarizer{})
	createVideo(t, st, "v1")

	_, err := New(deps).Run(context.Background(), baseInput(t, "v1"))
	var die *scoring.DataIntegrityError
	if !errors.As(err, &die) {
		t.Fatalf("expected DataIntegrityError, got %v", err)
	}

	v, _ := st.GetVideo(context.Background(), "v1")
	if v.Status != types.StatusFailed || v.FailedStage != StageSelect {
		t.Fatalf("expected failed at selecting, got %s/%s", v.Status, v.FailedStage)
	}
}

func TestRun_CancellationDiscardsInFlightResult(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	deps, st := newDeps(t, &fakeVideoTool{}, fakeASR{tr: lectureTranscript()}, fakeSummarizer{
		sum:    types.Summary{ExecutiveSummary: "should never be stored"},
		onCall: cancel, // cancellation lands while the call is in flight
	})
	createVideo(t, st, "v1")

	_, err := New(deps).Run(ctx, baseInput(t, "v1"))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}

	// The summary arrived after cancellation and must not have been persisted.
	if _, err := st.GetSummary(context.Background(), "v1"); !errors.Is(err, ports.ErrNotFound) {
		t.Fatalf("expected no stored summary, got %v", err)
	}
	// Cancellation is not a failure.
	v, _ := st.GetVideo(context.Background(), "v1")
	if v.Status == types.StatusFailed {
		t.Fatal("cancelled run must not mark the video failed")
	}
}

func TestRun_EmptySelectionIsNotAnError(t *testing.T) {
	t.Parallel()

	// One 20s segment against a 30s minimum: legitimate empty outcome.
	short := types.Transcript{Segments: []types.TranscriptSegment{{Start: 0, End: 20, Text: "too short"}}}
	video := &fakeVideoTool{probeDur: 20 * time.Second}
	deps, st := newDeps(t, video, fakeASR{tr: short}, fakeSummarizer{})
	createVideo(t, st, "v1")

	res, err := New(deps).Run(context.Background(), baseInput(t, "v1"))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(res.Clips) != 0 {
		t.Fatalf("expected no clips, got %d", len(res.Clips))
	}
	v, _ := st.GetVideo(context.Background(), "v1")
	if v.Status != types.StatusComplete {
		t.Fatalf("expected complete status, got %s", v.Status)
	}
	if len(video.cutCalls) != 0 {
		t.Fatalf("expected no cut calls, got %d", len(video.cutCalls))
	}
}
