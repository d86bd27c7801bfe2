package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/educlip/educlip/internal/domain/clips"
	"github.com/educlip/educlip/internal/domain/scoring"
	"github.com/educlip/educlip/internal/domain/subtitles"
	"github.com/educlip/educlip/internal/ports"
	"github.com/educlip/educlip/internal/types"
)

// Stage names recorded on terminal failures.
const (
	StageTranscribe = "transcribing"
	StageSummarize  = "summarizing"
	StageSelect     = "selecting"
	StageCut        = "cutting"
)

type Deps struct {
	Video      ports.VideoTool
	ASR        ports.ASR
	Summarizer ports.Summarizer
	Store      ports.Store
	Scorer     *scoring.Scorer
	Log        *logrus.Entry
}

type Usecase struct{ d Deps }

func New(d Deps) Usecase {
	if d.Log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		d.Log = logrus.NewEntry(l)
	}
	return Usecase{d: d}
}

type Input struct {
	VideoID     string
	InputPath   string
	CacheDir    string
	OutDir      string
	Constraints types.ClipConstraints

	// WriteSubtitles emits a per-clip SRT file next to each cut clip.
	WriteSubtitles bool
	// CutRetries bounds re-attempts of a failed cut. Zero means 2.
	CutRetries uint64
}

type Result struct {
	Manifest types.Manifest
	Clips    []types.Clip
}

// Run executes the per-video pipeline in strict stage order: transcribe,
// summarize, score+select, cut. Each stage output is persisted with the
// matching status transition; a canceled context stops further stages and
// the in-flight stage's result is discarded, never persisted. Stage failure
// lands the video in the terminal failed status with the stage recorded;
// already-persisted outputs of earlier stages survive.
func (u Usecase) Run(ctx context.Context, in Input) (Result, error) {
	log := u.d.Log.WithField("video_id", in.VideoID)

	// transcribe
	if err := u.advance(ctx, in.VideoID, types.StatusUploaded, types.StatusTranscribing); err != nil {
		return Result{}, err
	}
	tr, videoDur, err := u.transcribe(ctx, in)
	if err != nil {
		return Result{}, u.fail(ctx, in.VideoID, types.StatusTranscribing, StageTranscribe, err)
	}
	log.WithField("segments", len(tr.Segments)).Info("transcription complete")

	// summarize
	if err := u.advance(ctx, in.VideoID, types.StatusTranscribing, types.StatusSummarizing); err != nil {
		return Result{}, err
	}
	sum, err := u.d.Summarizer.Summarize(ctx, tr)
	if cerr := ctx.Err(); cerr != nil {
		return Result{}, cerr
	}
	if err != nil {
		return Result{}, u.fail(ctx, in.VideoID, types.StatusSummarizing, StageSummarize, err)
	}
	if err := u.d.Store.SaveSummary(ctx, in.VideoID, sum); err != nil {
		return Result{}, u.fail(ctx, in.VideoID, types.StatusSummarizing, StageSummarize, err)
	}
	log.WithField("salience_hints", len(sum.Salience)).Info("summary complete")

	// score + select
	if err := u.advance(ctx, in.VideoID, types.StatusSummarizing, types.StatusSelecting); err != nil {
		return Result{}, err
	}
	selected, err := u.selectClips(tr, sum, videoDur, in.Constraints)
	if err != nil {
		return Result{}, u.fail(ctx, in.VideoID, types.StatusSelecting, StageSelect, err)
	}
	log.WithField("clips", len(selected)).Info("selection complete")

	// cut
	if err := u.advance(ctx, in.VideoID, types.StatusSelecting, types.StatusCutting); err != nil {
		return Result{}, err
	}
	res, err := u.cut(ctx, in, tr, selected)
	if cerr := ctx.Err(); cerr != nil {
		return Result{}, cerr
	}
	if err != nil {
		return Result{}, u.fail(ctx, in.VideoID, types.StatusCutting, StageCut, err)
	}
	if err := u.d.Store.ReplaceClips(ctx, in.VideoID, res.Clips); err != nil {
		return Result{}, u.fail(ctx, in.VideoID, types.StatusCutting, StageCut, err)
	}

	if err := u.advance(ctx, in.VideoID, types.StatusCutting, types.StatusComplete); err != nil {
		return Result{}, err
	}
	log.Info("processing complete")
	return res, nil
}

func (u Usecase) transcribe(ctx context.Context, in Input) (types.Transcript, time.Duration, error) {
	videoDur, err := u.d.Video.ProbeDuration(ctx, in.InputPath)
	if err != nil {
		return types.Transcript{}, 0, err
	}
	if err := u.d.Store.SetDuration(ctx, in.VideoID, videoDur.Seconds()); err != nil {
		return types.Transcript{}, 0, err
	}

	wav := filepath.Join(in.CacheDir, "audio.wav")
	if err := u.d.Video.ExtractAudioMono16k(ctx, in.InputPath, wav); err != nil {
		return types.Transcript{}, 0, err
	}
	tr, err := u.d.ASR.Transcribe(ctx, wav)
	if cerr := ctx.Err(); cerr != nil {
		return types.Transcript{}, 0, cerr
	}
	if err != nil {
		return types.Transcript{}, 0, err
	}
	if err := u.d.Store.SaveTranscript(ctx, in.VideoID, tr); err != nil {
		return types.Transcript{}, 0, err
	}
	return tr, videoDur, nil
}

func (u Usecase) selectClips(tr types.Transcript, sum types.Summary, videoDur time.Duration, c types.ClipConstraints) ([]types.SelectedClip, error) {
	scored, err := u.d.Scorer.Score(tr.Segments, sum.Salience)
	if err != nil {
		return nil, err
	}
	if c.TargetCount <= 0 {
		c.TargetCount = clips.DefaultTargetCount(videoDur)
	}
	return clips.Select(scored, c)
}

func (u Usecase) cut(ctx context.Context, in Input, tr types.Transcript, selected []types.SelectedClip) (Result, error) {
	clipsDir := filepath.Join(in.OutDir, "clips")
	subtitlesDir := filepath.Join(in.OutDir, "subtitles")
	thumbsDir := filepath.Join(in.OutDir, "thumbnails")
	for _, d := range []string{clipsDir, thumbsDir} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return Result{}, err
		}
	}
	if in.WriteSubtitles {
		if err := os.MkdirAll(subtitlesDir, 0o755); err != nil {
			return Result{}, err
		}
	}

	retries := in.CutRetries
	if retries == 0 {
		retries = 2
	}

	m := types.Manifest{Input: in.InputPath}
	rows := make([]types.Clip, 0, len(selected))
	for _, sc := range selected {
		id := fmt.Sprintf("%03d", sc.Rank)
		clipRel := filepath.ToSlash(filepath.Join("clips", id+".mp4"))
		clipPath := filepath.Join(clipsDir, id+".mp4")

		subsRel := ""
		if in.WriteSubtitles {
			srt := subtitles.RenderSRT(tr, sc.Start, sc.End)
			if srt != "" {
				subsRel = filepath.ToSlash(filepath.Join("subtitles", id+".srt"))
				if err := os.WriteFile(filepath.Join(subtitlesDir, id+".srt"), []byte(srt), 0o644); err != nil {
					return Result{}, err
				}
			}
		}

		if err := u.cutWithRetry(ctx, in.InputPath, sc, clipPath, retries); err != nil {
			return Result{}, err
		}

		// Thumbnail loss is cosmetic; the clip itself is the artifact.
		thumbPath := filepath.Join(thumbsDir, id+".jpg")
		if err := u.d.Video.Thumbnail(ctx, in.InputPath, sc.Start+sc.Duration()/2, thumbPath); err != nil {
			u.d.Log.WithField("video_id", in.VideoID).WithError(err).Warn("thumbnail failed")
		}

		rows = append(rows, types.Clip{
			ID:         uuid.NewString(),
			VideoID:    in.VideoID,
			Rank:       sc.Rank,
			StartSec:   sc.Start.Seconds(),
			EndSec:     sc.End.Seconds(),
			Importance: sc.ImportanceSum,
			Text:       sc.Text,
			File:       clipRel,
			Subtitles:  subsRel,
		})
		m.Clips = append(m.Clips, types.ManifestClip{
			ID:         id,
			Rank:       sc.Rank,
			StartSec:   sc.Start.Seconds(),
			EndSec:     sc.End.Seconds(),
			Importance: sc.ImportanceSum,
			Text:       sc.Text,
			File:       clipRel,
			Subtitles:  subsRel,
		})
	}
	return Result{Manifest: m, Clips: rows}, nil
}

// cutWithRetry re-attempts media-tool failures with capped exponential
// backoff. Anything other than a CutError is permanent.
func (u Usecase) cutWithRetry(ctx context.Context, inPath string, sc types.SelectedClip, outPath string, retries uint64) error {
	op := func() error {
		err := u.d.Video.CutClip(ctx, inPath, sc.Start, sc.End, outPath)
		if err == nil {
			return nil
		}
		var ce *ports.CutError
		if errors.As(err, &ce) {
			return err
		}
		return backoff.Permanent(err)
	}
	b := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), retries), ctx)
	return backoff.Retry(op, b)
}

func (u Usecase) advance(ctx context.Context, videoID string, from, to types.VideoStatus) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := u.d.Store.SetStatus(ctx, videoID, from, to, ""); err != nil {
		return err
	}
	return nil
}

// fail records the terminal failed status and returns the stage error. A
// canceled context wins over failure bookkeeping: the video may be gone.
func (u Usecase) fail(ctx context.Context, videoID string, from types.VideoStatus, stage string, cause error) error {
	if cerr := ctx.Err(); cerr != nil {
		return cerr
	}
	if err := u.d.Store.SetStatus(ctx, videoID, from, types.StatusFailed, stage); err != nil {
		u.d.Log.WithField("video_id", videoID).WithError(err).Warn("could not record failed status")
	}
	return fmt.Errorf("%s: %w", stage, cause)
}
