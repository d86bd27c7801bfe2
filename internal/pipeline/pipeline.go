package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"

	"github.com/educlip/educlip/internal/domain/scoring"
	"github.com/educlip/educlip/internal/logging"
	"github.com/educlip/educlip/internal/ports"
	"github.com/educlip/educlip/internal/ports/adapters/ffmpeg"
	"github.com/educlip/educlip/internal/ports/adapters/memstore"
	"github.com/educlip/educlip/internal/ports/adapters/openaiasr"
	"github.com/educlip/educlip/internal/ports/adapters/openaillm"
	"github.com/educlip/educlip/internal/ports/adapters/postgres"
	"github.com/educlip/educlip/internal/types"
	"github.com/educlip/educlip/internal/usecase"
)

type Config struct {
	InputPath string
	OutDir    string
	Title     string
	OwnerID   string

	Constraints    types.ClipConstraints
	WriteSubtitles bool
	CutRetries     uint64

	// CacheDir is the base directory for local artifacts (audio, etc.).
	// If empty, defaults to ".cache".
	CacheDir string

	FFmpegPath  string
	FFprobePath string

	OpenAIAPIKey    string
	ASRModel        string
	LLMModel        string
	LLMBaseURL      string
	LLMAllowedHosts []string

	// PostgresURL selects the relational store; empty keeps everything in
	// memory for one-shot local runs.
	PostgresURL string

	ScoringWeights scoring.Weights

	Log *logging.Logger
}

func (c Config) Validate() error {
	if c.InputPath == "" {
		return errors.New("input is empty")
	}
	if _, err := os.Stat(c.InputPath); err != nil {
		return fmt.Errorf("stat input: %w", err)
	}
	if c.Constraints.MinDuration <= 0 {
		return fmt.Errorf("min clip duration must be > 0")
	}
	if c.Constraints.MaxDuration < c.Constraints.MinDuration {
		return fmt.Errorf("max clip duration must be >= min")
	}
	if c.Constraints.MinGap < 0 {
		return fmt.Errorf("min gap must be >= 0")
	}
	if c.OpenAIAPIKey == "" {
		return errors.New("API key is required")
	}
	if err := c.ScoringWeights.Validate(); err != nil {
		return err
	}
	return openaillm.ValidateBaseURL(c.LLMBaseURL, c.LLMAllowedHosts)
}

// Run executes the whole pipeline once for a local file: registers the video,
// processes it, and writes a manifest into a per-run output directory.
func Run(ctx context.Context, cfg Config) error {
	log := cfg.Log
	if log == nil {
		log = logging.New()
	}

	v := ffmpeg.New(cfg.FFmpegPath, cfg.FFprobePath)
	asr := openaiasr.New(cfg.OpenAIAPIKey, "", cfg.ASRModel)
	llm := openaillm.New(cfg.OpenAIAPIKey, cfg.LLMBaseURL, cfg.LLMModel)

	scorer, err := scoring.NewScorer(cfg.ScoringWeights, nil)
	if err != nil {
		return err
	}

	var store ports.Store
	if cfg.PostgresURL != "" {
		pg, err := postgres.Connect(ctx, cfg.PostgresURL)
		if err != nil {
			return err
		}
		defer pg.Close()
		store = pg
	} else {
		store = memstore.New()
	}

	uc := usecase.New(usecase.Deps{
		Video:      v,
		ASR:        asr,
		Summarizer: llm,
		Store:      store,
		Scorer:     scorer,
		Log:        log.Entry,
	})

	jobID := hash(cfg.InputPath)
	baseCache := cfg.CacheDir
	if baseCache == "" {
		baseCache = ".cache"
	}
	cacheDir := filepath.Join(baseCache, "runs", jobID)
	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		return err
	}
	log.WithField("cache", cacheDir).Info("workspace ready")

	outDir := cfg.OutDir
	if outDir == "" {
		outDir = "out"
	}
	runOutDir := buildRunOutDir(outDir, cfg.InputPath, time.Now().UTC())
	if err := os.MkdirAll(runOutDir, 0o755); err != nil {
		return err
	}
	log.WithField("out", runOutDir).Info("output run dir ready")

	title := cfg.Title
	if title == "" {
		title = filepath.Base(cfg.InputPath)
	}
	videoID := uuid.NewString()
	if err := store.CreateVideo(ctx, types.Video{
		ID:         videoID,
		OwnerID:    cfg.OwnerID,
		Title:      title,
		FilePath:   cfg.InputPath,
		Status:     types.StatusUploaded,
		UploadedAt: time.Now().UTC(),
	}); err != nil {
		return err
	}

	res, err := uc.Run(ctx, usecase.Input{
		VideoID:        videoID,
		InputPath:      cfg.InputPath,
		CacheDir:       cacheDir,
		OutDir:         runOutDir,
		Constraints:    cfg.Constraints,
		WriteSubtitles: cfg.WriteSubtitles,
		CutRetries:     cfg.CutRetries,
	})
	if err != nil {
		return err
	}

	b, err := json.MarshalIndent(res.Manifest, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}
	manifestPath := filepath.Join(runOutDir, "manifest.json")
	if err := os.WriteFile(manifestPath, b, 0o644); err != nil {
		return err
	}
	log.WithField("clips", len(res.Manifest.Clips)).WithField("manifest", manifestPath).Info("manifest written")
	return nil
}

func buildRunOutDir(outRoot, inputPath string, now time.Time) string {
	name := strings.TrimSuffix(filepath.Base(inputPath), filepath.Ext(inputPath))
	name = normalizePathSegment(name)
	if name == "" {
		name = "input"
	}
	ts := now.UTC().Format("20060102-150405Z")
	runSeed := fmt.Sprintf("%s|%d", inputPath, now.UTC().UnixNano())
	suffix := hash(runSeed)[:6]
	return filepath.Join(outRoot, fmt.Sprintf("%s-%s-%s", name, ts, suffix))
}

func normalizePathSegment(s string) string {
	var b strings.Builder
	prevDash := false
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r):
			b.WriteRune(r)
			prevDash = false
		default:
			if !prevDash {
				b.WriteByte('-')
				prevDash = true
			}
		}
	}
	return strings.Trim(b.String(), "-")
}

func hash(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])[:12]
}

// ensure adapters implement ports
var _ ports.VideoTool = (*ffmpeg.Adapter)(nil)
var _ ports.ASR = (*openaiasr.Adapter)(nil)
var _ ports.Summarizer = (*openaillm.Adapter)(nil)
var _ ports.Store = (*postgres.Store)(nil)
var _ ports.Store = (*memstore.Store)(nil)
