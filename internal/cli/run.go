package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/educlip/educlip/internal/domain/scoring"
	"github.com/educlip/educlip/internal/logging"
	"github.com/educlip/educlip/internal/pipeline"
	"github.com/educlip/educlip/internal/types"
)

func runProcess(cmd *cobra.Command, input string) error {
	outDir, _ := cmd.Flags().GetString("out")
	clipsN, _ := cmd.Flags().GetInt("clips")
	subtitles, _ := cmd.Flags().GetBool("subtitles")
	minSec, _ := cmd.Flags().GetInt("min")
	maxSec, _ := cmd.Flags().GetInt("max")
	gapSec, _ := cmd.Flags().GetInt("gap")

	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		return errors.New("OPENAI_API_KEY is required (set it in .env)")
	}

	absIn, err := filepath.Abs(input)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Hour)
	defer cancel()

	cfg := pipeline.Config{
		InputPath: absIn,
		OutDir:    outDir,
		OwnerID:   getenvDefault("EDUCLIP_OWNER", "local"),

		Constraints: types.ClipConstraints{
			TargetCount: clipsN,
			MinDuration: time.Duration(minSec) * time.Second,
			MaxDuration: time.Duration(maxSec) * time.Second,
			MinGap:      time.Duration(gapSec) * time.Second,
		},
		WriteSubtitles: subtitles,

		FFmpegPath:  "ffmpeg",
		FFprobePath: "ffprobe",

		OpenAIAPIKey:    apiKey,
		ASRModel:        os.Getenv("OPENAI_ASR_MODEL"),
		LLMModel:        os.Getenv("OPENAI_LLM_MODEL"),
		LLMBaseURL:      os.Getenv("OPENAI_BASE_URL"),
		LLMAllowedHosts: splitList(os.Getenv("OPENAI_ALLOWED_HOSTS")),

		PostgresURL: os.Getenv("POSTGRES_URL"),

		ScoringWeights: scoring.DefaultWeights(),

		Log: logging.New(),
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return pipeline.Run(ctx, cfg)
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
