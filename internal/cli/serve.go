package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/educlip/educlip/internal/domain/scoring"
	"github.com/educlip/educlip/internal/logging"
	"github.com/educlip/educlip/internal/pipeline"
	"github.com/educlip/educlip/internal/ports"
	"github.com/educlip/educlip/internal/ports/adapters/ffmpeg"
	"github.com/educlip/educlip/internal/ports/adapters/memstore"
	"github.com/educlip/educlip/internal/ports/adapters/openaiasr"
	"github.com/educlip/educlip/internal/ports/adapters/openaillm"
	"github.com/educlip/educlip/internal/ports/adapters/postgres"
	"github.com/educlip/educlip/internal/server"
	"github.com/educlip/educlip/internal/types"
	"github.com/educlip/educlip/internal/usecase"
)

func runServe(cmd *cobra.Command, _ []string) error {
	addr, _ := cmd.Flags().GetString("addr")
	uploads, _ := cmd.Flags().GetString("uploads")
	outDir, _ := cmd.Flags().GetString("out")
	subtitles, _ := cmd.Flags().GetBool("subtitles")

	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		return errors.New("OPENAI_API_KEY is required (set it in .env)")
	}

	tokens, err := parseTokens(os.Getenv("EDUCLIP_TOKENS"))
	if err != nil {
		return err
	}
	if len(tokens) == 0 {
		return errors.New("EDUCLIP_TOKENS is required (token=user:role, comma separated)")
	}

	baseURL := os.Getenv("OPENAI_BASE_URL")
	if err := openaillm.ValidateBaseURL(baseURL, splitList(os.Getenv("OPENAI_ALLOWED_HOSTS"))); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	log := logging.New()

	var store ports.Store
	if pgURL := os.Getenv("POSTGRES_URL"); pgURL != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		pg, err := postgres.Connect(ctx, pgURL)
		cancel()
		if err != nil {
			return fmt.Errorf("postgres: %w", err)
		}
		defer pg.Close()
		store = pg
	} else {
		log.Warn("POSTGRES_URL not set, using in-memory store")
		store = memstore.New()
	}

	scorer, err := scoring.NewScorer(scoring.DefaultWeights(), nil)
	if err != nil {
		return err
	}

	runner := pipeline.NewRunner(usecase.Deps{
		Video:      ffmpeg.New("ffmpeg", "ffprobe"),
		ASR:        openaiasr.New(apiKey, "", os.Getenv("OPENAI_ASR_MODEL")),
		Summarizer: openaillm.New(apiKey, baseURL, os.Getenv("OPENAI_LLM_MODEL")),
		Store:      store,
		Scorer:     scorer,
		Log:        log.Entry,
	}, log)
	defer runner.Wait()

	srv := server.New(server.Config{
		Addr:      addr,
		UploadDir: uploads,
		OutDir:    outDir,
		CacheDir:  getenvDefault("EDUCLIP_CACHE", ".cache"),
		Constraints: types.ClipConstraints{
			MinDuration: 20 * time.Second,
			MaxDuration: 90 * time.Second,
			MinGap:      5 * time.Second,
		},
		WriteSubtitles: subtitles,
		Tokens:         tokens,
	}, store, runner, log)
	return srv.ListenAndServe()
}

// parseTokens reads "token=user:role" pairs, comma separated.
func parseTokens(s string) (map[string]server.Principal, error) {
	out := map[string]server.Principal{}
	for _, pair := range splitList(s) {
		tok, rest, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, fmt.Errorf("token entry %q: want token=user:role", pair)
		}
		user, role, ok := strings.Cut(rest, ":")
		if !ok || tok == "" || user == "" {
			return nil, fmt.Errorf("token entry %q: want token=user:role", pair)
		}
		switch r := server.Role(role); r {
		case server.RoleEducator, server.RoleStudent, server.RoleAdmin:
			out[tok] = server.Principal{UserID: user, Role: r}
		default:
			return nil, fmt.Errorf("token entry %q: unknown role %q", pair, role)
		}
	}
	return out, nil
}
