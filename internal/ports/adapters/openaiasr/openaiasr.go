package openaiasr

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strings"

	"github.com/cenkalti/backoff/v4"
	openai "github.com/sashabaranov/go-openai"

	"github.com/educlip/educlip/internal/types"
)

// Adapter transcribes audio through an OpenAI-compatible speech-to-text
// endpoint and maps the verbose-JSON response onto transcript segments.
type Adapter struct {
	cli   *openai.Client
	model string
}

func New(apiKey, baseURL, model string) *Adapter {
	if model == "" {
		model = openai.Whisper1
	}
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &Adapter{cli: openai.NewClientWithConfig(cfg), model: model}
}

// maxAttempts bounds re-requests on rate limits and upstream 5xx.
const maxAttempts = 3

func (a *Adapter) Transcribe(ctx context.Context, audioPath string) (types.Transcript, error) {
	var resp openai.AudioResponse
	op := func() error {
		var err error
		resp, err = a.cli.CreateTranscription(ctx, openai.AudioRequest{
			Model:    a.model,
			FilePath: audioPath,
			Format:   openai.AudioResponseFormatVerboseJSON,
		})
		if err != nil && !transient(err) {
			return backoff.Permanent(err)
		}
		return err
	}
	b := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), maxAttempts-1), ctx)
	if err := backoff.Retry(op, b); err != nil {
		return types.Transcript{}, fmt.Errorf("transcription request: %w", err)
	}

	tr := types.Transcript{
		Language: resp.Language,
		Duration: resp.Duration,
		Segments: make([]types.TranscriptSegment, 0, len(resp.Segments)),
	}
	for _, s := range resp.Segments {
		text := strings.TrimSpace(s.Text)
		if text == "" || s.End <= s.Start {
			continue
		}
		tr.Segments = append(tr.Segments, types.TranscriptSegment{
			Start:      s.Start,
			End:        s.End,
			Text:       text,
			Confidence: confidence(s.AvgLogprob),
		})
	}
	return tr, nil
}

func transient(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == http.StatusTooManyRequests || apiErr.HTTPStatusCode >= 500
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode == http.StatusTooManyRequests || reqErr.HTTPStatusCode >= 500
	}
	return false
}

// confidence maps the segment's average token log-probability to [0,1].
func confidence(avgLogprob float64) float64 {
	c := math.Exp(avgLogprob)
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}
