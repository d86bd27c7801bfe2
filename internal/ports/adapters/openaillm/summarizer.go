package openaillm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/cenkalti/backoff/v4"
	openai "github.com/sashabaranov/go-openai"

	"github.com/educlip/educlip/internal/types"
)

// Adapter asks an OpenAI-compatible chat endpoint for a lecture summary and
// per-segment salience hints. Hints outside [0,1] or pointing at unknown
// segment indexes are dropped rather than surfaced as errors; a summarizer
// that returns no hints is a valid collaborator.
type Adapter struct {
	cli         *openai.Client
	model       string
	temperature float32
}

func New(apiKey, baseURL, model string) *Adapter {
	if model == "" {
		model = openai.GPT4oMini
	}
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &Adapter{cli: openai.NewClientWithConfig(cfg), model: model, temperature: 0.3}
}

// Prompt-side segment cap keeps token usage bounded on long lectures; the
// scorer treats missing hints as zero anyway.
const maxPromptSegments = 200

func (a *Adapter) Summarize(ctx context.Context, tr types.Transcript) (types.Summary, error) {
	if len(tr.Segments) == 0 {
		return types.Summary{}, errors.New("empty transcript")
	}

	type promptSeg struct {
		Idx   int     `json:"idx"`
		Start float64 `json:"start"`
		End   float64 `json:"end"`
		Text  string  `json:"text"`
	}
	segs := tr.Segments
	stride := 1
	if len(segs) > maxPromptSegments {
		stride = (len(segs) + maxPromptSegments - 1) / maxPromptSegments
	}
	arr := make([]promptSeg, 0, maxPromptSegments)
	for i := 0; i < len(segs); i += stride {
		arr = append(arr, promptSeg{Idx: i, Start: segs[i].Start, End: segs[i].End, Text: segs[i].Text})
	}
	pb, err := json.Marshal(arr)
	if err != nil {
		return types.Summary{}, fmt.Errorf("marshal prompt segments: %w", err)
	}

	var resp openai.ChatCompletionResponse
	op := func() error {
		var err error
		resp, err = a.cli.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model:       a.model,
			Temperature: a.temperature,
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleUser, Content: buildPrompt(pb)},
			},
		})
		if err != nil && !transient(err) {
			return backoff.Permanent(err)
		}
		return err
	}
	b := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 2), ctx)
	if err := backoff.Retry(op, b); err != nil {
		return types.Summary{}, fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return types.Summary{}, errors.New("chat completion returned no choices")
	}

	clean, err := extractJSONObject(resp.Choices[0].Message.Content)
	if err != nil {
		return types.Summary{}, err
	}

	var out struct {
		ExecutiveSummary   string   `json:"executive_summary"`
		KeyConcepts        []string `json:"key_concepts"`
		LearningObjectives []string `json:"learning_objectives"`
		Difficulty         string   `json:"difficulty"`
		Salience           []struct {
			Idx   int     `json:"idx"`
			Value float64 `json:"value"`
		} `json:"salience"`
	}
	if err := json.Unmarshal([]byte(clean), &out); err != nil {
		return types.Summary{}, fmt.Errorf("decode summary JSON: %w", err)
	}

	s := types.Summary{
		ExecutiveSummary:   strings.TrimSpace(out.ExecutiveSummary),
		KeyConcepts:        out.KeyConcepts,
		LearningObjectives: out.LearningObjectives,
		Difficulty:         strings.TrimSpace(out.Difficulty),
		Salience:           make(map[int]float64, len(out.Salience)),
	}
	for _, h := range out.Salience {
		if h.Idx < 0 || h.Idx >= len(segs) {
			continue
		}
		if h.Value < 0 || h.Value > 1 {
			continue
		}
		s.Salience[h.Idx] = h.Value
	}
	return s, nil
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

func buildPrompt(segsJSON []byte) string {
	return "You are analyzing the transcript of an educational lecture video. " +
		"Return strictly valid JSON (no markdown, no code fences) with fields: " +
		`"executive_summary" (2-4 sentences), "key_concepts" (array of strings), ` +
		`"learning_objectives" (array of strings), "difficulty" (one of "beginner", "intermediate", "advanced"), ` +
		`and "salience" (array of {"idx": int, "value": float in [0,1]} marking the most instructionally important segments; ` +
		"omit segments with nothing notable). Use the idx values from the input.\n\n" +
		"Transcript segments JSON:\n" + string(segsJSON)
}

func extractJSONObject(s string) (string, error) {
	t := strings.TrimSpace(s)
	if t == "" {
		return "", errors.New("summarizer: empty content")
	}

	// Strip markdown code fences.
	if strings.HasPrefix(t, "```") {
		if i := strings.Index(t, "\n"); i >= 0 {
			t = t[i+1:]
		}
		if j := strings.LastIndex(t, "```"); j >= 0 {
			t = t[:j]
		}
		t = strings.TrimSpace(t)
	}

	// Best-effort: take the first JSON object found.
	start := strings.Index(t, "{")
	end := strings.LastIndex(t, "}")
	if start >= 0 && end > start {
		return t[start : end+1], nil
	}
	return "", fmt.Errorf("summarizer: could not locate JSON object in: %q", truncate(t, 200))
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
