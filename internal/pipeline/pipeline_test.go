package pipeline

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/educlip/educlip/internal/domain/scoring"
	"github.com/educlip/educlip/internal/types"
)

func TestBuildRunOutDir(t *testing.T) {
	now := time.Date(2026, 2, 12, 10, 30, 45, 1234, time.UTC)
	got := buildRunOutDir("out", "/tmp/Calculus Lecture.01.mp4", now)
	base := filepath.Base(got)
	if filepath.Dir(got) != "out" {
		t.Fatalf("unexpected parent dir: %s", got)
	}
	if !strings.HasPrefix(base, "calculus-lecture-01-20260212-103045Z-") {
		t.Fatalf("unexpected run dir format: %s", base)
	}
	if len(base) != len("calculus-lecture-01-20260212-103045Z-")+6 {
		t.Fatalf("unexpected run dir suffix length: %s", base)
	}
}

func TestNormalizePathSegment(t *testing.T) {
	tests := map[string]string{
		"  Intro to Limits  ": "intro-to-limits",
		"___":                 "",
		"week3":               "week3",
		"Lecture (v2)!":       "lecture-v2",
	}
	for in, want := range tests {
		t.Run(in, func(t *testing.T) {
			if got := normalizePathSegment(in); got != want {
				t.Fatalf("normalizePathSegment(%q) = %q, want %q", in, got, want)
			}
		})
	}
}

func TestConfigValidate(t *testing.T) {
	tmp := t.TempDir()
	input := filepath.Join(tmp, "in.mp4")
	if err := os.WriteFile(input, []byte("x"), 0o644); err != nil {
		t.Fatalf("write input: %v", err)
	}

	valid := Config{
		InputPath: input,
		Constraints: types.ClipConstraints{
			MinDuration: 20 * time.Second,
			MaxDuration: 60 * time.Second,
		},
		OpenAIAPIKey:   "k",
		ScoringWeights: scoring.DefaultWeights(),
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}

	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing input", func(c *Config) { c.InputPath = "" }},
		{"input does not exist", func(c *Config) { c.InputPath = filepath.Join(tmp, "nope.mp4") }},
		{"zero min duration", func(c *Config) { c.Constraints.MinDuration = 0 }},
		{"max below min", func(c *Config) { c.Constraints.MaxDuration = 10 * time.Second }},
		{"negative gap", func(c *Config) { c.Constraints.MinGap = -time.Second }},
		{"missing api key", func(c *Config) { c.OpenAIAPIKey = "" }},
		{"bad weights", func(c *Config) { c.ScoringWeights = scoring.Weights{KeywordDensity: 2} }},
		{"http base url", func(c *Config) { c.LLMBaseURL = "http://api.example.com/v1" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := valid
			tc.mutate(&c)
			if err := c.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}
