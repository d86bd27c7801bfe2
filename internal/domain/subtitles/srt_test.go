package subtitles

import (
	"strings"
	"testing"
	"time"

	"github.com/educlip/educlip/internal/types"
)

func TestRenderSRT_ClipLocalTimes(t *testing.T) {
	tr := types.Transcript{Segments: []types.TranscriptSegment{
		{Start: 0, End: 10, Text: "before the clip"},
		{Start: 60, End: 70, Text: "first line"},
		{Start: 70, End: 82, Text: "second line"},
		{Start: 200, End: 210, Text: "after the clip"},
	}}
	out := RenderSRT(tr, 60*time.Second, 90*time.Second)
	if !strings.Contains(out, "00:00:00,000 --> 00:00:10,000") {
		t.Fatalf("expected clip-local first cue, got:\n%s", out)
	}
	if !strings.Contains(out, "first line") || !strings.Contains(out, "second line") {
		t.Fatalf("missing cue text:\n%s", out)
	}
	if strings.Contains(out, "before the clip") || strings.Contains(out, "after the clip") {
		t.Fatalf("cue outside window leaked:\n%s", out)
	}
}

func TestRenderSRT_TruncatesAtWindowEdge(t *testing.T) {
	tr := types.Transcript{Segments: []types.TranscriptSegment{
		{Start: 55, End: 65, Text: "straddles start"},
	}}
	out := RenderSRT(tr, 60*time.Second, 90*time.Second)
	if !strings.Contains(out, "00:00:00,000 --> 00:00:05,000") {
		t.Fatalf("expected straddling cue truncated to window, got:\n%s", out)
	}
}

func TestRenderSRT_EmptyWindow(t *testing.T) {
	tr := types.Transcript{Segments: []types.TranscriptSegment{
		{Start: 0, End: 10, Text: "hello"},
	}}
	if out := RenderSRT(tr, 60*time.Second, 90*time.Second); out != "" {
		t.Fatalf("expected empty output, got:\n%s", out)
	}
}
