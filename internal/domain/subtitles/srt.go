package subtitles

import (
	"fmt"
	"strings"
	"time"

	"github.com/educlip/educlip/internal/types"
)

// RenderSRT renders the transcript slice covered by [start, end) as SRT.
// Cue times are clip-local offsets because each clip ships with its own
// subtitle file. Returns an empty string when no segment intersects the
// window.
func RenderSRT(tr types.Transcript, start, end time.Duration) string {
	cues := collectCues(tr, start, end)
	if len(cues) == 0 {
		return ""
	}

	var b strings.Builder
	for i, c := range cues {
		fmt.Fprintf(&b, "%d\n", i+1)
		b.WriteString(srtTime(c.Start))
		b.WriteString(" --> ")
		b.WriteString(srtTime(c.End))
		b.WriteString("\n")
		b.WriteString(c.Text)
		b.WriteString("\n\n")
	}
	return b.String()
}

type cue struct {
	Start time.Duration
	End   time.Duration
	Text  string
}

func collectCues(tr types.Transcript, start, end time.Duration) []cue {
	var out []cue
	for _, s := range tr.Segments {
		ss := dur(s.Start)
		se := dur(s.End)
		if se <= start || ss >= end {
			continue
		}
		text := strings.TrimSpace(s.Text)
		if text == "" {
			continue
		}
		if ss < start {
			ss = start
		}
		if se > end {
			se = end
		}
		out = append(out, cue{Start: ss - start, End: se - start, Text: text})
	}
	return out
}

func srtTime(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	h := int(d / time.Hour)
	d -= time.Duration(h) * time.Hour
	m := int(d / time.Minute)
	d -= time.Duration(m) * time.Minute
	s := int(d / time.Second)
	d -= time.Duration(s) * time.Second
	ms := int(d / time.Millisecond)
	return fmt.Sprintf("%02d:%02d:%02d,%03d", h, m, s, ms)
}

func dur(sec float64) time.Duration { return time.Duration(sec * float64(time.Second)) }
