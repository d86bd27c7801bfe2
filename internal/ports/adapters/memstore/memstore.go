// Package memstore is the in-memory Store used by tests and by local runs
// without a configured database.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/educlip/educlip/internal/ports"
	"github.com/educlip/educlip/internal/types"
)

type Store struct {
	mu          sync.RWMutex
	videos      map[string]types.Video
	transcripts map[string]types.Transcript
	summaries   map[string]types.Summary
	clips       map[string][]types.Clip
	events      []types.WatchEvent
}

var _ ports.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		videos:      make(map[string]types.Video),
		transcripts: make(map[string]types.Transcript),
		summaries:   make(map[string]types.Summary),
		clips:       make(map[string][]types.Clip),
	}
}

func (s *Store) CreateVideo(_ context.Context, v types.Video) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.videos[v.ID]; ok {
		return fmt.Errorf("video %s already exists", v.ID)
	}
	s.videos[v.ID] = v
	return nil
}

func (s *Store) GetVideo(_ context.Context, id string) (types.Video, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.videos[id]
	if !ok {
		return types.Video{}, fmt.Errorf("video %s: %w", id, ports.ErrNotFound)
	}
	return v, nil
}

func (s *Store) ListVideos(_ context.Context, ownerID string) ([]types.Video, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []types.Video
	for _, v := range s.videos {
		if v.OwnerID == ownerID {
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UploadedAt.Before(out[j].UploadedAt) })
	return out, nil
}

func (s *Store) DeleteVideo(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.videos[id]; !ok {
		return fmt.Errorf("video %s: %w", id, ports.ErrNotFound)
	}
	delete(s.videos, id)
	delete(s.transcripts, id)
	delete(s.summaries, id)
	delete(s.clips, id)
	return nil
}

func (s *Store) SetStatus(_ context.Context, id string, from, to types.VideoStatus, failedStage string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.videos[id]
	if !ok {
		return fmt.Errorf("video %s: %w", id, ports.ErrNotFound)
	}
	if !types.ValidTransition(from, to) {
		return fmt.Errorf("illegal status transition %s -> %s", from, to)
	}
	if v.Status != from {
		return fmt.Errorf("status of %s is %s, expected %s: %w", id, v.Status, from, ports.ErrStaleStatus)
	}
	v.Status = to
	if to == types.StatusFailed {
		v.FailedStage = failedStage
	}
	s.videos[id] = v
	return nil
}

func (s *Store) SetDuration(_ context.Context, id string, seconds float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.videos[id]
	if !ok {
		return fmt.Errorf("video %s: %w", id, ports.ErrNotFound)
	}
	v.DurationSec = seconds
	s.videos[id] = v
	return nil
}

func (s *Store) SaveTranscript(_ context.Context, videoID string, tr types.Transcript) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transcripts[videoID] = tr
	return nil
}

func (s *Store) GetTranscript(_ context.Context, videoID string) (types.Transcript, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tr, ok := s.transcripts[videoID]
	if !ok {
		return types.Transcript{}, fmt.Errorf("transcript for %s: %w", videoID, ports.ErrNotFound)
	}
	return tr, nil
}

func (s *Store) SaveSummary(_ context.Context, videoID string, sum types.Summary) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.summaries[videoID] = sum
	return nil
}

func (s *Store) GetSummary(_ context.Context, videoID string) (types.Summary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sum, ok := s.summaries[videoID]
	if !ok {
		return types.Summary{}, fmt.Errorf("summary for %s: %w", videoID, ports.ErrNotFound)
	}
	return sum, nil
}

func (s *Store) ReplaceClips(_ context.Context, videoID string, clips []types.Clip) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := make([]types.Clip, len(clips))
	copy(next, clips)
	s.clips[videoID] = next
	return nil
}

func (s *Store) ListClips(_ context.Context, videoID string) ([]types.Clip, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	clips := s.clips[videoID]
	out := make([]types.Clip, len(clips))
	copy(out, clips)
	sort.Slice(out, func(i, j int) bool { return out[i].Rank < out[j].Rank })
	return out, nil
}

func (s *Store) AddWatchEvent(_ context.Context, ev types.WatchEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
	return nil
}

func (s *Store) UserAnalytics(_ context.Context, userID string) (types.UserAnalytics, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := types.UserAnalytics{UserID: userID}
	seen := map[string]struct{}{}
	var completedSum float64
	for _, ev := range s.events {
		if ev.UserID != userID {
			continue
		}
		seen[ev.VideoID] = struct{}{}
		out.TotalWatchTimeSec += ev.WatchedSec
		completedSum += ev.Completed
	}
	n := 0
	for _, ev := range s.events {
		if ev.UserID == userID {
			n++
		}
	}
	out.VideosWatched = len(seen)
	if n > 0 {
		out.AvgCompletionRate = completedSum / float64(n)
	}
	return out, nil
}

func (s *Store) VideoAnalytics(_ context.Context, videoID string) (types.VideoAnalytics, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := types.VideoAnalytics{VideoID: videoID}
	viewers := map[string]struct{}{}
	var watchSum, completedSum float64
	for _, ev := range s.events {
		if ev.VideoID != videoID {
			continue
		}
		out.TotalViews++
		viewers[ev.UserID] = struct{}{}
		watchSum += ev.WatchedSec
		completedSum += ev.Completed
	}
	out.UniqueViewers = len(viewers)
	if out.TotalViews > 0 {
		out.AvgWatchTimeSec = watchSum / float64(out.TotalViews)
		out.CompletionRate = completedSum / float64(out.TotalViews)
	}
	return out, nil
}
