// Package postgres is the relational Store used in deployments. Stage
// outputs land in the same database as the status row, so a failed pipeline
// keeps whatever stages already completed.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/educlip/educlip/internal/ports"
	"github.com/educlip/educlip/internal/types"
)

type Store struct {
	pool *pgxpool.Pool
}

var _ ports.Store = (*Store)(nil)

func Connect(ctx context.Context, dbURL string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	s := &Store{pool: pool}
	if err := s.initSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() { s.pool.Close() }

func (s *Store) initSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS videos (
			video_id TEXT PRIMARY KEY,
			owner_id TEXT NOT NULL,
			title TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			file_path TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL,
			failed_stage TEXT NOT NULL DEFAULT '',
			duration_sec DOUBLE PRECISION NOT NULL DEFAULT 0,
			uploaded_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS transcripts (
			video_id TEXT PRIMARY KEY REFERENCES videos(video_id) ON DELETE CASCADE,
			payload JSONB NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS summaries (
			video_id TEXT PRIMARY KEY REFERENCES videos(video_id) ON DELETE CASCADE,
			payload JSONB NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS clips (
			clip_id TEXT PRIMARY KEY,
			video_id TEXT NOT NULL REFERENCES videos(video_id) ON DELETE CASCADE,
			rank INT NOT NULL,
			start_sec DOUBLE PRECISION NOT NULL,
			end_sec DOUBLE PRECISION NOT NULL,
			importance DOUBLE PRECISION NOT NULL,
			text TEXT NOT NULL DEFAULT '',
			file TEXT NOT NULL DEFAULT '',
			subtitles TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE INDEX IF NOT EXISTS idx_clips_video ON clips(video_id, rank)`,
		`CREATE TABLE IF NOT EXISTS watch_events (
			id BIGSERIAL PRIMARY KEY,
			user_id TEXT NOT NULL,
			video_id TEXT NOT NULL,
			watched_sec DOUBLE PRECISION NOT NULL,
			completed DOUBLE PRECISION NOT NULL,
			at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_watch_events_user ON watch_events(user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_watch_events_video ON watch_events(video_id)`,
	}
	for _, q := range stmts {
		if _, err := s.pool.Exec(ctx, q); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	return nil
}

func (s *Store) CreateVideo(ctx context.Context, v types.Video) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO videos (video_id, owner_id, title, description, file_path, status, duration_sec, uploaded_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		v.ID, v.OwnerID, v.Title, v.Description, v.FilePath, string(v.Status), v.DurationSec, v.UploadedAt)
	if err != nil {
		return fmt.Errorf("insert video: %w", err)
	}
	return nil
}

func (s *Store) GetVideo(ctx context.Context, id string) (types.Video, error) {
	var v types.Video
	var status string
	err := s.pool.QueryRow(ctx,
		`SELECT video_id, owner_id, title, description, file_path, status, failed_stage, duration_sec, uploaded_at
		 FROM videos WHERE video_id = $1`, id).
		Scan(&v.ID, &v.OwnerID, &v.Title, &v.Description, &v.FilePath, &status, &v.FailedStage, &v.DurationSec, &v.UploadedAt)
	if err == pgx.ErrNoRows {
		return types.Video{}, fmt.Errorf("video %s: %w", id, ports.ErrNotFound)
	}
	if err != nil {
		return types.Video{}, fmt.Errorf("select video: %w", err)
	}
	v.Status = types.VideoStatus(status)
	return v, nil
}

func (s *Store) ListVideos(ctx context.Context, ownerID string) ([]types.Video, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT video_id, owner_id, title, description, file_path, status, failed_stage, duration_sec, uploaded_at
		 FROM videos WHERE owner_id = $1 ORDER BY uploaded_at`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list videos: %w", err)
	}
	defer rows.Close()

	var out []types.Video
	for rows.Next() {
		var v types.Video
		var status string
		if err := rows.Scan(&v.ID, &v.OwnerID, &v.Title, &v.Description, &v.FilePath, &status, &v.FailedStage, &v.DurationSec, &v.UploadedAt); err != nil {
			return nil, fmt.Errorf("scan video: %w", err)
		}
		v.Status = types.VideoStatus(status)
		out = append(out, v)
	}
	return out, rows.Err()
}

func (s *Store) DeleteVideo(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM videos WHERE video_id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete video: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("video %s: %w", id, ports.ErrNotFound)
	}
	return nil
}

func (s *Store) SetStatus(ctx context.Context, id string, from, to types.VideoStatus, failedStage string) error {
	if !types.ValidTransition(from, to) {
		return fmt.Errorf("illegal status transition %s -> %s", from, to)
	}
	if to != types.StatusFailed {
		failedStage = ""
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE videos SET status = $1, failed_stage = $2 WHERE video_id = $3 AND status = $4`,
		string(to), failedStage, id, string(from))
	if err != nil {
		return fmt.Errorf("update status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("status of %s is not %s: %w", id, from, ports.ErrStaleStatus)
	}
	return nil
}

func (s *Store) SetDuration(ctx context.Context, id string, seconds float64) error {
	tag, err := s.pool.Exec(ctx, `UPDATE videos SET duration_sec = $1 WHERE video_id = $2`, seconds, id)
	if err != nil {
		return fmt.Errorf("update duration: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("video %s: %w", id, ports.ErrNotFound)
	}
	return nil
}

func (s *Store) SaveTranscript(ctx context.Context, videoID string, tr types.Transcript) error {
	return s.savePayload(ctx, "transcripts", videoID, tr)
}

func (s *Store) GetTranscript(ctx context.Context, videoID string) (types.Transcript, error) {
	var tr types.Transcript
	if err := s.loadPayload(ctx, "transcripts", videoID, &tr); err != nil {
		return types.Transcript{}, err
	}
	return tr, nil
}

func (s *Store) SaveSummary(ctx context.Context, videoID string, sum types.Summary) error {
	return s.savePayload(ctx, "summaries", videoID, sum)
}

func (s *Store) GetSummary(ctx context.Context, videoID string) (types.Summary, error) {
	var sum types.Summary
	if err := s.loadPayload(ctx, "summaries", videoID, &sum); err != nil {
		return types.Summary{}, err
	}
	return sum, nil
}

func (s *Store) savePayload(ctx context.Context, table, videoID string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", table, err)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO `+table+` (video_id, payload) VALUES ($1, $2)
		 ON CONFLICT (video_id) DO UPDATE SET payload = EXCLUDED.payload`,
		videoID, b)
	if err != nil {
		return fmt.Errorf("upsert %s: %w", table, err)
	}
	return nil
}

func (s *Store) loadPayload(ctx context.Context, table, videoID string, out any) error {
	var b []byte
	err := s.pool.QueryRow(ctx, `SELECT payload FROM `+table+` WHERE video_id = $1`, videoID).Scan(&b)
	if err == pgx.ErrNoRows {
		return fmt.Errorf("%s for %s: %w", table, videoID, ports.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("select %s: %w", table, err)
	}
	if err := json.Unmarshal(b, out); err != nil {
		return fmt.Errorf("decode %s payload: %w", table, err)
	}
	return nil
}

// ReplaceClips swaps the whole clip set for a video in one transaction, so
// readers never observe a mix of two selection runs.
func (s *Store) ReplaceClips(ctx context.Context, videoID string, clips []types.Clip) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin replace clips: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM clips WHERE video_id = $1`, videoID); err != nil {
		return fmt.Errorf("clear clips: %w", err)
	}
	for _, c := range clips {
		_, err := tx.Exec(ctx,
			`INSERT INTO clips (clip_id, video_id, rank, start_sec, end_sec, importance, text, file, subtitles)
			 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
			c.ID, videoID, c.Rank, c.StartSec, c.EndSec, c.Importance, c.Text, c.File, c.Subtitles)
		if err != nil {
			return fmt.Errorf("insert clip %s: %w", c.ID, err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit replace clips: %w", err)
	}
	return nil
}

func (s *Store) ListClips(ctx context.Context, videoID string) ([]types.Clip, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT clip_id, video_id, rank, start_sec, end_sec, importance, text, file, subtitles
		 FROM clips WHERE video_id = $1 ORDER BY rank`, videoID)
	if err != nil {
		return nil, fmt.Errorf("list clips: %w", err)
	}
	defer rows.Close()

	var out []types.Clip
	for rows.Next() {
		var c types.Clip
		if err := rows.Scan(&c.ID, &c.VideoID, &c.Rank, &c.StartSec, &c.EndSec, &c.Importance, &c.Text, &c.File, &c.Subtitles); err != nil {
			return nil, fmt.Errorf("scan clip: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *Store) AddWatchEvent(ctx context.Context, ev types.WatchEvent) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO watch_events (user_id, video_id, watched_sec, completed, at) VALUES ($1,$2,$3,$4,$5)`,
		ev.UserID, ev.VideoID, ev.WatchedSec, ev.Completed, ev.At)
	if err != nil {
		return fmt.Errorf("insert watch event: %w", err)
	}
	return nil
}

func (s *Store) UserAnalytics(ctx context.Context, userID string) (types.UserAnalytics, error) {
	out := types.UserAnalytics{UserID: userID}
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(DISTINCT video_id), COALESCE(SUM(watched_sec), 0), COALESCE(AVG(completed), 0)
		 FROM watch_events WHERE user_id = $1`, userID).
		Scan(&out.VideosWatched, &out.TotalWatchTimeSec, &out.AvgCompletionRate)
	if err != nil {
		return types.UserAnalytics{}, fmt.Errorf("user analytics: %w", err)
	}
	return out, nil
}

func (s *Store) VideoAnalytics(ctx context.Context, videoID string) (types.VideoAnalytics, error) {
	out := types.VideoAnalytics{VideoID: videoID}
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*), COUNT(DISTINCT user_id), COALESCE(AVG(watched_sec), 0), COALESCE(AVG(completed), 0)
		 FROM watch_events WHERE video_id = $1`, videoID).
		Scan(&out.TotalViews, &out.UniqueViewers, &out.AvgWatchTimeSec, &out.CompletionRate)
	if err != nil {
		return types.VideoAnalytics{}, fmt.Errorf("video analytics: %w", err)
	}
	return out, nil
}
