// Package server exposes the platform's HTTP API: upload and CRUD for
// videos, their stage outputs, and engagement analytics. Processing itself
// runs in the background through the pipeline runner.
package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/educlip/educlip/internal/logging"
	"github.com/educlip/educlip/internal/pipeline"
	"github.com/educlip/educlip/internal/ports"
	"github.com/educlip/educlip/internal/types"
	"github.com/educlip/educlip/internal/usecase"
)

const maxUploadBytes = 2 << 30 // 2 GiB

type Config struct {
	Addr      string
	UploadDir string
	OutDir    string
	CacheDir  string

	Constraints    types.ClipConstraints
	WriteSubtitles bool
	CutRetries     uint64

	// Tokens maps bearer tokens to principals.
	Tokens map[string]Principal
}

type Server struct {
	cfg    Config
	store  ports.Store
	runner *pipeline.Runner
	log    *logging.Logger
}

func New(cfg Config, store ports.Store, runner *pipeline.Runner, log *logging.Logger) *Server {
	if log == nil {
		log = logging.New()
	}
	return &Server{cfg: cfg, store: store, runner: runner, log: log}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /api/videos/upload", s.authed(CapUploadVideo, s.handleUpload))
	mux.HandleFunc("GET /api/videos", s.authed(CapViewVideo, s.handleListVideos))
	mux.HandleFunc("GET /api/videos/{id}/status", s.authed(CapViewVideo, s.handleStatus))
	mux.HandleFunc("GET /api/videos/{id}/transcript", s.authed(CapViewVideo, s.handleTranscript))
	mux.HandleFunc("GET /api/videos/{id}/summary", s.authed(CapViewVideo, s.handleSummary))
	mux.HandleFunc("GET /api/videos/{id}/clips", s.authed(CapViewVideo, s.handleClips))
	mux.HandleFunc("DELETE /api/videos/{id}", s.authed(CapDeleteVideo, s.handleDelete))
	mux.HandleFunc("POST /api/videos/{id}/watch", s.authed(CapRecordWatch, s.handleWatch))
	mux.HandleFunc("GET /api/analytics/user/{id}", s.authed(CapViewVideo, s.handleUserAnalytics))
	mux.HandleFunc("GET /api/analytics/video/{id}", s.authed(CapViewVideo, s.handleVideoAnalytics))
	return mux
}

func (s *Server) ListenAndServe() error {
	addr := s.cfg.Addr
	if addr == "" {
		addr = ":8080"
	}
	s.log.WithField("addr", addr).Info("http server listening")
	return http.ListenAndServe(addr, s.Handler())
}

type envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, v envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) authed(cap Capability, h func(http.ResponseWriter, *http.Request, Principal)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, ok := s.authenticate(r)
		if !ok {
			writeJSON(w, http.StatusUnauthorized, envelope{Message: "invalid or missing token"})
			return
		}
		if !p.Can(cap) {
			writeJSON(w, http.StatusForbidden, envelope{Message: "insufficient role"})
			return
		}
		h(w, r, p)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, envelope{Success: true, Data: map[string]string{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}})
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request, p Principal) {
	log := s.log.WithRequest(r)

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, envelope{Message: "file field is required"})
		return
	}
	defer file.Close()

	if ct := header.Header.Get("Content-Type"); ct != "" && !strings.HasPrefix(ct, "video/") {
		writeJSON(w, http.StatusBadRequest, envelope{Message: "file must be a video"})
		return
	}

	videoID := uuid.NewString()
	ext := filepath.Ext(header.Filename)
	if ext == "" {
		ext = ".mp4"
	}
	if err := os.MkdirAll(s.cfg.UploadDir, 0o755); err != nil {
		s.fail(w, log, "prepare upload dir", err)
		return
	}
	dst := filepath.Join(s.cfg.UploadDir, videoID+ext)
	out, err := os.Create(dst)
	if err != nil {
		s.fail(w, log, "create upload file", err)
		return
	}
	if _, err := io.Copy(out, file); err != nil {
		out.Close()
		os.Remove(dst)
		s.fail(w, log, "write upload file", err)
		return
	}
	if err := out.Close(); err != nil {
		s.fail(w, log, "close upload file", err)
		return
	}

	title := r.FormValue("title")
	if title == "" {
		title = header.Filename
	}
	v := types.Video{
		ID:          videoID,
		OwnerID:     p.UserID,
		Title:       title,
		Description: r.FormValue("description"),
		FilePath:    dst,
		Status:      types.StatusUploaded,
		UploadedAt:  time.Now().UTC(),
	}
	if err := s.store.CreateVideo(r.Context(), v); err != nil {
		s.fail(w, log, "create video record", err)
		return
	}

	cacheDir := filepath.Join(s.cfg.CacheDir, "videos", videoID)
	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		s.fail(w, log, "prepare cache dir", err)
		return
	}
	s.runner.Start(usecase.Input{
		VideoID:        videoID,
		InputPath:      dst,
		CacheDir:       cacheDir,
		OutDir:         filepath.Join(s.cfg.OutDir, videoID),
		Constraints:    s.cfg.Constraints,
		WriteSubtitles: s.cfg.WriteSubtitles,
		CutRetries:     s.cfg.CutRetries,
	})

	log.WithField("video_id", videoID).Info("video uploaded")
	writeJSON(w, http.StatusCreated, envelope{Success: true, Message: "video uploaded", Data: v})
}

// loadOwned fetches the video and enforces ownership; admins see everything.
func (s *Server) loadOwned(w http.ResponseWriter, r *http.Request, p Principal) (types.Video, bool) {
	id := r.PathValue("id")
	v, err := s.store.GetVideo(r.Context(), id)
	if errors.Is(err, ports.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, envelope{Message: "video not found"})
		return types.Video{}, false
	}
	if err != nil {
		s.fail(w, s.log.WithRequest(r), "load video", err)
		return types.Video{}, false
	}
	if v.OwnerID != p.UserID && p.Role != RoleAdmin {
		writeJSON(w, http.StatusForbidden, envelope{Message: "not your video"})
		return types.Video{}, false
	}
	return v, true
}

func (s *Server) handleListVideos(w http.ResponseWriter, r *http.Request, p Principal) {
	videos, err := s.store.ListVideos(r.Context(), p.UserID)
	if err != nil {
		s.fail(w, s.log.WithRequest(r), "list videos", err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{Success: true, Data: map[string]any{
		"videos": videos,
		"count":  len(videos),
	}})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request, p Principal) {
	v, ok := s.loadOwned(w, r, p)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, envelope{Success: true, Data: map[string]any{
		"video_id":     v.ID,
		"status":       v.Status,
		"failed_stage": v.FailedStage,
		"title":        v.Title,
	}})
}

func (s *Server) handleTranscript(w http.ResponseWriter, r *http.Request, p Principal) {
	v, ok := s.loadOwned(w, r, p)
	if !ok {
		return
	}
	tr, err := s.store.GetTranscript(r.Context(), v.ID)
	if errors.Is(err, ports.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, envelope{Message: "transcript not available"})
		return
	}
	if err != nil {
		s.fail(w, s.log.WithRequest(r), "load transcript", err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{Success: true, Data: tr})
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request, p Principal) {
	v, ok := s.loadOwned(w, r, p)
	if !ok {
		return
	}
	sum, err := s.store.GetSummary(r.Context(), v.ID)
	if errors.Is(err, ports.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, envelope{Message: "summary not available"})
		return
	}
	if err != nil {
		s.fail(w, s.log.WithRequest(r), "load summary", err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{Success: true, Data: sum})
}

func (s *Server) handleClips(w http.ResponseWriter, r *http.Request, p Principal) {
	v, ok := s.loadOwned(w, r, p)
	if !ok {
		return
	}
	clips, err := s.store.ListClips(r.Context(), v.ID)
	if err != nil {
		s.fail(w, s.log.WithRequest(r), "list clips", err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{Success: true, Data: map[string]any{
		"video_id": v.ID,
		"clips":    clips,
		"count":    len(clips),
	}})
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request, p Principal) {
	v, ok := s.loadOwned(w, r, p)
	if !ok {
		return
	}
	// Stop the pipeline first so no further stage output lands for this id.
	s.runner.Cancel(v.ID)
	if err := s.store.DeleteVideo(r.Context(), v.ID); err != nil {
		s.fail(w, s.log.WithRequest(r), "delete video", err)
		return
	}
	if v.FilePath != "" {
		if err := os.Remove(v.FilePath); err != nil && !os.IsNotExist(err) {
			s.log.WithRequest(r).WithError(err).Warn("could not remove uploaded file")
		}
	}
	writeJSON(w, http.StatusOK, envelope{Success: true, Message: "video deleted"})
}

func (s *Server) handleWatch(w http.ResponseWriter, r *http.Request, p Principal) {
	id := r.PathValue("id")
	var body struct {
		WatchedSec float64 `json:"watched_sec"`
		Completed  float64 `json:"completed"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, envelope{Message: "invalid JSON"})
		return
	}
	if body.WatchedSec < 0 || body.Completed < 0 || body.Completed > 1 {
		writeJSON(w, http.StatusBadRequest, envelope{Message: "watched_sec must be >= 0 and completed in [0,1]"})
		return
	}
	if _, err := s.store.GetVideo(r.Context(), id); errors.Is(err, ports.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, envelope{Message: "video not found"})
		return
	}
	ev := types.WatchEvent{
		UserID:     p.UserID,
		VideoID:    id,
		WatchedSec: body.WatchedSec,
		Completed:  body.Completed,
		At:         time.Now().UTC(),
	}
	if err := s.store.AddWatchEvent(r.Context(), ev); err != nil {
		s.fail(w, s.log.WithRequest(r), "record watch event", err)
		return
	}
	writeJSON(w, http.StatusCreated, envelope{Success: true, Message: "watch event recorded"})
}

func (s *Server) handleUserAnalytics(w http.ResponseWriter, r *http.Request, p Principal) {
	target := r.PathValue("id")
	if target != p.UserID && !p.Can(CapViewAnyStats) {
		writeJSON(w, http.StatusForbidden, envelope{Message: "cannot view another user's analytics"})
		return
	}
	a, err := s.store.UserAnalytics(r.Context(), target)
	if err != nil {
		s.fail(w, s.log.WithRequest(r), "user analytics", err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{Success: true, Data: a})
}

func (s *Server) handleVideoAnalytics(w http.ResponseWriter, r *http.Request, p Principal) {
	v, ok := s.loadOwned(w, r, p)
	if !ok {
		return
	}
	a, err := s.store.VideoAnalytics(r.Context(), v.ID)
	if err != nil {
		s.fail(w, s.log.WithRequest(r), "video analytics", err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{Success: true, Data: a})
}

func (s *Server) fail(w http.ResponseWriter, log *logrus.Entry, msg string, err error) {
	log.WithError(err).Error(msg)
	writeJSON(w, http.StatusInternalServerError, envelope{Message: "internal server error"})
}
