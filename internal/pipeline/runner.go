package pipeline

import (
	"context"
	"sync"

	"github.com/educlip/educlip/internal/logging"
	"github.com/educlip/educlip/internal/usecase"
)

// Runner drives background processing for uploaded videos. Each video gets
// its own cancellable context; videos never share adapters' per-call state,
// so runs for different videos proceed independently.
type Runner struct {
	uc  usecase.Usecase
	log *logging.Logger

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
	wg      sync.WaitGroup
}

func NewRunner(deps usecase.Deps, log *logging.Logger) *Runner {
	if log == nil {
		log = logging.New()
	}
	if deps.Log == nil {
		deps.Log = log.Entry
	}
	return &Runner{
		uc:      usecase.New(deps),
		log:     log,
		cancels: make(map[string]context.CancelFunc),
	}
}

// Start launches processing for one video and returns immediately. A second
// Start for the same video id is refused while the first is still running.
func (r *Runner) Start(in usecase.Input) bool {
	r.mu.Lock()
	if _, running := r.cancels[in.VideoID]; running {
		r.mu.Unlock()
		return false
	}
	ctx, cancel := context.WithCancel(context.Background())
	r.cancels[in.VideoID] = cancel
	r.mu.Unlock()

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer func() {
			cancel()
			r.mu.Lock()
			delete(r.cancels, in.VideoID)
			r.mu.Unlock()
		}()

		log := r.log.WithVideo(in.VideoID)
		if _, err := r.uc.Run(ctx, in); err != nil {
			if ctx.Err() != nil {
				log.Info("processing cancelled")
				return
			}
			log.WithError(err).Error("processing failed")
			return
		}
	}()
	return true
}

// Cancel stops further stages for the video. An in-flight external call may
// still complete, but its result is discarded by the usecase. Reports
// whether a run was actually cancelled.
func (r *Runner) Cancel(videoID string) bool {
	r.mu.Lock()
	cancel, ok := r.cancels[videoID]
	r.mu.Unlock()
	if ok {
		cancel()
	}
	return ok
}

// Wait blocks until all in-flight runs have finished. Used on shutdown.
func (r *Runner) Wait() { r.wg.Wait() }
