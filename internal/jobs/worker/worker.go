package worker

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/studyloop/reviewquiz-backend/internal/jobs/runtime"
	"github.com/studyloop/reviewquiz-backend/internal/logger"
	"github.com/studyloop/reviewquiz-backend/internal/repos"
	"github.com/studyloop/reviewquiz-backend/internal/services"
	"github.com/studyloop/reviewquiz-backend/internal/types"
)

const (
	pollInterval      = 1 * time.Second
	heartbeatInterval = 15 * time.Second
	staleRunning      = 2 * time.Minute
)

// Worker polls the job_run table and dispatches claimed jobs to
// registered handlers. Several workers can run against the same
// database; the claim query keeps them from stepping on each other.
type Worker struct {
	db       *gorm.DB
	log      *logger.Logger
	registry *runtime.Registry
	jobs     repos.JobRunRepo
	notify   services.JobNotifier
	size     int

	cancel context.CancelFunc
	group  *errgroup.Group
}

func New(db *gorm.DB, baseLog *logger.Logger, registry *runtime.Registry, jobs repos.JobRunRepo, notify services.JobNotifier, size int) *Worker {
	if size < 1 {
		size = 1
	}
	return &Worker{
		db:       db,
		log:      baseLog.With("component", "worker"),
		registry: registry,
		jobs:     jobs,
		notify:   notify,
		size:     size,
	}
}

func (w *Worker) Start(parent context.Context) {
	ctx, cancel := context.WithCancel(parent)
	w.cancel = cancel
	g, gctx := errgroup.WithContext(ctx)
	w.group = g
	for i := 0; i < w.size; i++ {
		g.Go(func() error {
			w.loop(gctx)
			return nil
		})
	}
	w.log.Info("worker started", "pool_size", w.size)
}

func (w *Worker) Stop() {
	if w.cancel != nil {
		w.cancel()
	}
	if w.group != nil {
		_ = w.group.Wait()
	}
	w.log.Info("worker stopped")
}

func (w *Worker) loop(ctx context.Context) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		// Drain everything due before going back to sleep.
		for {
			if ctx.Err() != nil {
				return
			}
			claimed, err := w.jobs.ClaimNextRunnable(ctx, nil, staleRunning)
			if err != nil {
				w.log.Error("claim failed", "error", err)
				break
			}
			if claimed == nil {
				break
			}
			w.run(ctx, claimed)
		}
	}
}

func (w *Worker) run(ctx context.Context, job *types.JobRun) {
	rc := runtime.NewContext(ctx, w.db, job, w.jobs, w.notify)
	handler, ok := w.registry.Get(job.JobType)
	if !ok {
		rc.Fail("dispatch", fmt.Errorf("no handler registered for job type %q", job.JobType))
		return
	}

	hbCtx, stopHB := context.WithCancel(ctx)
	go w.heartbeat(hbCtx, job)
	defer stopHB()

	defer func() {
		if r := recover(); r != nil {
			w.log.Error("job panicked", "job_id", job.ID, "job_type", job.JobType, "panic", r)
			rc.Fail("panic", fmt.Errorf("panic: %v", r))
		}
	}()

	w.log.Info("job claimed", "job_id", job.ID, "job_type", job.JobType, "attempt", job.Attempts)
	if err := handler.Run(rc); err != nil {
		// Handlers that want a retry call Reschedule themselves; an
		// error escaping Run is terminal.
		rc.Fail(job.Stage, err)
	}
}

func (w *Worker) heartbeat(ctx context.Context, job *types.JobRun) {
	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.jobs.Heartbeat(ctx, nil, job.ID); err != nil {
				w.log.Warn("heartbeat failed", "job_id", job.ID, "error", err)
			}
		}
	}
}
