package services

import (
	"github.com/studyloop/reviewquiz-backend/internal/logger"
	"github.com/studyloop/reviewquiz-backend/internal/types"
)

// JobNotifier receives job lifecycle events. This subsystem has no
// user-facing error surface; the log notifier is the operator channel.
type JobNotifier interface {
	JobCreated(job *types.JobRun)
	JobProgress(job *types.JobRun, stage, msg string)
	JobDone(job *types.JobRun)
	JobFailed(job *types.JobRun, stage, errMsg string)
	JobAbandoned(job *types.JobRun, errMsg string)
}

type logNotifier struct {
	log *logger.Logger
}

func NewLogNotifier(baseLog *logger.Logger) JobNotifier {
	return &logNotifier{log: baseLog.With("component", "JobNotifier")}
}

func (n *logNotifier) JobCreated(job *types.JobRun) {
	n.log.Debug("Job queued", "job_id", job.ID, "job_type", job.JobType, "dedup_key", job.DedupKey)
}

func (n *logNotifier) JobProgress(job *types.JobRun, stage, msg string) {
	n.log.Debug("Job progress", "job_id", job.ID, "job_type", job.JobType, "stage", stage, "message", msg)
}

func (n *logNotifier) JobDone(job *types.JobRun) {
	n.log.Debug("Job done", "job_id", job.ID, "job_type", job.JobType)
}

func (n *logNotifier) JobFailed(job *types.JobRun, stage, errMsg string) {
	n.log.Warn("Job failed", "job_id", job.ID, "job_type", job.JobType, "stage", stage, "error", errMsg)
}

func (n *logNotifier) JobAbandoned(job *types.JobRun, errMsg string) {
	// Retry budget exhausted; this line is the dead-letter alert.
	n.log.Error("Job abandoned after retry budget",
		"job_id", job.ID, "job_type", job.JobType, "dedup_key", job.DedupKey, "error", errMsg)
}
