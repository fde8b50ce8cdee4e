package runtime

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/studyloop/reviewquiz-backend/internal/repos"
	"github.com/studyloop/reviewquiz-backend/internal/services"
	"github.com/studyloop/reviewquiz-backend/internal/types"
)

// Retry shape for conflict/backoff rescheduling. There is deliberately
// a ceiling: a job that cannot make progress after MaxAttempts stops
// retrying and is parked as abandoned for an operator.
const (
	MaxAttempts   = 8
	backoffBase   = 30 * time.Second
	backoffFactor = 2
	backoffCap    = 10 * time.Minute
)

// Context is the execution handle handed to a claimed job. Pipelines
// never touch the job_run row directly; state transitions go through
// Progress/Succeed/Fail/Reschedule so the lifecycle invariants stay in
// one place.
type Context struct {
	Ctx     context.Context
	DB      *gorm.DB
	Job     *types.JobRun
	Repo    repos.JobRunRepo
	Notify  services.JobNotifier
	payload map[string]any
}

func NewContext(ctx context.Context, db *gorm.DB, job *types.JobRun, repo repos.JobRunRepo, notify services.JobNotifier) *Context {
	c := &Context{
		Ctx:    ctx,
		DB:     db,
		Job:    job,
		Repo:   repo,
		Notify: notify,
	}
	_ = c.decodePayload()
	return c
}

func (c *Context) decodePayload() error {
	if c.Job == nil {
		return nil
	}
	if len(c.Job.Payload) == 0 {
		c.payload = map[string]any{}
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal(c.Job.Payload, &m); err != nil {
		c.payload = map[string]any{}
		return err
	}
	c.payload = m
	return nil
}

// Payload never returns nil; handlers validate required fields.
func (c *Context) Payload() map[string]any {
	if c.payload == nil {
		c.payload = map[string]any{}
	}
	return c.payload
}

// PayloadInt64 reads a numeric payload field. JSON round-trips numbers
// as float64, so the int64 conversion happens here and nowhere else.
func (c *Context) PayloadInt64(key string) (int64, bool) {
	v, ok := c.Payload()[key]
	if !ok || v == nil {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return int64(n), true
	case int64:
		return n, true
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0, false
		}
		return i, true
	default:
		return 0, false
	}
}

func (c *Context) PayloadString(key string) (string, bool) {
	v, ok := c.Payload()[key]
	if !ok || v == nil {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

func (c *Context) Progress(stage, msg string) {
	if c == nil || c.Job == nil || c.Job.ID == uuid.Nil {
		return
	}
	now := time.Now()
	_ = c.Repo.UpdateFields(c.Ctx, nil, c.Job.ID, map[string]interface{}{
		"stage":        stage,
		"heartbeat_at": now,
		"updated_at":   now,
	})
	c.Job.Stage = stage
	c.Job.HeartbeatAt = &now
	if c.Notify != nil {
		c.Notify.JobProgress(c.Job, stage, msg)
	}
}

func (c *Context) Succeed(result any) {
	if c == nil || c.Job == nil || c.Job.ID == uuid.Nil {
		return
	}
	now := time.Now()
	var res datatypes.JSON
	if result != nil {
		b, _ := json.Marshal(result)
		res = datatypes.JSON(b)
	}
	_ = c.Repo.UpdateFields(c.Ctx, nil, c.Job.ID, map[string]interface{}{
		"status":       types.JobStatusSucceeded,
		"stage":        "done",
		"error":        "",
		"result":       res,
		"locked_at":    nil,
		"heartbeat_at": now,
		"updated_at":   now,
	})
	c.Job.Status = types.JobStatusSucceeded
	c.Job.Stage = "done"
	c.Job.Result = res
	c.Job.LockedAt = nil
	if c.Notify != nil {
		c.Notify.JobDone(c.Job)
	}
}

// Fail is terminal: the job will not be retried. Retryable conditions
// go through RescheduleWithBackoff instead.
func (c *Context) Fail(stage string, err error) {
	if c == nil || c.Job == nil || c.Job.ID == uuid.Nil {
		return
	}
	now := time.Now()
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	_ = c.Repo.UpdateFields(c.Ctx, nil, c.Job.ID, map[string]interface{}{
		"status":        types.JobStatusFailed,
		"stage":         stage,
		"error":         msg,
		"last_error_at": now,
		"locked_at":     nil,
		"updated_at":    now,
	})
	c.Job.Status = types.JobStatusFailed
	c.Job.Stage = stage
	c.Job.Error = msg
	c.Job.LastErrorAt = &now
	c.Job.LockedAt = nil
	if c.Notify != nil {
		c.Notify.JobFailed(c.Job, stage, msg)
	}
}

// Reschedule puts the job back in the queue after a fixed delay without
// burning the retry budget rationale: used when a precondition (open
// attempt, target mid-deletion) simply has not cleared yet.
func (c *Context) Reschedule(delay time.Duration, reason string) {
	if c == nil || c.Job == nil || c.Job.ID == uuid.Nil {
		return
	}
	now := time.Now()
	runAt := now.Add(delay)
	_ = c.Repo.UpdateFields(c.Ctx, nil, c.Job.ID, map[string]interface{}{
		"status":     types.JobStatusQueued,
		"stage":      "rescheduled",
		"error":      reason,
		"run_at":     runAt,
		"locked_at":  nil,
		"updated_at": now,
	})
	c.Job.Status = types.JobStatusQueued
	c.Job.Stage = "rescheduled"
	c.Job.RunAt = runAt
	c.Job.LockedAt = nil
}

// RescheduleWithBackoff retries with exponential delay, abandoning the
// job once the attempt ceiling is hit.
func (c *Context) RescheduleWithBackoff(stage string, err error) {
	if c == nil || c.Job == nil || c.Job.ID == uuid.Nil {
		return
	}
	if c.Job.Attempts >= MaxAttempts {
		c.abandon(err)
		return
	}
	now := time.Now()
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	runAt := now.Add(BackoffDelay(c.Job.Attempts))
	_ = c.Repo.UpdateFields(c.Ctx, nil, c.Job.ID, map[string]interface{}{
		"status":        types.JobStatusQueued,
		"stage":         stage,
		"error":         msg,
		"last_error_at": now,
		"run_at":        runAt,
		"locked_at":     nil,
		"updated_at":    now,
	})
	c.Job.Status = types.JobStatusQueued
	c.Job.Stage = stage
	c.Job.Error = msg
	c.Job.LastErrorAt = &now
	c.Job.RunAt = runAt
	c.Job.LockedAt = nil
}

func (c *Context) abandon(err error) {
	now := time.Now()
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	_ = c.Repo.UpdateFields(c.Ctx, nil, c.Job.ID, map[string]interface{}{
		"status":        types.JobStatusAbandoned,
		"stage":         "abandoned",
		"error":         msg,
		"last_error_at": now,
		"locked_at":     nil,
		"updated_at":    now,
	})
	c.Job.Status = types.JobStatusAbandoned
	c.Job.Stage = "abandoned"
	c.Job.Error = msg
	c.Job.LockedAt = nil
	if c.Notify != nil {
		c.Notify.JobAbandoned(c.Job, msg)
	}
}

// BackoffDelay returns the wait before retry attempt n+1 (n = attempts
// already made): 30s, 1m, 2m, ... capped at 10m.
func BackoffDelay(attempts int) time.Duration {
	if attempts < 1 {
		attempts = 1
	}
	d := backoffBase
	for i := 1; i < attempts; i++ {
		d *= backoffFactor
		if d >= backoffCap {
			return backoffCap
		}
	}
	if d > backoffCap {
		d = backoffCap
	}
	return d
}
