package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/studyloop/reviewquiz-backend/internal/logger"
	"github.com/studyloop/reviewquiz-backend/internal/platform/envutil"
	"github.com/studyloop/reviewquiz-backend/internal/repos"
	"github.com/studyloop/reviewquiz-backend/internal/throttle"
	"github.com/studyloop/reviewquiz-backend/internal/types"
)

const (
	JobTypeReviewReconcile    = "review_reconcile"
	JobTypeAssignmentHeal     = "assignment_heal"
	JobTypeCourseCacheRebuild = "course_cache_rebuild"
)

// JobService owns enqueueing. All dedup goes through the runnable-row
// probe keyed on (job_type, entity_type, entity_id); the cache rebuild
// path additionally rides a time throttle so quick bursts of structural
// edits produce one rebuild.
type JobService interface {
	Enqueue(ctx context.Context, tx *gorm.DB, ownerUserID int64, jobType, entityType, entityID string, payload map[string]any) (*types.JobRun, error)
	EnqueueReviewReconcileIfNeeded(ctx context.Context, userID, sourceQuizID int64, attemptID *int64, mode ReviewMode, trigger string) (*types.JobRun, bool, error)
	EnqueueAssignmentHealIfNeeded(ctx context.Context, userID int64, trigger string) (*types.JobRun, bool, error)
	EnqueueCourseCacheRebuildIfNeeded(ctx context.Context, userID, lmsCourseID int64) (*types.JobRun, bool, error)
}

type jobService struct {
	db       *gorm.DB
	log      *logger.Logger
	repo     repos.JobRunRepo
	notify   JobNotifier
	throttle throttle.Throttle

	cacheRebuildInterval time.Duration
}

func NewJobService(
	db *gorm.DB,
	baseLog *logger.Logger,
	repo repos.JobRunRepo,
	notify JobNotifier,
	thr throttle.Throttle,
) JobService {
	return &jobService{
		db:                   db,
		log:                  baseLog.With("service", "JobService"),
		repo:                 repo,
		notify:               notify,
		throttle:             thr,
		cacheRebuildInterval: envutil.Duration("CACHE_REBUILD_MIN_INTERVAL", 10*time.Minute),
	}
}

func (s *jobService) Enqueue(ctx context.Context, tx *gorm.DB, ownerUserID int64, jobType, entityType, entityID string, payload map[string]any) (*types.JobRun, error) {
	if jobType == "" {
		return nil, fmt.Errorf("missing job_type")
	}
	if payload == nil {
		payload = map[string]any{}
	}
	b, _ := json.Marshal(payload)
	now := time.Now()
	job := &types.JobRun{
		OwnerUserID: ownerUserID,
		JobType:     jobType,
		EntityType:  entityType,
		EntityID:    entityID,
		DedupKey:    dedupKey(jobType, entityType, entityID),
		Status:      types.JobStatusQueued,
		Stage:       "queued",
		RunAt:       now,
		Payload:     datatypes.JSON(b),
		Result:      datatypes.JSON([]byte(`{}`)),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if _, err := s.repo.Create(ctx, tx, []*types.JobRun{job}); err != nil {
		return nil, fmt.Errorf("create job: %w", err)
	}
	if s.notify != nil {
		s.notify.JobCreated(job)
	}
	return job, nil
}

func (s *jobService) EnqueueReviewReconcileIfNeeded(ctx context.Context, userID, sourceQuizID int64, attemptID *int64, mode ReviewMode, trigger string) (*types.JobRun, bool, error) {
	if userID == 0 || sourceQuizID == 0 {
		return nil, false, fmt.Errorf("missing user_id/source_quiz_id")
	}
	entityID := fmt.Sprintf("%d:%d", userID, sourceQuizID)
	exists, err := s.repo.ExistsRunnable(ctx, nil, JobTypeReviewReconcile, "user_source_quiz", entityID)
	if err != nil {
		return nil, false, err
	}
	if exists {
		return nil, false, nil
	}

	payload := map[string]any{
		"user_id":        userID,
		"source_quiz_id": sourceQuizID,
		"mode":           string(mode),
		"trigger":        trigger,
	}
	if attemptID != nil {
		payload["attempt_id"] = *attemptID
	}
	job, err := s.Enqueue(ctx, nil, userID, JobTypeReviewReconcile, "user_source_quiz", entityID, payload)
	if err != nil {
		return nil, false, err
	}
	return job, true, nil
}

func (s *jobService) EnqueueAssignmentHealIfNeeded(ctx context.Context, userID int64, trigger string) (*types.JobRun, bool, error) {
	if userID == 0 {
		return nil, false, fmt.Errorf("missing user_id")
	}
	entityID := fmt.Sprintf("%d", userID)
	exists, err := s.repo.ExistsRunnable(ctx, nil, JobTypeAssignmentHeal, "user", entityID)
	if err != nil {
		return nil, false, err
	}
	if exists {
		return nil, false, nil
	}

	payload := map[string]any{
		"user_id": userID,
		"trigger": trigger,
	}
	job, err := s.Enqueue(ctx, nil, userID, JobTypeAssignmentHeal, "user", entityID, payload)
	if err != nil {
		return nil, false, err
	}
	return job, true, nil
}

func (s *jobService) EnqueueCourseCacheRebuildIfNeeded(ctx context.Context, userID, lmsCourseID int64) (*types.JobRun, bool, error) {
	if lmsCourseID == 0 {
		return nil, false, fmt.Errorf("missing lms_course_id")
	}
	entityID := fmt.Sprintf("%d", lmsCourseID)

	if s.throttle != nil {
		ok, err := s.throttle.Allow(ctx, dedupKey(JobTypeCourseCacheRebuild, "lms_course", entityID), s.cacheRebuildInterval)
		if err != nil {
			s.log.Warn("Cache rebuild throttle check failed", "lms_course_id", lmsCourseID, "error", err)
		} else if !ok {
			return nil, false, nil
		}
	}

	exists, err := s.repo.ExistsRunnable(ctx, nil, JobTypeCourseCacheRebuild, "lms_course", entityID)
	if err != nil {
		return nil, false, err
	}
	if exists {
		return nil, false, nil
	}

	payload := map[string]any{
		"lms_course_id": lmsCourseID,
	}
	job, err := s.Enqueue(ctx, nil, userID, JobTypeCourseCacheRebuild, "lms_course", entityID, payload)
	if err != nil {
		return nil, false, err
	}
	return job, true, nil
}

func dedupKey(jobType, entityType, entityID string) string {
	return jobType + ":" + entityType + ":" + entityID
}
