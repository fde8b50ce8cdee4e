package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/studyloop/reviewquiz-backend/internal/lms"
	"github.com/studyloop/reviewquiz-backend/internal/locks"
	"github.com/studyloop/reviewquiz-backend/internal/logger"
	"github.com/studyloop/reviewquiz-backend/internal/repos"
	"github.com/studyloop/reviewquiz-backend/internal/types"
)

// EventService translates host LMS events into reconciliations. It
// holds no diff logic of its own: every path funnels into
// ReconcileService, synchronously when safe and through the job queue
// otherwise.
type EventService interface {
	OnFlagChanged(ctx context.Context, userID, questionID int64, color string, added bool, contextQuizID int64) error
	OnAttemptSubmitted(ctx context.Context, userID, quizID, attemptID int64) error
	OnQuizViewed(ctx context.Context, userID, quizID int64) error
}

type eventService struct {
	log       *logger.Logger
	lms       lms.Client
	flags     repos.QuestionFlagRepo
	courses   repos.ReviewCourseRepo
	quizzes   repos.ReviewQuizRepo
	reconcile ReconcileService
	jobs      JobService
}

func NewEventService(
	baseLog *logger.Logger,
	client lms.Client,
	flags repos.QuestionFlagRepo,
	courses repos.ReviewCourseRepo,
	quizzes repos.ReviewQuizRepo,
	reconcile ReconcileService,
	jobs JobService,
) EventService {
	return &eventService{
		log:       baseLog.With("service", "EventService"),
		lms:       client,
		flags:     flags,
		courses:   courses,
		quizzes:   quizzes,
		reconcile: reconcile,
		jobs:      jobs,
	}
}

// OnFlagChanged records the flag mutation and reconciles the affected
// source quiz. When the user is mid-attempt on their review quiz the
// structural edit is deferred to the job queue, which waits the attempt
// out rather than deleting it under the student.
func (s *eventService) OnFlagChanged(ctx context.Context, userID, questionID int64, color string, added bool, contextQuizID int64) error {
	if added {
		f := &types.QuestionFlag{
			UserID:     userID,
			QuestionID: questionID,
			Color:      color,
			Source:     types.FlagSourceManual,
		}
		if err := s.flags.Upsert(ctx, nil, f); err != nil {
			return fmt.Errorf("record flag: %w", err)
		}
	} else {
		if err := s.flags.Delete(ctx, nil, userID, questionID); err != nil {
			return fmt.Errorf("remove flag: %w", err)
		}
	}

	sourceQuizID, reviewQuiz, err := s.resolveSourceQuiz(ctx, userID, contextQuizID)
	if err != nil {
		return err
	}
	if sourceQuizID == 0 {
		// Flag on a quiz this engine does not track.
		return nil
	}

	if reviewQuiz != nil {
		open, err := s.lms.HasOpenAttempt(ctx, reviewQuiz.LMSQuizID, userID)
		if err != nil && !errors.Is(err, lms.ErrNotFound) {
			return fmt.Errorf("check open attempt: %w", err)
		}
		if open {
			_, _, err := s.jobs.EnqueueReviewReconcileIfNeeded(ctx, userID, sourceQuizID, nil, ModeFlags, "flag_changed_deferred")
			return err
		}
	}

	if _, err := s.reconcile.Reconcile(ctx, userID, sourceQuizID, nil, ModeFlags); err != nil {
		if errors.Is(err, locks.ErrContended) {
			_, _, qerr := s.jobs.EnqueueReviewReconcileIfNeeded(ctx, userID, sourceQuizID, nil, ModeFlags, "flag_changed_contended")
			return qerr
		}
		return err
	}
	return nil
}

// OnAttemptSubmitted reconciles immediately and also queues the same
// work: if the request dies mid-flight the job replays it, and the
// diff-based engine makes the duplicate a no-op.
func (s *eventService) OnAttemptSubmitted(ctx context.Context, userID, quizID, attemptID int64) error {
	if _, _, err := s.jobs.EnqueueReviewReconcileIfNeeded(ctx, userID, quizID, &attemptID, ModeAttempt, "attempt_submitted"); err != nil {
		s.log.Warn("Reconcile enqueue failed", "user_id", userID, "source_quiz_id", quizID, "error", err)
	}
	if _, err := s.reconcile.Reconcile(ctx, userID, quizID, &attemptID, ModeAttempt); err != nil {
		if errors.Is(err, locks.ErrContended) {
			// The queued job picks it up.
			return nil
		}
		return err
	}
	return nil
}

// OnQuizViewed opportunistically refreshes a review quiz when its owner
// opens it with no attempt underway. Failures only cost freshness, so
// they are logged and swallowed.
func (s *eventService) OnQuizViewed(ctx context.Context, userID, quizID int64) error {
	reviewQuiz, err := s.quizzes.GetByLMSQuiz(ctx, nil, quizID)
	if err != nil {
		return err
	}
	if reviewQuiz == nil {
		return nil
	}
	course, err := s.courses.GetByUser(ctx, nil, userID)
	if err != nil {
		return err
	}
	if course == nil || course.ID != reviewQuiz.ReviewCourseID {
		return nil
	}

	open, err := s.lms.HasOpenAttempt(ctx, quizID, userID)
	if err != nil && !errors.Is(err, lms.ErrNotFound) {
		return err
	}
	if open {
		return nil
	}

	if _, err := s.reconcile.Reconcile(ctx, userID, reviewQuiz.SourceQuizID, nil, ModeFlags); err != nil && !errors.Is(err, locks.ErrContended) {
		s.log.Warn("View-triggered reconcile failed",
			"user_id", userID, "source_quiz_id", reviewQuiz.SourceQuizID, "error", err)
	}
	return nil
}

// resolveSourceQuiz maps the quiz a flag event happened on to the
// source quiz that drives reconciliation. A flag on the review quiz
// itself resolves through the mapping; otherwise the context quiz is
// taken to be a source quiz.
func (s *eventService) resolveSourceQuiz(ctx context.Context, userID, contextQuizID int64) (int64, *types.ReviewQuiz, error) {
	if contextQuizID == 0 {
		return 0, nil, nil
	}
	rq, err := s.quizzes.GetByLMSQuiz(ctx, nil, contextQuizID)
	if err != nil {
		return 0, nil, err
	}
	if rq != nil {
		return rq.SourceQuizID, rq, nil
	}

	// Context is a source quiz; look up its review quiz (if any) to
	// honor the open-attempt deferral.
	course, err := s.courses.GetByUser(ctx, nil, userID)
	if err != nil {
		return 0, nil, err
	}
	if course == nil {
		return contextQuizID, nil, nil
	}
	rq, err = s.quizzes.GetByCourseAndSource(ctx, nil, course.ID, contextQuizID)
	if err != nil {
		return 0, nil, err
	}
	return contextQuizID, rq, nil
}
