package review_reconcile

import (
	"errors"
	"fmt"
	"time"

	jobrt "github.com/studyloop/reviewquiz-backend/internal/jobs/runtime"
	"github.com/studyloop/reviewquiz-backend/internal/lms"
	"github.com/studyloop/reviewquiz-backend/internal/locks"
	"github.com/studyloop/reviewquiz-backend/internal/services"
)

const conflictRetryDelay = 2 * time.Minute

func (p *Pipeline) Run(jc *jobrt.Context) error {
	if jc == nil || jc.Job == nil {
		return nil
	}
	userID, ok := jc.PayloadInt64("user_id")
	if !ok || userID == 0 {
		jc.Fail("validate", fmt.Errorf("missing user_id"))
		return nil
	}
	sourceQuizID, ok := jc.PayloadInt64("source_quiz_id")
	if !ok || sourceQuizID == 0 {
		jc.Fail("validate", fmt.Errorf("missing source_quiz_id"))
		return nil
	}
	mode := services.ModeFlags
	if m, ok := jc.PayloadString("mode"); ok && m == string(services.ModeAttempt) {
		mode = services.ModeAttempt
	}
	var attemptID *int64
	if id, ok := jc.PayloadInt64("attempt_id"); ok && id != 0 {
		attemptID = &id
	}

	// A flag-triggered reconciliation must not yank questions out from
	// under an attempt in progress. Submit-triggered runs go ahead; they
	// are the ones allowed to discard open attempts.
	if mode == services.ModeFlags {
		open, err := p.openAttemptOnReviewQuiz(jc, userID, sourceQuizID)
		if err != nil {
			jc.RescheduleWithBackoff("check_open_attempt", err)
			return nil
		}
		if open {
			jc.Reschedule(conflictRetryDelay, "open attempt on review quiz")
			return nil
		}
	}

	jc.Progress("reconcile", "Reconciling review quiz")
	diff, err := p.reconcile.Reconcile(jc.Ctx, userID, sourceQuizID, attemptID, mode)
	switch {
	case errors.Is(err, locks.ErrContended):
		jc.Reschedule(conflictRetryDelay, "reconcile lock contended")
		return nil
	case errors.Is(err, lms.ErrLocked):
		// The quiz structure is locked on the LMS side. Retry later and
		// let the heal job clean up anything left half-edited.
		if _, _, qerr := p.jobs.EnqueueAssignmentHealIfNeeded(jc.Ctx, userID, "reconcile_locked"); qerr != nil {
			p.log.Warn("Heal enqueue failed", "user_id", userID, "error", qerr)
		}
		jc.Reschedule(conflictRetryDelay, "lms quiz structure locked")
		return nil
	case err != nil:
		jc.RescheduleWithBackoff("reconcile", err)
		return nil
	}

	if len(diff.Failures) > 0 {
		// Partial application: the next pass re-derives only what is
		// still missing, so retrying the whole job is safe.
		jc.RescheduleWithBackoff("apply", fmt.Errorf("%d structural edits failed", len(diff.Failures)))
		return nil
	}

	jc.Succeed(diff)
	return nil
}

func (p *Pipeline) openAttemptOnReviewQuiz(jc *jobrt.Context, userID, sourceQuizID int64) (bool, error) {
	course, err := p.courses.GetByUser(jc.Ctx, nil, userID)
	if err != nil || course == nil {
		return false, err
	}
	quiz, err := p.quizzes.GetByCourseAndSource(jc.Ctx, nil, course.ID, sourceQuizID)
	if err != nil || quiz == nil {
		return false, err
	}
	return p.lms.HasOpenAttempt(jc.Ctx, quiz.LMSQuizID, userID)
}
