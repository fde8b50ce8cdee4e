package assignment_heal

import (
	"errors"
	"fmt"
	"time"

	jobrt "github.com/studyloop/reviewquiz-backend/internal/jobs/runtime"
	"github.com/studyloop/reviewquiz-backend/internal/lms"
	"github.com/studyloop/reviewquiz-backend/internal/services"
)

// Run walks one user's review quiz mappings and repairs state that
// drifted because of out-of-band LMS changes: a review quiz deleted on
// the LMS side leaves assignment rows pointing nowhere. Those rows are
// purged and a fresh reconciliation is enqueued per affected source
// quiz, which recreates the quiz and its questions from the flag set.
func (p *Pipeline) Run(jc *jobrt.Context) error {
	if jc == nil || jc.Job == nil {
		return nil
	}
	userID, ok := jc.PayloadInt64("user_id")
	if !ok || userID == 0 {
		jc.Fail("validate", fmt.Errorf("missing user_id"))
		return nil
	}

	course, err := p.courses.GetByUser(jc.Ctx, nil, userID)
	if err != nil {
		jc.RescheduleWithBackoff("load_course", err)
		return nil
	}
	if course == nil {
		// Nothing exists yet for this user, so nothing can be broken.
		jc.Succeed(map[string]any{"healed": 0})
		return nil
	}

	quizzes, err := p.quizzes.GetByCourse(jc.Ctx, nil, course.ID)
	if err != nil {
		jc.RescheduleWithBackoff("load_quizzes", err)
		return nil
	}

	healed := 0
	for _, quiz := range quizzes {
		jc.Progress("probe", fmt.Sprintf("Checking review quiz for source %d", quiz.SourceQuizID))
		err := p.lms.QuizExists(jc.Ctx, quiz.LMSQuizID)
		if err == nil {
			continue
		}
		if errors.Is(err, lms.ErrLocked) {
			jc.Reschedule(2*time.Minute, "lms quiz locked during heal")
			return nil
		}
		if !errors.Is(err, lms.ErrNotFound) {
			jc.RescheduleWithBackoff("probe", err)
			return nil
		}

		// The LMS quiz vanished. Drop the stale assignment rows and let
		// a reconcile pass rebuild the quiz from scratch.
		if derr := p.assigns.DeleteByQuiz(jc.Ctx, nil, quiz.ID); derr != nil {
			jc.RescheduleWithBackoff("purge", derr)
			return nil
		}
		if _, _, qerr := p.jobs.EnqueueReviewReconcileIfNeeded(
			jc.Ctx, userID, quiz.SourceQuizID, nil, services.ModeFlags, "heal",
		); qerr != nil {
			p.log.Warn("Reconcile enqueue failed during heal",
				"user_id", userID, "source_quiz_id", quiz.SourceQuizID, "error", qerr)
		}
		healed++
	}

	jc.Succeed(map[string]any{"healed": healed})
	return nil
}
