package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/studyloop/reviewquiz-backend/internal/lms"
	"github.com/studyloop/reviewquiz-backend/internal/locks"
	"github.com/studyloop/reviewquiz-backend/internal/logger"
	"github.com/studyloop/reviewquiz-backend/internal/repos"
	"github.com/studyloop/reviewquiz-backend/internal/types"
)

type ReviewMode string

const (
	// ModeFlags derives the question set from flags alone (quiz view,
	// flag toggles).
	ModeFlags ReviewMode = "flags"
	// ModeAttempt additionally folds in the wrong answers of a just
	// submitted attempt.
	ModeAttempt ReviewMode = "attempt"
)

// StepFailure records one structural edit that could not be applied.
// The rest of the diff still went through; the async job path retries
// the whole reconciliation, which re-derives only what is missing.
type StepFailure struct {
	Op         string `json:"op"`
	QuestionID int64  `json:"question_id,omitempty"`
	Err        string `json:"error"`
}

// Diff is the report of one reconciliation pass.
type Diff struct {
	Provisioned bool          `json:"provisioned"`
	Added       []int64       `json:"added,omitempty"`
	Removed     []int64       `json:"removed,omitempty"`
	Failures    []StepFailure `json:"failures,omitempty"`
}

func (d *Diff) fail(op string, questionID int64, err error) {
	d.Failures = append(d.Failures, StepFailure{Op: op, QuestionID: questionID, Err: err.Error()})
}

// ReconcileService converges a user's review quiz onto the set of
// flagged and incorrectly answered questions of one source quiz. It is
// the single authority over review quiz structure: both the sync event
// path and the async job path go through Reconcile.
type ReconcileService interface {
	Reconcile(ctx context.Context, userID, sourceQuizID int64, attemptID *int64, mode ReviewMode) (*Diff, error)
}

type reconcileService struct {
	db        *gorm.DB
	log       *logger.Logger
	lms       lms.Client
	locker    locks.Locker
	flags     repos.QuestionFlagRepo
	courses   repos.ReviewCourseRepo
	quizzes   repos.ReviewQuizRepo
	assigns   repos.ReviewAssignmentRepo
	provision ProvisionService
	analysis  AttemptAnalysisService
	jobs      JobService
}

func NewReconcileService(
	db *gorm.DB,
	baseLog *logger.Logger,
	client lms.Client,
	locker locks.Locker,
	flags repos.QuestionFlagRepo,
	courses repos.ReviewCourseRepo,
	quizzes repos.ReviewQuizRepo,
	assigns repos.ReviewAssignmentRepo,
	provision ProvisionService,
	analysis AttemptAnalysisService,
	jobs JobService,
) ReconcileService {
	return &reconcileService{
		db:        db,
		log:       baseLog.With("service", "ReconcileService"),
		lms:       client,
		locker:    locker,
		flags:     flags,
		courses:   courses,
		quizzes:   quizzes,
		assigns:   assigns,
		provision: provision,
		analysis:  analysis,
		jobs:      jobs,
	}
}

// Reconcile runs one pass for (userID, sourceQuizID). Passes for the
// same pair are serialized through the locker; a held lock surfaces as
// locks.ErrContended and the caller decides whether to retry.
//
// Structural edits are applied as individually retriable units:
// failures land in Diff.Failures and never roll back edits already
// made. Running the same pass again with unchanged inputs yields an
// empty diff.
func (s *reconcileService) Reconcile(ctx context.Context, userID, sourceQuizID int64, attemptID *int64, mode ReviewMode) (*Diff, error) {
	release, err := s.locker.TryAcquire(ctx, reconcileKey(userID, sourceQuizID))
	if err != nil {
		return nil, err
	}
	defer release()

	diff := &Diff{}

	source, err := s.lms.QuizInfo(ctx, sourceQuizID)
	if errors.Is(err, lms.ErrNotFound) {
		// Source quiz gone; nothing to derive from.
		return diff, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load source quiz %d: %w", sourceQuizID, err)
	}

	incorrect := map[int64]bool{}
	if mode == ModeAttempt && attemptID != nil {
		incorrect, err = s.analysis.IncorrectQuestions(ctx, *attemptID)
		if errors.Is(err, lms.ErrNotFound) {
			incorrect = map[int64]bool{}
		} else if err != nil {
			return nil, fmt.Errorf("analyze attempt %d: %w", *attemptID, err)
		}
	}

	course, quiz, err := s.ensureTarget(ctx, userID, source, incorrect)
	if err != nil {
		return nil, err
	}
	if quiz == nil {
		// Threshold not met; a valid outcome, not an error.
		return diff, nil
	}
	diff.Provisioned = true

	flagRows, err := s.flags.GetByUser(ctx, nil, userID)
	if err != nil {
		return nil, fmt.Errorf("load flags: %w", err)
	}
	flagColor := make(map[int64]string, len(flagRows))
	flagSource := make(map[int64]string, len(flagRows))
	for _, f := range flagRows {
		flagColor[f.QuestionID] = f.Color
		flagSource[f.QuestionID] = f.Source
	}

	inSource := make(map[int64]bool, len(source.Questions))
	desired := make([]int64, 0, len(source.Questions))
	desiredSet := make(map[int64]bool)
	for _, q := range source.Questions {
		inSource[q.ID] = true
		if _, flagged := flagColor[q.ID]; flagged || incorrect[q.ID] {
			desired = append(desired, q.ID)
			desiredSet[q.ID] = true
		}
	}

	// Persist auto flags for fresh wrong answers so later flags-only
	// passes converge to the same set without the attempt in hand.
	for qid := range incorrect {
		if !inSource[qid] {
			continue
		}
		if _, flagged := flagColor[qid]; flagged {
			continue
		}
		f := &types.QuestionFlag{
			UserID:     userID,
			QuestionID: qid,
			Color:      types.FlagColorBlue,
			Source:     types.FlagSourceAuto,
		}
		if err := s.flags.Upsert(ctx, nil, f); err != nil {
			diff.fail("auto_flag", qid, err)
			continue
		}
		flagColor[qid] = types.FlagColorBlue
		flagSource[qid] = types.FlagSourceAuto
	}

	blocked, err := s.evictFromOtherQuizzes(ctx, course, quiz, desired, diff)
	if err != nil {
		return nil, err
	}

	current, err := s.assigns.GetByQuiz(ctx, nil, quiz.ID)
	if err != nil {
		return nil, fmt.Errorf("load assignments: %w", err)
	}
	currentSet := make(map[int64]bool, len(current))
	for _, a := range current {
		currentSet[a.QuestionID] = true
	}

	// Questions still held by a sibling quiz stay out of this pass;
	// adding them before the eviction lands would duplicate them.
	toAdd := make([]int64, 0)
	for _, qid := range desired {
		if !currentSet[qid] && !blocked[qid] {
			toAdd = append(toAdd, qid)
		}
	}
	toRemove := make([]*types.ReviewAssignment, 0)
	for _, a := range current {
		if !desiredSet[a.QuestionID] {
			toRemove = append(toRemove, a)
		}
	}

	if len(toAdd) > 0 || len(toRemove) > 0 {
		// Attempts freeze quiz structure. Invalidate any open attempt
		// before touching slots; if that fails, structure stays as is.
		if err := s.lms.DeleteOpenAttempt(ctx, quiz.LMSQuizID, userID); err != nil {
			diff.fail("delete_open_attempt", 0, err)
			return diff, nil
		}
	}

	for _, a := range toRemove {
		if err := s.lms.RemoveQuestion(ctx, quiz.LMSQuizID, a.QuestionID); err != nil {
			diff.fail("remove_question", a.QuestionID, err)
			continue
		}
		if err := s.assigns.Delete(ctx, nil, course.ID, a.QuestionID); err != nil {
			diff.fail("delete_assignment", a.QuestionID, err)
			continue
		}
		diff.Removed = append(diff.Removed, a.QuestionID)
	}

	for _, qid := range toAdd {
		if err := s.lms.AddQuestion(ctx, quiz.LMSQuizID, qid); err != nil {
			diff.fail("add_question", qid, err)
			continue
		}
		row := &types.ReviewAssignment{
			ReviewCourseID: course.ID,
			QuestionID:     qid,
			ReviewQuizID:   quiz.ID,
			Color:          flagColor[qid],
			Source:         flagSource[qid],
		}
		if row.Color == "" {
			row.Color = types.FlagColorBlue
		}
		if row.Source == "" {
			row.Source = types.FlagSourceAuto
		}
		if err := s.assigns.Create(ctx, nil, row); err != nil {
			diff.fail("create_assignment", qid, err)
			continue
		}
		diff.Added = append(diff.Added, qid)
	}

	if len(diff.Added) > 0 || len(diff.Removed) > 0 {
		s.resequence(ctx, course, quiz, source, diff)
		if s.jobs != nil {
			if _, _, err := s.jobs.EnqueueCourseCacheRebuildIfNeeded(ctx, userID, course.LMSCourseID); err != nil {
				s.log.Warn("Cache rebuild enqueue failed", "user_id", userID, "error", err)
			}
		}
	}

	if len(diff.Added) > 0 || len(diff.Removed) > 0 || len(diff.Failures) > 0 {
		s.log.Info("Reconciled review quiz",
			"user_id", userID,
			"source_quiz_id", sourceQuizID,
			"mode", mode,
			"added", len(diff.Added),
			"removed", len(diff.Removed),
			"failures", len(diff.Failures),
		)
	}
	return diff, nil
}

// ensureTarget resolves (course, review quiz) for the pair, provisioning
// both on first contact when the grade threshold allows. A nil quiz
// with nil error means creation is gated.
func (s *reconcileService) ensureTarget(ctx context.Context, userID int64, source *lms.QuizInfo, incorrect map[int64]bool) (*types.ReviewCourse, *types.ReviewQuiz, error) {
	course, err := s.courses.GetByUser(ctx, nil, userID)
	if err != nil {
		return nil, nil, fmt.Errorf("lookup review course: %w", err)
	}

	var quiz *types.ReviewQuiz
	if course != nil {
		quiz, err = s.quizzes.GetByCourseAndSource(ctx, nil, course.ID, source.ID)
		if err != nil {
			return nil, nil, fmt.Errorf("lookup review quiz: %w", err)
		}
	}

	if quiz == nil {
		attempts, err := s.lms.UserAttempts(ctx, source.ID, userID)
		if err != nil && !errors.Is(err, lms.ErrNotFound) {
			return nil, nil, fmt.Errorf("load attempt history: %w", err)
		}
		history := make([]AttemptGrade, 0, len(attempts))
		for _, a := range attempts {
			if a.State == lms.AttemptFinished {
				history = append(history, AttemptGrade{Number: a.Number, GradePC: a.GradePC})
			}
		}
		if !AllowInitialCreation(history) {
			s.log.Debug("Review quiz creation gated by grade threshold",
				"user_id", userID, "source_quiz_id", source.ID, "attempts", len(history))
			return course, nil, nil
		}
		if course == nil {
			course, err = s.provision.EnsureReviewCourse(ctx, nil, userID)
			if err != nil {
				return nil, nil, err
			}
		}
	}

	// EnsureReviewQuiz covers both creation and re-pointing a mapping
	// whose LMS quiz was deleted behind our back.
	quiz, err = s.provision.EnsureReviewQuiz(ctx, nil, course, source)
	if err != nil {
		return nil, nil, err
	}
	return course, quiz, nil
}

// evictFromOtherQuizzes enforces the one-quiz-per-question rule: any
// desired question currently held by a sibling review quiz is removed
// there first. Transient absence is fine, transient duplication is not,
// so questions whose eviction failed come back in the blocked set and
// must not be added until a later pass clears them out.
func (s *reconcileService) evictFromOtherQuizzes(ctx context.Context, course *types.ReviewCourse, quiz *types.ReviewQuiz, desired []int64, diff *Diff) (map[int64]bool, error) {
	blocked := map[int64]bool{}
	rows, err := s.assigns.GetByCourseAndQuestions(ctx, nil, course.ID, desired)
	if err != nil {
		return nil, fmt.Errorf("load sibling assignments: %w", err)
	}

	foreign := make([]*types.ReviewAssignment, 0)
	quizIDs := make([]uuid.UUID, 0)
	seen := make(map[uuid.UUID]bool)
	for _, a := range rows {
		if a.ReviewQuizID == quiz.ID {
			continue
		}
		foreign = append(foreign, a)
		if !seen[a.ReviewQuizID] {
			seen[a.ReviewQuizID] = true
			quizIDs = append(quizIDs, a.ReviewQuizID)
		}
	}
	if len(foreign) == 0 {
		return blocked, nil
	}

	siblings, err := s.quizzes.GetByIDs(ctx, nil, quizIDs)
	if err != nil {
		return nil, fmt.Errorf("load sibling quizzes: %w", err)
	}
	lmsID := make(map[uuid.UUID]int64, len(siblings))
	for _, q := range siblings {
		lmsID[q.ID] = q.LMSQuizID
	}

	invalidated := make(map[uuid.UUID]bool)
	for _, a := range foreign {
		target, ok := lmsID[a.ReviewQuizID]
		if ok && !invalidated[a.ReviewQuizID] {
			if err := s.lms.DeleteOpenAttempt(ctx, target, course.UserID); err != nil {
				diff.fail("evict_delete_attempt", a.QuestionID, err)
				blocked[a.QuestionID] = true
				continue
			}
			invalidated[a.ReviewQuizID] = true
		}
		if ok {
			if err := s.lms.RemoveQuestion(ctx, target, a.QuestionID); err != nil {
				diff.fail("evict_remove_question", a.QuestionID, err)
				blocked[a.QuestionID] = true
				continue
			}
		}
		if err := s.assigns.Delete(ctx, nil, course.ID, a.QuestionID); err != nil {
			diff.fail("evict_delete_assignment", a.QuestionID, err)
			blocked[a.QuestionID] = true
		}
	}
	return blocked, nil
}

// resequence rewrites slot order to mirror the source quiz ordering
// restricted to what actually got assigned. Best effort: failures are
// recorded and the next pass repairs ordering.
func (s *reconcileService) resequence(ctx context.Context, course *types.ReviewCourse, quiz *types.ReviewQuiz, source *lms.QuizInfo, diff *Diff) {
	rows, err := s.assigns.GetByQuiz(ctx, nil, quiz.ID)
	if err != nil {
		diff.fail("resequence", 0, err)
		return
	}
	assigned := make(map[int64]bool, len(rows))
	for _, a := range rows {
		assigned[a.QuestionID] = true
	}

	order := make([]int64, 0, len(rows))
	slots := make(map[int64]int, len(rows))
	for _, q := range source.Questions {
		if assigned[q.ID] {
			order = append(order, q.ID)
			slots[q.ID] = len(order)
		}
	}

	if err := s.lms.ResequenceSlots(ctx, quiz.LMSQuizID, order); err != nil {
		diff.fail("resequence", 0, err)
		return
	}
	if err := s.assigns.UpdateSlots(ctx, nil, quiz.ID, slots); err != nil {
		diff.fail("resequence_slots", 0, err)
	}
	if err := s.lms.RecomputeGrade(ctx, quiz.LMSQuizID); err != nil {
		diff.fail("recompute_grade", 0, err)
	}
}

func reconcileKey(userID, sourceQuizID int64) string {
	return fmt.Sprintf("reconcile:%d:%d", userID, sourceQuizID)
}
