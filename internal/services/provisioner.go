package services

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/studyloop/reviewquiz-backend/internal/lms"
	"github.com/studyloop/reviewquiz-backend/internal/logger"
	"github.com/studyloop/reviewquiz-backend/internal/repos"
	"github.com/studyloop/reviewquiz-backend/internal/types"
)

const (
	sectionEssayReview = "Essay Review"
	sectionMixedReview = "Question Review"
)

// ProvisionService lazily creates the per-user review course and the
// per-source-quiz review quiz, reusing anything that already exists on
// the LMS side, and re-points mappings whose quiz the host deleted.
type ProvisionService interface {
	EnsureReviewCourse(ctx context.Context, tx *gorm.DB, userID int64) (*types.ReviewCourse, error)
	EnsureReviewQuiz(ctx context.Context, tx *gorm.DB, course *types.ReviewCourse, source *lms.QuizInfo) (*types.ReviewQuiz, error)
}

type provisionService struct {
	db      *gorm.DB
	log     *logger.Logger
	lms     lms.Client
	courses repos.ReviewCourseRepo
	quizzes repos.ReviewQuizRepo
}

func NewProvisionService(
	db *gorm.DB,
	baseLog *logger.Logger,
	client lms.Client,
	courses repos.ReviewCourseRepo,
	quizzes repos.ReviewQuizRepo,
) ProvisionService {
	return &provisionService{
		db:      db,
		log:     baseLog.With("service", "ProvisionService"),
		lms:     client,
		courses: courses,
		quizzes: quizzes,
	}
}

func (s *provisionService) EnsureReviewCourse(ctx context.Context, tx *gorm.DB, userID int64) (*types.ReviewCourse, error) {
	course, err := s.courses.GetByUser(ctx, tx, userID)
	if err != nil {
		return nil, fmt.Errorf("lookup review course: %w", err)
	}
	if course != nil {
		return course, nil
	}

	name, err := s.lms.UserName(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("lookup user name: %w", err)
	}
	fullName := fmt.Sprintf("Personal Review - %s", name)
	shortName := fmt.Sprintf("review-u%d", userID)

	lmsCourseID, err := s.lms.EnsureCourse(ctx, fullName, shortName)
	if err != nil {
		return nil, fmt.Errorf("ensure lms course: %w", err)
	}
	if err := s.lms.EnrolUser(ctx, lmsCourseID, userID); err != nil {
		return nil, fmt.Errorf("enrol user: %w", err)
	}

	course = &types.ReviewCourse{UserID: userID, LMSCourseID: lmsCourseID}
	if err := s.courses.Create(ctx, tx, course); err != nil {
		return nil, fmt.Errorf("create review course row: %w", err)
	}
	s.log.Info("Provisioned review course", "user_id", userID, "lms_course_id", lmsCourseID)
	return course, nil
}

func (s *provisionService) EnsureReviewQuiz(ctx context.Context, tx *gorm.DB, course *types.ReviewCourse, source *lms.QuizInfo) (*types.ReviewQuiz, error) {
	quiz, err := s.quizzes.GetByCourseAndSource(ctx, tx, course.ID, source.ID)
	if err != nil {
		return nil, fmt.Errorf("lookup review quiz: %w", err)
	}
	if quiz != nil {
		// Mapping exists; make sure the LMS quiz behind it still does.
		switch err := s.lms.QuizExists(ctx, quiz.LMSQuizID); {
		case err == nil:
			return quiz, nil
		case errors.Is(err, lms.ErrLocked):
			return nil, err
		case errors.Is(err, lms.ErrNotFound):
			lmsQuizID, cerr := s.findOrCreateLMSQuiz(ctx, course, source, quiz.Kind, quiz.Section)
			if cerr != nil {
				return nil, cerr
			}
			if uerr := s.quizzes.Repoint(ctx, tx, quiz.ID, lmsQuizID); uerr != nil {
				return nil, fmt.Errorf("repoint review quiz: %w", uerr)
			}
			s.log.Warn("Review quiz vanished on LMS; re-pointed mapping",
				"review_quiz_id", quiz.ID, "lms_quiz_id", lmsQuizID)
			quiz.LMSQuizID = lmsQuizID
			return quiz, nil
		default:
			return nil, fmt.Errorf("check lms quiz: %w", err)
		}
	}

	kind := quizKind(source)
	section := sectionMixedReview
	if kind == types.ReviewQuizKindEssay {
		section = sectionEssayReview
	}
	lmsQuizID, err := s.findOrCreateLMSQuiz(ctx, course, source, kind, section)
	if err != nil {
		return nil, err
	}

	quiz = &types.ReviewQuiz{
		ReviewCourseID: course.ID,
		SourceQuizID:   source.ID,
		LMSQuizID:      lmsQuizID,
		Kind:           kind,
		Section:        section,
	}
	if err := s.quizzes.Create(ctx, tx, quiz); err != nil {
		return nil, fmt.Errorf("create review quiz row: %w", err)
	}
	s.log.Info("Provisioned review quiz",
		"user_id", course.UserID, "source_quiz_id", source.ID, "lms_quiz_id", lmsQuizID, "kind", kind)
	return quiz, nil
}

func (s *provisionService) findOrCreateLMSQuiz(ctx context.Context, course *types.ReviewCourse, source *lms.QuizInfo, kind, section string) (int64, error) {
	name := reviewQuizName(source.Name)
	id, err := s.lms.FindQuizByName(ctx, course.LMSCourseID, name)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, lms.ErrNotFound) {
		return 0, fmt.Errorf("find review quiz by name: %w", err)
	}
	id, err = s.lms.CreateQuiz(ctx, course.LMSCourseID, section, name)
	if err != nil {
		return 0, fmt.Errorf("create lms quiz: %w", err)
	}
	return id, nil
}

func reviewQuizName(sourceName string) string {
	return sourceName + " (Review)"
}

func quizKind(source *lms.QuizInfo) string {
	if len(source.Questions) == 0 {
		return types.ReviewQuizKindMixed
	}
	for _, q := range source.Questions {
		if q.QType != "essay" {
			return types.ReviewQuizKindMixed
		}
	}
	return types.ReviewQuizKindEssay
}
