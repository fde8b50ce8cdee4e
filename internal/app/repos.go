package app

import (
	"gorm.io/gorm"

	"github.com/studyloop/reviewquiz-backend/internal/logger"
	"github.com/studyloop/reviewquiz-backend/internal/repos"
)

type Repos struct {
	QuestionFlag     repos.QuestionFlagRepo
	ReviewCourse     repos.ReviewCourseRepo
	ReviewQuiz       repos.ReviewQuizRepo
	ReviewAssignment repos.ReviewAssignmentRepo
	JobRun           repos.JobRunRepo
}

func wireRepos(db *gorm.DB, log *logger.Logger) Repos {
	log.Info("Wiring repos...")
	return Repos{
		QuestionFlag:     repos.NewQuestionFlagRepo(db, log),
		ReviewCourse:     repos.NewReviewCourseRepo(db, log),
		ReviewQuiz:       repos.NewReviewQuizRepo(db, log),
		ReviewAssignment: repos.NewReviewAssignmentRepo(db, log),
		JobRun:           repos.NewJobRunRepo(db, log),
	}
}
