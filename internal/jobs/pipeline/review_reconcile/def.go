package review_reconcile

import (
	"gorm.io/gorm"

	"github.com/studyloop/reviewquiz-backend/internal/lms"
	"github.com/studyloop/reviewquiz-backend/internal/logger"
	"github.com/studyloop/reviewquiz-backend/internal/repos"
	"github.com/studyloop/reviewquiz-backend/internal/services"
)

type Pipeline struct {
	db  *gorm.DB
	log *logger.Logger

	lms       lms.Client
	courses   repos.ReviewCourseRepo
	quizzes   repos.ReviewQuizRepo
	reconcile services.ReconcileService
	jobs      services.JobService
}

func New(
	db *gorm.DB,
	baseLog *logger.Logger,
	lmsClient lms.Client,
	courses repos.ReviewCourseRepo,
	quizzes repos.ReviewQuizRepo,
	reconcile services.ReconcileService,
	jobs services.JobService,
) *Pipeline {
	return &Pipeline{
		db:        db,
		log:       baseLog.With("job", services.JobTypeReviewReconcile),
		lms:       lmsClient,
		courses:   courses,
		quizzes:   quizzes,
		reconcile: reconcile,
		jobs:      jobs,
	}
}

func (p *Pipeline) Type() string { return services.JobTypeReviewReconcile }
