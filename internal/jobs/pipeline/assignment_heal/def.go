package assignment_heal

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

	lms     lms.Client
	courses repos.ReviewCourseRepo
	quizzes repos.ReviewQuizRepo
	assigns repos.ReviewAssignmentRepo
	jobs    services.JobService
}

func New(
	db *gorm.DB,
	baseLog *logger.Logger,
	lmsClient lms.Client,
	courses repos.ReviewCourseRepo,
	quizzes repos.ReviewQuizRepo,
	assigns repos.ReviewAssignmentRepo,
	jobs services.JobService,
) *Pipeline {
	return &Pipeline{
		db:      db,
		log:     baseLog.With("job", services.JobTypeAssignmentHeal),
		lms:     lmsClient,
		courses: courses,
		quizzes: quizzes,
		assigns: assigns,
		jobs:    jobs,
	}
}

func (p *Pipeline) Type() string { return services.JobTypeAssignmentHeal }
