package course_cache_rebuild

import (
	"gorm.io/gorm"

	"github.com/studyloop/reviewquiz-backend/internal/lms"
	"github.com/studyloop/reviewquiz-backend/internal/logger"
	"github.com/studyloop/reviewquiz-backend/internal/services"
)

type Pipeline struct {
	db  *gorm.DB
	log *logger.Logger

	lms lms.Client
}

func New(db *gorm.DB, baseLog *logger.Logger, lmsClient lms.Client) *Pipeline {
	return &Pipeline{
		db:  db,
		log: baseLog.With("job", services.JobTypeCourseCacheRebuild),
		lms: lmsClient,
	}
}

func (p *Pipeline) Type() string { return services.JobTypeCourseCacheRebuild }
