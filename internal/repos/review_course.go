package repos

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/studyloop/reviewquiz-backend/internal/logger"
	"github.com/studyloop/reviewquiz-backend/internal/types"
)

type ReviewCourseRepo interface {
	Create(ctx context.Context, tx *gorm.DB, course *types.ReviewCourse) error
	GetByUser(ctx context.Context, tx *gorm.DB, userID int64) (*types.ReviewCourse, error)
}

type reviewCourseRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewReviewCourseRepo(db *gorm.DB, baseLog *logger.Logger) ReviewCourseRepo {
	return &reviewCourseRepo{db: db, log: baseLog.With("repo", "ReviewCourseRepo")}
}

func (r *reviewCourseRepo) Create(ctx context.Context, tx *gorm.DB, course *types.ReviewCourse) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if course == nil {
		return nil
	}
	return transaction.WithContext(ctx).Create(course).Error
}

func (r *reviewCourseRepo) GetByUser(ctx context.Context, tx *gorm.DB, userID int64) (*types.ReviewCourse, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var course types.ReviewCourse
	err := transaction.WithContext(ctx).
		Where("user_id = ?", userID).
		First(&course).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &course, nil
}
