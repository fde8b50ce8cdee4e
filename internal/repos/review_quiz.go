package repos

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/studyloop/reviewquiz-backend/internal/logger"
	"github.com/studyloop/reviewquiz-backend/internal/types"
)

type ReviewQuizRepo interface {
	Create(ctx context.Context, tx *gorm.DB, quiz *types.ReviewQuiz) error
	GetByCourseAndSource(ctx context.Context, tx *gorm.DB, reviewCourseID uuid.UUID, sourceQuizID int64) (*types.ReviewQuiz, error)
	GetByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*types.ReviewQuiz, error)
	GetByLMSQuiz(ctx context.Context, tx *gorm.DB, lmsQuizID int64) (*types.ReviewQuiz, error)
	GetByCourse(ctx context.Context, tx *gorm.DB, reviewCourseID uuid.UUID) ([]*types.ReviewQuiz, error)
	Repoint(ctx context.Context, tx *gorm.DB, id uuid.UUID, lmsQuizID int64) error
}

type reviewQuizRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewReviewQuizRepo(db *gorm.DB, baseLog *logger.Logger) ReviewQuizRepo {
	return &reviewQuizRepo{db: db, log: baseLog.With("repo", "ReviewQuizRepo")}
}

func (r *reviewQuizRepo) Create(ctx context.Context, tx *gorm.DB, quiz *types.ReviewQuiz) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if quiz == nil {
		return nil
	}
	return transaction.WithContext(ctx).Create(quiz).Error
}

func (r *reviewQuizRepo) GetByCourseAndSource(ctx context.Context, tx *gorm.DB, reviewCourseID uuid.UUID, sourceQuizID int64) (*types.ReviewQuiz, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var quiz types.ReviewQuiz
	err := transaction.WithContext(ctx).
		Where("review_course_id = ? AND source_quiz_id = ?", reviewCourseID, sourceQuizID).
		First(&quiz).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &quiz, nil
}

func (r *reviewQuizRepo) GetByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*types.ReviewQuiz, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.ReviewQuiz
	if len(ids) == 0 {
		return out, nil
	}
	if err := transaction.WithContext(ctx).
		Where("id IN ?", ids).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *reviewQuizRepo) GetByLMSQuiz(ctx context.Context, tx *gorm.DB, lmsQuizID int64) (*types.ReviewQuiz, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var quiz types.ReviewQuiz
	err := transaction.WithContext(ctx).
		Where("lms_quiz_id = ?", lmsQuizID).
		First(&quiz).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &quiz, nil
}

func (r *reviewQuizRepo) GetByCourse(ctx context.Context, tx *gorm.DB, reviewCourseID uuid.UUID) ([]*types.ReviewQuiz, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.ReviewQuiz
	if err := transaction.WithContext(ctx).
		Where("review_course_id = ?", reviewCourseID).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *reviewQuizRepo) Repoint(ctx context.Context, tx *gorm.DB, id uuid.UUID, lmsQuizID int64) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(ctx).
		Model(&types.ReviewQuiz{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"lms_quiz_id": lmsQuizID,
			"updated_at":  time.Now(),
		}).Error
}
