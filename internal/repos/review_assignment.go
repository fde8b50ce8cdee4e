package repos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/studyloop/reviewquiz-backend/internal/logger"
	"github.com/studyloop/reviewquiz-backend/internal/types"
)

type ReviewAssignmentRepo interface {
	Create(ctx context.Context, tx *gorm.DB, row *types.ReviewAssignment) error
	Delete(ctx context.Context, tx *gorm.DB, reviewCourseID uuid.UUID, questionID int64) error
	GetByQuiz(ctx context.Context, tx *gorm.DB, reviewQuizID uuid.UUID) ([]*types.ReviewAssignment, error)
	GetByCourseAndQuestions(ctx context.Context, tx *gorm.DB, reviewCourseID uuid.UUID, questionIDs []int64) ([]*types.ReviewAssignment, error)
	UpdateSlots(ctx context.Context, tx *gorm.DB, reviewQuizID uuid.UUID, slots map[int64]int) error
	DeleteByQuiz(ctx context.Context, tx *gorm.DB, reviewQuizID uuid.UUID) error
}

type reviewAssignmentRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewReviewAssignmentRepo(db *gorm.DB, baseLog *logger.Logger) ReviewAssignmentRepo {
	return &reviewAssignmentRepo{db: db, log: baseLog.With("repo", "ReviewAssignmentRepo")}
}

func (r *reviewAssignmentRepo) Create(ctx context.Context, tx *gorm.DB, row *types.ReviewAssignment) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if row == nil {
		return nil
	}
	return transaction.WithContext(ctx).Create(row).Error
}

func (r *reviewAssignmentRepo) Delete(ctx context.Context, tx *gorm.DB, reviewCourseID uuid.UUID, questionID int64) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(ctx).
		Where("review_course_id = ? AND question_id = ?", reviewCourseID, questionID).
		Delete(&types.ReviewAssignment{}).Error
}

func (r *reviewAssignmentRepo) GetByQuiz(ctx context.Context, tx *gorm.DB, reviewQuizID uuid.UUID) ([]*types.ReviewAssignment, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.ReviewAssignment
	if err := transaction.WithContext(ctx).
		Where("review_quiz_id = ?", reviewQuizID).
		Order("slot ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *reviewAssignmentRepo) GetByCourseAndQuestions(ctx context.Context, tx *gorm.DB, reviewCourseID uuid.UUID, questionIDs []int64) ([]*types.ReviewAssignment, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.ReviewAssignment
	if len(questionIDs) == 0 {
		return out, nil
	}
	if err := transaction.WithContext(ctx).
		Where("review_course_id = ? AND question_id IN ?", reviewCourseID, questionIDs).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *reviewAssignmentRepo) UpdateSlots(ctx context.Context, tx *gorm.DB, reviewQuizID uuid.UUID, slots map[int64]int) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	now := time.Now()
	for questionID, slot := range slots {
		if err := transaction.WithContext(ctx).
			Model(&types.ReviewAssignment{}).
			Where("review_quiz_id = ? AND question_id = ?", reviewQuizID, questionID).
			Updates(map[string]interface{}{"slot": slot, "updated_at": now}).Error; err != nil {
			return err
		}
	}
	return nil
}

func (r *reviewAssignmentRepo) DeleteByQuiz(ctx context.Context, tx *gorm.DB, reviewQuizID uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(ctx).
		Where("review_quiz_id = ?", reviewQuizID).
		Delete(&types.ReviewAssignment{}).Error
}
