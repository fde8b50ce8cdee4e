package repos

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/studyloop/reviewquiz-backend/internal/logger"
	"github.com/studyloop/reviewquiz-backend/internal/types"
)

type QuestionFlagRepo interface {
	Upsert(ctx context.Context, tx *gorm.DB, flag *types.QuestionFlag) error
	Delete(ctx context.Context, tx *gorm.DB, userID, questionID int64) error
	GetByUser(ctx context.Context, tx *gorm.DB, userID int64) ([]*types.QuestionFlag, error)
	GetByUserAndQuestions(ctx context.Context, tx *gorm.DB, userID int64, questionIDs []int64) ([]*types.QuestionFlag, error)
}

type questionFlagRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewQuestionFlagRepo(db *gorm.DB, baseLog *logger.Logger) QuestionFlagRepo {
	return &questionFlagRepo{db: db, log: baseLog.With("repo", "QuestionFlagRepo")}
}

func (r *questionFlagRepo) Upsert(ctx context.Context, tx *gorm.DB, flag *types.QuestionFlag) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if flag == nil {
		return nil
	}
	now := time.Now()
	flag.UpdatedAt = now
	if flag.CreatedAt.IsZero() {
		flag.CreatedAt = now
	}
	return transaction.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "question_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"color", "source", "updated_at"}),
		}).
		Create(flag).Error
}

func (r *questionFlagRepo) Delete(ctx context.Context, tx *gorm.DB, userID, questionID int64) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(ctx).
		Where("user_id = ? AND question_id = ?", userID, questionID).
		Delete(&types.QuestionFlag{}).Error
}

func (r *questionFlagRepo) GetByUser(ctx context.Context, tx *gorm.DB, userID int64) ([]*types.QuestionFlag, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.QuestionFlag
	if err := transaction.WithContext(ctx).
		Where("user_id = ?", userID).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *questionFlagRepo) GetByUserAndQuestions(ctx context.Context, tx *gorm.DB, userID int64, questionIDs []int64) ([]*types.QuestionFlag, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.QuestionFlag
	if len(questionIDs) == 0 {
		return out, nil
	}
	if err := transaction.WithContext(ctx).
		Where("user_id = ? AND question_id IN ?", userID, questionIDs).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
