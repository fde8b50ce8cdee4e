package types

import (
	"time"

	"github.com/google/uuid"
)

const (
	ReviewQuizKindEssay = "essay"
	ReviewQuizKindMixed = "mixed"
)

// ReviewQuiz links a source quiz to the derived quiz that carries the
// user's review questions. LMSQuizID may be re-pointed when the host
// deletes the underlying quiz out from under us.
type ReviewQuiz struct {
	ID             uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	ReviewCourseID uuid.UUID `gorm:"type:uuid;column:review_course_id;not null;uniqueIndex:uq_reviewquiz_course_source" json:"review_course_id"`
	SourceQuizID   int64     `gorm:"column:source_quiz_id;not null;uniqueIndex:uq_reviewquiz_course_source" json:"source_quiz_id"`
	LMSQuizID      int64     `gorm:"column:lms_quiz_id;not null;index" json:"lms_quiz_id"`
	Kind           string    `gorm:"column:kind;not null;default:mixed" json:"kind"`
	Section        string    `gorm:"column:section;not null" json:"section"`
	CreatedAt      time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt      time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (ReviewQuiz) TableName() string { return "review_quiz" }
