package types

import (
	"time"

	"github.com/google/uuid"
)

// ReviewAssignment records which review quiz currently holds a question
// for a user's review course. The (review_course_id, question_id)
// uniqueness is load-bearing: a question lives in at most one review
// quiz per course, so moving it elsewhere must delete this row.
type ReviewAssignment struct {
	ID             uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	ReviewCourseID uuid.UUID `gorm:"type:uuid;column:review_course_id;not null;uniqueIndex:uq_assignment_course_question" json:"review_course_id"`
	QuestionID     int64     `gorm:"column:question_id;not null;uniqueIndex:uq_assignment_course_question" json:"question_id"`
	ReviewQuizID   uuid.UUID `gorm:"type:uuid;column:review_quiz_id;not null;index" json:"review_quiz_id"`
	Slot           int       `gorm:"column:slot;not null" json:"slot"`
	Color          string    `gorm:"column:color;not null" json:"color"`
	Source         string    `gorm:"column:source;not null" json:"source"`
	CreatedAt      time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt      time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (ReviewAssignment) TableName() string { return "review_assignment" }
