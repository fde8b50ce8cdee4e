package types

import (
	"time"

	"github.com/google/uuid"
)

// ReviewCourse maps a user to their personal review course on the host
// LMS. At most one per user; created lazily on first provisioning.
type ReviewCourse struct {
	ID          uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	UserID      int64     `gorm:"column:user_id;not null;uniqueIndex" json:"user_id"`
	LMSCourseID int64     `gorm:"column:lms_course_id;not null" json:"lms_course_id"`
	CreatedAt   time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt   time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (ReviewCourse) TableName() string { return "review_course" }
