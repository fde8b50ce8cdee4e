package types

import (
	"time"

	"github.com/google/uuid"
)

const (
	FlagColorBlue = "blue"
	FlagColorRed  = "red"

	FlagSourceManual = "manual"
	FlagSourceAuto   = "auto"
)

// QuestionFlag is the authoritative record of a question a user wants in
// their review material. Manual rows come from the flag toggle in the
// host LMS, auto rows are written when a submitted attempt answers a
// question completely wrong.
type QuestionFlag struct {
	ID         uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	UserID     int64     `gorm:"column:user_id;not null;uniqueIndex:uq_flag_user_question" json:"user_id"`
	QuestionID int64     `gorm:"column:question_id;not null;uniqueIndex:uq_flag_user_question" json:"question_id"`
	Color      string    `gorm:"column:color;not null" json:"color"`
	Source     string    `gorm:"column:source;not null;default:manual" json:"source"`
	CreatedAt  time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt  time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (QuestionFlag) TableName() string { return "question_flag" }
