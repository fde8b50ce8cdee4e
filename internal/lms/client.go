package lms

import "context"

// Client is the structural boundary to the host LMS. Mutating calls
// must tolerate targets that have since been deleted: RemoveQuestion,
// ResequenceSlots and DeleteOpenAttempt return nil (not an error) when
// the quiz or slot is already gone, because reconciliation races with
// host-side deletion workflows.
type Client interface {
	// Reads.
	QuizInfo(ctx context.Context, quizID int64) (*QuizInfo, error)
	QuizExists(ctx context.Context, quizID int64) error
	UserAttempts(ctx context.Context, quizID, userID int64) ([]Attempt, error)
	AttemptAnswers(ctx context.Context, attemptID int64) ([]AttemptAnswer, error)
	HasOpenAttempt(ctx context.Context, quizID, userID int64) (bool, error)
	UserName(ctx context.Context, userID int64) (string, error)

	// Course/quiz provisioning.
	EnsureCourse(ctx context.Context, fullName, shortName string) (int64, error)
	EnrolUser(ctx context.Context, courseID, userID int64) error
	CreateQuiz(ctx context.Context, courseID int64, section, name string) (int64, error)
	FindQuizByName(ctx context.Context, courseID int64, name string) (int64, error)

	// Structure edits.
	AddQuestion(ctx context.Context, quizID, questionID int64) error
	RemoveQuestion(ctx context.Context, quizID, questionID int64) error
	ResequenceSlots(ctx context.Context, quizID int64, order []int64) error
	RecomputeGrade(ctx context.Context, quizID int64) error
	DeleteOpenAttempt(ctx context.Context, quizID, userID int64) error

	// Maintenance.
	RebuildCourseCache(ctx context.Context, courseID int64) error
}
