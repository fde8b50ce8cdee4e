package lms

const (
	AttemptInProgress = "inprogress"
	AttemptOverdue    = "overdue"
	AttemptFinished   = "finished"
	AttemptAbandoned  = "abandoned"
)

// Answer states a slot can end an attempt in. Graded states carry a
// fraction; the rest are terminal without one.
const (
	AnswerGradedRight   = "gradedright"
	AnswerGradedPartial = "gradedpartial"
	AnswerGradedWrong   = "gradedwrong"
	AnswerGaveUp        = "gaveup"
	AnswerFinished      = "finished"
	AnswerTodo          = "todo"
)

type QuestionRef struct {
	ID    int64  `json:"id"`
	QType string `json:"qtype"`
}

// QuizInfo is the structural snapshot of a quiz on the host LMS. The
// question order is load-bearing: review quizzes mirror it.
type QuizInfo struct {
	ID        int64         `json:"id"`
	CourseID  int64         `json:"course_id"`
	Name      string        `json:"name"`
	Questions []QuestionRef `json:"questions"`
}

type Attempt struct {
	ID      int64   `json:"id"`
	QuizID  int64   `json:"quiz_id"`
	UserID  int64   `json:"user_id"`
	Number  int     `json:"number"`
	State   string  `json:"state"`
	GradePC float64 `json:"grade_percent"`
}

func (a Attempt) Open() bool {
	return a.State == AttemptInProgress || a.State == AttemptOverdue
}

// AttemptAnswer is the per-question grading outcome of one attempt.
// Fraction is nil when the question never got a numeric mark.
type AttemptAnswer struct {
	QuestionID int64    `json:"question_id"`
	Fraction   *float64 `json:"fraction"`
	State      string   `json:"state"`
}
