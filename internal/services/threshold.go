package services

// Grade thresholds gating the first creation of a review quiz. A strong
// first attempt earns review material immediately; after that the bar
// drops so strugglers still get one once they show minimal engagement.
const (
	firstAttemptMinGrade = 70.0
	retryAttemptMinGrade = 35.0
)

// AttemptGrade is one row of a user's attempt history on a source quiz.
type AttemptGrade struct {
	Number  int
	GradePC float64
}

// AllowInitialCreation decides whether the user's latest attempt earns
// them a review quiz for this source quiz. Only consulted while no
// review quiz exists yet; once one is created the gate is never
// re-evaluated.
//
//	attempt #1: grade must exceed 70%
//	attempt #2+: grade must reach 35%
func AllowInitialCreation(history []AttemptGrade) bool {
	if len(history) == 0 {
		return false
	}
	latest := history[0]
	for _, a := range history[1:] {
		if a.Number > latest.Number {
			latest = a
		}
	}
	if latest.Number <= 1 {
		return latest.GradePC > firstAttemptMinGrade
	}
	return latest.GradePC >= retryAttemptMinGrade
}
