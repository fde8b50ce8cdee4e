package services

import (
	"context"

	"github.com/studyloop/reviewquiz-backend/internal/lms"
	"github.com/studyloop/reviewquiz-backend/internal/logger"
)

// AttemptAnalysisService decides which questions of a finished attempt
// were answered completely wrong and therefore belong in review.
type AttemptAnalysisService interface {
	IncorrectQuestions(ctx context.Context, attemptID int64) (map[int64]bool, error)
}

type attemptAnalysisService struct {
	log *logger.Logger
	lms lms.Client
}

func NewAttemptAnalysisService(baseLog *logger.Logger, client lms.Client) AttemptAnalysisService {
	return &attemptAnalysisService{
		log: baseLog.With("service", "AttemptAnalysisService"),
		lms: client,
	}
}

// IncorrectQuestions returns the set of question ids whose mark is
// exactly zero, plus questions that ended in a terminal state with no
// mark at all (gave up, finished ungraded). Partial credit keeps a
// question out of review. A vanished attempt surfaces as
// lms.ErrNotFound for the caller to treat as benign.
func (s *attemptAnalysisService) IncorrectQuestions(ctx context.Context, attemptID int64) (map[int64]bool, error) {
	answers, err := s.lms.AttemptAnswers(ctx, attemptID)
	if err != nil {
		return nil, err
	}
	wrong := make(map[int64]bool)
	for _, a := range answers {
		if a.Fraction != nil {
			if *a.Fraction == 0 {
				wrong[a.QuestionID] = true
			}
			continue
		}
		switch a.State {
		case lms.AnswerGaveUp, lms.AnswerFinished, lms.AnswerGradedWrong:
			wrong[a.QuestionID] = true
		}
	}
	return wrong, nil
}
