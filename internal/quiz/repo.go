package quiz

import (
	"context"
	"errors"

	"github.com/mind-engage/mindengage-grading/internal/normalize"
)

var (
	ErrQuizNotFound     = errors.New("quiz not found")
	ErrQuestionNotFound = errors.New("question not found")
	ErrAttemptNotFound  = errors.New("attempt not found")
	ErrAttemptSubmitted = errors.New("attempt already submitted")
	ErrQuestionIDInUse  = errors.New("question id belongs to another quiz")
	ErrInvalidQuiz      = errors.New("invalid quiz")
)

type Store interface {
	PutQuiz(ctx context.Context, z Quiz) error
	GetQuiz(ctx context.Context, id string) (Quiz, error) // full quiz, including answer keys
	UpdateNormalization(ctx context.Context, questionID string, cfg normalize.Config) (Question, error)

	NewAttempt(ctx context.Context, quizID, userID string) (Attempt, error)
	SaveResponses(ctx context.Context, attemptID string, resp map[string]any) (Attempt, error)
	GetAttempt(ctx context.Context, id string) (Attempt, error)

	// SubmitScored stores a first submission; ErrAttemptSubmitted if one exists.
	SubmitScored(ctx context.Context, a Attempt) error
	// UpdateScores overwrites scores of already submitted attempts. Either
	// every attempt is updated or none is.
	UpdateScores(ctx context.Context, attempts []Attempt) error
	ListSubmitted(ctx context.Context, quizID string) ([]Attempt, error)

	// ReferenceScores returns raw scores of submitted attempts for a question,
	// ordered by submission, leaving out excludeAttemptID.
	ReferenceScores(ctx context.Context, questionID, excludeAttemptID string) ([]float64, error)
}
