package quiz

import (
	"github.com/mind-engage/mindengage-grading/internal/grading"
	"github.com/mind-engage/mindengage-grading/internal/normalize"
)

const (
	StatusInProgress = "in_progress"
	StatusSubmitted  = "submitted"
)

type Choice struct {
	ID        string  `json:"id"`
	LabelHTML string  `json:"label_html,omitempty"`
	Correct   bool    `json:"correct,omitempty"`
	Points    float64 `json:"points,omitempty"` // may be negative to penalise a wrong pick
}

type Question struct {
	ID               string           `json:"id"`
	Type             string           `json:"type"` // mcq_single, mcq_multi, true_false
	PromptHTML       string           `json:"prompt_html,omitempty"`
	Choices          []Choice         `json:"choices,omitempty"`
	Points           float64          `json:"points"`
	UsePartialCredit bool             `json:"use_partial_credit,omitempty"`
	Normalization    normalize.Config `json:"normalization"`
}

// gradingQ builds the grader's view. Per-choice points are only used when at
// least one choice carries a non-zero value.
func (q Question) gradingQ() grading.Q {
	gq := grading.Q{Type: q.Type, Points: q.Points, UsePartialCredit: q.UsePartialCredit}
	weighted := false
	for _, c := range q.Choices {
		if c.Correct {
			gq.AnswerKey = append(gq.AnswerKey, c.ID)
		}
		if c.Points != 0 {
			weighted = true
		}
	}
	if weighted {
		gq.ChoicePoints = make(map[string]float64, len(q.Choices))
		for _, c := range q.Choices {
			gq.ChoicePoints[c.ID] = c.Points
		}
	}
	return gq
}

type Quiz struct {
	ID           string     `json:"id"`
	Title        string     `json:"title"`
	PassingScore float64    `json:"passing_score"` // percent of MaxScore
	Questions    []Question `json:"questions"`
	CreatedAt    int64      `json:"created_at,omitempty"`
}

// StudentView hides which choices are correct and what they are worth.
func (z Quiz) StudentView() Quiz {
	out := z
	out.Questions = make([]Question, len(z.Questions))
	for i, q := range z.Questions {
		q.Choices = append([]Choice(nil), q.Choices...)
		for j := range q.Choices {
			q.Choices[j].Correct = false
			q.Choices[j].Points = 0
		}
		out.Questions[i] = q
	}
	return out
}

func (z Quiz) MaxScore() float64 {
	total := 0.0
	for _, q := range z.Questions {
		total += q.Points
	}
	return total
}

// QuestionResult is the per-question outcome stored with a submitted attempt.
type QuestionResult struct {
	QuestionID   string   `json:"question_id"`
	Answered     bool     `json:"answered"`
	RawScore     float64  `json:"raw_score"`
	Normalized   bool     `json:"normalized"`
	PointsEarned float64  `json:"points_earned"`
	MaxPoints    float64  `json:"max_points"`
	Correct      bool     `json:"correct,omitempty"`
	Feedback     []string `json:"feedback,omitempty"`
}

type Attempt struct {
	ID          string           `json:"id"`
	QuizID      string           `json:"quiz_id"`
	UserID      string           `json:"user_id"`
	Status      string           `json:"status"` // in_progress|submitted
	Score       float64          `json:"score"`
	MaxScore    float64          `json:"max_score"`
	Passed      bool             `json:"passed"`
	Responses   map[string]any   `json:"responses"` // questionID -> response payload
	Results     []QuestionResult `json:"results,omitempty"`
	StartedAt   int64            `json:"started_at"`
	SubmittedAt int64            `json:"submitted_at,omitempty"`
}
