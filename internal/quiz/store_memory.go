package quiz

import (
	"context"
	"maps"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mind-engage/mindengage-grading/internal/normalize"
)

type memoryStore struct {
	mu        sync.RWMutex
	quizzes   map[string]Quiz
	questions map[string]string // questionID -> quizID
	attempts  map[string]Attempt
	scores    map[string]map[string]rawScore // questionID -> attemptID -> raw score
}

type rawScore struct {
	raw         float64
	submittedAt int64
}

func NewInMemoryStore() Store {
	return &memoryStore{
		quizzes:   map[string]Quiz{},
		questions: map[string]string{},
		attempts:  map[string]Attempt{},
		scores:    map[string]map[string]rawScore{},
	}
}

func (m *memoryStore) PutQuiz(_ context.Context, z Quiz) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, q := range z.Questions {
		if owner, ok := m.questions[q.ID]; ok && owner != z.ID {
			return ErrQuestionIDInUse
		}
	}
	if old, ok := m.quizzes[z.ID]; ok {
		keep := make(map[string]bool, len(z.Questions))
		for _, q := range z.Questions {
			keep[q.ID] = true
		}
		for _, q := range old.Questions {
			delete(m.questions, q.ID)
			if !keep[q.ID] {
				delete(m.scores, q.ID)
			}
		}
		if z.CreatedAt == 0 {
			z.CreatedAt = old.CreatedAt
		}
	}
	if z.CreatedAt == 0 {
		z.CreatedAt = time.Now().Unix()
	}
	for _, q := range z.Questions {
		m.questions[q.ID] = z.ID
	}
	m.quizzes[z.ID] = cloneQuiz(z)
	return nil
}

func (m *memoryStore) GetQuiz(_ context.Context, id string) (Quiz, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	z, ok := m.quizzes[id]
	if !ok {
		return Quiz{}, ErrQuizNotFound
	}
	return cloneQuiz(z), nil
}

func (m *memoryStore) UpdateNormalization(_ context.Context, questionID string, cfg normalize.Config) (Question, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	quizID, ok := m.questions[questionID]
	if !ok {
		return Question{}, ErrQuestionNotFound
	}
	z := m.quizzes[quizID]
	for i := range z.Questions {
		if z.Questions[i].ID == questionID {
			z.Questions[i].Normalization = normalize.Config{Method: cfg.Method, Parameters: cfg.Parameters.Clone()}
			m.quizzes[quizID] = z
			return z.Questions[i], nil
		}
	}
	return Question{}, ErrQuestionNotFound
}

func (m *memoryStore) NewAttempt(_ context.Context, quizID, userID string) (Attempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.quizzes[quizID]; !ok {
		return Attempt{}, ErrQuizNotFound
	}
	a := Attempt{
		ID:        uuid.NewString(),
		QuizID:    quizID,
		UserID:    userID,
		Status:    StatusInProgress,
		Responses: map[string]any{},
		StartedAt: time.Now().Unix(),
	}
	m.attempts[a.ID] = a
	return cloneAttempt(a), nil
}

func (m *memoryStore) SaveResponses(_ context.Context, attemptID string, resp map[string]any) (Attempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.attempts[attemptID]
	if !ok {
		return Attempt{}, ErrAttemptNotFound
	}
	if a.Status == StatusSubmitted {
		return Attempt{}, ErrAttemptSubmitted
	}
	a = cloneAttempt(a)
	for k, v := range resp {
		a.Responses[k] = v
	}
	m.attempts[attemptID] = a
	return cloneAttempt(a), nil
}

func (m *memoryStore) GetAttempt(_ context.Context, id string) (Attempt, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.attempts[id]
	if !ok {
		return Attempt{}, ErrAttemptNotFound
	}
	return cloneAttempt(a), nil
}

func (m *memoryStore) SubmitScored(_ context.Context, a Attempt) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.attempts[a.ID]
	if !ok {
		return ErrAttemptNotFound
	}
	if cur.Status == StatusSubmitted {
		return ErrAttemptSubmitted
	}
	a.Status = StatusSubmitted
	m.attempts[a.ID] = cloneAttempt(a)
	m.recordScores(a.ID, a.SubmittedAt, a.Results)
	return nil
}

func (m *memoryStore) UpdateScores(_ context.Context, attempts []Attempt) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range attempts {
		if _, ok := m.attempts[a.ID]; !ok {
			return ErrAttemptNotFound
		}
	}
	for _, a := range attempts {
		cur := m.attempts[a.ID]
		cur.Score, cur.MaxScore, cur.Passed = a.Score, a.MaxScore, a.Passed
		cur.Results = append([]QuestionResult(nil), a.Results...)
		m.attempts[a.ID] = cur
		for _, byAttempt := range m.scores {
			delete(byAttempt, a.ID)
		}
		m.recordScores(a.ID, cur.SubmittedAt, cur.Results)
	}
	return nil
}

// recordScores indexes the answered raw scores of one attempt. Callers hold mu.
func (m *memoryStore) recordScores(attemptID string, submittedAt int64, results []QuestionResult) {
	for _, r := range results {
		if !r.Answered {
			continue
		}
		byAttempt, ok := m.scores[r.QuestionID]
		if !ok {
			byAttempt = map[string]rawScore{}
			m.scores[r.QuestionID] = byAttempt
		}
		byAttempt[attemptID] = rawScore{raw: r.RawScore, submittedAt: submittedAt}
	}
}

func (m *memoryStore) ListSubmitted(_ context.Context, quizID string) ([]Attempt, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Attempt
	for _, a := range m.attempts {
		if a.QuizID == quizID && a.Status == StatusSubmitted {
			out = append(out, cloneAttempt(a))
		}
	}
	sortBySubmission(out)
	return out, nil
}

func (m *memoryStore) ReferenceScores(_ context.Context, questionID, excludeAttemptID string) ([]float64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if _, ok := m.questions[questionID]; !ok {
		return nil, ErrQuestionNotFound
	}
	type entry struct {
		attemptID string
		rawScore
	}
	var entries []entry
	for id, sc := range m.scores[questionID] {
		if id != excludeAttemptID {
			entries = append(entries, entry{id, sc})
		}
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].submittedAt != entries[j].submittedAt {
			return entries[i].submittedAt < entries[j].submittedAt
		}
		return entries[i].attemptID < entries[j].attemptID
	})
	out := make([]float64, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.raw)
	}
	return out, nil
}

// helpers

func sortBySubmission(as []Attempt) {
	sort.Slice(as, func(i, j int) bool {
		if as[i].SubmittedAt != as[j].SubmittedAt {
			return as[i].SubmittedAt < as[j].SubmittedAt
		}
		return as[i].ID < as[j].ID
	})
}

func cloneQuiz(z Quiz) Quiz {
	out := z
	out.Questions = make([]Question, len(z.Questions))
	for i, q := range z.Questions {
		q.Choices = append([]Choice(nil), q.Choices...)
		q.Normalization.Parameters = q.Normalization.Parameters.Clone()
		out.Questions[i] = q
	}
	return out
}

func cloneAttempt(a Attempt) Attempt {
	out := a
	out.Responses = maps.Clone(a.Responses)
	if out.Responses == nil {
		out.Responses = map[string]any{}
	}
	out.Results = append([]QuestionResult(nil), a.Results...)
	return out
}
