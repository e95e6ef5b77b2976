package quiz

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mind-engage/mindengage-grading/internal/normalize"
	syncx "github.com/mind-engage/mindengage-grading/internal/sync"
)

// EventSink records domain events. *syncx.EventRepo satisfies it.
type EventSink interface {
	Append(ctx context.Context, e syncx.Event) error
}

type ServiceOption func(*Service)

func WithScorer(s *Scorer) ServiceOption     { return func(svc *Service) { svc.scorer = s } }
func WithEvents(e EventSink) ServiceOption   { return func(svc *Service) { svc.events = e } }
func WithLogger(l *zap.Logger) ServiceOption { return func(svc *Service) { svc.log = l } }
func WithRescoreWorkers(n int) ServiceOption { return func(svc *Service) { svc.workers = n } }

// Service owns the quiz lifecycle: configuration, attempts, scoring.
type Service struct {
	store      Store
	normalizer *normalize.Normalizer
	scorer     *Scorer
	events     EventSink
	log        *zap.Logger
	workers    int
}

func NewService(store Store, n *normalize.Normalizer, opts ...ServiceOption) *Service {
	if n == nil {
		n = normalize.New()
	}
	svc := &Service{store: store, normalizer: n, log: zap.NewNop(), workers: 4}
	for _, o := range opts {
		o(svc)
	}
	if svc.scorer == nil {
		svc.scorer = NewScorer(nil, n)
	}
	if svc.workers < 1 {
		svc.workers = 1
	}
	return svc
}

// PutQuiz validates every question, normalization included, then stores z.
func (s *Service) PutQuiz(ctx context.Context, z Quiz) error {
	if z.ID == "" {
		return fmt.Errorf("%w: id is required", ErrInvalidQuiz)
	}
	seen := map[string]bool{}
	for i, q := range z.Questions {
		if q.ID == "" {
			return fmt.Errorf("%w: question %d has no id", ErrInvalidQuiz, i)
		}
		if seen[q.ID] {
			return fmt.Errorf("%w: duplicate question id %s", ErrInvalidQuiz, q.ID)
		}
		seen[q.ID] = true
		if q.Points < 0 {
			return fmt.Errorf("%w: negative points on %s", ErrInvalidQuiz, q.ID)
		}
		if err := s.normalizer.Validate(q.Normalization); err != nil {
			return err
		}
	}
	return s.store.PutQuiz(ctx, z)
}

func (s *Service) GetQuiz(ctx context.Context, id string) (Quiz, error) {
	return s.store.GetQuiz(ctx, id)
}

// ConfigureNormalization is the only path that changes a question's
// normalization parameters.
func (s *Service) ConfigureNormalization(ctx context.Context, questionID string, cfg normalize.Config) (Question, error) {
	if err := s.normalizer.Validate(cfg); err != nil {
		return Question{}, err
	}
	cfg.Method = cfg.Resolved()
	q, err := s.store.UpdateNormalization(ctx, questionID, cfg)
	if err != nil {
		return Question{}, err
	}
	s.emit(ctx, "NormalizationConfigured", questionID, cfg)
	s.log.Info("normalization configured",
		zap.String("question_id", questionID),
		zap.String("method", string(cfg.Method)))
	return q, nil
}

func (s *Service) StartAttempt(ctx context.Context, quizID, userID string) (Attempt, error) {
	return s.store.NewAttempt(ctx, quizID, userID)
}

func (s *Service) SaveResponses(ctx context.Context, attemptID string, resp map[string]any) (Attempt, error) {
	return s.store.SaveResponses(ctx, attemptID, resp)
}

func (s *Service) GetAttempt(ctx context.Context, id string) (Attempt, error) {
	return s.store.GetAttempt(ctx, id)
}

// Submit grades and scores an attempt. Submitting twice returns the stored
// result of the first submission.
func (s *Service) Submit(ctx context.Context, attemptID string) (Attempt, error) {
	a, err := s.store.GetAttempt(ctx, attemptID)
	if err != nil {
		return Attempt{}, err
	}
	if a.Status == StatusSubmitted {
		return a, nil
	}
	z, err := s.store.GetQuiz(ctx, a.QuizID)
	if err != nil {
		return Attempt{}, err
	}

	results := s.scorer.Grade(ctx, z, a)
	refs := func(questionID string) ([]float64, error) {
		return s.store.ReferenceScores(ctx, questionID, a.ID)
	}
	scored, err := s.scorer.Apply(z, a, results, refs)
	if err != nil {
		return Attempt{}, err
	}
	scored.Status = StatusSubmitted
	scored.SubmittedAt = time.Now().Unix()

	if err := s.store.SubmitScored(ctx, scored); err != nil {
		if errors.Is(err, ErrAttemptSubmitted) {
			return s.store.GetAttempt(ctx, attemptID)
		}
		return Attempt{}, err
	}
	s.emit(ctx, "AttemptScored", scored.ID, map[string]any{
		"quiz_id": scored.QuizID, "score": scored.Score, "max_score": scored.MaxScore,
	})
	s.log.Debug("attempt scored",
		zap.String("attempt_id", scored.ID),
		zap.Float64("score", scored.Score),
		zap.Float64("max_score", scored.MaxScore))
	return scored, nil
}

// Rescore recomputes every submitted attempt of a quiz. All attempts are
// graded first so percentile questions see one consistent snapshot of raw
// scores; each attempt's own score is left out of its reference. Stored
// scores change only when every attempt rescored without error.
func (s *Service) Rescore(ctx context.Context, quizID string) ([]Attempt, error) {
	z, err := s.store.GetQuiz(ctx, quizID)
	if err != nil {
		return nil, err
	}
	attempts, err := s.store.ListSubmitted(ctx, quizID)
	if err != nil {
		return nil, err
	}

	graded := make([][]QuestionResult, len(attempts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for i := range attempts {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			graded[i] = s.scorer.Grade(gctx, z, attempts[i])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	snapshot := newRawSnapshot(attempts, graded)
	out := make([]Attempt, len(attempts))
	g = new(errgroup.Group)
	g.SetLimit(s.workers)
	for i := range attempts {
		g.Go(func() error {
			a := attempts[i]
			scored, err := s.scorer.Apply(z, a, graded[i], snapshot.without(a.ID))
			if err != nil {
				return fmt.Errorf("attempt %s: %w", a.ID, err)
			}
			out[i] = scored
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	// nothing is written unless every attempt scored
	if err := s.store.UpdateScores(ctx, out); err != nil {
		return nil, err
	}

	s.emit(ctx, "QuizRescored", quizID, map[string]any{"attempts": len(out)})
	s.log.Info("quiz rescored", zap.String("quiz_id", quizID), zap.Int("attempts", len(out)))
	return out, nil
}

func (s *Service) emit(ctx context.Context, typ, key string, payload any) {
	if s.events == nil {
		return
	}
	buf, err := json.Marshal(payload)
	if err != nil {
		s.log.Warn("event encode failed", zap.String("type", typ), zap.Error(err))
		return
	}
	if err := s.events.Append(ctx, syncx.Event{Type: typ, Key: key, DataJSON: string(buf)}); err != nil {
		s.log.Warn("event append failed", zap.String("type", typ), zap.String("key", key), zap.Error(err))
	}
}

// rawSnapshot holds raw scores per question in attempt order.
type rawSnapshot struct {
	byQuestion map[string][]rawEntry
}

type rawEntry struct {
	attemptID string
	raw       float64
}

func newRawSnapshot(attempts []Attempt, graded [][]QuestionResult) rawSnapshot {
	snap := rawSnapshot{byQuestion: map[string][]rawEntry{}}
	for i, a := range attempts {
		for _, r := range graded[i] {
			if r.Answered {
				snap.byQuestion[r.QuestionID] = append(snap.byQuestion[r.QuestionID], rawEntry{attemptID: a.ID, raw: r.RawScore})
			}
		}
	}
	return snap
}

func (s rawSnapshot) without(attemptID string) ReferenceFunc {
	return func(questionID string) ([]float64, error) {
		entries := s.byQuestion[questionID]
		out := make([]float64, 0, len(entries))
		for _, e := range entries {
			if e.attemptID != attemptID {
				out = append(out, e.raw)
			}
		}
		return out, nil
	}
}
