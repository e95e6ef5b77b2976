package quiz

import (
	"context"
	"errors"
	"fmt"

	"github.com/mind-engage/mindengage-grading/internal/grading"
	"github.com/mind-engage/mindengage-grading/internal/metrics"
	"github.com/mind-engage/mindengage-grading/internal/normalize"
)

// ReferenceFunc supplies the reference distribution for a percentile question.
type ReferenceFunc func(questionID string) ([]float64, error)

// Scorer turns graded responses into points: grade, normalize, project onto
// the question's point range, then sum.
type Scorer struct {
	grader     grading.Grader
	normalizer *normalize.Normalizer
}

func NewScorer(g grading.Grader, n *normalize.Normalizer) *Scorer {
	if g == nil {
		g = grading.NewDefaultGrader()
	}
	if n == nil {
		n = normalize.New()
	}
	return &Scorer{grader: g, normalizer: n}
}

// Grade computes raw scores for every question of z. Unanswered questions and
// responses the grader rejects earn nothing and are not normalized later.
func (s *Scorer) Grade(ctx context.Context, z Quiz, a Attempt) []QuestionResult {
	out := make([]QuestionResult, 0, len(z.Questions))
	for _, q := range z.Questions {
		r := QuestionResult{QuestionID: q.ID, MaxPoints: q.Points}
		resp, has := a.Responses[q.ID]
		if !has || resp == nil {
			r.Feedback = []string{"no response"}
			out = append(out, r)
			continue
		}
		res, err := s.grader.Grade(ctx, q.gradingQ(), resp)
		switch {
		case err != nil:
			r.Feedback = []string{"invalid response: " + err.Error()}
		case res.NeedsManual:
			r.Feedback = append([]string{"manual grading required"}, res.Feedback...)
		default:
			r.Answered = true
			r.RawScore = res.RawScore
			r.Correct = res.Correct
			r.Feedback = res.Feedback
		}
		out = append(out, r)
	}
	return out
}

// Apply normalizes graded results and aggregates them into a copy of a.
// A percentile question with no reference data keeps its raw score and is
// flagged; every other configuration error aborts.
func (s *Scorer) Apply(z Quiz, a Attempt, results []QuestionResult, refs ReferenceFunc) (Attempt, error) {
	byID := make(map[string]Question, len(z.Questions))
	for _, q := range z.Questions {
		byID[q.ID] = q
	}

	scored := make([]QuestionResult, len(results))
	total := 0.0
	for i, r := range results {
		q := byID[r.QuestionID]
		if r.Answered {
			pts, normalized, err := s.points(q, r.RawScore, refs)
			if err != nil {
				return Attempt{}, fmt.Errorf("question %s: %w", q.ID, err)
			}
			r.PointsEarned = pts
			r.Normalized = normalized
			if !normalized && methodOf(q) != normalize.MethodNone {
				r.Feedback = append(append([]string(nil), r.Feedback...), "not normalized: "+string(normalize.ReasonEmptyReference))
			}
		}
		total += r.PointsEarned
		scored[i] = r
	}

	out := a
	out.Results = scored
	out.Score = total
	out.MaxScore = z.MaxScore()
	out.Passed = out.MaxScore > 0 && out.Score/out.MaxScore*100 >= z.PassingScore
	return out, nil
}

func (s *Scorer) points(q Question, raw float64, refs ReferenceFunc) (float64, bool, error) {
	method := methodOf(q)
	var ref []float64
	if method == normalize.MethodPercentile && refs != nil {
		var err error
		if ref, err = refs(q.ID); err != nil {
			return 0, false, err
		}
	}
	v, err := s.normalizer.Normalize(raw, q.Normalization, ref)
	if err != nil {
		if ce, ok := normalize.AsConfigError(err); ok {
			metrics.ObserveNormalization(string(method), string(ce.Reason))
		} else {
			metrics.ObserveNormalization(string(method), "error")
		}
		if errors.Is(err, normalize.ErrEmptyReference) {
			return clamp(raw, 0, q.Points), false, nil
		}
		return 0, false, err
	}
	metrics.ObserveNormalization(string(method), "ok")
	return project(method, v, q.Points), method != normalize.MethodNone, nil
}

// project maps a normalized value onto [0, points]. z-scores are centred on
// half the points with one standard deviation worth a quarter of them.
func project(m normalize.Method, v, points float64) float64 {
	switch m {
	case normalize.MethodMinMax, normalize.MethodPercentile:
		return v * points
	case normalize.MethodZScore:
		return clamp(points/2+v*points/4, 0, points)
	default:
		return clamp(v, 0, points)
	}
}

func methodOf(q Question) normalize.Method { return q.Normalization.Resolved() }

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
