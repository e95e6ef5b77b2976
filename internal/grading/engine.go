package grading

import (
	"context"
	"errors"
)

// Q is a minimal view of a question needed for grading.
type Q struct {
	Type      string
	Points    float64
	AnswerKey []string // correct choice IDs

	// ChoicePoints holds per-choice point values. When set, the raw score is
	// built from the values of the selected choices instead of the key.
	ChoicePoints     map[string]float64
	UsePartialCredit bool
}

// Result is the outcome of grading a single question response.
type Result struct {
	RawScore    float64  // points awarded before normalization
	MaxPoints   float64  // the question's max points
	Correct     bool     // selection matches the answer key exactly
	NeedsManual bool     // true if teacher review is required
	Feedback    []string // optional notes
}

// Strategy grades a single question.
type Strategy interface {
	Grade(ctx context.Context, q Q, response any) (Result, error)
}

// Grader routes by question type to the correct Strategy.
type Grader interface {
	Grade(ctx context.Context, q Q, response any) (Result, error)
}

var ErrBadResponse = errors.New("unsupported response shape")

type defaultGrader struct {
	strategies map[string]Strategy
}

func (g *defaultGrader) Grade(ctx context.Context, q Q, response any) (Result, error) {
	s, ok := g.strategies[q.Type]
	if !ok {
		return Result{MaxPoints: q.Points, NeedsManual: true, Feedback: []string{"no strategy available"}}, nil
	}
	return s.Grade(ctx, q, response)
}

// Engine options

type Option func(*config)

type config struct {
	AllowPartialMulti bool // partial credit for mcq_multi without per-choice points
}

func WithPartialMulti(b bool) Option { return func(c *config) { c.AllowPartialMulti = b } }

// NewDefaultGrader installs built-in strategies.
func NewDefaultGrader(opts ...Option) Grader {
	cfg := &config{AllowPartialMulti: true}
	for _, o := range opts {
		o(cfg)
	}
	return &defaultGrader{
		strategies: map[string]Strategy{
			"mcq_single": mcqSingleStrategy{},
			"true_false": mcqSingleStrategy{},
			"mcq_multi":  mcqMultiStrategy{allowPartial: cfg.AllowPartialMulti},
		},
	}
}

// --- Strategies ---

type mcqSingleStrategy struct{}

func (mcqSingleStrategy) Grade(_ context.Context, q Q, response any) (Result, error) {
	res := Result{MaxPoints: q.Points}
	resp, ok := response.(string)
	if !ok {
		return res, ErrBadResponse
	}
	for _, k := range q.AnswerKey {
		if resp == k {
			res.Correct = true
			break
		}
	}
	switch {
	case len(q.ChoicePoints) > 0:
		res.RawScore = q.ChoicePoints[resp]
	case res.Correct:
		res.RawScore = q.Points
	}
	return res, nil
}

type mcqMultiStrategy struct{ allowPartial bool }

func (s mcqMultiStrategy) Grade(_ context.Context, q Q, response any) (Result, error) {
	res := Result{MaxPoints: q.Points}
	respSlice, ok := toStringSlice(response)
	if !ok {
		return res, ErrBadResponse
	}
	correct := toSet(q.AnswerKey)
	resp := toSet(respSlice)
	res.Correct = setEqual(correct, resp)

	if len(q.ChoicePoints) > 0 && q.UsePartialCredit {
		sum := 0.0
		for id := range resp {
			sum += q.ChoicePoints[id]
		}
		if sum < 0 {
			sum = 0
		}
		res.RawScore = sum
		return res, nil
	}

	if res.Correct {
		res.RawScore = q.Points
		return res, nil
	}
	hasFalsePositive := false
	for r := range resp {
		if _, ok := correct[r]; !ok {
			hasFalsePositive = true
			break
		}
	}
	partial := s.allowPartial || q.UsePartialCredit
	if partial && !hasFalsePositive && len(correct) > 0 {
		inter := 0
		for k := range resp {
			if _, ok := correct[k]; ok {
				inter++
			}
		}
		res.RawScore = q.Points * (float64(inter) / float64(len(correct)))
	}
	return res, nil
}

// helpers

func toStringSlice(v any) ([]string, bool) {
	switch t := v.(type) {
	case []string:
		return t, true
	case []any:
		out := make([]string, 0, len(t))
		for _, e := range t {
			s, ok := e.(string)
			if !ok {
				return nil, false
			}
			out = append(out, s)
		}
		return out, true
	case string:
		return []string{t}, true
	default:
		return nil, false
	}
}

func toSet(arr []string) map[string]struct{} {
	m := make(map[string]struct{}, len(arr))
	for _, s := range arr {
		m[s] = struct{}{}
	}
	return m
}

func setEqual(a, b map[string]struct{}) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if _, ok := b[k]; !ok {
			return false
		}
	}
	return true
}
