package quiz_test

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mind-engage/mindengage-grading/internal/db"
	"github.com/mind-engage/mindengage-grading/internal/normalize"
	"github.com/mind-engage/mindengage-grading/internal/quiz"
)

func openSQLStore(t *testing.T) *quiz.SQLStore {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	conn, err := db.Open(context.Background(), db.DriverSQLite, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return quiz.NewSQLStore(conn, db.DriverSQLite)
}

func TestSQLStoreQuizRoundTrip(t *testing.T) {
	store := openSQLStore(t)
	ctx := context.Background()

	z := quiz.Quiz{ID: "quiz-1", Title: "SQL", PassingScore: 50, Questions: []quiz.Question{
		mcq("q1", normalize.Config{Method: normalize.MethodZScore, Parameters: normalize.Parameters{"mean": 5.0, "std_dev": 2.0}}),
		mcq("q2", normalize.Config{Method: normalize.MethodCustom, Parameters: normalize.Parameters{
			"function": "mapping", "mapping": map[string]any{"2": 4.0},
		}}),
	}}
	require.NoError(t, store.PutQuiz(ctx, z))

	got, err := store.GetQuiz(ctx, "quiz-1")
	require.NoError(t, err)
	assert.Equal(t, "SQL", got.Title)
	require.Len(t, got.Questions, 2)
	assert.Equal(t, "q1", got.Questions[0].ID)
	assert.Equal(t, normalize.MethodZScore, got.Questions[0].Normalization.Method)
	assert.Equal(t, 2.0, got.Questions[0].Normalization.Parameters["std_dev"])
	assert.Equal(t, map[string]any{"2": 4.0}, got.Questions[1].Normalization.Parameters["mapping"])
	assert.Len(t, got.Questions[0].Choices, 4)

	_, err = store.GetQuiz(ctx, "nope")
	assert.ErrorIs(t, err, quiz.ErrQuizNotFound)

	err = store.PutQuiz(ctx, quiz.Quiz{ID: "quiz-2", Questions: []quiz.Question{mcq("q1", normalize.Config{})}})
	assert.ErrorIs(t, err, quiz.ErrQuestionIDInUse)

	q, err := store.UpdateNormalization(ctx, "q1", normalize.Config{Method: normalize.MethodMinMax, Parameters: normalize.Parameters{"min": 0.0, "max": 9.0}})
	require.NoError(t, err)
	assert.Equal(t, normalize.MethodMinMax, q.Normalization.Method)
	got, err = store.GetQuiz(ctx, "quiz-1")
	require.NoError(t, err)
	assert.Equal(t, 9.0, got.Questions[0].Normalization.Parameters["max"])

	_, err = store.UpdateNormalization(ctx, "nope", normalize.Config{})
	assert.ErrorIs(t, err, quiz.ErrQuestionNotFound)
}

func TestSQLStoreAttemptsAndReferences(t *testing.T) {
	store := openSQLStore(t)
	ctx := context.Background()
	require.NoError(t, store.PutQuiz(ctx, quiz.Quiz{ID: "z", Questions: []quiz.Question{mcq("q", normalize.Config{})}}))

	_, err := store.NewAttempt(ctx, "missing", "u")
	assert.ErrorIs(t, err, quiz.ErrQuizNotFound)

	var ids []string
	for i, raw := range []float64{2, 5, 9} {
		a, err := store.NewAttempt(ctx, "z", fmt.Sprintf("u%d", i))
		require.NoError(t, err)
		a, err = store.SaveResponses(ctx, a.ID, map[string]any{"q": []any{"c1"}})
		require.NoError(t, err)
		assert.Equal(t, []any{"c1"}, a.Responses["q"])

		a.Status = quiz.StatusSubmitted
		a.SubmittedAt = int64(100 + i)
		a.Score, a.MaxScore, a.Passed = raw, 10, raw >= 5
		a.Results = []quiz.QuestionResult{{QuestionID: "q", Answered: true, RawScore: raw, PointsEarned: raw, MaxPoints: 10}}
		require.NoError(t, store.SubmitScored(ctx, a))
		assert.ErrorIs(t, store.SubmitScored(ctx, a), quiz.ErrAttemptSubmitted)
		ids = append(ids, a.ID)
	}

	got, err := store.GetAttempt(ctx, ids[2])
	require.NoError(t, err)
	assert.Equal(t, quiz.StatusSubmitted, got.Status)
	assert.True(t, got.Passed)
	assert.Equal(t, 9.0, got.Score)
	require.Len(t, got.Results, 1)
	assert.Equal(t, 9.0, got.Results[0].RawScore)

	_, err = store.SaveResponses(ctx, ids[0], map[string]any{"q": "c2"})
	assert.ErrorIs(t, err, quiz.ErrAttemptSubmitted)

	ref, err := store.ReferenceScores(ctx, "q", ids[1])
	require.NoError(t, err)
	assert.Equal(t, []float64{2, 9}, ref)

	list, err := store.ListSubmitted(ctx, "z")
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, ids, []string{list[0].ID, list[1].ID, list[2].ID})

	upd := got
	upd.Score = 1
	upd.Results = []quiz.QuestionResult{{QuestionID: "q", Answered: true, RawScore: 1, PointsEarned: 1}}
	require.NoError(t, store.UpdateScores(ctx, []quiz.Attempt{upd}))
	ref, err = store.ReferenceScores(ctx, "q", "")
	require.NoError(t, err)
	assert.Equal(t, []float64{2, 5, 1}, ref)

	_, err = store.GetAttempt(ctx, "nope")
	assert.ErrorIs(t, err, quiz.ErrAttemptNotFound)
}

func TestServiceOverSQLStore(t *testing.T) {
	store := openSQLStore(t)
	svc := quiz.NewService(store, normalize.New())
	ctx := context.Background()
	require.NoError(t, svc.PutQuiz(ctx, quiz.Quiz{ID: "z", PassingScore: 50, Questions: []quiz.Question{
		mcq("q", normalize.Config{Method: normalize.MethodMinMax, Parameters: normalize.Parameters{"min": 0.0, "max": 9.0}}),
	}}))

	a, err := svc.StartAttempt(ctx, "z", "u1")
	require.NoError(t, err)
	_, err = svc.SaveResponses(ctx, a.ID, map[string]any{"q": []any{"c1", "c2", "c3", "c4"}})
	require.NoError(t, err)
	a, err = svc.Submit(ctx, a.ID)
	require.NoError(t, err)

	// raw 2+3+4-1 = 8 of a 0..9 range
	assert.InDelta(t, 80.0/9.0, a.Score, 1e-9)
	assert.True(t, a.Passed)

	stored, err := svc.GetAttempt(ctx, a.ID)
	require.NoError(t, err)
	assert.InDelta(t, a.Score, stored.Score, 1e-9)
}

func TestSQLStoreUpdateScoresIsAllOrNothing(t *testing.T) {
	store := openSQLStore(t)
	ctx := context.Background()
	require.NoError(t, store.PutQuiz(ctx, quiz.Quiz{ID: "z", Questions: []quiz.Question{mcq("q", normalize.Config{})}}))

	a, err := store.NewAttempt(ctx, "z", "u1")
	require.NoError(t, err)
	a.Status, a.SubmittedAt, a.Score = quiz.StatusSubmitted, 100, 2
	a.Results = []quiz.QuestionResult{{QuestionID: "q", Answered: true, RawScore: 2, PointsEarned: 2}}
	require.NoError(t, store.SubmitScored(ctx, a))

	upd := a
	upd.Score = 9
	upd.Results = []quiz.QuestionResult{{QuestionID: "q", Answered: true, RawScore: 9, PointsEarned: 9}}
	err = store.UpdateScores(ctx, []quiz.Attempt{upd, {ID: "missing"}})
	assert.ErrorIs(t, err, quiz.ErrAttemptNotFound)

	got, err := store.GetAttempt(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, 2.0, got.Score)
	ref, err := store.ReferenceScores(ctx, "q", "")
	require.NoError(t, err)
	assert.Equal(t, []float64{2}, ref)
}

func TestSQLStoreConcurrentSaveResponses(t *testing.T) {
	store := openSQLStore(t)
	ctx := context.Background()
	require.NoError(t, store.PutQuiz(ctx, quiz.Quiz{ID: "z", Questions: []quiz.Question{mcq("q", normalize.Config{})}}))
	a, err := store.NewAttempt(ctx, "z", "u1")
	require.NoError(t, err)

	const n = 20
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.SaveResponses(ctx, a.ID, map[string]any{fmt.Sprintf("q%d", i): "c1"})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	got, err := store.GetAttempt(ctx, a.ID)
	require.NoError(t, err)
	assert.Len(t, got.Responses, n)
}

// Both stores must forget raw scores of a question dropped from its quiz.
func TestPutQuizDropsScoresOfRemovedQuestions(t *testing.T) {
	stores := map[string]func(t *testing.T) quiz.Store{
		"memory": func(*testing.T) quiz.Store { return quiz.NewInMemoryStore() },
		"sqlite": func(t *testing.T) quiz.Store { return openSQLStore(t) },
	}
	for name, open := range stores {
		t.Run(name, func(t *testing.T) {
			store := open(t)
			ctx := context.Background()
			both := quiz.Quiz{ID: "z", Questions: []quiz.Question{mcq("keep", normalize.Config{}), mcq("drop", normalize.Config{})}}
			require.NoError(t, store.PutQuiz(ctx, both))

			a, err := store.NewAttempt(ctx, "z", "u1")
			require.NoError(t, err)
			a.Status, a.SubmittedAt = quiz.StatusSubmitted, 100
			a.Results = []quiz.QuestionResult{
				{QuestionID: "keep", Answered: true, RawScore: 3},
				{QuestionID: "drop", Answered: true, RawScore: 7},
			}
			require.NoError(t, store.SubmitScored(ctx, a))

			require.NoError(t, store.PutQuiz(ctx, quiz.Quiz{ID: "z", Questions: []quiz.Question{mcq("keep", normalize.Config{})}}))
			require.NoError(t, store.PutQuiz(ctx, both))

			ref, err := store.ReferenceScores(ctx, "drop", "")
			require.NoError(t, err)
			assert.Empty(t, ref)
			ref, err = store.ReferenceScores(ctx, "keep", "")
			require.NoError(t, err)
			assert.Equal(t, []float64{3}, ref)
		})
	}
}
