package quiz

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/mind-engage/mindengage-grading/internal/db"
	"github.com/mind-engage/mindengage-grading/internal/normalize"
)

type SQLStore struct {
	db     *sql.DB
	driver db.Driver
	rebind func(string) string
}

const attemptColumns = `SELECT id,quiz_id,user_id,status,score,max_score,passed,
	responses_json,results_json,started_at,submitted_at FROM attempts`

func NewSQLStore(conn *sql.DB, driver db.Driver) *SQLStore {
	return &SQLStore{db: conn, driver: driver, rebind: db.Rebinder(driver)}
}

func (s *SQLStore) exec(ctx context.Context, tx *sql.Tx, q string, args ...any) (sql.Result, error) {
	if tx != nil {
		return tx.ExecContext(ctx, s.rebind(q), args...)
	}
	return s.db.ExecContext(ctx, s.rebind(q), args...)
}

func (s *SQLStore) PutQuiz(ctx context.Context, z Quiz) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin put quiz")
	}
	defer tx.Rollback()

	for _, q := range z.Questions {
		var owner string
		err := tx.QueryRowContext(ctx, s.rebind(`SELECT quiz_id FROM questions WHERE id=?`), q.ID).Scan(&owner)
		switch {
		case err == nil && owner != z.ID:
			return ErrQuestionIDInUse
		case err != nil && !errors.Is(err, sql.ErrNoRows):
			return errors.Wrap(err, "check question owner")
		}
	}

	createdAt := z.CreatedAt
	if createdAt == 0 {
		createdAt = time.Now().Unix()
	}
	if _, err := s.exec(ctx, tx, `INSERT INTO quizzes (id,title,passing_score,created_at)
		VALUES (?,?,?,?)
		ON CONFLICT (id) DO UPDATE SET title=EXCLUDED.title, passing_score=EXCLUDED.passing_score`,
		z.ID, z.Title, z.PassingScore, createdAt); err != nil {
		return errors.Wrap(err, "upsert quiz")
	}
	if err := s.dropStaleScores(ctx, tx, z); err != nil {
		return err
	}
	if _, err := s.exec(ctx, tx, `DELETE FROM questions WHERE quiz_id=?`, z.ID); err != nil {
		return errors.Wrap(err, "clear questions")
	}
	for i, q := range z.Questions {
		buf, err := json.Marshal(q)
		if err != nil {
			return err
		}
		if _, err := s.exec(ctx, tx, `INSERT INTO questions (id,quiz_id,position,question_json) VALUES (?,?,?,?)`,
			q.ID, z.ID, i, string(buf)); err != nil {
			return errors.Wrapf(err, "insert question %s", q.ID)
		}
	}
	return errors.Wrap(tx.Commit(), "commit put quiz")
}

// dropStaleScores removes raw scores of questions that z no longer has, so a
// question id added back later starts with an empty reference distribution.
func (s *SQLStore) dropStaleScores(ctx context.Context, tx *sql.Tx, z Quiz) error {
	keep := make(map[string]bool, len(z.Questions))
	for _, q := range z.Questions {
		keep[q.ID] = true
	}
	rows, err := tx.QueryContext(ctx, s.rebind(`SELECT id FROM questions WHERE quiz_id=?`), z.ID)
	if err != nil {
		return errors.Wrap(err, "list old questions")
	}
	var stale []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return errors.Wrap(err, "scan old question")
		}
		if !keep[id] {
			stale = append(stale, id)
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return errors.Wrap(err, "list old questions")
	}
	for _, id := range stale {
		if _, err := s.exec(ctx, tx, `DELETE FROM question_scores WHERE question_id=?`, id); err != nil {
			return errors.Wrapf(err, "drop raw scores %s", id)
		}
	}
	return nil
}

func (s *SQLStore) GetQuiz(ctx context.Context, id string) (Quiz, error) {
	var z Quiz
	row := s.db.QueryRowContext(ctx, s.rebind(`SELECT id,title,passing_score,created_at FROM quizzes WHERE id=?`), id)
	if err := row.Scan(&z.ID, &z.Title, &z.PassingScore, &z.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Quiz{}, ErrQuizNotFound
		}
		return Quiz{}, errors.Wrap(err, "get quiz")
	}

	rows, err := s.db.QueryContext(ctx, s.rebind(`SELECT question_json FROM questions WHERE quiz_id=? ORDER BY position`), id)
	if err != nil {
		return Quiz{}, errors.Wrap(err, "list questions")
	}
	defer rows.Close()
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return Quiz{}, errors.Wrap(err, "scan question")
		}
		q, err := decodeQuestion(raw)
		if err != nil {
			return Quiz{}, err
		}
		z.Questions = append(z.Questions, q)
	}
	return z, errors.Wrap(rows.Err(), "list questions")
}

func (s *SQLStore) UpdateNormalization(ctx context.Context, questionID string, cfg normalize.Config) (Question, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Question{}, errors.Wrap(err, "begin update normalization")
	}
	defer tx.Rollback()

	var raw string
	if err := tx.QueryRowContext(ctx, s.rebind(`SELECT question_json FROM questions WHERE id=?`), questionID).Scan(&raw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Question{}, ErrQuestionNotFound
		}
		return Question{}, errors.Wrap(err, "get question")
	}
	q, err := decodeQuestion(raw)
	if err != nil {
		return Question{}, err
	}
	q.Normalization = normalize.Config{Method: cfg.Method, Parameters: cfg.Parameters.Clone()}
	buf, err := json.Marshal(q)
	if err != nil {
		return Question{}, err
	}
	if _, err := s.exec(ctx, tx, `UPDATE questions SET question_json=? WHERE id=?`, string(buf), questionID); err != nil {
		return Question{}, errors.Wrap(err, "update question")
	}
	if err := tx.Commit(); err != nil {
		return Question{}, errors.Wrap(err, "commit update normalization")
	}
	return decodeQuestion(string(buf))
}

func (s *SQLStore) NewAttempt(ctx context.Context, quizID, userID string) (Attempt, error) {
	// ensure quiz exists
	var exist int
	if err := s.db.QueryRowContext(ctx, s.rebind(`SELECT 1 FROM quizzes WHERE id=?`), quizID).Scan(&exist); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Attempt{}, ErrQuizNotFound
		}
		return Attempt{}, errors.Wrap(err, "check quiz")
	}
	a := Attempt{
		ID:        uuid.NewString(),
		QuizID:    quizID,
		UserID:    userID,
		Status:    StatusInProgress,
		Responses: map[string]any{},
		StartedAt: time.Now().Unix(),
	}
	if _, err := s.exec(ctx, nil, `INSERT INTO attempts (id,quiz_id,user_id,status,responses_json,started_at)
		VALUES (?,?,?,?,'{}',?)`,
		a.ID, a.QuizID, a.UserID, a.Status, a.StartedAt); err != nil {
		return Attempt{}, errors.Wrap(err, "insert attempt")
	}
	return a, nil
}

func (s *SQLStore) SaveResponses(ctx context.Context, attemptID string, resp map[string]any) (Attempt, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Attempt{}, errors.Wrap(err, "begin save responses")
	}
	defer tx.Rollback()

	q := attemptColumns + ` WHERE id=?`
	if s.driver == db.DriverPostgres {
		q += ` FOR UPDATE`
	}
	a, err := scanAttempt(tx.QueryRowContext(ctx, s.rebind(q), attemptID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Attempt{}, ErrAttemptNotFound
		}
		return Attempt{}, errors.Wrap(err, "get attempt")
	}
	if a.Status == StatusSubmitted {
		return Attempt{}, ErrAttemptSubmitted
	}
	for k, v := range resp {
		a.Responses[k] = v
	}
	buf, err := json.Marshal(a.Responses)
	if err != nil {
		return Attempt{}, err
	}
	res, err := s.exec(ctx, tx, `UPDATE attempts SET responses_json=? WHERE id=? AND status=?`,
		string(buf), attemptID, StatusInProgress)
	if err != nil {
		return Attempt{}, errors.Wrap(err, "save responses")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return Attempt{}, ErrAttemptSubmitted
	}
	if err := tx.Commit(); err != nil {
		return Attempt{}, errors.Wrap(err, "commit save responses")
	}
	return a, nil
}

func (s *SQLStore) GetAttempt(ctx context.Context, id string) (Attempt, error) {
	a, err := scanAttempt(s.db.QueryRowContext(ctx, s.rebind(attemptColumns+` WHERE id=?`), id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Attempt{}, ErrAttemptNotFound
		}
		return Attempt{}, errors.Wrap(err, "get attempt")
	}
	return a, nil
}

func (s *SQLStore) SubmitScored(ctx context.Context, a Attempt) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin submit")
	}
	defer tx.Rollback()

	results, err := json.Marshal(a.Results)
	if err != nil {
		return err
	}
	responses, err := json.Marshal(a.Responses)
	if err != nil {
		return err
	}
	res, err := s.exec(ctx, tx, `UPDATE attempts SET status=?, score=?, max_score=?, passed=?,
		responses_json=?, results_json=?, submitted_at=? WHERE id=? AND status=?`,
		StatusSubmitted, a.Score, a.MaxScore, a.Passed, string(responses), string(results), a.SubmittedAt,
		a.ID, StatusInProgress)
	if err != nil {
		return errors.Wrap(err, "submit attempt")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		var status string
		if err := tx.QueryRowContext(ctx, s.rebind(`SELECT status FROM attempts WHERE id=?`), a.ID).Scan(&status); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrAttemptNotFound
			}
			return errors.Wrap(err, "check attempt")
		}
		return ErrAttemptSubmitted
	}
	for _, r := range a.Results {
		if !r.Answered {
			continue
		}
		if _, err := s.exec(ctx, tx, `INSERT INTO question_scores (attempt_id,question_id,raw_score,submitted_at)
			VALUES (?,?,?,?)
			ON CONFLICT (attempt_id,question_id) DO UPDATE SET raw_score=EXCLUDED.raw_score`,
			a.ID, r.QuestionID, r.RawScore, a.SubmittedAt); err != nil {
			return errors.Wrapf(err, "record raw score %s", r.QuestionID)
		}
	}
	return errors.Wrap(tx.Commit(), "commit submit")
}

func (s *SQLStore) UpdateScores(ctx context.Context, attempts []Attempt) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin update scores")
	}
	defer tx.Rollback()

	for _, a := range attempts {
		if err := s.updateScores(ctx, tx, a); err != nil {
			return err
		}
	}
	return errors.Wrap(tx.Commit(), "commit update scores")
}

func (s *SQLStore) updateScores(ctx context.Context, tx *sql.Tx, a Attempt) error {
	results, err := json.Marshal(a.Results)
	if err != nil {
		return err
	}
	res, err := s.exec(ctx, tx, `UPDATE attempts SET score=?, max_score=?, passed=?, results_json=? WHERE id=?`,
		a.Score, a.MaxScore, a.Passed, string(results), a.ID)
	if err != nil {
		return errors.Wrapf(err, "update scores %s", a.ID)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrAttemptNotFound
	}
	if _, err := s.exec(ctx, tx, `DELETE FROM question_scores WHERE attempt_id=?`, a.ID); err != nil {
		return errors.Wrap(err, "clear raw scores")
	}
	for _, r := range a.Results {
		if !r.Answered {
			continue
		}
		if _, err := s.exec(ctx, tx, `INSERT INTO question_scores (attempt_id,question_id,raw_score,submitted_at)
			VALUES (?,?,?,?)`, a.ID, r.QuestionID, r.RawScore, a.SubmittedAt); err != nil {
			return errors.Wrapf(err, "record raw score %s", r.QuestionID)
		}
	}
	return nil
}

func (s *SQLStore) ListSubmitted(ctx context.Context, quizID string) ([]Attempt, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(attemptColumns+`
		WHERE quiz_id=? AND status=? ORDER BY submitted_at, id`), quizID, StatusSubmitted)
	if err != nil {
		return nil, errors.Wrap(err, "list attempts")
	}
	defer rows.Close()
	var out []Attempt
	for rows.Next() {
		a, err := scanAttempt(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan attempt")
		}
		out = append(out, a)
	}
	return out, errors.Wrap(rows.Err(), "list attempts")
}

func (s *SQLStore) ReferenceScores(ctx context.Context, questionID, excludeAttemptID string) ([]float64, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(`SELECT raw_score FROM question_scores
		WHERE question_id=? AND attempt_id<>? ORDER BY submitted_at, attempt_id`), questionID, excludeAttemptID)
	if err != nil {
		return nil, errors.Wrap(err, "reference scores")
	}
	defer rows.Close()
	var out []float64
	for rows.Next() {
		var v float64
		if err := rows.Scan(&v); err != nil {
			return nil, errors.Wrap(err, "scan reference score")
		}
		out = append(out, v)
	}
	return out, errors.Wrap(rows.Err(), "reference scores")
}

// helpers

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAttempt(row rowScanner) (Attempt, error) {
	var a Attempt
	var responses, results string
	var submitted sql.NullInt64
	if err := row.Scan(&a.ID, &a.QuizID, &a.UserID, &a.Status, &a.Score, &a.MaxScore, &a.Passed,
		&responses, &results, &a.StartedAt, &submitted); err != nil {
		return Attempt{}, err
	}
	a.SubmittedAt = submitted.Int64
	if err := json.Unmarshal([]byte(responses), &a.Responses); err != nil || a.Responses == nil {
		a.Responses = map[string]any{}
	}
	if err := json.Unmarshal([]byte(results), &a.Results); err != nil {
		a.Results = nil
	}
	return a, nil
}

func decodeQuestion(raw string) (Question, error) {
	var q Question
	if err := json.Unmarshal([]byte(raw), &q); err != nil {
		return Question{}, errors.Wrap(err, "decode question")
	}
	return q, nil
}
