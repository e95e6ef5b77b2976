package http

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/mind-engage/mindengage-grading/internal/normalize"
	"github.com/mind-engage/mindengage-grading/internal/quiz"
)

// POST /quizzes
func PutQuizHandler(svc *quiz.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var z quiz.Quiz
		if err := json.NewDecoder(r.Body).Decode(&z); err != nil {
			http.Error(w, "bad json: "+err.Error(), http.StatusBadRequest)
			return
		}
		if err := svc.PutQuiz(r.Context(), z); err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"id": z.ID, "max_score": z.MaxScore()})
	}
}

// GET /quizzes/{quizID}
func GetQuizHandler(svc *quiz.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		z, err := svc.GetQuiz(r.Context(), chi.URLParam(r, "quizID"))
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, z.StudentView())
	}
}

// PUT /questions/{questionID}/normalization
func ConfigureNormalizationHandler(svc *quiz.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		questionID := strings.TrimSpace(chi.URLParam(r, "questionID"))
		var cfg normalize.Config
		if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
			http.Error(w, "bad json: "+err.Error(), http.StatusBadRequest)
			return
		}
		q, err := svc.ConfigureNormalization(r.Context(), questionID, cfg)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"question_id": q.ID, "normalization": q.Normalization})
	}
}

// POST /quizzes/{quizID}/rescore
func RescoreHandler(svc *quiz.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		attempts, err := svc.Rescore(r.Context(), chi.URLParam(r, "quizID"))
		if err != nil {
			writeError(w, r, err)
			return
		}
		type row struct {
			ID       string  `json:"id"`
			UserID   string  `json:"user_id"`
			Score    float64 `json:"score"`
			MaxScore float64 `json:"max_score"`
			Passed   bool    `json:"passed"`
		}
		out := make([]row, 0, len(attempts))
		for _, a := range attempts {
			out = append(out, row{a.ID, a.UserID, a.Score, a.MaxScore, a.Passed})
		}
		writeJSON(w, http.StatusOK, map[string]any{"attempts": out})
	}
}
