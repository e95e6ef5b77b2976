package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/mind-engage/mindengage-grading/internal/content"
	"github.com/mind-engage/mindengage-grading/internal/normalize"
	"github.com/mind-engage/mindengage-grading/internal/quiz"
)

type configErrorBody struct {
	Error  string           `json:"error"`
	Method normalize.Method `json:"method"`
	Field  string           `json:"field"`
	Reason normalize.Reason `json:"reason"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type ctxKey struct{}

// withLogger makes log available to writeError for the rest of the request.
func withLogger(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, log)))
		})
	}
}

func loggerFrom(ctx context.Context) *zap.Logger {
	if log, ok := ctx.Value(ctxKey{}).(*zap.Logger); ok {
		return log
	}
	return zap.NewNop()
}

// writeError maps domain errors onto status codes. Configuration errors
// carry their structured fields so clients can point at the bad parameter.
// Internal errors are logged and answered with a generic message.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	if ce, ok := normalize.AsConfigError(err); ok {
		writeJSON(w, http.StatusUnprocessableEntity, configErrorBody{
			Error: ce.Error(), Method: ce.Method, Field: ce.Field, Reason: ce.Reason,
		})
		return
	}
	status := statusOf(err)
	if status == http.StatusInternalServerError {
		loggerFrom(r.Context()).Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.Error(err))
		http.Error(w, http.StatusText(status), status)
		return
	}
	http.Error(w, err.Error(), status)
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, quiz.ErrQuizNotFound),
		errors.Is(err, quiz.ErrQuestionNotFound),
		errors.Is(err, quiz.ErrAttemptNotFound),
		errors.Is(err, content.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, quiz.ErrAttemptSubmitted),
		errors.Is(err, quiz.ErrQuestionIDInUse):
		return http.StatusConflict
	case errors.Is(err, quiz.ErrInvalidQuiz),
		errors.Is(err, content.ErrInvalidContent):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
