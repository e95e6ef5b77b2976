package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/mind-engage/mindengage-grading/internal/content"
	"github.com/mind-engage/mindengage-grading/internal/metrics"
	"github.com/mind-engage/mindengage-grading/internal/normalize"
	"github.com/mind-engage/mindengage-grading/internal/quiz"
)

type Deps struct {
	Normalizer  *normalize.Normalizer
	Quizzes     *quiz.Service
	Contents    *content.Service
	Events      EventFeed
	CORSOrigins []string
	Logger      *zap.Logger // nil discards handler errors
	// Ready reports whether backing stores are reachable; nil means always ready.
	Ready func() error
}

func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   d.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(metrics.Middleware)
	log := d.Logger
	if log == nil {
		log = zap.NewNop()
	}
	r.Use(withLogger(log))

	r.Post("/normalize/preview", PreviewNormalizationHandler(d.Normalizer))

	r.Post("/quizzes", PutQuizHandler(d.Quizzes))
	r.Get("/quizzes/{quizID}", GetQuizHandler(d.Quizzes))
	r.Post("/quizzes/{quizID}/rescore", RescoreHandler(d.Quizzes))
	r.Put("/questions/{questionID}/normalization", ConfigureNormalizationHandler(d.Quizzes))

	r.Post("/attempts", CreateAttemptHandler(d.Quizzes))
	r.Post("/attempts/{attemptID}/responses", SaveResponsesHandler(d.Quizzes))
	r.Post("/attempts/{attemptID}/submit", SubmitAttemptHandler(d.Quizzes))
	r.Get("/attempts/{attemptID}", GetAttemptHandler(d.Quizzes))

	if d.Contents != nil {
		r.Put("/contents/{contentID}", PutContentHandler(d.Contents))
		r.Delete("/contents/{contentID}", DeleteContentHandler(d.Contents))
	}

	if d.Events != nil {
		r.Get("/events", ListEventsHandler(d.Events))
	}

	r.Handle("/metrics", metrics.Handler())
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if d.Ready != nil {
			if err := d.Ready(); err != nil {
				http.Error(w, "not ready: "+err.Error(), http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
	})
	return r
}
