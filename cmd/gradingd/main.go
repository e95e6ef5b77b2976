package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	api "github.com/mind-engage/mindengage-grading/internal/api/http"
	"github.com/mind-engage/mindengage-grading/internal/config"
	"github.com/mind-engage/mindengage-grading/internal/content"
	"github.com/mind-engage/mindengage-grading/internal/db"
	"github.com/mind-engage/mindengage-grading/internal/logger"
	"github.com/mind-engage/mindengage-grading/internal/metrics"
	"github.com/mind-engage/mindengage-grading/internal/normalize"
	"github.com/mind-engage/mindengage-grading/internal/quiz"
	syncx "github.com/mind-engage/mindengage-grading/internal/sync"
)

func main() {
	configDir := flag.String("config", ".", "directory holding config.yaml")
	flag.Parse()

	cfg, err := config.Load(*configDir)
	if err != nil {
		panic("config: " + err.Error())
	}
	log := logger.New(cfg.LogFile, cfg.Mode == config.ModeDebug)
	defer log.Sync()

	// --- DB ---
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	driver := db.Driver(cfg.DBDriver)
	dbh, err := db.Open(ctx, driver, cfg.DBDSN)
	if err != nil {
		log.Fatal("db open failed", zap.Error(err))
	}
	defer dbh.Close()
	events := syncx.NewEventRepo(dbh, "", db.Rebinder(driver))

	// --- Domain ---
	metrics.Register(prometheus.DefaultRegisterer)
	normalizer := normalize.New(normalize.WithCustom("mapping", normalize.MappingFunc))

	quizzes := quiz.NewService(quiz.NewSQLStore(dbh, driver), normalizer,
		quiz.WithEvents(events),
		quiz.WithLogger(log.Named("quiz")),
		quiz.WithRescoreWorkers(cfg.ScoringWorkers))

	var indexer content.Indexer = content.NopIndexer{}
	if cfg.IndexerURL != "" {
		indexer = content.NewHTTPIndexer(content.HTTPIndexerConfig{
			BaseURL: cfg.IndexerURL,
			Token:   cfg.IndexerToken,
			Timeout: cfg.IndexerTimeout,
		})
	}
	contents := content.NewService(content.NewSQLStore(dbh, driver), indexer, events, log.Named("content"))

	// --- Router ---
	router := api.NewRouter(api.Deps{
		Normalizer:  normalizer,
		Quizzes:     quizzes,
		Contents:    contents,
		Events:      events,
		CORSOrigins: cfg.CORSOrigins,
		Logger:      log.Named("http"),
		Ready: func() error {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return dbh.PingContext(ctx)
		},
	})

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		log.Info("listening",
			zap.String("addr", cfg.HTTPAddr),
			zap.String("mode", string(cfg.Mode)),
			zap.String("db", cfg.DBDriver),
			zap.Bool("indexer", cfg.IndexerURL != ""))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("http server", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancelShutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown", zap.Error(err))
	}
}
