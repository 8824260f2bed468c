package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ajy0127/soc2-report-reviewer/internal/config"
	"github.com/ajy0127/soc2-report-reviewer/internal/infra/httpserver"
	"github.com/ajy0127/soc2-report-reviewer/internal/logging"
	"github.com/ajy0127/soc2-report-reviewer/internal/middleware"
	"github.com/ajy0127/soc2-report-reviewer/internal/wiring"
)

func main() {
	// load config
	cfg, err := config.Load(config.ResolvePath())
	if err != nil {
		slog.Error("config.load.failed", "error", err)
		os.Exit(1)
	}
	logging.Init(logging.ParseLevel(cfg.Log.Level), cfg.Log.Format)
	log := logging.New("api")

	ctx := context.Background()
	app, err := wiring.Build(ctx, cfg)
	if err != nil {
		log.Error("wiring.build.failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	limiter := middleware.NewRateLimiter(cfg.Server.RateLimit.Capacity, cfg.Server.RateLimit.RefillRate)
	defer limiter.Close()

	router, handler := httpserver.NewRouter(httpserver.Options{
		Pipeline:    app.Pipeline,
		Runs:        app.Runs,
		Metrics:     app.Metrics,
		Checkers:    app.Checkers(""),
		APIKeys:     cfg.Server.APIKeys,
		CORSOrigins: cfg.Server.CORSOrigins,
		RateLimiter: limiter,
		Logger:      logging.New("http"),
		RunTimeout:  cfg.Extraction.Budget + cfg.Analysis.Budget + time.Minute,
	})

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:        addr,
		Handler:     handler,
		ReadTimeout: 15 * time.Second,
		// synchronous /v1/analyze waits for the whole pipeline
		WriteTimeout: cfg.Extraction.Budget + cfg.Analysis.Budget + time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	// run server
	go func() {
		log.Info("server.listen", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server.failed", "error", err)
			os.Exit(1)
		}
	}()

	// graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	log.Info("server.shutdown")

	ctx2, cancel := context.WithTimeout(context.Background(), wiring.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx2); err != nil {
		log.Error("server.shutdown.failed", "error", err)
	}

	// tunggu run background selesai
	done := make(chan struct{})
	go func() { router.Wait(); close(done) }()
	select {
	case <-done:
	case <-ctx2.Done():
		log.Warn("server.shutdown.background_runs_abandoned")
	}
}
